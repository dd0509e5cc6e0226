package waitz

import "testing"

func TestFlag_SetOnlyOnce(t *testing.T) {
	var f Flag[int]
	if _, ok := f.Get(); ok {
		t.Fatal("expected a zero-value Flag to be empty")
	}
	if !f.Set(1) {
		t.Fatal("expected the first Set to succeed")
	}
	if f.Set(2) {
		t.Fatal("expected a second Set on an occupied flag to fail")
	}
	v, ok := f.Get()
	if !ok || v != 1 {
		t.Fatalf("expected the first marker to stick, got %d, %v", v, ok)
	}
}

func TestFlag_ClearThenSet(t *testing.T) {
	var f Flag[string]
	f.Set("a")
	f.Clear()
	if _, ok := f.Get(); ok {
		t.Fatal("expected Clear to empty the flag")
	}
	if !f.Set("b") {
		t.Fatal("expected Set to succeed again after Clear")
	}
}

func TestFlag_GetOr(t *testing.T) {
	var f Flag[int]
	if got := f.GetOr(42); got != 42 {
		t.Fatalf("expected fallback 42, got %d", got)
	}
	f.Set(7)
	if got := f.GetOr(42); got != 7 {
		t.Fatalf("expected the set marker 7, got %d", got)
	}
}

func TestFlag_Replace(t *testing.T) {
	var f Flag[int]
	if _, had := f.Replace(1); had {
		t.Fatal("expected no previous marker on an empty flag")
	}
	prev, had := f.Replace(2)
	if !had || prev != 1 {
		t.Fatalf("expected the previous marker 1, got %d, %v", prev, had)
	}
	v, _ := f.Get()
	if v != 2 {
		t.Fatalf("expected Replace to install the new marker, got %d", v)
	}
}
