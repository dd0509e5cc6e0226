package waitz

import (
	"testing"
	"time"
)

func TestEvent_SetWakesAllWaiters(t *testing.T) {
	e := NewEvent()
	const n = 5
	done := make(chan bool, n)
	for i := 0; i < n; i++ {
		go func() { done <- e.GreenWait() }()
	}
	time.Sleep(10 * time.Millisecond)
	if !e.Set() {
		t.Fatal("expected the first Set to report true")
	}
	if e.Set() {
		t.Fatal("expected a second Set to be a no-op")
	}
	for i := 0; i < n; i++ {
		if !<-done {
			t.Fatal("expected every waiter to observe the event set")
		}
	}
}

func TestEvent_WaitOnAlreadySet(t *testing.T) {
	e := NewEvent()
	e.Set()
	if !e.GreenWait(0) {
		t.Fatal("expected a non-blocking wait on an already-set event to return true")
	}
}

func TestREvent_ClearAdvancesGeneration(t *testing.T) {
	e := NewREvent()
	e.Set()
	g1 := e.Generation()
	e.Clear()
	if e.IsSet() {
		t.Fatal("expected Clear to unset the event")
	}
	if e.Generation() == g1 {
		t.Fatal("expected Clear to advance the generation")
	}
}

func TestREvent_WaiterWokenBySet(t *testing.T) {
	e := NewREvent()
	done := make(chan bool, 1)
	go func() {
		_, ok := e.GreenWait((time.Second).Nanoseconds())
		done <- ok
	}()
	time.Sleep(10 * time.Millisecond)
	e.Set()
	select {
	case ok := <-done:
		if !ok {
			t.Fatal("expected the waiter to be woken by Set")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("waiter was never woken")
	}
}

func TestCountdownEvent_FiresAtZero(t *testing.T) {
	c := NewCountdownEvent(3)
	if c.IsSet() {
		t.Fatal("expected a countdown with outstanding counts to be unset")
	}
	done := make(chan bool, 1)
	go func() { done <- c.GreenWait() }()
	time.Sleep(5 * time.Millisecond)

	c.Down()
	c.Down()
	select {
	case <-done:
		t.Fatal("countdown fired before reaching zero")
	case <-time.After(10 * time.Millisecond):
	}
	c.Down()
	select {
	case ok := <-done:
		if !ok {
			t.Fatal("expected the waiter to be woken once the countdown reached zero")
		}
	case <-time.After(time.Second):
		t.Fatal("countdown waiter was never woken")
	}
	if !c.IsSet() {
		t.Fatal("expected the countdown to report set once remaining reaches 0")
	}
}

func TestCountdownEvent_DownBeyondZeroPanics(t *testing.T) {
	c := NewCountdownEvent(0)
	defer func() {
		if recover() == nil {
			t.Fatal("expected Down on an already-fired countdown to panic")
		}
	}()
	c.Down()
}

func TestCountdownEvent_UpReArmsAfterFiring(t *testing.T) {
	c := NewCountdownEvent(1)
	c.Down()
	if !c.IsSet() {
		t.Fatal("expected the countdown to be fired")
	}
	c.Up(2)
	if c.IsSet() {
		t.Fatal("expected Up to un-fire an already-fired countdown")
	}
	if c.Remaining() != 2 {
		t.Fatalf("expected 2 outstanding counts after Up(2), got %d", c.Remaining())
	}
	c.Down()
	c.Down()
	if !c.IsSet() {
		t.Fatal("expected the re-armed countdown to fire again at zero")
	}
}

func TestCountdownEvent_UpZeroOrNegativePanics(t *testing.T) {
	c := NewCountdownEvent(1)
	defer func() {
		if recover() == nil {
			t.Fatal("expected Up(0) to panic")
		}
	}()
	c.Up(0)
}
