package waitz

import (
	"os"
	"strconv"
	"sync"
)

// Config holds the process-wide defaults every primitive falls back to
// when an instance does not override them explicitly. Defaults are sourced
// from environment variables exactly once, the first time they are asked
// for; after that, per-instance Option overrides take precedence over the
// cached process default.
type Config struct {
	// PerfectFairness is the strict head-of-queue fairness switch, read
	// from WAITZ_PERFECT_FAIRNESS. No primitive in this package consults
	// it: their waiter queues are mutex-guarded, so a releaser never skips
	// a not-yet-removed head.
	PerfectFairness bool

	// Checkpoints enables the fairness yield described in checkpoint.go
	// after a non-suspending acquire. Read from WAITZ_CHECKPOINTS, one flag
	// since waitz has a single green runtime.
	Checkpoints bool
}

var defaultConfig = sync.OnceValue(func() Config {
	return Config{
		PerfectFairness: boolEnv("WAITZ_PERFECT_FAIRNESS", false),
		Checkpoints:     boolEnv("WAITZ_CHECKPOINTS", true),
	}
})

// DefaultConfig returns the process-wide configuration, computed once from
// the environment on first use.
func DefaultConfig() Config {
	return defaultConfig()
}

func boolEnv(name string, fallback bool) bool {
	v, ok := os.LookupEnv(name)
	if !ok {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
