package tasks

import (
	"strings"
	"time"
)

// Category selects an operation's timeout and whether it may bypass the queue.
type Category int

const (
	Default Category = iota
	Critical
	LongRunning
)

func (c Category) String() string {
	switch c {
	case Default:
		return "default"
	case Critical:
		return "critical"
	case LongRunning:
		return "long_running"
	default:
		return ""
	}
}

var (
	criticalKeywords    = []string{"resume", "switch", "transfer playback", "start playback"}
	longRunningKeywords = []string{"liked songs", "library", "scan"}
)

// Classify picks a category from an operation description.
func Classify(description string) Category {
	d := strings.ToLower(description)
	for _, kw := range criticalKeywords {
		if strings.Contains(d, kw) {
			return Critical
		}
	}
	for _, kw := range longRunningKeywords {
		if strings.Contains(d, kw) {
			return LongRunning
		}
	}
	return Default
}

// Timeouts holds the per-category operation budget.
type Timeouts struct {
	Critical    time.Duration
	Default     time.Duration
	LongRunning time.Duration
}

// DefaultTimeouts returns 5s for critical, 10s for default and 30s for long-running operations.
func DefaultTimeouts() Timeouts {
	return Timeouts{Critical: 5 * time.Second, Default: 10 * time.Second, LongRunning: 30 * time.Second}
}

// For returns the timeout of c, falling back to [DefaultTimeouts] for unset values.
func (t Timeouts) For(c Category) time.Duration {
	def := DefaultTimeouts()
	pick := func(v, fallback time.Duration) time.Duration {
		if v > 0 {
			return v
		}
		return fallback
	}
	switch c {
	case Critical:
		return pick(t.Critical, def.Critical)
	case LongRunning:
		return pick(t.LongRunning, def.LongRunning)
	default:
		return pick(t.Default, def.Default)
	}
}
