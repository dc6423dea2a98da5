// Package ratebudget tracks the multi-tier request quota of the match API
// and turns a pending record count into a submission schedule.
package ratebudget

import (
	"context"
	"strconv"
	"strings"
	"time"
)

// Unknown marks a server-reported counter that was missing or unparseable.
// It never tightens the budget.
const Unknown = -1

// DefaultMinutePause is the fixed pause between minute windows.
const DefaultMinutePause = 60 * time.Second

// Limits are the static ceilings advertised by the match API.
type Limits struct {
	Daily   int
	Hourly  int
	Minute  int
	PerCall int
}

// DefaultLimits returns the ceilings of the Apollo free tier bulk match plan.
func DefaultLimits() Limits {
	return Limits{
		Daily:   600,
		Hourly:  200,
		Minute:  50,
		PerCall: 10,
	}
}

// Budget is the per-pipeline quota state. It is not safe for concurrent use;
// the submitter drives it from a single goroutine.
type Budget struct {
	limits Limits

	// MinutePause is the pause enforced by WaitBetweenMinuteWindows.
	MinutePause time.Duration

	// Sleep performs the pause. Nil means a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error

	limit          int
	submitted      int
	dailyRemaining int
}

// New creates a budget from static limits. Non-positive limits fall back to
// DefaultLimits.
func New(limits Limits) *Budget {
	def := DefaultLimits()
	if limits.Daily <= 0 {
		limits.Daily = def.Daily
	}
	if limits.Hourly <= 0 {
		limits.Hourly = def.Hourly
	}
	if limits.Minute <= 0 {
		limits.Minute = def.Minute
	}
	if limits.PerCall <= 0 {
		limits.PerCall = def.PerCall
	}
	return &Budget{
		limits:         limits,
		MinutePause:    DefaultMinutePause,
		dailyRemaining: Unknown,
	}
}

// Limits returns the static ceilings.
func (b *Budget) Limits() Limits {
	return b.limits
}

// PlanRunSize returns min(Hourly, Daily, candidates) and arms the run limit.
// A run never spans more than one hourly window; any excess stays pending.
func (b *Budget) PlanRunSize(candidates int) int {
	if candidates < 0 {
		candidates = 0
	}
	b.limit = min(b.limits.Hourly, b.limits.Daily, candidates)
	b.submitted = 0
	return b.limit
}

// Observe tightens the run limit from server-reported remaining counters.
// Unknown (or any negative) value leaves the limit untouched.
func (b *Budget) Observe(hourlyRemaining, dailyRemaining int) {
	if hourlyRemaining >= 0 {
		b.limit = min(b.limit, hourlyRemaining)
	}
	if dailyRemaining >= 0 {
		b.dailyRemaining = dailyRemaining
		b.limit = min(b.limit, dailyRemaining)
	}
}

// Consume records n submitted records.
func (b *Budget) Consume(n int) {
	b.submitted += n
}

// Limit returns the current (possibly tightened) run limit.
func (b *Budget) Limit() int {
	return b.limit
}

// Submitted returns the number of records consumed so far in this run.
func (b *Budget) Submitted() int {
	return b.submitted
}

// Remaining returns how many more records this run may submit.
func (b *Budget) Remaining() int {
	return b.limit - b.submitted
}

// Exhausted reports whether the run must stop submitting.
func (b *Budget) Exhausted() bool {
	return b.Remaining() <= 0
}

// DailyRemaining returns the last server-reported daily remaining count, or
// Unknown.
func (b *Budget) DailyRemaining() int {
	return b.dailyRemaining
}

// WaitBetweenMinuteWindows pauses long enough to cross into the next minute
// window. The pause is fixed, not aligned to the wall clock.
func (b *Budget) WaitBetweenMinuteWindows(ctx context.Context) error {
	if b.Sleep != nil {
		return b.Sleep(ctx, b.MinutePause)
	}
	return sleepContext(ctx, b.MinutePause)
}

// ParseRemaining parses an advisory remaining-count header. Missing or
// malformed values yield Unknown, never zero.
func ParseRemaining(v string) int {
	v = strings.TrimSpace(v)
	if v == "" {
		return Unknown
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return Unknown
	}
	return n
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
