package runtime

import (
	"context"
	"time"
)

// Budget bounds one run of a batch job. Zero values mean unbounded.
type Budget struct {
	MaxBatches int
	Deadline   time.Time
}

// WithTimeout returns a copy whose deadline is d from now.
func (b Budget) WithTimeout(d time.Duration) Budget {
	if d > 0 {
		b.Deadline = time.Now().Add(d)
	}
	return b
}

const (
	StopNone      = ""
	StopBatches   = "max_batches"
	StopDeadline  = "deadline"
	StopCancelled = "cancelled"
)

// Tracker is checked between batches; a run never stops in the middle of one.
type Tracker struct {
	ctx     context.Context
	budget  Budget
	batches int
	reason  string
	now     func() time.Time
}

func NewTracker(ctx context.Context, b Budget) *Tracker {
	return &Tracker{ctx: ctx, budget: b, now: time.Now}
}

// Allow reports whether another batch may start and counts it when it may.
func (t *Tracker) Allow() bool {
	if t.reason != StopNone {
		return false
	}
	switch {
	case t.ctx != nil && t.ctx.Err() != nil:
		t.reason = StopCancelled
	case !t.budget.Deadline.IsZero() && !t.now().Before(t.budget.Deadline):
		t.reason = StopDeadline
	case t.budget.MaxBatches > 0 && t.batches >= t.budget.MaxBatches:
		t.reason = StopBatches
	default:
		t.batches++
		return true
	}
	return false
}

func (t *Tracker) Batches() int   { return t.batches }
func (t *Tracker) Reason() string { return t.reason }
