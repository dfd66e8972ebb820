package process

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/dmitrijs2005/hivekeeper/internal/common"
)

const (
	DefaultWaiterTicks    = 20
	DefaultWaiterInterval = time.Second
)

// Waiter blocks the caller while polling a condition for a bounded number
// of ticks. Giving up does not affect the process being observed.
type Waiter struct {
	MaxTicks int
	Interval time.Duration
	Clock    clock.Clock
}

// NewWaiter returns a waiter on the real clock.
func NewWaiter(maxTicks int, interval time.Duration) *Waiter {
	return &Waiter{MaxTicks: maxTicks, Interval: interval, Clock: clock.New()}
}

// Wait returns nil as soon as cond holds, common.ErrWaiterTimeout after
// MaxTicks ticks without it, or ctx.Err() when ctx ends first.
func (w *Waiter) Wait(ctx context.Context, cond func() bool) error {
	if cond() {
		return nil
	}

	clk := w.Clock
	if clk == nil {
		clk = clock.New()
	}
	interval := w.Interval
	if interval <= 0 {
		interval = DefaultWaiterInterval
	}
	ticks := w.MaxTicks
	if ticks <= 0 {
		ticks = DefaultWaiterTicks
	}

	ticker := clk.Ticker(interval)
	defer ticker.Stop()

	for i := 0; i < ticks; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if cond() {
			return nil
		}
	}
	return common.ErrWaiterTimeout
}

// WaitFor waits until l has received its terminal notification.
func (w *Waiter) WaitFor(ctx context.Context, l *ResultListener) error {
	return w.Wait(ctx, l.IsDone)
}
