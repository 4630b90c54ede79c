// Package waiter waits for asynchronous backend work with an injectable clock.
package waiter

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrTimeout is returned when the condition did not hold before the poll timeout
var ErrTimeout = errors.New("condition not met before timeout")

// Clock abstracts time so waits can be faked in tests
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

// Policy describes how long to wait.
// Minimum is always slept in full; polling only starts afterwards and only
// when Timeout is positive.
type Policy struct {
	Minimum  time.Duration
	Timeout  time.Duration
	Interval time.Duration
}

// Condition reports whether the awaited state has been reached
type Condition func(ctx context.Context) (bool, error)

// WaitFor sleeps for the policy minimum and then polls cond until it holds or
// the policy timeout expires. A nil cond or a non-positive timeout turns it
// into a plain sleep.
func WaitFor(ctx context.Context, clock Clock, policy Policy, cond Condition) error {
	if err := clock.Sleep(ctx, policy.Minimum); err != nil {
		return err
	}

	if cond == nil || policy.Timeout <= 0 {
		return nil
	}

	deadline := clock.Now().Add(policy.Timeout)
	var lastErr error
	for {
		ok, err := cond(ctx)
		if ok {
			return nil
		}
		lastErr = err

		if !clock.Now().Before(deadline) {
			if lastErr != nil {
				return fmt.Errorf("%w: %w", ErrTimeout, lastErr)
			}
			return ErrTimeout
		}

		if err := clock.Sleep(ctx, policy.Interval); err != nil {
			return err
		}
	}
}

// RealClock uses wall-clock time
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

func (RealClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// FakeClock advances instantly on Sleep and records every requested sleep
type FakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
	onTick func(now time.Time)
}

// NewFakeClock creates a fake clock starting at start
func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

// OnSleep registers a hook called after every sleep with the new time
func (c *FakeClock) OnSleep(fn func(now time.Time)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onTick = fn
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	c.now = c.now.Add(d)
	c.sleeps = append(c.sleeps, d)
	now, hook := c.now, c.onTick
	c.mu.Unlock()

	if hook != nil {
		hook(now)
	}
	return nil
}

// Sleeps returns every duration passed to Sleep
func (c *FakeClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]time.Duration, len(c.sleeps))
	copy(out, c.sleeps)
	return out
}

// Slept returns the total time slept
func (c *FakeClock) Slept() time.Duration {
	var total time.Duration
	for _, d := range c.Sleeps() {
		total += d
	}
	return total
}
