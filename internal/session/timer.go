package session

import (
	"context"
	"sync"
	"time"
)

// Countdown is the cooperative 1-tick-per-second clock driving the MCQ phase.
// Cancellation is generation-based: Stop bumps the generation, so a decrement
// already scheduled for a stale generation is discarded even if its tick was
// in flight when Stop was called.
type Countdown struct {
	mu        sync.Mutex
	interval  time.Duration
	remaining int
	active    bool
	gen       uint64
	cancel    context.CancelFunc

	onTick    func(remaining int)
	onTimeout func()
}

// NewCountdown creates a countdown firing onTick after every elapsed interval
// and onTimeout exactly once when the counter reaches zero. Callbacks are
// invoked without the timer lock held.
func NewCountdown(interval time.Duration, onTick func(remaining int), onTimeout func()) *Countdown {
	if interval <= 0 {
		interval = time.Second
	}
	return &Countdown{
		interval:  interval,
		onTick:    onTick,
		onTimeout: onTimeout,
	}
}

// Start resets the counter to seconds and begins ticking. Any previous run is
// cancelled first.
func (c *Countdown) Start(seconds int) {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	c.gen++
	gen := c.gen
	c.remaining = seconds
	c.active = true

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.mu.Unlock()

	go c.run(ctx, gen)
}

// Stop cancels the countdown. Idempotent; safe with nothing running. No tick
// or timeout is delivered after Stop returns for the stopped generation.
func (c *Countdown) Stop() {
	c.mu.Lock()
	c.gen++
	c.active = false
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.mu.Unlock()
}

// Remaining returns the current counter value.
func (c *Countdown) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

// Active reports whether the countdown is running.
func (c *Countdown) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

func (c *Countdown) run(ctx context.Context, gen uint64) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !c.step(gen) {
				return
			}
		}
	}
}

// step applies one decrement for the given generation. It returns false when
// the run loop should exit, either because the generation is stale or because
// the counter reached zero.
func (c *Countdown) step(gen uint64) bool {
	c.mu.Lock()
	if gen != c.gen || !c.active {
		c.mu.Unlock()
		return false
	}
	c.remaining--
	remaining := c.remaining
	timedOut := remaining <= 0
	if timedOut {
		c.active = false
	}
	tick := c.onTick
	timeout := c.onTimeout
	c.mu.Unlock()

	if timedOut {
		if timeout != nil {
			timeout()
		}
		return false
	}
	if tick != nil {
		tick(remaining)
	}
	return true
}
