package retry

import (
	"context"
	"sync"
	"time"
)

// Pacer enforces a minimum interval between the start of consecutive calls.
type Pacer struct {
	interval time.Duration
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error

	mu   sync.Mutex
	last time.Time
}

// NewPacer creates a Pacer. A zero interval never waits.
func NewPacer(interval time.Duration) *Pacer {
	return &Pacer{interval: interval, now: time.Now, sleep: Sleep}
}

// Wait blocks until at least the interval has passed since the previous
// call to Wait returned, then marks the current time.
func (p *Pacer) Wait(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.last.IsZero() {
		if remaining := p.interval - p.now().Sub(p.last); remaining > 0 {
			if err := p.sleep(ctx, remaining); err != nil {
				return err
			}
		}
	}
	p.last = p.now()
	return nil
}
