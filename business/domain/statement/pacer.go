package statement

import (
	"context"
	"math/rand/v2"
	"time"
)

// Pacer delays every provider request by a fixed wait plus a random jitter in [0, jitter). It is not
// a token bucket, the wait also happens before the very first request.
type Pacer struct {
	wait   time.Duration
	jitter time.Duration
	randN  func(n int64) int64
	sleep  func(ctx context.Context, d time.Duration) error
}

func NewPacer(wait, jitter time.Duration) *Pacer {
	return &Pacer{
		wait:   max(wait, 0),
		jitter: jitter,
		randN:  rand.Int64N,
		sleep:  sleepContext,
	}
}

// Wait blocks the calling goroutine only. It returns early with the context error if the context is
// done before the delay elapsed.
func (p *Pacer) Wait(ctx context.Context) error {
	return p.sleep(ctx, p.nextDelay())
}

func (p *Pacer) nextDelay() time.Duration {
	delay := p.wait
	if p.jitter > 0 {
		delay += time.Duration(p.randN(int64(p.jitter)))
	}
	return delay
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
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
