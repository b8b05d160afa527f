package rate

import (
	"context"
	"fmt"
	"time"
)

// Limiter gates outbound Gmail API calls.
type Limiter interface {
	Wait(ctx context.Context) error
}

// TokenBucket is a fixed-rate token bucket. Unused capacity does not
// accumulate beyond one second's worth of tokens.
type TokenBucket struct {
	ticker   *time.Ticker
	tokens   chan struct{}
	quit     chan struct{}
	stopDone chan struct{}
}

// NewTokenBucket returns a limiter that releases rps tokens per second.
func NewTokenBucket(rps int) *TokenBucket {
	if rps <= 0 {
		rps = 1
	}
	tb := &TokenBucket{
		ticker:   time.NewTicker(time.Second / time.Duration(rps)),
		tokens:   make(chan struct{}, rps),
		quit:     make(chan struct{}),
		stopDone: make(chan struct{}),
	}
	// let the first call through without waiting a tick
	tb.tokens <- struct{}{}
	go tb.refill()
	return tb
}

func (t *TokenBucket) refill() {
	defer close(t.stopDone)
	for {
		select {
		case <-t.quit:
			return
		case <-t.ticker.C:
			select {
			case t.tokens <- struct{}{}:
			default:
			}
		}
	}
}

// Wait blocks until a token is available or the context is canceled.
func (t *TokenBucket) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("rate wait canceled: %w", ctx.Err())
	case <-t.tokens:
		return nil
	}
}

// Stop shuts down the refill goroutine. Call it once, after the last
// Wait.
func (t *TokenBucket) Stop() {
	t.ticker.Stop()
	close(t.quit)
	<-t.stopDone
}

var _ Limiter = (*TokenBucket)(nil)
