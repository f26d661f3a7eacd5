package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Pacer enforces a minimum delay between consecutive requests sharing a key
// (typically a host).
type Pacer struct {
	mu       sync.Mutex
	lastCall map[string]time.Time
	minDelay time.Duration
}

// NewPacer creates a pacer that spaces requests with the same key by minDelay.
func NewPacer(minDelay time.Duration) *Pacer {
	return &Pacer{
		lastCall: make(map[string]time.Time),
		minDelay: minDelay,
	}
}

// Wait blocks until enough time has passed since the last request for key.
// Returns an error if the context is cancelled while waiting.
func (p *Pacer) Wait(ctx context.Context, key string) error {
	p.mu.Lock()
	last, ok := p.lastCall[key]
	now := time.Now()

	if !ok || now.Sub(last) >= p.minDelay {
		p.lastCall[key] = now
		p.mu.Unlock()
		return nil
	}

	remaining := p.minDelay - now.Sub(last)
	p.mu.Unlock()

	select {
	case <-ctx.Done():
		return fmt.Errorf("pacer wait for %s: %w", key, ctx.Err())
	case <-time.After(remaining):
	}

	p.mu.Lock()
	p.lastCall[key] = time.Now()
	p.mu.Unlock()

	return nil
}

// Reset forgets the last request time for key so the next Wait returns at once.
func (p *Pacer) Reset(key string) {
	p.mu.Lock()
	delete(p.lastCall, key)
	p.mu.Unlock()
}
