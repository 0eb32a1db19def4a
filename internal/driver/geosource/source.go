// Package geosource produces device position samples for the tracking loop.
package geosource

import (
	"context"
	"sync"
	"time"

	"backend-transitportal/internal/domain"
)

type Source interface {
	// Subscribe starts delivering samples until the subscription is
	// cancelled. Callbacks run on a single goroutine, one at a time.
	Subscribe(onSample func(domain.Position), onError func(error)) (Subscription, error)
}

type Subscription interface {
	// Cancel stops delivery. No callback runs after Cancel returns, so it
	// must not be called from inside a callback.
	Cancel()
}

// Provider reads the device position once.
type Provider interface {
	Current(ctx context.Context) (domain.Position, error)
}

// Poller turns a Provider into a Source by reading it on a fixed interval.
type Poller struct {
	provider Provider
	interval time.Duration
}

func NewPoller(p Provider, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Poller{provider: p, interval: interval}
}

func (p *Poller) Subscribe(onSample func(domain.Position), onError func(error)) (Subscription, error) {
	ctx, cancel := context.WithCancel(context.Background())
	sub := &pollSubscription{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(sub.done)
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			pos, err := p.provider.Current(ctx)
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				onError(err)
			} else {
				onSample(pos)
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	return sub, nil
}

type pollSubscription struct {
	once   sync.Once
	cancel context.CancelFunc
	done   chan struct{}
}

func (s *pollSubscription) Cancel() {
	s.once.Do(s.cancel)
	<-s.done
}
