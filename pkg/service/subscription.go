package service

import (
	"context"
	"sync"

	"docuquery/pkg/domain"
)

// Subscription delivers ingestion snapshots until it is closed. Only the
// latest undelivered snapshot is kept; a slow reader skips intermediate ones.
type Subscription struct {
	ch     chan []domain.Ingestion
	once   sync.Once
	cancel func()
}

// C returns the snapshot channel. It is closed by Close.
func (s *Subscription) C() <-chan []domain.Ingestion {
	return s.ch
}

// Close unregisters the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(s.cancel)
}

// broadcaster fans snapshots out to subscriptions.
type broadcaster struct {
	mu   sync.Mutex
	subs map[*Subscription]struct{}
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[*Subscription]struct{})}
}

// subscribe registers a subscription and closes it when ctx ends.
func (b *broadcaster) subscribe(ctx context.Context, initial []domain.Ingestion) *Subscription {
	sub := &Subscription{ch: make(chan []domain.Ingestion, 1)}
	stop := make(chan struct{})
	sub.cancel = func() {
		b.mu.Lock()
		delete(b.subs, sub)
		close(sub.ch)
		b.mu.Unlock()
		close(stop)
	}
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	sub.ch <- initial
	b.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			sub.Close()
		case <-stop:
		}
	}()
	return sub
}

func (b *broadcaster) publish(snapshot []domain.Ingestion) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs {
		select {
		case <-sub.ch:
		default:
		}
		sub.ch <- cloneIngestions(snapshot)
	}
}

func (b *broadcaster) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func cloneIngestions(in []domain.Ingestion) []domain.Ingestion {
	out := make([]domain.Ingestion, len(in))
	copy(out, in)
	return out
}
