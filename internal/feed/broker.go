// Package feed fans committed order writes out to in-process subscribers.
package feed

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/nasser0p/digi-ai/internal/database"
	"github.com/nasser0p/digi-ai/internal/enum"
)

// Kind classifies a committed order write.
type Kind string

const (
	KindCreated   Kind = "created"
	KindUpdated   Kind = "updated"
	KindCompleted Kind = "completed"
)

// DefaultBuffer is the per-subscription queue length.
const DefaultBuffer = 256

// ErrLagged is reported by a subscription that was dropped because its
// consumer fell behind. The consumer must resubscribe and reload a snapshot.
var ErrLagged = errors.New("subscription lagged behind the feed")

// Event is one committed order write.
type Event struct {
	Kind   Kind           `json:"kind"`
	Order  database.Order `json:"order"`
	Origin string         `json:"origin"`
}

// Filter selects the events a subscription receives. Zero fields match
// everything.
type Filter struct {
	RestaurantID uuid.UUID
	OpenOnly     bool
	OrderType    string
}

// Match reports whether the order passes the filter. Completed orders
// always pass OpenOnly so projections can evict them.
func (f Filter) Match(e Event) bool {
	if f.RestaurantID != uuid.Nil && e.Order.RestaurantID != f.RestaurantID {
		return false
	}
	if f.OrderType != "" && e.Order.OrderType != f.OrderType {
		return false
	}
	if f.OpenOnly && !enum.IsOpenOrderStatus(e.Order.Status) && e.Kind != KindCompleted {
		return false
	}
	return true
}

// Subscription is a live stream of events matching a filter.
type Subscription struct {
	filter Filter
	ch     chan Event
	done   chan struct{}

	mu     sync.Mutex
	err    error
	closed bool
}

// Events returns the channel of matching events. It is closed when the
// subscription's context is cancelled or the subscriber lags.
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

// Err reports why the subscription ended, or nil while it is live or after
// a plain cancellation.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Subscription) close(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.err = err
	close(s.ch)
	close(s.done)
}

// Broker delivers every published event to all matching subscriptions.
// Publish never blocks: a subscriber whose buffer is full is dropped with
// ErrLagged.
type Broker struct {
	mu   sync.Mutex
	subs map[*Subscription]struct{}
	log  *slog.Logger
}

func NewBroker(log *slog.Logger) *Broker {
	return &Broker{
		subs: make(map[*Subscription]struct{}),
		log:  log,
	}
}

// Subscribe registers a subscription that lives until ctx is done.
func (b *Broker) Subscribe(ctx context.Context, f Filter, buffer int) *Subscription {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	sub := &Subscription{filter: f, ch: make(chan Event, buffer), done: make(chan struct{})}

	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			b.remove(sub, nil)
		case <-sub.done:
		}
	}()
	return sub
}

func (b *Broker) remove(sub *Subscription, err error) {
	b.mu.Lock()
	delete(b.subs, sub)
	b.mu.Unlock()
	sub.close(err)
}

// Publish delivers e to every matching subscription.
func (b *Broker) Publish(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for sub := range b.subs {
		if !sub.filter.Match(e) {
			continue
		}
		select {
		case sub.ch <- e:
		default:
			delete(b.subs, sub)
			sub.close(ErrLagged)
			b.log.Warn("dropping lagging subscriber",
				"restaurant_id", sub.filter.RestaurantID,
				"order_id", e.Order.ID,
			)
		}
	}
}

// Reset ends every live subscription with ErrLagged, so each consumer
// reloads a snapshot. It is used when events may have been missed.
func (b *Broker) Reset() int {
	b.mu.Lock()
	subs := b.subs
	b.subs = make(map[*Subscription]struct{})
	b.mu.Unlock()

	for sub := range subs {
		sub.close(ErrLagged)
	}
	return len(subs)
}

// Len returns the number of live subscriptions.
func (b *Broker) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Unsubscribe ends sub immediately.
func (b *Broker) Unsubscribe(sub *Subscription) {
	b.remove(sub, nil)
}
