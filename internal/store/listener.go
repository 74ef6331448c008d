package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nasser0p/digi-ai/internal/feed"
)

const listenRetryDelay = 2 * time.Second

// ListenSession holds LISTEN until it fails or ctx ends. It calls ready
// once LISTEN is in effect.
type ListenSession func(ctx context.Context, ready func()) error

// Listen relays order writes committed by other server instances into the
// local feed. It holds one pooled connection on LISTEN and reconnects after
// failures until ctx ends.
func (s *OrderStore) Listen(ctx context.Context, pool *pgxpool.Pool) error {
	return s.ListenWith(ctx, listenRetryDelay, func(ctx context.Context, ready func()) error {
		return s.listenOnce(ctx, pool, ready)
	})
}

// ListenWith runs session until ctx ends, retrying after delay. Writes
// committed elsewhere while disconnected were never announced here, so
// every local subscription is reset once LISTEN is back; consumers reload
// their snapshot.
func (s *OrderStore) ListenWith(ctx context.Context, delay time.Duration, session ListenSession) error {
	disconnected := false
	for {
		err := session(ctx, func() {
			if !disconnected {
				return
			}
			disconnected = false
			n := s.broker.Reset()
			s.log.Info("order listener resumed, subscribers reset", "subscribers", n)
		})
		if ctx.Err() != nil {
			return nil
		}
		disconnected = true
		s.log.Warn("order listener disconnected", "error", err)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
	}
}

func (s *OrderStore) listenOnce(ctx context.Context, pool *pgxpool.Pool, ready func()) error {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire listener conn: %w", Classify(err))
	}
	defer func() {
		// The connection goes back to the pool; it must stop listening first.
		unlistenCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, _ = conn.Exec(unlistenCtx, "UNLISTEN *")
		conn.Release()
	}()

	if _, err := conn.Exec(ctx, "LISTEN "+NotifyChannel); err != nil {
		return fmt.Errorf("listen %s: %w", NotifyChannel, Classify(err))
	}
	s.log.Info("listening for order changes", "channel", NotifyChannel, "instance_id", s.instanceID)
	ready()

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("wait for notification: %w", err)
		}
		if err := s.HandleNotification(ctx, n.Payload); err != nil {
			s.log.Warn("dropping order notification", "payload", n.Payload, "error", err)
		}
	}
}

// HandleNotification re-reads the order named by a NOTIFY payload and
// publishes it locally. Payloads this instance sent itself are ignored;
// their events were already published after commit.
func (s *OrderStore) HandleNotification(ctx context.Context, payload string) error {
	var n Notification
	if err := json.Unmarshal([]byte(payload), &n); err != nil {
		return fmt.Errorf("decode notification: %w", err)
	}
	if n.Origin == s.instanceID {
		return nil
	}

	o, err := s.Get(ctx, n.RestaurantID, n.OrderID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	kind := n.Kind
	if kind == "" {
		kind = kindFor(o)
	}
	s.broker.Publish(feed.Event{Kind: kind, Order: o, Origin: n.Origin})
	return nil
}
