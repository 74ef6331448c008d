package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nasser0p/digi-ai/internal/database"
	"github.com/nasser0p/digi-ai/internal/feed"
)

// SubscribeFunc returns a snapshot of the open orders together with a live
// subscription taken before the snapshot was read.
type SubscribeFunc func(ctx context.Context) ([]database.Order, *feed.Subscription, error)

// ViewFunc derives the payload pushed to a terminal from the open orders.
type ViewFunc func(ctx context.Context, open []database.Order) (any, error)

type view struct {
	typ       string
	subscribe SubscribeFunc
	build     ViewFunc
	pokes     <-chan struct{}
	refresh   <-chan time.Time
	send      func([]byte) bool
	log       *slog.Logger
}

// run keeps a local projection of the open orders and pushes a freshly
// derived view after every change, poke or refresh tick. It returns when
// ctx is done or send reports the terminal gone.
func (v *view) run(ctx context.Context) error {
	for {
		snapshot, sub, err := v.subscribe(ctx)
		if err != nil {
			return fmt.Errorf("subscribe: %w", err)
		}
		proj := feed.NewProjection(snapshot)
		if !v.push(ctx, proj) {
			return nil
		}

		lagged, err := v.follow(ctx, sub, proj)
		if err != nil || !lagged {
			return err
		}
		v.log.Warn("live view lagged, reloading snapshot", "view", v.typ)
	}
}

func (v *view) follow(ctx context.Context, sub *feed.Subscription, proj *feed.Projection) (bool, error) {
	for {
		select {
		case <-ctx.Done():
			return false, nil
		case e, ok := <-sub.Events():
			if !ok {
				return errors.Is(sub.Err(), feed.ErrLagged), nil
			}
			if !proj.Apply(e) {
				continue
			}
		case <-v.pokes:
		case <-v.refresh:
		}
		if !v.push(ctx, proj) {
			return false, nil
		}
	}
}

func (v *view) push(ctx context.Context, proj *feed.Projection) bool {
	payload, err := v.build(ctx, proj.Open())
	if err != nil {
		v.log.Error("build live view", "view", v.typ, "error", err)
		return ctx.Err() == nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		v.log.Error("marshal live view", "view", v.typ, "error", err)
		return true
	}
	msg, err := json.Marshal(Event{Type: v.typ, Payload: raw})
	if err != nil {
		return true
	}
	return v.send(msg)
}
