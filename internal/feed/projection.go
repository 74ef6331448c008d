package feed

import (
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/nasser0p/digi-ai/internal/database"
	"github.com/nasser0p/digi-ai/internal/enum"
)

// MaxTombstones bounds how many completed order ids a projection
// remembers to reject late, stale events for them.
const MaxTombstones = 1024

// Projection is a consumer-local copy of the open order set, kept current
// by applying feed events on top of an initial snapshot. Events carrying a
// version older than the one held are ignored, so a snapshot taken after
// subscribing converges regardless of interleaving.
type Projection struct {
	mu     sync.RWMutex
	orders map[uuid.UUID]database.Order
	gone   map[uuid.UUID]int32
	// goneOrder holds gone's keys oldest first.
	goneOrder []uuid.UUID
}

func NewProjection(snapshot []database.Order) *Projection {
	p := &Projection{
		orders: make(map[uuid.UUID]database.Order, len(snapshot)),
		gone:   make(map[uuid.UUID]int32),
	}
	for _, o := range snapshot {
		if enum.IsOpenOrderStatus(o.Status) {
			p.orders[o.ID] = o
		}
	}
	return p
}

// Apply folds e into the projection and reports whether anything changed.
func (p *Projection) Apply(e Event) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	o := e.Order
	if v, ok := p.gone[o.ID]; ok && o.Version <= v {
		return false
	}
	if cur, ok := p.orders[o.ID]; ok && o.Version <= cur.Version {
		return false
	}
	if !enum.IsOpenOrderStatus(o.Status) {
		p.bury(o.ID, o.Version)
		if _, ok := p.orders[o.ID]; ok {
			delete(p.orders, o.ID)
			return true
		}
		return false
	}
	p.orders[o.ID] = o
	return true
}

func (p *Projection) bury(id uuid.UUID, version int32) {
	if _, ok := p.gone[id]; !ok {
		if len(p.goneOrder) >= MaxTombstones {
			delete(p.gone, p.goneOrder[0])
			p.goneOrder = p.goneOrder[1:]
		}
		p.goneOrder = append(p.goneOrder, id)
	}
	p.gone[id] = version
}

// Tombstones returns how many completed order ids are remembered.
func (p *Projection) Tombstones() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.gone)
}

// Open returns the open orders ordered by creation time.
func (p *Projection) Open() []database.Order {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]database.Order, 0, len(p.orders))
	for _, o := range p.orders {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (p *Projection) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.orders)
}
