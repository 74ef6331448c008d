package feed

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nasser0p/digi-ai/internal/database"
	"github.com/nasser0p/digi-ai/internal/enum"
)

func TestProjection_IgnoresStaleVersions(t *testing.T) {
	id := uuid.New()
	snap := database.Order{ID: id, Status: enum.OrderStatusInProgress, Version: 3}
	p := NewProjection([]database.Order{snap})

	stale := Event{Kind: KindUpdated, Order: database.Order{ID: id, Status: enum.OrderStatusNew, Version: 2}}
	if p.Apply(stale) {
		t.Error("stale event should not change projection")
	}
	if got := p.Open()[0].Status; got != enum.OrderStatusInProgress {
		t.Errorf("status = %s, want IN_PROGRESS", got)
	}

	fresh := Event{Kind: KindUpdated, Order: database.Order{ID: id, Status: enum.OrderStatusReady, Version: 4}}
	if !p.Apply(fresh) {
		t.Error("fresh event should change projection")
	}
	if got := p.Open()[0].Status; got != enum.OrderStatusReady {
		t.Errorf("status = %s, want READY", got)
	}
}

func TestProjection_CompletionEvicts(t *testing.T) {
	id := uuid.New()
	p := NewProjection([]database.Order{{ID: id, Status: enum.OrderStatusReady, Version: 1}})

	done := Event{Kind: KindCompleted, Order: database.Order{ID: id, Status: enum.OrderStatusCompleted, Version: 2}}
	if !p.Apply(done) {
		t.Fatal("completion should change projection")
	}
	if p.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", p.Len())
	}

	// A delayed update from before completion must not resurrect the order.
	late := Event{Kind: KindUpdated, Order: database.Order{ID: id, Status: enum.OrderStatusReady, Version: 2}}
	if p.Apply(late) {
		t.Error("late event resurrected a completed order")
	}
}

func TestProjection_SnapshotSkipsCompleted(t *testing.T) {
	p := NewProjection([]database.Order{
		{ID: uuid.New(), Status: enum.OrderStatusCompleted, Version: 5},
		{ID: uuid.New(), Status: enum.OrderStatusNew, Version: 1},
	})
	if p.Len() != 1 {
		t.Errorf("Len() = %d, want 1", p.Len())
	}
}

func TestProjection_OpenSortedByCreation(t *testing.T) {
	now := time.Now()
	older := database.Order{ID: uuid.New(), Status: enum.OrderStatusNew, Version: 1, CreatedAt: now.Add(-time.Minute)}
	newer := database.Order{ID: uuid.New(), Status: enum.OrderStatusNew, Version: 1, CreatedAt: now}
	p := NewProjection([]database.Order{newer, older})

	open := p.Open()
	if open[0].ID != older.ID || open[1].ID != newer.ID {
		t.Error("orders not sorted by created_at")
	}
}

func TestProjection_TombstonesAreBounded(t *testing.T) {
	p := NewProjection(nil)
	first := uuid.New()
	p.Apply(Event{Kind: KindCompleted, Order: database.Order{ID: first, Status: enum.OrderStatusCompleted, Version: 2}})
	for i := 0; i < MaxTombstones+10; i++ {
		p.Apply(Event{Kind: KindCompleted, Order: database.Order{ID: uuid.New(), Status: enum.OrderStatusCompleted, Version: 2}})
	}
	if got := p.Tombstones(); got != MaxTombstones {
		t.Fatalf("tombstones = %d, want %d", got, MaxTombstones)
	}

	last := uuid.New()
	p.Apply(Event{Kind: KindCompleted, Order: database.Order{ID: last, Status: enum.OrderStatusCompleted, Version: 5}})
	stale := Event{Kind: KindUpdated, Order: database.Order{ID: last, Status: enum.OrderStatusReady, Version: 4}}
	if p.Apply(stale) || p.Len() != 0 {
		t.Error("stale event for a recently completed order resurrected it")
	}
}
