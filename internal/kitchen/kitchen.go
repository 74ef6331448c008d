// Package kitchen derives the kitchen display from the open order set:
// per-dish work queues, per-order tickets, prep timers, and the per-line
// completion rules that drive order status.
package kitchen

import (
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nasser0p/digi-ai/internal/cart"
	"github.com/nasser0p/digi-ai/internal/database"
	"github.com/nasser0p/digi-ai/internal/enum"
)

var (
	ErrLineNotFound = errors.New("order line not found")
	ErrOrderClosed  = errors.New("order is completed")
)

// StationFunc resolves the station a line is prepared at.
type StationFunc func(it database.OrderItem) string

// SnapshotStation uses the station captured on the line when it was added.
func SnapshotStation(it database.OrderItem) string {
	return it.Station
}

// Options narrows and timestamps a kitchen view.
type Options struct {
	Station   string
	StationOf StationFunc
	Now       time.Time
}

func (o Options) stationOf(it database.OrderItem) string {
	if o.StationOf != nil {
		return o.StationOf(it)
	}
	return it.Station
}

func (o Options) includes(it database.OrderItem) bool {
	if o.Station == "" {
		return true
	}
	return strings.EqualFold(o.stationOf(it), o.Station)
}

// Occurrence is one outstanding line of one order inside a group.
type Occurrence struct {
	OrderID           uuid.UUID `json:"order_id"`
	LineIndex         int       `json:"line_index"`
	PlateNumber       string    `json:"plate_number"`
	OrderType         string    `json:"order_type"`
	Since             time.Time `json:"since"`
	ElapsedSeconds    int64     `json:"elapsed_seconds"`
	TargetPrepMinutes int32     `json:"target_prep_minutes,omitempty"`
	Notes             string    `json:"notes,omitempty"`
	Quantity          int32     `json:"quantity"`
	Timer             string    `json:"timer"`
}

// Group is the per-dish work queue: every outstanding line sharing a menu
// item and modifier selection, across orders.
type Group struct {
	Key         string       `json:"key"`
	MenuItemID  uuid.UUID    `json:"menu_item_id"`
	Name        string       `json:"name"`
	Modifiers   []string     `json:"modifiers"`
	Station     string       `json:"station,omitempty"`
	Quantity    int32        `json:"quantity"`
	Timer       string       `json:"timer"`
	Occurrences []Occurrence `json:"occurrences"`
}

// TicketLine is one line on a per-order ticket.
type TicketLine struct {
	LineIndex   int       `json:"line_index"`
	Key         string    `json:"key"`
	Name        string    `json:"name"`
	Modifiers   []string  `json:"modifiers"`
	Notes       string    `json:"notes,omitempty"`
	Quantity    int32     `json:"quantity"`
	Station     string    `json:"station,omitempty"`
	IsCompleted bool      `json:"is_completed"`
	Since       time.Time `json:"since"`
	Timer       string    `json:"timer"`
}

// Ticket is the per-order view.
type Ticket struct {
	OrderID     uuid.UUID    `json:"order_id"`
	PlateNumber string       `json:"plate_number"`
	OrderType   string       `json:"order_type"`
	Status      string       `json:"status"`
	CreatedAt   time.Time    `json:"created_at"`
	Timer       string       `json:"timer"`
	Lines       []TicketLine `json:"lines"`
}

// GroupKey is the aggregation key of a line (menu item + modifiers).
func GroupKey(it database.OrderItem) string {
	return cart.Key(it.MenuItemID, it.SelectedModifiers)
}

// Visible reports whether an order belongs on the kitchen display.
func Visible(o database.Order) bool {
	return o.Status == enum.OrderStatusNew || o.Status == enum.OrderStatusInProgress
}

func since(o database.Order, it database.OrderItem) time.Time {
	if it.AddedAt.IsZero() {
		return o.CreatedAt
	}
	return it.AddedAt
}

// TimerColor grades elapsed time against a prep target: GREEN below 50 %,
// AMBER from 50 % to below 80 %, RED from 80 %. No target is always GREEN.
func TimerColor(elapsed time.Duration, targetMinutes int32) string {
	if targetMinutes <= 0 {
		return enum.TimerGreen
	}
	ratio := elapsed.Seconds() / (time.Duration(targetMinutes) * time.Minute).Seconds()
	switch {
	case ratio >= 0.8:
		return enum.TimerRed
	case ratio >= 0.5:
		return enum.TimerAmber
	}
	return enum.TimerGreen
}

var timerRank = map[string]int{enum.TimerGreen: 0, enum.TimerAmber: 1, enum.TimerRed: 2}

func worse(a, b string) string {
	if timerRank[b] > timerRank[a] {
		return b
	}
	return a
}

// Aggregate groups the outstanding lines of visible orders by dish. Groups
// are ordered by their oldest occurrence.
func Aggregate(orders []database.Order, opts Options) []Group {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	groups := make(map[string]*Group)
	oldest := make(map[string]time.Time)
	for _, o := range orders {
		if !Visible(o) {
			continue
		}
		for i, it := range o.Items {
			if it.IsCompleted || !opts.includes(it) {
				continue
			}
			key := GroupKey(it)
			g, ok := groups[key]
			if !ok {
				g = &Group{
					Key:        key,
					MenuItemID: it.MenuItemID,
					Name:       it.Name,
					Modifiers:  cart.ModifierNames(it.SelectedModifiers),
					Station:    opts.stationOf(it),
					Timer:      enum.TimerGreen,
				}
				groups[key] = g
			}
			start := since(o, it)
			elapsed := now.Sub(start)
			timer := TimerColor(elapsed, it.TargetPrepMinutes)
			g.Occurrences = append(g.Occurrences, Occurrence{
				OrderID:           o.ID,
				LineIndex:         i,
				PlateNumber:       o.PlateNumber,
				OrderType:         o.OrderType,
				Since:             start,
				ElapsedSeconds:    int64(elapsed / time.Second),
				TargetPrepMinutes: it.TargetPrepMinutes,
				Notes:             it.Notes,
				Quantity:          it.Quantity,
				Timer:             timer,
			})
			g.Quantity += it.Quantity
			g.Timer = worse(g.Timer, timer)
			if t, ok := oldest[key]; !ok || start.Before(t) {
				oldest[key] = start
			}
		}
	}

	out := make([]Group, 0, len(groups))
	for _, g := range groups {
		sort.SliceStable(g.Occurrences, func(i, j int) bool {
			return g.Occurrences[i].Since.Before(g.Occurrences[j].Since)
		})
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool {
		ti, tj := oldest[out[i].Key], oldest[out[j].Key]
		if ti.Equal(tj) {
			return out[i].Key < out[j].Key
		}
		return ti.Before(tj)
	})
	return out
}

// Tickets lists each visible order with its lines for the station. Orders
// with nothing outstanding at the station are left out.
func Tickets(orders []database.Order, opts Options) []Ticket {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	out := []Ticket{}
	for _, o := range orders {
		if !Visible(o) {
			continue
		}
		t := Ticket{
			OrderID:     o.ID,
			PlateNumber: o.PlateNumber,
			OrderType:   o.OrderType,
			Status:      o.Status,
			CreatedAt:   o.CreatedAt,
			Timer:       enum.TimerGreen,
		}
		outstanding := false
		for i, it := range o.Items {
			if !opts.includes(it) {
				continue
			}
			start := since(o, it)
			timer := TimerColor(now.Sub(start), it.TargetPrepMinutes)
			t.Lines = append(t.Lines, TicketLine{
				LineIndex:   i,
				Key:         GroupKey(it),
				Name:        it.Name,
				Modifiers:   cart.ModifierNames(it.SelectedModifiers),
				Notes:       it.Notes,
				Quantity:    it.Quantity,
				Station:     opts.stationOf(it),
				IsCompleted: it.IsCompleted,
				Since:       start,
				Timer:       timer,
			})
			if !it.IsCompleted {
				outstanding = true
				t.Timer = worse(t.Timer, timer)
			}
		}
		if outstanding {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// RecomputeStatus applies the completion rule: READY once every line is
// done, otherwise IN_PROGRESS if the order was NEW, otherwise unchanged.
func RecomputeStatus(o *database.Order) {
	if o.Status == enum.OrderStatusCompleted {
		return
	}
	all := len(o.Items) > 0
	for _, it := range o.Items {
		if !it.IsCompleted {
			all = false
			break
		}
	}
	switch {
	case all:
		o.Status = enum.OrderStatusReady
	case o.Status == enum.OrderStatusNew:
		o.Status = enum.OrderStatusInProgress
	}
}

// CompleteItem marks one line done and recomputes the order status. It
// reports false when the line was already complete.
func CompleteItem(o *database.Order, lineIndex int) (bool, error) {
	if o.Status == enum.OrderStatusCompleted {
		return false, ErrOrderClosed
	}
	if lineIndex < 0 || lineIndex >= len(o.Items) {
		return false, ErrLineNotFound
	}
	if o.Items[lineIndex].IsCompleted {
		return false, nil
	}
	o.Items[lineIndex].IsCompleted = true
	RecomputeStatus(o)
	return true, nil
}

// CompleteGroup marks every outstanding line of o with the given group key
// (and station, when opts names one) done. It returns how many lines it
// completed.
func CompleteGroup(o *database.Order, key string, opts Options) (int, error) {
	if o.Status == enum.OrderStatusCompleted {
		return 0, ErrOrderClosed
	}
	n := 0
	for i := range o.Items {
		it := o.Items[i]
		if it.IsCompleted || GroupKey(it) != key || !opts.includes(it) {
			continue
		}
		o.Items[i].IsCompleted = true
		n++
	}
	if n > 0 {
		RecomputeStatus(o)
	}
	return n, nil
}
