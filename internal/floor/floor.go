// Package floor derives the effective status of dining-room tables from
// their manual override and the open dine-in orders seated at them.
package floor

import (
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/nasser0p/digi-ai/internal/database"
	"github.com/nasser0p/digi-ai/internal/enum"
)

type Status struct {
	TableID      uuid.UUID   `json:"table_id"`
	Label        string      `json:"label"`
	Status       string      `json:"status"`
	ManualStatus string      `json:"manual_status,omitempty"`
	OpenOrderIDs []uuid.UUID `json:"open_order_ids"`
	Geometry     []byte      `json:"geometry,omitempty"`
}

// Matches compares a table label and an order plate number the way staff
// type them: surrounding space and case are ignored.
func Matches(label, plate string) bool {
	return strings.EqualFold(strings.TrimSpace(label), strings.TrimSpace(plate))
}

// OpenOrdersFor returns the open dine-in orders seated at label.
func OpenOrdersFor(label string, orders []database.Order) []database.Order {
	out := []database.Order{}
	for _, o := range orders {
		if o.OrderType != enum.OrderTypeDineIn || !enum.IsOpenOrderStatus(o.Status) {
			continue
		}
		if Matches(label, o.PlateNumber) {
			out = append(out, o)
		}
	}
	return out
}

// Derive resolves one table's status. Priority, highest first:
// NEEDS_CLEANING, ATTENTION (an order is READY), ORDERED, SEATED, AVAILABLE.
func Derive(manual string, open []database.Order) string {
	if manual == enum.TableManualNeedsCleaning {
		return enum.TableStatusNeedsCleaning
	}
	for _, o := range open {
		if o.Status == enum.OrderStatusReady {
			return enum.TableStatusAttention
		}
	}
	if len(open) > 0 {
		return enum.TableStatusOrdered
	}
	if manual == enum.TableManualSeated {
		return enum.TableStatusSeated
	}
	return enum.TableStatusAvailable
}

// StatusOf builds the status record for one table.
func StatusOf(t database.FloorTable, orders []database.Order) Status {
	open := OpenOrdersFor(t.Label, orders)
	ids := make([]uuid.UUID, 0, len(open))
	for _, o := range open {
		ids = append(ids, o.ID)
	}
	manual := ""
	if t.ManualStatus.Valid {
		manual = t.ManualStatus.String
	}
	return Status{
		TableID:      t.ID,
		Label:        t.Label,
		Status:       Derive(manual, open),
		ManualStatus: manual,
		OpenOrderIDs: ids,
		Geometry:     t.Geometry,
	}
}

// DeriveAll resolves every table, ordered by label.
func DeriveAll(tables []database.FloorTable, orders []database.Order) []Status {
	out := make([]Status, 0, len(tables))
	for _, t := range tables {
		out = append(out, StatusOf(t, orders))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out
}
