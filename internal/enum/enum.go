package enum

// ── Group A: State machines (CHECK constrained in DB) ──

const (
	OrderStatusNew        = "NEW"
	OrderStatusInProgress = "IN_PROGRESS"
	OrderStatusReady      = "READY"
	OrderStatusCompleted  = "COMPLETED"
)

// Manual table overrides persisted on floor_tables.manual_status.
const (
	TableManualAvailable     = "AVAILABLE"
	TableManualSeated        = "SEATED"
	TableManualNeedsCleaning = "NEEDS_CLEANING"
)

// Derived (effective) table status. Never stored.
const (
	TableStatusAvailable     = "AVAILABLE"
	TableStatusSeated        = "SEATED"
	TableStatusOrdered       = "ORDERED"
	TableStatusAttention     = "ATTENTION"
	TableStatusNeedsCleaning = "NEEDS_CLEANING"
)

// ── Group C: Borderline (CHECK constrained in DB) ──

const (
	UserRoleSuperAdmin = "SUPER_ADMIN"
	UserRoleOwner      = "OWNER"
	UserRoleAdmin      = "ADMIN"
	UserRoleManager    = "MANAGER"
	UserRoleFOH        = "FOH"
	UserRoleKitchen    = "KITCHEN"
)

const (
	OrderTypeDineIn   = "DINE_IN"
	OrderTypeTakeaway = "TAKEAWAY"
)

const (
	PaymentMethodCash  = "CASH"
	PaymentMethodCard  = "CARD"
	PaymentMethodOther = "OTHER"
)

// ── Group B: Configurable labels (no DB constraint) ──

const (
	DiscountTypePercentage = "PERCENTAGE"
	DiscountTypeFixed      = "FIXED_AMOUNT"
)

const (
	TimerGreen = "GREEN"
	TimerAmber = "AMBER"
	TimerRed   = "RED"
)

// Item flags set when a line cannot be resolved against the live menu.
const (
	ItemFlagMenuItemMissing = "menu_item_missing"
)

// IsOpenOrderStatus reports whether an order in this status still belongs
// to the live (non-terminal) order set.
func IsOpenOrderStatus(s string) bool {
	switch s {
	case OrderStatusNew, OrderStatusInProgress, OrderStatusReady:
		return true
	}
	return false
}
