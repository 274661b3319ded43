package cart

import (
	"github.com/fjod/go_storefront/internal/pricing"
)

// SyncState tags a line with how far its local mutations have propagated
// to the remote cart service.
type SyncState string

const (
	SyncConfirmed   SyncState = "CONFIRMED"
	SyncPending     SyncState = "PENDING"
	SyncRollingBack SyncState = "ROLLING_BACK"
)

type Line struct {
	ProductID int64
	Name      string
	UnitPrice pricing.Cents
	Quantity  int
	ImageRef  string
	State     SyncState
}

func (l Line) Total() pricing.Cents {
	return pricing.LineTotal(l.UnitPrice, l.Quantity)
}

type Op string

const (
	OpAdd    Op = "ADD"
	OpSet    Op = "SET"
	OpRemove Op = "REMOVE"
	OpClear  Op = "CLEAR"

	// Reconciliation ops, applied by the sync layer. Subscribers that
	// mirror mutations to the remote service must ignore these.
	OpConfirm Op = "CONFIRM"
	OpRevert  Op = "REVERT"
)

// Event describes a single store change. Seq is monotonic per store and
// reflects the order mutations were applied locally.
type Event struct {
	Seq       uint64
	Op        Op
	ProductID int64
	// Quantity is the resulting local quantity (0 for remove/clear).
	Quantity int
	// Delta is the quantity added by an OpAdd; zero for other ops.
	Delta int
	// Line is a copy of the line after the change, zero for remove/clear.
	Line Line
}
