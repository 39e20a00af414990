// Package domain defines the scheduling-board entities, value types, and
// rule evaluation primitives used by schedboard.
package domain

// OrderStatus is the fulfilment state of an order.
type OrderStatus string

// Order lifecycle states. Shipped and invoiced orders are frozen on the board.
const (
	StatusUnscheduled OrderStatus = "unscheduled"
	StatusPicked      OrderStatus = "picked"
	StatusPacked      OrderStatus = "packed"
	StatusShipped     OrderStatus = "shipped"
	StatusInvoiced    OrderStatus = "invoiced"
)

// Frozen reports whether orders in this status can no longer be moved.
func (s OrderStatus) Frozen() bool {
	return s == StatusShipped || s == StatusInvoiced
}

// OrderType distinguishes outbound sales orders from inbound purchase orders.
type OrderType string

const (
	// OrderTypeSales is an outbound sales order scheduled onto trucks.
	OrderTypeSales OrderType = "SO"
	// OrderTypePurchase is an inbound purchase order; it lives only in the inbound zone.
	OrderTypePurchase OrderType = "PO"
)

var statusColors = map[OrderStatus]string{
	StatusUnscheduled: "#9ca3af",
	StatusPicked:      "#facc15",
	StatusPacked:      "#4ade80",
	StatusShipped:     "#60a5fa",
	StatusInvoiced:    "#a78bfa",
}

// StatusColor returns the display colour for a status. Unknown statuses fall
// back to the unscheduled grey.
func StatusColor(status OrderStatus) string {
	if c, ok := statusColors[status]; ok {
		return c
	}
	return statusColors[StatusUnscheduled]
}

// Order is a schedulable unit of work.
type Order struct {
	ID           string      `json:"id"`
	OrderNumber  string      `json:"orderNumber"`
	CustomerCode string      `json:"customerCode"`
	PalletCount  int         `json:"palletCount"`
	Status       OrderStatus `json:"status"`
	Color        string      `json:"color,omitempty"`
	Notes        string      `json:"notes,omitempty"`
	Type         OrderType   `json:"type"`
	IsReadOnly   bool        `json:"isReadOnly"`
	Date         string      `json:"date,omitempty"`
}

// Run is an ordered group of orders sharing one truck/date slot.
type Run struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	OrderIDs []string `json:"orderIds"`
}

// Cell holds the runs and loose orders placed on one zone for one date.
type Cell struct {
	RunIDs        []string `json:"runIds"`
	LooseOrderIDs []string `json:"looseOrderIds"`
}

// CloneRun returns a deep copy of r.
func CloneRun(r Run) Run {
	cp := r
	cp.OrderIDs = cloneIDs(r.OrderIDs)
	return cp
}

// CloneCell returns a deep copy of c with non-nil id slices.
func CloneCell(c Cell) Cell {
	return Cell{RunIDs: cloneIDs(c.RunIDs), LooseOrderIDs: cloneIDs(c.LooseOrderIDs)}
}

func cloneIDs(ids []string) []string {
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}
