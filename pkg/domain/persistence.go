package domain

import (
	"context"
	"errors"
)

// DefaultVisibleWeeks is the board window used when a payload does not set one.
const DefaultVisibleWeeks = 4

// Payload is the hydration input for a board and the shape persisted by
// snapshot stores.
type Payload struct {
	Orders       []Order         `json:"orders"`
	Runs         []Run           `json:"runs"`
	Cells        map[string]Cell `json:"cells"`
	Trucks       []string        `json:"trucks"`
	VisibleWeeks *int            `json:"visibleWeeks,omitempty"`
	BlockedDates []string        `json:"blockedDates,omitempty"`
}

// ClonePayload deep-copies every slice and map in p.
func ClonePayload(p Payload) Payload {
	out := Payload{
		Orders:       make([]Order, len(p.Orders)),
		Runs:         make([]Run, 0, len(p.Runs)),
		Cells:        make(map[string]Cell, len(p.Cells)),
		Trucks:       cloneIDs(p.Trucks),
		BlockedDates: cloneIDs(p.BlockedDates),
	}
	copy(out.Orders, p.Orders)
	for _, r := range p.Runs {
		out.Runs = append(out.Runs, CloneRun(r))
	}
	for id, c := range p.Cells {
		out.Cells[id] = CloneCell(c)
	}
	if p.VisibleWeeks != nil {
		w := *p.VisibleWeeks
		out.VisibleWeeks = &w
	}
	return out
}

// ErrNoSnapshot is returned by SnapshotStore.Load when nothing has been saved yet.
var ErrNoSnapshot = errors.New("no board snapshot stored")

// SnapshotStore persists whole-board payloads. Implementations replace the
// stored snapshot atomically on Save.
type SnapshotStore interface {
	Load(ctx context.Context) (Payload, error)
	Save(ctx context.Context, payload Payload) error
	Close() error
}
