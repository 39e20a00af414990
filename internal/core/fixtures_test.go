package core

import (
	"fmt"
	"slices"
	"testing"

	"schedboard/pkg/domain"
)

const (
	cellMon = "TR-01|2025-01-06"
	cellTue = "TR-02|2025-01-07"
	cellWed = "TR-01|2025-01-08"
	inbound = "inbound|2025-01-06"
)

// fixturePayload: r1 [o1 o2] and r2 [o3] on TR-01 Monday, loose o4 on TR-02
// Tuesday, purchase order p1 loose in inbound Monday, shipped o5 in r3 on
// Tuesday, unscheduled o6.
func fixturePayload() Payload {
	weeks := 3
	return Payload{
		Orders: []Order{
			{ID: "o1", OrderNumber: "SO-1", Status: domain.StatusPicked, Type: domain.OrderTypeSales, Date: "2025-01-06"},
			{ID: "o2", OrderNumber: "SO-2", Status: domain.StatusPacked, Type: domain.OrderTypeSales, Date: "2025-01-06"},
			{ID: "o3", OrderNumber: "SO-3", Status: domain.StatusPicked, Type: domain.OrderTypeSales, Date: "2025-01-06"},
			{ID: "o4", OrderNumber: "SO-4", Status: domain.StatusUnscheduled, Type: domain.OrderTypeSales, Date: "2025-01-07"},
			{ID: "o5", OrderNumber: "SO-5", Status: domain.StatusShipped, Type: domain.OrderTypeSales, Date: "2025-01-07"},
			{ID: "o6", OrderNumber: "SO-6", Status: domain.StatusUnscheduled, Type: domain.OrderTypeSales},
			{ID: "p1", OrderNumber: "PO-1", Status: domain.StatusUnscheduled, Type: domain.OrderTypePurchase, Date: "2025-01-06"},
		},
		Runs: []Run{
			{ID: "r1", Name: "Run 1", OrderIDs: []string{"o1", "o2"}},
			{ID: "r2", Name: "Run 2", OrderIDs: []string{"o3"}},
			{ID: "r3", Name: "Run 1", OrderIDs: []string{"o5"}},
		},
		Cells: map[string]Cell{
			cellMon: {RunIDs: []string{"r1", "r2"}, LooseOrderIDs: []string{}},
			cellTue: {RunIDs: []string{"r3"}, LooseOrderIDs: []string{"o4"}},
			inbound: {RunIDs: []string{}, LooseOrderIDs: []string{"p1"}},
		},
		Trucks:       []string{"TR-01", "TR-02"},
		VisibleWeeks: &weeks,
	}
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("new-%d", n)
	}
}

func newFixtureBoard(t *testing.T, opts ...BoardOption) *Board {
	t.Helper()
	b := NewBoard(append([]BoardOption{WithIDGenerator(sequentialIDs())}, opts...)...)
	b.Hydrate(fixturePayload())
	mustConsistent(t, b)
	return b
}

func mustConsistent(t *testing.T, b *Board) {
	t.Helper()
	if err := b.CheckConsistency(); err != nil {
		t.Fatalf("board inconsistent: %v", err)
	}
}

func mustSucceed(t *testing.T, res MoveResult) {
	t.Helper()
	if !res.Success {
		t.Fatalf("expected success, got %s", res.Reason)
	}
}

func mustReject(t *testing.T, res MoveResult, want Reason) {
	t.Helper()
	if res.Success || res.Reason != want {
		t.Fatalf("expected rejection %s, got %+v", want, res)
	}
}

func runOrderIDs(t *testing.T, b *Board, runID string) []string {
	t.Helper()
	r, ok := b.SelectRun(runID)
	if !ok {
		t.Fatalf("run %s missing", runID)
	}
	return r.OrderIDs
}

func orderDate(t *testing.T, b *Board, orderID string) string {
	t.Helper()
	o, ok := b.SelectOrder(orderID)
	if !ok {
		t.Fatalf("order %s missing", orderID)
	}
	return o.Date
}

func assertIDs(t *testing.T, what string, got []string, want ...string) {
	t.Helper()
	if want == nil {
		want = []string{}
	}
	if !slices.Equal(got, want) {
		t.Fatalf("%s = %v, want %v", what, got, want)
	}
}
