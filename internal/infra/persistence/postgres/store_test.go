package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	"schedboard/internal/infra/persistence/postgres/testutil"
	"schedboard/pkg/domain"
)

func openStub(t *testing.T) (*Store, *testutil.StubConn) {
	t.Helper()
	db, conn := testutil.NewStubDB()
	restore := OverrideSQLOpen(func(driverName, dsn string) (*sql.DB, error) {
		if driverName != defaultDriver {
			t.Fatalf("unexpected driver %q", driverName)
		}
		if dsn != defaultDSN {
			t.Fatalf("unexpected dsn %q", dsn)
		}
		return db, nil
	})
	t.Cleanup(restore)
	store, err := NewStore(context.Background(), "")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return store, conn
}

func TestNewStoreEnsuresStateTable(t *testing.T) {
	_, conn := openStub(t)
	var sawDDL bool
	for _, stmt := range conn.Execs {
		if strings.Contains(stmt, "CREATE TABLE IF NOT EXISTS state") && strings.Contains(stmt, "JSONB") {
			sawDDL = true
		}
	}
	if !sawDDL {
		t.Fatalf("expected state DDL, got %v", conn.Execs)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, conn := openStub(t)

	if _, err := store.Load(ctx); !errors.Is(err, domain.ErrNoSnapshot) {
		t.Fatalf("expected ErrNoSnapshot, got %v", err)
	}
	payload := domain.Payload{
		Orders: []domain.Order{{ID: "o1", OrderNumber: "SO-1", Date: "2025-01-06"}},
		Runs:   []domain.Run{{ID: "r1", Name: "Run 1", OrderIDs: []string{"o1"}}},
		Cells:  map[string]domain.Cell{"TR-01|2025-01-06": {RunIDs: []string{"r1"}, LooseOrderIDs: []string{}}},
		Trucks: []string{"TR-01"},
	}
	for range 2 {
		if err := store.Save(ctx, payload); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}
	if got := len(conn.Tables["state"]); got != 5 {
		t.Fatalf("expected 5 bucket rows, got %d", got)
	}
	if conn.Commits != 2 {
		t.Fatalf("expected 2 commits, got %d", conn.Commits)
	}

	loaded, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded.Orders) != 1 || loaded.Runs[0].OrderIDs[0] != "o1" || loaded.Trucks[0] != "TR-01" {
		t.Fatalf("unexpected payload %+v", loaded)
	}
}

func TestSaveRollsBackOnFailure(t *testing.T) {
	ctx := context.Background()
	store, conn := openStub(t)

	conn.FailTables = map[string]bool{"state": true}
	if err := store.Save(ctx, domain.Payload{}); err == nil || !strings.Contains(err.Error(), "upsert orders") {
		t.Fatalf("expected upsert error, got %v", err)
	}
	if conn.Rollbacks != 1 || len(conn.Tables["state"]) != 0 {
		t.Fatalf("expected rollback with no rows, got %d rollbacks and %v", conn.Rollbacks, conn.Tables["state"])
	}

	conn.FailTables = nil
	conn.FailCommit = true
	if err := store.Save(ctx, domain.Payload{}); err == nil || !strings.Contains(err.Error(), "commit") {
		t.Fatalf("expected commit error, got %v", err)
	}
	if len(conn.Tables["state"]) != 0 {
		t.Fatalf("failed commit persisted rows")
	}

	conn.FailCommit = false
	conn.FailBegin = true
	if err := store.Save(ctx, domain.Payload{}); err == nil || !strings.Contains(err.Error(), "begin tx") {
		t.Fatalf("expected begin error, got %v", err)
	}
}

func TestLoadSurfacesQueryErrors(t *testing.T) {
	ctx := context.Background()
	store, conn := openStub(t)

	conn.FailTables = map[string]bool{"state": true}
	if _, err := store.Load(ctx); err == nil || !strings.Contains(err.Error(), "select state") {
		t.Fatalf("expected select error, got %v", err)
	}
	conn.FailTables = nil
	conn.Tables["state"] = []map[string]any{{"bucket": "runs", "payload": []byte("{")}}
	if _, err := store.Load(ctx); err == nil || !strings.Contains(err.Error(), "decode runs") {
		t.Fatalf("expected decode error, got %v", err)
	}
}

func TestNewStoreFailures(t *testing.T) {
	restore := OverrideSQLOpen(func(string, string) (*sql.DB, error) { return nil, errors.New("boom") })
	if _, err := NewStore(context.Background(), "postgres://x"); err == nil || !strings.Contains(err.Error(), "open postgres") {
		t.Fatalf("expected open error, got %v", err)
	}
	restore()

	db, conn := testutil.NewStubDB()
	conn.FailPing = true
	restore = OverrideSQLOpen(func(string, string) (*sql.DB, error) { return db, nil })
	defer restore()
	if _, err := NewStore(context.Background(), "postgres://x"); err == nil || !strings.Contains(err.Error(), "ping postgres") {
		t.Fatalf("expected ping error, got %v", err)
	}
}
