// Package persistence selects a snapshot store backend.
package persistence

import (
	"context"
	"fmt"
	"os"

	"schedboard/internal/infra/persistence/memory"
	"schedboard/internal/infra/persistence/postgres"
	"schedboard/internal/infra/persistence/sqlite"
	"schedboard/pkg/domain"
)

// Driver identifies a concrete snapshot store implementation.
type Driver string

const (
	DriverMemory   Driver = "memory"   // in-memory only (tests / ephemeral)
	DriverSQLite   Driver = "sqlite"   // embedded sqlite file
	DriverPostgres Driver = "postgres" // PostgreSQL server
)

// Environment variables consulted by FromEnv.
const (
	EnvDriver      = "SCHEDBOARD_STORAGE_DRIVER"
	EnvSQLitePath  = "SCHEDBOARD_SQLITE_PATH"
	EnvPostgresDSN = "SCHEDBOARD_POSTGRES_DSN"
)

// Options configures Open.
type Options struct {
	Driver Driver
	Path   string
	DSN    string
}

// FromEnv overlays non-empty SCHEDBOARD_* variables on o.
//
//	SCHEDBOARD_STORAGE_DRIVER: memory|sqlite|postgres
//	SCHEDBOARD_SQLITE_PATH: path to sqlite file
//	SCHEDBOARD_POSTGRES_DSN: postgres DSN when driver=postgres
func (o Options) FromEnv() Options {
	if v := os.Getenv(EnvDriver); v != "" {
		o.Driver = Driver(v)
	}
	if v := os.Getenv(EnvSQLitePath); v != "" {
		o.Path = v
	}
	if v := os.Getenv(EnvPostgresDSN); v != "" {
		o.DSN = v
	}
	return o
}

// Open returns the store selected by opts.Driver. An empty driver means sqlite.
func Open(ctx context.Context, opts Options) (domain.SnapshotStore, error) {
	switch opts.Driver {
	case DriverMemory:
		return memory.NewStore(), nil
	case DriverSQLite, "":
		return sqlite.NewStore(ctx, opts.Path)
	case DriverPostgres:
		return postgres.NewStore(ctx, opts.DSN)
	default:
		return nil, fmt.Errorf("unknown storage driver %s", opts.Driver)
	}
}
