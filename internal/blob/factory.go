package blob

import (
	"context"
	"fmt"
	"os"

	fsstore "schedboard/internal/infra/blob/fs"
	memorystore "schedboard/internal/infra/blob/memory"
	s3store "schedboard/internal/infra/blob/s3"
)

// S3Config re-exports the S3 backend configuration.
type S3Config = s3store.Config

// Environment variables consulted by Options.FromEnv. S3 specific variables
// are documented in the s3 backend.
const (
	EnvDriver = "SCHEDBOARD_ARCHIVE_DRIVER"
	EnvFSRoot = "SCHEDBOARD_ARCHIVE_FS_ROOT"
)

// Options selects and configures an archive backend.
type Options struct {
	Driver Driver
	Root   string
	S3     S3Config
}

// FromEnv overlays non-empty SCHEDBOARD_ARCHIVE_* variables on o.
func (o Options) FromEnv() Options {
	if v := os.Getenv(EnvDriver); v != "" {
		o.Driver = Driver(v)
	}
	if v := os.Getenv(EnvFSRoot); v != "" {
		o.Root = v
	}
	o.S3 = s3store.ConfigFromEnv(o.S3)
	return o
}

// Open returns the store selected by opts.Driver. An empty driver means fs.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Driver {
	case DriverFilesystem, "":
		return fsstore.New(opts.Root)
	case DriverMemory:
		return memorystore.New(), nil
	case DriverS3:
		return s3store.New(ctx, opts.S3)
	default:
		return nil, fmt.Errorf("unknown blob driver %s", opts.Driver)
	}
}
