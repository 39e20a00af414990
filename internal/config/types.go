// Package config loads the boardctl configuration file.
package config

import (
	"fmt"
	"strings"
	"time"

	"schedboard/internal/blob"
	"schedboard/internal/persistence"
	logx "schedboard/pkg/logx"
)

type Config struct {
	Log         logx.Config       `json:"log"`
	Persistence PersistenceConfig `json:"persistence"`
	Archive     *ArchiveConfig    `json:"archive,omitempty"`
	Metrics     MetricsConfig     `json:"metrics"`
	Trace       TraceConfig       `json:"trace"`
	Board       BoardConfig       `json:"board"`
}

// PersistenceConfig selects the snapshot store.
//
// Defaults (when fields are omitted/zero):
//   - driver: sqlite
//   - path: schedboard.db
type PersistenceConfig struct {
	Driver string `json:"driver,omitempty"`
	Path   string `json:"path,omitempty"`
	DSN    string `json:"dsn,omitempty"`
}

// Options converts the section for persistence.Open, applying SCHEDBOARD_*
// environment overrides.
func (p PersistenceConfig) Options() persistence.Options {
	return persistence.Options{Driver: persistence.Driver(p.Driver), Path: p.Path, DSN: p.DSN}.FromEnv()
}

// ArchiveConfig enables snapshot archiving. Keep > 0 prunes older archives
// after each export. LinkExpiry is how long the download link printed by
// export stays valid (Go duration string, default 15m).
type ArchiveConfig struct {
	Driver     string    `json:"driver,omitempty"`
	Root       string    `json:"root,omitempty"`
	Prefix     string    `json:"prefix,omitempty"`
	Keep       int       `json:"keep,omitempty"`
	LinkExpiry string    `json:"link_expiry,omitempty"`
	S3         *S3Config `json:"s3,omitempty"`
}

// DefaultLinkExpiry applies when archive.link_expiry is empty.
const DefaultLinkExpiry = 15 * time.Minute

// Expiry returns the parsed link expiry.
func (a ArchiveConfig) Expiry() (time.Duration, error) {
	d, err := nonNegativeDuration("archive.link_expiry", a.LinkExpiry)
	if err != nil || d > 0 {
		return d, err
	}
	return DefaultLinkExpiry, nil
}

type S3Config struct {
	Bucket    string `json:"bucket"`
	Region    string `json:"region,omitempty"`
	Endpoint  string `json:"endpoint,omitempty"`
	PathStyle bool   `json:"path_style,omitempty"`
}

// Options converts the section for blob.Open, applying SCHEDBOARD_ARCHIVE_*
// environment overrides.
func (a ArchiveConfig) Options() blob.Options {
	opts := blob.Options{Driver: blob.Driver(a.Driver), Root: a.Root}
	if a.S3 != nil {
		opts.S3 = blob.S3Config{Bucket: a.S3.Bucket, Region: a.S3.Region, Endpoint: a.S3.Endpoint, PathStyle: a.S3.PathStyle}
	}
	return opts.FromEnv()
}

// MetricsConfig selects the operation metrics sink. Textfile, when set, is
// where the prometheus driver writes its exposition on exit.
type MetricsConfig struct {
	Driver   string `json:"driver,omitempty"`
	Textfile string `json:"textfile,omitempty"`
}

// TraceConfig enables JSON-lines span output when Path is set. Path "-"
// means stderr.
type TraceConfig struct {
	Path string `json:"path,omitempty"`
}

type BoardConfig struct {
	VisibleWeeks int `json:"visible_weeks,omitempty"`
	// OperationTimeout bounds persistence calls per operation. Go duration string.
	OperationTimeout string `json:"operation_timeout,omitempty"`
}

// Timeout returns the parsed operation timeout; zero means none.
func (b BoardConfig) Timeout() (time.Duration, error) {
	return nonNegativeDuration("board.operation_timeout", b.OperationTimeout)
}

func nonNegativeDuration(field, raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: must not be negative", field)
	}
	return d, nil
}
