package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"schedboard/internal/blob"
	"schedboard/internal/persistence"
	"schedboard/pkg/domain"
	"schedboard/pkg/logx"
)

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Persistence: PersistenceConfig{Driver: string(persistence.DriverSQLite)},
		Metrics:     MetricsConfig{Driver: "none"},
		Board:       BoardConfig{VisibleWeeks: domain.DefaultVisibleWeeks},
	}
}

// Load reads and validates the file at path. An empty path yields Default().
func Load(path string) (*Config, error) {
	if path == "" {
		cfg := Default()
		return cfg, cfg.Validate()
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Decode(path, b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Decode strictly decodes data on top of Default(). path only selects the
// format by extension.
func Decode(path string, data []byte) (*Config, error) {
	jb, err := ToJSON(path, data)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	dec := json.NewDecoder(bytes.NewReader(jb))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, err
	}
	// reject trailing tokens (e.g. concatenated JSON)
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return nil, errors.New("invalid config: trailing data")
		}
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error
	if _, err := logx.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	switch persistence.Driver(c.Persistence.Driver) {
	case persistence.DriverMemory, persistence.DriverSQLite, "":
	case persistence.DriverPostgres:
		if strings.TrimSpace(c.Persistence.DSN) == "" && os.Getenv(persistence.EnvPostgresDSN) == "" {
			errs = append(errs, errors.New("persistence.dsn: required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("persistence.driver: unknown driver %q", c.Persistence.Driver))
	}
	if a := c.Archive; a != nil {
		switch blob.Driver(a.Driver) {
		case blob.DriverFilesystem, blob.DriverMemory, "":
		case blob.DriverS3:
			if a.S3 == nil || a.S3.Bucket == "" {
				errs = append(errs, errors.New("archive.s3.bucket: required for s3"))
			}
		default:
			errs = append(errs, fmt.Errorf("archive.driver: unknown driver %q", a.Driver))
		}
		if a.Keep < 0 {
			errs = append(errs, errors.New("archive.keep: must be >= 0"))
		}
		if _, err := a.Expiry(); err != nil {
			errs = append(errs, err)
		}
	}
	switch c.Metrics.Driver {
	case "", "none", "expvar", "prometheus":
	default:
		errs = append(errs, fmt.Errorf("metrics.driver: unknown driver %q", c.Metrics.Driver))
	}
	if c.Metrics.Textfile != "" && c.Metrics.Driver != "prometheus" {
		errs = append(errs, errors.New("metrics.textfile: requires the prometheus driver"))
	}
	if c.Board.VisibleWeeks < 0 {
		errs = append(errs, errors.New("board.visible_weeks: must be >= 0"))
	}
	if _, err := c.Board.Timeout(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
