package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"schedboard/internal/blob"
	"schedboard/internal/config"
	"schedboard/internal/core"
	"schedboard/internal/persistence"
	"schedboard/pkg/domain"
	"schedboard/pkg/logx"
)

// app is the wiring shared by every command: config, logging, the board
// service and its observability sinks.
type app struct {
	cfg     *config.Config
	logs    *logx.Sink
	log     logx.Logger
	svc     *core.Service
	prom    *core.PrometheusMetricsRecorder
	trace   io.Closer
	timeout time.Duration
}

func openApp(ctx context.Context, configPath string, stderr io.Writer) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	timeout, err := cfg.Board.Timeout()
	if err != nil {
		return nil, err
	}
	log, logs, err := logx.New(cfg.Log, stderr)
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}
	a := &app{cfg: cfg, logs: logs, log: log.With(logx.String("component", "boardctl")), timeout: timeout}

	opts := []core.ServiceOption{core.WithLogger(a.log)}
	switch cfg.Metrics.Driver {
	case "expvar":
		opts = append(opts, core.WithMetricsRecorder(core.NewExpvarMetricsRecorder("")))
	case "prometheus":
		a.prom = core.NewPrometheusMetricsRecorder("")
		opts = append(opts, core.WithMetricsRecorder(a.prom))
	}
	switch path := cfg.Trace.Path; path {
	case "":
	case "-":
		opts = append(opts, core.WithTracer(core.NewJSONTracer(stderr)))
	default:
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			_ = logs.Close()
			return nil, fmt.Errorf("open trace file: %w", err)
		}
		a.trace = f
		opts = append(opts, core.WithTracer(core.NewJSONTracer(f)))
	}

	ctx, cancel := a.bound(ctx)
	defer cancel()
	store, err := persistence.Open(ctx, cfg.Persistence.Options())
	if err != nil {
		_ = a.closeSinks()
		return nil, fmt.Errorf("open snapshot store: %w", err)
	}
	opts = append(opts, core.WithSnapshotStore(store))

	board := core.NewBoard()
	weeks := cfg.Board.VisibleWeeks
	board.Hydrate(core.Payload{VisibleWeeks: &weeks})
	a.svc = core.NewService(board, opts...)
	return a, nil
}

// bound applies the configured operation timeout to ctx.
func (a *app) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.timeout)
}

// loadBoard hydrates from payloadPath when given, otherwise from the snapshot
// store. An empty store leaves the board empty.
func (a *app) loadBoard(ctx context.Context, payloadPath string) error {
	ctx, cancel := a.bound(ctx)
	defer cancel()
	if payloadPath != "" {
		p, err := readPayload(payloadPath)
		if err != nil {
			return err
		}
		if p.VisibleWeeks == nil && a.cfg.Board.VisibleWeeks > 0 {
			weeks := a.cfg.Board.VisibleWeeks
			p.VisibleWeeks = &weeks
		}
		if err := a.svc.Hydrate(ctx, p); err != nil {
			return err
		}
		a.log.Info("board hydrated from payload", logx.String("path", payloadPath), logx.Int("orders", len(p.Orders)))
		return nil
	}
	err := a.svc.Load(ctx)
	if errors.Is(err, domain.ErrNoSnapshot) {
		a.log.Warn("no stored snapshot; starting with an empty board")
		return nil
	}
	return err
}

func (a *app) openArchive(ctx context.Context) (blob.Store, *config.ArchiveConfig, error) {
	ac := a.cfg.Archive
	if ac == nil {
		return nil, nil, errors.New("archive: not configured")
	}
	store, err := blob.Open(ctx, ac.Options())
	if err != nil {
		return nil, nil, fmt.Errorf("open archive: %w", err)
	}
	return store, ac, nil
}

// archive writes the current snapshot and prunes old archives when keep is set.
func (a *app) archive(ctx context.Context, now time.Time) (archiveResult, error) {
	ctx, cancel := a.bound(ctx)
	defer cancel()
	store, ac, err := a.openArchive(ctx)
	if err != nil {
		return archiveResult{}, err
	}
	info, err := blob.ArchiveSnapshot(ctx, store, ac.Prefix, a.svc.Snapshot(), now)
	if err != nil {
		return archiveResult{}, err
	}
	res := archiveResult{Key: info.Key, Size: info.Size, Driver: string(store.Driver())}
	expiry, err := ac.Expiry()
	if err != nil {
		return res, err
	}
	if res.URL, err = blob.SnapshotURL(ctx, store, info.Key, expiry); err != nil {
		return res, err
	}
	if ac.Keep > 0 {
		pruned, err := blob.PruneSnapshots(ctx, store, ac.Prefix, ac.Keep)
		if err != nil {
			return res, fmt.Errorf("prune archives: %w", err)
		}
		res.Pruned = pruned
	}
	a.log.Info("snapshot archived", logx.String("key", info.Key), logx.Int("pruned", len(res.Pruned)))
	return res, nil
}

type archiveResult struct {
	Key    string   `json:"key"`
	Size   int64    `json:"size_bytes"`
	Driver string   `json:"driver"`
	URL    string   `json:"url,omitempty"`
	Pruned []string `json:"pruned,omitempty"`
}

// Close flushes metrics and releases the store, the trace file and the log
// file, returning every failure.
func (a *app) Close() error {
	var errs []error
	if a.prom != nil && a.cfg.Metrics.Textfile != "" {
		if err := a.prom.WriteTextfile(a.cfg.Metrics.Textfile); err != nil {
			errs = append(errs, fmt.Errorf("write metrics textfile: %w", err))
		}
	}
	if a.svc != nil {
		if err := a.svc.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close snapshot store: %w", err))
		}
	}
	if err := a.closeSinks(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (a *app) closeSinks() error {
	var errs []error
	if a.trace != nil {
		errs = append(errs, a.trace.Close())
	}
	errs = append(errs, a.logs.Close())
	return errors.Join(errs...)
}

// readPayload strictly decodes a YAML or JSON board payload.
func readPayload(path string) (domain.Payload, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return domain.Payload{}, fmt.Errorf("read payload: %w", err)
	}
	data, err := config.ToJSON(path, raw)
	if err != nil {
		return domain.Payload{}, fmt.Errorf("%s: %w", path, err)
	}
	var p domain.Payload
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return domain.Payload{}, fmt.Errorf("%s: decode payload: %w", path, err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return domain.Payload{}, fmt.Errorf("%s: decode payload: trailing data", path)
	}
	return p, nil
}

func writeJSON(w io.Writer, v any) error {
	return json.NewEncoder(w).Encode(v)
}
