package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"schedboard/internal/adapters/boardscript"
	"schedboard/internal/blob"
	"schedboard/internal/core"
	"schedboard/pkg/domain"
	"schedboard/pkg/logx"
)

var nowFunc = time.Now

type commonFlags struct {
	config  string
	payload string
}

func newFlagSet(name string, stderr io.Writer, withPayload bool) (*flag.FlagSet, *commonFlags) {
	fs := flag.NewFlagSet("boardctl "+name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	cf := &commonFlags{}
	fs.StringVar(&cf.config, "config", "", "path to the YAML or JSON config file (defaults apply when empty)")
	if withPayload {
		fs.StringVar(&cf.payload, "payload", "", "hydrate from this YAML or JSON payload instead of the stored snapshot")
	}
	return fs, cf
}

func parseFlags(fs *flag.FlagSet, args []string) (int, bool) {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0, false
		}
		return 2, false
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(fs.Output(), "%s: unexpected arguments %v\n", fs.Name(), fs.Args())
		return 2, false
	}
	return 0, true
}

// withApp opens the app, runs fn and closes the app, folding every failure
// into an exit code.
func withApp(configPath string, stderr io.Writer, fn func(ctx context.Context, a *app) error) int {
	ctx := context.Background()
	a, err := openApp(ctx, configPath, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "boardctl: %v\n", err)
		return 1
	}
	runErr := fn(ctx, a)
	if runErr != nil {
		a.log.Error("command failed", logx.Err(runErr))
	}
	closeErr := a.Close()
	if err := errors.Join(runErr, closeErr); err != nil {
		fmt.Fprintf(stderr, "boardctl: %v\n", err)
		return 1
	}
	return 0
}

type checkReport struct {
	Consistent   bool     `json:"consistent"`
	Orders       int      `json:"orders"`
	Runs         int      `json:"runs"`
	Cells        int      `json:"cells"`
	Unscheduled  []string `json:"unscheduled"`
	BlockedDates []string `json:"blockedDates"`
	WindowStart  string   `json:"windowStart"`
	WindowEnd    string   `json:"windowEnd"`
	Problems     string   `json:"problems,omitempty"`
}

func runCheck(args []string, stdout, stderr io.Writer) int {
	fs, cf := newFlagSet("check", stderr, true)
	anchor := fs.String("anchor", "", "date (YYYY-MM-DD) inside the first week of the visible window; defaults to today")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	anchorDate := nowFunc()
	if *anchor != "" {
		t, err := time.Parse(domain.DateLayout, *anchor)
		if err != nil {
			fmt.Fprintf(stderr, "boardctl check: invalid -anchor: %v\n", err)
			return 2
		}
		anchorDate = t
	}
	inconsistent := false
	code := withApp(cf.config, stderr, func(ctx context.Context, a *app) error {
		if err := a.loadBoard(ctx, cf.payload); err != nil {
			return err
		}
		var report checkReport
		a.svc.View(func(b *core.Board) {
			snap := b.Snapshot()
			window := domain.WeekDates(anchorDate, b.VisibleWeeks())
			report = checkReport{
				Consistent:   true,
				Orders:       len(snap.Orders),
				Runs:         len(snap.Runs),
				Cells:        len(snap.Cells),
				Unscheduled:  b.UnscheduledOrderIDs(),
				BlockedDates: snap.BlockedDates,
				WindowStart:  window[0],
				WindowEnd:    window[len(window)-1],
			}
			if err := b.CheckConsistency(); err != nil {
				report.Consistent = false
				report.Problems = err.Error()
			}
		})
		inconsistent = !report.Consistent
		return writeJSON(stdout, report)
	})
	if code == 0 && inconsistent {
		return 1
	}
	return code
}

func runApply(args []string, stdout, stderr io.Writer) int {
	fs, cf := newFlagSet("apply", stderr, true)
	scriptPath := fs.String("script", "", "operation script (YAML or JSON)")
	archive := fs.Bool("archive", false, "archive the resulting snapshot (requires an archive section)")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if *scriptPath == "" {
		fmt.Fprintln(stderr, "boardctl apply: -script is required")
		return 2
	}
	raw, err := os.ReadFile(*scriptPath)
	if err != nil {
		fmt.Fprintf(stderr, "boardctl apply: %v\n", err)
		return 1
	}
	script, err := boardscript.Parse(*scriptPath, raw)
	if err != nil {
		fmt.Fprintf(stderr, "boardctl apply: %v\n", err)
		return 1
	}
	return withApp(cf.config, stderr, func(ctx context.Context, a *app) error {
		if err := a.loadBoard(ctx, cf.payload); err != nil {
			return err
		}
		runCtx, cancel := a.bound(ctx)
		results, runErr := boardscript.NewRunner(a.svc, a.log).Run(runCtx, script)
		cancel()
		for _, res := range results {
			if err := writeJSON(stdout, res); err != nil {
				return err
			}
		}
		if runErr != nil {
			return runErr
		}
		if *archive {
			if _, err := a.archive(ctx, nowFunc()); err != nil {
				return err
			}
		}
		return nil
	})
}

type lockReport struct {
	Date         string   `json:"date,omitempty"`
	Locked       bool     `json:"locked"`
	BlockedDates []string `json:"blockedDates"`
}

func runLocks(args []string, stdout, stderr io.Writer) int {
	fs, cf := newFlagSet("locks", stderr, false)
	date := fs.String("date", "", "date (YYYY-MM-DD) whose capacity lock is toggled; lists locks when empty")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if *date != "" {
		if _, err := time.Parse(domain.DateLayout, *date); err != nil {
			fmt.Fprintf(stderr, "boardctl locks: invalid -date: %v\n", err)
			return 2
		}
	}
	return withApp(cf.config, stderr, func(ctx context.Context, a *app) error {
		if err := a.loadBoard(ctx, ""); err != nil {
			return err
		}
		report := lockReport{Date: *date}
		if *date != "" {
			opCtx, cancel := a.bound(ctx)
			locked, err := a.svc.ToggleDateLock(opCtx, *date)
			cancel()
			if err != nil {
				return err
			}
			report.Locked = locked
		}
		a.svc.View(func(b *core.Board) { report.BlockedDates = b.BlockedDates() })
		return writeJSON(stdout, report)
	})
}

func runExport(args []string, stdout, stderr io.Writer) int {
	fs, cf := newFlagSet("export", stderr, true)
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	return withApp(cf.config, stderr, func(ctx context.Context, a *app) error {
		if err := a.loadBoard(ctx, cf.payload); err != nil {
			return err
		}
		res, err := a.archive(ctx, nowFunc())
		if err != nil {
			return err
		}
		return writeJSON(stdout, res)
	})
}

type restoreReport struct {
	Key    string `json:"key"`
	Orders int    `json:"orders"`
	Runs   int    `json:"runs"`
}

func runRestore(args []string, stdout, stderr io.Writer) int {
	fs, cf := newFlagSet("restore", stderr, false)
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	return withApp(cf.config, stderr, func(ctx context.Context, a *app) error {
		ctx, cancel := a.bound(ctx)
		defer cancel()
		store, ac, err := a.openArchive(ctx)
		if err != nil {
			return err
		}
		p, info, err := blob.LatestSnapshot(ctx, store, ac.Prefix)
		if err != nil {
			return err
		}
		if err := a.svc.Hydrate(ctx, p); err != nil {
			return err
		}
		a.log.Info("board restored from archive", logx.String("key", info.Key))
		return writeJSON(stdout, restoreReport{Key: info.Key, Orders: len(p.Orders), Runs: len(p.Runs)})
	})
}
