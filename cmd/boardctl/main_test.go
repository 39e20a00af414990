package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const payloadJSON = `{
  "orders": [
    {"id": "o1", "orderNumber": "SO-1", "status": "picked", "type": "SO", "date": "2025-01-06"},
    {"id": "o2", "orderNumber": "SO-2", "status": "packed", "type": "SO", "date": "2025-01-06"},
    {"id": "o3", "orderNumber": "SO-3", "status": "picked", "type": "SO", "date": "2025-01-06"},
    {"id": "o4", "orderNumber": "SO-4", "status": "unscheduled", "type": "SO", "date": "2025-01-07"},
    {"id": "o5", "orderNumber": "SO-5", "status": "unscheduled", "type": "SO"}
  ],
  "runs": [
    {"id": "r1", "name": "Run 1", "orderIds": ["o1", "o2"]},
    {"id": "r2", "name": "Run 2", "orderIds": ["o3"]}
  ],
  "cells": {
    "TR-01|2025-01-06": {"runIds": ["r1", "r2"], "looseOrderIds": []},
    "TR-02|2025-01-07": {"runIds": [], "looseOrderIds": ["o4"]}
  },
  "trucks": ["TR-01", "TR-02"],
  "visibleWeeks": 2
}`

type workspace struct {
	dir     string
	config  string
	payload string
}

func newWorkspace(t *testing.T, extra string) workspace {
	t.Helper()
	dir := t.TempDir()
	ws := workspace{
		dir:     dir,
		config:  filepath.Join(dir, "boardctl.yaml"),
		payload: filepath.Join(dir, "payload.json"),
	}
	cfg := "log:\n  level: error\npersistence:\n  driver: sqlite\n  path: " + filepath.Join(dir, "board.db") + "\n" + extra
	writeTestFile(t, ws.config, cfg)
	writeTestFile(t, ws.payload, payloadJSON)
	return ws
}

func writeTestFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func run(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := cli(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func decodeLines[T any](t *testing.T, out string) []T {
	t.Helper()
	var items []T
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		var v T
		if err := json.Unmarshal(sc.Bytes(), &v); err != nil {
			t.Fatalf("decode %q: %v", sc.Text(), err)
		}
		items = append(items, v)
	}
	return items
}

func stubNow(t *testing.T, times ...time.Time) {
	t.Helper()
	prev := nowFunc
	i := 0
	nowFunc = func() time.Time {
		now := times[i%len(times)]
		i++
		return now
	}
	t.Cleanup(func() { nowFunc = prev })
}

func TestCLIUsage(t *testing.T) {
	if code, _, stderr := run(t); code != 2 || !strings.Contains(stderr, "usage: boardctl") {
		t.Fatalf("no args: code=%d stderr=%q", code, stderr)
	}
	if code, stdout, _ := run(t, "help"); code != 0 || !strings.Contains(stdout, "restore") {
		t.Fatalf("help: code=%d stdout=%q", code, stdout)
	}
	if code, _, stderr := run(t, "frobnicate"); code != 2 || !strings.Contains(stderr, `unknown command "frobnicate"`) {
		t.Fatalf("unknown: code=%d stderr=%q", code, stderr)
	}
	if code, _, _ := run(t, "check", "-h"); code != 0 {
		t.Fatalf("check -h: code=%d", code)
	}
	if code, _, _ := run(t, "check", "-bogus"); code != 2 {
		t.Fatalf("bad flag: code=%d", code)
	}
	if code, _, _ := run(t, "check", "extra"); code != 2 {
		t.Fatalf("positional args: code=%d", code)
	}
}

func TestMainUsesExitFunc(t *testing.T) {
	prevExit, prevArgs := exitFunc, os.Args
	t.Cleanup(func() { exitFunc, os.Args = prevExit, prevArgs })
	got := -1
	exitFunc = func(code int) { got = code }
	os.Args = []string{"boardctl", "help"}
	main()
	if got != 0 {
		t.Fatalf("exit code = %d", got)
	}
}

func TestCheckHydratesAndPersists(t *testing.T) {
	ws := newWorkspace(t, "")

	code, stdout, stderr := run(t, "check", "-config", ws.config, "-payload", ws.payload, "-anchor", "2025-01-08")
	if code != 0 {
		t.Fatalf("check: code=%d stderr=%s", code, stderr)
	}
	reports := decodeLines[checkReport](t, stdout)
	if len(reports) != 1 {
		t.Fatalf("expected one report, got %d", len(reports))
	}
	r := reports[0]
	if !r.Consistent || r.Orders != 5 || r.Runs != 2 || r.Cells != 2 {
		t.Fatalf("unexpected report %+v", r)
	}
	if len(r.Unscheduled) != 1 || r.Unscheduled[0] != "o5" {
		t.Fatalf("unscheduled = %v", r.Unscheduled)
	}
	if r.WindowStart != "2025-01-06" || r.WindowEnd != "2025-01-19" {
		t.Fatalf("window = %s..%s", r.WindowStart, r.WindowEnd)
	}

	code, stdout, stderr = run(t, "check", "-config", ws.config)
	if code != 0 {
		t.Fatalf("reload check: code=%d stderr=%s", code, stderr)
	}
	if r := decodeLines[checkReport](t, stdout)[0]; r.Orders != 5 {
		t.Fatalf("snapshot not persisted: %+v", r)
	}
}

func TestCheckRejectsBadInput(t *testing.T) {
	ws := newWorkspace(t, "")
	if code, _, _ := run(t, "check", "-config", ws.config, "-anchor", "tomorrow"); code != 2 {
		t.Fatalf("bad anchor: code=%d", code)
	}
	if code, _, stderr := run(t, "check", "-config", filepath.Join(ws.dir, "missing.yaml")); code != 1 || !strings.Contains(stderr, "load config") {
		t.Fatalf("missing config: code=%d stderr=%q", code, stderr)
	}
	bad := filepath.Join(ws.dir, "bad.json")
	writeTestFile(t, bad, `{"orders": [], "surprise": true}`)
	if code, _, stderr := run(t, "check", "-config", ws.config, "-payload", bad); code != 1 || !strings.Contains(stderr, "surprise") {
		t.Fatalf("unknown payload field: code=%d stderr=%q", code, stderr)
	}
}

func TestApplyLocksAndTrace(t *testing.T) {
	tracePath := filepath.Join(t.TempDir(), "trace.jsonl")
	ws := newWorkspace(t, "trace:\n  path: "+tracePath+"\n")
	if code, _, stderr := run(t, "check", "-config", ws.config, "-payload", ws.payload); code != 0 {
		t.Fatalf("seed: code=%d stderr=%s", code, stderr)
	}

	script := filepath.Join(ws.dir, "moves.yaml")
	writeTestFile(t, script, `
steps:
  - op: move_order
    order: o3
    run: r1
    index: 0
  - op: create_run
    cell: TR-02|2025-01-07
    as: late
  - op: commit_order_to_run
    order: o4
    run: $late
  - op: check
`)
	code, stdout, stderr := run(t, "apply", "-config", ws.config, "-script", script)
	if code != 0 {
		t.Fatalf("apply: code=%d stderr=%s", code, stderr)
	}
	results := decodeLines[stepResult](t, stdout)
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d: %s", len(results), stdout)
	}
	for _, res := range results {
		if !res.Success {
			t.Fatalf("step failed: %+v", res)
		}
	}

	code, stdout, stderr = run(t, "locks", "-config", ws.config, "-date", "2025-01-06")
	if code != 0 {
		t.Fatalf("locks: code=%d stderr=%s", code, stderr)
	}
	lock := decodeLines[lockReport](t, stdout)[0]
	if !lock.Locked || len(lock.BlockedDates) != 1 || lock.BlockedDates[0] != "2025-01-06" {
		t.Fatalf("unexpected lock report %+v", lock)
	}
	if code, stdout, _ = run(t, "locks", "-config", ws.config); code != 0 || !strings.Contains(stdout, "2025-01-06") {
		t.Fatalf("list locks: code=%d stdout=%s", code, stdout)
	}

	blocked := filepath.Join(ws.dir, "blocked.json")
	writeTestFile(t, blocked, `{"steps": [{"op": "move_order_loose", "order": "o5", "cell": "TR-01|2025-01-06"}]}`)
	code, stdout, _ = run(t, "apply", "-config", ws.config, "-script", blocked)
	if code != 0 {
		t.Fatalf("apply blocked: code=%d", code)
	}
	if res := decodeLines[stepResult](t, stdout)[0]; res.Success || res.Reason != "CAPACITY_LOCKED" {
		t.Fatalf("expected capacity lock, got %+v", res)
	}

	trace, err := os.ReadFile(tracePath)
	if err != nil {
		t.Fatalf("read trace: %v", err)
	}
	for _, op := range []string{`"operation":"hydrate"`, `"operation":"move_order"`, `"operation":"toggle_date_lock"`, `"status":"error"`} {
		if !strings.Contains(string(trace), op) {
			t.Fatalf("trace missing %s:\n%s", op, trace)
		}
	}
}

type stepResult struct {
	Step    int    `json:"step"`
	Success bool   `json:"success"`
	Reason  string `json:"reason"`
	RunID   string `json:"runId"`
}

func TestApplyRequiresScript(t *testing.T) {
	ws := newWorkspace(t, "")
	if code, _, stderr := run(t, "apply", "-config", ws.config); code != 2 || !strings.Contains(stderr, "-script is required") {
		t.Fatalf("code=%d stderr=%q", code, stderr)
	}
	bad := filepath.Join(ws.dir, "bad.yaml")
	writeTestFile(t, bad, "steps:\n  - op: teleport\n")
	if code, _, _ := run(t, "apply", "-config", ws.config, "-script", bad); code != 1 {
		t.Fatalf("invalid script: code=%d", code)
	}
	if code, _, _ := run(t, "locks", "-config", ws.config, "-date", "06/01/2025"); code != 2 {
		t.Fatalf("invalid date: code=%d", code)
	}
}

func TestExportPruneAndRestore(t *testing.T) {
	archiveRoot := filepath.Join(t.TempDir(), "archive")
	ws := newWorkspace(t, "archive:\n  driver: fs\n  root: "+archiveRoot+"\n  prefix: boards\n  keep: 1\n")
	stubNow(t,
		time.Date(2025, 1, 6, 8, 0, 0, 0, time.UTC),
		time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC),
	)

	code, stdout, stderr := run(t, "export", "-config", ws.config, "-payload", ws.payload)
	if code != 0 {
		t.Fatalf("export: code=%d stderr=%s", code, stderr)
	}
	first := decodeLines[archiveResult](t, stdout)[0]
	if first.Driver != "fs" || !strings.HasPrefix(first.Key, "boards/board-20250106T080000") || first.Size == 0 {
		t.Fatalf("unexpected archive %+v", first)
	}
	if !strings.HasPrefix(first.URL, "file://") || !strings.HasSuffix(first.URL, first.Key) {
		t.Fatalf("unexpected archive %+v", first)
	}

	script := filepath.Join(ws.dir, "dissolve.json")
	writeTestFile(t, script, `{"steps": [{"op": "dissolve_run", "run": "r2"}]}`)
	code, stdout, stderr = run(t, "apply", "-config", ws.config, "-script", script, "-archive")
	if code != 0 {
		t.Fatalf("apply -archive: code=%d stderr=%s", code, stderr)
	}
	if res := decodeLines[stepResult](t, stdout)[0]; !res.Success {
		t.Fatalf("dissolve failed: %+v", res)
	}
	entries, err := os.ReadDir(filepath.Join(archiveRoot, "boards"))
	if err != nil {
		t.Fatalf("read archive dir: %v", err)
	}
	var archived []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".json") && !strings.HasSuffix(e.Name(), ".meta.json") {
			archived = append(archived, e.Name())
		}
	}
	if len(archived) != 1 || !strings.Contains(archived[0], "T090000") {
		t.Fatalf("expected only the newest archive to survive pruning, got %v", archived)
	}

	reset := filepath.Join(ws.dir, "reset.json")
	writeTestFile(t, reset, `{"orders": [], "runs": [], "cells": {}, "trucks": []}`)
	if code, _, stderr := run(t, "check", "-config", ws.config, "-payload", reset); code != 0 {
		t.Fatalf("reset: code=%d stderr=%s", code, stderr)
	}

	code, stdout, stderr = run(t, "restore", "-config", ws.config)
	if code != 0 {
		t.Fatalf("restore: code=%d stderr=%s", code, stderr)
	}
	restored := decodeLines[restoreReport](t, stdout)[0]
	if !strings.Contains(restored.Key, "T090000") || restored.Orders != 5 || restored.Runs != 1 {
		t.Fatalf("unexpected restore %+v", restored)
	}
	code, stdout, _ = run(t, "check", "-config", ws.config)
	if r := decodeLines[checkReport](t, stdout)[0]; code != 0 || r.Runs != 1 || r.Orders != 5 {
		t.Fatalf("restored board not persisted: code=%d %+v", code, r)
	}
}

func TestExportWithoutArchive(t *testing.T) {
	ws := newWorkspace(t, "")
	if code, _, stderr := run(t, "export", "-config", ws.config); code != 1 || !strings.Contains(stderr, "archive: not configured") {
		t.Fatalf("code=%d stderr=%q", code, stderr)
	}
}

func TestPrometheusTextfile(t *testing.T) {
	textfile := filepath.Join(t.TempDir(), "board.prom")
	ws := newWorkspace(t, "metrics:\n  driver: prometheus\n  textfile: "+textfile+"\n")
	if code, _, stderr := run(t, "check", "-config", ws.config, "-payload", ws.payload); code != 0 {
		t.Fatalf("check: code=%d stderr=%s", code, stderr)
	}
	data, err := os.ReadFile(textfile)
	if err != nil {
		t.Fatalf("read textfile: %v", err)
	}
	if !strings.Contains(string(data), `schedboard_board_operations_total{operation="hydrate",outcome="success"} 1`) {
		t.Fatalf("unexpected textfile:\n%s", data)
	}
}
