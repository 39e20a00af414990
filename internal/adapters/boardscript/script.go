// Package boardscript runs scripted board operations, one step at a time,
// against a core.Service.
package boardscript

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"schedboard/internal/config"
)

// Op names a scripted operation.
type Op string

const (
	OpMoveOrder         Op = "move_order"
	OpCommitOrderToRun  Op = "commit_order_to_run"
	OpMoveOrderLoose    Op = "move_order_loose"
	OpMoveRun           Op = "move_run"
	OpCreateRun         Op = "create_run"
	OpDissolveRun       Op = "dissolve_run"
	OpToggleDateLock    Op = "toggle_date_lock"
	OpReorderInRun      Op = "reorder_in_run"
	OpReorderRunsInCell Op = "reorder_runs_in_cell"
	OpCheck             Op = "check"
)

// Step is one scripted operation. Index is optional and appends when absent.
// As names the run created by a create_run step; later steps refer to it as
// "$name" in their run field.
type Step struct {
	Op    Op     `json:"op"`
	Order string `json:"order,omitempty"`
	Run   string `json:"run,omitempty"`
	Cell  string `json:"cell,omitempty"`
	Index *int   `json:"index,omitempty"`
	Name  string `json:"name,omitempty"`
	As    string `json:"as,omitempty"`
	Date  string `json:"date,omitempty"`
	From  int    `json:"from,omitempty"`
	To    int    `json:"to,omitempty"`
}

// Script is an ordered list of steps. StopOnReject ends the run at the first
// rejected move.
type Script struct {
	StopOnReject bool   `json:"stop_on_reject,omitempty"`
	Steps        []Step `json:"steps"`
}

// Parse decodes a YAML or JSON script; path selects the format by extension.
func Parse(path string, data []byte) (Script, error) {
	jb, err := config.ToJSON(path, data)
	if err != nil {
		return Script{}, err
	}
	var s Script
	dec := json.NewDecoder(bytes.NewReader(jb))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&s); err != nil {
		return Script{}, fmt.Errorf("decode script: %w", err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return Script{}, errors.New("decode script: trailing data")
	}
	return s, s.Validate()
}

// Validate checks that every step names a known op and carries the fields
// that op reads.
func (s Script) Validate() error {
	var errs []error
	aliases := map[string]bool{}
	for i, st := range s.Steps {
		var missing []string
		need := func(field, value string) {
			if strings.TrimSpace(value) == "" {
				missing = append(missing, field)
			}
		}
		switch st.Op {
		case OpMoveOrder, OpCommitOrderToRun:
			need("order", st.Order)
			need("run", st.Run)
		case OpMoveOrderLoose:
			need("order", st.Order)
			need("cell", st.Cell)
		case OpMoveRun:
			need("run", st.Run)
			need("cell", st.Cell)
		case OpCreateRun, OpReorderRunsInCell:
			need("cell", st.Cell)
		case OpDissolveRun, OpReorderInRun:
			need("run", st.Run)
		case OpToggleDateLock:
			need("date", st.Date)
		case OpCheck:
		default:
			errs = append(errs, fmt.Errorf("step %d: unknown op %q", i+1, st.Op))
			continue
		}
		if len(missing) > 0 {
			errs = append(errs, fmt.Errorf("step %d (%s): missing %s", i+1, st.Op, strings.Join(missing, ", ")))
		}
		if ref, ok := strings.CutPrefix(st.Run, "$"); ok && !aliases[ref] {
			errs = append(errs, fmt.Errorf("step %d (%s): run alias %q is not defined by an earlier create_run", i+1, st.Op, ref))
		}
		if st.As != "" {
			if st.Op != OpCreateRun {
				errs = append(errs, fmt.Errorf("step %d (%s): as is only valid on create_run", i+1, st.Op))
			}
			aliases[st.As] = true
		}
	}
	return errors.Join(errs...)
}
