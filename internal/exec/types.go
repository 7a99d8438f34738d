// Package exec implements the executor (spec.md §4.5): layer-by-layer
// scheduling of a plan's DAG with a bounded worker pool, fan-in merge
// policies, skip propagation, and partial-failure semantics.
package exec

import (
	"time"

	"github.com/waivern/wcf/internal/schema"
)

// ArtifactResult is produced per artifact during execution (spec.md §3).
type ArtifactResult struct {
	ArtifactID string
	Success    bool
	Message    *schema.Message
	Error      string
	Duration   time.Duration
}

// ExecutionResult is the executor's output (spec.md §3).
type ExecutionResult struct {
	RunID               string
	StartTimestamp      time.Time
	Artifacts           map[string]ArtifactResult
	Skipped             map[string]bool
	TotalDurationSeconds float64
}

// Status derives the run-level outcome (spec.md §4.5 "Status derivation").
//
//   - completed: every non-skipped artifact succeeded and Skipped is empty.
//   - failed: at least one non-optional, non-skipped artifact failed.
//   - partial: no such failures, but one or more artifacts were skipped or
//     an optional artifact failed.
func (r *ExecutionResult) Status(optional map[string]bool) string {
	anyFailed, anyOptionalFailed := false, false
	for id, res := range r.Artifacts {
		if r.Skipped[id] {
			continue
		}
		if !res.Success {
			if optional[id] {
				anyOptionalFailed = true
			} else {
				anyFailed = true
			}
		}
	}
	if anyFailed {
		return "failed"
	}
	if len(r.Skipped) > 0 || anyOptionalFailed {
		return "partial"
	}
	return "completed"
}
