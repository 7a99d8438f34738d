// Package export implements the export builder (spec.md §4.6): summarising
// a completed run into the wire-format CoreExport document.
package export

import (
	"sort"

	"github.com/waivern/wcf/internal/exec"
	"github.com/waivern/wcf/internal/plan"
)

const FormatVersion = "2.0.0"

// CoreExport is the wire-format document (spec.md §4.6).
type CoreExport struct {
	FormatVersion string        `json:"format_version"`
	Run           RunInfo       `json:"run"`
	Runbook       RunbookInfo   `json:"runbook"`
	Summary       Summary       `json:"summary"`
	Outputs       []OutputEntry `json:"outputs"`
	Errors        []ErrorEntry  `json:"errors"`
	Skipped       []string      `json:"skipped"`
}

type RunInfo struct {
	ID              string  `json:"id"`
	Timestamp       string  `json:"timestamp"`
	Status          string  `json:"status"`
	DurationSeconds float64 `json:"duration_seconds"`
}

type RunbookInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Contact     string `json:"contact,omitempty"`
}

type Summary struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

type SchemaRef struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type OutputEntry struct {
	ArtifactID   string      `json:"artifact_id"`
	Name         string      `json:"name,omitempty"`
	Description  string      `json:"description,omitempty"`
	Contact      string      `json:"contact,omitempty"`
	OutputSchema SchemaRef   `json:"output_schema"`
	Content      interface{} `json:"content"`
}

type ErrorEntry struct {
	ArtifactID string `json:"artifact_id"`
	Error      string `json:"error"`
}

// Build assembles a CoreExport from a completed run and the plan that
// produced it (spec.md §4.6).
func Build(result *exec.ExecutionResult, p *plan.ExecutionPlan) *CoreExport {
	optional := make(map[string]bool, len(p.Artifacts))
	for id, a := range p.Artifacts {
		optional[id] = a.Optional
	}
	status := result.Status(optional)

	doc := &CoreExport{
		FormatVersion: FormatVersion,
		Run: RunInfo{
			ID:              result.RunID,
			Timestamp:       result.StartTimestamp.Format("2006-01-02T15:04:05.999999-07:00"),
			Status:          status,
			DurationSeconds: result.TotalDurationSeconds,
		},
		Runbook: RunbookInfo{
			Name:        p.Runbook.Name,
			Description: p.Runbook.Description,
			Contact:     p.Runbook.Contact,
		},
	}

	doc.Outputs = buildOutputs(result, p)
	doc.Errors = buildErrors(result, optional)
	doc.Skipped = sortedIDs(result.Skipped)
	doc.Summary = buildSummary(result, p)

	return doc
}

// buildOutputs collects every artifact marked output:true that produced a
// message, in the plan's topological order (spec.md §4.6 "outputs" rule).
func buildOutputs(result *exec.ExecutionResult, p *plan.ExecutionPlan) []OutputEntry {
	var outputs []OutputEntry
	for _, layer := range p.DAG.Layers {
		for _, id := range layer {
			a, ok := p.Artifacts[id]
			if !ok || !a.Output {
				continue
			}
			res, ok := result.Artifacts[id]
			if !ok || !res.Success || res.Message == nil {
				continue
			}
			outputs = append(outputs, OutputEntry{
				ArtifactID:  id,
				Name:        a.Name,
				Description: a.Description,
				Contact:     a.Contact,
				OutputSchema: SchemaRef{
					Name:    res.Message.Schema.Name,
					Version: res.Message.Schema.Version,
				},
				Content: res.Message.Content,
			})
		}
	}
	return outputs
}

// buildErrors lists failed, non-skipped artifacts sorted by id (spec.md
// §4.6 "errors" rule). A skipped artifact's synthetic "upstream X failed"
// reason is reported via Skipped, not Errors, to keep the two lists
// disjoint.
func buildErrors(result *exec.ExecutionResult, optional map[string]bool) []ErrorEntry {
	var errs []ErrorEntry
	for id, res := range result.Artifacts {
		if result.Skipped[id] {
			continue
		}
		if res.Success {
			continue
		}
		errs = append(errs, ErrorEntry{ArtifactID: id, Error: res.Error})
	}
	sort.Slice(errs, func(i, j int) bool { return errs[i].ArtifactID < errs[j].ArtifactID })
	return errs
}

func buildSummary(result *exec.ExecutionResult, p *plan.ExecutionPlan) Summary {
	total := len(p.DAG.Nodes)
	succeeded, failed := 0, 0
	for id, res := range result.Artifacts {
		if result.Skipped[id] {
			continue
		}
		if res.Success {
			succeeded++
		} else {
			failed++
		}
	}
	return Summary{
		Total:     total,
		Succeeded: succeeded,
		Failed:    failed,
		Skipped:   len(result.Skipped),
	}
}

func sortedIDs(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
