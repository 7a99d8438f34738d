package export

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/waivern/wcf/internal/exec"
	"github.com/waivern/wcf/internal/plan"
	"github.com/waivern/wcf/internal/runbook"
	"github.com/waivern/wcf/internal/schema"
)

func buildPlan() *plan.ExecutionPlan {
	artifacts := map[string]runbook.Artifact{
		"src": {ID: "src", Source: &runbook.SourceConfig{Type: "fs"}},
		"ana": {ID: "ana", Process: &runbook.ProcessConfig{Type: "analyse"}, Inputs: runbook.Inputs{"src"}, Output: true, Name: "nested name", Description: "nested desc", Contact: "team@x"},
		"opt": {ID: "opt", Process: &runbook.ProcessConfig{Type: "analyse"}, Inputs: runbook.Inputs{"src"}, Optional: true},
	}
	return &plan.ExecutionPlan{
		Runbook:   &runbook.Runbook{Name: "n", Description: "d"},
		Artifacts: artifacts,
		DAG: &plan.DAG{
			Nodes:  []string{"ana", "opt", "src"},
			Layers: [][]string{{"src"}, {"ana", "opt"}},
		},
	}
}

func TestBuildCompletedRun(t *testing.T) {
	p := buildPlan()
	result := &exec.ExecutionResult{
		RunID:                "run-1",
		StartTimestamp:       time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		TotalDurationSeconds: 1.5,
		Skipped:              map[string]bool{},
		Artifacts: map[string]exec.ArtifactResult{
			"src": {ArtifactID: "src", Success: true, Message: &schema.Message{Schema: schema.New("A", "1.0.0"), Content: map[string]interface{}{"data": []interface{}{}}}},
			"ana": {ArtifactID: "ana", Success: true, Message: &schema.Message{Schema: schema.New("B", "1.0.0"), Content: map[string]interface{}{"data": []interface{}{1}}}},
			"opt": {ArtifactID: "opt", Success: true},
		},
	}

	doc := Build(result, p)

	assert.Equal(t, FormatVersion, doc.FormatVersion)
	assert.Equal(t, "run-1", doc.Run.ID)
	assert.Equal(t, "completed", doc.Run.Status)
	assert.Equal(t, 1.5, doc.Run.DurationSeconds)
	assert.Empty(t, doc.Runbook.Contact)

	assert.Len(t, doc.Outputs, 1)
	assert.Equal(t, "ana", doc.Outputs[0].ArtifactID)
	assert.Equal(t, "nested name", doc.Outputs[0].Name)
	assert.Equal(t, "nested desc", doc.Outputs[0].Description)
	assert.Equal(t, "team@x", doc.Outputs[0].Contact)
	assert.Equal(t, SchemaRef{Name: "B", Version: "1.0.0"}, doc.Outputs[0].OutputSchema)

	assert.Empty(t, doc.Errors)
	assert.Empty(t, doc.Skipped)
	assert.Equal(t, Summary{Total: 3, Succeeded: 3, Failed: 0, Skipped: 0}, doc.Summary)
}

func TestBuildFailedRunSortsErrorsAndSkipped(t *testing.T) {
	p := buildPlan()
	result := &exec.ExecutionResult{
		RunID:                "run-2",
		StartTimestamp:       time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		TotalDurationSeconds: 0.2,
		Skipped:              map[string]bool{"opt": true},
		Artifacts: map[string]exec.ArtifactResult{
			"src": {ArtifactID: "src", Success: false, Error: "boom"},
			"ana": {ArtifactID: "ana", Success: false, Error: "upstream src failed"},
			"opt": {ArtifactID: "opt", Success: false, Error: "upstream src failed"},
		},
	}

	doc := Build(result, p)

	assert.Equal(t, "failed", doc.Run.Status)
	assert.Equal(t, []string{"opt"}, doc.Skipped)
	if assert.Len(t, doc.Errors, 2) {
		assert.Equal(t, "ana", doc.Errors[0].ArtifactID)
		assert.Equal(t, "src", doc.Errors[1].ArtifactID)
	}
	assert.Equal(t, Summary{Total: 3, Succeeded: 0, Failed: 2, Skipped: 1}, doc.Summary)
}

func TestBuildOmitsUnsuccessfulOutputs(t *testing.T) {
	p := buildPlan()
	result := &exec.ExecutionResult{
		RunID:                "run-3",
		StartTimestamp:       time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		TotalDurationSeconds: 0.1,
		Skipped:              map[string]bool{},
		Artifacts: map[string]exec.ArtifactResult{
			"src": {ArtifactID: "src", Success: true, Message: &schema.Message{Schema: schema.New("A", "1.0.0")}},
			"ana": {ArtifactID: "ana", Success: false, Error: "bad input"},
			"opt": {ArtifactID: "opt", Success: true},
		},
	}

	doc := Build(result, p)

	assert.Empty(t, doc.Outputs)
	assert.Equal(t, "failed", doc.Run.Status)
}
