package commands

import (
	"github.com/waivern/wcf/internal/component"
	"github.com/waivern/wcf/internal/plan"
	"github.com/waivern/wcf/internal/runbook"
)

// loadAndPlan runs the full plan-time pipeline (spec.md §4.3-§4.4):
// parse, flatten, and plan. Shared by `run` and `validate-runbook` since
// both need a fully-built ExecutionPlan to surface planner-level errors —
// validate-runbook just stops short of calling the executor.
func loadAndPlan(runbookPath string, registry *component.Registry) (*plan.ExecutionPlan, error) {
	rb, err := runbook.NewYAMLLoader().Load(runbookPath)
	if err != nil {
		return nil, err
	}

	flattener := runbook.NewFlattener(registry)
	flat, _, err := flattener.Flatten(rb)
	if err != nil {
		return nil, err
	}

	return plan.NewPlanner(registry).Plan(rb, flat)
}
