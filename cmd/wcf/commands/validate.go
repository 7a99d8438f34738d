package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/waivern/wcf/internal/wcferrors"
)

// NewValidateRunbookCmd builds `wcf validate-runbook <path>` (spec.md §6):
// runs the runbook through parse, flatten, and plan — the same plan-time
// pipeline `run` uses — without ever constructing or executing a
// component, so planner-level errors (RunbookValidationError,
// CircularDependencyError, SchemaCompatibilityError, ...) surface on their
// own without needing a live runbook's side effects to occur.
func NewValidateRunbookCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate-runbook <path>",
		Short: "Validate a runbook's syntax, structure, and plan without executing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			manifestPath, _ := cmd.Flags().GetString("plugins")
			return runValidateRunbook(args[0], manifestPath)
		},
	}
	return cmd
}

func runValidateRunbook(runbookPath, manifestPath string) error {
	registry, err := buildRegistry(manifestPath)
	if err != nil {
		return err
	}

	p, err := loadAndPlan(runbookPath, registry)
	if err != nil {
		var v *wcferrors.RunbookValidationError
		if errors.As(err, &v) {
			fmt.Printf("runbook %q is invalid:\n", runbookPath)
			for _, violation := range v.Violations {
				fmt.Printf("  - %s\n", violation)
			}
			return fmt.Errorf("%d violation(s) found", len(v.Violations))
		}
		return err
	}

	fmt.Printf("runbook %q is valid: %d artifacts, %d layers\n", runbookPath, len(p.DAG.Nodes), len(p.DAG.Layers))
	return nil
}
