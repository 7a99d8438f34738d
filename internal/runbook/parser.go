package runbook

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/waivern/wcf/internal/wcferrors"
)

// Loader reads a runbook document from disk. The default implementation is
// YAML, grounded on the teacher's pipeline.YAMLPipelineLoader and
// manifest.yamlLoader, but the core depends only on the parsed tree shape
// (spec.md §4.3) so an alternate Loader could parse another structured
// format without touching downstream stages.
type Loader interface {
	Load(path string) (*Runbook, error)
}

// YAMLLoader is the default Loader.
type YAMLLoader struct{}

func NewYAMLLoader() *YAMLLoader { return &YAMLLoader{} }

func (l *YAMLLoader) Load(path string) (*Runbook, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &wcferrors.RunbookLoadError{Path: path, Err: err}
	}
	rb, err := l.Unmarshal(data)
	if err != nil {
		return nil, &wcferrors.RunbookLoadError{Path: path, Err: err}
	}
	rb.Path = path
	if err := Validate(rb); err != nil {
		return nil, err
	}
	return rb, nil
}

// Unmarshal parses raw YAML bytes into a Runbook, without validating or
// recording a source path. Load calls it after reading the file; it is
// also exposed for tests.
func (l *YAMLLoader) Unmarshal(data []byte) (*Runbook, error) {
	var rb Runbook
	if err := yaml.Unmarshal(data, &rb); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}
	for id, artifact := range rb.Artifacts {
		artifact.ID = id
		rb.Artifacts[id] = artifact
	}
	return &rb, nil
}

// Validate runs the required-field, enum, and mutual-exclusion checks
// described in spec.md §4.3 ("Parser... fails with RunbookValidationError
// enumerating all violations in one pass").
func Validate(rb *Runbook) error {
	var violations []string

	if rb.Name == "" {
		violations = append(violations, "runbook: \"name\" is required")
	}
	if rb.Description == "" {
		violations = append(violations, "runbook: \"description\" is required")
	}

	ids := make([]string, 0, len(rb.Artifacts))
	for id := range rb.Artifacts {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		a := rb.Artifacts[id]
		violations = append(violations, validateArtifact(id, a)...)
	}

	for name, inDecl := range rb.Inputs {
		if inDecl.InputSchema == "" {
			violations = append(violations, fmt.Sprintf("input %q: \"input_schema\" is required", name))
		}
	}

	for name, outDecl := range rb.Outputs {
		if outDecl.Artifact == "" {
			violations = append(violations, fmt.Sprintf("output %q: \"artifact\" is required", name))
			continue
		}
		if _, ok := rb.Artifacts[outDecl.Artifact]; !ok {
			violations = append(violations, fmt.Sprintf("output %q: references unknown artifact %q", name, outDecl.Artifact))
		}
	}

	if len(violations) > 0 {
		return &wcferrors.RunbookValidationError{Path: rb.Path, Violations: violations}
	}
	return nil
}

// validateArtifact enforces spec.md §3's invariant: exactly one of
// {source, process, child_runbook} is set, and a processed artifact
// declares at least one input.
func validateArtifact(id string, a Artifact) []string {
	var violations []string

	set := 0
	if a.Source != nil {
		set++
	}
	if a.Process != nil {
		set++
	}
	if a.ChildRunbook != nil {
		set++
	}
	switch set {
	case 0:
		violations = append(violations, fmt.Sprintf("artifact %q: exactly one of source, process, child_runbook must be set (found none)", id))
	case 1:
		// ok
	default:
		violations = append(violations, fmt.Sprintf("artifact %q: exactly one of source, process, child_runbook must be set (found %d)", id, set))
	}

	if a.Process != nil {
		if a.Process.Type == "" {
			violations = append(violations, fmt.Sprintf("artifact %q: process.type is required", id))
		}
		if len(a.Inputs) == 0 {
			violations = append(violations, fmt.Sprintf("artifact %q: a processed artifact must declare at least one input", id))
		}
	}
	if a.Source != nil && a.Source.Type == "" {
		violations = append(violations, fmt.Sprintf("artifact %q: source.type is required", id))
	}
	if a.ChildRunbook != nil {
		if a.ChildRunbook.Path == "" {
			violations = append(violations, fmt.Sprintf("artifact %q: child_runbook.path is required", id))
		}
		if a.ChildRunbook.Output != "" && len(a.ChildRunbook.OutputMapping) > 0 {
			violations = append(violations, fmt.Sprintf("artifact %q: child_runbook must set either output or output_mapping, not both", id))
		}
	}
	if a.Merge != "" {
		switch a.Merge {
		case MergeFirst, MergeConcat, MergeList:
		default:
			violations = append(violations, fmt.Sprintf("artifact %q: merge %q is not one of first, concat, list", id, a.Merge))
		}
	}

	return violations
}
