// Package wcferrors defines the unified error taxonomy shared by every
// stage of the pipeline (parser, flattener, planner, executor). Each kind
// is a distinct Go type so callers can use errors.As to recover structured
// detail instead of parsing messages.
package wcferrors

import "fmt"

// RunbookLoadError wraps an I/O or parse failure on a runbook file.
type RunbookLoadError struct {
	Path string
	Err  error
}

func (e *RunbookLoadError) Error() string {
	return fmt.Sprintf("failed to load runbook %q: %v", e.Path, e.Err)
}

func (e *RunbookLoadError) Unwrap() error { return e.Err }

// RunbookValidationError aggregates every structural/referential violation
// found in one validation pass, so a caller sees all problems at once
// instead of fixing them one at a time.
type RunbookValidationError struct {
	Path       string
	Violations []string
}

func (e *RunbookValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("runbook %q is invalid: %d violation(s): %v", e.Path, len(e.Violations), e.Violations)
	}
	return fmt.Sprintf("runbook is invalid: %d violation(s): %v", len(e.Violations), e.Violations)
}

// CircularRunbookError reports a child-runbook inclusion cycle detected by
// the flattener (A embeds B embeds A).
type CircularRunbookError struct {
	Path string
}

func (e *CircularRunbookError) Error() string {
	return fmt.Sprintf("circular runbook reference detected: %s", e.Path)
}

// CircularDependencyError reports an artifact dependency cycle found by the
// planner, listing the full cycle for diagnosis.
type CircularDependencyError struct {
	Cycle []string
}

func (e *CircularDependencyError) Error() string {
	return fmt.Sprintf("cycle detected among artifacts: %v", e.Cycle)
}

// MissingInputMappingError reports a required child-runbook input that was
// not supplied by the parent's input_mapping.
type MissingInputMappingError struct {
	ArtifactID string
	InputName  string
}

func (e *MissingInputMappingError) Error() string {
	return fmt.Sprintf("artifact %q: child runbook requires input %q but it is not mapped", e.ArtifactID, e.InputName)
}

// InvalidOutputMappingError reports an output/output_mapping entry that
// names a non-existent child output, or a colliding alias target.
type InvalidOutputMappingError struct {
	Reason string
}

func (e *InvalidOutputMappingError) Error() string {
	return fmt.Sprintf("invalid output mapping: %s", e.Reason)
}

// SchemaCompatibilityError reports that a parent artifact's output schema
// does not match the schema a child (or downstream processor) declares for
// that input.
type SchemaCompatibilityError struct {
	ArtifactID string
	Reason     string
}

func (e *SchemaCompatibilityError) Error() string {
	return fmt.Sprintf("artifact %q: %s", e.ArtifactID, e.Reason)
}

// SchemaNotFoundError reports that no registered search path produced a
// document for the requested (name, version).
type SchemaNotFoundError struct {
	Name    string
	Version string
}

func (e *SchemaNotFoundError) Error() string {
	return fmt.Sprintf("schema not found: %s/%s", e.Name, e.Version)
}

// SchemaLoadError reports that a schema document was found but failed to
// load or its declared version did not match the requested version.
type SchemaLoadError struct {
	Name    string
	Version string
	Reason  string
}

func (e *SchemaLoadError) Error() string {
	return fmt.Sprintf("failed to load schema %s/%s: %s", e.Name, e.Version, e.Reason)
}

// ConnectorConfigError reports that a connector's configuration failed
// validation (unknown fields, unsupported schema, etc.) before extraction
// was attempted.
type ConnectorConfigError struct {
	ConnectorType string
	Reason        string
}

func (e *ConnectorConfigError) Error() string {
	return fmt.Sprintf("connector %q config error: %s", e.ConnectorType, e.Reason)
}

// ConnectorExtractionError reports that a connector's Extract call failed.
type ConnectorExtractionError struct {
	ConnectorType string
	Err           error
}

func (e *ConnectorExtractionError) Error() string {
	return fmt.Sprintf("connector %q extraction failed: %v", e.ConnectorType, e.Err)
}

func (e *ConnectorExtractionError) Unwrap() error { return e.Err }

// AnalyserError reports a processing failure inside an Analyser component.
type AnalyserError struct {
	AnalyserType string
	Err          error
}

func (e *AnalyserError) Error() string {
	return fmt.Sprintf("analyser %q failed: %v", e.AnalyserType, e.Err)
}

func (e *AnalyserError) Unwrap() error { return e.Err }

// ClassifierError reports a processing failure inside a Classifier
// component (a Processor with Kind() == KindClassifier).
type ClassifierError struct {
	ClassifierType string
	Err            error
}

func (e *ClassifierError) Error() string {
	return fmt.Sprintf("classifier %q failed: %v", e.ClassifierType, e.Err)
}

func (e *ClassifierError) Unwrap() error { return e.Err }

// UnsupportedProviderError reports a runbook naming a connector/processor
// type for which no factory is registered.
type UnsupportedProviderError struct {
	Kind string // "connector", "processor", "exporter"
	Type string
}

func (e *UnsupportedProviderError) Error() string {
	return fmt.Sprintf("unsupported %s type: %q", e.Kind, e.Type)
}

// RulesetNotFoundError reports that a named ruleset could not be located.
// The core never loads ruleset content itself; this exists so registry
// lookups performed on its behalf (e.g. "ls-rulesets") have a typed miss.
type RulesetNotFoundError struct {
	Name string
}

func (e *RulesetNotFoundError) Error() string {
	return fmt.Sprintf("ruleset not found: %q", e.Name)
}

// ExecutorError reports an irrecoverable orchestration failure that
// prevents the run from starting at all (distinct from a per-artifact
// failure, which is captured in ArtifactResult instead).
type ExecutorError struct {
	Reason string
	Err    error
}

func (e *ExecutorError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("executor error: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("executor error: %s", e.Reason)
}

func (e *ExecutorError) Unwrap() error { return e.Err }

// StepError (named for the artifact it concerns) wraps a per-artifact
// failure with the artifact ID for programmatic recovery via errors.As,
// mirroring the teacher's pipeline.StepError.
type StepError struct {
	ArtifactID string
	Err        error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("artifact %q failed: %v", e.ArtifactID, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }
