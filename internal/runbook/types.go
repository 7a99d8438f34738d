// Package runbook implements the runbook document model (spec.md §3, §6),
// its YAML parser, and the child-runbook flattener (spec.md §4.3).
package runbook

// Runbook is the strongly-typed in-memory representation of a runbook
// document (spec.md §3, §6). Inputs/Outputs are only present on runbooks
// meant to be used as a child of another runbook.
type Runbook struct {
	Name        string                `yaml:"name"`
	Description string                `yaml:"description"`
	Contact     string                `yaml:"contact,omitempty"`
	Inputs      map[string]InputDecl  `yaml:"inputs,omitempty"`
	Outputs     map[string]OutputDecl `yaml:"outputs,omitempty"`
	Artifacts   map[string]Artifact   `yaml:"artifacts"`
	Config      Config                `yaml:"config,omitempty"`

	// Path is the filesystem path the runbook was loaded from, used to
	// resolve relative child_runbook paths. Empty for in-memory runbooks.
	Path string `yaml:"-"`
}

// InputDecl declares an input this runbook expects a caller (a parent
// runbook's child_runbook input_mapping) to supply.
type InputDecl struct {
	InputSchema string `yaml:"input_schema"`
	Optional    bool   `yaml:"optional,omitempty"`
}

// OutputDecl maps a logical output name to an internal artifact id.
type OutputDecl struct {
	Artifact string `yaml:"artifact"`
}

// Config holds runbook-wide settings.
type Config struct {
	TemplatePaths []string `yaml:"template_paths,omitempty"`
}

// Artifact is a node in the runbook graph (spec.md §3). Exactly one of
// Source, Process, ChildRunbook is set — validated by the parser.
type Artifact struct {
	ID string `yaml:"-"`

	Source       *SourceConfig  `yaml:"source,omitempty"`
	Process      *ProcessConfig `yaml:"process,omitempty"`
	ChildRunbook *ChildRunbook  `yaml:"child_runbook,omitempty"`

	Inputs Inputs `yaml:"inputs,omitempty"`
	Merge  string `yaml:"merge,omitempty"`

	OutputSchema string `yaml:"output_schema,omitempty"`
	Output       bool   `yaml:"output,omitempty"`
	Optional     bool   `yaml:"optional,omitempty"`

	// Name, Description, and Contact are not directly authorable; the
	// flattener copies them from a child runbook's own header onto the
	// artifact its output aliases to, so the export (spec.md §4.6) can
	// attribute a nested output back to the reusable runbook it came from.
	Name        string `yaml:"-"`
	Description string `yaml:"-"`
	Contact     string `yaml:"-"`

	// Execute defaults to true; explicit false marks the artifact (and
	// non-optional transitive dependents) pre-skipped (spec.md §4.4 step 5).
	Execute *bool `yaml:"execute,omitempty"`
}

// ExecuteOrDefault returns Execute, defaulting to true when unset.
func (a Artifact) ExecuteOrDefault() bool {
	if a.Execute == nil {
		return true
	}
	return *a.Execute
}

// SourceConfig names a connector and its configuration.
type SourceConfig struct {
	Type       string                 `yaml:"type"`
	Properties map[string]interface{} `yaml:"properties,omitempty"`
}

// ProcessConfig names a processor (analyser or classifier) and its
// configuration. The upstream artifacts it consumes are the enclosing
// Artifact's Inputs.
type ProcessConfig struct {
	Type       string                 `yaml:"type"`
	Properties map[string]interface{} `yaml:"properties,omitempty"`

	// MaxRetries bounds the total number of Process attempts (the first
	// call plus any retries, with linear backoff between them) before the
	// failure is surfaced, defaulting to 1 (no retry) when unset or
	// non-positive.
	MaxRetries int `yaml:"max_retries,omitempty"`
}

// MaxRetriesOrDefault returns MaxRetries, defaulting to 1 (no retry) when
// it is unset or non-positive.
func (p ProcessConfig) MaxRetriesOrDefault() int {
	if p.MaxRetries <= 0 {
		return 1
	}
	return p.MaxRetries
}

// ChildRunbook directs the flattener to inline a nested runbook document
// in place of this artifact (spec.md §4.3).
type ChildRunbook struct {
	Path          string            `yaml:"path"`
	InputMapping  map[string]string `yaml:"input_mapping,omitempty"`
	Output        string            `yaml:"output,omitempty"`
	OutputMapping map[string]string `yaml:"output_mapping,omitempty"`
}

// Inputs holds an artifact's upstream dependency ids, preserving
// declaration order (spec.md: "single string or ordered list").
// Order matters: §5 guarantees a processed artifact observes predecessor
// outputs in this declared order regardless of completion order.
type Inputs []string

// UnmarshalYAML accepts either a single scalar string or a sequence of
// strings, matching spec.md §3's "single string or ordered list" contract.
func (in *Inputs) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var single string
	if err := unmarshal(&single); err == nil {
		*in = Inputs{single}
		return nil
	}
	var list []string
	if err := unmarshal(&list); err != nil {
		return err
	}
	*in = Inputs(list)
	return nil
}

// MarshalYAML renders a single-element Inputs as a scalar, matching the
// shape a hand-written runbook would use.
func (in Inputs) MarshalYAML() (interface{}, error) {
	if len(in) == 1 {
		return in[0], nil
	}
	return []string(in), nil
}

// Merge fan-in policies (spec.md §4.5).
const (
	MergeFirst  = "first"
	MergeConcat = "concat"
	MergeList   = "list"
)
