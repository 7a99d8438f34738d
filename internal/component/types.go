// Package component implements the component factory/registry subsystem
// (spec.md §4.2): typed factories for connectors, processors (analysers and
// classifiers), and exporters, instantiated with dependency injection from a
// process-wide service container.
package component

import (
	"io"

	"github.com/waivern/wcf/internal/schema"
)

// Connector extracts a Message from some external source. Concrete
// connectors (filesystem walkers, database readers, git cloners) are out of
// the core's scope (spec.md §1); the core only ever sees this contract.
type Connector interface {
	GetName() string
	GetSupportedOutputSchemas() []schema.Schema
	Extract(outputSchema schema.Schema) (*schema.Message, error)
}

// Kind distinguishes the two Processor specialisations without resorting to
// interface inheritance (spec.md §9 "Factories as tagged handlers").
type Kind string

const (
	KindAnalyser   Kind = "analyser"
	KindClassifier Kind = "classifier"
)

// InputRequirement names one upstream schema a multi-schema-aware processor
// accepts at a given positional slot.
type InputRequirement struct {
	Name   string
	Schema schema.Schema
}

// Processor is the single contract behind both analysers and classifiers
// (spec.md §6, §9); Kind tags which one a given instance is.
type Processor interface {
	GetName() string
	Kind() Kind
	GetSupportedInputSchemas() []schema.Schema
	GetInputRequirements() [][]InputRequirement
	GetSupportedOutputSchemas() []schema.Schema
	Process(inputSchema, outputSchema schema.Schema, message *schema.Message) (*schema.Message, error)
}

// MultiInputProcessor is an optional capability: a Processor whose Process
// signature accepts the full ordered list of predecessor messages at once
// (spec.md §4.5 merge policy "list"). Capability is queried with a type
// assertion, not declared on the base Processor contract.
type MultiInputProcessor interface {
	ProcessMulti(inputs []*schema.Message, outputSchema schema.Schema) (*schema.Message, error)
}

// FrameworkProvider is a Classifier-only capability (spec.md §6: "Classifier
// contract (specialisation of analyser with an extra get_framework()").
type FrameworkProvider interface {
	GetFramework() string
}

// Exporter renders a completed run's export document to a destination.
// It operates on the document's generic decoded form rather than a
// concrete export.CoreExport type, so this package never needs to import
// the export package (which itself depends on the plan and exec packages,
// which depend on this one).
type Exporter interface {
	GetName() string
	Export(doc map[string]interface{}, dest io.Writer) error
}

// ServiceContainer is a simple keyed bag of process-wide services (LLM
// clients, HTTP clients, credentials providers) constructed once at startup
// and handed to factory constructors for dependency injection (spec.md
// §4.2 "Service container").
type ServiceContainer struct {
	services map[string]interface{}
}

func NewServiceContainer() *ServiceContainer {
	return &ServiceContainer{services: make(map[string]interface{})}
}

// Register adds a named service. Re-registering a name overwrites it —
// callers are expected to wire services once, at startup.
func (c *ServiceContainer) Register(name string, service interface{}) {
	c.services[name] = service
}

func (c *ServiceContainer) Get(name string) (interface{}, bool) {
	s, ok := c.services[name]
	return s, ok
}
