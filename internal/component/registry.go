package component

import (
	"sort"
	"sync"

	"github.com/waivern/wcf/internal/schema"
	"github.com/waivern/wcf/internal/wcferrors"
)

// Registry holds the three disjoint factory maps (spec.md §4.2) and the
// shared service container. It is a process-wide singleton in practice
// (wired once at startup via register_schemas()-style init hooks) but is
// constructed explicitly here rather than as a package-level global, so
// tests can build isolated instances.
type Registry struct {
	mu sync.RWMutex

	connectors map[string]ConnectorFactory
	processors map[string]ProcessorFactory
	exporters  map[string]ExporterFactory

	// rulesets holds only names: the core never loads ruleset content
	// (spec.md §1 Non-goals), but "ls-rulesets" and a typed
	// RulesetNotFoundError still need somewhere to register against.
	rulesets map[string]bool

	services *ServiceContainer
}

func NewRegistry(services *ServiceContainer) *Registry {
	if services == nil {
		services = NewServiceContainer()
	}
	return &Registry{
		connectors: make(map[string]ConnectorFactory),
		processors: make(map[string]ProcessorFactory),
		exporters:  make(map[string]ExporterFactory),
		rulesets:   make(map[string]bool),
		services:   services,
	}
}

// RegisterRuleset declares a ruleset name as available, without any
// associated content (spec.md §1 Non-goals: "ruleset content").
func (r *Registry) RegisterRuleset(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rulesets[name] = true
}

// ListRulesets returns a defensive, sorted copy of the registered names.
func (r *Registry) ListRulesets() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.rulesets)
}

// HasRuleset reports whether name was registered, for callers that need a
// typed miss (wcferrors.RulesetNotFoundError) rather than an empty list.
func (r *Registry) HasRuleset(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rulesets[name]
}

func (r *Registry) Services() *ServiceContainer { return r.services }

func (r *Registry) RegisterConnectorFactory(f ConnectorFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connectors[f.ComponentName()] = f
}

func (r *Registry) RegisterProcessorFactory(f ProcessorFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.processors[f.ComponentName()] = f
}

func (r *Registry) RegisterExporterFactory(f ExporterFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exporters[f.ComponentName()] = f
}

// ListConnectors, ListProcessors, and ListExporters return defensive,
// sorted copies of the registered type names (spec.md §4.2; backs the CLI's
// ls-connectors/ls-processors/ls-exporters, and mirrors the original
// Executor's "list_available_* returns a defensive copy" behaviour).
func (r *Registry) ListConnectors() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.connectors)
}

func (r *Registry) ListProcessors() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.processors)
}

func (r *Registry) ListExporters() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.exporters)
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (r *Registry) connectorFactory(componentType string) (ConnectorFactory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.connectors[componentType]
	return f, ok
}

func (r *Registry) processorFactory(componentType string) (ProcessorFactory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.processors[componentType]
	return f, ok
}

func (r *Registry) exporterFactory(componentType string) (ExporterFactory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.exporters[componentType]
	return f, ok
}

// CreateConnector looks up the named connector factory, validates config
// via can_create, and constructs the component.
func (r *Registry) CreateConnector(componentType string, config map[string]interface{}) (Connector, error) {
	f, ok := r.connectorFactory(componentType)
	if !ok {
		return nil, &wcferrors.UnsupportedProviderError{Kind: "connector", Type: componentType}
	}
	if !f.CanCreate(config) {
		return nil, &wcferrors.ConnectorConfigError{ConnectorType: componentType, Reason: "configuration rejected by can_create"}
	}
	return f.Create(config, r.services)
}

func (r *Registry) CreateProcessor(componentType string, config map[string]interface{}) (Processor, error) {
	f, ok := r.processorFactory(componentType)
	if !ok {
		return nil, &wcferrors.UnsupportedProviderError{Kind: "processor", Type: componentType}
	}
	if !f.CanCreate(config) {
		return nil, &wcferrors.ConnectorConfigError{ConnectorType: componentType, Reason: "configuration rejected by can_create"}
	}
	return f.Create(config, r.services)
}

func (r *Registry) CreateExporter(componentType string, config map[string]interface{}) (Exporter, error) {
	f, ok := r.exporterFactory(componentType)
	if !ok {
		return nil, &wcferrors.UnsupportedProviderError{Kind: "exporter", Type: componentType}
	}
	if !f.CanCreate(config) {
		return nil, &wcferrors.ConnectorConfigError{ConnectorType: componentType, Reason: "configuration rejected by can_create"}
	}
	return f.Create(config, r.services)
}

// ProcessorFactoryFor exposes the raw factory (not an instantiated
// component), used by the planner to inspect get_input_requirements() and
// get_output_schemas() without constructing the component itself.
func (r *Registry) ProcessorFactoryFor(componentType string) (ProcessorFactory, bool) {
	return r.processorFactory(componentType)
}

func (r *Registry) ConnectorFactoryFor(componentType string) (ConnectorFactory, bool) {
	return r.connectorFactory(componentType)
}

// ConnectorOutputSchema and ProcessorOutputSchema implement
// runbook.SchemaResolver by structural typing — the runbook package never
// imports this one — returning the factory's first advertised output
// schema, as used by the flattener (spec.md §4.3 step 5). The planner's
// schema inference reads the factories directly via ConnectorFactoryFor
// and ProcessorFactoryFor instead.
func (r *Registry) ConnectorOutputSchema(connectorType string) (schema.Schema, bool) {
	f, ok := r.connectorFactory(connectorType)
	if !ok {
		return schema.Schema{}, false
	}
	outs := f.GetOutputSchemas()
	if len(outs) == 0 {
		return schema.Schema{}, false
	}
	return outs[0], true
}

func (r *Registry) ProcessorOutputSchema(processorType string) (schema.Schema, bool) {
	f, ok := r.processorFactory(processorType)
	if !ok {
		return schema.Schema{}, false
	}
	outs := f.GetOutputSchemas()
	if len(outs) == 0 {
		return schema.Schema{}, false
	}
	return outs[0], true
}
