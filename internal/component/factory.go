package component

import "github.com/waivern/wcf/internal/schema"

// ConnectorFactory constructs Connector instances for one component-type
// string (the runbook's source.type field).
type ConnectorFactory interface {
	ComponentName() string
	CanCreate(config map[string]interface{}) bool
	Create(config map[string]interface{}, services *ServiceContainer) (Connector, error)
	GetOutputSchemas() []schema.Schema
	ServiceDependencies() map[string]string
}

// ProcessorFactory constructs Processor instances (analysers or
// classifiers) for one component-type string (the runbook's process.type
// field).
type ProcessorFactory interface {
	ComponentName() string
	CanCreate(config map[string]interface{}) bool
	Create(config map[string]interface{}, services *ServiceContainer) (Processor, error)
	GetInputRequirements() [][]InputRequirement
	GetOutputSchemas() []schema.Schema
	ServiceDependencies() map[string]string
}

// ExporterFactory constructs Exporter instances named by the CLI's
// --exporter flag.
type ExporterFactory interface {
	ComponentName() string
	CanCreate(config map[string]interface{}) bool
	Create(config map[string]interface{}, services *ServiceContainer) (Exporter, error)
	ServiceDependencies() map[string]string
}
