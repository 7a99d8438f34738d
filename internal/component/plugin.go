package component

import (
	"fmt"

	"github.com/BurntSushi/toml"

	"github.com/waivern/wcf/internal/wcferrors"
)

// Third-party packages announce themselves by registering a named
// constructor in one of these tables from their own init(), the same
// pattern database/sql drivers use to register themselves with
// sql.Register. The host process never does reflection-based dynamic
// loading; the TOML manifest only selects, by name, which of the already
// package-linked constructors to activate for a given run (spec.md §4.2:
// "third-party packages announce themselves through a declared entry-point
// mechanism").
var (
	connectorPlugins = map[string]func() ConnectorFactory{}
	processorPlugins = map[string]func() ProcessorFactory{}
	exporterPlugins  = map[string]func() ExporterFactory{}
)

func RegisterConnectorPlugin(name string, ctor func() ConnectorFactory) {
	connectorPlugins[name] = ctor
}

func RegisterProcessorPlugin(name string, ctor func() ProcessorFactory) {
	processorPlugins[name] = ctor
}

func RegisterExporterPlugin(name string, ctor func() ExporterFactory) {
	exporterPlugins[name] = ctor
}

// Manifest is the TOML document naming which registered plugin
// constructors to activate. A typical manifest lives alongside the
// binary's configuration and is loaded once at startup.
type Manifest struct {
	Connectors []string `toml:"connectors"`
	Processors []string `toml:"processors"`
	Exporters  []string `toml:"exporters"`

	// Rulesets names ruleset catalogues a deployment makes available.
	// Unlike Connectors/Processors/Exporters these have no constructor —
	// the core never loads ruleset content (spec.md §1 Non-goals) — so
	// Activate just records the names for "ls-rulesets".
	Rulesets []string `toml:"rulesets"`
}

func LoadManifest(path string) (*Manifest, error) {
	var m Manifest
	if _, err := toml.DecodeFile(path, &m); err != nil {
		return nil, fmt.Errorf("failed to load plugin manifest %q: %w", path, err)
	}
	return &m, nil
}

// Activate registers every plugin named in the manifest against r, failing
// with UnsupportedProviderError on the first name with no linked
// constructor.
func (r *Registry) Activate(m *Manifest) error {
	for _, name := range m.Connectors {
		ctor, ok := connectorPlugins[name]
		if !ok {
			return &wcferrors.UnsupportedProviderError{Kind: "connector", Type: name}
		}
		r.RegisterConnectorFactory(ctor())
	}
	for _, name := range m.Processors {
		ctor, ok := processorPlugins[name]
		if !ok {
			return &wcferrors.UnsupportedProviderError{Kind: "processor", Type: name}
		}
		r.RegisterProcessorFactory(ctor())
	}
	for _, name := range m.Exporters {
		ctor, ok := exporterPlugins[name]
		if !ok {
			return &wcferrors.UnsupportedProviderError{Kind: "exporter", Type: name}
		}
		r.RegisterExporterFactory(ctor())
	}
	for _, name := range m.Rulesets {
		r.RegisterRuleset(name)
	}
	return nil
}
