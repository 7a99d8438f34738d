// Package commands wires the wcf CLI surface (spec.md §6): one cobra
// command per subcommand, following the teacher's cmd/wave/commands
// layout.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/waivern/wcf/internal/component"
	"github.com/waivern/wcf/internal/observability"
)

// NewRootCmd builds the wcf root command and wires every subcommand.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "wcf",
		Short: "Waivern Compliance Framework orchestration engine",
		Long: `wcf discovers, classifies, and reports regulatory findings by executing
a runbook: a declarative DAG of connectors, analysers, and classifiers wired
together by schema-typed messages.

This binary ships no concrete connectors, analysers, classifiers, rulesets,
or exporters; those are registered by third-party plugins named in a
--plugins manifest. Without one, the component registry is empty and any
run will fail with an UnsupportedProviderError naming the missing type.`,
	}

	root.PersistentFlags().String("plugins", "", "path to a TOML plugin manifest registering connectors/processors/exporters/rulesets")
	root.PersistentFlags().String("log-level", "info", "internal diagnostic log level: debug, info, warn, error")
	root.PersistentFlags().BoolP("verbose", "v", false, "emit structured artifact-lifecycle events to stderr")

	root.AddCommand(NewRunCmd())
	root.AddCommand(NewValidateRunbookCmd())
	root.AddCommand(NewListConnectorsCmd())
	root.AddCommand(NewListProcessorsCmd())
	root.AddCommand(NewListExportersCmd())
	root.AddCommand(NewListRulesetsCmd())

	return root
}

// buildRegistry constructs a component.Registry and activates the plugin
// manifest at manifestPath, if one was given. An empty path is not an
// error — it yields an empty registry, matching a runbook with no
// source/process artifacts (unusual but not invalid on its own).
func buildRegistry(manifestPath string) (*component.Registry, error) {
	registry := component.NewRegistry(nil)
	if manifestPath == "" {
		return registry, nil
	}
	manifest, err := component.LoadManifest(manifestPath)
	if err != nil {
		return nil, err
	}
	if err := registry.Activate(manifest); err != nil {
		return nil, err
	}
	return registry, nil
}

// buildLogger constructs the internal diagnostic logger at the requested
// level. The verbose case delegates to observability.NewLogger's
// development config; --log-level only applies to the non-verbose
// production config, since development mode always logs at debug.
func buildLogger(levelName string, verbose bool) (*zap.Logger, error) {
	if verbose {
		return observability.NewLogger(true)
	}
	var level zap.AtomicLevel
	switch levelName {
	case "debug":
		level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "warn":
		level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	case "info", "":
		level = zap.NewAtomicLevelAt(zap.InfoLevel)
	default:
		return nil, fmt.Errorf("unknown --log-level %q (expected debug, info, warn, or error)", levelName)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = level
	cfg.DisableStacktrace = true
	return cfg.Build()
}
