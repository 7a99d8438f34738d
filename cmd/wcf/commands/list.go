package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/waivern/wcf/internal/component"
)

// NewListConnectorsCmd builds `wcf ls-connectors` (spec.md §6).
func NewListConnectorsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls-connectors",
		Short: "List registered connector types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, (*component.Registry).ListConnectors)
		},
	}
}

// NewListProcessorsCmd builds `wcf ls-processors` (spec.md §6).
func NewListProcessorsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls-processors",
		Short: "List registered processor (analyser/classifier) types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, (*component.Registry).ListProcessors)
		},
	}
}

// NewListExportersCmd builds `wcf ls-exporters` (spec.md §6).
func NewListExportersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls-exporters",
		Short: "List registered exporter types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, (*component.Registry).ListExporters)
		},
	}
}

// NewListRulesetsCmd builds `wcf ls-rulesets` (spec.md §6). The core never
// loads ruleset content (spec.md §1 Non-goals); this only reports the
// names a deployment's plugin manifest declared available.
func NewListRulesetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls-rulesets",
		Short: "List ruleset names declared by the plugin manifest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, (*component.Registry).ListRulesets)
		},
	}
}

func runList(cmd *cobra.Command, names func(*component.Registry) []string) error {
	manifestPath, _ := cmd.Flags().GetString("plugins")
	registry, err := buildRegistry(manifestPath)
	if err != nil {
		return err
	}
	for _, name := range names(registry) {
		fmt.Println(name)
	}
	return nil
}
