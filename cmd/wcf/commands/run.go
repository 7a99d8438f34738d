package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/waivern/wcf/internal/component"
	"github.com/waivern/wcf/internal/exec"
	"github.com/waivern/wcf/internal/export"
	"github.com/waivern/wcf/internal/observability"
	"github.com/waivern/wcf/internal/schema"
)

type runOptions struct {
	OutputDir string
	Output    string
	Exporter  string
}

// NewRunCmd builds `wcf run <runbook-path>` (spec.md §6).
func NewRunCmd() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run <runbook-path>",
		Short: "Execute a runbook and write its export document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			manifestPath, _ := cmd.Flags().GetString("plugins")
			logLevel, _ := cmd.Flags().GetString("log-level")
			verbose, _ := cmd.Flags().GetBool("verbose")
			return runRun(args[0], opts, manifestPath, logLevel, verbose)
		},
	}

	cmd.Flags().StringVar(&opts.OutputDir, "output-dir", "", "directory to write the export document into (default: write to stdout)")
	cmd.Flags().StringVar(&opts.Output, "output", "", "explicit export document path (overrides --output-dir)")
	cmd.Flags().StringVar(&opts.Exporter, "exporter", "", "registered exporter type to use (default: write the JSON export document directly)")

	return cmd
}

func runRun(runbookPath string, opts runOptions, manifestPath, logLevel string, verbose bool) error {
	registry, err := buildRegistry(manifestPath)
	if err != nil {
		return err
	}

	p, err := loadAndPlan(runbookPath, registry)
	if err != nil {
		return err
	}

	logger, err := buildLogger(logLevel, verbose)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	var emitter observability.Emitter = observability.NoopEmitter{}
	if verbose {
		emitter = observability.NewNDJSONEmitter(os.Stderr)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		<-sigCh
		cancel()
	}()

	schemaRegistry := schema.Default()
	executor := exec.NewExecutor(registry, schemaRegistry,
		exec.WithEmitter(emitter),
		exec.WithDiagnosticLogger(logger),
	)

	result, err := executor.Run(ctx, p)
	if err != nil {
		return fmt.Errorf("execution failed to start: %w", err)
	}

	doc := export.Build(result, p)

	dest, closeDest, err := resolveDestination(opts, result.RunID)
	if err != nil {
		return err
	}
	defer closeDest()

	if err := writeExport(doc, opts.Exporter, registry, dest); err != nil {
		return err
	}

	if doc.Run.Status == "failed" {
		return fmt.Errorf("run %s failed (%d of %d artifacts failed)", result.RunID, doc.Summary.Failed, doc.Summary.Total)
	}
	return nil
}

// resolveDestination picks the export document's output writer: an
// explicit --output path, a generated name under --output-dir, or stdout
// when neither flag is set.
func resolveDestination(opts runOptions, runID string) (dest *os.File, closeFn func(), err error) {
	path := opts.Output
	if path == "" && opts.OutputDir != "" {
		path = filepath.Join(opts.OutputDir, runID+".json")
	}
	if path == "" {
		return os.Stdout, func() {}, nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("failed to create output directory %q: %w", dir, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file %q: %w", path, err)
	}
	return f, func() { f.Close() }, nil
}

// writeExport renders doc through a registered exporter when --exporter
// names one, otherwise writes the CoreExport document as JSON directly
// (component.Exporter takes a generic map[string]interface{}, so the
// document is round-tripped through encoding/json to reach that shape).
func writeExport(doc *export.CoreExport, exporterName string, registry *component.Registry, dest io.Writer) error {
	if exporterName == "" {
		enc := json.NewEncoder(dest)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	var asMap map[string]interface{}
	if err := json.Unmarshal(raw, &asMap); err != nil {
		return err
	}

	exporter, err := registry.CreateExporter(exporterName, nil)
	if err != nil {
		return err
	}
	return exporter.Export(asMap, dest)
}
