package observability

import "go.uber.org/zap"

// NewLogger constructs the process-wide diagnostic logger. It is separate
// from Emitter: this is unstructured-to-the-user operator diagnostics
// (pre-skip summaries, artifact failures, retries), while Emitter is
// the stable, consumer-facing NDJSON progress stream.
func NewLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.DisableStacktrace = true
	return cfg.Build()
}
