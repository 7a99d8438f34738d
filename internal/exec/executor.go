package exec

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/waivern/wcf/internal/component"
	"github.com/waivern/wcf/internal/observability"
	"github.com/waivern/wcf/internal/plan"
	"github.com/waivern/wcf/internal/runbook"
	"github.com/waivern/wcf/internal/runid"
	"github.com/waivern/wcf/internal/schema"
	"github.com/waivern/wcf/internal/wcferrors"
)

// Executor runs an ExecutionPlan's DAG layer by layer (spec.md §4.5).
type Executor struct {
	registry       *component.Registry
	schemaRegistry *schema.Registry
	concurrency    int

	// emitter carries the public, structured artifact-lifecycle event
	// stream (spec.md §7 "structured logs available when verbose output is
	// enabled"). diag is a separate internal diagnostic channel for
	// operator-facing warnings the public event stream has no shape for
	// (e.g. pre-skip propagation counts) — grounded on the teacher's split
	// between internal/event (public) and an internal zap logger.
	emitter observability.Emitter
	diag    *zap.SugaredLogger
}

// Option configures an Executor.
type Option func(*Executor)

// WithConcurrency overrides the default per-layer worker limit (which is
// otherwise one worker per available CPU, spec.md §5).
func WithConcurrency(n int) Option {
	return func(e *Executor) { e.concurrency = n }
}

// WithEmitter sets the public event stream (default: observability.NoopEmitter).
func WithEmitter(emitter observability.Emitter) Option {
	return func(e *Executor) { e.emitter = emitter }
}

// WithDiagnosticLogger sets the internal zap logger (default: zap.NewNop()).
func WithDiagnosticLogger(logger *zap.Logger) Option {
	return func(e *Executor) { e.diag = logger.Sugar() }
}

func NewExecutor(registry *component.Registry, schemaRegistry *schema.Registry, opts ...Option) *Executor {
	e := &Executor{
		registry:       registry,
		schemaRegistry: schemaRegistry,
		emitter:        observability.NoopEmitter{},
		diag:           zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes the plan to completion, honouring ctx cancellation and
// deadline as described in spec.md §5. It never returns a non-nil error
// for per-artifact failures — those are captured in the returned
// ExecutionResult — only for something that prevents the run from
// producing a result at all (none currently).
func (e *Executor) Run(ctx context.Context, p *plan.ExecutionPlan) (*ExecutionResult, error) {
	start := time.Now()

	result := &ExecutionResult{
		RunID:          runid.New(),
		StartTimestamp: start,
		Artifacts:      make(map[string]ArtifactResult, len(p.DAG.Nodes)),
		Skipped:        make(map[string]bool),
	}

	e.emitter.Emit(observability.Event{
		Timestamp: start,
		Kind:      observability.EventRunStarted,
		RunID:     result.RunID,
		Message:   fmt.Sprintf("starting run for runbook %q", p.Runbook.Name),
	})

	status := make(map[string]string, len(p.DAG.Nodes))
	messages := make(map[string]*schema.Message, len(p.DAG.Nodes))
	var mu sync.Mutex

	recordSkip := func(id, reason string) {
		mu.Lock()
		defer mu.Unlock()
		status[id] = "skipped"
		result.Skipped[id] = true
		result.Artifacts[id] = ArtifactResult{ArtifactID: id, Success: false, Error: reason}
		e.emitter.Emit(observability.Event{
			Timestamp:  time.Now(),
			Kind:       observability.EventArtifactSkipped,
			RunID:      result.RunID,
			ArtifactID: id,
			Message:    reason,
		})
	}

	preSkipped := 0
	for id, pre := range p.PreSkipped {
		if pre {
			recordSkip(id, "execute=false")
			preSkipped++
		}
	}
	if preSkipped > 0 {
		e.diag.Infow("pre-skip analysis marked artifacts skipped", "run_id", result.RunID, "count", preSkipped)
	}

	concurrency := e.concurrency
	if concurrency <= 0 {
		concurrency = runtime.NumCPU()
		if concurrency < 1 {
			concurrency = 1
		}
	}

	for _, layer := range p.DAG.Layers {
		if ctx.Err() != nil {
			break
		}

		g, _ := errgroup.WithContext(ctx)
		g.SetLimit(concurrency)

		for _, id := range layer {
			id := id

			mu.Lock()
			_, already := status[id]
			mu.Unlock()
			if already {
				continue
			}

			a := p.Artifacts[id]
			failedUp, skippedUp := predecessorIssue(p.Predecessors(id), status, &mu)
			if (failedUp != "" || skippedUp != "") && !a.Optional {
				if failedUp != "" {
					recordSkip(id, fmt.Sprintf("upstream %s failed", failedUp))
				} else {
					recordSkip(id, fmt.Sprintf("upstream %s skipped", skippedUp))
				}
				continue
			}

			g.Go(func() error {
				if ctx.Err() != nil {
					recordSkip(id, "cancelled")
					return nil
				}

				e.emitter.Emit(observability.Event{
					Timestamp:  time.Now(),
					Kind:       observability.EventArtifactStarted,
					RunID:      result.RunID,
					ArtifactID: id,
				})

				res := e.runArtifact(ctx, p, id, a, &mu, messages)

				mu.Lock()
				result.Artifacts[id] = res
				if res.Success {
					status[id] = "success"
					messages[id] = res.Message
				} else {
					status[id] = "failed"
				}
				mu.Unlock()

				event := observability.Event{
					Timestamp:  time.Now(),
					Kind:       observability.EventArtifactDone,
					RunID:      result.RunID,
					ArtifactID: id,
					Fields:     map[string]interface{}{"success": res.Success, "duration_seconds": res.Duration.Seconds()},
				}
				if !res.Success {
					event.Message = res.Error
					e.diag.Warnw("artifact failed", "run_id", result.RunID, "artifact_id", id, "error", res.Error)
				}
				e.emitter.Emit(event)
				return nil
			})
		}

		_ = g.Wait()
	}

	// Layers abandoned by cancellation leave some nodes with no recorded
	// status; every plan node must still appear in the result (spec.md §8:
	// "result.artifacts.keys() == plan.dag.nodes").
	for _, id := range p.DAG.Nodes {
		mu.Lock()
		_, have := result.Artifacts[id]
		mu.Unlock()
		if !have {
			recordSkip(id, "cancelled")
		}
	}

	result.TotalDurationSeconds = time.Since(start).Seconds()

	e.emitter.Emit(observability.Event{
		Timestamp: time.Now(),
		Kind:      observability.EventRunFinished,
		RunID:     result.RunID,
		Fields:    map[string]interface{}{"duration_seconds": result.TotalDurationSeconds, "skipped": len(result.Skipped)},
	})

	return result, nil
}

// predecessorIssue reports the first failed predecessor, or else the first
// skipped predecessor, scanning in declared input order (spec.md §4.5
// steps 1-2: a failed predecessor takes priority over a merely-skipped
// one when both are present).
func predecessorIssue(preds []string, status map[string]string, mu *sync.Mutex) (failedID, skippedID string) {
	mu.Lock()
	defer mu.Unlock()
	for _, p := range preds {
		if status[p] == "failed" {
			return p, ""
		}
	}
	for _, p := range preds {
		if status[p] == "skipped" {
			return "", p
		}
	}
	return "", ""
}

func (e *Executor) runArtifact(ctx context.Context, p *plan.ExecutionPlan, id string, a runbook.Artifact, mu *sync.Mutex, messages map[string]*schema.Message) ArtifactResult {
	started := time.Now()
	schemas := p.ArtifactSchemas[id]

	var msg *schema.Message
	var err error

	switch {
	case a.Source != nil:
		var connector component.Connector
		connector, err = e.registry.CreateConnector(a.Source.Type, a.Source.Properties)
		if err == nil {
			msg, err = connector.Extract(schemas.Output)
		}

	case a.Process != nil:
		var processor component.Processor
		processor, err = e.registry.CreateProcessor(a.Process.Type, a.Process.Properties)
		if err == nil {
			preds := p.Predecessors(id)
			mu.Lock()
			inputs := make([]*schema.Message, 0, len(preds))
			for _, pr := range preds {
				inputs = append(inputs, messages[pr])
			}
			mu.Unlock()
			for i, in := range inputs {
				if in == nil {
					return ArtifactResult{ArtifactID: id, Success: false, Error: fmt.Sprintf("upstream %s produced no message", preds[i]), Duration: time.Since(started)}
				}
			}

			policy := resolveMergePolicy(a.Merge, processor)
			var inputSchema schema.Schema
			if len(inputs) > 0 {
				inputSchema = inputs[0].Schema
			}
			msg, err = e.processWithRetry(ctx, id, a.Process.MaxRetriesOrDefault(), func() (*schema.Message, error) {
				return applyMerge(id, processor, policy, inputs, inputSchema, schemas.Output)
			})
		}

	default:
		err = &wcferrors.ExecutorError{Reason: fmt.Sprintf("artifact %q has neither source nor process", id)}
	}

	if err == nil {
		err = e.validateOutput(msg, schemas.Output)
	}

	duration := time.Since(started)
	if err != nil {
		return ArtifactResult{ArtifactID: id, Success: false, Error: err.Error(), Duration: duration}
	}
	return ArtifactResult{ArtifactID: id, Success: true, Message: msg, Duration: duration}
}

// processWithRetry retries a failing Process/ProcessMulti call with linear
// backoff (1s, 2s, 3s, ...) up to maxAttempts total attempts, grounded on
// the teacher's Step.Handover.MaxRetries linear-backoff policy. A
// cancelled ctx aborts the wait immediately rather than sleeping it out.
func (e *Executor) processWithRetry(ctx context.Context, id string, maxAttempts int, call func() (*schema.Message, error)) (*schema.Message, error) {
	var msg *schema.Message
	var err error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		msg, err = call()
		if err == nil {
			return msg, nil
		}
		if attempt == maxAttempts {
			break
		}

		e.diag.Infow("retrying failed process artifact", "artifact_id", id, "attempt", attempt, "max_attempts", maxAttempts, "error", err)

		select {
		case <-time.After(time.Duration(attempt) * time.Second):
		case <-ctx.Done():
			return nil, err
		}
	}

	return nil, err
}

func (e *Executor) validateOutput(msg *schema.Message, expected schema.Schema) error {
	if msg == nil {
		return fmt.Errorf("component produced no message")
	}
	if !msg.Schema.Equal(expected) {
		return fmt.Errorf("produced message schema %s does not match declared output schema %s", msg.Schema, expected)
	}
	return msg.Validate(e.schemaRegistry)
}
