// Package plan implements the planner (spec.md §4.4): graph construction,
// schema inference, compatibility checking, and topological layering of a
// flattened runbook into an immutable ExecutionPlan.
package plan

import (
	"github.com/waivern/wcf/internal/component"
	"github.com/waivern/wcf/internal/runbook"
	"github.com/waivern/wcf/internal/schema"
)

// ArtifactSchemas records the inferred input/output schemas for one
// artifact (spec.md §3 "artifact_schemas[id] = (input_schema?, output_schema)").
type ArtifactSchemas struct {
	Input  []schema.Schema
	Output schema.Schema
}

// DAG is the directed graph over a flattened runbook's artifacts (spec.md
// §9: represented as nodes + edges + adjacency, no back-pointers).
type DAG struct {
	Nodes       []string
	Edges       [][2]string
	Adjacency   map[string][]string // artifact id -> successor ids
	Predecessors map[string][]string // artifact id -> predecessor ids, in declared input order
	Layers      [][]string
}

// ExecutionPlan is the planner's immutable output (spec.md §3).
type ExecutionPlan struct {
	Runbook         *runbook.Runbook
	Artifacts       map[string]runbook.Artifact
	DAG             *DAG
	ArtifactSchemas map[string]ArtifactSchemas
	PreSkipped      map[string]bool
}

// Predecessors returns the artifact's upstream ids in declared input order.
func (p *ExecutionPlan) Predecessors(artifactID string) []string {
	return p.DAG.Predecessors[artifactID]
}

// Successors returns the artifact's downstream ids.
func (p *ExecutionPlan) Successors(artifactID string) []string {
	return p.DAG.Adjacency[artifactID]
}

// Planner builds an ExecutionPlan from a flattened runbook and a populated
// component registry.
type Planner struct {
	registry *component.Registry
}

func NewPlanner(registry *component.Registry) *Planner {
	return &Planner{registry: registry}
}

// Plan runs all five planner steps in order (spec.md §4.4): graph
// construction, schema inference, compatibility checking, topological
// layering, and pre-skip analysis.
func (pl *Planner) Plan(rb *runbook.Runbook, artifacts map[string]runbook.Artifact) (*ExecutionPlan, error) {
	dag, err := buildGraph(artifacts)
	if err != nil {
		return nil, err
	}

	artifactSchemas, err := pl.inferSchemas(artifacts, dag)
	if err != nil {
		return nil, err
	}

	if err := pl.checkCompatibility(artifacts, artifactSchemas); err != nil {
		return nil, err
	}

	layers, err := topologicalLayers(dag.Nodes, dag.Predecessors)
	if err != nil {
		return nil, err
	}
	dag.Layers = layers

	preSkipped := preSkipAnalysis(artifacts, dag)

	return &ExecutionPlan{
		Runbook:         rb,
		Artifacts:       artifacts,
		DAG:             dag,
		ArtifactSchemas: artifactSchemas,
		PreSkipped:      preSkipped,
	}, nil
}
