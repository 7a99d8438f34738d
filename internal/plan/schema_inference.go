package plan

import (
	"fmt"

	"github.com/waivern/wcf/internal/component"
	"github.com/waivern/wcf/internal/runbook"
	"github.com/waivern/wcf/internal/schema"
	"github.com/waivern/wcf/internal/wcferrors"
)

// inferSchemas computes (input_schemas, output_schema) for every artifact
// (spec.md §4.4 step 2). Processed artifacts depend on their predecessors'
// output schemas, so artifacts are visited in a flat topological order
// (computed independently of the layer assignment produced later in step
// 4 — the ordering is an implementation detail of this pass only).
func (pl *Planner) inferSchemas(artifacts map[string]runbook.Artifact, dag *DAG) (map[string]ArtifactSchemas, error) {
	order, err := flatTopoOrder(dag.Nodes, dag.Predecessors)
	if err != nil {
		return nil, err
	}

	result := make(map[string]ArtifactSchemas, len(artifacts))

	for _, id := range order {
		a := artifacts[id]

		switch {
		case a.Source != nil:
			out, err := pl.sourceOutputSchema(id, a)
			if err != nil {
				return nil, err
			}
			result[id] = ArtifactSchemas{Output: out}

		case a.Process != nil:
			inputs := make([]schema.Schema, 0, len(a.Inputs))
			for _, upstream := range a.Inputs {
				inputs = append(inputs, result[upstream].Output)
			}
			out, err := pl.processedOutputSchema(id, a)
			if err != nil {
				return nil, err
			}
			result[id] = ArtifactSchemas{Input: inputs, Output: out}

		default:
			return nil, &wcferrors.ExecutorError{Reason: fmt.Sprintf("artifact %q has neither source nor process after flattening", id)}
		}
	}

	return result, nil
}

func (pl *Planner) sourceOutputSchema(id string, a runbook.Artifact) (schema.Schema, error) {
	if a.OutputSchema != "" {
		return schema.ParseRef(a.OutputSchema)
	}
	factory, ok := pl.registry.ConnectorFactoryFor(a.Source.Type)
	if !ok {
		return schema.Schema{}, &wcferrors.UnsupportedProviderError{Kind: "connector", Type: a.Source.Type}
	}
	outs := factory.GetOutputSchemas()
	if len(outs) == 0 {
		return schema.Schema{}, &wcferrors.ConnectorConfigError{ConnectorType: a.Source.Type, Reason: "factory advertises no output schemas"}
	}
	return outs[0], nil
}

func (pl *Planner) processedOutputSchema(id string, a runbook.Artifact) (schema.Schema, error) {
	factory, ok := pl.registry.ProcessorFactoryFor(a.Process.Type)
	if !ok {
		return schema.Schema{}, &wcferrors.UnsupportedProviderError{Kind: "processor", Type: a.Process.Type}
	}
	if !factory.CanCreate(a.Process.Properties) {
		return schema.Schema{}, &wcferrors.ConnectorConfigError{ConnectorType: a.Process.Type, Reason: "configuration rejected by can_create"}
	}
	if a.OutputSchema != "" {
		return schema.ParseRef(a.OutputSchema)
	}
	outs := factory.GetOutputSchemas()
	if len(outs) == 0 {
		return schema.Schema{}, &wcferrors.ConnectorConfigError{ConnectorType: a.Process.Type, Reason: "factory advertises no output schemas"}
	}
	return outs[0], nil
}

// checkCompatibility verifies, for every processed artifact, that its
// inferred input schema tuple matches at least one of the factory's
// declared alternative input combinations by name+version, in order
// (spec.md §4.4 step 3).
func (pl *Planner) checkCompatibility(artifacts map[string]runbook.Artifact, schemas map[string]ArtifactSchemas) error {
	for id, a := range artifacts {
		if a.Process == nil {
			continue
		}
		factory, ok := pl.registry.ProcessorFactoryFor(a.Process.Type)
		if !ok {
			return &wcferrors.UnsupportedProviderError{Kind: "processor", Type: a.Process.Type}
		}
		requirements := factory.GetInputRequirements()
		if len(requirements) == 0 {
			continue // factory declared no constraints; accept any input tuple
		}
		inputs := schemas[id].Input
		if !anyRequirementSatisfied(requirements, inputs) {
			return &wcferrors.SchemaCompatibilityError{
				ArtifactID: id,
				Reason:     fmt.Sprintf("no declared input requirement of processor %q matches inferred inputs %v", a.Process.Type, inputs),
			}
		}
	}
	return nil
}

func anyRequirementSatisfied(requirements [][]component.InputRequirement, inputs []schema.Schema) bool {
	for _, combo := range requirements {
		if len(combo) != len(inputs) {
			continue
		}
		match := true
		for i, req := range combo {
			if !req.Schema.Equal(inputs[i]) {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

// flatTopoOrder returns one valid topological order (not grouped into
// layers), ties broken lexicographically for determinism.
func flatTopoOrder(nodes []string, predecessors map[string][]string) ([]string, error) {
	layers, err := topologicalLayers(nodes, predecessors)
	if err != nil {
		return nil, err
	}
	order := make([]string, 0, len(nodes))
	for _, layer := range layers {
		order = append(order, layer...)
	}
	return order, nil
}

// preSkipAnalysis marks artifacts with execute=false as pre-skipped and
// propagates that to transitive dependents, unless a dependent is optional
// (spec.md §4.4 step 5).
func preSkipAnalysis(artifacts map[string]runbook.Artifact, dag *DAG) map[string]bool {
	preSkipped := make(map[string]bool)
	for id, a := range artifacts {
		if !a.ExecuteOrDefault() {
			preSkipped[id] = true
		}
	}

	order, err := flatTopoOrder(dag.Nodes, dag.Predecessors)
	if err != nil {
		return preSkipped
	}
	for _, id := range order {
		if preSkipped[id] {
			continue
		}
		a := artifacts[id]
		if a.Optional {
			continue
		}
		for _, upstream := range dag.Predecessors[id] {
			if preSkipped[upstream] {
				preSkipped[id] = true
				break
			}
		}
	}

	return preSkipped
}
