package exec

import (
	"fmt"

	"github.com/waivern/wcf/internal/component"
	"github.com/waivern/wcf/internal/runbook"
	"github.com/waivern/wcf/internal/schema"
	"github.com/waivern/wcf/internal/wcferrors"
)

// resolveMergePolicy implements the default-policy rule from spec.md §4.5
// step 4: absent merge with a multi-input-capable processor defaults to
// "list"; otherwise "first".
func resolveMergePolicy(declared string, processor component.Processor) string {
	if declared != "" {
		return declared
	}
	if _, ok := processor.(component.MultiInputProcessor); ok {
		return runbook.MergeList
	}
	return runbook.MergeFirst
}

// applyMerge combines the ordered predecessor messages into the single
// call the processor contract expects, per the fan-in policy (spec.md
// §4.5 step 4).
func applyMerge(artifactID string, processor component.Processor, policy string, inputs []*schema.Message, inputSchema, outputSchema schema.Schema) (*schema.Message, error) {
	switch policy {
	case runbook.MergeFirst:
		return processor.Process(inputSchema, outputSchema, inputs[0])

	case runbook.MergeConcat:
		merged, err := concatMessages(artifactID, inputs)
		if err != nil {
			return nil, err
		}
		return processor.Process(inputSchema, outputSchema, merged)

	case runbook.MergeList:
		multi, ok := processor.(component.MultiInputProcessor)
		if !ok {
			return nil, &wcferrors.AnalyserError{
				AnalyserType: processor.GetName(),
				Err:          fmt.Errorf("merge policy %q requires a multi-input processor", policy),
			}
		}
		return multi.ProcessMulti(inputs, outputSchema)

	default:
		return nil, &wcferrors.AnalyserError{
			AnalyserType: processor.GetName(),
			Err:          fmt.Errorf("unknown merge policy %q", policy),
		}
	}
}

// concatMessages requires every input to share a schema and a content map
// with a "data" sequence, concatenating those sequences in declared input
// order (spec.md §4.5 step 4 "concat").
func concatMessages(artifactID string, inputs []*schema.Message) (*schema.Message, error) {
	first := inputs[0]
	for _, m := range inputs[1:] {
		if !m.Schema.Equal(first.Schema) {
			return nil, &wcferrors.SchemaCompatibilityError{
				ArtifactID: artifactID,
				Reason:     fmt.Sprintf("concat merge requires matching schemas, got %s and %s", first.Schema, m.Schema),
			}
		}
	}

	var combined []interface{}
	for _, m := range inputs {
		content, ok := m.Content.(map[string]interface{})
		if !ok {
			return nil, &wcferrors.SchemaCompatibilityError{ArtifactID: artifactID, Reason: "concat merge requires object content with a \"data\" array"}
		}
		data, ok := content["data"].([]interface{})
		if !ok {
			return nil, &wcferrors.SchemaCompatibilityError{ArtifactID: artifactID, Reason: "concat merge requires a \"data\" array in every input"}
		}
		combined = append(combined, data...)
	}

	return schema.NewMessage(artifactID, map[string]interface{}{"data": combined}, first.Schema), nil
}
