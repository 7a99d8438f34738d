package runbook

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waivern/wcf/internal/wcferrors"
)

func writeRunbook(t *testing.T, dir, name, doc string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	return path
}

func TestFlattenNoChildRunbooksIsNoop(t *testing.T) {
	doc := `
name: n
description: d
artifacts:
  src:
    source: {type: fs}
  ana:
    process: {type: analyse}
    inputs: src
    output: true
`
	dir := t.TempDir()
	path := writeRunbook(t, dir, "root.yaml", doc)
	rb, err := NewYAMLLoader().Load(path)
	require.NoError(t, err)

	flat, aliases, err := NewFlattener(nil).Flatten(rb)
	require.NoError(t, err)
	assert.Len(t, flat, 2)
	assert.Contains(t, flat, "src")
	assert.Contains(t, flat, "ana")
	assert.Empty(t, aliases)
}

func TestFlattenExpandsChildRunbook(t *testing.T) {
	dir := t.TempDir()
	childDoc := `
name: child
description: nested pipeline
inputs:
  upstream:
    input_schema: A/1.0.0
outputs:
  result:
    artifact: classify
artifacts:
  classify:
    process: {type: classify}
    inputs: upstream
    output_schema: B/1.0.0
`
	writeRunbook(t, dir, "child.yaml", childDoc)

	rootDoc := `
name: root
description: top level
artifacts:
  src:
    source: {type: fs}
    output_schema: A/1.0.0
  nested:
    child_runbook:
      path: child.yaml
      input_mapping:
        upstream: src
      output: result
  final:
    process: {type: report}
    inputs: nested
    output: true
`
	rootPath := writeRunbook(t, dir, "root.yaml", rootDoc)
	rb, err := NewYAMLLoader().Load(rootPath)
	require.NoError(t, err)

	flat, aliases, err := NewFlattener(nil).Flatten(rb)
	require.NoError(t, err)

	assert.Contains(t, flat, "src")
	assert.NotContains(t, flat, "nested")
	assert.Contains(t, flat, "final")

	aliasTarget, ok := aliases["nested"]
	require.True(t, ok, "expected an alias for the child_runbook artifact id")
	assert.Contains(t, flat, aliasTarget)
	assert.Equal(t, Inputs{"src"}, flat[aliasTarget].Inputs)

	// "final" referenced the child_runbook artifact by its original id;
	// the flattener must have rewritten that reference to the alias target.
	assert.Equal(t, Inputs{aliasTarget}, flat["final"].Inputs)
}

func TestFlattenMissingRequiredInputMapping(t *testing.T) {
	dir := t.TempDir()
	childDoc := `
name: child
description: nested pipeline
inputs:
  upstream:
    input_schema: A/1.0.0
outputs:
  result:
    artifact: classify
artifacts:
  classify:
    process: {type: classify}
    inputs: upstream
`
	writeRunbook(t, dir, "child.yaml", childDoc)

	rootDoc := `
name: root
description: top level
artifacts:
  nested:
    child_runbook:
      path: child.yaml
      output: result
`
	rootPath := writeRunbook(t, dir, "root.yaml", rootDoc)
	rb, err := NewYAMLLoader().Load(rootPath)
	require.NoError(t, err)

	_, _, err = NewFlattener(nil).Flatten(rb)
	require.Error(t, err)
	var missing *wcferrors.MissingInputMappingError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "upstream", missing.InputName)
}

func TestFlattenUnknownOutputIsRejected(t *testing.T) {
	dir := t.TempDir()
	childDoc := `
name: child
description: nested pipeline
outputs:
  result:
    artifact: classify
artifacts:
  classify:
    source: {type: fs}
`
	writeRunbook(t, dir, "child.yaml", childDoc)

	rootDoc := `
name: root
description: top level
artifacts:
  nested:
    child_runbook:
      path: child.yaml
      output: does_not_exist
`
	rootPath := writeRunbook(t, dir, "root.yaml", rootDoc)
	rb, err := NewYAMLLoader().Load(rootPath)
	require.NoError(t, err)

	_, _, err = NewFlattener(nil).Flatten(rb)
	require.Error(t, err)
	var bad *wcferrors.InvalidOutputMappingError
	require.ErrorAs(t, err, &bad)
}

func TestFlattenDetectsCircularRunbookReference(t *testing.T) {
	dir := t.TempDir()

	// a.yaml includes b.yaml, which includes a.yaml back.
	aDoc := `
name: a
description: a
outputs:
  out:
    artifact: inner
artifacts:
  inner:
    child_runbook:
      path: b.yaml
      output: out
`
	bDoc := `
name: b
description: b
outputs:
  out:
    artifact: inner
artifacts:
  inner:
    child_runbook:
      path: a.yaml
      output: out
`
	writeRunbook(t, dir, "a.yaml", aDoc)
	writeRunbook(t, dir, "b.yaml", bDoc)

	rb, err := NewYAMLLoader().Load(filepath.Join(dir, "a.yaml"))
	require.NoError(t, err)

	_, _, err = NewFlattener(nil).Flatten(rb)
	require.Error(t, err)
	var circ *wcferrors.CircularRunbookError
	require.ErrorAs(t, err, &circ)
}

func TestFlattenNamespacesSiblingReferences(t *testing.T) {
	dir := t.TempDir()
	childDoc := `
name: child
description: two artifacts, one referencing the other
inputs:
  upstream:
    input_schema: A/1.0.0
outputs:
  result:
    artifact: second
artifacts:
  first:
    process: {type: step1}
    inputs: upstream
  second:
    process: {type: step2}
    inputs: first
`
	writeRunbook(t, dir, "child.yaml", childDoc)

	rootDoc := `
name: root
description: top level
artifacts:
  src:
    source: {type: fs}
    output_schema: A/1.0.0
  nested:
    child_runbook:
      path: child.yaml
      input_mapping:
        upstream: src
      output: result
`
	rootPath := writeRunbook(t, dir, "root.yaml", rootDoc)
	rb, err := NewYAMLLoader().Load(rootPath)
	require.NoError(t, err)

	flat, _, err := NewFlattener(nil).Flatten(rb)
	require.NoError(t, err)

	var firstID, secondID string
	for id := range flat {
		if id == "src" {
			continue
		}
		if flat[id].Process != nil && flat[id].Process.Type == "step1" {
			firstID = id
		}
		if flat[id].Process != nil && flat[id].Process.Type == "step2" {
			secondID = id
		}
	}
	require.NotEmpty(t, firstID)
	require.NotEmpty(t, secondID)
	assert.Equal(t, Inputs{firstID}, flat[secondID].Inputs)
	assert.Equal(t, Inputs{"src"}, flat[firstID].Inputs)
}
