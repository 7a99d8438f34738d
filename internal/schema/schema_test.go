package schema

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waivern/wcf/internal/wcferrors"
)

func TestSchemaEquality(t *testing.T) {
	t.Run("same name and version are equal", func(t *testing.T) {
		a := New("standard_input", "1.0.0")
		b := New("standard_input", "1.0.0")
		assert.True(t, a.Equal(b))
		assert.Equal(t, a, b)
	})

	t.Run("different names are not equal", func(t *testing.T) {
		a := New("standard_input", "1.0.0")
		b := New("personal_data_finding", "1.0.0")
		assert.False(t, a.Equal(b))
	})

	t.Run("different versions are not equal", func(t *testing.T) {
		a := New("standard_input", "1.0.0")
		b := New("standard_input", "1.1.0")
		assert.False(t, a.Equal(b))
	})

	t.Run("usable as a map key", func(t *testing.T) {
		m := map[Schema]string{New("a", "1.0.0"): "first"}
		m[New("a", "1.0.0")] = "second"
		assert.Len(t, m, 1)
		assert.Equal(t, "second", m[New("a", "1.0.0")])
	})
}

func TestParseRef(t *testing.T) {
	s, err := ParseRef("standard_input/1.0.0")
	require.NoError(t, err)
	assert.True(t, cmp.Equal(Schema{Name: "standard_input", Version: "1.0.0"}, s))

	_, err = ParseRef("no-slash-here")
	assert.Error(t, err)

	_, err = ParseRef("/1.0.0")
	assert.Error(t, err)
}

func writeSchemaFile(t *testing.T, root, name, version, version2 string) {
	t.Helper()
	dir := filepath.Join(root, name, version)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	doc := `{"$schema":"https://json-schema.org/draft/2020-12/schema","version":"` + version2 + `","type":"object","properties":{"data":{"type":"array"}},"required":["data"]}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "schema.json"), []byte(doc), 0o644))
}

func TestRegistrySearchPaths(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, []string{defaultSearchPath}, r.GetSearchPaths())

	root := t.TempDir()
	r.RegisterSearchPath(root)
	r.RegisterSearchPath(root) // idempotent
	assert.Equal(t, []string{defaultSearchPath, root}, r.GetSearchPaths())

	r.ClearAndReinit()
	assert.Equal(t, []string{defaultSearchPath}, r.GetSearchPaths())
}

func TestRegistryLoadAndCache(t *testing.T) {
	root := t.TempDir()
	writeSchemaFile(t, root, "standard_input", "1.0.0", "1.0.0")

	r := NewRegistry()
	r.ClearAndReinit()
	r.RegisterSearchPath(root)

	s := New("standard_input", "1.0.0")
	doc, err := r.Document(s)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", doc["version"])

	// second load comes from cache; same content
	doc2, err := r.Document(s)
	require.NoError(t, err)
	assert.True(t, cmp.Equal(doc, doc2))
}

func TestRegistryVersionMismatch(t *testing.T) {
	root := t.TempDir()
	// Document at path "1.0.0" declares version "2.0.0" — mismatch.
	writeSchemaFile(t, root, "standard_input", "1.0.0", "2.0.0")

	r := NewRegistry()
	r.ClearAndReinit()
	r.RegisterSearchPath(root)

	_, err := r.Document(New("standard_input", "1.0.0"))
	require.Error(t, err)
	var loadErr *wcferrors.SchemaLoadError
	require.ErrorAs(t, err, &loadErr)
}

func TestRegistryNotFound(t *testing.T) {
	r := NewRegistry()
	r.ClearAndReinit()
	r.RegisterSearchPath(t.TempDir())

	_, err := r.Document(New("nonexistent", "1.0.0"))
	require.Error(t, err)
	var notFound *wcferrors.SchemaNotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestMessageValidate(t *testing.T) {
	root := t.TempDir()
	writeSchemaFile(t, root, "standard_input", "1.0.0", "1.0.0")

	r := NewRegistry()
	r.ClearAndReinit()
	r.RegisterSearchPath(root)

	s := New("standard_input", "1.0.0")
	msg := NewMessage("src", map[string]interface{}{"data": []interface{}{}}, s)
	require.NoError(t, msg.Validate(r))

	bad := NewMessage("src", map[string]interface{}{"nope": true}, s)
	assert.Error(t, bad.Validate(r))
}
