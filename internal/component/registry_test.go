package component

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waivern/wcf/internal/schema"
	"github.com/waivern/wcf/internal/wcferrors"
)

type fakeConnector struct{ name string }

func (c *fakeConnector) GetName() string { return c.name }
func (c *fakeConnector) GetSupportedOutputSchemas() []schema.Schema {
	return []schema.Schema{schema.New("standard_input", "1.0.0")}
}
func (c *fakeConnector) Extract(outputSchema schema.Schema) (*schema.Message, error) {
	return schema.NewMessage("fake", map[string]interface{}{"data": []interface{}{}}, outputSchema), nil
}

type fakeConnectorFactory struct {
	name       string
	acceptAll  bool
	outputs    []schema.Schema
	deps       map[string]string
}

func (f *fakeConnectorFactory) ComponentName() string { return f.name }
func (f *fakeConnectorFactory) CanCreate(config map[string]interface{}) bool {
	if f.acceptAll {
		return true
	}
	_, ok := config["type"]
	return ok
}
func (f *fakeConnectorFactory) Create(config map[string]interface{}, services *ServiceContainer) (Connector, error) {
	return &fakeConnector{name: f.name}, nil
}
func (f *fakeConnectorFactory) GetOutputSchemas() []schema.Schema   { return f.outputs }
func (f *fakeConnectorFactory) ServiceDependencies() map[string]string { return f.deps }

func TestRegistryRegisterAndCreateConnector(t *testing.T) {
	r := NewRegistry(nil)
	r.RegisterConnectorFactory(&fakeConnectorFactory{
		name:      "fs",
		acceptAll: true,
		outputs:   []schema.Schema{schema.New("standard_input", "1.0.0")},
	})

	assert.Equal(t, []string{"fs"}, r.ListConnectors())

	c, err := r.CreateConnector("fs", map[string]interface{}{})
	require.NoError(t, err)
	assert.Equal(t, "fs", c.GetName())
}

func TestRegistryUnknownConnectorType(t *testing.T) {
	r := NewRegistry(nil)
	_, err := r.CreateConnector("does-not-exist", nil)
	require.Error(t, err)
	var unsupported *wcferrors.UnsupportedProviderError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, "connector", unsupported.Kind)
}

func TestRegistryCanCreateRejection(t *testing.T) {
	r := NewRegistry(nil)
	r.RegisterConnectorFactory(&fakeConnectorFactory{name: "strict"})

	_, err := r.CreateConnector("strict", map[string]interface{}{})
	require.Error(t, err)
	var cfgErr *wcferrors.ConnectorConfigError
	require.ErrorAs(t, err, &cfgErr)
}

func TestRegistryListIsSortedAndDefensive(t *testing.T) {
	r := NewRegistry(nil)
	r.RegisterConnectorFactory(&fakeConnectorFactory{name: "zeta", acceptAll: true})
	r.RegisterConnectorFactory(&fakeConnectorFactory{name: "alpha", acceptAll: true})

	list := r.ListConnectors()
	assert.Equal(t, []string{"alpha", "zeta"}, list)

	list[0] = "mutated"
	assert.Equal(t, []string{"alpha", "zeta"}, r.ListConnectors())
}

func TestRegistryConnectorOutputSchema(t *testing.T) {
	r := NewRegistry(nil)
	r.RegisterConnectorFactory(&fakeConnectorFactory{
		name:      "fs",
		acceptAll: true,
		outputs:   []schema.Schema{schema.New("standard_input", "1.0.0")},
	})

	s, ok := r.ConnectorOutputSchema("fs")
	require.True(t, ok)
	assert.Equal(t, schema.New("standard_input", "1.0.0"), s)

	_, ok = r.ConnectorOutputSchema("missing")
	assert.False(t, ok)
}

func TestServiceContainer(t *testing.T) {
	sc := NewServiceContainer()
	sc.Register("client", 42)

	v, ok := sc.Get("client")
	require.True(t, ok)
	assert.Equal(t, 42, v)

	_, ok = sc.Get("absent")
	assert.False(t, ok)
}

type fakeExporterFactory struct{ name string }

func (f *fakeExporterFactory) ComponentName() string                              { return f.name }
func (f *fakeExporterFactory) CanCreate(config map[string]interface{}) bool       { return true }
func (f *fakeExporterFactory) ServiceDependencies() map[string]string             { return nil }
func (f *fakeExporterFactory) Create(config map[string]interface{}, services *ServiceContainer) (Exporter, error) {
	return &fakeExporter{}, nil
}

type fakeExporter struct{}

func (e *fakeExporter) GetName() string { return "fake" }
func (e *fakeExporter) Export(doc map[string]interface{}, dest io.Writer) error {
	_, err := dest.Write([]byte("exported"))
	return err
}

func TestManifestActivation(t *testing.T) {
	RegisterConnectorPlugin("plugin-fs", func() ConnectorFactory {
		return &fakeConnectorFactory{name: "plugin-fs", acceptAll: true}
	})
	RegisterExporterPlugin("plugin-json", func() ExporterFactory {
		return &fakeExporterFactory{name: "plugin-json"}
	})

	dir := t.TempDir()
	manifestPath := filepath.Join(dir, "plugins.toml")
	require.NoError(t, os.WriteFile(manifestPath, []byte(`
connectors = ["plugin-fs"]
exporters = ["plugin-json"]
`), 0o644))

	m, err := LoadManifest(manifestPath)
	require.NoError(t, err)

	r := NewRegistry(nil)
	require.NoError(t, r.Activate(m))

	assert.Contains(t, r.ListConnectors(), "plugin-fs")
	assert.Contains(t, r.ListExporters(), "plugin-json")

	exp, err := r.CreateExporter("plugin-json", nil)
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, exp.Export(nil, &buf))
	assert.Equal(t, "exported", buf.String())
}

func TestManifestActivationUnknownPlugin(t *testing.T) {
	m := &Manifest{Connectors: []string{"totally-unregistered-name"}}
	r := NewRegistry(nil)
	err := r.Activate(m)
	require.Error(t, err)
	var unsupported *wcferrors.UnsupportedProviderError
	require.ErrorAs(t, err, &unsupported)
}
