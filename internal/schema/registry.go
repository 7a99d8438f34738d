package schema

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/waivern/wcf/internal/wcferrors"
)

// defaultSearchPath is the one built-in root every Registry starts with,
// mirroring the original JsonSchemaLoader's package-relative default.
const defaultSearchPath = "schemas"

// cacheKey identifies a resolved load: the search root that satisfied it,
// plus the requested identity. Caching per-root (not just per-identity)
// keeps "first match wins": every lookup still walks the roots in order, so
// a document that appears under an earlier root is found before a cached
// hit from a later one.
type cacheKey struct {
	root    string
	name    string
	version string
}

// Registry resolves (name, version) pairs to compiled JSON-Schema
// documents. It is a process-wide, thread-safe singleton in normal use
// (see Default below), per spec.md §4.1 and §9 ("Global state ... Schema
// registry ... initialised explicitly at startup").
type Registry struct {
	mu          sync.RWMutex
	searchPaths []string
	cache       map[cacheKey]*jsonschema.Schema
	rawCache    map[cacheKey]map[string]interface{}
}

// NewRegistry constructs an empty registry seeded with the built-in
// default search path, matching RegisterSearchPath's idempotence contract.
func NewRegistry() *Registry {
	r := &Registry{}
	r.ClearAndReinit()
	return r
}

var (
	defaultOnce sync.Once
	defaultReg  *Registry
)

// Default returns the process-wide registry singleton. Component
// initialisation callbacks (register_schemas() hooks, per spec.md §4.1 and
// §9) call RegisterSearchPath on this instance at startup.
func Default() *Registry {
	defaultOnce.Do(func() { defaultReg = NewRegistry() })
	return defaultReg
}

// RegisterSearchPath appends a root to the ordered search list. Duplicate
// paths are no-ops; insertion order is preserved so "first match wins"
// (§4.1) is deterministic.
func (r *Registry) RegisterSearchPath(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.searchPaths {
		if existing == path {
			return
		}
	}
	r.searchPaths = append(r.searchPaths, path)
}

// GetSearchPaths returns a defensive copy of the ordered search roots.
func (r *Registry) GetSearchPaths() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.searchPaths))
	copy(out, r.searchPaths)
	return out
}

// ClearAndReinit drops all search paths and caches except the built-in
// default, for test isolation (§4.1).
func (r *Registry) ClearAndReinit() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.searchPaths = []string{defaultSearchPath}
	r.cache = make(map[cacheKey]*jsonschema.Schema)
	r.rawCache = make(map[cacheKey]map[string]interface{})
}

// schemaPath returns the conventional on-disk location of a schema
// document under a given search root: <root>/<name>/<version>/schema.json.
func schemaPath(root, name, version string) string {
	return filepath.Join(root, name, version, "schema.json")
}

// loadRaw reads and parses the raw JSON document for (root, name, version),
// verifying the declared "version" field matches the request (§4.1: "the
// loaded document's declared version field must equal the requested
// version; mismatch fails with SchemaLoadError").
func (r *Registry) loadRaw(root, name, version string) (map[string]interface{}, error) {
	key := cacheKey{root: root, name: name, version: version}

	r.mu.RLock()
	if cached, ok := r.rawCache[key]; ok {
		r.mu.RUnlock()
		return cached, nil
	}
	r.mu.RUnlock()

	path := schemaPath(root, name, version)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil // not found at this root; caller tries the next
		}
		return nil, &wcferrors.SchemaLoadError{Name: name, Version: version, Reason: err.Error()}
	}

	var doc map[string]interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &wcferrors.SchemaLoadError{Name: name, Version: version, Reason: fmt.Sprintf("invalid JSON in %s: %v", path, err)}
	}

	declared, _ := doc["version"].(string)
	if declared != version {
		return nil, &wcferrors.SchemaLoadError{
			Name:    name,
			Version: version,
			Reason:  fmt.Sprintf("document at %s declares version %q, requested %q", path, declared, version),
		}
	}

	r.mu.Lock()
	r.rawCache[key] = doc
	r.mu.Unlock()

	return doc, nil
}

// Document returns the raw JSON-Schema document for s, walking the search
// roots in order and caching the first match. SchemaNotFoundError if no
// root has it.
func (r *Registry) Document(s Schema) (map[string]interface{}, error) {
	for _, root := range r.GetSearchPaths() {
		doc, err := r.loadRaw(root, s.Name, s.Version)
		if err != nil {
			return nil, err
		}
		if doc != nil {
			return doc, nil
		}
	}
	return nil, &wcferrors.SchemaNotFoundError{Name: s.Name, Version: s.Version}
}

// Compiled returns a compiled jsonschema.Schema for s, cached process-wide
// per (root, name, version) — grounded on
// internal/contract/jsonschema.go's compiler.AddResource/Compile pattern.
func (r *Registry) Compiled(s Schema) (*jsonschema.Schema, error) {
	for _, root := range r.GetSearchPaths() {
		key := cacheKey{root: root, name: s.Name, version: s.Version}

		r.mu.RLock()
		cached, ok := r.cache[key]
		r.mu.RUnlock()
		if ok {
			return cached, nil
		}

		doc, err := r.loadRaw(root, s.Name, s.Version)
		if err != nil {
			return nil, err
		}
		if doc == nil {
			continue
		}

		compiler := jsonschema.NewCompiler()
		url := s.String()
		if err := compiler.AddResource(url, doc); err != nil {
			return nil, &wcferrors.SchemaLoadError{Name: s.Name, Version: s.Version, Reason: err.Error()}
		}
		compiled, err := compiler.Compile(url)
		if err != nil {
			return nil, &wcferrors.SchemaLoadError{Name: s.Name, Version: s.Version, Reason: err.Error()}
		}

		r.mu.Lock()
		r.cache[key] = compiled
		r.mu.Unlock()
		return compiled, nil
	}
	return nil, &wcferrors.SchemaNotFoundError{Name: s.Name, Version: s.Version}
}

// Validate compiles s (if needed) and validates content against it.
func (r *Registry) Validate(s Schema, content interface{}) error {
	compiled, err := r.Compiled(s)
	if err != nil {
		return err
	}
	if err := compiled.Validate(content); err != nil {
		return &wcferrors.SchemaLoadError{Name: s.Name, Version: s.Version, Reason: err.Error()}
	}
	return nil
}
