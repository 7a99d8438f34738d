// Package schema implements the schema registry and message envelope
// described in spec.md §3 and §4.1: named+versioned JSON-Schema handles,
// lazily loaded and cached process-wide, plus the Message type that
// carries validated content between artifacts.
package schema

import "fmt"

// Schema identifies a JSON-Schema document by (name, version). Identity is
// exactly these two fields — grounded on the original Python
// implementation's Schema.__eq__ (waivern_core.schemas), which compares
// only name and version and is never equal to a non-Schema value. Go gives
// us that second property for free: Schema is a plain comparable struct,
// so == and use as a map key behave correctly without a custom Equal.
type Schema struct {
	Name    string
	Version string
}

// New constructs a Schema handle. It does not load or validate the
// document; lookup is deferred to a Registry.
func New(name, version string) Schema {
	return Schema{Name: name, Version: version}
}

// Equal reports whether two schemas share the same name and version.
func (s Schema) Equal(other Schema) bool {
	return s == other
}

func (s Schema) String() string {
	return fmt.Sprintf("%s/%s", s.Name, s.Version)
}

// ParseRef parses the canonical "<name>/<version>" form used in runbook
// mappings (spec.md §6).
func ParseRef(ref string) (Schema, error) {
	for i := 0; i < len(ref); i++ {
		if ref[i] == '/' {
			name, version := ref[:i], ref[i+1:]
			if name == "" || version == "" {
				break
			}
			return Schema{Name: name, Version: version}, nil
		}
	}
	return Schema{}, fmt.Errorf("invalid schema reference %q: expected \"<name>/<version>\"", ref)
}
