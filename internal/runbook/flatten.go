package runbook

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mitchellh/hashstructure/v2"

	"github.com/waivern/wcf/internal/schema"
	"github.com/waivern/wcf/internal/wcferrors"
)

// SchemaResolver looks up the output schema a connector/processor factory
// advertises, so the flattener can check parent/child schema compatibility
// (spec.md §4.3 step 5) without depending on the component package
// directly (component, in turn, has no reason to depend on runbook).
type SchemaResolver interface {
	ConnectorOutputSchema(connectorType string) (schema.Schema, bool)
	ProcessorOutputSchema(processorType string) (schema.Schema, bool)
}

// queueItem is the flattener's unit of work, ported directly from the
// original ChildRunbookFlattener's _QueueItem tuple: an artifact id paired
// with its (possibly remapped) definition, the runbook file it came from
// (for resolving further child paths), the ancestor chain (for circular
// detection), and the context remap in effect at this nesting level.
type queueItem struct {
	id           string
	def          Artifact
	runbookPath  string
	ancestors    map[string]bool
	contextRemap map[string]string
}

// Flattener expands child_runbook directives into a single flat namespace
// (spec.md §4.3). It is plan-time only; the executor never sees a
// ChildRunbook directive.
type Flattener struct {
	resolver SchemaResolver
	loader   Loader

	flattened map[string]Artifact
	aliases   map[string]string
	headers   map[string]childHeader

	// namespaceFallback only advances when hashstructure.Hash itself errors
	// (practically unreachable for the plain-data namespaceKey below); the
	// normal path derives the namespace suffix from content, not a counter,
	// so two processes flattening the same runbook independently produce
	// the same namespace (spec.md §8 determinism property).
	namespaceFallback int
}

// NewFlattener constructs a Flattener. resolver may be nil if schema
// compatibility checking is not required (e.g. in tests that only exercise
// the namespacing/aliasing mechanics).
func NewFlattener(resolver SchemaResolver) *Flattener {
	return &Flattener{resolver: resolver, loader: NewYAMLLoader()}
}

// Flatten inlines every child_runbook directive reachable from rb,
// returning the flat artifact map and the alias map recording
// parent-visible names (child_runbook artifact ids for the single-output
// form, and the aliases named in an output_mapping) to internal namespaced
// artifact ids. The runbook's own declared outputs are not recorded.
//
// Flattening an already-flat runbook is a no-op copy (spec.md §8:
// "Flattener idempotence on already-flat runbooks: flatten(R) == R").
func (f *Flattener) Flatten(rb *Runbook) (map[string]Artifact, map[string]string, error) {
	f.flattened = make(map[string]Artifact, len(rb.Artifacts))
	f.aliases = make(map[string]string)
	f.headers = make(map[string]childHeader)
	f.namespaceFallback = 0

	initialAncestors := map[string]bool{}
	if rb.Path != "" {
		if abs, err := filepath.Abs(rb.Path); err == nil {
			initialAncestors[abs] = true
		}
	}

	queue := make([]queueItem, 0, len(rb.Artifacts))
	for id, def := range rb.Artifacts {
		queue = append(queue, queueItem{id: id, def: def, runbookPath: rb.Path, ancestors: initialAncestors, contextRemap: map[string]string{}})
	}

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]

		if item.def.ChildRunbook == nil {
			f.flattened[item.id] = item.def
			continue
		}

		expanded, err := f.expandChildRunbook(rb, item)
		if err != nil {
			return nil, nil, err
		}
		queue = append(queue, expanded...)
	}

	// Go map iteration (used to seed and expand the queue) has no
	// guaranteed order, unlike the dict-ordered original this algorithm is
	// ported from — so an artifact referencing a child_runbook's alias may
	// be flattened before that child_runbook is expanded and its alias
	// recorded. Resolving aliases in one final pass, after every
	// child_runbook in the tree has been expanded, makes the result
	// independent of queue processing order.
	for id, def := range f.flattened {
		def.Inputs = substituteAliases(def.Inputs, f.aliases)
		if h, ok := f.headers[id]; ok {
			def.Name, def.Description, def.Contact = h.name, h.description, h.contact
		}
		f.flattened[id] = def
	}

	return f.flattened, f.aliases, nil
}

// substituteAliases rewrites any input that names a child_runbook artifact
// id (now resolved to a namespaced id in aliases) to that namespaced id.
func substituteAliases(inputs Inputs, aliases map[string]string) Inputs {
	if len(inputs) == 0 {
		return inputs
	}
	out := make(Inputs, len(inputs))
	for i, in := range inputs {
		if target, ok := aliases[in]; ok {
			out[i] = target
		} else {
			out[i] = in
		}
	}
	return out
}

func (f *Flattener) expandChildRunbook(rootRunbook *Runbook, item queueItem) ([]queueItem, error) {
	cfg := item.def.ChildRunbook

	if item.runbookPath == "" {
		return nil, fmt.Errorf("cannot resolve child runbook path %q without a parent runbook path", cfg.Path)
	}

	childPath, err := resolveChildPath(cfg.Path, item.runbookPath, rootRunbook.Config.TemplatePaths)
	if err != nil {
		return nil, err
	}

	absChild, err := filepath.Abs(childPath)
	if err != nil {
		absChild = childPath
	}
	if item.ancestors[absChild] {
		return nil, &wcferrors.CircularRunbookError{Path: childPath}
	}

	childRunbook, err := f.loader.Load(childPath)
	if err != nil {
		return nil, err
	}

	resolvedMapping := f.resolveInputMapping(cfg.InputMapping, item.contextRemap)

	if err := f.validateInputMapping(item.id, resolvedMapping, childRunbook); err != nil {
		return nil, err
	}

	outputNames, err := f.outputNames(item.id, cfg, childRunbook)
	if err != nil {
		return nil, err
	}

	namespace := f.deriveNamespace(item.runbookPath, item.id, childPath, childRunbook.Name)

	childAncestors := make(map[string]bool, len(item.ancestors)+1)
	for k := range item.ancestors {
		childAncestors[k] = true
	}
	childAncestors[absChild] = true

	declaredInputs := make(map[string]bool, len(childRunbook.Inputs))
	for name := range childRunbook.Inputs {
		declaredInputs[name] = true
	}
	childArtifactIDs := make(map[string]bool, len(childRunbook.Artifacts))
	for id := range childRunbook.Artifacts {
		childArtifactIDs[id] = true
	}

	queued := make([]queueItem, 0, len(childRunbook.Artifacts))
	for childID, childDef := range childRunbook.Artifacts {
		childNamespacedID := namespacedID(namespace, childID)
		remapped := childDef
		remapped.Inputs = remapInputs(childDef.Inputs, resolvedMapping, namespace, childArtifactIDs, declaredInputs)

		queued = append(queued, queueItem{
			id:           childNamespacedID,
			def:          remapped,
			runbookPath:  childPath,
			ancestors:    childAncestors,
			contextRemap: resolvedMapping,
		})
	}

	if childRunbook.Outputs != nil {
		for outputName, parentAlias := range outputNames {
			childArtifactID := childRunbook.Outputs[outputName].Artifact
			target := namespacedID(namespace, childArtifactID)
			if existing, ok := f.aliases[parentAlias]; ok && existing != target {
				return nil, &wcferrors.InvalidOutputMappingError{
					Reason: fmt.Sprintf("alias %q already resolves to %q; refusing to shadow with %q", parentAlias, existing, target),
				}
			}
			if _, collides := rootRunbook.Artifacts[parentAlias]; collides && parentAlias != item.id {
				return nil, &wcferrors.InvalidOutputMappingError{
					Reason: fmt.Sprintf("alias %q collides with an existing sibling artifact id", parentAlias),
				}
			}
			f.headers[target] = childHeader{name: childRunbook.Name, description: childRunbook.Description, contact: childRunbook.Contact}
			f.aliases[parentAlias] = target
		}
	}

	return queued, nil
}

// childHeader carries a child runbook's own name/description/contact,
// copied onto whichever artifact its output aliases to, so the export
// (spec.md §4.6) can attribute a nested output back to the reusable
// runbook it came from.
type childHeader struct {
	name        string
	description string
	contact     string
}

// resolveInputMapping resolves each mapping value through the current
// context_remap (the parent's own declared inputs), ported from
// ChildRunbookFlattener._resolve_input_mapping. A value that names a
// sibling child_runbook's alias is left as-is here and fixed up later by
// the final substituteAliases pass, since that alias may not be recorded
// yet (see the comment in Flatten).
func (f *Flattener) resolveInputMapping(mapping map[string]string, contextRemap map[string]string) map[string]string {
	resolved := make(map[string]string, len(mapping))
	for k, v := range mapping {
		if mapped, ok := contextRemap[v]; ok {
			resolved[k] = mapped
		} else {
			resolved[k] = v
		}
	}
	return resolved
}

// validateInputMapping requires a mapping entry for every non-optional
// declared input of the child, and — where the parent artifact's output
// schema can be inferred — requires it to equal the child's declared input
// schema by name+version (spec.md §4.3 step 5).
func (f *Flattener) validateInputMapping(artifactID string, mapping map[string]string, child *Runbook) error {
	for inputName, decl := range child.Inputs {
		parentArtifactID, mapped := mapping[inputName]
		if !mapped {
			if !decl.Optional {
				return &wcferrors.MissingInputMappingError{ArtifactID: artifactID, InputName: inputName}
			}
			continue
		}

		parentDef, ok := f.flattened[parentArtifactID]
		if !ok {
			continue // not yet resolvable; downstream planner will catch a bad reference
		}
		parentSchema, ok := f.outputSchemaOf(parentDef)
		if !ok {
			continue
		}
		childSchema, err := schema.ParseRef(decl.InputSchema)
		if err != nil {
			return &wcferrors.SchemaCompatibilityError{ArtifactID: artifactID, Reason: err.Error()}
		}
		if !parentSchema.Equal(childSchema) {
			return &wcferrors.SchemaCompatibilityError{
				ArtifactID: artifactID,
				Reason: fmt.Sprintf(
					"parent artifact %q produces schema %s, but child input %q expects %s",
					parentArtifactID, parentSchema, inputName, childSchema,
				),
			}
		}
	}
	return nil
}

// outputSchemaOf infers an artifact's output schema: an explicit override
// wins, otherwise the registered factory's advertised schema is consulted.
func (f *Flattener) outputSchemaOf(def Artifact) (schema.Schema, bool) {
	if def.OutputSchema != "" {
		s, err := schema.ParseRef(def.OutputSchema)
		return s, err == nil
	}
	if f.resolver == nil {
		return schema.Schema{}, false
	}
	if def.Source != nil {
		return f.resolver.ConnectorOutputSchema(def.Source.Type)
	}
	if def.Process != nil {
		return f.resolver.ProcessorOutputSchema(def.Process.Type)
	}
	return schema.Schema{}, false
}

// outputNames validates the directive's single-output or multi-output form
// against the child's declared outputs and returns {child output name ->
// parent-visible alias}, per spec.md §4.3 step 7.
func (f *Flattener) outputNames(artifactID string, cfg *ChildRunbook, child *Runbook) (map[string]string, error) {
	result := map[string]string{}

	if cfg.Output != "" {
		if child.Outputs == nil {
			return nil, &wcferrors.InvalidOutputMappingError{Reason: fmt.Sprintf("output %q not found in child runbook outputs", cfg.Output)}
		}
		if _, ok := child.Outputs[cfg.Output]; !ok {
			return nil, &wcferrors.InvalidOutputMappingError{Reason: fmt.Sprintf("output %q not found in child runbook outputs", cfg.Output)}
		}
		result[cfg.Output] = artifactID
		return result, nil
	}

	for childOutput, parentAlias := range cfg.OutputMapping {
		if child.Outputs == nil {
			return nil, &wcferrors.InvalidOutputMappingError{Reason: fmt.Sprintf("output %q not found in child runbook outputs", childOutput)}
		}
		if _, ok := child.Outputs[childOutput]; !ok {
			return nil, &wcferrors.InvalidOutputMappingError{Reason: fmt.Sprintf("output %q not found in child runbook outputs", childOutput)}
		}
		result[childOutput] = parentAlias
	}

	return result, nil
}

// remapInputs implements the per-child-artifact remapping rule from
// spec.md §4.3 step 6: (a) references to the child's declared-input names
// map to the already-resolved parent artifact id, (b) references to
// sibling child artifacts get the namespace prefix, (c) anything else is
// left unchanged.
func remapInputs(inputs Inputs, mapping map[string]string, namespace string, siblingIDs, declaredInputs map[string]bool) Inputs {
	if inputs == nil {
		return nil
	}
	out := make(Inputs, len(inputs))
	for i, in := range inputs {
		switch {
		case declaredInputs[in]:
			if mapped, ok := mapping[in]; ok {
				out[i] = mapped
			} else {
				out[i] = in
			}
		case siblingIDs[in]:
			out[i] = namespacedID(namespace, in)
		default:
			out[i] = in
		}
	}
	return out
}

func namespacedID(namespace, id string) string {
	return namespace + "__" + id
}

// namespaceKey is the plain-data input hashed to derive a child_runbook
// expansion's namespace: the parent runbook file, the child_runbook
// artifact's own id within it, and the resolved child path. That triple is
// already unique per expansion point in the inclusion tree (an artifact id
// is unique within the YAML file that declares it), so the derived
// namespace is both collision-free and reproducible — two processes
// flattening the same runbook tree independently land on the same
// namespace, which the planner's determinism property (spec.md §8) depends
// on.
type namespaceKey struct {
	ParentPath string
	ArtifactID string
	ChildPath  string
}

// deriveNamespace computes a content-derived namespace prefix, grounded on
// the teacher's internal/pipeline/runid.go hash-suffix approach
// (github.com/mitchellh/hashstructure/v2) rather than a process-local
// counter.
func (f *Flattener) deriveNamespace(parentPath, artifactID, childPath, childName string) string {
	h, err := hashstructure.Hash(namespaceKey{ParentPath: parentPath, ArtifactID: artifactID, ChildPath: childPath}, hashstructure.FormatV2, nil)
	if err != nil {
		f.namespaceFallback++
		h = uint64(f.namespaceFallback)
	}
	return fmt.Sprintf("%s_%x", sanitizeNamespace(childName), h)
}

// resolveChildPath resolves a child_runbook path relative to the parent
// runbook's own directory first, then against each configured template
// path, mirroring the original flattener's path resolution order.
func resolveChildPath(childPath, parentRunbookPath string, templatePaths []string) (string, error) {
	if filepath.IsAbs(childPath) {
		if _, err := os.Stat(childPath); err == nil {
			return childPath, nil
		}
	}

	candidates := make([]string, 0, len(templatePaths)+1)
	candidates = append(candidates, filepath.Join(filepath.Dir(parentRunbookPath), childPath))
	for _, tp := range templatePaths {
		candidates = append(candidates, filepath.Join(tp, childPath))
	}

	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c, nil
		}
	}

	return "", &wcferrors.RunbookLoadError{Path: childPath, Err: fmt.Errorf("child runbook not found (tried %v)", candidates)}
}

func sanitizeNamespace(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	if len(out) == 0 {
		return "child"
	}
	return string(out)
}
