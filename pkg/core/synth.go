package core

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"
)

// Synthesizer turns a completed construct tree into template documents, one
// per stack. It observes the tree as read-only: the same unmodified tree
// synthesizes to byte-identical documents on every run.
type Synthesizer struct {
	logger zerolog.Logger
}

// NewSynthesizer creates a synthesizer that logs through the given logger.
func NewSynthesizer(logger zerolog.Logger) *Synthesizer {
	return &Synthesizer{
		logger: logger.With().Str("component", "synthesizer").Logger(),
	}
}

// Synthesize runs a silent synthesizer over the app.
func Synthesize(app *App) ([]*Document, error) {
	return NewSynthesizer(zerolog.Nop()).Synthesize(app)
}

// Synthesize validates the whole tree, then synthesizes every stack in
// discovery order. Validation failures anywhere in the tree abort synthesis
// with one aggregated ValidationError before any document is produced.
func (s *Synthesizer) Synthesize(app *App) ([]*Document, error) {
	if app == nil {
		return nil, fmt.Errorf("app is nil")
	}

	var failures []ValidationFailure
	var stacks []*Stack
	app.Node().Walk(func(n *Node) {
		failures = append(failures, n.runValidations()...)
		if n.stack != nil {
			stacks = append(stacks, n.stack)
		}
	})
	if len(failures) > 0 {
		return nil, &ValidationError{Failures: failures}
	}

	docs := make([]*Document, 0, len(stacks))
	for _, stack := range stacks {
		doc, err := s.synthesizeStack(stack)
		if err != nil {
			return nil, fmt.Errorf("stack %q: %w", stack.Name(), err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// resourceEntry pairs a resource with its assigned identity during one stack
// synthesis.
type resourceEntry struct {
	resource  *Resource
	logicalID string
	resolved  map[string]interface{}
	explicit  []string
}

func (s *Synthesizer) synthesizeStack(stack *Stack) (*Document, error) {
	root := stack.Node()
	stackDepth := len(root.Path())

	// Phase 1: collect every resource in the subtree, pre-order.
	var entries []*resourceEntry
	byNode := make(map[*Node]*resourceEntry)
	root.Walk(func(n *Node) {
		if n.resource != nil {
			e := &resourceEntry{resource: n.resource}
			entries = append(entries, e)
			byNode[n] = e
		}
	})

	// Phase 2: assign logical identifiers. The identifier is a pure function
	// of the stack-relative path, so the table can be completed before any
	// token resolves.
	ids := newIdentifierTable()
	for _, e := range entries {
		node := e.resource.Node()
		relative := node.Path()[stackDepth:]
		id, err := ids.assign(node.PathString(), relative)
		if err != nil {
			return nil, err
		}
		e.logicalID = id
	}

	// Phase 3: resolve property bags against the completed table, collecting
	// the references each resource made along the way.
	ctx := NewResolveContext(ids)
	graph := newGraphBuilder()
	for _, e := range entries {
		graph.addNode(e.logicalID)
	}
	for _, e := range entries {
		resolved, err := Resolve(e.resource.Properties(), ctx)
		if err != nil {
			return nil, err
		}
		props, ok := resolved.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("resource %q properties resolved to %T", e.logicalID, resolved)
		}
		e.resolved = props
		for _, referenced := range ctx.takeReferences() {
			graph.addEdge(referenced, e.logicalID)
		}
	}

	// Phase 4: merge in explicit dependency edges. An edge between two nodes
	// covers every resource in either subtree.
	root.Walk(func(n *Node) {
		for _, target := range n.dependencies {
			for _, dependent := range resourcesIn(n, byNode) {
				for _, dependency := range resourcesIn(target, byNode) {
					graph.addEdge(dependency.logicalID, dependent.logicalID)
					dependent.explicit = append(dependent.explicit, dependency.logicalID)
				}
			}
		}
	})

	order, err := graph.sort()
	if err != nil {
		return nil, err
	}

	// Phase 5: assemble the document in dependency order.
	doc := NewDocument(stack.Name())
	doc.Description = stack.description
	entryByID := make(map[string]*resourceEntry, len(entries))
	for _, e := range entries {
		entryByID[e.logicalID] = e
	}
	for _, id := range order {
		e := entryByID[id]
		doc.Resources.Set(id, s.buildState(e))
	}

	if doc.Parameters, err = resolveSection(stack.parameters, ctx); err != nil {
		return nil, err
	}
	if doc.Mappings, err = resolveSection(stack.mappings, ctx); err != nil {
		return nil, err
	}
	if doc.Conditions, err = resolveSection(stack.conditions, ctx); err != nil {
		return nil, err
	}
	if doc.Outputs, err = resolveSection(stack.outputs, ctx); err != nil {
		return nil, err
	}

	s.logger.Debug().
		Str("stack", stack.Name()).
		Int("resources", len(entries)).
		Msg("synthesized stack")

	return doc, nil
}

func (s *Synthesizer) buildState(e *resourceEntry) *ResourceState {
	state := &ResourceState{
		Type:           e.resource.Type(),
		Properties:     e.resolved,
		DeletionPolicy: e.resource.deletionPolicy,
		Condition:      e.resource.condition,
	}

	if len(e.explicit) > 0 {
		seen := make(map[string]struct{}, len(e.explicit))
		for _, id := range e.explicit {
			if _, dup := seen[id]; dup || id == e.logicalID {
				continue
			}
			seen[id] = struct{}{}
			state.DependsOn = append(state.DependsOn, id)
		}
		sort.Strings(state.DependsOn)
	}

	node := e.resource.Node()
	if len(node.Metadata()) > 0 {
		state.Metadata = make(map[string]interface{}, len(node.Metadata()))
		for _, entry := range node.Metadata() {
			state.Metadata[entry.Key] = entry.Value
		}
	}
	return state
}

// resourcesIn returns the resources in n's subtree, pre-order.
func resourcesIn(n *Node, byNode map[*Node]*resourceEntry) []*resourceEntry {
	var out []*resourceEntry
	n.Walk(func(child *Node) {
		if e, ok := byNode[child]; ok {
			out = append(out, e)
		}
	})
	return out
}

func resolveSection(section *OrderedMap, ctx *ResolveContext) (*OrderedMap, error) {
	if section.Len() == 0 {
		return section, nil
	}
	resolved, err := Resolve(section, ctx)
	if err != nil {
		return nil, err
	}
	out, ok := resolved.(*OrderedMap)
	if !ok {
		return nil, fmt.Errorf("template section resolved to %T", resolved)
	}
	// References made by section values are not resource edges; drop them.
	ctx.takeReferences()
	return out, nil
}
