package core

import (
	"fmt"
	"strings"
)

// MetadataEntry is one raw key/value annotation attached to a node.
type MetadataEntry struct {
	Key   string      `json:"key"`
	Value interface{} `json:"value"`
}

// Node is one vertex of the construct tree. A node owns its children in
// insertion order; everything else (dependencies, references) is a non-owning
// lookup by path or logical identifier. The parent is fixed at creation and
// never reassigned.
type Node struct {
	id       string
	parent   *Node
	children []*Node
	byID     map[string]*Node

	metadata     []MetadataEntry
	dependencies []*Node
	validations  []func() []string

	// resource is set when this node contributes a resource declaration.
	resource *Resource

	// stack is set when this node roots a stack subtree.
	stack *Stack
}

// App is the root of a construct tree. One app may contain any number of
// stacks; each stack synthesizes to its own template document.
type App struct {
	root *Node
}

// NewApp creates an empty construct tree.
func NewApp() *App {
	return &App{
		root: &Node{byID: make(map[string]*Node)},
	}
}

// Node returns the root node of the app.
func (a *App) Node() *Node {
	return a.root
}

// NewNode attaches a new child node under scope. The id must be non-empty,
// must not contain a path separator, and must be unique among scope's
// children; a collision returns DuplicateNameError.
func NewNode(scope *Node, id string) (*Node, error) {
	if scope == nil {
		return nil, fmt.Errorf("scope is nil")
	}
	if id == "" {
		return nil, fmt.Errorf("construct id must not be empty (scope %q)", scope.PathString())
	}
	if strings.Contains(id, "/") {
		return nil, fmt.Errorf("construct id %q must not contain '/'", id)
	}
	if _, exists := scope.byID[id]; exists {
		return nil, &DuplicateNameError{ParentPath: scope.PathString(), Name: id}
	}

	n := &Node{
		id:     id,
		parent: scope,
		byID:   make(map[string]*Node),
	}
	scope.children = append(scope.children, n)
	scope.byID[id] = n
	return n, nil
}

// ID returns the node's id within its parent scope.
func (n *Node) ID() string {
	return n.id
}

// Parent returns the owning scope, or nil for the root.
func (n *Node) Parent() *Node {
	return n.parent
}

// Children returns the node's children in insertion order. The returned
// slice must not be mutated.
func (n *Node) Children() []*Node {
	return n.children
}

// Child returns the child with the given id, or nil.
func (n *Node) Child(id string) *Node {
	return n.byID[id]
}

// Path returns the ordered path segments from the root to this node. The
// root itself has an empty path.
func (n *Node) Path() []string {
	if n.parent == nil {
		return nil
	}
	return append(n.parent.Path(), n.id)
}

// PathString returns the path segments joined with "/".
func (n *Node) PathString() string {
	return strings.Join(n.Path(), "/")
}

// AddMetadata attaches a raw key/value entry to the node. Entries are kept in
// insertion order and carried into the synthesized resource, if any.
func (n *Node) AddMetadata(key string, value interface{}) {
	n.metadata = append(n.metadata, MetadataEntry{Key: key, Value: value})
}

// Metadata returns the node's metadata entries in insertion order.
func (n *Node) Metadata() []MetadataEntry {
	return n.metadata
}

// AddDependency records that resources emitted by this node's subtree must be
// ordered after resources emitted by target's subtree.
func (n *Node) AddDependency(target *Node) {
	if target == nil || target == n {
		return
	}
	n.dependencies = append(n.dependencies, target)
}

// Dependencies returns the node's explicit dependency targets.
func (n *Node) Dependencies() []*Node {
	return n.dependencies
}

// AddValidation registers a validation hook run during synthesis. Each
// returned string is reported as one failure attributed to this node.
// Failures across the whole tree are aggregated into a single
// ValidationError rather than aborting on the first.
func (n *Node) AddValidation(fn func() []string) {
	n.validations = append(n.validations, fn)
}

// Resource returns the resource contributed by this node, or nil.
func (n *Node) Resource() *Resource {
	return n.resource
}

// Stack returns the stack rooted at this node, or nil.
func (n *Node) Stack() *Stack {
	return n.stack
}

// Walk visits the subtree rooted at n in pre-order, deterministic by
// insertion order. Sibling ordering is part of the contract: it participates
// in default-name generation and in dependency tie-breaking.
func (n *Node) Walk(visit func(*Node)) {
	visit(n)
	for _, child := range n.children {
		child.Walk(visit)
	}
}

// EnclosingStack returns the nearest ancestor (or self) that roots a stack,
// or nil when the node is not inside a stack subtree.
func (n *Node) EnclosingStack() *Stack {
	for cur := n; cur != nil; cur = cur.parent {
		if cur.stack != nil {
			return cur.stack
		}
	}
	return nil
}

func (n *Node) runValidations() []ValidationFailure {
	var failures []ValidationFailure
	for _, fn := range n.validations {
		for _, msg := range fn() {
			failures = append(failures, ValidationFailure{Path: n.PathString(), Message: msg})
		}
	}
	return failures
}
