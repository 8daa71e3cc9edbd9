package core

import (
	"fmt"
	"strings"
)

// DuplicateNameError reports an attempt to attach two children with the same
// id under one scope. It is returned immediately by the call that caused it.
type DuplicateNameError struct {
	// ParentPath is the path of the scope that already owns a child with Name.
	ParentPath string

	// Name is the colliding child id.
	Name string
}

// Error implements the error interface.
func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("[duplicate-name] construct %q already has a child named %q", e.ParentPath, e.Name)
}

// UnresolvableTokenError reports that token resolution did not reach a fixed
// point within the configured depth bound. It indicates a genuine cyclic
// value dependency, never a partial result.
type UnresolvableTokenError struct {
	// Display is the display form of the token that was still unresolved
	// when the bound was hit.
	Display string

	// MaxDepth is the resolution bound that was exceeded.
	MaxDepth int
}

// Error implements the error interface.
func (e *UnresolvableTokenError) Error() string {
	return fmt.Sprintf("[unresolvable-token] token %s did not resolve within %d passes (cyclic value dependency?)", e.Display, e.MaxDepth)
}

// CyclicDependencyError reports that the merged explicit and token-implied
// dependency graph has no valid linearization.
type CyclicDependencyError struct {
	// Cycle lists the logical identifiers participating in the cycle, in
	// order, with the first identifier repeated at the end.
	Cycle []string
}

// Error implements the error interface.
func (e *CyclicDependencyError) Error() string {
	return fmt.Sprintf("[cyclic-dependency] resources form a dependency cycle: %s", strings.Join(e.Cycle, " -> "))
}

// ValidationFailure is one node-local validation problem found during
// synthesis.
type ValidationFailure struct {
	// Path is the tree path of the node that reported the failure.
	Path string

	// Message describes the problem.
	Message string
}

func (f ValidationFailure) String() string {
	return fmt.Sprintf("%s: %s", f.Path, f.Message)
}

// ValidationError aggregates every node-local validation failure found in one
// synthesis pass. Synthesis collects all failures across the whole tree
// before reporting, so a user sees every problem at once.
type ValidationError struct {
	Failures []ValidationFailure
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		msgs[i] = f.String()
	}
	return fmt.Sprintf("[validation] %d construct(s) failed validation: %s", len(e.Failures), strings.Join(msgs, "; "))
}
