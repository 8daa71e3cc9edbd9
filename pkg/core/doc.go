// Package core implements the Cirrus construct tree and template synthesizer.
// It defines the build -> synthesize pipeline: user code assembles a tree of
// constructs (stacks, resources, plain scopes), and Synthesize walks that
// tree once to produce a fully resolved template document per stack.
//
// The package is built around four pieces:
//
//  1. Construct tree - an ordered, path-addressed scope graph. Every node has
//     a stable path from the root; sibling names are unique; parents never
//     change after creation.
//  2. Tokens - placeholders for values that are unknown until synthesis
//     (logical identifiers, attribute references, lazy computations). Tokens
//     can be embedded in maps, slices, and strings.
//  3. Synthesizer - assigns deterministic logical identifiers, resolves
//     tokens against the completed identifier table, orders resources by
//     dependency, and aggregates validation failures.
//  4. Template documents - the in-memory CloudFormation-style output,
//     serializable to JSON or YAML with stable ordering.
//
// Tree construction and synthesis are single-threaded by design. The tree is
// mutable only while it is being built; synthesis treats it as read-only and
// produces immutable documents.
package core
