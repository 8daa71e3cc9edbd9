package core

import (
	"fmt"
	"sort"
)

// DefaultMaxResolveDepth bounds the fixed-point iteration during token
// resolution. A well-formed token graph resolves in a handful of passes;
// hitting the bound means two or more tokens depend on each other's values.
const DefaultMaxResolveDepth = 32

// ResolveContext supplies everything a token resolver may consult: the
// completed logical identifier table for the stack being synthesized. It also
// collects the identifiers referenced while resolving one resource's
// properties, which become implied dependency edges.
type ResolveContext struct {
	ids      *IdentifierTable
	maxDepth int

	referenced map[string]struct{}
}

// NewResolveContext creates a context over a completed identifier table with
// the default depth bound.
func NewResolveContext(ids *IdentifierTable) *ResolveContext {
	return &ResolveContext{
		ids:        ids,
		maxDepth:   DefaultMaxResolveDepth,
		referenced: make(map[string]struct{}),
	}
}

// WithMaxDepth overrides the fixed-point iteration bound.
func (c *ResolveContext) WithMaxDepth(depth int) *ResolveContext {
	if depth > 0 {
		c.maxDepth = depth
	}
	return c
}

// IdentifierTable returns the table of assigned logical identifiers.
func (c *ResolveContext) IdentifierTable() *IdentifierTable {
	return c.ids
}

// noteReference records that the value being resolved referenced the given
// logical identifier. Synthesis turns these into dependency edges.
func (c *ResolveContext) noteReference(logicalID string) {
	c.referenced[logicalID] = struct{}{}
}

// takeReferences returns the identifiers referenced since the last call, in
// sorted order, and resets the collection.
func (c *ResolveContext) takeReferences() []string {
	if len(c.referenced) == 0 {
		return nil
	}
	out := make([]string, 0, len(c.referenced))
	for id := range c.referenced {
		out = append(out, id)
	}
	sort.Strings(out)
	c.referenced = make(map[string]struct{})
	return out
}

// Resolve recursively walks value, replacing every token - structural or
// string-embedded - with its resolved form, repeating until no tokens remain.
// Inputs are never mutated; Resolve builds fresh containers. It returns
// UnresolvableTokenError when resolution exceeds the context's depth bound.
func Resolve(value interface{}, ctx *ResolveContext) (interface{}, error) {
	return resolveValue(value, ctx, 0)
}

func resolveValue(v interface{}, ctx *ResolveContext, depth int) (interface{}, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil

	case Token:
		if depth >= ctx.maxDepth {
			return nil, &UnresolvableTokenError{Display: val.String(), MaxDepth: ctx.maxDepth}
		}
		out, err := val.ResolveToken(ctx)
		if err != nil {
			return nil, err
		}
		return resolveValue(out, ctx, depth+1)

	case string:
		return resolveString(val, ctx, depth)

	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, elem := range val {
			key, err := resolveValue(k, ctx, depth)
			if err != nil {
				return nil, err
			}
			keyStr, ok := key.(string)
			if !ok {
				return nil, fmt.Errorf("map key %q resolved to non-string value %v", k, key)
			}
			resolved, err := resolveValue(elem, ctx, depth)
			if err != nil {
				return nil, err
			}
			out[keyStr] = resolved
		}
		return out, nil

	case []interface{}:
		out := make([]interface{}, len(val))
		for i, elem := range val {
			resolved, err := resolveValue(elem, ctx, depth)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil

	case *OrderedMap:
		out := NewOrderedMap()
		for _, k := range val.Keys() {
			elem, _ := val.Get(k)
			resolved, err := resolveValue(elem, ctx, depth)
			if err != nil {
				return nil, err
			}
			out.Set(k, resolved)
		}
		return out, nil

	default:
		// Primitive (bool, number) or an already-final value.
		return v, nil
	}
}

// resolveString decodes embedded token markers and reconstructs a composite
// value. When every fragment resolves to a string the result is a plain
// concatenation; otherwise the fragments become an Fn::Join expression, since
// the template format expresses that composition only as an in-document
// function call.
func resolveString(s string, ctx *ResolveContext, depth int) (interface{}, error) {
	if !ContainsToken(s) {
		return s, nil
	}
	if depth >= ctx.maxDepth {
		return nil, &UnresolvableTokenError{Display: s, MaxDepth: ctx.maxDepth}
	}

	frags := splitTokenString(s)

	// A string that is exactly one token keeps the token's full value, even
	// when that value is not a string.
	if len(frags) == 1 && frags[0].token != nil {
		return resolveValue(frags[0].token, ctx, depth)
	}

	parts := make([]interface{}, 0, len(frags))
	allStrings := true
	for _, frag := range frags {
		if frag.token == nil {
			parts = append(parts, frag.literal)
			continue
		}
		resolved, err := resolveValue(frag.token, ctx, depth+1)
		if err != nil {
			return nil, err
		}
		if _, ok := resolved.(string); !ok {
			allStrings = false
		}
		parts = append(parts, resolved)
	}

	if allStrings {
		var out string
		for _, p := range parts {
			out += p.(string)
		}
		return out, nil
	}
	return FnJoin("", mergeAdjacentStrings(parts)), nil
}

// mergeAdjacentStrings folds neighboring literal strings into one element so
// the emitted Fn::Join stays readable.
func mergeAdjacentStrings(parts []interface{}) []interface{} {
	out := make([]interface{}, 0, len(parts))
	for _, p := range parts {
		s, isStr := p.(string)
		if isStr && len(out) > 0 {
			if prev, ok := out[len(out)-1].(string); ok {
				out[len(out)-1] = prev + s
				continue
			}
		}
		out = append(out, p)
	}
	return out
}
