package core

// Token is a placeholder for a value that is unknown until synthesis time:
// a logical identifier, an attribute of another resource, or a deferred
// computation over other tokens. Tokens may appear anywhere in a property
// bag - nested in maps and slices, or embedded in strings through their
// marker encoding (see String).
//
// Resolution must be deterministic given the final identifier table; a
// resolver must not depend on traversal order.
type Token interface {
	// ResolveToken produces the token's value for the given context. The
	// result may itself contain tokens; resolution repeats until a fixed
	// point is reached.
	ResolveToken(ctx *ResolveContext) (interface{}, error)

	// String returns the token's opaque marker. Embedding the marker in a
	// string (for example via fmt.Sprintf) is reversible: resolution locates
	// every marker and reconstructs the composite value.
	String() string
}

// LazyValue computes a deferred value at synthesis time.
type LazyValue func(ctx *ResolveContext) (interface{}, error)

type lazyToken struct {
	marker  string
	produce LazyValue
}

// Lazy wraps a deferred computation in a token. The producer runs during
// synthesis with access to the completed identifier table.
func Lazy(produce LazyValue) Token {
	t := &lazyToken{produce: produce}
	t.marker = tokens.register(t)
	return t
}

// LazyString wraps a deferred computation that yields a plain string.
func LazyString(produce func(ctx *ResolveContext) (string, error)) Token {
	return Lazy(func(ctx *ResolveContext) (interface{}, error) {
		return produce(ctx)
	})
}

func (t *lazyToken) ResolveToken(ctx *ResolveContext) (interface{}, error) {
	return t.produce(ctx)
}

func (t *lazyToken) String() string {
	return t.marker
}
