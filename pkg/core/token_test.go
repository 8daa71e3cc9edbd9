package core

import (
	"errors"
	"fmt"
	"reflect"
	"testing"
)

func newTestContext() *ResolveContext {
	return NewResolveContext(newIdentifierTable())
}

func TestLazyTokenResolves(t *testing.T) {
	tok := Lazy(func(ctx *ResolveContext) (interface{}, error) {
		return "value", nil
	})

	got, err := Resolve(tok, newTestContext())
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if got != "value" {
		t.Errorf("resolved = %v, want value", got)
	}
}

func TestTokenInsideContainers(t *testing.T) {
	tok := Lazy(func(ctx *ResolveContext) (interface{}, error) {
		return 42, nil
	})
	input := map[string]interface{}{
		"list":   []interface{}{"a", tok, true},
		"nested": map[string]interface{}{"deep": tok},
	}

	got, err := Resolve(input, newTestContext())
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	want := map[string]interface{}{
		"list":   []interface{}{"a", 42, true},
		"nested": map[string]interface{}{"deep": 42},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("resolved = %#v, want %#v", got, want)
	}

	// Inputs are not mutated.
	if _, still := input["list"].([]interface{})[1].(Token); !still {
		t.Error("input container was mutated during resolution")
	}
}

func TestStringEmbeddedTokensConcatenate(t *testing.T) {
	name := Lazy(func(ctx *ResolveContext) (interface{}, error) {
		return "orders", nil
	})
	s := fmt.Sprintf("queue-%s-dlq", name)
	if !ContainsToken(s) {
		t.Fatal("marker did not survive string formatting")
	}

	got, err := Resolve(s, newTestContext())
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if got != "queue-orders-dlq" {
		t.Errorf("resolved = %v, want queue-orders-dlq", got)
	}
}

func TestStringEmbeddedStructuredTokenBecomesJoin(t *testing.T) {
	ref := Lazy(func(ctx *ResolveContext) (interface{}, error) {
		return FnRef("Target123"), nil
	})
	s := "arn:" + ref.String() + ":suffix"

	got, err := Resolve(s, newTestContext())
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	want := FnJoin("", []interface{}{"arn:", FnRef("Target123"), ":suffix"})
	if !reflect.DeepEqual(got, want) {
		t.Errorf("resolved = %#v, want %#v", got, want)
	}
}

func TestWholeStringTokenKeepsStructuredValue(t *testing.T) {
	ref := Lazy(func(ctx *ResolveContext) (interface{}, error) {
		return FnRef("Target123"), nil
	})

	got, err := Resolve(ref.String(), newTestContext())
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if !reflect.DeepEqual(got, FnRef("Target123")) {
		t.Errorf("resolved = %#v, want Ref intrinsic", got)
	}
}

func TestNestedTokensReachFixedPoint(t *testing.T) {
	inner := Lazy(func(ctx *ResolveContext) (interface{}, error) {
		return "inner", nil
	})
	outer := Lazy(func(ctx *ResolveContext) (interface{}, error) {
		return inner, nil
	})

	got, err := Resolve(outer, newTestContext())
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if got != "inner" {
		t.Errorf("resolved = %v, want inner", got)
	}
}

func TestCyclicTokensFail(t *testing.T) {
	// Two tokens whose values each embed the other: no fixed point exists.
	var a, b Token
	a = Lazy(func(ctx *ResolveContext) (interface{}, error) {
		return b, nil
	})
	b = Lazy(func(ctx *ResolveContext) (interface{}, error) {
		return a, nil
	})

	_, err := Resolve(a, newTestContext())
	if err == nil {
		t.Fatal("expected resolution to fail on cyclic tokens")
	}
	var unresolvable *UnresolvableTokenError
	if !errors.As(err, &unresolvable) {
		t.Fatalf("expected UnresolvableTokenError, got %T: %v", err, err)
	}
}

func TestMaxDepthConfigurable(t *testing.T) {
	depth := 0
	var tok Token
	tok = Lazy(func(ctx *ResolveContext) (interface{}, error) {
		depth++
		if depth < 10 {
			return tok, nil
		}
		return "done", nil
	})

	ctx := newTestContext().WithMaxDepth(3)
	if _, err := Resolve(tok, ctx); err == nil {
		t.Error("expected failure with tightened depth bound")
	}
}

func TestLazyString(t *testing.T) {
	tok := LazyString(func(ctx *ResolveContext) (string, error) {
		return "plain", nil
	})
	got, err := Resolve(tok, newTestContext())
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if got != "plain" {
		t.Errorf("resolved = %v, want plain", got)
	}
}
