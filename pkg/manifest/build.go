package manifest

import (
	"context"
	"fmt"
	"sort"

	"github.com/cirrus-iac/cirrus/pkg/core"
)

// Builder turns a parsed manifest into a construct tree.
type Builder struct {
	exprs *ExprEvaluator
}

// NewBuilder creates a builder with the given expression evaluator. A nil
// evaluator gets a default one.
func NewBuilder(exprs *ExprEvaluator) *Builder {
	if exprs == nil {
		exprs = NewExprEvaluator(0)
	}
	return &Builder{exprs: exprs}
}

// Build constructs the app tree declared by the manifest. The manifest must
// be error-free; reference forms in properties become tokens that resolve
// during synthesis.
func Build(m *Manifest) (*core.App, error) {
	return NewBuilder(nil).Build(m)
}

// Build constructs the app tree declared by the manifest.
func (b *Builder) Build(m *Manifest) (*core.App, error) {
	if len(m.Errors) > 0 {
		return nil, fmt.Errorf("manifest has %d error(s); first: %s", len(m.Errors), m.Errors[0].Message)
	}

	app := core.NewApp()
	for _, sm := range m.Stacks {
		if err := b.buildStack(app, m, sm); err != nil {
			return nil, fmt.Errorf("stack %q: %w", sm.Name, err)
		}
	}
	return app, nil
}

func (b *Builder) buildStack(app *core.App, m *Manifest, sm StackManifest) error {
	stack, err := core.NewStack(app.Node(), sm.Name)
	if err != nil {
		return err
	}
	stack.SetDescription(sm.Description)

	// First pass: create every resource so references can point forward.
	byID := make(map[string]*core.Resource, len(sm.Resources))
	for _, rm := range sm.Resources {
		res, err := core.NewResource(stack.Node(), rm.ID, rm.Type, nil)
		if err != nil {
			return err
		}
		byID[rm.ID] = res
	}

	scope := &referenceScope{
		builder:   b,
		stack:     stack,
		byID:      byID,
		variables: m.Variables,
	}

	// Second pass: properties, dependencies, and the rest of the declaration.
	for _, rm := range sm.Resources {
		res := byID[rm.ID]
		for name, value := range rm.Properties {
			converted, err := scope.convert(value)
			if err != nil {
				return fmt.Errorf("resource %q property %q: %w", rm.ID, name, err)
			}
			res.SetProperty(name, converted)
		}
		for _, dep := range rm.DependsOn {
			target, ok := byID[dep]
			if !ok {
				return fmt.Errorf("resource %q depends on unknown resource %q", rm.ID, dep)
			}
			res.Node().AddDependency(target.Node())
		}
		if rm.DeletionPolicy != "" {
			res.SetDeletionPolicy(rm.DeletionPolicy)
		}
		if rm.Condition != "" {
			res.SetCondition(rm.Condition)
		}
		for _, key := range sortedKeys(rm.Metadata) {
			res.Node().AddMetadata(key, rm.Metadata[key])
		}
	}

	for _, name := range sortedKeys(sm.Parameters) {
		stack.AddParameter(name, sm.Parameters[name])
	}
	for _, name := range sortedKeys(sm.Mappings) {
		stack.AddMapping(name, sm.Mappings[name])
	}
	for _, name := range sortedKeys(sm.Conditions) {
		converted, err := scope.convert(sm.Conditions[name])
		if err != nil {
			return fmt.Errorf("condition %q: %w", name, err)
		}
		stack.AddCondition(name, converted)
	}
	for _, name := range sortedKeys(sm.Outputs) {
		out := sm.Outputs[name]
		converted, err := scope.convert(out.Value)
		if err != nil {
			return fmt.Errorf("output %q: %w", name, err)
		}
		if out.Description != "" {
			stack.AddOutputWithDescription(name, converted, out.Description)
		} else {
			stack.AddOutput(name, converted)
		}
	}

	return nil
}

// referenceScope resolves the manifest's reference forms against one stack's
// resources.
type referenceScope struct {
	builder   *Builder
	stack     *core.Stack
	byID      map[string]*core.Resource
	variables map[string]interface{}
}

// convert walks a decoded property value and replaces the reference forms
// {"$ref": id}, {"$getAtt": [id, attr]}, and {"$expr": expression} with
// tokens. Everything else passes through structurally.
func (s *referenceScope) convert(value interface{}) (interface{}, error) {
	switch v := value.(type) {
	case map[string]interface{}:
		if token, ok, err := s.convertReference(v); ok || err != nil {
			return token, err
		}
		out := make(map[string]interface{}, len(v))
		for k, elem := range v {
			converted, err := s.convert(elem)
			if err != nil {
				return nil, err
			}
			out[k] = converted
		}
		return out, nil
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, elem := range v {
			converted, err := s.convert(elem)
			if err != nil {
				return nil, err
			}
			out[i] = converted
		}
		return out, nil
	default:
		return value, nil
	}
}

// convertReference recognizes a single-key reference form. The bool reports
// whether the map was one.
func (s *referenceScope) convertReference(m map[string]interface{}) (interface{}, bool, error) {
	if len(m) != 1 {
		return nil, false, nil
	}

	if raw, ok := m["$ref"]; ok {
		id, ok := raw.(string)
		if !ok {
			return nil, true, fmt.Errorf("$ref must be a resource id string, got %T", raw)
		}
		res, ok := s.byID[id]
		if !ok {
			return nil, true, fmt.Errorf("$ref to unknown resource %q", id)
		}
		return res.Ref(), true, nil
	}

	if raw, ok := m["$getAtt"]; ok {
		parts, ok := raw.([]interface{})
		if !ok || len(parts) != 2 {
			return nil, true, fmt.Errorf("$getAtt must be [resource id, attribute]")
		}
		id, idOK := parts[0].(string)
		attr, attrOK := parts[1].(string)
		if !idOK || !attrOK {
			return nil, true, fmt.Errorf("$getAtt must be [resource id, attribute]")
		}
		res, ok := s.byID[id]
		if !ok {
			return nil, true, fmt.Errorf("$getAtt to unknown resource %q", id)
		}
		return res.GetAtt(attr), true, nil
	}

	if raw, ok := m["$expr"]; ok {
		expr, ok := raw.(string)
		if !ok {
			return nil, true, fmt.Errorf("$expr must be an expression string, got %T", raw)
		}
		return s.exprToken(expr), true, nil
	}

	return nil, false, nil
}

// exprToken defers a Starlark expression to synthesis time, when the logical
// identifier table is complete. The expression sees `ids` (resource id ->
// logical identifier) and `vars` (manifest variables).
func (s *referenceScope) exprToken(expr string) core.Token {
	return core.Lazy(func(ctx *core.ResolveContext) (interface{}, error) {
		ids := make(map[string]interface{}, len(s.byID))
		for id, res := range s.byID {
			logicalID, ok := ctx.IdentifierTable().LogicalIDForPath(res.Node().PathString())
			if !ok {
				continue
			}
			ids[id] = logicalID
		}

		env := map[string]interface{}{
			"ids":   ids,
			"vars":  s.variables,
			"stack": s.stack.Name(),
		}
		if env["vars"] == nil {
			env["vars"] = map[string]interface{}{}
		}

		value, err := s.builder.exprs.Evaluate(context.Background(), expr, env)
		if err != nil {
			return nil, fmt.Errorf("$expr %q: %w", expr, err)
		}
		return value, nil
	})
}

// sortedKeys fixes an iteration order for manifest maps so synthesis output
// is stable across runs.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
