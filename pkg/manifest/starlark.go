package manifest

import (
	"context"
	"fmt"
	"time"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// ExprEvaluator evaluates single Starlark expressions with a timeout. It backs
// the manifest's $expr property form.
type ExprEvaluator struct {
	timeout time.Duration
}

// NewExprEvaluator creates an expression evaluator.
func NewExprEvaluator(timeout time.Duration) *ExprEvaluator {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &ExprEvaluator{timeout: timeout}
}

// Evaluate evaluates one expression against the given environment and returns
// the result as a plain Go value.
func (ee *ExprEvaluator) Evaluate(ctx context.Context, expr string, env map[string]interface{}) (interface{}, error) {
	evalCtx, cancel := context.WithTimeout(ctx, ee.timeout)
	defer cancel()

	type outcome struct {
		value interface{}
		err   error
	}
	ch := make(chan outcome, 1)

	go func() {
		value, err := ee.evaluateSync(expr, env)
		ch <- outcome{value: value, err: err}
	}()

	select {
	case <-evalCtx.Done():
		return nil, fmt.Errorf("expression evaluation timeout after %v", ee.timeout)
	case out := <-ch:
		return out.value, out.err
	}
}

func (ee *ExprEvaluator) evaluateSync(expr string, env map[string]interface{}) (interface{}, error) {
	thread := &starlark.Thread{
		Name: "cirrus",
		Print: func(_ *starlark.Thread, _ string) {
			// Expressions have no side channel.
		},
	}

	predeclared := starlark.StringDict{
		"struct": starlarkstruct.Default,
	}
	for key, val := range env {
		starlarkVal, err := toStarlarkValue(val)
		if err != nil {
			return nil, fmt.Errorf("failed to convert input %s: %w", key, err)
		}
		predeclared[key] = starlarkVal
	}

	value, err := starlark.Eval(thread, "expr.star", expr, predeclared)
	if err != nil {
		return nil, fmt.Errorf("expression evaluation failed: %w", err)
	}

	return fromStarlarkValue(value)
}

// toStarlarkValue converts a Go value to a Starlark value.
func toStarlarkValue(v interface{}) (starlark.Value, error) {
	if v == nil {
		return starlark.None, nil
	}

	switch val := v.(type) {
	case bool:
		return starlark.Bool(val), nil
	case int:
		return starlark.MakeInt(val), nil
	case int64:
		return starlark.MakeInt64(val), nil
	case float64:
		return starlark.Float(val), nil
	case string:
		return starlark.String(val), nil
	case []interface{}:
		list := make([]starlark.Value, len(val))
		for i, item := range val {
			starlarkItem, err := toStarlarkValue(item)
			if err != nil {
				return nil, err
			}
			list[i] = starlarkItem
		}
		return starlark.NewList(list), nil
	case map[string]interface{}:
		dict := starlark.NewDict(len(val))
		for k, elem := range val {
			starlarkVal, err := toStarlarkValue(elem)
			if err != nil {
				return nil, err
			}
			if err := dict.SetKey(starlark.String(k), starlarkVal); err != nil {
				return nil, err
			}
		}
		return dict, nil
	case map[string]string:
		dict := starlark.NewDict(len(val))
		for k, elem := range val {
			if err := dict.SetKey(starlark.String(k), starlark.String(elem)); err != nil {
				return nil, err
			}
		}
		return dict, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

// fromStarlarkValue converts a Starlark value to a Go value.
func fromStarlarkValue(v starlark.Value) (interface{}, error) {
	switch val := v.(type) {
	case starlark.NoneType:
		return nil, nil
	case starlark.Bool:
		return bool(val), nil
	case starlark.Int:
		i, ok := val.Int64()
		if !ok {
			return nil, fmt.Errorf("integer too large")
		}
		return i, nil
	case starlark.Float:
		return float64(val), nil
	case starlark.String:
		return string(val), nil
	case *starlark.List:
		list := make([]interface{}, val.Len())
		for i := 0; i < val.Len(); i++ {
			item, err := fromStarlarkValue(val.Index(i))
			if err != nil {
				return nil, err
			}
			list[i] = item
		}
		return list, nil
	case starlark.Tuple:
		list := make([]interface{}, len(val))
		for i, item := range val {
			converted, err := fromStarlarkValue(item)
			if err != nil {
				return nil, err
			}
			list[i] = converted
		}
		return list, nil
	case *starlark.Dict:
		dict := make(map[string]interface{})
		for _, item := range val.Items() {
			key, ok := item[0].(starlark.String)
			if !ok {
				return nil, fmt.Errorf("dict key must be string")
			}
			value, err := fromStarlarkValue(item[1])
			if err != nil {
				return nil, err
			}
			dict[string(key)] = value
		}
		return dict, nil
	case *starlarkstruct.Struct:
		dict := make(map[string]interface{})
		for _, name := range val.AttrNames() {
			attr, err := val.Attr(name)
			if err != nil {
				continue
			}
			value, err := fromStarlarkValue(attr)
			if err != nil {
				return nil, err
			}
			dict[name] = value
		}
		return dict, nil
	default:
		return nil, fmt.Errorf("unsupported starlark type: %s", v.Type())
	}
}
