package core

import "fmt"

// Stack is a construct whose subtree synthesizes to one template document.
// Stacks live directly or indirectly under the app root and cannot nest.
type Stack struct {
	node        *Node
	description string

	parameters *OrderedMap
	mappings   *OrderedMap
	conditions *OrderedMap
	outputs    *OrderedMap
}

// NewStack attaches a stack construct under scope.
func NewStack(scope *Node, id string) (*Stack, error) {
	node, err := NewNode(scope, id)
	if err != nil {
		return nil, err
	}
	if enclosing := node.EnclosingStack(); enclosing != nil && enclosing.node != node {
		return nil, fmt.Errorf("stack %q cannot be nested inside stack %q", node.PathString(), enclosing.Name())
	}
	s := &Stack{
		node:       node,
		parameters: NewOrderedMap(),
		mappings:   NewOrderedMap(),
		conditions: NewOrderedMap(),
		outputs:    NewOrderedMap(),
	}
	node.stack = s
	return s, nil
}

// Node returns the stack's tree node.
func (s *Stack) Node() *Node {
	return s.node
}

// Name returns the stack's id.
func (s *Stack) Name() string {
	return s.node.ID()
}

// SetDescription sets the template description.
func (s *Stack) SetDescription(desc string) {
	s.description = desc
}

// AddParameter declares a template parameter. The definition is the raw
// parameter body (Type, Default, AllowedValues, ...) and may contain tokens.
func (s *Stack) AddParameter(name string, definition map[string]interface{}) {
	s.parameters.Set(name, definition)
}

// AddMapping declares a template mapping. May contain tokens.
func (s *Stack) AddMapping(name string, mapping map[string]interface{}) {
	s.mappings.Set(name, mapping)
}

// AddCondition declares a template condition expression. May contain tokens.
func (s *Stack) AddCondition(name string, expression interface{}) {
	s.conditions.Set(name, expression)
}

// AddOutput declares a template output. The value may contain tokens.
func (s *Stack) AddOutput(name string, value interface{}) {
	s.outputs.Set(name, map[string]interface{}{"Value": value})
}

// AddOutputWithDescription declares a described template output.
func (s *Stack) AddOutputWithDescription(name string, value interface{}, desc string) {
	s.outputs.Set(name, map[string]interface{}{"Description": desc, "Value": value})
}
