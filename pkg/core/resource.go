package core

import "fmt"

// Resource is a construct that contributes one resource declaration to its
// enclosing stack's template. Properties may contain tokens and may keep
// being filled in after creation; they are only consumed at synthesis time,
// so a property can reference a sibling created later in program order.
type Resource struct {
	node         *Node
	resourceType string
	properties   map[string]interface{}

	deletionPolicy string
	condition      string

	required []string
}

// NewResource attaches a resource construct under scope. The id must be
// unique among scope's children. props may be nil.
func NewResource(scope *Node, id, resourceType string, props map[string]interface{}) (*Resource, error) {
	node, err := NewNode(scope, id)
	if err != nil {
		return nil, err
	}
	if node.EnclosingStack() == nil {
		return nil, fmt.Errorf("resource %q must be created inside a stack", node.PathString())
	}
	if props == nil {
		props = make(map[string]interface{})
	}
	r := &Resource{
		node:         node,
		resourceType: resourceType,
		properties:   props,
	}
	node.resource = r
	node.AddValidation(r.validate)
	return r, nil
}

// Node returns the resource's tree node.
func (r *Resource) Node() *Node {
	return r.node
}

// Type returns the resource type identifier (e.g. "AWS::SQS::Queue").
func (r *Resource) Type() string {
	return r.resourceType
}

// Properties returns the live property bag. Values may contain tokens.
func (r *Resource) Properties() map[string]interface{} {
	return r.properties
}

// SetProperty sets a single property. Allowed any time before synthesis.
func (r *Resource) SetProperty(name string, value interface{}) {
	r.properties[name] = value
}

// SetDeletionPolicy sets the declaration's deletion policy.
func (r *Resource) SetDeletionPolicy(policy string) {
	r.deletionPolicy = policy
}

// SetCondition attaches a template condition name to the declaration.
func (r *Resource) SetCondition(name string) {
	r.condition = name
}

// RequireProperties registers properties that must be present at synthesis.
// Missing ones are reported through the aggregated ValidationError.
func (r *Resource) RequireProperties(names ...string) {
	r.required = append(r.required, names...)
}

// Ref returns a token that resolves to a Ref intrinsic over this resource's
// assigned logical identifier.
func (r *Resource) Ref() Token {
	t := &refToken{target: r.node}
	t.marker = tokens.register(t)
	return t
}

// GetAtt returns a token that resolves to a Fn::GetAtt intrinsic over the
// named attribute of this resource.
func (r *Resource) GetAtt(attribute string) Token {
	t := &getAttToken{target: r.node, attribute: attribute}
	t.marker = tokens.register(t)
	return t
}

// LogicalID returns a token that resolves to this resource's assigned
// logical identifier as a plain string.
func (r *Resource) LogicalID() Token {
	t := &logicalIDToken{target: r.node}
	t.marker = tokens.register(t)
	return t
}

func (r *Resource) validate() []string {
	var problems []string
	if r.resourceType == "" {
		problems = append(problems, "resource type must not be empty")
	}
	for _, name := range r.required {
		if _, ok := r.properties[name]; !ok {
			problems = append(problems, fmt.Sprintf("missing required property %q", name))
		}
	}
	return problems
}
