package core

import "fmt"

// FnRef builds a Ref intrinsic over a logical identifier.
func FnRef(logicalID string) map[string]interface{} {
	return map[string]interface{}{"Ref": logicalID}
}

// FnGetAtt builds a Fn::GetAtt intrinsic.
func FnGetAtt(logicalID, attribute string) map[string]interface{} {
	return map[string]interface{}{"Fn::GetAtt": []interface{}{logicalID, attribute}}
}

// FnJoin builds a Fn::Join intrinsic.
func FnJoin(delimiter string, parts []interface{}) map[string]interface{} {
	return map[string]interface{}{"Fn::Join": []interface{}{delimiter, parts}}
}

// refToken resolves to a Ref intrinsic over the target's assigned logical
// identifier and records an implied dependency edge.
type refToken struct {
	marker string
	target *Node
}

func (t *refToken) ResolveToken(ctx *ResolveContext) (interface{}, error) {
	id, err := lookupTarget(ctx, t.target)
	if err != nil {
		return nil, err
	}
	ctx.noteReference(id)
	return FnRef(id), nil
}

func (t *refToken) String() string { return t.marker }

// getAttToken resolves to a Fn::GetAtt intrinsic over the target's assigned
// logical identifier and records an implied dependency edge.
type getAttToken struct {
	marker    string
	target    *Node
	attribute string
}

func (t *getAttToken) ResolveToken(ctx *ResolveContext) (interface{}, error) {
	id, err := lookupTarget(ctx, t.target)
	if err != nil {
		return nil, err
	}
	ctx.noteReference(id)
	return FnGetAtt(id, t.attribute), nil
}

func (t *getAttToken) String() string { return t.marker }

// logicalIDToken resolves to the target's assigned logical identifier as a
// plain string and records an implied dependency edge.
type logicalIDToken struct {
	marker string
	target *Node
}

func (t *logicalIDToken) ResolveToken(ctx *ResolveContext) (interface{}, error) {
	id, err := lookupTarget(ctx, t.target)
	if err != nil {
		return nil, err
	}
	ctx.noteReference(id)
	return id, nil
}

func (t *logicalIDToken) String() string { return t.marker }

func lookupTarget(ctx *ResolveContext, target *Node) (string, error) {
	id, ok := ctx.ids.LogicalIDForPath(target.PathString())
	if !ok {
		return "", fmt.Errorf("referenced resource %q is not part of the stack being synthesized", target.PathString())
	}
	return id, nil
}
