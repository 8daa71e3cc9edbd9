package core

import (
	"errors"
	"testing"
)

func TestNodePaths(t *testing.T) {
	app := NewApp()
	parent, err := NewNode(app.Node(), "Parent")
	if err != nil {
		t.Fatalf("failed to create parent: %v", err)
	}
	child, err := NewNode(parent, "Child")
	if err != nil {
		t.Fatalf("failed to create child: %v", err)
	}

	if got := app.Node().PathString(); got != "" {
		t.Errorf("root path = %q, want empty", got)
	}
	if got := parent.PathString(); got != "Parent" {
		t.Errorf("parent path = %q, want Parent", got)
	}
	if got := child.PathString(); got != "Parent/Child" {
		t.Errorf("child path = %q, want Parent/Child", got)
	}
	if child.Parent() != parent {
		t.Error("child parent is not the creating scope")
	}
}

func TestDuplicateSiblingName(t *testing.T) {
	app := NewApp()
	scope, _ := NewNode(app.Node(), "Scope")
	if _, err := NewNode(scope, "A"); err != nil {
		t.Fatalf("first child failed: %v", err)
	}

	_, err := NewNode(scope, "A")
	if err == nil {
		t.Fatal("expected duplicate name error")
	}
	var dup *DuplicateNameError
	if !errors.As(err, &dup) {
		t.Fatalf("expected DuplicateNameError, got %T: %v", err, err)
	}
	if dup.ParentPath != "Scope" || dup.Name != "A" {
		t.Errorf("unexpected error fields: %+v", dup)
	}

	// A sibling with a different name is still fine.
	if _, err := NewNode(scope, "B"); err != nil {
		t.Errorf("distinct sibling failed: %v", err)
	}
}

func TestInvalidIDs(t *testing.T) {
	app := NewApp()
	if _, err := NewNode(app.Node(), ""); err == nil {
		t.Error("empty id should be rejected")
	}
	if _, err := NewNode(app.Node(), "a/b"); err == nil {
		t.Error("id containing '/' should be rejected")
	}
}

func TestWalkIsPreOrderInsertionOrder(t *testing.T) {
	app := NewApp()
	a, _ := NewNode(app.Node(), "A")
	// Insertion order deliberately not alphabetical.
	NewNode(a, "Zebra")
	NewNode(a, "Alpha")
	b, _ := NewNode(app.Node(), "B")
	NewNode(b, "Middle")

	var visited []string
	app.Node().Walk(func(n *Node) {
		visited = append(visited, n.PathString())
	})

	want := []string{"", "A", "A/Zebra", "A/Alpha", "B", "B/Middle"}
	if len(visited) != len(want) {
		t.Fatalf("visited %d nodes, want %d: %v", len(visited), len(want), visited)
	}
	for i := range want {
		if visited[i] != want[i] {
			t.Errorf("visit[%d] = %q, want %q", i, visited[i], want[i])
		}
	}
}

func TestMetadataInsertionOrder(t *testing.T) {
	app := NewApp()
	n, _ := NewNode(app.Node(), "N")
	n.AddMetadata("first", 1)
	n.AddMetadata("second", "two")

	md := n.Metadata()
	if len(md) != 2 {
		t.Fatalf("metadata count = %d, want 2", len(md))
	}
	if md[0].Key != "first" || md[1].Key != "second" {
		t.Errorf("metadata out of order: %+v", md)
	}
}

func TestEnclosingStack(t *testing.T) {
	app := NewApp()
	stack, err := NewStack(app.Node(), "Prod")
	if err != nil {
		t.Fatalf("failed to create stack: %v", err)
	}
	inner, _ := NewNode(stack.Node(), "Group")
	leaf, _ := NewNode(inner, "Leaf")

	if got := leaf.EnclosingStack(); got != stack {
		t.Errorf("enclosing stack = %v, want Prod", got)
	}
	if got := app.Node().EnclosingStack(); got != nil {
		t.Errorf("root should have no enclosing stack, got %v", got)
	}
}

func TestNestedStacksRejected(t *testing.T) {
	app := NewApp()
	outer, _ := NewStack(app.Node(), "Outer")
	if _, err := NewStack(outer.Node(), "Inner"); err == nil {
		t.Error("nested stack should be rejected")
	}
}

func TestResourceOutsideStackRejected(t *testing.T) {
	app := NewApp()
	if _, err := NewResource(app.Node(), "R", "AWS::SQS::Queue", nil); err == nil {
		t.Error("resource outside a stack should be rejected")
	}
}
