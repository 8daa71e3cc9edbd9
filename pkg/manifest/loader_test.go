package manifest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

const sampleManifest = `
app: name: "orders"

variables: env: "dev"

stacks: Api: {
	description: "order intake"
	resources: {
		Queue: {
			type: "AWS::SQS::Queue"
			properties: QueueName: "orders"
		}
		Sub: {
			type: "AWS::SNS::Subscription"
			properties: {
				Endpoint: {"$getAtt": ["Queue", "Arn"]}
				TopicArn: {"$ref": "Queue"}
			}
			dependsOn: ["Queue"]
		}
	}
	outputs: QueueRef: {
		value: {"$ref": "Queue"}
		description: "queue reference"
	}
}
`

func newTestLoader() *Loader {
	return NewLoader(zerolog.Nop())
}

func TestLoadInline(t *testing.T) {
	m, err := newTestLoader().LoadInline(context.Background(), sampleManifest)
	if err != nil {
		t.Fatalf("LoadInline: %v", err)
	}
	if len(m.Errors) > 0 {
		t.Fatalf("unexpected manifest errors: %+v", m.Errors)
	}

	if m.App.Name != "orders" {
		t.Errorf("app name = %q", m.App.Name)
	}
	if m.Variables["env"] != "dev" {
		t.Errorf("variables = %v", m.Variables)
	}
	if len(m.Stacks) != 1 {
		t.Fatalf("stack count = %d", len(m.Stacks))
	}

	stack := m.Stacks[0]
	if stack.Name != "Api" || stack.Description != "order intake" {
		t.Errorf("stack = %+v", stack)
	}
	if len(stack.Resources) != 2 {
		t.Fatalf("resource count = %d", len(stack.Resources))
	}
	// Declaration order is preserved.
	if stack.Resources[0].ID != "Queue" || stack.Resources[1].ID != "Sub" {
		t.Errorf("resource order = %s, %s", stack.Resources[0].ID, stack.Resources[1].ID)
	}
	if stack.Resources[1].DependsOn[0] != "Queue" {
		t.Errorf("dependsOn = %v", stack.Resources[1].DependsOn)
	}
	if out, ok := stack.Outputs["QueueRef"]; !ok || out.Description != "queue reference" {
		t.Errorf("outputs = %+v", stack.Outputs)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.cue")
	if err := os.WriteFile(path, []byte(sampleManifest), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := newTestLoader().Load(context.Background(), []string{path})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(m.Errors) > 0 {
		t.Fatalf("unexpected manifest errors: %+v", m.Errors)
	}
	if len(m.SourceFiles) != 1 || m.SourceFiles[0] != path {
		t.Errorf("source files = %v", m.SourceFiles)
	}
	if len(m.Stacks) != 1 || len(m.Stacks[0].Resources) != 2 {
		t.Errorf("parsed manifest shape unexpected: %+v", m.Stacks)
	}
}

func TestSyntaxErrorIsCollected(t *testing.T) {
	m, err := newTestLoader().LoadInline(context.Background(), `app: { name: `)
	if err != nil {
		t.Fatalf("LoadInline must not fail on syntax errors: %v", err)
	}
	if len(m.Errors) == 0 {
		t.Fatal("expected collected errors for malformed CUE")
	}
	if m.Errors[0].Severity != "error" {
		t.Errorf("severity = %q", m.Errors[0].Severity)
	}
}

func TestMissingAppBlockIsCollected(t *testing.T) {
	m, err := newTestLoader().LoadInline(context.Background(), `stacks: S: resources: {}`)
	if err != nil {
		t.Fatalf("LoadInline: %v", err)
	}
	found := false
	for _, e := range m.Errors {
		if e.Path == "app" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected an error at path app, got %+v", m.Errors)
	}
}

func TestResourceMissingTypeIsCollected(t *testing.T) {
	content := `
app: name: "x"
stacks: S: resources: Bad: properties: {}
`
	m, err := newTestLoader().LoadInline(context.Background(), content)
	if err != nil {
		t.Fatalf("LoadInline: %v", err)
	}
	if len(m.Errors) == 0 {
		t.Fatal("expected validation error for resource without a type")
	}
}

func TestLoadRejectsEmptySources(t *testing.T) {
	if _, err := newTestLoader().Load(context.Background(), nil); err == nil {
		t.Error("Load(nil) must fail")
	}
}
