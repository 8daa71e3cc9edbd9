package manifest

import (
	"bytes"
	"context"
	"testing"

	"github.com/cirrus-iac/cirrus/pkg/core"
)

func loadSample(t *testing.T) *Manifest {
	t.Helper()
	m, err := newTestLoader().LoadInline(context.Background(), sampleManifest)
	if err != nil {
		t.Fatalf("LoadInline: %v", err)
	}
	if len(m.Errors) > 0 {
		t.Fatalf("manifest errors: %+v", m.Errors)
	}
	return m
}

func TestBuildMatchesHandBuiltTree(t *testing.T) {
	app, err := Build(loadSample(t))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	fromManifest, err := core.Synthesize(app)
	if err != nil {
		t.Fatalf("Synthesize(manifest tree): %v", err)
	}

	// The same app built by hand.
	hand := core.NewApp()
	stack, err := core.NewStack(hand.Node(), "Api")
	if err != nil {
		t.Fatal(err)
	}
	stack.SetDescription("order intake")
	queue, err := core.NewResource(stack.Node(), "Queue", "AWS::SQS::Queue", map[string]interface{}{
		"QueueName": "orders",
	})
	if err != nil {
		t.Fatal(err)
	}
	sub, err := core.NewResource(stack.Node(), "Sub", "AWS::SNS::Subscription", map[string]interface{}{
		"Endpoint": queue.GetAtt("Arn"),
		"TopicArn": queue.Ref(),
	})
	if err != nil {
		t.Fatal(err)
	}
	sub.Node().AddDependency(queue.Node())
	stack.AddOutputWithDescription("QueueRef", queue.Ref(), "queue reference")

	fromHand, err := core.Synthesize(hand)
	if err != nil {
		t.Fatalf("Synthesize(hand tree): %v", err)
	}

	if len(fromManifest) != 1 || len(fromHand) != 1 {
		t.Fatalf("document counts = %d, %d", len(fromManifest), len(fromHand))
	}
	gotJSON, err := fromManifest[0].EncodeJSON()
	if err != nil {
		t.Fatal(err)
	}
	wantJSON, err := fromHand[0].EncodeJSON()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(gotJSON, wantJSON) {
		t.Errorf("manifest-built template differs from hand-built:\n--- manifest\n%s\n--- hand\n%s", gotJSON, wantJSON)
	}
}

func TestBuildRejectsManifestWithErrors(t *testing.T) {
	m := &Manifest{Errors: []ValidationError{{Message: "boom", Severity: "error"}}}
	if _, err := Build(m); err == nil {
		t.Error("Build must refuse a manifest carrying errors")
	}
}

func TestBuildRejectsUnknownReference(t *testing.T) {
	content := `
app: name: "x"
stacks: S: resources: A: {
	type: "Custom::R"
	properties: Target: {"$ref": "Nope"}
}
`
	m, err := newTestLoader().LoadInline(context.Background(), content)
	if err != nil {
		t.Fatalf("LoadInline: %v", err)
	}
	if _, err := Build(m); err == nil {
		t.Error("Build must reject $ref to an undeclared resource")
	}
}

func TestBuildRejectsUnknownDependency(t *testing.T) {
	content := `
app: name: "x"
stacks: S: resources: A: {
	type: "Custom::R"
	dependsOn: ["Nope"]
}
`
	m, err := newTestLoader().LoadInline(context.Background(), content)
	if err != nil {
		t.Fatalf("LoadInline: %v", err)
	}
	if _, err := Build(m); err == nil {
		t.Error("Build must reject dependsOn naming an undeclared resource")
	}
}

func TestExprPropertyResolvesAtSynthesis(t *testing.T) {
	content := `
app: name: "x"
variables: env: "prod"
stacks: S: resources: {
	Queue: {
		type: "AWS::SQS::Queue"
		properties: QueueName: {"$expr": "vars[\"env\"] + \"-\" + stack + \"-queue\""}
	}
}
`
	m, err := newTestLoader().LoadInline(context.Background(), content)
	if err != nil {
		t.Fatalf("LoadInline: %v", err)
	}
	if len(m.Errors) > 0 {
		t.Fatalf("manifest errors: %+v", m.Errors)
	}
	app, err := Build(m)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	docs, err := core.Synthesize(app)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}

	ids := docs[0].Resources.IDs()
	if len(ids) != 1 {
		t.Fatalf("resource count = %d", len(ids))
	}
	state := docs[0].Resources.Get(ids[0])
	if got := state.Properties["QueueName"]; got != "prod-S-queue" {
		t.Errorf("QueueName = %v, want prod-S-queue", got)
	}
}

func TestExprSeesLogicalIDs(t *testing.T) {
	content := `
app: name: "x"
stacks: S: resources: {
	Queue: {
		type: "AWS::SQS::Queue"
	}
	Marker: {
		type: "Custom::Marker"
		properties: QueueID: {"$expr": "ids[\"Queue\"]"}
	}
}
`
	m, err := newTestLoader().LoadInline(context.Background(), content)
	if err != nil {
		t.Fatalf("LoadInline: %v", err)
	}
	app, err := Build(m)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	docs, err := core.Synthesize(app)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}

	doc := docs[0]
	var queueID, markerID string
	for _, id := range doc.Resources.IDs() {
		switch doc.Resources.Get(id).Type {
		case "AWS::SQS::Queue":
			queueID = id
		case "Custom::Marker":
			markerID = id
		}
	}
	if queueID == "" || markerID == "" {
		t.Fatalf("expected both resources, got %v", doc.Resources.IDs())
	}
	if got := doc.Resources.Get(markerID).Properties["QueueID"]; got != queueID {
		t.Errorf("QueueID = %v, want %v", got, queueID)
	}
}

func TestBuildSectionOrderIsStable(t *testing.T) {
	const content = `
app: name: "orders"

stacks: Api: {
	parameters: {
		Alpha: {Type: "String"}
		Bravo: {Type: "String"}
		Charlie: {Type: "String"}
		Delta: {Type: "String"}
		Echo: {Type: "String"}
		Foxtrot: {Type: "String"}
		Golf: {Type: "String"}
		Hotel: {Type: "String"}
	}
	mappings: {
		RegionMap: "us-east-1": {Ami: "ami-1"}
		ZoneMap: "a": {Suffix: "1"}
	}
	conditions: {
		IsProd: "Fn::Equals": ["prod", "prod"]
		IsDev: "Fn::Equals": ["dev", "prod"]
	}
	resources: Queue: {
		type: "AWS::SQS::Queue"
		properties: QueueName: "orders"
	}
}
`
	m, err := newTestLoader().LoadInline(context.Background(), content)
	if err != nil {
		t.Fatalf("LoadInline: %v", err)
	}
	if len(m.Errors) > 0 {
		t.Fatalf("manifest errors: %+v", m.Errors)
	}

	synth := func() []byte {
		t.Helper()
		app, err := Build(m)
		if err != nil {
			t.Fatalf("Build: %v", err)
		}
		docs, err := core.Synthesize(app)
		if err != nil {
			t.Fatalf("Synthesize: %v", err)
		}
		data, err := docs[0].EncodeJSON()
		if err != nil {
			t.Fatalf("EncodeJSON: %v", err)
		}
		return data
	}

	want := synth()
	for i := 0; i < 20; i++ {
		if got := synth(); !bytes.Equal(got, want) {
			t.Fatalf("run %d differs:\n%s\n!=\n%s", i, got, want)
		}
	}
}
