package diff

import (
	"reflect"
	"sort"
	"testing"

	"github.com/rs/zerolog"

	"github.com/cirrus-iac/cirrus/pkg/core"
)

func docWith(t *testing.T, resources map[string]*core.ResourceState) *core.Document {
	t.Helper()
	doc := core.NewDocument("test")
	ids := make([]string, 0, len(resources))
	for id := range resources {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		doc.Resources.Set(id, resources[id])
	}
	return doc
}

func queueState(name string) *core.ResourceState {
	return &core.ResourceState{
		Type:       "AWS::SQS::Queue",
		Properties: map[string]interface{}{"QueueName": name},
	}
}

func TestDiffIdentityIsEmpty(t *testing.T) {
	doc := docWith(t, map[string]*core.ResourceState{
		"QueueAAAA1111": queueState("orders"),
		"OtherBBBB2222": {Type: "Custom::R", Properties: map[string]interface{}{"n": 1}},
	})

	result := Diff(doc, doc)
	if !result.Empty() {
		t.Errorf("diff(T, T) is not empty: %+v", result.Resources)
	}
	if result.Summary.Unchanged != 2 {
		t.Errorf("unchanged = %d, want 2", result.Summary.Unchanged)
	}
}

func TestDiffAddAndRemove(t *testing.T) {
	oldDoc := docWith(t, map[string]*core.ResourceState{
		"KeepAAAA1111": queueState("keep"),
		"GoneBBBB2222": queueState("gone"),
	})
	newDoc := docWith(t, map[string]*core.ResourceState{
		"KeepAAAA1111": queueState("keep"),
		"FreshCCCC3333": queueState("fresh"),
	})

	result := Diff(oldDoc, newDoc)
	if got := result.IDsByOperation(OperationAdd); !reflect.DeepEqual(got, []string{"FreshCCCC3333"}) {
		t.Errorf("added = %v", got)
	}
	if got := result.IDsByOperation(OperationRemove); !reflect.DeepEqual(got, []string{"GoneBBBB2222"}) {
		t.Errorf("removed = %v", got)
	}
	if result.Summary.Added != 1 || result.Summary.Removed != 1 || result.Summary.Updated != 0 {
		t.Errorf("summary = %+v", result.Summary)
	}
}

func TestDiffSymmetry(t *testing.T) {
	a := docWith(t, map[string]*core.ResourceState{
		"OnlyA1111AAAA": queueState("a"),
		"Shared2222BBBB": queueState("shared"),
	})
	b := docWith(t, map[string]*core.ResourceState{
		"OnlyB3333CCCC": queueState("b"),
		"Shared2222BBBB": queueState("shared"),
	})

	ab := Diff(a, b)
	ba := Diff(b, a)

	if !reflect.DeepEqual(ab.IDsByOperation(OperationAdd), ba.IDsByOperation(OperationRemove)) {
		t.Errorf("add(a,b) = %v, remove(b,a) = %v",
			ab.IDsByOperation(OperationAdd), ba.IDsByOperation(OperationRemove))
	}
	if !reflect.DeepEqual(ab.IDsByOperation(OperationRemove), ba.IDsByOperation(OperationAdd)) {
		t.Errorf("remove(a,b) = %v, add(b,a) = %v",
			ab.IDsByOperation(OperationRemove), ba.IDsByOperation(OperationAdd))
	}
}

func TestReplacementTriggeringChange(t *testing.T) {
	oldDoc := docWith(t, map[string]*core.ResourceState{"Q1111AAAA": queueState("a")})
	newDoc := docWith(t, map[string]*core.ResourceState{"Q1111AAAA": queueState("b")})

	result := Diff(oldDoc, newDoc)
	if len(result.Resources) != 1 {
		t.Fatalf("entry count = %d, want 1", len(result.Resources))
	}
	rd := result.Resources[0]
	if rd.Operation != OperationUpdate {
		t.Errorf("operation = %s", rd.Operation)
	}
	if rd.Classification != Replacement {
		t.Errorf("classification = %s, want Replacement", rd.Classification)
	}
	if len(rd.Changes) != 1 || rd.Changes[0].Path != "Properties.QueueName" {
		t.Errorf("changes = %+v", rd.Changes)
	}
	if rd.Changes[0].OldValue != "a" || rd.Changes[0].NewValue != "b" {
		t.Errorf("change values = %v -> %v", rd.Changes[0].OldValue, rd.Changes[0].NewValue)
	}
}

func TestInPlaceUpdateForUnruledPath(t *testing.T) {
	oldDoc := docWith(t, map[string]*core.ResourceState{"Q1111AAAA": {
		Type:       "AWS::SQS::Queue",
		Properties: map[string]interface{}{"VisibilityTimeout": 30},
	}})
	newDoc := docWith(t, map[string]*core.ResourceState{"Q1111AAAA": {
		Type:       "AWS::SQS::Queue",
		Properties: map[string]interface{}{"VisibilityTimeout": 60},
	}})

	result := Diff(oldDoc, newDoc)
	if result.Resources[0].Classification != InPlaceUpdate {
		t.Errorf("classification = %s, want InPlaceUpdate", result.Resources[0].Classification)
	}
}

func TestUnknownTypeIsConservative(t *testing.T) {
	oldDoc := docWith(t, map[string]*core.ResourceState{"X1111AAAA": {
		Type:       "Vendor::Exotic::Thing",
		Properties: map[string]interface{}{"anything": "a"},
	}})
	newDoc := docWith(t, map[string]*core.ResourceState{"X1111AAAA": {
		Type:       "Vendor::Exotic::Thing",
		Properties: map[string]interface{}{"anything": "b"},
	}})

	result := Diff(oldDoc, newDoc)
	if result.Resources[0].Classification != ConditionalReplacement {
		t.Errorf("classification = %s, want ConditionalReplacement for unknown type",
			result.Resources[0].Classification)
	}
	if !result.HasReplacements() {
		t.Error("conditional replacement must surface through HasReplacements")
	}
}

func TestConditionalRule(t *testing.T) {
	oldDoc := docWith(t, map[string]*core.ResourceState{"I1111AAAA": {
		Type:       "AWS::EC2::Instance",
		Properties: map[string]interface{}{"InstanceType": "t3.small"},
	}})
	newDoc := docWith(t, map[string]*core.ResourceState{"I1111AAAA": {
		Type:       "AWS::EC2::Instance",
		Properties: map[string]interface{}{"InstanceType": "t3.large"},
	}})

	result := Diff(oldDoc, newDoc)
	if result.Resources[0].Classification != ConditionalReplacement {
		t.Errorf("classification = %s, want ConditionalReplacement", result.Resources[0].Classification)
	}
}

func TestNestedRulePathCoversChildren(t *testing.T) {
	rules := NewRuleSet()
	rules.Register("Custom::R", "Config.Network", EffectAlways)
	engine := NewEngine(rules, zerolog.Nop())

	oldDoc := docWith(t, map[string]*core.ResourceState{"R1111AAAA": {
		Type:       "Custom::R",
		Properties: map[string]interface{}{"Config": map[string]interface{}{"Network": map[string]interface{}{"Subnet": "a"}}},
	}})
	newDoc := docWith(t, map[string]*core.ResourceState{"R1111AAAA": {
		Type:       "Custom::R",
		Properties: map[string]interface{}{"Config": map[string]interface{}{"Network": map[string]interface{}{"Subnet": "b"}}},
	}})

	result := engine.Diff(oldDoc, newDoc)
	if result.Resources[0].Classification != Replacement {
		t.Errorf("nested path under a rule should replace, got %s", result.Resources[0].Classification)
	}
}

func TestTypeChangeIsReplacement(t *testing.T) {
	oldDoc := docWith(t, map[string]*core.ResourceState{"R1111AAAA": {Type: "AWS::SQS::Queue"}})
	newDoc := docWith(t, map[string]*core.ResourceState{"R1111AAAA": {Type: "AWS::SNS::Topic"}})

	result := Diff(oldDoc, newDoc)
	rd := result.Resources[0]
	if rd.Classification != Replacement {
		t.Errorf("type change classification = %s, want Replacement", rd.Classification)
	}
	if rd.Changes[0].Path != "Type" {
		t.Errorf("change path = %s, want Type", rd.Changes[0].Path)
	}
}

func TestNormalizationHidesRepresentationalDifferences(t *testing.T) {
	// Same effective content: empty containers and nils on one side, absent
	// keys on the other; int vs float after a JSON round trip.
	oldDoc := docWith(t, map[string]*core.ResourceState{"R1111AAAA": {
		Type: "Custom::R",
		Properties: map[string]interface{}{
			"Count": float64(3),
			"Tags":  map[string]interface{}{},
			"List":  []interface{}{},
			"Gone":  nil,
		},
	}})
	newDoc := docWith(t, map[string]*core.ResourceState{"R1111AAAA": {
		Type: "Custom::R",
		Properties: map[string]interface{}{
			"Count": 3,
		},
	}})

	result := Diff(oldDoc, newDoc)
	if !result.Empty() {
		t.Errorf("representational differences surfaced as changes: %+v", result.Resources)
	}
}

func TestPropertyAddedAndDropped(t *testing.T) {
	oldDoc := docWith(t, map[string]*core.ResourceState{"R1111AAAA": {
		Type:       "Custom::R",
		Properties: map[string]interface{}{"KeepMe": 1, "DropMe": "x"},
	}})
	newDoc := docWith(t, map[string]*core.ResourceState{"R1111AAAA": {
		Type:       "Custom::R",
		Properties: map[string]interface{}{"KeepMe": 1, "AddMe": "y"},
	}})

	result := Diff(oldDoc, newDoc)
	if len(result.Resources) != 1 {
		t.Fatalf("entry count = %d, want 1", len(result.Resources))
	}
	paths := make([]string, 0)
	for _, c := range result.Resources[0].Changes {
		paths = append(paths, c.Path)
	}
	sort.Strings(paths)
	want := []string{"Properties.AddMe", "Properties.DropMe"}
	if !reflect.DeepEqual(paths, want) {
		t.Errorf("changed paths = %v, want %v", paths, want)
	}
}

func TestDiffAgainstNilDocuments(t *testing.T) {
	doc := docWith(t, map[string]*core.ResourceState{"R1111AAAA": queueState("q")})

	added := Diff(nil, doc)
	if added.Summary.Added != 1 || added.Summary.Removed != 0 {
		t.Errorf("diff(nil, doc) summary = %+v", added.Summary)
	}
	removed := Diff(doc, nil)
	if removed.Summary.Removed != 1 || removed.Summary.Added != 0 {
		t.Errorf("diff(doc, nil) summary = %+v", removed.Summary)
	}
}
