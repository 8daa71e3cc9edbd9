package core

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestOrderedMapPreservesInsertionOrder(t *testing.T) {
	om := NewOrderedMap()
	om.Set("zebra", 1)
	om.Set("alpha", 2)
	om.Set("mango", 3)
	om.Set("zebra", 4) // replacement keeps position

	data, err := json.Marshal(om)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	want := `{"zebra":4,"alpha":2,"mango":3}`
	if string(data) != want {
		t.Errorf("marshal = %s, want %s", data, want)
	}
}

func TestOrderedMapJSONRoundTrip(t *testing.T) {
	in := `{"b":1,"a":{"nested":true},"c":[1,2]}`
	om := NewOrderedMap()
	if err := json.Unmarshal([]byte(in), om); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	keys := om.Keys()
	if len(keys) != 3 || keys[0] != "b" || keys[1] != "a" || keys[2] != "c" {
		t.Errorf("keys = %v, want [b a c]", keys)
	}
	out, err := json.Marshal(om)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if string(out) != in {
		t.Errorf("round trip = %s, want %s", out, in)
	}
}

func TestDocumentJSONSectionOrder(t *testing.T) {
	doc := NewDocument("S")
	doc.Description = "demo"
	doc.Resources.Set("First1111AAAA", &ResourceState{Type: "Custom::A"})
	doc.Resources.Set("Second2222BBBB", &ResourceState{Type: "Custom::B"})

	data, err := doc.EncodeJSON()
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	text := string(data)
	if !strings.Contains(text, `"AWSTemplateFormatVersion": "2010-09-09"`) {
		t.Errorf("missing format version in:\n%s", text)
	}
	if strings.Index(text, "First1111AAAA") > strings.Index(text, "Second2222BBBB") {
		t.Errorf("resource emission order not preserved:\n%s", text)
	}
}

func TestDocumentParseRoundTrip(t *testing.T) {
	doc := NewDocument("S")
	doc.Description = "round trip"
	doc.Resources.Set("QueueAAAA1111", &ResourceState{
		Type:       "AWS::SQS::Queue",
		Properties: map[string]interface{}{"QueueName": "orders"},
		DependsOn:  []string{"OtherBBBB2222"},
	})
	doc.Resources.Set("OtherBBBB2222", &ResourceState{Type: "Custom::R"})

	data, err := doc.EncodeJSON()
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	parsed, err := ParseDocument(data)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	if parsed.Description != "round trip" {
		t.Errorf("description = %q", parsed.Description)
	}
	ids := parsed.Resources.IDs()
	if len(ids) != 2 || ids[0] != "QueueAAAA1111" {
		t.Errorf("resource order lost: %v", ids)
	}
	q := parsed.Resources.Get("QueueAAAA1111")
	if q.Type != "AWS::SQS::Queue" || q.Properties["QueueName"] != "orders" {
		t.Errorf("resource state lost: %+v", q)
	}
	if len(q.DependsOn) != 1 || q.DependsOn[0] != "OtherBBBB2222" {
		t.Errorf("DependsOn lost: %v", q.DependsOn)
	}
}

func TestDocumentYAMLOutput(t *testing.T) {
	doc := NewDocument("S")
	doc.Resources.Set("QueueAAAA1111", &ResourceState{
		Type:       "AWS::SQS::Queue",
		Properties: map[string]interface{}{"QueueName": "orders"},
	})

	data, err := doc.EncodeYAML()
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	text := string(data)
	if !strings.Contains(text, "AWSTemplateFormatVersion:") {
		t.Errorf("missing format version:\n%s", text)
	}
	if !strings.Contains(text, "QueueAAAA1111:") || !strings.Contains(text, "QueueName: orders") {
		t.Errorf("missing resource content:\n%s", text)
	}
}

func TestParseDocumentRejectsGarbage(t *testing.T) {
	if _, err := ParseDocument([]byte("not json")); err == nil {
		t.Error("expected parse error")
	}
}
