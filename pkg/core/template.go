package core

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// FormatVersion is the template format revision emitted in every document.
const FormatVersion = "2010-09-09"

// OrderedMap is a string-keyed map that preserves insertion order through
// JSON and YAML round trips. The template format is an ordered mapping; plain
// Go maps would shuffle sections and resources between runs and break the
// byte-identical synthesis guarantee.
type OrderedMap struct {
	keys   []string
	values map[string]interface{}
}

// NewOrderedMap creates an empty ordered map.
func NewOrderedMap() *OrderedMap {
	return &OrderedMap{values: make(map[string]interface{})}
}

// Set inserts or replaces a key. A replaced key keeps its original position.
func (m *OrderedMap) Set(key string, value interface{}) {
	if _, exists := m.values[key]; !exists {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

// Get returns the value for key.
func (m *OrderedMap) Get(key string) (interface{}, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Keys returns the keys in insertion order. The slice must not be mutated.
func (m *OrderedMap) Keys() []string {
	return m.keys
}

// Len returns the number of entries.
func (m *OrderedMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// ToMap returns a plain (unordered) copy of the entries.
func (m *OrderedMap) ToMap() map[string]interface{} {
	out := make(map[string]interface{}, len(m.values))
	for k, v := range m.values {
		out[k] = v
	}
	return out
}

// MarshalJSON emits the entries as a JSON object in insertion order.
func (m *OrderedMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(m.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON parses a JSON object preserving key order.
func (m *OrderedMap) UnmarshalJSON(data []byte) error {
	m.keys = nil
	m.values = make(map[string]interface{})

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("expected JSON object, got %v", tok)
	}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("expected string key, got %v", keyTok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		var value interface{}
		if err := json.Unmarshal(raw, &value); err != nil {
			return err
		}
		m.Set(key, value)
	}
	_, err = dec.Token() // closing brace
	return err
}

// MarshalYAML emits the entries as a YAML mapping in insertion order.
func (m *OrderedMap) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, k := range m.keys {
		keyNode := &yaml.Node{Kind: yaml.ScalarNode, Value: k}
		valNode := &yaml.Node{}
		if err := valNode.Encode(m.values[k]); err != nil {
			return nil, err
		}
		node.Content = append(node.Content, keyNode, valNode)
	}
	return node, nil
}

// ResourceState is one fully resolved resource declaration inside a template
// document.
type ResourceState struct {
	Type           string
	Properties     map[string]interface{}
	DependsOn      []string
	DeletionPolicy string
	Condition      string
	Metadata       map[string]interface{}
}

func (r *ResourceState) asOrderedMap() *OrderedMap {
	om := NewOrderedMap()
	om.Set("Type", r.Type)
	if len(r.Properties) > 0 {
		om.Set("Properties", r.Properties)
	}
	if len(r.DependsOn) > 0 {
		om.Set("DependsOn", r.DependsOn)
	}
	if r.DeletionPolicy != "" {
		om.Set("DeletionPolicy", r.DeletionPolicy)
	}
	if r.Condition != "" {
		om.Set("Condition", r.Condition)
	}
	if len(r.Metadata) > 0 {
		om.Set("Metadata", r.Metadata)
	}
	return om
}

// MarshalJSON emits the declaration with its sections in canonical order.
func (r *ResourceState) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.asOrderedMap())
}

// MarshalYAML emits the declaration with its sections in canonical order.
func (r *ResourceState) MarshalYAML() (interface{}, error) {
	return r.asOrderedMap().MarshalYAML()
}

// resourceStateJSON mirrors ResourceState for decoding.
type resourceStateJSON struct {
	Type           string                 `json:"Type"`
	Properties     map[string]interface{} `json:"Properties"`
	DependsOn      []string               `json:"DependsOn"`
	DeletionPolicy string                 `json:"DeletionPolicy"`
	Condition      string                 `json:"Condition"`
	Metadata       map[string]interface{} `json:"Metadata"`
}

// UnmarshalJSON decodes a resource declaration.
func (r *ResourceState) UnmarshalJSON(data []byte) error {
	var raw resourceStateJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.Type = raw.Type
	r.Properties = raw.Properties
	r.DependsOn = raw.DependsOn
	r.DeletionPolicy = raw.DeletionPolicy
	r.Condition = raw.Condition
	r.Metadata = raw.Metadata
	return nil
}

// ResourceMap is an ordered mapping from logical identifier to resource
// declaration. Emission order is dependency order: older template consumers
// read dependencies positionally, and humans read top-down.
type ResourceMap struct {
	ids  []string
	byID map[string]*ResourceState
}

// NewResourceMap creates an empty resource map.
func NewResourceMap() *ResourceMap {
	return &ResourceMap{byID: make(map[string]*ResourceState)}
}

// Set inserts or replaces a declaration.
func (m *ResourceMap) Set(logicalID string, state *ResourceState) {
	if _, exists := m.byID[logicalID]; !exists {
		m.ids = append(m.ids, logicalID)
	}
	m.byID[logicalID] = state
}

// Get returns the declaration for logicalID, or nil.
func (m *ResourceMap) Get(logicalID string) *ResourceState {
	if m == nil {
		return nil
	}
	return m.byID[logicalID]
}

// IDs returns the logical identifiers in emission order.
func (m *ResourceMap) IDs() []string {
	if m == nil {
		return nil
	}
	return m.ids
}

// Len returns the number of declarations.
func (m *ResourceMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.ids)
}

// Document is one synthesized template: an ordered resource mapping plus the
// top-level sections. Documents are immutable once synthesis returns them.
type Document struct {
	StackName   string
	Description string
	Parameters  *OrderedMap
	Mappings    *OrderedMap
	Conditions  *OrderedMap
	Resources   *ResourceMap
	Outputs     *OrderedMap
}

// NewDocument creates an empty document for the named stack.
func NewDocument(stackName string) *Document {
	return &Document{
		StackName: stackName,
		Resources: NewResourceMap(),
	}
}

func (d *Document) asOrderedMap() (*OrderedMap, error) {
	om := NewOrderedMap()
	om.Set("AWSTemplateFormatVersion", FormatVersion)
	if d.Description != "" {
		om.Set("Description", d.Description)
	}
	if d.Parameters.Len() > 0 {
		om.Set("Parameters", d.Parameters)
	}
	if d.Mappings.Len() > 0 {
		om.Set("Mappings", d.Mappings)
	}
	if d.Conditions.Len() > 0 {
		om.Set("Conditions", d.Conditions)
	}
	resources := NewOrderedMap()
	for _, id := range d.Resources.IDs() {
		resources.Set(id, d.Resources.Get(id))
	}
	om.Set("Resources", resources)
	if d.Outputs.Len() > 0 {
		om.Set("Outputs", d.Outputs)
	}
	return om, nil
}

// MarshalJSON emits the document with stable section and resource ordering.
func (d *Document) MarshalJSON() ([]byte, error) {
	om, err := d.asOrderedMap()
	if err != nil {
		return nil, err
	}
	return json.Marshal(om)
}

// EncodeJSON serializes the document as indented JSON.
func (d *Document) EncodeJSON() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(d); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodeYAML serializes the document as YAML with stable ordering.
func (d *Document) EncodeYAML() ([]byte, error) {
	om, err := d.asOrderedMap()
	if err != nil {
		return nil, err
	}
	return yaml.Marshal(om)
}

// documentJSON mirrors Document for decoding.
type documentJSON struct {
	Description string                    `json:"Description"`
	Parameters  *OrderedMap               `json:"Parameters"`
	Mappings    *OrderedMap               `json:"Mappings"`
	Conditions  *OrderedMap               `json:"Conditions"`
	Resources   json.RawMessage           `json:"Resources"`
	Outputs     *OrderedMap               `json:"Outputs"`
}

// ParseDocument decodes a JSON template document, preserving resource order.
func ParseDocument(data []byte) (*Document, error) {
	var raw documentJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse template document: %w", err)
	}

	doc := &Document{
		Description: raw.Description,
		Parameters:  raw.Parameters,
		Mappings:    raw.Mappings,
		Conditions:  raw.Conditions,
		Outputs:     raw.Outputs,
		Resources:   NewResourceMap(),
	}

	if len(raw.Resources) > 0 {
		ordered := NewOrderedMap()
		if err := ordered.UnmarshalJSON(raw.Resources); err != nil {
			return nil, fmt.Errorf("failed to parse Resources section: %w", err)
		}
		for _, id := range ordered.Keys() {
			entry, _ := ordered.Get(id)
			entryBytes, err := json.Marshal(entry)
			if err != nil {
				return nil, err
			}
			state := &ResourceState{}
			if err := json.Unmarshal(entryBytes, state); err != nil {
				return nil, fmt.Errorf("failed to parse resource %q: %w", id, err)
			}
			doc.Resources.Set(id, state)
		}
	}
	return doc, nil
}
