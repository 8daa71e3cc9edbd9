package diff

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"

	"github.com/rs/zerolog"

	"github.com/cirrus-iac/cirrus/pkg/core"
)

// Engine compares template documents under a replacement rule set. Engines
// are stateless and safe for concurrent use.
type Engine struct {
	rules  *RuleSet
	logger zerolog.Logger
}

// NewEngine creates a diff engine with the given rule set.
func NewEngine(rules *RuleSet, logger zerolog.Logger) *Engine {
	if rules == nil {
		rules = DefaultRules()
	}
	return &Engine{
		rules:  rules,
		logger: logger.With().Str("component", "diff-engine").Logger(),
	}
}

// Diff compares two documents with the default rules and a silent logger.
func Diff(oldDoc, newDoc *core.Document) *Result {
	return NewEngine(DefaultRules(), zerolog.Nop()).Diff(oldDoc, newDoc)
}

// Diff computes the structured difference between the deployed (old) and
// freshly synthesized (new) documents. Both are normalized first so that
// representational differences never surface as changes. Diffing never
// fails; unrecognized content classifies conservatively.
func (e *Engine) Diff(oldDoc, newDoc *core.Document) *Result {
	result := &Result{}

	oldIDs := resourceIDs(oldDoc)
	newIDs := resourceIDs(newDoc)

	seen := make(map[string]struct{}, len(oldIDs))
	for _, id := range oldIDs {
		seen[id] = struct{}{}
		oldState := oldDoc.Resources.Get(id)
		newState := resourceState(newDoc, id)
		if newState == nil {
			result.Resources = append(result.Resources, ResourceDiff{
				LogicalID:    id,
				ResourceType: oldState.Type,
				Operation:    OperationRemove,
			})
			result.Summary.Removed++
			continue
		}
		e.compareResource(result, id, oldState, newState)
	}
	for _, id := range newIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		result.Resources = append(result.Resources, ResourceDiff{
			LogicalID:    id,
			ResourceType: newDoc.Resources.Get(id).Type,
			Operation:    OperationAdd,
		})
		result.Summary.Added++
	}

	e.logger.Debug().
		Int("added", result.Summary.Added).
		Int("removed", result.Summary.Removed).
		Int("updated", result.Summary.Updated).
		Msg("computed template diff")

	return result
}

func (e *Engine) compareResource(result *Result, id string, oldState, newState *core.ResourceState) {
	var changes []Change

	if oldState.Type != newState.Type {
		changes = append(changes, Change{
			Path:     "Type",
			OldValue: oldState.Type,
			NewValue: newState.Type,
			Effect:   Replacement,
		})
	}

	oldProps := normalizeProperties(oldState.Properties)
	newProps := normalizeProperties(newState.Properties)
	var propChanges []propertyChange
	compareValues("", oldProps, newProps, &propChanges)
	for _, pc := range propChanges {
		changes = append(changes, Change{
			Path:     "Properties." + pc.path,
			OldValue: pc.oldValue,
			NewValue: pc.newValue,
			Effect:   e.classifyProperty(newState.Type, pc.path),
		})
	}

	if oldState.DeletionPolicy != newState.DeletionPolicy {
		changes = append(changes, Change{
			Path:     "DeletionPolicy",
			OldValue: oldState.DeletionPolicy,
			NewValue: newState.DeletionPolicy,
			Effect:   InPlaceUpdate,
		})
	}
	if oldState.Condition != newState.Condition {
		changes = append(changes, Change{
			Path:     "Condition",
			OldValue: oldState.Condition,
			NewValue: newState.Condition,
			Effect:   InPlaceUpdate,
		})
	}

	if len(changes) == 0 {
		result.Summary.Unchanged++
		return
	}

	classification := InPlaceUpdate
	for _, c := range changes {
		classification = worseOf(classification, c.Effect)
	}

	result.Resources = append(result.Resources, ResourceDiff{
		LogicalID:      id,
		ResourceType:   newState.Type,
		Operation:      OperationUpdate,
		Changes:        changes,
		Classification: classification,
	})
	result.Summary.Updated++
	switch classification {
	case Replacement:
		result.Summary.Replacements++
	case ConditionalReplacement:
		result.Summary.ConditionalReplacements++
	}
}

// classifyProperty maps one changed property path to its replacement impact.
// Unknown resource types classify as ConditionalReplacement: never silently
// assume safety.
func (e *Engine) classifyProperty(resourceType, propertyPath string) Classification {
	if !e.rules.Knows(resourceType) {
		return ConditionalReplacement
	}
	effect, matched := e.rules.Effect(resourceType, propertyPath)
	if !matched {
		return InPlaceUpdate
	}
	if effect == EffectAlways {
		return Replacement
	}
	return ConditionalReplacement
}

type propertyChange struct {
	path     string
	oldValue interface{}
	newValue interface{}
}

// compareValues walks two normalized values in parallel, appending one change
// per differing leaf-level path. Maps recurse; everything else compares
// wholesale.
func compareValues(path string, oldVal, newVal interface{}, changes *[]propertyChange) {
	oldMap, oldIsMap := oldVal.(map[string]interface{})
	newMap, newIsMap := newVal.(map[string]interface{})
	if oldIsMap && newIsMap {
		keys := make(map[string]struct{}, len(oldMap)+len(newMap))
		for k := range oldMap {
			keys[k] = struct{}{}
		}
		for k := range newMap {
			keys[k] = struct{}{}
		}
		sorted := make([]string, 0, len(keys))
		for k := range keys {
			sorted = append(sorted, k)
		}
		sort.Strings(sorted)
		for _, k := range sorted {
			childPath := k
			if path != "" {
				childPath = path + "." + k
			}
			ov, inOld := oldMap[k]
			nv, inNew := newMap[k]
			switch {
			case inOld && inNew:
				compareValues(childPath, ov, nv, changes)
			case inOld:
				*changes = append(*changes, propertyChange{path: childPath, oldValue: ov})
			default:
				*changes = append(*changes, propertyChange{path: childPath, newValue: nv})
			}
		}
		return
	}

	if !reflect.DeepEqual(oldVal, newVal) {
		*changes = append(*changes, propertyChange{path: path, oldValue: oldVal, newValue: newVal})
	}
}

// normalize canonicalizes a value through a JSON round trip (so synthesized
// and parsed documents compare with identical numeric and container types)
// and elides empty defaults: nils, empty maps, empty slices.
func normalize(value interface{}) interface{} {
	if value == nil {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		// Not JSON-representable; compare the raw value as a last resort.
		return fmt.Sprintf("%v", value)
	}
	var generic interface{}
	if err := json.Unmarshal(data, &generic); err != nil {
		return fmt.Sprintf("%v", value)
	}
	return elideEmpty(generic)
}

func elideEmpty(value interface{}) interface{} {
	switch v := value.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, elem := range v {
			cleaned := elideEmpty(elem)
			if cleaned == nil {
				continue
			}
			out[k] = cleaned
		}
		if len(out) == 0 {
			return nil
		}
		return out
	case []interface{}:
		if len(v) == 0 {
			return nil
		}
		out := make([]interface{}, len(v))
		for i, elem := range v {
			out[i] = elideEmpty(elem)
		}
		return out
	default:
		return value
	}
}

// normalizeProperties always yields a map so the top-level comparison walks
// key by key even when one side has no properties at all.
func normalizeProperties(props map[string]interface{}) map[string]interface{} {
	normalized := normalize(props)
	if m, ok := normalized.(map[string]interface{}); ok {
		return m
	}
	return map[string]interface{}{}
}

func resourceIDs(doc *core.Document) []string {
	if doc == nil {
		return nil
	}
	return doc.Resources.IDs()
}

func resourceState(doc *core.Document, id string) *core.ResourceState {
	if doc == nil {
		return nil
	}
	return doc.Resources.Get(id)
}
