package diff

// Operation is the kind of change a resource undergoes.
type Operation string

const (
	// OperationAdd marks a resource present only in the new document.
	OperationAdd Operation = "add"

	// OperationRemove marks a resource present only in the old document.
	OperationRemove Operation = "remove"

	// OperationUpdate marks a resource present in both documents with
	// differing normalized content.
	OperationUpdate Operation = "update"
)

// Classification is the replacement impact of an update.
type Classification string

const (
	// InPlaceUpdate means the provider can apply the change without
	// recreating the resource.
	InPlaceUpdate Classification = "in-place-update"

	// Replacement means the change forces the resource to be destroyed and
	// recreated.
	Replacement Classification = "replacement"

	// ConditionalReplacement means replacement depends on provider-side
	// semantics that are not statically knowable. Unknown resource types
	// always land here.
	ConditionalReplacement Classification = "conditional-replacement"
)

// rank orders classifications by severity so an update takes the worst
// effect among its changes.
func (c Classification) rank() int {
	switch c {
	case Replacement:
		return 2
	case ConditionalReplacement:
		return 1
	default:
		return 0
	}
}

func worseOf(a, b Classification) Classification {
	if b.rank() > a.rank() {
		return b
	}
	return a
}

// Change is one differing property path within an updated resource.
type Change struct {
	// Path is the dotted path of the changed value, e.g.
	// "Properties.QueueName".
	Path string `json:"path"`

	// OldValue is the normalized value in the deployed document.
	OldValue interface{} `json:"old_value,omitempty"`

	// NewValue is the normalized value in the fresh document.
	NewValue interface{} `json:"new_value,omitempty"`

	// Effect is this single change's replacement impact.
	Effect Classification `json:"effect"`
}

// ResourceDiff is the full change record for one logical identifier.
type ResourceDiff struct {
	// LogicalID correlates the resource across the two documents.
	LogicalID string `json:"logical_id"`

	// ResourceType is the declared type (new side wins when both exist).
	ResourceType string `json:"resource_type"`

	// Operation is add, remove, or update.
	Operation Operation `json:"operation"`

	// Changes lists the differing property paths. Empty for add/remove.
	Changes []Change `json:"changes,omitempty"`

	// Classification is the worst effect among Changes. Add and remove
	// entries carry no classification.
	Classification Classification `json:"classification,omitempty"`
}

// Summary counts the diff outcome per category.
type Summary struct {
	Added                   int `json:"added"`
	Removed                 int `json:"removed"`
	Updated                 int `json:"updated"`
	Replacements            int `json:"replacements"`
	ConditionalReplacements int `json:"conditional_replacements"`
	Unchanged               int `json:"unchanged"`
}

// Result is the complete structured difference between two documents.
type Result struct {
	// Resources lists one entry per added, removed, or updated resource, in
	// a deterministic order: old-document order first, then new-only
	// resources in new-document order. Unchanged resources produce no entry.
	Resources []ResourceDiff `json:"resources"`

	Summary Summary `json:"summary"`
}

// Empty reports whether the two documents are semantically identical.
func (r *Result) Empty() bool {
	return len(r.Resources) == 0
}

// HasReplacements reports whether any update is classified as a certain or
// conditional replacement.
func (r *Result) HasReplacements() bool {
	return r.Summary.Replacements > 0 || r.Summary.ConditionalReplacements > 0
}

// IDsByOperation returns the logical identifiers carrying the given
// operation, in result order.
func (r *Result) IDsByOperation(op Operation) []string {
	var out []string
	for _, rd := range r.Resources {
		if rd.Operation == op {
			out = append(out, rd.LogicalID)
		}
	}
	return out
}
