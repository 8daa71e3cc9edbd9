package diff

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/k14s/difflib"

	"github.com/cirrus-iac/cirrus/pkg/core"
)

var (
	addColor     = color.New(color.FgGreen)
	removeColor  = color.New(color.FgRed)
	updateColor  = color.New(color.FgYellow)
	replaceColor = color.New(color.FgRed, color.Bold)
)

// Render formats a result as a human-readable change summary. Color is
// controlled globally through the color package (disabled automatically on
// non-terminal writers).
func Render(result *Result) string {
	if result.Empty() {
		return "No changes.\n"
	}

	var b strings.Builder
	for _, rd := range result.Resources {
		switch rd.Operation {
		case OperationAdd:
			b.WriteString(addColor.Sprintf("+ %s (%s)", rd.LogicalID, rd.ResourceType))
			b.WriteByte('\n')
		case OperationRemove:
			b.WriteString(removeColor.Sprintf("- %s (%s)", rd.LogicalID, rd.ResourceType))
			b.WriteByte('\n')
		case OperationUpdate:
			b.WriteString(updateColor.Sprintf("~ %s (%s)%s", rd.LogicalID, rd.ResourceType, classificationTag(rd.Classification)))
			b.WriteByte('\n')
			for _, c := range rd.Changes {
				b.WriteString(fmt.Sprintf("    %s: %s -> %s%s\n",
					c.Path, renderValue(c.OldValue), renderValue(c.NewValue), effectTag(c.Effect)))
			}
		}
	}

	s := result.Summary
	b.WriteString(fmt.Sprintf("\n%d to add, %d to remove, %d to update (%d unchanged)\n",
		s.Added, s.Removed, s.Updated, s.Unchanged))
	if s.Replacements > 0 {
		b.WriteString(replaceColor.Sprintf("%d update(s) will REPLACE resources", s.Replacements))
		b.WriteByte('\n')
	}
	if s.ConditionalReplacements > 0 {
		b.WriteString(updateColor.Sprintf("%d update(s) may replace resources", s.ConditionalReplacements))
		b.WriteByte('\n')
	}
	return b.String()
}

func classificationTag(c Classification) string {
	switch c {
	case Replacement:
		return replaceColor.Sprint(" [REPLACEMENT]")
	case ConditionalReplacement:
		return updateColor.Sprint(" [may replace]")
	default:
		return ""
	}
}

func effectTag(e Classification) string {
	switch e {
	case Replacement:
		return replaceColor.Sprint(" (requires replacement)")
	case ConditionalReplacement:
		return updateColor.Sprint(" (may require replacement)")
	default:
		return ""
	}
}

func renderValue(v interface{}) string {
	if v == nil {
		return "<absent>"
	}
	return fmt.Sprintf("%v", v)
}

// RenderTemplateDiff produces a unified line diff of the two serialized
// documents, for readers who want the raw template delta rather than the
// structured summary.
func RenderTemplateDiff(oldDoc, newDoc *core.Document) (string, error) {
	oldJSON, err := encodeForDiff(oldDoc)
	if err != nil {
		return "", err
	}
	newJSON, err := encodeForDiff(newDoc)
	if err != nil {
		return "", err
	}
	return difflib.PPDiff(strings.Split(oldJSON, "\n"), strings.Split(newJSON, "\n")), nil
}

func encodeForDiff(doc *core.Document) (string, error) {
	if doc == nil {
		return "", nil
	}
	data, err := doc.EncodeJSON()
	if err != nil {
		return "", err
	}
	return string(data), nil
}
