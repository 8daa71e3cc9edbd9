// Package diff computes the structured difference between two template
// documents: the last deployed revision and a fresh synthesis. Every
// resource present in exactly one document yields one Add or Remove entry;
// resources present in both with differing normalized content yield one
// Update entry carrying the changed property paths.
//
// The engine's most important output is the replacement classification. A
// static, per-resource-type rule table marks property paths whose change
// forces the provider to destroy and recreate the resource; anything
// downstream uses that to warn about destructive updates before they happen.
// Unknown resource types classify conservatively as ConditionalReplacement -
// the engine never silently assumes an update is safe, and it never returns
// an error: its output is advisory.
package diff
