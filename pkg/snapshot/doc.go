// Package snapshot persists synthesized templates in a local SQLite database.
// The latest snapshot per stack is the default "deployed" side when diffing a
// fresh synthesis.
package snapshot
