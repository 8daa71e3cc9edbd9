package core

import (
	"crypto/md5"
	"fmt"
	"strings"
)

// Logical identifier assignment is a compatibility contract, not an
// implementation detail: the diff engine correlates resources across
// deployments strictly by identifier, so the derivation below is versioned
// and must never change silently. v1: readable CamelCase base from the
// stack-relative path segments, followed by the first 8 uppercase hex
// characters of the MD5 of the "/"-joined segments. When base+hash would
// exceed the 255-character format limit the base is truncated; the hash
// suffix is never dropped.
const (
	logicalIDMaxLen  = 255
	logicalIDHashLen = 8
	logicalIDBaseMax = logicalIDMaxLen - logicalIDHashLen
)

// logicalIDForPath derives the logical identifier for a stack-relative path.
// It is a pure function of the path: independent of sibling count, traversal
// order, and everything else in the tree.
func logicalIDForPath(segments []string) string {
	var base strings.Builder
	for _, seg := range segments {
		base.WriteString(sanitizeSegment(seg))
	}
	prefix := base.String()
	if len(prefix) > logicalIDBaseMax {
		prefix = prefix[:logicalIDBaseMax]
	}
	return prefix + pathHashV1(segments)
}

// pathHashV1 is the v1 uniqueness suffix. Changing this function is a
// breaking change for every existing deployment.
func pathHashV1(segments []string) string {
	sum := md5.Sum([]byte(strings.Join(segments, "/")))
	return strings.ToUpper(fmt.Sprintf("%x", sum)[:logicalIDHashLen])
}

// IdentifierTable holds the completed logical identifier assignment for one
// stack: tree path -> logical identifier. It is built in full before any
// token resolves, so a resource may reference a sibling created later in
// program order.
type IdentifierTable struct {
	byPath map[string]string
	byID   map[string]string
}

func newIdentifierTable() *IdentifierTable {
	return &IdentifierTable{
		byPath: make(map[string]string),
		byID:   make(map[string]string),
	}
}

func (t *IdentifierTable) assign(pathString string, segments []string) (string, error) {
	id := logicalIDForPath(segments)
	if prior, taken := t.byID[id]; taken {
		// The hash suffix makes this unreachable for distinct paths; a hit
		// means the same path was registered twice.
		return "", fmt.Errorf("logical identifier collision: %q and %q both map to %s", prior, pathString, id)
	}
	t.byPath[pathString] = id
	t.byID[id] = pathString
	return id, nil
}

// LogicalIDForPath returns the identifier assigned to the given tree path.
func (t *IdentifierTable) LogicalIDForPath(pathString string) (string, bool) {
	id, ok := t.byPath[pathString]
	return id, ok
}

// PathForLogicalID returns the tree path that owns the given identifier.
func (t *IdentifierTable) PathForLogicalID(id string) (string, bool) {
	p, ok := t.byID[id]
	return p, ok
}

// Len returns the number of assigned identifiers.
func (t *IdentifierTable) Len() int {
	return len(t.byPath)
}
