package core

import (
	"strings"
	"testing"
)

func TestLogicalIDGoldenValues(t *testing.T) {
	// The hash suffix is a compatibility contract: these values must never
	// change, or deployed stacks lose resource correlation.
	tests := []struct {
		path []string
		want string
	}{
		{[]string{"Queue"}, "Queue722AD2D0"},
		{[]string{"Api", "Handler"}, "ApiHandler0AA9C78B"},
		{[]string{"Worker", "Queue"}, "WorkerQueue79333B9C"},
		{[]string{"WorkerQueue"}, "WorkerQueue63C4A22E"},
	}
	for _, tt := range tests {
		if got := logicalIDForPath(tt.path); got != tt.want {
			t.Errorf("logicalIDForPath(%v) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestSameReadableBaseDistinctIDs(t *testing.T) {
	// "Worker/Queue" and "WorkerQueue" share the readable base; only the
	// hash keeps them apart.
	a := logicalIDForPath([]string{"Worker", "Queue"})
	b := logicalIDForPath([]string{"WorkerQueue"})
	if !strings.HasPrefix(a, "WorkerQueue") || !strings.HasPrefix(b, "WorkerQueue") {
		t.Fatalf("expected shared readable base, got %q and %q", a, b)
	}
	if a == b {
		t.Errorf("distinct paths produced the same identifier %q", a)
	}
}

func TestLogicalIDSanitization(t *testing.T) {
	got := logicalIDForPath([]string{"my-service", "db_table"})
	if strings.ContainsAny(got, "-_") {
		t.Errorf("identifier %q contains non-alphanumeric characters", got)
	}
	if !strings.HasPrefix(got, "MyserviceDbtable") {
		t.Errorf("identifier %q does not start with sanitized base", got)
	}
}

func TestLogicalIDTruncationKeepsHash(t *testing.T) {
	long := strings.Repeat("A", 400)
	id := logicalIDForPath([]string{long})
	if len(id) != logicalIDMaxLen {
		t.Fatalf("identifier length = %d, want %d", len(id), logicalIDMaxLen)
	}
	if id[:logicalIDBaseMax] != strings.Repeat("A", logicalIDBaseMax) {
		t.Error("readable prefix was not truncated to the base length")
	}
	// The last 8 characters are always the full hash, never truncated base.
	suffix := id[logicalIDBaseMax:]
	if suffix == strings.Repeat("A", logicalIDHashLen) {
		t.Error("hash suffix appears to have been dropped")
	}
}

func TestLogicalIDIsPureFunctionOfPath(t *testing.T) {
	path := []string{"Stack", "Group", "Resource"}
	first := logicalIDForPath(path)
	for i := 0; i < 10; i++ {
		if got := logicalIDForPath(path); got != first {
			t.Fatalf("identifier changed between runs: %q vs %q", first, got)
		}
	}
}

func TestIdentifierTableRejectsDoubleAssign(t *testing.T) {
	table := newIdentifierTable()
	if _, err := table.assign("Prod/Queue", []string{"Queue"}); err != nil {
		t.Fatalf("first assign failed: %v", err)
	}
	if _, err := table.assign("Prod/Queue", []string{"Queue"}); err == nil {
		t.Error("expected error on re-assigning the same path")
	}
}
