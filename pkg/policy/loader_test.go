package policy

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

const sampleRego = `# Buckets must enable versioning.
package cirrus.policies.versioning

import rego.v1

deny contains msg if {
	input.resource.type == "AWS::S3::Bucket"
	not input.resource.properties.VersioningConfiguration
	msg := "bucket must enable versioning"
}`

func TestLoadRegoFile(t *testing.T) {
	loader := NewLoader(zerolog.Nop())
	dir := t.TempDir()
	path := writeFile(t, dir, "bucket-versioning.rego", sampleRego)

	policies, err := loader.LoadFromPaths(context.Background(), []string{path})
	if err != nil {
		t.Fatalf("failed to load: %v", err)
	}
	if len(policies) != 1 {
		t.Fatalf("loaded %d policies, want 1", len(policies))
	}

	p := policies[0]
	if p.Name != "bucket-versioning" {
		t.Errorf("name = %s", p.Name)
	}
	if p.Description != "Buckets must enable versioning." {
		t.Errorf("description = %q", p.Description)
	}
	if p.Severity != SeverityWarning {
		t.Errorf("default severity = %s, want warning", p.Severity)
	}
	if !p.Enabled {
		t.Error("loaded policy must be enabled")
	}
}

func TestLoadDirectorySkipsUnrelatedFiles(t *testing.T) {
	loader := NewLoader(zerolog.Nop())
	dir := t.TempDir()
	writeFile(t, dir, "bucket-versioning.rego", sampleRego)
	writeFile(t, dir, "notes.txt", "not a policy")
	writeFile(t, dir, "broken.json", "{not json")

	policies, err := loader.LoadFromPaths(context.Background(), []string{dir})
	if err != nil {
		t.Fatalf("failed to load: %v", err)
	}
	if len(policies) != 1 {
		t.Errorf("loaded %d policies, want 1 (.txt and broken .json skipped)", len(policies))
	}
}

func TestLoadJSONPolicy(t *testing.T) {
	loader := NewLoader(zerolog.Nop())
	dir := t.TempDir()

	p := Policy{
		Name:     "json-policy",
		Rego:     sampleRego,
		Severity: SeverityError,
		Enabled:  true,
	}
	data, err := json.Marshal(p)
	if err != nil {
		t.Fatal(err)
	}
	path := writeFile(t, dir, "policy.json", string(data))

	policies, err := loader.LoadFromPaths(context.Background(), []string{path})
	if err != nil {
		t.Fatalf("failed to load: %v", err)
	}
	if len(policies) != 1 {
		t.Fatalf("loaded %d policies, want 1", len(policies))
	}
	if policies[0].Severity != SeverityError {
		t.Errorf("severity = %s, want error", policies[0].Severity)
	}
	if policies[0].CreatedAt.IsZero() {
		t.Error("created_at default not applied")
	}
}

func TestLoadMissingPathFails(t *testing.T) {
	loader := NewLoader(zerolog.Nop())

	if _, err := loader.LoadFromPaths(context.Background(), []string{"/no/such/path"}); err == nil {
		t.Error("missing path must fail")
	}
}

func TestLoaderCache(t *testing.T) {
	loader := NewLoader(zerolog.Nop())
	dir := t.TempDir()
	path := writeFile(t, dir, "bucket-versioning.rego", sampleRego)

	first, err := loader.LoadFromPaths(context.Background(), []string{path})
	if err != nil {
		t.Fatal(err)
	}

	// A rewritten file is served from cache until the cache is cleared.
	writeFile(t, dir, "bucket-versioning.rego", "# changed\npackage cirrus.policies.versioning\n")
	cached, err := loader.LoadFromPaths(context.Background(), []string{path})
	if err != nil {
		t.Fatal(err)
	}
	if cached[0].Rego != first[0].Rego {
		t.Error("expected cached policy content")
	}

	loader.ClearCache()
	fresh, err := loader.LoadFromPaths(context.Background(), []string{path})
	if err != nil {
		t.Fatal(err)
	}
	if fresh[0].Rego == first[0].Rego {
		t.Error("expected fresh policy content after cache clear")
	}
}

func TestLoadBundle(t *testing.T) {
	loader := NewLoader(zerolog.Nop())
	dir := t.TempDir()

	bundle := Bundle{
		Name:    "security",
		Version: "1.0.0",
		Policies: []Policy{
			{Name: "a", Rego: sampleRego, Severity: SeverityError, Enabled: true},
			{Name: "b", Rego: sampleRego, Severity: SeverityWarning, Enabled: true},
		},
	}
	data, err := json.Marshal(bundle)
	if err != nil {
		t.Fatal(err)
	}
	path := writeFile(t, dir, "bundle.json", string(data))

	loaded, err := loader.LoadBundle(context.Background(), path)
	if err != nil {
		t.Fatalf("failed to load bundle: %v", err)
	}
	if loaded.Name != "security" || len(loaded.Policies) != 2 {
		t.Errorf("bundle = %+v", loaded)
	}
}
