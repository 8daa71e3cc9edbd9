package snapshot

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/cirrus-iac/cirrus/pkg/core"
)

// setupTestStore creates a file-backed SQLite store in a temp directory.
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := NewSQLiteStore(Config{
		Path: filepath.Join(t.TempDir(), "snapshots.db"),
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate store: %v", err)
	}

	t.Cleanup(func() { store.Close() })
	return store
}

func testDocument(t *testing.T, stackName, queueName string) *core.Document {
	t.Helper()
	doc := core.NewDocument(stackName)
	doc.Resources.Set("Queue722AD2D0", &core.ResourceState{
		Type:       "AWS::SQS::Queue",
		Properties: map[string]interface{}{"QueueName": queueName},
	})
	return doc
}

func TestStoreLifecycle(t *testing.T) {
	store, err := NewSQLiteStore(Config{
		Path: filepath.Join(t.TempDir(), "snapshots.db"),
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}
	if err := store.HealthCheck(ctx); err != nil {
		t.Fatalf("health check failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}
}

func TestStoreRequiresPath(t *testing.T) {
	if _, err := NewSQLiteStore(Config{}); err == nil {
		t.Error("empty path must be rejected")
	}
}

func TestSaveAndLatestRoundTrip(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	doc := testDocument(t, "ApiStack", "orders")
	saved, err := store.Save(ctx, doc)
	if err != nil {
		t.Fatalf("failed to save snapshot: %v", err)
	}
	if saved.ID == "" {
		t.Error("snapshot has no id")
	}
	if saved.StackName != "ApiStack" || saved.ResourceCount != 1 {
		t.Errorf("snapshot = %+v", saved)
	}

	latest, err := store.Latest(ctx, "ApiStack")
	if err != nil {
		t.Fatalf("failed to get latest: %v", err)
	}
	if latest == nil || latest.ID != saved.ID {
		t.Fatalf("latest = %+v, want id %s", latest, saved.ID)
	}

	restored, err := latest.Document()
	if err != nil {
		t.Fatalf("failed to parse stored template: %v", err)
	}
	wantJSON, _ := doc.EncodeJSON()
	gotJSON, err := restored.EncodeJSON()
	if err != nil {
		t.Fatal(err)
	}
	if string(gotJSON) != string(wantJSON) {
		t.Errorf("stored template does not round-trip:\n%s\n!=\n%s", gotJSON, wantJSON)
	}
}

func TestLatestPicksNewest(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	if _, err := store.Save(ctx, testDocument(t, "ApiStack", "v1")); err != nil {
		t.Fatal(err)
	}
	second, err := store.Save(ctx, testDocument(t, "ApiStack", "v2"))
	if err != nil {
		t.Fatal(err)
	}

	latest, err := store.Latest(ctx, "ApiStack")
	if err != nil {
		t.Fatalf("failed to get latest: %v", err)
	}
	if latest.ID != second.ID {
		t.Errorf("latest id = %s, want %s", latest.ID, second.ID)
	}
}

func TestLatestForUnknownStackIsNil(t *testing.T) {
	store := setupTestStore(t)

	latest, err := store.Latest(context.Background(), "Nope")
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if latest != nil {
		t.Errorf("latest = %+v, want nil", latest)
	}
}

func TestGetByID(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	saved, err := store.Save(ctx, testDocument(t, "ApiStack", "orders"))
	if err != nil {
		t.Fatal(err)
	}

	got, err := store.Get(ctx, saved.ID)
	if err != nil {
		t.Fatalf("failed to get snapshot: %v", err)
	}
	if got.StackName != "ApiStack" {
		t.Errorf("stack = %s", got.StackName)
	}

	if _, err := store.Get(ctx, "missing"); err == nil {
		t.Error("unknown id must fail")
	}
}

func TestListNewestFirstAndScopedToStack(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	first, _ := store.Save(ctx, testDocument(t, "ApiStack", "v1"))
	second, _ := store.Save(ctx, testDocument(t, "ApiStack", "v2"))
	if _, err := store.Save(ctx, testDocument(t, "OtherStack", "x")); err != nil {
		t.Fatal(err)
	}

	list, err := store.List(ctx, "ApiStack", 10, 0)
	if err != nil {
		t.Fatalf("failed to list snapshots: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("list length = %d, want 2", len(list))
	}
	if list[0].ID != second.ID || list[1].ID != first.ID {
		t.Errorf("list order = %s, %s", list[0].ID, list[1].ID)
	}
}

func TestPruneKeepsNewest(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := store.Save(ctx, testDocument(t, "ApiStack", "v")); err != nil {
			t.Fatal(err)
		}
	}

	deleted, err := store.Prune(ctx, "ApiStack", 2)
	if err != nil {
		t.Fatalf("failed to prune: %v", err)
	}
	if deleted != 3 {
		t.Errorf("deleted = %d, want 3", deleted)
	}

	list, err := store.List(ctx, "ApiStack", 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Errorf("remaining = %d, want 2", len(list))
	}
}
