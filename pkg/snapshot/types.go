package snapshot

import (
	"context"
	"time"

	"github.com/cirrus-iac/cirrus/pkg/core"
)

// Snapshot is one persisted synthesized template for a stack. The diff
// command treats the latest snapshot as the deployed side.
type Snapshot struct {
	// ID is the snapshot's uuid.
	ID string `json:"id"`

	// StackName is the stack the template belongs to.
	StackName string `json:"stack_name"`

	// Template is the JSON-encoded document.
	Template string `json:"template"`

	// ResourceCount is the number of resource declarations in the template.
	ResourceCount int `json:"resource_count"`

	// CreatedAt is when the snapshot was saved.
	CreatedAt time.Time `json:"created_at"`
}

// Document parses the stored template back into a document.
func (s *Snapshot) Document() (*core.Document, error) {
	return core.ParseDocument([]byte(s.Template))
}

// Store defines the snapshot persistence interface.
type Store interface {
	// Lifecycle
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error

	// Save persists a freshly synthesized document for its stack.
	Save(ctx context.Context, doc *core.Document) (*Snapshot, error)

	// Latest returns the most recent snapshot for the stack, or nil when the
	// stack has never been snapshotted.
	Latest(ctx context.Context, stackName string) (*Snapshot, error)

	// Get returns a snapshot by id.
	Get(ctx context.Context, id string) (*Snapshot, error)

	// List returns snapshots for the stack, newest first.
	List(ctx context.Context, stackName string, limit, offset int) ([]*Snapshot, error)

	// Prune deletes all but the newest keep snapshots per stack and returns
	// the number deleted.
	Prune(ctx context.Context, stackName string, keep int) (int64, error)

	// HealthCheck verifies the store is reachable.
	HealthCheck(ctx context.Context) error
}
