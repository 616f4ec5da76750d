package sync

import (
	"context"

	"github.com/sweldo/sweldo-sync/internal/schema"
)

// ProgressFunc receives human-readable progress lines. A nil ProgressFunc is
// allowed wherever one is accepted.
type ProgressFunc func(message string)

// LocalModel is the local side of one entity.
type LocalModel interface {
	// LoadAll returns every local record of the entity, across all subjects
	// and months. Missing local data is an empty result, not an error.
	LoadAll(ctx context.Context) ([]schema.Record, error)

	// SaveOrUpdate merges records into the group's local document.
	//
	// Example:
	//   err := model.SaveOrUpdate(ctx, schema.GroupKey{SubjectID: "EMP001", Year: 2024, Month: 1}, records)
	SaveOrUpdate(ctx context.Context, group schema.GroupKey, records []schema.Record) error
}

// Syncer pushes and pulls one entity.
type Syncer interface {
	// SyncToRemote pushes every local record to the remote store.
	//
	// Records are grouped into documents, each document is merged into its
	// remote counterpart (last write wins per record key), and the
	// overwritten fields are appended to the change ledger. The first
	// failure aborts the push; documents already written stay written.
	//
	// Example:
	//   err := adapter.SyncToRemote(ctx, func(msg string) { fmt.Println(msg) })
	SyncToRemote(ctx context.Context, onProgress ProgressFunc) error

	// SyncFromRemote pulls every remote document of the entity and saves
	// its records locally, one SaveOrUpdate per document. The first
	// failure aborts the pull.
	//
	// Example:
	//   err := adapter.SyncFromRemote(ctx, nil)
	SyncFromRemote(ctx context.Context, onProgress ProgressFunc) error
}

// State is the lifecycle of the most recent sync call.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateSuccess
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateSuccess:
		return "success"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}
