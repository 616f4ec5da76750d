package docstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned by backends that need to report a missing document
// through an error rather than the found flag.
var ErrNotFound = errors.New("document not found")

// Store is a collection/document database.
type Store interface {
	// GetDocument returns the document and true, or nil and false when the
	// document does not exist.
	GetDocument(ctx context.Context, collection, id string) (map[string]any, bool, error)

	// SetDocument writes data. With merge=false the document is replaced;
	// with merge=true nested maps are merged and DeleteField removes keys.
	SetDocument(ctx context.Context, collection, id string, data map[string]any, merge bool) error

	// ListDocuments returns every document in the collection ordered by id.
	ListDocuments(ctx context.Context, collection string) ([]Snapshot, error)

	Close() error
}

// Snapshot is one listed document.
type Snapshot struct {
	ID   string
	Data map[string]any
}

type fieldTransform struct {
	op string
}

// DeleteField removes the field it is assigned to in a merge write.
var DeleteField any = fieldTransform{op: "delete"}

// IsDeleteField reports whether v is the DeleteField sentinel.
func IsDeleteField(v any) bool {
	ft, ok := v.(fieldTransform)
	return ok && ft.op == "delete"
}
