package docstore

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps documents in process memory.
// Every read and write deep-copies so callers never share maps with the store.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]map[string]map[string]any
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]map[string]map[string]any)}
}

// GetDocument implements Store.
func (s *MemoryStore) GetDocument(ctx context.Context, collection, id string) (map[string]any, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[collection][id]
	if !ok {
		return nil, false, nil
	}
	return stripSentinels(doc), true, nil
}

// SetDocument implements Store.
func (s *MemoryStore) SetDocument(ctx context.Context, collection, id string, data map[string]any, merge bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	col, ok := s.docs[collection]
	if !ok {
		col = make(map[string]map[string]any)
		s.docs[collection] = col
	}
	col[id] = apply(col[id], data, merge)
	return nil
}

// ListDocuments implements Store.
func (s *MemoryStore) ListDocuments(ctx context.Context, collection string) ([]Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	col := s.docs[collection]
	snaps := make([]Snapshot, 0, len(col))
	for id, doc := range col {
		snaps = append(snaps, Snapshot{ID: id, Data: stripSentinels(doc)})
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].ID < snaps[j].ID })
	return snaps, nil
}

// Count returns the number of documents in a collection.
func (s *MemoryStore) Count(collection string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs[collection])
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	return nil
}
