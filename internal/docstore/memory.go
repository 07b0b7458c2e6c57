package docstore

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-memory Store. Subscriptions are notified synchronously
// on every write to the subscribed collection.
type MemoryStore struct {
	mu          sync.Mutex
	collections map[string]map[string]map[string]any
	nextID      int
	subs        map[int]memorySub
}

type memorySub struct {
	collection string
	fn         SnapshotFunc
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]map[string]map[string]any),
		subs:        make(map[int]memorySub),
	}
}

func (s *MemoryStore) Get(ctx context.Context, collection, id string) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.collections[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyDoc(doc), nil
}

func (s *MemoryStore) Set(ctx context.Context, collection, id string, data map[string]any, merge bool) error {
	s.mu.Lock()
	col, ok := s.collections[collection]
	if !ok {
		col = make(map[string]map[string]any)
		s.collections[collection] = col
	}
	if existing, ok := col[id]; ok && merge {
		merged := copyDoc(existing)
		for k, v := range data {
			merged[k] = v
		}
		col[id] = merged
	} else {
		col[id] = copyDoc(data)
	}
	fns := s.snapshotSubsLocked(collection)
	docs := s.listLocked(collection)
	s.mu.Unlock()

	for _, fn := range fns {
		fn(docs)
	}
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, collection, id string) error {
	s.mu.Lock()
	delete(s.collections[collection], id)
	fns := s.snapshotSubsLocked(collection)
	docs := s.listLocked(collection)
	s.mu.Unlock()

	for _, fn := range fns {
		fn(docs)
	}
	return nil
}

func (s *MemoryStore) List(ctx context.Context, collection string) ([]Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listLocked(collection), nil
}

func (s *MemoryStore) Subscribe(ctx context.Context, collection string, fn SnapshotFunc) (*Subscription, error) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = memorySub{collection: collection, fn: fn}
	docs := s.listLocked(collection)
	s.mu.Unlock()

	fn(docs)

	return newSubscription(func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}), nil
}

func (s *MemoryStore) listLocked(collection string) []Document {
	col := s.collections[collection]
	ids := make([]string, 0, len(col))
	for id := range col {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]Document, 0, len(ids))
	for _, id := range ids {
		out = append(out, Document{ID: id, Data: copyDoc(col[id])})
	}
	return out
}

func (s *MemoryStore) snapshotSubsLocked(collection string) []SnapshotFunc {
	var fns []SnapshotFunc
	for _, sub := range s.subs {
		if sub.collection == collection {
			fns = append(fns, sub.fn)
		}
	}
	return fns
}

func copyDoc(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
