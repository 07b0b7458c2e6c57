package docstore

import (
	"context"
	"errors"
	"sync"
)

var ErrNotFound = errors.New("document not found")

// Document is one entry of a collection snapshot.
type Document struct {
	ID   string
	Data map[string]any
}

// SnapshotFunc receives the full collection snapshot after every observed
// change. Implementations always deliver complete snapshots, never deltas.
type SnapshotFunc func(docs []Document)

// Store is the document-store contract: per-document get/set plus
// collection-level snapshots and change subscriptions.
type Store interface {
	Get(ctx context.Context, collection, id string) (map[string]any, error)
	// Set writes a document. With merge, unspecified fields of an existing
	// document are preserved; without, the document is replaced.
	Set(ctx context.Context, collection, id string, data map[string]any, merge bool) error
	List(ctx context.Context, collection string) ([]Document, error)
	// Subscribe delivers an initial snapshot and then one snapshot per
	// observed change until the returned subscription is closed.
	Subscribe(ctx context.Context, collection string, fn SnapshotFunc) (*Subscription, error)
}

// Subscription is the handle for a live collection subscription. Close is
// idempotent and releases the underlying resources.
type Subscription struct {
	once sync.Once
	stop func()
}

func newSubscription(stop func()) *Subscription {
	return &Subscription{stop: stop}
}

func (s *Subscription) Close() {
	s.once.Do(s.stop)
}
