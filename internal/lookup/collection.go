package lookup

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mindfulmovement/service-session-go/internal/docstore"
)

// Collection merges a fixed default list with dynamic entries persisted in
// the document store. The merged view is defaults first, then any dynamic
// entries not already present among the defaults (case-insensitive).
type Collection struct {
	name     string
	defaults []string
	docs     docstore.Store
	logger   *zap.SugaredLogger

	nowFunc func() time.Time

	mu        sync.Mutex
	dynamic   []string
	sub       *docstore.Subscription
	nextID    int
	observers map[int]func([]string)
}

func New(name string, defaults []string, docs docstore.Store, logger *zap.SugaredLogger) *Collection {
	return &Collection{
		name:      name,
		defaults:  append([]string(nil), defaults...),
		docs:      docs,
		logger:    logger,
		nowFunc:   time.Now,
		observers: make(map[int]func([]string)),
	}
}

// Name reports the backing collection key.
func (c *Collection) Name() string { return c.name }

// All returns the merged, duplicate-free ordered list.
func (c *Collection) All() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mergedLocked()
}

// Sorted returns the merged list in lexical order.
func (c *Collection) Sorted() []string {
	out := c.All()
	sort.Strings(out)
	return out
}

// AddCustom normalizes the input and persists it as a new dynamic entry.
// It returns false (and no error) for empty input or a case-insensitive
// duplicate of a default or an existing dynamic entry. A persistence failure
// is returned as an error.
func (c *Collection) AddCustom(ctx context.Context, name string) (bool, error) {
	display := strings.TrimSpace(name)
	if display == "" {
		return false, nil
	}
	key := strings.ToLower(display)

	c.mu.Lock()
	for _, d := range c.defaults {
		if strings.ToLower(d) == key {
			c.mu.Unlock()
			return false, nil
		}
	}
	for _, d := range c.dynamic {
		if strings.ToLower(d) == key {
			c.mu.Unlock()
			return false, nil
		}
	}
	c.mu.Unlock()

	doc := map[string]any{
		"key":         key,
		"displayName": display,
		"createdAt":   c.nowFunc().UTC().Format(time.RFC3339),
	}
	if err := c.docs.Set(ctx, c.name, key, doc, false); err != nil {
		return false, fmt.Errorf("persist %s entry: %w", c.name, err)
	}

	// optimistic append; a live subscription converges to the same state
	c.mu.Lock()
	found := false
	for _, d := range c.dynamic {
		if strings.ToLower(d) == key {
			found = true
			break
		}
	}
	if !found {
		c.dynamic = append(c.dynamic, display)
	}
	merged := c.mergedLocked()
	fns := c.observerListLocked()
	c.mu.Unlock()

	for _, fn := range fns {
		fn(merged)
	}
	return true, nil
}

// Start opens the live collection subscription. On failure the collection
// stays usable with the static defaults only; the error is returned for
// visibility but need not be fatal to the caller.
func (c *Collection) Start(ctx context.Context) error {
	sub, err := c.docs.Subscribe(ctx, c.name, c.applySnapshot)
	if err != nil {
		c.logger.Warnw("lookup subscription unavailable, using defaults", "collection", c.name, "err", err)
		c.mu.Lock()
		c.dynamic = nil
		c.mu.Unlock()
		return err
	}
	c.mu.Lock()
	c.sub = sub
	c.mu.Unlock()
	return nil
}

// Stop tears down the live subscription. Safe to call more than once and
// without a prior successful Start.
func (c *Collection) Stop() {
	c.mu.Lock()
	sub := c.sub
	c.sub = nil
	c.mu.Unlock()
	if sub != nil {
		sub.Close()
	}
}

// Subscription is a handle to a merged-list observer registration.
type Subscription struct {
	once   sync.Once
	cancel func()
}

func (s *Subscription) Close() {
	s.once.Do(s.cancel)
}

// Subscribe registers an observer for merged-list changes.
func (c *Collection) Subscribe(fn func([]string)) *Subscription {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.observers[id] = fn
	c.mu.Unlock()

	return &Subscription{cancel: func() {
		c.mu.Lock()
		delete(c.observers, id)
		c.mu.Unlock()
	}}
}

// applySnapshot replaces the dynamic list wholesale from a full collection
// snapshot.
func (c *Collection) applySnapshot(docs []docstore.Document) {
	dynamic := make([]string, 0, len(docs))
	for _, doc := range docs {
		display, _ := doc.Data["displayName"].(string)
		if display == "" {
			display = doc.ID
		}
		key := strings.ToLower(strings.TrimSpace(display))
		if key == "" {
			continue
		}
		inDefaults := false
		for _, d := range c.defaults {
			if strings.ToLower(d) == key {
				inDefaults = true
				break
			}
		}
		if !inDefaults {
			dynamic = append(dynamic, display)
		}
	}

	c.mu.Lock()
	c.dynamic = dynamic
	merged := c.mergedLocked()
	fns := c.observerListLocked()
	c.mu.Unlock()

	for _, fn := range fns {
		fn(merged)
	}
}

func (c *Collection) mergedLocked() []string {
	out := make([]string, 0, len(c.defaults)+len(c.dynamic))
	out = append(out, c.defaults...)
	out = append(out, c.dynamic...)
	return out
}

func (c *Collection) observerListLocked() []func([]string) {
	fns := make([]func([]string), 0, len(c.observers))
	for _, fn := range c.observers {
		fns = append(fns, fn)
	}
	return fns
}
