package docstore

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// Memory is an in-process Store. Writes are applied and published under one
// lock, so every listener of a collection observes changes in write order.
type Memory struct {
	mu          sync.Mutex
	collections map[string]map[string]*memDoc
	hub         *listenerHub
	seq         uint64
	closed      bool
}

type memDoc struct {
	id   string
	seq  uint64
	data Data
}

// NewMemory returns an empty in-process store.
func NewMemory() *Memory {
	return &Memory{
		collections: make(map[string]map[string]*memDoc),
		hub:         newListenerHub(),
	}
}

var _ Store = (*Memory)(nil)

// Add implements Store.
func (m *Memory) Add(ctx context.Context, collection string, data Data) (string, error) {
	if err := ValidateCollection(collection); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id := uuid.NewString()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return "", ErrClosed
	}
	m.put(collection, id, data)
	return id, nil
}

// Set implements Store.
func (m *Memory) Set(ctx context.Context, docPath string, data Data) error {
	collection, id, err := SplitDoc(docPath)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.put(collection, id, data)
	return nil
}

// Create implements Store.
func (m *Memory) Create(ctx context.Context, docPath string, data Data) error {
	collection, id, err := SplitDoc(docPath)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if _, ok := m.collections[collection][id]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, docPath)
	}
	m.put(collection, id, data)
	return nil
}

// Get implements Store.
func (m *Memory) Get(ctx context.Context, docPath string) (*Document, error) {
	collection, id, err := SplitDoc(docPath)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	d, ok := m.collections[collection][id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, docPath)
	}
	return &Document{ID: d.id, Path: docPath, Data: d.data.Clone()}, nil
}

// Listen implements Store.
func (m *Memory) Listen(ctx context.Context, q Query, fn Listener) (Subscription, error) {
	if err := ValidateCollection(q.Collection); err != nil {
		return nil, err
	}
	if fn == nil {
		return nil, fmt.Errorf("docstore: nil listener")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}

	// Registering and queueing the initial snapshot under the write lock
	// keeps the snapshot and the live changes free of gaps and duplicates.
	sub := newSubscription(fn)
	id := m.hub.Register(q.Collection, sub)
	sub.onCancel = func() { m.hub.Unregister(q.Collection, id) }
	sub.enqueue(m.snapshot(q), nil)

	go sub.run()
	sub.watch(ctx.Done())
	return sub, nil
}

// Listeners reports how many subscriptions are attached to a collection.
func (m *Memory) Listeners(collection string) int {
	return m.hub.Len(collection)
}

// Ping implements Store.
func (m *Memory) Ping(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	return ctx.Err()
}

// Close implements Store. Every subscription is cancelled.
func (m *Memory) Close(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.hub.CancelAll()
	return nil
}

// put stores data and publishes the change. Callers hold m.mu.
func (m *Memory) put(collection, id string, data Data) {
	docs, ok := m.collections[collection]
	if !ok {
		docs = make(map[string]*memDoc)
		m.collections[collection] = docs
	}

	kind := Added
	m.seq++
	d := &memDoc{id: id, seq: m.seq, data: data.Clone()}
	if prev, ok := docs[id]; ok {
		kind = Modified
		d.seq = prev.seq
	}
	docs[id] = d

	m.hub.Publish(collection, []Change{{
		Type: kind,
		Doc:  Document{ID: id, Path: Join(collection, id), Data: d.data},
	}})
}

// snapshot returns every document of the queried collection as Added
// changes, ordered by the query field and then by insertion.
func (m *Memory) snapshot(q Query) []Change {
	docs := make([]*memDoc, 0, len(m.collections[q.Collection]))
	for _, d := range m.collections[q.Collection] {
		docs = append(docs, d)
	}
	slices.SortFunc(docs, func(a, b *memDoc) int {
		if q.OrderBy != "" {
			if c := CompareValues(a.data[q.OrderBy], b.data[q.OrderBy]); c != 0 {
				return c
			}
		}
		return cmp.Compare(a.seq, b.seq)
	})

	changes := make([]Change, len(docs))
	for i, d := range docs {
		changes[i] = Change{
			Type: Added,
			Doc:  Document{ID: d.id, Path: Join(q.Collection, d.id), Data: d.data.Clone()},
		}
	}
	return changes
}
