package docstore

import "sync"

// listenerHub tracks the active subscriptions of each collection path so a
// write can be fanned out to every listener of its collection.
type listenerHub struct {
	mu        sync.RWMutex
	listeners map[string]map[int64]*subscription
	nextID    int64
}

func newListenerHub() *listenerHub {
	return &listenerHub{listeners: make(map[string]map[int64]*subscription)}
}

// Register adds s under the collection path and returns an id for Unregister.
func (h *listenerHub) Register(path string, s *subscription) int64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.listeners[path]; !ok {
		h.listeners[path] = make(map[int64]*subscription)
	}

	h.nextID++
	id := h.nextID
	h.listeners[path][id] = s
	return id
}

// Unregister removes a previously registered subscription.
func (h *listenerHub) Unregister(path string, id int64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if subs, ok := h.listeners[path]; ok {
		delete(subs, id)
		if len(subs) == 0 {
			delete(h.listeners, path)
		}
	}
}

// Publish queues changes on every listener of path and returns how many
// accepted them. Listeners that were cancelled are dropped from the hub.
func (h *listenerHub) Publish(path string, changes []Change) int {
	h.mu.RLock()
	subs := h.listeners[path]
	var stale []int64
	delivered := 0
	for id, s := range subs {
		if !s.enqueue(cloneChanges(changes), nil) {
			stale = append(stale, id)
			continue
		}
		delivered++
	}
	h.mu.RUnlock()

	for _, id := range stale {
		h.Unregister(path, id)
	}
	return delivered
}

// Len reports the number of listeners attached to path.
func (h *listenerHub) Len(path string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.listeners[path])
}

// CancelAll cancels every registered subscription.
func (h *listenerHub) CancelAll() {
	h.mu.RLock()
	var all []*subscription
	for _, subs := range h.listeners {
		for _, s := range subs {
			all = append(all, s)
		}
	}
	h.mu.RUnlock()

	for _, s := range all {
		s.Cancel()
	}
}

func cloneChanges(changes []Change) []Change {
	out := make([]Change, len(changes))
	for i, c := range changes {
		out[i] = Change{Type: c.Type, Doc: Document{ID: c.Doc.ID, Path: c.Doc.Path, Data: c.Doc.Data.Clone()}}
	}
	return out
}
