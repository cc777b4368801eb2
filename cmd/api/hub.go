package main

import (
	"context"
	"sync"
)

// WatchHub tracks the open watch streams of connected users. Each stream
// registers the cancel func of its context, so all of them can be ended
// together before the gRPC server drains.
type WatchHub struct {
	mu      sync.RWMutex
	streams map[string]map[int64]context.CancelFunc
	nextID  int64
	closed  bool
}

// NewWatchHub creates a new hub instance.
func NewWatchHub() *WatchHub {
	return &WatchHub{streams: make(map[string]map[int64]context.CancelFunc)}
}

// Register records a stream of userID and returns the id to unregister it
// with. Once CloseAll has run, cancel is called immediately.
func (h *WatchHub) Register(userID string, cancel context.CancelFunc) int64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	id := h.nextID
	if h.closed {
		cancel()
		return id
	}
	if _, ok := h.streams[userID]; !ok {
		h.streams[userID] = make(map[int64]context.CancelFunc)
	}
	h.streams[userID][id] = cancel
	return id
}

// Unregister removes a stream once its handler returns.
func (h *WatchHub) Unregister(userID string, id int64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if conns, ok := h.streams[userID]; ok {
		delete(conns, id)
		if len(conns) == 0 {
			delete(h.streams, userID)
		}
	}
}

// CloseAll cancels every registered stream and rejects new ones. It returns
// the number of streams cancelled.
func (h *WatchHub) CloseAll() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	n := 0
	for user, conns := range h.streams {
		for _, cancel := range conns {
			cancel()
			n++
		}
		delete(h.streams, user)
	}
	return n
}

// Len returns the number of open streams and of distinct users.
func (h *WatchHub) Len() (streams, users int) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, conns := range h.streams {
		streams += len(conns)
	}
	return streams, len(h.streams)
}
