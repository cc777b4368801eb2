package chat

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/PaulBabatuyi/messenger-core/internal/data"
	"github.com/PaulBabatuyi/messenger-core/internal/docstore"
)

// ChangeFunc receives the inbox after every batch that changed it.
type ChangeFunc func(entries []data.RecentMessage)

// InboxStream keeps one entry per counterpart, most recently updated first.
// Every change moves its entry to the front, whatever order the store
// reports, so the list heals itself on each event.
type InboxStream struct {
	store docstore.Store
	log   *log.Logger

	dispatchMu sync.Mutex

	mu       sync.Mutex
	sub      docstore.Subscription
	gen      uint64
	entries  []data.RecentMessage
	status   string
	err      error
	onChange ChangeFunc
	onError  func(error)
}

// NewInboxStream returns a closed inbox reading from store.
func NewInboxStream(store docstore.Store, logger *log.Logger) *InboxStream {
	if logger == nil {
		logger = log.Default()
	}
	return &InboxStream{store: store, log: logger.WithPrefix("inbox")}
}

// OnChange sets the callback invoked after each batch. It runs on the
// store's delivery goroutine and must not call Open or Close.
func (s *InboxStream) OnChange(fn ChangeFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

// OnError sets the callback invoked when the subscription fails after
// Open. The same restrictions as OnChange apply.
func (s *InboxStream) OnError(fn func(error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onError = fn
}

// Open cancels any previous subscription, clears the list and subscribes to
// ownerID's recent messages. An empty ownerID leaves the inbox closed and
// empty.
func (s *InboxStream) Open(ctx context.Context, ownerID string) error {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()

	gen := s.reset()
	if ownerID == "" {
		return nil
	}

	sub, err := s.store.Listen(ctx,
		docstore.Query{Collection: data.SummariesPath(ownerID), OrderBy: "timestamp"},
		s.listener(gen))
	if err != nil {
		err = fmt.Errorf("%w: %w", data.ErrSubscribeFailed, err)
		s.fail(err)
		return err
	}

	s.mu.Lock()
	s.sub = sub
	s.mu.Unlock()
	return nil
}

// Close cancels the subscription and clears the list. It is idempotent and
// must not be called from a ChangeFunc.
func (s *InboxStream) Close() {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()
	s.reset()
}

func (s *InboxStream) reset() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sub != nil {
		s.sub.Cancel()
		s.sub = nil
	}
	s.gen++
	s.entries = nil
	s.status = ""
	s.err = nil
	return s.gen
}

func (s *InboxStream) fail(err error) {
	s.log.Error("inbox listener failed", "err", err)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
	s.status = "Failed to listen for recent messages: " + err.Error()
}

func (s *InboxStream) listener(gen uint64) docstore.Listener {
	return func(changes []docstore.Change, err error) {
		s.dispatchMu.Lock()
		defer s.dispatchMu.Unlock()

		s.mu.Lock()
		if gen != s.gen {
			s.mu.Unlock()
			return
		}
		if err != nil {
			onError := s.onError
			s.mu.Unlock()
			err = fmt.Errorf("%w: %w", data.ErrSubscribeFailed, err)
			s.fail(err)
			if onError != nil {
				onError(err)
			}
			return
		}

		changed := false
		for _, c := range changes {
			// Every change first drops the counterpart's current entry, so a
			// malformed update loses the stale one too.
			changed = s.remove(c.Doc.ID) || changed
			if c.Type == docstore.Removed {
				// Not re-inserted: a deleted summary leaves the inbox.
				continue
			}
			entry, err := data.DecodeRecentMessage(c.Doc)
			if err != nil {
				s.log.Warn("skipping malformed recent message", "path", c.Doc.Path, "err", err)
				continue
			}
			s.entries = slices.Insert(s.entries, 0, entry)
			changed = true
		}

		var snapshot []data.RecentMessage
		fn := s.onChange
		if changed && fn != nil {
			snapshot = slices.Clone(s.entries)
		}
		s.mu.Unlock()

		if changed && fn != nil {
			fn(snapshot)
		}
	}
}

// remove drops the entry for a counterpart. Callers hold mu.
func (s *InboxStream) remove(counterpartID string) bool {
	i := slices.IndexFunc(s.entries, func(e data.RecentMessage) bool { return e.ID == counterpartID })
	if i < 0 {
		return false
	}
	s.entries = slices.Delete(s.entries, i, i+1)
	return true
}

// Entries returns a copy of the inbox, most recently updated first.
func (s *InboxStream) Entries() []data.RecentMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.entries)
}

// Status is the last human-readable error, or "" when healthy.
func (s *InboxStream) Status() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Err is the last subscribe error; it wraps data.ErrSubscribeFailed.
func (s *InboxStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}
