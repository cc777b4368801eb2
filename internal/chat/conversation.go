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

// AppendFunc is called once per delivered message with the stream version
// after the append.
type AppendFunc func(msg data.Message, version uint64)

// ConversationStream is the ordered message log of one mailbox.
//
// Only added changes are surfaced. Messages are never mutated by the core,
// so modified and removed changes for a mailbox are dropped.
type ConversationStream struct {
	store docstore.Store
	log   *log.Logger

	// dispatchMu serializes listener batches with Open and Close, so no
	// callback runs once Close has returned.
	dispatchMu sync.Mutex

	mu       sync.Mutex
	sub      docstore.Subscription
	gen      uint64 // bumped on every Open and Close; stale batches are dropped
	messages []data.Message
	version  uint64
	status   string
	err      error
	onAppend AppendFunc
	onError  func(error)
}

// NewConversationStream returns a closed stream reading from store.
func NewConversationStream(store docstore.Store, logger *log.Logger) *ConversationStream {
	if logger == nil {
		logger = log.Default()
	}
	return &ConversationStream{store: store, log: logger.WithPrefix("conversation")}
}

// OnAppend sets the callback invoked for every delivered message. It runs on
// the store's delivery goroutine and must not call Open or Close.
func (s *ConversationStream) OnAppend(fn AppendFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onAppend = fn
}

// OnError sets the callback invoked when the subscription fails after
// Open. The failure is terminal; the stream delivers nothing more until it
// is reopened. The same restrictions as OnAppend apply.
func (s *ConversationStream) OnError(fn func(error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onError = fn
}

// Open subscribes to selfID's mailbox for counterpartID, ordered by
// timestamp. Any previous subscription is cancelled and the log cleared
// first; the full history is delivered again. An empty selfID means no user
// is signed in: the stream is left closed and nil is returned.
func (s *ConversationStream) Open(ctx context.Context, selfID, counterpartID string) error {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()

	gen := s.reset()
	if selfID == "" || counterpartID == "" {
		return nil
	}

	sub, err := s.store.Listen(ctx,
		docstore.Query{Collection: data.MailboxPath(selfID, counterpartID), OrderBy: "timestamp"},
		s.listener(gen))
	if err != nil {
		err = fmt.Errorf("%w: %w", data.ErrSubscribeFailed, err)
		s.fail("Failed to listen for messages: ", err)
		return err
	}

	s.mu.Lock()
	s.sub = sub
	s.mu.Unlock()
	return nil
}

// Close cancels the subscription. It is idempotent and must not be called
// from an AppendFunc.
func (s *ConversationStream) Close() {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()
	s.reset()
}

// reset cancels the current subscription and clears the log, returning the
// new generation. Callers hold dispatchMu.
func (s *ConversationStream) reset() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sub != nil {
		s.sub.Cancel()
		s.sub = nil
	}
	s.gen++
	s.messages = nil
	s.status = ""
	s.err = nil
	return s.gen
}

func (s *ConversationStream) fail(prefix string, err error) {
	s.log.Error("conversation listener failed", "err", err)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
	s.status = prefix + err.Error()
}

type appended struct {
	msg     data.Message
	version uint64
}

func (s *ConversationStream) listener(gen uint64) docstore.Listener {
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
			s.fail("Failed to listen for messages: ", err)
			if onError != nil {
				onError(err)
			}
			return
		}

		var out []appended
		for _, c := range changes {
			if c.Type != docstore.Added {
				continue
			}
			msg, err := data.DecodeMessage(c.Doc)
			if err != nil {
				s.log.Warn("skipping malformed message", "path", c.Doc.Path, "err", err)
				continue
			}
			s.messages = append(s.messages, msg)
			s.version++
			out = append(out, appended{msg: msg, version: s.version})
		}
		fn := s.onAppend
		s.mu.Unlock()

		if fn != nil {
			for _, a := range out {
				fn(a.msg, a.version)
			}
		}
	}
}

// Messages returns a copy of the log in delivery order.
func (s *ConversationStream) Messages() []data.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.messages)
}

// Version is bumped on every delivered message and never decreases, even
// across reopens.
func (s *ConversationStream) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// Status is the last human-readable error, or "" when healthy.
func (s *ConversationStream) Status() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Err is the last subscribe error; it wraps data.ErrSubscribeFailed.
func (s *ConversationStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}
