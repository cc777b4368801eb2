package docstore

import "sync"

type batch struct {
	changes []Change
	err     error
}

// subscription delivers queued batches to its listener on a single
// goroutine, in the order they were queued.
type subscription struct {
	fn       Listener
	onCancel func()

	mu        sync.Mutex
	pending   []batch
	cancelled bool

	wake chan struct{}
	done chan struct{}
	once sync.Once
}

func newSubscription(fn Listener) *subscription {
	return &subscription{
		fn:   fn,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// enqueue appends a batch; it reports false once the subscription is cancelled.
func (s *subscription) enqueue(changes []Change, err error) bool {
	s.mu.Lock()
	if s.cancelled {
		s.mu.Unlock()
		return false
	}
	s.pending = append(s.pending, batch{changes: changes, err: err})
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return true
}

func (s *subscription) next() (batch, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelled || len(s.pending) == 0 {
		return batch{}, false
	}
	b := s.pending[0]
	s.pending = s.pending[1:]
	return b, true
}

func (s *subscription) run() {
	for {
		select {
		case <-s.done:
			return
		case <-s.wake:
		}
		for {
			b, ok := s.next()
			if !ok {
				break
			}
			s.fn(b.changes, b.err)
			if b.err != nil {
				s.Cancel()
				return
			}
		}
	}
}

// watch cancels the subscription when ctx is done.
func (s *subscription) watch(done <-chan struct{}) {
	if done == nil {
		return
	}
	go func() {
		select {
		case <-done:
			s.Cancel()
		case <-s.done:
		}
	}()
}

// Cancel implements Subscription.
func (s *subscription) Cancel() {
	s.once.Do(func() {
		s.mu.Lock()
		s.cancelled = true
		s.pending = nil
		s.mu.Unlock()
		close(s.done)
		if s.onCancel != nil {
			s.onCancel()
		}
	})
}
