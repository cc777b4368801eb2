package docstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder collects listener batches for assertions.
type recorder struct {
	mu      sync.Mutex
	batches [][]Change
	errs    []error
}

func (r *recorder) listen(changes []Change, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.errs = append(r.errs, err)
		return
	}
	r.batches = append(r.batches, changes)
}

func (r *recorder) changes() []Change {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Change
	for _, b := range r.batches {
		out = append(out, b...)
	}
	return out
}

func (r *recorder) batchCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.batches)
}

func TestMemory_AddGetSet(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	id, err := m.Add(ctx, "messages/a/b", Data{"text": "hi"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	doc, err := m.Get(ctx, Join("messages/a/b", id))
	require.NoError(t, err)
	assert.Equal(t, id, doc.ID)
	assert.Equal(t, "hi", doc.Data["text"])

	require.NoError(t, m.Set(ctx, "recent_messages/a/messages/b", Data{"text": "x"}))
	require.NoError(t, m.Set(ctx, "recent_messages/a/messages/b", Data{"other": "y"}))

	doc, err = m.Get(ctx, "recent_messages/a/messages/b")
	require.NoError(t, err)
	assert.Equal(t, Data{"other": "y"}, doc.Data, "Set replaces the whole document")
}

func TestMemory_GetMissing(t *testing.T) {
	_, err := NewMemory().Get(context.Background(), "users/nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemory_CreateRejectsExisting(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.Create(ctx, "credentials/a@example.com", Data{"uid": "1"}))
	err := m.Create(ctx, "credentials/a@example.com", Data{"uid": "2"})
	assert.ErrorIs(t, err, ErrAlreadyExists)

	doc, err := m.Get(ctx, "credentials/a@example.com")
	require.NoError(t, err)
	assert.Equal(t, "1", doc.Data["uid"])
}

func TestMemory_InvalidPaths(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, err := m.Add(ctx, "messages/a", Data{})
	assert.ErrorIs(t, err, ErrInvalidPath)
	assert.ErrorIs(t, m.Set(ctx, "users", Data{}), ErrInvalidPath)
	assert.ErrorIs(t, m.Set(ctx, "users//x/y", Data{}), ErrInvalidPath)
	_, err = m.Listen(ctx, Query{Collection: "users/x"}, func([]Change, error) {})
	assert.ErrorIs(t, err, ErrInvalidPath)
}

func TestMemory_StoredDataIsCopied(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	in := Data{"text": "original"}
	require.NoError(t, m.Set(ctx, "users/u1", in))
	in["text"] = "mutated"

	doc, err := m.Get(ctx, "users/u1")
	require.NoError(t, err)
	assert.Equal(t, "original", doc.Data["text"])

	doc.Data["text"] = "mutated again"
	doc, err = m.Get(ctx, "users/u1")
	require.NoError(t, err)
	assert.Equal(t, "original", doc.Data["text"])
}

func TestMemory_ListenDeliversHistoryInOrderThenLiveChanges(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	// inserted out of timestamp order
	_, err := m.Add(ctx, "messages/a/b", Data{"text": "second", "timestamp": base.Add(time.Minute)})
	require.NoError(t, err)
	_, err = m.Add(ctx, "messages/a/b", Data{"text": "first", "timestamp": base})
	require.NoError(t, err)

	rec := &recorder{}
	sub, err := m.Listen(ctx, Query{Collection: "messages/a/b", OrderBy: "timestamp"}, rec.listen)
	require.NoError(t, err)
	defer sub.Cancel()

	_, err = m.Add(ctx, "messages/a/b", Data{"text": "third", "timestamp": base.Add(2 * time.Minute)})
	require.NoError(t, err)
	// other collections are not delivered
	_, err = m.Add(ctx, "messages/b/a", Data{"text": "elsewhere", "timestamp": base})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(rec.changes()) == 3 }, time.Second, 5*time.Millisecond)

	got := rec.changes()
	assert.Equal(t, "first", got[0].Doc.Data["text"])
	assert.Equal(t, "second", got[1].Doc.Data["text"])
	assert.Equal(t, "third", got[2].Doc.Data["text"])
	for _, c := range got {
		assert.Equal(t, Added, c.Type)
	}
}

func TestMemory_ListenEmptyCollectionDeliversEmptyBatch(t *testing.T) {
	rec := &recorder{}
	sub, err := NewMemory().Listen(context.Background(), Query{Collection: "recent_messages/a/messages"}, rec.listen)
	require.NoError(t, err)
	defer sub.Cancel()

	require.Eventually(t, func() bool { return rec.batchCount() == 1 }, time.Second, 5*time.Millisecond)
	assert.Empty(t, rec.changes())
}

func TestMemory_SetReportsModified(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	rec := &recorder{}

	sub, err := m.Listen(ctx, Query{Collection: "recent_messages/a/messages"}, rec.listen)
	require.NoError(t, err)
	defer sub.Cancel()

	require.NoError(t, m.Set(ctx, "recent_messages/a/messages/b", Data{"text": "x"}))
	require.NoError(t, m.Set(ctx, "recent_messages/a/messages/b", Data{"text": "y"}))

	require.Eventually(t, func() bool { return len(rec.changes()) == 2 }, time.Second, 5*time.Millisecond)
	got := rec.changes()
	assert.Equal(t, Added, got[0].Type)
	assert.Equal(t, Modified, got[1].Type)
	assert.Equal(t, "b", got[1].Doc.ID)
}

func TestMemory_CancelStopsDelivery(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	rec := &recorder{}

	sub, err := m.Listen(ctx, Query{Collection: "messages/a/b"}, rec.listen)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return rec.batchCount() == 1 }, time.Second, 5*time.Millisecond)

	sub.Cancel()
	sub.Cancel() // idempotent
	assert.Equal(t, 0, m.Listeners("messages/a/b"))

	_, err = m.Add(ctx, "messages/a/b", Data{"text": "late"})
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, rec.changes())
}

func TestMemory_ContextCancelDetachesListener(t *testing.T) {
	m := NewMemory()
	ctx, cancel := context.WithCancel(context.Background())

	_, err := m.Listen(ctx, Query{Collection: "messages/a/b"}, func([]Change, error) {})
	require.NoError(t, err)
	assert.Equal(t, 1, m.Listeners("messages/a/b"))

	cancel()
	require.Eventually(t, func() bool { return m.Listeners("messages/a/b") == 0 }, time.Second, 5*time.Millisecond)
}

func TestMemory_CancelFromInsideListener(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	var (
		mu    sync.Mutex
		calls int
		sub   Subscription
	)
	ready := make(chan struct{})
	sub, err := m.Listen(ctx, Query{Collection: "messages/a/b"}, func([]Change, error) {
		<-ready
		mu.Lock()
		calls++
		mu.Unlock()
		sub.Cancel()
	})
	require.NoError(t, err)
	close(ready)

	_, err = m.Add(ctx, "messages/a/b", Data{"text": "ignored"})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return m.Listeners("messages/a/b") == 0 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, calls)
}

func TestMemory_CloseCancelsListeners(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, err := m.Listen(ctx, Query{Collection: "messages/a/b"}, func([]Change, error) {})
	require.NoError(t, err)

	require.NoError(t, m.Close(ctx))
	assert.Equal(t, 0, m.Listeners("messages/a/b"))
	assert.ErrorIs(t, m.Ping(ctx), ErrClosed)

	_, err = m.Add(ctx, "messages/a/b", Data{})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestCompareValues(t *testing.T) {
	now := time.Now()
	assert.Equal(t, -1, CompareValues(now, now.Add(time.Second)))
	assert.Equal(t, 1, CompareValues("b", "a"))
	assert.Equal(t, 0, CompareValues(int64(3), int64(3)))
	assert.Equal(t, -1, CompareValues(nil, "a"))
	assert.Equal(t, 0, CompareValues("a", int64(1)))
}

func TestSplitDoc(t *testing.T) {
	coll, id, err := SplitDoc("recent_messages/a/messages/b")
	require.NoError(t, err)
	assert.Equal(t, "recent_messages/a/messages", coll)
	assert.Equal(t, "b", id)

	_, _, err = SplitDoc("messages/a/b")
	assert.ErrorIs(t, err, ErrInvalidPath)
}
