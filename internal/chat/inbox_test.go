package chat

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/PaulBabatuyi/messenger-core/internal/data"
	"github.com/PaulBabatuyi/messenger-core/internal/docstore"
	"github.com/PaulBabatuyi/messenger-core/internal/docstore/mocks"
)

func ids(entries []data.RecentMessage) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.ID
	}
	return out
}

func putSummary(t *testing.T, store docstore.Store, doc docstore.Document) {
	t.Helper()
	require.NoError(t, store.Set(context.Background(), doc.Path, doc.Data))
}

func TestInbox_LatestUpdateMovesToFront(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()

	s := NewInboxStream(store, nil)
	require.NoError(t, s.Open(ctx, "A"))
	defer s.Close()

	putSummary(t, store, summaryDoc("A", "B", "x", base))
	putSummary(t, store, summaryDoc("A", "C", "y", base.Add(time.Minute)))
	putSummary(t, store, summaryDoc("A", "B", "z", base.Add(2*time.Minute)))

	require.Eventually(t, func() bool {
		e := s.Entries()
		return len(e) == 2 && e[0].Text == "z"
	}, waitFor, tick)

	got := s.Entries()
	assert.Equal(t, []string{"B", "C"}, ids(got))
	assert.Equal(t, "y", got[1].Text)
}

func TestInbox_InitialSnapshotIsMostRecentFirst(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()

	// written out of timestamp order
	putSummary(t, store, summaryDoc("A", "C", "newer", base.Add(time.Hour)))
	putSummary(t, store, summaryDoc("A", "B", "older", base))
	putSummary(t, store, summaryDoc("A", "D", "newest", base.Add(2*time.Hour)))

	s := NewInboxStream(store, nil)
	require.NoError(t, s.Open(ctx, "A"))
	defer s.Close()

	requireLen(t, s.Entries, 3)
	assert.Equal(t, []string{"D", "C", "B"}, ids(s.Entries()))
}

func TestInbox_MalformedSummaryIsSkipped(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()

	putSummary(t, store, summaryDoc("A", "B", "1", base))
	putSummary(t, store, summaryDoc("A", "C", "2", base.Add(time.Second)))
	bad := summaryDoc("A", "X", "broken", base.Add(2*time.Second))
	delete(bad.Data, "fromId")
	bad.Data["email"] = int64(7)
	putSummary(t, store, bad)
	putSummary(t, store, summaryDoc("A", "D", "3", base.Add(3*time.Second)))

	s := NewInboxStream(store, nil)
	require.NoError(t, s.Open(ctx, "A"))
	defer s.Close()

	requireLen(t, s.Entries, 3)
	assert.Equal(t, []string{"D", "C", "B"}, ids(s.Entries()))
	assert.NoError(t, s.Err())
	assert.Empty(t, s.Status())
}

func TestInbox_ReopenClearsEntries(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	putSummary(t, store, summaryDoc("A", "B", "hi", base))

	s := NewInboxStream(store, nil)
	require.NoError(t, s.Open(ctx, "A"))
	requireLen(t, s.Entries, 1)

	// another user signs in with an empty inbox
	require.NoError(t, s.Open(ctx, "Z"))
	defer s.Close()
	assert.Empty(t, s.Entries())
	assert.Equal(t, 0, store.Listeners(data.SummariesPath("A")))

	// no late entries from the previous owner
	putSummary(t, store, summaryDoc("A", "C", "late", base.Add(time.Minute)))
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, s.Entries())

	// signing out clears as well
	require.NoError(t, s.Open(ctx, "A"))
	requireLen(t, s.Entries, 2)
	require.NoError(t, s.Open(ctx, ""))
	assert.Empty(t, s.Entries())
}

func TestInbox_RemovedAndMalformedChanges(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := mocks.NewMockStore(ctrl)
	fn := captureListen(store, data.SummariesPath("A"), &fakeSub{})

	s := NewInboxStream(store, nil)
	var (
		mu        sync.Mutex
		snapshots [][]string
	)
	s.OnChange(func(entries []data.RecentMessage) {
		mu.Lock()
		defer mu.Unlock()
		snapshots = append(snapshots, ids(entries))
	})
	require.NoError(t, s.Open(context.Background(), "A"))

	(*fn)([]docstore.Change{
		added(summaryDoc("A", "B", "1", base)),
		added(summaryDoc("A", "C", "2", base.Add(time.Second))),
	}, nil)

	// a malformed update drops the previous entry
	bad := summaryDoc("A", "B", "broken", base.Add(2*time.Second))
	delete(bad.Data, "timestamp")
	(*fn)([]docstore.Change{{Type: docstore.Modified, Doc: bad}}, nil)
	assert.Equal(t, []string{"C"}, ids(s.Entries()))

	// removal drops the entry without re-inserting it
	(*fn)([]docstore.Change{{Type: docstore.Removed, Doc: summaryDoc("A", "C", "2", base)}}, nil)
	assert.Empty(t, s.Entries())

	// removing an unknown counterpart changes nothing
	(*fn)([]docstore.Change{{Type: docstore.Removed, Doc: summaryDoc("A", "Q", "x", base)}}, nil)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, [][]string{{"C", "B"}, {"C"}, {}}, snapshots, "batches that change nothing are not reported")
}

func TestInbox_MalformedOverwriteDropsStaleEntry(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()

	putSummary(t, store, summaryDoc("A", "B", "old", base))
	putSummary(t, store, summaryDoc("A", "C", "hi", base.Add(time.Second)))

	s := NewInboxStream(store, nil)
	require.NoError(t, s.Open(ctx, "A"))
	defer s.Close()
	requireLen(t, s.Entries, 2)

	bad := summaryDoc("A", "B", "new", base.Add(2*time.Second))
	bad.Data["email"] = int64(7)
	putSummary(t, store, bad)

	requireLen(t, s.Entries, 1)
	assert.Equal(t, []string{"C"}, ids(s.Entries()))
	for _, e := range s.Entries() {
		assert.NotEqual(t, "old", e.Text)
	}
}

// Random interleavings of summary changes: the inbox never holds duplicate
// counterparts and is always ordered by latest update.
func TestInbox_AnyInterleavingKeepsOrderAndUniqueness(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := mocks.NewMockStore(ctrl)
	fn := captureListen(store, data.SummariesPath("A"), &fakeSub{})

	s := NewInboxStream(store, nil)
	require.NoError(t, s.Open(context.Background(), "A"))

	counterparts := []string{"B", "C", "D", "E", "F"}
	rng := rand.New(rand.NewSource(42))
	lastUpdate := map[string]int{}
	event := 0

	for round := 0; round < 50; round++ {
		batch := make([]docstore.Change, rng.Intn(4)+1)
		for i := range batch {
			c := counterparts[rng.Intn(len(counterparts))]
			kind := docstore.Added
			if _, ok := lastUpdate[c]; ok {
				kind = docstore.Modified
			}
			batch[i] = docstore.Change{Type: kind, Doc: summaryDoc("A", c, "m", base.Add(time.Duration(event)*time.Second))}
			event++
			lastUpdate[c] = event
		}
		(*fn)(batch, nil)

		got := ids(s.Entries())
		seen := map[string]bool{}
		for i, id := range got {
			require.False(t, seen[id], "duplicate entry %s", id)
			seen[id] = true
			if i > 0 {
				require.Greater(t, lastUpdate[got[i-1]], lastUpdate[id], "entries out of order: %v", got)
			}
		}
		require.Len(t, got, len(lastUpdate))
	}
}

func TestInbox_ListenerErrorIsReported(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := mocks.NewMockStore(ctrl)
	fn := captureListen(store, data.SummariesPath("A"), &fakeSub{})

	s := NewInboxStream(store, nil)
	var reported error
	s.OnError(func(err error) { reported = err })
	require.NoError(t, s.Open(context.Background(), "A"))

	(*fn)(nil, errors.New("quota exceeded"))

	assert.ErrorIs(t, reported, data.ErrSubscribeFailed)
	assert.Equal(t, "Failed to listen for recent messages: subscribe failed: quota exceeded", s.Status())
}
