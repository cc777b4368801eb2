package chat

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/PaulBabatuyi/messenger-core/internal/data"
	"github.com/PaulBabatuyi/messenger-core/internal/docstore"
	"github.com/PaulBabatuyi/messenger-core/internal/docstore/mocks"
)

const (
	waitFor = time.Second
	tick    = 5 * time.Millisecond
)

var base = time.Date(2024, 4, 1, 8, 0, 0, 0, time.UTC)

// fakeSub counts cancellations.
type fakeSub struct{ cancels atomic.Int32 }

func (f *fakeSub) Cancel() { f.cancels.Add(1) }

// captureListen expects one Listen on collection and returns a pointer that
// receives the listener once Listen is called.
func captureListen(store *mocks.MockStore, collection string, sub docstore.Subscription) *docstore.Listener {
	var captured docstore.Listener
	store.EXPECT().
		Listen(gomock.Any(), docstore.Query{Collection: collection, OrderBy: "timestamp"}, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ docstore.Query, fn docstore.Listener) (docstore.Subscription, error) {
			captured = fn
			return sub, nil
		})
	return &captured
}

func messageDoc(self, counterpart, id, from, text string, ts time.Time) docstore.Document {
	to := counterpart
	if from == counterpart {
		to = self
	}
	return docstore.Document{
		ID:   id,
		Path: docstore.Join(data.MailboxPath(self, counterpart), id),
		Data: docstore.Data{"fromId": from, "toId": to, "text": text, "timestamp": ts},
	}
}

func summaryDoc(owner, counterpart, text string, ts time.Time) docstore.Document {
	return docstore.Document{
		ID:   counterpart,
		Path: data.SummaryPath(owner, counterpart),
		Data: docstore.Data{
			"text":            text,
			"fromId":          owner,
			"toId":            counterpart,
			"email":           counterpart + "@example.com",
			"profileImageUrl": "",
			"timestamp":       ts,
		},
	}
}

func added(doc docstore.Document) docstore.Change {
	return docstore.Change{Type: docstore.Added, Doc: doc}
}

func requireLen[T any](t *testing.T, get func() []T, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return len(get()) == n }, waitFor, tick)
}
