package data

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/PaulBabatuyi/messenger-core/internal/docstore"
	"github.com/PaulBabatuyi/messenger-core/internal/docstore/mocks"
)

var (
	alice = &User{UID: "alice", Email: "alice@example.com", ProfileImageURL: "https://img.example.com/alice.png"}
	bob   = &User{UID: "bob", Email: "bob@example.com", ProfileImageURL: "https://img.example.com/bob.png"}
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// mailbox reads the initial snapshot of a mailbox collection.
func mailbox(t *testing.T, store docstore.Store, self, other string) []Message {
	t.Helper()
	got := make(chan []docstore.Change, 1)
	sub, err := store.Listen(context.Background(),
		docstore.Query{Collection: MailboxPath(self, other), OrderBy: "timestamp"},
		func(changes []docstore.Change, err error) {
			select {
			case got <- changes:
			default:
			}
		})
	require.NoError(t, err)
	defer sub.Cancel()

	var changes []docstore.Change
	select {
	case changes = <-got:
	case <-time.After(time.Second):
		t.Fatal("no snapshot delivered")
	}

	msgs := make([]Message, 0, len(changes))
	for _, c := range changes {
		m, err := DecodeMessage(c.Doc)
		require.NoError(t, err)
		msgs = append(msgs, m)
	}
	return msgs
}

func TestSend_WritesBothCopiesAndSummary(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	now := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

	msgs := NewMessagesStore(store, nil)
	msgs.now = fixedClock(now)

	require.NoError(t, msgs.Send(ctx, "alice", bob, "hi"))

	own := mailbox(t, store, "alice", "bob")
	require.Len(t, own, 1)
	assert.Equal(t, "hi", own[0].Text)
	assert.Equal(t, "alice", own[0].FromID)
	assert.Equal(t, "bob", own[0].ToID)
	assert.True(t, now.Equal(own[0].Timestamp))

	theirs := mailbox(t, store, "bob", "alice")
	require.Len(t, theirs, 1)
	assert.Equal(t, "hi", theirs[0].Text)
	assert.Equal(t, "alice", theirs[0].FromID)
	assert.NotEqual(t, own[0].ID, theirs[0].ID, "copies have independent ids")

	doc, err := store.Get(ctx, SummaryPath("alice", "bob"))
	require.NoError(t, err)
	summary, err := DecodeRecentMessage(*doc)
	require.NoError(t, err)
	assert.Equal(t, RecentMessage{
		ID:              "bob",
		Text:            "hi",
		FromID:          "alice",
		ToID:            "bob",
		Email:           "bob@example.com",
		ProfileImageURL: "https://img.example.com/bob.png",
		Timestamp:       now,
	}, summary)

	// only the sender's summary is written
	_, err = store.Get(ctx, SummaryPath("bob", "alice"))
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}

func TestSend_SummaryIsOverwritten(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	msgs := NewMessagesStore(store, nil)

	require.NoError(t, msgs.Send(ctx, "alice", bob, "x"))
	require.NoError(t, msgs.Send(ctx, "alice", bob, "y"))

	doc, err := store.Get(ctx, SummaryPath("alice", "bob"))
	require.NoError(t, err)
	assert.Equal(t, "y", doc.Data["text"])
	assert.Len(t, mailbox(t, store, "alice", "bob"), 2)
}

func TestSend_EmptyTextIsAllowed(t *testing.T) {
	store := docstore.NewMemory()
	require.NoError(t, NewMessagesStore(store, nil).Send(context.Background(), "alice", bob, ""))

	got := mailbox(t, store, "alice", "bob")
	require.Len(t, got, 1)
	assert.Equal(t, "", got[0].Text)
}

func TestSend_Preconditions(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	// no store call may happen
	msgs := NewMessagesStore(mocks.NewMockStore(ctrl), nil)
	ctx := context.Background()

	assert.ErrorIs(t, msgs.Send(ctx, "alice", nil, "hi"), ErrMissingCounterpart)
	assert.ErrorIs(t, msgs.Send(ctx, "alice", &User{Email: "x@example.com"}, "hi"), ErrMissingCounterpart)
	assert.ErrorIs(t, msgs.Send(ctx, "", bob, "hi"), ErrInvalidID)
	assert.ErrorIs(t, msgs.Send(ctx, "alice", &User{UID: "a/b"}, "hi"), ErrInvalidID)
	assert.Equal(t, SendOutcome{}, OutcomeOf(ErrMissingCounterpart))
}

func TestSend_LegFailures(t *testing.T) {
	boom := errors.New("store unavailable")

	tests := []struct {
		name      string
		mockSetup func(store *mocks.MockStore)
		want      SendOutcome
	}{
		{
			name: "sender copy fails",
			mockSetup: func(store *mocks.MockStore) {
				store.EXPECT().Add(gomock.Any(), MailboxPath("alice", "bob"), gomock.Any()).Return("", boom)
				store.EXPECT().Add(gomock.Any(), MailboxPath("bob", "alice"), gomock.Any()).Return("r1", nil)
				// the summary write is not attempted
			},
			want: SendOutcome{SenderSaved: false, RecipientSaved: true, SummarySaved: false},
		},
		{
			name: "recipient copy fails",
			mockSetup: func(store *mocks.MockStore) {
				store.EXPECT().Add(gomock.Any(), MailboxPath("alice", "bob"), gomock.Any()).Return("s1", nil)
				store.EXPECT().Add(gomock.Any(), MailboxPath("bob", "alice"), gomock.Any()).Return("", boom)
				store.EXPECT().Set(gomock.Any(), SummaryPath("alice", "bob"), gomock.Any()).Return(nil)
			},
			want: SendOutcome{SenderSaved: true, RecipientSaved: false, SummarySaved: true},
		},
		{
			name: "summary fails",
			mockSetup: func(store *mocks.MockStore) {
				store.EXPECT().Add(gomock.Any(), MailboxPath("alice", "bob"), gomock.Any()).Return("s1", nil)
				store.EXPECT().Add(gomock.Any(), MailboxPath("bob", "alice"), gomock.Any()).Return("r1", nil)
				store.EXPECT().Set(gomock.Any(), SummaryPath("alice", "bob"), gomock.Any()).Return(boom)
			},
			want: SendOutcome{SenderSaved: true, RecipientSaved: true, SummarySaved: false},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			store := mocks.NewMockStore(ctrl)
			tt.mockSetup(store)

			err := NewMessagesStore(store, nil).Send(context.Background(), "alice", bob, "hi")
			require.Error(t, err)

			var se *SendError
			require.ErrorAs(t, err, &se)
			assert.ErrorIs(t, err, ErrWriteFailed)
			assert.ErrorIs(t, err, boom)
			assert.Equal(t, tt.want, OutcomeOf(err))
		})
	}
}

func TestSend_PayloadShape(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	now := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	store := mocks.NewMockStore(ctrl)
	store.EXPECT().Add(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, data docstore.Data) (string, error) {
			assert.Equal(t, docstore.Data{"fromId": "alice", "toId": "bob", "text": "hi", "timestamp": now}, data)
			return "id", nil
		}).
		Times(2)
	store.EXPECT().Set(gomock.Any(), SummaryPath("alice", "bob"), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, data docstore.Data) error {
			assert.Equal(t, docstore.Data{
				"text":            "hi",
				"fromId":          "alice",
				"toId":            "bob",
				"email":           "bob@example.com",
				"profileImageUrl": "https://img.example.com/bob.png",
				"timestamp":       now,
			}, data)
			return nil
		})

	msgs := NewMessagesStore(store, nil)
	msgs.now = fixedClock(now)
	require.NoError(t, msgs.Send(context.Background(), "alice", bob, "hi"))
	assert.Equal(t, SendOutcome{SenderSaved: true, RecipientSaved: true, SummarySaved: true}, OutcomeOf(nil))
}
