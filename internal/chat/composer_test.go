package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PaulBabatuyi/messenger-core/internal/data"
	"github.com/PaulBabatuyi/messenger-core/internal/docstore"
)

type fakeSender struct {
	err   error
	sends []string
}

func (f *fakeSender) Send(_ context.Context, fromID string, to *data.User, text string) error {
	f.sends = append(f.sends, fromID+"->"+to.UID+":"+text)
	return f.err
}

func TestComposer_Send(t *testing.T) {
	boom := errors.New("unavailable")

	tests := []struct {
		name       string
		err        error
		wantDraft  string
		wantStatus string
		want       data.SendOutcome
	}{
		{
			name:      "all writes saved",
			wantDraft: "",
			want:      data.SendOutcome{SenderSaved: true, RecipientSaved: true, SummarySaved: true},
		},
		{
			name:       "sender copy failed keeps draft",
			err:        &data.SendError{Sender: boom},
			wantDraft:  "hello",
			wantStatus: "Failed to save message into store: ",
			want:       data.SendOutcome{RecipientSaved: true},
		},
		{
			name:       "recipient copy failed still clears draft",
			err:        &data.SendError{Recipient: boom},
			wantDraft:  "",
			wantStatus: "Failed to save message into store: ",
			want:       data.SendOutcome{SenderSaved: true, SummarySaved: true},
		},
		{
			name:       "precondition failure",
			err:        data.ErrMissingCounterpart,
			wantDraft:  "hello",
			wantStatus: "counterpart profile is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &fakeSender{err: tt.err}
			c := NewComposer(sender, StaticIdentity("A"), userB, nil)
			c.SetDraft("hello")

			got := c.Send(context.Background())

			assert.Equal(t, tt.want, got)
			assert.Equal(t, []string{"A->B:hello"}, sender.sends)
			assert.Equal(t, tt.wantDraft, c.Draft())
			if tt.wantStatus == "" {
				assert.Empty(t, c.Status())
			} else {
				assert.Contains(t, c.Status(), tt.wantStatus)
			}
		})
	}
}

func TestComposer_NoSignedInUser(t *testing.T) {
	sender := &fakeSender{}
	c := NewComposer(sender, IdentityFunc(func() (string, bool) { return "", false }), userB, nil)
	c.SetDraft("hello")

	assert.Equal(t, data.SendOutcome{}, c.Send(context.Background()))
	assert.Empty(t, sender.sends)
	assert.Equal(t, "hello", c.Draft())
	assert.Empty(t, c.Status())

	assert.Equal(t, data.SendOutcome{}, NewComposer(sender, nil, userB, nil).Send(context.Background()))
	assert.Empty(t, sender.sends)
}

func TestComposer_WithMessagesStore(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()

	conv := NewConversationStream(store, nil)
	require.NoError(t, conv.Open(ctx, "B", "A"))
	defer conv.Close()

	c := NewComposer(data.NewMessagesStore(store, nil), StaticIdentity("A"), userB, nil)
	c.SetDraft("hi")
	c.Send(ctx)
	assert.Empty(t, c.Draft())

	requireLen(t, conv.Messages, 1)
	assert.Equal(t, "hi", conv.Messages()[0].Text)
	assert.Equal(t, "A", conv.Messages()[0].FromID)
}
