package data

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/PaulBabatuyi/messenger-core/internal/docstore"
)

// MessagesStore writes messages and recent-message summaries.
type MessagesStore struct {
	// store is the document store every copy is written to
	store docstore.Store

	// now stamps messages and summaries; replaced in tests
	now func() time.Time

	log *log.Logger
}

// NewMessagesStore returns a MessagesStore writing to store.
func NewMessagesStore(store docstore.Store, logger *log.Logger) *MessagesStore {
	if logger == nil {
		logger = log.Default()
	}
	return &MessagesStore{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
		log:   logger.WithPrefix("messages"),
	}
}

// Send writes text from fromID to the counterpart profile `to`.
//
// The sender copy and the recipient copy are written independently; neither
// rolls back the other. Only when the sender copy commits is the sender's
// recent message for the counterpart overwritten. Failed legs are reported
// in a *SendError; use OutcomeOf to read which writes committed.
func (m *MessagesStore) Send(ctx context.Context, fromID string, to *User, text string) error {
	if to == nil || to.UID == "" {
		return ErrMissingCounterpart
	}
	if err := checkID("sender", fromID); err != nil {
		return err
	}
	if err := checkID("recipient", to.UID); err != nil {
		return err
	}

	payload, err := encode(Message{FromID: fromID, ToID: to.UID, Text: text, Timestamp: m.now()})
	if err != nil {
		return fmt.Errorf("%w: encode message: %w", ErrWriteFailed, err)
	}

	var (
		wg      sync.WaitGroup
		sendErr SendError
	)

	// Recipient copy: its outcome never gates the sender side
	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, err := m.store.Add(ctx, MailboxPath(to.UID, fromID), payload.Clone()); err != nil {
			m.log.Warn("recipient copy not saved", "from", fromID, "to", to.UID, "err", err)
			sendErr.Recipient = fmt.Errorf("%w: %w", ErrWriteFailed, err)
		}
	}()

	if _, err := m.store.Add(ctx, MailboxPath(fromID, to.UID), payload); err != nil {
		m.log.Warn("sender copy not saved", "from", fromID, "to", to.UID, "err", err)
		sendErr.Sender = fmt.Errorf("%w: %w", ErrWriteFailed, err)
	} else if err := m.saveSummary(ctx, fromID, to, text); err != nil {
		m.log.Warn("recent message not saved", "owner", fromID, "counterpart", to.UID, "err", err)
		sendErr.Summary = fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}

	wg.Wait()

	if sendErr.Sender != nil || sendErr.Recipient != nil || sendErr.Summary != nil {
		return &sendErr
	}
	return nil
}

// saveSummary overwrites owner's recent message for the counterpart.
func (m *MessagesStore) saveSummary(ctx context.Context, ownerID string, to *User, text string) error {
	summary, err := encode(RecentMessage{
		Text:            text,
		FromID:          ownerID,
		ToID:            to.UID,
		Email:           to.Email,
		ProfileImageURL: to.ProfileImageURL,
		Timestamp:       m.now(),
	})
	if err != nil {
		return err
	}
	return m.store.Set(ctx, SummaryPath(ownerID, to.UID), summary)
}
