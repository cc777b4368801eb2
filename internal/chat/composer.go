package chat

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/PaulBabatuyi/messenger-core/internal/data"
)

// Sender writes a message. *data.MessagesStore is the in-process Sender;
// errors follow its contract (see data.OutcomeOf).
type Sender interface {
	Send(ctx context.Context, fromID string, to *data.User, text string) error
}

// Composer is the outgoing text buffer of one conversation.
type Composer struct {
	sender   Sender
	identity Identity
	to       *data.User
	log      *log.Logger

	mu     sync.Mutex
	draft  string
	status string
}

// NewComposer returns a Composer sending to counterpart as the identity's
// current user.
func NewComposer(sender Sender, identity Identity, counterpart *data.User, logger *log.Logger) *Composer {
	if logger == nil {
		logger = log.Default()
	}
	return &Composer{sender: sender, identity: identity, to: counterpart, log: logger.WithPrefix("composer")}
}

// SetDraft replaces the outgoing text.
func (c *Composer) SetDraft(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draft = text
}

// Draft returns the outgoing text.
func (c *Composer) Draft() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft
}

// Status is the result of the last send as human-readable text; "" after a
// fully successful send.
func (c *Composer) Status() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Send sends the draft. The draft is cleared once the sender copy is saved,
// whatever happened to the recipient copy. With nobody signed in nothing is
// sent and the zero outcome is returned.
func (c *Composer) Send(ctx context.Context) data.SendOutcome {
	var fromID string
	ok := false
	if c.identity != nil {
		fromID, ok = c.identity.CurrentUserID()
	}
	if !ok {
		c.log.Debug("send skipped, no signed-in user")
		return data.SendOutcome{}
	}

	text := c.Draft()
	err := c.sender.Send(ctx, fromID, c.to, text)
	outcome := data.OutcomeOf(err)

	c.mu.Lock()
	defer c.mu.Unlock()
	if outcome.SenderSaved {
		c.draft = ""
	}
	if err != nil {
		c.log.Warn("send failed", "from", fromID, "err", err)
		c.status = "Failed to save message into store: " + err.Error()
	} else {
		c.status = ""
	}
	return outcome
}
