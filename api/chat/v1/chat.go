// Package chatv1 is the wire API of chat.v1.ChatService.
//
// Messages are plain Go structs carried by the "chatv1-json" codec registered in
// this package; clients select it per call with CallContentSubtype, which
// the generated client does for every method.
package chatv1

import (
	"errors"
	"net/mail"
	"strings"
	"time"
)

// MaxTextBytes bounds the size of one message text.
const MaxTextBytes = 16 << 10

// RegisterRequest creates an account.
type RegisterRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ProfileImageURL string `json:"profile_image_url,omitempty"`
}

func (x *RegisterRequest) GetEmail() string {
	if x == nil {
		return ""
	}
	return x.Email
}

// Validate checks the request fields.
func (x *RegisterRequest) Validate() error {
	if err := validateEmail(x.GetEmail()); err != nil {
		return err
	}
	if len(x.Password) < 8 {
		return errors.New("password must be at least 8 characters")
	}
	return nil
}

// LoginRequest exchanges credentials for a token.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (x *LoginRequest) GetEmail() string {
	if x == nil {
		return ""
	}
	return x.Email
}

// Validate checks the request fields.
func (x *LoginRequest) Validate() error {
	if err := validateEmail(x.GetEmail()); err != nil {
		return err
	}
	if x.Password == "" {
		return errors.New("password is required")
	}
	return nil
}

// AuthResponse carries a bearer token for the chat service.
type AuthResponse struct {
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// GetProfileRequest reads users/{user_id}. An empty id reads the caller.
type GetProfileRequest struct {
	UserID string `json:"user_id,omitempty"`
}

// Validate checks the request fields.
func (x *GetProfileRequest) Validate() error {
	return validateOptionalID("user_id", x.UserID)
}

// GetProfileByEmailRequest looks a profile up by its registered email.
type GetProfileByEmailRequest struct {
	Email string `json:"email"`
}

func (x *GetProfileByEmailRequest) GetEmail() string {
	if x == nil {
		return ""
	}
	return x.Email
}

// Validate checks the request fields.
func (x *GetProfileByEmailRequest) Validate() error {
	return validateEmail(x.GetEmail())
}

// Profile is a user profile.
type Profile struct {
	UID             string `json:"uid"`
	Email           string `json:"email"`
	ProfileImageURL string `json:"profile_image_url,omitempty"`
}

// SendMessageRequest sends text from the caller to to_id.
type SendMessageRequest struct {
	ToID string `json:"to_id"`
	Text string `json:"text"`
}

// Validate checks the request fields. Empty text is allowed.
func (x *SendMessageRequest) Validate() error {
	if err := validateID("to_id", x.ToID); err != nil {
		return err
	}
	if len(x.Text) > MaxTextBytes {
		return errors.New("text is too long")
	}
	return nil
}

// SendMessageResponse reports which of the three writes committed.
type SendMessageResponse struct {
	SenderSaved    bool   `json:"sender_saved"`
	RecipientSaved bool   `json:"recipient_saved"`
	SummarySaved   bool   `json:"summary_saved"`
	Status         string `json:"status,omitempty"`
}

// WatchConversationRequest streams the caller's mailbox with with_id.
type WatchConversationRequest struct {
	WithID string `json:"with_id"`
}

// Validate checks the request fields.
func (x *WatchConversationRequest) Validate() error {
	return validateID("with_id", x.WithID)
}

// Message is one message copy.
type Message struct {
	ID        string    `json:"id"`
	FromID    string    `json:"from_id"`
	ToID      string    `json:"to_id"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// ConversationEvent is sent once per delivered message. Version increases
// by one with every event of a stream.
type ConversationEvent struct {
	Message *Message `json:"message"`
	Version uint64   `json:"version"`
}

// WatchInboxRequest streams the caller's recent messages.
type WatchInboxRequest struct{}

// RecentMessage is one inbox entry.
type RecentMessage struct {
	CounterpartID   string    `json:"counterpart_id"`
	Text            string    `json:"text"`
	FromID          string    `json:"from_id"`
	ToID            string    `json:"to_id"`
	Email           string    `json:"email"`
	Username        string    `json:"username"`
	ProfileImageURL string    `json:"profile_image_url,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

// InboxSnapshot is the whole inbox, most recently updated first.
type InboxSnapshot struct {
	Entries []*RecentMessage `json:"entries"`
}

func validateEmail(e string) error {
	if e == "" {
		return errors.New("email is required")
	}
	if len(e) > 254 {
		return errors.New("email is too long")
	}
	if _, err := mail.ParseAddress(strings.TrimSpace(e)); err != nil {
		return errors.New("email is not a valid address")
	}
	return nil
}

func validateID(field, id string) error {
	if id == "" {
		return errors.New(field + " is required")
	}
	return validateOptionalID(field, id)
}

func validateOptionalID(field, id string) error {
	if strings.Contains(id, "/") || len(id) > 128 {
		return errors.New(field + " is not a valid id")
	}
	return nil
}
