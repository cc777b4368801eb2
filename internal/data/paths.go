package data

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PaulBabatuyi/messenger-core/internal/docstore"
	"github.com/PaulBabatuyi/messenger-core/internal/normalize"
)

// Top-level collections.
const (
	messagesRoot       = "messages"
	recentMessagesRoot = "recent_messages"
	usersRoot          = "users"
	credentialsRoot    = "credentials"
)

// MailboxPath is the collection holding self's copies of the conversation
// with counterpart.
func MailboxPath(selfID, counterpartID string) string {
	return docstore.Join(messagesRoot, selfID, counterpartID)
}

// SummariesPath is the collection of owner's recent messages.
func SummariesPath(ownerID string) string {
	return docstore.Join(recentMessagesRoot, ownerID, "messages")
}

// SummaryPath is owner's recent message for counterpart.
func SummaryPath(ownerID, counterpartID string) string {
	return docstore.Join(SummariesPath(ownerID), counterpartID)
}

// UserPath is the profile document of uid.
func UserPath(uid string) string {
	return docstore.Join(usersRoot, uid)
}

// CredentialPath is the credential document of an email.
func CredentialPath(email string) string {
	return docstore.Join(credentialsRoot, url.PathEscape(normalize.Email(email)))
}

// checkID rejects ids that cannot be a single path segment.
func checkID(kind, id string) error {
	if id == "" || strings.Contains(id, "/") {
		return fmt.Errorf("%w: %s %q", ErrInvalidID, kind, id)
	}
	return nil
}
