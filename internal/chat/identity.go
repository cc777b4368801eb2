// Package chat holds the read-side projections of the chat core and the
// message composer.
//
// A ConversationStream keeps the ordered log of one mailbox. An InboxStream
// keeps one owner's recent messages, most recent first. A Composer holds a
// draft and sends it through a Sender. Stream state is owned by the stream
// and mutated only by its store listener; accessors return copies.
package chat

// Identity supplies the signed-in user. ok is false when nobody is signed
// in, in which case callers skip the operation.
type Identity interface {
	CurrentUserID() (id string, ok bool)
}

// IdentityFunc adapts a function to Identity.
type IdentityFunc func() (string, bool)

// CurrentUserID implements Identity.
func (f IdentityFunc) CurrentUserID() (string, bool) { return f() }

// StaticIdentity is an Identity that is always signed in as one user. The
// empty string means signed out.
type StaticIdentity string

// CurrentUserID implements Identity.
func (s StaticIdentity) CurrentUserID() (string, bool) { return string(s), s != "" }
