// Package data provides the chat models, their store paths and the stores
// that write them.
package data

import (
	"context" // Used for cancellation and timeouts
	"errors"  // Error handling
	"fmt"
	"time" // Timestamps

	"go.mongodb.org/mongo-driver/v2/bson" // ObjectID generation for uids

	"github.com/PaulBabatuyi/messenger-core/internal/docstore"
	"github.com/PaulBabatuyi/messenger-core/internal/normalize"
)

// UsersStore performs profile and credential operations.
type UsersStore struct {
	// store holds users/{uid} and credentials/{email}
	store docstore.Store
}

// NewUsersStore returns a UsersStore using the provided store.
func NewUsersStore(store docstore.Store) *UsersStore {
	return &UsersStore{store: store}
}

// CreateUser registers an email with an already-hashed password and writes
// the profile. The credential document is created first; its insert-only
// write is what rejects duplicate emails.
func (u *UsersStore) CreateUser(ctx context.Context, email, hashedPassword, profileImageURL string) (*User, error) {
	email = normalize.Email(email)
	uid := bson.NewObjectID().Hex()

	cred, err := encode(Credential{
		UID:       uid,
		Email:     email,
		Password:  hashedPassword,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: encode credential: %w", ErrWriteFailed, err)
	}
	if err := u.store.Create(ctx, CredentialPath(email), cred); err != nil {
		// Email already registered (insert-only path taken)
		if errors.Is(err, docstore.ErrAlreadyExists) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}

	user := &User{UID: uid, Email: email, ProfileImageURL: profileImageURL}
	if err := u.SaveUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// SaveUser creates or replaces a profile. Used directly for identities
// issued by a hosted provider, which have no credential document.
func (u *UsersStore) SaveUser(ctx context.Context, user *User) error {
	if err := checkID("user", user.UID); err != nil {
		return err
	}
	profile, err := encode(user)
	if err != nil {
		return fmt.Errorf("%w: encode profile: %w", ErrWriteFailed, err)
	}
	if err := u.store.Set(ctx, UserPath(user.UID), profile); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	return nil
}

// GetCredential finds the credential of an email.
func (u *UsersStore) GetCredential(ctx context.Context, email string) (*Credential, error) {
	doc, err := u.store.Get(ctx, CredentialPath(email))
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	var cred Credential
	if err := decode(*doc, &cred, "uid", "email", "password"); err != nil {
		return nil, err
	}
	return &cred, nil
}

// GetUserByEmail finds a profile through the email's credential.
func (u *UsersStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	cred, err := u.GetCredential(ctx, email)
	if err != nil {
		return nil, err
	}
	return u.GetUserByID(ctx, cred.UID)
}

// GetUserByID reads users/{uid}.
func (u *UsersStore) GetUserByID(ctx context.Context, uid string) (*User, error) {
	if err := checkID("user", uid); err != nil {
		return nil, err
	}
	doc, err := u.store.Get(ctx, UserPath(uid))
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	user, err := DecodeUser(*doc)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// UserExists checks if an email is registered.
func (u *UsersStore) UserExists(ctx context.Context, email string) (bool, error) {
	_, err := u.GetCredential(ctx, email)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrUserNotFound):
		return false, nil
	default:
		return false, err
	}
}
