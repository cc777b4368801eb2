package auth

import (
	"context"
	"errors"
	"fmt"

	fbauth "firebase.google.com/go/v4/auth"

	"github.com/PaulBabatuyi/messenger-core/internal/normalize"
)

// Token providers.
const (
	ProviderJWT      = "jwt"
	ProviderFirebase = "firebase"
)

// Principal is an authenticated caller.
type Principal struct {
	UserID   string
	Email    string
	Provider string
}

// Verifier turns a bearer token into a Principal.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Principal, error)
}

// IDTokenVerifier is the part of the Firebase auth client used here.
// *auth.Client implements it.
type IDTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*fbauth.Token, error)
}

// FirebaseVerifier accepts Firebase ID tokens.
type FirebaseVerifier struct {
	client IDTokenVerifier
}

// NewFirebaseVerifier returns a Verifier backed by a Firebase auth client.
func NewFirebaseVerifier(client IDTokenVerifier) *FirebaseVerifier {
	return &FirebaseVerifier{client: client}
}

// Verify implements Verifier.
func (v *FirebaseVerifier) Verify(ctx context.Context, token string) (*Principal, error) {
	tok, err := v.client.VerifyIDToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	email, _ := tok.Claims["email"].(string)
	return &Principal{UserID: tok.UID, Email: normalize.Email(email), Provider: ProviderFirebase}, nil
}

// ChainVerifier tries each Verifier in order and returns the first success.
type ChainVerifier []Verifier

// Verify implements Verifier.
func (c ChainVerifier) Verify(ctx context.Context, token string) (*Principal, error) {
	var errs []error
	for _, v := range c {
		p, err := v.Verify(ctx, token)
		if err == nil {
			return p, nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil, ErrInvalidToken
	}
	return nil, errors.Join(errs...)
}
