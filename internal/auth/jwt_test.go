package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	fbauth "firebase.google.com/go/v4/auth"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndCheckPassword(t *testing.T) {
	pwd := "s3cr3t-password"
	hash, err := HashPassword(pwd)
	require.NoError(t, err)

	assert.NoError(t, CheckPassword(hash, pwd), "password should match")
	assert.Error(t, CheckPassword(hash, "wrong"))
}

func TestJWTManager_GenerateAndVerify(t *testing.T) {
	m := NewJWTManager("test-secret", 5*time.Minute)

	token, expiresAt, err := m.GenerateToken("u1", "test@example.com")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), expiresAt, time.Second)

	claims, err := m.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "test@example.com", claims.Email)

	p, err := m.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, &Principal{UserID: "u1", Email: "test@example.com", Provider: ProviderJWT}, p)
}

func TestJWTManager_NormalizeEmailClaim(t *testing.T) {
	m := NewJWTManager("test-secret", 5*time.Minute)

	token, _, err := m.GenerateToken("u1", "User.Case@Example.COM")
	require.NoError(t, err)

	claims, err := m.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user.case@example.com", claims.Email)
}

func TestJWTManager_Rotation(t *testing.T) {
	// create a manager with two keys and active kid "k2"
	keys := map[string]string{"k1": "secret-one", "k2": "secret-two"}
	m := NewJWTManagerFromKeys(keys, "k2", 5*time.Minute)

	tkn2, _, err := m.GenerateToken("u1", "rot@example.com")
	require.NoError(t, err)
	_, err = m.VerifyToken(tkn2)
	require.NoError(t, err, "verify with active kid")

	// a token issued while k1 was active
	mOld := NewJWTManagerFromKeys(keys, "k1", 5*time.Minute)
	tkn1, _, err := mOld.GenerateToken("u1", "rot@example.com")
	require.NoError(t, err)
	_, err = m.VerifyToken(tkn1)
	require.NoError(t, err, "retired keys still verify")

	// once k1 is dropped its tokens are rejected
	mNew := NewJWTManagerFromKeys(map[string]string{"k2": "secret-two"}, "k2", 5*time.Minute)
	_, err = mNew.VerifyToken(tkn1)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTManager_Rejects(t *testing.T) {
	m := NewJWTManager("test-secret", 5*time.Minute)

	// expired
	expired := NewJWTManager("test-secret", -time.Minute)
	tkn, _, err := expired.GenerateToken("u1", "a@example.com")
	require.NoError(t, err)
	_, err = m.VerifyToken(tkn)
	assert.ErrorIs(t, err, ErrInvalidToken)

	// wrong secret
	other := NewJWTManager("other-secret", time.Minute)
	tkn, _, err = other.GenerateToken("u1", "a@example.com")
	require.NoError(t, err)
	_, err = m.VerifyToken(tkn)
	assert.ErrorIs(t, err, ErrInvalidToken)

	// no user id
	unsigned := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute))},
	})
	tkn, err = unsigned.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	_, err = m.VerifyToken(tkn)
	assert.ErrorIs(t, err, ErrInvalidToken)

	// unknown active kid
	_, _, err = NewJWTManagerFromKeys(map[string]string{"k1": "s"}, "k9", time.Minute).GenerateToken("u1", "")
	assert.Error(t, err)

	_, err = m.VerifyToken("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

type fakeIDTokens struct {
	token *fbauth.Token
	err   error
}

func (f fakeIDTokens) VerifyIDToken(context.Context, string) (*fbauth.Token, error) {
	return f.token, f.err
}

func TestFirebaseVerifier(t *testing.T) {
	v := NewFirebaseVerifier(fakeIDTokens{token: &fbauth.Token{
		UID:    "fb-uid",
		Claims: map[string]interface{}{"email": "Fire@Example.com"},
	}})

	p, err := v.Verify(context.Background(), "id-token")
	require.NoError(t, err)
	assert.Equal(t, &Principal{UserID: "fb-uid", Email: "fire@example.com", Provider: ProviderFirebase}, p)

	_, err = NewFirebaseVerifier(fakeIDTokens{err: errors.New("expired")}).Verify(context.Background(), "x")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestChainVerifier(t *testing.T) {
	ctx := context.Background()
	jwtm := NewJWTManager("test-secret", time.Minute)
	fb := NewFirebaseVerifier(fakeIDTokens{err: errors.New("not a firebase token")})
	chain := ChainVerifier{fb, jwtm}

	tkn, _, err := jwtm.GenerateToken("u1", "a@example.com")
	require.NoError(t, err)

	p, err := chain.Verify(ctx, tkn)
	require.NoError(t, err)
	assert.Equal(t, ProviderJWT, p.Provider)

	_, err = chain.Verify(ctx, "garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = ChainVerifier{}.Verify(ctx, tkn)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
