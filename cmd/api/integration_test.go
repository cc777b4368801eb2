package main

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	chatv1 "github.com/PaulBabatuyi/messenger-core/api/chat/v1"
	"github.com/PaulBabatuyi/messenger-core/internal/config"
)

// TestMongoRoundTrip runs register, send and watch against a real MongoDB
// replica set (change streams need one).
func TestMongoRoundTrip(t *testing.T) {
	uri := os.Getenv("MONGODB_URI")
	if uri == "" {
		t.Skip("MONGODB_URI not set; skipping integration test")
	}

	cfg := testConfig()
	cfg.Store = config.StoreConfig{
		Backend:       config.BackendMongo,
		MongoURI:      uri,
		MongoDatabase: "messenger_it_" + time.Now().UTC().Format("20060102150405"),
	}
	env := newTestEnv(t, cfg)

	stamp := time.Now().UTC().Format("20060102-150405")
	a := env.register(t, stamp+"-a@example.com")
	b := env.register(t, stamp+"-b@example.com")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	stream, err := env.client.WatchConversation(withToken(ctx, b.Token), &chatv1.WatchConversationRequest{WithID: a.UserID})
	require.NoError(t, err)

	resp, err := env.client.SendMessage(withToken(ctx, a.Token), &chatv1.SendMessageRequest{ToID: b.UserID, Text: "hello mongo"})
	require.NoError(t, err)
	assert.True(t, resp.SenderSaved && resp.RecipientSaved && resp.SummarySaved)

	ev := recvEvent(t, stream)
	assert.Equal(t, "hello mongo", ev.Message.Text)
	assert.Equal(t, uint64(1), ev.Version)

	login, err := env.client.Login(ctx, &chatv1.LoginRequest{Email: stamp + "-a@example.com", Password: "testPass123"})
	require.NoError(t, err)
	assert.Equal(t, a.UserID, login.UserID)
}
