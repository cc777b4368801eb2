// Package di assembles the chat server's dependencies.
package di

import (
	"context"
	"fmt"
	"os"
	"time"

	firebase "firebase.google.com/go/v4"
	"github.com/charmbracelet/log"
	"github.com/google/wire"
	"google.golang.org/api/option"

	"github.com/PaulBabatuyi/messenger-core/internal/auth"
	"github.com/PaulBabatuyi/messenger-core/internal/config"
	"github.com/PaulBabatuyi/messenger-core/internal/data"
	"github.com/PaulBabatuyi/messenger-core/internal/db"
	"github.com/PaulBabatuyi/messenger-core/internal/docstore"
	"github.com/PaulBabatuyi/messenger-core/internal/docstore/firestorestore"
	"github.com/PaulBabatuyi/messenger-core/internal/docstore/mongostore"
	"github.com/PaulBabatuyi/messenger-core/internal/middleware"
)

// Application is everything the server needs, built once at startup.
type Application struct {
	Config   *config.Config
	Logger   *log.Logger
	Store    docstore.Store
	Messages *data.MessagesStore
	Users    *data.UsersStore
	Tokens   *auth.JWTManager
	Verifier auth.Verifier
	Limiter  *middleware.LimiterStore
}

// ProviderSet holds every provider of the application graph.
var ProviderSet = wire.NewSet(
	ProvideFirebaseApp,
	ProvideStore,
	ProvideMessagesStore,
	data.NewUsersStore,
	ProvideJWTManager,
	ProvideVerifier,
	ProvideLimiter,
)

// ProvideLogger builds the process logger at the configured level.
func ProvideLogger(cfg *config.Config) *log.Logger {
	return log.NewWithOptions(os.Stderr, log.Options{
		Level:           cfg.LogLevel(),
		ReportTimestamp: true,
		TimeFormat:      time.DateTime,
		Prefix:          "messenger",
	})
}

// ProvideFirebaseApp returns nil when neither the Firestore backend nor
// Firebase token verification is configured.
func ProvideFirebaseApp(ctx context.Context, cfg *config.Config, logger *log.Logger) (*firebase.App, error) {
	if cfg.Store.Backend != config.BackendFirestore && !cfg.Firebase.AuthEnabled {
		logger.Debug("firebase disabled")
		return nil, nil
	}

	var opts []option.ClientOption
	if cfg.Firebase.CredentialsFilePath != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.Firebase.CredentialsFilePath))
	}
	firebaseConfig := &firebase.Config{
		ProjectID: cfg.Firebase.ProjectID,
	}

	app, err := firebase.NewApp(ctx, firebaseConfig, opts...)
	if err != nil {
		return nil, fmt.Errorf("firebase initialization failed: %w", err)
	}
	logger.Info("firebase app ready", "project", cfg.Firebase.ProjectID)
	return app, nil
}

// ProvideStore opens the configured document store. The cleanup func
// releases its connection.
func ProvideStore(ctx context.Context, cfg *config.Config, app *firebase.App, logger *log.Logger) (docstore.Store, func(), error) {
	switch cfg.Store.Backend {
	case config.BackendMongo:
		client, err := db.New(ctx, cfg.Store.MongoURI, cfg.Store.MongoDatabase)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to DB: %w", err)
		}
		if err := client.CreateIndexes(ctx); err != nil {
			_ = client.Close(context.Background())
			return nil, nil, fmt.Errorf("failed to create indexes: %w", err)
		}
		logger.Info("document store ready", "backend", "mongo", "database", cfg.Store.MongoDatabase)
		cleanup := func() {
			if err := client.Close(context.Background()); err != nil {
				logger.Error("close mongo client", "err", err)
			}
		}
		return mongostore.New(client.Database(), logger), cleanup, nil

	case config.BackendFirestore:
		if app == nil {
			return nil, nil, fmt.Errorf("firestore backend requires a firebase app")
		}
		client, err := app.Firestore(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create firestore client: %w", err)
		}
		store := firestorestore.New(client, logger)
		logger.Info("document store ready", "backend", "firestore", "project", cfg.Firebase.ProjectID)
		cleanup := func() {
			if err := store.Close(context.Background()); err != nil {
				logger.Error("close firestore client", "err", err)
			}
		}
		return store, cleanup, nil

	case config.BackendMemory:
		store := docstore.NewMemory()
		logger.Warn("document store is in-memory; data is lost on restart")
		return store, func() { _ = store.Close(context.Background()) }, nil
	}
	return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
}

func ProvideMessagesStore(store docstore.Store, logger *log.Logger) *data.MessagesStore {
	return data.NewMessagesStore(store, logger)
}

func ProvideJWTManager(cfg *config.Config) *auth.JWTManager {
	return auth.NewJWTManagerFromKeys(cfg.Auth.Keys, cfg.Auth.ActiveKID, cfg.Auth.TokenTTL)
}

// ProvideVerifier accepts the server's own tokens and, when enabled,
// Firebase ID tokens.
func ProvideVerifier(ctx context.Context, cfg *config.Config, app *firebase.App, tokens *auth.JWTManager) (auth.Verifier, error) {
	if !cfg.Firebase.AuthEnabled || app == nil {
		return tokens, nil
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create firebase auth client: %w", err)
	}
	return auth.ChainVerifier{tokens, auth.NewFirebaseVerifier(client)}, nil
}

// ProvideLimiter keeps a small burst to allow a couple of quick retries.
func ProvideLimiter(cfg *config.Config) (*middleware.LimiterStore, func()) {
	l := middleware.NewLimiterStore(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst, time.Minute)
	return l, l.Stop
}
