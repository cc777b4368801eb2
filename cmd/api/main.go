package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"

	chatv1 "github.com/PaulBabatuyi/messenger-core/api/chat/v1"
	"github.com/PaulBabatuyi/messenger-core/internal/config"
	"github.com/PaulBabatuyi/messenger-core/internal/di"
	"github.com/PaulBabatuyi/messenger-core/internal/middleware"
)

func main() {
	if err := run(); err != nil {
		log.Fatal("server exited", "err", err)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	logger := di.ProvideLogger(cfg)

	// Graceful shutdown on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, cleanup, err := di.InitializeApplication(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer cleanup()

	hub := NewWatchHub()
	grpcServer, hs, err := newGRPCServer(app, hub)
	if err != nil {
		return err
	}

	listenAddr := ":" + cfg.Server.Port
	lis, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	httpServer := &http.Server{
		Addr:              ":" + cfg.Server.HTTPPort,
		Handler:           setupRouter(app.Store, hub, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("gRPC server listening", "addr", listenAddr, "tls", cfg.TLSEnabled(), "store", cfg.Store.Backend)
		return grpcServer.Serve(lis)
	})
	g.Go(func() error {
		logger.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		hs.Shutdown()
		// watch streams never end on their own
		n := hub.CloseAll()
		logger.Debug("watch streams closed", "count", n)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("HTTP server forced to shutdown", "err", err)
		}
		grpcServer.GracefulStop()
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}

// newGRPCServer assembles server options and registers the services.
func newGRPCServer(app *di.Application, hub *WatchHub) (*grpc.Server, *health.Server, error) {
	cfg := app.Config
	var serverOpts []grpc.ServerOption

	// If TLS certs are configured, create server credentials and require TLS
	if cfg.TLSEnabled() {
		creds, err := credentials.NewServerTLSFromFile(cfg.Server.TLSCert, cfg.Server.TLSKey)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load TLS certs: %w", err)
		}
		serverOpts = append(serverOpts, grpc.Creds(creds))
	} else if cfg.Server.RequireTLS {
		return nil, nil, errors.New("REQUIRE_TLS is true but TLS_CERT/TLS_KEY are not configured")
	}

	limitedUnary := map[string]bool{
		chatv1.ChatService_Register_FullMethodName:    true,
		chatv1.ChatService_Login_FullMethodName:       true,
		chatv1.ChatService_SendMessage_FullMethodName: true,
	}
	limitedStreams := map[string]bool{
		chatv1.ChatService_WatchConversation_FullMethodName: true,
		chatv1.ChatService_WatchInbox_FullMethodName:        true,
	}

	// logging -> validation -> auth -> rate limiter, so the limiter can key by user
	serverOpts = append(serverOpts,
		grpc.ChainUnaryInterceptor(
			loggingUnaryInterceptor(app.Logger),
			validateUnaryInterceptor,
			authUnaryInterceptor(app.Verifier),
			middleware.RateLimitUnaryInterceptor(app.Limiter, limitedUnary, app.Logger),
		),
		grpc.ChainStreamInterceptor(
			loggingStreamInterceptor(app.Logger),
			authStreamInterceptor(app.Verifier),
			middleware.RateLimitStreamInterceptor(app.Limiter, limitedStreams, app.Logger),
			validateStreamInterceptor,
		),
	)

	grpcServer := grpc.NewServer(serverOpts...)
	srv := newServer(app.Users, app.Messages, app.Store, app.Tokens, hub, app.Logger)
	hs := registerService(grpcServer, srv)
	return grpcServer, hs, nil
}
