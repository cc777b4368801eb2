package main

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	chatv1 "github.com/PaulBabatuyi/messenger-core/api/chat/v1"
	"github.com/PaulBabatuyi/messenger-core/internal/auth"
)

// methods that don't require authentication
var publicMethods = map[string]bool{
	chatv1.ChatService_Register_FullMethodName: true,
	chatv1.ChatService_Login_FullMethodName:    true,
}

// isPublic also lets health checks and reflection through.
func isPublic(fullMethod string) bool {
	return publicMethods[fullMethod] ||
		strings.HasPrefix(fullMethod, "/grpc.health.v1.Health/") ||
		strings.HasPrefix(fullMethod, "/grpc.reflection.")
}

// authenticate verifies the bearer token in ctx and returns ctx carrying
// the caller's Principal.
func authenticate(ctx context.Context, v auth.Verifier) (context.Context, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing metadata")
	}
	authHeaders := md.Get("authorization")
	if len(authHeaders) == 0 {
		return nil, status.Error(codes.Unauthenticated, "missing authorization header")
	}

	token := strings.TrimSpace(strings.TrimPrefix(authHeaders[0], "Bearer"))
	if token == "" {
		return nil, status.Error(codes.Unauthenticated, "invalid token")
	}

	p, err := v.Verify(ctx, token)
	if err != nil {
		return nil, status.Errorf(codes.Unauthenticated, "unauthenticated: %v", err)
	}
	return auth.NewContext(ctx, p), nil
}

// authUnaryInterceptor enforces authentication for every method except the
// public ones (Register, Login).
func authUnaryInterceptor(v auth.Verifier) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if isPublic(info.FullMethod) {
			return handler(ctx, req)
		}
		ctx, err := authenticate(ctx, v)
		if err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

// authStreamInterceptor is the stream equivalent of authUnaryInterceptor.
func authStreamInterceptor(v auth.Verifier) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if isPublic(info.FullMethod) {
			return handler(srv, ss)
		}
		ctx, err := authenticate(ss.Context(), v)
		if err != nil {
			return err
		}
		return handler(srv, &serverStream{ServerStream: ss, ctx: ctx})
	}
}

type validator interface{ Validate() error }

// validateUnaryInterceptor rejects requests whose fields are invalid.
func validateUnaryInterceptor(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if v, ok := req.(validator); ok {
		if err := v.Validate(); err != nil {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
	}
	return handler(ctx, req)
}

// validateStreamInterceptor validates each message received on a stream.
func validateStreamInterceptor(srv any, ss grpc.ServerStream, _ *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
	return handler(srv, &validatingStream{ServerStream: ss})
}

type validatingStream struct {
	grpc.ServerStream
}

func (s *validatingStream) RecvMsg(m any) error {
	if err := s.ServerStream.RecvMsg(m); err != nil {
		return err
	}
	if v, ok := m.(validator); ok {
		if err := v.Validate(); err != nil {
			return status.Error(codes.InvalidArgument, err.Error())
		}
	}
	return nil
}

// loggingUnaryInterceptor logs method, duration and status code.
func loggingUnaryInterceptor(logger *log.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logCall(logger, info.FullMethod, time.Since(start), err)
		return resp, err
	}
}

// loggingStreamInterceptor logs a stream when it ends.
func loggingStreamInterceptor(logger *log.Logger) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()
		logger.Debug("stream opened", "method", info.FullMethod)
		err := handler(srv, ss)
		logCall(logger, info.FullMethod, time.Since(start), err)
		return err
	}
}

func logCall(logger *log.Logger, method string, d time.Duration, err error) {
	code := status.Code(err)
	switch {
	case err == nil:
		logger.Info("call completed", "method", method, "duration", d)
	case code == codes.Canceled || errors.Is(err, context.Canceled):
		logger.Debug("call cancelled", "method", method, "duration", d)
	case code == codes.Internal || code == codes.Unknown || code == codes.Unavailable:
		logger.Error("call failed", "method", method, "duration", d, "code", code, "err", err)
	default:
		logger.Warn("call rejected", "method", method, "duration", d, "code", code, "err", err)
	}
}

// serverStream wraps grpc.ServerStream to override Context()
type serverStream struct {
	grpc.ServerStream
	ctx context.Context
}

// Context returns the wrapped context (with the principal)
func (s *serverStream) Context() context.Context { return s.ctx }
