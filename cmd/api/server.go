package main

import (
	"sync"

	"github.com/charmbracelet/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	chatv1 "github.com/PaulBabatuyi/messenger-core/api/chat/v1"
	"github.com/PaulBabatuyi/messenger-core/internal/auth"
	"github.com/PaulBabatuyi/messenger-core/internal/data"
	"github.com/PaulBabatuyi/messenger-core/internal/docstore"
)

// Server implements the chat service and contains references to stores and auth logic.
type Server struct {
	chatv1.UnimplementedChatServiceServer

	users  *data.UsersStore
	msgs   *data.MessagesStore
	store  docstore.Store
	tokens *auth.JWTManager
	hub    *WatchHub
	log    *log.Logger

	// uids of hosted-provider users whose profile was written by this process
	profiles sync.Map
}

// newServer returns a ready-to-use Server wired with stores and auth manager.
func newServer(users *data.UsersStore, msgs *data.MessagesStore, store docstore.Store,
	tokens *auth.JWTManager, hub *WatchHub, logger *log.Logger) *Server {
	return &Server{
		users:  users,
		msgs:   msgs,
		store:  store,
		tokens: tokens,
		hub:    hub,
		log:    logger.WithPrefix("chat"),
	}
}

// registerService registers the ChatService, health and reflection on s.
func registerService(s *grpc.Server, srv *Server) *health.Server {
	chatv1.RegisterChatServiceServer(s, srv)

	hs := health.NewServer()
	hs.SetServingStatus(chatv1.ChatService_ServiceDesc.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, hs)

	reflection.Register(s)
	return hs
}
