package main

import (
	"context"
	"errors"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	chatv1 "github.com/PaulBabatuyi/messenger-core/api/chat/v1"
	"github.com/PaulBabatuyi/messenger-core/internal/auth"
	"github.com/PaulBabatuyi/messenger-core/internal/chat"
	"github.com/PaulBabatuyi/messenger-core/internal/data"
)

// Register handles user registration: hashes password, stores user, returns JWT token
func (s *Server) Register(ctx context.Context, req *chatv1.RegisterRequest) (*chatv1.AuthResponse, error) {
	hashed, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to hash password: %v", err)
	}

	user, err := s.users.CreateUser(ctx, req.Email, hashed, req.ProfileImageURL)
	if errors.Is(err, data.ErrUserExists) {
		return nil, status.Error(codes.AlreadyExists, "user already exists")
	}
	if err != nil {
		s.log.Error("create user failed", "err", err)
		return nil, status.Error(codes.Internal, "failed to create user")
	}

	s.log.Info("user registered", "uid", user.UID)
	return s.issueToken(user.UID, user.Email)
}

// Login authenticates a user and returns a JWT token
func (s *Server) Login(ctx context.Context, req *chatv1.LoginRequest) (*chatv1.AuthResponse, error) {
	cred, err := s.users.GetCredential(ctx, req.Email)
	if errors.Is(err, data.ErrUserNotFound) {
		return nil, status.Error(codes.NotFound, "user not found")
	}
	if err != nil {
		s.log.Error("read credential failed", "err", err)
		return nil, status.Error(codes.Internal, "failed to read user")
	}

	if err := auth.CheckPassword(cred.Password, req.Password); err != nil {
		return nil, status.Error(codes.PermissionDenied, "invalid credentials")
	}
	return s.issueToken(cred.UID, cred.Email)
}

func (s *Server) issueToken(uid, email string) (*chatv1.AuthResponse, error) {
	token, expiresAt, err := s.tokens.GenerateToken(uid, email)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to generate token: %v", err)
	}
	return &chatv1.AuthResponse{Token: token, UserID: uid, ExpiresAt: expiresAt}, nil
}

// GetProfile reads a profile; an empty user id reads the caller's own.
func (s *Server) GetProfile(ctx context.Context, req *chatv1.GetProfileRequest) (*chatv1.Profile, error) {
	p, err := s.principal(ctx)
	if err != nil {
		return nil, err
	}
	uid := req.UserID
	if uid == "" {
		uid = p.UserID
	}
	user, err := s.users.GetUserByID(ctx, uid)
	if err != nil {
		return nil, profileError(err)
	}
	return toProfile(user), nil
}

// GetProfileByEmail finds the profile registered under an email.
func (s *Server) GetProfileByEmail(ctx context.Context, req *chatv1.GetProfileByEmailRequest) (*chatv1.Profile, error) {
	if _, err := s.principal(ctx); err != nil {
		return nil, err
	}
	user, err := s.users.GetUserByEmail(ctx, req.Email)
	if err != nil {
		return nil, profileError(err)
	}
	return toProfile(user), nil
}

func profileError(err error) error {
	switch {
	case errors.Is(err, data.ErrUserNotFound):
		return status.Error(codes.NotFound, "user not found")
	case errors.Is(err, data.ErrInvalidID):
		return status.Error(codes.InvalidArgument, err.Error())
	}
	return status.Errorf(codes.Internal, "failed to read user: %v", err)
}

// SendMessage writes both copies of a message and the caller's recent
// message. A failed sender copy is an error; a failed recipient copy or
// recent message is reported in the response flags.
func (s *Server) SendMessage(ctx context.Context, req *chatv1.SendMessageRequest) (*chatv1.SendMessageResponse, error) {
	p, err := s.principal(ctx)
	if err != nil {
		return nil, err
	}
	s.ensureProfile(ctx, p)

	to, err := s.users.GetUserByID(ctx, req.ToID)
	if errors.Is(err, data.ErrUserNotFound) {
		return nil, status.Error(codes.FailedPrecondition, "counterpart profile not found")
	}
	if err != nil {
		return nil, profileError(err)
	}

	err = s.msgs.Send(ctx, p.UserID, to, req.Text)
	outcome := data.OutcomeOf(err)
	switch {
	case err == nil:
	case errors.Is(err, data.ErrMissingCounterpart):
		return nil, status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, data.ErrInvalidID):
		return nil, status.Error(codes.InvalidArgument, err.Error())
	case !outcome.SenderSaved:
		return nil, status.Error(codes.Internal, err.Error())
	}

	resp := &chatv1.SendMessageResponse{
		SenderSaved:    outcome.SenderSaved,
		RecipientSaved: outcome.RecipientSaved,
		SummarySaved:   outcome.SummarySaved,
	}
	if err != nil {
		resp.Status = err.Error()
	}
	return resp, nil
}

// WatchConversation streams the caller's mailbox with another user: the
// full history first, then each new message as it is delivered.
func (s *Server) WatchConversation(req *chatv1.WatchConversationRequest, stream grpc.ServerStreamingServer[chatv1.ConversationEvent]) error {
	p, err := s.principal(stream.Context())
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(stream.Context())
	defer cancel()
	id := s.hub.Register(p.UserID, cancel)
	defer s.hub.Unregister(p.UserID, id)

	out := newOutbox[*chatv1.ConversationEvent]()
	conv := chat.NewConversationStream(s.store, s.log)
	conv.OnAppend(func(msg data.Message, version uint64) {
		out.push(&chatv1.ConversationEvent{Message: toMessage(msg), Version: version})
	})
	conv.OnError(out.fail)

	if err := conv.Open(ctx, p.UserID, req.WithID); err != nil {
		return status.Error(codes.Unavailable, conv.Status())
	}
	defer conv.Close()

	for {
		select {
		case <-out.ready:
			events, failed := out.drain()
			for _, ev := range events {
				if err := stream.Send(ev); err != nil {
					return err
				}
			}
			if failed != nil {
				return status.Error(codes.Unavailable, conv.Status())
			}
		case <-ctx.Done():
			return s.streamEnded(stream.Context())
		}
	}
}

// WatchInbox streams the caller's whole inbox after every change.
func (s *Server) WatchInbox(_ *chatv1.WatchInboxRequest, stream grpc.ServerStreamingServer[chatv1.InboxSnapshot]) error {
	p, err := s.principal(stream.Context())
	if err != nil {
		return err
	}
	s.ensureProfile(stream.Context(), p)

	ctx, cancel := context.WithCancel(stream.Context())
	defer cancel()
	id := s.hub.Register(p.UserID, cancel)
	defer s.hub.Unregister(p.UserID, id)

	// Every signal sends the inbox as it is when the signal is handled, so
	// signals can be coalesced. The first one sends the initial inbox even
	// when it is empty.
	out := newOutbox[struct{}]()
	out.push(struct{}{})
	inbox := chat.NewInboxStream(s.store, s.log)
	inbox.OnChange(func([]data.RecentMessage) { out.push(struct{}{}) })
	inbox.OnError(out.fail)

	if err := inbox.Open(ctx, p.UserID); err != nil {
		return status.Error(codes.Unavailable, inbox.Status())
	}
	defer inbox.Close()

	for {
		select {
		case <-out.ready:
			_, failed := out.drain()
			if failed != nil {
				return status.Error(codes.Unavailable, inbox.Status())
			}
			if err := stream.Send(toSnapshot(inbox.Entries())); err != nil {
				return err
			}
		case <-ctx.Done():
			return s.streamEnded(stream.Context())
		}
	}
}

// streamEnded maps the end of a watch to a status: the client's own
// cancellation or deadline, or a server shutdown.
func (s *Server) streamEnded(clientCtx context.Context) error {
	if err := clientCtx.Err(); err != nil {
		return status.FromContextError(err).Err()
	}
	return status.Error(codes.Unavailable, "server is shutting down")
}

func (s *Server) principal(ctx context.Context) (*auth.Principal, error) {
	p, ok := auth.FromContext(ctx)
	if !ok || p.UserID == "" {
		return nil, status.Error(codes.Unauthenticated, "missing auth claims")
	}
	return p, nil
}

// ensureProfile writes users/{uid} for callers authenticated by a hosted
// provider, who never went through Register.
func (s *Server) ensureProfile(ctx context.Context, p *auth.Principal) {
	if p.Provider != auth.ProviderFirebase {
		return
	}
	if _, done := s.profiles.Load(p.UserID); done {
		return
	}
	if _, err := s.users.GetUserByID(ctx, p.UserID); err == nil {
		s.profiles.Store(p.UserID, struct{}{})
		return
	}
	if err := s.users.SaveUser(ctx, &data.User{UID: p.UserID, Email: p.Email}); err != nil {
		s.log.Warn("save hosted profile failed", "uid", p.UserID, "err", err)
		return
	}
	s.profiles.Store(p.UserID, struct{}{})
}

// outbox hands items from store delivery goroutines to a stream handler
// without blocking the store.
type outbox[T any] struct {
	mu    sync.Mutex
	items []T
	err   error
	ready chan struct{}
}

func newOutbox[T any]() *outbox[T] {
	return &outbox[T]{ready: make(chan struct{}, 1)}
}

func (o *outbox[T]) push(item T) {
	o.mu.Lock()
	o.items = append(o.items, item)
	o.mu.Unlock()
	o.signal()
}

func (o *outbox[T]) fail(err error) {
	o.mu.Lock()
	if o.err == nil {
		o.err = err
	}
	o.mu.Unlock()
	o.signal()
}

func (o *outbox[T]) signal() {
	select {
	case o.ready <- struct{}{}:
	default:
	}
}

func (o *outbox[T]) drain() ([]T, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	items := o.items
	o.items = nil
	return items, o.err
}

func toProfile(u *data.User) *chatv1.Profile {
	return &chatv1.Profile{UID: u.UID, Email: u.Email, ProfileImageURL: u.ProfileImageURL}
}

func toMessage(m data.Message) *chatv1.Message {
	return &chatv1.Message{ID: m.ID, FromID: m.FromID, ToID: m.ToID, Text: m.Text, Timestamp: m.Timestamp}
}

func toSnapshot(entries []data.RecentMessage) *chatv1.InboxSnapshot {
	out := &chatv1.InboxSnapshot{Entries: make([]*chatv1.RecentMessage, 0, len(entries))}
	for _, e := range entries {
		out.Entries = append(out.Entries, &chatv1.RecentMessage{
			CounterpartID:   e.ID,
			Text:            e.Text,
			FromID:          e.FromID,
			ToID:            e.ToID,
			Email:           e.Email,
			Username:        e.Username(),
			ProfileImageURL: e.ProfileImageURL,
			Timestamp:       e.Timestamp,
		})
	}
	return out
}
