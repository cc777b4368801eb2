package main

import (
	"context"
	"crypto/tls"
	"flag"
	"fmt"
	"os"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	chatv1 "github.com/PaulBabatuyi/messenger-core/api/chat/v1"
	"github.com/PaulBabatuyi/messenger-core/internal/data"
)

// options are the flags every command shares.
type options struct {
	addr        string
	tls         bool
	ca          string
	sessionPath string
}

func addCommon(fs *flag.FlagSet) *options {
	o := &options{}
	addr := os.Getenv("CHAT_ADDR")
	if addr == "" {
		addr = "localhost:50051"
	}
	fs.StringVar(&o.addr, "addr", addr, "server address")
	fs.BoolVar(&o.tls, "tls", false, "use TLS")
	fs.StringVar(&o.ca, "ca", "", "CA certificate file (implies --tls)")
	fs.StringVar(&o.sessionPath, "session", defaultSessionPath(), "session file")
	return o
}

func (o *options) secure() bool { return o.tls || o.ca != "" }

func (o *options) transport() (credentials.TransportCredentials, error) {
	switch {
	case o.ca != "":
		return credentials.NewClientTLSFromFile(o.ca, "")
	case o.tls:
		return credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12}), nil
	}
	return insecure.NewCredentials(), nil
}

// dial connects to the server; a non-empty token is sent with every call.
func (o *options) dial(token string) (*grpc.ClientConn, error) {
	creds, err := o.transport()
	if err != nil {
		return nil, fmt.Errorf("load TLS credentials: %w", err)
	}
	opts := []grpc.DialOption{grpc.WithTransportCredentials(creds)}
	if token != "" {
		opts = append(opts, grpc.WithPerRPCCredentials(tokenCredentials{token: token, secure: o.secure()}))
	}
	return grpc.NewClient(o.addr, opts...)
}

// signedIn dials with CHAT_TOKEN or the saved session.
func (o *options) signedIn() (chatv1.ChatServiceClient, func(), error) {
	token := os.Getenv("CHAT_TOKEN")
	if token == "" {
		s, err := loadSession(o.sessionPath)
		if err != nil {
			return nil, nil, err
		}
		token = s.Token
	}
	conn, err := o.dial(token)
	if err != nil {
		return nil, nil, err
	}
	return chatv1.NewChatServiceClient(conn), func() { _ = conn.Close() }, nil
}

// resolveUser accepts a user id or an email.
func resolveUser(ctx context.Context, client chatv1.ChatServiceClient, who string) (*data.User, error) {
	var (
		p   *chatv1.Profile
		err error
	)
	if strings.Contains(who, "@") {
		p, err = client.GetProfileByEmail(ctx, &chatv1.GetProfileByEmailRequest{Email: who})
	} else {
		p, err = client.GetProfile(ctx, &chatv1.GetProfileRequest{UserID: who})
	}
	if err != nil {
		return nil, fmt.Errorf("look up %s: %w", who, err)
	}
	return &data.User{UID: p.UID, Email: p.Email, ProfileImageURL: p.ProfileImageURL}, nil
}

// remoteSender sends through the chat service. The server takes the sender
// from the call's token, so fromID is not transmitted.
type remoteSender struct {
	client chatv1.ChatServiceClient
}

func (r remoteSender) Send(ctx context.Context, _ string, to *data.User, text string) error {
	if to == nil || to.UID == "" {
		return data.ErrMissingCounterpart
	}
	resp, err := r.client.SendMessage(ctx, &chatv1.SendMessageRequest{ToID: to.UID, Text: text})
	if status.Code(err) == codes.Internal {
		// The server does not report the recipient copy when the sender copy
		// fails; an unknown result counts as not saved.
		return &remoteSendError{
			msg:  status.Convert(err).Message(),
			legs: &data.SendError{Sender: data.ErrWriteFailed, Recipient: data.ErrWriteFailed},
		}
	}
	if err != nil {
		return err
	}
	return sendErrorFrom(resp)
}

// remoteSendError carries the server's description of a failed send while
// still unwrapping to the failed legs, so data.OutcomeOf reads the same
// flags the server reported.
type remoteSendError struct {
	msg  string
	legs *data.SendError
}

func (e *remoteSendError) Error() string { return e.msg }

func (e *remoteSendError) Unwrap() error { return e.legs }

func sendErrorFrom(resp *chatv1.SendMessageResponse) error {
	if resp.SenderSaved && resp.RecipientSaved && resp.SummarySaved {
		return nil
	}
	legs := &data.SendError{}
	if !resp.SenderSaved {
		legs.Sender = data.ErrWriteFailed
	}
	if !resp.RecipientSaved {
		legs.Recipient = data.ErrWriteFailed
	}
	if resp.SenderSaved && !resp.SummarySaved {
		legs.Summary = data.ErrWriteFailed
	}
	msg := resp.Status
	if msg == "" {
		msg = legs.Error()
	}
	return &remoteSendError{msg: msg, legs: legs}
}
