package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	chatv1 "github.com/PaulBabatuyi/messenger-core/api/chat/v1"
	"github.com/PaulBabatuyi/messenger-core/internal/chat"
	"github.com/PaulBabatuyi/messenger-core/internal/data"
	"github.com/PaulBabatuyi/messenger-core/internal/normalize"
)

func runRegister(ctx context.Context, args []string, logger *log.Logger) error {
	fs := flag.NewFlagSet("register", flag.ExitOnError)
	opts := addCommon(fs)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	avatar := fs.String("avatar", "", "profile image URL")
	_ = fs.Parse(args)

	conn, err := opts.dial("")
	if err != nil {
		return err
	}
	defer conn.Close()

	resp, err := chatv1.NewChatServiceClient(conn).Register(ctx, &chatv1.RegisterRequest{
		Email:           *email,
		Password:        *password,
		ProfileImageURL: *avatar,
	})
	if err != nil {
		return err
	}
	return signIn(opts, *email, resp, logger)
}

func runLogin(ctx context.Context, args []string, logger *log.Logger) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	opts := addCommon(fs)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	_ = fs.Parse(args)

	conn, err := opts.dial("")
	if err != nil {
		return err
	}
	defer conn.Close()

	resp, err := chatv1.NewChatServiceClient(conn).Login(ctx, &chatv1.LoginRequest{
		Email:    *email,
		Password: *password,
	})
	if err != nil {
		return err
	}
	return signIn(opts, *email, resp, logger)
}

func signIn(opts *options, email string, resp *chatv1.AuthResponse, logger *log.Logger) error {
	s := &session{
		Addr:      opts.addr,
		Token:     resp.Token,
		UserID:    resp.UserID,
		Email:     normalize.Email(email),
		ExpiresAt: resp.ExpiresAt,
	}
	if err := saveSession(opts.sessionPath, s); err != nil {
		return err
	}
	logger.Debug("session saved", "path", opts.sessionPath)
	fmt.Printf("Signed in as %s (%s), token expires %s\n", s.Email, s.UserID, humanize.Time(s.ExpiresAt))
	return nil
}

func runWhoami(ctx context.Context, args []string, _ *log.Logger) error {
	fs := flag.NewFlagSet("whoami", flag.ExitOnError)
	opts := addCommon(fs)
	_ = fs.Parse(args)

	if s, err := loadSession(opts.sessionPath); err == nil && s.expired(time.Now()) && os.Getenv("CHAT_TOKEN") == "" {
		return fmt.Errorf("session expired %s; run chatctl login", humanize.Time(s.ExpiresAt))
	}

	client, done, err := opts.signedIn()
	if err != nil {
		return err
	}
	defer done()

	p, err := client.GetProfile(ctx, &chatv1.GetProfileRequest{})
	if err != nil {
		return err
	}
	fmt.Printf("%s\n  id:     %s\n  email:  %s\n", normalize.LocalPart(p.Email), p.UID, p.Email)
	if p.ProfileImageURL != "" {
		fmt.Printf("  avatar: %s\n", p.ProfileImageURL)
	}
	return nil
}

// composerFor resolves both ends of a conversation and builds a composer
// that sends through the service.
func composerFor(ctx context.Context, client chatv1.ChatServiceClient, who string, logger *log.Logger) (*chat.Composer, *data.User, *data.User, error) {
	if who == "" {
		return nil, nil, nil, errors.New("missing counterpart; pass a user id or email")
	}
	me, err := resolveUser(ctx, client, "")
	if err != nil {
		return nil, nil, nil, err
	}
	to, err := resolveUser(ctx, client, who)
	if err != nil {
		return nil, nil, nil, err
	}
	c := chat.NewComposer(remoteSender{client: client}, chat.StaticIdentity(me.UID), to, logger)
	return c, me, to, nil
}

func runSend(ctx context.Context, args []string, logger *log.Logger) error {
	fs := flag.NewFlagSet("send", flag.ExitOnError)
	opts := addCommon(fs)
	to := fs.String("to", "", "recipient user id or email")
	_ = fs.Parse(args)

	client, done, err := opts.signedIn()
	if err != nil {
		return err
	}
	defer done()

	composer, _, counterpart, err := composerFor(ctx, client, *to, logger)
	if err != nil {
		return err
	}
	composer.SetDraft(strings.Join(fs.Args(), " "))
	outcome := composer.Send(ctx)
	if msg := composer.Status(); msg != "" {
		if outcome.SenderSaved {
			// the message is in our mailbox; the rest was reported
			fmt.Fprintln(os.Stderr, msg)
			return nil
		}
		return errors.New(msg)
	}
	fmt.Printf("Sent to %s\n", counterpart.Email)
	return nil
}

func runChat(ctx context.Context, args []string, logger *log.Logger) error {
	fs := flag.NewFlagSet("chat", flag.ExitOnError)
	opts := addCommon(fs)
	with := fs.String("with", "", "counterpart user id or email")
	_ = fs.Parse(args)

	client, done, err := opts.signedIn()
	if err != nil {
		return err
	}
	defer done()

	composer, me, counterpart, err := composerFor(ctx, client, *with, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stream, err := client.WatchConversation(ctx, &chatv1.WatchConversationRequest{WithID: counterpart.UID})
	if err != nil {
		return err
	}
	fmt.Printf("Chatting with %s. Type a message and press enter; Ctrl-D to quit.\n", counterpart.Email)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for {
			ev, err := stream.Recv()
			if err != nil {
				if gctx.Err() != nil || errors.Is(err, io.EOF) {
					return nil
				}
				return err
			}
			fmt.Println(formatMessage(ev.Message, me, counterpart))
		}
	})
	g.Go(func() error {
		// stdin closing ends the chat
		defer cancel()
		return sendLines(gctx, readLines(os.Stdin), composer)
	})
	return g.Wait()
}

// readLines feeds stdin lines into a channel so that readers can also
// watch for cancellation. The channel is closed at EOF.
func readLines(r io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()
	return lines
}

func sendLines(ctx context.Context, lines <-chan string, composer *chat.Composer) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			composer.SetDraft(line)
			composer.Send(ctx)
			if msg := composer.Status(); msg != "" {
				fmt.Fprintln(os.Stderr, msg)
			}
		}
	}
}

func runInbox(ctx context.Context, args []string, _ *log.Logger) error {
	fs := flag.NewFlagSet("inbox", flag.ExitOnError)
	opts := addCommon(fs)
	once := fs.Bool("once", false, "print the first non-empty snapshot and exit")
	_ = fs.Parse(args)

	client, done, err := opts.signedIn()
	if err != nil {
		return err
	}
	defer done()

	stream, err := client.WatchInbox(ctx, &chatv1.WatchInboxRequest{})
	if err != nil {
		return err
	}
	for {
		snap, err := stream.Recv()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		fmt.Print(formatInbox(snap, time.Now()))
		if *once && len(snap.Entries) > 0 {
			return nil
		}
	}
}

func formatMessage(m *chatv1.Message, me, counterpart *data.User) string {
	if m == nil {
		return ""
	}
	who := normalize.LocalPart(counterpart.Email)
	if m.FromID == me.UID {
		who = "me"
	}
	return fmt.Sprintf("[%s] %s: %s", m.Timestamp.Local().Format("15:04"), who, m.Text)
}

const inboxPreviewLen = 40

func formatInbox(snap *chatv1.InboxSnapshot, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Inbox (%d)\n", len(snap.Entries))
	if len(snap.Entries) == 0 {
		b.WriteString("  no conversations yet\n")
		return b.String()
	}
	for _, e := range snap.Entries {
		ago := data.RecentMessage{Timestamp: e.Timestamp}.TimeAgo(now)
		fmt.Fprintf(&b, "  %-20s %-*s %s\n", e.Username, inboxPreviewLen, preview(e.Text, inboxPreviewLen), ago)
	}
	return b.String()
}

func preview(text string, n int) string {
	text = strings.Join(strings.Fields(text), " ")
	r := []rune(text)
	if len(r) <= n {
		return text
	}
	return string(r[:n-3]) + "..."
}

func runLogout(args []string) error {
	fs := flag.NewFlagSet("logout", flag.ExitOnError)
	opts := addCommon(fs)
	_ = fs.Parse(args)

	err := os.Remove(opts.sessionPath)
	if errors.Is(err, os.ErrNotExist) {
		fmt.Println("Not signed in")
		return nil
	}
	if err != nil {
		return fmt.Errorf("remove session: %w", err)
	}
	fmt.Println("Signed out")
	return nil
}
