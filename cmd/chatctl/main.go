// Command chatctl is a terminal client for the chat service.
//
// Commands:
//
//	register   Create an account and sign in
//	login      Sign in with email and password
//	whoami     Print the signed-in profile
//	send       Send one message
//	chat       Live conversation: prints messages, sends each stdin line
//	inbox      Live list of recent conversations
//	logout     Forget the saved session
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := log.NewWithOptions(os.Stderr, log.Options{Prefix: "chatctl"})
	if os.Getenv("CHATCTL_DEBUG") != "" {
		logger.SetLevel(log.DebugLevel)
	}

	cmd, args := os.Args[1], os.Args[2:]
	var err error
	switch cmd {
	case "register":
		err = runRegister(ctx, args, logger)
	case "login":
		err = runLogin(ctx, args, logger)
	case "whoami":
		err = runWhoami(ctx, args, logger)
	case "send":
		err = runSend(ctx, args, logger)
	case "chat":
		err = runChat(ctx, args, logger)
	case "inbox":
		err = runInbox(ctx, args, logger)
	case "logout":
		err = runLogout(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		logger.Error(cmd+" failed", "err", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  chatctl <command> [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  register --email E --password P [--avatar URL]")
	fmt.Println("  login    --email E --password P")
	fmt.Println("  whoami")
	fmt.Println("  send     --to <user id|email> TEXT...")
	fmt.Println("  chat     --with <user id|email>")
	fmt.Println("  inbox")
	fmt.Println("  logout")
	fmt.Println()
	fmt.Println("Common options:")
	fmt.Println("  --addr      server address (default localhost:50051, env CHAT_ADDR)")
	fmt.Println("  --tls       use TLS; --ca FILE to trust a private CA")
	fmt.Println("  --session   session file (default <user config dir>/messenger/session.json)")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  CHAT_TOKEN      bearer token to use instead of the saved session")
	fmt.Println("  CHATCTL_DEBUG   enable debug logging")
}
