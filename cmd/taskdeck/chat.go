package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/basket/taskdeck/internal/chat"
	"github.com/basket/taskdeck/internal/persistence"
)

// openChat builds the chat client with sqlite-backed history and either
// resumes the latest conversation or starts a fresh one. A history
// failure degrades to an in-memory transcript rather than blocking chat.
func openChat(ctx context.Context, e *env, fresh bool) (*persistence.Store, *chat.Client) {
	history, err := persistence.Open(e.cfg.HomeDir)
	if err != nil {
		e.logger.Warn("chat history unavailable", "error", err)
		history = nil
	}

	client := chat.NewClient(e.gw, e.sessions, history, e.logger)
	if fresh {
		client.StartNew()
		return history, client
	}
	if err := client.Resume(ctx); err != nil {
		e.logger.Warn("resume conversation failed, starting fresh", "error", err)
	}
	return history, client
}

func runChatCommand(ctx context.Context, args []string, interactive bool) int {
	fs := flag.NewFlagSet("chat", flag.ContinueOnError)
	fresh := fs.Bool("new", false, "start a new conversation")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	message := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if message == "" {
		if !interactive {
			fmt.Fprintln(os.Stderr, "usage: taskdeck chat [-new] <message>")
			return 2
		}
		return runAppCommand(ctx, true, *fresh)
	}

	e, err := buildEnv(ctx, false)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer e.close()

	history, client := openChat(ctx, e, *fresh)
	if history != nil {
		defer history.Close()
	}

	reply, err := client.Send(ctx, message)
	if err != nil {
		return fail(err)
	}
	fmt.Println(reply.Content)
	return 0
}
