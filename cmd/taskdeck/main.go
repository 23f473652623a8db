package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/basket/taskdeck/internal/auth"
	"github.com/basket/taskdeck/internal/config"
	"github.com/basket/taskdeck/internal/gateway"
	otelPkg "github.com/basket/taskdeck/internal/otel"
	"github.com/basket/taskdeck/internal/session"
	"github.com/basket/taskdeck/internal/storage"
	"github.com/basket/taskdeck/internal/tasks"
	"github.com/basket/taskdeck/internal/telemetry"
	"github.com/basket/taskdeck/internal/tui"
)

// Version is set via ldflags at build time: -ldflags "-X main.Version=..."
var Version = "v0.1-dev"

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage of %s:

INTERACTIVE MODE (default):
  %s                          Open the task + chat TUI (requires a session)

SUBCOMMANDS:
  %s login -email <email>     Log in (password prompted when not flagged)
  %s register -email <email> -name <name>
                              Create an account
  %s logout                   Clear the local session
  %s whoami                   Show the logged-in identity
  %s tasks <action>           Manage tasks
                              Actions: list, add, done, rm, edit
  %s stats                    Show the dashboard aggregates
  %s chat [-new] [message]    Message the assistant (TUI when no message)
  %s doctor                   Run client diagnostics

ENVIRONMENT VARIABLES:
  TASKDECK_HOME               Data directory (default: ~/.taskdeck)
  TASKDECK_BASE_URL           Backend API root (default: http://localhost:8000/api)
  TASKDECK_LOG_LEVEL          Log level (debug, info, warn, error)
  TASKDECK_NO_TUI             Set to 1 to disable the TUI

EXAMPLES:
  Log in:                     %s login -email you@example.com
  Add a task:                 %s tasks add "Buy milk" -desc "2 liters"
  Active tasks, oldest first: %s tasks list -filter active -sort oldest
  Ask the assistant:          %s chat "what is still pending?"
`, os.Args[0], os.Args[0], os.Args[0], os.Args[0], os.Args[0], os.Args[0],
		os.Args[0], os.Args[0], os.Args[0], os.Args[0],
		os.Args[0], os.Args[0], os.Args[0], os.Args[0])
}

func main() {
	interactive := isatty.IsTerminal(os.Stdout.Fd()) && os.Getenv("TASKDECK_NO_TUI") == ""
	flag.Usage = printUsage
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if args := flag.Args(); len(args) > 0 {
		switch strings.ToLower(strings.TrimSpace(args[0])) {
		case "help", "-h", "--help":
			printUsage()
			os.Exit(0)
		case "login":
			os.Exit(runLoginCommand(ctx, args[1:]))
		case "register":
			os.Exit(runRegisterCommand(ctx, args[1:]))
		case "logout":
			os.Exit(runLogoutCommand(ctx, args[1:]))
		case "whoami":
			os.Exit(runWhoamiCommand(ctx, args[1:]))
		case "tasks":
			os.Exit(runTasksCommand(ctx, args[1:]))
		case "stats":
			os.Exit(runStatsCommand(ctx, args[1:]))
		case "chat":
			os.Exit(runChatCommand(ctx, args[1:], interactive))
		case "doctor":
			os.Exit(runDoctorCommand(ctx, args[1:]))
		default:
			fmt.Fprintf(os.Stderr, "unknown command %q\n\n", args[0])
			printUsage()
			os.Exit(2)
		}
	}

	if !interactive {
		printUsage()
		os.Exit(2)
	}
	os.Exit(runAppCommand(ctx, false, false))
}

// env is the shared wiring every command needs: config, logging,
// storage-backed session, and the gateway stack on top of it.
type env struct {
	cfg      config.Config
	logger   *slog.Logger
	sessions *session.Store
	gw       *gateway.Client
	tasks    *tasks.Reconciler
	auth     *auth.Client
	expiry   *tui.ExpiryNotifier

	closers []func()
}

func (e *env) close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
}

// buildEnv wires the client stack. Quiet logging (file-only) keeps the
// terminal clean while the TUI owns it.
func buildEnv(ctx context.Context, quiet bool) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, logCloser, err := telemetry.NewLogger(cfg.HomeDir, cfg.LogLevel, quiet)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	slog.SetDefault(logger)

	e := &env{cfg: cfg, logger: logger}
	e.closers = append(e.closers, func() { _ = logCloser.Close() })

	provider, err := otelPkg.Init(ctx, cfg.OTel)
	if err != nil {
		e.close()
		return nil, fmt.Errorf("init telemetry: %w", err)
	}
	e.closers = append(e.closers, func() { _ = provider.Shutdown(context.Background()) })

	st, err := storage.Open(cfg.HomeDir)
	if err != nil {
		e.close()
		return nil, fmt.Errorf("open local storage: %w", err)
	}
	e.sessions = session.NewStore(st, logger)

	// External session changes (another taskdeck process logging in or
	// out) invalidate this process's cached session state.
	watcher := storage.NewWatcher(st, logger)
	if err := watcher.Start(ctx); err != nil {
		logger.Warn("storage watch unavailable", "error", err)
	} else {
		e.sessions.ConsumeWatch(ctx, watcher.Events())
	}

	timeout := time.Duration(cfg.RequestTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	e.expiry = &tui.ExpiryNotifier{}
	e.gw = gateway.New(cfg.BaseURL, e.sessions,
		gateway.WithHTTPClient(&http.Client{Timeout: timeout}),
		gateway.WithLogger(logger),
		gateway.WithTracer(provider.Tracer),
		gateway.WithMeter(provider.Meter),
		gateway.WithUnauthorizedSignal(e.expiry.Notify),
	)
	e.tasks = tasks.NewReconciler(e.gw)
	e.auth = auth.NewClient(e.gw, e.sessions)
	return e, nil
}

// runAppCommand starts the interactive TUI.
func runAppCommand(ctx context.Context, startChat, freshChat bool) int {
	e, err := buildEnv(ctx, true)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer e.close()

	if !e.sessions.IsAuthenticated() {
		fmt.Fprintln(os.Stderr, "You are not logged in. Run `taskdeck login -email you@example.com` first.")
		return 1
	}

	history, chatClient := openChat(ctx, e, freshChat)
	if history != nil {
		defer history.Close()
	}

	app := tui.App{
		Sessions:  e.sessions,
		Tasks:     e.tasks,
		Chat:      chatClient,
		Logger:    e.logger,
		Expiry:    e.expiry,
		StartChat: startChat,
	}
	if err := tui.Run(ctx, app); err != nil {
		e.logger.Error("tui exited with error", "error", err)
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

// fail prints a command error the way every one-shot command does: the
// display-ready message on stderr, non-zero exit.
func fail(err error) int {
	fmt.Fprintln(os.Stderr, "Error:", gatewayMessage(err))
	return 1
}

// gatewayMessage prefers the RequestError's display message over the
// wrapped chain.
func gatewayMessage(err error) string {
	var reqErr *gateway.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.Message
	}
	return err.Error()
}

func readLine(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
