// Package tui is the interactive terminal app: a tasks view and a chat
// view over the shared client state. All protected views are gated on
// the session store; once the session is gone the app renders only the
// login hint, never stale task or chat data.
package tui

import (
	"context"
	"log/slog"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/basket/taskdeck/internal/chat"
	"github.com/basket/taskdeck/internal/session"
	"github.com/basket/taskdeck/internal/tasks"
)

// App carries the client components the TUI operates on.
type App struct {
	Sessions *session.Store
	Tasks    *tasks.Reconciler
	Chat     *chat.Client
	Logger   *slog.Logger

	// StartChat opens the app on the chat view instead of the task list.
	StartChat bool

	// Expiry, when set, delivers the gateway's unauthorized signal into
	// the running program.
	Expiry *ExpiryNotifier
}

// ExpiryNotifier bridges the gateway's navigation callback (which fires
// on an arbitrary goroutine) into the bubbletea update loop.
type ExpiryNotifier struct {
	mu   sync.Mutex
	send func()
}

// Notify signals session expiry. Safe to call before the program starts;
// the signal is then dropped, which is fine because the guard re-checks
// the session store on every render.
func (n *ExpiryNotifier) Notify() {
	n.mu.Lock()
	send := n.send
	n.mu.Unlock()
	if send != nil {
		send()
	}
}

func (n *ExpiryNotifier) bind(send func()) {
	n.mu.Lock()
	n.send = send
	n.mu.Unlock()
}

// Run starts the interactive app and blocks until it exits.
func Run(ctx context.Context, app App) error {
	defer bestEffortResetTTY()

	if app.Logger == nil {
		app.Logger = slog.Default()
	}

	m := newModel(ctx, app)
	p := tea.NewProgram(m, tea.WithAltScreen())
	if app.Expiry != nil {
		app.Expiry.bind(func() { p.Send(sessionExpiredMsg{}) })
	}

	_, err := p.Run()
	if err != nil && ctx.Err() != nil {
		// Renderer errors during context cancellation are a normal
		// shutdown path.
		return nil
	}
	return err
}
