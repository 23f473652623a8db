package tui

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/basket/taskdeck/internal/chat"
	"github.com/basket/taskdeck/internal/gateway"
	"github.com/basket/taskdeck/internal/session"
	"github.com/basket/taskdeck/internal/storage"
	"github.com/basket/taskdeck/internal/tasks"
)

type fakeBackend struct {
	mu    sync.Mutex
	tasks []map[string]any
}

func (b *fakeBackend) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/tasks":
			json.NewEncoder(w).Encode(b.tasks)
		case r.Method == http.MethodDelete:
			id := strings.TrimPrefix(r.URL.Path, "/tasks/")
			for i, t := range b.tasks {
				if t["id"] == id {
					b.tasks = append(b.tasks[:i], b.tasks[i+1:]...)
					break
				}
			}
			json.NewEncoder(w).Encode(map[string]any{"success": true, "message": "deleted"})
		default:
			http.NotFound(w, r)
		}
	})
}

func seededBackend() *fakeBackend {
	return &fakeBackend{tasks: []map[string]any{
		{"id": "t1", "title": "write report", "completed": false, "createdAt": "2026-03-01T09:00:00Z", "updatedAt": "2026-03-01T09:00:00Z", "userId": "u1"},
		{"id": "t2", "title": "review notes", "completed": true, "createdAt": "2026-03-02T09:00:00Z", "updatedAt": "2026-03-02T09:00:00Z", "userId": "u1"},
	}}
}

func newTestApp(t *testing.T, backend *fakeBackend, loggedIn bool) App {
	t.Helper()
	st, err := storage.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}
	sessions := session.NewStore(st, nil)
	if loggedIn {
		if err := sessions.Login(session.Identity{ID: "u1", Email: "u1@example.com"}, "tok"); err != nil {
			t.Fatalf("login: %v", err)
		}
	}

	srv := httptest.NewServer(backend.handler())
	t.Cleanup(srv.Close)
	gw := gateway.New(srv.URL, sessions)

	return App{
		Sessions: sessions,
		Tasks:    tasks.NewReconciler(gw),
		Chat:     chat.NewClient(gw, sessions, nil, nil),
	}
}

func loadedModel(t *testing.T, app App) model {
	t.Helper()
	m := newModel(context.Background(), app)
	if _, err := app.Tasks.List(context.Background()); err != nil {
		t.Fatalf("seed list: %v", err)
	}
	m.reproject()
	return m
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
}

func update(t *testing.T, m model, msg tea.Msg) (model, tea.Cmd) {
	t.Helper()
	updated, cmd := m.Update(msg)
	next, ok := updated.(model)
	if !ok {
		t.Fatalf("update returned %T", updated)
	}
	return next, cmd
}

func TestView_UnauthenticatedShowsOnlyLoginHint(t *testing.T) {
	app := newTestApp(t, seededBackend(), false)
	m := newModel(context.Background(), app)

	view := m.View()
	if !strings.Contains(view, "not logged in") {
		t.Fatalf("missing login hint:\n%s", view)
	}
	if strings.Contains(view, "write report") || strings.Contains(view, "filter:") {
		t.Fatalf("protected content leaked into unauthenticated view:\n%s", view)
	}
}

func TestSessionExpiry_SwitchesToLoginHint(t *testing.T) {
	app := newTestApp(t, seededBackend(), true)
	m := loadedModel(t, app)

	if !strings.Contains(m.View(), "write report") {
		t.Fatalf("expected task list while logged in:\n%s", m.View())
	}

	m, _ = update(t, m, sessionExpiredMsg{})
	view := m.View()
	if !strings.Contains(view, "not logged in") {
		t.Fatalf("expected login hint after expiry:\n%s", view)
	}
	if strings.Contains(view, "write report") {
		t.Fatalf("task content rendered after expiry:\n%s", view)
	}
}

func TestDelete_RequiresConfirmation(t *testing.T) {
	backend := seededBackend()
	app := newTestApp(t, backend, true)
	m := loadedModel(t, app)

	m, cmd := update(t, m, key("d"))
	if cmd != nil {
		t.Fatal("pressing d must not delete before confirmation")
	}
	if m.pendingDelete == "" {
		t.Fatal("d did not arm the confirmation modal")
	}
	if !strings.Contains(m.View(), "delete") {
		t.Fatalf("confirmation prompt missing:\n%s", m.View())
	}

	// Declining leaves everything in place.
	m, cmd = update(t, m, key("n"))
	if cmd != nil || m.pendingDelete != "" {
		t.Fatal("n must cancel the pending delete without a command")
	}
	if app.Tasks.Len() != 2 {
		t.Fatalf("collection changed on declined delete: %d tasks", app.Tasks.Len())
	}

	// Confirming issues the delete and the collection shrinks.
	m, _ = update(t, m, key("d"))
	target := m.pendingDelete
	m, cmd = update(t, m, key("y"))
	if cmd == nil {
		t.Fatal("y must produce the delete command")
	}
	msg := cmd()
	m, _ = update(t, m, msg)
	if app.Tasks.Len() != 1 {
		t.Fatalf("got %d tasks after confirmed delete, want 1", app.Tasks.Len())
	}
	if _, still := app.Tasks.Get(target); still {
		t.Fatalf("task %s survived a confirmed delete", target)
	}
}

func TestFilterKey_CyclesStates(t *testing.T) {
	app := newTestApp(t, seededBackend(), true)
	m := loadedModel(t, app)

	if len(m.rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(m.rows))
	}

	m, _ = update(t, m, key("f"))
	if m.filter != tasks.FilterActive || len(m.rows) != 1 || m.rows[0].ID != "t1" {
		t.Fatalf("active filter: filter=%s rows=%+v", m.filter, m.rows)
	}
	m, _ = update(t, m, key("f"))
	if m.filter != tasks.FilterCompleted || len(m.rows) != 1 || m.rows[0].ID != "t2" {
		t.Fatalf("completed filter: filter=%s rows=%+v", m.filter, m.rows)
	}
	m, _ = update(t, m, key("f"))
	if m.filter != tasks.FilterAll || len(m.rows) != 2 {
		t.Fatalf("filter did not cycle back to all: %s", m.filter)
	}
}

func TestSortKey_TogglesOrder(t *testing.T) {
	app := newTestApp(t, seededBackend(), true)
	m := loadedModel(t, app)

	if m.rows[0].ID != "t2" {
		t.Fatalf("newest-first expected t2 on top, got %s", m.rows[0].ID)
	}
	m, _ = update(t, m, key("s"))
	if m.sortBy != tasks.SortOldest || m.rows[0].ID != "t1" {
		t.Fatalf("oldest-first expected t1 on top, got %s (sort %s)", m.rows[0].ID, m.sortBy)
	}
}

func TestChatEnter_IgnoredWhileWaiting(t *testing.T) {
	app := newTestApp(t, seededBackend(), true)
	m := loadedModel(t, app)
	m.screen = screenChat
	m.waiting = true
	m.chatInput.SetValue("queued message")

	m, cmd := update(t, m, key("enter"))
	if cmd != nil {
		t.Fatal("enter while waiting must not send")
	}
	if m.chatInput.Value() != "queued message" {
		t.Fatalf("draft lost: %q", m.chatInput.Value())
	}
}

func TestHumanError_InnermostMessage(t *testing.T) {
	err := errors.New("gateway: send request: connection refused")
	if got := humanError(err); got != "Connection refused" {
		t.Fatalf("humanError = %q", got)
	}
	if got := humanError(errors.New("boom")); got != "boom" {
		t.Fatalf("humanError = %q", got)
	}
	if got := humanError(nil); got != "" {
		t.Fatalf("humanError(nil) = %q", got)
	}
}
