package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/basket/taskdeck/internal/gateway"
	"github.com/basket/taskdeck/internal/persistence"
	"github.com/basket/taskdeck/internal/session"
	"github.com/basket/taskdeck/internal/storage"
)

func newSession(t *testing.T) *session.Store {
	t.Helper()
	st, err := storage.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}
	sessions := session.NewStore(st, nil)
	if err := sessions.Login(session.Identity{ID: "u1", Email: "u1@example.com"}, "tok-1"); err != nil {
		t.Fatalf("login: %v", err)
	}
	return sessions
}

// assistantBackend answers POST /u1/chat, echoing the conversation id it
// was given (or assigning 7 on the first message).
type assistantBackend struct {
	mu       sync.Mutex
	requests []request
	delay    time.Duration
	fail     bool
}

func (b *assistantBackend) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		b.mu.Lock()
		b.requests = append(b.requests, req)
		delay, fail := b.delay, b.fail
		b.mu.Unlock()

		time.Sleep(delay)
		if fail {
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, `{"detail": "assistant unavailable"}`)
			return
		}
		id := req.ConversationID
		if id == 0 {
			id = 7
		}
		json.NewEncoder(w).Encode(response{
			ConversationID: id,
			Response:       "echo: " + req.Message,
		})
	})
}

func newChatClient(t *testing.T, backend *assistantBackend, history *persistence.Store) *Client {
	t.Helper()
	srv := httptest.NewServer(backend.handler())
	t.Cleanup(srv.Close)
	sessions := newSession(t)
	gw := gateway.New(srv.URL, sessions)
	return NewClient(gw, sessions, history, nil)
}

func TestSend_AppendsUserAndAssistantTurns(t *testing.T) {
	c := newChatClient(t, &assistantBackend{}, nil)

	reply, err := c.Send(context.Background(), "hello")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if reply.Role != RoleAssistant || reply.Content != "echo: hello" {
		t.Fatalf("unexpected reply %+v", reply)
	}

	turns := c.Transcript()
	if len(turns) != 2 {
		t.Fatalf("got %d turns, want 2", len(turns))
	}
	if turns[0].Role != RoleUser || turns[0].Content != "hello" {
		t.Fatalf("unexpected user turn %+v", turns[0])
	}
	if turns[1].Content != "echo: hello" {
		t.Fatalf("unexpected assistant turn %+v", turns[1])
	}
	if c.LastError() != "" {
		t.Fatalf("unexpected error state %q", c.LastError())
	}
}

func TestSend_RejectsEmptyMessage(t *testing.T) {
	c := newChatClient(t, &assistantBackend{}, nil)
	if _, err := c.Send(context.Background(), "   "); gateway.KindOf(err) != gateway.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(c.Transcript()) != 0 {
		t.Fatal("empty message must not enter the transcript")
	}
}

func TestSend_RejectsWhileReplyPending(t *testing.T) {
	backend := &assistantBackend{delay: 300 * time.Millisecond}
	c := newChatClient(t, backend, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := c.Send(context.Background(), "first"); err != nil {
			t.Errorf("first send: %v", err)
		}
	}()

	deadline := time.Now().Add(time.Second)
	for !c.Busy() {
		if time.Now().After(deadline) {
			t.Fatal("first send never became busy")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if _, err := c.Send(context.Background(), "second"); gateway.KindOf(err) != gateway.KindValidation {
		t.Fatalf("expected pending-reply rejection, got %v", err)
	}
	<-done

	turns := c.Transcript()
	if len(turns) != 2 {
		t.Fatalf("got %d turns, want 2 (rejected send must not append)", len(turns))
	}
	if turns[0].Content != "first" {
		t.Fatalf("unexpected transcript %+v", turns)
	}
}

func TestSend_FailureKeepsUserTurnAndRecordsError(t *testing.T) {
	c := newChatClient(t, &assistantBackend{fail: true}, nil)

	_, err := c.Send(context.Background(), "hello")
	if gateway.KindOf(err) != gateway.KindServer {
		t.Fatalf("expected server error, got %v", err)
	}

	turns := c.Transcript()
	if len(turns) != 1 || turns[0].Role != RoleUser {
		t.Fatalf("unexpected transcript %+v", turns)
	}
	if c.LastError() == "" {
		t.Fatal("failed send must record an error")
	}
	if c.Busy() {
		t.Fatal("client stuck busy after failure")
	}
}

func TestSend_ContinuesConversation(t *testing.T) {
	backend := &assistantBackend{}
	c := newChatClient(t, backend, nil)

	if _, err := c.Send(context.Background(), "one"); err != nil {
		t.Fatalf("first send: %v", err)
	}
	if _, err := c.Send(context.Background(), "two"); err != nil {
		t.Fatalf("second send: %v", err)
	}

	backend.mu.Lock()
	defer backend.mu.Unlock()
	if len(backend.requests) != 2 {
		t.Fatalf("got %d requests, want 2", len(backend.requests))
	}
	if backend.requests[0].ConversationID != 0 {
		t.Fatalf("first request carried conversation id %d", backend.requests[0].ConversationID)
	}
	if backend.requests[1].ConversationID != 7 {
		t.Fatalf("second request conversation id = %d, want 7", backend.requests[1].ConversationID)
	}
}

func TestResume_ReplaysHistoryAndKeepsConversationID(t *testing.T) {
	home := t.TempDir()
	history, err := persistence.Open(home)
	if err != nil {
		t.Fatalf("open history: %v", err)
	}
	defer history.Close()

	backend := &assistantBackend{}
	first := newChatClient(t, backend, history)
	if _, err := first.Send(context.Background(), "remember me"); err != nil {
		t.Fatalf("send: %v", err)
	}

	second := newChatClient(t, backend, history)
	if err := second.Resume(context.Background()); err != nil {
		t.Fatalf("resume: %v", err)
	}
	turns := second.Transcript()
	if len(turns) != 2 {
		t.Fatalf("resumed %d turns, want 2", len(turns))
	}
	if turns[0].Content != "remember me" || turns[1].Content != "echo: remember me" {
		t.Fatalf("unexpected resumed transcript %+v", turns)
	}

	// The resumed client continues the same backend conversation.
	if _, err := second.Send(context.Background(), "still here?"); err != nil {
		t.Fatalf("send after resume: %v", err)
	}
	backend.mu.Lock()
	defer backend.mu.Unlock()
	last := backend.requests[len(backend.requests)-1]
	if last.ConversationID != 7 {
		t.Fatalf("resumed send conversation id = %d, want 7", last.ConversationID)
	}
}

func TestStartNew_ResetsConversation(t *testing.T) {
	backend := &assistantBackend{}
	c := newChatClient(t, backend, nil)

	if _, err := c.Send(context.Background(), "one"); err != nil {
		t.Fatalf("send: %v", err)
	}
	c.StartNew()
	if len(c.Transcript()) != 0 {
		t.Fatal("StartNew must clear the transcript")
	}
	if _, err := c.Send(context.Background(), "two"); err != nil {
		t.Fatalf("send after reset: %v", err)
	}

	backend.mu.Lock()
	defer backend.mu.Unlock()
	last := backend.requests[len(backend.requests)-1]
	if last.ConversationID != 0 {
		t.Fatalf("fresh conversation carried id %d", last.ConversationID)
	}
}
