package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestConversation_CreateAndResume(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	latest, err := s.LatestConversation(ctx, "u1")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest != nil {
		t.Fatalf("expected no conversation, got %+v", latest)
	}

	id, err := s.CreateConversation(ctx, "u1")
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	if err := s.SetRemoteID(ctx, id, 42); err != nil {
		t.Fatalf("set remote id: %v", err)
	}

	latest, err = s.LatestConversation(ctx, "u1")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest == nil || latest.ID != id || latest.RemoteID != 42 {
		t.Fatalf("unexpected latest conversation %+v", latest)
	}

	// Conversations are per backend user.
	other, err := s.LatestConversation(ctx, "u2")
	if err != nil {
		t.Fatalf("latest other user: %v", err)
	}
	if other != nil {
		t.Fatalf("conversation leaked across users: %+v", other)
	}
}

func TestTurns_AppendOrderPreserved(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	conv, err := s.CreateConversation(ctx, "u1")
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	want := []struct {
		role, content string
	}{
		{"user", "hello"},
		{"assistant", "hi, how can I help?"},
		{"user", "add a task"},
	}
	for i, turn := range want {
		if err := s.AddTurn(ctx, conv, uuid.NewString(), turn.role, turn.content, base.Add(time.Duration(i)*time.Second)); err != nil {
			t.Fatalf("add turn %d: %v", i, err)
		}
	}

	got, err := s.ListTurns(ctx, conv)
	if err != nil {
		t.Fatalf("list turns: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("got %d turns, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Role != want[i].role || got[i].Content != want[i].content {
			t.Fatalf("turn %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestAddTurn_RejectsUnknownRole(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	conv, err := s.CreateConversation(ctx, "u1")
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	if err := s.AddTurn(ctx, conv, uuid.NewString(), "system", "nope", time.Now()); err == nil {
		t.Fatal("expected error for unsupported role")
	}
}

func TestOpen_SurvivesReopen(t *testing.T) {
	home := t.TempDir()
	s1, err := Open(home)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	conv, err := s1.CreateConversation(context.Background(), "u1")
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	s1.Close()

	s2, err := Open(home)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	latest, err := s2.LatestConversation(context.Background(), "u1")
	if err != nil {
		t.Fatalf("latest after reopen: %v", err)
	}
	if latest == nil || latest.ID != conv {
		t.Fatalf("conversation did not survive reopen: %+v", latest)
	}
}
