// Package chat is the client for the backend's conversational assistant.
// It keeps an append-only transcript, sends one turn at a time (no
// streaming, at most one request in flight), and surfaces transport
// errors inline without disturbing the transcript.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/basket/taskdeck/internal/gateway"
	"github.com/basket/taskdeck/internal/persistence"
	"github.com/basket/taskdeck/internal/session"
)

// Role identifies who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one transcript entry. Chat turns, unlike tasks, get their id
// and timestamp locally; the backend is not on the critical path for
// displaying what the user just typed.
type Turn struct {
	ID        string
	Role      Role
	Content   string
	CreatedAt time.Time
}

type request struct {
	Message        string `json:"message"`
	ConversationID int64  `json:"conversation_id,omitempty"`
}

type response struct {
	ConversationID int64  `json:"conversation_id"`
	Response       string `json:"response"`
}

// Client drives a single conversation with the assistant.
type Client struct {
	gw       *gateway.Client
	sessions *session.Store
	history  *persistence.Store // nil disables local persistence
	logger   *slog.Logger

	mu             sync.Mutex
	transcript     []Turn
	conversationID int64 // backend id, 0 until the first reply
	localConvID    int64 // history row, 0 when history is disabled
	sending        bool
	lastErr        string
}

// NewClient builds a chat client. history may be nil (e.g. in tests);
// the transcript then lives only in memory.
func NewClient(gw *gateway.Client, sessions *session.Store, history *persistence.Store, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{gw: gw, sessions: sessions, history: history, logger: logger}
}

// Resume loads the user's most recent conversation from local history and
// replays its transcript. Without history (or without a prior
// conversation) it starts empty.
func (c *Client) Resume(ctx context.Context) error {
	if c.history == nil {
		return nil
	}
	identity, ok := c.sessions.CurrentIdentity()
	if !ok {
		return nil
	}
	conv, err := c.history.LatestConversation(ctx, identity.ID)
	if err != nil {
		return fmt.Errorf("load conversation: %w", err)
	}
	if conv == nil {
		return nil
	}
	records, err := c.history.ListTurns(ctx, conv.ID)
	if err != nil {
		return fmt.Errorf("load transcript: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.localConvID = conv.ID
	c.conversationID = conv.RemoteID
	c.transcript = c.transcript[:0]
	for _, r := range records {
		c.transcript = append(c.transcript, Turn{
			ID:        r.ID,
			Role:      Role(r.Role),
			Content:   r.Content,
			CreatedAt: r.CreatedAt,
		})
	}
	return nil
}

// StartNew abandons the current conversation and begins a fresh one. The
// old transcript stays in history; only the client's view resets.
func (c *Client) StartNew() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.transcript = nil
	c.conversationID = 0
	c.localConvID = 0
	c.lastErr = ""
}

// Transcript returns a copy of the transcript in order.
func (c *Client) Transcript() []Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Turn, len(c.transcript))
	copy(out, c.transcript)
	return out
}

// Busy reports whether a send is in flight.
func (c *Client) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sending
}

// LastError returns the transient error from the most recent failed send,
// cleared by the next successful send or StartNew.
func (c *Client) LastError() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Send submits one user message. The user turn is appended to the
// transcript immediately; the assistant turn is appended only on
// success. On failure the transcript is left as-is (the user turn stays)
// and the error is recorded as transient state.
func (c *Client) Send(ctx context.Context, text string) (Turn, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Turn{}, gateway.ValidationFailure("message", "message is empty")
	}
	identity, ok := c.sessions.CurrentIdentity()
	if !ok || identity.ID == "" {
		return Turn{}, gateway.ValidationFailure("session", "log in before chatting")
	}

	c.mu.Lock()
	if c.sending {
		c.mu.Unlock()
		return Turn{}, gateway.ValidationFailure("message", "a reply is still pending")
	}
	c.sending = true

	userTurn := Turn{
		ID:        uuid.NewString(),
		Role:      RoleUser,
		Content:   text,
		CreatedAt: time.Now(),
	}
	c.transcript = append(c.transcript, userTurn)
	conversationID := c.conversationID
	c.mu.Unlock()

	c.persistTurn(ctx, identity.ID, userTurn)

	var resp response
	err := c.gw.Do(ctx, http.MethodPost, "/"+identity.ID+"/chat",
		request{Message: text, ConversationID: conversationID}, &resp)

	c.mu.Lock()
	c.sending = false
	if err != nil {
		c.lastErr = err.Error()
		c.mu.Unlock()
		return Turn{}, err
	}

	c.lastErr = ""
	c.conversationID = resp.ConversationID
	assistantTurn := Turn{
		ID:        uuid.NewString(),
		Role:      RoleAssistant,
		Content:   resp.Response,
		CreatedAt: time.Now(),
	}
	c.transcript = append(c.transcript, assistantTurn)
	localConvID := c.localConvID
	c.mu.Unlock()

	if c.history != nil && localConvID != 0 {
		if err := c.history.SetRemoteID(ctx, localConvID, resp.ConversationID); err != nil {
			c.logger.Warn("record backend conversation id", "error", err)
		}
	}
	c.persistTurn(ctx, identity.ID, assistantTurn)

	return assistantTurn, nil
}

// persistTurn writes a turn to local history, creating the conversation
// row lazily. History failures never fail a send.
func (c *Client) persistTurn(ctx context.Context, userID string, turn Turn) {
	if c.history == nil {
		return
	}
	c.mu.Lock()
	convID := c.localConvID
	c.mu.Unlock()

	if convID == 0 {
		id, err := c.history.CreateConversation(ctx, userID)
		if err != nil {
			c.logger.Warn("create local conversation", "error", err)
			return
		}
		c.mu.Lock()
		c.localConvID = id
		c.mu.Unlock()
		convID = id
	}
	if err := c.history.AddTurn(ctx, convID, turn.ID, string(turn.Role), turn.Content, turn.CreatedAt); err != nil {
		c.logger.Warn("persist chat turn", "error", err)
	}
}
