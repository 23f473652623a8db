// Package session owns the client's authentication state: the bearer
// token and the identity it was issued for. The backend is the source of
// truth; this store is a thin persisted cache of the credential so a
// login survives process restarts.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/basket/taskdeck/internal/storage"
)

// Identity is the authenticated user, replaced wholesale on every
// login/register and never partially mutated.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// Store holds the current session. "Logged in" is defined solely by token
// presence; the identity blob is best-effort display data.
type Store struct {
	storage *storage.Store
	logger  *slog.Logger

	mu       sync.Mutex
	token    string
	identity *Identity
	loaded   bool
}

// NewStore builds a session store over the given storage. State is
// rehydrated lazily on first read.
func NewStore(st *storage.Store, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{storage: st, logger: logger}
}

// Login stores the token and identity and persists both. A persistence
// failure is reported to the caller but does not block the in-memory
// transition: the session is active either way.
func (s *Store) Login(identity Identity, token string) error {
	return s.establish(identity, token)
}

// Register behaves exactly like Login; registration responses carry the
// same token+user payload.
func (s *Store) Register(identity Identity, token string) error {
	return s.establish(identity, token)
}

func (s *Store) establish(identity Identity, token string) error {
	s.mu.Lock()
	s.token = token
	id := identity
	s.identity = &id
	s.loaded = true
	s.mu.Unlock()

	var persistErr error
	if err := s.storage.Set(storage.KeyToken, token); err != nil {
		persistErr = fmt.Errorf("persist token: %w", err)
	}
	blob, err := json.Marshal(identity)
	if err == nil {
		err = s.storage.Set(storage.KeyIdentity, string(blob))
	}
	if err != nil && persistErr == nil {
		persistErr = fmt.Errorf("persist identity: %w", err)
	}
	if persistErr != nil {
		s.logger.Warn("session persisted partially; login will not survive restart", "error", persistErr)
	}
	return persistErr
}

// Logout clears the persisted token and identity together and deactivates
// the in-memory session. Idempotent: logging out while logged out is a
// no-op success.
func (s *Store) Logout() error {
	s.mu.Lock()
	s.token = ""
	s.identity = nil
	s.loaded = true
	s.mu.Unlock()

	if err := s.storage.Delete(storage.KeyToken); err != nil {
		return err
	}
	return s.storage.Delete(storage.KeyIdentity)
}

// IsAuthenticated reports whether a token is present. The token is not
// validated against the backend here; expiry is discovered on first use
// and handled by the gateway's 401 path.
func (s *Store) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rehydrateLocked()
	return s.token != ""
}

// Token returns the current bearer token, or "" when logged out.
func (s *Store) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rehydrateLocked()
	return s.token
}

// CurrentIdentity returns the persisted identity. Corrupt persisted data
// is treated as absent rather than an error.
func (s *Store) CurrentIdentity() (Identity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rehydrateLocked()
	if s.identity == nil {
		return Identity{}, false
	}
	return *s.identity, true
}

// Invalidate discards the in-memory cache so the next read re-derives
// state from storage. Called when the storage watcher reports an external
// change (another process logging in or out).
func (s *Store) Invalidate() {
	s.mu.Lock()
	s.loaded = false
	s.mu.Unlock()
}

// ConsumeWatch invalidates the store on every session-key event until the
// channel closes or ctx is done.
func (s *Store) ConsumeWatch(ctx context.Context, events <-chan storage.Event) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				if ev.Key == storage.KeyToken || ev.Key == storage.KeyIdentity {
					s.Invalidate()
					s.logger.Debug("session state changed externally", "key", ev.Key)
				}
			}
		}
	}()
}

func (s *Store) rehydrateLocked() {
	if s.loaded {
		return
	}
	s.loaded = true
	s.token = ""
	s.identity = nil

	token, ok, err := s.storage.Get(storage.KeyToken)
	if err != nil {
		s.logger.Warn("read persisted token", "error", err)
		return
	}
	if !ok {
		return
	}
	s.token = token

	blob, ok, err := s.storage.Get(storage.KeyIdentity)
	if err != nil || !ok {
		return
	}
	var id Identity
	if err := json.Unmarshal([]byte(blob), &id); err != nil {
		// Corrupt identity is tolerated; the token alone keeps the
		// session active.
		s.logger.Warn("persisted identity unreadable, treating as absent", "error", err)
		return
	}
	s.identity = &id
}
