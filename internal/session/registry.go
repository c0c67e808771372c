package session

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xbiggyl/wsassistant/internal/audio"
)

// Registry errors, recoverable by callers.
var (
	// ErrDuplicateSession is returned when creating a session whose id is
	// already active.
	ErrDuplicateSession = errors.New("session id already active")
	// ErrUnknownSession is returned when binding to a session that does
	// not exist.
	ErrUnknownSession = errors.New("unknown session")
)

// Config contains per-session resource settings applied at creation.
type Config struct {
	// BytesPerSecond is the audio byte rate used for duration estimation.
	BytesPerSecond int
	// MaxPendingAudio caps the buffered fragment duration (drop-oldest).
	MaxPendingAudio time.Duration
	// WindowQueueSize bounds the flushed-window queue per session.
	WindowQueueSize int
}

// Registry is the authoritative map of active sessions and the reverse
// index from client id to session id. It is constructed explicitly and
// passed by reference into every subsystem; session state is owned here
// and mutated nowhere else.
type Registry struct {
	sessions map[string]*Session
	clients  map[string]string

	config Config
	logger *slog.Logger

	mu sync.RWMutex
}

// NewRegistry creates an empty session registry.
func NewRegistry(logger *slog.Logger, config Config) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		clients:  make(map[string]string),
		config:   config,
		logger:   logger,
	}
}

// Create registers a new active session. It fails with ErrDuplicateSession
// if the id is already active.
func (r *Registry) Create(id string, meta Metadata) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[id]; exists {
		return nil, fmt.Errorf("create session %s: %w", id, ErrDuplicateSession)
	}

	window := audio.NewWindowBuffer(r.config.BytesPerSecond, r.config.MaxPendingAudio)
	s := newSession(id, meta, window, r.config.WindowQueueSize)
	r.sessions[id] = s

	r.logger.Info("Session created",
		slog.String("session_id", id),
		slog.String("title", meta.Title),
		slog.String("language", meta.Language),
		slog.Int("participants", len(meta.Participants)),
	)

	return s, nil
}

// Bind attaches a client to a session. It fails with ErrUnknownSession if
// the session does not exist and is idempotent if the client is already
// bound to it. A client id maps to at most one session at a time; binding
// moves the client if it was bound elsewhere. When the move empties the
// previous session, drained carries its id for exactly one caller, who owns
// its teardown, the same contract as Unbind.
func (r *Registry) Bind(clientID, sessionID string) (drained string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, exists := r.sessions[sessionID]
	if !exists {
		return "", fmt.Errorf("bind client %s: %w", clientID, ErrUnknownSession)
	}

	if prev, bound := r.clients[clientID]; bound {
		if prev == sessionID {
			return "", nil
		}
		if prevSession, ok := r.sessions[prev]; ok {
			if prevSession.unbindClient(clientID) == 0 && prevSession.BeginDrain() {
				drained = prev
			}
		}
	}

	r.clients[clientID] = sessionID
	s.bindClient(clientID)

	r.logger.Info("Client bound to session",
		slog.String("client_id", clientID),
		slog.String("session_id", sessionID),
		slog.Int("bound_clients", s.ClientCount()),
	)

	return drained, nil
}

// Unbind removes a client's binding and returns the affected session id.
// It is a no-op returning ok=false if the client was not bound. When the
// unbind drains the session's last client, drained is true for exactly one
// caller even under concurrent disconnects; that caller owns teardown.
func (r *Registry) Unbind(clientID string) (sessionID string, drained, ok bool) {
	r.mu.Lock()
	sessionID, ok = r.clients[clientID]
	if !ok {
		r.mu.Unlock()
		return "", false, false
	}
	delete(r.clients, clientID)
	s := r.sessions[sessionID]
	r.mu.Unlock()

	if s == nil {
		return sessionID, false, true
	}

	remaining := s.unbindClient(clientID)

	r.logger.Info("Client unbound from session",
		slog.String("client_id", clientID),
		slog.String("session_id", sessionID),
		slog.Int("bound_clients", remaining),
	)

	// BeginDrain succeeds for one caller only, so the teardown signal
	// fires exactly once even when the last two clients race.
	if remaining == 0 && s.BeginDrain() {
		drained = true
	}

	return sessionID, drained, true
}

// Get retrieves a session by id.
func (r *Registry) Get(sessionID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, exists := r.sessions[sessionID]
	return s, exists
}

// ClientSession returns the session id a client is bound to.
func (r *Registry) ClientSession(clientID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessionID, ok := r.clients[clientID]
	return sessionID, ok
}

// Remove deletes the session entry and any remaining client bindings that
// reference it.
func (r *Registry) Remove(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[sessionID]; !exists {
		return false
	}

	delete(r.sessions, sessionID)
	for clientID, sid := range r.clients {
		if sid == sessionID {
			delete(r.clients, clientID)
		}
	}

	r.logger.Info("Session removed from registry",
		slog.String("session_id", sessionID),
	)

	return true
}

// ActiveCount returns the number of registered sessions.
func (r *Registry) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sessions returns a snapshot of all registered sessions (for monitoring).
func (r *Registry) Sessions() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	return sessions
}
