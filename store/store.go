// Package store holds the in-memory session map and mirrors it to the
// remote history store. Memory is the source of truth; remote writes
// are fire-and-forget.
package store

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/fwojciec/murmur"
)

// Syncer reads and writes the full session map on the remote store.
// Implemented by backend.Client.
type Syncer interface {
	ReadHistory(ctx context.Context) (map[string]murmur.Session, error)
	WriteHistory(ctx context.Context, sessions map[string]murmur.Session) error
}

// Store is an addressable mapping of session ID to ordered
// conversation. Every mutation is keyed by message ID: a new ID
// appends, a known ID replaces in place. The mutex stands in for the
// event-loop serialization of the original design.
type Store struct {
	syncer Syncer
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[string]murmur.Session
}

// New creates an empty Store backed by the given syncer.
func New(syncer Syncer, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		syncer:   syncer,
		logger:   logger,
		sessions: make(map[string]murmur.Session),
	}
}

// Load replaces the in-memory map with the remote history. An absent
// or unreachable store degrades to an empty map; startup is never
// blocked on history.
func (s *Store) Load(ctx context.Context) {
	sessions, err := s.syncer.ReadHistory(ctx)
	if err != nil {
		s.logger.Warn("history unavailable, starting empty", "error", err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = make(map[string]murmur.Session, len(sessions))
	for id, sess := range sessions {
		sess.ID = id
		s.sessions[id] = sess
	}
}

// Get returns a copy of the session and whether it exists. The message
// slice is copied; callers never alias store internals.
func (s *Store) Get(sessionID string) (murmur.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return murmur.Session{}, false
	}
	return copySession(sess), true
}

// Messages returns a snapshot of the session's ordered messages.
func (s *Store) Messages(sessionID string) []murmur.Message {
	sess, ok := s.Get(sessionID)
	if !ok {
		return nil
	}
	return sess.Messages
}

// UpsertMessage inserts or replaces a message by ID. A missing session
// is created with the message's arrival time as creation timestamp.
// User-authored messages touch the session's CreatedAt; assistant
// output never does.
func (s *Store) UpsertMessage(sessionID string, msg murmur.Message) {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		sess = murmur.Session{ID: sessionID, CreatedAt: now}
	}
	if msg.Role == murmur.RoleUser {
		sess.CreatedAt = now
	}

	replaced := false
	for i, m := range sess.Messages {
		if m.ID == msg.ID {
			sess.Messages[i] = msg
			replaced = true
			break
		}
	}
	if !replaced {
		sess.Messages = append(sess.Messages, msg)
	}
	s.sessions[sessionID] = sess
}

// SetTitle overwrites the session's display title. Idempotent; a
// missing session is a no-op.
func (s *Store) SetTitle(sessionID, title string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return
	}
	sess.Title = title
	s.sessions[sessionID] = sess
}

// List returns all sessions ordered by most recently touched creation
// timestamp first. Ordering is a store invariant, not a display choice.
func (s *Store) List() []murmur.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]murmur.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, copySession(sess))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Persist serializes the entire session map and writes it to the
// remote store in one call. Failure is logged and swallowed: memory
// stays the source of truth until the next successful write.
func (s *Store) Persist(ctx context.Context) {
	s.mu.Lock()
	snapshot := make(map[string]murmur.Session, len(s.sessions))
	for id, sess := range s.sessions {
		snapshot[id] = copySession(sess)
	}
	s.mu.Unlock()

	if err := s.syncer.WriteHistory(ctx, snapshot); err != nil {
		s.logger.Warn("history write failed", "sessions", len(snapshot), "error", err)
	}
}

func copySession(sess murmur.Session) murmur.Session {
	msgs := make([]murmur.Message, len(sess.Messages))
	copy(msgs, sess.Messages)
	sess.Messages = msgs
	return sess
}
