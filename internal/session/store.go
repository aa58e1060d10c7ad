// Package session provides the in-memory conversation store: per-session
// turn history with bounded retention and idle expiry.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/saudata/txt2sql/pkg/models"
)

// ErrSessionNotFound is returned for unknown or expired session ids.
var ErrSessionNotFound = errors.New("session not found")

// session is the internal per-conversation state. The embedded mutex
// serializes pipeline runs on the same session; different sessions never
// contend.
type session struct {
	id         string
	createdAt  time.Time
	mu         sync.Mutex
	turns      []models.Turn
	lastActive time.Time
}

// Store is the process-scoped session registry.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*session
	ttl      time.Duration
	maxTurns int
	done     chan struct{}
	stopOnce sync.Once
}

// NewStore creates a store and starts the idle-expiry janitor.
// Turns beyond maxTurns are dropped oldest-first.
func NewStore(ttl time.Duration, maxTurns int) *Store {
	s := &Store{
		sessions: make(map[string]*session),
		ttl:      ttl,
		maxTurns: maxTurns,
		done:     make(chan struct{}),
	}
	if ttl > 0 {
		go s.janitor()
	}
	return s
}

// Create registers a new session and returns its id.
func (s *Store) Create() string {
	id := uuid.NewString()
	now := time.Now()

	s.mu.Lock()
	s.sessions[id] = &session{id: id, createdAt: now, lastActive: now}
	s.mu.Unlock()

	log.Debug().Str("sessionId", id).Msg("Session created")
	return id
}

// get returns the live session for id.
func (s *Store) get(id string) (*session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// Acquire locks the session for one pipeline run, returning the release
// function. Requests on the same session serialize here.
func (s *Store) Acquire(id string) (func(), error) {
	sess, err := s.get(id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	return sess.mu.Unlock, nil
}

// Append adds a completed turn. Turns are append-only and strictly
// ordered; retention keeps the most recent maxTurns.
func (s *Store) Append(id string, turn models.Turn) error {
	if err := turn.Validate(); err != nil {
		return err
	}
	sess, err := s.get(id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	sess.turns = append(sess.turns, turn)
	if s.maxTurns > 0 && len(sess.turns) > s.maxTurns {
		sess.turns = sess.turns[len(sess.turns)-s.maxTurns:]
	}
	sess.lastActive = time.Now()
	s.mu.Unlock()

	return nil
}

// History returns up to maxTurns turns, most recent first.
func (s *Store) History(id string, maxTurns int) ([]models.Turn, error) {
	sess, err := s.get(id)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(sess.turns)
	if maxTurns > 0 && maxTurns < n {
		n = maxTurns
	}
	out := make([]models.Turn, 0, n)
	for i := len(sess.turns) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, sess.turns[i])
	}
	return out, nil
}

// Touch refreshes the idle timer without appending a turn.
func (s *Store) Touch(id string) error {
	sess, err := s.get(id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	sess.lastActive = time.Now()
	s.mu.Unlock()
	return nil
}

// Clear removes a session explicitly.
func (s *Store) Clear(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(s.sessions, id)
	return nil
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Stop terminates the janitor. Safe to call more than once.
func (s *Store) Stop() {
	s.stopOnce.Do(func() { close(s.done) })
}

// janitor evicts sessions idle longer than the TTL.
func (s *Store) janitor() {
	interval := s.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.evictExpired()
		}
	}
}

// evictExpired removes every session past its idle TTL.
func (s *Store) evictExpired() {
	cutoff := time.Now().Add(-s.ttl)

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, sess := range s.sessions {
		if sess.lastActive.Before(cutoff) {
			delete(s.sessions, id)
			log.Debug().Str("sessionId", id).Msg("Session expired")
		}
	}
}
