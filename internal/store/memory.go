// memory.go -- In-process session store.
//
// Sessions live only in this process. The browser holds a 256-bit random
// handle; the map is keyed by its SHA-256 so the raw credential is never kept.
// Expiry is fixed at creation and checked on every read.
package store

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"
)

// MemoryStore holds sessions in a mutex-guarded map. Safe for concurrent use.
type MemoryStore struct {
	ttl time.Duration
	now func() time.Time

	mu       sync.Mutex
	sessions map[[32]byte]*Session
}

// NewMemoryStore returns an empty store issuing sessions that live for ttl.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[[32]byte]*Session),
	}
}

// SetClock replaces the time source. Tests only.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

// Create stores a new session for p and returns the opaque handle for the cookie.
func (s *MemoryStore) Create(_ context.Context, p Principal) (string, *Session, error) {
	var raw [32]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", nil, fmt.Errorf("generating session handle: %w", err)
	}
	id, err := uuid.NewV7()
	if err != nil {
		return "", nil, fmt.Errorf("generating session id: %w", err)
	}
	handle := base64.RawURLEncoding.EncodeToString(raw[:])

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	sess := &Session{
		ID:        id,
		Principal: p.clone(),
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	s.sessions[keyFor(handle)] = sess
	return handle, copySession(sess), nil
}

// Get returns a copy of the live session for handle, or ErrSessionNotFound.
// An expired session is removed on sight.
func (s *MemoryStore) Get(_ context.Context, handle string) (*Session, error) {
	key := keyFor(handle)

	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.liveLocked(key)
	if err != nil {
		return nil, err
	}
	return copySession(sess), nil
}

// UpdateDisplayName sets the display name on a live session.
// Returns ErrSessionNotFound if the session was destroyed or has expired.
func (s *MemoryStore) UpdateDisplayName(_ context.Context, handle, name string) error {
	key := keyFor(handle)

	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.liveLocked(key)
	if err != nil {
		return err
	}
	sess.Principal.DisplayName = name
	return nil
}

// Destroy removes the session for handle. Destroying an unknown handle is not an error.
func (s *MemoryStore) Destroy(_ context.Context, handle string) error {
	key := keyFor(handle)

	s.mu.Lock()
	delete(s.sessions, key)
	s.mu.Unlock()
	return nil
}

// Sweep deletes every expired session and returns how many were removed.
func (s *MemoryStore) Sweep(_ context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	n := 0
	for k, sess := range s.sessions {
		if !now.Before(sess.ExpiresAt) {
			delete(s.sessions, k)
			n++
		}
	}
	return n
}

// Len returns the number of stored sessions, expired ones included until swept.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// liveLocked returns the stored session for key if it has not expired. Caller holds mu.
func (s *MemoryStore) liveLocked(key [32]byte) (*Session, error) {
	sess, ok := s.sessions[key]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if !s.now().Before(sess.ExpiresAt) {
		delete(s.sessions, key)
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

func keyFor(handle string) [32]byte {
	return sha256.Sum256([]byte(handle))
}

func copySession(s *Session) *Session {
	c := *s
	c.Principal = s.Principal.clone()
	return &c
}
