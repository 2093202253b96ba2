// stores.go
//
// Shared mock implementations of the auth package's dependencies.
// Imported by test files across packages to avoid duplicate mock definitions.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/MGallo-Code/gatekeep/internal/identity"
	"github.com/MGallo-Code/gatekeep/internal/store"
	"github.com/gofrs/uuid/v5"
)

// MockProvider implements auth.IdentityProvider for tests.
// Set the result fields directly before use, or use SetMembership between calls.
// Call counts let tests assert which provider steps ran.
type MockProvider struct {
	AuthURL string

	Token       string
	ExchangeErr error

	Profile    *identity.Profile
	ProfileErr error

	mu              sync.Mutex
	membership      *identity.Membership
	membershipErr   error
	exchangeCalls   int
	profileCalls    int
	membershipCalls int
}

// NewMockProvider returns a provider whose every step succeeds for profile,
// with the given membership tags and optional nickname.
func NewMockProvider(profile *identity.Profile, nickname *string, tags ...string) *MockProvider {
	m := &MockProvider{
		AuthURL: "https://idp.test/oauth2/authorize?client_id=test",
		Token:   "access-token",
		Profile: profile,
	}
	m.SetMembership(&identity.Membership{PrincipalID: profile.ID, Nickname: nickname, Tags: tags}, nil)
	return m
}

// SetMembership replaces what the next FetchMembership calls return.
func (m *MockProvider) SetMembership(mem *identity.Membership, err error) {
	m.mu.Lock()
	m.membership = mem
	m.membershipErr = err
	m.mu.Unlock()
}

func (m *MockProvider) AuthCodeURL() string { return m.AuthURL }

func (m *MockProvider) ExchangeCode(_ context.Context, _ string) (string, error) {
	m.mu.Lock()
	m.exchangeCalls++
	m.mu.Unlock()
	if m.ExchangeErr != nil {
		return "", m.ExchangeErr
	}
	return m.Token, nil
}

func (m *MockProvider) FetchProfile(_ context.Context, _ string) (*identity.Profile, error) {
	m.mu.Lock()
	m.profileCalls++
	m.mu.Unlock()
	if m.ProfileErr != nil {
		return nil, m.ProfileErr
	}
	p := *m.Profile
	return &p, nil
}

func (m *MockProvider) FetchMembership(_ context.Context, _, principalID string) (*identity.Membership, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.membershipCalls++
	if m.membershipErr != nil {
		return nil, m.membershipErr
	}
	if m.membership == nil {
		return nil, fmt.Errorf("%w: no membership configured", identity.ErrNotAMember)
	}
	mem := *m.membership
	mem.PrincipalID = principalID
	mem.Tags = append([]string(nil), m.membership.Tags...)
	return &mem, nil
}

// ExchangeCalls returns how many times ExchangeCode ran.
func (m *MockProvider) ExchangeCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.exchangeCalls
}

// ProfileCalls returns how many times FetchProfile ran.
func (m *MockProvider) ProfileCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.profileCalls
}

// MembershipCalls returns how many times FetchMembership ran.
func (m *MockProvider) MembershipCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.membershipCalls
}

// MockSessionStore implements auth.SessionStore for tests.
// Always stateful...Sessions is a map keyed by handle, like a real store.
// Use *Err fields to inject errors for specific operations.
type MockSessionStore struct {
	// Error injection...zero value means no error
	CreateErr  error
	GetErr     error
	UpdateErr  error
	DestroyErr error

	TTL      time.Duration
	Sessions map[string]*store.Session

	mu     sync.Mutex
	nextID int
}

// NewMockSessionStore returns an empty store issuing sessions that live for ttl.
func NewMockSessionStore(ttl time.Duration) *MockSessionStore {
	return &MockSessionStore{TTL: ttl, Sessions: make(map[string]*store.Session)}
}

// Seed inserts a session under handle and returns it.
func (m *MockSessionStore) Seed(handle string, p store.Principal) *store.Session {
	id, _ := uuid.NewV7()
	now := time.Now()
	s := &store.Session{ID: id, Principal: p, CreatedAt: now, ExpiresAt: now.Add(m.TTL)}
	m.mu.Lock()
	m.Sessions[handle] = s
	m.mu.Unlock()
	return s
}

func (m *MockSessionStore) Create(_ context.Context, p store.Principal) (string, *store.Session, error) {
	if m.CreateErr != nil {
		return "", nil, m.CreateErr
	}
	m.mu.Lock()
	m.nextID++
	handle := fmt.Sprintf("handle-%d", m.nextID)
	m.mu.Unlock()
	s := m.Seed(handle, p)
	c := *s
	return handle, &c, nil
}

func (m *MockSessionStore) Get(_ context.Context, handle string) (*store.Session, error) {
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.Sessions[handle]
	if !ok || !time.Now().Before(s.ExpiresAt) {
		return nil, store.ErrSessionNotFound
	}
	c := *s
	return &c, nil
}

func (m *MockSessionStore) UpdateDisplayName(_ context.Context, handle, name string) error {
	if m.UpdateErr != nil {
		return m.UpdateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.Sessions[handle]
	if !ok {
		return store.ErrSessionNotFound
	}
	s.Principal.DisplayName = name
	return nil
}

func (m *MockSessionStore) Destroy(_ context.Context, handle string) error {
	if m.DestroyErr != nil {
		return m.DestroyErr
	}
	m.mu.Lock()
	delete(m.Sessions, handle)
	m.mu.Unlock()
	return nil
}

// Len returns the number of stored sessions.
func (m *MockSessionStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Sessions)
}

// MockAuditor implements auth.Auditor and records every entry.
type MockAuditor struct {
	WriteErr  error
	HealthErr error

	mu      sync.Mutex
	Entries []store.AuditEntry
}

func (m *MockAuditor) WriteAuditLog(_ context.Context, e store.AuditEntry) error {
	m.mu.Lock()
	m.Entries = append(m.Entries, e)
	m.mu.Unlock()
	return m.WriteErr
}

func (m *MockAuditor) CheckHealth(context.Context) error { return m.HealthErr }

// Actions returns the recorded action names in order.
func (m *MockAuditor) Actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.Entries))
	for i, e := range m.Entries {
		out[i] = e.Action
	}
	return out
}

// MockRateLimiter implements auth.RateLimiter. AllowErr is returned from every Allow call.
type MockRateLimiter struct {
	AllowErr  error
	HealthErr error

	mu   sync.Mutex
	Keys []string
}

func (m *MockRateLimiter) Allow(_ context.Context, key string, _ store.RateLimit) error {
	m.mu.Lock()
	m.Keys = append(m.Keys, key)
	m.mu.Unlock()
	return m.AllowErr
}

func (m *MockRateLimiter) CheckHealth(context.Context) error { return m.HealthErr }
