package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

// --- Helpers ---

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func strPtr(s string) *string { return &s }

func testPrincipal() Principal {
	return Principal{
		ID:            "42",
		Handle:        "ferris",
		Discriminator: "0",
		GlobalName:    strPtr("Ferris"),
		DisplayName:   "Captain",
	}
}

// --- Create + Get ---

func TestMemoryStoreCreateAndGet(t *testing.T) {
	ctx := context.Background()

	t.Run("round-trip stores and retrieves principal", func(t *testing.T) {
		clock := newFakeClock()
		s := NewMemoryStore(10 * time.Minute)
		s.SetClock(clock.Now)

		handle, created, err := s.Create(ctx, testPrincipal())
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if handle == "" {
			t.Fatal("expected non-empty handle")
		}
		if !created.ExpiresAt.Equal(clock.Now().Add(10 * time.Minute)) {
			t.Errorf("ExpiresAt: expected %v, got %v", clock.Now().Add(10*time.Minute), created.ExpiresAt)
		}

		got, err := s.Get(ctx, handle)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got.ID != created.ID {
			t.Errorf("ID: expected %v, got %v", created.ID, got.ID)
		}
		if got.Principal.ID != "42" || got.Principal.DisplayName != "Captain" {
			t.Errorf("Principal: got %+v", got.Principal)
		}
	})

	t.Run("handles are unique", func(t *testing.T) {
		s := NewMemoryStore(time.Minute)
		seen := make(map[string]bool)
		for range 100 {
			h, _, err := s.Create(ctx, testPrincipal())
			if err != nil {
				t.Fatalf("Create failed: %v", err)
			}
			if seen[h] {
				t.Fatalf("duplicate handle %q", h)
			}
			seen[h] = true
		}
	})

	t.Run("unknown handle is ErrSessionNotFound", func(t *testing.T) {
		s := NewMemoryStore(time.Minute)
		_, err := s.Get(ctx, "never-issued")
		if !errors.Is(err, ErrSessionNotFound) {
			t.Errorf("expected ErrSessionNotFound, got %v", err)
		}
	})

	t.Run("returned sessions do not alias stored state", func(t *testing.T) {
		s := NewMemoryStore(time.Minute)
		handle, _, _ := s.Create(ctx, testPrincipal())

		got, _ := s.Get(ctx, handle)
		got.Principal.DisplayName = "mutated"
		*got.Principal.GlobalName = "mutated"

		again, _ := s.Get(ctx, handle)
		if again.Principal.DisplayName != "Captain" {
			t.Errorf("DisplayName: expected %q, got %q", "Captain", again.Principal.DisplayName)
		}
		if *again.Principal.GlobalName != "Ferris" {
			t.Errorf("GlobalName: expected %q, got %q", "Ferris", *again.Principal.GlobalName)
		}
	})
}

// --- Expiry ---

func TestMemoryStoreExpiry(t *testing.T) {
	ctx := context.Background()

	t.Run("session is gone after TTL regardless of activity", func(t *testing.T) {
		clock := newFakeClock()
		s := NewMemoryStore(600 * time.Second)
		s.SetClock(clock.Now)
		handle, _, _ := s.Create(ctx, testPrincipal())

		clock.Advance(599 * time.Second)
		if _, err := s.Get(ctx, handle); err != nil {
			t.Fatalf("Get at T0+599s: expected live session, got %v", err)
		}
		if err := s.UpdateDisplayName(ctx, handle, "still here"); err != nil {
			t.Fatalf("UpdateDisplayName at T0+599s: %v", err)
		}

		clock.Advance(2 * time.Second)
		if _, err := s.Get(ctx, handle); !errors.Is(err, ErrSessionNotFound) {
			t.Errorf("Get at T0+601s: expected ErrSessionNotFound, got %v", err)
		}
		if s.Len() != 0 {
			t.Errorf("Len: expected expired session removed, got %d", s.Len())
		}
	})

	t.Run("UpdateDisplayName on expired session fails", func(t *testing.T) {
		clock := newFakeClock()
		s := NewMemoryStore(time.Minute)
		s.SetClock(clock.Now)
		handle, _, _ := s.Create(ctx, testPrincipal())

		clock.Advance(time.Minute)
		if err := s.UpdateDisplayName(ctx, handle, "x"); !errors.Is(err, ErrSessionNotFound) {
			t.Errorf("expected ErrSessionNotFound, got %v", err)
		}
	})

	t.Run("Sweep removes only expired sessions", func(t *testing.T) {
		clock := newFakeClock()
		s := NewMemoryStore(time.Minute)
		s.SetClock(clock.Now)
		s.Create(ctx, testPrincipal())
		s.Create(ctx, testPrincipal())

		clock.Advance(30 * time.Second)
		fresh, _, _ := s.Create(ctx, testPrincipal())

		clock.Advance(31 * time.Second)
		if n := s.Sweep(ctx); n != 2 {
			t.Errorf("Sweep: expected 2 removed, got %d", n)
		}
		if _, err := s.Get(ctx, fresh); err != nil {
			t.Errorf("fresh session: expected live, got %v", err)
		}
	})
}

// --- UpdateDisplayName + Destroy ---

func TestMemoryStoreMutations(t *testing.T) {
	ctx := context.Background()

	t.Run("UpdateDisplayName changes only the display name", func(t *testing.T) {
		s := NewMemoryStore(time.Minute)
		handle, _, _ := s.Create(ctx, testPrincipal())

		if err := s.UpdateDisplayName(ctx, handle, "Admiral"); err != nil {
			t.Fatalf("UpdateDisplayName failed: %v", err)
		}
		got, _ := s.Get(ctx, handle)
		if got.Principal.DisplayName != "Admiral" {
			t.Errorf("DisplayName: expected %q, got %q", "Admiral", got.Principal.DisplayName)
		}
		if got.Principal.Handle != "ferris" {
			t.Errorf("Handle: expected %q, got %q", "ferris", got.Principal.Handle)
		}
	})

	t.Run("Destroy is permanent", func(t *testing.T) {
		s := NewMemoryStore(time.Minute)
		handle, _, _ := s.Create(ctx, testPrincipal())

		if err := s.Destroy(ctx, handle); err != nil {
			t.Fatalf("Destroy failed: %v", err)
		}
		for i := range 3 {
			if _, err := s.Get(ctx, handle); !errors.Is(err, ErrSessionNotFound) {
				t.Errorf("Get #%d after destroy: expected ErrSessionNotFound, got %v", i, err)
			}
		}
		if err := s.UpdateDisplayName(ctx, handle, "ghost"); !errors.Is(err, ErrSessionNotFound) {
			t.Errorf("UpdateDisplayName after destroy: expected ErrSessionNotFound, got %v", err)
		}
	})

	t.Run("Destroy on unknown handle is not an error", func(t *testing.T) {
		s := NewMemoryStore(time.Minute)
		if err := s.Destroy(ctx, "never-issued"); err != nil {
			t.Errorf("expected nil, got %v", err)
		}
	})
}

// --- Concurrency ---

// Run with -race.
func TestMemoryStoreConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(time.Minute)

	var wg sync.WaitGroup
	for i := range 32 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			handle, _, err := s.Create(ctx, testPrincipal())
			if err != nil {
				t.Errorf("Create: %v", err)
				return
			}
			for j := range 20 {
				s.UpdateDisplayName(ctx, handle, fmt.Sprintf("n-%d-%d", i, j))
				s.Get(ctx, handle)
			}
			s.Destroy(ctx, handle)
			s.Sweep(ctx)
		}(i)
	}
	wg.Wait()

	if s.Len() != 0 {
		t.Errorf("Len: expected 0 after all destroys, got %d", s.Len())
	}
}
