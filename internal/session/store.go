package session

import (
	"fmt"
	"time"
)

// Session pairs the raw bearer token with its decoded claims. The claims are
// always recomputed from the token, never stored separately, so they cannot
// go stale relative to it.
type Session struct {
	Token  string
	Claims Claims
}

// Storage persists the raw token across page loads. In production this is an
// encrypted browser cookie; tests use an in-memory cell.
type Storage interface {
	Load() (token string, ok bool)
	Save(token string) error
	Drop()
}

// Store is the single authority for session existence, validity, and role
// set. It holds no state of its own beyond the Storage it wraps; Establish
// and Clear are the only writers.
type Store struct {
	storage Storage
	now     func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source. Useful for tests.
func WithClock(fn func() time.Time) Option {
	return func(s *Store) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewStore wraps the given storage.
func NewStore(storage Storage, opts ...Option) *Store {
	s := &Store{storage: storage, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Establish validates structural well-formedness, then persists the token,
// replacing any prior session. A malformed token fails with ErrMalformedToken
// and leaves the prior session untouched. A well-formed but already expired
// token establishes successfully; expiry is Current's concern.
func (s *Store) Establish(token string) error {
	if _, err := DecodeClaims(token); err != nil {
		return err
	}
	if err := s.storage.Save(token); err != nil {
		return fmt.Errorf("session: persist token: %w", err)
	}
	return nil
}

// Current returns the persisted session if it is valid right now. The expiry
// check runs on every call, so expiry is detected immediately without a
// background timer. An expired or malformed token reads as "no session" but
// stays in storage until Clear.
func (s *Store) Current() (Session, bool) {
	raw, ok := s.storage.Load()
	if !ok {
		return Session{}, false
	}
	claims, err := DecodeClaims(raw)
	if err != nil {
		return Session{}, false
	}
	if !claims.ExpiresAt.After(s.now()) {
		return Session{}, false
	}
	return Session{Token: raw, Claims: claims}, true
}

// Roles is a convenience projection of Current's role set, empty when no
// valid session exists. It always derives from freshly decoded claims.
func (s *Store) Roles() []string {
	sess, ok := s.Current()
	if !ok {
		return nil
	}
	return sess.Claims.Roles
}

// Clear removes all persisted session data. Idempotent: clearing an absent
// session is a no-op.
func (s *Store) Clear() {
	s.storage.Drop()
}
