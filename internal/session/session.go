// Package session owns the authenticated identity: the bearer token, the
// user profile and every read or write of the persisted credential.
package session

import (
	"io"
	"log/slog"
	"sync"

	"github.com/Makepad-fr/tada/internal/model"
)

// LoginPath is the login entry point redirects go to.
const LoginPath = "/login"

// Navigator moves the user between entry points. The CLI and the TUI each
// provide one.
type Navigator interface {
	Location() string
	Navigate(path string)
}

// State is a point-in-time copy of the session.
type State struct {
	Token           string
	User            *model.User
	IsLoading       bool
	IsAuthenticated bool
}

// Session is safe for concurrent use. Every token change starts a new
// epoch; expiry is handled at most once per epoch.
type Session struct {
	mu      sync.Mutex
	token   string
	user    *model.User
	loading bool
	epoch   uint64
	expired uint64

	store TokenStore
	nav   Navigator
	log   *slog.Logger
}

// New returns an unauthenticated session backed by store.
func New(store TokenStore, log *slog.Logger) *Session {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Session{store: store, log: log, epoch: 1}
}

// SetNavigator installs the redirect target handler.
func (s *Session) SetNavigator(nav Navigator) {
	s.mu.Lock()
	s.nav = nav
	s.mu.Unlock()
}

// Token returns the bearer token and the epoch it belongs to.
func (s *Session) Token() (string, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, s.epoch
}

// State returns a copy of the session.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	var u *model.User
	if s.user != nil {
		cp := *s.user
		u = &cp
	}
	return State{Token: s.token, User: u, IsLoading: s.loading, IsAuthenticated: s.token != ""}
}

// IsAuthenticated reports whether a token is held.
func (s *Session) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token != ""
}

// Expire invalidates the session after the server rejected a request sent
// under epoch. Only the first call for the current epoch acts: it clears
// the token, removes it from storage and redirects to the login entry
// point unless the user is already there.
func (s *Session) Expire(epoch uint64) bool {
	s.mu.Lock()
	if epoch != s.epoch || s.expired == epoch {
		s.mu.Unlock()
		return false
	}
	s.expired = epoch
	s.token = ""
	s.user = nil
	s.epoch++
	nav := s.nav
	s.mu.Unlock()

	if err := s.store.Delete(); err != nil {
		s.log.Error("remove persisted token", "err", err)
	}
	s.log.Warn("session expired")
	if nav != nil && nav.Location() != LoginPath {
		s.log.Info("redirecting to login")
		nav.Navigate(LoginPath)
	}
	return true
}

func (s *Session) setLoading(v bool) {
	s.mu.Lock()
	s.loading = v
	s.mu.Unlock()
}

// authenticate persists token and then makes it current. Nothing changes
// if persisting fails.
func (s *Session) authenticate(token string, user *model.User) error {
	if err := s.store.Save(TokenInfo{Token: token, ExpiresAt: Expiry(token)}); err != nil {
		return err
	}
	s.mu.Lock()
	s.token = StripBearer(token)
	s.user = user
	s.epoch++
	s.mu.Unlock()
	return nil
}

// clear drops the credential from memory and storage.
func (s *Session) clear() error {
	s.mu.Lock()
	had := s.token != ""
	s.token = ""
	s.user = nil
	if had {
		s.epoch++
	}
	s.mu.Unlock()
	return s.store.Delete()
}
