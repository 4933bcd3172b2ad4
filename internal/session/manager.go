package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/Makepad-fr/tada/internal/model"
)

// AuthAPI is the slice of the API client the manager needs.
type AuthAPI interface {
	Login(ctx context.Context, email, password string) (*model.AuthResult, error)
	Signup(ctx context.Context, email, password string) (*model.User, error)
}

// Manager exposes login, signup, logout and restore over a Session.
type Manager struct {
	s   *Session
	api AuthAPI
}

// NewManager wires a Manager.
func NewManager(s *Session, api AuthAPI) *Manager {
	return &Manager{s: s, api: api}
}

// Session returns the managed session.
func (m *Manager) Session() *Session { return m.s }

func validateCredentials(email, password string) error {
	if strings.TrimSpace(email) == "" {
		return model.Invalid("email", "cannot be empty")
	}
	if password == "" {
		return model.Invalid("password", "cannot be empty")
	}
	return nil
}

// Login authenticates the session. On any failure the session is left
// unauthenticated with no token stored.
func (m *Manager) Login(ctx context.Context, email, password string) (*model.User, error) {
	if err := validateCredentials(email, password); err != nil {
		return nil, err
	}
	m.s.setLoading(true)
	defer m.s.setLoading(false)

	res, err := m.api.Login(ctx, strings.TrimSpace(email), password)
	if err != nil {
		if cerr := m.s.clear(); cerr != nil {
			m.s.log.Error("clear stale session", "err", cerr)
		}
		m.s.log.Info("login failed", "email", email, "err", err)
		return nil, err
	}
	if err := m.s.authenticate(res.Token, res.User); err != nil {
		return nil, fmt.Errorf("store token: %w", err)
	}
	m.s.log.Info("logged in", "email", email)
	return res.User, nil
}

// Signup creates an account. The session stays as it was; the caller must
// log in separately.
func (m *Manager) Signup(ctx context.Context, email, password string) (*model.User, error) {
	if err := validateCredentials(email, password); err != nil {
		return nil, err
	}
	m.s.setLoading(true)
	defer m.s.setLoading(false)

	u, err := m.api.Signup(ctx, strings.TrimSpace(email), password)
	if err != nil {
		return nil, err
	}
	m.s.log.Info("signed up", "email", email)
	return u, nil
}

// Logout clears the token and profile. No network call is made.
func (m *Manager) Logout() error {
	if err := m.s.clear(); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	m.s.log.Info("logged out")
	return nil
}

// Restore loads a persisted token at startup. A stored token is trusted
// until the first authenticated call says otherwise; the user profile is a
// placeholder until then.
func (m *Manager) Restore() error {
	m.s.setLoading(true)
	defer m.s.setLoading(false)

	ti, err := m.s.store.Load()
	if err != nil {
		return fmt.Errorf("restore session: %w", err)
	}
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if ti == nil || ti.Token == "" {
		m.s.token = ""
		m.s.user = nil
		return nil
	}
	m.s.token = ti.Token
	m.s.user = &model.User{FromStorage: true}
	m.s.epoch++
	return nil
}

// Info returns the persisted credential, if any.
func (m *Manager) Info() (*TokenInfo, error) {
	return m.s.store.Load()
}
