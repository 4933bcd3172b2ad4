package session

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Makepad-fr/tada/internal/apiclient"
	"github.com/Makepad-fr/tada/internal/apitest"
	"github.com/Makepad-fr/tada/internal/model"
)

type recordingNav struct {
	mu       sync.Mutex
	location string
	visits   []string
}

func (n *recordingNav) Location() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.location
}

func (n *recordingNav) Navigate(path string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.location = path
	n.visits = append(n.visits, path)
}

func (n *recordingNav) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.visits)
}

func newFileStore(t *testing.T) *FileStore {
	t.Helper()
	fs := NewFileStore(t.TempDir())
	fs.Getenv = func(string) string { return "" }
	return fs
}

func TestFileStore_SaveLoadDelete(t *testing.T) {
	fs := newFileStore(t)

	ti, err := fs.Load()
	if err != nil || ti != nil {
		t.Fatalf("Load on empty dir: got %+v, %v", ti, err)
	}
	if err := fs.Save(TokenInfo{Token: "Bearer abc"}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	fi, err := os.Stat(fs.Path())
	if err != nil {
		t.Fatalf("stat failed: %v", err)
	}
	if fi.Mode().Perm() != 0o600 {
		t.Errorf("perm: got %o", fi.Mode().Perm())
	}
	ti, err = fs.Load()
	if err != nil || ti == nil {
		t.Fatalf("Load failed: %+v, %v", ti, err)
	}
	if ti.Token != "abc" || ti.Source != "file" {
		t.Errorf("loaded: got %+v", ti)
	}
	if err := fs.Delete(); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if ti, _ := fs.Load(); ti != nil {
		t.Errorf("Load after delete: got %+v", ti)
	}
}

func TestFileStore_EnvOverride(t *testing.T) {
	fs := NewFileStore(t.TempDir())
	fs.Getenv = func(k string) string {
		if k == TokenEnv {
			return "bearer from-env"
		}
		return ""
	}
	ti, err := fs.Load()
	if err != nil || ti == nil {
		t.Fatalf("Load failed: %+v, %v", ti, err)
	}
	if ti.Token != "from-env" || ti.Source != "env" {
		t.Errorf("got %+v", ti)
	}
}

func TestManager_LoginStoresToken(t *testing.T) {
	srv := apitest.New()
	defer srv.Close()
	srv.AddUser("a@b.c", "secret1")

	fs := newFileStore(t)
	s := New(fs, nil)
	m := NewManager(s, apiclient.New(srv.APIURL(), s))

	u, err := m.Login(context.Background(), "a@b.c", "secret1")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if u.Email != "a@b.c" {
		t.Errorf("user: got %+v", u)
	}
	st := s.State()
	if !st.IsAuthenticated || st.IsLoading {
		t.Errorf("state: got %+v", st)
	}
	ti, _ := fs.Load()
	if ti == nil || ti.Token != st.Token {
		t.Errorf("persisted token: got %+v, want %q", ti, st.Token)
	}
}

func TestManager_LoginFailureClearsStaleSession(t *testing.T) {
	srv := apitest.New()
	defer srv.Close()
	srv.AddUser("a@b.c", "secret1")

	fs := newFileStore(t)
	if err := fs.Save(TokenInfo{Token: "stale"}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	s := New(fs, nil)
	m := NewManager(s, apiclient.New(srv.APIURL(), s))
	if err := m.Restore(); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}

	if _, err := m.Login(context.Background(), "a@b.c", "nope"); err == nil {
		t.Fatal("expected login error")
	}
	if s.IsAuthenticated() {
		t.Error("session still authenticated after failed login")
	}
	if ti, _ := fs.Load(); ti != nil {
		t.Errorf("token still persisted: %+v", ti)
	}
}

func TestManager_LoginValidatesLocally(t *testing.T) {
	srv := apitest.New()
	defer srv.Close()
	s := New(newFileStore(t), nil)
	m := NewManager(s, apiclient.New(srv.APIURL(), s))

	_, err := m.Login(context.Background(), "  ", "x")
	var ve *model.ValidationError
	if !errors.As(err, &ve) || ve.Field != "email" {
		t.Fatalf("expected email validation error, got %v", err)
	}
	if srv.TotalCalls() != 0 {
		t.Errorf("network calls: got %d, want 0", srv.TotalCalls())
	}
}

func TestManager_SignupDoesNotAuthenticate(t *testing.T) {
	srv := apitest.New()
	defer srv.Close()
	fs := newFileStore(t)
	s := New(fs, nil)
	m := NewManager(s, apiclient.New(srv.APIURL(), s))

	u, err := m.Signup(context.Background(), "new@b.c", "secret1")
	if err != nil {
		t.Fatalf("Signup failed: %v", err)
	}
	if u.Email != "new@b.c" {
		t.Errorf("user: got %+v", u)
	}
	if s.IsAuthenticated() {
		t.Error("signup must not authenticate")
	}
	if ti, _ := fs.Load(); ti != nil {
		t.Errorf("signup persisted a token: %+v", ti)
	}

	if _, err := m.Signup(context.Background(), "new@b.c", "secret1"); apiclient.Message(err) != "User with this email already exists" {
		t.Errorf("duplicate signup: got %v", err)
	}
}

func TestManager_LogoutIsLocal(t *testing.T) {
	srv := apitest.New()
	defer srv.Close()
	srv.AddUser("a@b.c", "secret1")
	fs := newFileStore(t)
	s := New(fs, nil)
	m := NewManager(s, apiclient.New(srv.APIURL(), s))
	if _, err := m.Login(context.Background(), "a@b.c", "secret1"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	before := srv.TotalCalls()

	if err := m.Logout(); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if srv.TotalCalls() != before {
		t.Error("logout made a network call")
	}
	if st := s.State(); st.IsAuthenticated || st.User != nil {
		t.Errorf("state after logout: %+v", st)
	}
	if ti, _ := fs.Load(); ti != nil {
		t.Errorf("token still persisted: %+v", ti)
	}
}

func TestManager_RestorePlaceholderUser(t *testing.T) {
	fs := newFileStore(t)
	if err := fs.Save(TokenInfo{Token: "kept"}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	s := New(fs, nil)
	m := NewManager(s, nil)
	if err := m.Restore(); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	st := s.State()
	if !st.IsAuthenticated || st.Token != "kept" {
		t.Errorf("state: got %+v", st)
	}
	if st.User == nil || !st.User.FromStorage {
		t.Errorf("user: got %+v, want placeholder", st.User)
	}

	empty := New(newFileStore(t), nil)
	if err := NewManager(empty, nil).Restore(); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if empty.IsAuthenticated() {
		t.Error("restore without token must stay unauthenticated")
	}
}

func TestSession_ConcurrentUnauthorizedRedirectsOnce(t *testing.T) {
	srv := apitest.New()
	defer srv.Close()

	fs := newFileStore(t)
	if err := fs.Save(TokenInfo{Token: "revoked"}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	s := New(fs, nil)
	nav := &recordingNav{location: "/todos"}
	s.SetNavigator(nav)
	if err := NewManager(s, nil).Restore(); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	c := apiclient.New(srv.APIURL(), s)

	release := srv.Hold(apitest.RouteList)
	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.ListTodos(context.Background())
		}(i)
	}
	deadline := time.Now().Add(2 * time.Second)
	for srv.Calls(apitest.RouteList) < n && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	release()
	wg.Wait()

	for i, err := range errs {
		if !apiclient.IsSessionExpired(err) {
			t.Errorf("call %d: got %v, want session expired", i, err)
		}
	}
	if nav.count() != 1 {
		t.Errorf("redirects: got %d, want 1", nav.count())
	}
	if s.IsAuthenticated() {
		t.Error("session still authenticated")
	}
	if ti, _ := fs.Load(); ti != nil {
		t.Errorf("token still persisted: %+v", ti)
	}
}

func TestSession_NoRedirectWhenAlreadyOnLogin(t *testing.T) {
	s := New(newFileStore(t), nil)
	nav := &recordingNav{location: LoginPath}
	s.SetNavigator(nav)
	_, epoch := s.Token()
	if !s.Expire(epoch) {
		t.Fatal("first Expire should act")
	}
	if s.Expire(epoch) {
		t.Error("second Expire of the same epoch should be a no-op")
	}
	if nav.count() != 0 {
		t.Errorf("redirects: got %d, want 0", nav.count())
	}
}

func TestParseClaims(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID:           9,
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(exp)},
	})
	signed, err := tok.SignedString([]byte("k"))
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	c, err := ParseClaims(signed)
	if err != nil {
		t.Fatalf("ParseClaims failed: %v", err)
	}
	if c.UserID != 9 {
		t.Errorf("UserID: got %d", c.UserID)
	}
	if got := Expiry(signed); got == nil || !got.Equal(exp) {
		t.Errorf("Expiry: got %v, want %v", got, exp)
	}
	if Expiry("opaque-token") != nil {
		t.Error("opaque token should have no expiry")
	}
}
