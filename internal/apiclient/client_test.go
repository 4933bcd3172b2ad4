package apiclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/Makepad-fr/tada/internal/apitest"
	"github.com/Makepad-fr/tada/internal/model"
)

type fakeCreds struct {
	mu      sync.Mutex
	token   string
	epoch   uint64
	expired []uint64
}

func (f *fakeCreds) Token() (string, uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token, f.epoch
}

func (f *fakeCreds) Expire(epoch uint64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expired = append(f.expired, epoch)
	return true
}

func TestClient_AttachesBearerAndJSONHeaders(t *testing.T) {
	var got http.Header
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		_, _ = w.Write([]byte(`[]`))
	}))
	defer ts.Close()

	c := New(ts.URL, &fakeCreds{token: "abc", epoch: 1})
	if _, err := c.ListTodos(context.Background()); err != nil {
		t.Fatalf("ListTodos failed: %v", err)
	}
	if got.Get("Authorization") != "Bearer abc" {
		t.Errorf("Authorization: got %q", got.Get("Authorization"))
	}
	if got.Get("Content-Type") != "application/json" {
		t.Errorf("Content-Type: got %q", got.Get("Content-Type"))
	}
	if got.Get("X-Request-ID") == "" {
		t.Error("X-Request-ID missing")
	}
}

func TestClient_NoTokenNoAuthorizationHeader(t *testing.T) {
	var auth string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer ts.Close()

	c := New(ts.URL, &fakeCreds{})
	if _, err := c.ListTodos(context.Background()); err != nil {
		t.Fatalf("ListTodos failed: %v", err)
	}
	if auth != "" {
		t.Errorf("Authorization: got %q, want empty", auth)
	}
}

func TestClient_LoginDoesNotSendToken(t *testing.T) {
	srv := apitest.New()
	defer srv.Close()
	srv.AddUser("a@b.c", "secret1")

	creds := &fakeCreds{token: "stale", epoch: 3}
	c := New(srv.APIURL(), creds)
	res, err := c.Login(context.Background(), "a@b.c", "secret1")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if res.Token == "" || res.User == nil || res.User.Email != "a@b.c" {
		t.Errorf("Login result: got %+v", res)
	}

	_, err = c.Login(context.Background(), "a@b.c", "wrong")
	if err == nil {
		t.Fatal("expected error for wrong password")
	}
	if IsSessionExpired(err) {
		t.Error("login 401 must not be reported as session expiry")
	}
	if len(creds.expired) != 0 {
		t.Errorf("Expire called %d times on login failure", len(creds.expired))
	}
	if Message(err) != "Invalid email or password" {
		t.Errorf("Message: got %q", Message(err))
	}
}

func TestClient_UnauthorizedExpiresEpoch(t *testing.T) {
	srv := apitest.New()
	defer srv.Close()

	creds := &fakeCreds{token: "not-issued", epoch: 7}
	c := New(srv.APIURL(), creds)
	_, err := c.ListTodos(context.Background())
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
	if StatusCode(err) != http.StatusUnauthorized {
		t.Errorf("StatusCode: got %d", StatusCode(err))
	}
	if len(creds.expired) != 1 || creds.expired[0] != 7 {
		t.Errorf("expired epochs: got %v, want [7]", creds.expired)
	}
}

func TestClient_ErrorNormalization(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{"server message", http.StatusBadRequest, `{"error":"Title is required"}`, "Title is required"},
		{"empty body falls back", http.StatusInternalServerError, ``, "Failed to add todo"},
		{"non-json body falls back", http.StatusBadGateway, `<html>bad gateway</html>`, "Failed to add todo"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer ts.Close()

			c := New(ts.URL, &fakeCreds{token: "t"})
			_, err := c.CreateTodo(context.Background(), "x", "", "")
			var ae *Error
			if !errors.As(err, &ae) {
				t.Fatalf("expected *Error, got %T (%v)", err, err)
			}
			if ae.Status != tt.status {
				t.Errorf("Status: got %d, want %d", ae.Status, tt.status)
			}
			if ae.Message != tt.wantMsg {
				t.Errorf("Message: got %q, want %q", ae.Message, tt.wantMsg)
			}
		})
	}
}

func TestClient_TransportErrorIsNormalized(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	c := New(url, &fakeCreds{token: "t"})
	err := c.DeleteTodo(context.Background(), 1)
	var ae *Error
	if !errors.As(err, &ae) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if ae.Status != 0 || ae.Message != "Failed to delete todo" || ae.Err == nil {
		t.Errorf("got %+v", ae)
	}
}

func TestClient_TodoRoundTrip(t *testing.T) {
	srv := apitest.New()
	defer srv.Close()
	token := srv.AddUser("a@b.c", "secret1")
	c := New(srv.APIURL(), &fakeCreds{token: token, epoch: 1})
	ctx := context.Background()

	created, err := c.CreateTodo(ctx, "Buy milk", "2L", "")
	if err != nil {
		t.Fatalf("CreateTodo failed: %v", err)
	}
	if created.ID == 0 || created.Status != model.StatusPending {
		t.Fatalf("created: got %+v", created)
	}

	title := "Buy oat milk"
	updated, err := c.UpdateTodo(ctx, created.ID, model.ChangeSet{Title: &title})
	if err != nil {
		t.Fatalf("UpdateTodo failed: %v", err)
	}
	if updated.Title != title || updated.Description != "2L" {
		t.Errorf("updated: got %+v", updated)
	}

	done, err := c.UpdateTodoStatus(ctx, created.ID, model.StatusDone)
	if err != nil {
		t.Fatalf("UpdateTodoStatus failed: %v", err)
	}
	if done.Status != model.StatusDone {
		t.Errorf("status: got %q", done.Status)
	}

	if err := c.DeleteTodo(ctx, created.ID); err != nil {
		t.Fatalf("DeleteTodo failed: %v", err)
	}
	items, err := c.ListTodos(ctx)
	if err != nil {
		t.Fatalf("ListTodos failed: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("items after delete: got %d", len(items))
	}
}

func TestClient_UploadImageMultipart(t *testing.T) {
	srv := apitest.New()
	defer srv.Close()
	token := srv.AddUser("a@b.c", "secret1")
	c := New(srv.APIURL(), &fakeCreds{token: token, epoch: 1})

	url, err := c.UploadImage(context.Background(), "cat.png", "image/png", strings.NewReader("png-bytes"))
	if err != nil {
		t.Fatalf("UploadImage failed: %v", err)
	}
	b, ok := srv.Upload(url)
	if !ok || string(b) != "png-bytes" {
		t.Errorf("stored upload: got %q (found=%v)", b, ok)
	}
}

func TestClient_SignupAcceptsBareUser(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":4,"email":"x@y.z"}`))
	}))
	defer ts.Close()

	u, err := New(ts.URL, nil).Signup(context.Background(), "x@y.z", "secret1")
	if err != nil {
		t.Fatalf("Signup failed: %v", err)
	}
	if u.ID != 4 || u.Email != "x@y.z" {
		t.Errorf("user: got %+v", u)
	}
}
