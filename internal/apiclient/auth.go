package apiclient

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/Makepad-fr/tada/internal/model"
)

type credentialsBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login exchanges credentials for a token. No bearer token is attached and
// a 401 here is a credential error, not a session expiry.
func (c *Client) Login(ctx context.Context, email, password string) (*model.AuthResult, error) {
	r, err := c.jsonRequest("login", http.MethodPost, "/auth/login", credentialsBody{email, password}, false, "Login failed")
	if err != nil {
		return nil, err
	}
	var out model.AuthResult
	if err := c.do(ctx, r, &out); err != nil {
		return nil, err
	}
	if out.Token == "" {
		return nil, &Error{Op: "login", Status: http.StatusOK, Message: "Login failed: server returned no token"}
	}
	return &out, nil
}

// Signup creates an account. It does not authenticate the session.
func (c *Client) Signup(ctx context.Context, email, password string) (*model.User, error) {
	r, err := c.jsonRequest("signup", http.MethodPost, "/auth/signup", credentialsBody{email, password}, false, "Signup failed")
	if err != nil {
		return nil, err
	}
	var raw json.RawMessage
	if err := c.do(ctx, r, &raw); err != nil {
		return nil, err
	}
	return decodeSignup(raw), nil
}

// decodeSignup accepts both {"user": {...}} and a bare user object.
func decodeSignup(raw json.RawMessage) *model.User {
	if len(raw) == 0 {
		return &model.User{}
	}
	var wrapped struct {
		User *model.User `json:"user"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.User != nil {
		return wrapped.User
	}
	var u model.User
	if err := json.Unmarshal(raw, &u); err == nil {
		return &u
	}
	return &model.User{}
}
