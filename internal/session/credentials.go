package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Makepad-fr/tada/internal/store/jsonstore"
)

const (
	credFileName = "credentials.json"

	// TokenEnv overrides the persisted token when set.
	TokenEnv = "TADA_TOKEN"
)

// TokenInfo is the persisted credential.
type TokenInfo struct {
	Token     string     `json:"token"`
	Source    string     `json:"source"`     // "env" | "file"
	CreatedAt time.Time  `json:"created_at"` // when we saved to file
	ExpiresAt *time.Time `json:"expires_at"` // optional, from the JWT
}

// TokenStore is durable storage for the session token.
type TokenStore interface {
	// Load returns nil, nil when no token is stored.
	Load() (*TokenInfo, error)
	Save(TokenInfo) error
	Delete() error
}

// FileStore keeps the token in <Dir>/credentials.json (0600). The
// TADA_TOKEN environment variable takes precedence over the file.
type FileStore struct {
	Dir    string
	Getenv func(string) string
}

// NewFileStore returns a FileStore rooted at dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{Dir: dir, Getenv: os.Getenv}
}

// Path is the credentials file location.
func (f *FileStore) Path() string { return filepath.Join(f.Dir, credFileName) }

func (f *FileStore) getenv(k string) string {
	if f.Getenv == nil {
		return os.Getenv(k)
	}
	return f.Getenv(k)
}

func (f *FileStore) Load() (*TokenInfo, error) {
	// 1) env override
	if env := strings.TrimSpace(f.getenv(TokenEnv)); env != "" {
		return &TokenInfo{Token: StripBearer(env), Source: "env"}, nil
	}

	// 2) file
	var ti TokenInfo
	if err := jsonstore.Read(f.Path(), &ti); err != nil {
		if errors.Is(err, jsonstore.ErrNotFound) {
			return nil, nil // not logged in
		}
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	ti.Token = StripBearer(ti.Token)
	if ti.Token == "" {
		return nil, nil
	}
	return &ti, nil
}

func (f *FileStore) Save(ti TokenInfo) error {
	ti.Token = StripBearer(strings.TrimSpace(ti.Token))
	if ti.Token == "" {
		return fmt.Errorf("empty token")
	}
	ti.Source = "file"
	if ti.CreatedAt.IsZero() {
		ti.CreatedAt = time.Now()
	}
	if err := jsonstore.Write(f.Path(), ti, 0o600); err != nil {
		return fmt.Errorf("save credentials: %w", err)
	}
	return nil
}

func (f *FileStore) Delete() error {
	return jsonstore.Remove(f.Path())
}

// StripBearer drops a leading "Bearer " scheme.
func StripBearer(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(strings.ToLower(s), "bearer ") {
		return strings.TrimSpace(s[7:])
	}
	return s
}
