package cli

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/Makepad-fr/tada/internal/apiclient"
	"github.com/Makepad-fr/tada/internal/config"
	"github.com/Makepad-fr/tada/internal/form"
	"github.com/Makepad-fr/tada/internal/logging"
	"github.com/Makepad-fr/tada/internal/session"
	"github.com/Makepad-fr/tada/internal/store"
	"github.com/Makepad-fr/tada/internal/upload"
)

// Env is everything a command needs, built once per invocation.
type Env struct {
	Config  *config.Loaded
	Log     *slog.Logger
	Tokens  *session.FileStore
	Session *session.Session
	Auth    *session.Manager
	Client  *apiclient.Client
	Store   *store.Store

	closeLog func() error
}

// NewEnv wires the components from cfg and restores the persisted
// session. logOut overrides the configured log destination when non-nil.
func NewEnv(cfg *config.Loaded, getenv func(string) string, logOut io.Writer) (*Env, error) {
	closeLog := func() error { return nil }
	if logOut == nil {
		w, c, err := logging.OpenFile(cfg.LogFile)
		if err != nil {
			return nil, err
		}
		logOut, closeLog = w, c
	}
	log := logging.NewLogger(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, Writer: logOut})

	tokens := session.NewFileStore(cfg.HomeDir)
	if getenv != nil {
		tokens.Getenv = getenv
	}
	sess := session.New(tokens, log.With("component", "session"))
	client := apiclient.New(cfg.APIBaseURL, sess,
		apiclient.WithTimeout(cfg.RequestTimeout),
		apiclient.WithLogger(log.With("component", "api")))
	e := &Env{
		Config:   cfg,
		Log:      log,
		Tokens:   tokens,
		Session:  sess,
		Auth:     session.NewManager(sess, client),
		Client:   client,
		Store:    store.New(client, store.WithLogger(log.With("component", "store"))),
		closeLog: closeLog,
	}
	if err := e.Auth.Restore(); err != nil {
		_ = closeLog()
		return nil, fmt.Errorf("restore session: %w", err)
	}
	return e, nil
}

// NewForm returns a form controller whose uploads go through the client.
func (e *Env) NewForm() *form.Controller {
	log := e.Log.With("component", "upload")
	return form.New(func() *upload.Coordinator {
		return upload.New(e.Client, upload.WithLogger(log))
	}, e.Log.With("component", "form"))
}

// Close flushes the log destination.
func (e *Env) Close() error {
	if e == nil || e.closeLog == nil {
		return nil
	}
	return e.closeLog()
}

// terminalNav stands in for page navigation in one-shot commands: a
// redirect to the login entry point is reported as a hint.
type terminalNav struct {
	mu       sync.Mutex
	location string
	hinted   bool
}

func (n *terminalNav) Location() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.location
}

func (n *terminalNav) Navigate(path string) {
	n.mu.Lock()
	n.location = path
	first := !n.hinted && path == session.LoginPath
	n.hinted = n.hinted || first
	n.mu.Unlock()
	if first {
		warn("your session has expired. Run: tada auth login")
	}
}
