// Package apitest is an in-memory stand-in for the todo HTTP API, used by
// package tests. Routes mirror the real server; failures can be injected
// per route.
package apitest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"

	"github.com/Makepad-fr/tada/internal/model"
)

// Route names accepted by Fail and Calls.
const (
	RouteLogin  = "login"
	RouteSignup = "signup"
	RouteList   = "list"
	RouteCreate = "create"
	RouteUpdate = "update"
	RouteStatus = "status"
	RouteDelete = "delete"
	RouteUpload = "upload"
)

type failure struct {
	status  int
	message string
	times   int // <0 means forever
}

// Server is a fake todo API. Zero value is not usable; call New.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	users    map[string]userRecord // by email
	tokens   map[string]uint       // token -> user id
	todos    []model.Item          // newest first
	nextID   uint
	nextUser uint
	issued   int
	failures map[string]*failure
	calls    map[string]int
	gates    map[string]chan struct{}
	uploads  map[string][]byte
}

type userRecord struct {
	user     model.User
	password string
}

// New starts a fake API server. Close it with Close.
func New() *Server {
	s := &Server{
		users:    map[string]userRecord{},
		tokens:   map[string]uint{},
		nextID:   1,
		nextUser: 1,
		failures: map[string]*failure{},
		calls:    map[string]int{},
		gates:    map[string]chan struct{}{},
		uploads:  map[string][]byte{},
	}
	s.Server = httptest.NewServer(s.router())
	return s
}

func (s *Server) router() http.Handler {
	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/auth/login", s.handle(RouteLogin, false, s.login)).Methods(http.MethodPost)
	api.HandleFunc("/auth/signup", s.handle(RouteSignup, false, s.signup)).Methods(http.MethodPost)
	api.HandleFunc("/todos", s.handle(RouteList, true, s.list)).Methods(http.MethodGet)
	api.HandleFunc("/todos", s.handle(RouteCreate, true, s.create)).Methods(http.MethodPost)
	api.HandleFunc("/todos/{id:[0-9]+}", s.handle(RouteUpdate, true, s.update)).Methods(http.MethodPatch)
	api.HandleFunc("/todos/{id:[0-9]+}/status", s.handle(RouteStatus, true, s.status)).Methods(http.MethodPut)
	api.HandleFunc("/todos/{id:[0-9]+}", s.handle(RouteDelete, true, s.remove)).Methods(http.MethodDelete)
	api.HandleFunc("/uploads/images", s.handle(RouteUpload, true, s.upload)).Methods(http.MethodPost)
	return r
}

// URL of the API root, suitable as a client base URL.
func (s *Server) APIURL() string { return s.Server.URL + "/api" }

// AddUser registers an account and returns a valid token for it.
func (s *Server) AddUser(email, password string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.addUserLocked(email, password)
	return s.issueLocked(u.ID)
}

// TokenTTL is the lifetime of issued tokens.
const TokenTTL = 24 * time.Hour

var signingKey = []byte("apitest")

// issueLocked signs an HS256 token carrying user_id, as the real server
// does, and records it as valid.
func (s *Server) issueLocked(userID uint) string {
	s.issued++
	now := time.Now()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"jti":     strconv.Itoa(s.issued),
		"iat":     now.Unix(),
		"exp":     now.Add(TokenTTL).Unix(),
	})
	signed, err := tok.SignedString(signingKey)
	if err != nil {
		panic(fmt.Sprintf("apitest: sign token: %v", err))
	}
	s.tokens[signed] = userID
	return signed
}

func (s *Server) addUserLocked(email, password string) model.User {
	u := model.User{ID: s.nextUser, Email: email, CreatedAt: time.Now().UTC()}
	s.nextUser++
	s.users[email] = userRecord{user: u, password: password}
	return u
}

// RevokeAll invalidates every issued token.
func (s *Server) RevokeAll() {
	s.mu.Lock()
	s.tokens = map[string]uint{}
	s.mu.Unlock()
}

// Seed replaces the stored todos (given in list order) and returns them
// with ids assigned.
func (s *Server) Seed(items ...model.Item) []model.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.todos = nil
	for _, it := range items {
		it.ID = s.nextID
		s.nextID++
		if it.Status == "" {
			it.Status = model.StatusPending
		}
		s.todos = append(s.todos, it)
	}
	out := make([]model.Item, len(s.todos))
	copy(out, s.todos)
	return out
}

// Todos returns the server-side list.
func (s *Server) Todos() []model.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Item, len(s.todos))
	copy(out, s.todos)
	return out
}

// Fail makes the next n calls of route answer with status and message.
// n < 0 fails forever.
func (s *Server) Fail(route string, status int, message string, n int) {
	s.mu.Lock()
	s.failures[route] = &failure{status: status, message: message, times: n}
	s.mu.Unlock()
}

// Hold blocks calls of route until the returned release func is called.
func (s *Server) Hold(route string) (release func()) {
	ch := make(chan struct{})
	s.mu.Lock()
	s.gates[route] = ch
	s.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.gates, route)
			s.mu.Unlock()
			close(ch)
		})
	}
}

// Calls reports how many requests route has received.
func (s *Server) Calls(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[route]
}

// TotalCalls reports requests across all routes.
func (s *Server) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

// Upload returns the bytes stored for an uploaded image URL.
func (s *Server) Upload(url string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.uploads[url]
	return b, ok
}

type handlerFunc func(w http.ResponseWriter, r *http.Request, userID uint)

func (s *Server) handle(route string, authed bool, h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls[route]++
		gate := s.gates[route]
		f := s.failures[route]
		if f != nil && f.times != 0 {
			if f.times > 0 {
				f.times--
			}
		} else {
			f = nil
		}
		s.mu.Unlock()

		if gate != nil {
			<-gate
		}
		if f != nil {
			writeError(w, f.status, f.message)
			return
		}

		var userID uint
		if authed {
			token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			s.mu.Lock()
			id, ok := s.tokens[token]
			s.mu.Unlock()
			if !ok {
				writeError(w, http.StatusUnauthorized, "Invalid or expired token")
				return
			}
			userID = id
		}
		h(w, r, userID)
	}
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) login(w http.ResponseWriter, r *http.Request, _ uint) {
	var c credentials
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	s.mu.Lock()
	rec, ok := s.users[c.Email]
	if !ok || rec.password != c.Password {
		s.mu.Unlock()
		writeError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	token := s.issueLocked(rec.user.ID)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"token": token, "user": rec.user})
}

func (s *Server) signup(w http.ResponseWriter, r *http.Request, _ uint) {
	var c credentials
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil || c.Email == "" || len(c.Password) < 6 {
		writeError(w, http.StatusBadRequest, "Validation failed")
		return
	}
	s.mu.Lock()
	if _, exists := s.users[c.Email]; exists {
		s.mu.Unlock()
		writeError(w, http.StatusConflict, "User with this email already exists")
		return
	}
	u := s.addUserLocked(c.Email, c.Password)
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, map[string]any{"user": u})
}

func (s *Server) list(w http.ResponseWriter, _ *http.Request, _ uint) {
	writeJSON(w, http.StatusOK, s.Todos())
}

func (s *Server) create(w http.ResponseWriter, r *http.Request, _ uint) {
	var body struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		ImageURL    string `json:"image_url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || strings.TrimSpace(body.Title) == "" {
		writeError(w, http.StatusBadRequest, "Title is required")
		return
	}
	now := time.Now().UTC()
	s.mu.Lock()
	it := model.Item{
		ID: s.nextID, Title: body.Title, Description: body.Description,
		ImageURL: body.ImageURL, Status: model.StatusPending,
		CreatedAt: now, UpdatedAt: now,
	}
	s.nextID++
	s.todos = append([]model.Item{it}, s.todos...)
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, it)
}

func (s *Server) update(w http.ResponseWriter, r *http.Request, _ uint) {
	var cs model.ChangeSet
	if err := json.NewDecoder(r.Body).Decode(&cs); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	s.mutate(w, r, func(it *model.Item) { *it = it.Apply(model.ChangeSet{Title: cs.Title, Description: cs.Description, ImageURL: cs.ImageURL}) })
}

func (s *Server) status(w http.ResponseWriter, r *http.Request, _ uint) {
	var body struct {
		Status model.Status `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if _, err := model.ParseStatus(string(body.Status)); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid status")
		return
	}
	s.mutate(w, r, func(it *model.Item) { it.Status = body.Status })
}

func (s *Server) mutate(w http.ResponseWriter, r *http.Request, fn func(*model.Item)) {
	id, _ := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.todos {
		if s.todos[i].ID == uint(id) {
			fn(&s.todos[i])
			s.todos[i].UpdatedAt = time.Now().UTC()
			writeJSON(w, http.StatusOK, s.todos[i])
			return
		}
	}
	writeError(w, http.StatusNotFound, "Todo not found")
}

func (s *Server) remove(w http.ResponseWriter, r *http.Request, _ uint) {
	id, _ := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.todos {
		if s.todos[i].ID == uint(id) {
			s.todos = append(s.todos[:i], s.todos[i+1:]...)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	writeError(w, http.StatusNotFound, "Todo not found")
}

func (s *Server) upload(w http.ResponseWriter, r *http.Request, userID uint) {
	f, hdr, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Missing 'image' file in form data")
		return
	}
	defer func() { _ = f.Close() }()
	b, err := io.ReadAll(f)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Could not process file upload")
		return
	}
	s.mu.Lock()
	url := fmt.Sprintf("%s/images/%d/%d-%s", s.Server.URL, userID, len(s.uploads)+1, hdr.Filename)
	s.uploads[url] = b
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"image_url": url})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
