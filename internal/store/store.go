// Package store holds the in-memory todo list and keeps it consistent
// with the server through optimistic mutations that roll back on failure.
package store

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/Makepad-fr/tada/internal/model"
)

// TodoAPI is the part of the API client the store calls.
type TodoAPI interface {
	ListTodos(ctx context.Context) ([]model.Item, error)
	CreateTodo(ctx context.Context, title, description, imageURL string) (model.Item, error)
	UpdateTodo(ctx context.Context, id uint, cs model.ChangeSet) (model.Item, error)
	UpdateTodoStatus(ctx context.Context, id uint, status model.Status) (model.Item, error)
	DeleteTodo(ctx context.Context, id uint) error
}

// Store owns the list. Items are replaced whole, never edited in place, so
// readers always see a consistent slice.
type Store struct {
	api TodoAPI
	log *slog.Logger

	mu       sync.RWMutex
	items    []model.Item
	err      error
	loading  bool
	onChange []func()

	locksMu sync.Mutex
	locks   map[uint]*itemLock
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// New returns an empty store.
func New(api TodoAPI, opts ...Option) *Store {
	s := &Store{
		api:   api,
		log:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		items: []model.Item{},
		locks: map[uint]*itemLock{},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// OnChange registers fn to run after every list substitution.
func (s *Store) OnChange(fn func()) {
	s.mu.Lock()
	s.onChange = append(s.onChange, fn)
	s.mu.Unlock()
}

// Items returns a copy of the list, newest first.
func (s *Store) Items() []model.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Item, len(s.items))
	copy(out, s.items)
	return out
}

// Get returns the item with id.
func (s *Store) Get(id uint) (model.Item, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := indexOf(s.items, id)
	if i < 0 {
		return model.Item{}, false
	}
	return s.items[i], true
}

// Err is the error recorded by the last Load, if any.
func (s *Store) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Loading reports whether a Load is in flight.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Load replaces the list with the server's. On failure the list is left
// empty and the error is recorded as well as returned.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	s.loading = true
	s.err = nil
	s.mu.Unlock()

	items, err := s.api.ListTodos(ctx)

	s.mu.Lock()
	s.loading = false
	if err != nil {
		s.items = []model.Item{}
		s.err = err
	} else {
		s.items = append([]model.Item(nil), items...)
	}
	s.mu.Unlock()
	s.notify()

	if err != nil {
		s.log.Warn("load todos failed", "err", err)
		return err
	}
	s.log.Debug("loaded todos", "count", len(items))
	return nil
}

// Add creates an item on the server and prepends the returned item. It is
// not optimistic: nothing changes locally until the server assigned an id.
func (s *Store) Add(ctx context.Context, title, description, imageURL string) (model.Item, error) {
	if strings.TrimSpace(title) == "" {
		return model.Item{}, model.Invalid("title", "cannot be empty")
	}
	it, err := s.api.CreateTodo(ctx, title, description, imageURL)
	if err != nil {
		s.log.Warn("add todo failed", "err", err)
		return model.Item{}, err
	}
	s.replace(func(items []model.Item) []model.Item {
		return append([]model.Item{it}, items...)
	})
	s.log.Info("added todo", "id", it.ID)
	return it, nil
}

// ApplyEdit applies cs to item id optimistically, then sends the content
// patch and the status update concurrently. If either fails the item is
// restored to its pre-edit snapshot. An empty change-set is a no-op.
//
// When exactly one of two calls failed, the error is a *PartialUpdateError
// naming the part the server kept.
func (s *Store) ApplyEdit(ctx context.Context, id uint, cs model.ChangeSet) error {
	if cs.Title != nil && strings.TrimSpace(*cs.Title) == "" {
		return model.Invalid("title", "cannot be empty")
	}
	if cs.Status != nil {
		if _, err := model.ParseStatus(string(*cs.Status)); err != nil {
			return model.Invalid("status", err.Error())
		}
	}
	if cs.Empty() {
		return nil
	}

	unlock := s.lockItem(id)
	defer unlock()

	var (
		contentRes, statusRes model.Item
		contentErr, statusErr error
	)
	err := s.optimistic(
		func(items []model.Item) ([]model.Item, undoFunc, error) {
			i := indexOf(items, id)
			if i < 0 {
				return nil, nil, fmt.Errorf("todo %d: %w", id, ErrNotFound)
			}
			snapshot := items[i]
			next := cloneWith(items, i, snapshot.Apply(cs))
			return next, func(cur []model.Item) []model.Item {
				if j := indexOf(cur, id); j >= 0 {
					return cloneWith(cur, j, snapshot)
				}
				return cur
			}, nil
		},
		func() error {
			// A plain Group: one failure must not cancel the sibling call,
			// both have to settle before the result is judged.
			var g errgroup.Group
			if cs.HasContent() {
				g.Go(func() error {
					contentRes, contentErr = s.api.UpdateTodo(ctx, id, cs)
					return contentErr
				})
			}
			if cs.HasStatus() {
				g.Go(func() error {
					statusRes, statusErr = s.api.UpdateTodoStatus(ctx, id, *cs.Status)
					return statusErr
				})
			}
			return g.Wait()
		},
	)
	if err != nil {
		s.log.Warn("edit todo failed, rolled back", "id", id, "err", err)
		if cs.HasContent() && cs.HasStatus() && (contentErr == nil) != (statusErr == nil) {
			p := &PartialUpdateError{ID: id, Err: err}
			if contentErr == nil {
				p.Committed = PartContent
			} else {
				p.Committed = PartStatus
			}
			return p
		}
		return err
	}

	// With a single call the server's copy is authoritative.
	switch {
	case cs.HasContent() && !cs.HasStatus():
		s.reconcile(contentRes)
	case cs.HasStatus() && !cs.HasContent():
		s.reconcile(statusRes)
	}
	s.log.Info("edited todo", "id", id)
	return nil
}

// Remove deletes item id locally first, then on the server. On failure the
// item is put back at its old index in the current list rather than
// restoring the whole pre-delete list, so changes other calls made in the
// meantime survive. Without concurrent mutations the two are identical.
func (s *Store) Remove(ctx context.Context, id uint) error {
	unlock := s.lockItem(id)
	defer unlock()

	err := s.optimistic(
		func(items []model.Item) ([]model.Item, undoFunc, error) {
			i := indexOf(items, id)
			if i < 0 {
				return nil, nil, fmt.Errorf("todo %d: %w", id, ErrNotFound)
			}
			removed := items[i]
			next := make([]model.Item, 0, len(items)-1)
			next = append(next, items[:i]...)
			next = append(next, items[i+1:]...)
			return next, func(cur []model.Item) []model.Item {
				if indexOf(cur, id) >= 0 {
					return cur
				}
				at := min(i, len(cur))
				out := make([]model.Item, 0, len(cur)+1)
				out = append(out, cur[:at]...)
				out = append(out, removed)
				return append(out, cur[at:]...)
			}, nil
		},
		func() error { return s.api.DeleteTodo(ctx, id) },
	)
	if err != nil {
		s.log.Warn("delete todo failed, restored", "id", id, "err", err)
		return err
	}
	s.log.Info("deleted todo", "id", id)
	return nil
}

// reconcile swaps in the server's copy of an item if it is still listed.
func (s *Store) reconcile(it model.Item) {
	if it.ID == 0 {
		return
	}
	s.replace(func(items []model.Item) []model.Item {
		if i := indexOf(items, it.ID); i >= 0 {
			return cloneWith(items, i, it)
		}
		return items
	})
}

// replace substitutes the list with fn(current) and notifies listeners.
func (s *Store) replace(fn func([]model.Item) []model.Item) {
	s.mu.Lock()
	s.items = fn(s.items)
	s.mu.Unlock()
	s.notify()
}

func (s *Store) notify() {
	s.mu.RLock()
	fns := append([]func(){}, s.onChange...)
	s.mu.RUnlock()
	for _, fn := range fns {
		fn()
	}
}

func indexOf(items []model.Item, id uint) int {
	for i := range items {
		if items[i].ID == id {
			return i
		}
	}
	return -1
}

// cloneWith returns a copy of items with position i set to it.
func cloneWith(items []model.Item, i int, it model.Item) []model.Item {
	out := make([]model.Item, len(items))
	copy(out, items)
	out[i] = it
	return out
}
