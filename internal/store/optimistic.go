package store

import (
	"sync"

	"github.com/Makepad-fr/tada/internal/model"
)

// undoFunc rebuilds the list from its current state after a failed call.
// It receives the live list rather than the pre-mutation one so that
// concurrent changes to other items survive the rollback.
type undoFunc func(current []model.Item) []model.Item

// optimistic runs the snapshot, apply, await, commit-or-restore cycle.
// apply derives the optimistic list and the matching undo from the current
// list; if it errors nothing changes and call is never made.
func (s *Store) optimistic(apply func([]model.Item) ([]model.Item, undoFunc, error), call func() error) error {
	var (
		undo     undoFunc
		applyErr error
	)
	s.mu.Lock()
	next, u, err := apply(s.items)
	if err != nil {
		applyErr = err
	} else {
		s.items, undo = next, u
	}
	s.mu.Unlock()
	if applyErr != nil {
		return applyErr
	}
	s.notify()

	if err := call(); err != nil {
		s.replace(undo)
		return err
	}
	return nil
}

// itemLock serialises mutations of one item. refs counts holders and
// waiters so the entry can be dropped when idle.
type itemLock struct {
	mu   sync.Mutex
	refs int
}

// lockItem blocks until the caller owns item id and returns the release.
func (s *Store) lockItem(id uint) func() {
	s.locksMu.Lock()
	l := s.locks[id]
	if l == nil {
		l = &itemLock{}
		s.locks[id] = l
	}
	l.refs++
	s.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, id)
		}
		s.locksMu.Unlock()
	}
}
