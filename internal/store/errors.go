package store

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a mutation targets an id not in the list.
var ErrNotFound = errors.New("todo not found")

// Part names one half of a combined edit.
type Part string

const (
	PartContent Part = "content"
	PartStatus  Part = "status"
)

// PartialUpdateError reports an edit where the server accepted one call and
// rejected the other. The local item has been rolled back; a reload shows
// what the server kept.
type PartialUpdateError struct {
	ID        uint
	Committed Part
	Err       error
}

func (e *PartialUpdateError) Error() string {
	return fmt.Sprintf("todo %d: %s saved but the rest failed: %v", e.ID, e.Committed, e.Err)
}

func (e *PartialUpdateError) Unwrap() error { return e.Err }
