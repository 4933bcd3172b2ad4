package model

import (
	"fmt"
	"strings"
	"time"
)

// Status is the lifecycle state of a todo item as the server spells it.
type Status string

const (
	StatusPending    Status = "Pending"
	StatusInProgress Status = "In Progress"
	StatusDone       Status = "Done"
)

// Statuses lists every status in display order.
var Statuses = []Status{StatusPending, StatusInProgress, StatusDone}

// ParseStatus accepts the wire form plus CLI-friendly spellings
// ("in-progress", "inprogress", "todo", "done").
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pending", "todo":
		return StatusPending, nil
	case "in progress", "in-progress", "in_progress", "inprogress", "doing":
		return StatusInProgress, nil
	case "done", "complete", "completed":
		return StatusDone, nil
	}
	return "", fmt.Errorf("unknown status %q (want pending, in-progress or done)", s)
}

// Next cycles Pending -> In Progress -> Done -> Pending.
func (s Status) Next() Status {
	switch s {
	case StatusPending:
		return StatusInProgress
	case StatusInProgress:
		return StatusDone
	default:
		return StatusPending
	}
}

// Item is the domain model for a todo entry. ID is assigned by the server.
type Item struct {
	ID          uint      `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Status      Status    `json:"status"`
	ImageURL    string    `json:"image_url,omitempty"`
	CreatedAt   time.Time `json:"createdAt,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt,omitempty"`
}

// Done reports whether the item is finished.
func (it Item) Done() bool { return it.Status == StatusDone }

// Apply returns a copy of it with every field present in cs overwritten.
func (it Item) Apply(cs ChangeSet) Item {
	if cs.Title != nil {
		it.Title = *cs.Title
	}
	if cs.Description != nil {
		it.Description = *cs.Description
	}
	if cs.ImageURL != nil {
		it.ImageURL = *cs.ImageURL
	}
	if cs.Status != nil {
		it.Status = *cs.Status
	}
	return it
}

// User is the authenticated account profile.
type User struct {
	ID        uint      `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt,omitempty"`

	// FromStorage marks the placeholder profile used after a session is
	// restored from a persisted token, before the server has been asked.
	FromStorage bool `json:"-"`
}

// AuthResult is what a successful login yields.
type AuthResult struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}
