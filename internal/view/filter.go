// Package view derives what is displayed from the store's list.
package view

import (
	"fmt"
	"strings"

	"github.com/Makepad-fr/tada/internal/model"
)

// Filter selects which items are shown.
type Filter int

const (
	All Filter = iota
	Pending
	InProgress
	Done
	HideDone
)

var filterNames = map[Filter]string{
	All:        "all",
	Pending:    "pending",
	InProgress: "in-progress",
	Done:       "done",
	HideDone:   "hide-done",
}

func (f Filter) String() string {
	if n, ok := filterNames[f]; ok {
		return n
	}
	return fmt.Sprintf("filter(%d)", int(f))
}

// Label is the human title of the filter.
func (f Filter) Label() string {
	switch f {
	case Pending:
		return "Pending"
	case InProgress:
		return "In Progress"
	case Done:
		return "Done"
	case HideDone:
		return "Hide Done"
	default:
		return "All"
	}
}

// Next cycles through the filters in declaration order.
func (f Filter) Next() Filter { return (f + 1) % (HideDone + 1) }

// ParseFilter reads a filter name; empty means All.
func ParseFilter(s string) (Filter, error) {
	norm := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-")
	switch norm {
	case "", "all":
		return All, nil
	case "pending", "todo":
		return Pending, nil
	case "in-progress", "inprogress", "in progress":
		return InProgress, nil
	case "done":
		return Done, nil
	case "hide-done", "hidedone", "active", "open":
		return HideDone, nil
	}
	return All, fmt.Errorf("unknown filter %q (want all, pending, in-progress, done, hide-done)", s)
}

// Match reports whether it passes f.
func (f Filter) Match(it model.Item) bool {
	switch f {
	case Pending:
		return it.Status == model.StatusPending
	case InProgress:
		return it.Status == model.StatusInProgress
	case Done:
		return it.Status == model.StatusDone
	case HideDone:
		return it.Status != model.StatusDone
	default:
		return true
	}
}

// Project returns the items passing f in their original order. items is
// not modified.
func Project(items []model.Item, f Filter) []model.Item {
	out := make([]model.Item, 0, len(items))
	for _, it := range items {
		if f.Match(it) {
			out = append(out, it)
		}
	}
	return out
}

// Stats counts items per status.
type Stats struct {
	Pending, InProgress, Done int
}

// Total is the number of counted items.
func (s Stats) Total() int { return s.Pending + s.InProgress + s.Done }

// Count tallies items by status; unknown statuses count as pending.
func Count(items []model.Item) Stats {
	var s Stats
	for _, it := range items {
		switch it.Status {
		case model.StatusDone:
			s.Done++
		case model.StatusInProgress:
			s.InProgress++
		default:
			s.Pending++
		}
	}
	return s
}

// Group splits items by status, keeping order inside each group.
func Group(items []model.Item) map[model.Status][]model.Item {
	out := map[model.Status][]model.Item{}
	for _, st := range model.Statuses {
		out[st] = Project(items, statusFilter(st))
	}
	return out
}

func statusFilter(s model.Status) Filter {
	switch s {
	case model.StatusInProgress:
		return InProgress
	case model.StatusDone:
		return Done
	default:
		return Pending
	}
}
