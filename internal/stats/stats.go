// Package stats computes point-in-time summaries of a work item collection.
// Everything here is a pure function: the input slice is never mutated and
// nothing is cached, so a snapshot can never be stale relative to the
// collection it was computed from.
package stats

import (
	"time"

	"github.com/iliyamo/work-item-tracker/internal/model"
)

// Snapshot is a derived summary of a work item collection. Assigned and
// Created are scoped to the viewer the snapshot was computed for; the two
// counts are independent (an item can fall in neither, either, or both).
type Snapshot struct {
	Total          int     `json:"total"`
	Pending        int     `json:"pending"`
	InProgress     int     `json:"inProgress"`
	Completed      int     `json:"completed"`
	Cancelled      int     `json:"cancelled"`
	Overdue        int     `json:"overdue"`
	Assigned       int     `json:"assigned"`
	Created        int     `json:"created"`
	CompletionRate float64 `json:"completionRate"`
	OverdueRate    float64 `json:"overdueRate"`
}

// Compute folds the collection into a Snapshot. viewerID scopes the
// Assigned/Created counts; pass 0 for a global (unscoped) snapshot. now
// anchors the overdue check. Rates are 0 for an empty collection, never a
// division fault.
func Compute(items []model.WorkItem, viewerID uint64, now time.Time) Snapshot {
	var s Snapshot
	for _, w := range items {
		s.Total++
		switch w.Status {
		case model.StatusPending:
			s.Pending++
		case model.StatusInProgress:
			s.InProgress++
		case model.StatusCompleted:
			s.Completed++
		case model.StatusCancelled:
			s.Cancelled++
		}
		if Overdue(w, now) {
			s.Overdue++
		}
		if viewerID != 0 {
			if w.AssignedTo != nil && *w.AssignedTo == viewerID {
				s.Assigned++
			}
			if w.CreatedBy == viewerID {
				s.Created++
			}
		}
	}
	if s.Total > 0 {
		s.CompletionRate = float64(s.Completed) / float64(s.Total)
		s.OverdueRate = float64(s.Overdue) / float64(s.Total)
	}
	return s
}

// Overdue reports whether the item's due date has passed. The comparison is
// calendar-based: an item is overdue only when its due date is strictly
// before the date of now, and only while it can still be acted on (completed
// and cancelled items are never overdue).
func Overdue(w model.WorkItem, now time.Time) bool {
	if w.DueDate == nil {
		return false
	}
	if w.Status == model.StatusCompleted || w.Status == model.StatusCancelled {
		return false
	}
	due := dateOnly(*w.DueDate)
	today := dateOnly(now)
	return due.Before(today)
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
