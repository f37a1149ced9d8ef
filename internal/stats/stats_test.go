package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/iliyamo/work-item-tracker/internal/model"
)

func datePtr(t time.Time) *time.Time { return &t }
func u64Ptr(n uint64) *uint64        { return &n }

func item(status string, due *time.Time) model.WorkItem {
	return model.WorkItem{Status: status, DueDate: due, IsActive: true}
}

func TestComputeEmptyCollection(t *testing.T) {
	s := Compute(nil, 1, time.Now())
	assert.Equal(t, 0, s.Total)
	assert.Equal(t, 0.0, s.CompletionRate)
	assert.Equal(t, 0.0, s.OverdueRate)
}

func TestComputeCountsAndRates(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	past := now.AddDate(0, 0, -3)

	items := []model.WorkItem{
		item(model.StatusPending, datePtr(past)),
		item(model.StatusInProgress, nil),
		item(model.StatusCompleted, datePtr(past)),
		item(model.StatusCancelled, datePtr(past)),
	}

	s := Compute(items, 0, now)
	assert.Equal(t, 4, s.Total)
	assert.Equal(t, 1, s.Pending)
	assert.Equal(t, 1, s.InProgress)
	assert.Equal(t, 1, s.Completed)
	assert.Equal(t, 1, s.Cancelled)
	// Only the pending item counts as overdue: completed and cancelled items
	// are past acting on even when their date lies in the past.
	assert.Equal(t, 1, s.Overdue)
	assert.InDelta(t, 0.25, s.CompletionRate, 1e-9)
	assert.InDelta(t, 0.25, s.OverdueRate, 1e-9)
}

func TestComputeViewerScoping(t *testing.T) {
	now := time.Now()
	items := []model.WorkItem{
		{Status: model.StatusPending, CreatedBy: 1, AssignedTo: u64Ptr(2), IsActive: true},
		{Status: model.StatusPending, CreatedBy: 2, AssignedTo: u64Ptr(1), IsActive: true},
		{Status: model.StatusPending, CreatedBy: 1, AssignedTo: u64Ptr(1), IsActive: true},
		{Status: model.StatusPending, CreatedBy: 2, IsActive: true},
	}

	s := Compute(items, 1, now)
	assert.Equal(t, 2, s.Assigned)
	assert.Equal(t, 2, s.Created)

	// viewerID 0 means unscoped: the per-viewer counts stay zero.
	s = Compute(items, 0, now)
	assert.Equal(t, 0, s.Assigned)
	assert.Equal(t, 0, s.Created)
}

func TestOverdueCalendarBoundary(t *testing.T) {
	now := time.Date(2026, 8, 28, 23, 59, 0, 0, time.UTC)

	// Due today is not overdue, regardless of the time of day on either side.
	today := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	assert.False(t, Overdue(item(model.StatusPending, datePtr(today)), now))

	yesterday := today.AddDate(0, 0, -1)
	assert.True(t, Overdue(item(model.StatusPending, datePtr(yesterday)), now))
	assert.True(t, Overdue(item(model.StatusInProgress, datePtr(yesterday)), now))

	tomorrow := today.AddDate(0, 0, 1)
	assert.False(t, Overdue(item(model.StatusPending, datePtr(tomorrow)), now))

	// No due date, or a terminal status, is never overdue.
	assert.False(t, Overdue(item(model.StatusPending, nil), now))
	assert.False(t, Overdue(item(model.StatusCompleted, datePtr(yesterday)), now))
	assert.False(t, Overdue(item(model.StatusCancelled, datePtr(yesterday)), now))
}
