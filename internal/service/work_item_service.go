package service

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/work-item-tracker/internal/model"
	"github.com/iliyamo/work-item-tracker/internal/repository"
	"github.com/iliyamo/work-item-tracker/internal/stats"
)

// WorkItemStore is the slice of the work item repository the lifecycle
// manager needs.
type WorkItemStore interface {
	Create(ctx context.Context, w *model.WorkItem) error
	GetByID(ctx context.Context, id string, includeInactive bool) (model.WorkItem, error)
	List(ctx context.Context, f repository.WorkItemFilter) ([]model.WorkItem, error)
	Save(ctx context.Context, w *model.WorkItem) error
	SetActive(ctx context.Context, id string, active bool) error
	PermanentDelete(ctx context.Context, id string) error
}

// AssigneeStore resolves assignee references against existing accounts.
type AssigneeStore interface {
	GetByID(ctx context.Context, id uint64) (model.User, error)
	ListVerified(ctx context.Context) ([]model.User, error)
}

// WorkItemService owns the work item lifecycle: validated creation, partial
// updates with completedAt bookkeeping, soft delete/restore, bulk updates
// with per-id outcomes, and on-demand stats.
type WorkItemService struct {
	items WorkItemStore
	users AssigneeStore
	now   func() time.Time
}

func NewWorkItemService(items WorkItemStore, users AssigneeStore) *WorkItemService {
	return &WorkItemService{items: items, users: users, now: func() time.Time { return time.Now().UTC() }}
}

// CreateInput carries the caller-supplied fields for a new work item.
// Status and Priority are optional and default to pending/medium.
type CreateInput struct {
	Title       string
	Description string
	Status      string
	Priority    string
	Tags        []string
	DueDate     *time.Time
	AssignedTo  *uint64
}

// Patch describes a partial update. A nil pointer leaves the field
// untouched. DueDateSet/AssigneeSet distinguish "clear the field" (set with
// a nil value) from "leave unchanged" (not set).
type Patch struct {
	Title       *string
	Description *string
	Status      *string
	Priority    *string
	Tags        *[]string
	DueDate     *time.Time
	DueDateSet  bool
	AssignedTo  *uint64
	AssigneeSet bool
}

// BulkResult reports the outcome of one id within a bulk update.
type BulkResult struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// Create validates input, applies defaults and stores the item. The acting
// user becomes the immutable creator.
func (s *WorkItemService) Create(ctx context.Context, actorID uint64, in CreateInput) (model.WorkItem, error) {
	title := strings.TrimSpace(in.Title)
	description := strings.TrimSpace(in.Description)
	if title == "" || description == "" {
		return model.WorkItem{}, ErrValidation
	}
	status := in.Status
	if status == "" {
		status = model.StatusPending
	}
	priority := in.Priority
	if priority == "" {
		priority = model.PriorityMedium
	}
	if !model.ValidStatus(status) || !model.ValidPriority(priority) {
		return model.WorkItem{}, ErrValidation
	}
	if in.AssignedTo != nil {
		if err := s.resolveAssignee(ctx, *in.AssignedTo); err != nil {
			return model.WorkItem{}, err
		}
	}

	now := s.now()
	w := model.WorkItem{
		ID:          uuid.NewString(),
		Title:       title,
		Description: description,
		Status:      status,
		Priority:    priority,
		Tags:        normalizeTags(in.Tags),
		DueDate:     in.DueDate,
		CreatedBy:   actorID,
		AssignedTo:  in.AssignedTo,
		CreatedAt:   now,
		UpdatedAt:   now,
		IsActive:    true,
	}
	if status == model.StatusCompleted {
		t := now
		w.CompletedAt = &t
	}
	if err := s.items.Create(ctx, &w); err != nil {
		return model.WorkItem{}, err
	}
	return w, nil
}

// Get returns one active item.
func (s *WorkItemService) Get(ctx context.Context, id string) (model.WorkItem, error) {
	return s.items.GetByID(ctx, id, false)
}

// List returns items matching the filter.
func (s *WorkItemService) List(ctx context.Context, f repository.WorkItemFilter) ([]model.WorkItem, error) {
	return s.items.List(ctx, f)
}

// Update applies a partial update. Fields absent from the patch keep their
// prior value. completedAt is re-derived on every status change: entering
// completed stamps it with this update's time, leaving completed clears it.
// updatedAt is always refreshed. The fresh row is returned so callers can
// render read-after-write state.
func (s *WorkItemService) Update(ctx context.Context, id string, p Patch) (model.WorkItem, error) {
	w, err := s.items.GetByID(ctx, id, false)
	if err != nil {
		return model.WorkItem{}, err
	}
	now := s.now()

	if p.Title != nil {
		t := strings.TrimSpace(*p.Title)
		if t == "" {
			return model.WorkItem{}, ErrValidation
		}
		w.Title = t
	}
	if p.Description != nil {
		d := strings.TrimSpace(*p.Description)
		if d == "" {
			return model.WorkItem{}, ErrValidation
		}
		w.Description = d
	}
	if p.Status != nil {
		if !model.ValidStatus(*p.Status) {
			return model.WorkItem{}, ErrValidation
		}
		prev := w.Status
		w.Status = *p.Status
		if w.Status == model.StatusCompleted && prev != model.StatusCompleted {
			t := now
			w.CompletedAt = &t
		} else if w.Status != model.StatusCompleted {
			w.CompletedAt = nil
		}
	}
	if p.Priority != nil {
		if !model.ValidPriority(*p.Priority) {
			return model.WorkItem{}, ErrValidation
		}
		w.Priority = *p.Priority
	}
	if p.Tags != nil {
		w.Tags = normalizeTags(*p.Tags)
	}
	if p.DueDateSet {
		w.DueDate = p.DueDate
	}
	if p.AssigneeSet {
		if p.AssignedTo != nil {
			if err := s.resolveAssignee(ctx, *p.AssignedTo); err != nil {
				return model.WorkItem{}, err
			}
		}
		w.AssignedTo = p.AssignedTo
	}

	w.UpdatedAt = now
	if err := s.items.Save(ctx, &w); err != nil {
		return model.WorkItem{}, err
	}
	return w, nil
}

// Delete soft-deletes an item: it disappears from default listings and
// stats but stays restorable.
func (s *WorkItemService) Delete(ctx context.Context, id string) error {
	if _, err := s.items.GetByID(ctx, id, true); err != nil {
		return err
	}
	return s.items.SetActive(ctx, id, false)
}

// Restore reverses a soft delete.
func (s *WorkItemService) Restore(ctx context.Context, id string) error {
	if _, err := s.items.GetByID(ctx, id, true); err != nil {
		return err
	}
	return s.items.SetActive(ctx, id, true)
}

// PermanentDelete removes the item for good, regardless of its soft-delete
// state. Irreversible.
func (s *WorkItemService) PermanentDelete(ctx context.Context, id string) error {
	return s.items.PermanentDelete(ctx, id)
}

// BulkUpdate applies the same patch to every id. A failure on one id does
// not roll back the others; the caller receives the per-id outcome map and
// decides what to surface.
func (s *WorkItemService) BulkUpdate(ctx context.Context, ids []string, p Patch) map[string]BulkResult {
	results := make(map[string]BulkResult, len(ids))
	for _, id := range ids {
		if _, err := s.Update(ctx, id, p); err != nil {
			results[id] = BulkResult{OK: false, Error: err.Error()}
			continue
		}
		results[id] = BulkResult{OK: true}
	}
	return results
}

// Stats recomputes a snapshot from the current active collection. Nothing
// is cached; every call reads fresh rows and folds them.
func (s *WorkItemService) Stats(ctx context.Context, viewerID uint64) (stats.Snapshot, error) {
	items, err := s.items.List(ctx, repository.WorkItemFilter{})
	if err != nil {
		return stats.Snapshot{}, err
	}
	return stats.Compute(items, viewerID, s.now()), nil
}

// AvailableAssignees lists the verified accounts a work item may be
// assigned to.
func (s *WorkItemService) AvailableAssignees(ctx context.Context) ([]model.User, error) {
	return s.users.ListVerified(ctx)
}

// resolveAssignee mirrors AvailableAssignees: only active verified accounts
// can hold work, so an item can never be assigned to someone the assignee
// listing would not offer.
func (s *WorkItemService) resolveAssignee(ctx context.Context, id uint64) error {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return ErrUnknownAssignee
		}
		return err
	}
	if !u.IsActive || u.VerificationState != model.StateVerified {
		return ErrUnknownAssignee
	}
	return nil
}

// normalizeTags trims entries, drops empties and deduplicates while keeping
// first-seen order.
func normalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
