package model

import "time"

// Work item statuses.  These are the literal wire values; `in_progress`
// uses an underscore, never a space.
const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
)

// Work item priorities.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// ValidStatus reports whether s is one of the four known status tokens.
func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// ValidPriority reports whether p is one of the four known priority tokens.
func ValidPriority(p string) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// WorkItem mirrors the `work_items` table.  IDs are UUID strings assigned
// at creation and immutable afterwards.  CreatedBy never changes;
// AssignedTo is reassignable.  CompletedAt is derived bookkeeping: it is
// set when status enters StatusCompleted and cleared when status leaves it.
// IsActive implements soft delete: inactive items are excluded from default
// listings and stats but remain restorable until permanently deleted.
//
// Fields:
//  ID          – UUID primary key.
//  Title       – short summary, required.
//  Description – free-form detail, required.
//  Status      – one of the Status* constants.
//  Priority    – one of the Priority* constants.
//  Tags        – optional set of short labels.
//  DueDate     – optional due date, compared on calendar semantics.
//  CreatedBy   – id of the creating user, immutable.
//  AssignedTo  – id of the assignee (nil when unassigned).
//  CreatedAt   – timestamp of creation.
//  UpdatedAt   – refreshed on every mutation, never decreases.
//  CompletedAt – when status last entered completed (nil otherwise).
//  IsActive    – soft delete flag.
type WorkItem struct {
	ID          string     // work_items.id
	Title       string     // work_items.title
	Description string     // work_items.description
	Status      string     // work_items.status
	Priority    string     // work_items.priority
	Tags        []string   // work_items.tags (comma-joined at rest)
	DueDate     *time.Time // work_items.due_date (nullable DATE)
	CreatedBy   uint64     // work_items.created_by
	AssignedTo  *uint64    // work_items.assigned_to (nullable)
	CreatedAt   time.Time  // work_items.created_at
	UpdatedAt   time.Time  // work_items.updated_at
	CompletedAt *time.Time // work_items.completed_at (nullable)
	IsActive    bool       // work_items.is_active
}
