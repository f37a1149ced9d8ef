package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/iliyamo/work-item-tracker/internal/model"
)

// WorkItemRepo provides CRUD operations for work items.  All timestamp
// fields are stored in UTC; due_date is a plain DATE column so overdue
// checks stay calendar-based and timezone-neutral.  Tags are persisted as
// a single comma-joined string to keep the schema to one table.
type WorkItemRepo struct {
	db *sql.DB
}

// NewWorkItemRepo returns a new WorkItemRepo bound to the given database.
func NewWorkItemRepo(db *sql.DB) *WorkItemRepo { return &WorkItemRepo{db: db} }

const workItemColumns = "id, title, description, status, priority, tags, due_date, created_by, assigned_to, created_at, updated_at, completed_at, is_active"

// WorkItemFilter narrows List results.  Zero values mean "no constraint".
// Search applies a LIKE match over title and description.  Soft-deleted
// rows are excluded unless IncludeInactive is set.
type WorkItemFilter struct {
	Search          string
	Status          string
	Priority        string
	AssignedTo      uint64
	CreatedBy       uint64
	OverdueOnly     bool
	IncludeInactive bool
}

// Create inserts the item.  The caller is expected to have populated ID,
// timestamps and defaults; the repository only maps fields to columns.
func (r *WorkItemRepo) Create(ctx context.Context, w *model.WorkItem) error {
	const q = `INSERT INTO work_items
		(id, title, description, status, priority, tags, due_date, created_by, assigned_to, created_at, updated_at, completed_at, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, q,
		w.ID, w.Title, w.Description, w.Status, w.Priority, joinTags(w.Tags),
		nullDate(w.DueDate), w.CreatedBy, nullID(w.AssignedTo),
		w.CreatedAt, w.UpdatedAt, nullTime(w.CompletedAt), w.IsActive)
	return err
}

// GetByID fetches one item.  With includeInactive=false a soft-deleted row
// is reported as ErrNotFound, matching the default-listing contract.
func (r *WorkItemRepo) GetByID(ctx context.Context, id string, includeInactive bool) (model.WorkItem, error) {
	q := "SELECT " + workItemColumns + " FROM work_items WHERE id=?"
	if !includeInactive {
		q += " AND is_active=1"
	}
	row := r.db.QueryRowContext(ctx, q+" LIMIT 1", id)
	w, err := scanWorkItem(row)
	if err == sql.ErrNoRows {
		return model.WorkItem{}, ErrNotFound
	}
	return w, err
}

// List returns items matching the filter, newest first.
func (r *WorkItemRepo) List(ctx context.Context, f WorkItemFilter) ([]model.WorkItem, error) {
	q := "SELECT " + workItemColumns + " FROM work_items WHERE 1=1"
	args := make([]interface{}, 0, 6)
	if !f.IncludeInactive {
		q += " AND is_active=1"
	}
	if f.Status != "" {
		q += " AND status=?"
		args = append(args, f.Status)
	}
	if f.Priority != "" {
		q += " AND priority=?"
		args = append(args, f.Priority)
	}
	if f.AssignedTo != 0 {
		q += " AND assigned_to=?"
		args = append(args, f.AssignedTo)
	}
	if f.CreatedBy != 0 {
		q += " AND created_by=?"
		args = append(args, f.CreatedBy)
	}
	if f.Search != "" {
		q += " AND (title LIKE ? OR description LIKE ?)"
		like := "%" + f.Search + "%"
		args = append(args, like, like)
	}
	if f.OverdueOnly {
		q += " AND due_date IS NOT NULL AND due_date < CURDATE() AND status NOT IN (?,?)"
		args = append(args, model.StatusCompleted, model.StatusCancelled)
	}
	q += " ORDER BY created_at DESC, id DESC"

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.WorkItem
	for rows.Next() {
		w, err := scanWorkItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// Save writes every mutable column of the item.  CreatedBy and CreatedAt
// are deliberately not part of the statement; they are immutable.
func (r *WorkItemRepo) Save(ctx context.Context, w *model.WorkItem) error {
	const q = `UPDATE work_items SET
		title=?, description=?, status=?, priority=?, tags=?, due_date=?,
		assigned_to=?, updated_at=?, completed_at=?, is_active=?
		WHERE id=?`
	_, err := r.db.ExecContext(ctx, q,
		w.Title, w.Description, w.Status, w.Priority, joinTags(w.Tags), nullDate(w.DueDate),
		nullID(w.AssignedTo), w.UpdatedAt, nullTime(w.CompletedAt), w.IsActive, w.ID)
	return err
}

// SetActive flips the soft-delete flag and refreshes updated_at.  Returns
// ErrNotFound when the id does not exist at all.
func (r *WorkItemRepo) SetActive(ctx context.Context, id string, active bool) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE work_items SET is_active=?, updated_at=NOW() WHERE id=?",
		active, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// Distinguish "missing" from "already in that state": MySQL reports
		// zero affected rows for both.
		var one int
		if err := r.db.QueryRowContext(ctx,
			"SELECT 1 FROM work_items WHERE id=? LIMIT 1", id).Scan(&one); err != nil {
			if err == sql.ErrNoRows {
				return ErrNotFound
			}
			return err
		}
	}
	return nil
}

// PermanentDelete removes the row for good.  Fails with ErrNotFound when
// the row is already absent; permanent deletion is not idempotent by
// contract so callers can surface the double-delete.
func (r *WorkItemRepo) PermanentDelete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM work_items WHERE id=?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanWorkItem(s scanner) (model.WorkItem, error) {
	var (
		w           model.WorkItem
		tags        sql.NullString
		dueDate     sql.NullTime
		assignedTo  sql.NullInt64
		completedAt sql.NullTime
	)
	err := s.Scan(&w.ID, &w.Title, &w.Description, &w.Status, &w.Priority, &tags,
		&dueDate, &w.CreatedBy, &assignedTo, &w.CreatedAt, &w.UpdatedAt, &completedAt, &w.IsActive)
	if err != nil {
		return model.WorkItem{}, err
	}
	if tags.Valid && tags.String != "" {
		w.Tags = strings.Split(tags.String, ",")
	}
	if dueDate.Valid {
		t := dueDate.Time
		w.DueDate = &t
	}
	if assignedTo.Valid {
		id := uint64(assignedTo.Int64)
		w.AssignedTo = &id
	}
	if completedAt.Valid {
		t := completedAt.Time
		w.CompletedAt = &t
	}
	return w, nil
}

func joinTags(tags []string) string { return strings.Join(tags, ",") }

// nullDate renders an optional due date as a DATE literal; the column holds
// no time-of-day component.
func nullDate(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.Format("2006-01-02")
}

func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}

func nullID(id *uint64) interface{} {
	if id == nil {
		return nil
	}
	return *id
}
