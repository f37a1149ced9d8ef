package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/work-item-tracker/internal/model"
	"github.com/iliyamo/work-item-tracker/internal/repository"
	"github.com/iliyamo/work-item-tracker/internal/service"
)

// WorkItemHandler bundles the lifecycle service for work item endpoints.
// Every route behind it requires authentication; ownership beyond that is
// not enforced (any authenticated user may mutate any item).
type WorkItemHandler struct {
	Items *service.WorkItemService
}

func NewWorkItemHandler(items *service.WorkItemService) *WorkItemHandler {
	return &WorkItemHandler{Items: items}
}

// ----- DTOs -----

// workItemBody is the shared request shape for create and update. All
// fields are pointers so an update can distinguish "absent" from "set to
// empty": absent fields keep their prior value, an empty dueDate or
// assignedTo clears the field.
type workItemBody struct {
	Title       *string   `json:"title"`
	Description *string   `json:"description"`
	Status      *string   `json:"status"`
	Priority    *string   `json:"priority"`
	Tags        *[]string `json:"tags"`
	DueDate     *string   `json:"dueDate"`    // "2006-01-02" or "" to clear
	AssignedTo  *uint64   `json:"assignedTo"` // 0 clears the assignment
}

type bulkUpdateReq struct {
	IDs        []string     `json:"ids"`
	UpdateData workItemBody `json:"updateData"`
}

type workItemResp struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	Priority    string     `json:"priority"`
	Tags        []string   `json:"tags,omitempty"`
	DueDate     *string    `json:"dueDate,omitempty"`
	CreatedBy   uint64     `json:"createdBy"`
	AssignedTo  *uint64    `json:"assignedTo,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	IsActive    bool       `json:"isActive"`
}

type assigneeResp struct {
	ID        uint64 `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
}

func toWorkItemResp(w model.WorkItem) workItemResp {
	r := workItemResp{
		ID:          w.ID,
		Title:       w.Title,
		Description: w.Description,
		Status:      w.Status,
		Priority:    w.Priority,
		Tags:        w.Tags,
		CreatedBy:   w.CreatedBy,
		AssignedTo:  w.AssignedTo,
		CreatedAt:   w.CreatedAt,
		UpdatedAt:   w.UpdatedAt,
		CompletedAt: w.CompletedAt,
		IsActive:    w.IsActive,
	}
	if w.DueDate != nil {
		d := w.DueDate.Format("2006-01-02")
		r.DueDate = &d
	}
	return r
}

func toWorkItemList(items []model.WorkItem) []workItemResp {
	out := make([]workItemResp, 0, len(items))
	for _, w := range items {
		out = append(out, toWorkItemResp(w))
	}
	return out
}

// parseDueDate interprets the wire value of dueDate: nil leaves the field
// untouched, "" clears it, anything else must be a calendar date.
func parseDueDate(raw *string) (val *time.Time, set bool, err error) {
	if raw == nil {
		return nil, false, nil
	}
	s := strings.TrimSpace(*raw)
	if s == "" {
		return nil, true, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, false, err
	}
	return &t, true, nil
}

// patchFromBody converts the wire DTO into a service patch.
func patchFromBody(b workItemBody) (service.Patch, error) {
	due, dueSet, err := parseDueDate(b.DueDate)
	if err != nil {
		return service.Patch{}, err
	}
	p := service.Patch{
		Title:       b.Title,
		Description: b.Description,
		Status:      b.Status,
		Priority:    b.Priority,
		Tags:        b.Tags,
		DueDate:     due,
		DueDateSet:  dueSet,
	}
	if b.AssignedTo != nil {
		p.AssigneeSet = true
		if *b.AssignedTo != 0 {
			p.AssignedTo = b.AssignedTo
		}
	}
	return p, nil
}

// Create handles POST /v1/workitems.
func (h *WorkItemHandler) Create(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body workItemBody
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	due, _, err := parseDueDate(body.DueDate)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "dueDate must be YYYY-MM-DD"})
	}
	in := service.CreateInput{
		DueDate: due,
	}
	if body.Title != nil {
		in.Title = *body.Title
	}
	if body.Description != nil {
		in.Description = *body.Description
	}
	if body.Status != nil {
		in.Status = *body.Status
	}
	if body.Priority != nil {
		in.Priority = *body.Priority
	}
	if body.Tags != nil {
		in.Tags = *body.Tags
	}
	if body.AssignedTo != nil && *body.AssignedTo != 0 {
		in.AssignedTo = body.AssignedTo
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	w, err := h.Items.Create(ctx, uid, in)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "title and description are required"})
		case errors.Is(err, service.ErrUnknownAssignee):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown assignee"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create failed"})
	}
	return c.JSON(http.StatusCreated, toWorkItemResp(w))
}

// List handles GET /v1/workitems with optional search/status/priority
// filters. includeDeleted=true folds soft-deleted items back in.
func (h *WorkItemHandler) List(c echo.Context) error {
	f := repository.WorkItemFilter{
		Search:          strings.TrimSpace(c.QueryParam("search")),
		Status:          c.QueryParam("status"),
		Priority:        c.QueryParam("priority"),
		IncludeInactive: c.QueryParam("includeDeleted") == "true",
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, err := h.Items.List(ctx, f)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"workItems": toWorkItemList(items), "total": len(items)})
}

// Get handles GET /v1/workitems/:id.
func (h *WorkItemHandler) Get(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	w, err := h.Items.Get(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "work item not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, toWorkItemResp(w))
}

// Update handles PUT /v1/workitems/:id with partial-update semantics and
// returns the fresh row (read-after-write).
func (h *WorkItemHandler) Update(c echo.Context) error {
	var body workItemBody
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	p, err := patchFromBody(body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "dueDate must be YYYY-MM-DD"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	w, err := h.Items.Update(ctx, c.Param("id"), p)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "work item not found"})
		case errors.Is(err, service.ErrValidation):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid field value"})
		case errors.Is(err, service.ErrUnknownAssignee):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown assignee"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}
	return c.JSON(http.StatusOK, toWorkItemResp(w))
}

// Delete handles DELETE /v1/workitems/:id (soft delete).
func (h *WorkItemHandler) Delete(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Items.Delete(ctx, c.Param("id")); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "work item not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

// Restore handles POST /v1/workitems/:id/restore.
func (h *WorkItemHandler) Restore(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Items.Restore(ctx, c.Param("id")); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "work item not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "restore failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "restored"})
}

// PermanentDelete handles DELETE /v1/workitems/:id/permanent. Irreversible;
// deleting an already absent row is a 404, not a silent success.
func (h *WorkItemHandler) PermanentDelete(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Items.PermanentDelete(ctx, c.Param("id")); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "work item not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

// BulkUpdate handles PUT /v1/workitems/bulk. Mixed outcomes return 207
// with a per-id result map; the successes are retained regardless.
func (h *WorkItemHandler) BulkUpdate(c echo.Context) error {
	var req bulkUpdateReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if len(req.IDs) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "ids required"})
	}
	p, err := patchFromBody(req.UpdateData)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "dueDate must be YYYY-MM-DD"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	results := h.Items.BulkUpdate(ctx, req.IDs, p)
	failed := 0
	for _, r := range results {
		if !r.OK {
			failed++
		}
	}
	status := http.StatusOK
	if failed > 0 {
		status = http.StatusMultiStatus
	}
	return c.JSON(status, echo.Map{
		"results":   results,
		"succeeded": len(results) - failed,
		"failed":    failed,
	})
}

// Stats handles GET /v1/workitems/stats: a fresh global snapshot scoped to
// the caller for the assigned/created counts.
func (h *WorkItemHandler) Stats(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	snap, err := h.Items.Stats(ctx, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "stats failed"})
	}
	return c.JSON(http.StatusOK, snap)
}

// MyAssigned handles GET /v1/workitems/my/assigned.
func (h *WorkItemHandler) MyAssigned(c echo.Context) error {
	return h.listScoped(c, func(uid uint64) repository.WorkItemFilter {
		return repository.WorkItemFilter{AssignedTo: uid}
	})
}

// MyCreated handles GET /v1/workitems/my/created.
func (h *WorkItemHandler) MyCreated(c echo.Context) error {
	return h.listScoped(c, func(uid uint64) repository.WorkItemFilter {
		return repository.WorkItemFilter{CreatedBy: uid}
	})
}

// ByStatus handles GET /v1/workitems/status/:status.
func (h *WorkItemHandler) ByStatus(c echo.Context) error {
	status := c.Param("status")
	if !model.ValidStatus(status) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown status"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, err := h.Items.List(ctx, repository.WorkItemFilter{Status: status})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"workItems": toWorkItemList(items), "total": len(items)})
}

// Overdue handles GET /v1/workitems/overdue.
func (h *WorkItemHandler) Overdue(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, err := h.Items.List(ctx, repository.WorkItemFilter{OverdueOnly: true})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"workItems": toWorkItemList(items), "total": len(items)})
}

// Assignees handles GET /v1/workitems/assignees/list.
func (h *WorkItemHandler) Assignees(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	users, err := h.Items.AvailableAssignees(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]assigneeResp, 0, len(users))
	for _, u := range users {
		out = append(out, assigneeResp{ID: u.ID, FirstName: u.FirstName, LastName: u.LastName, Email: u.Email})
	}
	return c.JSON(http.StatusOK, echo.Map{"users": out})
}

func (h *WorkItemHandler) listScoped(c echo.Context, build func(uint64) repository.WorkItemFilter) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, err := h.Items.List(ctx, build(uid))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"workItems": toWorkItemList(items), "total": len(items)})
}
