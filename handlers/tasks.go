package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"strconv"

	"checkit-service/models"

	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"github.com/umakantv/go-utils/cache"
	"github.com/umakantv/go-utils/errs"
	"go.uber.org/zap"
)

// TaskHandler handles task CRUD plus the status-only update.
type TaskHandler struct {
	db    *sqlx.DB
	cache cache.Cache
}

// NewTaskHandler creates a new task handler
func NewTaskHandler(db *sqlx.DB, cache cache.Cache) *TaskHandler {
	return &TaskHandler{
		db:    db,
		cache: cache,
	}
}

// GetTasks handles GET /tasks - the caller's tasks annotated with the parent
// project title and checklist progress counts, newest first.
func (h *TaskHandler) GetTasks(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	userID, ok := authUserID(ctx)
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(errs.NewValidationError("Not authenticated"))
		return
	}

	logRequest(ctx, "info", "Listing tasks", zap.Int("user_id", userID))

	cacheKey := tasksListCacheKey(userID)
	if cached, err := h.cache.Get(cacheKey); err == nil {
		logRequest(ctx, "debug", "Serving tasks from cache")
		w.Header().Set("Content-Type", "application/json")
		w.Write(cached.([]byte))
		return
	}

	tasks := []models.TaskWithMeta{}
	err := h.db.Select(&tasks, `
		SELECT
			tasks.id, tasks.userId, tasks.projectId, tasks.title, tasks.description,
			tasks.status, tasks.priority, tasks.category, tasks.dueDate,
			tasks.reminderDate, tasks.repeat, tasks.dateCreated, tasks.dateCompleted,
			projects.title AS projectTitle,
			(SELECT COUNT(*) FROM checklist_items WHERE taskId = tasks.id AND isDone = 1) AS completedSubtasks,
			(SELECT COUNT(*) FROM checklist_items WHERE taskId = tasks.id) AS totalSubtasks
		FROM tasks
		LEFT JOIN projects ON tasks.projectId = projects.id
		WHERE tasks.userId = ?
		ORDER BY tasks.dateCreated DESC`, userID)
	if err != nil {
		logRequest(ctx, "error", "Failed to query tasks", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(errs.NewInternalServerError("Failed to fetch tasks"))
		return
	}

	response, _ := json.Marshal(tasks)
	h.cache.Set(cacheKey, response, listCacheTTL)

	logRequest(ctx, "info", "Tasks retrieved", zap.Int("count", len(tasks)))

	w.Header().Set("Content-Type", "application/json")
	w.Write(response)
}

// CreateTask handles POST /tasks. Optional fields are stored as NULL when
// absent; dateCompleted is not accepted at creation.
func (h *TaskHandler) CreateTask(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	userID, ok := authUserID(ctx)
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(errs.NewValidationError("Not authenticated"))
		return
	}

	var req models.TaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logRequest(ctx, "error", "Invalid request body", zap.Error(err))
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(errs.NewValidationError("Invalid JSON"))
		return
	}

	if err := validateTaskRequest(&req, false); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(errs.NewValidationError(err.Error()))
		return
	}

	logRequest(ctx, "info", "Creating task", zap.String("title", req.Title))

	result, err := h.db.Exec(`
		INSERT INTO tasks (
			userId, projectId, title, description, status, priority,
			category, dueDate, reminderDate, repeat, dateCreated
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		userID, req.ProjectID, req.Title, req.Description, req.Status, req.Priority,
		req.Category, req.DueDate, req.ReminderDate, req.Repeat, req.DateCreated)
	if err != nil {
		logRequest(ctx, "error", "Failed to create task", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(errs.NewInternalServerError("Failed to create task"))
		return
	}

	id, _ := result.LastInsertId()
	h.cache.Delete(tasksListCacheKey(userID))

	logRequest(ctx, "info", "Task created", zap.Int64("task_id", id))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]int64{"id": id})
}

// UpdateTask handles PUT /tasks/{id} - full-row replace scoped to id and
// owner; 404 when no row matched.
func (h *TaskHandler) UpdateTask(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	userID, ok := authUserID(ctx)
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(errs.NewValidationError("Not authenticated"))
		return
	}

	vars := mux.Vars(r)
	id, err := strconv.Atoi(vars["id"])
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(errs.NewValidationError("Invalid task ID"))
		return
	}

	var req models.TaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logRequest(ctx, "error", "Invalid request body", zap.Error(err))
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(errs.NewValidationError("Invalid JSON"))
		return
	}

	if err := validateTaskRequest(&req, true); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(errs.NewValidationError(err.Error()))
		return
	}

	logRequest(ctx, "info", "Updating task", zap.Int("task_id", id))

	result, err := h.db.Exec(`
		UPDATE tasks SET
			projectId = ?, title = ?, description = ?, status = ?, priority = ?,
			category = ?, dueDate = ?, reminderDate = ?, repeat = ?,
			dateCreated = ?, dateCompleted = ?
		WHERE id = ? AND userId = ?`,
		req.ProjectID, req.Title, req.Description, req.Status, req.Priority,
		req.Category, req.DueDate, req.ReminderDate, req.Repeat,
		req.DateCreated, req.DateCompleted, id, userID)
	if err != nil {
		logRequest(ctx, "error", "Failed to update task", zap.Error(err), zap.Int("task_id", id))
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(errs.NewInternalServerError("Failed to update task"))
		return
	}

	changes, _ := result.RowsAffected()
	if changes == 0 {
		logRequest(ctx, "info", "Task not found for update", zap.Int("task_id", id))
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(errs.NewNotFoundError("Task not found or unauthorized"))
		return
	}

	h.cache.Delete(tasksListCacheKey(userID))

	logRequest(ctx, "info", "Task updated", zap.Int("task_id", id), zap.Int64("changes", changes))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "Task updated",
		"changes": changes,
	})
}

// UpdateTaskStatus handles PATCH /tasks/{id}/status (and the legacy
// PUT /tasks/tasks/{taskId}/status route). The owner is looked up before the
// single-column update; a mismatch or missing task is a 403 that does not
// reveal which.
func (h *TaskHandler) UpdateTaskStatus(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	userID, ok := authUserID(ctx)
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(errs.NewValidationError("Not authenticated"))
		return
	}

	vars := mux.Vars(r)
	idStr := vars["id"]
	if idStr == "" {
		idStr = vars["taskId"]
	}
	id, err := strconv.Atoi(idStr)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(errs.NewValidationError("Invalid task ID"))
		return
	}

	var req models.TaskStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logRequest(ctx, "error", "Invalid request body", zap.Error(err))
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(errs.NewValidationError("Invalid JSON"))
		return
	}

	if !models.AllowedStatuses[req.Status] {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(errs.NewValidationError("Invalid task status."))
		return
	}

	logRequest(ctx, "info", "Updating task status", zap.Int("task_id", id), zap.String("status", req.Status))

	var ownerID int
	err = h.db.Get(&ownerID, "SELECT userId FROM tasks WHERE id = ?", id)
	if err == sql.ErrNoRows || (err == nil && ownerID != userID) {
		logRequest(ctx, "info", "Status update rejected", zap.Int("task_id", id))
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(errs.NewValidationError("Unauthorized or task not found."))
		return
	}
	if err != nil {
		logRequest(ctx, "error", "Failed to resolve task owner", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(errs.NewInternalServerError("Failed to update task status."))
		return
	}

	if _, err := h.db.Exec("UPDATE tasks SET status = ? WHERE id = ?", req.Status, id); err != nil {
		logRequest(ctx, "error", "Failed to update task status", zap.Error(err), zap.Int("task_id", id))
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(errs.NewInternalServerError("Failed to update task status."))
		return
	}

	h.cache.Delete(tasksListCacheKey(userID))

	logRequest(ctx, "info", "Task status updated", zap.Int("task_id", id))

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"success": true})
}

// DeleteTask handles DELETE /tasks/{id}. The task's checklist items go with
// it, in the same transaction, mirroring the project cascade.
func (h *TaskHandler) DeleteTask(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	userID, ok := authUserID(ctx)
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(errs.NewValidationError("Not authenticated"))
		return
	}

	vars := mux.Vars(r)
	id, err := strconv.Atoi(vars["id"])
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(errs.NewValidationError("Invalid task ID"))
		return
	}

	logRequest(ctx, "info", "Deleting task", zap.Int("task_id", id))

	tx, err := h.db.Beginx()
	if err != nil {
		logRequest(ctx, "error", "Failed to begin transaction", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(errs.NewInternalServerError("Failed to delete task"))
		return
	}
	defer tx.Rollback()

	// Ownership is enforced by the subquery; items of someone else's task
	// are untouched.
	if _, err := tx.Exec(
		"DELETE FROM checklist_items WHERE taskId IN (SELECT id FROM tasks WHERE id = ? AND userId = ?)",
		id, userID); err != nil {
		logRequest(ctx, "error", "Failed to delete task checklist items", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(errs.NewInternalServerError("Failed to delete task"))
		return
	}

	result, err := tx.Exec("DELETE FROM tasks WHERE id = ? AND userId = ?", id, userID)
	if err != nil {
		logRequest(ctx, "error", "Failed to delete task", zap.Error(err), zap.Int("task_id", id))
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(errs.NewInternalServerError("Failed to delete task"))
		return
	}

	changes, _ := result.RowsAffected()
	if changes == 0 {
		logRequest(ctx, "info", "Task not found for deletion", zap.Int("task_id", id))
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(errs.NewNotFoundError("Task not found"))
		return
	}

	if err := tx.Commit(); err != nil {
		logRequest(ctx, "error", "Failed to commit task delete", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(errs.NewInternalServerError("Failed to delete task"))
		return
	}

	h.cache.Delete(tasksListCacheKey(userID))

	logRequest(ctx, "info", "Task deleted", zap.Int("task_id", id))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"message": "Task deleted"})
}

// validateTaskRequest applies the shared rules. withDateCompleted is set for
// full updates, where the completion date and its ordering against
// dateCreated are also checked.
func validateTaskRequest(req *models.TaskRequest, withDateCompleted bool) error {
	if err := validateTitle(req.Title, "Task"); err != nil {
		return err
	}
	if err := validateDescription(req.Description); err != nil {
		return err
	}
	if err := validateStatus(req.Status); err != nil {
		return err
	}
	if err := validatePriority(req.Priority); err != nil {
		return err
	}
	if withDateCompleted {
		return validateDates(req.DateCreated, req.DateCompleted)
	}
	return validateDates(req.DateCreated, nil)
}
