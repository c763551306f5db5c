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

// ChecklistHandler handles checklist items. Items have no owner column of
// their own; authorization always walks up to the owning task's userId.
// Mutations invalidate the caller's task list cache because of the derived
// subtask counts.
type ChecklistHandler struct {
	db    *sqlx.DB
	cache cache.Cache
}

// NewChecklistHandler creates a new checklist handler
func NewChecklistHandler(db *sqlx.DB, cache cache.Cache) *ChecklistHandler {
	return &ChecklistHandler{
		db:    db,
		cache: cache,
	}
}

// taskOwnedByCaller checks that the task exists and belongs to the caller.
func (h *ChecklistHandler) taskOwnedByCaller(taskID, userID int) (bool, error) {
	var id int
	err := h.db.Get(&id, "SELECT id FROM tasks WHERE id = ? AND userId = ?", taskID, userID)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// itemOwner resolves the user id owning a checklist item via its task.
func (h *ChecklistHandler) itemOwner(itemID int) (int, error) {
	var ownerID int
	err := h.db.Get(&ownerID,
		"SELECT t.userId FROM tasks t JOIN checklist_items c ON c.taskId = t.id WHERE c.id = ?",
		itemID)
	return ownerID, err
}

// GetChecklist handles GET /tasks/{id}/checklist.
func (h *ChecklistHandler) GetChecklist(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	userID, ok := authUserID(ctx)
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(errs.NewValidationError("Not authenticated"))
		return
	}

	vars := mux.Vars(r)
	taskID, err := strconv.Atoi(vars["id"])
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(errs.NewValidationError("Invalid task ID"))
		return
	}

	logRequest(ctx, "info", "Listing checklist", zap.Int("task_id", taskID))

	owned, err := h.taskOwnedByCaller(taskID, userID)
	if err != nil {
		logRequest(ctx, "error", "Failed to check task ownership", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(errs.NewInternalServerError("Database error"))
		return
	}
	if !owned {
		logRequest(ctx, "info", "Task not found", zap.Int("task_id", taskID))
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(errs.NewNotFoundError("Task not found"))
		return
	}

	items := []models.ChecklistItem{}
	err = h.db.Select(&items, "SELECT id, taskId, content, isDone FROM checklist_items WHERE taskId = ?", taskID)
	if err != nil {
		logRequest(ctx, "error", "Failed to query checklist", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(errs.NewInternalServerError("Failed to fetch checklist"))
		return
	}

	logRequest(ctx, "info", "Checklist retrieved", zap.Int("count", len(items)))

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(items)
}

// AddChecklistItem handles POST /tasks/{id}/checklist. isDone is coerced to
// 0/1 on the way in.
func (h *ChecklistHandler) AddChecklistItem(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	userID, ok := authUserID(ctx)
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(errs.NewValidationError("Not authenticated"))
		return
	}

	vars := mux.Vars(r)
	taskID, err := strconv.Atoi(vars["id"])
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(errs.NewValidationError("Invalid task ID"))
		return
	}

	var req models.ChecklistItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logRequest(ctx, "error", "Invalid request body", zap.Error(err))
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(errs.NewValidationError("Invalid JSON"))
		return
	}

	if err := validateChecklistContent(req.Content); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(errs.NewValidationError(err.Error()))
		return
	}

	owned, err := h.taskOwnedByCaller(taskID, userID)
	if err != nil {
		logRequest(ctx, "error", "Failed to check task ownership", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(errs.NewInternalServerError("Database error"))
		return
	}
	if !owned {
		logRequest(ctx, "info", "Task not found", zap.Int("task_id", taskID))
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(errs.NewNotFoundError("Task not found"))
		return
	}

	isDone := 0
	if req.IsDone != 0 {
		isDone = 1
	}

	logRequest(ctx, "info", "Adding checklist item", zap.Int("task_id", taskID))

	result, err := h.db.Exec("INSERT INTO checklist_items (taskId, content, isDone) VALUES (?, ?, ?)",
		taskID, req.Content, isDone)
	if err != nil {
		logRequest(ctx, "error", "Failed to add checklist item", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(errs.NewInternalServerError("Failed to add checklist item"))
		return
	}

	id, _ := result.LastInsertId()
	h.cache.Delete(tasksListCacheKey(userID))

	logRequest(ctx, "info", "Checklist item added", zap.Int64("item_id", id))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"id":      id,
		"content": req.Content,
		"isDone":  isDone,
	})
}

// UpdateChecklistItem handles PUT /checklist/{id}. Content is optional; when
// absent only isDone changes. Ownership failures are a 403, deliberately not
// a 404.
func (h *ChecklistHandler) UpdateChecklistItem(ctx context.Context, w http.ResponseWriter, r *http.Request) {
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
		json.NewEncoder(w).Encode(errs.NewValidationError("Invalid checklist item ID"))
		return
	}

	var req models.ChecklistItemUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logRequest(ctx, "error", "Invalid request body", zap.Error(err))
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(errs.NewValidationError("Invalid JSON"))
		return
	}

	if req.Content != nil {
		if err := validateChecklistContent(*req.Content); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(errs.NewValidationError(err.Error()))
			return
		}
	}

	ownerID, err := h.itemOwner(id)
	if err != nil || ownerID != userID {
		logRequest(ctx, "info", "Checklist update rejected", zap.Int("item_id", id))
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(errs.NewValidationError("Unauthorized"))
		return
	}

	isDone := 0
	if req.IsDone != 0 {
		isDone = 1
	}

	logRequest(ctx, "info", "Updating checklist item", zap.Int("item_id", id))

	if req.Content == nil {
		if _, err := h.db.Exec("UPDATE checklist_items SET isDone = ? WHERE id = ?", isDone, id); err != nil {
			logRequest(ctx, "error", "Failed to update checklist item", zap.Error(err), zap.Int("item_id", id))
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(errs.NewInternalServerError("Failed to update checklist item"))
			return
		}

		h.cache.Delete(tasksListCacheKey(userID))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]interface{}{"id": id, "isDone": isDone})
		return
	}

	if _, err := h.db.Exec("UPDATE checklist_items SET content = ?, isDone = ? WHERE id = ?",
		*req.Content, isDone, id); err != nil {
		logRequest(ctx, "error", "Failed to update checklist item", zap.Error(err), zap.Int("item_id", id))
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(errs.NewInternalServerError("Failed to update checklist item"))
		return
	}

	h.cache.Delete(tasksListCacheKey(userID))

	logRequest(ctx, "info", "Checklist item updated", zap.Int("item_id", id))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{"id": id, "isDone": isDone, "content": *req.Content})
}

// DeleteChecklistItem handles DELETE /checklist/{id}. Unlike update, a
// zero-row delete after passing authorization is a 404.
func (h *ChecklistHandler) DeleteChecklistItem(ctx context.Context, w http.ResponseWriter, r *http.Request) {
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
		json.NewEncoder(w).Encode(errs.NewValidationError("Invalid checklist item ID"))
		return
	}

	ownerID, err := h.itemOwner(id)
	if err != nil || ownerID != userID {
		logRequest(ctx, "info", "Checklist delete rejected", zap.Int("item_id", id))
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(errs.NewValidationError("Unauthorized"))
		return
	}

	logRequest(ctx, "info", "Deleting checklist item", zap.Int("item_id", id))

	result, err := h.db.Exec("DELETE FROM checklist_items WHERE id = ?", id)
	if err != nil {
		logRequest(ctx, "error", "Failed to delete checklist item", zap.Error(err), zap.Int("item_id", id))
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(errs.NewInternalServerError("Failed to delete checklist item"))
		return
	}

	changes, _ := result.RowsAffected()
	if changes == 0 {
		logRequest(ctx, "info", "Checklist item not found", zap.Int("item_id", id))
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(errs.NewNotFoundError("Checklist item not found"))
		return
	}

	h.cache.Delete(tasksListCacheKey(userID))

	logRequest(ctx, "info", "Checklist item deleted", zap.Int("item_id", id))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"message": "Checklist item deleted"})
}
