package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"checkit-service/models"

	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"github.com/umakantv/go-utils/cache"
	"github.com/umakantv/go-utils/errs"
	"go.uber.org/zap"
)

const listCacheTTL = 5 * time.Minute

func projectsListCacheKey(userID int) string {
	return fmt.Sprintf("projects:list:%d", userID)
}

func tasksListCacheKey(userID int) string {
	return fmt.Sprintf("tasks:list:%d", userID)
}

// ProjectHandler handles project CRUD. Every query is scoped to the
// authenticated owner; a project that exists but belongs to someone else is
// indistinguishable from one that does not exist.
type ProjectHandler struct {
	db    *sqlx.DB
	cache cache.Cache
}

// NewProjectHandler creates a new project handler
func NewProjectHandler(db *sqlx.DB, cache cache.Cache) *ProjectHandler {
	return &ProjectHandler{
		db:    db,
		cache: cache,
	}
}

// GetProjects handles GET /projects - list the caller's projects as
// {id, title}, newest first.
func (h *ProjectHandler) GetProjects(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	userID, ok := authUserID(ctx)
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(errs.NewValidationError("Not authenticated"))
		return
	}

	logRequest(ctx, "info", "Listing projects", zap.Int("user_id", userID))

	cacheKey := projectsListCacheKey(userID)
	if cached, err := h.cache.Get(cacheKey); err == nil {
		logRequest(ctx, "debug", "Serving projects from cache")
		w.Header().Set("Content-Type", "application/json")
		w.Write(cached.([]byte))
		return
	}

	projects := []models.ProjectSummary{}
	err := h.db.Select(&projects, "SELECT id, title FROM projects WHERE userId = ? ORDER BY dateCreated DESC", userID)
	if err != nil {
		logRequest(ctx, "error", "Failed to query projects", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(errs.NewInternalServerError("Failed to fetch projects"))
		return
	}

	response, _ := json.Marshal(projects)
	h.cache.Set(cacheKey, response, listCacheTTL)

	logRequest(ctx, "info", "Projects retrieved", zap.Int("count", len(projects)))

	w.Header().Set("Content-Type", "application/json")
	w.Write(response)
}

// GetProject handles GET /projects/{id} - the project plus its tasks plus
// each task's checklist items. The whole aggregation runs in one
// transaction so a concurrent cascade delete cannot produce a half-read.
func (h *ProjectHandler) GetProject(ctx context.Context, w http.ResponseWriter, r *http.Request) {
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
		json.NewEncoder(w).Encode(errs.NewValidationError("Invalid project ID"))
		return
	}

	logRequest(ctx, "info", "Getting project", zap.Int("project_id", id))

	tx, err := h.db.Beginx()
	if err != nil {
		logRequest(ctx, "error", "Failed to begin transaction", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(errs.NewInternalServerError("Internal server error"))
		return
	}
	defer tx.Rollback()

	var project models.Project
	err = tx.Get(&project,
		"SELECT id, userId, title, description, dateCreated, dateCompleted FROM projects WHERE id = ? AND userId = ?",
		id, userID)
	if err == sql.ErrNoRows {
		logRequest(ctx, "info", "Project not found", zap.Int("project_id", id))
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(errs.NewNotFoundError("Project not found"))
		return
	}
	if err != nil {
		logRequest(ctx, "error", "Failed to query project", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(errs.NewInternalServerError("Internal server error"))
		return
	}

	project.Tasks = []models.ProjectTask{}
	err = tx.Select(&project.Tasks,
		`SELECT id, userId, projectId, title, description, status, priority, category,
			dueDate, reminderDate, repeat, dateCreated, dateCompleted
		FROM tasks WHERE projectId = ?`, project.ID)
	if err != nil {
		logRequest(ctx, "error", "Failed to query project tasks", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(errs.NewInternalServerError("Internal server error"))
		return
	}

	for i := range project.Tasks {
		items := []models.ChecklistItem{}
		err = tx.Select(&items,
			"SELECT id, taskId, content, isDone FROM checklist_items WHERE taskId = ?",
			project.Tasks[i].ID)
		if err != nil {
			logRequest(ctx, "error", "Failed to query checklist items", zap.Error(err),
				zap.Int("task_id", project.Tasks[i].ID))
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(errs.NewInternalServerError("Internal server error"))
			return
		}
		project.Tasks[i].ChecklistItems = items
	}

	if err := tx.Commit(); err != nil {
		logRequest(ctx, "error", "Failed to commit read transaction", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(errs.NewInternalServerError("Internal server error"))
		return
	}

	logRequest(ctx, "info", "Project retrieved", zap.Int("project_id", id), zap.Int("tasks", len(project.Tasks)))

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(project)
}

// CreateProject handles POST /projects.
func (h *ProjectHandler) CreateProject(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	userID, ok := authUserID(ctx)
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(errs.NewValidationError("Not authenticated"))
		return
	}

	var req models.ProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logRequest(ctx, "error", "Invalid request body", zap.Error(err))
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(errs.NewValidationError("Invalid JSON"))
		return
	}

	if err := validateProjectRequest(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(errs.NewValidationError(err.Error()))
		return
	}

	logRequest(ctx, "info", "Creating project", zap.String("title", req.Title))

	result, err := h.db.Exec(
		"INSERT INTO projects (userId, title, description, dateCreated, dateCompleted) VALUES (?, ?, ?, ?, ?)",
		userID, req.Title, req.Description, req.DateCreated, req.DateCompleted)
	if err != nil {
		logRequest(ctx, "error", "Failed to create project", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(errs.NewInternalServerError("Failed to create project"))
		return
	}

	id, _ := result.LastInsertId()
	h.cache.Delete(projectsListCacheKey(userID))

	logRequest(ctx, "info", "Project created", zap.Int64("project_id", id))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]int64{"id": id})
}

// UpdateProject handles PUT /projects/{id} - full-row replace scoped to id
// and owner. A non-owned or missing id is reported as changes: 0, not an
// error.
func (h *ProjectHandler) UpdateProject(ctx context.Context, w http.ResponseWriter, r *http.Request) {
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
		json.NewEncoder(w).Encode(errs.NewValidationError("Invalid project ID"))
		return
	}

	var req models.ProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logRequest(ctx, "error", "Invalid request body", zap.Error(err))
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(errs.NewValidationError("Invalid JSON"))
		return
	}

	if err := validateProjectRequest(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(errs.NewValidationError(err.Error()))
		return
	}

	logRequest(ctx, "info", "Updating project", zap.Int("project_id", id))

	result, err := h.db.Exec(
		"UPDATE projects SET title = ?, description = ?, dateCreated = ?, dateCompleted = ? WHERE id = ? AND userId = ?",
		req.Title, req.Description, req.DateCreated, req.DateCompleted, id, userID)
	if err != nil {
		logRequest(ctx, "error", "Failed to update project", zap.Error(err), zap.Int("project_id", id))
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(errs.NewInternalServerError("Failed to update project"))
		return
	}

	changes, _ := result.RowsAffected()
	h.cache.Delete(projectsListCacheKey(userID))
	// The cached task list embeds projectTitle, so a rename stales it too.
	h.cache.Delete(tasksListCacheKey(userID))

	logRequest(ctx, "info", "Project updated", zap.Int("project_id", id), zap.Int64("changes", changes))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "Project updated",
		"changes": changes,
	})
}

// DeleteProject handles DELETE /projects/{id}. The cascade (checklist items
// of every child task, then the tasks, then the project) runs in a single
// transaction. Ownership is resolved first, so a non-owned id deletes
// nothing; the response is 204 either way.
func (h *ProjectHandler) DeleteProject(ctx context.Context, w http.ResponseWriter, r *http.Request) {
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
		json.NewEncoder(w).Encode(errs.NewValidationError("Invalid project ID"))
		return
	}

	logRequest(ctx, "info", "Deleting project", zap.Int("project_id", id))

	tx, err := h.db.Beginx()
	if err != nil {
		logRequest(ctx, "error", "Failed to begin transaction", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(errs.NewInternalServerError("Failed to delete project"))
		return
	}
	defer tx.Rollback()

	var ownedID int
	err = tx.Get(&ownedID, "SELECT id FROM projects WHERE id = ? AND userId = ?", id, userID)
	if err == sql.ErrNoRows {
		// Nothing to delete (missing or not the caller's); delete stays
		// idempotent-looking.
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		logRequest(ctx, "error", "Failed to resolve project owner", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(errs.NewInternalServerError("Failed to delete project"))
		return
	}

	var taskIDs []int
	if err := tx.Select(&taskIDs, "SELECT id FROM tasks WHERE projectId = ?", id); err != nil {
		logRequest(ctx, "error", "Failed to list project tasks", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(errs.NewInternalServerError("Failed to delete project"))
		return
	}

	if len(taskIDs) > 0 {
		query, args, err := sqlx.In("DELETE FROM checklist_items WHERE taskId IN (?)", taskIDs)
		if err != nil {
			logRequest(ctx, "error", "Failed to expand checklist delete", zap.Error(err))
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(errs.NewInternalServerError("Failed to delete project"))
			return
		}
		if _, err := tx.Exec(query, args...); err != nil {
			logRequest(ctx, "error", "Failed to delete checklist items", zap.Error(err))
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(errs.NewInternalServerError("Failed to delete project"))
			return
		}
	}

	if _, err := tx.Exec("DELETE FROM tasks WHERE projectId = ?", id); err != nil {
		logRequest(ctx, "error", "Failed to delete project tasks", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(errs.NewInternalServerError("Failed to delete project"))
		return
	}

	if _, err := tx.Exec("DELETE FROM projects WHERE id = ? AND userId = ?", id, userID); err != nil {
		logRequest(ctx, "error", "Failed to delete project", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(errs.NewInternalServerError("Failed to delete project"))
		return
	}

	if err := tx.Commit(); err != nil {
		logRequest(ctx, "error", "Failed to commit project delete", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(errs.NewInternalServerError("Failed to delete project"))
		return
	}

	h.cache.Delete(projectsListCacheKey(userID))
	h.cache.Delete(tasksListCacheKey(userID))

	logRequest(ctx, "info", "Project deleted", zap.Int("project_id", id), zap.Int("tasks", len(taskIDs)))

	w.WriteHeader(http.StatusNoContent)
}

// validateProjectRequest applies the shared title/description/date rules.
func validateProjectRequest(req *models.ProjectRequest) error {
	if err := validateTitle(req.Title, "Project"); err != nil {
		return err
	}
	if err := validateDescription(req.Description); err != nil {
		return err
	}
	return validateDates(req.DateCreated, req.DateCompleted)
}
