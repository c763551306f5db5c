package handlers

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"checkit-service/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTaskHandler(t *testing.T) (*TaskHandler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock := newTestDB(t)
	return NewTaskHandler(db, newTestCache(t)), mock
}

var taskListColumns = []string{
	"id", "userId", "projectId", "title", "description", "status", "priority",
	"category", "dueDate", "reminderDate", "repeat", "dateCreated", "dateCompleted",
	"projectTitle", "completedSubtasks", "totalSubtasks",
}

func TestGetTasksIncludesProgressCounts(t *testing.T) {
	h, mock := newTaskHandler(t)

	mock.ExpectQuery("LEFT JOIN projects ON tasks.projectId = projects.id").
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows(taskListColumns).
			AddRow(10, 1, 4, "Dig beds", nil, "pending", "high", nil, nil, nil, nil, "2024-01-02", nil, "Garden", 1, 3).
			AddRow(11, 1, nil, "Standalone chore", nil, "completed", nil, nil, nil, nil, nil, "2024-01-01", nil, nil, 0, 0))

	w := httptest.NewRecorder()
	h.GetTasks(authedCtx(1), w, jsonRequest("GET", "/tasks", "", nil))

	require.Equal(t, 200, w.Code)

	var tasks []models.TaskWithMeta
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tasks))
	require.Len(t, tasks, 2)

	assert.Equal(t, "Dig beds", tasks[0].Title)
	require.NotNil(t, tasks[0].ProjectTitle)
	assert.Equal(t, "Garden", *tasks[0].ProjectTitle)
	assert.Equal(t, 1, tasks[0].CompletedSubtasks)
	assert.Equal(t, 3, tasks[0].TotalSubtasks)

	assert.Nil(t, tasks[1].ProjectTitle)
	assert.Equal(t, 0, tasks[1].TotalSubtasks)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateTaskValidation(t *testing.T) {
	h, mock := newTaskHandler(t)

	cases := []struct {
		name string
		body string
		want string
	}{
		{"missing title", `{}`, "Task title is required."},
		{"bad status", `{"title":"ok","status":"done"}`, "Invalid task status."},
		{"bad priority", `{"title":"ok","priority":"urgent"}`, "Invalid task priority."},
		{"bad date", `{"title":"ok","dateCreated":"whenever"}`, "Invalid dateCreated"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			h.CreateTask(authedCtx(1), w, jsonRequest("POST", "/tasks", tc.body, nil))
			assert.Equal(t, 400, w.Code)
			assert.Contains(t, w.Body.String(), tc.want)
		})
	}

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateTaskSuccess(t *testing.T) {
	h, mock := newTaskHandler(t)

	mock.ExpectExec("INSERT INTO tasks").
		WithArgs(1, 4, "Dig beds", nil, "pending", "high", nil, nil, nil, nil, "2024-01-02").
		WillReturnResult(sqlmock.NewResult(10, 1))

	body := `{"title":"Dig beds","projectId":4,"status":"pending","priority":"high","dateCreated":"2024-01-02"}`
	w := httptest.NewRecorder()
	h.CreateTask(authedCtx(1), w, jsonRequest("POST", "/tasks", body, nil))

	require.Equal(t, 201, w.Code)

	var resp map[string]int64
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(10), resp["id"])

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateTaskIgnoresDateCompleted(t *testing.T) {
	h, mock := newTaskHandler(t)

	// A completion date supplied at creation is not stored; the column only
	// exists for updates.
	mock.ExpectExec("INSERT INTO tasks").
		WithArgs(1, nil, "Dig beds", nil, nil, nil, nil, nil, nil, nil, "2024-01-02").
		WillReturnResult(sqlmock.NewResult(12, 1))

	body := `{"title":"Dig beds","dateCreated":"2024-01-02","dateCompleted":"2024-01-05"}`
	w := httptest.NewRecorder()
	h.CreateTask(authedCtx(1), w, jsonRequest("POST", "/tasks", body, nil))

	require.Equal(t, 201, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateTaskNoMatchIs404(t *testing.T) {
	h, mock := newTaskHandler(t)

	mock.ExpectExec("UPDATE tasks SET").
		WillReturnResult(sqlmock.NewResult(0, 0))

	w := httptest.NewRecorder()
	h.UpdateTask(authedCtx(1), w, jsonRequest("PUT", "/tasks/99", `{"title":"ok"}`, map[string]string{"id": "99"}))

	assert.Equal(t, 404, w.Code)
	assert.Contains(t, w.Body.String(), "Task not found or unauthorized")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateTaskSuccess(t *testing.T) {
	h, mock := newTaskHandler(t)

	mock.ExpectExec("UPDATE tasks SET").
		WithArgs(4, "Dig beds", nil, "in progress", nil, nil, nil, nil, nil, "2024-01-02", nil, 10, 1).
		WillReturnResult(sqlmock.NewResult(0, 1))

	body := `{"title":"Dig beds","projectId":4,"status":"in progress","dateCreated":"2024-01-02"}`
	w := httptest.NewRecorder()
	h.UpdateTask(authedCtx(1), w, jsonRequest("PUT", "/tasks/10", body, map[string]string{"id": "10"}))

	require.Equal(t, 200, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Task updated", resp["message"])
	assert.Equal(t, float64(1), resp["changes"])

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateTaskStatusRejectsUnknownStatus(t *testing.T) {
	h, mock := newTaskHandler(t)

	w := httptest.NewRecorder()
	h.UpdateTaskStatus(authedCtx(1), w, jsonRequest("PATCH", "/tasks/10/status", `{"status":"done"}`, map[string]string{"id": "10"}))

	assert.Equal(t, 400, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid task status.")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateTaskStatusForeignTaskIs403(t *testing.T) {
	h, mock := newTaskHandler(t)

	mock.ExpectQuery("SELECT userId FROM tasks").
		WithArgs(10).
		WillReturnRows(sqlmock.NewRows([]string{"userId"}).AddRow(2))

	w := httptest.NewRecorder()
	h.UpdateTaskStatus(authedCtx(1), w, jsonRequest("PATCH", "/tasks/10/status", `{"status":"completed"}`, map[string]string{"id": "10"}))

	assert.Equal(t, 403, w.Code)
	assert.Contains(t, w.Body.String(), "Unauthorized or task not found.")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateTaskStatusMissingTaskIs403(t *testing.T) {
	h, mock := newTaskHandler(t)

	mock.ExpectQuery("SELECT userId FROM tasks").
		WithArgs(99).
		WillReturnRows(sqlmock.NewRows([]string{"userId"}))

	w := httptest.NewRecorder()
	h.UpdateTaskStatus(authedCtx(1), w, jsonRequest("PATCH", "/tasks/99/status", `{"status":"completed"}`, map[string]string{"id": "99"}))

	assert.Equal(t, 403, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateTaskStatusSuccess(t *testing.T) {
	h, mock := newTaskHandler(t)

	mock.ExpectQuery("SELECT userId FROM tasks").
		WithArgs(10).
		WillReturnRows(sqlmock.NewRows([]string{"userId"}).AddRow(1))
	mock.ExpectExec("UPDATE tasks SET status").
		WithArgs("completed", 10).
		WillReturnResult(sqlmock.NewResult(0, 1))

	w := httptest.NewRecorder()
	h.UpdateTaskStatus(authedCtx(1), w, jsonRequest("PATCH", "/tasks/10/status", `{"status":"completed"}`, map[string]string{"id": "10"}))

	require.Equal(t, 200, w.Code)
	assert.Contains(t, w.Body.String(), `"success":true`)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateTaskStatusLegacyPathVar(t *testing.T) {
	h, mock := newTaskHandler(t)

	mock.ExpectQuery("SELECT userId FROM tasks").
		WithArgs(10).
		WillReturnRows(sqlmock.NewRows([]string{"userId"}).AddRow(1))
	mock.ExpectExec("UPDATE tasks SET status").
		WithArgs("completed", 10).
		WillReturnResult(sqlmock.NewResult(0, 1))

	w := httptest.NewRecorder()
	h.UpdateTaskStatus(authedCtx(1), w,
		jsonRequest("PUT", "/tasks/tasks/10/status", `{"status":"completed"}`, map[string]string{"taskId": "10"}))

	require.Equal(t, 200, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteTaskCascadesChecklist(t *testing.T) {
	h, mock := newTaskHandler(t)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM checklist_items").
		WithArgs(10, 1).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("DELETE FROM tasks").
		WithArgs(10, 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	w := httptest.NewRecorder()
	h.DeleteTask(authedCtx(1), w, jsonRequest("DELETE", "/tasks/10", "", map[string]string{"id": "10"}))

	require.Equal(t, 200, w.Code)
	assert.Contains(t, w.Body.String(), "Task deleted")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteTaskNotFound(t *testing.T) {
	h, mock := newTaskHandler(t)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM checklist_items").
		WithArgs(99, 1).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM tasks").
		WithArgs(99, 1).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	w := httptest.NewRecorder()
	h.DeleteTask(authedCtx(1), w, jsonRequest("DELETE", "/tasks/99", "", map[string]string{"id": "99"}))

	assert.Equal(t, 404, w.Code)
	assert.Contains(t, w.Body.String(), "Task not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}
