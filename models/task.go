package models

// AllowedStatuses is the fixed status enumeration. Empty/omitted is allowed;
// anything else is rejected.
var AllowedStatuses = map[string]bool{
	"pending":     true,
	"in progress": true,
	"completed":   true,
}

// AllowedPriorities is the fixed priority enumeration.
var AllowedPriorities = map[string]bool{
	"low":    true,
	"medium": true,
	"high":   true,
}

// Task belongs to a user and optionally to one of that user's projects.
type Task struct {
	ID            int     `json:"id" db:"id"`
	UserID        int     `json:"userId" db:"userId"`
	ProjectID     *int    `json:"projectId" db:"projectId"`
	Title         string  `json:"title" db:"title"`
	Description   *string `json:"description" db:"description"`
	Status        *string `json:"status" db:"status"`
	Priority      *string `json:"priority" db:"priority"`
	Category      *string `json:"category" db:"category"`
	DueDate       *string `json:"dueDate" db:"dueDate"`
	ReminderDate  *string `json:"reminderDate" db:"reminderDate"`
	Repeat        *string `json:"repeat" db:"repeat"`
	DateCreated   *string `json:"dateCreated" db:"dateCreated"`
	DateCompleted *string `json:"dateCompleted" db:"dateCompleted"`
}

// TaskWithMeta is a task row annotated for the task list: parent project
// title plus checklist progress counts computed by correlated subqueries.
type TaskWithMeta struct {
	Task
	ProjectTitle      *string `json:"projectTitle" db:"projectTitle"`
	CompletedSubtasks int     `json:"completedSubtasks" db:"completedSubtasks"`
	TotalSubtasks     int     `json:"totalSubtasks" db:"totalSubtasks"`
}

// TaskRequest is the create/update body for tasks. DateCompleted is only
// meaningful on update; create ignores it.
type TaskRequest struct {
	ProjectID     *int    `json:"projectId"`
	Title         string  `json:"title"`
	Description   *string `json:"description"`
	Status        *string `json:"status"`
	Priority      *string `json:"priority"`
	Category      *string `json:"category"`
	DueDate       *string `json:"dueDate"`
	ReminderDate  *string `json:"reminderDate"`
	Repeat        *string `json:"repeat"`
	DateCreated   *string `json:"dateCreated"`
	DateCompleted *string `json:"dateCompleted"`
}

// TaskStatusRequest is the status-only update body.
type TaskStatusRequest struct {
	Status string `json:"status"`
}
