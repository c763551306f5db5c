package models

// Project is a top-level container for tasks, owned by exactly one user.
// Date columns are stored as TEXT; optional columns are pointers so NULLs
// round-trip as JSON null.
type Project struct {
	ID            int           `json:"id" db:"id"`
	UserID        int           `json:"userId" db:"userId"`
	Title         string        `json:"title" db:"title"`
	Description   *string       `json:"description" db:"description"`
	DateCreated   *string       `json:"dateCreated" db:"dateCreated"`
	DateCompleted *string       `json:"dateCompleted" db:"dateCompleted"`
	Tasks         []ProjectTask `json:"tasks" db:"-"`
}

// ProjectSummary is the projection returned by the project list.
type ProjectSummary struct {
	ID    int    `json:"id" db:"id"`
	Title string `json:"title" db:"title"`
}

// ProjectTask is a task as embedded in the project detail response,
// carrying its full checklist.
type ProjectTask struct {
	Task
	ChecklistItems []ChecklistItem `json:"checklistItems" db:"-"`
}

// ProjectRequest is the create/update body. Updates are full-row replaces,
// so the same shape serves both.
type ProjectRequest struct {
	Title         string  `json:"title"`
	Description   *string `json:"description"`
	DateCreated   *string `json:"dateCreated"`
	DateCompleted *string `json:"dateCompleted"`
}
