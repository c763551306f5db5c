package models

// ChecklistItem is a sub-item of a task. IsDone travels and is stored as
// 0/1, not a native boolean; clients conform to that convention.
type ChecklistItem struct {
	ID      int    `json:"id" db:"id"`
	TaskID  int    `json:"taskId" db:"taskId"`
	Content string `json:"content" db:"content"`
	IsDone  int    `json:"isDone" db:"isDone"`
}

// ChecklistItemRequest is the create body for checklist items.
type ChecklistItemRequest struct {
	Content string `json:"content"`
	IsDone  int    `json:"isDone"`
}

// ChecklistItemUpdateRequest is the update body. Content is optional: when
// absent only isDone changes.
type ChecklistItemUpdateRequest struct {
	Content *string `json:"content"`
	IsDone  int     `json:"isDone"`
}
