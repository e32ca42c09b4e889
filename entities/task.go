package entities

import "time"

// Task is a single user-owned work item. Only Completed changes after creation.
type Task struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	DueDate    *string   `json:"dueDate"`
	Attachment *string   `json:"attachment"`
	Completed  bool      `json:"completed"`
	CreatedAt  time.Time `json:"createdAt"`
	UserID     string    `json:"userId"`
}

// TaskInput is what a surface hands to the store when creating a task.
type TaskInput struct {
	Title      string  `json:"title" form:"title"`
	DueDate    *string `json:"dueDate" form:"dueDate"`
	Attachment *string `json:"-" form:"-"`
}
