package models

import "time"

// TaskStatus is the board column a task sits in.
type TaskStatus string

const (
	TaskTodo       TaskStatus = "todo"
	TaskInProgress TaskStatus = "in_progress"
	TaskDone       TaskStatus = "done"
)

// Task is a unit of work within a project.
type Task struct {
	BaseModel
	ProjectID   string     `gorm:"type:uuid;not null;index" json:"project_id"`
	Title       string     `gorm:"not null" json:"title"`
	Description string     `json:"description,omitempty"`
	Status      TaskStatus `gorm:"size:16;not null;default:todo" json:"status"`
	Priority    string     `gorm:"size:16;not null;default:medium" json:"priority"`
	AssigneeID  *string    `gorm:"type:uuid;index" json:"assignee_id,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
}
