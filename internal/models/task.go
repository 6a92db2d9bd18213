package models

import "time"

// Task statuses as stored in the database. Filters and writes compare
// against these exact values.
const (
	StatusTodo       = "todo"
	StatusInProgress = "in_progress"
	StatusDone       = "done"
)

func ValidStatus(s string) bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusDone:
		return true
	}
	return false
}

type Task struct {
	ID          uint       `json:"id" gorm:"primaryKey"`
	Title       string     `json:"title" gorm:"not null"`
	Description string     `json:"description"`
	Status      string     `json:"status" gorm:"not null;default:'todo'"`
	Priority    *int       `json:"priority"`
	DueDate     *time.Time `json:"due_date"`
	ProjectID   uint       `json:"project_id" gorm:"not null;index"`
	AssigneeID  *uint      `json:"assignee_id"`
	CreatedBy   uint       `json:"created_by" gorm:"not null"`
	// Stamped by the database, not the API instance, so creation order
	// stays consistent under clock skew across instances.
	CreatedAt   time.Time  `json:"created_at" gorm:"autoCreateTime:false;not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
