package services

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/sagarchada-pai/task-management-system/internal/models"
)

// maxListLimit bounds every list response regardless of what the caller
// asked for.
const maxListLimit = 100

type TaskFilter struct {
	Status     string
	ProjectID  *uint
	AssigneeID *uint
	Skip       int
	Limit      int
}

type TaskCreate struct {
	Title       string
	Description string
	Status      string
	Priority    *int
	DueDate     *time.Time
	ProjectID   uint
	AssigneeID  *uint
}

// TaskUpdate carries a partial payload. Nil fields were absent from the
// request and leave the stored value untouched.
type TaskUpdate struct {
	Title       *string
	Description *string
	Status      *string
	Priority    *int
	DueDate     *time.Time
	ProjectID   *uint
	AssigneeID  *uint
}

type TaskService interface {
	ListTasks(db *gorm.DB, callerID uint, filter TaskFilter) ([]models.Task, error)
	CreateTask(db *gorm.DB, callerID uint, in TaskCreate) (models.Task, error)
	GetTaskByID(db *gorm.DB, callerID, taskID uint) (models.Task, error)
	UpdateTask(db *gorm.DB, callerID, taskID uint, in TaskUpdate) (models.Task, error)
	DeleteTask(db *gorm.DB, callerID, taskID uint) error
}

type TaskServiceImpl struct{}

func NewTaskService() *TaskServiceImpl {
	return &TaskServiceImpl{}
}

// ownedTasks is the single ownership predicate for tasks: the task row
// must join to a project owned by the caller. Every read and write path
// goes through it, so a task belonging to someone else's project is
// indistinguishable from one that does not exist.
func ownedTasks(db *gorm.DB, callerID uint) *gorm.DB {
	return db.Model(&models.Task{}).
		Select("tasks.*").
		Joins("JOIN projects ON projects.id = tasks.project_id AND projects.owner_id = ?", callerID)
}

func (s *TaskServiceImpl) ListTasks(db *gorm.DB, callerID uint, filter TaskFilter) ([]models.Task, error) {
	query := ownedTasks(db, callerID)

	// Filters compare against the canonical stored values. An
	// unrecognized status simply matches no rows.
	if filter.Status != "" {
		query = query.Where("tasks.status = ?", filter.Status)
	}
	if filter.ProjectID != nil {
		query = query.Where("tasks.project_id = ?", *filter.ProjectID)
	}
	if filter.AssigneeID != nil {
		query = query.Where("tasks.assignee_id = ?", *filter.AssigneeID)
	}

	skip := filter.Skip
	if skip < 0 {
		skip = 0
	}
	limit := filter.Limit
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}

	tasks := []models.Task{}
	// Stable ordering keeps offset pagination deterministic under
	// concurrent inserts.
	result := query.Order("tasks.id ASC").Offset(skip).Limit(limit).Find(&tasks)
	return tasks, result.Error
}

func validateTaskCreate(in TaskCreate) error {
	v := newValidator()
	v.checkCond(in.Title != "", "title", "must be provided")
	v.checkCond(len(in.Title) <= 255, "title", "must be at most 255 characters")
	v.checkCond(in.Status == "" || models.ValidStatus(in.Status), "status", "must be one of todo, in_progress, done")
	v.checkCond(in.Priority == nil || (*in.Priority >= 1 && *in.Priority <= 5), "priority", "must be between 1 and 5")
	v.checkCond(in.ProjectID != 0, "project_id", "must be provided")
	if v.hasErrors() {
		return v.toError()
	}
	return nil
}

func (s *TaskServiceImpl) CreateTask(db *gorm.DB, callerID uint, in TaskCreate) (models.Task, error) {
	if err := validateTaskCreate(in); err != nil {
		return models.Task{}, err
	}

	status := in.Status
	if status == "" {
		status = models.StatusTodo
	}

	var task models.Task
	err := db.Transaction(func(tx *gorm.DB) error {
		var project models.Project
		if err := tx.Where("id = ? AND owner_id = ?", in.ProjectID, callerID).First(&project).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		if in.AssigneeID != nil {
			if err := requireUserExists(tx, *in.AssigneeID); err != nil {
				return err
			}
		}

		task = models.Task{
			Title:       in.Title,
			Description: in.Description,
			Status:      status,
			Priority:    in.Priority,
			DueDate:     in.DueDate,
			ProjectID:   in.ProjectID,
			AssigneeID:  in.AssigneeID,
			CreatedBy:   callerID,
		}
		if err := tx.Create(&task).Error; err != nil {
			return err
		}
		// Re-read inside the transaction to pick up the
		// database-stamped creation time.
		return tx.First(&task, task.ID).Error
	})
	if err != nil {
		return models.Task{}, err
	}
	return task, nil
}

func (s *TaskServiceImpl) GetTaskByID(db *gorm.DB, callerID, taskID uint) (models.Task, error) {
	var task models.Task
	err := ownedTasks(db, callerID).Where("tasks.id = ?", taskID).First(&task).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Task{}, ErrNotFound
	}
	return task, err
}

func (s *TaskServiceImpl) UpdateTask(db *gorm.DB, callerID, taskID uint, in TaskUpdate) (models.Task, error) {
	v := newValidator()
	if in.Title != nil {
		v.checkCond(*in.Title != "", "title", "must not be empty")
		v.checkCond(len(*in.Title) <= 255, "title", "must be at most 255 characters")
	}
	if in.Status != nil {
		v.checkCond(models.ValidStatus(*in.Status), "status", "must be one of todo, in_progress, done")
	}
	if in.Priority != nil {
		v.checkCond(*in.Priority >= 1 && *in.Priority <= 5, "priority", "must be between 1 and 5")
	}
	if v.hasErrors() {
		return models.Task{}, v.toError()
	}

	var task models.Task
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := ownedTasks(tx, callerID).Where("tasks.id = ?", taskID).First(&task).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		updates := map[string]interface{}{}
		if in.Title != nil {
			updates["title"] = *in.Title
		}
		if in.Description != nil {
			updates["description"] = *in.Description
		}
		if in.Status != nil {
			updates["status"] = *in.Status
		}
		if in.Priority != nil {
			updates["priority"] = *in.Priority
		}
		if in.DueDate != nil {
			updates["due_date"] = *in.DueDate
		}
		if in.ProjectID != nil {
			// Moving the task requires owning the destination
			// project too.
			var project models.Project
			if err := tx.Where("id = ? AND owner_id = ?", *in.ProjectID, callerID).First(&project).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrNotFound
				}
				return err
			}
			updates["project_id"] = *in.ProjectID
		}
		if in.AssigneeID != nil {
			if err := requireUserExists(tx, *in.AssigneeID); err != nil {
				return err
			}
			updates["assignee_id"] = *in.AssigneeID
		}

		if len(updates) == 0 {
			return nil
		}
		if err := tx.Model(&task).Updates(updates).Error; err != nil {
			return err
		}
		return tx.First(&task, task.ID).Error
	})
	if err != nil {
		return models.Task{}, err
	}
	return task, nil
}

func (s *TaskServiceImpl) DeleteTask(db *gorm.DB, callerID, taskID uint) error {
	return db.Transaction(func(tx *gorm.DB) error {
		var task models.Task
		if err := ownedTasks(tx, callerID).Where("tasks.id = ?", taskID).First(&task).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		// Child comments go with the task so none are orphaned.
		if err := tx.Where("task_id = ?", task.ID).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		return tx.Delete(&task).Error
	})
}

// requireUserExists validates an assignee reference. A missing user is a
// payload problem, not an authorization one.
func requireUserExists(tx *gorm.DB, userID uint) error {
	var user models.User
	if err := tx.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &ValidationError{Fields: map[string]string{"assignee_id": "user does not exist"}}
		}
		return err
	}
	return nil
}
