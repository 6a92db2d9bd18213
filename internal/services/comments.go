package services

import (
	"errors"

	"gorm.io/gorm"

	"github.com/sagarchada-pai/task-management-system/internal/models"
)

type CommentService interface {
	CreateComment(db *gorm.DB, callerID, taskID uint, content string) (models.Comment, error)
	ListComments(db *gorm.DB, callerID, taskID uint) ([]models.Comment, error)
}

type CommentServiceImpl struct{}

func NewCommentService() *CommentServiceImpl {
	return &CommentServiceImpl{}
}

// visibleTask gates comment access with the exact same predicate as
// GetTaskByID: the caller must own the task's project.
func visibleTask(db *gorm.DB, callerID, taskID uint) (models.Task, error) {
	var task models.Task
	err := ownedTasks(db, callerID).Where("tasks.id = ?", taskID).First(&task).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Task{}, ErrNotFound
	}
	return task, err
}

func (s *CommentServiceImpl) CreateComment(db *gorm.DB, callerID, taskID uint, content string) (models.Comment, error) {
	v := newValidator()
	v.checkCond(content != "", "content", "must be provided")
	if v.hasErrors() {
		return models.Comment{}, v.toError()
	}

	var comment models.Comment
	err := db.Transaction(func(tx *gorm.DB) error {
		task, err := visibleTask(tx, callerID, taskID)
		if err != nil {
			return err
		}
		comment = models.Comment{
			Content: content,
			TaskID:  task.ID,
			UserID:  callerID,
		}
		return tx.Create(&comment).Error
	})
	if err != nil {
		return models.Comment{}, err
	}
	return comment, nil
}

func (s *CommentServiceImpl) ListComments(db *gorm.DB, callerID, taskID uint) ([]models.Comment, error) {
	task, err := visibleTask(db, callerID, taskID)
	if err != nil {
		return nil, err
	}
	comments := []models.Comment{}
	result := db.Where("task_id = ?", task.ID).
		Order("created_at ASC, id ASC").
		Find(&comments)
	return comments, result.Error
}
