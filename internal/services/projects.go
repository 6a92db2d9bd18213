package services

import (
	"errors"

	"gorm.io/gorm"

	"github.com/sagarchada-pai/task-management-system/internal/models"
)

type ProjectCreate struct {
	Name        string
	Description string
}

type ProjectUpdate struct {
	Name        *string
	Description *string
}

type ProjectService interface {
	ListProjects(db *gorm.DB, callerID uint, skip, limit int) ([]models.Project, error)
	CreateProject(db *gorm.DB, callerID uint, in ProjectCreate) (models.Project, error)
	GetProjectByID(db *gorm.DB, callerID, projectID uint) (models.Project, error)
	UpdateProject(db *gorm.DB, callerID, projectID uint, in ProjectUpdate) (models.Project, error)
	DeleteProject(db *gorm.DB, callerID, projectID uint) error
}

type ProjectServiceImpl struct{}

func NewProjectService() *ProjectServiceImpl {
	return &ProjectServiceImpl{}
}

// Projects are visible only to their owner. There is no cross-user
// visibility at all.
func ownedProjects(db *gorm.DB, callerID uint) *gorm.DB {
	return db.Model(&models.Project{}).Where("projects.owner_id = ?", callerID)
}

func (s *ProjectServiceImpl) ListProjects(db *gorm.DB, callerID uint, skip, limit int) ([]models.Project, error) {
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}
	projects := []models.Project{}
	result := ownedProjects(db, callerID).Order("projects.id ASC").Offset(skip).Limit(limit).Find(&projects)
	return projects, result.Error
}

func validateProjectCreate(in ProjectCreate) error {
	v := newValidator()
	v.checkCond(in.Name != "", "name", "must be provided")
	v.checkCond(len(in.Name) <= 100, "name", "must be at most 100 characters")
	if v.hasErrors() {
		return v.toError()
	}
	return nil
}

func (s *ProjectServiceImpl) CreateProject(db *gorm.DB, callerID uint, in ProjectCreate) (models.Project, error) {
	if err := validateProjectCreate(in); err != nil {
		return models.Project{}, err
	}
	project := models.Project{
		Name:        in.Name,
		Description: in.Description,
		OwnerID:     callerID,
	}
	if err := db.Create(&project).Error; err != nil {
		return models.Project{}, err
	}
	return project, nil
}

func (s *ProjectServiceImpl) GetProjectByID(db *gorm.DB, callerID, projectID uint) (models.Project, error) {
	var project models.Project
	err := ownedProjects(db, callerID).Where("projects.id = ?", projectID).First(&project).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Project{}, ErrNotFound
	}
	return project, err
}

func (s *ProjectServiceImpl) UpdateProject(db *gorm.DB, callerID, projectID uint, in ProjectUpdate) (models.Project, error) {
	v := newValidator()
	if in.Name != nil {
		v.checkCond(*in.Name != "", "name", "must not be empty")
		v.checkCond(len(*in.Name) <= 100, "name", "must be at most 100 characters")
	}
	if v.hasErrors() {
		return models.Project{}, v.toError()
	}

	var project models.Project
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := ownedProjects(tx, callerID).Where("projects.id = ?", projectID).First(&project).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		updates := map[string]interface{}{}
		if in.Name != nil {
			updates["name"] = *in.Name
		}
		if in.Description != nil {
			updates["description"] = *in.Description
		}
		if len(updates) == 0 {
			return nil
		}
		if err := tx.Model(&project).Updates(updates).Error; err != nil {
			return err
		}
		return tx.First(&project, project.ID).Error
	})
	if err != nil {
		return models.Project{}, err
	}
	return project, nil
}

// DeleteProject removes the project and everything under it: comments of
// its tasks, then the tasks, then the project itself, all in one
// transaction.
func (s *ProjectServiceImpl) DeleteProject(db *gorm.DB, callerID, projectID uint) error {
	return db.Transaction(func(tx *gorm.DB) error {
		var project models.Project
		if err := ownedProjects(tx, callerID).Where("projects.id = ?", projectID).First(&project).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if err := tx.Where("task_id IN (?)",
			tx.Model(&models.Task{}).Select("id").Where("project_id = ?", project.ID),
		).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("project_id = ?", project.ID).Delete(&models.Task{}).Error; err != nil {
			return err
		}
		return tx.Delete(&project).Error
	})
}
