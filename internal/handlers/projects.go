package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/sagarchada-pai/task-management-system/internal/middleware"
	"github.com/sagarchada-pai/task-management-system/internal/services"
)

type ProjectHandler struct {
	db             *gorm.DB
	projectService services.ProjectService
}

func NewProjectHandler(db *gorm.DB, projectService services.ProjectService) *ProjectHandler {
	return &ProjectHandler{db: db, projectService: projectService}
}

func (h *ProjectHandler) GetProjects(c *gin.Context) {
	skip, _ := strconv.Atoi(c.DefaultQuery("skip", "0"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	projects, err := h.projectService.ListProjects(h.db, middleware.CallerID(c), skip, limit)
	if err != nil {
		handleServiceError(c, err, "project not found")
		return
	}
	c.JSON(http.StatusOK, projects)
}

func (h *ProjectHandler) CreateProject(c *gin.Context) {
	var input struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	project, err := h.projectService.CreateProject(h.db, middleware.CallerID(c), services.ProjectCreate{
		Name:        input.Name,
		Description: input.Description,
	})
	if err != nil {
		handleServiceError(c, err, "project not found")
		return
	}
	c.JSON(http.StatusCreated, project)
}

func (h *ProjectHandler) GetProjectByID(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	project, err := h.projectService.GetProjectByID(h.db, middleware.CallerID(c), id)
	if err != nil {
		handleServiceError(c, err, "project not found")
		return
	}
	c.JSON(http.StatusOK, project)
}

func (h *ProjectHandler) UpdateProject(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var input struct {
		Name        *string `json:"name"`
		Description *string `json:"description"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	project, err := h.projectService.UpdateProject(h.db, middleware.CallerID(c), id, services.ProjectUpdate{
		Name:        input.Name,
		Description: input.Description,
	})
	if err != nil {
		handleServiceError(c, err, "project not found")
		return
	}
	c.JSON(http.StatusOK, project)
}

func (h *ProjectHandler) DeleteProject(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.projectService.DeleteProject(h.db, middleware.CallerID(c), id); err != nil {
		handleServiceError(c, err, "project not found")
		return
	}
	c.Status(http.StatusNoContent)
}
