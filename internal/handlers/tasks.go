package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/sagarchada-pai/task-management-system/internal/middleware"
	"github.com/sagarchada-pai/task-management-system/internal/services"
)

type TaskHandler struct {
	db             *gorm.DB
	taskService    services.TaskService
	commentService services.CommentService
}

func NewTaskHandler(db *gorm.DB, taskService services.TaskService, commentService services.CommentService) *TaskHandler {
	return &TaskHandler{db: db, taskService: taskService, commentService: commentService}
}

func (h *TaskHandler) GetTasks(c *gin.Context) {
	filter := services.TaskFilter{
		Status: c.Query("status"),
	}
	if raw := c.Query("project_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid project_id"})
			return
		}
		projectID := uint(id)
		filter.ProjectID = &projectID
	}
	if raw := c.Query("assignee_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid assignee_id"})
			return
		}
		assigneeID := uint(id)
		filter.AssigneeID = &assigneeID
	}
	filter.Skip, _ = strconv.Atoi(c.DefaultQuery("skip", "0"))
	filter.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "100"))

	tasks, err := h.taskService.ListTasks(h.db, middleware.CallerID(c), filter)
	if err != nil {
		handleServiceError(c, err, "task not found")
		return
	}
	c.JSON(http.StatusOK, tasks)
}

func (h *TaskHandler) CreateTask(c *gin.Context) {
	var input struct {
		Title       string     `json:"title"`
		Description string     `json:"description"`
		Status      string     `json:"status"`
		Priority    *int       `json:"priority"`
		DueDate     *time.Time `json:"due_date"`
		ProjectID   uint       `json:"project_id"`
		AssigneeID  *uint      `json:"assignee_id"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	task, err := h.taskService.CreateTask(h.db, middleware.CallerID(c), services.TaskCreate{
		Title:       input.Title,
		Description: input.Description,
		Status:      input.Status,
		Priority:    input.Priority,
		DueDate:     input.DueDate,
		ProjectID:   input.ProjectID,
		AssigneeID:  input.AssigneeID,
	})
	if err != nil {
		handleServiceError(c, err, "project not found")
		return
	}
	c.JSON(http.StatusCreated, task)
}

func (h *TaskHandler) GetTaskByID(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	task, err := h.taskService.GetTaskByID(h.db, middleware.CallerID(c), id)
	if err != nil {
		handleServiceError(c, err, "task not found")
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *TaskHandler) UpdateTask(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var input struct {
		Title       *string    `json:"title"`
		Description *string    `json:"description"`
		Status      *string    `json:"status"`
		Priority    *int       `json:"priority"`
		DueDate     *time.Time `json:"due_date"`
		ProjectID   *uint      `json:"project_id"`
		AssigneeID  *uint      `json:"assignee_id"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	task, err := h.taskService.UpdateTask(h.db, middleware.CallerID(c), id, services.TaskUpdate{
		Title:       input.Title,
		Description: input.Description,
		Status:      input.Status,
		Priority:    input.Priority,
		DueDate:     input.DueDate,
		ProjectID:   input.ProjectID,
		AssigneeID:  input.AssigneeID,
	})
	if err != nil {
		handleServiceError(c, err, "task not found")
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *TaskHandler) DeleteTask(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.taskService.DeleteTask(h.db, middleware.CallerID(c), id); err != nil {
		handleServiceError(c, err, "task not found")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *TaskHandler) CreateComment(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var input struct {
		Content string `json:"content"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	comment, err := h.commentService.CreateComment(h.db, middleware.CallerID(c), id, input.Content)
	if err != nil {
		handleServiceError(c, err, "task not found")
		return
	}
	c.JSON(http.StatusCreated, comment)
}

func (h *TaskHandler) GetComments(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	comments, err := h.commentService.ListComments(h.db, middleware.CallerID(c), id)
	if err != nil {
		handleServiceError(c, err, "task not found")
		return
	}
	c.JSON(http.StatusOK, comments)
}
