package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/sagarchada-pai/task-management-system/internal/middleware"
	"github.com/sagarchada-pai/task-management-system/internal/services"
)

type UserHandler struct {
	db          *gorm.DB
	userService services.UserService
}

func NewUserHandler(db *gorm.DB, userService services.UserService) *UserHandler {
	return &UserHandler{db: db, userService: userService}
}

// GetProfile returns the caller's own row. The hashed password never
// serializes (json:"-" on the model).
func (h *UserHandler) GetProfile(c *gin.Context) {
	user, err := h.userService.GetUserByID(h.db, middleware.CallerID(c))
	if err != nil {
		handleServiceError(c, err, "user not found")
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *UserHandler) UpdateProfile(c *gin.Context) {
	var input struct {
		Email    *string `json:"email"`
		FullName *string `json:"full_name"`
		Password *string `json:"password"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	user, err := h.userService.UpdateProfile(h.db, middleware.CallerID(c), services.UserUpdate{
		Email:    input.Email,
		FullName: input.FullName,
		Password: input.Password,
	})
	if err != nil {
		handleServiceError(c, err, "user not found")
		return
	}
	c.JSON(http.StatusOK, user)
}

// GetUsers lists accounts. Routed behind the superuser gate.
func (h *UserHandler) GetUsers(c *gin.Context) {
	skip, _ := strconv.Atoi(c.DefaultQuery("skip", "0"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	users, err := h.userService.ListUsers(h.db, skip, limit)
	if err != nil {
		handleServiceError(c, err, "user not found")
		return
	}
	c.JSON(http.StatusOK, users)
}
