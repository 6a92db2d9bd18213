package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/sagarchada-pai/task-management-system/internal/services"
)

type RegisterHandler struct {
	db              *gorm.DB
	registerService services.RegisterService
}

func NewRegisterHandler(db *gorm.DB, registerService services.RegisterService) *RegisterHandler {
	return &RegisterHandler{db: db, registerService: registerService}
}

func (h *RegisterHandler) Registration(c *gin.Context) {
	var input struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		FullName string `json:"full_name"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	user, err := h.registerService.RegisterUser(h.db, services.RegistrationRequest{
		Email:    input.Email,
		Password: input.Password,
		FullName: input.FullName,
	})
	if err != nil {
		handleServiceError(c, err, "user not found")
		return
	}
	c.JSON(http.StatusCreated, user)
}
