package services

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/sagarchada-pai/task-management-system/internal/models"
)

type RegistrationRequest struct {
	Email    string
	Password string
	FullName string
}

type RegisterService interface {
	RegisterUser(db *gorm.DB, req RegistrationRequest) (*models.User, error)
}

type RegisterServiceImpl struct{}

func NewRegisterService() *RegisterServiceImpl {
	return &RegisterServiceImpl{}
}

func (s *RegisterServiceImpl) RegisterUser(db *gorm.DB, req RegistrationRequest) (*models.User, error) {
	v := newValidator()
	v.checkEmail(req.Email)
	v.checkPassword(req.Password)
	if v.hasErrors() {
		return nil, v.toError()
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := models.User{
		Email:          req.Email,
		HashedPassword: string(hashedPassword),
		FullName:       req.FullName,
		IsActive:       true,
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		var existing models.User
		err := tx.Where("email = ?", req.Email).First(&existing).Error
		if err == nil {
			return &ValidationError{Fields: map[string]string{"email": "already registered"}}
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		return tx.Create(&user).Error
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}
