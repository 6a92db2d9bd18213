package services

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/sagarchada-pai/task-management-system/internal/models"
)

// UserUpdate carries a self-service profile update. The writable fields
// are whitelisted here; nothing else on the row can be set through it.
type UserUpdate struct {
	Email    *string
	FullName *string
	Password *string
}

type UserService interface {
	GetUserByID(db *gorm.DB, userID uint) (*models.User, error)
	UpdateProfile(db *gorm.DB, userID uint, in UserUpdate) (*models.User, error)
	ListUsers(db *gorm.DB, skip, limit int) ([]models.User, error)
}

type UserServiceImpl struct{}

func NewUserService() *UserServiceImpl {
	return &UserServiceImpl{}
}

func (s *UserServiceImpl) GetUserByID(db *gorm.DB, userID uint) (*models.User, error) {
	var user models.User
	if err := db.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// UpdateProfile only ever touches the row of the authenticated caller;
// the payload cannot redirect it to another user.
func (s *UserServiceImpl) UpdateProfile(db *gorm.DB, userID uint, in UserUpdate) (*models.User, error) {
	v := newValidator()
	if in.Email != nil {
		v.checkEmail(*in.Email)
	}
	if in.Password != nil {
		v.checkPassword(*in.Password)
	}
	if in.FullName != nil {
		v.checkCond(len(*in.FullName) <= 255, "full_name", "must be at most 255 characters")
	}
	if v.hasErrors() {
		return nil, v.toError()
	}

	var user models.User
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&user, userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		updates := map[string]interface{}{}
		if in.Email != nil && *in.Email != user.Email {
			var existing models.User
			err := tx.Where("email = ? AND id <> ?", *in.Email, userID).First(&existing).Error
			if err == nil {
				return &ValidationError{Fields: map[string]string{"email": "already registered"}}
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			updates["email"] = *in.Email
		}
		if in.FullName != nil {
			updates["full_name"] = *in.FullName
		}
		if in.Password != nil {
			hashed, err := bcrypt.GenerateFromPassword([]byte(*in.Password), bcrypt.DefaultCost)
			if err != nil {
				return err
			}
			updates["hashed_password"] = string(hashed)
		}

		if len(updates) == 0 {
			return nil
		}
		if err := tx.Model(&user).Updates(updates).Error; err != nil {
			return err
		}
		return tx.First(&user, user.ID).Error
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *UserServiceImpl) ListUsers(db *gorm.DB, skip, limit int) ([]models.User, error) {
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}
	users := []models.User{}
	result := db.Model(&models.User{}).Order("id ASC").Offset(skip).Limit(limit).Find(&users)
	return users, result.Error
}
