package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/sagarchada-pai/task-management-system/internal/config"
	"github.com/sagarchada-pai/task-management-system/internal/models"
)

type AuthService interface {
	LoginUser(db *gorm.DB, email, password string) (*models.User, error)
	GenerateTokenPair(db *gorm.DB, userID uint) (string, string, error)
	RefreshTokenPair(db *gorm.DB, refreshToken string) (string, string, int64, error)
	RevokeToken(db *gorm.DB, refreshToken string) error
}

type AuthServiceImpl struct {
	cfg config.JWTConfig
}

func NewAuthService(cfg config.JWTConfig) *AuthServiceImpl {
	return &AuthServiceImpl{cfg: cfg}
}

func VerifyPassword(hashedPassword, plainPassword string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(plainPassword))
	return err == nil
}

func (s *AuthServiceImpl) LoginUser(db *gorm.DB, email, password string) (*models.User, error) {
	var user models.User
	if err := db.Where("email = ? AND is_active = ?", email, true).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !VerifyPassword(user.HashedPassword, password) {
		return nil, ErrInvalidCredentials
	}
	return &user, nil
}

// GenerateTokenPair issues a signed access token and a refresh token
// whose JTI is persisted so it can be rotated or revoked.
func (s *AuthServiceImpl) GenerateTokenPair(db *gorm.DB, userID uint) (string, string, error) {
	now := time.Now()

	accessClaims := jwt.MapClaims{
		"sub": fmt.Sprintf("%d", userID),
		"iat": now.Unix(),
		"exp": now.Add(s.cfg.AccessTTL).Unix(),
		"iss": "task-management-system",
	}
	accessToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, accessClaims).SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return "", "", fmt.Errorf("failed to sign access token: %w", err)
	}

	jti, err := uuid.NewV4()
	if err != nil {
		return "", "", fmt.Errorf("failed to generate jti: %w", err)
	}

	refreshExpiry := now.Add(s.cfg.RefreshTTL)
	refreshClaims := jwt.MapClaims{
		"sub": fmt.Sprintf("%d", userID),
		"typ": "refresh",
		"jti": jti.String(),
		"iat": now.Unix(),
		"exp": refreshExpiry.Unix(),
		"iss": "task-management-system",
	}
	refreshToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, refreshClaims).SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return "", "", fmt.Errorf("failed to sign refresh token: %w", err)
	}

	record := models.Token{
		UserID:       userID,
		JTI:          jti,
		RefreshToken: refreshToken,
		ExpiresAt:    refreshExpiry,
	}
	if err := db.Create(&record).Error; err != nil {
		return "", "", fmt.Errorf("failed to persist refresh token: %w", err)
	}

	return accessToken, refreshToken, nil
}

// RefreshTokenPair rotates a refresh token: the presented token must
// parse, carry a live persisted JTI, and is deleted once the new pair is
// issued.
func (s *AuthServiceImpl) RefreshTokenPair(db *gorm.DB, refreshToken string) (string, string, int64, error) {
	userID, jti, err := s.parseRefreshToken(refreshToken)
	if err != nil {
		return "", "", 0, err
	}

	var accessToken, newRefreshToken string
	err = db.Transaction(func(tx *gorm.DB) error {
		var record models.Token
		if err := tx.Where("jti = ? AND user_id = ? AND expires_at > ?", jti, userID, time.Now()).First(&record).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInvalidToken
			}
			return err
		}
		if err := tx.Delete(&record).Error; err != nil {
			return err
		}
		accessToken, newRefreshToken, err = s.GenerateTokenPair(tx, userID)
		return err
	})
	if err != nil {
		return "", "", 0, err
	}
	return accessToken, newRefreshToken, int64(s.cfg.AccessTTL.Seconds()), nil
}

func (s *AuthServiceImpl) RevokeToken(db *gorm.DB, refreshToken string) error {
	_, jti, err := s.parseRefreshToken(refreshToken)
	if err != nil {
		return err
	}
	return db.Where("jti = ?", jti).Delete(&models.Token{}).Error
}

func (s *AuthServiceImpl) parseRefreshToken(refreshToken string) (uint, uuid.UUID, error) {
	token, err := jwt.Parse(refreshToken, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.cfg.Secret), nil
	})
	if err != nil || !token.Valid {
		return 0, uuid.Nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, uuid.Nil, ErrInvalidToken
	}
	if typ, _ := claims["typ"].(string); typ != "refresh" {
		return 0, uuid.Nil, ErrInvalidToken
	}

	jtiStr, ok := claims["jti"].(string)
	if !ok {
		return 0, uuid.Nil, ErrInvalidToken
	}
	jti, err := uuid.FromString(jtiStr)
	if err != nil {
		return 0, uuid.Nil, ErrInvalidToken
	}

	sub, ok := claims["sub"].(string)
	if !ok {
		return 0, uuid.Nil, ErrInvalidToken
	}
	var userID uint
	if _, err := fmt.Sscanf(sub, "%d", &userID); err != nil {
		return 0, uuid.Nil, ErrInvalidToken
	}

	return userID, jti, nil
}
