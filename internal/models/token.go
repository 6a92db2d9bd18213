package models

import (
	"time"

	"github.com/gofrs/uuid"
)

// Token is a persisted refresh token. The JTI embedded in the refresh
// JWT must match a live row for the token to be honored.
type Token struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	UserID       uint      `json:"user_id" gorm:"not null;index"`
	JTI          uuid.UUID `json:"jti" gorm:"uniqueIndex"`
	RefreshToken string    `json:"refresh_token" gorm:"type:text"`
	ExpiresAt    time.Time `json:"expires_at"`
	CreatedAt    time.Time `json:"created_at"`
}
