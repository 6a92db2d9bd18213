package models

import "time"

type User struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	Email          string    `json:"email" gorm:"uniqueIndex;not null"`
	HashedPassword string    `json:"-" gorm:"not null"`
	FullName       string    `json:"full_name"`
	IsActive       bool      `json:"is_active" gorm:"not null;default:true"`
	IsSuperuser    bool      `json:"is_superuser" gorm:"not null;default:false"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
