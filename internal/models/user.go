package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is a platform member. Accounts are managed elsewhere; the gateway only reads them
// to resolve connection identities.
type User struct {
	ID         string `gorm:"primaryKey;type:uuid" json:"id"`
	FullName   string `gorm:"not null" json:"full_name"`
	Email      string `gorm:"uniqueIndex;not null" json:"email"`
	ProfilePic string `json:"profile_pic"`
	Bio        string `json:"bio"`
	IsActive   bool   `gorm:"default:true" json:"is_active"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// BeforeCreate ensures a UUID is present before persisting.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}
