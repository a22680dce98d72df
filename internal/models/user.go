package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is an account holder. Email is the login identity and is stored
// lowercase. Password holds a bcrypt hash and is never serialised.
// GeminiAPIKey is AES-GCM encrypted at rest and likewise never serialised.
type User struct {
	ID       string `gorm:"primaryKey;type:uuid" json:"id"`
	Email    string `gorm:"uniqueIndex;not null" json:"email"`
	Password string `gorm:"not null" json:"-"`

	Name   string `gorm:"not null" json:"name"`
	Avatar string `json:"avatar,omitempty"`

	GeminiAPIKey string `json:"-"`

	IsActive  bool       `gorm:"default:true" json:"is_active"`
	LastLogin *time.Time `json:"last_login"`

	Sessions []Session `gorm:"foreignKey:UserID" json:"-"`
	Chats    []Chat    `gorm:"foreignKey:UserID" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate ensures a UUID is present before persisting.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}
