package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User holds the identity-adjacent state the messaging core maintains:
// presence and push-notification reachability. Identity issuance lives in a
// separate service; other rows reference this one by opaque id.
type User struct {
	ID                   uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Username             string         `gorm:"not null;size:150;uniqueIndex" json:"username"`
	IsOnline             bool           `gorm:"default:false" json:"is_online"`
	LastSeen             *time.Time     `json:"last_seen,omitempty"`
	NotificationsEnabled bool           `gorm:"default:true" json:"-"`
	PushToken            string         `gorm:"type:text" json:"-"`
	CreatedAt            time.Time      `json:"created_at"`
	UpdatedAt            time.Time      `json:"updated_at"`
	DeletedAt            gorm.DeletedAt `gorm:"index" json:"-"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
