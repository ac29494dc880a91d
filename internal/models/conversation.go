package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Conversation groups messages between a set of participants. Direct (1-on-1
// and self) conversations carry a deterministic DirectKey so the database
// enforces at-most-one conversation per unordered pair even under concurrent
// creation. Group conversations leave DirectKey NULL.
type Conversation struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	DirectKey    *string   `gorm:"size:74;uniqueIndex" json:"-"`
	IsDeleted    bool      `gorm:"default:false;index" json:"is_deleted"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Participants []User    `gorm:"many2many:conversation_participants;" json:"participants"`
}

func (Conversation) TableName() string {
	return "conversations"
}

func (c *Conversation) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// DirectKeyFor builds the canonical pair key: both ids sorted lexically.
// Self conversations collapse to a single id.
func DirectKeyFor(a, b uuid.UUID) string {
	if a == b {
		return a.String()
	}
	if a.String() > b.String() {
		a, b = b, a
	}
	return fmt.Sprintf("%s:%s", a, b)
}
