package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Call statuses. A call starts ongoing; the client logs the terminal state
// when the session ends.
const (
	CallOngoing   = "ongoing"
	CallCompleted = "completed"
	CallMissed    = "missed"
	CallRejected  = "rejected"
)

// Call is one entry in the call history. The signaling relay itself is
// stateless; clients log call outcomes here over HTTP.
type Call struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	CallerID   uuid.UUID  `gorm:"type:uuid;not null;index" json:"caller_id"`
	ReceiverID uuid.UUID  `gorm:"type:uuid;not null;index" json:"receiver_id"`
	StartedAt  time.Time  `gorm:"not null;index" json:"started_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
	Status     string     `gorm:"size:20;not null" json:"status"`
	IsVideo    bool       `gorm:"default:false" json:"is_video"`

	Caller   User `gorm:"foreignKey:CallerID;constraint:OnDelete:CASCADE" json:"-"`
	Receiver User `gorm:"foreignKey:ReceiverID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Call) TableName() string {
	return "calls"
}

func (c *Call) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.StartedAt.IsZero() {
		c.StartedAt = time.Now().UTC()
	}
	return nil
}
