package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Message is the unit of conversation state. Delivery and read are
// independent idempotent flags, not an ordered enum: clients report each
// transition explicitly and either may arrive first.
//
// DeletedAt is a tombstone. Content is retained and the row stays
// addressable (replies keep resolving) but normal reads mask it.
type Message struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ConversationID uuid.UUID      `gorm:"type:uuid;not null;index:idx_messages_conv_ts,priority:1" json:"conversation_id"`
	SenderID       uuid.UUID      `gorm:"type:uuid;not null;index" json:"sender_id"`
	Text           string         `gorm:"type:text" json:"text"`
	Attachment     datatypes.JSON `gorm:"type:jsonb" json:"attachment,omitempty"`
	Timestamp      time.Time      `gorm:"not null;index:idx_messages_conv_ts,priority:2" json:"timestamp"`
	IsDelivered    bool           `gorm:"default:false" json:"is_delivered"`
	IsRead         bool           `gorm:"default:false" json:"is_read"`
	ReplyToID      *uuid.UUID     `gorm:"type:uuid" json:"reply_to_id,omitempty"`
	DeletedAt      *time.Time     `json:"deleted_at,omitempty"`

	Conversation Conversation `gorm:"foreignKey:ConversationID;constraint:OnDelete:CASCADE" json:"-"`
	Sender       User         `gorm:"foreignKey:SenderID" json:"-"`
	ReplyTo      *Message     `gorm:"foreignKey:ReplyToID;constraint:OnDelete:SET NULL" json:"-"`
	Reactions    []Reaction   `gorm:"foreignKey:MessageID;constraint:OnDelete:CASCADE" json:"reactions,omitempty"`
}

func (Message) TableName() string {
	return "messages"
}

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// Attachment reference as stored in the JSONB column. The media itself is
// owned by an external store; this core only persists and relays the handle.
type AttachmentRef struct {
	Type       string `json:"type"`
	Name       string `json:"name"`
	StorageRef string `json:"storage_ref"`
}

func (a *AttachmentRef) UnmarshalFrom(raw datatypes.JSON) error {
	return json.Unmarshal(raw, a)
}

func (a AttachmentRef) ToJSON() (datatypes.JSON, error) {
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}

// Reaction is unique per (message, user): one active reaction per user, the
// toggle policy in MessageService keeps it that way.
type Reaction struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	MessageID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_reactions_msg_user" json:"message_id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_reactions_msg_user" json:"user_id"`
	Emoji     string    `gorm:"size:16;not null" json:"emoji"`
	CreatedAt time.Time `json:"created_at"`

	User User `gorm:"foreignKey:UserID" json:"-"`
}

func (Reaction) TableName() string {
	return "reactions"
}

func (r *Reaction) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
