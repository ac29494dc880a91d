package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/velachat/vela-backend/internal/models"
)

type CreateConversationRequest struct {
	RecipientID uuid.UUID `json:"recipient_id"`
}

type RestoreRequest struct {
	ConversationIDs       []uuid.UUID `json:"conversation_ids"`
	RestoreMessagesBefore *time.Time  `json:"restore_messages_before,omitempty"`
}

type ReactionRequest struct {
	Reaction string `json:"reaction"`
}

type BlockRequest struct {
	BlockedID uuid.UUID `json:"blocked_id"`
}

type UserResponse struct {
	ID       uuid.UUID  `json:"id"`
	Username string     `json:"username"`
	IsOnline bool       `json:"is_online"`
	LastSeen *time.Time `json:"last_seen,omitempty"`
}

type ReplyPreview struct {
	ID     uuid.UUID `json:"id"`
	Text   string    `json:"text"`
	Sender string    `json:"sender"`
}

// MessageResponse is the canonical message shape on both the HTTP API and
// the websocket chat_message payload. Field names are wire-stable.
type MessageResponse struct {
	ID             uuid.UUID             `json:"id"`
	ConversationID uuid.UUID             `json:"conversation_id"`
	Sender         UserResponse          `json:"sender"`
	Text           string                `json:"text"`
	Attachment     *models.AttachmentRef `json:"attachment,omitempty"`
	Timestamp      time.Time             `json:"timestamp"`
	IsDelivered    bool                  `json:"is_delivered"`
	IsRead         bool                  `json:"is_read"`
	Reactions      []string              `json:"reactions"`
	ReplyTo        *ReplyPreview         `json:"reply_to,omitempty"`
	DeletedAt      *time.Time            `json:"deleted_at,omitempty"`
}

type ConversationResponse struct {
	ID          uuid.UUID        `json:"id"`
	Participants []UserResponse  `json:"participants"`
	LastMessage *MessageResponse `json:"last_message,omitempty"`
	UnreadCount int64            `json:"unread_count"`
	OtherUserID *uuid.UUID       `json:"other_user_id,omitempty"`
	IsDeleted   bool             `json:"is_deleted"`
}

func NewUserResponse(u models.User) UserResponse {
	return UserResponse{
		ID:       u.ID,
		Username: u.Username,
		IsOnline: u.IsOnline,
		LastSeen: u.LastSeen,
	}
}

// NewMessageResponse renders a message for the wire. Tombstoned messages
// stay addressable but their content is masked, not the row hidden.
func NewMessageResponse(m models.Message) MessageResponse {
	resp := MessageResponse{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		Sender:         NewUserResponse(m.Sender),
		Text:           m.Text,
		Timestamp:      m.Timestamp,
		IsDelivered:    m.IsDelivered,
		IsRead:         m.IsRead,
		Reactions:      make([]string, 0, len(m.Reactions)),
		DeletedAt:      m.DeletedAt,
	}
	for _, r := range m.Reactions {
		resp.Reactions = append(resp.Reactions, r.Emoji)
	}
	if m.ReplyTo != nil {
		resp.ReplyTo = &ReplyPreview{
			ID:     m.ReplyTo.ID,
			Text:   m.ReplyTo.Text,
			Sender: m.ReplyTo.Sender.Username,
		}
	}
	if m.DeletedAt != nil {
		resp.Text = ""
		return resp
	}
	if len(m.Attachment) > 0 {
		var ref models.AttachmentRef
		if err := ref.UnmarshalFrom(m.Attachment); err == nil {
			resp.Attachment = &ref
		}
	}
	return resp
}
