package realtime

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/velachat/vela-backend/internal/dto"
)

// Inbound event kinds. An envelope without a type is a chat message, the
// wire's historical default.
const (
	EventChatMessage   = "chat_message"
	EventMarkDelivered = "mark_delivered"
	EventMarkRead      = "mark_read"
	EventTyping        = "typing"
	EventEditMessage   = "edit_message"
	EventDeleteMessage = "delete_message"
	EventReactMessage  = "react_message"
	EventWebRTCOffer   = "webrtc_offer"
	EventWebRTCAnswer  = "webrtc_answer"
	EventWebRTCICE     = "webrtc_ice_candidate"
	EventCallEnded     = "call_ended"
)

// Outbound event kinds.
const (
	EventMessageDelivered = "message_delivered"
	EventMessageRead      = "message_read"
	EventMessageEdited    = "message_edited"
	EventMessageDeleted   = "message_deleted"
	EventMessageReaction  = "message_reaction"
	EventUserTyping       = "user_typing"
)

// Envelope is the inbound frame. One struct covers every event kind; the
// dispatch switch checks the fields each kind requires and drops the frame
// when they are missing. Raw keeps the original bytes for verbatim
// signaling relay.
type Envelope struct {
	Type           string     `json:"type"`
	Message        string     `json:"message"`
	RecipientID    *uuid.UUID `json:"recipient_id,omitempty"`
	ConversationID *uuid.UUID `json:"conversation_id,omitempty"`
	ReplyToID      *uuid.UUID `json:"reply_to_id,omitempty"`
	MessageID      *uuid.UUID `json:"message_id,omitempty"`
	NewText        string     `json:"new_text"`
	Reaction       string     `json:"reaction"`
	ChatID         *uuid.UUID `json:"chat_id,omitempty"`

	Raw json.RawMessage `json:"-"`
}

// ParseEnvelope decodes an inbound frame. Malformed JSON yields an error;
// the caller drops the frame silently.
func ParseEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	if env.Type == "" {
		env.Type = EventChatMessage
	}
	env.Raw = data
	return &env, nil
}

type chatMessageEvent struct {
	Type    string              `json:"type"`
	Message dto.MessageResponse `json:"message"`
}

type receiptEvent struct {
	Type           string    `json:"type"`
	MessageID      uuid.UUID `json:"message_id"`
	ConversationID uuid.UUID `json:"conversation_id"`
}

type editedEvent struct {
	Type           string    `json:"type"`
	MessageID      uuid.UUID `json:"message_id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	NewText        string    `json:"new_text"`
}

type deletedEvent struct {
	Type           string    `json:"type"`
	MessageID      uuid.UUID `json:"message_id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	DeletedBy      string    `json:"deleted_by"`
	DeletedAt      time.Time `json:"deleted_at"`
}

type reactionEvent struct {
	Type           string    `json:"type"`
	MessageID      uuid.UUID `json:"message_id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	Reactions      []string  `json:"reactions"`
}

type typingEvent struct {
	Type           string     `json:"type"`
	ConversationID *uuid.UUID `json:"conversation_id,omitempty"`
	SenderID       uuid.UUID  `json:"sender_id"`
	SenderUsername string     `json:"sender_username"`
}

type callEndedEvent struct {
	Type   string    `json:"type"`
	ChatID uuid.UUID `json:"chat_id"`
}

// NewChatMessageEvent marshals the chat_message push/echo frame.
func NewChatMessageEvent(msg dto.MessageResponse) []byte {
	return mustMarshal(chatMessageEvent{Type: EventChatMessage, Message: msg})
}

// NewMessageDeletedEvent marshals the tombstone receipt. Shared with the
// HTTP delete path so both surfaces emit the same frame.
func NewMessageDeletedEvent(msgID, convID uuid.UUID, deletedBy string, deletedAt time.Time) []byte {
	return mustMarshal(deletedEvent{
		Type:           EventMessageDeleted,
		MessageID:      msgID,
		ConversationID: convID,
		DeletedBy:      deletedBy,
		DeletedAt:      deletedAt,
	})
}

// NewMessageReactionEvent marshals the reaction receipt with the resulting
// emoji multiset.
func NewMessageReactionEvent(msgID, convID uuid.UUID, reactions []string) []byte {
	return mustMarshal(reactionEvent{
		Type:           EventMessageReaction,
		MessageID:      msgID,
		ConversationID: convID,
		Reactions:      reactions,
	})
}

func mustMarshal(v interface{}) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		// All outbound event types marshal cleanly; a failure here is a bug.
		panic(err)
	}
	return b
}
