package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/velachat/vela-backend/internal/models"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrMessageNotFound      = errors.New("message not found")
	ErrNotParticipant       = errors.New("user is not a participant")
	ErrForbidden            = errors.New("forbidden")
	ErrEmptyMessage         = errors.New("message must have text or attachment")
)

type ConversationService struct {
	db *gorm.DB
}

func NewConversationService(db *gorm.DB) *ConversationService {
	return &ConversationService{db: db}
}

// FindOrCreateDirect returns the unique direct conversation for the pair,
// creating it when absent. a == b yields the self conversation. The unique
// index on direct_key serializes concurrent creates: the loser of the race
// refetches the winner's row instead of inserting a duplicate.
func (s *ConversationService) FindOrCreateDirect(a, b uuid.UUID) (*models.Conversation, bool, error) {
	key := models.DirectKeyFor(a, b)

	var conv models.Conversation
	err := s.db.Preload("Participants").Where("direct_key = ?", key).First(&conv).Error
	if err == nil {
		return &conv, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	ids := []uuid.UUID{a}
	if a != b {
		ids = append(ids, b)
	}
	var users []models.User
	if err := s.db.Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, false, err
	}
	if len(users) != len(ids) {
		return nil, false, ErrUserNotFound
	}

	conv = models.Conversation{DirectKey: &key, Participants: users}
	if err := s.db.Create(&conv).Error; err != nil {
		// Concurrent create for the same pair; the winner's row must exist.
		var existing models.Conversation
		if ferr := s.db.Preload("Participants").Where("direct_key = ?", key).First(&existing).Error; ferr == nil {
			return &existing, false, nil
		}
		return nil, false, fmt.Errorf("create conversation: %w", err)
	}
	return &conv, true, nil
}

// Get loads a conversation with its participants.
func (s *ConversationService) Get(id uuid.UUID) (*models.Conversation, error) {
	var conv models.Conversation
	if err := s.db.Preload("Participants").First(&conv, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}
	return &conv, nil
}

// Others returns the participant ids excluding the actor. A self
// conversation has no others: the sender echo covers the actor's devices.
func (s *ConversationService) Others(convID, actor uuid.UUID) ([]uuid.UUID, error) {
	conv, err := s.Get(convID)
	if err != nil {
		return nil, err
	}
	others := make([]uuid.UUID, 0, len(conv.Participants))
	for _, p := range conv.Participants {
		if p.ID != actor {
			others = append(others, p.ID)
		}
	}
	return others, nil
}

// AppendMessage persists a new message. The sender must be a participant.
// A reply reference that does not resolve is dropped, never left dangling.
func (s *ConversationService) AppendMessage(convID, sender uuid.UUID, text string, attachment *models.AttachmentRef, replyToID *uuid.UUID) (*models.Message, error) {
	if text == "" && attachment == nil {
		return nil, ErrEmptyMessage
	}

	conv, err := s.Get(convID)
	if err != nil {
		return nil, err
	}
	if !participates(conv, sender) {
		return nil, ErrNotParticipant
	}

	msg := models.Message{
		ConversationID: convID,
		SenderID:       sender,
		Text:           text,
		Timestamp:      time.Now().UTC(),
	}
	if attachment != nil {
		raw, err := attachment.ToJSON()
		if err != nil {
			return nil, err
		}
		msg.Attachment = raw
	}
	if replyToID != nil {
		var reply models.Message
		if err := s.db.First(&reply, "id = ?", *replyToID).Error; err == nil {
			msg.ReplyToID = &reply.ID
		}
	}

	if err := s.db.Create(&msg).Error; err != nil {
		return nil, err
	}
	return s.GetMessage(msg.ID)
}

// GetMessage loads a message with everything the wire shape needs.
func (s *ConversationService) GetMessage(id uuid.UUID) (*models.Message, error) {
	var msg models.Message
	err := s.db.
		Preload("Sender").
		Preload("Reactions").
		Preload("ReplyTo").
		Preload("ReplyTo.Sender").
		First(&msg, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}
	return &msg, nil
}

// VisibleMessages is the viewer's history read, newest first. Messages from
// senders the viewer has blocked are excluded while still undelivered; once
// a message was delivered before the block it stays visible. Tombstoned
// messages are returned (content is masked at the DTO layer).
func (s *ConversationService) VisibleMessages(convID, viewer uuid.UUID, limit, offset int) ([]models.Message, error) {
	conv, err := s.Get(convID)
	if err != nil {
		return nil, err
	}
	if !participates(conv, viewer) {
		return nil, ErrNotParticipant
	}

	blocked := s.db.Model(&models.Block{}).Select("blocked_id").Where("blocker_id = ?", viewer)

	var msgs []models.Message
	err = s.db.
		Preload("Sender").
		Preload("Reactions").
		Preload("ReplyTo").
		Preload("ReplyTo.Sender").
		Where("conversation_id = ?", convID).
		Where("NOT (sender_id IN (?) AND is_delivered = ?)", blocked, false).
		Order("timestamp DESC").
		Limit(limit).
		Offset(offset).
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

// SoftDelete hides a conversation from the default listing. Reversible.
func (s *ConversationService) SoftDelete(convID, actor uuid.UUID) error {
	conv, err := s.Get(convID)
	if err != nil {
		return err
	}
	if !participates(conv, actor) {
		return ErrNotParticipant
	}
	return s.db.Model(&models.Conversation{}).Where("id = ?", convID).Update("is_deleted", true).Error
}

// RestoreConversations flips is_deleted back for the user's own soft-deleted
// conversations. Returns how many rows were restored.
func (s *ConversationService) RestoreConversations(ids []uuid.UUID, user uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	member := s.db.Table("conversation_participants").Select("conversation_id").Where("user_id = ?", user)
	result := s.db.Model(&models.Conversation{}).
		Where("id IN ?", ids).
		Where("id IN (?)", member).
		Where("is_deleted = ?", true).
		Update("is_deleted", false)
	return result.RowsAffected, result.Error
}

// RestoreMessagesBefore clears the tombstone on the sender's own messages
// deleted at or before the cutoff. Bulk and idempotent.
func (s *ConversationService) RestoreMessagesBefore(ids []uuid.UUID, sender uuid.UUID, cutoff time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := s.db.Model(&models.Message{}).
		Where("conversation_id IN ?", ids).
		Where("sender_id = ?", sender).
		Where("deleted_at IS NOT NULL AND deleted_at <= ?", cutoff).
		Update("deleted_at", nil)
	return result.RowsAffected, result.Error
}

// ListConversations returns the user's conversations, newest first,
// filtered on the soft-delete flag.
func (s *ConversationService) ListConversations(user uuid.UUID, deleted bool) ([]models.Conversation, error) {
	member := s.db.Table("conversation_participants").Select("conversation_id").Where("user_id = ?", user)
	var convs []models.Conversation
	err := s.db.
		Preload("Participants").
		Where("id IN (?)", member).
		Where("is_deleted = ?", deleted).
		Order("created_at DESC").
		Find(&convs).Error
	return convs, err
}

// LastMessage returns the newest message of a conversation, nil when empty.
func (s *ConversationService) LastMessage(convID uuid.UUID) (*models.Message, error) {
	var msg models.Message
	err := s.db.
		Preload("Sender").
		Preload("Reactions").
		Where("conversation_id = ?", convID).
		Order("timestamp DESC").
		First(&msg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// UnreadCount counts messages from other participants not yet read by user.
// Withheld messages are excluded with the same predicate VisibleMessages
// uses, so the badge never counts rows the history read hides.
func (s *ConversationService) UnreadCount(convID, user uuid.UUID) (int64, error) {
	blocked := s.db.Model(&models.Block{}).Select("blocked_id").Where("blocker_id = ?", user)

	var n int64
	err := s.db.Model(&models.Message{}).
		Where("conversation_id = ?", convID).
		Where("sender_id <> ?", user).
		Where("is_read = ?", false).
		Where("NOT (sender_id IN (?) AND is_delivered = ?)", blocked, false).
		Count(&n).Error
	return n, err
}

func participates(conv *models.Conversation, user uuid.UUID) bool {
	for _, p := range conv.Participants {
		if p.ID == user {
			return true
		}
	}
	return false
}
