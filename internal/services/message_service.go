package services

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/velachat/vela-backend/internal/models"
	"gorm.io/gorm"
)

// Receipt carries what the fan-out path needs after a lifecycle transition.
type Receipt struct {
	MessageID      uuid.UUID
	ConversationID uuid.UUID
	SenderID       uuid.UUID
}

// MessageService is the per-message state machine: delivery/read flags,
// edit, soft-delete and reaction toggling. Delivered and read are guarded
// single-UPDATE transitions so concurrent calls for one message are
// linearizable and a repeat is a clean no-op.
type MessageService struct {
	db *gorm.DB
}

func NewMessageService(db *gorm.DB) *MessageService {
	return &MessageService{db: db}
}

// MarkDelivered flips is_delivered once. The receipt is returned only on
// the transition call; a repeat (or a missing message) yields nil.
func (s *MessageService) MarkDelivered(id uuid.UUID) (*Receipt, error) {
	return s.markFlag(id, "is_delivered")
}

// MarkRead flips is_read once. Independent of is_delivered: clients report
// each transition explicitly and either may arrive first.
func (s *MessageService) MarkRead(id uuid.UUID) (*Receipt, error) {
	return s.markFlag(id, "is_read")
}

func (s *MessageService) markFlag(id uuid.UUID, column string) (*Receipt, error) {
	result := s.db.Model(&models.Message{}).
		Where("id = ?", id).
		Where(column+" = ?", false).
		Update(column, true)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}

	var msg models.Message
	if err := s.db.Select("id", "conversation_id", "sender_id").First(&msg, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &Receipt{MessageID: msg.ID, ConversationID: msg.ConversationID, SenderID: msg.SenderID}, nil
}

// EditText replaces the body. Sender-only, no history retained.
func (s *MessageService) EditText(id, actor uuid.UUID, newText string) (*Receipt, error) {
	msg, err := s.ownedMessage(id, actor)
	if err != nil {
		return nil, err
	}
	if err := s.db.Model(msg).Update("text", newText).Error; err != nil {
		return nil, err
	}
	return &Receipt{MessageID: msg.ID, ConversationID: msg.ConversationID, SenderID: msg.SenderID}, nil
}

// SoftDelete stamps the tombstone. Sender-only. Content is retained and the
// row stays addressable; reads mask it.
func (s *MessageService) SoftDelete(id, actor uuid.UUID) (time.Time, *Receipt, error) {
	msg, err := s.ownedMessage(id, actor)
	if err != nil {
		return time.Time{}, nil, err
	}
	now := time.Now().UTC()
	if err := s.db.Model(msg).Update("deleted_at", now).Error; err != nil {
		return time.Time{}, nil, err
	}
	return now, &Receipt{MessageID: msg.ID, ConversationID: msg.ConversationID, SenderID: msg.SenderID}, nil
}

// ToggleReaction applies the canonical reaction policy: reacting with the
// emoji you already placed removes it; reacting with a different emoji
// replaces your previous one. At most one reaction per (message, user),
// matching the unique index. Returns the resulting emoji multiset.
func (s *MessageService) ToggleReaction(id, actor uuid.UUID, emoji string) ([]string, *Receipt, error) {
	var msg models.Message
	if err := s.db.First(&msg, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrMessageNotFound
		}
		return nil, nil, err
	}

	var n int64
	err := s.db.Table("conversation_participants").
		Where("conversation_id = ?", msg.ConversationID).
		Where("user_id = ?", actor).
		Count(&n).Error
	if err != nil {
		return nil, nil, err
	}
	if n == 0 {
		return nil, nil, ErrForbidden
	}

	var existing models.Reaction
	err = s.db.Where("message_id = ? AND user_id = ?", id, actor).First(&existing).Error
	switch {
	case err == nil:
		if err := s.toggleExisting(existing, emoji); err != nil {
			return nil, nil, err
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		reaction := models.Reaction{MessageID: id, UserID: actor, Emoji: emoji}
		if cerr := s.db.Create(&reaction).Error; cerr != nil {
			// A concurrent toggle won the (message, user) slot between the
			// read and the insert. Re-read the winner's row and apply the
			// toggle against it.
			if rerr := s.recoverToggle(id, actor, emoji); rerr != nil {
				return nil, nil, cerr
			}
		}
	default:
		return nil, nil, err
	}

	var emojis []string
	if err := s.db.Model(&models.Reaction{}).Where("message_id = ?", id).Order("created_at").Pluck("emoji", &emojis).Error; err != nil {
		return nil, nil, err
	}
	receipt := &Receipt{MessageID: msg.ID, ConversationID: msg.ConversationID, SenderID: msg.SenderID}
	return emojis, receipt, nil
}

// toggleExisting applies the policy against the user's current reaction:
// same emoji removes it, a different one replaces it.
func (s *MessageService) toggleExisting(existing models.Reaction, emoji string) error {
	if existing.Emoji == emoji {
		return s.db.Delete(&existing).Error
	}
	return s.db.Model(&existing).Update("emoji", emoji).Error
}

// recoverToggle re-reads the (message, user) slot after an insert conflict
// and applies the toggle to the row that won.
func (s *MessageService) recoverToggle(id, actor uuid.UUID, emoji string) error {
	var winner models.Reaction
	if err := s.db.Where("message_id = ? AND user_id = ?", id, actor).First(&winner).Error; err != nil {
		return err
	}
	return s.toggleExisting(winner, emoji)
}

func (s *MessageService) ownedMessage(id, actor uuid.UUID) (*models.Message, error) {
	var msg models.Message
	if err := s.db.First(&msg, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}
	if msg.SenderID != actor {
		return nil, ErrForbidden
	}
	return &msg, nil
}
