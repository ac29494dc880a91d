package services

import (
	"errors"

	"github.com/google/uuid"
	"github.com/velachat/vela-backend/internal/models"
	"gorm.io/gorm"
)

var (
	ErrSelfBlock      = errors.New("cannot block yourself")
	ErrAlreadyBlocked = errors.New("user already blocked")
)

// BlockService owns the block relation reads the router depends on, plus
// the block/unblock writes. Unblocking releases every message the relation
// was withholding.
type BlockService struct {
	db *gorm.DB
}

func NewBlockService(db *gorm.DB) *BlockService {
	return &BlockService{db: db}
}

// IsBlocked reports whether blocker has blocked blocked. Directional.
func (s *BlockService) IsBlocked(blocker, blocked uuid.UUID) (bool, error) {
	var n int64
	err := s.db.Model(&models.Block{}).
		Where("blocker_id = ? AND blocked_id = ?", blocker, blocked).
		Count(&n).Error
	return n > 0, err
}

func (s *BlockService) Block(blocker, blocked uuid.UUID) error {
	if blocker == blocked {
		return ErrSelfBlock
	}
	var existing models.Block
	if err := s.db.Where("blocker_id = ? AND blocked_id = ?", blocker, blocked).First(&existing).Error; err == nil {
		return ErrAlreadyBlocked
	}
	block := models.Block{ID: uuid.New(), BlockerID: blocker, BlockedID: blocked}
	return s.db.Create(&block).Error
}

// Unblock removes the relation and returns the messages it was withholding:
// everything the unblocked user sent to the blocker that never got
// delivered. The caller pushes these to the blocker's live connections.
// Messages delivered before the block took effect were never withheld and
// are not returned.
func (s *BlockService) Unblock(blocker, blocked uuid.UUID) ([]models.Message, error) {
	result := s.db.Where("blocker_id = ? AND blocked_id = ?", blocker, blocked).Delete(&models.Block{})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}

	member := s.db.Table("conversation_participants").Select("conversation_id").Where("user_id = ?", blocker)
	var pending []models.Message
	err := s.db.
		Preload("Sender").
		Preload("Reactions").
		Preload("ReplyTo").
		Preload("ReplyTo.Sender").
		Where("sender_id = ?", blocked).
		Where("conversation_id IN (?)", member).
		Where("is_delivered = ?", false).
		Order("timestamp ASC").
		Find(&pending).Error
	if err != nil {
		return nil, err
	}
	return pending, nil
}
