package services

import (
	"time"

	"github.com/google/uuid"
	"github.com/velachat/vela-backend/internal/models"
	"gorm.io/gorm"
)

// PresenceService persists the online flag and last-seen stamp the registry
// maintains on first-connect and last-disconnect.
type PresenceService struct {
	db *gorm.DB
}

func NewPresenceService(db *gorm.DB) *PresenceService {
	return &PresenceService{db: db}
}

func (s *PresenceService) SetOnline(userID uuid.UUID, online bool) error {
	return s.db.Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"is_online": online,
			"last_seen": time.Now().UTC(),
		}).Error
}
