package services

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/velachat/vela-backend/internal/models"
	"gorm.io/gorm"
)

var ErrInvalidCallStatus = errors.New("invalid call status")

// CallService persists the call history. It only records what clients
// report; the live signaling path never touches it.
type CallService struct {
	db *gorm.DB
}

func NewCallService(db *gorm.DB) *CallService {
	return &CallService{db: db}
}

// Log records a call from the caller to the receiver, resolved by username.
// An empty status means the call is still ongoing.
func (s *CallService) Log(caller uuid.UUID, receiverUsername, status string, endedAt *time.Time, isVideo bool) (*models.Call, error) {
	if status == "" {
		status = models.CallOngoing
	}
	switch status {
	case models.CallOngoing, models.CallCompleted, models.CallMissed, models.CallRejected:
	default:
		return nil, ErrInvalidCallStatus
	}

	var receiver models.User
	if err := s.db.Where("username = ?", receiverUsername).First(&receiver).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	call := models.Call{
		CallerID:   caller,
		ReceiverID: receiver.ID,
		EndedAt:    endedAt,
		Status:     status,
		IsVideo:    isVideo,
	}
	if err := s.db.Create(&call).Error; err != nil {
		return nil, err
	}
	return s.Get(call.ID)
}

// Get loads a call with both parties resolved.
func (s *CallService) Get(id uuid.UUID) (*models.Call, error) {
	var call models.Call
	err := s.db.Preload("Caller").Preload("Receiver").First(&call, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &call, nil
}

// List returns every call the user took part in, on either side, newest
// first.
func (s *CallService) List(user uuid.UUID) ([]models.Call, error) {
	var calls []models.Call
	err := s.db.
		Preload("Caller").
		Preload("Receiver").
		Where("caller_id = ? OR receiver_id = ?", user, user).
		Order("started_at DESC").
		Find(&calls).Error
	return calls, err
}
