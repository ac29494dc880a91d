package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/velachat/vela-backend/internal/models"
)

type CallRequest struct {
	ReceiverUsername string     `json:"receiver_username"`
	Status           string     `json:"status"`
	EndedAt          *time.Time `json:"ended_at,omitempty"`
	IsVideo          bool       `json:"is_video"`
}

type CallResponse struct {
	ID        uuid.UUID    `json:"id"`
	Caller    UserResponse `json:"caller"`
	Receiver  UserResponse `json:"receiver"`
	StartedAt time.Time    `json:"started_at"`
	EndedAt   *time.Time   `json:"ended_at,omitempty"`
	Status    string       `json:"status"`
	IsVideo   bool         `json:"is_video"`
}

func NewCallResponse(c models.Call) CallResponse {
	return CallResponse{
		ID:        c.ID,
		Caller:    NewUserResponse(c.Caller),
		Receiver:  NewUserResponse(c.Receiver),
		StartedAt: c.StartedAt,
		EndedAt:   c.EndedAt,
		Status:    c.Status,
		IsVideo:   c.IsVideo,
	}
}
