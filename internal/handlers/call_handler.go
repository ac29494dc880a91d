package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/velachat/vela-backend/internal/auth"
	"github.com/velachat/vela-backend/internal/dto"
	"github.com/velachat/vela-backend/internal/services"
)

type CallHandler struct {
	calls *services.CallService
}

func NewCallHandler(calls *services.CallService) *CallHandler {
	return &CallHandler{calls: calls}
}

func (h *CallHandler) List(c *fiber.Ctx) error {
	userID, err := auth.UserID(c)
	if err != nil {
		return unauthorized(c)
	}

	calls, err := h.calls.List(userID)
	if err != nil {
		return serverError(c, "Failed to list calls")
	}

	out := make([]dto.CallResponse, 0, len(calls))
	for _, call := range calls {
		out = append(out, dto.NewCallResponse(call))
	}
	return c.JSON(out)
}

func (h *CallHandler) Create(c *fiber.Ctx) error {
	userID, err := auth.UserID(c)
	if err != nil {
		return unauthorized(c)
	}

	var req dto.CallRequest
	if err := c.BodyParser(&req); err != nil || req.ReceiverUsername == "" {
		return badRequest(c, "receiver_username is required")
	}

	call, err := h.calls.Log(userID, req.ReceiverUsername, req.Status, req.EndedAt, req.IsVideo)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrUserNotFound):
			return notFound(c, "Receiver not found")
		case errors.Is(err, services.ErrInvalidCallStatus):
			return badRequest(c, "Invalid call status")
		default:
			return serverError(c, "Failed to log call")
		}
	}
	return c.Status(fiber.StatusCreated).JSON(dto.NewCallResponse(*call))
}
