package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/velachat/vela-backend/internal/auth"
	"github.com/velachat/vela-backend/internal/dto"
	"github.com/velachat/vela-backend/internal/realtime"
	"github.com/velachat/vela-backend/internal/services"
)

type BlockHandler struct {
	blocks   *services.BlockService
	registry *realtime.Registry
}

func NewBlockHandler(blocks *services.BlockService, registry *realtime.Registry) *BlockHandler {
	return &BlockHandler{blocks: blocks, registry: registry}
}

func (h *BlockHandler) Block(c *fiber.Ctx) error {
	userID, err := auth.UserID(c)
	if err != nil {
		return unauthorized(c)
	}

	var req dto.BlockRequest
	if err := c.BodyParser(&req); err != nil || req.BlockedID == uuid.Nil {
		return badRequest(c, "blocked_id is required")
	}

	if err := h.blocks.Block(userID, req.BlockedID); err != nil {
		if errors.Is(err, services.ErrSelfBlock) || errors.Is(err, services.ErrAlreadyBlocked) {
			return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Error: true, Message: err.Error()})
		}
		return serverError(c, "Failed to block user")
	}
	return c.JSON(fiber.Map{"status": "blocked"})
}

// Unblock removes the relation and releases the withheld backlog: every
// still-undelivered message from the unblocked user is pushed to the
// unblocker's live connections, one chat_message frame per message.
// Messages delivered before the block are not re-pushed.
func (h *BlockHandler) Unblock(c *fiber.Ctx) error {
	userID, err := auth.UserID(c)
	if err != nil {
		return unauthorized(c)
	}
	blockedID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid user ID")
	}

	released, err := h.blocks.Unblock(userID, blockedID)
	if err != nil {
		return serverError(c, "Failed to unblock user")
	}

	for _, msg := range released {
		h.registry.Publish(userID, realtime.NewChatMessageEvent(dto.NewMessageResponse(msg)))
	}
	return c.JSON(fiber.Map{"status": "unblocked", "released": len(released)})
}
