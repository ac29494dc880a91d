package handlers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/velachat/vela-backend/internal/auth"
	"github.com/velachat/vela-backend/internal/config"
	"github.com/velachat/vela-backend/internal/dto"
	"github.com/velachat/vela-backend/internal/models"
	"github.com/velachat/vela-backend/internal/realtime"
	"github.com/velachat/vela-backend/internal/services"
	"gorm.io/gorm"
)

type ChatHandler struct {
	cfg      *config.Config
	convs    *services.ConversationService
	msgs     *services.MessageService
	registry *realtime.Registry
	db       *gorm.DB
}

func NewChatHandler(cfg *config.Config, convs *services.ConversationService, msgs *services.MessageService, registry *realtime.Registry, db *gorm.DB) *ChatHandler {
	return &ChatHandler{cfg: cfg, convs: convs, msgs: msgs, registry: registry, db: db}
}

func (h *ChatHandler) ListConversations(c *fiber.Ctx) error {
	userID, err := auth.UserID(c)
	if err != nil {
		return unauthorized(c)
	}
	deleted := c.Query("deleted", "false") == "true"

	convs, err := h.convs.ListConversations(userID, deleted)
	if err != nil {
		return serverError(c, "Failed to list conversations")
	}

	out := make([]dto.ConversationResponse, 0, len(convs))
	for _, conv := range convs {
		resp, err := h.conversationResponse(conv, userID)
		if err != nil {
			return serverError(c, "Failed to list conversations")
		}
		out = append(out, resp)
	}
	return c.JSON(out)
}

func (h *ChatHandler) CreateConversation(c *fiber.Ctx) error {
	userID, err := auth.UserID(c)
	if err != nil {
		return unauthorized(c)
	}

	var req dto.CreateConversationRequest
	if err := c.BodyParser(&req); err != nil || req.RecipientID == uuid.Nil {
		return badRequest(c, "recipient_id is required")
	}

	conv, _, err := h.convs.FindOrCreateDirect(userID, req.RecipientID)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			return notFound(c, "Recipient not found")
		}
		return serverError(c, "Failed to create conversation")
	}

	resp, err := h.conversationResponse(*conv, userID)
	if err != nil {
		return serverError(c, "Failed to create conversation")
	}
	return c.Status(fiber.StatusCreated).JSON(resp)
}

func (h *ChatHandler) DeleteConversation(c *fiber.Ctx) error {
	userID, err := auth.UserID(c)
	if err != nil {
		return unauthorized(c)
	}
	convID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid conversation ID")
	}

	if err := h.convs.SoftDelete(convID, userID); err != nil {
		switch {
		case errors.Is(err, services.ErrConversationNotFound):
			return notFound(c, "Conversation not found")
		case errors.Is(err, services.ErrNotParticipant):
			return forbidden(c)
		default:
			return serverError(c, "Failed to delete conversation")
		}
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *ChatHandler) Restore(c *fiber.Ctx) error {
	userID, err := auth.UserID(c)
	if err != nil {
		return unauthorized(c)
	}

	var req dto.RestoreRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if len(req.ConversationIDs) == 0 {
		return badRequest(c, "No conversations selected")
	}

	count, err := h.convs.RestoreConversations(req.ConversationIDs, userID)
	if err != nil {
		return serverError(c, "Failed to restore conversations")
	}
	if req.RestoreMessagesBefore != nil {
		if _, err := h.convs.RestoreMessagesBefore(req.ConversationIDs, userID, *req.RestoreMessagesBefore); err != nil {
			return serverError(c, "Failed to restore messages")
		}
	}
	return c.JSON(fiber.Map{"status": "restored", "count": count})
}

func (h *ChatHandler) ListMessages(c *fiber.Ctx) error {
	userID, err := auth.UserID(c)
	if err != nil {
		return unauthorized(c)
	}
	convID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid conversation ID")
	}

	limit, _ := strconv.Atoi(c.Query("limit", strconv.Itoa(h.cfg.HistoryPageSize)))
	offset, _ := strconv.Atoi(c.Query("offset", "0"))
	if limit <= 0 || limit > 100 {
		limit = h.cfg.HistoryPageSize
	}

	msgs, err := h.convs.VisibleMessages(convID, userID, limit, offset)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrConversationNotFound):
			return notFound(c, "Conversation not found")
		case errors.Is(err, services.ErrNotParticipant):
			return forbidden(c)
		default:
			return serverError(c, "Failed to fetch messages")
		}
	}

	out := make([]dto.MessageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, dto.NewMessageResponse(m))
	}
	return c.JSON(out)
}

func (h *ChatHandler) DeleteMessage(c *fiber.Ctx) error {
	userID, err := auth.UserID(c)
	if err != nil {
		return unauthorized(c)
	}
	msgID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid message ID")
	}

	deletedAt, receipt, err := h.msgs.SoftDelete(msgID, userID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrMessageNotFound):
			return notFound(c, "Message not found")
		case errors.Is(err, services.ErrForbidden):
			return forbidden(c)
		default:
			return serverError(c, "Failed to delete message")
		}
	}

	h.fanOut(userID, receipt.ConversationID,
		realtime.NewMessageDeletedEvent(receipt.MessageID, receipt.ConversationID, h.username(userID), deletedAt))
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *ChatHandler) React(c *fiber.Ctx) error {
	userID, err := auth.UserID(c)
	if err != nil {
		return unauthorized(c)
	}
	msgID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid message ID")
	}

	var req dto.ReactionRequest
	if err := c.BodyParser(&req); err != nil || req.Reaction == "" {
		return badRequest(c, "reaction is required")
	}

	reactions, receipt, err := h.msgs.ToggleReaction(msgID, userID, req.Reaction)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrMessageNotFound):
			return notFound(c, "Message not found")
		case errors.Is(err, services.ErrForbidden):
			return forbidden(c)
		default:
			return serverError(c, "Failed to update reaction")
		}
	}

	h.fanOut(userID, receipt.ConversationID,
		realtime.NewMessageReactionEvent(receipt.MessageID, receipt.ConversationID, reactions))
	return c.JSON(fiber.Map{"reactions": reactions})
}

// fanOut mirrors the socket path's receipt delivery for mutations arriving
// over HTTP, so clients see the same frames regardless of surface.
func (h *ChatHandler) fanOut(actor, convID uuid.UUID, payload []byte) {
	h.registry.Publish(actor, payload)
	others, err := h.convs.Others(convID, actor)
	if err != nil {
		return
	}
	for _, uid := range others {
		h.registry.Publish(uid, payload)
	}
}

func (h *ChatHandler) username(userID uuid.UUID) string {
	var user models.User
	if err := h.db.Select("username").First(&user, "id = ?", userID).Error; err != nil {
		return "user"
	}
	return user.Username
}

func (h *ChatHandler) conversationResponse(conv models.Conversation, viewer uuid.UUID) (dto.ConversationResponse, error) {
	resp := dto.ConversationResponse{
		ID:           conv.ID,
		Participants: make([]dto.UserResponse, 0, len(conv.Participants)),
		IsDeleted:    conv.IsDeleted,
	}
	for _, p := range conv.Participants {
		resp.Participants = append(resp.Participants, dto.NewUserResponse(p))
		if len(conv.Participants) == 2 && p.ID != viewer {
			id := p.ID
			resp.OtherUserID = &id
		}
	}

	last, err := h.convs.LastMessage(conv.ID)
	if err != nil {
		return resp, err
	}
	if last != nil {
		m := dto.NewMessageResponse(*last)
		resp.LastMessage = &m
	}

	unread, err := h.convs.UnreadCount(conv.ID, viewer)
	if err != nil {
		return resp, err
	}
	resp.UnreadCount = unread
	return resp, nil
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Error: true, Message: "Unauthorized"})
}

func forbidden(c *fiber.Ctx) error {
	return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Error: true, Message: "Forbidden"})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: true, Message: msg})
}

func notFound(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: true, Message: msg})
}

func serverError(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: true, Message: msg})
}
