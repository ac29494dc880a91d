package realtime

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
	"github.com/velachat/vela-backend/internal/config"
	"github.com/velachat/vela-backend/internal/dto"
	"github.com/velachat/vela-backend/internal/models"
	"github.com/velachat/vela-backend/internal/notify"
	"github.com/velachat/vela-backend/internal/services"
)

// Hub wires one connection's event stream to the store, the lifecycle
// engine, the router and the registry. One read pump per connection; all
// shared state lives behind the registry and the database.
type Hub struct {
	cfg      *config.Config
	registry *Registry
	router   *Router
	convs    *services.ConversationService
	msgs     *services.MessageService
	notifier notify.Notifier
}

func NewHub(cfg *config.Config, registry *Registry, router *Router, convs *services.ConversationService, msgs *services.MessageService, notifier notify.Notifier) *Hub {
	return &Hub{
		cfg:      cfg,
		registry: registry,
		router:   router,
		convs:    convs,
		msgs:     msgs,
		notifier: notifier,
	}
}

func (h *Hub) Registry() *Registry { return h.registry }

// HandleConn runs the connection until the peer goes away. The deferred
// unregister is the single cleanup path: it runs the last-handle presence
// update exactly once, also on abrupt network failure.
func (h *Hub) HandleConn(userID uuid.UUID, username string, conn *websocket.Conn) {
	sess := NewSession(userID, username, conn, h.cfg.MailboxDepth)
	h.registry.Register(sess)
	defer h.registry.Unregister(sess)

	go h.writePump(sess, conn)

	conn.SetReadLimit(h.cfg.WSMaxFrameBytes)
	_ = conn.SetReadDeadline(time.Now().Add(h.cfg.WSPongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.cfg.WSPongTimeout))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("websocket closed", "user_id", userID.String(), "error", err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(h.cfg.WSPongTimeout))

		env, err := ParseEnvelope(data)
		if err != nil {
			// Malformed frames are dropped without an error frame.
			slog.Debug("dropping malformed envelope", "user_id", userID.String())
			continue
		}
		h.dispatch(sess, env)
	}
}

// writePump is the session's single writer: mailbox drain plus keepalive
// pings. Write failures close the session, which ends the read pump.
func (h *Hub) writePump(sess *Session, conn *websocket.Conn) {
	pingPeriod := h.cfg.WSPongTimeout * 9 / 10
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case payload := <-sess.Outbound():
			_ = conn.SetWriteDeadline(time.Now().Add(h.cfg.WSWriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				sess.Close()
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(h.cfg.WSWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				sess.Close()
				return
			}
		case <-sess.Done():
			return
		}
	}
}

func (h *Hub) dispatch(sess *Session, env *Envelope) {
	switch env.Type {
	case EventChatMessage:
		h.handleChatMessage(sess, env)
	case EventMarkDelivered:
		h.handleMark(sess, env, h.msgs.MarkDelivered, EventMessageDelivered)
	case EventMarkRead:
		h.handleMark(sess, env, h.msgs.MarkRead, EventMessageRead)
	case EventTyping:
		h.handleTyping(sess, env)
	case EventEditMessage:
		h.handleEdit(sess, env)
	case EventDeleteMessage:
		h.handleDelete(sess, env)
	case EventReactMessage:
		h.handleReact(sess, env)
	case EventWebRTCOffer, EventWebRTCAnswer, EventWebRTCICE:
		h.relaySignal(sess, env)
	case EventCallEnded:
		h.handleCallEnded(sess, env)
	default:
		slog.Debug("dropping unrecognized event", "type", env.Type, "user_id", sess.UserID.String())
	}
}

func (h *Hub) handleChatMessage(sess *Session, env *Envelope) {
	if env.Message == "" {
		return
	}

	var (
		conv *models.Conversation
		err  error
	)
	switch {
	case env.ConversationID != nil:
		conv, err = h.convs.Get(*env.ConversationID)
	case env.RecipientID != nil:
		conv, _, err = h.convs.FindOrCreateDirect(sess.UserID, *env.RecipientID)
	default:
		return
	}
	if err != nil {
		h.logMutationErr(sess, "chat_message", err)
		return
	}

	msg, err := h.convs.AppendMessage(conv.ID, sess.UserID, env.Message, nil, env.ReplyToID)
	if err != nil {
		h.logMutationErr(sess, "chat_message", err)
		return
	}

	payload := NewChatMessageEvent(dto.NewMessageResponse(*msg))
	h.registry.Publish(sess.UserID, payload)

	ids := make([]uuid.UUID, 0, len(conv.Participants))
	for _, p := range conv.Participants {
		ids = append(ids, p.ID)
	}
	deliveries, err := h.router.Route(sess.UserID, ids)
	if err != nil {
		slog.Error("routing failed", "action", "chat_message", "error", err)
		return
	}
	for _, d := range deliveries {
		if d.Withheld {
			slog.Info("message withheld from recipient",
				"message_id", msg.ID.String(), "recipient_id", d.UserID.String())
			continue
		}
		h.registry.Publish(d.UserID, payload)
		go h.notifyNewMessage(sess, d.UserID, msg)
	}
}

func (h *Hub) notifyNewMessage(sess *Session, recipient uuid.UUID, msg *models.Message) {
	body := msg.Text
	if body == "" {
		body = "Sent a file"
	} else if len([]rune(body)) > 100 {
		body = string([]rune(body)[:100])
	}
	h.notifier.Notify(recipient, "New message from "+sess.Username, body, map[string]string{
		"type":            EventChatMessage,
		"conversation_id": msg.ConversationID.String(),
		"sender_id":       sess.UserID.String(),
		"message_id":      msg.ID.String(),
	}, nil)
}

func (h *Hub) handleMark(sess *Session, env *Envelope, transition func(uuid.UUID) (*services.Receipt, error), outType string) {
	if env.MessageID == nil {
		return
	}
	receipt, err := transition(*env.MessageID)
	if err != nil {
		slog.Error("lifecycle transition failed", "action", outType, "error", err)
		return
	}
	if receipt == nil {
		// Already transitioned or unknown message; safe to retry, nothing to fan out.
		return
	}
	h.registry.Publish(receipt.SenderID, mustMarshal(receiptEvent{
		Type:           outType,
		MessageID:      receipt.MessageID,
		ConversationID: receipt.ConversationID,
	}))
}

// handleTyping relays the ephemeral typing signal; nothing is persisted.
func (h *Hub) handleTyping(sess *Session, env *Envelope) {
	var targets []uuid.UUID
	switch {
	case env.RecipientID != nil:
		targets = []uuid.UUID{*env.RecipientID}
	case env.ConversationID != nil:
		others, err := h.convs.Others(*env.ConversationID, sess.UserID)
		if err != nil {
			return
		}
		targets = others
	default:
		return
	}

	payload := mustMarshal(typingEvent{
		Type:           EventUserTyping,
		ConversationID: env.ConversationID,
		SenderID:       sess.UserID,
		SenderUsername: sess.Username,
	})
	for _, t := range targets {
		h.registry.Publish(t, payload)
	}
}

func (h *Hub) handleEdit(sess *Session, env *Envelope) {
	if env.MessageID == nil || env.NewText == "" {
		return
	}
	receipt, err := h.msgs.EditText(*env.MessageID, sess.UserID, env.NewText)
	if err != nil {
		h.logMutationErr(sess, "edit_message", err)
		return
	}
	h.fanOut(sess.UserID, receipt.ConversationID, mustMarshal(editedEvent{
		Type:           EventMessageEdited,
		MessageID:      receipt.MessageID,
		ConversationID: receipt.ConversationID,
		NewText:        env.NewText,
	}))
}

func (h *Hub) handleDelete(sess *Session, env *Envelope) {
	if env.MessageID == nil {
		return
	}
	deletedAt, receipt, err := h.msgs.SoftDelete(*env.MessageID, sess.UserID)
	if err != nil {
		h.logMutationErr(sess, "delete_message", err)
		return
	}
	h.fanOut(sess.UserID, receipt.ConversationID,
		NewMessageDeletedEvent(receipt.MessageID, receipt.ConversationID, sess.Username, deletedAt))
}

func (h *Hub) handleReact(sess *Session, env *Envelope) {
	if env.MessageID == nil || env.Reaction == "" {
		return
	}
	reactions, receipt, err := h.msgs.ToggleReaction(*env.MessageID, sess.UserID, env.Reaction)
	if err != nil {
		h.logMutationErr(sess, "react_message", err)
		return
	}
	h.fanOut(sess.UserID, receipt.ConversationID,
		NewMessageReactionEvent(receipt.MessageID, receipt.ConversationID, reactions))
}

// fanOut delivers a receipt to the actor and every other participant.
// Blocking never suppresses receipts for actions on existing messages; the
// participant lookup is a pure query.
func (h *Hub) fanOut(actor, convID uuid.UUID, payload []byte) {
	h.registry.Publish(actor, payload)
	others, err := h.convs.Others(convID, actor)
	if err != nil {
		slog.Error("receipt fan-out lookup failed", "conversation_id", convID.String(), "error", err)
		return
	}
	for _, uid := range others {
		h.registry.Publish(uid, payload)
	}
}

// logMutationErr separates policy rejections (silent, debug-level) from
// store failures (error-level). In both cases the connection stays up and
// no fan-out happens.
func (h *Hub) logMutationErr(sess *Session, action string, err error) {
	switch {
	case errors.Is(err, services.ErrForbidden),
		errors.Is(err, services.ErrNotParticipant),
		errors.Is(err, services.ErrMessageNotFound),
		errors.Is(err, services.ErrConversationNotFound),
		errors.Is(err, services.ErrUserNotFound),
		errors.Is(err, services.ErrEmptyMessage):
		slog.Debug("event rejected", "action", action, "user_id", sess.UserID.String(), "reason", err.Error())
	default:
		slog.Error("store mutation failed", "action", action, "user_id", sess.UserID.String(), "error", err)
	}
}
