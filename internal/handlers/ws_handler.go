package handlers

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/velachat/vela-backend/internal/auth"
	"github.com/velachat/vela-backend/internal/config"
	"github.com/velachat/vela-backend/internal/models"
	"github.com/velachat/vela-backend/internal/realtime"
	"gorm.io/gorm"
)

type WSHandler struct {
	cfg *config.Config
	hub *realtime.Hub
	db  *gorm.DB
}

func NewWSHandler(cfg *config.Config, hub *realtime.Hub, db *gorm.DB) *WSHandler {
	return &WSHandler{cfg: cfg, hub: hub, db: db}
}

// Upgrade authenticates the handshake and hands the connection to the hub.
// Browser websocket clients cannot set an Authorization header, so the
// bearer token arrives as a query parameter.
func (h *WSHandler) Upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	userID, err := auth.ParseToken(c.Query("token"), h.cfg.JWTSecret)
	if err != nil {
		return c.SendStatus(fiber.StatusUnauthorized)
	}

	var user models.User
	if err := h.db.Select("id", "username").First(&user, "id = ?", userID).Error; err != nil {
		return c.SendStatus(fiber.StatusUnauthorized)
	}

	return websocket.New(func(conn *websocket.Conn) {
		h.hub.HandleConn(user.ID, user.Username, conn)
	})(c)
}
