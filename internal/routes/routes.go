package routes

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/velachat/vela-backend/internal/config"
	"github.com/velachat/vela-backend/internal/handlers"
	"github.com/velachat/vela-backend/internal/middleware"
)

func Setup(
	app *fiber.App,
	cfg *config.Config,
	chatHandler *handlers.ChatHandler,
	blockHandler *handlers.BlockHandler,
	callHandler *handlers.CallHandler,
	healthHandler *handlers.HealthHandler,
	wsHandler *handlers.WSHandler,
) {
	// Realtime gateway. Authenticated inside the handshake, not by the
	// HTTP rate limiter below: one long-lived connection per device.
	app.Get("/ws", wsHandler.Upgrade)

	api := app.Group("/api")

	// General API rate limiter: 60 req/min per IP
	api.Use(limiter.New(limiter.Config{
		Max:               60,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	}))

	api.Get("/health", healthHandler.Check)

	// Chat API (JWT required)
	jwt := middleware.JWTProtected(cfg)
	api.Get("/conversations", jwt, chatHandler.ListConversations)
	api.Post("/conversations", jwt, chatHandler.CreateConversation)
	api.Delete("/conversations/:id", jwt, chatHandler.DeleteConversation)
	api.Post("/conversations/restore", jwt, chatHandler.Restore)
	api.Get("/conversations/:id/messages", jwt, chatHandler.ListMessages)
	api.Delete("/messages/:id", jwt, chatHandler.DeleteMessage)
	api.Post("/messages/:id/reactions", jwt, chatHandler.React)

	// Blocks
	api.Post("/blocks", jwt, blockHandler.Block)
	api.Delete("/blocks/:id", jwt, blockHandler.Unblock)

	// Call history
	api.Get("/calls", jwt, callHandler.List)
	api.Post("/calls", jwt, callHandler.Create)
}
