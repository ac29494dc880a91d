package notify

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/velachat/vela-backend/internal/models"
	"gorm.io/gorm"
)

// TTLNow means "deliver now or drop": used for call offers, which are
// useless once the ringing window has passed.
var TTLNow = time.Duration(0)

// Notifier dispatches push notifications. Returns false when the user has
// notifications disabled or no registered push handle; dispatch is
// best-effort and never rolls back the mutation that triggered it.
type Notifier interface {
	Notify(userID uuid.UUID, title, body string, data map[string]string, ttl *time.Duration) bool
}

// Transport hands the resolved payload to the actual push provider. The
// provider (FCM/APNs) is an external collaborator behind this seam.
type Transport interface {
	Send(token, title, body string, data map[string]string, ttl *time.Duration) error
}

// LogTransport records dispatches via slog. Stands in wherever no real
// provider is configured (tests, local development).
type LogTransport struct{}

func (LogTransport) Send(token, title, body string, data map[string]string, ttl *time.Duration) error {
	slog.Info("push notification dispatched", "title", title, "data_keys", len(data))
	return nil
}

// Dispatcher resolves the target user's push handle and preferences, then
// hands off to the transport.
type Dispatcher struct {
	db        *gorm.DB
	transport Transport
}

func NewDispatcher(db *gorm.DB, transport Transport) *Dispatcher {
	return &Dispatcher{db: db, transport: transport}
}

func (d *Dispatcher) Notify(userID uuid.UUID, title, body string, data map[string]string, ttl *time.Duration) bool {
	var user models.User
	if err := d.db.Select("id", "username", "notifications_enabled", "push_token").First(&user, "id = ?", userID).Error; err != nil {
		return false
	}
	if !user.NotificationsEnabled || user.PushToken == "" {
		return false
	}

	if err := d.transport.Send(user.PushToken, title, body, data, ttl); err != nil {
		slog.Error("push notification failed", "user_id", userID.String(), "error", err)
		return false
	}
	return true
}
