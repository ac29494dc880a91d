package notify

import (
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/velachat/vela-backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type captureTransport struct {
	sent  int
	token string
	title string
	ttl   *time.Duration
}

func (c *captureTransport) Send(token, title, body string, data map[string]string, ttl *time.Duration) error {
	c.sent++
	c.token = token
	c.title = title
	c.ttl = ttl
	return nil
}

func newNotifyDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.User{}))
	return db
}

func TestDispatcherSendsWhenReachable(t *testing.T) {
	db := newNotifyDB(t)
	transport := &captureTransport{}
	d := NewDispatcher(db, transport)

	user := models.User{Username: "alice", NotificationsEnabled: true, PushToken: "tok-1"}
	require.NoError(t, db.Create(&user).Error)

	ok := d.Notify(user.ID, "New Message", "hi", map[string]string{"conversation_id": uuid.NewString()}, nil)
	assert.True(t, ok)
	assert.Equal(t, 1, transport.sent)
	assert.Equal(t, "tok-1", transport.token)
	assert.Nil(t, transport.ttl)
}

func TestDispatcherSkipsDisabledUser(t *testing.T) {
	db := newNotifyDB(t)
	transport := &captureTransport{}
	d := NewDispatcher(db, transport)

	user := models.User{Username: "alice", NotificationsEnabled: false, PushToken: "tok-1"}
	require.NoError(t, db.Create(&user).Error)

	assert.False(t, d.Notify(user.ID, "New Message", "hi", nil, nil))
	assert.Zero(t, transport.sent)
}

func TestDispatcherSkipsUserWithoutToken(t *testing.T) {
	db := newNotifyDB(t)
	transport := &captureTransport{}
	d := NewDispatcher(db, transport)

	user := models.User{Username: "alice", NotificationsEnabled: true}
	require.NoError(t, db.Create(&user).Error)

	assert.False(t, d.Notify(user.ID, "New Message", "hi", nil, nil))
	assert.Zero(t, transport.sent)
}

func TestDispatcherUnknownUser(t *testing.T) {
	db := newNotifyDB(t)
	transport := &captureTransport{}
	d := NewDispatcher(db, transport)

	assert.False(t, d.Notify(uuid.New(), "New Message", "hi", nil, nil))
	assert.Zero(t, transport.sent)
}

func TestDispatcherPassesTTLThrough(t *testing.T) {
	db := newNotifyDB(t)
	transport := &captureTransport{}
	d := NewDispatcher(db, transport)

	user := models.User{Username: "alice", NotificationsEnabled: true, PushToken: "tok-1"}
	require.NoError(t, db.Create(&user).Error)

	ok := d.Notify(user.ID, "Incoming Call", "alice is calling", nil, &TTLNow)
	assert.True(t, ok)
	require.NotNil(t, transport.ttl)
	assert.Equal(t, TTLNow, *transport.ttl)
}
