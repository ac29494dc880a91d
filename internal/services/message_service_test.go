package services

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/velachat/vela-backend/internal/models"
)

func TestMarkDeliveredIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	convs := NewConversationService(db)
	msgs := NewMessageService(db)
	alice := newTestUser(t, db, "alice")
	bob := newTestUser(t, db, "bob")

	conv, _, err := convs.FindOrCreateDirect(alice.ID, bob.ID)
	require.NoError(t, err)
	msg, err := convs.AppendMessage(conv.ID, alice.ID, "hi", nil, nil)
	require.NoError(t, err)

	receipt, err := msgs.MarkDelivered(msg.ID)
	require.NoError(t, err)
	require.NotNil(t, receipt, "first transition emits a receipt")
	assert.Equal(t, msg.ID, receipt.MessageID)
	assert.Equal(t, conv.ID, receipt.ConversationID)
	assert.Equal(t, alice.ID, receipt.SenderID)

	receipt, err = msgs.MarkDelivered(msg.ID)
	require.NoError(t, err)
	assert.Nil(t, receipt, "repeat is a silent no-op")

	got, err := convs.GetMessage(msg.ID)
	require.NoError(t, err)
	assert.True(t, got.IsDelivered)
}

func TestMarkReadIndependentOfDelivered(t *testing.T) {
	db := newTestDB(t)
	convs := NewConversationService(db)
	msgs := NewMessageService(db)
	alice := newTestUser(t, db, "alice")
	bob := newTestUser(t, db, "bob")

	conv, _, err := convs.FindOrCreateDirect(alice.ID, bob.ID)
	require.NoError(t, err)
	msg, err := convs.AppendMessage(conv.ID, alice.ID, "hi", nil, nil)
	require.NoError(t, err)

	// Read may arrive before delivered; neither flag implies the other.
	receipt, err := msgs.MarkRead(msg.ID)
	require.NoError(t, err)
	require.NotNil(t, receipt)

	got, err := convs.GetMessage(msg.ID)
	require.NoError(t, err)
	assert.True(t, got.IsRead)
	assert.False(t, got.IsDelivered)
}

func TestMarkFlagUnknownMessage(t *testing.T) {
	db := newTestDB(t)
	msgs := NewMessageService(db)

	receipt, err := msgs.MarkDelivered(newTestUser(t, db, "alice").ID)
	require.NoError(t, err)
	assert.Nil(t, receipt)
}

func TestEditTextSenderOnly(t *testing.T) {
	db := newTestDB(t)
	convs := NewConversationService(db)
	msgs := NewMessageService(db)
	alice := newTestUser(t, db, "alice")
	bob := newTestUser(t, db, "bob")

	conv, _, err := convs.FindOrCreateDirect(alice.ID, bob.ID)
	require.NoError(t, err)
	msg, err := convs.AppendMessage(conv.ID, alice.ID, "original", nil, nil)
	require.NoError(t, err)

	_, err = msgs.EditText(msg.ID, bob.ID, "hijacked")
	assert.ErrorIs(t, err, ErrForbidden)

	got, err := convs.GetMessage(msg.ID)
	require.NoError(t, err)
	assert.Equal(t, "original", got.Text, "rejected edit leaves the row untouched")

	receipt, err := msgs.EditText(msg.ID, alice.ID, "fixed")
	require.NoError(t, err)
	require.NotNil(t, receipt)

	got, err = convs.GetMessage(msg.ID)
	require.NoError(t, err)
	assert.Equal(t, "fixed", got.Text)
}

func TestSoftDeleteSenderOnly(t *testing.T) {
	db := newTestDB(t)
	convs := NewConversationService(db)
	msgs := NewMessageService(db)
	alice := newTestUser(t, db, "alice")
	bob := newTestUser(t, db, "bob")

	conv, _, err := convs.FindOrCreateDirect(alice.ID, bob.ID)
	require.NoError(t, err)
	msg, err := convs.AppendMessage(conv.ID, alice.ID, "secret", nil, nil)
	require.NoError(t, err)

	_, _, err = msgs.SoftDelete(msg.ID, bob.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	when, receipt, err := msgs.SoftDelete(msg.ID, alice.ID)
	require.NoError(t, err)
	require.NotNil(t, receipt)
	assert.False(t, when.IsZero())

	got, err := convs.GetMessage(msg.ID)
	require.NoError(t, err)
	require.NotNil(t, got.DeletedAt)
	assert.Equal(t, "secret", got.Text, "tombstone keeps content in the store")
}

func TestSoftDeleteKeepsReplyTargetAddressable(t *testing.T) {
	db := newTestDB(t)
	convs := NewConversationService(db)
	msgs := NewMessageService(db)
	alice := newTestUser(t, db, "alice")
	bob := newTestUser(t, db, "bob")

	conv, _, err := convs.FindOrCreateDirect(alice.ID, bob.ID)
	require.NoError(t, err)
	original, err := convs.AppendMessage(conv.ID, alice.ID, "question", nil, nil)
	require.NoError(t, err)
	reply, err := convs.AppendMessage(conv.ID, bob.ID, "answer", nil, &original.ID)
	require.NoError(t, err)
	require.NotNil(t, reply.ReplyToID)

	_, _, err = msgs.SoftDelete(original.ID, alice.ID)
	require.NoError(t, err)

	got, err := convs.GetMessage(reply.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ReplyTo, "reply still resolves after the original is tombstoned")
	assert.NotNil(t, got.ReplyTo.DeletedAt)
}

func TestToggleReactionSameEmojiRemoves(t *testing.T) {
	db := newTestDB(t)
	convs := NewConversationService(db)
	msgs := NewMessageService(db)
	alice := newTestUser(t, db, "alice")
	bob := newTestUser(t, db, "bob")

	conv, _, err := convs.FindOrCreateDirect(alice.ID, bob.ID)
	require.NoError(t, err)
	msg, err := convs.AppendMessage(conv.ID, alice.ID, "hi", nil, nil)
	require.NoError(t, err)

	emojis, _, err := msgs.ToggleReaction(msg.ID, bob.ID, "👍")
	require.NoError(t, err)
	assert.Equal(t, []string{"👍"}, emojis)

	emojis, _, err = msgs.ToggleReaction(msg.ID, bob.ID, "👍")
	require.NoError(t, err)
	assert.Empty(t, emojis)
}

func TestToggleReactionDifferentEmojiReplaces(t *testing.T) {
	db := newTestDB(t)
	convs := NewConversationService(db)
	msgs := NewMessageService(db)
	alice := newTestUser(t, db, "alice")
	bob := newTestUser(t, db, "bob")

	conv, _, err := convs.FindOrCreateDirect(alice.ID, bob.ID)
	require.NoError(t, err)
	msg, err := convs.AppendMessage(conv.ID, alice.ID, "hi", nil, nil)
	require.NoError(t, err)

	_, _, err = msgs.ToggleReaction(msg.ID, bob.ID, "👍")
	require.NoError(t, err)
	emojis, _, err := msgs.ToggleReaction(msg.ID, bob.ID, "❤️")
	require.NoError(t, err)
	assert.Equal(t, []string{"❤️"}, emojis, "switching emoji replaces, never stacks")

	var count int64
	require.NoError(t, db.Model(&models.Reaction{}).Where("message_id = ?", msg.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestToggleReactionPerUser(t *testing.T) {
	db := newTestDB(t)
	convs := NewConversationService(db)
	msgs := NewMessageService(db)
	alice := newTestUser(t, db, "alice")
	bob := newTestUser(t, db, "bob")

	conv, _, err := convs.FindOrCreateDirect(alice.ID, bob.ID)
	require.NoError(t, err)
	msg, err := convs.AppendMessage(conv.ID, alice.ID, "hi", nil, nil)
	require.NoError(t, err)

	_, _, err = msgs.ToggleReaction(msg.ID, alice.ID, "👍")
	require.NoError(t, err)
	emojis, _, err := msgs.ToggleReaction(msg.ID, bob.ID, "👍")
	require.NoError(t, err)
	assert.Len(t, emojis, 2, "one reaction slot per user, not per message")
}

func TestRecoverToggleAfterInsertConflict(t *testing.T) {
	db := newTestDB(t)
	convs := NewConversationService(db)
	msgs := NewMessageService(db)
	alice := newTestUser(t, db, "alice")
	bob := newTestUser(t, db, "bob")

	conv, _, err := convs.FindOrCreateDirect(alice.ID, bob.ID)
	require.NoError(t, err)
	msg, err := convs.AppendMessage(conv.ID, alice.ID, "hi", nil, nil)
	require.NoError(t, err)

	// The slot is already taken with the same emoji, as it is when a
	// concurrent toggle wins the insert: recovery toggles it off.
	winner := models.Reaction{MessageID: msg.ID, UserID: bob.ID, Emoji: "👍"}
	require.NoError(t, db.Create(&winner).Error)
	require.NoError(t, msgs.recoverToggle(msg.ID, bob.ID, "👍"))

	var count int64
	require.NoError(t, db.Model(&models.Reaction{}).Where("message_id = ?", msg.ID).Count(&count).Error)
	assert.EqualValues(t, 0, count)

	// Different emoji in the slot: recovery replaces it.
	winner = models.Reaction{MessageID: msg.ID, UserID: bob.ID, Emoji: "👍"}
	require.NoError(t, db.Create(&winner).Error)
	require.NoError(t, msgs.recoverToggle(msg.ID, bob.ID, "❤️"))

	var after models.Reaction
	require.NoError(t, db.Where("message_id = ? AND user_id = ?", msg.ID, bob.ID).First(&after).Error)
	assert.Equal(t, "❤️", after.Emoji)
}

func TestToggleReactionConcurrentSameSlot(t *testing.T) {
	db := newTestDB(t)
	convs := NewConversationService(db)
	msgs := NewMessageService(db)
	alice := newTestUser(t, db, "alice")
	bob := newTestUser(t, db, "bob")

	conv, _, err := convs.FindOrCreateDirect(alice.ID, bob.ID)
	require.NoError(t, err)
	msg, err := convs.AppendMessage(conv.ID, alice.ID, "hi", nil, nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := msgs.ToggleReaction(msg.ID, bob.ID, "👍"); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("concurrent toggle surfaced a store error: %v", err)
	}

	// The slot holds at most one row regardless of interleaving.
	var count int64
	require.NoError(t, db.Model(&models.Reaction{}).Where("message_id = ?", msg.ID).Count(&count).Error)
	assert.LessOrEqual(t, count, int64(1))
}

func TestToggleReactionNonParticipant(t *testing.T) {
	db := newTestDB(t)
	convs := NewConversationService(db)
	msgs := NewMessageService(db)
	alice := newTestUser(t, db, "alice")
	bob := newTestUser(t, db, "bob")
	eve := newTestUser(t, db, "eve")

	conv, _, err := convs.FindOrCreateDirect(alice.ID, bob.ID)
	require.NoError(t, err)
	msg, err := convs.AppendMessage(conv.ID, alice.ID, "hi", nil, nil)
	require.NoError(t, err)

	_, _, err = msgs.ToggleReaction(msg.ID, eve.ID, "👍")
	assert.ErrorIs(t, err, ErrForbidden)
}
