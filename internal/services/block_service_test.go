package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlockIsDirectional(t *testing.T) {
	db := newTestDB(t)
	blocks := NewBlockService(db)
	alice := newTestUser(t, db, "alice")
	bob := newTestUser(t, db, "bob")

	require.NoError(t, blocks.Block(alice.ID, bob.ID))

	forward, err := blocks.IsBlocked(alice.ID, bob.ID)
	require.NoError(t, err)
	assert.True(t, forward)

	reverse, err := blocks.IsBlocked(bob.ID, alice.ID)
	require.NoError(t, err)
	assert.False(t, reverse, "blocking is one-way")
}

func TestBlockSelfRejected(t *testing.T) {
	db := newTestDB(t)
	blocks := NewBlockService(db)
	alice := newTestUser(t, db, "alice")

	assert.ErrorIs(t, blocks.Block(alice.ID, alice.ID), ErrSelfBlock)
}

func TestBlockDuplicateRejected(t *testing.T) {
	db := newTestDB(t)
	blocks := NewBlockService(db)
	alice := newTestUser(t, db, "alice")
	bob := newTestUser(t, db, "bob")

	require.NoError(t, blocks.Block(alice.ID, bob.ID))
	assert.ErrorIs(t, blocks.Block(alice.ID, bob.ID), ErrAlreadyBlocked)
}

func TestUnblockReleasesWithheldMessages(t *testing.T) {
	db := newTestDB(t)
	convs := NewConversationService(db)
	msgs := NewMessageService(db)
	blocks := NewBlockService(db)
	alice := newTestUser(t, db, "alice")
	bob := newTestUser(t, db, "bob")

	conv, _, err := convs.FindOrCreateDirect(alice.ID, bob.ID)
	require.NoError(t, err)

	delivered, err := convs.AppendMessage(conv.ID, bob.ID, "before block", nil, nil)
	require.NoError(t, err)
	_, err = msgs.MarkDelivered(delivered.ID)
	require.NoError(t, err)

	require.NoError(t, blocks.Block(alice.ID, bob.ID))

	first, err := convs.AppendMessage(conv.ID, bob.ID, "withheld 1", nil, nil)
	require.NoError(t, err)
	second, err := convs.AppendMessage(conv.ID, bob.ID, "withheld 2", nil, nil)
	require.NoError(t, err)

	released, err := blocks.Unblock(alice.ID, bob.ID)
	require.NoError(t, err)
	require.Len(t, released, 2, "only undelivered messages are released")
	assert.Equal(t, first.ID, released[0].ID, "oldest first")
	assert.Equal(t, second.ID, released[1].ID)

	gone, err := blocks.IsBlocked(alice.ID, bob.ID)
	require.NoError(t, err)
	assert.False(t, gone)
}

func TestUnblockWithoutBlockIsNoop(t *testing.T) {
	db := newTestDB(t)
	blocks := NewBlockService(db)
	alice := newTestUser(t, db, "alice")
	bob := newTestUser(t, db, "bob")

	released, err := blocks.Unblock(alice.ID, bob.ID)
	require.NoError(t, err)
	assert.Nil(t, released)
}

func TestUnblockIgnoresOtherConversations(t *testing.T) {
	db := newTestDB(t)
	convs := NewConversationService(db)
	blocks := NewBlockService(db)
	alice := newTestUser(t, db, "alice")
	bob := newTestUser(t, db, "bob")
	carol := newTestUser(t, db, "carol")

	// Bob also has an undelivered message in a conversation Alice is not in.
	other, _, err := convs.FindOrCreateDirect(bob.ID, carol.ID)
	require.NoError(t, err)
	_, err = convs.AppendMessage(other.ID, bob.ID, "for carol", nil, nil)
	require.NoError(t, err)

	conv, _, err := convs.FindOrCreateDirect(alice.ID, bob.ID)
	require.NoError(t, err)
	require.NoError(t, blocks.Block(alice.ID, bob.ID))
	withheld, err := convs.AppendMessage(conv.ID, bob.ID, "for alice", nil, nil)
	require.NoError(t, err)

	released, err := blocks.Unblock(alice.ID, bob.ID)
	require.NoError(t, err)
	require.Len(t, released, 1)
	assert.Equal(t, withheld.ID, released[0].ID)
}
