package realtime

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEnvelopeDefaultsToChatMessage(t *testing.T) {
	raw := []byte(`{"message":"hi","recipient_id":"` + uuid.New().String() + `"}`)
	env, err := ParseEnvelope(raw)
	require.NoError(t, err)
	assert.Equal(t, EventChatMessage, env.Type)
	assert.Equal(t, "hi", env.Message)
	require.NotNil(t, env.RecipientID)
	assert.Equal(t, json.RawMessage(raw), env.Raw)
}

func TestParseEnvelopeMalformed(t *testing.T) {
	_, err := ParseEnvelope([]byte(`{"type":`))
	assert.Error(t, err)
}

func TestParseEnvelopeKeepsUnknownType(t *testing.T) {
	env, err := ParseEnvelope([]byte(`{"type":"shrug"}`))
	require.NoError(t, err)
	// The dispatch switch owns the drop decision, not the parser.
	assert.Equal(t, "shrug", env.Type)
}

func TestReceiptEventFieldNamesAreStable(t *testing.T) {
	msgID := uuid.New()
	convID := uuid.New()
	payload := mustMarshal(receiptEvent{Type: EventMessageDelivered, MessageID: msgID, ConversationID: convID})

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(payload, &decoded))
	assert.Equal(t, "message_delivered", decoded["type"])
	assert.Equal(t, msgID.String(), decoded["message_id"])
	assert.Equal(t, convID.String(), decoded["conversation_id"])
}

func TestMessageDeletedEventShape(t *testing.T) {
	msgID := uuid.New()
	convID := uuid.New()
	at := time.Now().UTC()
	payload := NewMessageDeletedEvent(msgID, convID, "alice", at)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(payload, &decoded))
	assert.Equal(t, "message_deleted", decoded["type"])
	assert.Equal(t, "alice", decoded["deleted_by"])
	assert.NotEmpty(t, decoded["deleted_at"])
}

func TestMessageReactionEventShape(t *testing.T) {
	payload := NewMessageReactionEvent(uuid.New(), uuid.New(), []string{"👍", "👎"})

	var decoded struct {
		Type      string   `json:"type"`
		Reactions []string `json:"reactions"`
	}
	require.NoError(t, json.Unmarshal(payload, &decoded))
	assert.Equal(t, "message_reaction", decoded.Type)
	assert.Equal(t, []string{"👍", "👎"}, decoded.Reactions)
}
