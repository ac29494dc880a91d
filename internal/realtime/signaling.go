package realtime

import (
	"log/slog"

	"github.com/velachat/vela-backend/internal/notify"
)

// relaySignal forwards a call-setup payload byte-for-byte to the other
// participant(s) of the conversation. The relay is stateless and never
// inspects the SDP/ICE contents.
func (h *Hub) relaySignal(sess *Session, env *Envelope) {
	if env.ChatID == nil {
		slog.Warn("signaling payload missing chat_id", "type", env.Type)
		return
	}
	others, err := h.convs.Others(*env.ChatID, sess.UserID)
	if err != nil || len(others) == 0 {
		slog.Warn("no signaling recipient", "chat_id", env.ChatID.String(), "type", env.Type)
		return
	}

	for _, uid := range others {
		h.registry.Publish(uid, env.Raw)
	}

	// Ring the callee even with no live connection. Now-or-never: a call
	// notification queued past the ringing window is worse than none.
	if env.Type == EventWebRTCOffer {
		chatID := *env.ChatID
		caller := sess.Username
		targets := others
		go func() {
			for _, uid := range targets {
				h.notifier.Notify(uid, "Incoming Call", "Incoming video call...", map[string]string{
					"type":        "incoming_call",
					"chat_id":     chatID.String(),
					"caller_name": caller,
				}, &notify.TTLNow)
			}
		}()
	}
}

func (h *Hub) handleCallEnded(sess *Session, env *Envelope) {
	if env.ChatID == nil {
		return
	}
	others, err := h.convs.Others(*env.ChatID, sess.UserID)
	if err != nil {
		return
	}
	payload := mustMarshal(callEndedEvent{Type: EventCallEnded, ChatID: *env.ChatID})
	for _, uid := range others {
		h.registry.Publish(uid, payload)
	}
}
