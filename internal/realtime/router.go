package realtime

import (
	"github.com/google/uuid"
)

// BlockChecker is the read-only view of the block relation the router
// needs. The core never writes blocks on this path.
type BlockChecker interface {
	IsBlocked(blocker, blocked uuid.UUID) (bool, error)
}

// Delivery is the router's per-recipient decision. A withheld message is
// persisted and sender-visible but not pushed live, and it stays out of the
// recipient's history reads until delivered (which happens when the block
// is lifted).
type Delivery struct {
	UserID   uuid.UUID
	Withheld bool
}

// Router computes who receives a brand-new message now. The policy is
// per-recipient and directional: recipient-blocked-sender withholds, the
// reverse direction does not. Generalizes unchanged to group conversations.
type Router struct {
	blocks BlockChecker
}

func NewRouter(blocks BlockChecker) *Router {
	return &Router{blocks: blocks}
}

// Route returns one decision per participant other than the sender. A self
// conversation yields no deliveries; the sender echo covers it.
func (r *Router) Route(sender uuid.UUID, participants []uuid.UUID) ([]Delivery, error) {
	deliveries := make([]Delivery, 0, len(participants))
	for _, p := range participants {
		if p == sender {
			continue
		}
		withheld, err := r.blocks.IsBlocked(p, sender)
		if err != nil {
			return nil, err
		}
		deliveries = append(deliveries, Delivery{UserID: p, Withheld: withheld})
	}
	return deliveries, nil
}
