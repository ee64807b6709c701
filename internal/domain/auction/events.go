package auction

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EventType identifies a notification emitted by an auction transition.
type EventType string

const (
	EventAuctionCreated  EventType = "auction.created"
	EventAuctionStarted  EventType = "auction.started"
	EventAuctionEnded    EventType = "auction.ended"
	EventDepositPaid     EventType = "deposit.paid"
	EventDepositRefunded EventType = "deposit.refunded"
	EventPriceDecayed    EventType = "price.decayed"
)

// Event is an audit record of one state change. Data values are strings so
// the record survives a JSON round trip unchanged.
type Event struct {
	Type       EventType              `json:"type"`
	AuctionID  uuid.UUID              `json:"auction_id"`
	Data       map[string]interface{} `json:"data"`
	OccurredAt time.Time              `json:"occurred_at"`
}

func newEvent(t EventType, id uuid.UUID, at time.Time, data map[string]interface{}) Event {
	return Event{Type: t, AuctionID: id, Data: data, OccurredAt: at}
}

// CreatedEvent records registration of a new auction.
func CreatedEvent(a *Auction) Event {
	return newEvent(EventAuctionCreated, a.ID, a.CreatedAt, map[string]interface{}{
		"seller":      a.Seller.Hex(),
		"start_price": a.StartPrice.String(),
		"end_price":   a.EndPrice.String(),
	})
}

// DepositPaidEvent records a participant escrowing the deposit.
func DepositPaidEvent(id uuid.UUID, participant common.Address, amount decimal.Decimal, at time.Time) Event {
	return newEvent(EventDepositPaid, id, at, map[string]interface{}{
		"participant": participant.Hex(),
		"amount":      amount.String(),
	})
}

// DepositRefundedEvent records collateral returned to a participant.
func DepositRefundedEvent(id uuid.UUID, participant common.Address, amount decimal.Decimal, at time.Time) Event {
	return newEvent(EventDepositRefunded, id, at, map[string]interface{}{
		"participant": participant.Hex(),
		"amount":      amount.String(),
	})
}
