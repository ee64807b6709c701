package outbound

import (
	"context"

	"dutch-auction-service/internal/domain/auction"

	"github.com/google/uuid"
)

// Event represents a broadcast event
type Event struct {
	Type      auction.EventType      `json:"type"`
	AuctionID uuid.UUID              `json:"auction_id"`
	Data      map[string]interface{} `json:"data"`
	Timestamp int64                  `json:"timestamp"`
}

// EventFromDomain converts an audit event into its broadcast form
func EventFromDomain(ev auction.Event) Event {
	return Event{
		Type:      ev.Type,
		AuctionID: ev.AuctionID,
		Data:      ev.Data,
		Timestamp: ev.OccurredAt.Unix(),
	}
}

// Publisher delivers committed events to observers
type Publisher interface {
	// Publish publishes an event to all subscribers of an auction
	Publish(ctx context.Context, auctionID uuid.UUID, event Event) error
}

// Broadcaster defines the interface for broadcasting events
type Broadcaster interface {
	Publisher

	// Subscribe subscribes a client to events for a specific auction
	// When a client subscribes to multiple auctions, all events are delivered to the same channel
	Subscribe(ctx context.Context, auctionID uuid.UUID, clientID string, eventChan chan Event) error

	// Unsubscribe unsubscribes a client from events for a specific auction
	Unsubscribe(ctx context.Context, auctionID uuid.UUID, clientID string) error

	// GetSubscribers returns the list of client IDs subscribed to an auction
	GetSubscribers(ctx context.Context, auctionID uuid.UUID) ([]string, error)

	// IsSubscribed checks if a client is subscribed to an auction
	IsSubscribed(ctx context.Context, auctionID uuid.UUID, clientID string) bool
}
