package broadcaster

import (
	"context"
	"sync"
	"time"

	"dutch-auction-service/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// LocalBroadcaster fans events out inside one process. It backs the
// memory storage driver, where there is no second instance to reach.
type LocalBroadcaster struct {
	subscribers      map[string]chan outbound.Event    // clientID -> local channel
	clientsToAuction map[string]map[uuid.UUID]struct{} // clientID -> subscribed auctions
	mu               sync.RWMutex
	logger           zerolog.Logger
}

var _ outbound.Broadcaster = (*LocalBroadcaster)(nil)

func NewLocalBroadcaster(logger zerolog.Logger) *LocalBroadcaster {
	return &LocalBroadcaster{
		subscribers:      make(map[string]chan outbound.Event),
		clientsToAuction: make(map[string]map[uuid.UUID]struct{}),
		logger:           logger.With().Str("component", "local_broadcaster").Logger(),
	}
}

func (b *LocalBroadcaster) Subscribe(ctx context.Context, auctionID uuid.UUID, clientID string, eventChan chan outbound.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	auctions, ok := b.clientsToAuction[clientID]
	if !ok {
		auctions = make(map[uuid.UUID]struct{})
		b.clientsToAuction[clientID] = auctions
		b.subscribers[clientID] = eventChan
	}
	auctions[auctionID] = struct{}{}

	b.logger.Debug().Str("client_id", clientID).Str("auction_id", auctionID.String()).Msg("Client subscribed to auction")
	return nil
}

func (b *LocalBroadcaster) Unsubscribe(ctx context.Context, auctionID uuid.UUID, clientID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	auctions, ok := b.clientsToAuction[clientID]
	if !ok {
		return nil
	}
	delete(auctions, auctionID)
	if len(auctions) == 0 {
		delete(b.clientsToAuction, clientID)
		delete(b.subscribers, clientID)
	}
	return nil
}

// Publish never blocks: a subscriber with a full channel misses the event
func (b *LocalBroadcaster) Publish(ctx context.Context, auctionID uuid.UUID, event outbound.Event) error {
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().Unix()
	}
	if event.AuctionID == uuid.Nil {
		event.AuctionID = auctionID
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	delivered := 0
	for clientID, auctions := range b.clientsToAuction {
		if _, ok := auctions[auctionID]; !ok {
			continue
		}
		select {
		case b.subscribers[clientID] <- event:
			delivered++
		default:
			b.logger.Warn().Str("client_id", clientID).Msg("Local channel full for client, dropping event")
		}
	}

	b.logger.Debug().
		Str("event_type", string(event.Type)).
		Str("auction_id", auctionID.String()).
		Int("subscriber_count", delivered).
		Msg("Published event to auction")
	return nil
}

func (b *LocalBroadcaster) GetSubscribers(ctx context.Context, auctionID uuid.UUID) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []string
	for clientID, auctions := range b.clientsToAuction {
		if _, ok := auctions[auctionID]; ok {
			out = append(out, clientID)
		}
	}
	return out, nil
}

func (b *LocalBroadcaster) IsSubscribed(ctx context.Context, auctionID uuid.UUID, clientID string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	_, ok := b.clientsToAuction[clientID][auctionID]
	return ok
}
