package broadcaster

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"dutch-auction-service/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ChannelFor names the pub/sub channel carrying one auction's events
func ChannelFor(auctionID uuid.UUID) string {
	return fmt.Sprintf("auction:%s:events", auctionID.String())
}

// RedisBroadcaster fans committed auction events out to websocket clients
// over Redis pub/sub, so every service instance sees every event
type RedisBroadcaster struct {
	client           *redis.Client
	subscribers      map[string]chan outbound.Event    // clientID -> local channel
	pubsubs          map[string]*redis.PubSub          // clientID -> pubsub instance
	clientsToAuction map[string]map[uuid.UUID]struct{} // clientID -> subscribed auctions
	mu               sync.RWMutex
	ctx              context.Context
	cancel           context.CancelFunc
	logger           zerolog.Logger
}

var _ outbound.Broadcaster = (*RedisBroadcaster)(nil)

type RedisBroadcasterParams struct {
	RedisClient *redis.Client
	Logger      zerolog.Logger
}

func NewBroadcaster(params RedisBroadcasterParams) *RedisBroadcaster {
	ctx, cancel := context.WithCancel(context.Background())

	return &RedisBroadcaster{
		client:           params.RedisClient,
		subscribers:      make(map[string]chan outbound.Event),
		pubsubs:          make(map[string]*redis.PubSub),
		clientsToAuction: make(map[string]map[uuid.UUID]struct{}),
		ctx:              ctx,
		cancel:           cancel,
		logger:           params.Logger.With().Str("component", "redis_broadcaster").Logger(),
	}
}

// Subscribe subscribes a client to events for a specific auction
func (r *RedisBroadcaster) Subscribe(ctx context.Context, auctionID uuid.UUID, clientID string, eventChan chan outbound.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	auctions := r.clientsToAuction[clientID]
	if _, ok := auctions[auctionID]; ok {
		r.logger.Debug().
			Str("client_id", clientID).
			Str("auction_id", auctionID.String()).
			Msg("Client already subscribed to auction")
		return nil
	}

	pubsub, exists := r.pubsubs[clientID]
	if !exists {
		pubsub = r.client.Subscribe(ctx)
		r.pubsubs[clientID] = pubsub
		r.subscribers[clientID] = eventChan
		go r.forward(pubsub, clientID, eventChan)
	}

	if err := pubsub.Subscribe(ctx, ChannelFor(auctionID)); err != nil {
		r.logger.Error().Err(err).Str("client_id", clientID).Str("auction_id", auctionID.String()).Msg("Failed to subscribe to Redis channel")
		return err
	}

	if auctions == nil {
		auctions = make(map[uuid.UUID]struct{})
		r.clientsToAuction[clientID] = auctions
	}
	auctions[auctionID] = struct{}{}

	r.logger.Info().
		Str("client_id", clientID).
		Str("auction_id", auctionID.String()).
		Msg("Client subscribed to auction")
	return nil
}

// Unsubscribe drops one auction for a client. Dropping the last one closes
// the client's pubsub connection. The event channel stays owned by the caller.
func (r *RedisBroadcaster) Unsubscribe(ctx context.Context, auctionID uuid.UUID, clientID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	auctions, exists := r.clientsToAuction[clientID]
	if !exists {
		return nil
	}
	delete(auctions, auctionID)

	if len(auctions) > 0 {
		if pubsub, ok := r.pubsubs[clientID]; ok {
			if err := pubsub.Unsubscribe(ctx, ChannelFor(auctionID)); err != nil {
				r.logger.Error().Err(err).Str("client_id", clientID).Str("auction_id", auctionID.String()).Msg("Error unsubscribing from Redis channel")
			}
		}
	} else {
		r.dropClient(clientID)
	}

	r.logger.Info().
		Str("client_id", clientID).
		Str("auction_id", auctionID.String()).
		Msg("Client unsubscribed from auction")
	return nil
}

// dropClient must be called with r.mu held
func (r *RedisBroadcaster) dropClient(clientID string) {
	delete(r.clientsToAuction, clientID)

	if pubsub, ok := r.pubsubs[clientID]; ok {
		if err := pubsub.Close(); err != nil {
			r.logger.Error().Err(err).Str("client_id", clientID).Msg("Error closing Redis pubsub for client")
		}
		delete(r.pubsubs, clientID)
	}
	delete(r.subscribers, clientID)
}

// Publish publishes an event to all subscribers of an auction via Redis
func (r *RedisBroadcaster) Publish(ctx context.Context, auctionID uuid.UUID, event outbound.Event) error {
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().Unix()
	}
	if event.AuctionID == uuid.Nil {
		event.AuctionID = auctionID
	}

	eventJSON, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	result := r.client.Publish(ctx, ChannelFor(auctionID), eventJSON)
	if err := result.Err(); err != nil {
		r.logger.Error().Err(err).Str("auction_id", auctionID.String()).Msg("Failed to publish to Redis")
		return fmt.Errorf("failed to publish to Redis: %w", err)
	}

	r.logger.Debug().
		Str("event_type", string(event.Type)).
		Str("auction_id", auctionID.String()).
		Int64("subscriber_count", result.Val()).
		Msg("Published event to auction")
	return nil
}

// GetSubscribers returns the local clients subscribed to an auction
func (r *RedisBroadcaster) GetSubscribers(ctx context.Context, auctionID uuid.UUID) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var subscribers []string
	for clientID, auctions := range r.clientsToAuction {
		if _, ok := auctions[auctionID]; ok {
			subscribers = append(subscribers, clientID)
		}
	}
	return subscribers, nil
}

func (r *RedisBroadcaster) IsSubscribed(ctx context.Context, auctionID uuid.UUID, clientID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.clientsToAuction[clientID][auctionID]
	return ok
}

func (r *RedisBroadcaster) forward(pubsub *redis.PubSub, clientID string, localChan chan outbound.Event) {
	defer func() {
		if err := recover(); err != nil {
			r.logger.Error().Interface("panic", err).Str("client_id", clientID).Msg("Redis message listener panic for client")
		}
	}()

	ch := pubsub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}

			var event outbound.Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				r.logger.Error().Err(err).Str("client_id", clientID).Msg("Failed to unmarshal Redis message for client")
				continue
			}

			// Once dropClient has run the caller may close localChan.
			r.mu.RLock()
			_, live := r.subscribers[clientID]
			if live {
				select {
				case localChan <- event:
				default:
					r.logger.Warn().Str("client_id", clientID).Msg("Local channel full for client, dropping event")
				}
			}
			r.mu.RUnlock()
			if !live {
				return
			}

		case <-r.ctx.Done():
			return
		}
	}
}

// Close stops every listener and closes the Redis client
func (r *RedisBroadcaster) Close() error {
	r.cancel()

	r.mu.Lock()
	for clientID := range r.pubsubs {
		r.dropClient(clientID)
	}
	r.mu.Unlock()

	return r.client.Close()
}
