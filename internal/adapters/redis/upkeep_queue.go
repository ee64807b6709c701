package redis

import (
	"context"
	"fmt"
	"time"

	"dutch-auction-service/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// UpkeepQueueKey is the sorted set of started auctions, scored by end time
const UpkeepQueueKey = "auction:upkeep"

// UpkeepQueue keeps the scheduler's work list in Redis so several service
// instances poll the same set of auctions
type UpkeepQueue struct {
	client *redis.Client
	key    string
}

var _ outbound.UpkeepQueue = (*UpkeepQueue)(nil)

// NewUpkeepQueue creates a queue on UpkeepQueueKey
func NewUpkeepQueue(client *redis.Client) *UpkeepQueue {
	return &UpkeepQueue{client: client, key: UpkeepQueueKey}
}

func (q *UpkeepQueue) Enqueue(ctx context.Context, auctionID uuid.UUID, endTime time.Time) error {
	member := redis.Z{Score: float64(endTime.UnixMilli()), Member: auctionID.String()}
	if err := q.client.ZAdd(ctx, q.key, member).Err(); err != nil {
		return fmt.Errorf("failed to enqueue auction %s: %w", auctionID, err)
	}
	return nil
}

func (q *UpkeepQueue) Active(ctx context.Context, offset, limit int) ([]uuid.UUID, error) {
	if offset < 0 {
		offset = 0
	}
	start := int64(offset)
	stop := int64(-1)
	if limit > 0 {
		stop = start + int64(limit) - 1
	}

	members, err := q.client.ZRange(ctx, q.key, start, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read upkeep queue: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(members))
	for _, m := range members {
		id, err := uuid.Parse(m)
		if err != nil {
			// Foreign members are dropped so they never block the head of the queue.
			q.client.ZRem(ctx, q.key, m)
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (q *UpkeepQueue) Remove(ctx context.Context, auctionID uuid.UUID) error {
	if err := q.client.ZRem(ctx, q.key, auctionID.String()).Err(); err != nil {
		return fmt.Errorf("failed to remove auction %s from upkeep queue: %w", auctionID, err)
	}
	return nil
}
