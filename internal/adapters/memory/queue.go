package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"dutch-auction-service/internal/ports/outbound"

	"github.com/google/uuid"
)

// Queue is an in-process outbound.UpkeepQueue.
type Queue struct {
	mu    sync.Mutex
	items map[uuid.UUID]time.Time
}

var _ outbound.UpkeepQueue = (*Queue)(nil)

// NewQueue creates an empty upkeep queue.
func NewQueue() *Queue {
	return &Queue{items: make(map[uuid.UUID]time.Time)}
}

func (q *Queue) Enqueue(ctx context.Context, auctionID uuid.UUID, endTime time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items[auctionID] = endTime
	return nil
}

func (q *Queue) Active(ctx context.Context, offset, limit int) ([]uuid.UUID, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	ids := make([]uuid.UUID, 0, len(q.items))
	for id := range q.items {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		ti, tj := q.items[ids[i]], q.items[ids[j]]
		if ti.Equal(tj) {
			return ids[i].String() < ids[j].String()
		}
		return ti.Before(tj)
	})
	if offset < 0 {
		offset = 0
	}
	if offset >= len(ids) {
		return []uuid.UUID{}, nil
	}
	ids = ids[offset:]
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (q *Queue) Remove(ctx context.Context, auctionID uuid.UUID) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.items, auctionID)
	return nil
}
