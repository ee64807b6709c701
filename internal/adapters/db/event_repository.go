package db

import (
	"context"
	"encoding/json"
	"fmt"

	"dutch-auction-service/internal/domain/auction"

	"github.com/google/uuid"
)

// EventRepository appends to and reads the auction_events audit log
type EventRepository struct {
	q querier
}

// NewEventRepository creates a new event repository
func NewEventRepository(q querier) *EventRepository {
	return &EventRepository{q: q}
}

// Append writes one audit event
func (r *EventRepository) Append(ctx context.Context, ev auction.Event) error {
	data, err := json.Marshal(ev.Data)
	if err != nil {
		return fmt.Errorf("failed to encode event data: %w", err)
	}

	query := `
		INSERT INTO auction_events (auction_id, type, data, occurred_at)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := r.q.ExecContext(ctx, query, ev.AuctionID, string(ev.Type), data, ev.OccurredAt); err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

// ListByAuction returns the events of an auction in append order
func (r *EventRepository) ListByAuction(ctx context.Context, auctionID uuid.UUID) ([]auction.Event, error) {
	query := `
		SELECT auction_id, type, data, occurred_at
		FROM auction_events
		WHERE auction_id = $1
		ORDER BY id ASC
	`

	rows, err := r.q.QueryContext(ctx, query, auctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var events []auction.Event
	for rows.Next() {
		var (
			ev      auction.Event
			evType  string
			rawData []byte
		)
		if err := rows.Scan(&ev.AuctionID, &evType, &rawData, &ev.OccurredAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		ev.Type = auction.EventType(evType)
		if err := json.Unmarshal(rawData, &ev.Data); err != nil {
			return nil, fmt.Errorf("failed to decode event data: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}
	return events, nil
}
