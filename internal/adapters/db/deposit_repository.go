package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// DepositRepository implements the deposit repository interface
type DepositRepository struct {
	q querier
}

// NewDepositRepository creates a new deposit repository
func NewDepositRepository(q querier) *DepositRepository {
	return &DepositRepository{q: q}
}

// HasDeposit reports whether participant holds an active deposit
func (r *DepositRepository) HasDeposit(ctx context.Context, auctionID uuid.UUID, participant common.Address) (bool, error) {
	query := `SELECT active FROM deposits WHERE auction_id = $1 AND participant = $2`

	var active bool
	err := r.q.QueryRowContext(ctx, query, auctionID, participant.Hex()).Scan(&active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get deposit: %w", err)
	}
	return active, nil
}

// MarkPaid records an active deposit
func (r *DepositRepository) MarkPaid(ctx context.Context, auctionID uuid.UUID, participant common.Address, at time.Time) error {
	query := `
		INSERT INTO deposits (auction_id, participant, active, paid_at, refunded_at)
		VALUES ($1, $2, TRUE, $3, NULL)
		ON CONFLICT (auction_id, participant)
		DO UPDATE SET active = TRUE, paid_at = EXCLUDED.paid_at, refunded_at = NULL
	`

	if _, err := r.q.ExecContext(ctx, query, auctionID, participant.Hex(), at); err != nil {
		return fmt.Errorf("failed to mark deposit paid: %w", err)
	}
	return nil
}

// Clear deactivates a deposit ahead of its refund
func (r *DepositRepository) Clear(ctx context.Context, auctionID uuid.UUID, participant common.Address, at time.Time) error {
	query := `
		UPDATE deposits SET active = FALSE, refunded_at = $3
		WHERE auction_id = $1 AND participant = $2 AND active
	`

	result, err := r.q.ExecContext(ctx, query, auctionID, participant.Hex(), at)
	if err != nil {
		return fmt.Errorf("failed to clear deposit: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("failed to clear deposit: no active deposit for %s", participant.Hex())
	}
	return nil
}

// ListDepositors returns participants with an active deposit
func (r *DepositRepository) ListDepositors(ctx context.Context, auctionID uuid.UUID) ([]common.Address, error) {
	query := `SELECT participant FROM deposits WHERE auction_id = $1 AND active ORDER BY participant`

	rows, err := r.q.QueryContext(ctx, query, auctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list depositors: %w", err)
	}
	defer rows.Close()

	var out []common.Address
	for rows.Next() {
		var hex string
		if err := rows.Scan(&hex); err != nil {
			return nil, fmt.Errorf("failed to scan depositor: %w", err)
		}
		out = append(out, common.HexToAddress(hex))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating depositors: %w", err)
	}
	return out, nil
}
