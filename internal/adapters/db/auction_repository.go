package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"dutch-auction-service/internal/domain/auction"
	"dutch-auction-service/internal/domain/shared"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

const auctionColumns = `id, seller, start_price, end_price, current_price, price_decrement,
	decrement_interval_ms, duration_ms, start_time, end_time, started, ended, decrements_applied,
	deposit_token, deposit_amount, winner, final_price, created_at, updated_at`

// AuctionRepository implements the auction repository interface
type AuctionRepository struct {
	q querier
}

// NewAuctionRepository creates a new auction repository
func NewAuctionRepository(q querier) *AuctionRepository {
	return &AuctionRepository{q: q}
}

// Create creates a new auction
func (r *AuctionRepository) Create(ctx context.Context, a *auction.Auction) error {
	query := `
		INSERT INTO auctions (` + auctionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`

	_, err := r.q.ExecContext(ctx, query,
		a.ID,
		a.Seller.Hex(),
		a.StartPrice,
		a.EndPrice,
		a.CurrentPrice,
		a.PriceDecrement,
		a.DecrementInterval.Milliseconds(),
		a.Duration.Milliseconds(),
		nullTime(a.StartTime),
		a.EndTime,
		a.Started,
		a.Ended,
		a.DecrementsApplied,
		a.DepositToken.Hex(),
		a.DepositAmount,
		a.Winner.Hex(),
		a.FinalPrice,
		a.CreatedAt,
		a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create auction: %w", err)
	}

	return nil
}

// GetByID retrieves an auction by ID
func (r *AuctionRepository) GetByID(ctx context.Context, id uuid.UUID) (*auction.Auction, error) {
	return r.get(ctx, `SELECT `+auctionColumns+` FROM auctions WHERE id = $1`, id)
}

// GetForUpdate retrieves an auction and holds its row lock until the
// transaction ends
func (r *AuctionRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*auction.Auction, error) {
	return r.get(ctx, `SELECT `+auctionColumns+` FROM auctions WHERE id = $1 FOR UPDATE`, id)
}

func (r *AuctionRepository) get(ctx context.Context, query string, id uuid.UUID) (*auction.Auction, error) {
	a, err := scanAuction(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.ErrAuctionNotFound
		}
		return nil, fmt.Errorf("failed to get auction: %w", err)
	}
	return a, nil
}

// List retrieves auctions in creation order with an optional status filter
func (r *AuctionRepository) List(ctx context.Context, status *auction.Status, page, pageSize int) ([]*auction.Auction, error) {
	baseQuery := `SELECT ` + auctionColumns + ` FROM auctions `

	var whereClause string
	var args []interface{}
	argCount := 1

	if status != nil {
		switch *status {
		case auction.StatusCreated:
			whereClause = "WHERE NOT started AND NOT ended "
		case auction.StatusStarted:
			whereClause = "WHERE started AND NOT ended "
		case auction.StatusEnded:
			whereClause = "WHERE ended "
		}
	}

	// Add pagination
	limitClause := fmt.Sprintf("LIMIT $%d", argCount)
	offsetClause := fmt.Sprintf("OFFSET $%d", argCount+1)
	args = append(args, pageSize, (page-1)*pageSize)

	query := baseQuery + whereClause + "ORDER BY seq ASC " + limitClause + " " + offsetClause

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list auctions: %w", err)
	}
	defer rows.Close()

	var auctions []*auction.Auction
	for rows.Next() {
		a, err := scanAuction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan auction: %w", err)
		}
		auctions = append(auctions, a)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating auctions: %w", err)
	}

	return auctions, nil
}

// Update updates the mutable fields of an auction
func (r *AuctionRepository) Update(ctx context.Context, a *auction.Auction) error {
	query := `
		UPDATE auctions
		SET current_price = $2, start_time = $3, end_time = $4, started = $5, ended = $6,
		    decrements_applied = $7, winner = $8, final_price = $9, updated_at = $10
		WHERE id = $1
	`

	result, err := r.q.ExecContext(ctx, query,
		a.ID,
		a.CurrentPrice,
		nullTime(a.StartTime),
		a.EndTime,
		a.Started,
		a.Ended,
		a.DecrementsApplied,
		a.Winner.Hex(),
		a.FinalPrice,
		a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update auction: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return shared.ErrAuctionNotFound
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAuction(row rowScanner) (*auction.Auction, error) {
	var (
		a                      auction.Auction
		seller, token, winner  string
		intervalMs, durationMs int64
		startTime              sql.NullTime
	)
	err := row.Scan(
		&a.ID,
		&seller,
		&a.StartPrice,
		&a.EndPrice,
		&a.CurrentPrice,
		&a.PriceDecrement,
		&intervalMs,
		&durationMs,
		&startTime,
		&a.EndTime,
		&a.Started,
		&a.Ended,
		&a.DecrementsApplied,
		&token,
		&a.DepositAmount,
		&winner,
		&a.FinalPrice,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	a.Seller = common.HexToAddress(seller)
	a.DepositToken = common.HexToAddress(token)
	a.Winner = common.HexToAddress(winner)
	a.DecrementInterval = time.Duration(intervalMs) * time.Millisecond
	a.Duration = time.Duration(durationMs) * time.Millisecond
	if startTime.Valid {
		a.StartTime = startTime.Time
	}
	return &a, nil
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
