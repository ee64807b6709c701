package db

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// AdminRepository implements the admin repository interface
type AdminRepository struct {
	q querier
}

// NewAdminRepository creates a new admin repository
func NewAdminRepository(q querier) *AdminRepository {
	return &AdminRepository{q: q}
}

// IsAdmin reports whether addr holds the admin role
func (r *AdminRepository) IsAdmin(ctx context.Context, addr common.Address) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM admins WHERE address = $1)`

	var exists bool
	if err := r.q.QueryRowContext(ctx, query, addr.Hex()).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check admin: %w", err)
	}
	return exists, nil
}

// Grant adds addr to the admin set
func (r *AdminRepository) Grant(ctx context.Context, addr common.Address) error {
	query := `INSERT INTO admins (address, granted_at) VALUES ($1, NOW()) ON CONFLICT (address) DO NOTHING`

	if _, err := r.q.ExecContext(ctx, query, addr.Hex()); err != nil {
		return fmt.Errorf("failed to grant admin: %w", err)
	}
	return nil
}

// Revoke removes addr from the admin set
func (r *AdminRepository) Revoke(ctx context.Context, addr common.Address) error {
	if _, err := r.q.ExecContext(ctx, `DELETE FROM admins WHERE address = $1`, addr.Hex()); err != nil {
		return fmt.Errorf("failed to revoke admin: %w", err)
	}
	return nil
}

// List returns the admin set ordered by address
func (r *AdminRepository) List(ctx context.Context) ([]common.Address, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT address FROM admins ORDER BY address`)
	if err != nil {
		return nil, fmt.Errorf("failed to list admins: %w", err)
	}
	defer rows.Close()

	var out []common.Address
	for rows.Next() {
		var hex string
		if err := rows.Scan(&hex); err != nil {
			return nil, fmt.Errorf("failed to scan admin: %w", err)
		}
		out = append(out, common.HexToAddress(hex))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating admins: %w", err)
	}
	return out, nil
}
