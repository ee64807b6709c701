package db

import (
	"context"
	"database/sql"

	"dutch-auction-service/internal/ports/outbound"
)

// RepositoryFactory creates repositories bound to the pool or to a
// transaction, and implements outbound.UnitOfWork on top of them
type RepositoryFactory struct {
	conn *Connection
}

var _ outbound.UnitOfWork = (*RepositoryFactory)(nil)

// NewRepositoryFactory creates a new repository factory
func NewRepositoryFactory(conn *Connection) *RepositoryFactory {
	return &RepositoryFactory{conn: conn}
}

// Repositories returns repositories running each statement on its own
func (f *RepositoryFactory) Repositories() outbound.Repositories {
	return repositoriesFor(f.conn.GetDB())
}

// Within runs fn in one transaction; every repository in repos shares it
func (f *RepositoryFactory) Within(ctx context.Context, fn func(ctx context.Context, repos outbound.Repositories) error) error {
	return f.conn.ExecuteTransaction(ctx, func(tx *sql.Tx) error {
		return fn(ctx, repositoriesFor(tx))
	})
}

func repositoriesFor(q querier) outbound.Repositories {
	return outbound.Repositories{
		Auctions: NewAuctionRepository(q),
		Deposits: NewDepositRepository(q),
		Tokens:   NewTokenLedger(q),
		Events:   NewEventRepository(q),
		Admins:   NewAdminRepository(q),
	}
}
