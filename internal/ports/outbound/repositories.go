package outbound

import (
	"context"
	"time"

	"dutch-auction-service/internal/domain/auction"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AuctionRepository defines the interface for auction data operations
type AuctionRepository interface {
	// Create stores a newly initialized auction
	Create(ctx context.Context, auction *auction.Auction) error

	// GetByID retrieves an auction by ID
	GetByID(ctx context.Context, id uuid.UUID) (*auction.Auction, error)

	// GetForUpdate retrieves an auction and locks it until the surrounding
	// unit of work finishes
	GetForUpdate(ctx context.Context, id uuid.UUID) (*auction.Auction, error)

	// List retrieves auctions in creation order with an optional status filter
	List(ctx context.Context, status *auction.Status, page, pageSize int) ([]*auction.Auction, error)

	// Update persists the mutable fields of an auction
	Update(ctx context.Context, auction *auction.Auction) error
}

// DepositRepository tracks the per-participant "has active deposit" flag
type DepositRepository interface {
	HasDeposit(ctx context.Context, auctionID uuid.UUID, participant common.Address) (bool, error)
	MarkPaid(ctx context.Context, auctionID uuid.UUID, participant common.Address, at time.Time) error
	Clear(ctx context.Context, auctionID uuid.UUID, participant common.Address, at time.Time) error
	ListDepositors(ctx context.Context, auctionID uuid.UUID) ([]common.Address, error)
}

// TokenLedger holds balances of the deposit asset. Transfer is all-or-nothing
// and fails with shared.ErrTransferFailed when the source cannot cover it.
type TokenLedger interface {
	BalanceOf(ctx context.Context, token, owner common.Address) (decimal.Decimal, error)
	Transfer(ctx context.Context, token, from, to common.Address, amount decimal.Decimal) error
	Credit(ctx context.Context, token, owner common.Address, amount decimal.Decimal) error
}

// EventRepository is the append-only audit log of auction events
type EventRepository interface {
	Append(ctx context.Context, event auction.Event) error
	ListByAuction(ctx context.Context, auctionID uuid.UUID) ([]auction.Event, error)
}

// AdminRepository stores the admin role membership
type AdminRepository interface {
	IsAdmin(ctx context.Context, addr common.Address) (bool, error)
	Grant(ctx context.Context, addr common.Address) error
	Revoke(ctx context.Context, addr common.Address) error
	List(ctx context.Context) ([]common.Address, error)
}

// Repositories bundles the repositories bound to one unit of work
type Repositories struct {
	Auctions AuctionRepository
	Deposits DepositRepository
	Tokens   TokenLedger
	Events   EventRepository
	Admins   AdminRepository
}

// UnitOfWork runs fn atomically: every write made through repos is committed
// together when fn returns nil and discarded when it returns an error.
type UnitOfWork interface {
	Within(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error

	// Repositories returns repositories for reads outside a unit of work
	Repositories() Repositories
}

// UpkeepQueue holds started auctions the scheduler should poll
type UpkeepQueue interface {
	// Enqueue adds or re-scores an auction by its end time
	Enqueue(ctx context.Context, auctionID uuid.UUID, endTime time.Time) error

	// Active returns up to limit queued auctions starting at offset,
	// earliest end time first. A limit <= 0 returns the rest of the queue.
	Active(ctx context.Context, offset, limit int) ([]uuid.UUID, error)

	// Remove drops an auction from the queue
	Remove(ctx context.Context, auctionID uuid.UUID) error
}
