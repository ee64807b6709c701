package inbound

import (
	"context"
	"time"

	"dutch-auction-service/internal/domain/auction"
	"dutch-auction-service/internal/domain/shared"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AuctionService defines the registry and lifecycle operations
type AuctionService interface {
	// CreateAuction initializes a new auction in the Created state
	CreateAuction(ctx context.Context, req CreateAuctionRequest) (*auction.Auction, error)

	// GetAuction retrieves an auction snapshot by ID
	GetAuction(ctx context.Context, auctionID uuid.UUID) (*AuctionView, error)

	// ListAuctions retrieves auctions in creation order
	ListAuctions(ctx context.Context, req ListAuctionsRequest) ([]*AuctionView, error)

	// StartAuction moves an auction from Created to Started
	StartAuction(ctx context.Context, req StartAuctionRequest) (*auction.Auction, error)

	// ListEvents returns the audit log of an auction
	ListEvents(ctx context.Context, auctionID uuid.UUID) ([]auction.Event, error)
}

// BidService defines the settlement operation
type BidService interface {
	// PlaceBid buys at the current price and ends the auction
	PlaceBid(ctx context.Context, req PlaceBidRequest) (*shared.AuctionEndResult, error)
}

// CollateralService defines deposit bookkeeping and the deposit asset ledger
type CollateralService interface {
	PayDeposit(ctx context.Context, req DepositRequest) error
	ClaimRefund(ctx context.Context, req DepositRequest) error
	HasDeposit(ctx context.Context, auctionID uuid.UUID, participant common.Address) (bool, error)
	Fund(ctx context.Context, req FundRequest) error
	BalanceOf(ctx context.Context, token, owner common.Address) (decimal.Decimal, error)
}

// UpkeepService is the poll/act protocol driven by the external scheduler
type UpkeepService interface {
	CheckUpkeep(ctx context.Context, auctionID uuid.UUID) (*shared.UpkeepCheck, error)
	PerformUpkeep(ctx context.Context, auctionID uuid.UUID) (*shared.UpkeepResult, error)
}

// AdminService manages the admin role
type AdminService interface {
	GrantAdmin(ctx context.Context, caller, who common.Address) error
	RevokeAdmin(ctx context.Context, caller, who common.Address) error
	IsAdmin(ctx context.Context, who common.Address) (bool, error)
	ListAdmins(ctx context.Context) ([]common.Address, error)
}

// request to create an auction
type CreateAuctionRequest struct {
	Seller            common.Address  `json:"seller"`
	StartPrice        decimal.Decimal `json:"start_price"`
	EndPrice          decimal.Decimal `json:"end_price"`
	PriceDecrement    decimal.Decimal `json:"price_decrement"`
	DecrementInterval time.Duration   `json:"decrement_interval"`
	Duration          time.Duration   `json:"duration"`
	DepositToken      common.Address  `json:"deposit_token"`
	DepositAmount     decimal.Decimal `json:"deposit_amount"`
}

// request to list auctions
type ListAuctionsRequest struct {
	Status   *auction.Status `json:"status,omitempty"`
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
}

// request to start an auction
type StartAuctionRequest struct {
	AuctionID uuid.UUID      `json:"auction_id"`
	Caller    common.Address `json:"caller"`
}

// request to place a bid
type PlaceBidRequest struct {
	AuctionID uuid.UUID      `json:"auction_id"`
	Bidder    common.Address `json:"bidder"`
}

// request to pay or refund a deposit
type DepositRequest struct {
	AuctionID   uuid.UUID      `json:"auction_id"`
	Participant common.Address `json:"participant"`
}

// request to credit the deposit asset to an account
type FundRequest struct {
	Token  common.Address  `json:"token"`
	Owner  common.Address  `json:"owner"`
	Amount decimal.Decimal `json:"amount"`
}

// AuctionView is an auction snapshot with the derived fields observers need
type AuctionView struct {
	*auction.Auction
	Status                   auction.Status  `json:"status"`
	ScheduledPrice           decimal.Decimal `json:"scheduled_price"`
	EscrowAddress            common.Address  `json:"escrow_address"`
	DecrementIntervalSeconds int64           `json:"decrement_interval_seconds"`
	DurationSeconds          int64           `json:"duration_seconds"`
}

// NewAuctionView builds the snapshot of a at now
func NewAuctionView(a *auction.Auction, now time.Time) *AuctionView {
	return &AuctionView{
		Auction:                  a,
		Status:                   a.Status(),
		ScheduledPrice:           a.PriceAt(now),
		EscrowAddress:            a.EscrowAddress(),
		DecrementIntervalSeconds: int64(a.DecrementInterval / time.Second),
		DurationSeconds:          int64(a.Duration / time.Second),
	}
}
