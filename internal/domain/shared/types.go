package shared

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// UpkeepAction names the work an upkeep call would perform.
type UpkeepAction string

const (
	UpkeepNone     UpkeepAction = "none"
	UpkeepTick     UpkeepAction = "tick"
	UpkeepForceEnd UpkeepAction = "force_end"
)

// UpkeepCheck is the read-only answer to "is upkeep due for this auction".
type UpkeepCheck struct {
	AuctionID      uuid.UUID       `json:"auction_id"`
	Needed         bool            `json:"needed"`
	Action         UpkeepAction    `json:"action"`
	CurrentPrice   decimal.Decimal `json:"current_price"`
	ScheduledPrice decimal.Decimal `json:"scheduled_price"`
}

// UpkeepResult reports what a PerformUpkeep call did. Performed is false
// when the call was a no-op.
type UpkeepResult struct {
	AuctionID   uuid.UUID       `json:"auction_id"`
	Action      UpkeepAction    `json:"action"`
	Performed   bool            `json:"performed"`
	PriceBefore decimal.Decimal `json:"price_before"`
	PriceAfter  decimal.Decimal `json:"price_after"`
	Ended       bool            `json:"ended"`
}

// AuctionEndResult represents the result of ending an auction. Winner is the
// zero address and FinalPrice is zero on the no-bid expiry path.
type AuctionEndResult struct {
	AuctionID  uuid.UUID       `json:"auction_id"`
	Winner     common.Address  `json:"winner"`
	FinalPrice decimal.Decimal `json:"final_price"`
	Status     string          `json:"status"`
}

// HasWinner reports whether the auction ended through a bid.
func (r AuctionEndResult) HasWinner() bool {
	return r.Winner != (common.Address{})
}
