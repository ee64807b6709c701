package auction

import (
	"time"

	"dutch-auction-service/internal/domain/shared"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status represents the lifecycle stage of an auction
type Status string

const (
	StatusCreated Status = "created"
	StatusStarted Status = "started"
	StatusEnded   Status = "ended"
)

// ParseStatus maps a query value onto a Status.
func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusCreated, StatusStarted, StatusEnded:
		return Status(s), true
	}
	return "", false
}

// Auction is a descending-price auction with a fixed collateral requirement.
// Started and Ended are one-way flags.
type Auction struct {
	ID                uuid.UUID       `json:"id"`
	Seller            common.Address  `json:"seller"`
	StartPrice        decimal.Decimal `json:"start_price"`
	EndPrice          decimal.Decimal `json:"end_price"`
	CurrentPrice      decimal.Decimal `json:"current_price"`
	PriceDecrement    decimal.Decimal `json:"price_decrement"`
	DecrementInterval time.Duration   `json:"-"`
	Duration          time.Duration   `json:"-"`
	StartTime         time.Time       `json:"start_time"`
	EndTime           time.Time       `json:"end_time"`
	Started           bool            `json:"started"`
	Ended             bool            `json:"ended"`
	DecrementsApplied int64           `json:"decrements_applied"`
	DepositToken      common.Address  `json:"deposit_token"`
	DepositAmount     decimal.Decimal `json:"deposit_amount"`
	Winner            common.Address  `json:"winner"`
	FinalPrice        decimal.Decimal `json:"final_price"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// Params carries the creation arguments of an auction.
type Params struct {
	ID                uuid.UUID
	Seller            common.Address
	StartPrice        decimal.Decimal
	EndPrice          decimal.Decimal
	PriceDecrement    decimal.Decimal
	DecrementInterval time.Duration
	Duration          time.Duration
	DepositToken      common.Address
	DepositAmount     decimal.Decimal
}

// Validate checks the creation invariants.
func (p Params) Validate() error {
	switch {
	case !FitsScale(p.StartPrice), !FitsScale(p.EndPrice), !FitsScale(p.PriceDecrement), !FitsScale(p.DepositAmount):
		return shared.ErrInvalidPrecision
	case !p.StartPrice.IsPositive():
		return shared.ErrInvalidStartPrice
	case p.EndPrice.IsNegative():
		return shared.ErrInvalidEndPrice
	case p.EndPrice.GreaterThan(p.StartPrice):
		return shared.ErrInvalidPriceRange
	case !p.PriceDecrement.IsPositive():
		return shared.ErrInvalidDecrement
	case p.DecrementInterval <= 0:
		return shared.ErrInvalidInterval
	case p.Duration <= 0:
		return shared.ErrInvalidDuration
	case p.DepositAmount.IsNegative():
		return shared.ErrInvalidDepositAmount
	case IsZeroAddress(p.Seller), IsZeroAddress(p.DepositToken):
		return shared.ErrInvalidAddress
	}
	return nil
}

// New initializes an auction in the Created state. The end time is
// provisional until Start fixes it relative to the real start.
func New(p Params, now time.Time) (*Auction, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	id := p.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	return &Auction{
		ID:                id,
		Seller:            p.Seller,
		StartPrice:        p.StartPrice,
		EndPrice:          p.EndPrice,
		CurrentPrice:      p.StartPrice,
		PriceDecrement:    p.PriceDecrement,
		DecrementInterval: p.DecrementInterval,
		Duration:          p.Duration,
		EndTime:           now.Add(p.Duration),
		DepositToken:      p.DepositToken,
		DepositAmount:     p.DepositAmount,
		FinalPrice:        decimal.Zero,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

// Status derives the lifecycle stage from the flags.
func (a *Auction) Status() Status {
	switch {
	case a.Ended:
		return StatusEnded
	case a.Started:
		return StatusStarted
	default:
		return StatusCreated
	}
}

// EscrowAddress is the account holding this auction's collateral.
func (a *Auction) EscrowAddress() common.Address {
	return EscrowAddress(a.ID)
}

// EscrowAddress derives the escrow account for an auction id.
func EscrowAddress(id uuid.UUID) common.Address {
	hash := crypto.Keccak256([]byte("escrow"), id[:])
	return common.BytesToAddress(hash[12:])
}

// IsZeroAddress reports whether addr is the zero address.
func IsZeroAddress(addr common.Address) bool {
	return addr == (common.Address{})
}

// MaxAmountScale is the number of decimal places stored for money amounts.
const MaxAmountScale = 18

// FitsScale reports whether d is exact at MaxAmountScale decimal places.
func FitsScale(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(MaxAmountScale))
}

// Start moves the auction from Created to Started and fixes its end time.
func (a *Auction) Start(now time.Time) (Event, error) {
	if a.Started || a.Ended {
		return Event{}, shared.ErrAlreadyStarted
	}

	a.Started = true
	a.StartTime = now
	a.EndTime = now.Add(a.Duration)
	a.CurrentPrice = a.StartPrice
	a.DecrementsApplied = 0
	a.UpdatedAt = now

	return newEvent(EventAuctionStarted, a.ID, now, map[string]interface{}{
		"start_price": a.StartPrice.String(),
		"end_price":   a.EndPrice.String(),
		"end_time":    a.EndTime.UTC().Format(time.RFC3339),
	}), nil
}

// IsExpired reports whether a started auction has reached its end time.
func (a *Auction) IsExpired(now time.Time) bool {
	return a.Started && !now.Before(a.EndTime)
}

// CheckBid validates the lifecycle preconditions of a bid.
func (a *Auction) CheckBid(bidder common.Address, now time.Time) error {
	if IsZeroAddress(bidder) {
		return shared.ErrInvalidAddress
	}
	if !a.Started {
		return shared.ErrNotStarted
	}
	if a.Ended || a.IsExpired(now) {
		return shared.ErrAuctionExpired
	}
	return nil
}

// AcceptBid ends the auction with bidder as the winner at the stored
// current price. The caller moves the funds in the same unit of work.
func (a *Auction) AcceptBid(bidder common.Address, now time.Time) (Event, error) {
	if err := a.CheckBid(bidder, now); err != nil {
		return Event{}, err
	}

	a.Ended = true
	a.Winner = bidder
	a.FinalPrice = a.CurrentPrice
	a.UpdatedAt = now

	return a.endedEvent(now), nil
}

// ForceEndIfExpired ends a started auction with no winner once its end time
// has passed. It reports false when nothing changed.
func (a *Auction) ForceEndIfExpired(now time.Time) (Event, bool) {
	if a.Ended || !a.IsExpired(now) {
		return Event{}, false
	}

	a.Ended = true
	a.Winner = common.Address{}
	a.FinalPrice = decimal.Zero
	a.UpdatedAt = now

	return a.endedEvent(now), true
}

// EndResult summarizes how an ended auction finished.
func (a *Auction) EndResult() shared.AuctionEndResult {
	return shared.AuctionEndResult{
		AuctionID:  a.ID,
		Winner:     a.Winner,
		FinalPrice: a.FinalPrice,
		Status:     string(a.Status()),
	}
}

func (a *Auction) endedEvent(now time.Time) Event {
	return newEvent(EventAuctionEnded, a.ID, now, map[string]interface{}{
		"winner":      a.Winner.Hex(),
		"final_price": a.FinalPrice.String(),
	})
}
