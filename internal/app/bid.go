package app

import (
	"context"
	"time"

	"dutch-auction-service/internal/domain/auction"
	"dutch-auction-service/internal/domain/shared"
	"dutch-auction-service/internal/ports/inbound"
	"dutch-auction-service/internal/ports/outbound"

	"github.com/rs/zerolog"
)

// BidService implements first-bid-wins settlement
type BidService struct {
	exec   *Executor
	logger zerolog.Logger
}

type BidServiceParams struct {
	Executor *Executor
	Logger   zerolog.Logger
}

var _ inbound.BidService = (*BidService)(nil)

// NewBidService creates a new bid service
func NewBidService(params BidServiceParams) *BidService {
	return &BidService{
		exec:   params.Executor,
		logger: params.Logger.With().Str("component", "bid_service").Logger(),
	}
}

// PlaceBid buys at the stored current price. The payment to the seller and
// the end of the auction commit together, so only one bid can ever win.
func (client *BidService) PlaceBid(ctx context.Context, req inbound.PlaceBidRequest) (*shared.AuctionEndResult, error) {
	client.logger.Info().
		Str("auction_id", req.AuctionID.String()).
		Str("bidder", req.Bidder.Hex()).
		Msg("Attempting to place bid")

	won, err := client.exec.mutate(ctx, req.AuctionID, func(ctx context.Context, repos outbound.Repositories, a *auction.Auction, now time.Time) ([]auction.Event, error) {
		if err := a.CheckBid(req.Bidder, now); err != nil {
			return nil, err
		}

		has, err := repos.Deposits.HasDeposit(ctx, a.ID, req.Bidder)
		if err != nil {
			return nil, err
		}
		if !has {
			return nil, shared.ErrNoDeposit
		}

		price := a.CurrentPrice
		balance, err := repos.Tokens.BalanceOf(ctx, a.DepositToken, req.Bidder)
		if err != nil {
			return nil, err
		}
		if balance.LessThan(price) {
			client.logger.Debug().
				Str("auction_id", a.ID.String()).
				Str("balance", balance.String()).
				Str("price", price.String()).
				Msg("Bidder cannot cover current price")
			return nil, shared.ErrInsufficientBalance
		}

		if err := repos.Tokens.Transfer(ctx, a.DepositToken, req.Bidder, a.Seller, price); err != nil {
			return nil, err
		}

		ev, err := a.AcceptBid(req.Bidder, now)
		if err != nil {
			return nil, err
		}
		return []auction.Event{ev}, nil
	})
	if err != nil {
		client.logger.Warn().Err(err).
			Str("auction_id", req.AuctionID.String()).
			Str("bidder", req.Bidder.Hex()).
			Str("reason", shared.CodeOf(err)).
			Msg("Bid rejected")
		return nil, err
	}

	result := won.EndResult()
	client.logger.Info().
		Str("auction_id", won.ID.String()).
		Str("winner", result.Winner.Hex()).
		Str("final_price", result.FinalPrice.String()).
		Msg("Auction won")
	return &result, nil
}
