package app

import (
	"context"
	"time"

	"dutch-auction-service/internal/domain/auction"
	"dutch-auction-service/internal/domain/shared"
	"dutch-auction-service/internal/ports/inbound"
	"dutch-auction-service/internal/ports/outbound"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// CollateralService implements deposit bookkeeping against the auction's
// escrow account
type CollateralService struct {
	exec   *Executor
	logger zerolog.Logger
}

type CollateralServiceParams struct {
	Executor *Executor
	Logger   zerolog.Logger
}

var _ inbound.CollateralService = (*CollateralService)(nil)

// NewCollateralService creates a new collateral service
func NewCollateralService(params CollateralServiceParams) *CollateralService {
	return &CollateralService{
		exec:   params.Executor,
		logger: params.Logger.With().Str("component", "collateral_service").Logger(),
	}
}

// PayDeposit escrows the deposit amount for a participant
func (s *CollateralService) PayDeposit(ctx context.Context, req inbound.DepositRequest) error {
	s.logger.Info().
		Str("auction_id", req.AuctionID.String()).
		Str("participant", req.Participant.Hex()).
		Msg("Attempting to pay deposit")

	_, err := s.exec.mutate(ctx, req.AuctionID, func(ctx context.Context, repos outbound.Repositories, a *auction.Auction, now time.Time) ([]auction.Event, error) {
		if auction.IsZeroAddress(req.Participant) {
			return nil, shared.ErrInvalidAddress
		}
		if a.Ended {
			return nil, shared.ErrAuctionEnded
		}

		has, err := repos.Deposits.HasDeposit(ctx, a.ID, req.Participant)
		if err != nil {
			return nil, err
		}
		if has {
			return nil, shared.ErrAlreadyDeposited
		}

		if err := repos.Tokens.Transfer(ctx, a.DepositToken, req.Participant, a.EscrowAddress(), a.DepositAmount); err != nil {
			return nil, err
		}
		if err := repos.Deposits.MarkPaid(ctx, a.ID, req.Participant, now); err != nil {
			return nil, err
		}
		return []auction.Event{auction.DepositPaidEvent(a.ID, req.Participant, a.DepositAmount, now)}, nil
	})
	if err != nil {
		s.logger.Warn().Err(err).
			Str("auction_id", req.AuctionID.String()).
			Str("participant", req.Participant.Hex()).
			Str("reason", shared.CodeOf(err)).
			Msg("Deposit rejected")
		return err
	}

	s.logger.Info().
		Str("auction_id", req.AuctionID.String()).
		Str("participant", req.Participant.Hex()).
		Msg("Deposit paid")
	return nil
}

// ClaimRefund returns the deposit of a participant once the auction ended.
// The flag is cleared before the funds leave escrow.
func (s *CollateralService) ClaimRefund(ctx context.Context, req inbound.DepositRequest) error {
	s.logger.Info().
		Str("auction_id", req.AuctionID.String()).
		Str("participant", req.Participant.Hex()).
		Msg("Attempting to claim refund")

	_, err := s.exec.mutate(ctx, req.AuctionID, func(ctx context.Context, repos outbound.Repositories, a *auction.Auction, now time.Time) ([]auction.Event, error) {
		if !a.Ended {
			return nil, shared.ErrAuctionNotEnded
		}
		if req.Participant == a.Seller {
			return nil, shared.ErrSellerIneligible
		}

		has, err := repos.Deposits.HasDeposit(ctx, a.ID, req.Participant)
		if err != nil {
			return nil, err
		}
		if !has {
			return nil, shared.ErrNoDeposit
		}

		if err := repos.Deposits.Clear(ctx, a.ID, req.Participant, now); err != nil {
			return nil, err
		}
		if err := repos.Tokens.Transfer(ctx, a.DepositToken, a.EscrowAddress(), req.Participant, a.DepositAmount); err != nil {
			return nil, err
		}
		return []auction.Event{auction.DepositRefundedEvent(a.ID, req.Participant, a.DepositAmount, now)}, nil
	})
	if err != nil {
		s.logger.Warn().Err(err).
			Str("auction_id", req.AuctionID.String()).
			Str("participant", req.Participant.Hex()).
			Str("reason", shared.CodeOf(err)).
			Msg("Refund rejected")
		return err
	}

	s.logger.Info().
		Str("auction_id", req.AuctionID.String()).
		Str("participant", req.Participant.Hex()).
		Msg("Deposit refunded")
	return nil
}

// HasDeposit reports whether a participant holds an active deposit
func (s *CollateralService) HasDeposit(ctx context.Context, auctionID uuid.UUID, participant common.Address) (bool, error) {
	return s.exec.uow.Repositories().Deposits.HasDeposit(ctx, auctionID, participant)
}

// Fund credits the deposit asset to an account
func (s *CollateralService) Fund(ctx context.Context, req inbound.FundRequest) error {
	if auction.IsZeroAddress(req.Token) || auction.IsZeroAddress(req.Owner) {
		return shared.ErrInvalidAddress
	}
	if !auction.FitsScale(req.Amount) {
		return shared.ErrInvalidPrecision
	}
	err := s.exec.uow.Within(ctx, func(ctx context.Context, repos outbound.Repositories) error {
		return repos.Tokens.Credit(ctx, req.Token, req.Owner, req.Amount)
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("owner", req.Owner.Hex()).Msg("Funding rejected")
		return err
	}

	s.logger.Info().
		Str("token", req.Token.Hex()).
		Str("owner", req.Owner.Hex()).
		Str("amount", req.Amount.String()).
		Msg("Account funded")
	return nil
}

// BalanceOf returns the balance of owner in token
func (s *CollateralService) BalanceOf(ctx context.Context, token, owner common.Address) (decimal.Decimal, error) {
	return s.exec.uow.Repositories().Tokens.BalanceOf(ctx, token, owner)
}
