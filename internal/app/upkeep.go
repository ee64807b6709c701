package app

import (
	"context"
	"time"

	"dutch-auction-service/internal/domain/auction"
	"dutch-auction-service/internal/domain/shared"
	"dutch-auction-service/internal/ports/inbound"
	"dutch-auction-service/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// UpkeepService implements the poll/act protocol for the external scheduler
type UpkeepService struct {
	exec   *Executor
	logger zerolog.Logger
}

type UpkeepServiceParams struct {
	Executor *Executor
	Logger   zerolog.Logger
}

var _ inbound.UpkeepService = (*UpkeepService)(nil)

// NewUpkeepService creates a new upkeep service
func NewUpkeepService(params UpkeepServiceParams) *UpkeepService {
	return &UpkeepService{
		exec:   params.Executor,
		logger: params.Logger.With().Str("component", "upkeep_service").Logger(),
	}
}

// CheckUpkeep reports whether a tick or a forced end is due. It never writes.
func (s *UpkeepService) CheckUpkeep(ctx context.Context, auctionID uuid.UUID) (*shared.UpkeepCheck, error) {
	a, err := s.exec.uow.Repositories().Auctions.GetByID(ctx, auctionID)
	if err != nil {
		return nil, err
	}

	now := s.exec.Now()
	action := a.UpkeepAction(now)
	return &shared.UpkeepCheck{
		AuctionID:      a.ID,
		Needed:         action != shared.UpkeepNone,
		Action:         action,
		CurrentPrice:   a.CurrentPrice,
		ScheduledPrice: a.PriceAt(now),
	}, nil
}

// PerformUpkeep re-validates the upkeep condition under the auction lock and
// applies it. Calling it when nothing is due is a silent no-op.
func (s *UpkeepService) PerformUpkeep(ctx context.Context, auctionID uuid.UUID) (*shared.UpkeepResult, error) {
	result := &shared.UpkeepResult{AuctionID: auctionID, Action: shared.UpkeepNone}

	a, err := s.exec.mutate(ctx, auctionID, func(ctx context.Context, repos outbound.Repositories, a *auction.Auction, now time.Time) ([]auction.Event, error) {
		result.PriceBefore = a.CurrentPrice

		var (
			ev      auction.Event
			changed bool
		)
		switch a.UpkeepAction(now) {
		case shared.UpkeepTick:
			ev, changed = a.Tick(now)
		case shared.UpkeepForceEnd:
			ev, changed = a.ForceEndIfExpired(now)
		}
		if !changed {
			return nil, nil
		}
		result.Action = upkeepActionOf(ev)
		result.Performed = true
		return []auction.Event{ev}, nil
	})
	if err != nil {
		s.logger.Error().Err(err).Str("auction_id", auctionID.String()).Msg("Upkeep failed")
		return nil, err
	}

	result.PriceAfter = a.CurrentPrice
	result.Ended = a.Ended

	if result.Performed {
		s.logger.Info().
			Str("auction_id", auctionID.String()).
			Str("action", string(result.Action)).
			Str("price_before", result.PriceBefore.String()).
			Str("price_after", result.PriceAfter.String()).
			Msg("Upkeep performed")
	} else {
		s.logger.Debug().Str("auction_id", auctionID.String()).Msg("Upkeep not due")
	}
	return result, nil
}

func upkeepActionOf(ev auction.Event) shared.UpkeepAction {
	if ev.Type == auction.EventAuctionEnded {
		return shared.UpkeepForceEnd
	}
	return shared.UpkeepTick
}
