package app

import (
	"context"
	"time"

	"dutch-auction-service/internal/domain/access"
	"dutch-auction-service/internal/domain/auction"
	"dutch-auction-service/internal/domain/shared"
	"dutch-auction-service/internal/ports/inbound"
	"dutch-auction-service/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// AuctionService implements the registry and lifecycle use cases
type AuctionService struct {
	exec   *Executor
	logger zerolog.Logger
}

type AuctionServiceParams struct {
	Executor *Executor
	Logger   zerolog.Logger
}

var _ inbound.AuctionService = (*AuctionService)(nil)

// NewAuctionService creates a new auction service
func NewAuctionService(params AuctionServiceParams) *AuctionService {
	return &AuctionService{
		exec:   params.Executor,
		logger: params.Logger.With().Str("component", "auction_service").Logger(),
	}
}

// CreateAuction initializes and registers a new auction
func (service *AuctionService) CreateAuction(ctx context.Context, req inbound.CreateAuctionRequest) (*auction.Auction, error) {
	service.logger.Info().
		Str("seller", req.Seller.Hex()).
		Str("start_price", req.StartPrice.String()).
		Str("end_price", req.EndPrice.String()).
		Str("price_decrement", req.PriceDecrement.String()).
		Dur("decrement_interval", req.DecrementInterval).
		Dur("duration", req.Duration).
		Msg("Attempting to create auction")

	now := service.exec.Now()
	created, err := auction.New(auction.Params{
		Seller:            req.Seller,
		StartPrice:        req.StartPrice,
		EndPrice:          req.EndPrice,
		PriceDecrement:    req.PriceDecrement,
		DecrementInterval: req.DecrementInterval,
		Duration:          req.Duration,
		DepositToken:      req.DepositToken,
		DepositAmount:     req.DepositAmount,
	}, now)
	if err != nil {
		service.logger.Warn().Err(err).Str("seller", req.Seller.Hex()).Msg("Rejected auction parameters")
		return nil, err
	}

	ev := auction.CreatedEvent(created)
	err = service.exec.uow.Within(ctx, func(ctx context.Context, repos outbound.Repositories) error {
		if err := repos.Auctions.Create(ctx, created); err != nil {
			return err
		}
		return repos.Events.Append(ctx, ev)
	})
	if err != nil {
		service.logger.Error().Err(err).Str("auction_id", created.ID.String()).Msg("Failed to save auction")
		return nil, err
	}
	service.exec.publish(ctx, ev)

	service.logger.Info().
		Str("auction_id", created.ID.String()).
		Str("escrow", created.EscrowAddress().Hex()).
		Msg("Auction created successfully")
	return created, nil
}

// GetAuction retrieves an auction snapshot by ID
func (service *AuctionService) GetAuction(ctx context.Context, auctionID uuid.UUID) (*inbound.AuctionView, error) {
	service.logger.Debug().Str("auction_id", auctionID.String()).Msg("Retrieving auction")

	a, err := service.exec.uow.Repositories().Auctions.GetByID(ctx, auctionID)
	if err != nil {
		service.logger.Debug().Err(err).Str("auction_id", auctionID.String()).Msg("Failed to retrieve auction")
		return nil, err
	}
	return inbound.NewAuctionView(a, service.exec.Now()), nil
}

// ListAuctions retrieves auctions in creation order
func (service *AuctionService) ListAuctions(ctx context.Context, req inbound.ListAuctionsRequest) ([]*inbound.AuctionView, error) {
	if req.Page <= 0 {
		req.Page = 1
	}
	if req.PageSize <= 0 {
		req.PageSize = 10
	}

	auctions, err := service.exec.uow.Repositories().Auctions.List(ctx, req.Status, req.Page, req.PageSize)
	if err != nil {
		return nil, err
	}

	now := service.exec.Now()
	views := make([]*inbound.AuctionView, 0, len(auctions))
	for _, a := range auctions {
		views = append(views, inbound.NewAuctionView(a, now))
	}
	return views, nil
}

// StartAuction moves an auction from Created to Started. The caller must
// hold the start capability.
func (service *AuctionService) StartAuction(ctx context.Context, req inbound.StartAuctionRequest) (*auction.Auction, error) {
	service.logger.Info().
		Str("auction_id", req.AuctionID.String()).
		Str("caller", req.Caller.Hex()).
		Msg("Attempting to start auction")

	started, err := service.exec.mutate(ctx, req.AuctionID, func(ctx context.Context, repos outbound.Repositories, a *auction.Auction, now time.Time) ([]auction.Event, error) {
		allowed, err := can(ctx, repos, req.Caller, access.CanStart)
		if err != nil {
			return nil, err
		}
		if !allowed {
			return nil, shared.ErrUnauthorized
		}

		ev, err := a.Start(now)
		if err != nil {
			return nil, err
		}
		return []auction.Event{ev}, nil
	})
	if err != nil {
		service.logger.Warn().Err(err).
			Str("auction_id", req.AuctionID.String()).
			Str("caller", req.Caller.Hex()).
			Msg("Start rejected")
		return nil, err
	}

	service.logger.Info().
		Str("auction_id", started.ID.String()).
		Time("start_time", started.StartTime).
		Time("end_time", started.EndTime).
		Msg("Auction started")
	return started, nil
}

// ListEvents returns the audit log of an auction
func (service *AuctionService) ListEvents(ctx context.Context, auctionID uuid.UUID) ([]auction.Event, error) {
	repos := service.exec.uow.Repositories()
	if _, err := repos.Auctions.GetByID(ctx, auctionID); err != nil {
		return nil, err
	}
	return repos.Events.ListByAuction(ctx, auctionID)
}
