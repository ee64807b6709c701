package app

import (
	"dutch-auction-service/internal/ports/outbound"

	"github.com/rs/zerolog"
)

// Services bundles the use cases sharing one executor.
type Services struct {
	Auctions   *AuctionService
	Bids       *BidService
	Collateral *CollateralService
	Upkeep     *UpkeepService
	Admins     *AdminService
}

type ServicesParams struct {
	UnitOfWork outbound.UnitOfWork
	Queue      outbound.UpkeepQueue
	Publisher  outbound.Publisher
	Clock      Clock
	Logger     zerolog.Logger
}

// NewServices wires every use case over the same unit of work and lock set
func NewServices(params ServicesParams) *Services {
	exec := NewExecutor(ExecutorParams{
		UnitOfWork: params.UnitOfWork,
		Queue:      params.Queue,
		Publisher:  params.Publisher,
		Clock:      params.Clock,
		Logger:     params.Logger,
	})

	return &Services{
		Auctions:   NewAuctionService(AuctionServiceParams{Executor: exec, Logger: params.Logger}),
		Bids:       NewBidService(BidServiceParams{Executor: exec, Logger: params.Logger}),
		Collateral: NewCollateralService(CollateralServiceParams{Executor: exec, Logger: params.Logger}),
		Upkeep:     NewUpkeepService(UpkeepServiceParams{Executor: exec, Logger: params.Logger}),
		Admins:     NewAdminService(AdminServiceParams{UnitOfWork: params.UnitOfWork, Logger: params.Logger}),
	}
}
