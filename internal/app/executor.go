package app

import (
	"context"
	"time"

	"dutch-auction-service/internal/domain/access"
	"dutch-auction-service/internal/domain/auction"
	"dutch-auction-service/internal/ports/outbound"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Clock returns the current time. Services read it once per call.
type Clock func() time.Time

// transition mutates a locked auction inside a unit of work and returns the
// events it emitted. Returning no events means nothing changed.
type transition func(ctx context.Context, repos outbound.Repositories, a *auction.Auction, now time.Time) ([]auction.Event, error)

// Executor runs every state-mutating call: it serializes calls per auction,
// applies the transition atomically with its audit events, then publishes
// the events and syncs the upkeep queue once the unit of work committed.
type Executor struct {
	uow       outbound.UnitOfWork
	queue     outbound.UpkeepQueue
	publisher outbound.Publisher
	locks     *keyedMutex
	now       Clock
	logger    zerolog.Logger
}

type ExecutorParams struct {
	UnitOfWork outbound.UnitOfWork
	Queue      outbound.UpkeepQueue
	Publisher  outbound.Publisher
	Clock      Clock
	Logger     zerolog.Logger
}

// NewExecutor creates the shared executor. Queue and Publisher are optional.
func NewExecutor(params ExecutorParams) *Executor {
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Executor{
		uow:       params.UnitOfWork,
		queue:     params.Queue,
		publisher: params.Publisher,
		locks:     newKeyedMutex(),
		now:       clock,
		logger:    params.Logger.With().Str("component", "executor").Logger(),
	}
}

// Now returns the executor clock reading.
func (e *Executor) Now() time.Time {
	return e.now()
}

func (e *Executor) mutate(ctx context.Context, id uuid.UUID, fn transition) (*auction.Auction, error) {
	unlock := e.locks.Lock(id)
	defer unlock()

	now := e.now()
	var (
		updated *auction.Auction
		events  []auction.Event
	)

	err := e.uow.Within(ctx, func(ctx context.Context, repos outbound.Repositories) error {
		a, err := repos.Auctions.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}

		evs, err := fn(ctx, repos, a, now)
		if err != nil {
			return err
		}
		updated = a
		if len(evs) == 0 {
			return nil
		}

		if err := repos.Auctions.Update(ctx, a); err != nil {
			return err
		}
		for _, ev := range evs {
			if err := repos.Events.Append(ctx, ev); err != nil {
				return err
			}
		}
		events = evs
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.afterCommit(ctx, updated, events)
	return updated, nil
}

func (e *Executor) afterCommit(ctx context.Context, a *auction.Auction, events []auction.Event) {
	for _, ev := range events {
		switch ev.Type {
		case auction.EventAuctionStarted:
			e.enqueue(ctx, a)
		case auction.EventAuctionEnded:
			e.dequeue(ctx, a.ID)
		}
		e.publish(ctx, ev)
	}
}

func (e *Executor) enqueue(ctx context.Context, a *auction.Auction) {
	if e.queue == nil {
		return
	}
	if err := e.queue.Enqueue(ctx, a.ID, a.EndTime); err != nil {
		// the scheduler can still be pointed at the auction explicitly
		e.logger.Error().Err(err).Str("auction_id", a.ID.String()).Msg("Failed to enqueue auction for upkeep")
		return
	}
	e.logger.Debug().Str("auction_id", a.ID.String()).Time("end_time", a.EndTime).Msg("Auction enqueued for upkeep")
}

func (e *Executor) dequeue(ctx context.Context, id uuid.UUID) {
	if e.queue == nil {
		return
	}
	if err := e.queue.Remove(ctx, id); err != nil {
		e.logger.Error().Err(err).Str("auction_id", id.String()).Msg("Failed to remove auction from upkeep queue")
	}
}

func (e *Executor) publish(ctx context.Context, ev auction.Event) {
	if e.publisher == nil {
		return
	}
	if err := e.publisher.Publish(ctx, ev.AuctionID, outbound.EventFromDomain(ev)); err != nil {
		// the audit log already holds the event
		e.logger.Error().Err(err).
			Str("auction_id", ev.AuctionID.String()).
			Str("event_type", string(ev.Type)).
			Msg("Failed to broadcast event")
	}
}

// can answers a capability check against the admin set visible to repos.
func can(ctx context.Context, repos outbound.Repositories, who common.Address, capability access.Capability) (bool, error) {
	var lookupErr error
	policy := access.NewPolicy(func(addr common.Address) bool {
		ok, err := repos.Admins.IsAdmin(ctx, addr)
		if err != nil {
			lookupErr = err
		}
		return ok
	})
	allowed := policy.Can(who, capability)
	return allowed, lookupErr
}
