package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"dutch-auction-service/internal/domain/shared"
	"dutch-auction-service/internal/ports/inbound"
	"dutch-auction-service/internal/ports/outbound"

	"github.com/alitto/pond"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// UpkeepScheduler is the off-chain keeper: it polls started auctions on a
// fixed cadence and performs whatever upkeep each one reports as due
type UpkeepScheduler struct {
	upkeep    inbound.UpkeepService
	queue     outbound.UpkeepQueue
	pool      *pond.WorkerPool
	interval  time.Duration
	batchSize int
	logger    zerolog.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

type UpkeepSchedulerParams struct {
	Upkeep    inbound.UpkeepService
	Queue     outbound.UpkeepQueue
	Interval  time.Duration
	BatchSize int
	Workers   int
	Logger    zerolog.Logger
}

func NewUpkeepScheduler(params UpkeepSchedulerParams) *UpkeepScheduler {
	ctx, cancel := context.WithCancel(context.Background())

	workers := params.Workers
	if workers <= 0 {
		workers = 1
	}
	interval := params.Interval
	if interval <= 0 {
		interval = time.Second
	}

	return &UpkeepScheduler{
		upkeep:    params.Upkeep,
		queue:     params.Queue,
		pool:      pond.New(workers, params.BatchSize, pond.Context(ctx)),
		interval:  interval,
		batchSize: params.BatchSize,
		logger:    params.Logger.With().Str("component", "upkeep_scheduler").Logger(),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start begins the polling loop
func (s *UpkeepScheduler) Start() {
	s.logger.Info().Dur("interval", s.interval).Int("batch_size", s.batchSize).Msg("Starting upkeep scheduler")

	s.wg.Add(1)
	go s.loop()
}

// Stop halts polling and waits for in-flight upkeep to finish
func (s *UpkeepScheduler) Stop() {
	s.logger.Info().Msg("Stopping upkeep scheduler")
	s.cancel()
	s.wg.Wait()
	s.pool.StopAndWait()
}

func (s *UpkeepScheduler) loop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.RunOnce(s.ctx)
		case <-s.ctx.Done():
			s.logger.Info().Msg("Scheduler loop stopped")
			return
		}
	}
}

// RunOnce walks the whole queue one batch at a time and waits for every
// check to finish. It returns the number of upkeeps performed.
func (s *UpkeepScheduler) RunOnce(ctx context.Context) int {
	var (
		performed int
		polled    int
		offset    int
	)
	for ctx.Err() == nil {
		ids, err := s.queue.Active(ctx, offset, s.batchSize)
		if err != nil {
			s.logger.Error().Err(err).Int("offset", offset).Msg("Failed to read upkeep queue")
			break
		}
		if len(ids) == 0 {
			break
		}

		done, dropped := s.runBatch(ctx, ids)
		performed += done
		polled += len(ids)

		if s.batchSize <= 0 || len(ids) < s.batchSize {
			break
		}
		// dropped auctions shift the rest of the queue forward
		offset += len(ids) - dropped
	}

	if performed > 0 {
		s.logger.Debug().Int("polled", polled).Int("performed", performed).Msg("Upkeep run finished")
	}
	return performed
}

func (s *UpkeepScheduler) runBatch(ctx context.Context, ids []uuid.UUID) (performed, dropped int) {
	var mu sync.Mutex
	group := s.pool.Group()
	for _, id := range ids {
		id := id
		group.Submit(func() {
			done, removed := s.service(ctx, id)
			mu.Lock()
			defer mu.Unlock()
			if done {
				performed++
			}
			if removed {
				dropped++
			}
		})
	}
	group.Wait()
	return performed, dropped
}

// service runs check-then-perform for one auction. It reports whether
// upkeep was performed and whether the auction left the queue.
func (s *UpkeepScheduler) service(ctx context.Context, auctionID uuid.UUID) (bool, bool) {
	check, err := s.upkeep.CheckUpkeep(ctx, auctionID)
	if err != nil {
		if errors.Is(err, shared.ErrAuctionNotFound) {
			return false, s.drop(ctx, auctionID)
		}
		s.logger.Error().Err(err).Str("auction_id", auctionID.String()).Msg("Check upkeep failed")
		return false, false
	}
	if !check.Needed {
		return false, false
	}

	result, err := s.upkeep.PerformUpkeep(ctx, auctionID)
	if err != nil {
		s.logger.Error().Err(err).Str("auction_id", auctionID.String()).Msg("Perform upkeep failed")
		return false, false
	}
	if result.Ended {
		return result.Performed, s.drop(ctx, auctionID)
	}
	return result.Performed, false
}

func (s *UpkeepScheduler) drop(ctx context.Context, auctionID uuid.UUID) bool {
	if err := s.queue.Remove(ctx, auctionID); err != nil {
		s.logger.Error().Err(err).Str("auction_id", auctionID.String()).Msg("Failed to remove auction from upkeep queue")
		return false
	}
	return true
}
