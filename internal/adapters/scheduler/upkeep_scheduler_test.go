package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"dutch-auction-service/internal/adapters/memory"
	"dutch-auction-service/internal/app"
	"dutch-auction-service/internal/ports/inbound"
	"dutch-auction-service/internal/ports/outbound"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

var (
	admin  = common.HexToAddress("0x00000000000000000000000000000000000000ad")
	seller = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	token  = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	t0     = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) At(seconds int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t0.Add(time.Duration(seconds) * time.Second)
}

type nopPublisher struct{}

func (nopPublisher) Publish(ctx context.Context, auctionID uuid.UUID, event outbound.Event) error {
	return nil
}

func setup(t *testing.T) (*app.Services, *memory.Queue, *clock, *UpkeepScheduler) {
	t.Helper()
	return setupWithBatch(t, 10)
}

func setupWithBatch(t *testing.T, batchSize int) (*app.Services, *memory.Queue, *clock, *UpkeepScheduler) {
	t.Helper()
	ctx := context.Background()
	c := &clock{now: t0}
	queue := memory.NewQueue()
	svc := app.NewServices(app.ServicesParams{
		UnitOfWork: memory.NewStore(),
		Queue:      queue,
		Publisher:  nopPublisher{},
		Clock:      c.Now,
		Logger:     zerolog.Nop(),
	})
	assert.NoError(t, svc.Admins.Seed(ctx, []common.Address{admin}))

	s := NewUpkeepScheduler(UpkeepSchedulerParams{
		Upkeep:    svc.Upkeep,
		Queue:     queue,
		Interval:  time.Hour,
		BatchSize: batchSize,
		Workers:   4,
		Logger:    zerolog.Nop(),
	})
	t.Cleanup(s.Stop)
	return svc, queue, c, s
}

func startAuction(t *testing.T, svc *app.Services) uuid.UUID {
	t.Helper()
	return startAuctionWith(t, svc, 1000, 600*time.Second)
}

func startAuctionWith(t *testing.T, svc *app.Services, startPrice int64, duration time.Duration) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	a, err := svc.Auctions.CreateAuction(ctx, inbound.CreateAuctionRequest{
		Seller:            seller,
		StartPrice:        decimal.NewFromInt(startPrice),
		EndPrice:          decimal.NewFromInt(200),
		PriceDecrement:    decimal.NewFromInt(100),
		DecrementInterval: 60 * time.Second,
		Duration:          duration,
		DepositToken:      token,
		DepositAmount:     decimal.NewFromInt(50),
	})
	assert.NoError(t, err)
	_, err = svc.Auctions.StartAuction(ctx, inbound.StartAuctionRequest{AuctionID: a.ID, Caller: admin})
	assert.NoError(t, err)
	return a.ID
}

func TestRunOnceTicksDueAuctions(t *testing.T) {
	svc, queue, c, s := setup(t)
	ctx := context.Background()
	first := startAuction(t, svc)
	second := startAuction(t, svc)

	c.At(30)
	check.Equal(t, 0, s.RunOnce(ctx))

	c.At(130)
	check.Equal(t, 2, s.RunOnce(ctx))
	for _, id := range []uuid.UUID{first, second} {
		view, err := svc.Auctions.GetAuction(ctx, id)
		assert.NoError(t, err)
		check.Equal(t, "800", view.CurrentPrice.String())
	}

	check.Equal(t, 0, s.RunOnce(ctx))

	active, err := queue.Active(ctx, 0, 10)
	assert.NoError(t, err)
	check.Equal(t, 2, len(active))
}

func TestRunOnceForceEndsAndDequeues(t *testing.T) {
	svc, queue, c, s := setup(t)
	ctx := context.Background()
	id := startAuction(t, svc)

	c.At(600)
	check.Equal(t, 1, s.RunOnce(ctx))

	view, err := svc.Auctions.GetAuction(ctx, id)
	assert.NoError(t, err)
	check.True(t, view.Ended)
	check.Equal(t, common.Address{}, view.Winner)

	active, err := queue.Active(ctx, 0, 10)
	assert.NoError(t, err)
	check.Equal(t, 0, len(active))
}

func TestRunOnceDropsUnknownAuctions(t *testing.T) {
	_, queue, _, s := setup(t)
	ctx := context.Background()

	assert.NoError(t, queue.Enqueue(ctx, uuid.New(), t0))
	check.Equal(t, 0, s.RunOnce(ctx))

	active, err := queue.Active(ctx, 0, 10)
	assert.NoError(t, err)
	check.Equal(t, 0, len(active))
}

func TestRunOnceWalksPastFirstBatch(t *testing.T) {
	svc, queue, c, s := setupWithBatch(t, 1)
	ctx := context.Background()
	// already at its floor and ends first, so it heads the queue
	floor := startAuctionWith(t, svc, 200, 100*time.Hour)
	decaying := startAuctionWith(t, svc, 1000, 200*time.Hour)

	active, err := queue.Active(ctx, 0, 1)
	assert.NoError(t, err)
	check.Equal(t, []uuid.UUID{floor}, active)

	c.At(600)
	check.Equal(t, 1, s.RunOnce(ctx))

	view, err := svc.Auctions.GetAuction(ctx, decaying)
	assert.NoError(t, err)
	check.Equal(t, "200", view.CurrentPrice.String())

	view, err = svc.Auctions.GetAuction(ctx, floor)
	assert.NoError(t, err)
	check.Equal(t, "200", view.CurrentPrice.String())
	check.False(t, view.Ended)
}

func TestRunOnceContinuesAfterDroppedEntries(t *testing.T) {
	svc, queue, c, s := setupWithBatch(t, 1)
	ctx := context.Background()
	ending := startAuctionWith(t, svc, 1000, 600*time.Second)
	decaying := startAuctionWith(t, svc, 1000, 200*time.Hour)
	assert.NoError(t, queue.Enqueue(ctx, uuid.New(), t0))

	c.At(600)
	check.Equal(t, 2, s.RunOnce(ctx))

	view, err := svc.Auctions.GetAuction(ctx, ending)
	assert.NoError(t, err)
	check.True(t, view.Ended)

	view, err = svc.Auctions.GetAuction(ctx, decaying)
	assert.NoError(t, err)
	check.Equal(t, "200", view.CurrentPrice.String())

	active, err := queue.Active(ctx, 0, 10)
	assert.NoError(t, err)
	check.Equal(t, []uuid.UUID{decaying}, active)
}
