package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"dutch-auction-service/internal/adapters/memory"
	"dutch-auction-service/internal/domain/auction"
	"dutch-auction-service/internal/domain/shared"
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
	p1     = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	p2     = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	token  = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	t0     = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) At(seconds int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t0.Add(time.Duration(seconds) * time.Second)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []outbound.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, auctionID uuid.UUID, event outbound.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) types() []auction.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []auction.EventType
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

type harness struct {
	ctx   context.Context
	svc   *Services
	store *memory.Store
	queue *memory.Queue
	clock *fakeClock
	pub   *recordingPublisher
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		ctx:   context.Background(),
		store: memory.NewStore(),
		queue: memory.NewQueue(),
		clock: &fakeClock{now: t0.Add(-time.Minute)},
		pub:   &recordingPublisher{},
	}
	h.svc = h.services(h.store)

	assert.NoError(t, h.svc.Admins.Seed(h.ctx, []common.Address{admin}))
	for _, who := range []common.Address{seller, p1, p2} {
		h.fund(t, who, 1000)
	}
	return h
}

func (h *harness) services(uow outbound.UnitOfWork) *Services {
	return NewServices(ServicesParams{
		UnitOfWork: uow,
		Queue:      h.queue,
		Publisher:  h.pub,
		Clock:      h.clock.Now,
		Logger:     zerolog.Nop(),
	})
}

func (h *harness) fund(t *testing.T, who common.Address, amount int64) {
	t.Helper()
	assert.NoError(t, h.svc.Collateral.Fund(h.ctx, inbound.FundRequest{Token: token, Owner: who, Amount: decimal.NewFromInt(amount)}))
}

func (h *harness) balance(t *testing.T, who common.Address) string {
	t.Helper()
	bal, err := h.svc.Collateral.BalanceOf(h.ctx, token, who)
	assert.NoError(t, err)
	return bal.String()
}

// create registers scenario A parameters: 1000 -> 200, -100 every 60s, 600s.
func (h *harness) create(t *testing.T) uuid.UUID {
	t.Helper()
	a, err := h.svc.Auctions.CreateAuction(h.ctx, inbound.CreateAuctionRequest{
		Seller:            seller,
		StartPrice:        decimal.NewFromInt(1000),
		EndPrice:          decimal.NewFromInt(200),
		PriceDecrement:    decimal.NewFromInt(100),
		DecrementInterval: 60 * time.Second,
		Duration:          600 * time.Second,
		DepositToken:      token,
		DepositAmount:     decimal.NewFromInt(50),
	})
	assert.NoError(t, err)
	return a.ID
}

func (h *harness) start(t *testing.T, id uuid.UUID) {
	t.Helper()
	h.clock.At(0)
	_, err := h.svc.Auctions.StartAuction(h.ctx, inbound.StartAuctionRequest{AuctionID: id, Caller: admin})
	assert.NoError(t, err)
}

func (h *harness) deposit(id uuid.UUID, who common.Address) error {
	return h.svc.Collateral.PayDeposit(h.ctx, inbound.DepositRequest{AuctionID: id, Participant: who})
}

func (h *harness) refund(id uuid.UUID, who common.Address) error {
	return h.svc.Collateral.ClaimRefund(h.ctx, inbound.DepositRequest{AuctionID: id, Participant: who})
}

func (h *harness) bid(id uuid.UUID, who common.Address) (*shared.AuctionEndResult, error) {
	return h.svc.Bids.PlaceBid(h.ctx, inbound.PlaceBidRequest{AuctionID: id, Bidder: who})
}

func (h *harness) get(t *testing.T, id uuid.UUID) *inbound.AuctionView {
	t.Helper()
	view, err := h.svc.Auctions.GetAuction(h.ctx, id)
	assert.NoError(t, err)
	return view
}

func TestScenarioAUpkeepDecay(t *testing.T) {
	h := newHarness(t)
	id := h.create(t)
	h.start(t, id)

	h.clock.At(60)
	res, err := h.svc.Upkeep.PerformUpkeep(h.ctx, id)
	assert.NoError(t, err)
	check.True(t, res.Performed)
	check.Equal(t, shared.UpkeepTick, res.Action)
	check.Equal(t, "900", res.PriceAfter.String())

	h.clock.At(119)
	chk, err := h.svc.Upkeep.CheckUpkeep(h.ctx, id)
	assert.NoError(t, err)
	check.False(t, chk.Needed)
	res, err = h.svc.Upkeep.PerformUpkeep(h.ctx, id)
	assert.NoError(t, err)
	check.False(t, res.Performed)
	check.Equal(t, "900", h.get(t, id).CurrentPrice.String())

	h.clock.At(120)
	chk, err = h.svc.Upkeep.CheckUpkeep(h.ctx, id)
	assert.NoError(t, err)
	check.True(t, chk.Needed)
	check.Equal(t, "800", chk.ScheduledPrice.String())
	_, err = h.svc.Upkeep.PerformUpkeep(h.ctx, id)
	assert.NoError(t, err)
	check.Equal(t, "800", h.get(t, id).CurrentPrice.String())
}

func TestScenarioBExpiryWithoutBids(t *testing.T) {
	h := newHarness(t)
	id := h.create(t)
	h.start(t, id)

	queued, err := h.queue.Active(h.ctx, 0, 10)
	assert.NoError(t, err)
	check.Equal(t, []uuid.UUID{id}, queued)

	h.clock.At(600)
	chk, err := h.svc.Upkeep.CheckUpkeep(h.ctx, id)
	assert.NoError(t, err)
	check.Equal(t, shared.UpkeepForceEnd, chk.Action)

	res, err := h.svc.Upkeep.PerformUpkeep(h.ctx, id)
	assert.NoError(t, err)
	check.True(t, res.Performed)
	check.True(t, res.Ended)
	check.Equal(t, shared.UpkeepForceEnd, res.Action)

	view := h.get(t, id)
	check.Equal(t, auction.StatusEnded, view.Status)
	check.Equal(t, common.Address{}, view.Winner)
	check.True(t, view.FinalPrice.IsZero())

	queued, err = h.queue.Active(h.ctx, 0, 10)
	assert.NoError(t, err)
	check.Equal(t, 0, len(queued))

	// further upkeep stays silent
	h.clock.At(900)
	res, err = h.svc.Upkeep.PerformUpkeep(h.ctx, id)
	assert.NoError(t, err)
	check.False(t, res.Performed)
}

func TestScenarioCFirstBidWins(t *testing.T) {
	h := newHarness(t)
	id := h.create(t)
	assert.NoError(t, h.deposit(id, p1))
	assert.NoError(t, h.deposit(id, p2))
	h.start(t, id)

	h.clock.At(180)
	_, err := h.svc.Upkeep.PerformUpkeep(h.ctx, id)
	assert.NoError(t, err)

	h.clock.At(200)
	result, err := h.bid(id, p1)
	assert.NoError(t, err)
	check.Equal(t, p1, result.Winner)
	check.Equal(t, "700", result.FinalPrice.String())
	check.True(t, result.HasWinner())

	check.Equal(t, "1700", h.balance(t, seller))
	check.Equal(t, "250", h.balance(t, p1))

	_, err = h.bid(id, p2)
	check.True(t, errors.Is(err, shared.ErrAuctionExpired))
	check.Equal(t, shared.KindState, shared.KindOf(err))
	check.Equal(t, "950", h.balance(t, p2))
	check.Equal(t, "1700", h.balance(t, seller))
}

func TestScenarioDSellerCannotRefund(t *testing.T) {
	h := newHarness(t)
	id := h.create(t)
	assert.NoError(t, h.deposit(id, seller))
	h.start(t, id)

	h.clock.At(600)
	_, err := h.svc.Upkeep.PerformUpkeep(h.ctx, id)
	assert.NoError(t, err)

	err = h.refund(id, seller)
	check.True(t, errors.Is(err, shared.ErrSellerIneligible))
	check.Equal(t, "950", h.balance(t, seller))

	has, err := h.svc.Collateral.HasDeposit(h.ctx, id, seller)
	assert.NoError(t, err)
	check.True(t, has)
}

func TestDepositIsRejectedTwice(t *testing.T) {
	h := newHarness(t)
	id := h.create(t)

	assert.NoError(t, h.deposit(id, p1))
	err := h.deposit(id, p1)
	check.True(t, errors.Is(err, shared.ErrAlreadyDeposited))
	check.Equal(t, "950", h.balance(t, p1))

	view := h.get(t, id)
	check.Equal(t, "50", h.balance(t, view.EscrowAddress))
}

func TestDepositTransferFailure(t *testing.T) {
	h := newHarness(t)
	id := h.create(t)
	broke := common.HexToAddress("0x00000000000000000000000000000000000000ee")

	err := h.deposit(id, broke)
	check.True(t, errors.Is(err, shared.ErrTransferFailed))
	check.Equal(t, shared.KindTransfer, shared.KindOf(err))

	has, err := h.svc.Collateral.HasDeposit(h.ctx, id, broke)
	assert.NoError(t, err)
	check.False(t, has)
}

func TestFundRejectsAmountsBelowStorageScale(t *testing.T) {
	h := newHarness(t)
	who := common.HexToAddress("0x00000000000000000000000000000000000000ef")

	err := h.svc.Collateral.Fund(h.ctx, inbound.FundRequest{Token: token, Owner: who, Amount: decimal.RequireFromString("1.0000000000000000001")})
	check.True(t, errors.Is(err, shared.ErrInvalidPrecision))

	bal, err := h.svc.Collateral.BalanceOf(h.ctx, token, who)
	assert.NoError(t, err)
	check.True(t, bal.IsZero())
}

func TestRefundOncePerParticipant(t *testing.T) {
	h := newHarness(t)
	id := h.create(t)
	assert.NoError(t, h.deposit(id, p1))
	h.start(t, id)

	err := h.refund(id, p1)
	check.True(t, errors.Is(err, shared.ErrAuctionNotEnded))

	h.clock.At(600)
	_, err = h.svc.Upkeep.PerformUpkeep(h.ctx, id)
	assert.NoError(t, err)

	assert.NoError(t, h.refund(id, p1))
	check.Equal(t, "1000", h.balance(t, p1))

	err = h.refund(id, p1)
	check.True(t, errors.Is(err, shared.ErrNoDeposit))
	check.Equal(t, "1000", h.balance(t, p1))

	err = h.refund(id, p2)
	check.True(t, errors.Is(err, shared.ErrNoDeposit))
}

func TestDepositRejectedAfterEnd(t *testing.T) {
	h := newHarness(t)
	id := h.create(t)
	h.start(t, id)
	h.clock.At(600)
	_, err := h.svc.Upkeep.PerformUpkeep(h.ctx, id)
	assert.NoError(t, err)

	err = h.deposit(id, p1)
	check.True(t, errors.Is(err, shared.ErrAuctionEnded))
	check.Equal(t, "1000", h.balance(t, p1))
}

// failingLedger refuses transfers out of one account
type failingLedger struct {
	outbound.TokenLedger
	from common.Address
}

func (l failingLedger) Transfer(ctx context.Context, token, from, to common.Address, amount decimal.Decimal) error {
	if from == l.from {
		return shared.ErrTransferFailed
	}
	return l.TokenLedger.Transfer(ctx, token, from, to, amount)
}

type failingUnitOfWork struct {
	*memory.Store
	from common.Address
}

func (u failingUnitOfWork) Within(ctx context.Context, fn func(ctx context.Context, repos outbound.Repositories) error) error {
	return u.Store.Within(ctx, func(ctx context.Context, repos outbound.Repositories) error {
		repos.Tokens = failingLedger{TokenLedger: repos.Tokens, from: u.from}
		return fn(ctx, repos)
	})
}

func TestRefundRollsBackWhenTransferFails(t *testing.T) {
	h := newHarness(t)
	id := h.create(t)
	assert.NoError(t, h.deposit(id, p1))
	h.start(t, id)
	h.clock.At(600)
	_, err := h.svc.Upkeep.PerformUpkeep(h.ctx, id)
	assert.NoError(t, err)

	escrow := auction.EscrowAddress(id)
	broken := h.services(failingUnitOfWork{Store: h.store, from: escrow})

	err = broken.Collateral.ClaimRefund(h.ctx, inbound.DepositRequest{AuctionID: id, Participant: p1})
	check.True(t, errors.Is(err, shared.ErrTransferFailed))

	has, err := h.svc.Collateral.HasDeposit(h.ctx, id, p1)
	assert.NoError(t, err)
	check.True(t, has)
	check.Equal(t, "50", h.balance(t, escrow))

	assert.NoError(t, h.refund(id, p1))
	check.Equal(t, "1000", h.balance(t, p1))
}

func TestStartRequiresCapability(t *testing.T) {
	h := newHarness(t)
	id := h.create(t)

	_, err := h.svc.Auctions.StartAuction(h.ctx, inbound.StartAuctionRequest{AuctionID: id, Caller: seller})
	check.True(t, errors.Is(err, shared.ErrUnauthorized))
	check.Equal(t, auction.StatusCreated, h.get(t, id).Status)

	h.start(t, id)
	check.Equal(t, auction.StatusStarted, h.get(t, id).Status)
	check.Equal(t, t0.Add(600*time.Second), h.get(t, id).EndTime)

	_, err = h.svc.Auctions.StartAuction(h.ctx, inbound.StartAuctionRequest{AuctionID: id, Caller: admin})
	check.True(t, errors.Is(err, shared.ErrAlreadyStarted))
}

func TestBidPreconditions(t *testing.T) {
	h := newHarness(t)
	id := h.create(t)
	poor := common.HexToAddress("0x00000000000000000000000000000000000000dd")
	h.fund(t, poor, 50)
	assert.NoError(t, h.deposit(id, poor))

	_, err := h.bid(id, p1)
	check.True(t, errors.Is(err, shared.ErrNotStarted))

	h.start(t, id)
	_, err = h.bid(id, p1)
	check.True(t, errors.Is(err, shared.ErrNoDeposit))

	_, err = h.bid(id, poor)
	check.True(t, errors.Is(err, shared.ErrInsufficientBalance))
	check.Equal(t, shared.KindCollateral, shared.KindOf(err))
	check.False(t, h.get(t, id).Ended)
}

func TestUpkeepIsSilentWhenNotDue(t *testing.T) {
	h := newHarness(t)
	id := h.create(t)

	res, err := h.svc.Upkeep.PerformUpkeep(h.ctx, id)
	assert.NoError(t, err)
	check.False(t, res.Performed)

	h.start(t, id)
	h.clock.At(30)
	res, err = h.svc.Upkeep.PerformUpkeep(h.ctx, id)
	assert.NoError(t, err)
	check.False(t, res.Performed)
	check.Equal(t, "1000", res.PriceAfter.String())

	events, err := h.svc.Auctions.ListEvents(h.ctx, id)
	assert.NoError(t, err)
	check.Equal(t, 2, len(events))
}

func TestConcurrentBidsHaveOneWinner(t *testing.T) {
	h := newHarness(t)
	id := h.create(t)

	var bidders []common.Address
	for i := 0; i < 8; i++ {
		who := common.BigToAddress(decimal.NewFromInt(int64(0x100 + i)).BigInt())
		h.fund(t, who, 2000)
		assert.NoError(t, h.deposit(id, who))
		bidders = append(bidders, who)
	}
	h.start(t, id)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		wins    int
		expired int
	)
	for _, who := range bidders {
		wg.Add(1)
		go func(who common.Address) {
			defer wg.Done()
			_, err := h.bid(id, who)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, shared.ErrAuctionExpired):
				expired++
			}
		}(who)
	}
	wg.Wait()

	check.Equal(t, 1, wins)
	check.Equal(t, len(bidders)-1, expired)
	check.Equal(t, "2000", h.balance(t, seller))
}

func TestEventsArePublishedAfterCommit(t *testing.T) {
	h := newHarness(t)
	id := h.create(t)

	_, err := h.svc.Auctions.StartAuction(h.ctx, inbound.StartAuctionRequest{AuctionID: id, Caller: p1})
	check.Error(t, err)
	check.Equal(t, []auction.EventType{auction.EventAuctionCreated}, h.pub.types())

	assert.NoError(t, h.deposit(id, p1))
	h.start(t, id)
	check.Equal(t, []auction.EventType{
		auction.EventAuctionCreated,
		auction.EventDepositPaid,
		auction.EventAuctionStarted,
	}, h.pub.types())

	events, err := h.svc.Auctions.ListEvents(h.ctx, id)
	assert.NoError(t, err)
	check.Equal(t, 3, len(events))
	check.Equal(t, p1.Hex(), events[1].Data["participant"].(string))
}

func TestAdminMembership(t *testing.T) {
	h := newHarness(t)

	err := h.svc.Admins.GrantAdmin(h.ctx, p1, p2)
	check.True(t, errors.Is(err, shared.ErrUnauthorized))

	assert.NoError(t, h.svc.Admins.GrantAdmin(h.ctx, admin, p1))
	ok, err := h.svc.Admins.IsAdmin(h.ctx, p1)
	assert.NoError(t, err)
	check.True(t, ok)

	assert.NoError(t, h.svc.Admins.RevokeAdmin(h.ctx, p1, admin))
	admins, err := h.svc.Admins.ListAdmins(h.ctx)
	assert.NoError(t, err)
	check.Equal(t, []common.Address{p1}, admins)

	id := h.create(t)
	_, err = h.svc.Auctions.StartAuction(h.ctx, inbound.StartAuctionRequest{AuctionID: id, Caller: admin})
	check.True(t, errors.Is(err, shared.ErrUnauthorized))
}

func TestListAuctionsFiltersByStatus(t *testing.T) {
	h := newHarness(t)
	first := h.create(t)
	second := h.create(t)
	h.start(t, second)

	all, err := h.svc.Auctions.ListAuctions(h.ctx, inbound.ListAuctionsRequest{})
	assert.NoError(t, err)
	check.Equal(t, 2, len(all))
	check.Equal(t, first, all[0].ID)

	started := auction.StatusStarted
	only, err := h.svc.Auctions.ListAuctions(h.ctx, inbound.ListAuctionsRequest{Status: &started})
	assert.NoError(t, err)
	check.Equal(t, 1, len(only))
	check.Equal(t, second, only[0].ID)
	check.Equal(t, int64(600), only[0].DurationSeconds)
}

func TestGetUnknownAuction(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.Auctions.GetAuction(h.ctx, uuid.New())
	check.True(t, errors.Is(err, shared.ErrAuctionNotFound))
	check.Equal(t, shared.KindNotFound, shared.KindOf(err))
}
