package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"dutch-auction-service/internal/domain/auction"
	"dutch-auction-service/internal/domain/shared"
	"dutch-auction-service/internal/ports/outbound"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"github.com/shopspring/decimal"
)

var (
	token = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	alice = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob   = common.HexToAddress("0x00000000000000000000000000000000000000b1")
)

func newAuction(t *testing.T, now time.Time) *auction.Auction {
	t.Helper()
	a, err := auction.New(auction.Params{
		Seller:            alice,
		StartPrice:        decimal.NewFromInt(100),
		EndPrice:          decimal.NewFromInt(10),
		PriceDecrement:    decimal.NewFromInt(10),
		DecrementInterval: time.Minute,
		Duration:          time.Hour,
		DepositToken:      token,
		DepositAmount:     decimal.NewFromInt(5),
	}, now)
	assert.NoError(t, err)
	return a
}

func TestWithinCommits(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	a := newAuction(t, time.Now())

	err := store.Within(ctx, func(ctx context.Context, repos outbound.Repositories) error {
		if err := repos.Auctions.Create(ctx, a); err != nil {
			return err
		}
		if err := repos.Tokens.Credit(ctx, token, bob, decimal.NewFromInt(40)); err != nil {
			return err
		}
		return repos.Deposits.MarkPaid(ctx, a.ID, bob, time.Now())
	})
	assert.NoError(t, err)

	repos := store.Repositories()
	got, err := repos.Auctions.GetByID(ctx, a.ID)
	assert.NoError(t, err)
	check.Equal(t, a.ID, got.ID)

	has, err := repos.Deposits.HasDeposit(ctx, a.ID, bob)
	assert.NoError(t, err)
	check.True(t, has)

	bal, err := repos.Tokens.BalanceOf(ctx, token, bob)
	assert.NoError(t, err)
	check.Equal(t, "40", bal.String())
}

func TestWithinRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	a := newAuction(t, time.Now())
	assert.NoError(t, store.Repositories().Auctions.Create(ctx, a))
	assert.NoError(t, store.Repositories().Tokens.Credit(ctx, token, bob, decimal.NewFromInt(3)))

	escrow := a.EscrowAddress()
	err := store.Within(ctx, func(ctx context.Context, repos outbound.Repositories) error {
		if err := repos.Deposits.MarkPaid(ctx, a.ID, bob, time.Now()); err != nil {
			return err
		}
		return repos.Tokens.Transfer(ctx, token, bob, escrow, decimal.NewFromInt(5))
	})
	check.True(t, errors.Is(err, shared.ErrTransferFailed))

	has, err := store.Repositories().Deposits.HasDeposit(ctx, a.ID, bob)
	assert.NoError(t, err)
	check.False(t, has)

	bal, err := store.Repositories().Tokens.BalanceOf(ctx, token, bob)
	assert.NoError(t, err)
	check.Equal(t, "3", bal.String())
}

func TestReadsReturnCopies(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	a := newAuction(t, time.Now())
	assert.NoError(t, store.Repositories().Auctions.Create(ctx, a))

	got, err := store.Repositories().Auctions.GetByID(ctx, a.ID)
	assert.NoError(t, err)
	got.Ended = true

	again, err := store.Repositories().Auctions.GetByID(ctx, a.ID)
	assert.NoError(t, err)
	check.False(t, again.Ended)

	_, err = store.Repositories().Auctions.GetByID(ctx, uuid.New())
	check.True(t, errors.Is(err, shared.ErrAuctionNotFound))
}

func TestListKeepsCreationOrder(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	base := time.Now()

	var ids []uuid.UUID
	for i := 0; i < 5; i++ {
		a := newAuction(t, base.Add(time.Duration(i)*time.Second))
		ids = append(ids, a.ID)
		assert.NoError(t, store.Repositories().Auctions.Create(ctx, a))
	}

	page, err := store.Repositories().Auctions.List(ctx, nil, 2, 2)
	assert.NoError(t, err)
	check.Equal(t, 2, len(page))
	check.Equal(t, ids[2], page[0].ID)
	check.Equal(t, ids[3], page[1].ID)

	started := auction.StatusStarted
	none, err := store.Repositories().Auctions.List(ctx, &started, 1, 10)
	assert.NoError(t, err)
	check.Equal(t, 0, len(none))
}

func TestQueueOrdersByEndTime(t *testing.T) {
	ctx := context.Background()
	q := NewQueue()
	now := time.Now()
	late, early := uuid.New(), uuid.New()

	assert.NoError(t, q.Enqueue(ctx, late, now.Add(time.Hour)))
	assert.NoError(t, q.Enqueue(ctx, early, now.Add(time.Minute)))

	ids, err := q.Active(ctx, 0, 10)
	assert.NoError(t, err)
	check.Equal(t, []uuid.UUID{early, late}, ids)

	assert.NoError(t, q.Remove(ctx, early))
	ids, err = q.Active(ctx, 0, 1)
	assert.NoError(t, err)
	check.Equal(t, []uuid.UUID{late}, ids)
}

func TestChallengesRedeemOnceAndExpire(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	c := NewChallenges(func() time.Time { return now })

	assert.NoError(t, c.Put(ctx, "n1", alice, time.Minute))
	addr, ok, err := c.Take(ctx, "n1")
	assert.NoError(t, err)
	check.True(t, ok)
	check.Equal(t, alice, addr)

	_, ok, err = c.Take(ctx, "n1")
	assert.NoError(t, err)
	check.False(t, ok)

	assert.NoError(t, c.Put(ctx, "n2", bob, time.Minute))
	now = now.Add(time.Minute)
	_, ok, err = c.Take(ctx, "n2")
	assert.NoError(t, err)
	check.False(t, ok)
}
