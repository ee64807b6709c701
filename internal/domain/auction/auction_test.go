package auction

import (
	"errors"
	"testing"
	"time"

	"dutch-auction-service/internal/domain/shared"

	"github.com/ethereum/go-ethereum/common"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"github.com/shopspring/decimal"
)

var (
	seller = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bidder = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	token  = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	t0     = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
)

// scenarioParams: start 1000, end 200, decrement 100 every 60s, 600s long.
func scenarioParams() Params {
	return Params{
		Seller:            seller,
		StartPrice:        decimal.NewFromInt(1000),
		EndPrice:          decimal.NewFromInt(200),
		PriceDecrement:    decimal.NewFromInt(100),
		DecrementInterval: 60 * time.Second,
		Duration:          600 * time.Second,
		DepositToken:      token,
		DepositAmount:     decimal.NewFromInt(50),
	}
}

func startedAuction(t *testing.T) *Auction {
	t.Helper()
	a, err := New(scenarioParams(), t0.Add(-time.Hour))
	assert.NoError(t, err)
	_, err = a.Start(t0)
	assert.NoError(t, err)
	return a
}

func at(seconds int) time.Time {
	return t0.Add(time.Duration(seconds) * time.Second)
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *Params)
		want   error
	}{
		{name: "zero start price", mutate: func(p *Params) { p.StartPrice = decimal.Zero }, want: shared.ErrInvalidStartPrice},
		{name: "negative end price", mutate: func(p *Params) { p.EndPrice = decimal.NewFromInt(-1) }, want: shared.ErrInvalidEndPrice},
		{name: "end above start", mutate: func(p *Params) { p.EndPrice = decimal.NewFromInt(1001) }, want: shared.ErrInvalidPriceRange},
		{name: "zero decrement", mutate: func(p *Params) { p.PriceDecrement = decimal.Zero }, want: shared.ErrInvalidDecrement},
		{name: "zero interval", mutate: func(p *Params) { p.DecrementInterval = 0 }, want: shared.ErrInvalidInterval},
		{name: "negative duration", mutate: func(p *Params) { p.Duration = -time.Second }, want: shared.ErrInvalidDuration},
		{name: "negative deposit", mutate: func(p *Params) { p.DepositAmount = decimal.NewFromInt(-5) }, want: shared.ErrInvalidDepositAmount},
		{name: "zero seller", mutate: func(p *Params) { p.Seller = common.Address{} }, want: shared.ErrInvalidAddress},
		{name: "start price below storage scale", mutate: func(p *Params) { p.StartPrice = decimal.RequireFromString("1000.0000000000000000001") }, want: shared.ErrInvalidPrecision},
		{name: "deposit below storage scale", mutate: func(p *Params) { p.DepositAmount = decimal.RequireFromString("0.0000000000000000005") }, want: shared.ErrInvalidPrecision},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := scenarioParams()
			tt.mutate(&p)
			_, err := New(p, t0)
			check.True(t, errors.Is(err, tt.want))
			check.Equal(t, shared.KindValidation, shared.KindOf(err))
		})
	}
}

func TestFitsScale(t *testing.T) {
	check.True(t, FitsScale(decimal.RequireFromString("0.000000000000000001")))
	check.True(t, FitsScale(decimal.RequireFromString("1.5000000000000000000000")))
	check.False(t, FitsScale(decimal.RequireFromString("0.0000000000000000001")))
}

func TestNewInitialState(t *testing.T) {
	a, err := New(scenarioParams(), t0)
	assert.NoError(t, err)

	check.Equal(t, StatusCreated, a.Status())
	check.False(t, a.Started)
	check.False(t, a.Ended)
	check.Equal(t, "1000", a.CurrentPrice.String())
	check.Equal(t, t0.Add(600*time.Second), a.EndTime)
	check.NotEqual(t, common.Address{}, a.EscrowAddress())
}

func TestStartFixesEndTime(t *testing.T) {
	a, err := New(scenarioParams(), t0.Add(-time.Hour))
	assert.NoError(t, err)

	ev, err := a.Start(t0)
	assert.NoError(t, err)
	check.Equal(t, EventAuctionStarted, ev.Type)
	check.Equal(t, "1000", ev.Data["start_price"])
	check.Equal(t, "200", ev.Data["end_price"])
	check.Equal(t, t0, a.StartTime)
	check.Equal(t, at(600), a.EndTime)
	check.Equal(t, StatusStarted, a.Status())

	_, err = a.Start(at(10))
	check.True(t, errors.Is(err, shared.ErrAlreadyStarted))
	check.Equal(t, t0, a.StartTime)
}

func TestScenarioATickDecay(t *testing.T) {
	a := startedAuction(t)

	_, changed := a.Tick(at(60))
	check.True(t, changed)
	check.Equal(t, "900", a.CurrentPrice.String())

	// not a boundary: nothing owed yet
	_, changed = a.Tick(at(119))
	check.False(t, changed)
	check.Equal(t, "900", a.CurrentPrice.String())

	ev, changed := a.Tick(at(120))
	check.True(t, changed)
	check.Equal(t, "800", a.CurrentPrice.String())
	check.Equal(t, EventPriceDecayed, ev.Type)
	check.Equal(t, "900", ev.Data["price_before"])
}

func TestTickCatchesUpMissedBoundaries(t *testing.T) {
	a := startedAuction(t)

	_, changed := a.Tick(at(250))
	check.True(t, changed)
	check.Equal(t, "600", a.CurrentPrice.String())
	check.Equal(t, int64(4), a.DecrementsApplied)
	check.Equal(t, a.PriceAt(at(250)).String(), a.CurrentPrice.String())
}

func TestPriceNeverIncreasesOrDropsBelowFloor(t *testing.T) {
	a := startedAuction(t)

	prev := a.CurrentPrice
	for s := 0; s < 600; s += 7 {
		a.Tick(at(s))
		check.False(t, a.CurrentPrice.GreaterThan(prev))
		check.False(t, a.CurrentPrice.LessThan(a.EndPrice))
		prev = a.CurrentPrice
	}
	check.Equal(t, "200", a.CurrentPrice.String())
}

func TestPriceAt(t *testing.T) {
	a := startedAuction(t)

	check.Equal(t, "1000", a.PriceAt(at(0)).String())
	check.Equal(t, "1000", a.PriceAt(at(59)).String())
	check.Equal(t, "900", a.PriceAt(at(60)).String())
	check.Equal(t, "300", a.PriceAt(at(420)).String())
	check.Equal(t, "200", a.PriceAt(at(5000)).String())
}

func TestTickRequiresStart(t *testing.T) {
	a, err := New(scenarioParams(), t0)
	assert.NoError(t, err)

	_, changed := a.Tick(t0.Add(time.Hour))
	check.False(t, changed)
	check.Equal(t, shared.UpkeepNone, a.UpkeepAction(t0.Add(time.Hour)))
}

func TestScenarioBForceEnd(t *testing.T) {
	a := startedAuction(t)

	_, ended := a.ForceEndIfExpired(at(599))
	check.False(t, ended)
	check.Equal(t, shared.UpkeepForceEnd, a.UpkeepAction(at(600)))

	ev, ended := a.ForceEndIfExpired(at(600))
	check.True(t, ended)
	check.True(t, a.Ended)
	check.Equal(t, common.Address{}, a.Winner)
	check.True(t, a.FinalPrice.IsZero())
	check.Equal(t, EventAuctionEnded, ev.Type)
	check.False(t, a.EndResult().HasWinner())

	_, ended = a.ForceEndIfExpired(at(700))
	check.False(t, ended)
	check.Equal(t, shared.UpkeepNone, a.UpkeepAction(at(700)))
}

func TestAcceptBid(t *testing.T) {
	a := startedAuction(t)
	a.Tick(at(180))

	ev, err := a.AcceptBid(bidder, at(200))
	assert.NoError(t, err)
	check.Equal(t, EventAuctionEnded, ev.Type)
	check.Equal(t, bidder.Hex(), ev.Data["winner"].(string))
	check.Equal(t, "700", a.FinalPrice.String())
	check.Equal(t, StatusEnded, a.Status())

	_, err = a.AcceptBid(seller, at(201))
	check.True(t, errors.Is(err, shared.ErrAuctionExpired))
	check.Equal(t, bidder, a.Winner)

	_, changed := a.Tick(at(240))
	check.False(t, changed)
}

func TestCheckBidStates(t *testing.T) {
	a, err := New(scenarioParams(), t0)
	assert.NoError(t, err)
	check.True(t, errors.Is(a.CheckBid(bidder, t0), shared.ErrNotStarted))

	_, err = a.Start(t0)
	assert.NoError(t, err)
	check.True(t, errors.Is(a.CheckBid(common.Address{}, t0), shared.ErrInvalidAddress))
	check.NoError(t, a.CheckBid(bidder, at(599)))
	check.True(t, errors.Is(a.CheckBid(bidder, at(600)), shared.ErrAuctionExpired))
}

func TestEscrowAddressIsStable(t *testing.T) {
	a, err := New(scenarioParams(), t0)
	assert.NoError(t, err)
	b, err := New(scenarioParams(), t0)
	assert.NoError(t, err)

	check.Equal(t, EscrowAddress(a.ID), a.EscrowAddress())
	check.NotEqual(t, a.EscrowAddress(), b.EscrowAddress())
}
