package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"dutch-auction-service/internal/adapters/broadcaster"
	"dutch-auction-service/internal/adapters/memory"
	"dutch-auction-service/internal/app"
	"dutch-auction-service/internal/domain/shared"
	"dutch-auction-service/internal/ports/inbound"
)

var simulateScenario string

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Replay the reference scenarios against an in-memory store",
	// Simulations never touch configured backends.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSimulation(cmd.Context(), cmd.OutOrStdout(), simulateScenario)
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateScenario, "scenario", "all", "Scenario to run (a|b|c|d|all)")
}

var (
	simAdmin  = common.HexToAddress("0x00000000000000000000000000000000000000ad")
	simSeller = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	simP1     = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	simP2     = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	simToken  = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	simEpoch  = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
)

// simClock is moved by hand between steps
type simClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *simClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *simClock) at(seconds int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = simEpoch.Add(time.Duration(seconds) * time.Second)
}

type simulation struct {
	ctx   context.Context
	out   io.Writer
	clock *simClock
	svc   *app.Services
}

func newSimulation(ctx context.Context, out io.Writer) (*simulation, error) {
	clock := &simClock{now: simEpoch}
	svc := app.NewServices(app.ServicesParams{
		UnitOfWork: memory.NewStore(),
		Queue:      memory.NewQueue(),
		Publisher:  broadcaster.NewLocalBroadcaster(zerolog.Nop()),
		Clock:      clock.Now,
		Logger:     zerolog.Nop(),
	})
	if err := svc.Admins.Seed(ctx, []common.Address{simAdmin}); err != nil {
		return nil, err
	}
	for _, who := range []common.Address{simSeller, simP1, simP2} {
		if err := svc.Collateral.Fund(ctx, inbound.FundRequest{Token: simToken, Owner: who, Amount: decimal.NewFromInt(1000)}); err != nil {
			return nil, err
		}
	}
	return &simulation{ctx: ctx, out: out, clock: clock, svc: svc}, nil
}

func (s *simulation) logf(format string, args ...interface{}) {
	fmt.Fprintf(s.out, format+"\n", args...)
}

// begin creates an auction with the reference parameters and starts it at t=0
func (s *simulation) begin(depositors ...common.Address) (uuid.UUID, error) {
	s.clock.at(-60)
	a, err := s.svc.Auctions.CreateAuction(s.ctx, inbound.CreateAuctionRequest{
		Seller:            simSeller,
		StartPrice:        decimal.NewFromInt(1000),
		EndPrice:          decimal.NewFromInt(200),
		PriceDecrement:    decimal.NewFromInt(100),
		DecrementInterval: 60 * time.Second,
		Duration:          600 * time.Second,
		DepositToken:      simToken,
		DepositAmount:     decimal.NewFromInt(50),
	})
	if err != nil {
		return uuid.Nil, err
	}
	for _, who := range depositors {
		if err := s.svc.Collateral.PayDeposit(s.ctx, inbound.DepositRequest{AuctionID: a.ID, Participant: who}); err != nil {
			return uuid.Nil, err
		}
	}
	s.clock.at(0)
	if _, err := s.svc.Auctions.StartAuction(s.ctx, inbound.StartAuctionRequest{AuctionID: a.ID, Caller: simAdmin}); err != nil {
		return uuid.Nil, err
	}
	return a.ID, nil
}

func (s *simulation) upkeepAt(id uuid.UUID, seconds int) (*shared.UpkeepResult, error) {
	s.clock.at(seconds)
	res, err := s.svc.Upkeep.PerformUpkeep(s.ctx, id)
	if err != nil {
		return nil, err
	}
	s.logf("  t=%-4d upkeep action=%-9s performed=%-5t price=%s", seconds, res.Action, res.Performed, res.PriceAfter)
	return res, nil
}

func (s *simulation) scenarioA() error {
	s.logf("scenario A: price decay on interval boundaries")
	id, err := s.begin()
	if err != nil {
		return err
	}
	want := map[int]string{60: "900", 119: "900", 120: "800"}
	for _, t := range []int{60, 119, 120} {
		res, err := s.upkeepAt(id, t)
		if err != nil {
			return err
		}
		if res.PriceAfter.String() != want[t] {
			return fmt.Errorf("scenario A: price at t=%d is %s, expected %s", t, res.PriceAfter, want[t])
		}
	}
	return nil
}

func (s *simulation) scenarioB() error {
	s.logf("scenario B: expiry without bids")
	id, err := s.begin()
	if err != nil {
		return err
	}
	res, err := s.upkeepAt(id, 600)
	if err != nil {
		return err
	}
	view, err := s.svc.Auctions.GetAuction(s.ctx, id)
	if err != nil {
		return err
	}
	s.logf("  ended=%t winner=%s final_price=%s", view.Ended, view.Winner.Hex(), view.FinalPrice)
	if !res.Ended || view.Winner != (common.Address{}) || !view.FinalPrice.IsZero() {
		return errors.New("scenario B: auction should end with no winner and zero price")
	}
	return nil
}

func (s *simulation) scenarioC() error {
	s.logf("scenario C: first bid wins at the current price")
	id, err := s.begin(simP1, simP2)
	if err != nil {
		return err
	}
	if _, err := s.upkeepAt(id, 180); err != nil {
		return err
	}

	result, err := s.svc.Bids.PlaceBid(s.ctx, inbound.PlaceBidRequest{AuctionID: id, Bidder: simP1})
	if err != nil {
		return err
	}
	s.logf("  winner=%s final_price=%s", result.Winner.Hex(), result.FinalPrice)
	if result.Winner != simP1 || result.FinalPrice.String() != "700" {
		return errors.New("scenario C: P1 should win at 700")
	}

	_, err = s.svc.Bids.PlaceBid(s.ctx, inbound.PlaceBidRequest{AuctionID: id, Bidder: simP2})
	s.logf("  second bid rejected: %v", err)
	if !errors.Is(err, shared.ErrAuctionExpired) {
		return errors.New("scenario C: second bid should fail with an expired auction")
	}

	sellerBalance, err := s.svc.Collateral.BalanceOf(s.ctx, simToken, simSeller)
	if err != nil {
		return err
	}
	s.logf("  seller balance=%s", sellerBalance)
	return nil
}

func (s *simulation) scenarioD() error {
	s.logf("scenario D: seller cannot claim a refund")
	id, err := s.begin(simSeller)
	if err != nil {
		return err
	}
	if _, err := s.upkeepAt(id, 600); err != nil {
		return err
	}
	err = s.svc.Collateral.ClaimRefund(s.ctx, inbound.DepositRequest{AuctionID: id, Participant: simSeller})
	s.logf("  seller refund rejected: %v", err)
	if !errors.Is(err, shared.ErrSellerIneligible) {
		return errors.New("scenario D: seller refund should be ineligible")
	}
	return nil
}

func runSimulation(ctx context.Context, out io.Writer, scenario string) error {
	sim, err := newSimulation(ctx, out)
	if err != nil {
		return err
	}

	scenarios := map[string]func() error{
		"a": sim.scenarioA,
		"b": sim.scenarioB,
		"c": sim.scenarioC,
		"d": sim.scenarioD,
	}
	order := []string{"a", "b", "c", "d"}
	if scenario != "all" {
		if _, ok := scenarios[scenario]; !ok {
			return fmt.Errorf("unknown scenario %q", scenario)
		}
		order = []string{scenario}
	}

	for _, name := range order {
		if err := scenarios[name](); err != nil {
			return err
		}
	}
	fmt.Fprintln(out, "all scenarios passed")
	return nil
}
