package memory

import (
	"context"
	"sync"

	"dutch-auction-service/internal/domain/auction"
	"dutch-auction-service/internal/ports/outbound"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type depositKey struct {
	auctionID   uuid.UUID
	participant common.Address
}

type balanceKey struct {
	token common.Address
	owner common.Address
}

// state is one consistent snapshot of everything the store holds.
type state struct {
	auctions map[uuid.UUID]*auction.Auction
	order    []uuid.UUID
	deposits map[depositKey]bool
	balances map[balanceKey]decimal.Decimal
	events   map[uuid.UUID][]auction.Event
	admins   map[common.Address]bool
}

func newState() *state {
	return &state{
		auctions: make(map[uuid.UUID]*auction.Auction),
		deposits: make(map[depositKey]bool),
		balances: make(map[balanceKey]decimal.Decimal),
		events:   make(map[uuid.UUID][]auction.Event),
		admins:   make(map[common.Address]bool),
	}
}

func (s *state) clone() *state {
	c := newState()
	for id, a := range s.auctions {
		cp := *a
		c.auctions[id] = &cp
	}
	c.order = append(c.order, s.order...)
	for k, v := range s.deposits {
		c.deposits[k] = v
	}
	for k, v := range s.balances {
		c.balances[k] = v
	}
	for id, evs := range s.events {
		c.events[id] = append([]auction.Event(nil), evs...)
	}
	for k, v := range s.admins {
		c.admins[k] = v
	}
	return c
}

// Store is an in-process implementation of outbound.UnitOfWork. Each unit of
// work runs against a private copy that replaces the shared state on commit,
// so a failed unit of work leaves nothing behind.
type Store struct {
	txMu  sync.Mutex
	mu    sync.RWMutex
	state *state
}

var _ outbound.UnitOfWork = (*Store)(nil)

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{state: newState()}
}

// Within implements outbound.UnitOfWork.
func (s *Store) Within(ctx context.Context, fn func(ctx context.Context, repos outbound.Repositories) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	work := s.state.clone()
	s.mu.RUnlock()

	if err := fn(ctx, reposFor(txBinding(work))); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	s.state = work
	s.mu.Unlock()
	return nil
}

// Repositories implements outbound.UnitOfWork. Each call through the
// returned repositories is atomic on its own.
func (s *Store) Repositories() outbound.Repositories {
	return reposFor(binding{
		read: func(fn func(*state)) {
			s.mu.RLock()
			defer s.mu.RUnlock()
			fn(s.state)
		},
		write: func(fn func(*state)) {
			s.txMu.Lock()
			defer s.txMu.Unlock()
			s.mu.Lock()
			defer s.mu.Unlock()
			fn(s.state)
		},
	})
}

// binding decides how repository calls reach the state they operate on.
type binding struct {
	read  func(fn func(*state))
	write func(fn func(*state))
}

func txBinding(st *state) binding {
	direct := func(fn func(*state)) { fn(st) }
	return binding{read: direct, write: direct}
}

func reposFor(b binding) outbound.Repositories {
	return outbound.Repositories{
		Auctions: &auctionRepo{b: b},
		Deposits: &depositRepo{b: b},
		Tokens:   &tokenLedger{b: b},
		Events:   &eventRepo{b: b},
		Admins:   &adminRepo{b: b},
	}
}
