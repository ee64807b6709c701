package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"dutch-auction-service/internal/domain/auction"
	"dutch-auction-service/internal/domain/shared"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type auctionRepo struct{ b binding }

func (r *auctionRepo) Create(ctx context.Context, a *auction.Auction) error {
	var err error
	r.b.write(func(s *state) {
		if _, ok := s.auctions[a.ID]; ok {
			err = fmt.Errorf("failed to create auction: duplicate id %s", a.ID)
			return
		}
		cp := *a
		s.auctions[a.ID] = &cp
		s.order = append(s.order, a.ID)
	})
	return err
}

func (r *auctionRepo) GetByID(ctx context.Context, id uuid.UUID) (*auction.Auction, error) {
	var found *auction.Auction
	r.b.read(func(s *state) {
		if a, ok := s.auctions[id]; ok {
			cp := *a
			found = &cp
		}
	})
	if found == nil {
		return nil, shared.ErrAuctionNotFound
	}
	return found, nil
}

// GetForUpdate needs no row lock here: units of work are serialized.
func (r *auctionRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*auction.Auction, error) {
	return r.GetByID(ctx, id)
}

func (r *auctionRepo) List(ctx context.Context, status *auction.Status, page, pageSize int) ([]*auction.Auction, error) {
	var out []*auction.Auction
	r.b.read(func(s *state) {
		for _, id := range s.order {
			a := s.auctions[id]
			if status != nil && a.Status() != *status {
				continue
			}
			cp := *a
			out = append(out, &cp)
		}
	})
	return paginate(out, page, pageSize), nil
}

func paginate(items []*auction.Auction, page, pageSize int) []*auction.Auction {
	if pageSize <= 0 {
		return items
	}
	if page <= 0 {
		page = 1
	}
	start := (page - 1) * pageSize
	if start >= len(items) {
		return nil
	}
	end := start + pageSize
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

func (r *auctionRepo) Update(ctx context.Context, a *auction.Auction) error {
	var err error
	r.b.write(func(s *state) {
		if _, ok := s.auctions[a.ID]; !ok {
			err = shared.ErrAuctionNotFound
			return
		}
		cp := *a
		s.auctions[a.ID] = &cp
	})
	return err
}

type depositRepo struct{ b binding }

func (r *depositRepo) HasDeposit(ctx context.Context, auctionID uuid.UUID, participant common.Address) (bool, error) {
	var has bool
	r.b.read(func(s *state) {
		has = s.deposits[depositKey{auctionID, participant}]
	})
	return has, nil
}

func (r *depositRepo) MarkPaid(ctx context.Context, auctionID uuid.UUID, participant common.Address, at time.Time) error {
	r.b.write(func(s *state) {
		s.deposits[depositKey{auctionID, participant}] = true
	})
	return nil
}

func (r *depositRepo) Clear(ctx context.Context, auctionID uuid.UUID, participant common.Address, at time.Time) error {
	r.b.write(func(s *state) {
		s.deposits[depositKey{auctionID, participant}] = false
	})
	return nil
}

func (r *depositRepo) ListDepositors(ctx context.Context, auctionID uuid.UUID) ([]common.Address, error) {
	var out []common.Address
	r.b.read(func(s *state) {
		for k, active := range s.deposits {
			if active && k.auctionID == auctionID {
				out = append(out, k.participant)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Hex() < out[j].Hex() })
	return out, nil
}

type tokenLedger struct{ b binding }

func (l *tokenLedger) BalanceOf(ctx context.Context, token, owner common.Address) (decimal.Decimal, error) {
	var bal decimal.Decimal
	l.b.read(func(s *state) {
		bal = s.balances[balanceKey{token, owner}]
	})
	return bal, nil
}

func (l *tokenLedger) Transfer(ctx context.Context, token, from, to common.Address, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return shared.ErrInvalidAmount
	}
	if amount.IsZero() {
		return nil
	}
	var err error
	l.b.write(func(s *state) {
		src := s.balances[balanceKey{token, from}]
		if src.LessThan(amount) {
			err = fmt.Errorf("%w: %s holds %s, needs %s", shared.ErrTransferFailed, from.Hex(), src, amount)
			return
		}
		s.balances[balanceKey{token, from}] = src.Sub(amount)
		s.balances[balanceKey{token, to}] = s.balances[balanceKey{token, to}].Add(amount)
	})
	return err
}

func (l *tokenLedger) Credit(ctx context.Context, token, owner common.Address, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return shared.ErrInvalidAmount
	}
	l.b.write(func(s *state) {
		s.balances[balanceKey{token, owner}] = s.balances[balanceKey{token, owner}].Add(amount)
	})
	return nil
}

type eventRepo struct{ b binding }

func (r *eventRepo) Append(ctx context.Context, ev auction.Event) error {
	r.b.write(func(s *state) {
		s.events[ev.AuctionID] = append(s.events[ev.AuctionID], ev)
	})
	return nil
}

func (r *eventRepo) ListByAuction(ctx context.Context, auctionID uuid.UUID) ([]auction.Event, error) {
	var out []auction.Event
	r.b.read(func(s *state) {
		out = append(out, s.events[auctionID]...)
	})
	return out, nil
}

type adminRepo struct{ b binding }

func (r *adminRepo) IsAdmin(ctx context.Context, addr common.Address) (bool, error) {
	var ok bool
	r.b.read(func(s *state) {
		ok = s.admins[addr]
	})
	return ok, nil
}

func (r *adminRepo) Grant(ctx context.Context, addr common.Address) error {
	r.b.write(func(s *state) {
		s.admins[addr] = true
	})
	return nil
}

func (r *adminRepo) Revoke(ctx context.Context, addr common.Address) error {
	r.b.write(func(s *state) {
		delete(s.admins, addr)
	})
	return nil
}

func (r *adminRepo) List(ctx context.Context) ([]common.Address, error) {
	var out []common.Address
	r.b.read(func(s *state) {
		for addr := range s.admins {
			out = append(out, addr)
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Hex() < out[j].Hex() })
	return out, nil
}
