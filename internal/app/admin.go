package app

import (
	"context"

	"dutch-auction-service/internal/domain/access"
	"dutch-auction-service/internal/domain/auction"
	"dutch-auction-service/internal/domain/shared"
	"dutch-auction-service/internal/ports/inbound"
	"dutch-auction-service/internal/ports/outbound"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
)

// AdminService manages the admin role membership
type AdminService struct {
	uow    outbound.UnitOfWork
	logger zerolog.Logger
}

type AdminServiceParams struct {
	UnitOfWork outbound.UnitOfWork
	Logger     zerolog.Logger
}

var _ inbound.AdminService = (*AdminService)(nil)

// NewAdminService creates a new admin service
func NewAdminService(params AdminServiceParams) *AdminService {
	return &AdminService{
		uow:    params.UnitOfWork,
		logger: params.Logger.With().Str("component", "admin_service").Logger(),
	}
}

// Seed grants the admin role to addrs without a capability check. It
// bootstraps the membership from configuration.
func (s *AdminService) Seed(ctx context.Context, addrs []common.Address) error {
	return s.uow.Within(ctx, func(ctx context.Context, repos outbound.Repositories) error {
		for _, addr := range addrs {
			if auction.IsZeroAddress(addr) {
				return shared.ErrInvalidAddress
			}
			if err := repos.Admins.Grant(ctx, addr); err != nil {
				return err
			}
		}
		return nil
	})
}

// GrantAdmin adds who to the admin set
func (s *AdminService) GrantAdmin(ctx context.Context, caller, who common.Address) error {
	return s.change(ctx, caller, who, "grant", func(ctx context.Context, repos outbound.Repositories) error {
		return repos.Admins.Grant(ctx, who)
	})
}

// RevokeAdmin removes who from the admin set
func (s *AdminService) RevokeAdmin(ctx context.Context, caller, who common.Address) error {
	return s.change(ctx, caller, who, "revoke", func(ctx context.Context, repos outbound.Repositories) error {
		return repos.Admins.Revoke(ctx, who)
	})
}

func (s *AdminService) change(ctx context.Context, caller, who common.Address, op string, apply func(context.Context, outbound.Repositories) error) error {
	err := s.uow.Within(ctx, func(ctx context.Context, repos outbound.Repositories) error {
		if auction.IsZeroAddress(who) {
			return shared.ErrInvalidAddress
		}
		allowed, err := can(ctx, repos, caller, access.CanManageAdmins)
		if err != nil {
			return err
		}
		if !allowed {
			return shared.ErrUnauthorized
		}
		return apply(ctx, repos)
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("op", op).Str("caller", caller.Hex()).Str("who", who.Hex()).Msg("Admin change rejected")
		return err
	}

	s.logger.Info().Str("op", op).Str("caller", caller.Hex()).Str("who", who.Hex()).Msg("Admin set changed")
	return nil
}

// IsAdmin reports whether who holds the admin role
func (s *AdminService) IsAdmin(ctx context.Context, who common.Address) (bool, error) {
	return s.uow.Repositories().Admins.IsAdmin(ctx, who)
}

// ListAdmins returns the admin set
func (s *AdminService) ListAdmins(ctx context.Context) ([]common.Address, error) {
	return s.uow.Repositories().Admins.List(ctx)
}
