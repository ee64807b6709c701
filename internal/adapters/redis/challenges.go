package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dutch-auction-service/internal/ports/outbound"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
)

const challengeKeyPrefix = "auth:challenge:"

// ChallengeStore keeps sign-in nonces in Redis so a client may fetch its
// challenge from one instance and connect to another
type ChallengeStore struct {
	client *redis.Client
}

var _ outbound.ChallengeStore = (*ChallengeStore)(nil)

func NewChallengeStore(client *redis.Client) *ChallengeStore {
	return &ChallengeStore{client: client}
}

func (s *ChallengeStore) Put(ctx context.Context, nonce string, addr common.Address, ttl time.Duration) error {
	if err := s.client.Set(ctx, challengeKeyPrefix+nonce, addr.Hex(), ttl).Err(); err != nil {
		return fmt.Errorf("failed to store challenge: %w", err)
	}
	return nil
}

// Take redeems a nonce with GETDEL, so it succeeds at most once
func (s *ChallengeStore) Take(ctx context.Context, nonce string) (common.Address, bool, error) {
	val, err := s.client.GetDel(ctx, challengeKeyPrefix+nonce).Result()
	if errors.Is(err, redis.Nil) {
		return common.Address{}, false, nil
	}
	if err != nil {
		return common.Address{}, false, fmt.Errorf("failed to redeem challenge: %w", err)
	}
	if !common.IsHexAddress(val) {
		return common.Address{}, false, nil
	}
	return common.HexToAddress(val), true, nil
}
