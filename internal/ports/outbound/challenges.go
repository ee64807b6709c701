package outbound

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ChallengeStore keeps sign-in nonces until they are redeemed or expire
type ChallengeStore interface {
	// Put binds nonce to addr for ttl
	Put(ctx context.Context, nonce string, addr common.Address, ttl time.Duration) error

	// Take removes nonce and returns the address bound to it. ok is false
	// when the nonce is unknown, already redeemed or expired.
	Take(ctx context.Context, nonce string) (addr common.Address, ok bool, err error)
}
