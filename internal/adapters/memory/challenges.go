package memory

import (
	"context"
	"sync"
	"time"

	"dutch-auction-service/internal/ports/outbound"

	"github.com/ethereum/go-ethereum/common"
)

type pendingChallenge struct {
	addr    common.Address
	expires time.Time
}

// Challenges is an in-process outbound.ChallengeStore.
type Challenges struct {
	mu      sync.Mutex
	pending map[string]pendingChallenge
	now     func() time.Time
}

var _ outbound.ChallengeStore = (*Challenges)(nil)

// NewChallenges creates an empty store. A nil clock means time.Now.
func NewChallenges(now func() time.Time) *Challenges {
	if now == nil {
		now = time.Now
	}
	return &Challenges{pending: make(map[string]pendingChallenge), now: now}
}

func (c *Challenges) Put(ctx context.Context, nonce string, addr common.Address, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for n, p := range c.pending {
		if !now.Before(p.expires) {
			delete(c.pending, n)
		}
	}
	c.pending[nonce] = pendingChallenge{addr: addr, expires: now.Add(ttl)}
	return nil
}

func (c *Challenges) Take(ctx context.Context, nonce string) (common.Address, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.pending[nonce]
	if !ok {
		return common.Address{}, false, nil
	}
	delete(c.pending, nonce)
	if !c.now().Before(p.expires) {
		return common.Address{}, false, nil
	}
	return p.addr, true, nil
}
