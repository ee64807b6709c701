package ws

import (
	"context"
	"fmt"
	"time"

	"dutch-auction-service/internal/domain/shared"
	"dutch-auction-service/internal/ports/outbound"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
)

const defaultChallengeTTL = 2 * time.Minute

var (
	errChallengeRejected = fmt.Errorf("%w: challenge unknown, expired or issued to another address", shared.ErrUnauthorized)
	errBadSignature      = fmt.Errorf("%w: signature does not match address", shared.ErrUnauthorized)
)

// Challenge is handed to a client before it connects. The client signs
// Message with the key behind Address and presents nonce and signature
// on the upgrade request.
type Challenge struct {
	Address   string    `json:"address"`
	Nonce     string    `json:"nonce"`
	Message   string    `json:"message"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Authenticator proves that a connecting client controls the address it
// claims, using one-time nonces and personal_sign signatures
type Authenticator struct {
	store outbound.ChallengeStore
	ttl   time.Duration
	now   func() time.Time
}

func NewAuthenticator(store outbound.ChallengeStore, ttl time.Duration) *Authenticator {
	if ttl <= 0 {
		ttl = defaultChallengeTTL
	}
	return &Authenticator{store: store, ttl: ttl, now: time.Now}
}

// ChallengeMessage is the text a wallet signs for nonce
func ChallengeMessage(nonce string) string {
	return "Sign in to the Dutch auction service\nNonce: " + nonce
}

// Issue creates a nonce bound to addr
func (a *Authenticator) Issue(ctx context.Context, addr common.Address) (*Challenge, error) {
	nonce := uuid.NewString()
	if err := a.store.Put(ctx, nonce, addr, a.ttl); err != nil {
		return nil, err
	}
	return &Challenge{
		Address:   addr.Hex(),
		Nonce:     nonce,
		Message:   ChallengeMessage(nonce),
		ExpiresAt: a.now().Add(a.ttl).UTC(),
	}, nil
}

// Verify redeems nonce and checks that signature over its message was made
// by addr. The nonce is spent even when the signature is wrong.
func (a *Authenticator) Verify(ctx context.Context, addr common.Address, nonce, signature string) error {
	bound, ok, err := a.store.Take(ctx, nonce)
	if err != nil {
		return err
	}
	if !ok || bound != addr {
		return errChallengeRejected
	}

	sig, err := hexutil.Decode(signature)
	if err != nil || len(sig) != crypto.SignatureLength {
		return errBadSignature
	}
	// wallets return V as 27/28
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	pub, err := crypto.SigToPub(textHash(ChallengeMessage(nonce)), sig)
	if err != nil {
		return errBadSignature
	}
	if crypto.PubkeyToAddress(*pub) != addr {
		return errBadSignature
	}
	return nil
}

// textHash is the EIP-191 personal message digest
func textHash(msg string) []byte {
	return crypto.Keccak256([]byte(fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(msg), msg)))
}
