package settlement

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// NonceChecker reports whether a requester already consumed nonce.
type NonceChecker interface {
	IsNonceUsed(ctx context.Context, requester common.Address, nonce *big.Int) (bool, error)
}

// Verifier authenticates signed orders.
type Verifier struct {
	hasher    *orderHasher
	signers   map[common.Address]bool
	delegates map[common.Address]bool
	clock     func() time.Time
}

func NewVerifier(domain Domain, chainID ChainIDSource, signers []common.Address, delegates []common.Address) *Verifier {
	v := &Verifier{
		hasher:    newOrderHasher(domain, chainID),
		signers:   make(map[common.Address]bool, len(signers)),
		delegates: make(map[common.Address]bool, len(delegates)),
		clock:     time.Now,
	}
	for _, s := range signers {
		v.signers[s] = true
	}
	for _, d := range delegates {
		v.delegates[d] = true
	}
	return v
}

// Verify checks expiry, signature, nonce and sender in that order and returns
// the recovered signer. It does not consume the nonce.
func (v *Verifier) Verify(ctx context.Context, caller common.Address, order Order, signature []byte, nonces NonceChecker) (common.Address, error) {
	if err := order.Validate(); err != nil {
		return common.Address{}, err
	}

	if order.Expired(v.clock()) {
		return common.Address{}, ErrSignatureExpired
	}

	digest, err := v.hasher.digest(ctx, order)
	if err != nil {
		return common.Address{}, err
	}

	signer, err := RecoverSigner(digest, signature)
	if err != nil {
		return common.Address{}, err
	}
	if !v.signers[signer] {
		return common.Address{}, fmt.Errorf("%w: %s is not a trusted signer", ErrInvalidSignature, signer.Hex())
	}

	used, err := nonces.IsNonceUsed(ctx, order.Requester, order.Nonce)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to check nonce: %w", err)
	}
	if used {
		return common.Address{}, ErrInvalidNonce
	}

	if caller != order.Requester {
		if order.Delegate == (common.Address{}) || caller != order.Delegate || !v.delegates[caller] {
			return common.Address{}, ErrInvalidSender
		}
	}

	return signer, nil
}

// RecoverSigner returns the address that produced the 65-byte signature over
// digest. Both 0/1 and 27/28 recovery ids are accepted.
func RecoverSigner(digest []byte, signature []byte) (common.Address, error) {
	if len(signature) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidSignature, crypto.SignatureLength, len(signature))
	}

	sig := make([]byte, crypto.SignatureLength)
	copy(sig, signature)
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	if sig[crypto.RecoveryIDOffset] > 1 {
		return common.Address{}, fmt.Errorf("%w: bad recovery id", ErrInvalidSignature)
	}

	pubKey, err := crypto.SigToPub(digest, sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return crypto.PubkeyToAddress(*pubKey), nil
}
