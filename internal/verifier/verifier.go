// Package verifier checks signed payloads: a trusted signer's statement that
// sender may perform topic at sequence nonce.
//
// Verification is side-effect free. Replay bookkeeping belongs to the
// caller; the same payload verifies as often as it is presented.
package verifier

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/0gfoundation/0g-mint-engine/internal/eip712"
	"github.com/0gfoundation/0g-mint-engine/internal/revert"
)

// Verifier validates payloads under one EIP-712 domain.
type Verifier struct {
	domain eip712.Domain
}

func New(domain eip712.Domain) *Verifier {
	return &Verifier{domain: domain}
}

// Domain returns the domain signers must use.
func (v *Verifier) Domain() eip712.Domain { return v.domain }

// Verify checks, in order, topic, signer, sender and nonce.
func (v *Verifier) Verify(signer, claimedSender common.Address, topic string, nonce *big.Int, p *eip712.Payload) error {
	if p == nil || p.Topic != topic {
		return revert.ErrTopicMismatch
	}
	recovered, err := eip712.RecoverPayload(p, v.domain)
	if err != nil || recovered != signer {
		return revert.ErrSignerMismatch
	}
	if p.Sender != claimedSender {
		return revert.ErrSenderMismatch
	}
	if p.Nonce == nil || nonce == nil || p.Nonce.Cmp(nonce) != 0 {
		return revert.ErrNonceMismatch
	}
	return nil
}
