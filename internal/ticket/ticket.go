// Package ticket validates signed mint tickets and tracks how much of each
// ticket has been redeemed.
//
// A ticket is identified by the hash of its signature in canonical form
// (low S, V in {27,28}). The signature proves issuance; the redeemed
// counter, not the signature, prevents overspend.
package ticket

import (
	"context"
	"fmt"
	"math"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/0gfoundation/0g-mint-engine/internal/eip712"
	"github.com/0gfoundation/0g-mint-engine/internal/ledger"
	"github.com/0gfoundation/0g-mint-engine/internal/revert"
)

type Manager struct {
	addr     common.Address
	domain   eip712.Domain
	owner    *ledger.Value[common.Address]
	signer   *ledger.Value[common.Address]
	redeemed *ledger.Table[common.Hash, uint64]
	log      *zap.Logger
}

// New constructs the manager inside a deployment. Tickets must be signed by
// signer under the "Mint Ticket" domain of this manager's address.
func New(c *ledger.Call, signer common.Address, log *zap.Logger) *Manager {
	return &Manager{
		addr:     c.Self,
		domain:   eip712.TicketDomain(c.ChainID(), c.Self),
		owner:    ledger.NewValue(c, c.Sender),
		signer:   ledger.NewValue(c, signer),
		redeemed: ledger.NewTable[common.Hash, uint64](c),
		log:      log,
	}
}

func Deploy(ctx context.Context, l *ledger.Ledger, owner, signer common.Address, log *zap.Logger) (*Manager, error) {
	var m *Manager
	_, _, err := l.Deploy(ctx, owner, func(c *ledger.Call) (any, error) {
		m = New(c, signer, log)
		return m, nil
	})
	if err != nil {
		return nil, fmt.Errorf("deploy ticket manager: %w", err)
	}
	return m, nil
}

func (m *Manager) Address() common.Address { return m.addr }
func (m *Manager) Owner() common.Address   { return m.owner.Get() }
func (m *Manager) Signer() common.Address  { return m.signer.Get() }

// Domain is the signing domain off-chain issuers must use.
func (m *Manager) Domain() eip712.Domain { return m.domain }

// SetSigner rotates the trusted ticket signer. Tickets signed by the
// previous key stop validating.
func (m *Manager) SetSigner(c *ledger.Call, signer common.Address) error {
	if c.Sender != m.owner.Get() {
		return revert.ErrNotOwner
	}
	m.signer.Set(signer)
	c.Emit("SignerSet", ledger.Args{"signer": signer})
	return nil
}

// Redeem reserves quantity from t for requester in groupID. The caller must
// be the asset contract the ticket was issued for.
func (m *Manager) Redeem(c *ledger.Call, t *eip712.Ticket, groupID uint64, requester common.Address, quantity uint64) (uint64, error) {
	if t == nil {
		return 0, revert.ErrInvalidTicketSigner
	}
	recovered, err := eip712.RecoverTicket(t, new(big.Int).SetUint64(groupID), m.domain)
	if err != nil || recovered != m.signer.Get() {
		return 0, revert.ErrInvalidTicketSigner
	}
	if requester != t.Beneficiary {
		return 0, revert.ErrWrongBeneficiary
	}
	if t.Asset != c.Sender {
		return 0, revert.ErrWrongAsset
	}

	id := ID(t)
	used := m.redeemed.At(id)
	if quantity > remaining(t, used) {
		return 0, revert.ErrInsufficientTicketBalance
	}
	m.redeemed.Set(id, used+quantity)

	c.Emit("TicketRedeemed", ledger.Args{
		"ticket":      id,
		"asset":       t.Asset,
		"beneficiary": t.Beneficiary,
		"group":       groupID,
		"quantity":    quantity,
	})
	m.log.Debug("ticket redeemed",
		zap.String("ticket", id.Hex()),
		zap.String("beneficiary", t.Beneficiary.Hex()),
		zap.Uint64("quantity", quantity),
	)
	return quantity, nil
}

// Remaining returns how many units t can still redeem.
func (m *Manager) Remaining(t *eip712.Ticket) uint64 {
	return remaining(t, m.redeemed.At(ID(t)))
}

// Redeemed returns the cumulative quantity redeemed against t.
func (m *Manager) Redeemed(t *eip712.Ticket) uint64 {
	return m.redeemed.At(ID(t))
}

// ID is the ledger key of a ticket: keccak256 of its canonical signature.
// Redeem only accepts low-S signatures, so V is the only encoding freedom.
func ID(t *eip712.Ticket) common.Hash {
	return crypto.Keccak256Hash(eip712.Canonical(t.Signature))
}

func remaining(t *eip712.Ticket, used uint64) uint64 {
	if t.Quantity == nil || t.Quantity.Sign() <= 0 {
		return 0
	}
	q := uint64(math.MaxUint64)
	if t.Quantity.IsUint64() {
		q = t.Quantity.Uint64()
	}
	if used >= q {
		return 0
	}
	return q - used
}
