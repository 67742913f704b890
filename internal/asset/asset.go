// Package asset is the capped-supply issuance contract. Each instance sells
// sequentially numbered units through two priced paths (public schedule and
// signed ticket) plus an unpriced operator path, and forwards the protocol
// fee of every priced mint to the registered treasury.
package asset

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/0gfoundation/0g-mint-engine/internal/eip712"
	"github.com/0gfoundation/0g-mint-engine/internal/ledger"
	"github.com/0gfoundation/0g-mint-engine/internal/registry"
	"github.com/0gfoundation/0g-mint-engine/internal/revert"
	"github.com/0gfoundation/0g-mint-engine/internal/verifier"
)

// Payload topics accepted by the two priced paths.
const (
	TopicMint   = "MINT"
	TopicTicket = "TICKET"
)

// RateDenominator scales fee rates returned by the schedule manager.
const RateDenominator = 10_000

// Reserver is the schedule manager as seen by an asset.
type Reserver interface {
	Reserve(c *ledger.Call, asset common.Address, group uint64, requester common.Address, quantity uint64, paid *big.Int) (uint64, error)
	GetFeeRate(asset common.Address) uint64
}

// Redeemer is the ticket manager as seen by an asset.
type Redeemer interface {
	Redeem(c *ledger.Call, t *eip712.Ticket, group uint64, requester common.Address, quantity uint64) (uint64, error)
}

// Config is the creation-time configuration of an asset instance.
type Config struct {
	Name      string         `json:"name"`
	Symbol    string         `json:"symbol"`
	MaxSupply uint64         `json:"max_supply"`
	Owner     common.Address `json:"owner"`
	Signer    common.Address `json:"signer"`
	CoverURI  string         `json:"cover_uri"`
}

type Asset struct {
	addr           common.Address
	implementation common.Address
	name           string
	symbol         string
	maxSupply      uint64
	registry       registry.Reader
	verifier       *verifier.Verifier
	log            *zap.Logger

	owner          *ledger.Value[common.Address]
	signer         *ledger.Value[common.Address]
	supply         *ledger.Value[uint64]
	saleEnded      *ledger.Value[bool]
	revealed       *ledger.Value[bool]
	publicSale     *ledger.Value[bool]
	basePrice      *ledger.Value[*big.Int]
	metadataURI    *ledger.Value[string]
	coverURI       *ledger.Value[string]
	revealConsumer *ledger.Value[common.Address]
	tokenOwners    *ledger.Table[uint64, common.Address]
	balances       *ledger.Table[common.Address, uint64]
}

// New constructs an asset inside a deployment. A zero cfg.Owner makes the
// deployer the owner.
func New(c *ledger.Call, reg registry.Reader, cfg Config, log *zap.Logger) (*Asset, error) {
	return newAsset(c, reg, cfg, common.Address{}, log)
}

func newAsset(c *ledger.Call, reg registry.Reader, cfg Config, impl common.Address, log *zap.Logger) (*Asset, error) {
	if cfg.MaxSupply == 0 {
		return nil, revert.ErrInvalidQuantity
	}
	if reg == nil {
		return nil, revert.ErrContractNotFound
	}
	owner := cfg.Owner
	if owner == (common.Address{}) {
		owner = c.Sender
	}
	a := &Asset{
		addr:           c.Self,
		implementation: impl,
		name:           cfg.Name,
		symbol:         cfg.Symbol,
		maxSupply:      cfg.MaxSupply,
		registry:       reg,
		verifier:       verifier.New(eip712.PayloadDomain(c.ChainID(), c.Self)),
		log:            log.With(zap.String("asset", c.Self.Hex())),

		owner:          ledger.NewValue(c, owner),
		signer:         ledger.NewValue(c, cfg.Signer),
		supply:         ledger.NewValue(c, uint64(0)),
		saleEnded:      ledger.NewValue(c, false),
		revealed:       ledger.NewValue(c, false),
		publicSale:     ledger.NewValue(c, false),
		basePrice:      ledger.NewValue(c, new(big.Int)),
		metadataURI:    ledger.NewValue(c, ""),
		coverURI:       ledger.NewValue(c, cfg.CoverURI),
		revealConsumer: ledger.NewValue(c, common.Address{}),
		tokenOwners:    ledger.NewTable[uint64, common.Address](c),
		balances:       ledger.NewTable[common.Address, uint64](c),
	}
	c.Emit("AssetCreated", ledger.Args{
		"owner":     owner,
		"maxSupply": cfg.MaxSupply,
		"name":      cfg.Name,
	})
	return a, nil
}

// Deploy deploys a standalone asset from deployer.
func Deploy(ctx context.Context, l *ledger.Ledger, deployer common.Address, reg registry.Reader, cfg Config, log *zap.Logger) (*Asset, error) {
	var a *Asset
	_, _, err := l.Deploy(ctx, deployer, func(c *ledger.Call) (any, error) {
		var err error
		a, err = New(c, reg, cfg, log)
		return a, err
	})
	if err != nil {
		return nil, fmt.Errorf("deploy asset: %w", err)
	}
	return a, nil
}

// MintPublic sells quantity units from the public schedule of group to
// recipient. The caller must be an account holding a "MINT" payload for
// this group.
func (a *Asset) MintPublic(c *ledger.Call, recipient common.Address, quantity, group uint64, p *eip712.Payload) error {
	if err := a.checkMint(c, quantity); err != nil {
		return err
	}
	if !a.publicSale.Get() {
		return revert.ErrSaleNotActive
	}
	if err := a.checkSupply(quantity); err != nil {
		return err
	}
	if err := checkPaid(c.Value, a.basePrice.Get(), quantity); err != nil {
		return err
	}
	if err := a.verify(c, TopicMint, group, p); err != nil {
		return err
	}

	sched, addr, err := a.scheduleManager(c)
	if err != nil {
		return err
	}
	sub, err := c.Invoke(addr, nil)
	if err != nil {
		return err
	}
	rate, err := sched.Reserve(sub, a.addr, group, c.Sender, quantity, c.Value)
	if err != nil {
		return err
	}

	a.mint(c, recipient, quantity)
	return a.routeFee(c, rate)
}

// MintWithTicket sells quantity units against a signed ticket instead of
// the public schedule. The caller must be the ticket's beneficiary and hold
// a "TICKET" payload for group.
func (a *Asset) MintWithTicket(c *ledger.Call, recipient common.Address, quantity, group uint64, t *eip712.Ticket, p *eip712.Payload) error {
	if err := a.checkMint(c, quantity); err != nil {
		return err
	}
	if err := a.checkSupply(quantity); err != nil {
		return err
	}
	var price *big.Int
	if t != nil {
		if t.UnitPrice != nil && t.UnitPrice.Sign() < 0 {
			return revert.ErrInvalidTicketSigner
		}
		price = t.UnitPrice
	}
	if err := checkPaid(c.Value, price, quantity); err != nil {
		return err
	}
	if err := a.verify(c, TopicTicket, group, p); err != nil {
		return err
	}

	tickets, addr, err := a.ticketManager(c)
	if err != nil {
		return err
	}
	sched, _, err := a.scheduleManager(c)
	if err != nil {
		return err
	}
	sub, err := c.Invoke(addr, nil)
	if err != nil {
		return err
	}
	if _, err := tickets.Redeem(sub, t, group, c.Sender, quantity); err != nil {
		return err
	}

	a.mint(c, recipient, quantity)
	return a.routeFee(c, sched.GetFeeRate(a.addr))
}

// MintDirect issues quantity units to recipient without payment. Only the
// owner or the registered mint operator may call it.
func (a *Asset) MintDirect(c *ledger.Call, recipient common.Address, quantity uint64) error {
	if c.Sender != a.owner.Get() {
		op := a.registry.Resolve(registry.TopicMintOperator)
		if op == (common.Address{}) || op != c.Sender {
			return revert.ErrNotAuthorized
		}
	}
	if quantity == 0 {
		return revert.ErrInvalidQuantity
	}
	if err := a.checkSupply(quantity); err != nil {
		return err
	}
	a.mint(c, recipient, quantity)
	return nil
}

// checkMint holds the guards shared by both priced paths.
func (a *Asset) checkMint(c *ledger.Call, quantity uint64) error {
	if c.IsContract(c.Sender) {
		return revert.ErrCallerMustBeAccount
	}
	if quantity == 0 {
		return revert.ErrInvalidQuantity
	}
	if a.saleEnded.Get() {
		return revert.ErrSaleEnded
	}
	return nil
}

func (a *Asset) checkSupply(quantity uint64) error {
	if quantity > a.maxSupply-a.supply.Get() {
		return revert.ErrSupplyExceeded
	}
	return nil
}

func checkPaid(paid, unitPrice *big.Int, quantity uint64) error {
	if unitPrice == nil {
		return nil
	}
	if unitPrice.Sign() < 0 {
		return revert.ErrUnderpaid
	}
	cost := new(big.Int).Mul(unitPrice, new(big.Int).SetUint64(quantity))
	if paid.Cmp(cost) < 0 {
		return revert.ErrUnderpaid
	}
	return nil
}

// verify checks p against the trusted signer with the group id as nonce.
func (a *Asset) verify(c *ledger.Call, topic string, group uint64, p *eip712.Payload) error {
	return a.verifier.Verify(a.signer.Get(), c.Sender, topic, new(big.Int).SetUint64(group), p)
}

func (a *Asset) scheduleManager(c *ledger.Call) (Reserver, common.Address, error) {
	addr := a.registry.Resolve(registry.TopicScheduleManager)
	obj, ok := c.ContractAt(addr)
	if !ok {
		return nil, common.Address{}, revert.ErrContractNotFound
	}
	r, ok := obj.(Reserver)
	if !ok {
		return nil, common.Address{}, revert.ErrContractNotFound
	}
	return r, addr, nil
}

func (a *Asset) ticketManager(c *ledger.Call) (Redeemer, common.Address, error) {
	addr := a.registry.Resolve(registry.TopicTicketManager)
	obj, ok := c.ContractAt(addr)
	if !ok {
		return nil, common.Address{}, revert.ErrContractNotFound
	}
	r, ok := obj.(Redeemer)
	if !ok {
		return nil, common.Address{}, revert.ErrContractNotFound
	}
	return r, addr, nil
}

// mint assigns ids supply+1 .. supply+quantity to recipient.
func (a *Asset) mint(c *ledger.Call, recipient common.Address, quantity uint64) {
	first := a.supply.Get() + 1
	for id := first; id < first+quantity; id++ {
		a.tokenOwners.Set(id, recipient)
		c.Emit("Transfer", ledger.Args{
			"from":    common.Address{},
			"to":      recipient,
			"tokenId": id,
		})
	}
	a.supply.Set(first + quantity - 1)
	a.balances.Set(recipient, a.balances.At(recipient)+quantity)
	a.log.Info("minted",
		zap.String("recipient", recipient.Hex()),
		zap.Uint64("first", first),
		zap.Uint64("quantity", quantity),
	)
}

// routeFee sends value*rate/RateDenominator of the call value to the
// treasury. Truncated dust stays in the asset balance.
func (a *Asset) routeFee(c *ledger.Call, rate uint64) error {
	fee := Fee(c.Value, rate)
	if fee.Sign() == 0 {
		return nil
	}
	treasury := a.registry.Resolve(registry.TopicTreasury)
	if treasury == (common.Address{}) {
		return revert.ErrContractNotFound
	}
	if err := c.Transfer(treasury, fee); err != nil {
		return fmt.Errorf("route fee: %w", err)
	}
	c.Emit("FeeRouted", ledger.Args{"treasury": treasury, "amount": fee, "rate": rate})
	return nil
}

// Fee returns value*rate/RateDenominator, truncated toward zero.
func Fee(value *big.Int, rate uint64) *big.Int {
	if value == nil {
		return new(big.Int)
	}
	fee := new(big.Int).Mul(value, new(big.Int).SetUint64(rate))
	return fee.Quo(fee, big.NewInt(RateDenominator))
}
