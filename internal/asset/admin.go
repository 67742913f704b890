package asset

import (
	"encoding/binary"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/0gfoundation/0g-mint-engine/internal/ledger"
	"github.com/0gfoundation/0g-mint-engine/internal/registry"
	"github.com/0gfoundation/0g-mint-engine/internal/revert"
)

// RevealConsumer is notified once when an asset reveals its metadata.
type RevealConsumer interface {
	OnReveal(c *ledger.Call, asset common.Address, seed common.Hash) error
}

var errNoConsumer = errors.New("reveal consumer not deployed")

func (a *Asset) onlyOwner(c *ledger.Call) error {
	if c.Sender != a.owner.Get() {
		return revert.ErrNotOwner
	}
	return nil
}

func (a *Asset) TransferOwnership(c *ledger.Call, newOwner common.Address) error {
	if err := a.onlyOwner(c); err != nil {
		return err
	}
	prev := a.owner.Get()
	a.owner.Set(newOwner)
	c.Emit("OwnershipTransferred", ledger.Args{"previousOwner": prev, "newOwner": newOwner})
	return nil
}

// SetSigner rotates the key payloads must be signed by.
func (a *Asset) SetSigner(c *ledger.Call, signer common.Address) error {
	if err := a.onlyOwner(c); err != nil {
		return err
	}
	a.signer.Set(signer)
	c.Emit("SignerSet", ledger.Args{"signer": signer})
	return nil
}

// SetPublicSale opens or closes the public path and sets the base unit
// price it charges. Fails once the sale has ended.
func (a *Asset) SetPublicSale(c *ledger.Call, active bool, basePrice *big.Int) error {
	if err := a.onlyOwner(c); err != nil {
		return err
	}
	if a.saleEnded.Get() {
		return revert.ErrSaleEnded
	}
	price := new(big.Int)
	if basePrice != nil {
		price.Set(basePrice)
	}
	a.publicSale.Set(active)
	a.basePrice.Set(price)
	c.Emit("PublicSaleSet", ledger.Args{"active": active, "basePrice": price})
	return nil
}

// EndSale permanently closes both priced paths.
func (a *Asset) EndSale(c *ledger.Call) error {
	if err := a.onlyOwner(c); err != nil {
		return err
	}
	if a.saleEnded.Get() {
		return revert.ErrSaleEnded
	}
	a.saleEnded.Set(true)
	a.publicSale.Set(false)
	c.Emit("SaleEnded", ledger.Args{"supply": a.supply.Get()})
	a.log.Info("sale ended", zap.Uint64("supply", a.supply.Get()))
	return nil
}

func (a *Asset) SetMetadataURI(c *ledger.Call, uri string) error {
	if err := a.onlyOwner(c); err != nil {
		return err
	}
	a.metadataURI.Set(uri)
	c.Emit("MetadataURISet", ledger.Args{"uri": uri})
	return nil
}

func (a *Asset) SetCoverURI(c *ledger.Call, uri string) error {
	if err := a.onlyOwner(c); err != nil {
		return err
	}
	a.coverURI.Set(uri)
	c.Emit("CoverURISet", ledger.Args{"uri": uri})
	return nil
}

// SetRevealConsumer sets the contract notified on reveal. It must hold the
// randomness role; the zero address disables the notification.
func (a *Asset) SetRevealConsumer(c *ledger.Call, consumer common.Address) error {
	if err := a.onlyOwner(c); err != nil {
		return err
	}
	if consumer != (common.Address{}) && !a.registry.HasRole(consumer, registry.RoleRandomness) {
		return revert.ErrNotAuthorized
	}
	a.revealConsumer.Set(consumer)
	return nil
}

// Reveal switches token URIs from the cover to the metadata URI. The
// consumer callback is best effort: its failure is rolled back on its own
// and only reported in the RevealCallback event.
func (a *Asset) Reveal(c *ledger.Call) error {
	if err := a.onlyOwner(c); err != nil {
		return err
	}
	if a.revealed.Get() {
		return revert.ErrAlreadyRevealed
	}
	a.revealed.Set(true)
	c.Emit("Revealed", ledger.Args{"uri": a.metadataURI.Get()})

	consumer := a.revealConsumer.Get()
	if consumer == (common.Address{}) {
		return nil
	}
	seed := revealSeed(c)
	err := c.Try(func() error {
		obj, ok := c.ContractAt(consumer)
		rc, isConsumer := obj.(RevealConsumer)
		if !ok || !isConsumer {
			return errNoConsumer
		}
		sub, err := c.Invoke(consumer, nil)
		if err != nil {
			return err
		}
		return rc.OnReveal(sub, a.addr, seed)
	})
	if err != nil {
		a.log.Warn("reveal callback failed", zap.String("consumer", consumer.Hex()), zap.Error(err))
	}
	c.Emit("RevealCallback", ledger.Args{"consumer": consumer, "seed": seed, "success": err == nil})
	return nil
}

func revealSeed(c *ledger.Call) common.Hash {
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[:8], c.Block())
	binary.BigEndian.PutUint64(buf[8:], c.Now())
	return crypto.Keccak256Hash(c.Self.Bytes(), buf[:])
}

// Withdraw sends the asset's whole balance, the mint proceeds left after
// fees, to the owner.
func (a *Asset) Withdraw(c *ledger.Call) error {
	if err := a.onlyOwner(c); err != nil {
		return err
	}
	owner := a.owner.Get()
	amount := c.Balance(a.addr)
	if amount.Sign() == 0 {
		return nil
	}
	if err := c.Transfer(owner, amount); err != nil {
		return err
	}
	c.Emit("Withdrawn", ledger.Args{"to": owner, "amount": amount})
	return nil
}

// ── views ────────────────────────────────────────────────────────────────────

// TokenURI returns the cover URI until reveal and the metadata URI after.
func (a *Asset) TokenURI(id uint64) (string, error) {
	if id == 0 || id > a.supply.Get() {
		return "", revert.ErrTokenNotFound
	}
	if !a.revealed.Get() {
		return a.coverURI.Get(), nil
	}
	return a.metadataURI.Get(), nil
}

func (a *Asset) OwnerOf(id uint64) (common.Address, error) {
	owner, ok := a.tokenOwners.Get(id)
	if !ok {
		return common.Address{}, revert.ErrTokenNotFound
	}
	return owner, nil
}

func (a *Asset) Address() common.Address               { return a.addr }
func (a *Asset) Implementation() common.Address        { return a.implementation }
func (a *Asset) Owner() common.Address                 { return a.owner.Get() }
func (a *Asset) Signer() common.Address                { return a.signer.Get() }
func (a *Asset) Name() string                          { return a.name }
func (a *Asset) Symbol() string                        { return a.symbol }
func (a *Asset) TotalSupply() uint64                   { return a.supply.Get() }
func (a *Asset) MaxSupply() uint64                     { return a.maxSupply }
func (a *Asset) BalanceOf(owner common.Address) uint64 { return a.balances.At(owner) }
func (a *Asset) SaleEnded() bool                       { return a.saleEnded.Get() }
func (a *Asset) Revealed() bool                        { return a.revealed.Get() }

// PublicSale reports whether the public path is open and its base price.
func (a *Asset) PublicSale() (bool, *big.Int) {
	return a.publicSale.Get(), new(big.Int).Set(a.basePrice.Get())
}
