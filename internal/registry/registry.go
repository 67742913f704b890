// Package registry is the owner-controlled directory of collaborator
// contracts (topic → address) and the address → role membership table.
package registry

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/0gfoundation/0g-mint-engine/internal/ledger"
	"github.com/0gfoundation/0g-mint-engine/internal/revert"
)

// Canonical topics every deployment registers.
const (
	TopicScheduleManager = "MintScheduleManager"
	TopicTicketManager   = "TicketManager"
	TopicTreasury        = "ConsensusWallet"
	TopicMintOperator    = "MintOperator"
)

// Role is a privilege granted to an address.
type Role uint8

const (
	RoleExchange Role = iota + 1
	RoleRandomness
	RoleMinter
)

func (r Role) String() string {
	switch r {
	case RoleExchange:
		return "EXCHANGE"
	case RoleRandomness:
		return "RANDOMNESS"
	case RoleMinter:
		return "MINTER"
	default:
		return fmt.Sprintf("ROLE(%d)", uint8(r))
	}
}

// Reader is the lookup surface other contracts hold. A zero address from
// Resolve means the topic is not registered.
type Reader interface {
	Resolve(topic string) common.Address
	IsRegistered(addr common.Address) bool
	HasRole(addr common.Address, role Role) bool
}

// Entry is the membership record of a registered contract. Entries are
// never deleted; removal clears Active.
type Entry struct {
	Topic  common.Hash
	Active bool
}

type grant struct {
	addr common.Address
	role Role
}

// TopicKey is the storage key of a topic string.
func TopicKey(topic string) common.Hash {
	return crypto.Keccak256Hash([]byte(topic))
}

type Registry struct {
	addr    common.Address
	owner   *ledger.Value[common.Address]
	entries *ledger.Table[common.Address, Entry]
	index   *ledger.Table[common.Hash, common.Address]
	roles   *ledger.Table[grant, bool]
	log     *zap.Logger
}

// New constructs the registry inside a deployment; the deployer owns it.
func New(c *ledger.Call, log *zap.Logger) *Registry {
	return &Registry{
		addr:    c.Self,
		owner:   ledger.NewValue(c, c.Sender),
		entries: ledger.NewTable[common.Address, Entry](c),
		index:   ledger.NewTable[common.Hash, common.Address](c),
		roles:   ledger.NewTable[grant, bool](c),
		log:     log,
	}
}

// Deploy deploys a registry owned by owner.
func Deploy(ctx context.Context, l *ledger.Ledger, owner common.Address, log *zap.Logger) (*Registry, error) {
	var reg *Registry
	_, _, err := l.Deploy(ctx, owner, func(c *ledger.Call) (any, error) {
		reg = New(c, log)
		return reg, nil
	})
	if err != nil {
		return nil, fmt.Errorf("deploy registry: %w", err)
	}
	return reg, nil
}

func (r *Registry) Address() common.Address { return r.addr }
func (r *Registry) Owner() common.Address   { return r.owner.Get() }

func (r *Registry) onlyOwner(c *ledger.Call) error {
	if c.Sender != r.owner.Get() {
		return revert.ErrNotOwner
	}
	return nil
}

func (r *Registry) TransferOwnership(c *ledger.Call, newOwner common.Address) error {
	if err := r.onlyOwner(c); err != nil {
		return err
	}
	r.owner.Set(newOwner)
	c.Emit("OwnershipTransferred", ledger.Args{"previous": c.Sender, "owner": newOwner})
	return nil
}

// RegisterContract points topic at addr and records addr as registered.
// A previously indexed address keeps its own entry. An address holds one
// topic: re-registering it under another topic drops its old index slot.
func (r *Registry) RegisterContract(c *ledger.Call, addr common.Address, topic string) error {
	if err := r.onlyOwner(c); err != nil {
		return err
	}
	if !c.IsContract(addr) {
		return revert.ErrNotAContract
	}
	key := TopicKey(topic)
	if prev, ok := r.entries.Get(addr); ok && prev.Topic != key && r.index.At(prev.Topic) == addr {
		r.index.Delete(prev.Topic)
	}
	r.entries.Set(addr, Entry{Topic: key, Active: true})
	r.index.Set(key, addr)
	c.Emit("ContractRegistered", ledger.Args{"address": addr, "topic": topic})
	r.log.Info("contract registered", zap.String("topic", topic), zap.String("address", addr.Hex()))
	return nil
}

func (r *Registry) RegisterContractMultiple(c *ledger.Call, addrs []common.Address, topics []string) error {
	if err := r.onlyOwner(c); err != nil {
		return err
	}
	if len(addrs) != len(topics) {
		return revert.ErrLengthMismatch
	}
	for i := range addrs {
		if err := r.RegisterContract(c, addrs[i], topics[i]); err != nil {
			return fmt.Errorf("register %s: %w", topics[i], err)
		}
	}
	return nil
}

// RemoveContract deactivates addr. The topic index is cleared only if it
// still points at addr.
func (r *Registry) RemoveContract(c *ledger.Call, addr common.Address) error {
	if err := r.onlyOwner(c); err != nil {
		return err
	}
	e, ok := r.entries.Get(addr)
	if !ok || !e.Active {
		return revert.ErrContractNotFound
	}
	r.entries.Set(addr, Entry{Topic: e.Topic, Active: false})
	if r.index.At(e.Topic) == addr {
		r.index.Delete(e.Topic)
	}
	c.Emit("ContractRemoved", ledger.Args{"address": addr})
	r.log.Info("contract removed", zap.String("address", addr.Hex()))
	return nil
}

// GetContract returns the address indexed under topic, or the zero address.
func (r *Registry) GetContract(topic string) common.Address {
	return r.index.At(TopicKey(topic))
}

func (r *Registry) CheckRegistration(addr common.Address) bool {
	return r.entries.At(addr).Active
}

func (r *Registry) AddRole(c *ledger.Call, addrs []common.Address, role Role) error {
	if err := r.onlyOwner(c); err != nil {
		return err
	}
	for _, a := range addrs {
		r.roles.Set(grant{a, role}, true)
		c.Emit("RoleGranted", ledger.Args{"address": a, "role": role.String()})
	}
	return nil
}

func (r *Registry) RemoveRole(c *ledger.Call, addrs []common.Address, role Role) error {
	if err := r.onlyOwner(c); err != nil {
		return err
	}
	for _, a := range addrs {
		r.roles.Delete(grant{a, role})
		c.Emit("RoleRevoked", ledger.Args{"address": a, "role": role.String()})
	}
	return nil
}

func (r *Registry) HasRole(addr common.Address, role Role) bool {
	return r.roles.At(grant{addr, role})
}

// Resolve implements Reader.
func (r *Registry) Resolve(topic string) common.Address { return r.GetContract(topic) }

// IsRegistered implements Reader.
func (r *Registry) IsRegistered(addr common.Address) bool { return r.CheckRegistration(addr) }

var _ Reader = (*Registry)(nil)
