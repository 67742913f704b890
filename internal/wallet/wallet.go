// Package wallet is the weighted multi-owner treasury that accumulates
// protocol fees and releases them only after enough owners approve.
//
// Threshold is max(ceil(totalWeight*ratio/100), minLimit). The owner roster
// is fixed at deployment.
package wallet

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/0gfoundation/0g-mint-engine/internal/ledger"
	"github.com/0gfoundation/0g-mint-engine/internal/revert"
)

// Owner is a roster member and its vote weight.
type Owner struct {
	Addr   common.Address `json:"addr"`
	Weight uint64         `json:"weight"`
}

// Config is the deployment-time roster and quorum rule.
type Config struct {
	Owners         []Owner `json:"owners"`
	ConsensusRatio uint64  `json:"consensus_ratio"` // percent, 1..100
	MinLimit       uint64  `json:"min_limit"`
}

// Request is a withdrawal request. Votes is the summed weight of the owners
// currently approving it.
type Request struct {
	ID        uint64         `json:"id"`
	Requester common.Address `json:"requester"`
	Amount    *big.Int       `json:"amount"`
	Votes     uint64         `json:"votes"`
	Executed  bool           `json:"executed"`
}

type voteKey struct {
	id    uint64
	owner common.Address
}

type Wallet struct {
	addr      common.Address
	owners    []Owner
	weights   map[common.Address]uint64
	total     uint64
	threshold uint64

	requests *ledger.Table[uint64, Request]
	voted    *ledger.Table[voteKey, bool]
	lastID   *ledger.Value[uint64]
	log      *zap.Logger
}

// New constructs the wallet inside a deployment.
func New(c *ledger.Call, cfg Config, log *zap.Logger) (*Wallet, error) {
	if cfg.ConsensusRatio == 0 || cfg.ConsensusRatio > 100 {
		return nil, revert.ErrRateOutOfRange
	}
	if len(cfg.Owners) == 0 {
		return nil, revert.ErrInvalidOwnerSet
	}
	weights := make(map[common.Address]uint64, len(cfg.Owners))
	var total uint64
	for _, o := range cfg.Owners {
		if o.Addr == (common.Address{}) || o.Weight == 0 {
			return nil, revert.ErrInvalidOwnerSet
		}
		if _, dup := weights[o.Addr]; dup {
			return nil, revert.ErrInvalidOwnerSet
		}
		weights[o.Addr] = o.Weight
		total += o.Weight
	}
	threshold := Threshold(total, cfg.ConsensusRatio, cfg.MinLimit)
	if threshold > total {
		return nil, revert.ErrInvalidOwnerSet
	}

	w := &Wallet{
		addr:      c.Self,
		owners:    append([]Owner(nil), cfg.Owners...),
		weights:   weights,
		total:     total,
		threshold: threshold,
		requests:  ledger.NewTable[uint64, Request](c),
		voted:     ledger.NewTable[voteKey, bool](c),
		lastID:    ledger.NewValue(c, uint64(0)),
		log:       log,
	}
	log.Info("consensus wallet configured",
		zap.String("address", c.Self.Hex()),
		zap.Int("owners", len(w.owners)),
		zap.Uint64("total_weight", total),
		zap.Uint64("threshold", threshold),
	)
	return w, nil
}

func Deploy(ctx context.Context, l *ledger.Ledger, deployer common.Address, cfg Config, log *zap.Logger) (*Wallet, error) {
	var w *Wallet
	_, _, err := l.Deploy(ctx, deployer, func(c *ledger.Call) (any, error) {
		var err error
		w, err = New(c, cfg, log)
		return w, err
	})
	if err != nil {
		return nil, fmt.Errorf("deploy wallet: %w", err)
	}
	return w, nil
}

// Threshold returns max(ceil(total*ratio/100), minLimit).
func Threshold(total, ratio, minLimit uint64) uint64 {
	n := new(big.Int).Mul(new(big.Int).SetUint64(total), new(big.Int).SetUint64(ratio))
	n.Add(n, big.NewInt(99))
	n.Quo(n, big.NewInt(100))
	t := n.Uint64()
	if t < minLimit {
		return minLimit
	}
	return t
}

func (w *Wallet) onlyOwner(c *ledger.Call) (uint64, error) {
	weight, ok := w.weights[c.Sender]
	if !ok {
		return 0, revert.ErrNotOwner
	}
	return weight, nil
}

// ApprovalRequest opens a withdrawal of amount to the caller, already
// carrying the caller's own vote.
func (w *Wallet) ApprovalRequest(c *ledger.Call, amount *big.Int) (uint64, error) {
	weight, err := w.onlyOwner(c)
	if err != nil {
		return 0, err
	}
	if amount == nil || amount.Sign() < 0 || amount.Cmp(c.Balance(w.addr)) > 0 {
		return 0, revert.ErrInsufficientBalance
	}
	id := w.lastID.Get() + 1
	w.lastID.Set(id)
	w.requests.Set(id, Request{
		ID:        id,
		Requester: c.Sender,
		Amount:    new(big.Int).Set(amount),
		Votes:     weight,
	})
	w.voted.Set(voteKey{id, c.Sender}, true)

	c.Emit("RequestCreated", ledger.Args{"id": id, "requester": c.Sender, "amount": new(big.Int).Set(amount)})
	w.log.Info("withdrawal requested",
		zap.Uint64("id", id),
		zap.String("requester", c.Sender.Hex()),
		zap.String("amount", amount.String()),
	)
	return id, nil
}

// pending returns request id if it exists and has not executed.
func (w *Wallet) pending(id uint64) (Request, error) {
	r, ok := w.requests.Get(id)
	if !ok {
		return Request{}, revert.ErrRequestNotFound
	}
	if r.Executed {
		return Request{}, revert.ErrAlreadyWithdrawn
	}
	return r, nil
}

func (w *Wallet) Approve(c *ledger.Call, id uint64) error {
	weight, err := w.onlyOwner(c)
	if err != nil {
		return err
	}
	r, err := w.pending(id)
	if err != nil {
		return err
	}
	vk := voteKey{id, c.Sender}
	if w.voted.At(vk) {
		return revert.ErrAlreadyVoted
	}
	r.Votes += weight
	w.requests.Set(id, r)
	w.voted.Set(vk, true)
	c.Emit("Approved", ledger.Args{"id": id, "owner": c.Sender, "votes": r.Votes})
	return nil
}

func (w *Wallet) RevokeApproval(c *ledger.Call, id uint64) error {
	weight, err := w.onlyOwner(c)
	if err != nil {
		return err
	}
	r, err := w.pending(id)
	if err != nil {
		return err
	}
	vk := voteKey{id, c.Sender}
	if !w.voted.At(vk) {
		return revert.ErrNotYetApproved
	}
	r.Votes -= weight
	w.requests.Set(id, r)
	w.voted.Delete(vk)
	c.Emit("ApprovalRevoked", ledger.Args{"id": id, "owner": c.Sender, "votes": r.Votes})
	return nil
}

// Withdrawal executes request id once its votes reach the threshold. Only
// the requester may execute; the request is marked executed before the
// payout.
func (w *Wallet) Withdrawal(c *ledger.Call, id uint64) error {
	r, ok := w.requests.Get(id)
	if !ok {
		return revert.ErrRequestNotFound
	}
	if c.Sender != r.Requester {
		return revert.ErrNotRequester
	}
	if r.Executed {
		return revert.ErrAlreadyWithdrawn
	}
	if r.Votes < w.threshold {
		return revert.ErrConsensusNotReached
	}
	if r.Amount.Cmp(c.Balance(w.addr)) > 0 {
		return revert.ErrInsufficientBalance
	}

	r.Executed = true
	w.requests.Set(id, r)
	if err := c.Transfer(r.Requester, r.Amount); err != nil {
		return err
	}
	c.Emit("Withdrawn", ledger.Args{"id": id, "to": r.Requester, "amount": new(big.Int).Set(r.Amount)})
	w.log.Info("withdrawal executed",
		zap.Uint64("id", id),
		zap.String("to", r.Requester.Hex()),
		zap.String("amount", r.Amount.String()),
	)
	return nil
}

// Receive accepts plain transfers, including routed mint fees.
func (w *Wallet) Receive(c *ledger.Call) error {
	return w.credit(c, "")
}

// MakePayment accepts a payment tagged with a free-form topic.
func (w *Wallet) MakePayment(c *ledger.Call, topic string) error {
	return w.credit(c, topic)
}

func (w *Wallet) credit(c *ledger.Call, topic string) error {
	if c.Value.Sign() == 0 {
		return revert.ErrZeroPayment
	}
	c.Emit("PaymentReceived", ledger.Args{
		"payer":  c.Sender,
		"origin": c.Origin,
		"amount": new(big.Int).Set(c.Value),
		"topic":  topic,
	})
	return nil
}

// ── views ────────────────────────────────────────────────────────────────────

func (w *Wallet) Address() common.Address { return w.addr }
func (w *Wallet) Threshold() uint64       { return w.threshold }
func (w *Wallet) TotalWeight() uint64     { return w.total }

func (w *Wallet) Owners() []Owner {
	return append([]Owner(nil), w.owners...)
}

// WeightOf returns addr's vote weight, zero for non-owners.
func (w *Wallet) WeightOf(addr common.Address) uint64 { return w.weights[addr] }

func (w *Wallet) Request(id uint64) (Request, bool) {
	r, ok := w.requests.Get(id)
	if ok {
		r.Amount = new(big.Int).Set(r.Amount)
	}
	return r, ok
}

func (w *Wallet) HasVoted(id uint64, owner common.Address) bool {
	return w.voted.At(voteKey{id, owner})
}
