// Package ledger is the in-process host ledger the contracts run on.
//
// Transactions are strictly serialized. Every state change made while a
// transaction runs is journaled; if the transaction function returns an
// error, or panics, the journal is replayed backwards and the ledger is left exactly as
// it was before the transaction started.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/0gfoundation/0g-mint-engine/internal/revert"
)

const maxCallDepth = 64

var (
	ErrCallDepth = errors.New("max call depth exceeded")
	ErrPanic     = errors.New("contract panicked")
)

// Clock returns the time used as the block timestamp.
type Clock func() time.Time

// EventSink receives the events of every committed transaction.
type EventSink interface {
	Publish(ctx context.Context, events []Event) error
}

// Receiver is implemented by contracts that accept plain value transfers.
// c.Value carries the amount already credited to c.Self.
type Receiver interface {
	Receive(c *Call) error
}

// Args are the named fields of an event.
type Args map[string]any

// Event is a log entry emitted by a contract.
type Event struct {
	Block    uint64         `json:"block"`
	Contract common.Address `json:"contract"`
	Name     string         `json:"name"`
	Args     Args           `json:"args"`
}

// Receipt is the outcome of one transaction.
type Receipt struct {
	Block  uint64
	Status uint64 // types.ReceiptStatusSuccessful | types.ReceiptStatusFailed
	Events []Event
}

type Option func(*Ledger)

// WithClock overrides the block clock (default time.Now).
func WithClock(c Clock) Option { return func(l *Ledger) { l.clock = c } }

// WithSink publishes committed events to s.
func WithSink(s EventSink) Option { return func(l *Ledger) { l.sink = s } }

// Ledger holds balances, deployed contracts and the journal of the running
// transaction.
type Ledger struct {
	mu      sync.Mutex
	chainID *big.Int
	clock   Clock
	sink    EventSink
	log     *zap.Logger

	block     uint64
	balances  map[common.Address]*big.Int
	contracts map[common.Address]any
	nonces    map[common.Address]uint64

	active  bool
	now     uint64
	journal []func()
	pending []Event
}

func New(chainID *big.Int, log *zap.Logger, opts ...Option) *Ledger {
	l := &Ledger{
		chainID:   new(big.Int).Set(chainID),
		clock:     time.Now,
		log:       log,
		balances:  make(map[common.Address]*big.Int),
		contracts: make(map[common.Address]any),
		nonces:    make(map[common.Address]uint64),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// ChainID returns the chain id contracts bind their signatures to.
func (l *Ledger) ChainID() *big.Int { return new(big.Int).Set(l.chainID) }

// Fund credits amount to addr outside of any transaction (genesis allocation).
func (l *Ledger) Fund(addr common.Address, amount *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[addr] = new(big.Int).Add(l.balanceOf(addr), amount)
}

// Balance returns a copy of addr's native balance.
func (l *Ledger) Balance(addr common.Address) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(big.Int).Set(l.balanceOf(addr))
}

// IsContract reports whether a contract is deployed at addr.
func (l *Ledger) IsContract(addr common.Address) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.contracts[addr]
	return ok
}

// BlockNumber returns the number of the last mined block.
func (l *Ledger) BlockNumber() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.block
}

// View runs fn while no transaction can execute. Contract read methods
// called from other goroutines must go through View.
func (l *Ledger) View(fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fn()
}

// Execute runs fn as one transaction sent by from to to, carrying value.
// On error every change made by the transaction is rolled back and the
// error is returned with a failed receipt.
func (l *Ledger) Execute(ctx context.Context, from, to common.Address, value *big.Int, fn func(c *Call) error) (*Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	l.begin()
	c := &Call{l: l, Sender: from, Self: to, Origin: from, Value: amountOrZero(value)}
	err := l.move(from, to, c.Value)
	if err == nil {
		err = guard(c, fn)
	}
	if err != nil {
		r := l.rollback()
		l.log.Debug("tx reverted",
			zap.Uint64("block", r.Block),
			zap.String("from", from.Hex()),
			zap.String("to", to.Hex()),
			zap.String("reason", revert.CodeOf(err)),
			zap.Error(err),
		)
		return r, err
	}
	r := l.commit()
	l.publish(ctx, r.Events)
	return r, nil
}

// guard runs fn, turning a panic into ErrPanic so the caller rolls back.
func guard(c *Call, fn func(c *Call) error) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = fmt.Errorf("%w: %v", ErrPanic, v)
		}
	}()
	return fn(c)
}

// Send is a plain value transfer; if to is a Receiver its hook runs.
func (l *Ledger) Send(ctx context.Context, from, to common.Address, value *big.Int) (*Receipt, error) {
	return l.Execute(ctx, from, to, value, func(c *Call) error {
		if r, ok := c.l.contracts[to].(Receiver); ok {
			return r.Receive(c)
		}
		return nil
	})
}

// Deploy creates a contract at crypto.CreateAddress(deployer, nonce).
// build runs with c.Self set to the new address and c.Sender to deployer.
func (l *Ledger) Deploy(ctx context.Context, deployer common.Address, build func(c *Call) (any, error)) (common.Address, *Receipt, error) {
	var addr common.Address
	r, err := l.Execute(ctx, deployer, deployer, nil, func(c *Call) error {
		a, err := c.Deploy(build)
		addr = a
		return err
	})
	if err != nil {
		return common.Address{}, r, err
	}
	return addr, r, nil
}

func (l *Ledger) begin() {
	l.block++
	l.active = true
	l.now = uint64(l.clock().Unix())
	l.journal = l.journal[:0]
	l.pending = nil
}

func (l *Ledger) commit() *Receipt {
	r := &Receipt{Block: l.block, Status: types.ReceiptStatusSuccessful, Events: l.pending}
	l.active = false
	l.journal = l.journal[:0]
	l.pending = nil
	return r
}

func (l *Ledger) rollback() *Receipt {
	l.revertTo(snapshot{})
	l.active = false
	return &Receipt{Block: l.block, Status: types.ReceiptStatusFailed}
}

func (l *Ledger) publish(ctx context.Context, events []Event) {
	if l.sink == nil || len(events) == 0 {
		return
	}
	if err := l.sink.Publish(ctx, events); err != nil {
		l.log.Warn("event sink publish failed", zap.Uint64("block", l.block), zap.Error(err))
	}
}

type snapshot struct {
	journal int
	events  int
}

func (l *Ledger) snapshot() snapshot {
	return snapshot{journal: len(l.journal), events: len(l.pending)}
}

func (l *Ledger) revertTo(s snapshot) {
	for i := len(l.journal) - 1; i >= s.journal; i-- {
		l.journal[i]()
	}
	l.journal = l.journal[:s.journal]
	l.pending = l.pending[:s.events]
}

func (l *Ledger) record(undo func()) {
	if l.active {
		l.journal = append(l.journal, undo)
	}
}

func (l *Ledger) balanceOf(addr common.Address) *big.Int {
	if b, ok := l.balances[addr]; ok {
		return b
	}
	return new(big.Int)
}

func (l *Ledger) setBalance(addr common.Address, v *big.Int) {
	old, had := l.balances[addr]
	l.record(func() {
		if had {
			l.balances[addr] = old
		} else {
			delete(l.balances, addr)
		}
	})
	l.balances[addr] = v
}

func (l *Ledger) move(from, to common.Address, amount *big.Int) error {
	if amount.Sign() == 0 {
		return nil
	}
	if amount.Sign() < 0 {
		return revert.ErrInsufficientBalance
	}
	fromBal := l.balanceOf(from)
	if fromBal.Cmp(amount) < 0 {
		return revert.ErrInsufficientBalance
	}
	l.setBalance(from, new(big.Int).Sub(fromBal, amount))
	l.setBalance(to, new(big.Int).Add(l.balanceOf(to), amount))
	return nil
}

func (l *Ledger) deploy(deployer common.Address) common.Address {
	n := l.nonces[deployer]
	l.record(func() { l.nonces[deployer] = n })
	l.nonces[deployer] = n + 1
	return crypto.CreateAddress(deployer, n)
}

func (l *Ledger) setContract(addr common.Address, obj any) {
	l.record(func() { delete(l.contracts, addr) })
	l.contracts[addr] = obj
}

func amountOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}
