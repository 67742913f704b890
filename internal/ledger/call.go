package ledger

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Call is the execution context of one contract invocation.
type Call struct {
	l     *Ledger
	depth int

	Sender common.Address // immediate caller (msg.sender)
	Self   common.Address // contract being executed
	Origin common.Address // externally owned account that sent the tx
	Value  *big.Int       // value credited to Self by this call
}

// Now returns the block timestamp in unix seconds.
func (c *Call) Now() uint64 { return c.l.now }

// Block returns the current block number.
func (c *Call) Block() uint64 { return c.l.block }

// ChainID returns the ledger chain id.
func (c *Call) ChainID() *big.Int { return new(big.Int).Set(c.l.chainID) }

// Balance returns a copy of addr's balance as seen inside the transaction.
func (c *Call) Balance(addr common.Address) *big.Int {
	return new(big.Int).Set(c.l.balanceOf(addr))
}

// IsContract reports whether addr has a deployed contract.
func (c *Call) IsContract(addr common.Address) bool {
	_, ok := c.l.contracts[addr]
	return ok
}

// ContractAt returns the contract object deployed at addr.
func (c *Call) ContractAt(addr common.Address) (any, bool) {
	obj, ok := c.l.contracts[addr]
	return obj, ok
}

// Emit appends an event from c.Self to the transaction log.
func (c *Call) Emit(name string, args Args) {
	c.l.pending = append(c.l.pending, Event{
		Block:    c.l.block,
		Contract: c.Self,
		Name:     name,
		Args:     args,
	})
}

// Invoke moves value from c.Self to to and returns the nested call context,
// whose Sender is c.Self.
func (c *Call) Invoke(to common.Address, value *big.Int) (*Call, error) {
	if c.depth+1 > maxCallDepth {
		return nil, ErrCallDepth
	}
	v := amountOrZero(value)
	if err := c.l.move(c.Self, to, v); err != nil {
		return nil, err
	}
	return &Call{l: c.l, depth: c.depth + 1, Sender: c.Self, Self: to, Origin: c.Origin, Value: v}, nil
}

// Transfer sends amount from c.Self to to. If to is a Receiver its hook runs
// and any error it returns is propagated.
func (c *Call) Transfer(to common.Address, amount *big.Int) error {
	sub, err := c.Invoke(to, amount)
	if err != nil {
		return err
	}
	if r, ok := c.l.contracts[to].(Receiver); ok {
		return r.Receive(sub)
	}
	return nil
}

// Try runs fn and, if it fails, rolls back only the changes fn made. The
// error is returned to the caller instead of aborting the transaction. A
// panic in fn counts as a failure.
func (c *Call) Try(fn func() error) error {
	s := c.l.snapshot()
	if err := guard(c, func(*Call) error { return fn() }); err != nil {
		c.l.revertTo(s)
		return err
	}
	return nil
}

// Deploy creates a contract owned by c.Self's nonce sequence.
func (c *Call) Deploy(build func(c *Call) (any, error)) (common.Address, error) {
	addr := c.l.deploy(c.Self)
	sub := &Call{l: c.l, depth: c.depth + 1, Sender: c.Self, Self: addr, Origin: c.Origin, Value: new(big.Int)}
	// Registered before build so the constructor sees its own code.
	c.l.setContract(addr, struct{}{})
	obj, err := build(sub)
	if err != nil {
		return common.Address{}, err
	}
	c.l.contracts[addr] = obj
	return addr, nil
}
