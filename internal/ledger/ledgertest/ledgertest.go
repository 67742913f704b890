// Package ledgertest provides helpers for tests that run contracts on an
// in-process ledger.
package ledgertest

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/0gfoundation/0g-mint-engine/internal/ledger"
)

// ChainID used by every test ledger.
var ChainID = big.NewInt(31337)

// Clock is a settable block clock.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(start time.Time) *Clock { return &Clock{now: start} }

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Unix returns the current clock value in unix seconds.
func (c *Clock) Unix() uint64 { return uint64(c.Now().Unix()) }

// New returns a ledger driven by a fresh clock starting at 1_700_000_000.
func New(t *testing.T, opts ...ledger.Option) (*ledger.Ledger, *Clock) {
	t.Helper()
	clk := NewClock(time.Unix(1_700_000_000, 0))
	opts = append([]ledger.Option{ledger.WithClock(clk.Now)}, opts...)
	return ledger.New(ChainID, zap.NewNop(), opts...), clk
}

// Account is an externally owned account with its key.
type Account struct {
	Key  *ecdsa.PrivateKey
	Addr common.Address
}

// NewAccount generates a key and funds its address with balance.
func NewAccount(t *testing.T, l *ledger.Ledger, balance int64) Account {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	a := Account{Key: key, Addr: crypto.PubkeyToAddress(key.PublicKey)}
	if balance > 0 {
		l.Fund(a.Addr, big.NewInt(balance))
	}
	return a
}

type stub struct{}

// Stub deploys an empty contract and returns its address.
func Stub(t *testing.T, l *ledger.Ledger, deployer common.Address) common.Address {
	t.Helper()
	addr, _, err := l.Deploy(context.Background(), deployer, func(*ledger.Call) (any, error) {
		return stub{}, nil
	})
	if err != nil {
		t.Fatalf("deploy stub: %v", err)
	}
	return addr
}

// Exec runs fn as a transaction from -> to carrying value (may be nil).
func Exec(l *ledger.Ledger, from, to common.Address, value *big.Int, fn func(c *ledger.Call) error) error {
	_, err := l.Execute(context.Background(), from, to, value, fn)
	return err
}
