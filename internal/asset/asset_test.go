package asset

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/0gfoundation/0g-mint-engine/internal/eip712"
	"github.com/0gfoundation/0g-mint-engine/internal/ledger"
	"github.com/0gfoundation/0g-mint-engine/internal/ledger/ledgertest"
	"github.com/0gfoundation/0g-mint-engine/internal/registry"
	"github.com/0gfoundation/0g-mint-engine/internal/revert"
	"github.com/0gfoundation/0g-mint-engine/internal/schedule"
	"github.com/0gfoundation/0g-mint-engine/internal/ticket"
	"github.com/0gfoundation/0g-mint-engine/internal/wallet"
)

const defaultRate = 500 // 5%

type fixture struct {
	l        *ledger.Ledger
	clk      *ledgertest.Clock
	platform common.Address
	signer   ledgertest.Account
	creator  common.Address
	buyer    common.Address

	reg     *registry.Registry
	sched   *schedule.Manager
	tickets *ticket.Manager
	wallet  *wallet.Wallet
	asset   *Asset
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	l, clk := ledgertest.New(t)
	f := &fixture{
		l:        l,
		clk:      clk,
		platform: ledgertest.NewAccount(t, l, 0).Addr,
		signer:   ledgertest.NewAccount(t, l, 0),
		creator:  ledgertest.NewAccount(t, l, 0).Addr,
		buyer:    ledgertest.NewAccount(t, l, 1_000_000).Addr,
	}

	var err error
	f.reg, err = registry.Deploy(ctx, l, f.platform, zap.NewNop())
	require.NoError(t, err)
	f.sched, err = schedule.Deploy(ctx, l, f.platform, defaultRate, zap.NewNop())
	require.NoError(t, err)
	f.tickets, err = ticket.Deploy(ctx, l, f.platform, f.signer.Addr, zap.NewNop())
	require.NoError(t, err)
	f.wallet, err = wallet.Deploy(ctx, l, f.platform, wallet.Config{
		Owners:         []wallet.Owner{{Addr: f.platform, Weight: 1}},
		ConsensusRatio: 100,
	}, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, f.asPlatform(f.reg.Address(), func(c *ledger.Call) error {
		return f.reg.RegisterContractMultiple(c,
			[]common.Address{f.sched.Address(), f.tickets.Address(), f.wallet.Address()},
			[]string{registry.TopicScheduleManager, registry.TopicTicketManager, registry.TopicTreasury},
		)
	}))

	f.asset, err = Deploy(ctx, l, f.creator, f.reg, Config{
		Name:      "Genesis",
		Symbol:    "GEN",
		MaxSupply: 10,
		Signer:    f.signer.Addr,
		CoverURI:  "ipfs://cover",
	}, zap.NewNop())
	require.NoError(t, err)
	return f
}

func (f *fixture) asPlatform(to common.Address, fn func(c *ledger.Call) error) error {
	return ledgertest.Exec(f.l, f.platform, to, nil, fn)
}

func (f *fixture) asCreator(fn func(c *ledger.Call) error) error {
	return ledgertest.Exec(f.l, f.creator, f.asset.Address(), nil, fn)
}

// open starts the public sale at basePrice and schedules group for an hour.
func (f *fixture) open(t *testing.T, group uint64, basePrice, unitPrice int64, total, perRequester uint64) {
	t.Helper()
	require.NoError(t, f.asCreator(func(c *ledger.Call) error {
		return f.asset.SetPublicSale(c, true, big.NewInt(basePrice))
	}))
	require.NoError(t, ledgertest.Exec(f.l, f.creator, f.sched.Address(), nil, func(c *ledger.Call) error {
		return f.sched.SetPublicMintSchedule(c, f.asset.Address(), group, schedule.Schedule{
			EndTimestamp:    f.clk.Unix() + 3600,
			UnitPrice:       big.NewInt(unitPrice),
			TotalOpened:     total,
			MaxPerRequester: perRequester,
		})
	}))
}

func (f *fixture) payload(t *testing.T, sender common.Address, topic string, group uint64) *eip712.Payload {
	t.Helper()
	p := &eip712.Payload{Sender: sender, Topic: topic, Nonce: new(big.Int).SetUint64(group)}
	require.NoError(t, eip712.SignPayload(p, f.signer.Key, eip712.PayloadDomain(ledgertest.ChainID, f.asset.Address())))
	return p
}

func (f *fixture) mintPublic(from, to common.Address, qty, group uint64, value int64, p *eip712.Payload) (*ledger.Receipt, error) {
	return f.l.Execute(context.Background(), from, f.asset.Address(), big.NewInt(value), func(c *ledger.Call) error {
		return f.asset.MintPublic(c, to, qty, group, p)
	})
}

func (f *fixture) issueTicket(t *testing.T, qty, price int64, group uint64) *eip712.Ticket {
	t.Helper()
	tk := &eip712.Ticket{
		Beneficiary: f.buyer,
		Asset:       f.asset.Address(),
		UnitPrice:   big.NewInt(price),
		Quantity:    big.NewInt(qty),
		GroupID:     new(big.Int).SetUint64(group),
	}
	require.NoError(t, eip712.SignTicket(tk, f.signer.Key, f.tickets.Domain()))
	return tk
}

func (f *fixture) balance(addr common.Address) int64 { return f.l.Balance(addr).Int64() }

func TestMintPublic_RoutesFee(t *testing.T) {
	f := newFixture(t)
	f.open(t, 1, 100, 100, 10, 5)
	recipient := ledgertest.NewAccount(t, f.l, 0).Addr

	_, err := f.mintPublic(f.buyer, recipient, 3, 1, 300, f.payload(t, f.buyer, TopicMint, 1))
	require.NoError(t, err)

	require.Equal(t, uint64(3), f.asset.TotalSupply())
	require.Equal(t, uint64(3), f.asset.BalanceOf(recipient))
	for id := uint64(1); id <= 3; id++ {
		owner, err := f.asset.OwnerOf(id)
		require.NoError(t, err)
		require.Equal(t, recipient, owner)
	}
	require.Equal(t, int64(15), f.balance(f.wallet.Address()))
	require.Equal(t, int64(285), f.balance(f.asset.Address()))
	require.Equal(t, uint64(3), f.sched.Consumed(f.asset.Address(), 1, f.buyer))
}

func TestMintPublic_FeeDustStaysInAsset(t *testing.T) {
	f := newFixture(t)
	f.open(t, 1, 0, 0, 10, 10)
	require.NoError(t, f.asPlatform(f.sched.Address(), func(c *ledger.Call) error {
		return f.sched.SetSpecialFeeRate(c, f.asset.Address(), 333)
	}))

	// 101 * 333 / 10000 = 3.3633, truncated to 3.
	_, err := f.mintPublic(f.buyer, f.buyer, 1, 1, 101, f.payload(t, f.buyer, TopicMint, 1))
	require.NoError(t, err)
	require.Equal(t, int64(3), f.balance(f.wallet.Address()))
	require.Equal(t, int64(98), f.balance(f.asset.Address()))
}

func TestFee(t *testing.T) {
	require.Equal(t, int64(0), Fee(big.NewInt(19), 500).Int64())
	require.Equal(t, int64(1), Fee(big.NewInt(20), 500).Int64())
	require.Equal(t, int64(9_999), Fee(big.NewInt(10_000), 9_999).Int64())
	require.Zero(t, Fee(nil, 500).Sign())
}

func TestMintPublic_ScenarioC_Underpaid(t *testing.T) {
	f := newFixture(t)
	f.open(t, 1, 100, 100, 10, 10)
	before := f.balance(f.buyer)

	_, err := f.mintPublic(f.buyer, f.buyer, 3, 1, 299, f.payload(t, f.buyer, TopicMint, 1))
	require.ErrorIs(t, err, revert.ErrUnderpaid)

	require.Zero(t, f.asset.TotalSupply())
	require.Zero(t, f.sched.GroupConsumed(f.asset.Address(), 1))
	require.Equal(t, before, f.balance(f.buyer))
	require.Zero(t, f.balance(f.wallet.Address()))
}

// The schedule price is enforced even when the base price is lower.
func TestMintPublic_UnderpaidAgainstSchedule(t *testing.T) {
	f := newFixture(t)
	f.open(t, 1, 0, 100, 10, 10)

	_, err := f.mintPublic(f.buyer, f.buyer, 2, 1, 150, f.payload(t, f.buyer, TopicMint, 1))
	require.ErrorIs(t, err, revert.ErrUnderpaid)
	require.Zero(t, f.asset.TotalSupply())
}

func TestMintPublic_ScenarioE_Expired(t *testing.T) {
	f := newFixture(t)
	f.open(t, 1, 0, 0, 10, 10)

	f.clk.Advance(2 * time.Hour)
	_, err := f.mintPublic(f.buyer, f.buyer, 1, 1, 0, f.payload(t, f.buyer, TopicMint, 1))
	require.ErrorIs(t, err, revert.ErrScheduleExpired)
	require.Zero(t, f.asset.TotalSupply())
}

func TestMintPublic_SupplyExceeded(t *testing.T) {
	f := newFixture(t)
	f.open(t, 1, 0, 0, 100, 100)
	p := f.payload(t, f.buyer, TopicMint, 1)

	_, err := f.mintPublic(f.buyer, f.buyer, 11, 1, 0, p)
	require.ErrorIs(t, err, revert.ErrSupplyExceeded)

	_, err = f.mintPublic(f.buyer, f.buyer, 10, 1, 0, p)
	require.NoError(t, err)
	_, err = f.mintPublic(f.buyer, f.buyer, 1, 1, 0, p)
	require.ErrorIs(t, err, revert.ErrSupplyExceeded)
}

func TestMintPublic_SaleState(t *testing.T) {
	f := newFixture(t)
	p := f.payload(t, f.buyer, TopicMint, 1)

	_, err := f.mintPublic(f.buyer, f.buyer, 1, 1, 0, p)
	require.ErrorIs(t, err, revert.ErrSaleNotActive)

	f.open(t, 1, 0, 0, 10, 10)
	require.ErrorIs(t, ledgertest.Exec(f.l, f.buyer, f.asset.Address(), nil, f.asset.EndSale), revert.ErrNotOwner)
	require.NoError(t, f.asCreator(f.asset.EndSale))
	require.True(t, f.asset.SaleEnded())

	_, err = f.mintPublic(f.buyer, f.buyer, 1, 1, 0, p)
	require.ErrorIs(t, err, revert.ErrSaleEnded)
	require.ErrorIs(t, f.asCreator(f.asset.EndSale), revert.ErrSaleEnded)
	require.ErrorIs(t, f.asCreator(func(c *ledger.Call) error {
		return f.asset.SetPublicSale(c, true, nil)
	}), revert.ErrSaleEnded)
}

func TestMintPublic_InvalidQuantity(t *testing.T) {
	f := newFixture(t)
	f.open(t, 1, 0, 0, 10, 10)

	_, err := f.mintPublic(f.buyer, f.buyer, 0, 1, 0, f.payload(t, f.buyer, TopicMint, 1))
	require.ErrorIs(t, err, revert.ErrInvalidQuantity)
}

func TestMintPublic_CallerMustBeAccount(t *testing.T) {
	f := newFixture(t)
	f.open(t, 1, 0, 0, 10, 10)
	wrapper := ledgertest.Stub(t, f.l, f.buyer)

	_, err := f.mintPublic(wrapper, f.buyer, 1, 1, 0, f.payload(t, wrapper, TopicMint, 1))
	require.ErrorIs(t, err, revert.ErrCallerMustBeAccount)
}

func TestMintPublic_PayloadChecks(t *testing.T) {
	f := newFixture(t)
	f.open(t, 1, 0, 0, 10, 10)
	other := ledgertest.NewAccount(t, f.l, 0).Addr

	_, err := f.mintPublic(f.buyer, f.buyer, 1, 1, 0, f.payload(t, f.buyer, TopicTicket, 1))
	require.ErrorIs(t, err, revert.ErrTopicMismatch)

	_, err = f.mintPublic(f.buyer, f.buyer, 1, 1, 0, f.payload(t, other, TopicMint, 1))
	require.ErrorIs(t, err, revert.ErrSenderMismatch)

	_, err = f.mintPublic(f.buyer, f.buyer, 1, 1, 0, f.payload(t, f.buyer, TopicMint, 2))
	require.ErrorIs(t, err, revert.ErrNonceMismatch)

	// A payload signed for another asset does not verify here.
	p := &eip712.Payload{Sender: f.buyer, Topic: TopicMint, Nonce: big.NewInt(1)}
	require.NoError(t, eip712.SignPayload(p, f.signer.Key, eip712.PayloadDomain(ledgertest.ChainID, other)))
	_, err = f.mintPublic(f.buyer, f.buyer, 1, 1, 0, p)
	require.ErrorIs(t, err, revert.ErrSignerMismatch)
}

// Payloads are not consumed: the same payload mints again within its group
// until the schedule's caps stop it.
func TestMintPublic_PayloadReuseWithinGroup(t *testing.T) {
	f := newFixture(t)
	f.open(t, 1, 0, 0, 10, 2)
	p := f.payload(t, f.buyer, TopicMint, 1)

	for i := 0; i < 2; i++ {
		_, err := f.mintPublic(f.buyer, f.buyer, 1, 1, 0, p)
		require.NoError(t, err)
	}
	_, err := f.mintPublic(f.buyer, f.buyer, 1, 1, 0, p)
	require.ErrorIs(t, err, revert.ErrPerRequesterCapExceeded)
}

type rejectingTreasury struct{}

func (rejectingTreasury) Receive(*ledger.Call) error { return errors.New("treasury paused") }

func TestMintPublic_FailingTreasuryRevertsMint(t *testing.T) {
	f := newFixture(t)
	f.open(t, 1, 10, 10, 10, 10)
	bad, _, err := f.l.Deploy(context.Background(), f.platform, func(*ledger.Call) (any, error) {
		return rejectingTreasury{}, nil
	})
	require.NoError(t, err)
	require.NoError(t, f.asPlatform(f.reg.Address(), func(c *ledger.Call) error {
		return f.reg.RegisterContract(c, bad, registry.TopicTreasury)
	}))
	before := f.balance(f.buyer)

	_, err = f.mintPublic(f.buyer, f.buyer, 2, 1, 20, f.payload(t, f.buyer, TopicMint, 1))
	require.Error(t, err)

	require.Zero(t, f.asset.TotalSupply())
	require.Zero(t, f.sched.GroupConsumed(f.asset.Address(), 1))
	require.Equal(t, before, f.balance(f.buyer))
}

func TestMintPublic_MissingCollaborators(t *testing.T) {
	f := newFixture(t)
	f.open(t, 1, 10, 10, 10, 10)
	p := f.payload(t, f.buyer, TopicMint, 1)

	require.NoError(t, f.asPlatform(f.reg.Address(), func(c *ledger.Call) error {
		return f.reg.RemoveContract(c, f.wallet.Address())
	}))
	_, err := f.mintPublic(f.buyer, f.buyer, 1, 1, 100, p)
	require.ErrorIs(t, err, revert.ErrContractNotFound)
	require.Zero(t, f.asset.TotalSupply())

	require.NoError(t, f.asPlatform(f.reg.Address(), func(c *ledger.Call) error {
		return f.reg.RemoveContract(c, f.sched.Address())
	}))
	_, err = f.mintPublic(f.buyer, f.buyer, 1, 1, 100, p)
	require.ErrorIs(t, err, revert.ErrContractNotFound)
}

func (f *fixture) mintWithTicket(qty, group uint64, value int64, tk *eip712.Ticket, p *eip712.Payload) error {
	return ledgertest.Exec(f.l, f.buyer, f.asset.Address(), big.NewInt(value), func(c *ledger.Call) error {
		return f.asset.MintWithTicket(c, f.buyer, qty, group, tk, p)
	})
}

func TestMintWithTicket(t *testing.T) {
	f := newFixture(t)
	tk := f.issueTicket(t, 5, 40, 7)
	p := f.payload(t, f.buyer, TopicTicket, 7)

	require.NoError(t, f.mintWithTicket(3, 7, 120, tk, p))
	require.Equal(t, uint64(3), f.asset.TotalSupply())
	require.Equal(t, uint64(2), f.tickets.Remaining(tk))
	require.Equal(t, int64(6), f.balance(f.wallet.Address()))

	require.ErrorIs(t, f.mintWithTicket(3, 7, 120, tk, p), revert.ErrInsufficientTicketBalance)
	require.NoError(t, f.mintWithTicket(2, 7, 80, tk, p))
	require.Zero(t, f.tickets.Remaining(tk))
}

func TestMintWithTicket_Errors(t *testing.T) {
	f := newFixture(t)
	tk := f.issueTicket(t, 5, 40, 7)

	require.ErrorIs(t, f.mintWithTicket(1, 7, 39, tk, f.payload(t, f.buyer, TopicTicket, 7)), revert.ErrUnderpaid)
	require.ErrorIs(t, f.mintWithTicket(1, 7, 40, tk, f.payload(t, f.buyer, TopicMint, 7)), revert.ErrTopicMismatch)
	// Presenting the ticket to another group breaks its signature.
	require.ErrorIs(t, f.mintWithTicket(1, 8, 40, tk, f.payload(t, f.buyer, TopicTicket, 8)), revert.ErrInvalidTicketSigner)

	other := f.issueTicket(t, 5, 40, 7)
	other.Beneficiary = ledgertest.NewAccount(t, f.l, 0).Addr
	require.NoError(t, eip712.SignTicket(other, f.signer.Key, f.tickets.Domain()))
	require.ErrorIs(t, f.mintWithTicket(1, 7, 40, other, f.payload(t, f.buyer, TopicTicket, 7)), revert.ErrWrongBeneficiary)

	require.Zero(t, f.asset.TotalSupply())
}

// A negated price encodes to the same signed bytes; it must not make the
// mint free.
func TestMintWithTicket_NegativePrice(t *testing.T) {
	f := newFixture(t)
	tk := f.issueTicket(t, 5, 100, 7)
	tk.UnitPrice = big.NewInt(-100)

	err := f.mintWithTicket(5, 7, 0, tk, f.payload(t, f.buyer, TopicTicket, 7))
	require.ErrorIs(t, err, revert.ErrInvalidTicketSigner)
	require.Zero(t, f.asset.TotalSupply())
}

func TestCheckPaid_NegativePrice(t *testing.T) {
	require.ErrorIs(t, checkPaid(big.NewInt(0), big.NewInt(-1), 3), revert.ErrUnderpaid)
	require.NoError(t, checkPaid(big.NewInt(0), nil, 3))
	require.NoError(t, checkPaid(big.NewInt(30), big.NewInt(10), 3))
}

// Tickets bypass the public schedule but not the sale latch.
func TestMintWithTicket_IgnoresPublicSaleFlag(t *testing.T) {
	f := newFixture(t)
	tk := f.issueTicket(t, 5, 0, 1)
	p := f.payload(t, f.buyer, TopicTicket, 1)

	require.NoError(t, f.mintWithTicket(1, 1, 0, tk, p))

	require.NoError(t, f.asCreator(f.asset.EndSale))
	require.ErrorIs(t, f.mintWithTicket(1, 1, 0, tk, p), revert.ErrSaleEnded)
}

func TestMintDirect(t *testing.T) {
	f := newFixture(t)
	recipient := ledgertest.NewAccount(t, f.l, 0).Addr
	operator := ledgertest.Stub(t, f.l, f.platform)
	mintDirect := func(from common.Address, qty uint64) error {
		return ledgertest.Exec(f.l, from, f.asset.Address(), nil, func(c *ledger.Call) error {
			return f.asset.MintDirect(c, recipient, qty)
		})
	}

	require.ErrorIs(t, mintDirect(operator, 1), revert.ErrNotAuthorized)
	require.NoError(t, f.asPlatform(f.reg.Address(), func(c *ledger.Call) error {
		return f.reg.RegisterContract(c, operator, registry.TopicMintOperator)
	}))

	require.NoError(t, mintDirect(operator, 4))
	require.NoError(t, mintDirect(f.creator, 6))
	require.ErrorIs(t, mintDirect(f.buyer, 1), revert.ErrNotAuthorized)
	require.ErrorIs(t, mintDirect(f.creator, 1), revert.ErrSupplyExceeded)
	require.Equal(t, uint64(10), f.asset.BalanceOf(recipient))
}

func TestRevealAndTokenURI(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.asCreator(func(c *ledger.Call) error { return f.asset.MintDirect(c, f.buyer, 2) }))
	require.NoError(t, f.asCreator(func(c *ledger.Call) error { return f.asset.SetMetadataURI(c, "ipfs://meta") }))

	uri, err := f.asset.TokenURI(1)
	require.NoError(t, err)
	require.Equal(t, "ipfs://cover", uri)

	require.ErrorIs(t, ledgertest.Exec(f.l, f.buyer, f.asset.Address(), nil, f.asset.Reveal), revert.ErrNotOwner)
	require.NoError(t, f.asCreator(f.asset.Reveal))
	require.ErrorIs(t, f.asCreator(f.asset.Reveal), revert.ErrAlreadyRevealed)

	for _, id := range []uint64{1, 2} {
		uri, err = f.asset.TokenURI(id)
		require.NoError(t, err)
		require.Equal(t, "ipfs://meta", uri)
	}
	_, err = f.asset.TokenURI(0)
	require.ErrorIs(t, err, revert.ErrTokenNotFound)
	_, err = f.asset.TokenURI(3)
	require.ErrorIs(t, err, revert.ErrTokenNotFound)
}

type seedConsumer struct{ fail bool }

func (s *seedConsumer) OnReveal(c *ledger.Call, asset common.Address, seed common.Hash) error {
	c.Emit("SeedConsumed", ledger.Args{"asset": asset, "seed": seed})
	if s.fail {
		return errors.New("consumer rejected seed")
	}
	return nil
}

func eventNames(r *ledger.Receipt) []string {
	names := make([]string, 0, len(r.Events))
	for _, e := range r.Events {
		names = append(names, e.Name)
	}
	return names
}

func TestReveal_ConsumerCallback(t *testing.T) {
	for _, fail := range []bool{false, true} {
		f := newFixture(t)
		consumer, _, err := f.l.Deploy(context.Background(), f.platform, func(*ledger.Call) (any, error) {
			return &seedConsumer{fail: fail}, nil
		})
		require.NoError(t, err)

		setConsumer := func(c *ledger.Call) error { return f.asset.SetRevealConsumer(c, consumer) }
		require.ErrorIs(t, f.asCreator(setConsumer), revert.ErrNotAuthorized)
		require.NoError(t, f.asPlatform(f.reg.Address(), func(c *ledger.Call) error {
			return f.reg.AddRole(c, []common.Address{consumer}, registry.RoleRandomness)
		}))
		require.NoError(t, f.asCreator(setConsumer))

		r, err := f.l.Execute(context.Background(), f.creator, f.asset.Address(), nil, f.asset.Reveal)
		require.NoError(t, err, "a failing consumer never fails the reveal")
		require.True(t, f.asset.Revealed())

		last := r.Events[len(r.Events)-1]
		require.Equal(t, "RevealCallback", last.Name)
		require.Equal(t, !fail, last.Args["success"])
		if fail {
			require.NotContains(t, eventNames(r), "SeedConsumed")
		} else {
			require.Contains(t, eventNames(r), "SeedConsumed")
		}
	}
}

func TestWithdraw(t *testing.T) {
	f := newFixture(t)
	f.open(t, 1, 100, 100, 10, 10)
	_, err := f.mintPublic(f.buyer, f.buyer, 2, 1, 200, f.payload(t, f.buyer, TopicMint, 1))
	require.NoError(t, err)

	require.ErrorIs(t, ledgertest.Exec(f.l, f.buyer, f.asset.Address(), nil, f.asset.Withdraw), revert.ErrNotOwner)
	require.NoError(t, f.asCreator(f.asset.Withdraw))
	require.Equal(t, int64(190), f.balance(f.creator))
	require.Zero(t, f.balance(f.asset.Address()))
	require.Equal(t, int64(10), f.balance(f.wallet.Address()))
}

func TestTransferOwnership(t *testing.T) {
	f := newFixture(t)
	next := ledgertest.NewAccount(t, f.l, 0).Addr

	require.NoError(t, f.asCreator(func(c *ledger.Call) error { return f.asset.TransferOwnership(c, next) }))
	require.Equal(t, next, f.asset.Owner())
	require.ErrorIs(t, f.asCreator(f.asset.Reveal), revert.ErrNotOwner)
}

func TestTemplateClone(t *testing.T) {
	f := newFixture(t)
	tmpl, err := DeployTemplate(context.Background(), f.l, f.platform, f.reg, zap.NewNop())
	require.NoError(t, err)
	tenant := ledgertest.NewAccount(t, f.l, 0).Addr

	var clone *Asset
	require.NoError(t, ledgertest.Exec(f.l, tenant, tmpl.Address(), nil, func(c *ledger.Call) error {
		var err error
		clone, err = tmpl.Clone(c, Config{Name: "Tenant", MaxSupply: 3, Signer: f.signer.Addr})
		return err
	}))

	require.Equal(t, crypto.CreateAddress(tmpl.Address(), 0), clone.Address())
	require.Equal(t, tmpl.Address(), clone.Implementation())
	require.Equal(t, tenant, clone.Owner())
	require.True(t, tmpl.IsClone(clone.Address()))
	require.True(t, f.l.IsContract(clone.Address()))
	require.Equal(t, 1, tmpl.Clones())

	err = ledgertest.Exec(f.l, tenant, tmpl.Address(), nil, func(c *ledger.Call) error {
		_, err := tmpl.Clone(c, Config{Name: "Empty"})
		return err
	})
	require.ErrorIs(t, err, revert.ErrInvalidQuantity)
	require.Equal(t, 1, tmpl.Clones())
}
