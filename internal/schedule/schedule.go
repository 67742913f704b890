// Package schedule owns the public-sale schedules of every (asset, group)
// pair, the per-requester consumption counters, and the platform fee-rate
// table.
//
// A group is never reset: a fresh group id is the only way to start counting
// from zero again. Expiry is not stored; a schedule is expired whenever the
// block time is past its end timestamp.
package schedule

import (
	"context"
	"fmt"
	"math"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/0gfoundation/0g-mint-engine/internal/ledger"
	"github.com/0gfoundation/0g-mint-engine/internal/revert"
)

// RateDenominator is the fee-rate scale (basis points, 100% = 10000).
const RateDenominator = 10_000

// Schedule is the public-sale configuration of one group.
type Schedule struct {
	EndTimestamp    uint64   `json:"end_timestamp"`
	UnitPrice       *big.Int `json:"unit_price"`
	TotalOpened     uint64   `json:"total_opened"`
	MaxPerRequester uint64   `json:"max_per_requester"`
}

// Owned is implemented by contracts that report a single owner.
type Owned interface {
	Owner() common.Address
}

type groupKey struct {
	asset common.Address
	group uint64
}

type requesterKey struct {
	groupKey
	requester common.Address
}

type Manager struct {
	addr          common.Address
	owner         *ledger.Value[common.Address]
	schedules     *ledger.Table[groupKey, Schedule]
	groupConsumed *ledger.Table[groupKey, uint64]
	consumed      *ledger.Table[requesterKey, uint64]
	defaultRate   *ledger.Value[uint64]
	specialRates  *ledger.Table[common.Address, uint64]
	log           *zap.Logger
}

// New constructs the manager inside a deployment; the deployer owns the
// fee-rate table.
func New(c *ledger.Call, defaultRate uint64, log *zap.Logger) (*Manager, error) {
	if defaultRate >= RateDenominator {
		return nil, revert.ErrRateOutOfRange
	}
	return &Manager{
		addr:          c.Self,
		owner:         ledger.NewValue(c, c.Sender),
		schedules:     ledger.NewTable[groupKey, Schedule](c),
		groupConsumed: ledger.NewTable[groupKey, uint64](c),
		consumed:      ledger.NewTable[requesterKey, uint64](c),
		defaultRate:   ledger.NewValue(c, defaultRate),
		specialRates:  ledger.NewTable[common.Address, uint64](c),
		log:           log,
	}, nil
}

func Deploy(ctx context.Context, l *ledger.Ledger, owner common.Address, defaultRate uint64, log *zap.Logger) (*Manager, error) {
	var m *Manager
	_, _, err := l.Deploy(ctx, owner, func(c *ledger.Call) (any, error) {
		var err error
		m, err = New(c, defaultRate, log)
		return m, err
	})
	if err != nil {
		return nil, fmt.Errorf("deploy schedule manager: %w", err)
	}
	return m, nil
}

func (m *Manager) Address() common.Address { return m.addr }
func (m *Manager) Owner() common.Address   { return m.owner.Get() }

// SetPublicMintSchedule overwrites the schedule of (asset, group). Only the
// asset's own owner may call it.
func (m *Manager) SetPublicMintSchedule(c *ledger.Call, asset common.Address, group uint64, s Schedule) error {
	obj, ok := c.ContractAt(asset)
	if !ok {
		return revert.ErrNotAssetOwner
	}
	owned, ok := obj.(Owned)
	if !ok || owned.Owner() != c.Sender {
		return revert.ErrNotAssetOwner
	}
	price := new(big.Int)
	if s.UnitPrice != nil {
		price.Set(s.UnitPrice)
	}
	s.UnitPrice = price
	m.schedules.Set(groupKey{asset, group}, s)

	c.Emit("ScheduleSet", ledger.Args{
		"asset":           asset,
		"group":           group,
		"endTimestamp":    s.EndTimestamp,
		"unitPrice":       price,
		"totalOpened":     s.TotalOpened,
		"maxPerRequester": s.MaxPerRequester,
	})
	m.log.Info("public mint schedule set",
		zap.String("asset", asset.Hex()),
		zap.Uint64("group", group),
		zap.Uint64("end", s.EndTimestamp),
		zap.Uint64("total", s.TotalOpened),
	)
	return nil
}

// Reserve checks and commits quantity against the group's supply and the
// requester's cap, and returns the fee rate for asset. Only the asset
// contract itself may reserve. Either both counters move or neither does.
func (m *Manager) Reserve(c *ledger.Call, asset common.Address, group uint64, requester common.Address, quantity uint64, paid *big.Int) (uint64, error) {
	if c.Sender != asset {
		return 0, revert.ErrNotAuthorized
	}
	gk := groupKey{asset, group}
	s, ok := m.schedules.Get(gk)
	if !ok || c.Now() > s.EndTimestamp {
		return 0, revert.ErrScheduleExpired
	}
	cost := new(big.Int).Mul(s.UnitPrice, new(big.Int).SetUint64(quantity))
	if paid == nil || paid.Cmp(cost) < 0 {
		return 0, revert.ErrUnderpaid
	}
	rk := requesterKey{gk, requester}
	used, ok := addCapped(m.consumed.At(rk), quantity, s.MaxPerRequester)
	if !ok {
		return 0, revert.ErrPerRequesterCapExceeded
	}
	total, ok := addCapped(m.groupConsumed.At(gk), quantity, s.TotalOpened)
	if !ok {
		return 0, revert.ErrSupplyExhausted
	}

	m.consumed.Set(rk, used)
	m.groupConsumed.Set(gk, total)
	c.Emit("Reserved", ledger.Args{
		"asset":     asset,
		"group":     group,
		"requester": requester,
		"quantity":  quantity,
	})
	return m.GetFeeRate(asset), nil
}

// Schedule returns the schedule of (asset, group).
func (m *Manager) Schedule(asset common.Address, group uint64) (Schedule, bool) {
	return m.schedules.Get(groupKey{asset, group})
}

// Consumed returns how much requester has reserved in (asset, group).
func (m *Manager) Consumed(asset common.Address, group uint64, requester common.Address) uint64 {
	return m.consumed.At(requesterKey{groupKey{asset, group}, requester})
}

// GroupConsumed returns the cumulative reservations of (asset, group).
func (m *Manager) GroupConsumed(asset common.Address, group uint64) uint64 {
	return m.groupConsumed.At(groupKey{asset, group})
}

// ── fee rates ────────────────────────────────────────────────────────────────

func (m *Manager) onlyOwner(c *ledger.Call) error {
	if c.Sender != m.owner.Get() {
		return revert.ErrNotOwner
	}
	return nil
}

func (m *Manager) SetDefaultFeeRate(c *ledger.Call, rate uint64) error {
	if err := m.onlyOwner(c); err != nil {
		return err
	}
	if rate >= RateDenominator {
		return revert.ErrRateOutOfRange
	}
	m.defaultRate.Set(rate)
	c.Emit("FeeRateSet", ledger.Args{"rate": rate})
	return nil
}

func (m *Manager) SetSpecialFeeRate(c *ledger.Call, asset common.Address, rate uint64) error {
	if err := m.onlyOwner(c); err != nil {
		return err
	}
	if rate >= RateDenominator {
		return revert.ErrRateOutOfRange
	}
	m.specialRates.Set(asset, rate)
	c.Emit("FeeRateSet", ledger.Args{"asset": asset, "rate": rate})
	return nil
}

// RemoveSpecialFeeRate makes asset fall back to the default rate.
func (m *Manager) RemoveSpecialFeeRate(c *ledger.Call, asset common.Address) error {
	if err := m.onlyOwner(c); err != nil {
		return err
	}
	m.specialRates.Delete(asset)
	c.Emit("FeeRateRemoved", ledger.Args{"asset": asset})
	return nil
}

// GetFeeRate returns asset's special rate if one was set, else the default.
func (m *Manager) GetFeeRate(asset common.Address) uint64 {
	if r, ok := m.specialRates.Get(asset); ok {
		return r
	}
	return m.defaultRate.Get()
}

// addCapped returns cur+q if it neither overflows nor exceeds limit.
func addCapped(cur, q, limit uint64) (uint64, bool) {
	if q > math.MaxUint64-cur {
		return 0, false
	}
	sum := cur + q
	if sum > limit {
		return 0, false
	}
	return sum, true
}
