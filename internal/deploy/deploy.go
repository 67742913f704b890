// Package deploy brings up the platform contracts on a ledger, registers
// them under their canonical topics and records each address in the
// manifest.
package deploy

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/0gfoundation/0g-mint-engine/internal/asset"
	"github.com/0gfoundation/0g-mint-engine/internal/ledger"
	"github.com/0gfoundation/0g-mint-engine/internal/manifest"
	"github.com/0gfoundation/0g-mint-engine/internal/registry"
	"github.com/0gfoundation/0g-mint-engine/internal/schedule"
	"github.com/0gfoundation/0g-mint-engine/internal/ticket"
	"github.com/0gfoundation/0g-mint-engine/internal/wallet"
)

// Manifest names of the platform contracts.
const (
	NameRegistry = "ContractRegistry"
	NameTemplate = "AssetTemplate"
	tenantPrefix = "asset:"
)

// Params configures a platform deployment.
type Params struct {
	// Owner deploys and owns the registry, schedule and ticket managers.
	Owner          common.Address
	Signer         common.Address
	DefaultFeeRate uint64
	Wallet         wallet.Config
	// RandomnessOracles are granted RoleRandomness.
	RandomnessOracles []common.Address
}

// Stack is a deployed platform.
type Stack struct {
	Registry *registry.Registry
	Schedule *schedule.Manager
	Tickets  *ticket.Manager
	Wallet   *wallet.Wallet
	Template *asset.Template

	signer common.Address
	l      *ledger.Ledger
	rdb    *redis.Client
	log    *zap.Logger

	mu      sync.Mutex
	tenants map[common.Address]*asset.Asset
}

// Run deploys the platform. rdb may be nil, in which case nothing is
// written to the manifest. Tenant entries left by an earlier run point at
// a ledger that no longer exists and are removed first.
func Run(ctx context.Context, l *ledger.Ledger, rdb *redis.Client, p Params, log *zap.Logger) (*Stack, error) {
	s := &Stack{
		signer:  p.Signer,
		l:       l,
		rdb:     rdb,
		log:     log,
		tenants: make(map[common.Address]*asset.Asset),
	}

	if rdb != nil {
		n, err := manifest.DeletePrefix(ctx, rdb, tenantPrefix)
		if err != nil {
			return nil, err
		}
		if n > 0 {
			log.Info("pruned stale tenant manifest entries", zap.Int("count", n))
		}
	}

	reg, err := registry.Deploy(ctx, l, p.Owner, log)
	if err != nil {
		return nil, err
	}
	s.Registry = reg
	if err := s.record(ctx, NameRegistry, reg.Address(), common.Address{}); err != nil {
		return nil, err
	}

	if s.Schedule, err = schedule.Deploy(ctx, l, p.Owner, p.DefaultFeeRate, log); err != nil {
		return nil, err
	}
	if err := s.record(ctx, registry.TopicScheduleManager, s.Schedule.Address(), common.Address{}); err != nil {
		return nil, err
	}

	if s.Tickets, err = ticket.Deploy(ctx, l, p.Owner, p.Signer, log); err != nil {
		return nil, err
	}
	if err := s.record(ctx, registry.TopicTicketManager, s.Tickets.Address(), common.Address{}); err != nil {
		return nil, err
	}

	if s.Wallet, err = wallet.Deploy(ctx, l, p.Owner, p.Wallet, log); err != nil {
		return nil, err
	}
	if err := s.record(ctx, registry.TopicTreasury, s.Wallet.Address(), common.Address{}); err != nil {
		return nil, err
	}

	if s.Template, err = asset.DeployTemplate(ctx, l, p.Owner, reg, log); err != nil {
		return nil, err
	}
	if err := s.record(ctx, NameTemplate, s.Template.Address(), common.Address{}); err != nil {
		return nil, err
	}

	_, err = l.Execute(ctx, p.Owner, reg.Address(), nil, func(c *ledger.Call) error {
		err := reg.RegisterContractMultiple(c,
			[]common.Address{s.Schedule.Address(), s.Tickets.Address(), s.Wallet.Address()},
			[]string{registry.TopicScheduleManager, registry.TopicTicketManager, registry.TopicTreasury},
		)
		if err != nil {
			return err
		}
		if len(p.RandomnessOracles) > 0 {
			return reg.AddRole(c, p.RandomnessOracles, registry.RoleRandomness)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("register topics: %w", err)
	}

	log.Info("platform deployed",
		zap.String("registry", reg.Address().Hex()),
		zap.String("schedule", s.Schedule.Address().Hex()),
		zap.String("tickets", s.Tickets.Address().Hex()),
		zap.String("wallet", s.Wallet.Address().Hex()),
		zap.String("template", s.Template.Address().Hex()),
		zap.Uint64("block", l.BlockNumber()),
	)
	return s, nil
}

// Tenant clones a new asset owned by owner. A zero cfg.Signer defaults to
// the platform signer.
func (s *Stack) Tenant(ctx context.Context, owner common.Address, cfg asset.Config) (*asset.Asset, error) {
	if cfg.Signer == (common.Address{}) {
		cfg.Signer = s.signer
	}
	var a *asset.Asset
	_, err := s.l.Execute(ctx, owner, s.Template.Address(), nil, func(c *ledger.Call) error {
		var err error
		a, err = s.Template.Clone(c, cfg)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create tenant %s: %w", cfg.Symbol, err)
	}
	s.mu.Lock()
	s.tenants[a.Address()] = a
	s.mu.Unlock()
	if err := s.record(ctx, TenantName(a.Address()), a.Address(), a.Implementation()); err != nil {
		return nil, err
	}
	return a, nil
}

// Asset returns a tenant created through this stack.
func (s *Stack) Asset(addr common.Address) (*asset.Asset, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.tenants[addr]
	return a, ok
}

// TenantName is the manifest name of a tenant asset.
func TenantName(addr common.Address) string {
	return tenantPrefix + strings.ToLower(addr.Hex())
}

// Ledger returns the ledger the stack runs on.
func (s *Stack) Ledger() *ledger.Ledger { return s.l }

func (s *Stack) record(ctx context.Context, name string, addr, impl common.Address) error {
	if s.rdb == nil {
		return nil
	}
	e := manifest.Entry{Name: name, Address: addr, Implementation: impl, Block: s.l.BlockNumber()}
	if err := manifest.Save(ctx, s.rdb, e); err != nil {
		return fmt.Errorf("save manifest %s: %w", name, err)
	}
	return nil
}
