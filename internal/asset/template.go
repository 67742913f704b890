package asset

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/0gfoundation/0g-mint-engine/internal/ledger"
	"github.com/0gfoundation/0g-mint-engine/internal/registry"
)

// Template is the shared implementation per-tenant assets are cloned from.
// Clones are deployed from the template's own address, so their addresses
// follow its nonce, and each clone reports the template as Implementation.
type Template struct {
	addr     common.Address
	registry registry.Reader
	clones   *ledger.Table[common.Address, common.Address]
	log      *zap.Logger
}

func NewTemplate(c *ledger.Call, reg registry.Reader, log *zap.Logger) *Template {
	return &Template{
		addr:     c.Self,
		registry: reg,
		clones:   ledger.NewTable[common.Address, common.Address](c),
		log:      log,
	}
}

func DeployTemplate(ctx context.Context, l *ledger.Ledger, deployer common.Address, reg registry.Reader, log *zap.Logger) (*Template, error) {
	var t *Template
	_, _, err := l.Deploy(ctx, deployer, func(c *ledger.Call) (any, error) {
		t = NewTemplate(c, reg, log)
		return t, nil
	})
	if err != nil {
		return nil, fmt.Errorf("deploy asset template: %w", err)
	}
	return t, nil
}

func (t *Template) Address() common.Address { return t.addr }

// Clone creates a new asset. A zero cfg.Owner makes the caller the owner.
func (t *Template) Clone(c *ledger.Call, cfg Config) (*Asset, error) {
	if cfg.Owner == (common.Address{}) {
		cfg.Owner = c.Sender
	}
	var a *Asset
	addr, err := c.Deploy(func(sub *ledger.Call) (any, error) {
		var err error
		a, err = newAsset(sub, t.registry, cfg, t.addr, t.log)
		return a, err
	})
	if err != nil {
		return nil, fmt.Errorf("clone asset: %w", err)
	}
	t.clones.Set(addr, cfg.Owner)
	c.Emit("AssetCloned", ledger.Args{"asset": addr, "owner": cfg.Owner, "implementation": t.addr})
	t.log.Info("asset cloned",
		zap.String("asset", addr.Hex()),
		zap.String("owner", cfg.Owner.Hex()),
		zap.String("name", cfg.Name),
	)
	return a, nil
}

// IsClone reports whether addr was cloned from this template.
func (t *Template) IsClone(addr common.Address) bool {
	_, ok := t.clones.Get(addr)
	return ok
}

// Clones returns the number of assets cloned so far.
func (t *Template) Clones() int { return t.clones.Len() }
