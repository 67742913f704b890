package chain

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/0gfoundation/0g-mint-engine/internal/config"
	"github.com/0gfoundation/0g-mint-engine/internal/registry"
)

// RegistryABI is the read surface of a deployed contract registry.
const RegistryABI = `[
	{"type":"function","name":"getContract","stateMutability":"view",
	 "inputs":[{"name":"topic","type":"string"}],
	 "outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"checkRegistration","stateMutability":"view",
	 "inputs":[{"name":"addr","type":"address"}],
	 "outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"hasRole","stateMutability":"view",
	 "inputs":[{"name":"addr","type":"address"},{"name":"role","type":"uint8"}],
	 "outputs":[{"name":"","type":"bool"}]}
]`

var registryABI = mustParseABI(RegistryABI)

func mustParseABI(s string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic(fmt.Sprintf("parse registry abi: %v", err))
	}
	return parsed
}

// RegistryClient reads a contract registry deployed on a remote chain.
type RegistryClient struct {
	eth      *ethclient.Client
	contract *bind.BoundContract
	addr     common.Address
}

// NewRegistryClient binds the registry at addr on backend.
func NewRegistryClient(addr common.Address, backend bind.ContractCaller) *RegistryClient {
	return &RegistryClient{
		contract: bind.NewBoundContract(addr, registryABI, backend, nil, nil),
		addr:     addr,
	}
}

// Dial connects to cfg.Chain.RPCURL and binds cfg.Chain.RegistryAddress.
func Dial(ctx context.Context, cfg *config.Config) (*RegistryClient, error) {
	if !common.IsHexAddress(cfg.Chain.RegistryAddress) {
		return nil, fmt.Errorf("invalid registry address %q", cfg.Chain.RegistryAddress)
	}
	eth, err := ethclient.DialContext(ctx, cfg.Chain.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}
	c := NewRegistryClient(common.HexToAddress(cfg.Chain.RegistryAddress), eth)
	c.eth = eth
	return c, nil
}

func (c *RegistryClient) Address() common.Address { return c.addr }

// Close releases the RPC connection, if any.
func (c *RegistryClient) Close() {
	if c.eth != nil {
		c.eth.Close()
	}
}

// BlockNumber returns the head of the connected chain.
func (c *RegistryClient) BlockNumber(ctx context.Context) (uint64, error) {
	if c.eth == nil {
		return 0, fmt.Errorf("no rpc connection")
	}
	return c.eth.BlockNumber(ctx)
}

// GetContract resolves topic; the zero address means unregistered.
func (c *RegistryClient) GetContract(ctx context.Context, topic string) (common.Address, error) {
	var out []any
	if err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, "getContract", topic); err != nil {
		return common.Address{}, fmt.Errorf("getContract: %w", err)
	}
	return *abi.ConvertType(out[0], new(common.Address)).(*common.Address), nil
}

func (c *RegistryClient) CheckRegistration(ctx context.Context, addr common.Address) (bool, error) {
	var out []any
	if err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, "checkRegistration", addr); err != nil {
		return false, fmt.Errorf("checkRegistration: %w", err)
	}
	return *abi.ConvertType(out[0], new(bool)).(*bool), nil
}

func (c *RegistryClient) HasRole(ctx context.Context, addr common.Address, role registry.Role) (bool, error) {
	var out []any
	if err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, "hasRole", addr, uint8(role)); err != nil {
		return false, fmt.Errorf("hasRole: %w", err)
	}
	return *abi.ConvertType(out[0], new(bool)).(*bool), nil
}
