package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/Iwinswap/iwinswap-yield-aggregator-go/adapter"
	"github.com/Iwinswap/iwinswap-yield-aggregator-go/protocols/registry"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Network maps external references to simulated protocols. It implements
// adapter.Connector.
type Network struct {
	faults
	mu       sync.Mutex
	bindings map[common.Address]adapter.Binding
}

func NewNetwork() *Network {
	return &Network{bindings: make(map[common.Address]adapter.Binding)}
}

// Add registers b behind ref.
func (n *Network) Add(ref common.Address, b adapter.Binding) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.bindings[ref] = b
}

// Deploy creates a fresh simulated protocol of kind behind ref.
func (n *Network) Deploy(ref common.Address, kind registry.Kind) (adapter.Binding, error) {
	var b adapter.Binding
	switch kind {
	case registry.KindLiquid:
		b = adapter.Liquid{Protocol: NewLiquid()}
	case registry.KindLending:
		b = adapter.Lending{Pool: NewLendingPool()}
	case registry.KindLPStaking:
		b = adapter.LPStake{Farm: NewFarm()}
	case registry.KindCompound:
		b = adapter.Compound{Market: NewMarket(adapter.WAD)}
	default:
		return nil, fmt.Errorf("%w: %s", adapter.ErrUnsupportedKind, kind)
	}
	n.Add(ref, b)
	return b, nil
}

// Connect implements adapter.Connector.
func (n *Network) Connect(_ context.Context, kind registry.Kind, ref common.Address) (adapter.Binding, error) {
	if err := n.check("connect"); err != nil {
		return nil, err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	b, ok := n.bindings[ref]
	if !ok {
		return nil, fmt.Errorf("%w: %s", adapter.ErrUnknownRef, ref.Hex())
	}
	return b, nil
}

// Custodian simulates depositor wallets. Pull debits a wallet into custody and
// Push credits it back.
type Custodian struct {
	faults
	mu      sync.Mutex
	wallets map[common.Address]map[common.Address]*uint256.Int
}

func NewCustodian() *Custodian {
	return &Custodian{wallets: make(map[common.Address]map[common.Address]*uint256.Int)}
}

func (c *Custodian) wallet(token, owner common.Address) *uint256.Int {
	byOwner, ok := c.wallets[token]
	if !ok {
		byOwner = make(map[common.Address]*uint256.Int)
		c.wallets[token] = byOwner
	}
	b, ok := byOwner[owner]
	if !ok {
		b = new(uint256.Int)
		byOwner[owner] = b
	}
	return b
}

// Fund credits owner's wallet.
func (c *Custodian) Fund(token, owner common.Address, amount *uint256.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b := c.wallet(token, owner)
	b.Add(b, amount)
}

// Balance returns owner's wallet balance.
func (c *Custodian) Balance(token, owner common.Address) *uint256.Int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return new(uint256.Int).Set(c.wallet(token, owner))
}

func (c *Custodian) Pull(_ context.Context, token, from common.Address, amount *uint256.Int) error {
	if err := c.check("pull"); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	b := c.wallet(token, from)
	if b.Lt(amount) {
		return ErrInsufficient
	}
	b.Sub(b, amount)
	return nil
}

func (c *Custodian) Push(_ context.Context, token, to common.Address, amount *uint256.Int) error {
	if err := c.check("push"); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	b := c.wallet(token, to)
	b.Add(b, amount)
	return nil
}

var _ adapter.Connector = (*Network)(nil)
