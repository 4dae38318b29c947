package mock

import (
	"context"
	"sync"

	"github.com/Iwinswap/iwinswap-yield-aggregator-go/adapter"
	"github.com/Iwinswap/iwinswap-yield-aggregator-go/pkg/safemath"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Liquid simulates a liquid-staking vault with its own share accounting.
// Accrue grows the underlying without minting shares, raising the price of
// every outstanding share.
type Liquid struct {
	faults
	mu         sync.Mutex
	shares     uint256.Int
	underlying uint256.Int
}

func NewLiquid() *Liquid { return &Liquid{} }

func (l *Liquid) Deposit(_ context.Context, amount *uint256.Int) (*uint256.Int, error) {
	if err := l.check("deposit"); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	minted := new(uint256.Int).Set(amount)
	if !l.shares.IsZero() && !l.underlying.IsZero() {
		var err error
		if minted, err = safemath.MulDiv(amount, &l.shares, &l.underlying); err != nil {
			return nil, err
		}
	}
	l.shares.Add(&l.shares, minted)
	l.underlying.Add(&l.underlying, amount)
	return minted, nil
}

func (l *Liquid) Withdraw(_ context.Context, shares *uint256.Int) (*uint256.Int, error) {
	if err := l.check("withdraw"); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.shares.Lt(shares) {
		return nil, ErrInsufficient
	}
	amount, err := safemath.MulDiv(shares, &l.underlying, &l.shares)
	if err != nil {
		return nil, err
	}
	l.shares.Sub(&l.shares, shares)
	l.underlying.Sub(&l.underlying, amount)
	return amount, nil
}

// Accrue adds yield to the vault.
func (l *Liquid) Accrue(amount *uint256.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.underlying.Add(&l.underlying, amount)
}

// LendingPool simulates a lending market with a rebasing receipt token.
type LendingPool struct {
	faults
	mu       sync.Mutex
	receipts map[common.Address]map[common.Address]*uint256.Int
}

func NewLendingPool() *LendingPool {
	return &LendingPool{receipts: make(map[common.Address]map[common.Address]*uint256.Int)}
}

func (p *LendingPool) balance(asset, holder common.Address) *uint256.Int {
	byHolder, ok := p.receipts[asset]
	if !ok {
		byHolder = make(map[common.Address]*uint256.Int)
		p.receipts[asset] = byHolder
	}
	b, ok := byHolder[holder]
	if !ok {
		b = new(uint256.Int)
		byHolder[holder] = b
	}
	return b
}

func (p *LendingPool) Supply(_ context.Context, asset common.Address, amount *uint256.Int, onBehalfOf common.Address) error {
	if err := p.check("supply"); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	b := p.balance(asset, onBehalfOf)
	b.Add(b, amount)
	return nil
}

func (p *LendingPool) Withdraw(_ context.Context, asset common.Address, amount *uint256.Int, to common.Address) (*uint256.Int, error) {
	if err := p.check("withdraw"); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	b := p.balance(asset, to)
	if b.Lt(amount) {
		return nil, ErrInsufficient
	}
	b.Sub(b, amount)
	return new(uint256.Int).Set(amount), nil
}

func (p *LendingPool) ReceiptBalance(_ context.Context, asset common.Address, holder common.Address) (*uint256.Int, error) {
	if err := p.check("balance"); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return new(uint256.Int).Set(p.balance(asset, holder)), nil
}

// Rebase grows every receipt balance of asset by bps basis points.
func (p *LendingPool) Rebase(asset common.Address, bps uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, b := range p.receipts[asset] {
		interest := new(uint256.Int).Mul(b, uint256.NewInt(bps))
		interest.Div(interest, uint256.NewInt(10_000))
		b.Add(b, interest)
	}
}

// Farm simulates an LP staking farm. Rewards accumulate through Reward and
// are paid out in full by the next Claim.
type Farm struct {
	faults
	mu      sync.Mutex
	staked  uint256.Int
	pending uint256.Int
}

func NewFarm() *Farm { return &Farm{} }

// Staked returns the total staked in the farm.
func (f *Farm) Staked() *uint256.Int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return new(uint256.Int).Set(&f.staked)
}

func (f *Farm) Stake(_ context.Context, amount *uint256.Int) error {
	if err := f.check("stake"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.staked.Add(&f.staked, amount)
	return nil
}

func (f *Farm) Unstake(_ context.Context, amount *uint256.Int) error {
	if err := f.check("unstake"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.staked.Lt(amount) {
		return ErrInsufficient
	}
	f.staked.Sub(&f.staked, amount)
	return nil
}

func (f *Farm) Claim(_ context.Context) (*uint256.Int, error) {
	if err := f.check("claim"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := new(uint256.Int).Set(&f.pending)
	f.pending.Clear()
	return out, nil
}

// Reward queues rewards for the next Claim.
func (f *Farm) Reward(amount *uint256.Int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending.Add(&f.pending, amount)
}

// Market simulates a compound-style market. Suppliers hold market tokens
// worth rate/1e18 underlying each; raising the rate is how interest accrues.
type Market struct {
	faults
	mu     sync.Mutex
	tokens uint256.Int
	rate   uint256.Int
}

// NewMarket creates a market at the given exchange rate (1e18 = 1:1).
func NewMarket(rate *uint256.Int) *Market {
	m := &Market{}
	m.rate.Set(rate)
	return m
}

func (m *Market) Mint(_ context.Context, amount *uint256.Int) error {
	if err := m.check("mint"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	minted, err := safemath.MulDiv(amount, adapter.WAD, &m.rate)
	if err != nil {
		return err
	}
	m.tokens.Add(&m.tokens, minted)
	return nil
}

func (m *Market) RedeemUnderlying(_ context.Context, amount *uint256.Int) (*uint256.Int, error) {
	if err := m.check("redeem"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	burned, err := safemath.MulDiv(amount, adapter.WAD, &m.rate)
	if err != nil {
		return nil, err
	}
	if m.tokens.Lt(burned) {
		return nil, ErrInsufficient
	}
	m.tokens.Sub(&m.tokens, burned)
	return new(uint256.Int).Set(amount), nil
}

func (m *Market) ExchangeRate(_ context.Context) (*uint256.Int, error) {
	if err := m.check("rate"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return new(uint256.Int).Set(&m.rate), nil
}

// SetRate changes the market's exchange rate.
func (m *Market) SetRate(rate *uint256.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rate.Set(rate)
}

var (
	_ adapter.LiquidProtocol = (*Liquid)(nil)
	_ adapter.LendingPool    = (*LendingPool)(nil)
	_ adapter.LPStaking      = (*Farm)(nil)
	_ adapter.CompoundMarket = (*Market)(nil)
	_ adapter.ExchangeRater  = (*Market)(nil)
)
