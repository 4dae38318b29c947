package jsonrpc

import (
	"context"
	"fmt"
	"sync"

	"github.com/Iwinswap/iwinswap-yield-aggregator-go/adapter"
	"github.com/Iwinswap/iwinswap-yield-aggregator-go/protocols/registry"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/holiman/uint256"
)

// Backends is the set of protocols a gateway server exposes, keyed by
// external reference.
type Backends struct {
	mu    sync.RWMutex
	byRef map[common.Address]adapter.Binding
}

func NewBackends() *Backends {
	return &Backends{byRef: make(map[common.Address]adapter.Binding)}
}

// Add exposes b behind ref.
func (b *Backends) Add(ref common.Address, binding adapter.Binding) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.byRef[ref] = binding
}

func (b *Backends) get(ref common.Address) (adapter.Binding, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	binding, ok := b.byRef[ref]
	if !ok {
		return nil, fmt.Errorf("%w: %s", adapter.ErrUnknownRef, ref.Hex())
	}
	return binding, nil
}

// NewServer registers every gateway namespace for backends on a new RPC
// server.
func NewServer(backends *Backends) (*rpc.Server, error) {
	srv := rpc.NewServer()
	services := map[string]any{
		GatewayNamespace: &gatewayService{backends},
		LiquidNamespace:  &liquidService{backends},
		LendingNamespace: &lendingService{backends},
		FarmNamespace:    &farmService{backends},
		MarketNamespace:  &marketService{backends},
	}
	for namespace, svc := range services {
		if err := srv.RegisterName(namespace, svc); err != nil {
			return nil, fmt.Errorf("failed to register %s: %w", namespace, err)
		}
	}
	return srv, nil
}

type gatewayService struct{ b *Backends }

func (s *gatewayService) Kind(ref common.Address) (registry.Kind, error) {
	binding, err := s.b.get(ref)
	if err != nil {
		return registry.KindUnknown, err
	}
	return binding.Kind(), nil
}

type liquidService struct{ b *Backends }

func (s *liquidService) protocol(ref common.Address) (adapter.LiquidProtocol, error) {
	binding, err := s.b.get(ref)
	if err != nil {
		return nil, err
	}
	l, ok := binding.(adapter.Liquid)
	if !ok {
		return nil, fmt.Errorf("%w: %s is %s", adapter.ErrKindMismatch, ref.Hex(), binding.Kind())
	}
	return l.Protocol, nil
}

func (s *liquidService) Deposit(ctx context.Context, ref common.Address, amount *hexutil.Big) (*hexutil.Big, error) {
	p, err := s.protocol(ref)
	if err != nil {
		return nil, err
	}
	in, err := fromHex(amount)
	if err != nil {
		return nil, err
	}
	return wrap(p.Deposit(ctx, in))
}

func (s *liquidService) Withdraw(ctx context.Context, ref common.Address, shares *hexutil.Big) (*hexutil.Big, error) {
	p, err := s.protocol(ref)
	if err != nil {
		return nil, err
	}
	in, err := fromHex(shares)
	if err != nil {
		return nil, err
	}
	return wrap(p.Withdraw(ctx, in))
}

type lendingService struct{ b *Backends }

func (s *lendingService) pool(ref common.Address) (adapter.LendingPool, error) {
	binding, err := s.b.get(ref)
	if err != nil {
		return nil, err
	}
	l, ok := binding.(adapter.Lending)
	if !ok {
		return nil, fmt.Errorf("%w: %s is %s", adapter.ErrKindMismatch, ref.Hex(), binding.Kind())
	}
	return l.Pool, nil
}

func (s *lendingService) Supply(ctx context.Context, ref, asset common.Address, amount *hexutil.Big, onBehalfOf common.Address) error {
	p, err := s.pool(ref)
	if err != nil {
		return err
	}
	in, err := fromHex(amount)
	if err != nil {
		return err
	}
	return p.Supply(ctx, asset, in, onBehalfOf)
}

func (s *lendingService) Withdraw(ctx context.Context, ref, asset common.Address, amount *hexutil.Big, to common.Address) (*hexutil.Big, error) {
	p, err := s.pool(ref)
	if err != nil {
		return nil, err
	}
	in, err := fromHex(amount)
	if err != nil {
		return nil, err
	}
	return wrap(p.Withdraw(ctx, asset, in, to))
}

func (s *lendingService) ReceiptBalance(ctx context.Context, ref, asset, holder common.Address) (*hexutil.Big, error) {
	p, err := s.pool(ref)
	if err != nil {
		return nil, err
	}
	return wrap(p.ReceiptBalance(ctx, asset, holder))
}

type farmService struct{ b *Backends }

func (s *farmService) farm(ref common.Address) (adapter.LPStaking, error) {
	binding, err := s.b.get(ref)
	if err != nil {
		return nil, err
	}
	f, ok := binding.(adapter.LPStake)
	if !ok {
		return nil, fmt.Errorf("%w: %s is %s", adapter.ErrKindMismatch, ref.Hex(), binding.Kind())
	}
	return f.Farm, nil
}

func (s *farmService) Stake(ctx context.Context, ref common.Address, amount *hexutil.Big) error {
	f, err := s.farm(ref)
	if err != nil {
		return err
	}
	in, err := fromHex(amount)
	if err != nil {
		return err
	}
	return f.Stake(ctx, in)
}

func (s *farmService) Unstake(ctx context.Context, ref common.Address, amount *hexutil.Big) error {
	f, err := s.farm(ref)
	if err != nil {
		return err
	}
	in, err := fromHex(amount)
	if err != nil {
		return err
	}
	return f.Unstake(ctx, in)
}

func (s *farmService) Claim(ctx context.Context, ref common.Address) (*hexutil.Big, error) {
	f, err := s.farm(ref)
	if err != nil {
		return nil, err
	}
	return wrap(f.Claim(ctx))
}

// ExchangeRate answers null for farms without a rate.
func (s *farmService) ExchangeRate(ctx context.Context, ref common.Address) (*hexutil.Big, error) {
	f, err := s.farm(ref)
	if err != nil {
		return nil, err
	}
	return exchangeRate(ctx, f)
}

type marketService struct{ b *Backends }

func (s *marketService) market(ref common.Address) (adapter.CompoundMarket, error) {
	binding, err := s.b.get(ref)
	if err != nil {
		return nil, err
	}
	m, ok := binding.(adapter.Compound)
	if !ok {
		return nil, fmt.Errorf("%w: %s is %s", adapter.ErrKindMismatch, ref.Hex(), binding.Kind())
	}
	return m.Market, nil
}

func (s *marketService) Mint(ctx context.Context, ref common.Address, amount *hexutil.Big) error {
	m, err := s.market(ref)
	if err != nil {
		return err
	}
	in, err := fromHex(amount)
	if err != nil {
		return err
	}
	return m.Mint(ctx, in)
}

func (s *marketService) RedeemUnderlying(ctx context.Context, ref common.Address, amount *hexutil.Big) (*hexutil.Big, error) {
	m, err := s.market(ref)
	if err != nil {
		return nil, err
	}
	in, err := fromHex(amount)
	if err != nil {
		return nil, err
	}
	return wrap(m.RedeemUnderlying(ctx, in))
}

func (s *marketService) ExchangeRate(ctx context.Context, ref common.Address) (*hexutil.Big, error) {
	m, err := s.market(ref)
	if err != nil {
		return nil, err
	}
	return exchangeRate(ctx, m)
}

func exchangeRate(ctx context.Context, protocol any) (*hexutil.Big, error) {
	rater, ok := protocol.(adapter.ExchangeRater)
	if !ok {
		return nil, nil
	}
	return wrap(rater.ExchangeRate(ctx))
}

func wrap(x *uint256.Int, err error) (*hexutil.Big, error) {
	if err != nil {
		return nil, err
	}
	return toHex(x), nil
}
