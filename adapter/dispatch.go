package adapter

import (
	"context"
	"errors"
	"fmt"

	"github.com/Iwinswap/iwinswap-yield-aggregator-go/pkg/safemath"
	"github.com/Iwinswap/iwinswap-yield-aggregator-go/protocols/registry"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// ErrPoolShares reports a redemption larger than the pool's outstanding
// shares. It indicates a ledger defect, never a user error.
var ErrPoolShares = errors.New("adapter: redemption exceeds outstanding pool shares")

// WAD is the 1e18 fixed-point scale of exchange rates.
var WAD = uint256.NewInt(1_000_000_000_000_000_000)

// DepositRequest forwards Amount of Token into a protocol. PoolShares is the
// aggregate share count outstanding for the (token, protocol) pair before
// the deposit.
type DepositRequest struct {
	Token      common.Address
	Amount     *uint256.Int
	PoolShares *uint256.Int
}

// WithdrawRequest redeems Shares of the (Token, protocol) pair. PoolShares is
// the aggregate outstanding before the redemption.
type WithdrawRequest struct {
	Token      common.Address
	Shares     *uint256.Int
	PoolShares *uint256.Int
}

// Dispatcher calls the deposit/withdraw primitive matching a Binding's kind
// and normalizes the result into shares issued or underlying returned.
// It holds no ledger state: pool share counters are passed in and the caller
// applies the resulting deltas.
type Dispatcher struct {
	custody common.Address
}

// NewDispatcher creates a dispatcher that supplies and withdraws on behalf of
// the custody address.
func NewDispatcher(custody common.Address) *Dispatcher {
	return &Dispatcher{custody: custody}
}

// Check verifies that b serves the registered kind.
func Check(b Binding, kind registry.Kind) error {
	if b == nil {
		return fmt.Errorf("%w: nil binding", ErrUnsupportedKind)
	}
	if b.Kind() != kind {
		return fmt.Errorf("%w: registered %s, connected %s", ErrKindMismatch, kind, b.Kind())
	}
	return nil
}

// Deposit forwards req to the protocol and returns the shares issued.
func (d *Dispatcher) Deposit(ctx context.Context, b Binding, req DepositRequest) (*uint256.Int, error) {
	var (
		shares *uint256.Int
		err    error
	)
	switch b := b.(type) {
	case Liquid:
		shares, err = b.Protocol.Deposit(ctx, req.Amount)
		if err != nil {
			return nil, external("liquid deposit", err)
		}
	case Lending:
		shares, err = d.supply(ctx, b.Pool, req)
		if err != nil {
			return nil, err
		}
	case LPStake:
		shares, err = stakeShares(ctx, b.Farm, req.Amount)
		if err != nil {
			return nil, err
		}
		if err := b.Farm.Stake(ctx, req.Amount); err != nil {
			return nil, external("lp stake", err)
		}
	case Compound:
		shares, err = stakeShares(ctx, b.Market, req.Amount)
		if err != nil {
			return nil, err
		}
		if err := b.Market.Mint(ctx, req.Amount); err != nil {
			return nil, external("compound mint", err)
		}
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedKind, b)
	}

	if shares == nil || shares.IsZero() {
		return nil, ErrZeroShares
	}
	return shares, nil
}

// supply samples the held receipt balance around the supply call. The delta
// is the underlying credited; shares are minted in proportion to the pool's
// pre-deposit balance so that yield already accrued stays with the holders
// who earned it.
func (d *Dispatcher) supply(ctx context.Context, pool LendingPool, req DepositRequest) (*uint256.Int, error) {
	before, err := pool.ReceiptBalance(ctx, req.Token, d.custody)
	if err != nil {
		return nil, external("lending receipt balance", err)
	}
	if !req.PoolShares.IsZero() && before.IsZero() {
		return nil, ErrPoolDepleted
	}

	if err := pool.Supply(ctx, req.Token, req.Amount, d.custody); err != nil {
		return nil, external("lending supply", err)
	}

	after, err := pool.ReceiptBalance(ctx, req.Token, d.custody)
	if err != nil {
		return nil, external("lending receipt balance", err)
	}
	delta, err := safemath.Sub(after, before)
	if err != nil {
		return nil, external("lending supply", fmt.Errorf("receipt balance shrank from %s to %s", before.Dec(), after.Dec()))
	}

	if req.PoolShares.IsZero() {
		return delta, nil
	}
	return safemath.MulDiv(delta, req.PoolShares, before)
}

// Withdraw redeems req.Shares and returns the underlying received.
func (d *Dispatcher) Withdraw(ctx context.Context, b Binding, req WithdrawRequest) (*uint256.Int, error) {
	if req.Shares.IsZero() {
		return nil, ErrZeroShares
	}
	if req.PoolShares.Lt(req.Shares) {
		return nil, fmt.Errorf("%w: redeem %s of %s", ErrPoolShares, req.Shares.Dec(), req.PoolShares.Dec())
	}

	switch b := b.(type) {
	case Liquid:
		amount, err := b.Protocol.Withdraw(ctx, req.Shares)
		if err != nil {
			return nil, external("liquid withdraw", err)
		}
		return amount, nil
	case Lending:
		return d.redeem(ctx, b.Pool, req)
	case LPStake:
		underlying, err := stakeUnderlying(ctx, b.Farm, req.Shares)
		if err != nil {
			return nil, err
		}
		if err := b.Farm.Unstake(ctx, underlying); err != nil {
			return nil, external("lp unstake", err)
		}
		return underlying, nil
	case Compound:
		underlying, err := stakeUnderlying(ctx, b.Market, req.Shares)
		if err != nil {
			return nil, err
		}
		amount, err := b.Market.RedeemUnderlying(ctx, underlying)
		if err != nil {
			return nil, external("compound redeem", err)
		}
		return amount, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedKind, b)
	}
}

// Harvest claims the rewards a farm has accrued to the custody address since
// the last harvest. Kinds without separate rewards return zero. Farm rewards
// are pooled across every staker of the binding, so the caller distributes
// them by share.
func (d *Dispatcher) Harvest(ctx context.Context, b Binding) (*uint256.Int, error) {
	f, ok := b.(LPStake)
	if !ok {
		return safemath.Zero(), nil
	}
	rewards, err := f.Farm.Claim(ctx)
	if err != nil {
		return nil, external("lp claim", err)
	}
	if rewards == nil {
		return safemath.Zero(), nil
	}
	return rewards, nil
}

// redeem withdraws the shares' proportional slice of the held receipt balance.
func (d *Dispatcher) redeem(ctx context.Context, pool LendingPool, req WithdrawRequest) (*uint256.Int, error) {
	held, err := pool.ReceiptBalance(ctx, req.Token, d.custody)
	if err != nil {
		return nil, external("lending receipt balance", err)
	}
	underlying, err := safemath.MulDiv(held, req.Shares, req.PoolShares)
	if err != nil {
		return nil, err
	}
	if underlying.IsZero() {
		return underlying, nil
	}

	amount, err := pool.Withdraw(ctx, req.Token, underlying, d.custody)
	if err != nil {
		return nil, external("lending withdraw", err)
	}
	return amount, nil
}

// rate returns the protocol's exchange rate, or WAD (1:1) when it has none.
func rate(ctx context.Context, protocol any) (*uint256.Int, error) {
	rater, ok := protocol.(ExchangeRater)
	if !ok {
		return WAD, nil
	}
	r, err := rater.ExchangeRate(ctx)
	if err != nil {
		return nil, external("exchange rate", err)
	}
	if r == nil {
		return WAD, nil
	}
	if r.IsZero() {
		return nil, ErrBadExchangeRate
	}
	return r, nil
}

func stakeShares(ctx context.Context, protocol any, amount *uint256.Int) (*uint256.Int, error) {
	r, err := rate(ctx, protocol)
	if err != nil {
		return nil, err
	}
	shares, err := safemath.MulDiv(amount, WAD, r)
	if err != nil {
		return nil, err
	}
	if shares.IsZero() {
		return nil, ErrZeroShares
	}
	return shares, nil
}

func stakeUnderlying(ctx context.Context, protocol any, shares *uint256.Int) (*uint256.Int, error) {
	r, err := rate(ctx, protocol)
	if err != nil {
		return nil, err
	}
	return safemath.MulDiv(shares, r, WAD)
}

func external(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrExternal, op, err)
}
