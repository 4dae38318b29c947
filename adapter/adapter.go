// Package adapter routes deposits and redemptions to external yield sources.
//
// Every registered protocol resolves to exactly one Binding variant. The set
// of variants is closed (the interface has an unexported method), so the
// dispatcher's type switch covers every strategy kind the registry accepts.
package adapter

import (
	"context"
	"errors"

	"github.com/Iwinswap/iwinswap-yield-aggregator-go/protocols/registry"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	// ErrExternal wraps every failure reported by an external protocol or
	// custodian call.
	ErrExternal        = errors.New("adapter: external call failed")
	ErrUnsupportedKind = errors.New("adapter: unsupported strategy kind")
	ErrKindMismatch    = errors.New("adapter: binding kind does not match registered kind")
	ErrZeroShares      = errors.New("adapter: operation would issue or redeem zero shares")
	ErrPoolDepleted    = errors.New("adapter: pooled receipt balance is zero while shares are outstanding")
	ErrBadExchangeRate = errors.New("adapter: exchange rate must be positive")
	ErrUnknownRef      = errors.New("adapter: no protocol behind external reference")
)

// LiquidProtocol is a liquid-staking style protocol that mints its own
// shares for a deposit.
type LiquidProtocol interface {
	Deposit(ctx context.Context, amount *uint256.Int) (shares *uint256.Int, err error)
	Withdraw(ctx context.Context, shares *uint256.Int) (amount *uint256.Int, err error)
}

// LendingPool is a lending market whose receipt asset rebases: the held
// receipt balance grows without further calls.
type LendingPool interface {
	Supply(ctx context.Context, asset common.Address, amount *uint256.Int, onBehalfOf common.Address) error
	Withdraw(ctx context.Context, asset common.Address, amount *uint256.Int, to common.Address) (*uint256.Int, error)
	ReceiptBalance(ctx context.Context, asset common.Address, holder common.Address) (*uint256.Int, error)
}

// LPStaking is a staking farm for LP positions.
type LPStaking interface {
	Stake(ctx context.Context, amount *uint256.Int) error
	Unstake(ctx context.Context, amount *uint256.Int) error
	Claim(ctx context.Context) (rewards *uint256.Int, err error)
}

// CompoundMarket is a compound-style money market.
type CompoundMarket interface {
	Mint(ctx context.Context, amount *uint256.Int) error
	RedeemUnderlying(ctx context.Context, amount *uint256.Int) (*uint256.Int, error)
}

// ExchangeRater is implemented by LP and compound-style protocols that
// expose how much underlying one share is worth, scaled by 1e18. A nil rate
// with a nil error means the protocol has no rate and shares are 1:1.
type ExchangeRater interface {
	ExchangeRate(ctx context.Context) (*uint256.Int, error)
}

// Binding is a connected protocol of one strategy kind.
type Binding interface {
	Kind() registry.Kind
	binding()
}

type (
	Liquid struct {
		Protocol LiquidProtocol
	}
	Lending struct {
		Pool LendingPool
	}
	LPStake struct {
		Farm LPStaking
	}
	Compound struct {
		Market CompoundMarket
	}
)

func (Liquid) Kind() registry.Kind   { return registry.KindLiquid }
func (Lending) Kind() registry.Kind  { return registry.KindLending }
func (LPStake) Kind() registry.Kind  { return registry.KindLPStaking }
func (Compound) Kind() registry.Kind { return registry.KindCompound }

func (Liquid) binding()   {}
func (Lending) binding()  {}
func (LPStake) binding()  {}
func (Compound) binding() {}

// Connector resolves a registered protocol's external reference into a
// Binding of the given kind.
type Connector interface {
	Connect(ctx context.Context, kind registry.Kind, ref common.Address) (Binding, error)
}
