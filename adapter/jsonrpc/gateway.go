// Package jsonrpc reaches external yield sources through a JSON-RPC gateway.
//
// The gateway exposes one namespace per strategy kind. Every method takes
// the protocol's external reference as its first argument, so one
// connection serves every protocol behind the gateway.
package jsonrpc

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/Iwinswap/iwinswap-yield-aggregator-go/adapter"
	"github.com/Iwinswap/iwinswap-yield-aggregator-go/protocols/registry"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/holiman/uint256"
)

const (
	GatewayNamespace = "gateway"
	LiquidNamespace  = "liquid"
	LendingNamespace = "lending"
	FarmNamespace    = "farm"
	MarketNamespace  = "market"

	// methodNotFound is the JSON-RPC error code for an unknown method.
	methodNotFound = -32601
)

var errNilAmount = errors.New("jsonrpc: missing amount in response")

// Logger defines a standard interface for structured, leveled logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config holds the configuration for the gateway client.
type Config struct {
	URL    string
	Logger Logger
}

// validate checks if the configuration is valid.
func (c *Config) validate() error {
	if c.URL == "" {
		return errors.New("config: URL is required")
	}
	if c.Logger == nil {
		return errors.New("config: Logger is required")
	}
	return nil
}

// Gateway is an adapter.Connector backed by a JSON-RPC connection.
type Gateway struct {
	client *rpc.Client
	logger Logger
}

// Dial connects to the gateway at cfg.URL.
func Dial(ctx context.Context, cfg Config) (*Gateway, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.Logger.Info("Attempting to connect to protocol gateway", "url", cfg.URL)
	client, err := rpc.DialContext(ctx, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to gateway: %w", err)
	}
	cfg.Logger.Info("Successfully connected to protocol gateway.")
	return NewGateway(client, cfg.Logger), nil
}

// NewGateway wraps an established client.
func NewGateway(client *rpc.Client, logger Logger) *Gateway {
	return &Gateway{client: client, logger: logger}
}

// Close terminates the connection.
func (g *Gateway) Close() {
	g.client.Close()
}

// Connect asks the gateway which kind of protocol sits behind ref and
// returns a remote binding for it.
func (g *Gateway) Connect(ctx context.Context, kind registry.Kind, ref common.Address) (adapter.Binding, error) {
	var remote registry.Kind
	if err := g.call(ctx, &remote, GatewayNamespace+"_kind", ref); err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", ref.Hex(), err)
	}
	if remote != kind {
		return nil, fmt.Errorf("%w: registered %s, gateway serves %s at %s", adapter.ErrKindMismatch, kind, remote, ref.Hex())
	}

	switch kind {
	case registry.KindLiquid:
		return adapter.Liquid{Protocol: &remoteLiquid{g: g, ref: ref}}, nil
	case registry.KindLending:
		return adapter.Lending{Pool: &remoteLending{g: g, ref: ref}}, nil
	case registry.KindLPStaking:
		return adapter.LPStake{Farm: &remoteFarm{g: g, ref: ref}}, nil
	case registry.KindCompound:
		return adapter.Compound{Market: &remoteMarket{g: g, ref: ref}}, nil
	default:
		return nil, fmt.Errorf("%w: %s", adapter.ErrUnsupportedKind, kind)
	}
}

func (g *Gateway) call(ctx context.Context, result any, method string, args ...any) error {
	g.logger.Debug("Calling protocol gateway", "method", method)
	return g.client.CallContext(ctx, result, method, args...)
}

// amount performs a call whose result is a single amount.
func (g *Gateway) amount(ctx context.Context, method string, args ...any) (*uint256.Int, error) {
	var out *hexutil.Big
	if err := g.call(ctx, &out, method, args...); err != nil {
		return nil, err
	}
	if out == nil {
		return nil, errNilAmount
	}
	return fromHex(out)
}

// rate reads an optional exchange rate. A gateway that does not implement
// the method, or answers null, has no rate.
func (g *Gateway) rate(ctx context.Context, method string, ref common.Address) (*uint256.Int, error) {
	var out *hexutil.Big
	if err := g.call(ctx, &out, method, ref); err != nil {
		var rpcErr rpc.Error
		if errors.As(err, &rpcErr) && rpcErr.ErrorCode() == methodNotFound {
			return nil, nil
		}
		return nil, err
	}
	if out == nil {
		return nil, nil
	}
	return fromHex(out)
}

type remoteLiquid struct {
	g   *Gateway
	ref common.Address
}

func (r *remoteLiquid) Deposit(ctx context.Context, amount *uint256.Int) (*uint256.Int, error) {
	return r.g.amount(ctx, LiquidNamespace+"_deposit", r.ref, toHex(amount))
}

func (r *remoteLiquid) Withdraw(ctx context.Context, shares *uint256.Int) (*uint256.Int, error) {
	return r.g.amount(ctx, LiquidNamespace+"_withdraw", r.ref, toHex(shares))
}

type remoteLending struct {
	g   *Gateway
	ref common.Address
}

func (r *remoteLending) Supply(ctx context.Context, asset common.Address, amount *uint256.Int, onBehalfOf common.Address) error {
	return r.g.call(ctx, nil, LendingNamespace+"_supply", r.ref, asset, toHex(amount), onBehalfOf)
}

func (r *remoteLending) Withdraw(ctx context.Context, asset common.Address, amount *uint256.Int, to common.Address) (*uint256.Int, error) {
	return r.g.amount(ctx, LendingNamespace+"_withdraw", r.ref, asset, toHex(amount), to)
}

func (r *remoteLending) ReceiptBalance(ctx context.Context, asset common.Address, holder common.Address) (*uint256.Int, error) {
	return r.g.amount(ctx, LendingNamespace+"_receiptBalance", r.ref, asset, holder)
}

type remoteFarm struct {
	g   *Gateway
	ref common.Address
}

func (r *remoteFarm) Stake(ctx context.Context, amount *uint256.Int) error {
	return r.g.call(ctx, nil, FarmNamespace+"_stake", r.ref, toHex(amount))
}

func (r *remoteFarm) Unstake(ctx context.Context, amount *uint256.Int) error {
	return r.g.call(ctx, nil, FarmNamespace+"_unstake", r.ref, toHex(amount))
}

func (r *remoteFarm) Claim(ctx context.Context) (*uint256.Int, error) {
	return r.g.amount(ctx, FarmNamespace+"_claim", r.ref)
}

func (r *remoteFarm) ExchangeRate(ctx context.Context) (*uint256.Int, error) {
	return r.g.rate(ctx, FarmNamespace+"_exchangeRate", r.ref)
}

type remoteMarket struct {
	g   *Gateway
	ref common.Address
}

func (r *remoteMarket) Mint(ctx context.Context, amount *uint256.Int) error {
	return r.g.call(ctx, nil, MarketNamespace+"_mint", r.ref, toHex(amount))
}

func (r *remoteMarket) RedeemUnderlying(ctx context.Context, amount *uint256.Int) (*uint256.Int, error) {
	return r.g.amount(ctx, MarketNamespace+"_redeemUnderlying", r.ref, toHex(amount))
}

func (r *remoteMarket) ExchangeRate(ctx context.Context) (*uint256.Int, error) {
	return r.g.rate(ctx, MarketNamespace+"_exchangeRate", r.ref)
}

func toHex(x *uint256.Int) *hexutil.Big {
	if x == nil {
		return nil
	}
	return (*hexutil.Big)(x.ToBig())
}

func fromHex(h *hexutil.Big) (*uint256.Int, error) {
	if h == nil {
		return nil, errNilAmount
	}
	b := (*big.Int)(h)
	if b.Sign() < 0 {
		return nil, fmt.Errorf("jsonrpc: negative amount %s", b)
	}
	z, overflow := uint256.FromBig(b)
	if overflow {
		return nil, fmt.Errorf("jsonrpc: amount %s exceeds 256 bits", b)
	}
	return z, nil
}

var (
	_ adapter.Connector     = (*Gateway)(nil)
	_ adapter.ExchangeRater = (*remoteFarm)(nil)
	_ adapter.ExchangeRater = (*remoteMarket)(nil)
)
