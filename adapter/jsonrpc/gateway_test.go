package jsonrpc

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/Iwinswap/iwinswap-yield-aggregator-go/adapter"
	"github.com/Iwinswap/iwinswap-yield-aggregator-go/adapter/mock"
	"github.com/Iwinswap/iwinswap-yield-aggregator-go/aggregator"
	"github.com/Iwinswap/iwinswap-yield-aggregator-go/protocols/registry"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	custody   = common.HexToAddress("0x00000000000000000000000000000000000000c0")
	asset     = common.HexToAddress("0x0000000000000000000000000000000000000011")
	refLend   = common.HexToAddress("0x00000000000000000000000000000000000B0001")
	refLiquid = common.HexToAddress("0x00000000000000000000000000000000000B0002")
	refFarm   = common.HexToAddress("0x00000000000000000000000000000000000B0003")
	refMarket = common.HexToAddress("0x00000000000000000000000000000000000B0004")
)

func wad(n uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(n), adapter.WAD)
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type remote struct {
	gateway *Gateway
	lending *mock.LendingPool
	liquid  *mock.Liquid
	farm    *mock.Farm
	market  *mock.Market
}

func newRemote(t *testing.T) *remote {
	t.Helper()
	r := &remote{
		lending: mock.NewLendingPool(),
		liquid:  mock.NewLiquid(),
		farm:    mock.NewFarm(),
		market:  mock.NewMarket(wad(2)),
	}
	backends := NewBackends()
	backends.Add(refLend, adapter.Lending{Pool: r.lending})
	backends.Add(refLiquid, adapter.Liquid{Protocol: r.liquid})
	backends.Add(refFarm, adapter.LPStake{Farm: r.farm})
	backends.Add(refMarket, adapter.Compound{Market: r.market})

	srv, err := NewServer(backends)
	require.NoError(t, err)
	t.Cleanup(srv.Stop)

	r.gateway = NewGateway(rpc.DialInProc(srv), discard())
	t.Cleanup(r.gateway.Close)
	return r
}

func TestGateway_Connect(t *testing.T) {
	ctx := context.Background()
	r := newRemote(t)

	t.Run("Connect_ReturnsKindedBinding", func(t *testing.T) {
		for ref, kind := range map[common.Address]registry.Kind{
			refLend:   registry.KindLending,
			refLiquid: registry.KindLiquid,
			refFarm:   registry.KindLPStaking,
			refMarket: registry.KindCompound,
		} {
			b, err := r.gateway.Connect(ctx, kind, ref)
			require.NoError(t, err)
			assert.NoError(t, adapter.Check(b, kind))
		}
	})

	t.Run("Connect_KindMismatch", func(t *testing.T) {
		_, err := r.gateway.Connect(ctx, registry.KindLiquid, refLend)
		assert.ErrorIs(t, err, adapter.ErrKindMismatch)
	})

	t.Run("Connect_UnknownRef", func(t *testing.T) {
		_, err := r.gateway.Connect(ctx, registry.KindLending, common.HexToAddress("0xdead"))
		assert.Error(t, err)
	})

	t.Run("Dial_Validation", func(t *testing.T) {
		_, err := Dial(ctx, Config{Logger: discard()})
		assert.EqualError(t, err, "config: URL is required")
		_, err = Dial(ctx, Config{URL: "ws://127.0.0.1:1"})
		assert.EqualError(t, err, "config: Logger is required")
	})
}

func TestGateway_Dispatch(t *testing.T) {
	ctx := context.Background()
	r := newRemote(t)
	d := adapter.NewDispatcher(custody)

	t.Run("Lending_RoundTrip", func(t *testing.T) {
		b, err := r.gateway.Connect(ctx, registry.KindLending, refLend)
		require.NoError(t, err)

		shares, err := d.Deposit(ctx, b, adapter.DepositRequest{Token: asset, Amount: wad(100), PoolShares: new(uint256.Int)})
		require.NoError(t, err)
		assert.Equal(t, wad(100), shares)

		held, err := r.lending.ReceiptBalance(ctx, asset, custody)
		require.NoError(t, err)
		assert.Equal(t, wad(100), held, "supply lands on the custody address behind the gateway")

		r.lending.Rebase(asset, 500)
		out, err := d.Withdraw(ctx, b, adapter.WithdrawRequest{Token: asset, Shares: shares, PoolShares: shares})
		require.NoError(t, err)
		assert.Equal(t, wad(105), out)
	})

	t.Run("Farm_NullRateIsOneToOne", func(t *testing.T) {
		b, err := r.gateway.Connect(ctx, registry.KindLPStaking, refFarm)
		require.NoError(t, err)

		shares, err := d.Deposit(ctx, b, adapter.DepositRequest{Token: asset, Amount: wad(10), PoolShares: new(uint256.Int)})
		require.NoError(t, err)
		assert.Equal(t, wad(10), shares)
		assert.Equal(t, wad(10), r.farm.Staked())

		r.farm.Reward(wad(1))
		out, err := d.Withdraw(ctx, b, adapter.WithdrawRequest{Token: asset, Shares: shares, PoolShares: shares})
		require.NoError(t, err)
		assert.Equal(t, wad(10), out)

		rewards, err := d.Harvest(ctx, b)
		require.NoError(t, err)
		assert.Equal(t, wad(1), rewards, "claim crosses the wire")
	})

	t.Run("Market_RateOverTheWire", func(t *testing.T) {
		b, err := r.gateway.Connect(ctx, registry.KindCompound, refMarket)
		require.NoError(t, err)

		shares, err := d.Deposit(ctx, b, adapter.DepositRequest{Token: asset, Amount: wad(10), PoolShares: new(uint256.Int)})
		require.NoError(t, err)
		assert.Equal(t, wad(5), shares)
	})

	t.Run("RemoteFailure_Propagates", func(t *testing.T) {
		b, err := r.gateway.Connect(ctx, registry.KindLiquid, refLiquid)
		require.NoError(t, err)
		r.liquid.FailOn("deposit", errors.New("paused"))
		defer r.liquid.FailOn("deposit", nil)

		_, err = d.Deposit(ctx, b, adapter.DepositRequest{Token: asset, Amount: wad(1), PoolShares: new(uint256.Int)})
		assert.ErrorIs(t, err, adapter.ErrExternal)
		assert.Contains(t, err.Error(), "paused")
	})
}

func TestGateway_MissingRateMethod(t *testing.T) {
	srv := rpc.NewServer()
	defer srv.Stop()
	g := NewGateway(rpc.DialInProc(srv), discard())
	defer g.Close()

	rate, err := (&remoteMarket{g: g, ref: refMarket}).ExchangeRate(context.Background())
	require.NoError(t, err, "method-not-found means the protocol has no rate")
	assert.Nil(t, rate)
}

func TestGateway_DrivesAggregator(t *testing.T) {
	ctx := context.Background()
	r := newRemote(t)
	admin := common.HexToAddress("0xAD00000000000000000000000000000000000001")
	depositor := common.HexToAddress("0xA11CE00000000000000000000000000000000001")

	wallets := mock.NewCustodian()
	wallets.Fund(asset, depositor, wad(50))

	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	agg, err := aggregator.New(ctx, aggregator.Config{
		Admin:           admin,
		Custody:         custody,
		Connector:       r.gateway,
		Custodian:       wallets,
		Logger:          discard(),
		Clock:           func() time.Time { return now },
		CheckInvariants: true,
	})
	require.NoError(t, err)
	require.NoError(t, agg.RegisterToken(ctx, admin, asset, "T", 18))
	require.NoError(t, agg.RegisterProtocol(ctx, admin, "remote-aave", refLend, registry.KindLending, 450))

	_, err = agg.Deposit(ctx, depositor, asset, wad(50), "remote-aave")
	require.NoError(t, err)
	out, err := agg.WithdrawImmediate(ctx, depositor, asset, wad(50), "remote-aave")
	require.NoError(t, err)
	assert.Equal(t, wad(50), out.Payout)
	assert.Equal(t, wad(50), wallets.Balance(asset, depositor))
}
