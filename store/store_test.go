package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/Iwinswap/iwinswap-yield-aggregator-go/aggregator"
	"github.com/Iwinswap/iwinswap-yield-aggregator-go/ledger"
	"github.com/Iwinswap/iwinswap-yield-aggregator-go/protocols/pairkey"
	"github.com/Iwinswap/iwinswap-yield-aggregator-go/protocols/registry"
	"github.com/Iwinswap/iwinswap-yield-aggregator-go/protocols/token"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) (*Store, string) {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "aggregator.db")
	s, err := Open(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, dsn
}

func sampleSnapshot(t *testing.T, op string, at time.Time) aggregator.Snapshot {
	t.Helper()
	tok := common.HexToAddress("0x0000000000000000000000000000000000007777")
	depositor := common.HexToAddress("0xA11CE00000000000000000000000000000000001")

	b := ledger.NewBook()
	require.NoError(t, b.RecordDeposit(ledger.Entry{
		Depositor: depositor,
		Pair:      pairkey.Pair{Token: tok, Protocol: "aave"},
		Amount:    uint256.NewInt(100),
		Shares:    uint256.NewInt(100),
		APYBps:    500,
		At:        at,
	}))
	return aggregator.Snapshot{
		OpID:    uuid.NewString(),
		Op:      op,
		TakenAt: at,
		Tokens:  []token.TokenView{{Address: tok, Symbol: "T", Decimals: 18, Active: true}},
		Protocols: []registry.ProtocolView{{
			Name: "aave", Ref: common.HexToAddress("0xA0"), Kind: registry.KindLending,
			APYBps: 500, Active: true, RegisteredAt: at, RateSince: at,
		}},
		Ledger: b.Snapshot(),
	}
}

func TestStore(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	t.Run("Load_EmptyIsNil", func(t *testing.T) {
		s, _ := openTemp(t)
		snap, err := s.Load(ctx)
		require.NoError(t, err)
		assert.Nil(t, snap)
	})

	t.Run("Save_LatestWins", func(t *testing.T) {
		s, _ := openTemp(t)
		first := sampleSnapshot(t, "register_token", at)
		second := sampleSnapshot(t, "deposit", at.Add(time.Minute))
		require.NoError(t, s.Save(ctx, first))
		require.NoError(t, s.Save(ctx, second))

		got, err := s.Load(ctx)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, second.OpID, got.OpID)
		assert.Equal(t, "deposit", got.Op)
		assert.Equal(t, second.Tokens, got.Tokens)
		assert.Equal(t, registry.KindLending, got.Protocols[0].Kind)

		book, err := ledger.Restore(got.Ledger)
		require.NoError(t, err)
		assert.Equal(t, uint64(100), book.ProtocolDeposited("aave").Uint64())

		history, err := s.History(ctx, 10)
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Equal(t, "deposit", history[0].Op)
		assert.Equal(t, "register_token", history[1].Op)
		assert.Empty(t, history[0].State)
	})

	t.Run("Save_SurvivesReopen", func(t *testing.T) {
		s, dsn := openTemp(t)
		snap := sampleSnapshot(t, "deposit", at)
		require.NoError(t, s.Save(ctx, snap))
		require.NoError(t, s.Close())

		reopened, err := Open(dsn)
		require.NoError(t, err)
		defer reopened.Close()
		got, err := reopened.Load(ctx)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, snap.OpID, got.OpID)
	})

	t.Run("Save_RejectsDuplicateOpID", func(t *testing.T) {
		s, _ := openTemp(t)
		snap := sampleSnapshot(t, "deposit", at)
		require.NoError(t, s.Save(ctx, snap))
		assert.Error(t, s.Save(ctx, snap))
	})

	t.Run("Save_RejectsBadOpID", func(t *testing.T) {
		s, _ := openTemp(t)
		snap := sampleSnapshot(t, "deposit", at)
		snap.OpID = "not-a-uuid"
		assert.Error(t, s.Save(ctx, snap))
	})

	t.Run("Open_RequiresDSN", func(t *testing.T) {
		_, err := Open("")
		assert.Error(t, err)
	})
}
