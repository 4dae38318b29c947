package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Iwinswap/iwinswap-yield-aggregator-go/protocols/registry"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
admin: "0x00000000000000000000000000000000000000a1"
custody: "0x00000000000000000000000000000000000000c1"
depositor: "0x00000000000000000000000000000000000000d1"
store_dsn: "aggregator.db"
check_invariants: true
policy:
  name: cliff
  penalty_bps: 150
  cliff_period: 72h
tokens:
  - address: "0x0000000000000000000000000000000000000e01"
    symbol: WETH
    decimals: 18
    fund: "100"
protocols:
  - name: lido
    ref: "0x0000000000000000000000000000000000000f01"
    kind: liquid-staking
    apy_bps: 500
`

func write(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		cfg, err := LoadConfig(write(t, sample))
		require.NoError(t, err)

		assert.Equal(t, common.HexToAddress("0xa1"), cfg.AdminAddress())
		assert.Equal(t, common.HexToAddress("0xd1"), cfg.DepositorAddress())
		assert.True(t, cfg.CheckInvariants)
		require.NotNil(t, cfg.Policy.PenaltyBps)
		assert.Equal(t, uint64(150), *cfg.Policy.PenaltyBps)
		assert.Equal(t, 72*time.Hour, cfg.Policy.CliffPeriod)
		require.Len(t, cfg.Protocols, 1)
		assert.Equal(t, registry.KindLiquid, cfg.Protocols[0].ParsedKind())
		assert.Equal(t, "100", cfg.Tokens[0].Fund)
	})

	t.Run("MissingFile", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("RejectsBadAddress", func(t *testing.T) {
		_, err := LoadConfig(write(t, `admin: "nope"`))
		assert.ErrorContains(t, err, "admin")
	})

	t.Run("RejectsBadKind", func(t *testing.T) {
		body := `
admin: "0x00000000000000000000000000000000000000a1"
custody: "0x00000000000000000000000000000000000000c1"
depositor: "0x00000000000000000000000000000000000000d1"
protocols:
  - name: x
    ref: "0x0000000000000000000000000000000000000f01"
    kind: perpetual
`
		_, err := LoadConfig(write(t, body))
		assert.ErrorIs(t, err, registry.ErrInvalidKind)
	})

	t.Run("RejectsBadPolicy", func(t *testing.T) {
		body := `
admin: "0x00000000000000000000000000000000000000a1"
custody: "0x00000000000000000000000000000000000000c1"
depositor: "0x00000000000000000000000000000000000000d1"
policy:
  name: lottery
protocols:
  - name: x
    ref: "0x0000000000000000000000000000000000000f01"
    kind: lending
`
		_, err := LoadConfig(write(t, body))
		assert.ErrorContains(t, err, "lottery")
	})
}
