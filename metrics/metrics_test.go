package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	t.Run("NilIsNoop", func(t *testing.T) {
		var m *Metrics
		assert.NotPanics(t, func() {
			m.ObserveOp("deposit", "ok", time.Millisecond)
			m.SetPoolShares("0x01", "aave", 1)
			m.AddRetained("0x01", 1)
		})
	})

	t.Run("RecordsByLabel", func(t *testing.T) {
		reg := prometheus.NewRegistry()
		m := NewMetrics(reg)

		m.ObserveOp("deposit", "ok", time.Millisecond)
		m.ObserveOp("deposit", "ok", time.Millisecond)
		m.ObserveOp("deposit", "external", time.Millisecond)
		m.SetPoolShares("0x01", "aave", 42)
		m.AddRetained("0x01", 5)
		m.AddRetained("0x01", 0)

		assert.Equal(t, 2.0, testutil.ToFloat64(m.opsTotal.WithLabelValues("deposit", "ok")))
		assert.Equal(t, 1.0, testutil.ToFloat64(m.opsTotal.WithLabelValues("deposit", "external")))
		assert.Equal(t, 42.0, testutil.ToFloat64(m.poolShares.WithLabelValues("0x01", "aave")))
		assert.Equal(t, 5.0, testutil.ToFloat64(m.retained.WithLabelValues("0x01")))

		families, err := reg.Gather()
		require.NoError(t, err)
		assert.Len(t, families, 4)
	})
}
