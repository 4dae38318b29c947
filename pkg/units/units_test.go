package units

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnits(t *testing.T) {
	t.Run("Format_Decimals", func(t *testing.T) {
		assert.Equal(t, "1.5", Format(uint256.NewInt(1_500_000), 6))
		assert.Equal(t, "0", Format(nil, 18))
		assert.Equal(t, "42", Format(uint256.NewInt(42), 0))
	})

	t.Run("Parse_RoundTrip", func(t *testing.T) {
		z, err := Parse("100", 18)
		require.NoError(t, err)
		assert.Equal(t, "100000000000000000000", z.Dec())
		assert.Equal(t, "100", Format(z, 18))

		z, err = Parse("0.000001", 6)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), z.Uint64())
	})

	t.Run("Parse_Rejects", func(t *testing.T) {
		_, err := Parse("-1", 18)
		assert.ErrorIs(t, err, ErrNegative)

		_, err = Parse("0.0000001", 6)
		assert.ErrorIs(t, err, ErrTooPrecise)

		_, err = Parse("abc", 6)
		assert.Error(t, err)

		_, err = Parse("1", 78)
		assert.ErrorIs(t, err, ErrBadPrecision)
	})

	t.Run("One", func(t *testing.T) {
		assert.Equal(t, uint64(1_000_000), One(6).Uint64())
		assert.Equal(t, "1000000000000000000", One(18).Dec())
	})

	t.Run("Float_Approximates", func(t *testing.T) {
		assert.Equal(t, 1.5e6, Float(uint256.NewInt(1_500_000)))
		assert.Equal(t, 0.0, Float(nil))
		assert.InDelta(t, 1e20, Float(One(20)), 1e5)
	})
}
