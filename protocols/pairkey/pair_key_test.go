package pairkey

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPairKey(t *testing.T) {
	tokenA := common.HexToAddress("0x0000000000000000000000000000000000000001")
	tokenB := common.HexToAddress("0x0000000000000000000000000000000000000002")

	t.Run("New_KeccakOfTokenAndName", func(t *testing.T) {
		key := New(tokenA, "aave")
		want := crypto.Keccak256(tokenA.Bytes(), []byte("aave"))

		assert.Equal(t, want, key.Bytes())
		assert.Equal(t, key, Pair{Token: tokenA, Protocol: "aave"}.Key())
	})

	t.Run("New_DistinguishesTokenAndProtocol", func(t *testing.T) {
		assert.NotEqual(t, New(tokenA, "aave"), New(tokenB, "aave"))
		assert.NotEqual(t, New(tokenA, "aave"), New(tokenA, "lido"))
	})

	t.Run("String_Hex", func(t *testing.T) {
		key := New(tokenA, "aave")
		str := key.String()
		assert.Len(t, str, 66, "string representation should be 66 chars (0x + 64 hex)")
		assert.Equal(t, "0x"+common.Bytes2Hex(key[:]), str)
		assert.Equal(t, str[2:10], key.Short())
	})

	t.Run("Text_RoundTripAsMapKey", func(t *testing.T) {
		key := New(tokenA, "aave")
		in := map[Key]int{key: 7}

		data, err := json.Marshal(in)
		require.NoError(t, err)
		assert.Contains(t, string(data), key.String())

		var out map[Key]int
		require.NoError(t, json.Unmarshal(data, &out))
		assert.Equal(t, in, out)
	})

	t.Run("UnmarshalText_Validation", func(t *testing.T) {
		var k Key

		assert.Error(t, k.UnmarshalText([]byte("0xZZZ")), "should fail on invalid hex")
		assert.Error(t, k.UnmarshalText([]byte("0x0102")), "should fail on short input")

		tooLong := "0x" + strings.Repeat("00", 33)
		assert.Error(t, k.UnmarshalText([]byte(tooLong)), "should fail if input is > 32 bytes")
	})
}
