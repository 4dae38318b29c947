package pairkey

import (
	"encoding/hex"
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Pair names a (token, protocol) bucket: the unit at which balances, shares
// and pool totals are tracked.
type Pair struct {
	Token    common.Address `json:"token"`
	Protocol string         `json:"protocol"`
}

// Key returns the stable identifier of the pair.
func (p Pair) Key() Key {
	return New(p.Token, p.Protocol)
}

func (p Pair) String() string {
	return p.Protocol + "/" + p.Token.Hex()
}

// Key is a fixed-size 32-byte identifier for a Pair.
//
// Motivation:
// Protocol names are arbitrary strings and token identifiers are 20-byte
// addresses; Key folds both into a single comparable, hashable value that can
// be used as a map key and serialized as text.
//
// Encoding rules:
//   - Key = keccak256(token[0..19] || utf8(protocol))
//
// A Key cannot be reversed into its Pair; holders keep the Pair alongside it.
type Key [32]byte

// New derives the Key of (token, protocol).
func New(token common.Address, protocol string) Key {
	return Key(crypto.Keccak256Hash(token.Bytes(), []byte(protocol)))
}

// Bytes returns the raw underlying byte slice.
func (k Key) Bytes() []byte {
	return k[:]
}

// String returns the hex string representation of the key.
// Output: A standard hex string starting with "0x".
func (k Key) String() string {
	return "0x" + hex.EncodeToString(k[:])
}

// Short returns the first four bytes in hex, for log lines and metric labels.
func (k Key) Short() string {
	return hex.EncodeToString(k[:4])
}

// MarshalText serializes the key as a hex string, which also lets it be
// used as a JSON object key.
func (k Key) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText parses a hex string into the key.
//
// Input:
//   - Hex string of exactly 64 characters
//   - Optional "0x" prefix
func (k *Key) UnmarshalText(data []byte) error {
	s := strings.TrimPrefix(string(data), "0x")

	b, err := hex.DecodeString(s)
	if err != nil {
		return err
	}
	if len(b) != len(k) {
		return errors.New("pair key must be exactly 32 bytes")
	}

	copy(k[:], b)
	return nil
}
