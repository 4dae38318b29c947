package token

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Iwinswap/iwinswap-yield-aggregator-go/pkg/units"
	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrUnknownToken   = errors.New("token: not registered")
	ErrTokenInactive  = errors.New("token: inactive")
	ErrDuplicateToken = errors.New("token: already registered")
	ErrInvalidToken   = errors.New("token: invalid definition")
)

// TokenView represents the data for a single supported token.
type TokenView struct {
	Address  common.Address `json:"address"`
	Symbol   string         `json:"symbol"`
	Decimals uint8          `json:"decimals"`
	Active   bool           `json:"active"`
}

// Registry is the whitelist of assets the aggregator custodies. Tokens are
// never removed; deactivation only blocks new deposits.
//
// Registry is not safe for concurrent use; the aggregator serializes access.
type Registry struct {
	byAddress map[common.Address]*TokenView
	order     []common.Address
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byAddress: make(map[common.Address]*TokenView)}
}

// Restore rebuilds a registry from a previously listed set of tokens.
func Restore(tokens []TokenView) (*Registry, error) {
	r := NewRegistry()
	for _, t := range tokens {
		if err := r.Register(t.Address, t.Symbol, t.Decimals); err != nil {
			return nil, err
		}
		r.byAddress[t.Address].Active = t.Active
	}
	return r, nil
}

// Register adds an active token.
func (r *Registry) Register(address common.Address, symbol string, decimals uint8) error {
	symbol = strings.TrimSpace(symbol)
	switch {
	case address == (common.Address{}):
		return fmt.Errorf("%w: zero address", ErrInvalidToken)
	case symbol == "":
		return fmt.Errorf("%w: empty symbol", ErrInvalidToken)
	case decimals > units.MaxDecimals:
		return fmt.Errorf("%w: %d decimals", ErrInvalidToken, decimals)
	}
	if _, ok := r.byAddress[address]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateToken, address.Hex())
	}

	r.byAddress[address] = &TokenView{
		Address:  address,
		Symbol:   symbol,
		Decimals: decimals,
		Active:   true,
	}
	r.order = append(r.order, address)
	return nil
}

// SetActive toggles whether new deposits of the token are accepted.
func (r *Registry) SetActive(address common.Address, active bool) error {
	t, ok := r.byAddress[address]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownToken, address.Hex())
	}
	t.Active = active
	return nil
}

// GetByAddress retrieves a token by its contract address.
func (r *Registry) GetByAddress(address common.Address) (TokenView, bool) {
	t, ok := r.byAddress[address]
	if !ok {
		return TokenView{}, false
	}
	return *t, true
}

// RequireActive returns the token if it is registered and active.
func (r *Registry) RequireActive(address common.Address) (TokenView, error) {
	t, ok := r.GetByAddress(address)
	if !ok {
		return TokenView{}, fmt.Errorf("%w: %s", ErrUnknownToken, address.Hex())
	}
	if !t.Active {
		return TokenView{}, fmt.Errorf("%w: %s", ErrTokenInactive, t.Symbol)
	}
	return t, nil
}

// All returns a copy of every token in registration order.
func (r *Registry) All() []TokenView {
	all := make([]TokenView, 0, len(r.order))
	for _, addr := range r.order {
		all = append(all, *r.byAddress[addr])
	}
	return all
}

// Clone returns a deep copy of the registry.
func (r *Registry) Clone() *Registry {
	c := &Registry{
		byAddress: make(map[common.Address]*TokenView, len(r.byAddress)),
		order:     make([]common.Address, len(r.order)),
	}
	copy(c.order, r.order)
	for addr, t := range r.byAddress {
		cp := *t
		c.byAddress[addr] = &cp
	}
	return c
}
