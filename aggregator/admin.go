package aggregator

import (
	"context"

	"github.com/Iwinswap/iwinswap-yield-aggregator-go/protocols/registry"
	"github.com/ethereum/go-ethereum/common"
)

// RegisterToken whitelists a token for deposits.
func (a *Aggregator) RegisterToken(ctx context.Context, caller, address common.Address, symbol string, decimals uint8) error {
	return a.run(ctx, "register_token", func(tx *txn) error {
		tx.log("token", address.Hex(), "symbol", symbol, "decimals", decimals)
		if err := a.requireAdmin(caller); err != nil {
			return err
		}
		return tx.tokens.Register(address, symbol, decimals)
	})
}

// SetTokenActive enables or disables new deposits of a token. Existing
// positions can always be withdrawn.
func (a *Aggregator) SetTokenActive(ctx context.Context, caller, address common.Address, active bool) error {
	return a.run(ctx, "set_token_active", func(tx *txn) error {
		tx.log("token", address.Hex(), "active", active)
		if err := a.requireAdmin(caller); err != nil {
			return err
		}
		return tx.tokens.SetActive(address, active)
	})
}

// RegisterProtocol whitelists an external yield source under name and
// connects to it. The name can never be registered again, so its kind and
// reference are fixed.
func (a *Aggregator) RegisterProtocol(ctx context.Context, caller common.Address, name string, ref common.Address, kind registry.Kind, apyBps uint64) error {
	name = registry.Canonical(name)
	return a.run(ctx, "register_protocol", func(tx *txn) error {
		tx.log("protocol", name, "ref", ref.Hex(), "kind", kind.String(), "apy_bps", apyBps)
		if err := a.requireAdmin(caller); err != nil {
			return err
		}
		if err := tx.protocols.Register(name, ref, kind, apyBps, tx.now); err != nil {
			return err
		}
		b, err := a.connect(tx.ctx, kind, ref)
		if err != nil {
			return err
		}
		tx.bindings[name] = b
		return nil
	})
}

// SetProtocolActive enables or disables new positions in a protocol.
// Active positions stay withdrawable while it is disabled.
func (a *Aggregator) SetProtocolActive(ctx context.Context, caller common.Address, name string, active bool) error {
	name = registry.Canonical(name)
	return a.run(ctx, "set_protocol_active", func(tx *txn) error {
		tx.log("protocol", name, "active", active)
		if err := a.requireAdmin(caller); err != nil {
			return err
		}
		return tx.protocols.SetActive(name, active)
	})
}

// UpdateAPY changes a protocol's nominal rate. Yield estimates of every pair
// on the protocol restart from now at the new rate.
func (a *Aggregator) UpdateAPY(ctx context.Context, caller common.Address, name string, apyBps uint64) error {
	name = registry.Canonical(name)
	return a.run(ctx, "update_apy", func(tx *txn) error {
		tx.log("protocol", name, "apy_bps", apyBps)
		if err := a.requireAdmin(caller); err != nil {
			return err
		}
		if err := tx.protocols.UpdateAPY(name, apyBps, tx.now); err != nil {
			return err
		}
		tx.book.ResetCheckpoints(name, apyBps, tx.now)
		return nil
	})
}
