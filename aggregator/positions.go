package aggregator

import (
	"context"
	"fmt"
	"time"

	"github.com/Iwinswap/iwinswap-yield-aggregator-go/adapter"
	"github.com/Iwinswap/iwinswap-yield-aggregator-go/ledger"
	"github.com/Iwinswap/iwinswap-yield-aggregator-go/pkg/safemath"
	"github.com/Iwinswap/iwinswap-yield-aggregator-go/protocols/pairkey"
	"github.com/Iwinswap/iwinswap-yield-aggregator-go/protocols/registry"
	"github.com/Iwinswap/iwinswap-yield-aggregator-go/protocols/token"
	"github.com/Iwinswap/iwinswap-yield-aggregator-go/settlement"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Deposit pulls amount of tok from depositor and forwards it into protocol
// as a flexible holding, withdrawable at any time through WithdrawImmediate.
// It returns the shares issued.
func (a *Aggregator) Deposit(ctx context.Context, depositor, tok common.Address, amount *uint256.Int, protocol string) (*uint256.Int, error) {
	var shares *uint256.Int
	err := a.run(ctx, "deposit", func(tx *txn) error {
		tx.log("depositor", depositor.Hex(), "token", tok.Hex(), "protocol", protocol, "amount", decString(amount))
		p, pair, err := a.admit(tx, tok, amount, protocol)
		if err != nil {
			return err
		}
		if err := a.pull(tx, tok, depositor, amount); err != nil {
			return err
		}
		shares, err = a.invest(tx, depositor, p, pair, amount, false)
		if err != nil {
			return err
		}
		tx.log("shares", shares.Dec())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return shares, nil
}

// CreateTimeLockedPosition locks amount of tok in protocol for duration,
// starting now.
func (a *Aggregator) CreateTimeLockedPosition(ctx context.Context, depositor, tok common.Address, amount *uint256.Int, protocol string, duration time.Duration) (uint64, error) {
	return a.ScheduleTimeLockedPosition(ctx, depositor, tok, amount, protocol, time.Time{}, duration)
}

// ScheduleTimeLockedPosition locks amount of tok in protocol for duration
// from start. The funds are taken into custody immediately. A start in the
// future leaves the stake scheduled until ExecuteScheduled forwards it.
func (a *Aggregator) ScheduleTimeLockedPosition(ctx context.Context, depositor, tok common.Address, amount *uint256.Int, protocol string, start time.Time, duration time.Duration) (uint64, error) {
	var id uint64
	err := a.run(ctx, "create_position", func(tx *txn) error {
		tx.log("depositor", depositor.Hex(), "token", tok.Hex(), "protocol", protocol, "amount", decString(amount), "duration", duration.String())
		p, pair, err := a.admit(tx, tok, amount, protocol)
		if err != nil {
			return err
		}
		w, err := a.engine.Plan(start, duration, tx.now)
		if err != nil {
			return err
		}
		if err := a.pull(tx, tok, depositor, amount); err != nil {
			return err
		}

		stake := ledger.Stake{
			Owner:  depositor,
			Pair:   pair,
			Amount: *amount,
			Start:  w.Start,
			End:    w.End,
			State:  ledger.StakeScheduled,
		}
		if w.Immediate {
			shares, err := a.invest(tx, depositor, p, pair, amount, true)
			if err != nil {
				return err
			}
			stake.Shares = *shares
			stake.State = ledger.StakeActive
			stake.ExecutedAt = tx.now
		}
		if id, err = tx.book.OpenStake(stake); err != nil {
			return err
		}
		tx.log("stake_id", id, "state", stake.State.String(), "end", stake.End)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// ExecuteScheduled forwards the custodied funds of a scheduled stake whose
// start time has arrived. Anyone may call it. The funds were committed when
// the stake was created, so deactivating the token or the protocol since
// does not hold them back.
func (a *Aggregator) ExecuteScheduled(ctx context.Context, id uint64) error {
	return a.run(ctx, "execute_position", func(tx *txn) error {
		tx.log("stake_id", id)
		s, ok := tx.book.Stake(id)
		if !ok {
			return fmt.Errorf("%w: %d", ledger.ErrUnknownStake, id)
		}
		if err := a.engine.CanExecute(s, tx.now); err != nil {
			return err
		}
		if _, ok := tx.tokens.GetByAddress(s.Pair.Token); !ok {
			return fmt.Errorf("%w: %s", token.ErrUnknownToken, s.Pair.Token.Hex())
		}
		p, err := tx.protocols.Require(s.Pair.Protocol)
		if err != nil {
			return err
		}
		shares, err := a.invest(tx, s.Owner, p, s.Pair, &s.Amount, true)
		if err != nil {
			return err
		}
		tx.log("depositor", s.Owner.Hex(), "protocol", p.Name, "shares", shares.Dec())
		return tx.book.ActivateStake(id, shares, tx.now)
	})
}

// CancelScheduled returns the custodied funds of a scheduled stake to its
// owner. Only the owner may cancel, and only before the stake executes.
func (a *Aggregator) CancelScheduled(ctx context.Context, caller common.Address, id uint64) error {
	return a.run(ctx, "cancel_position", func(tx *txn) error {
		tx.log("caller", caller.Hex(), "stake_id", id)
		s, ok := tx.book.Stake(id)
		if !ok {
			return fmt.Errorf("%w: %d", ledger.ErrUnknownStake, id)
		}
		if s.Owner != caller {
			return fmt.Errorf("%w: stake %d", ErrNotOwner, id)
		}
		if err := tx.book.CancelStake(id, tx.now); err != nil {
			return err
		}
		tx.log("token", s.Pair.Token.Hex(), "refund", s.Amount.Dec())
		return a.push(tx, s.Pair.Token, s.Owner, &s.Amount)
	})
}

// WithdrawPosition redeems an active stake and pays the owner what the
// protocol returned, less any penalty the withdrawal policy applies.
// Stakes stay withdrawable after their protocol or token is deactivated.
func (a *Aggregator) WithdrawPosition(ctx context.Context, caller common.Address, id uint64) (settlement.Settlement, error) {
	var out settlement.Settlement
	err := a.run(ctx, "withdraw_position", func(tx *txn) error {
		tx.log("caller", caller.Hex(), "stake_id", id)
		s, ok := tx.book.Stake(id)
		if !ok {
			return fmt.Errorf("%w: %d", ledger.ErrUnknownStake, id)
		}
		if s.Owner != caller {
			return fmt.Errorf("%w: stake %d", ErrNotOwner, id)
		}
		penaltyBps, err := a.engine.Eligible(s, tx.now)
		if err != nil {
			return err
		}

		returned, err := a.redeem(tx, s.Owner, s.Pair, &s.Shares)
		if err != nil {
			return err
		}
		if err := tx.book.RecordWithdrawal(ledger.Entry{
			Depositor: s.Owner,
			Pair:      s.Pair,
			Amount:    &s.Amount,
			Shares:    &s.Shares,
			Locked:    true,
			At:        tx.now,
		}); err != nil {
			return err
		}
		if err := tx.book.CloseStake(id, tx.now); err != nil {
			return err
		}
		if out, err = a.pay(tx, s.Owner, s.Pair, &s.Amount, returned, penaltyBps); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return settlement.Settlement{}, err
	}
	return out, nil
}

// WithdrawImmediate redeems amount of recorded principal from depositor's
// flexible holding on (tok, protocol) and pays out what the protocol
// returned for it. Time-locked principal is released only by
// WithdrawPosition.
func (a *Aggregator) WithdrawImmediate(ctx context.Context, depositor, tok common.Address, amount *uint256.Int, protocol string) (settlement.Settlement, error) {
	var out settlement.Settlement
	err := a.run(ctx, "withdraw_immediate", func(tx *txn) error {
		tx.log("depositor", depositor.Hex(), "token", tok.Hex(), "protocol", protocol, "amount", decString(amount))
		if amount == nil || amount.IsZero() {
			return ErrZeroAmount
		}
		p, err := tx.protocols.Require(protocol)
		if err != nil {
			return err
		}
		pair := pairkey.Pair{Token: tok, Protocol: p.Name}
		h, ok := tx.book.Holding(depositor, pair)
		if !ok {
			return fmt.Errorf("%w: no holding on %s", ledger.ErrInsufficientBalance, pair)
		}
		flexBalance, flexShares, err := h.Flexible()
		if err != nil {
			return err
		}
		if flexBalance.Lt(amount) {
			return fmt.Errorf("%w: %s available on %s, %s requested", ledger.ErrInsufficientBalance, flexBalance.Dec(), pair, amount.Dec())
		}
		shares, err := safemath.MulDiv(flexShares, amount, flexBalance)
		if err != nil {
			return err
		}
		if shares.IsZero() {
			return adapter.ErrZeroShares
		}

		returned, err := a.redeem(tx, depositor, pair, shares)
		if err != nil {
			return err
		}
		if err := tx.book.RecordWithdrawal(ledger.Entry{
			Depositor: depositor,
			Pair:      pair,
			Amount:    amount,
			Shares:    shares,
			At:        tx.now,
		}); err != nil {
			return err
		}
		tx.log("shares", shares.Dec())
		if out, err = a.pay(tx, depositor, pair, amount, returned, 0); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return settlement.Settlement{}, err
	}
	return out, nil
}

// admit checks that a new position of amount may be opened on (tok, protocol).
func (a *Aggregator) admit(tx *txn, tok common.Address, amount *uint256.Int, protocol string) (registry.ProtocolView, pairkey.Pair, error) {
	if amount == nil || amount.IsZero() {
		return registry.ProtocolView{}, pairkey.Pair{}, ErrZeroAmount
	}
	if _, err := tx.tokens.RequireActive(tok); err != nil {
		return registry.ProtocolView{}, pairkey.Pair{}, err
	}
	p, err := tx.protocols.RequireActive(protocol)
	if err != nil {
		return registry.ProtocolView{}, pairkey.Pair{}, err
	}
	return p, pairkey.Pair{Token: tok, Protocol: p.Name}, nil
}

// pull moves amount of tok from a depositor's wallet into custody.
func (a *Aggregator) pull(tx *txn, tok, from common.Address, amount *uint256.Int) error {
	if err := a.custodian.Pull(tx.ctx, tok, from, amount); err != nil {
		return fmt.Errorf("%w: pull %s: %w", adapter.ErrExternal, tok.Hex(), err)
	}
	refund := new(uint256.Int).Set(amount)
	tx.compensate(func(ctx context.Context) error {
		return a.custodian.Push(ctx, tok, from, refund)
	})
	return nil
}

// push pays amount of tok out of custody.
func (a *Aggregator) push(tx *txn, tok, to common.Address, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	if err := a.custodian.Push(tx.ctx, tok, to, amount); err != nil {
		return fmt.Errorf("%w: push %s: %w", adapter.ErrExternal, tok.Hex(), err)
	}
	clawback := new(uint256.Int).Set(amount)
	tx.compensate(func(ctx context.Context) error {
		return a.custodian.Pull(ctx, tok, to, clawback)
	})
	return nil
}

// invest forwards custodied funds into p and credits the shares issued.
func (a *Aggregator) invest(tx *txn, depositor common.Address, p registry.ProtocolView, pair pairkey.Pair, amount *uint256.Int, locked bool) (*uint256.Int, error) {
	b, err := tx.binding(p.Name)
	if err != nil {
		return nil, err
	}
	if err := a.harvest(tx, b, pair); err != nil {
		return nil, err
	}
	poolShares := tx.book.PoolShares(pair)
	shares, err := a.dispatcher.Deposit(tx.ctx, b, adapter.DepositRequest{Token: pair.Token, Amount: amount, PoolShares: poolShares})
	if err != nil {
		return nil, err
	}
	outstanding := new(uint256.Int).Add(poolShares, shares)
	tx.compensate(func(ctx context.Context) error {
		_, err := a.dispatcher.Withdraw(ctx, b, adapter.WithdrawRequest{Token: pair.Token, Shares: shares, PoolShares: outstanding})
		return err
	})

	if err := tx.book.RecordDeposit(ledger.Entry{
		Depositor: depositor,
		Pair:      pair,
		Amount:    amount,
		Shares:    shares,
		Locked:    locked,
		APYBps:    p.APYBps,
		At:        tx.now,
	}); err != nil {
		return nil, err
	}
	tx.touch(pair)
	return shares, nil
}

// redeem withdraws owner's shares of pair from its protocol into custody and
// returns the underlying received plus the rewards allocated to those shares.
func (a *Aggregator) redeem(tx *txn, owner common.Address, pair pairkey.Pair, shares *uint256.Int) (*uint256.Int, error) {
	b, err := tx.binding(pair.Protocol)
	if err != nil {
		return nil, err
	}
	if err := a.harvest(tx, b, pair); err != nil {
		return nil, err
	}
	poolShares := tx.book.PoolShares(pair)
	returned, err := a.dispatcher.Withdraw(tx.ctx, b, adapter.WithdrawRequest{Token: pair.Token, Shares: shares, PoolShares: poolShares})
	if err != nil {
		return nil, err
	}
	if !returned.IsZero() {
		remaining := new(uint256.Int).Sub(poolShares, shares)
		amount := new(uint256.Int).Set(returned)
		tx.compensate(func(ctx context.Context) error {
			_, err := a.dispatcher.Deposit(ctx, b, adapter.DepositRequest{Token: pair.Token, Amount: amount, PoolShares: remaining})
			return err
		})
	}
	tx.touch(pair)

	rewards, err := tx.book.TakeRewards(owner, pair, shares)
	if err != nil {
		return nil, err
	}
	if rewards.IsZero() {
		return returned, nil
	}
	tx.log("rewards", rewards.Dec())
	return safemath.Add(returned, rewards)
}

// harvest claims the rewards pending on b and allocates them to pair's
// holdings before any share count changes, so they go to the shares that were
// staked while they accrued. A failed claim leaves them pending for a later
// harvest.
func (a *Aggregator) harvest(tx *txn, b adapter.Binding, pair pairkey.Pair) error {
	rewards, err := a.dispatcher.Harvest(tx.ctx, b)
	if err != nil {
		tx.log("harvest_error", err)
		return nil
	}
	if rewards.IsZero() {
		return nil
	}
	tx.harvested = append(tx.harvested, harvest{pair: pair, amount: rewards})
	tx.log("harvested", rewards.Dec())
	return a.credit(tx, pair, rewards)
}

// credit allocates harvested rewards to pair's holdings. What cannot be
// allocated, the whole amount when no shares are outstanding, is retained.
func (a *Aggregator) credit(tx *txn, pair pairkey.Pair, rewards *uint256.Int) error {
	if tx.book.PoolShares(pair).IsZero() {
		return tx.retain(pair.Token, rewards)
	}
	dust, err := tx.book.AddRewards(pair, rewards)
	if err != nil {
		return err
	}
	if dust.IsZero() {
		return nil
	}
	return tx.retain(pair.Token, dust)
}

// pay settles a redemption of principal that returned `returned`, books the
// penalty and the claim and pushes the payout to the owner.
func (a *Aggregator) pay(tx *txn, owner common.Address, pair pairkey.Pair, principal, returned *uint256.Int, penaltyBps uint64) (settlement.Settlement, error) {
	out, err := settlement.Settle(principal, returned, penaltyBps)
	if err != nil {
		return settlement.Settlement{}, err
	}
	if !out.Penalty.IsZero() {
		if err := tx.retain(pair.Token, out.Penalty); err != nil {
			return settlement.Settlement{}, err
		}
	}
	if err := tx.book.AddClaim(owner, out.Payout, tx.now); err != nil {
		return settlement.Settlement{}, err
	}
	if err := a.push(tx, pair.Token, owner, out.Payout); err != nil {
		return settlement.Settlement{}, err
	}
	tx.log("returned", out.Returned.Dec(), "yield", out.Yield.Dec(), "penalty", out.Penalty.Dec(), "payout", out.Payout.Dec())
	return out, nil
}

func decString(v *uint256.Int) string {
	if v == nil {
		return "<nil>"
	}
	return v.Dec()
}
