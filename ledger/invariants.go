package ledger

import (
	"fmt"

	"github.com/Iwinswap/iwinswap-yield-aggregator-go/pkg/safemath"
	"github.com/Iwinswap/iwinswap-yield-aggregator-go/protocols/pairkey"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

type lockKey struct {
	owner common.Address
	key   pairkey.Key
}

// CheckInvariants verifies every cross-entity relation the ledger maintains:
//   - a position's total deposited equals the sum of its holding balances
//   - a holding's locked bucket equals the sum of its owner's active stakes on the pair
//   - a pool's shares, deposits and rewards equal the sums over every holding on the pair
//   - a pool without shares holds no rewards
//   - a protocol's aggregate equals the sum of its pools' deposits
func (b *Book) CheckInvariants() error {
	locked := make(map[lockKey]*[2]uint256.Int)
	for _, s := range b.stakes {
		if s.State != StakeActive {
			continue
		}
		k := lockKey{owner: s.Owner, key: s.Pair.Key()}
		sums, ok := locked[k]
		if !ok {
			sums = new([2]uint256.Int)
			locked[k] = sums
		}
		if err := accumulate(&sums[0], &s.Amount); err != nil {
			return err
		}
		if err := accumulate(&sums[1], &s.Shares); err != nil {
			return err
		}
	}

	poolSums := make(map[pairkey.Key]*[3]uint256.Int)
	for addr, pos := range b.positions {
		total := safemath.Zero()
		for key, h := range pos.Holdings {
			if err := accumulate(total, &h.Balance); err != nil {
				return err
			}
			if h.Locked.Gt(&h.Balance) || h.LockedShares.Gt(&h.Shares) {
				return fmt.Errorf("%w: %s locked bucket exceeds holding on %s", ErrInvariantViolation, addr.Hex(), h.Pair)
			}

			want := new([2]uint256.Int)
			if sums, ok := locked[lockKey{owner: addr, key: key}]; ok {
				want = sums
				delete(locked, lockKey{owner: addr, key: key})
			}
			if !h.Locked.Eq(&want[0]) || !h.LockedShares.Eq(&want[1]) {
				return fmt.Errorf("%w: %s locked %s/%s on %s, active stakes hold %s/%s", ErrInvariantViolation,
					addr.Hex(), h.Locked.Dec(), h.LockedShares.Dec(), h.Pair, want[0].Dec(), want[1].Dec())
			}

			sums, ok := poolSums[key]
			if !ok {
				sums = new([3]uint256.Int)
				poolSums[key] = sums
			}
			if err := accumulate(&sums[0], &h.Shares); err != nil {
				return err
			}
			if err := accumulate(&sums[1], &h.Balance); err != nil {
				return err
			}
			if err := accumulate(&sums[2], &h.Rewards); err != nil {
				return err
			}
		}
		if !total.Eq(&pos.TotalDeposited) {
			return fmt.Errorf("%w: %s total deposited %s, holdings sum %s", ErrInvariantViolation,
				addr.Hex(), pos.TotalDeposited.Dec(), total.Dec())
		}
	}
	if len(locked) > 0 {
		return fmt.Errorf("%w: %d active stake buckets without a holding", ErrInvariantViolation, len(locked))
	}

	protocolSums := make(map[string]*uint256.Int)
	for key, p := range b.pools {
		want := new([3]uint256.Int)
		if sums, ok := poolSums[key]; ok {
			want = sums
		}
		if !p.Shares.Eq(&want[0]) {
			return fmt.Errorf("%w: pool %s shares %s, holdings sum %s", ErrInvariantViolation, p.Pair, p.Shares.Dec(), want[0].Dec())
		}
		if !p.Deposited.Eq(&want[1]) {
			return fmt.Errorf("%w: pool %s deposited %s, holdings sum %s", ErrInvariantViolation, p.Pair, p.Deposited.Dec(), want[1].Dec())
		}
		if !p.Rewards.Eq(&want[2]) {
			return fmt.Errorf("%w: pool %s rewards %s, holdings sum %s", ErrInvariantViolation, p.Pair, p.Rewards.Dec(), want[2].Dec())
		}
		if p.Shares.IsZero() && !p.Rewards.IsZero() {
			return fmt.Errorf("%w: pool %s holds %s rewards without shares", ErrInvariantViolation, p.Pair, p.Rewards.Dec())
		}
		sum, ok := protocolSums[p.Pair.Protocol]
		if !ok {
			sum = safemath.Zero()
			protocolSums[p.Pair.Protocol] = sum
		}
		if err := accumulate(sum, &p.Deposited); err != nil {
			return err
		}
	}
	for name, total := range b.protocols {
		want := safemath.Zero()
		if sum, ok := protocolSums[name]; ok {
			want = sum
		}
		if !total.Eq(want) {
			return fmt.Errorf("%w: protocol %s aggregate %s, pools sum %s", ErrInvariantViolation, name, total.Dec(), want.Dec())
		}
	}
	return nil
}

func accumulate(dst, v *uint256.Int) error {
	sum, err := safemath.Add(dst, v)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvariantViolation, err)
	}
	dst.Set(sum)
	return nil
}
