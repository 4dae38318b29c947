package ledger

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// OpenStake stores s under a new ID and appends it to the owner's position.
// s.State must be StakeScheduled or StakeActive; an active stake's principal
// must already be recorded through RecordDeposit with Locked set.
func (b *Book) OpenStake(s Stake) (uint64, error) {
	if s.State != StakeScheduled && s.State != StakeActive {
		return 0, fmt.Errorf("%w: cannot open a %s stake", ErrStakeState, s.State)
	}
	b.nextStakeID++
	s.ID = b.nextStakeID

	pos, ok := b.positions[s.Owner]
	if !ok {
		pos = newPosition(s.Owner)
		b.positions[s.Owner] = pos
	}
	pos.Stakes = append(pos.Stakes, s.ID)
	b.stakes[s.ID] = &s
	return s.ID, nil
}

// ActivateStake moves a scheduled stake to active with its issued shares.
func (b *Book) ActivateStake(id uint64, shares *uint256.Int, at time.Time) error {
	s, ok := b.stakes[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownStake, id)
	}
	if s.State != StakeScheduled {
		return fmt.Errorf("%w: stake %d is %s", ErrStakeState, id, s.State)
	}
	s.Shares.Set(shares)
	s.State = StakeActive
	s.ExecutedAt = at
	return nil
}

// CloseStake moves an active stake to withdrawn.
func (b *Book) CloseStake(id uint64, at time.Time) error {
	s, ok := b.stakes[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownStake, id)
	}
	if s.State != StakeActive {
		return fmt.Errorf("%w: stake %d is %s", ErrStakeState, id, s.State)
	}
	s.State = StakeWithdrawn
	s.WithdrawnAt = at
	return nil
}

// CancelStake moves a scheduled stake straight to withdrawn. Its funds never
// left custody, so no holding changes.
func (b *Book) CancelStake(id uint64, at time.Time) error {
	s, ok := b.stakes[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownStake, id)
	}
	if s.State != StakeScheduled {
		return fmt.Errorf("%w: stake %d is %s", ErrStakeState, id, s.State)
	}
	s.State = StakeWithdrawn
	s.WithdrawnAt = at
	return nil
}

// Stake returns a copy of stake id.
func (b *Book) Stake(id uint64) (Stake, bool) {
	s, ok := b.stakes[id]
	if !ok {
		return Stake{}, false
	}
	return *s, true
}

// StakesOf returns copies of depositor's stakes in creation order.
func (b *Book) StakesOf(depositor common.Address) []Stake {
	pos, ok := b.positions[depositor]
	if !ok {
		return nil
	}
	out := make([]Stake, 0, len(pos.Stakes))
	for _, id := range pos.Stakes {
		out = append(out, *b.stakes[id])
	}
	return out
}
