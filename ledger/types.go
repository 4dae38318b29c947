package ledger

import (
	"fmt"
	"time"

	"github.com/Iwinswap/iwinswap-yield-aggregator-go/pkg/safemath"
	"github.com/Iwinswap/iwinswap-yield-aggregator-go/protocols/pairkey"
	"github.com/Iwinswap/iwinswap-yield-aggregator-go/yield"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// StakeState is the lifecycle of a time-locked stake:
// Scheduled -> Active -> Withdrawn. Withdrawn is terminal.
type StakeState uint8

const (
	StakeScheduled StakeState = iota + 1
	StakeActive
	StakeWithdrawn
)

var stakeStateNames = map[StakeState]string{
	StakeScheduled: "scheduled",
	StakeActive:    "active",
	StakeWithdrawn: "withdrawn",
}

func (s StakeState) String() string {
	if name, ok := stakeStateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

func (s StakeState) MarshalText() ([]byte, error) {
	if _, ok := stakeStateNames[s]; !ok {
		return nil, fmt.Errorf("ledger: unknown stake state %d", uint8(s))
	}
	return []byte(s.String()), nil
}

func (s *StakeState) UnmarshalText(data []byte) error {
	for state, name := range stakeStateNames {
		if name == string(data) {
			*s = state
			return nil
		}
	}
	return fmt.Errorf("ledger: unknown stake state %q", data)
}

// Holding is a depositor's claim on one (token, protocol) pair. Balance is
// recorded principal; Locked and LockedShares are the part of Balance and
// Shares that belongs to active time-locked stakes. Rewards are farm rewards
// allocated to the holding and not yet paid out.
type Holding struct {
	Pair         pairkey.Pair
	Balance      uint256.Int
	Shares       uint256.Int
	Locked       uint256.Int
	LockedShares uint256.Int
	Rewards      uint256.Int
	UpdatedAt    time.Time
}

// Flexible returns the balance and shares not held by a time lock.
func (h *Holding) Flexible() (balance, shares *uint256.Int, err error) {
	if balance, err = safemath.Sub(&h.Balance, &h.Locked); err != nil {
		return nil, nil, fmt.Errorf("%w: locked principal exceeds balance on %s", ErrInvariantViolation, h.Pair)
	}
	if shares, err = safemath.Sub(&h.Shares, &h.LockedShares); err != nil {
		return nil, nil, fmt.Errorf("%w: locked shares exceed shares on %s", ErrInvariantViolation, h.Pair)
	}
	return balance, shares, nil
}

// Position is everything the ledger records for one depositor.
type Position struct {
	Depositor      common.Address
	TotalDeposited uint256.Int
	TotalClaimed   uint256.Int
	LastActionAt   time.Time
	Holdings       map[pairkey.Key]*Holding
	Stakes         []uint64
}

func newPosition(depositor common.Address) *Position {
	return &Position{
		Depositor: depositor,
		Holdings:  make(map[pairkey.Key]*Holding),
	}
}

func (p *Position) clone() *Position {
	c := *p
	c.Holdings = make(map[pairkey.Key]*Holding, len(p.Holdings))
	for k, h := range p.Holdings {
		hc := *h
		c.Holdings[k] = &hc
	}
	c.Stakes = append([]uint64(nil), p.Stakes...)
	return &c
}

// Stake is a single time-locked deposit. Amount and Shares are fixed once the
// stake is executed.
type Stake struct {
	ID          uint64
	Owner       common.Address
	Pair        pairkey.Pair
	Amount      uint256.Int
	Shares      uint256.Int
	Start       time.Time
	End         time.Time
	State       StakeState
	ExecutedAt  time.Time
	WithdrawnAt time.Time
}

// Matured reports whether the lock window has ended at now.
func (s *Stake) Matured(now time.Time) bool {
	return !now.Before(s.End)
}

// Pool is the aggregate of every depositor's claim on one pair. Shares is the
// divisor that converts an individual's shares into underlying for rebasing
// protocols. Rewards is the sum of the rewards allocated to its holdings.
type Pool struct {
	Pair       pairkey.Pair
	Shares     uint256.Int
	Deposited  uint256.Int
	Rewards    uint256.Int
	Checkpoint yield.Checkpoint
}
