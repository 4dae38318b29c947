// Package settlement owns the time-lock state machine rules and the payout
// arithmetic of a withdrawal. It never touches the ledger or a protocol; the
// aggregator asks it for decisions and applies them.
package settlement

import (
	"errors"
	"fmt"
	"time"

	"github.com/Iwinswap/iwinswap-yield-aggregator-go/ledger"
	"github.com/Iwinswap/iwinswap-yield-aggregator-go/pkg/safemath"
	"github.com/Iwinswap/iwinswap-yield-aggregator-go/yield"
	"github.com/holiman/uint256"
)

const (
	MinLockDuration = 24 * time.Hour
	MaxLockDuration = 365 * 24 * time.Hour
)

var (
	ErrDurationTooShort = fmt.Errorf("settlement: lock duration below %s", MinLockDuration)
	ErrDurationTooLong  = fmt.Errorf("settlement: lock duration above %s", MaxLockDuration)
	ErrStakeScheduled   = errors.New("settlement: stake has not been executed")
	ErrStakeActive      = errors.New("settlement: stake is already active")
	ErrStakeWithdrawn   = errors.New("settlement: stake already withdrawn")
	ErrNotStarted       = errors.New("settlement: stake start time not reached")
	ErrNotMatured       = errors.New("settlement: stake not matured")
	ErrBadPenalty       = errors.New("settlement: penalty above 10000 bps")
	ErrBadPolicy        = errors.New("settlement: unknown withdrawal policy")
)

// Window is the lock period of a new stake.
type Window struct {
	Start time.Time
	End   time.Time
	// Immediate is set when Start is not in the future and the stake is to
	// be forwarded to its protocol right away.
	Immediate bool
}

// Engine applies a withdrawal Policy.
type Engine struct {
	policy Policy
}

// NewEngine returns an engine for policy; nil selects full settlement.
func NewEngine(policy Policy) *Engine {
	if policy == nil {
		policy = FullSettlement{}
	}
	return &Engine{policy: policy}
}

func (e *Engine) Policy() Policy { return e.policy }

// Plan validates duration and places the lock window. A zero or past start
// is moved to now.
func (e *Engine) Plan(start time.Time, duration time.Duration, now time.Time) (Window, error) {
	if duration < MinLockDuration {
		return Window{}, fmt.Errorf("%w: %s", ErrDurationTooShort, duration)
	}
	if duration > MaxLockDuration {
		return Window{}, fmt.Errorf("%w: %s", ErrDurationTooLong, duration)
	}
	w := Window{Start: start}
	if start.IsZero() || !start.After(now) {
		w.Start = now
		w.Immediate = true
	}
	w.End = w.Start.Add(duration)
	return w, nil
}

// CanExecute reports whether a scheduled stake may be forwarded at now.
func (e *Engine) CanExecute(s ledger.Stake, now time.Time) error {
	switch s.State {
	case ledger.StakeScheduled:
	case ledger.StakeActive:
		return fmt.Errorf("%w: %d", ErrStakeActive, s.ID)
	case ledger.StakeWithdrawn:
		return fmt.Errorf("%w: %d", ErrStakeWithdrawn, s.ID)
	default:
		return fmt.Errorf("%w: stake %d is %s", ledger.ErrStakeState, s.ID, s.State)
	}
	if now.Before(s.Start) {
		return fmt.Errorf("%w: stake %d starts at %s", ErrNotStarted, s.ID, s.Start.UTC().Format(time.RFC3339))
	}
	return nil
}

// Eligible reports whether s may be withdrawn at now and the penalty in
// basis points that applies.
func (e *Engine) Eligible(s ledger.Stake, now time.Time) (uint64, error) {
	switch s.State {
	case ledger.StakeActive:
	case ledger.StakeScheduled:
		return 0, fmt.Errorf("%w: %d", ErrStakeScheduled, s.ID)
	case ledger.StakeWithdrawn:
		return 0, fmt.Errorf("%w: %d", ErrStakeWithdrawn, s.ID)
	default:
		return 0, fmt.Errorf("%w: stake %d is %s", ledger.ErrStakeState, s.ID, s.State)
	}
	bps, err := e.policy.Penalty(s, now)
	if err != nil {
		return 0, err
	}
	if bps > yield.BasisPointDenominator {
		return 0, fmt.Errorf("%w: %d", ErrBadPenalty, bps)
	}
	return bps, nil
}

// Settlement is the outcome of one withdrawal.
type Settlement struct {
	Principal  *uint256.Int
	Returned   *uint256.Int
	Yield      *uint256.Int
	PenaltyBps uint64
	Penalty    *uint256.Int
	Payout     *uint256.Int
}

// Settle splits what a protocol returned for principal. Yield is the excess
// over principal and never negative; a loss is absorbed. The penalty is taken
// from the returned amount.
func Settle(principal, returned *uint256.Int, penaltyBps uint64) (Settlement, error) {
	if penaltyBps > yield.BasisPointDenominator {
		return Settlement{}, fmt.Errorf("%w: %d", ErrBadPenalty, penaltyBps)
	}
	penalty, err := safemath.MulDiv(returned, uint256.NewInt(penaltyBps), uint256.NewInt(yield.BasisPointDenominator))
	if err != nil {
		return Settlement{}, err
	}
	payout, err := safemath.Sub(returned, penalty)
	if err != nil {
		return Settlement{}, err
	}
	return Settlement{
		Principal:  new(uint256.Int).Set(principal),
		Returned:   new(uint256.Int).Set(returned),
		Yield:      safemath.SaturatingSub(returned, principal),
		PenaltyBps: penaltyBps,
		Penalty:    penalty,
		Payout:     payout,
	}, nil
}
