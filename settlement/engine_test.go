package settlement

import (
	"testing"
	"time"

	"github.com/Iwinswap/iwinswap-yield-aggregator-go/ledger"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func activeStake(start, end time.Time) ledger.Stake {
	return ledger.Stake{ID: 1, State: ledger.StakeActive, Start: start, End: end}
}

func TestEngine_Plan(t *testing.T) {
	e := NewEngine(nil)

	t.Run("Plan_DurationBounds", func(t *testing.T) {
		_, err := e.Plan(time.Time{}, 30*time.Minute, t0)
		assert.ErrorIs(t, err, ErrDurationTooShort)

		_, err = e.Plan(time.Time{}, 400*24*time.Hour, t0)
		assert.ErrorIs(t, err, ErrDurationTooLong)

		_, err = e.Plan(time.Time{}, MinLockDuration, t0)
		assert.NoError(t, err)
		_, err = e.Plan(time.Time{}, MaxLockDuration, t0)
		assert.NoError(t, err)
	})

	t.Run("Plan_ImmediateWhenStartNotInFuture", func(t *testing.T) {
		w, err := e.Plan(t0.Add(-time.Hour), 24*time.Hour, t0)
		require.NoError(t, err)
		assert.True(t, w.Immediate)
		assert.Equal(t, t0, w.Start)
		assert.Equal(t, t0.Add(24*time.Hour), w.End)
	})

	t.Run("Plan_Scheduled", func(t *testing.T) {
		start := t0.Add(2 * time.Hour)
		w, err := e.Plan(start, 48*time.Hour, t0)
		require.NoError(t, err)
		assert.False(t, w.Immediate)
		assert.Equal(t, start, w.Start)
		assert.Equal(t, start.Add(48*time.Hour), w.End)
	})
}

func TestEngine_Transitions(t *testing.T) {
	e := NewEngine(FullSettlement{})

	t.Run("CanExecute", func(t *testing.T) {
		s := ledger.Stake{ID: 4, State: ledger.StakeScheduled, Start: t0.Add(time.Hour)}
		assert.ErrorIs(t, e.CanExecute(s, t0), ErrNotStarted)
		assert.NoError(t, e.CanExecute(s, t0.Add(time.Hour)))

		s.State = ledger.StakeActive
		assert.ErrorIs(t, e.CanExecute(s, t0.Add(time.Hour)), ErrStakeActive)
		s.State = ledger.StakeWithdrawn
		assert.ErrorIs(t, e.CanExecute(s, t0.Add(time.Hour)), ErrStakeWithdrawn)
	})

	t.Run("Eligible_ByState", func(t *testing.T) {
		s := activeStake(t0, t0.Add(24*time.Hour))
		bps, err := e.Eligible(s, t0)
		require.NoError(t, err)
		assert.Zero(t, bps, "full settlement never penalizes")

		s.State = ledger.StakeScheduled
		_, err = e.Eligible(s, t0)
		assert.ErrorIs(t, err, ErrStakeScheduled)

		s.State = ledger.StakeWithdrawn
		_, err = e.Eligible(s, t0)
		assert.ErrorIs(t, err, ErrStakeWithdrawn)
	})
}

func TestPolicies(t *testing.T) {
	s := activeStake(t0, t0.Add(30*24*time.Hour))

	t.Run("MaturityGated_PenalizesEarlyExit", func(t *testing.T) {
		e := NewEngine(MaturityGated{PenaltyBps: 500, AllowEarlyExit: true})
		bps, err := e.Eligible(s, t0.Add(24*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, uint64(500), bps)

		bps, err = e.Eligible(s, s.End)
		require.NoError(t, err)
		assert.Zero(t, bps, "at maturity the payout is full")
	})

	t.Run("MaturityGated_FailsClosed", func(t *testing.T) {
		e := NewEngine(MaturityGated{PenaltyBps: 500})
		_, err := e.Eligible(s, s.End.Add(-time.Second))
		assert.ErrorIs(t, err, ErrNotMatured)
	})

	t.Run("Cliff_CountsFromStart", func(t *testing.T) {
		e := NewEngine(Cliff{Period: DefaultCliffPeriod, PenaltyBps: DefaultPenaltyBps})
		bps, err := e.Eligible(s, t0.Add(6*24*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, uint64(DefaultPenaltyBps), bps)

		bps, err = e.Eligible(s, t0.Add(DefaultCliffPeriod))
		require.NoError(t, err)
		assert.Zero(t, bps, "after the cliff, before maturity, no penalty")
	})

	t.Run("ParsePolicy", func(t *testing.T) {
		p, err := ParsePolicy(PolicyConfig{})
		require.NoError(t, err)
		assert.Equal(t, FullSettlement{}, p)

		five := uint64(500)
		p, err = ParsePolicy(PolicyConfig{Name: "Gated", PenaltyBps: &five, AllowEarlyExit: true})
		require.NoError(t, err)
		assert.Equal(t, MaturityGated{PenaltyBps: 500, AllowEarlyExit: true}, p)

		p, err = ParsePolicy(PolicyConfig{Name: "cliff"})
		require.NoError(t, err)
		assert.Equal(t, Cliff{Period: DefaultCliffPeriod, PenaltyBps: DefaultPenaltyBps}, p)

		_, err = ParsePolicy(PolicyConfig{Name: "yolo"})
		assert.ErrorIs(t, err, ErrBadPolicy)

		tooMuch := uint64(10_001)
		_, err = ParsePolicy(PolicyConfig{Name: "gated", PenaltyBps: &tooMuch})
		assert.ErrorIs(t, err, ErrBadPenalty)
	})
}

func TestSettle(t *testing.T) {
	t.Run("Settle_YieldWithoutPenalty", func(t *testing.T) {
		out, err := Settle(uint256.NewInt(100), uint256.NewInt(110), 0)
		require.NoError(t, err)
		assert.Equal(t, uint64(10), out.Yield.Uint64())
		assert.True(t, out.Penalty.IsZero())
		assert.Equal(t, uint64(110), out.Payout.Uint64())
	})

	t.Run("Settle_PenaltyOnReturned", func(t *testing.T) {
		out, err := Settle(uint256.NewInt(1000), uint256.NewInt(1050), 200)
		require.NoError(t, err)
		assert.Equal(t, uint64(21), out.Penalty.Uint64())
		assert.Equal(t, uint64(1029), out.Payout.Uint64())
		assert.Equal(t, uint64(50), out.Yield.Uint64())
		assert.Equal(t, out.Returned.Uint64(), out.Payout.Uint64()+out.Penalty.Uint64())
	})

	t.Run("Settle_LossIsAbsorbed", func(t *testing.T) {
		out, err := Settle(uint256.NewInt(100), uint256.NewInt(95), 0)
		require.NoError(t, err)
		assert.True(t, out.Yield.IsZero(), "a loss is never reported as yield")
		assert.Equal(t, uint64(95), out.Payout.Uint64())
	})

	t.Run("Settle_RejectsBadPenalty", func(t *testing.T) {
		_, err := Settle(uint256.NewInt(1), uint256.NewInt(1), 10_001)
		assert.ErrorIs(t, err, ErrBadPenalty)
	})
}
