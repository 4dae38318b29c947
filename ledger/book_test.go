package ledger

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/Iwinswap/iwinswap-yield-aggregator-go/protocols/pairkey"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice = common.HexToAddress("0xA11CE00000000000000000000000000000000001")
	bob   = common.HexToAddress("0xB0B0000000000000000000000000000000000002")
	usdc  = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	t0    = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
)

func u(v uint64) *uint256.Int { return uint256.NewInt(v) }

func deposit(who common.Address, pair pairkey.Pair, amount, shares uint64, locked bool) Entry {
	return Entry{Depositor: who, Pair: pair, Amount: u(amount), Shares: u(shares), Locked: locked, APYBps: 500, At: t0}
}

func TestBook_Deposits(t *testing.T) {
	aave := pairkey.Pair{Token: usdc, Protocol: "aave"}
	lido := pairkey.Pair{Token: usdc, Protocol: "lido"}

	t.Run("RecordDeposit_UpdatesEveryAggregate", func(t *testing.T) {
		b := NewBook()
		require.NoError(t, b.RecordDeposit(deposit(alice, aave, 100, 100, false)))
		require.NoError(t, b.RecordDeposit(deposit(bob, aave, 50, 45, false)))
		require.NoError(t, b.RecordDeposit(deposit(alice, lido, 10, 10, true)))

		pos, ok := b.Position(alice)
		require.True(t, ok)
		assert.Equal(t, uint64(110), pos.TotalDeposited.Uint64())
		assert.Len(t, pos.Holdings, 2)

		assert.Equal(t, uint64(145), b.PoolShares(aave).Uint64())
		assert.Equal(t, uint64(150), b.ProtocolDeposited("aave").Uint64())
		assert.Equal(t, uint64(10), b.ProtocolDeposited("lido").Uint64())

		pool, ok := b.Pool(aave)
		require.True(t, ok)
		assert.Equal(t, uint64(500), pool.Checkpoint.APYBps)
		assert.Equal(t, t0, pool.Checkpoint.Since)

		assert.Equal(t, []common.Address{alice, bob}, b.Depositors())
	})

	t.Run("RecordDeposit_RejectsZero", func(t *testing.T) {
		b := NewBook()
		err := b.RecordDeposit(deposit(alice, aave, 0, 1, false))
		assert.ErrorIs(t, err, ErrInvariantViolation)
		err = b.RecordDeposit(deposit(alice, aave, 1, 0, false))
		assert.ErrorIs(t, err, ErrInvariantViolation)
		_, ok := b.Position(alice)
		assert.False(t, ok, "failed deposit must not create a position")
	})

	t.Run("RecordDeposit_OverflowLeavesBookUnchanged", func(t *testing.T) {
		b := NewBook()
		require.NoError(t, b.RecordDeposit(deposit(alice, aave, 1, 1, false)))

		huge := new(uint256.Int).SetAllOne()
		err := b.RecordDeposit(Entry{Depositor: alice, Pair: aave, Amount: huge, Shares: u(1), At: t0})
		assert.ErrorIs(t, err, ErrInvariantViolation)

		h, ok := b.Holding(alice, aave)
		require.True(t, ok)
		assert.Equal(t, uint64(1), h.Balance.Uint64())
		assert.Equal(t, uint64(1), b.PoolShares(aave).Uint64())
		assert.NoError(t, b.CheckInvariants())
	})
}

func TestBook_Withdrawals(t *testing.T) {
	aave := pairkey.Pair{Token: usdc, Protocol: "aave"}

	t.Run("Flexible_CannotTouchLockedBucket", func(t *testing.T) {
		b := NewBook()
		require.NoError(t, b.RecordDeposit(deposit(alice, aave, 60, 60, true)))
		require.NoError(t, b.RecordDeposit(deposit(alice, aave, 40, 40, false)))

		err := b.RecordWithdrawal(Entry{Depositor: alice, Pair: aave, Amount: u(50), Shares: u(50), At: t0})
		assert.ErrorIs(t, err, ErrInsufficientBalance)

		require.NoError(t, b.RecordWithdrawal(Entry{Depositor: alice, Pair: aave, Amount: u(40), Shares: u(40), At: t0}))
		h, ok := b.Holding(alice, aave)
		require.True(t, ok)
		assert.Equal(t, uint64(60), h.Balance.Uint64())
		assert.Equal(t, uint64(60), h.Locked.Uint64())
	})

	t.Run("FullWithdrawal_RemovesHolding", func(t *testing.T) {
		b := NewBook()
		require.NoError(t, b.RecordDeposit(deposit(alice, aave, 100, 100, false)))
		require.NoError(t, b.RecordWithdrawal(Entry{Depositor: alice, Pair: aave, Amount: u(100), Shares: u(100), At: t0}))

		_, ok := b.Holding(alice, aave)
		assert.False(t, ok)
		assert.True(t, b.PoolShares(aave).IsZero())
		assert.True(t, b.ProtocolDeposited("aave").IsZero())
		assert.NoError(t, b.CheckInvariants())
	})

	t.Run("UnknownHolding", func(t *testing.T) {
		b := NewBook()
		err := b.RecordWithdrawal(Entry{Depositor: bob, Pair: aave, Amount: u(1), Shares: u(1), At: t0})
		assert.ErrorIs(t, err, ErrInsufficientBalance)
	})

	t.Run("SharesBeyondHolding_IsInvariantViolation", func(t *testing.T) {
		b := NewBook()
		require.NoError(t, b.RecordDeposit(deposit(alice, aave, 100, 100, false)))
		err := b.RecordWithdrawal(Entry{Depositor: alice, Pair: aave, Amount: u(10), Shares: u(101), At: t0})
		assert.ErrorIs(t, err, ErrInvariantViolation)
	})
}

func TestBook_Stakes(t *testing.T) {
	aave := pairkey.Pair{Token: usdc, Protocol: "aave"}

	t.Run("Lifecycle", func(t *testing.T) {
		b := NewBook()
		id, err := b.OpenStake(Stake{Owner: alice, Pair: aave, Amount: *u(100), Start: t0.Add(time.Hour), End: t0.Add(48 * time.Hour), State: StakeScheduled})
		require.NoError(t, err)
		assert.Equal(t, uint64(1), id)
		assert.NoError(t, b.CheckInvariants(), "scheduled stakes hold no principal")

		assert.ErrorIs(t, b.CloseStake(id, t0), ErrStakeState)

		require.NoError(t, b.RecordDeposit(deposit(alice, aave, 100, 90, true)))
		require.NoError(t, b.ActivateStake(id, u(90), t0.Add(time.Hour)))
		assert.NoError(t, b.CheckInvariants())
		assert.ErrorIs(t, b.ActivateStake(id, u(90), t0), ErrStakeState)

		s, ok := b.Stake(id)
		require.True(t, ok)
		assert.Equal(t, StakeActive, s.State)
		assert.False(t, s.Matured(t0.Add(47*time.Hour)))
		assert.True(t, s.Matured(t0.Add(48*time.Hour)))

		require.NoError(t, b.RecordWithdrawal(Entry{Depositor: alice, Pair: aave, Amount: u(100), Shares: u(90), Locked: true, At: t0}))
		require.NoError(t, b.CloseStake(id, t0.Add(48*time.Hour)))
		assert.ErrorIs(t, b.CloseStake(id, t0), ErrStakeState, "withdrawn is terminal")
		assert.NoError(t, b.CheckInvariants())

		stakes := b.StakesOf(alice)
		require.Len(t, stakes, 1)
		assert.Equal(t, StakeWithdrawn, stakes[0].State)
	})

	t.Run("CancelStake_OnlyWhileScheduled", func(t *testing.T) {
		b := NewBook()
		id, err := b.OpenStake(Stake{Owner: alice, Pair: aave, Amount: *u(40), Start: t0.Add(time.Hour), End: t0.Add(48 * time.Hour), State: StakeScheduled})
		require.NoError(t, err)
		require.NoError(t, b.CancelStake(id, t0.Add(2*time.Hour)))

		s, _ := b.Stake(id)
		assert.Equal(t, StakeWithdrawn, s.State)
		assert.Equal(t, t0.Add(2*time.Hour), s.WithdrawnAt)
		assert.ErrorIs(t, b.CancelStake(id, t0), ErrStakeState)
		assert.ErrorIs(t, b.ActivateStake(id, u(40), t0), ErrStakeState)
		_, ok := b.Holding(alice, aave)
		assert.False(t, ok, "a cancelled stake never held principal")
		assert.NoError(t, b.CheckInvariants())

		active, err := b.OpenStake(Stake{Owner: alice, Pair: aave, Amount: *u(10), Shares: *u(10), State: StakeActive})
		require.NoError(t, err)
		require.NoError(t, b.RecordDeposit(deposit(alice, aave, 10, 10, true)))
		assert.ErrorIs(t, b.CancelStake(active, t0), ErrStakeState)
	})

	t.Run("UnknownStake", func(t *testing.T) {
		b := NewBook()
		assert.ErrorIs(t, b.ActivateStake(9, u(1), t0), ErrUnknownStake)
		assert.ErrorIs(t, b.CloseStake(9, t0), ErrUnknownStake)
		assert.ErrorIs(t, b.CancelStake(9, t0), ErrUnknownStake)
	})

	t.Run("OpenStake_RejectsWithdrawn", func(t *testing.T) {
		b := NewBook()
		_, err := b.OpenStake(Stake{Owner: alice, Pair: aave, State: StakeWithdrawn})
		assert.ErrorIs(t, err, ErrStakeState)
	})

	t.Run("CheckInvariants_DetectsLockedMismatch", func(t *testing.T) {
		b := NewBook()
		require.NoError(t, b.RecordDeposit(deposit(alice, aave, 100, 100, true)))
		assert.ErrorIs(t, b.CheckInvariants(), ErrInvariantViolation, "locked bucket without an active stake")
	})
}

func TestBook_Rewards(t *testing.T) {
	curve := pairkey.Pair{Token: usdc, Protocol: "curve"}

	t.Run("AllocatedByShares", func(t *testing.T) {
		b := NewBook()
		require.NoError(t, b.RecordDeposit(deposit(alice, curve, 100, 100, false)))
		require.NoError(t, b.RecordDeposit(deposit(bob, curve, 200, 200, false)))

		dust, err := b.AddRewards(curve, u(31))
		require.NoError(t, err)
		assert.Equal(t, uint64(1), dust.Uint64(), "floor(31/3) and floor(62/3) leave one unallocated")
		h, _ := b.Holding(alice, curve)
		assert.Equal(t, uint64(10), h.Rewards.Uint64())
		h, _ = b.Holding(bob, curve)
		assert.Equal(t, uint64(20), h.Rewards.Uint64())
		pool, _ := b.Pool(curve)
		assert.Equal(t, uint64(30), pool.Rewards.Uint64())
		assert.NoError(t, b.CheckInvariants())
	})

	t.Run("LateHoldingEarnsNothingEarlier", func(t *testing.T) {
		b := NewBook()
		require.NoError(t, b.RecordDeposit(deposit(alice, curve, 100, 100, false)))
		_, err := b.AddRewards(curve, u(6))
		require.NoError(t, err)
		require.NoError(t, b.RecordDeposit(deposit(bob, curve, 100, 100, false)))

		cut, err := b.TakeRewards(bob, curve, u(100))
		require.NoError(t, err)
		assert.True(t, cut.IsZero())
		cut, err = b.TakeRewards(alice, curve, u(100))
		require.NoError(t, err)
		assert.Equal(t, uint64(6), cut.Uint64())
	})

	t.Run("TakenInProportion", func(t *testing.T) {
		b := NewBook()
		require.NoError(t, b.RecordDeposit(deposit(alice, curve, 100, 100, false)))
		_, err := b.AddRewards(curve, u(10))
		require.NoError(t, err)

		cut, err := b.TakeRewards(alice, curve, u(1))
		require.NoError(t, err)
		assert.True(t, cut.IsZero(), "floor(10*1/100)")
		cut, err = b.TakeRewards(alice, curve, u(30))
		require.NoError(t, err)
		assert.Equal(t, uint64(3), cut.Uint64())
		require.NoError(t, b.RecordWithdrawal(Entry{Depositor: alice, Pair: curve, Amount: u(30), Shares: u(30), At: t0}))

		cut, err = b.TakeRewards(alice, curve, u(70))
		require.NoError(t, err)
		assert.Equal(t, uint64(7), cut.Uint64(), "the whole holding takes the remainder")
		require.NoError(t, b.RecordWithdrawal(Entry{Depositor: alice, Pair: curve, Amount: u(70), Shares: u(70), At: t0}))
		assert.NoError(t, b.CheckInvariants())
		_, ok := b.Holding(alice, curve)
		assert.False(t, ok)
	})

	t.Run("RequiresOutstandingShares", func(t *testing.T) {
		b := NewBook()
		_, err := b.AddRewards(curve, u(1))
		assert.ErrorIs(t, err, ErrInvariantViolation)
		_, err = b.TakeRewards(alice, curve, u(1))
		assert.ErrorIs(t, err, ErrInvariantViolation)

		require.NoError(t, b.RecordDeposit(deposit(alice, curve, 5, 5, false)))
		_, err = b.TakeRewards(alice, curve, u(6))
		assert.ErrorIs(t, err, ErrInvariantViolation)
	})

	t.Run("SurviveSnapshot", func(t *testing.T) {
		b := NewBook()
		require.NoError(t, b.RecordDeposit(deposit(alice, curve, 5, 5, false)))
		_, err := b.AddRewards(curve, u(7))
		require.NoError(t, err)

		data, err := json.Marshal(b.Snapshot())
		require.NoError(t, err)
		var snap Snapshot
		require.NoError(t, json.Unmarshal(data, &snap))
		restored, err := Restore(snap)
		require.NoError(t, err)
		h, _ := restored.Holding(alice, curve)
		assert.Equal(t, uint64(7), h.Rewards.Uint64())

		snap.Positions[0].Holdings[0].Rewards = "6"
		_, err = Restore(snap)
		assert.ErrorIs(t, err, ErrInvariantViolation, "pool rewards must match its holdings")
	})
}

func TestBook_Retained(t *testing.T) {
	b := NewBook()
	require.NoError(t, b.Retain(usdc, u(3)))
	require.NoError(t, b.Retain(usdc, u(4)))
	assert.Equal(t, uint64(7), b.Retained(usdc).Uint64())
	assert.True(t, b.Retained(alice).IsZero())
}

func TestBook_CloneIsIndependent(t *testing.T) {
	aave := pairkey.Pair{Token: usdc, Protocol: "aave"}
	b := NewBook()
	require.NoError(t, b.RecordDeposit(deposit(alice, aave, 100, 100, false)))

	c := b.Clone()
	require.NoError(t, c.RecordDeposit(deposit(alice, aave, 50, 50, false)))
	require.NoError(t, c.Retain(usdc, u(1)))
	c.ResetCheckpoints("aave", 900, t0.Add(time.Hour))

	h, _ := b.Holding(alice, aave)
	assert.Equal(t, uint64(100), h.Balance.Uint64())
	assert.Equal(t, uint64(100), b.PoolShares(aave).Uint64())
	assert.True(t, b.Retained(usdc).IsZero())
	pool, _ := b.Pool(aave)
	assert.Equal(t, uint64(500), pool.Checkpoint.APYBps)

	pool, _ = c.Pool(aave)
	assert.Equal(t, uint64(900), pool.Checkpoint.APYBps)
}

func TestBook_SnapshotRoundTrip(t *testing.T) {
	aave := pairkey.Pair{Token: usdc, Protocol: "aave"}
	lido := pairkey.Pair{Token: usdc, Protocol: "lido"}

	b := NewBook()
	require.NoError(t, b.RecordDeposit(deposit(alice, aave, 100, 100, false)))
	require.NoError(t, b.RecordDeposit(deposit(bob, lido, 70, 70, true)))
	id, err := b.OpenStake(Stake{Owner: bob, Pair: lido, Amount: *u(70), Shares: *u(70), Start: t0, End: t0.Add(24 * time.Hour), State: StakeActive, ExecutedAt: t0})
	require.NoError(t, err)
	_, err = b.OpenStake(Stake{Owner: alice, Pair: aave, Amount: *u(5), Start: t0.Add(time.Hour), End: t0.Add(48 * time.Hour), State: StakeScheduled})
	require.NoError(t, err)
	require.NoError(t, b.Retain(usdc, u(2)))
	require.NoError(t, b.CheckInvariants())

	data, err := json.Marshal(b.Snapshot())
	require.NoError(t, err)

	var snap Snapshot
	require.NoError(t, json.Unmarshal(data, &snap))
	restored, err := Restore(snap)
	require.NoError(t, err)

	assert.Equal(t, b.Snapshot(), restored.Snapshot())
	assert.Equal(t, uint64(70), restored.ProtocolDeposited("lido").Uint64())

	s, ok := restored.Stake(id)
	require.True(t, ok)
	assert.Equal(t, StakeActive, s.State)

	next, err := restored.OpenStake(Stake{Owner: alice, Pair: aave, State: StakeScheduled})
	require.NoError(t, err)
	assert.Equal(t, uint64(3), next, "stake ids continue after restore")

	t.Run("Restore_RejectsInconsistentSnapshot", func(t *testing.T) {
		bad := b.Snapshot()
		bad.Pools[0].Shares = "1"
		_, err := Restore(bad)
		assert.ErrorIs(t, err, ErrInvariantViolation)
	})

	t.Run("Restore_RejectsBadAmount", func(t *testing.T) {
		bad := b.Snapshot()
		bad.Retained[0].Amount = "not-a-number"
		_, err := Restore(bad)
		assert.Error(t, err)
	})
}
