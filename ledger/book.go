package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/Iwinswap/iwinswap-yield-aggregator-go/pkg/safemath"
	"github.com/Iwinswap/iwinswap-yield-aggregator-go/protocols/pairkey"
	"github.com/Iwinswap/iwinswap-yield-aggregator-go/yield"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	ErrInsufficientBalance = errors.New("ledger: insufficient recorded balance")
	ErrInvariantViolation  = errors.New("ledger: invariant violation")
	ErrUnknownStake        = errors.New("ledger: unknown stake")
	ErrStakeState          = errors.New("ledger: stake is not in the required state")
)

// Entry is one balance movement on a depositor's (token, protocol) holding.
// Locked selects the time-locked bucket of the holding; APYBps seeds the
// pair's accrual checkpoint when the entry opens a new pool.
type Entry struct {
	Depositor common.Address
	Pair      pairkey.Pair
	Amount    *uint256.Int
	Shares    *uint256.Int
	Locked    bool
	APYBps    uint64
	At        time.Time
}

// Book is the position ledger. It performs no external calls; every method
// either applies its whole update or returns an error with the book
// unchanged.
//
// Book is not safe for concurrent use; the aggregator serializes access.
type Book struct {
	positions   map[common.Address]*Position
	stakes      map[uint64]*Stake
	pools       map[pairkey.Key]*Pool
	protocols   map[string]*uint256.Int
	retained    map[common.Address]*uint256.Int
	nextStakeID uint64
}

// NewBook creates an empty ledger.
func NewBook() *Book {
	return &Book{
		positions: make(map[common.Address]*Position),
		stakes:    make(map[uint64]*Stake),
		pools:     make(map[pairkey.Key]*Pool),
		protocols: make(map[string]*uint256.Int),
		retained:  make(map[common.Address]*uint256.Int),
	}
}

// RecordDeposit credits e to the depositor's holding, the pair's pool and the
// protocol's aggregate.
func (b *Book) RecordDeposit(e Entry) error {
	if e.Amount == nil || e.Amount.IsZero() || e.Shares == nil || e.Shares.IsZero() {
		return fmt.Errorf("%w: deposit of zero amount or shares on %s", ErrInvariantViolation, e.Pair)
	}
	key := e.Pair.Key()

	pos, ok := b.positions[e.Depositor]
	if !ok {
		pos = newPosition(e.Depositor)
	}
	hold := Holding{Pair: e.Pair}
	if h, ok := pos.Holdings[key]; ok {
		hold = *h
	}
	pool := Pool{Pair: e.Pair, Checkpoint: yield.Checkpoint{APYBps: e.APYBps, Since: e.At}}
	if p, ok := b.pools[key]; ok {
		pool = *p
	}
	protocolTotal := safemath.Zero()
	if t, ok := b.protocols[e.Pair.Protocol]; ok {
		protocolTotal = t
	}

	var err error
	add := func(dst *uint256.Int, v *uint256.Int) {
		if err != nil {
			return
		}
		var sum *uint256.Int
		if sum, err = safemath.Add(dst, v); err == nil {
			dst.Set(sum)
		}
	}
	total := pos.TotalDeposited
	newProtocolTotal := new(uint256.Int).Set(protocolTotal)
	add(&hold.Balance, e.Amount)
	add(&hold.Shares, e.Shares)
	if e.Locked {
		add(&hold.Locked, e.Amount)
		add(&hold.LockedShares, e.Shares)
	}
	add(&total, e.Amount)
	add(&pool.Shares, e.Shares)
	add(&pool.Deposited, e.Amount)
	add(newProtocolTotal, e.Amount)
	if err != nil {
		return fmt.Errorf("%w: deposit on %s: %w", ErrInvariantViolation, e.Pair, err)
	}

	hold.UpdatedAt = e.At
	pos.Holdings[key] = &hold
	pos.TotalDeposited = total
	pos.LastActionAt = e.At
	b.positions[e.Depositor] = pos
	b.pools[key] = &pool
	b.protocols[e.Pair.Protocol] = newProtocolTotal
	return nil
}

// RecordWithdrawal debits e from the depositor's holding, the pair's pool and
// the protocol's aggregate. A flexible withdrawal may not touch the locked
// bucket; a recorded balance below e.Amount is ErrInsufficientBalance and any
// other shortfall is ErrInvariantViolation.
func (b *Book) RecordWithdrawal(e Entry) error {
	if e.Amount == nil || e.Shares == nil {
		return fmt.Errorf("%w: withdrawal without amount or shares on %s", ErrInvariantViolation, e.Pair)
	}
	key := e.Pair.Key()

	pos, ok := b.positions[e.Depositor]
	if !ok {
		return fmt.Errorf("%w: no position for %s", ErrInsufficientBalance, e.Depositor.Hex())
	}
	h, ok := pos.Holdings[key]
	if !ok {
		return fmt.Errorf("%w: no holding on %s", ErrInsufficientBalance, e.Pair)
	}
	hold := *h
	p, ok := b.pools[key]
	if !ok {
		return fmt.Errorf("%w: holding on %s without pool", ErrInvariantViolation, e.Pair)
	}
	pool := *p

	if e.Locked {
		if hold.Locked.Lt(e.Amount) || hold.LockedShares.Lt(e.Shares) {
			return fmt.Errorf("%w: locked bucket on %s cannot cover stake", ErrInvariantViolation, e.Pair)
		}
	} else {
		flexBalance, flexShares, err := hold.Flexible()
		if err != nil {
			return err
		}
		if flexBalance.Lt(e.Amount) {
			return fmt.Errorf("%w: %s available on %s, %s requested", ErrInsufficientBalance, flexBalance.Dec(), e.Pair, e.Amount.Dec())
		}
		if flexShares.Lt(e.Shares) {
			return fmt.Errorf("%w: %s shares available on %s, %s requested", ErrInvariantViolation, flexShares.Dec(), e.Pair, e.Shares.Dec())
		}
	}

	var err error
	sub := func(dst *uint256.Int, v *uint256.Int) {
		if err != nil {
			return
		}
		var diff *uint256.Int
		if diff, err = safemath.Sub(dst, v); err == nil {
			dst.Set(diff)
		}
	}
	total := pos.TotalDeposited
	newProtocolTotal := safemath.Zero()
	if t, ok := b.protocols[e.Pair.Protocol]; ok {
		newProtocolTotal.Set(t)
	}
	sub(&hold.Balance, e.Amount)
	sub(&hold.Shares, e.Shares)
	if e.Locked {
		sub(&hold.Locked, e.Amount)
		sub(&hold.LockedShares, e.Shares)
	}
	sub(&total, e.Amount)
	sub(&pool.Shares, e.Shares)
	sub(&pool.Deposited, e.Amount)
	sub(newProtocolTotal, e.Amount)
	if err != nil {
		return fmt.Errorf("%w: withdrawal on %s: %w", ErrInvariantViolation, e.Pair, err)
	}

	hold.UpdatedAt = e.At
	if hold.Balance.IsZero() && hold.Shares.IsZero() && hold.Rewards.IsZero() {
		delete(pos.Holdings, key)
	} else {
		pos.Holdings[key] = &hold
	}
	pos.TotalDeposited = total
	pos.LastActionAt = e.At
	b.pools[key] = &pool
	b.protocols[e.Pair.Protocol] = newProtocolTotal
	return nil
}

// AddClaim records amount paid out to depositor.
func (b *Book) AddClaim(depositor common.Address, amount *uint256.Int, at time.Time) error {
	pos, ok := b.positions[depositor]
	if !ok {
		return fmt.Errorf("%w: claim without position for %s", ErrInvariantViolation, depositor.Hex())
	}
	claimed, err := safemath.Add(&pos.TotalClaimed, amount)
	if err != nil {
		return fmt.Errorf("%w: claim: %w", ErrInvariantViolation, err)
	}
	pos.TotalClaimed = *claimed
	pos.LastActionAt = at
	return nil
}

// AddRewards allocates farm rewards harvested for pair to every holding on
// it in proportion to its shares. It returns the rounding remainder that
// could not be allocated.
func (b *Book) AddRewards(pair pairkey.Pair, amount *uint256.Int) (*uint256.Int, error) {
	key := pair.Key()
	p, ok := b.pools[key]
	if !ok || p.Shares.IsZero() {
		return nil, fmt.Errorf("%w: rewards for %s without outstanding shares", ErrInvariantViolation, pair)
	}

	type allocation struct {
		hold    *Holding
		rewards *uint256.Int
	}
	var (
		allocs []allocation
		given  = safemath.Zero()
	)
	for _, pos := range b.positions {
		h, ok := pos.Holdings[key]
		if !ok || h.Shares.IsZero() {
			continue
		}
		cut, err := safemath.MulDiv(amount, &h.Shares, &p.Shares)
		if err != nil {
			return nil, fmt.Errorf("%w: rewards on %s: %w", ErrInvariantViolation, pair, err)
		}
		sum, err := safemath.Add(&h.Rewards, cut)
		if err != nil {
			return nil, fmt.Errorf("%w: rewards on %s: %w", ErrInvariantViolation, pair, err)
		}
		allocs = append(allocs, allocation{hold: h, rewards: sum})
		given.Add(given, cut)
	}
	total, err := safemath.Add(&p.Rewards, given)
	if err != nil {
		return nil, fmt.Errorf("%w: rewards on %s: %w", ErrInvariantViolation, pair, err)
	}
	dust, err := safemath.Sub(amount, given)
	if err != nil {
		return nil, fmt.Errorf("%w: rewards on %s allocated beyond %s", ErrInvariantViolation, pair, amount.Dec())
	}

	for _, a := range allocs {
		a.hold.Rewards.Set(a.rewards)
	}
	p.Rewards.Set(total)
	return dust, nil
}

// TakeRewards removes the cut of depositor's allocated rewards on pair that
// belongs to shares and returns it. Redeeming every share of the holding
// takes all of them. It must run before the redemption is recorded.
func (b *Book) TakeRewards(depositor common.Address, pair pairkey.Pair, shares *uint256.Int) (*uint256.Int, error) {
	key := pair.Key()
	h, ok := b.holding(depositor, key)
	if !ok {
		return nil, fmt.Errorf("%w: rewards claimed by %s without holding on %s", ErrInvariantViolation, depositor.Hex(), pair)
	}
	p, ok := b.pools[key]
	if !ok {
		return nil, fmt.Errorf("%w: holding on %s without pool", ErrInvariantViolation, pair)
	}
	if h.Shares.Lt(shares) {
		return nil, fmt.Errorf("%w: %s shares claim rewards of a %s share holding on %s", ErrInvariantViolation, shares.Dec(), h.Shares.Dec(), pair)
	}
	if h.Rewards.IsZero() || shares.IsZero() {
		return safemath.Zero(), nil
	}

	cut := new(uint256.Int).Set(&h.Rewards)
	if shares.Lt(&h.Shares) {
		var err error
		if cut, err = safemath.MulDiv(&h.Rewards, shares, &h.Shares); err != nil {
			return nil, fmt.Errorf("%w: rewards on %s: %w", ErrInvariantViolation, pair, err)
		}
	}
	remaining, err := safemath.Sub(&p.Rewards, cut)
	if err != nil {
		return nil, fmt.Errorf("%w: pool %s holds %s rewards, holding claims %s", ErrInvariantViolation, pair, p.Rewards.Dec(), cut.Dec())
	}
	h.Rewards.Sub(&h.Rewards, cut)
	p.Rewards.Set(remaining)
	return cut, nil
}

func (b *Book) holding(depositor common.Address, key pairkey.Key) (*Holding, bool) {
	pos, ok := b.positions[depositor]
	if !ok {
		return nil, false
	}
	h, ok := pos.Holdings[key]
	return h, ok
}

// Retain books a withdrawal penalty kept by the aggregator.
func (b *Book) Retain(token common.Address, amount *uint256.Int) error {
	current := safemath.Zero()
	if r, ok := b.retained[token]; ok {
		current = r
	}
	sum, err := safemath.Add(current, amount)
	if err != nil {
		return fmt.Errorf("%w: retained: %w", ErrInvariantViolation, err)
	}
	b.retained[token] = sum
	return nil
}

// Retained returns the penalties kept for token.
func (b *Book) Retained(token common.Address) *uint256.Int {
	if r, ok := b.retained[token]; ok {
		return new(uint256.Int).Set(r)
	}
	return safemath.Zero()
}

// ResetCheckpoints restarts the accrual clock of every pair of protocol at
// the new nominal rate.
func (b *Book) ResetCheckpoints(protocol string, apyBps uint64, at time.Time) {
	for _, p := range b.pools {
		if p.Pair.Protocol == protocol {
			p.Checkpoint = yield.Checkpoint{APYBps: apyBps, Since: at}
		}
	}
}

// Position returns a copy of depositor's position.
func (b *Book) Position(depositor common.Address) (Position, bool) {
	pos, ok := b.positions[depositor]
	if !ok {
		return Position{}, false
	}
	return *pos.clone(), true
}

// Holding returns a copy of depositor's holding on pair.
func (b *Book) Holding(depositor common.Address, pair pairkey.Pair) (Holding, bool) {
	pos, ok := b.positions[depositor]
	if !ok {
		return Holding{}, false
	}
	h, ok := pos.Holdings[pair.Key()]
	if !ok {
		return Holding{}, false
	}
	return *h, true
}

// Pool returns a copy of the pair's pool.
func (b *Book) Pool(pair pairkey.Pair) (Pool, bool) {
	p, ok := b.pools[pair.Key()]
	if !ok {
		return Pool{}, false
	}
	return *p, true
}

// PoolShares returns the aggregate shares outstanding on pair.
func (b *Book) PoolShares(pair pairkey.Pair) *uint256.Int {
	if p, ok := b.pools[pair.Key()]; ok {
		return new(uint256.Int).Set(&p.Shares)
	}
	return safemath.Zero()
}

// ProtocolDeposited returns the principal recorded across every pair of protocol.
func (b *Book) ProtocolDeposited(protocol string) *uint256.Int {
	if t, ok := b.protocols[protocol]; ok {
		return new(uint256.Int).Set(t)
	}
	return safemath.Zero()
}

// Depositors returns every depositor with a position.
func (b *Book) Depositors() []common.Address {
	out := make([]common.Address, 0, len(b.positions))
	for addr := range b.positions {
		out = append(out, addr)
	}
	sortAddresses(out)
	return out
}

// Clone returns a deep copy of the book.
func (b *Book) Clone() *Book {
	c := &Book{
		positions:   make(map[common.Address]*Position, len(b.positions)),
		stakes:      make(map[uint64]*Stake, len(b.stakes)),
		pools:       make(map[pairkey.Key]*Pool, len(b.pools)),
		protocols:   make(map[string]*uint256.Int, len(b.protocols)),
		retained:    make(map[common.Address]*uint256.Int, len(b.retained)),
		nextStakeID: b.nextStakeID,
	}
	for addr, p := range b.positions {
		c.positions[addr] = p.clone()
	}
	for id, s := range b.stakes {
		sc := *s
		c.stakes[id] = &sc
	}
	for k, p := range b.pools {
		pc := *p
		c.pools[k] = &pc
	}
	for name, t := range b.protocols {
		c.protocols[name] = new(uint256.Int).Set(t)
	}
	for token, r := range b.retained {
		c.retained[token] = new(uint256.Int).Set(r)
	}
	return c
}
