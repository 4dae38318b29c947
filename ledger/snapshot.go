package ledger

import (
	"bytes"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/Iwinswap/iwinswap-yield-aggregator-go/pkg/safemath"
	"github.com/Iwinswap/iwinswap-yield-aggregator-go/protocols/pairkey"
	"github.com/Iwinswap/iwinswap-yield-aggregator-go/yield"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Snapshot is the serializable form of a Book. Amounts are decimal strings
// so the encoding does not depend on uint256's own JSON format.
type Snapshot struct {
	NextStakeID uint64           `json:"nextStakeId"`
	Positions   []PositionRecord `json:"positions"`
	Stakes      []StakeRecord    `json:"stakes"`
	Pools       []PoolRecord     `json:"pools"`
	Retained    []RetainedRecord `json:"retained"`
}

type PositionRecord struct {
	Depositor      common.Address  `json:"depositor"`
	TotalDeposited string          `json:"totalDeposited"`
	TotalClaimed   string          `json:"totalClaimed"`
	LastActionAt   time.Time       `json:"lastActionAt"`
	Holdings       []HoldingRecord `json:"holdings"`
	Stakes         []uint64        `json:"stakes"`
}

type HoldingRecord struct {
	Pair         pairkey.Pair `json:"pair"`
	Balance      string       `json:"balance"`
	Shares       string       `json:"shares"`
	Locked       string       `json:"locked"`
	LockedShares string       `json:"lockedShares"`
	Rewards      string       `json:"rewards,omitempty"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

type StakeRecord struct {
	ID          uint64         `json:"id"`
	Owner       common.Address `json:"owner"`
	Pair        pairkey.Pair   `json:"pair"`
	Amount      string         `json:"amount"`
	Shares      string         `json:"shares"`
	Start       time.Time      `json:"start"`
	End         time.Time      `json:"end"`
	State       StakeState     `json:"state"`
	ExecutedAt  time.Time      `json:"executedAt"`
	WithdrawnAt time.Time      `json:"withdrawnAt"`
}

type PoolRecord struct {
	Pair       pairkey.Pair     `json:"pair"`
	Shares     string           `json:"shares"`
	Deposited  string           `json:"deposited"`
	Rewards    string           `json:"rewards,omitempty"`
	Checkpoint yield.Checkpoint `json:"checkpoint"`
}

type RetainedRecord struct {
	Token  common.Address `json:"token"`
	Amount string         `json:"amount"`
}

// Snapshot returns the book in a deterministic serializable order.
func (b *Book) Snapshot() Snapshot {
	snap := Snapshot{NextStakeID: b.nextStakeID}

	for _, addr := range b.Depositors() {
		pos := b.positions[addr]
		rec := PositionRecord{
			Depositor:      addr,
			TotalDeposited: pos.TotalDeposited.Dec(),
			TotalClaimed:   pos.TotalClaimed.Dec(),
			LastActionAt:   pos.LastActionAt,
			Stakes:         append([]uint64(nil), pos.Stakes...),
		}
		for _, h := range pos.Holdings {
			hr := HoldingRecord{
				Pair:         h.Pair,
				Balance:      h.Balance.Dec(),
				Shares:       h.Shares.Dec(),
				Locked:       h.Locked.Dec(),
				LockedShares: h.LockedShares.Dec(),
				UpdatedAt:    h.UpdatedAt,
			}
			if !h.Rewards.IsZero() {
				hr.Rewards = h.Rewards.Dec()
			}
			rec.Holdings = append(rec.Holdings, hr)
		}
		slices.SortFunc(rec.Holdings, func(a, b HoldingRecord) int { return comparePairs(a.Pair, b.Pair) })
		snap.Positions = append(snap.Positions, rec)
	}

	for _, s := range b.stakes {
		snap.Stakes = append(snap.Stakes, StakeRecord{
			ID:          s.ID,
			Owner:       s.Owner,
			Pair:        s.Pair,
			Amount:      s.Amount.Dec(),
			Shares:      s.Shares.Dec(),
			Start:       s.Start,
			End:         s.End,
			State:       s.State,
			ExecutedAt:  s.ExecutedAt,
			WithdrawnAt: s.WithdrawnAt,
		})
	}
	slices.SortFunc(snap.Stakes, func(a, b StakeRecord) int { return cmpUint64(a.ID, b.ID) })

	for _, p := range b.pools {
		rec := PoolRecord{
			Pair:       p.Pair,
			Shares:     p.Shares.Dec(),
			Deposited:  p.Deposited.Dec(),
			Checkpoint: p.Checkpoint,
		}
		if !p.Rewards.IsZero() {
			rec.Rewards = p.Rewards.Dec()
		}
		snap.Pools = append(snap.Pools, rec)
	}
	slices.SortFunc(snap.Pools, func(a, b PoolRecord) int { return comparePairs(a.Pair, b.Pair) })

	for token, amount := range b.retained {
		snap.Retained = append(snap.Retained, RetainedRecord{Token: token, Amount: amount.Dec()})
	}
	slices.SortFunc(snap.Retained, func(a, b RetainedRecord) int { return bytes.Compare(a.Token[:], b.Token[:]) })

	return snap
}

// Restore rebuilds a Book from a snapshot and verifies its invariants.
// Protocol aggregates are recomputed from the pools.
func Restore(snap Snapshot) (*Book, error) {
	b := NewBook()
	b.nextStakeID = snap.NextStakeID

	for _, rec := range snap.Positions {
		pos := newPosition(rec.Depositor)
		pos.LastActionAt = rec.LastActionAt
		pos.Stakes = append([]uint64(nil), rec.Stakes...)
		if err := parseInto(&pos.TotalDeposited, rec.TotalDeposited); err != nil {
			return nil, err
		}
		if err := parseInto(&pos.TotalClaimed, rec.TotalClaimed); err != nil {
			return nil, err
		}
		for _, hr := range rec.Holdings {
			h := &Holding{Pair: hr.Pair, UpdatedAt: hr.UpdatedAt}
			for dst, s := range map[*uint256.Int]string{
				&h.Balance:      hr.Balance,
				&h.Shares:       hr.Shares,
				&h.Locked:       hr.Locked,
				&h.LockedShares: hr.LockedShares,
				&h.Rewards:      hr.Rewards,
			} {
				if err := parseInto(dst, s); err != nil {
					return nil, err
				}
			}
			pos.Holdings[hr.Pair.Key()] = h
		}
		b.positions[rec.Depositor] = pos
	}

	for _, rec := range snap.Stakes {
		if rec.ID == 0 || rec.ID > b.nextStakeID {
			return nil, fmt.Errorf("%w: stake id %d outside 1..%d", ErrInvariantViolation, rec.ID, b.nextStakeID)
		}
		s := &Stake{
			ID:          rec.ID,
			Owner:       rec.Owner,
			Pair:        rec.Pair,
			Start:       rec.Start,
			End:         rec.End,
			State:       rec.State,
			ExecutedAt:  rec.ExecutedAt,
			WithdrawnAt: rec.WithdrawnAt,
		}
		if err := parseInto(&s.Amount, rec.Amount); err != nil {
			return nil, err
		}
		if err := parseInto(&s.Shares, rec.Shares); err != nil {
			return nil, err
		}
		b.stakes[rec.ID] = s
	}
	for _, pos := range b.positions {
		for _, id := range pos.Stakes {
			if s, ok := b.stakes[id]; !ok || s.Owner != pos.Depositor {
				return nil, fmt.Errorf("%w: position %s lists foreign or missing stake %d", ErrInvariantViolation, pos.Depositor.Hex(), id)
			}
		}
	}

	for _, rec := range snap.Pools {
		p := &Pool{Pair: rec.Pair, Checkpoint: rec.Checkpoint}
		if err := parseInto(&p.Shares, rec.Shares); err != nil {
			return nil, err
		}
		if err := parseInto(&p.Deposited, rec.Deposited); err != nil {
			return nil, err
		}
		if err := parseInto(&p.Rewards, rec.Rewards); err != nil {
			return nil, err
		}
		b.pools[rec.Pair.Key()] = p

		total, ok := b.protocols[rec.Pair.Protocol]
		if !ok {
			total = safemath.Zero()
			b.protocols[rec.Pair.Protocol] = total
		}
		if err := accumulate(total, &p.Deposited); err != nil {
			return nil, err
		}
	}

	for _, rec := range snap.Retained {
		amount := new(uint256.Int)
		if err := parseInto(amount, rec.Amount); err != nil {
			return nil, err
		}
		b.retained[rec.Token] = amount
	}

	if err := b.CheckInvariants(); err != nil {
		return nil, err
	}
	return b, nil
}

func parseInto(dst *uint256.Int, s string) error {
	if s == "" {
		dst.Clear()
		return nil
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return fmt.Errorf("ledger: parse amount %q: %w", s, err)
	}
	dst.Set(v)
	return nil
}

func comparePairs(a, b pairkey.Pair) int {
	if c := strings.Compare(a.Protocol, b.Protocol); c != 0 {
		return c
	}
	return bytes.Compare(a.Token[:], b.Token[:])
}

func cmpUint64(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func sortAddresses(addrs []common.Address) {
	slices.SortFunc(addrs, func(a, b common.Address) int { return bytes.Compare(a[:], b[:]) })
}
