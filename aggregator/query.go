package aggregator

import (
	"fmt"
	"time"

	"github.com/Iwinswap/iwinswap-yield-aggregator-go/ledger"
	"github.com/Iwinswap/iwinswap-yield-aggregator-go/pkg/safemath"
	"github.com/Iwinswap/iwinswap-yield-aggregator-go/protocols/pairkey"
	"github.com/Iwinswap/iwinswap-yield-aggregator-go/protocols/registry"
	"github.com/Iwinswap/iwinswap-yield-aggregator-go/protocols/token"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// PositionSummary is a depositor's position with its estimated accrual.
// EstimatedValue is recorded principal plus estimated yield; neither
// estimate is ever settled.
type PositionSummary struct {
	Depositor      common.Address
	TotalDeposited *uint256.Int
	TotalClaimed   *uint256.Int
	EstimatedValue *uint256.Int
	EstimatedYield *uint256.Int
	LastActionAt   time.Time
}

// PairSummary is a depositor's holding on one (token, protocol) pair.
type PairSummary struct {
	Pair           pairkey.Pair
	Balance        *uint256.Int
	Shares         *uint256.Int
	Locked         *uint256.Int
	LockedShares   *uint256.Int
	EstimatedYield *uint256.Int
	UpdatedAt      time.Time
}

// ProtocolSummary is a registered protocol with the principal currently
// routed into it.
type ProtocolSummary struct {
	registry.ProtocolView
	Deposited *uint256.Int
}

// Position summarizes depositor's position. An unknown depositor has an
// all-zero summary.
func (a *Aggregator) Position(depositor common.Address) (PositionSummary, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := PositionSummary{
		Depositor:      depositor,
		TotalDeposited: safemath.Zero(),
		TotalClaimed:   safemath.Zero(),
		EstimatedValue: safemath.Zero(),
		EstimatedYield: safemath.Zero(),
	}
	pos, ok := a.book.Position(depositor)
	if !ok {
		return out, nil
	}
	now := a.now()
	for _, h := range pos.Holdings {
		accrued, err := a.accrued(h, now)
		if err != nil {
			return PositionSummary{}, err
		}
		if out.EstimatedYield, err = safemath.Add(out.EstimatedYield, accrued); err != nil {
			return PositionSummary{}, err
		}
	}
	value, err := safemath.Add(&pos.TotalDeposited, out.EstimatedYield)
	if err != nil {
		return PositionSummary{}, err
	}
	out.TotalDeposited.Set(&pos.TotalDeposited)
	out.TotalClaimed.Set(&pos.TotalClaimed)
	out.EstimatedValue = value
	out.LastActionAt = pos.LastActionAt
	return out, nil
}

// PairPosition summarizes depositor's holding on (tok, protocol). A missing
// holding is all zero.
func (a *Aggregator) PairPosition(depositor, tok common.Address, protocol string) (PairSummary, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	pair := pairkey.Pair{Token: tok, Protocol: registry.Canonical(protocol)}
	h, ok := a.book.Holding(depositor, pair)
	if !ok {
		return PairSummary{
			Pair:           pair,
			Balance:        safemath.Zero(),
			Shares:         safemath.Zero(),
			Locked:         safemath.Zero(),
			LockedShares:   safemath.Zero(),
			EstimatedYield: safemath.Zero(),
		}, nil
	}
	accrued, err := a.accrued(&h, a.now())
	if err != nil {
		return PairSummary{}, err
	}
	return PairSummary{
		Pair:           pair,
		Balance:        new(uint256.Int).Set(&h.Balance),
		Shares:         new(uint256.Int).Set(&h.Shares),
		Locked:         new(uint256.Int).Set(&h.Locked),
		LockedShares:   new(uint256.Int).Set(&h.LockedShares),
		EstimatedYield: accrued,
		UpdatedAt:      h.UpdatedAt,
	}, nil
}

// accrued estimates the yield of h since the later of its pair's checkpoint
// and its last update.
func (a *Aggregator) accrued(h *ledger.Holding, now time.Time) (*uint256.Int, error) {
	pool, ok := a.book.Pool(h.Pair)
	if !ok {
		return nil, fmt.Errorf("%w: holding on %s without pool", ledger.ErrInvariantViolation, h.Pair)
	}
	return pool.Checkpoint.Accrued(&h.Balance, h.UpdatedAt, now)
}

// Stake returns stake id.
func (a *Aggregator) Stake(id uint64) (ledger.Stake, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, ok := a.book.Stake(id)
	if !ok {
		return ledger.Stake{}, fmt.Errorf("%w: %d", ledger.ErrUnknownStake, id)
	}
	return s, nil
}

// Stakes returns depositor's stakes in creation order.
func (a *Aggregator) Stakes(depositor common.Address) []ledger.Stake {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.book.StakesOf(depositor)
}

// PoolShares returns the shares outstanding on (tok, protocol).
func (a *Aggregator) PoolShares(tok common.Address, protocol string) *uint256.Int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.book.PoolShares(pairkey.Pair{Token: tok, Protocol: registry.Canonical(protocol)})
}

// Retained returns the early-withdrawal penalties kept in tok.
func (a *Aggregator) Retained(tok common.Address) *uint256.Int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.book.Retained(tok)
}

// ListProtocols returns every registered protocol in registration order.
func (a *Aggregator) ListProtocols() []ProtocolSummary {
	a.mu.Lock()
	defer a.mu.Unlock()
	views := a.protocols.All()
	out := make([]ProtocolSummary, 0, len(views))
	for _, p := range views {
		out = append(out, ProtocolSummary{ProtocolView: p, Deposited: a.book.ProtocolDeposited(p.Name)})
	}
	return out
}

// ListTokens returns every registered token in registration order.
func (a *Aggregator) ListTokens() []token.TokenView {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.tokens.All()
}

// Depositors returns every address with a recorded position.
func (a *Aggregator) Depositors() []common.Address {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.book.Depositors()
}

// CheckInvariants verifies the committed ledger.
func (a *Aggregator) CheckInvariants() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.book.CheckInvariants()
}

// PolicyName names the settlement policy applied to time-locked stakes.
func (a *Aggregator) PolicyName() string {
	return a.engine.Policy().Name()
}
