package settlement

import (
	"fmt"
	"strings"
	"time"

	"github.com/Iwinswap/iwinswap-yield-aggregator-go/ledger"
	"github.com/Iwinswap/iwinswap-yield-aggregator-go/yield"
)

const (
	PolicyFull  = "full"
	PolicyGated = "gated"
	PolicyCliff = "cliff"

	DefaultCliffPeriod = 7 * 24 * time.Hour
	DefaultPenaltyBps  = 200
)

// Policy decides whether an active stake may be withdrawn at now and which
// penalty, in basis points of the returned amount, applies.
type Policy interface {
	Name() string
	Penalty(s ledger.Stake, now time.Time) (uint64, error)
}

// FullSettlement always pays out everything the protocol returns.
type FullSettlement struct{}

func (FullSettlement) Name() string { return PolicyFull }

func (FullSettlement) Penalty(ledger.Stake, time.Time) (uint64, error) { return 0, nil }

// MaturityGated pays in full from the stake's end time. Before it, the
// withdrawal is either penalized by PenaltyBps or, when AllowEarlyExit is
// false, refused with ErrNotMatured.
type MaturityGated struct {
	PenaltyBps     uint64
	AllowEarlyExit bool
}

func (MaturityGated) Name() string { return PolicyGated }

func (p MaturityGated) Penalty(s ledger.Stake, now time.Time) (uint64, error) {
	if s.Matured(now) {
		return 0, nil
	}
	if !p.AllowEarlyExit {
		return 0, fmt.Errorf("%w: stake %d matures at %s", ErrNotMatured, s.ID, s.End.UTC().Format(time.RFC3339))
	}
	return p.PenaltyBps, nil
}

// Cliff penalizes withdrawals during a fixed period after the stake started,
// regardless of its end time.
type Cliff struct {
	Period     time.Duration
	PenaltyBps uint64
}

func (Cliff) Name() string { return PolicyCliff }

func (p Cliff) Penalty(s ledger.Stake, now time.Time) (uint64, error) {
	if now.Before(s.Start.Add(p.Period)) {
		return p.PenaltyBps, nil
	}
	return 0, nil
}

// PolicyConfig is the configuration form of a Policy.
type PolicyConfig struct {
	Name           string        `yaml:"name"`
	PenaltyBps     *uint64       `yaml:"penalty_bps"`
	AllowEarlyExit bool          `yaml:"allow_early_exit"`
	CliffPeriod    time.Duration `yaml:"cliff_period"`
}

// ParsePolicy builds the Policy described by c. An empty name selects full
// settlement; an unset penalty falls back to DefaultPenaltyBps.
func ParsePolicy(c PolicyConfig) (Policy, error) {
	penalty := uint64(DefaultPenaltyBps)
	if c.PenaltyBps != nil {
		penalty = *c.PenaltyBps
	}
	if penalty > yield.BasisPointDenominator {
		return nil, fmt.Errorf("%w: %d", ErrBadPenalty, penalty)
	}

	switch strings.ToLower(strings.TrimSpace(c.Name)) {
	case "", PolicyFull:
		return FullSettlement{}, nil
	case PolicyGated:
		return MaturityGated{PenaltyBps: penalty, AllowEarlyExit: c.AllowEarlyExit}, nil
	case PolicyCliff:
		period := c.CliffPeriod
		if period == 0 {
			period = DefaultCliffPeriod
		}
		if period < 0 {
			return nil, fmt.Errorf("%w: negative cliff period %s", ErrBadPolicy, period)
		}
		return Cliff{Period: period, PenaltyBps: penalty}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrBadPolicy, c.Name)
	}
}
