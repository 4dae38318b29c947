// Package yield projects simple, non-compounding interest for reporting
// between settlements. Realized yield is measured at withdrawal from what the
// external protocol actually returns; this estimate is never settled.
package yield

import (
	"time"

	"github.com/Iwinswap/iwinswap-yield-aggregator-go/pkg/safemath"
	"github.com/holiman/uint256"
)

const (
	BasisPointDenominator = 10_000
	SecondsPerYear        = 365 * 24 * 60 * 60
)

// Checkpoint is the nominal rate in force for a (token, protocol) pair and
// the moment it started accruing.
type Checkpoint struct {
	APYBps uint64    `json:"apyBps"`
	Since  time.Time `json:"since"`
}

// Estimate returns balance * apyBps * elapsed / (10000 * secondsPerYear),
// rounded down. A non-positive elapsed time accrues nothing.
func Estimate(balance *uint256.Int, apyBps uint64, since, now time.Time) (*uint256.Int, error) {
	elapsed := now.Sub(since)
	if elapsed <= 0 || balance.IsZero() || apyBps == 0 {
		return safemath.Zero(), nil
	}
	seconds := uint64(elapsed / time.Second)

	rateTime, err := safemath.Mul(uint256.NewInt(apyBps), uint256.NewInt(seconds))
	if err != nil {
		return nil, err
	}
	return safemath.MulDiv(balance, rateTime, uint256.NewInt(BasisPointDenominator*SecondsPerYear))
}

// Accrued estimates the yield on balance under c, starting from the later of
// the checkpoint and from.
func (c Checkpoint) Accrued(balance *uint256.Int, from, now time.Time) (*uint256.Int, error) {
	start := c.Since
	if from.After(start) {
		start = from
	}
	return Estimate(balance, c.APYBps, start, now)
}
