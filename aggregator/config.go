package aggregator

import (
	"context"
	"errors"
	"time"

	"github.com/Iwinswap/iwinswap-yield-aggregator-go/adapter"
	"github.com/Iwinswap/iwinswap-yield-aggregator-go/ledger"
	"github.com/Iwinswap/iwinswap-yield-aggregator-go/metrics"
	"github.com/Iwinswap/iwinswap-yield-aggregator-go/protocols/registry"
	"github.com/Iwinswap/iwinswap-yield-aggregator-go/protocols/token"
	"github.com/Iwinswap/iwinswap-yield-aggregator-go/settlement"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Logger defines a standard interface for structured, leveled logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Custodian moves depositor funds in and out of the aggregator's custody.
type Custodian interface {
	Pull(ctx context.Context, token, from common.Address, amount *uint256.Int) error
	Push(ctx context.Context, token, to common.Address, amount *uint256.Int) error
}

// Store persists committed snapshots. Load returns nil when nothing has been
// saved yet.
type Store interface {
	Save(ctx context.Context, snap Snapshot) error
	Load(ctx context.Context) (*Snapshot, error)
}

// Snapshot is the durable state of the aggregator after one committed
// operation.
type Snapshot struct {
	OpID      string                  `json:"opId"`
	Op        string                  `json:"op"`
	TakenAt   time.Time               `json:"takenAt"`
	Tokens    []token.TokenView       `json:"tokens"`
	Protocols []registry.ProtocolView `json:"protocols"`
	Ledger    ledger.Snapshot         `json:"ledger"`
}

// Config holds the configuration for the aggregator.
type Config struct {
	// Admin is the only caller allowed to change the registries.
	Admin common.Address
	// Custody is the address protocols credit on the aggregator's behalf.
	Custody   common.Address
	Connector adapter.Connector
	Custodian Custodian
	Logger    Logger

	// Policy selects the withdrawal rules for time-locked stakes. Nil means
	// full settlement.
	Policy  settlement.Policy
	Store   Store
	Metrics *metrics.Metrics
	// Clock defaults to time.Now.
	Clock func() time.Time
	// CheckInvariants re-verifies the whole ledger before every commit.
	CheckInvariants bool
}

// validate checks if the configuration is valid.
func (c *Config) validate() error {
	if c.Admin == (common.Address{}) {
		return errors.New("config: Admin is required")
	}
	if c.Custody == (common.Address{}) {
		return errors.New("config: Custody is required")
	}
	if c.Connector == nil {
		return errors.New("config: Connector is required")
	}
	if c.Custodian == nil {
		return errors.New("config: Custodian is required")
	}
	if c.Logger == nil {
		return errors.New("config: Logger is required")
	}
	return nil
}
