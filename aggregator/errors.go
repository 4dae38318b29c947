package aggregator

import (
	"context"
	"errors"

	"github.com/Iwinswap/iwinswap-yield-aggregator-go/adapter"
	"github.com/Iwinswap/iwinswap-yield-aggregator-go/ledger"
	"github.com/Iwinswap/iwinswap-yield-aggregator-go/pkg/safemath"
	"github.com/Iwinswap/iwinswap-yield-aggregator-go/protocols/registry"
	"github.com/Iwinswap/iwinswap-yield-aggregator-go/protocols/token"
	"github.com/Iwinswap/iwinswap-yield-aggregator-go/settlement"
)

var (
	ErrUnauthorized = errors.New("aggregator: caller is not the admin")
	ErrZeroAmount   = errors.New("aggregator: amount must be positive")
	ErrNotOwner     = errors.New("aggregator: caller does not own the stake")
	ErrNotConnected = errors.New("aggregator: protocol has no connected adapter")
)

// errorClass maps err onto the coarse class used as a metrics label.
func errorClass(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ledger.ErrInvariantViolation),
		errors.Is(err, safemath.ErrOverflow),
		errors.Is(err, safemath.ErrUnderflow),
		errors.Is(err, safemath.ErrDivisionByZero),
		errors.Is(err, adapter.ErrPoolShares):
		return "invariant"
	case errors.Is(err, adapter.ErrExternal),
		errors.Is(err, adapter.ErrPoolDepleted),
		errors.Is(err, adapter.ErrBadExchangeRate):
		return "external"
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrNotOwner):
		return "unauthorized"
	case errors.Is(err, token.ErrUnknownToken),
		errors.Is(err, token.ErrTokenInactive),
		errors.Is(err, token.ErrDuplicateToken),
		errors.Is(err, token.ErrInvalidToken),
		errors.Is(err, registry.ErrUnknownProtocol),
		errors.Is(err, registry.ErrProtocolInactive),
		errors.Is(err, registry.ErrDuplicateProtocol),
		errors.Is(err, registry.ErrDuplicateRef),
		errors.Is(err, registry.ErrInvalidProtocol),
		errors.Is(err, registry.ErrInvalidKind),
		errors.Is(err, adapter.ErrKindMismatch),
		errors.Is(err, adapter.ErrUnsupportedKind),
		errors.Is(err, ErrNotConnected):
		return "configuration"
	case errors.Is(err, settlement.ErrStakeScheduled),
		errors.Is(err, settlement.ErrStakeActive),
		errors.Is(err, settlement.ErrStakeWithdrawn),
		errors.Is(err, settlement.ErrNotStarted),
		errors.Is(err, settlement.ErrNotMatured),
		errors.Is(err, ledger.ErrUnknownStake),
		errors.Is(err, ledger.ErrStakeState):
		return "state"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "validation"
	}
}
