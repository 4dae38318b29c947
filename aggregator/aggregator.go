// Package aggregator is the transactional facade over the registries, the
// position ledger, the adapter dispatcher and the settlement engine.
//
// Every operation runs under one lock against a private copy of the state.
// The copy replaces the live state only after every external call succeeded,
// the ledger invariants held and the snapshot was persisted. When a step
// fails, the external steps already completed are compensated in reverse
// order and the live state is left untouched.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Iwinswap/iwinswap-yield-aggregator-go/adapter"
	"github.com/Iwinswap/iwinswap-yield-aggregator-go/ledger"
	"github.com/Iwinswap/iwinswap-yield-aggregator-go/metrics"
	"github.com/Iwinswap/iwinswap-yield-aggregator-go/pkg/units"
	"github.com/Iwinswap/iwinswap-yield-aggregator-go/protocols/pairkey"
	"github.com/Iwinswap/iwinswap-yield-aggregator-go/protocols/registry"
	"github.com/Iwinswap/iwinswap-yield-aggregator-go/protocols/token"
	"github.com/Iwinswap/iwinswap-yield-aggregator-go/settlement"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/holiman/uint256"
)

// Aggregator custodies depositor funds and routes them into registered
// yield sources.
type Aggregator struct {
	mu sync.Mutex

	admin           common.Address
	connector       adapter.Connector
	custodian       Custodian
	dispatcher      *adapter.Dispatcher
	engine          *settlement.Engine
	store           Store
	metrics         *metrics.Metrics
	logger          Logger
	now             func() time.Time
	checkInvariants bool

	tokens    *token.Registry
	protocols *registry.Registry
	book      *ledger.Book
	bindings  map[string]adapter.Binding
}

// New creates an aggregator. When cfg.Store holds a snapshot the state is
// restored from it and every registered protocol is reconnected.
func New(ctx context.Context, cfg Config) (*Aggregator, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	a := &Aggregator{
		admin:           cfg.Admin,
		connector:       cfg.Connector,
		custodian:       cfg.Custodian,
		dispatcher:      adapter.NewDispatcher(cfg.Custody),
		engine:          settlement.NewEngine(cfg.Policy),
		store:           cfg.Store,
		metrics:         cfg.Metrics,
		logger:          cfg.Logger,
		now:             cfg.Clock,
		checkInvariants: cfg.CheckInvariants,
		tokens:          token.NewRegistry(),
		protocols:       registry.NewRegistry(),
		book:            ledger.NewBook(),
		bindings:        make(map[string]adapter.Binding),
	}
	if a.now == nil {
		a.now = time.Now
	}

	if a.store != nil {
		snap, err := a.store.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load snapshot: %w", err)
		}
		if snap != nil {
			if err := a.restore(ctx, snap); err != nil {
				return nil, err
			}
		}
	}

	a.logger.Info("Aggregator ready.",
		"policy", a.engine.Policy().Name(),
		"tokens", len(a.tokens.All()),
		"protocols", len(a.protocols.All()),
		"depositors", len(a.book.Depositors()),
	)
	return a, nil
}

func (a *Aggregator) restore(ctx context.Context, snap *Snapshot) error {
	tokens, err := token.Restore(snap.Tokens)
	if err != nil {
		return fmt.Errorf("failed to restore tokens: %w", err)
	}
	protocols, err := registry.Restore(snap.Protocols)
	if err != nil {
		return fmt.Errorf("failed to restore protocols: %w", err)
	}
	book, err := ledger.Restore(snap.Ledger)
	if err != nil {
		return fmt.Errorf("failed to restore ledger: %w", err)
	}

	bindings := make(map[string]adapter.Binding, len(snap.Protocols))
	for _, p := range protocols.All() {
		b, err := a.connect(ctx, p.Kind, p.Ref)
		if err != nil {
			return fmt.Errorf("failed to reconnect %s: %w", p.Name, err)
		}
		bindings[p.Name] = b
	}

	a.tokens, a.protocols, a.book, a.bindings = tokens, protocols, book, bindings
	a.logger.Info("Restored state from snapshot.", "op_id", snap.OpID, "op", snap.Op, "taken_at", snap.TakenAt)
	return nil
}

func (a *Aggregator) connect(ctx context.Context, kind registry.Kind, ref common.Address) (adapter.Binding, error) {
	b, err := a.connector.Connect(ctx, kind, ref)
	if err != nil {
		if errors.Is(err, adapter.ErrExternal) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: connect %s: %w", adapter.ErrExternal, ref.Hex(), err)
	}
	if err := adapter.Check(b, kind); err != nil {
		return nil, err
	}
	return b, nil
}

// txn is one operation's private view of the state plus the compensations
// for the external calls it has made.
type txn struct {
	ctx context.Context
	op  string
	id  string
	now time.Time

	tokens    *token.Registry
	protocols *registry.Registry
	book      *ledger.Book
	bindings  map[string]adapter.Binding

	undo      []func(context.Context) error
	attrs     []any
	touched   map[pairkey.Key]pairkey.Pair
	retained  map[common.Address]*uint256.Int
	harvested []harvest
}

// harvest is a farm claim made by an operation. A claim cannot be undone, so
// it outlives the operation's rollback.
type harvest struct {
	pair   pairkey.Pair
	amount *uint256.Int
}

func (a *Aggregator) begin(ctx context.Context, op string) *txn {
	bindings := make(map[string]adapter.Binding, len(a.bindings))
	for name, b := range a.bindings {
		bindings[name] = b
	}
	return &txn{
		ctx:       ctx,
		op:        op,
		id:        uuid.NewString(),
		now:       a.now(),
		tokens:    a.tokens.Clone(),
		protocols: a.protocols.Clone(),
		book:      a.book.Clone(),
		bindings:  bindings,
		touched:   make(map[pairkey.Key]pairkey.Pair),
		retained:  make(map[common.Address]*uint256.Int),
	}
}

// compensate registers the inverse of an external call that has succeeded.
func (tx *txn) compensate(f func(context.Context) error) {
	tx.undo = append(tx.undo, f)
}

func (tx *txn) log(args ...any) {
	tx.attrs = append(tx.attrs, args...)
}

func (tx *txn) touch(pair pairkey.Pair) {
	k := pair.Key()
	if _, ok := tx.touched[k]; !ok {
		tx.log("pair_key", k.Short())
	}
	tx.touched[k] = pair
}

// retain books a penalty or an undistributable reward kept in tok.
func (tx *txn) retain(tok common.Address, amount *uint256.Int) error {
	if err := tx.book.Retain(tok, amount); err != nil {
		return err
	}
	sum := new(uint256.Int).Set(amount)
	if prev, ok := tx.retained[tok]; ok {
		sum.Add(sum, prev)
	}
	tx.retained[tok] = sum
	return nil
}

// run executes fn as one all-or-nothing operation.
func (a *Aggregator) run(ctx context.Context, op string, fn func(tx *txn) error) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	start := time.Now()
	tx := a.begin(ctx, op)

	err := fn(tx)
	if err == nil && a.checkInvariants {
		err = tx.book.CheckInvariants()
	}
	if err == nil && a.store != nil {
		err = a.store.Save(ctx, tx.snapshot())
		if err != nil {
			err = fmt.Errorf("failed to persist snapshot: %w", err)
		}
	}
	if err != nil {
		a.rollback(tx)
		a.metrics.ObserveOp(op, errorClass(err), time.Since(start))
		a.logger.Warn("Operation failed, state unchanged.", append([]any{"op", op, "op_id", tx.id, "error", err}, tx.attrs...)...)
		a.carry(tx)
		return err
	}

	a.tokens, a.protocols, a.book, a.bindings = tx.tokens, tx.protocols, tx.book, tx.bindings
	a.publish(tx)
	a.metrics.ObserveOp(op, "ok", time.Since(start))
	a.logger.Info("Operation committed.", append([]any{"op", op, "op_id", tx.id}, tx.attrs...)...)
	return nil
}

func (a *Aggregator) rollback(tx *txn) {
	ctx := context.WithoutCancel(tx.ctx)
	for i := len(tx.undo) - 1; i >= 0; i-- {
		if err := tx.undo[i](ctx); err != nil {
			a.logger.Error("Compensation failed; custody and protocol balances need manual reconciliation.",
				"op", tx.op, "op_id", tx.id, "step", i, "error", err)
		}
	}
}

// carry books the rewards a failed operation harvested. They already sit in
// custody and belong to the pools they were claimed for.
func (a *Aggregator) carry(failed *txn) {
	if len(failed.harvested) == 0 {
		return
	}
	tx := a.begin(context.WithoutCancel(failed.ctx), "harvest")
	for _, h := range failed.harvested {
		if err := a.credit(tx, h.pair, h.amount); err != nil {
			a.logger.Error("Harvested rewards could not be booked; custody needs manual reconciliation.",
				"op", failed.op, "op_id", failed.id, "pair", h.pair.String(), "amount", h.amount.Dec(), "error", err)
			return
		}
	}
	if a.store != nil {
		if err := a.store.Save(tx.ctx, tx.snapshot()); err != nil {
			a.logger.Error("Harvested rewards could not be persisted; custody needs manual reconciliation.",
				"op", failed.op, "op_id", failed.id, "error", err)
			return
		}
	}
	a.book = tx.book
	a.publish(tx)
	a.logger.Info("Harvested rewards kept after failed operation.", "op", failed.op, "op_id", tx.id, "failed_op_id", failed.id)
}

func (a *Aggregator) publish(tx *txn) {
	if a.metrics == nil {
		return
	}
	for _, pair := range tx.touched {
		a.metrics.SetPoolShares(pair.Token.Hex(), pair.Protocol, units.Float(a.book.PoolShares(pair)))
	}
	for tok, amount := range tx.retained {
		a.metrics.AddRetained(tok.Hex(), units.Float(amount))
	}
}

func (tx *txn) snapshot() Snapshot {
	return Snapshot{
		OpID:      tx.id,
		Op:        tx.op,
		TakenAt:   tx.now,
		Tokens:    tx.tokens.All(),
		Protocols: tx.protocols.All(),
		Ledger:    tx.book.Snapshot(),
	}
}

func (a *Aggregator) requireAdmin(caller common.Address) error {
	if caller != a.admin {
		return fmt.Errorf("%w: %s", ErrUnauthorized, caller.Hex())
	}
	return nil
}

// binding returns the connected adapter of a registered protocol.
func (tx *txn) binding(name string) (adapter.Binding, error) {
	b, ok := tx.bindings[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotConnected, name)
	}
	return b, nil
}
