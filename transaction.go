package pgnest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/realityu/pgnest/pkg/executor"
	"github.com/realityu/pgnest/pkg/logging"
)

type txState int

const (
	txOpen txState = iota
	txBegun
	txCommitted
	txRolledBack
)

func (s txState) String() string {
	switch s {
	case txOpen:
		return "open"
	case txBegun:
		return "began"
	case txCommitted:
		return "committed"
	default:
		return "rolled back"
	}
}

// Transaction wraps one database transaction and the callbacks waiting on
// its outcome.
//
// A Transaction starts open, running statements on the plain executor.
// Begin opens the database transaction; Commit or Rollback settle it.
// Commit callbacks fire only after a successful commit and rollback
// callbacks only after a confirmed rollback. A callback registered after
// settlement fires immediately when it matches the outcome and is dropped
// otherwise.
type Transaction struct {
	mu       sync.Mutex
	id       string
	db       executor.DB
	tx       executor.Tx
	state    txState
	cause    error
	reporter *logging.Reporter

	onCommit   []func(context.Context)
	onRollback []func(context.Context)
}

func newTransaction(db executor.DB, rep *logging.Reporter) *Transaction {
	return &Transaction{id: uuid.NewString(), db: db, reporter: rep}
}

// ID identifies the transaction in logs.
func (t *Transaction) ID() string { return t.id }

// State returns "open", "began", "committed" or "rolled back".
func (t *Transaction) State() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.String()
}

// Cause returns the error passed to Rollback, if any.
func (t *Transaction) Cause() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cause
}

// Begin opens the database transaction.
func (t *Transaction) Begin(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch t.state {
	case txBegun:
		return nil
	case txCommitted, txRolledBack:
		return ErrTransactionSettled
	}
	tx, err := t.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	t.tx = tx
	t.state = txBegun
	return nil
}

// Query implements executor.Querier on the transaction's current handle.
func (t *Transaction) Query(ctx context.Context, sql string, params executor.Params) ([]executor.Row, error) {
	t.mu.Lock()
	var q executor.Querier
	switch t.state {
	case txOpen:
		q = t.db
	case txBegun:
		q = t.tx
	default:
		t.mu.Unlock()
		return nil, ErrTransactionSettled
	}
	t.mu.Unlock()
	return q.Query(ctx, sql, params)
}

// Commit commits the transaction and then runs the commit callbacks. A
// failed commit leaves the database transaction aborted; it is rolled back
// and the rollback callbacks run instead.
func (t *Transaction) Commit(ctx context.Context) error {
	t.mu.Lock()
	if err := t.settleable(); err != nil {
		t.mu.Unlock()
		return err
	}
	if commitErr := t.tx.Commit(ctx); commitErr != nil {
		rbErr := t.tx.Rollback(ctx)
		t.cause = commitErr
		callbacks := t.settle(txRolledBack)
		t.mu.Unlock()

		err := fmt.Errorf("commit transaction: %w", commitErr)
		if rbErr != nil {
			t.reporter.Error(ctx, logging.Record{
				Message: "rollback after failed commit",
				Source:  "transaction",
				Err:     rbErr,
				Vars:    map[string]any{"transaction": t.id, "commitError": commitErr.Error()},
			})
			err = errors.Join(err, fmt.Errorf("rollback transaction: %w", rbErr))
		}
		t.run(ctx, callbacks)
		return err
	}
	callbacks := t.settle(txCommitted)
	t.mu.Unlock()
	t.run(ctx, callbacks)
	return nil
}

// Rollback rolls the transaction back with cause and then runs the
// rollback callbacks. A successful rollback returns nil. When the engine
// refuses, the transaction stays begun and the error is returned.
func (t *Transaction) Rollback(ctx context.Context, cause error) error {
	t.mu.Lock()
	if err := t.settleable(); err != nil {
		t.mu.Unlock()
		return err
	}
	if err := t.tx.Rollback(ctx); err != nil {
		t.mu.Unlock()
		return fmt.Errorf("rollback transaction: %w", err)
	}
	t.cause = cause
	callbacks := t.settle(txRolledBack)
	t.mu.Unlock()

	if cause != nil {
		t.reporter.Debug(ctx, logging.Record{
			Message: "transaction rolled back",
			Source:  "transaction",
			Err:     cause,
			Vars:    map[string]any{"transaction": t.id},
		})
	}
	t.run(ctx, callbacks)
	return nil
}

// AfterCommit registers fn to run after a successful commit.
func (t *Transaction) AfterCommit(fn func(context.Context)) {
	t.register(fn, txCommitted)
}

// AfterRollback registers fn to run after a confirmed rollback.
func (t *Transaction) AfterRollback(fn func(context.Context)) {
	t.register(fn, txRolledBack)
}

func (t *Transaction) register(fn func(context.Context), on txState) {
	if fn == nil {
		return
	}
	t.mu.Lock()
	switch t.state {
	case txOpen, txBegun:
		if on == txCommitted {
			t.onCommit = append(t.onCommit, fn)
		} else {
			t.onRollback = append(t.onRollback, fn)
		}
		t.mu.Unlock()
		return
	}
	matches := t.state == on
	t.mu.Unlock()
	if matches {
		t.run(context.Background(), []func(context.Context){fn})
	}
}

// settleable must be called with mu held.
func (t *Transaction) settleable() error {
	switch t.state {
	case txOpen:
		return ErrTransactionNotBegun
	case txCommitted, txRolledBack:
		return ErrTransactionSettled
	}
	return nil
}

// settle must be called with mu held. It returns the callbacks to run.
func (t *Transaction) settle(to txState) []func(context.Context) {
	t.state = to
	callbacks := t.onRollback
	if to == txCommitted {
		callbacks = t.onCommit
	}
	t.onCommit, t.onRollback = nil, nil
	return callbacks
}

func (t *Transaction) run(ctx context.Context, callbacks []func(context.Context)) {
	for _, fn := range callbacks {
		safeCall(ctx, t.reporter, "transaction "+t.id, func() { fn(ctx) })
	}
}
