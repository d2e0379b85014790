package pgnest_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/realityu/pgnest"
	"github.com/realityu/pgnest/pkg/logging"
)

func TestTransaction_Lifecycle(t *testing.T) {
	db := newFakeDB()
	r := newRegistry(t, db)
	ctx := context.Background()

	tx := r.Transaction()
	assert.Equal(t, "open", tx.State())
	assert.ErrorIs(t, tx.Commit(ctx), pgnest.ErrTransactionNotBegun)
	assert.ErrorIs(t, tx.Rollback(ctx, nil), pgnest.ErrTransactionNotBegun)

	_, err := tx.Query(ctx, "SELECT 1;", nil)
	require.NoError(t, err)
	assert.False(t, db.last().InTx, "an open transaction uses the plain executor")

	require.NoError(t, tx.Begin(ctx))
	require.NoError(t, tx.Begin(ctx), "begin is idempotent")
	assert.Equal(t, 1, db.begins)

	_, err = tx.Query(ctx, "SELECT 2;", nil)
	require.NoError(t, err)
	assert.True(t, db.last().InTx)

	var order []string
	tx.AfterCommit(func(context.Context) { order = append(order, "commit") })
	tx.AfterRollback(func(context.Context) { order = append(order, "rollback") })

	require.NoError(t, tx.Commit(ctx))
	assert.Equal(t, []string{"commit"}, order)
	assert.Equal(t, "committed", tx.State())

	assert.True(t, pgnest.IsTransactionSettledErr(tx.Commit(ctx)))
	_, err = tx.Query(ctx, "SELECT 3;", nil)
	assert.ErrorIs(t, err, pgnest.ErrTransactionSettled)

	tx.AfterCommit(func(context.Context) { order = append(order, "late commit") })
	tx.AfterRollback(func(context.Context) { order = append(order, "late rollback") })
	assert.Equal(t, []string{"commit", "late commit"}, order)
}

func TestTransaction_Rollback(t *testing.T) {
	db := newFakeDB()
	r := newRegistry(t, db)
	ctx := context.Background()

	tx, err := r.Begin(ctx)
	require.NoError(t, err)

	committed, rolledBack := 0, 0
	tx.AfterCommit(func(context.Context) { committed++ })
	tx.AfterRollback(func(context.Context) { panic("boom") })
	tx.AfterRollback(func(context.Context) { rolledBack++ })

	cause := errors.New("validation failed")
	require.NoError(t, tx.Rollback(ctx, cause))
	assert.Equal(t, 0, committed)
	assert.Equal(t, 1, rolledBack, "a panicking callback does not stop the rest")
	assert.Equal(t, cause, tx.Cause())
	assert.Equal(t, "rolled back", tx.State())
	assert.Equal(t, 1, db.rollbacks)
}

func TestTransaction_CommitFailure(t *testing.T) {
	db := newFakeDB()
	db.commitErr = errors.New("could not serialize access")
	r := newRegistry(t, db)
	ctx := context.Background()

	tx, err := r.Begin(ctx)
	require.NoError(t, err)
	committed, rolledBack := false, false
	tx.AfterCommit(func(context.Context) { committed = true })
	tx.AfterRollback(func(context.Context) { rolledBack = true })

	err = tx.Commit(ctx)
	assert.ErrorIs(t, err, db.commitErr)
	assert.False(t, committed)
	assert.True(t, rolledBack)
	assert.Equal(t, "rolled back", tx.State())
}

func TestTransaction_CommitAndRollbackFailure(t *testing.T) {
	var buf bytes.Buffer
	db := newFakeDB()
	db.commitErr = errors.New("could not serialize access")
	db.rollbackErr = errors.New("connection reset")
	r := newRegistry(t, db, pgnest.WithReporter(logging.NewReporter(logging.NewLogger(&buf, "info", "json"))))
	ctx := context.Background()

	tx, err := r.Begin(ctx)
	require.NoError(t, err)
	rolledBack := false
	tx.AfterRollback(func(context.Context) { rolledBack = true })

	err = tx.Commit(ctx)
	assert.ErrorIs(t, err, db.commitErr)
	assert.ErrorIs(t, err, db.rollbackErr)
	assert.Equal(t, db.commitErr, tx.Cause())
	assert.True(t, rolledBack)
	assert.Equal(t, "rolled back", tx.State())
	assert.Contains(t, buf.String(), "rollback after failed commit")
	assert.Contains(t, buf.String(), "connection reset")
}

func TestRegistry_InTransaction(t *testing.T) {
	db := newFakeDB()
	r := newRegistry(t, db)
	ctx := context.Background()

	require.NoError(t, r.InTransaction(ctx, func(tx *pgnest.Transaction) error {
		_, err := r.MustModel("user").Create(ctx, map[string]any{"name": "Ann"}, tx)
		return err
	}))
	assert.Equal(t, 1, db.commits)

	fail := errors.New("nope")
	err := r.InTransaction(ctx, func(*pgnest.Transaction) error { return fail })
	assert.ErrorIs(t, err, fail)
	assert.Equal(t, 1, db.rollbacks)
}
