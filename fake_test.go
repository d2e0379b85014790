package pgnest_test

import (
	"context"
	"errors"
	"sync"

	"github.com/realityu/pgnest/pkg/executor"
)

type call struct {
	SQL    string
	Params executor.Params
	InTx   bool
}

// fakeDB records statements and answers them through respond.
type fakeDB struct {
	mu          sync.Mutex
	calls       []call
	respond     func(sql string, params executor.Params) ([]executor.Row, error)
	begins      int
	commits     int
	rollbacks   int
	commitErr   error
	rollbackErr error
}

func newFakeDB() *fakeDB { return &fakeDB{} }

func (f *fakeDB) Query(_ context.Context, sql string, params executor.Params) ([]executor.Row, error) {
	return f.record(sql, params, false)
}

func (f *fakeDB) Begin(context.Context) (executor.Tx, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.begins++
	return &fakeTx{db: f}, nil
}

func (f *fakeDB) record(sql string, params executor.Params, inTx bool) ([]executor.Row, error) {
	f.mu.Lock()
	f.calls = append(f.calls, call{SQL: sql, Params: params, InTx: inTx})
	respond := f.respond
	f.mu.Unlock()
	if respond == nil {
		return nil, nil
	}
	return respond(sql, params)
}

func (f *fakeDB) Calls() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call(nil), f.calls...)
}

func (f *fakeDB) last() call {
	calls := f.Calls()
	if len(calls) == 0 {
		return call{}
	}
	return calls[len(calls)-1]
}

type fakeTx struct {
	db     *fakeDB
	closed bool
}

func (t *fakeTx) Query(_ context.Context, sql string, params executor.Params) ([]executor.Row, error) {
	if t.closed {
		return nil, errors.New("tx closed")
	}
	return t.db.record(sql, params, true)
}

func (t *fakeTx) Commit(context.Context) error {
	t.db.mu.Lock()
	defer t.db.mu.Unlock()
	t.closed = true
	if t.db.commitErr != nil {
		return t.db.commitErr
	}
	t.db.commits++
	return nil
}

func (t *fakeTx) Rollback(context.Context) error {
	t.db.mu.Lock()
	defer t.db.mu.Unlock()
	t.closed = true
	if t.db.rollbackErr != nil {
		return t.db.rollbackErr
	}
	t.db.rollbacks++
	return nil
}
