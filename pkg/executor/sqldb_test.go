package executor

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (*SQL, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewSQL(db), mock
}

func TestSQL_Query(t *testing.T) {
	ctx := context.Background()
	s, mock := newMock(t)

	rows := sqlmock.NewRowsWithColumnDefinition(
		sqlmock.NewColumn("id").OfType("JSON", nil),
		sqlmock.NewColumn("name").OfType("TEXT", ""),
		sqlmock.NewColumn("posts").OfType("JSON", nil),
	).AddRow(
		[]byte(`"9007199254740993:bigint"`),
		[]byte("Ann"),
		[]byte(`[{"id":"5:bigint","score":12345678901234567890}]`),
	)
	mock.ExpectQuery("Select user.id FROM user WHERE user.age > $1;").
		WithArgs(18).
		WillReturnRows(rows)

	got, err := s.Query(ctx, "Select user.id FROM user WHERE user.age > ${minAge};", Params{"minAge": 18})
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Equal(t, int64(9007199254740993), got[0]["id"])
	assert.Equal(t, "Ann", got[0]["name"])
	posts, ok := got[0]["posts"].([]any)
	require.True(t, ok)
	post := posts[0].(map[string]any)
	assert.Equal(t, int64(5), post["id"])
	assert.Equal(t, json.Number("12345678901234567890"), post["score"])

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQL_QueryEmpty(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRowsWithColumnDefinition(sqlmock.NewColumn("x").OfType("INT4", 0)))

	got, err := s.Query(context.Background(), "SELECT 1", nil)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQL_QueryError(t *testing.T) {
	s, mock := newMock(t)
	boom := errors.New("connection reset")
	mock.ExpectQuery("SELECT $1").WithArgs(1).WillReturnError(boom)

	_, err := s.Query(context.Background(), "SELECT ${a}", Params{"a": 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "SELECT $1")

	_, err = s.Query(context.Background(), "SELECT ${missing}", Params{})
	assert.True(t, IsMissingParamErr(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQL_Transaction(t *testing.T) {
	ctx := context.Background()
	s, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE user SET name = $1 WHERE id = $2 RETURNING *").
		WithArgs("Bo", int64(4)).
		WillReturnRows(sqlmock.NewRowsWithColumnDefinition(
			sqlmock.NewColumn("id").OfType("INT8", int64(0)),
			sqlmock.NewColumn("name").OfType("TEXT", ""),
		).AddRow(int64(4), "Bo"))
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectRollback()

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	rows, err := tx.Query(ctx, "UPDATE user SET name = ${name} WHERE id = ${id} RETURNING *", Params{"name": "Bo", "id": int64(4)})
	require.NoError(t, err)
	assert.Equal(t, []Row{{"id": int64(4), "name": "Bo"}}, rows)
	require.NoError(t, tx.Commit(ctx))

	tx, err = s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Rollback(ctx))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBatch(t *testing.T) {
	var calls atomic.Int32
	q := querierFunc(func(_ context.Context, sql string, params Params) ([]Row, error) {
		calls.Add(1)
		return []Row{{"sql": sql, "id": params["id"]}}, nil
	})

	stmts := []Statement{
		{SQL: "a", Params: Params{"id": 1}},
		{SQL: "b", Params: Params{"id": 2}},
		{SQL: "c", Params: Params{"id": 3}},
	}
	got, err := Batch(context.Background(), q, stmts, 2)
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i, rows := range got {
		assert.Equal(t, stmts[i].SQL, rows[0]["sql"])
	}
	assert.Equal(t, int32(3), calls.Load())
}

func TestBatch_Error(t *testing.T) {
	boom := errors.New("boom")
	q := querierFunc(func(_ context.Context, sql string, _ Params) ([]Row, error) {
		if sql == "bad" {
			return nil, boom
		}
		return nil, nil
	})
	_, err := Batch(context.Background(), q, []Statement{{SQL: "ok"}, {SQL: "bad"}}, 0)
	assert.ErrorIs(t, err, boom)
}

type querierFunc func(ctx context.Context, sql string, params Params) ([]Row, error)

func (f querierFunc) Query(ctx context.Context, sql string, params Params) ([]Row, error) {
	return f(ctx, sql, params)
}

func TestCode(t *testing.T) {
	assert.Equal(t, "", Code(errors.New("plain")))
	assert.False(t, IsUniqueViolation(nil))
}
