package pgnest_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/realityu/pgnest"
	"github.com/realityu/pgnest/pkg/executor"
	"github.com/realityu/pgnest/pkg/logging"
)

func TestModel_Create(t *testing.T) {
	db := newFakeDB()
	db.respond = func(_ string, params executor.Params) ([]executor.Row, error) {
		return []executor.Row{{"id": int64(7), "name": params["name"], "created": "now"}}, nil
	}
	r := newRegistry(t, db)
	users := r.MustModel("user")

	var created []*pgnest.Instance
	users.OnAfterCreate(func(_ context.Context, inst *pgnest.Instance) { created = append(created, inst) })

	inst, err := users.Create(context.Background(), map[string]any{"name": "Ann", "bogus": 1}, nil)
	require.NoError(t, err)

	assert.Equal(t, "INSERT INTO user (name) VALUES (${name}) RETURNING *;", db.last().SQL)
	assert.Equal(t, executor.Params{"name": "Ann"}, db.last().Params)

	id, ok := inst.ID()
	require.True(t, ok)
	assert.Equal(t, int64(7), id)
	assert.Equal(t, map[string]any{"id": int64(7), "name": "Ann"}, inst.Naked(), "undeclared columns are dropped")
	require.Len(t, created, 1)
	assert.Same(t, inst, created[0])
}

func TestModel_CreateJSONColumn(t *testing.T) {
	db := newFakeDB()
	r := newRegistry(t, db)

	_, err := r.MustModel("post").Create(context.Background(), map[string]any{
		"title": "Hello",
		"meta":  map[string]any{"tags": []string{"a"}},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "INSERT INTO post (title, meta) VALUES (${title}, ${meta:json}) RETURNING *;", db.last().SQL)
	assert.Equal(t, map[string]any{"tags": []string{"a"}}, db.last().Params["meta"], "json columns are marshalled by the executor")
}

func TestInstance_SetUnset(t *testing.T) {
	r := newRegistry(t, newFakeDB())
	inst := r.MustModel("user").NewInstance(nil)

	require.NoError(t, inst.Set("name", "Ann"))
	assert.ErrorIs(t, inst.Set("age", 3), pgnest.ErrUnknownColumn)

	require.NoError(t, inst.SetNull("name"))
	v, ok := inst.Get("name")
	assert.True(t, ok)
	assert.Nil(t, v)

	inst.Unset("name")
	assert.False(t, inst.IsSet("name"))

	_, ok = inst.ID()
	assert.False(t, ok)

	tag := r.MustModel("tag").NewInstance(nil)
	assert.NoError(t, tag.Set("anything", 1), "models without fields accept any column")
}

func TestInstance_SaveUpdate(t *testing.T) {
	db := newFakeDB()
	r := newRegistry(t, db)
	users := r.MustModel("user")
	ctx := context.Background()

	saves := 0
	users.OnAfterSave(func(context.Context, *pgnest.Instance) { saves++ })

	inst := users.NewInstance(map[string]any{"id": int64(7), "name": []string{"a", "b"}})
	require.NoError(t, inst.Save(ctx, nil))
	assert.Equal(t, "UPDATE user SET id = ${id}, name = ${name} WHERE id = ${id};", db.last().SQL)
	assert.Equal(t, executor.Params{"id": int64(7), "name": `["a","b"]`}, db.last().Params)

	require.NoError(t, inst.SetNull("name"))
	require.NoError(t, inst.Save(ctx, nil))
	assert.Nil(t, db.last().Params["name"])
	assert.Contains(t, db.last().Params, "name")

	inst.Unset("name")
	require.NoError(t, inst.Save(ctx, nil))
	assert.Equal(t, "UPDATE user SET id = ${id} WHERE id = ${id};", db.last().SQL)
	assert.Equal(t, 3, saves)
}

func TestInstance_UnencodableValue(t *testing.T) {
	db := newFakeDB()
	r := newRegistry(t, db)
	users := r.MustModel("user")
	ctx := context.Background()

	bad := []any{make(chan int)}
	err := users.NewInstance(map[string]any{"id": int64(7), "name": bad}).Save(ctx, nil)
	assert.ErrorIs(t, err, pgnest.ErrInvalidValue)
	assert.Contains(t, err.Error(), "user.name")

	_, err = users.Create(ctx, map[string]any{"name": bad}, nil)
	assert.ErrorIs(t, err, pgnest.ErrInvalidValue)
	assert.Empty(t, db.Calls(), "nothing reaches the executor")
}

func TestInstance_SaveInsert(t *testing.T) {
	db := newFakeDB()
	db.respond = func(string, executor.Params) ([]executor.Row, error) {
		return []executor.Row{{"id": int64(11), "name": nil}}, nil
	}
	r := newRegistry(t, db)

	inst := r.MustModel("user").NewInstance(nil)
	require.NoError(t, inst.Save(context.Background(), nil))
	assert.Equal(t, "INSERT INTO user DEFAULT VALUES RETURNING *;", db.last().SQL)
	id, ok := inst.ID()
	require.True(t, ok)
	assert.Equal(t, int64(11), id)
	assert.True(t, inst.IsSet("name"))
}

func TestInstance_Delete(t *testing.T) {
	db := newFakeDB()
	r := newRegistry(t, db)
	users := r.MustModel("user")
	ctx := context.Background()

	deleted := 0
	users.OnAfterDelete(func(context.Context, *pgnest.Instance) { deleted++ })

	err := users.NewInstance(map[string]any{"name": "Ann"}).Delete(ctx, nil)
	assert.True(t, pgnest.IsMissingIdentityErr(err))
	assert.Empty(t, db.Calls())

	require.NoError(t, users.NewInstance(map[string]any{"id": int64(7)}).Delete(ctx, nil))
	assert.Equal(t, "DELETE FROM user WHERE id = ${id};", db.last().SQL)
	assert.Equal(t, executor.Params{"id": int64(7)}, db.last().Params)
	assert.Equal(t, 1, deleted)
}

func TestModel_Find(t *testing.T) {
	db := newFakeDB()
	db.respond = func(_ string, params executor.Params) ([]executor.Row, error) {
		if params["id"] == int64(1) {
			return []executor.Row{{"id": int64(1), "name": "Ann"}}, nil
		}
		return nil, nil
	}
	r := newRegistry(t, db)
	users := r.MustModel("user")
	ctx := context.Background()

	inst, err := users.Find(ctx, int64(1))
	require.NoError(t, err)
	require.NotNil(t, inst)
	assert.Equal(t, "SELECT * FROM user WHERE id = ${id};", db.last().SQL)
	name, _ := inst.Get("name")
	assert.Equal(t, "Ann", name)

	inst, err = users.Find(ctx, int64(2))
	require.NoError(t, err)
	assert.Nil(t, inst)

	all, err := users.FindAll(ctx, int64(2), int64(1))
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Nil(t, all[0])
	require.NotNil(t, all[1])
	id, _ := all[1].ID()
	assert.Equal(t, int64(1), id)
}

func TestHooks_DeferredUntilCommit(t *testing.T) {
	db := newFakeDB()
	r := newRegistry(t, db)
	users := r.MustModel("user")
	ctx := context.Background()

	var fired []string
	users.OnAfterCreate(func(context.Context, *pgnest.Instance) { fired = append(fired, "create") })
	users.OnAfterDelete(func(context.Context, *pgnest.Instance) { fired = append(fired, "delete") })

	tx, err := r.Begin(ctx)
	require.NoError(t, err)
	_, err = users.Create(ctx, map[string]any{"name": "Ann"}, tx)
	require.NoError(t, err)
	assert.True(t, db.last().InTx)
	assert.Empty(t, fired)
	require.NoError(t, tx.Commit(ctx))
	assert.Equal(t, []string{"create"}, fired)

	tx, err = r.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, users.NewInstance(map[string]any{"id": int64(1)}).Delete(ctx, tx))
	require.NoError(t, tx.Rollback(ctx, nil))
	assert.Equal(t, []string{"create"}, fired, "rolled back writes fire nothing")
}

func TestHooks_PanicIsIsolated(t *testing.T) {
	var buf bytes.Buffer
	db := newFakeDB()
	r := newRegistry(t, db, pgnest.WithReporter(logging.NewReporter(logging.NewLogger(&buf, "info", "json"))))
	users := r.MustModel("user")

	ran := false
	users.OnAfterSave(func(context.Context, *pgnest.Instance) { panic("boom") })
	users.OnAfterSave(func(context.Context, *pgnest.Instance) { ran = true })

	require.NoError(t, users.NewInstance(map[string]any{"id": int64(1)}).Save(context.Background(), nil))
	assert.True(t, ran)
	assert.Contains(t, buf.String(), "callback panicked")
	assert.Contains(t, buf.String(), "model.user.afterSave")
}
