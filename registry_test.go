package pgnest_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/realityu/pgnest"
	"github.com/realityu/pgnest/pkg/filter"
	"github.com/realityu/pgnest/pkg/query"
)

func userDef() pgnest.Definition {
	return pgnest.Definition{
		Name:  "user",
		Table: "user",
		Fields: []pgnest.Field{
			{Name: "id", Type: query.Number},
			{Name: "name", Type: query.String},
		},
		Relations: []pgnest.RelationSpec{
			{Kind: query.HasMany, Model: "post", RelationOptions: pgnest.RelationOptions{
				Name: "posts", ForeignKey: "user_id", MyKey: "id",
			}},
		},
	}
}

func postDef() pgnest.Definition {
	return pgnest.Definition{
		Name:  "post",
		Table: "post",
		Fields: []pgnest.Field{
			{Name: "id", Type: query.Number},
			{Name: "user_id", Type: query.Number},
			{Name: "title", Type: query.String},
			{Name: "meta", Type: query.JSON},
		},
		DefaultFilters: func() filter.Map {
			return filter.Where("published", filter.Eq(true))
		},
		Associate: func(r *pgnest.Registry, m *pgnest.Model) error {
			if err := m.AddToOne(r.MustModel("user"), pgnest.RelationOptions{
				Name: "author", ForeignKey: "id", MyKey: "user_id",
			}); err != nil {
				return err
			}
			return m.AddToManyThrough(r.MustModel("tag"), pgnest.RelationOptions{
				Name:            "tags",
				ForeignKey:      "id",
				MyKey:           "id",
				ThroughTable:    "post_tag",
				ForeignPivotKey: "tag_id",
				MyPivotKey:      "post_id",
				PivotFilter:     filter.Where("kind", filter.Eq("topic")),
			})
		},
	}
}

func tagDef() pgnest.Definition {
	return pgnest.Definition{Name: "tag", Table: "tag"}
}

// newRegistry registers post before user to exercise forward references.
func newRegistry(t *testing.T, db *fakeDB, opts ...pgnest.RegistryOption) *pgnest.Registry {
	t.Helper()
	r := pgnest.NewRegistry(db, opts...)
	require.NoError(t, r.Register(postDef(), userDef(), tagDef()))
	return r
}

func TestRegistry_Register(t *testing.T) {
	r := newRegistry(t, newFakeDB())

	assert.True(t, r.Sealed())
	assert.Equal(t, []string{"post", "tag", "user"}, r.Names())

	post := r.MustModel("post")
	assert.Equal(t, []string{"author", "tags"}, post.Relations())
	assert.Equal(t, "id", post.Identity())

	m, ok := r.ModelForTable("user")
	require.True(t, ok)
	assert.Equal(t, "user", m.Name())

	cols, ok := r.Columns("post")
	require.True(t, ok)
	assert.Equal(t, query.Column{Name: "meta", Type: query.JSON}, cols[3])

	_, ok = r.Columns("tag")
	assert.False(t, ok, "models without fields select table.*")
	_, ok = r.Columns("missing")
	assert.False(t, ok)
}

func TestRegistry_RegisterAfterFailure(t *testing.T) {
	r := pgnest.NewRegistry(newFakeDB())
	_, err := r.Define(pgnest.Definition{Name: "audit", Table: "audit"})
	require.NoError(t, err)

	err = r.Register(userDef())
	require.True(t, pgnest.IsUnknownModelErr(err))
	assert.False(t, r.Sealed())
	assert.Equal(t, []string{"audit"}, r.Names(), "only models of the failed call are dropped")
	_, ok := r.ModelForTable("user")
	assert.False(t, ok)

	require.NoError(t, r.Register(userDef(), postDef(), tagDef()))
	assert.True(t, r.Sealed())
	assert.Equal(t, []string{"audit", "post", "tag", "user"}, r.Names())
	assert.Equal(t, []string{"posts"}, r.MustModel("user").Relations())
}

func TestRegistry_Errors(t *testing.T) {
	t.Run("unknown model", func(t *testing.T) {
		r := newRegistry(t, newFakeDB())
		_, err := r.Model("nope")
		assert.True(t, pgnest.IsUnknownModelErr(err))
		assert.Panics(t, func() { r.MustModel("nope") })
	})

	t.Run("duplicate name", func(t *testing.T) {
		r := pgnest.NewRegistry(newFakeDB())
		err := r.Register(tagDef(), tagDef())
		assert.ErrorIs(t, err, pgnest.ErrDuplicateModel)
	})

	t.Run("duplicate table", func(t *testing.T) {
		r := pgnest.NewRegistry(newFakeDB())
		err := r.Register(tagDef(), pgnest.Definition{Name: "label", Table: "tag"})
		assert.ErrorIs(t, err, pgnest.ErrDuplicateModel)
	})

	t.Run("relation to unregistered model", func(t *testing.T) {
		r := pgnest.NewRegistry(newFakeDB())
		err := r.Register(userDef())
		assert.True(t, pgnest.IsUnknownModelErr(err))
	})

	t.Run("invalid field type", func(t *testing.T) {
		r := pgnest.NewRegistry(newFakeDB())
		_, err := r.Define(pgnest.Definition{Name: "x", Table: "x", Fields: []pgnest.Field{{Name: "a", Type: "uuid"}}})
		assert.ErrorIs(t, err, pgnest.ErrInvalidDefinition)
	})

	t.Run("relation missing keys", func(t *testing.T) {
		r := pgnest.NewRegistry(newFakeDB())
		a, err := r.Define(pgnest.Definition{Name: "a", Table: "a"})
		require.NoError(t, err)
		err = a.AddToMany(a, pgnest.RelationOptions{Name: "children", ForeignKey: "parent_id"})
		assert.ErrorIs(t, err, pgnest.ErrInvalidDefinition)
		err = a.AddToManyThrough(a, pgnest.RelationOptions{Name: "peers", ForeignKey: "id", MyKey: "id"})
		assert.ErrorIs(t, err, pgnest.ErrInvalidDefinition)
	})

	t.Run("sealed", func(t *testing.T) {
		r := newRegistry(t, newFakeDB())
		_, err := r.Define(pgnest.Definition{Name: "late", Table: "late"})
		assert.ErrorIs(t, err, pgnest.ErrRegistrySealed)

		user := r.MustModel("user")
		err = user.AddToOne(r.MustModel("tag"), pgnest.RelationOptions{Name: "tag", ForeignKey: "id", MyKey: "tag_id"})
		assert.ErrorIs(t, err, pgnest.ErrRegistrySealed)
	})
}

func TestModel_Call(t *testing.T) {
	def := tagDef()
	def.Functions = map[string]pgnest.Func{
		"names": func(_ context.Context, r *pgnest.Registry, args ...any) (any, error) {
			out := []any{}
			for _, n := range r.Names() {
				out = append(out, n)
			}
			return append(out, args...), nil
		},
	}
	r := pgnest.NewRegistry(newFakeDB())
	require.NoError(t, r.Register(def))

	got, err := r.MustModel("tag").Call(context.Background(), "names", "extra")
	require.NoError(t, err)
	assert.Equal(t, []any{"tag", "extra"}, got)

	_, err = r.MustModel("tag").Call(context.Background(), "missing")
	assert.ErrorIs(t, err, pgnest.ErrUnknownFunction)
}
