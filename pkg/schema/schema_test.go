package schema_test

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/realityu/pgnest"
	"github.com/realityu/pgnest/pkg/executor"
	"github.com/realityu/pgnest/pkg/filter"
	"github.com/realityu/pgnest/pkg/query"
	"github.com/realityu/pgnest/pkg/schema"
)

// nopDB satisfies executor.DB for registries that only compile.
type nopDB struct{}

func (nopDB) Query(context.Context, string, executor.Params) ([]executor.Row, error) {
	return nil, nil
}

func (nopDB) Begin(context.Context) (executor.Tx, error) { return nil, nil }

func loadBlog(t *testing.T) (*schema.Schema, *pgnest.Registry) {
	t.Helper()
	s, err := schema.Load("testdata/blog.yaml")
	require.NoError(t, err)
	r := pgnest.NewRegistry(nopDB{})
	require.NoError(t, s.Register(r))
	return s, r
}

func TestLoad(t *testing.T) {
	s, r := loadBlog(t)

	assert.Equal(t, []string{"comment", "post", "tag", "user"}, s.ModelNames())
	assert.Equal(t, []string{"userWithPosts", "countPosts"}, s.QueryNames())

	user := r.MustModel("user")
	assert.Equal(t, "users", user.Table())
	assert.Equal(t, []pgnest.Field{
		{Name: "id", Type: query.Bigint},
		{Name: "name", Type: query.String},
		{Name: "settings", Type: query.JSON},
	}, user.Fields(), "field order follows the file")

	assert.Equal(t, []string{"author", "comments", "tags"}, r.MustModel("post").Relations())

	f, ok := user.DefaultFilters().Get("deleted")
	require.True(t, ok)
	assert.Equal(t, filter.Eq(false), f)
}

func TestQuery_Builder(t *testing.T) {
	s, r := loadBlog(t)

	q, ok := s.Query("userWithPosts")
	require.True(t, ok)
	assert.Equal(t, []string{"name", "id"}, q.Where.Columns())

	b, err := q.Builder(r)
	require.NoError(t, err)
	sql, err := b.SQL()
	require.NoError(t, err)

	g := goldie.New(t, goldie.WithFixtureDir("testdata/golden"), goldie.WithNameSuffix(".golden"))
	g.Assert(t, "user_with_posts", []byte(sql+"\n"))

	q, _ = s.Query("countPosts")
	b, err = q.Builder(r)
	require.NoError(t, err)
	sql, err = b.SQL()
	require.NoError(t, err)
	assert.Equal(t, "Select COUNT(posts.id) AS count FROM posts WHERE posts.user_id IN (${ids:list});", sql)
}

func TestThroughRelationFromFile(t *testing.T) {
	_, r := loadBlog(t)
	sql, err := r.MustModel("post").WithRelation("tags").Collect("id").SQL()
	require.NoError(t, err)
	assert.Contains(t, sql, "LEFT OUTER JOIN post_tags ON post_tags.tag_id = tags.id")
	assert.Contains(t, sql, "post_tags.post_id AS T1_match")
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"not yaml", "models: [\n"},
		{"model without name", "models:\n  - table: x\n"},
		{"unknown field type", "models:\n  - name: x\n    fields:\n      a: uuid\n"},
		{"bad filter", "models:\n  - name: x\n    defaultFilters:\n      a: [1, 2, 3]\n"},
		{"literal scalar filter", "queries:\n  - name: q\n    model: x\n    where:\n      a: 3\n"},
		{"unknown relation kind", "models:\n  - name: x\n    relations:\n      - name: r\n        kind: several\n"},
		{"negative limit", "queries:\n  - name: q\n    model: x\n    limit: -1\n"},
		{"duplicate query", "queries:\n  - name: q\n    model: x\n  - name: q\n    model: x\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := schema.Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.True(t, schema.IsInvalidSchemaErr(err), "got %v", err)
		})
	}
}

func TestRegister_UnknownQueryTarget(t *testing.T) {
	s, err := schema.Parse([]byte("models:\n  - name: x\nqueries:\n  - name: q\n    model: x\n    with: nope\n"))
	require.NoError(t, err)
	err = s.Register(pgnest.NewRegistry(nopDB{}))
	assert.True(t, pgnest.IsUnknownRelationErr(err))
}
