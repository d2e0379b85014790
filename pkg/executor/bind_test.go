package executor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/realityu/pgnest/pkg/filter"
)

func TestBind(t *testing.T) {
	tests := []struct {
		name     string
		sql      string
		params   Params
		wantSQL  string
		wantArgs []any
	}{
		{
			name:     "scalar",
			sql:      "Select user.name FROM user WHERE user.age > ${minAge};",
			params:   Params{"minAge": 18},
			wantSQL:  "Select user.name FROM user WHERE user.age > $1;",
			wantArgs: []any{18},
		},
		{
			name:     "repeated name reuses position",
			sql:      "SELECT ${a}, ${b}, ${a}",
			params:   Params{"a": 1, "b": 2},
			wantSQL:  "SELECT $1, $2, $1",
			wantArgs: []any{1, 2},
		},
		{
			name:     "list expands",
			sql:      "SELECT * FROM t WHERE id IN (${ids:list}) AND k = ${k}",
			params:   Params{"ids": []int64{7, 8, 9}, "k": "x"},
			wantSQL:  "SELECT * FROM t WHERE id IN ($1, $2, $3) AND k = $4",
			wantArgs: []any{int64(7), int64(8), int64(9), "x"},
		},
		{
			name:     "empty list binds null",
			sql:      "SELECT * FROM t WHERE id NOT IN (${ids:list})",
			params:   Params{"ids": []string{}},
			wantSQL:  "SELECT * FROM t WHERE id NOT IN (NULL)",
			wantArgs: nil,
		},
		{
			name:     "range fields",
			sql:      "SELECT 1 WHERE x BETWEEN ${span.low} AND ${span.high}",
			params:   Params{"span": filter.Range{Low: 1, High: 5}},
			wantSQL:  "SELECT 1 WHERE x BETWEEN $1 AND $2",
			wantArgs: []any{1, 5},
		},
		{
			name:     "map fields",
			sql:      "SELECT ${span.high}",
			params:   Params{"span": map[string]any{"low": "a", "high": "z"}},
			wantSQL:  "SELECT $1",
			wantArgs: []any{"z"},
		},
		{
			name:     "json",
			sql:      "INSERT INTO t (doc) VALUES (${doc:json})",
			params:   Params{"doc": map[string]any{"tags": []string{"a"}}},
			wantSQL:  "INSERT INTO t (doc) VALUES ($1)",
			wantArgs: []any{`{"tags":["a"]}`},
		},
		{
			name:     "quoted text untouched",
			sql:      "SELECT '${notParam}', 'it''s ${x}', \"${col}\" FROM t WHERE a = ${a}",
			params:   Params{"a": true},
			wantSQL:  "SELECT '${notParam}', 'it''s ${x}', \"${col}\" FROM t WHERE a = $1",
			wantArgs: []any{true},
		},
		{
			name:     "compiled json fallback survives",
			sql:      "Select COALESCE(T1.Val, '[]'::json) AS xs FROM t WHERE t.id = ${id};",
			params:   Params{"id": 3},
			wantSQL:  "Select COALESCE(T1.Val, '[]'::json) AS xs FROM t WHERE t.id = $1;",
			wantArgs: []any{3},
		},
		{
			name:    "no placeholders",
			sql:     "SELECT 1",
			wantSQL: "SELECT 1",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotSQL, gotArgs, err := Bind(tt.sql, tt.params)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, gotSQL)
			assert.Equal(t, tt.wantArgs, gotArgs)
		})
	}
}

func TestBind_Errors(t *testing.T) {
	tests := []struct {
		name    string
		sql     string
		params  Params
		missing bool
	}{
		{"missing param", "SELECT ${a}", Params{}, true},
		{"missing field", "SELECT ${r.mid}", Params{"r": filter.Range{}}, true},
		{"field on scalar", "SELECT ${r.low}", Params{"r": 5}, true},
		{"unterminated", "SELECT ${a", Params{"a": 1}, false},
		{"unknown modifier", "SELECT ${a:csv}", Params{"a": 1}, false},
		{"empty name", "SELECT ${}", Params{}, false},
		{"list of scalar", "SELECT ${a:list}", Params{"a": 1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Bind(tt.sql, tt.params)
			require.Error(t, err)
			assert.Equal(t, tt.missing, IsMissingParamErr(err))
		})
	}
}

func TestDecodeValue(t *testing.T) {
	n, ok := DecodeBigint("9223372036854775807:bigint")
	require.True(t, ok)
	assert.Equal(t, int64(9223372036854775807), n)

	_, ok = DecodeBigint("abc:bigint")
	assert.False(t, ok)
	_, ok = DecodeBigint("12")
	assert.False(t, ok)

	nested := map[string]any{
		"id":    "12:bigint",
		"name":  "plain",
		"posts": []any{map[string]any{"id": "-3:bigint"}},
	}
	got := DecodeValue(nested)
	assert.Equal(t, map[string]any{
		"id":    int64(12),
		"name":  "plain",
		"posts": []any{map[string]any{"id": int64(-3)}},
	}, got)
}
