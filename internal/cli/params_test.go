package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/realityu/pgnest/pkg/executor"
)

func TestParseParams(t *testing.T) {
	tests := []struct {
		name  string
		doc   string
		pairs []string
		want  executor.Params
	}{
		{
			name:  "scalars",
			pairs: []string{"name=Ann", "age=42", "ratio=0.5", "ok=true"},
			want:  executor.Params{"name": "Ann", "age": int64(42), "ratio": 0.5, "ok": true},
		},
		{
			name:  "lists",
			pairs: []string{"ids=[1, 2, 9007199254740993]"},
			want:  executor.Params{"ids": []any{int64(1), int64(2), int64(9007199254740993)}},
		},
		{
			name:  "unparseable stays a string",
			pairs: []string{"q=a: b: c", "empty="},
			want:  executor.Params{"q": "a: b: c", "empty": ""},
		},
		{
			name:  "document with override",
			doc:   `{"name": "Ann", "meta": {"n": 1}}`,
			pairs: []string{"name=Bob"},
			want:  executor.Params{"name": "Bob", "meta": map[string]any{"n": int64(1)}},
		},
		{
			name: "yaml document",
			doc:  "ids:\n  - 3\n  - 4\n",
			want: executor.Params{"ids": []any{int64(3), int64(4)}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseParams(tt.doc, tt.pairs)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseParams_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "params.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: Ann\n"), 0o644))

	got, err := ParseParams("@"+path, nil)
	require.NoError(t, err)
	assert.Equal(t, executor.Params{"name": "Ann"}, got)
}

func TestParseParams_Invalid(t *testing.T) {
	_, err := ParseParams("", []string{"novalue"})
	assert.Error(t, err)

	_, err = ParseParams("[1, 2]", nil)
	assert.Error(t, err)

	_, err = ParseParams("@/does/not/exist.yaml", nil)
	assert.Error(t, err)
}
