package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetDatabaseConfig(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want DatabaseConfig
	}{
		{
			name: "container",
			want: DatabaseConfig{MaxConns: 4},
		},
		{
			name: "database url",
			env:  map[string]string{"DATABASE_URL": "postgres://ci@db/ci", "PGHOST": "ignored"},
			want: DatabaseConfig{URL: "postgres://ci@db/ci", MaxConns: 4},
		},
		{
			name: "libpq variables",
			env: map[string]string{
				"PGHOST":                "db",
				"PGUSER":                "ci",
				"PGPASSWORD":            "s3cret",
				"PGDATABASE":            "blog",
				"PGNEST_TEST_MAX_CONNS": "12",
			},
			want: DatabaseConfig{URL: "postgres://ci:s3cret@db:5432/blog?sslmode=prefer", MaxConns: 12},
		},
		{
			name: "bad pool size",
			env:  map[string]string{"PGHOST": "db", "PGNEST_TEST_MAX_CONNS": "-2"},
			want: DatabaseConfig{URL: "postgres://postgres@db:5432/postgres?sslmode=prefer", MaxConns: 4},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, key := range []string{"DATABASE_URL", "PGHOST", "PGPORT", "PGUSER", "PGPASSWORD", "PGDATABASE", "PGSSLMODE", "PGNEST_TEST_MAX_CONNS"} {
				t.Setenv(key, "")
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			assert.Equal(t, tt.want, GetDatabaseConfig())
		})
	}
}
