package testutil

import (
	"net/url"
	"os"
	"strconv"
)

// defaultMaxConns keeps per-test pools small; every test gets its own
// database and pool on the shared server.
const defaultMaxConns int32 = 4

// DatabaseConfig says where integration tests find PostgreSQL and how
// large their pools may grow.
type DatabaseConfig struct {
	// URL is empty when the tests should start their own container.
	URL      string
	MaxConns int32
}

// GetDatabaseConfig reads the test database settings from the environment.
// DATABASE_URL wins; otherwise PGHOST (with the other libpq PG* variables)
// names an external server. PGNEST_TEST_MAX_CONNS sizes the pools.
func GetDatabaseConfig() DatabaseConfig {
	cfg := DatabaseConfig{MaxConns: defaultMaxConns}
	if n, err := strconv.ParseInt(os.Getenv("PGNEST_TEST_MAX_CONNS"), 10, 32); err == nil && n > 0 {
		cfg.MaxConns = int32(n)
	}

	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		cfg.URL = dsn
		return cfg
	}
	if host := os.Getenv("PGHOST"); host != "" {
		cfg.URL = libpqURL(host)
	}
	return cfg
}

// libpqURL builds a connection URL from the PG* variables libpq reads.
func libpqURL(host string) string {
	u := url.URL{
		Scheme: "postgres",
		Host:   host + ":" + envOr("PGPORT", "5432"),
		Path:   "/" + envOr("PGDATABASE", "postgres"),
	}
	user := envOr("PGUSER", "postgres")
	if pw := os.Getenv("PGPASSWORD"); pw != "" {
		u.User = url.UserPassword(user, pw)
	} else {
		u.User = url.User(user)
	}
	u.RawQuery = url.Values{"sslmode": {envOr("PGSSLMODE", "prefer")}}.Encode()
	return u.String()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
