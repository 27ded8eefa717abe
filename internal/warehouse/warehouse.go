// Package warehouse opens the analytical database connection the query
// producers run against. Credentials are plain values supplied by the
// caller; nothing here reads the environment.
package warehouse

import (
	"crypto/tls"
	"fmt"

	"database/sql"

	"github.com/ClickHouse/clickhouse-go/v2"
)

// Config identifies the warehouse endpoint.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	Database string
}

// Open returns a database handle for the configured warehouse. The handle is
// safe for concurrent use by producer workers.
func Open(cfg Config) (*sql.DB, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("warehouse host is required")
	}
	port := cfg.Port
	if port == 0 {
		port = 8443
	}

	db := clickhouse.OpenDB(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		TLS:      &tls.Config{},
		Protocol: clickhouse.HTTP,
	})
	return db, nil
}
