package sqlstore

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

const defaultPingTimeout = 5 * time.Second

// ConnectionConfig carries what the persistence client needs to open a
// database and satisfies its config contract.
type ConnectionConfig struct {
	Driver      string
	DSN         string
	Debug       bool
	PingTimeout time.Duration
	OtelName    string
}

func (c ConnectionConfig) GetDebug() bool { return c.Debug }

func (c ConnectionConfig) GetDriver() string { return strings.TrimSpace(c.Driver) }

func (c ConnectionConfig) GetServer() string { return strings.TrimSpace(c.DSN) }

func (c ConnectionConfig) GetPingTimeout() time.Duration {
	if c.PingTimeout > 0 {
		return c.PingTimeout
	}
	return defaultPingTimeout
}

func (c ConnectionConfig) GetOtelIdentifier() string {
	if name := strings.TrimSpace(c.OtelName); name != "" {
		return name
	}
	return "go-crm-sync"
}

func (c ConnectionConfig) validate() error {
	if strings.TrimSpace(c.DSN) == "" {
		return fmt.Errorf("sqlstore: connection dsn is required")
	}
	return nil
}

// OpenPostgres opens a postgres-backed persistence client through lib/pq.
func OpenPostgres(cfg ConnectionConfig) (*persistence.Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.Driver = DriverPostgres
	sqlDB, err := sql.Open(DriverPostgres, cfg.GetServer())
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open postgres: %w", err)
	}
	client, err := persistence.New(cfg, sqlDB, pgdialect.New())
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return client, nil
}

// OpenSQLite opens a sqlite-backed persistence client, used for embedded
// deployments and tests. Shared-cache in-memory DSNs should cap open
// connections at one; the caller owns that knob through the DSN.
func OpenSQLite(cfg ConnectionConfig) (*persistence.Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.Driver = DriverSQLite
	sqlDB, err := sql.Open(DriverSQLite, cfg.GetServer())
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open sqlite: %w", err)
	}
	client, err := persistence.New(cfg, sqlDB, sqlitedialect.New())
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return client, nil
}
