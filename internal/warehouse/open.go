package warehouse

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/snowflakedb/gosnowflake"
	_ "modernc.org/sqlite"

	"github.com/knockmap/knockmap/internal/config"
)

// Open connects to the warehouse described by cfg and verifies the
// connection with a ping.
func Open(ctx context.Context, cfg config.WarehouseConfig) (Client, error) {
	switch Dialect(cfg.Type) {
	case Postgres:
		if cfg.DSN == "" {
			return nil, fmt.Errorf("warehouse.dsn is required for postgresql")
		}
		c := NewPostgresClient(cfg.DSN, cfg.MaxConnections)
		if err := c.Connect(ctx); err != nil {
			return nil, err
		}
		return c, nil

	case Snowflake:
		dsn, err := snowflakeDSN(cfg)
		if err != nil {
			return nil, err
		}
		return openSQL(ctx, "snowflake", dsn, Snowflake, cfg.MaxConnections)

	case MySQL:
		dsn, err := mysqlDSN(cfg.DSN)
		if err != nil {
			return nil, err
		}
		return openSQL(ctx, "mysql", dsn, MySQL, cfg.MaxConnections)

	case SQLite:
		dsn := cfg.DSN
		if dsn == "" {
			dsn = config.ExpandHome("~/.knockmap/knockmap.db")
		}
		return openSQL(ctx, "sqlite", dsn, SQLite, 1)

	default:
		return nil, fmt.Errorf("unsupported warehouse type %q", cfg.Type)
	}
}

func openSQL(ctx context.Context, driver, dsn string, dialect Dialect, maxConns int) (*SQLClient, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", dialect, err)
	}
	if maxConns > 0 {
		db.SetMaxOpenConns(maxConns)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging %s: %w", dialect, err)
	}
	return NewSQLClient(db, dialect), nil
}

func snowflakeDSN(cfg config.WarehouseConfig) (string, error) {
	if cfg.DSN != "" {
		return cfg.DSN, nil
	}
	if cfg.Account == "" || cfg.User == "" {
		return "", fmt.Errorf("warehouse.account and warehouse.user are required for snowflake")
	}
	dsn, err := gosnowflake.DSN(&gosnowflake.Config{
		Account:   cfg.Account,
		User:      cfg.User,
		Password:  cfg.Password,
		Role:      cfg.Role,
		Warehouse: cfg.Warehouse,
		Database:  cfg.Database,
		Schema:    cfg.Schema,
	})
	if err != nil {
		return "", fmt.Errorf("building snowflake dsn: %w", err)
	}
	return dsn, nil
}

// mysqlDSN forces parseTime so DATETIME columns arrive as time.Time.
func mysqlDSN(dsn string) (string, error) {
	if dsn == "" {
		return "", fmt.Errorf("warehouse.dsn is required for mysql")
	}
	mc, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("parsing mysql dsn: %w", err)
	}
	mc.ParseTime = true
	return mc.FormatDSN(), nil
}
