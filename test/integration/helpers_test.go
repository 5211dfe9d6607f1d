//go:build integration

package integration

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/knockmap/knockmap/internal/config"
	"github.com/knockmap/knockmap/internal/warehouse"
)

func pgConnString(t *testing.T) string {
	t.Helper()
	host := envOrDefault("KNOCKMAP_TEST_PG_HOST", "localhost")
	port := envOrDefault("KNOCKMAP_TEST_PG_PORT", "25432")
	db := envOrDefault("KNOCKMAP_TEST_PG_DATABASE", "knockmap_test")
	user := envOrDefault("KNOCKMAP_TEST_PG_USER", "postgres")
	pass := envOrDefault("KNOCKMAP_TEST_PG_PASSWORD", "postgres")
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", user, pass, host, port, db)
}

func mongoURI(t *testing.T) string {
	t.Helper()
	return envOrDefault("KNOCKMAP_TEST_MONGO_URI", "mongodb://localhost:37017/?directConnection=true")
}

func mongoDatabase(t *testing.T) string {
	t.Helper()
	return envOrDefault("KNOCKMAP_TEST_MONGO_DATABASE", "knockmap_test")
}

func skipIfNoPostgres(t *testing.T) {
	t.Helper()
	if os.Getenv("KNOCKMAP_TEST_PG_HOST") == "" && os.Getenv("KNOCKMAP_TEST_PG_PORT") == "" {
		t.Skip("skipping: KNOCKMAP_TEST_PG_HOST/PORT not set")
	}
}

func skipIfNoMongo(t *testing.T) {
	t.Helper()
	if os.Getenv("KNOCKMAP_TEST_MONGO_URI") == "" {
		t.Skip("skipping: KNOCKMAP_TEST_MONGO_URI not set")
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

// pgWarehouse creates and seeds a throwaway schema, returning a config that
// points every table at it.
func pgWarehouse(t *testing.T) *config.Config {
	t.Helper()
	ctx := context.Background()
	schema := fmt.Sprintf("knockmap_it_%d", time.Now().UnixNano())

	cfg := config.Default()
	cfg.Warehouse = config.WarehouseConfig{Type: "postgresql", DSN: pgConnString(t), MaxConnections: 4}
	cfg.Tables = config.TablesConfig{
		Users:         schema + ".users",
		Targets:       schema + ".targets",
		Markets:       schema + ".markets",
		Opportunities: schema + ".opportunity",
	}
	cfg.Audit.Type = "none"

	client, err := warehouse.Open(ctx, cfg.Warehouse)
	if err != nil {
		t.Fatalf("connecting to PostgreSQL: %v", err)
	}
	defer client.Close()

	now := time.Now().UTC()
	stmts := []warehouse.Statement{
		warehouse.Stmt("CREATE SCHEMA " + schema),
		warehouse.Stmt("CREATE TABLE " + cfg.Tables.Users + ` (FULL_NAME TEXT, SALESFORCE_ID TEXT, ROLE_TYPE TEXT,
			TERM_DATE DATE, PROFILE_PICTURE TEXT)`),
		warehouse.Stmt("CREATE TABLE " + cfg.Tables.Targets + ` (CLOSER_ID TEXT, NAME TEXT UNIQUE, GOAL BIGINT, RANK BIGINT,
			FM_GOAL BIGINT, FM_RANK BIGINT, ACTIVE TEXT, TYPE TEXT, MARKET TEXT, TIMESTAMP TIMESTAMPTZ, PROFILE_PICTURE TEXT)`),
		warehouse.Stmt("CREATE TABLE " + cfg.Tables.Markets + ` (MARKET TEXT UNIQUE, MARKET_GROUP TEXT, RANK BIGINT,
			NOTES TEXT, TIMESTAMP TIMESTAMPTZ)`),
		warehouse.Stmt("CREATE TABLE " + cfg.Tables.Opportunities + ` (OWNER_ID TEXT, SALES_CHANNEL_C TEXT,
			FIRST_SCHEDULED_CLOSE_START_DATE_TIME_C TIMESTAMPTZ)`),
		warehouse.Stmt("INSERT INTO "+cfg.Tables.Markets+" VALUES (?, ?, ?, ?, ?)", "Denver", "Mountain", 1, "HQ", now),
		warehouse.Stmt("INSERT INTO "+cfg.Tables.Users+" VALUES (?, ?, ?, ?, ?)", "Ana Lopez", "005A", "Closer", nil, "ana.png"),
		warehouse.Stmt("INSERT INTO "+cfg.Tables.Users+" VALUES (?, ?, ?, ?, ?)", "Ben Ortiz", "005B", "Manager", nil, nil),
		warehouse.Stmt("INSERT INTO "+cfg.Tables.Targets+" VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
			"005A", "Ana Lopez", 4, 1, 2, 1, "Yes", "🏠🏃 Hybrid", "Denver", now, "ana.png"),
		warehouse.Stmt("INSERT INTO "+cfg.Tables.Opportunities+" VALUES (?, ?, ?)", "005A", "Web To Home", now),
		warehouse.Stmt("INSERT INTO "+cfg.Tables.Opportunities+" VALUES (?, ?, ?)", "005A", "Field Marketing", now),
	}
	for _, s := range stmts {
		if _, err := client.Exec(ctx, s); err != nil {
			t.Fatalf("seeding %s: %v", s, err)
		}
	}

	t.Cleanup(func() {
		c, err := warehouse.Open(context.Background(), cfg.Warehouse)
		if err != nil {
			return
		}
		defer c.Close()
		c.Exec(context.Background(), warehouse.Stmt("DROP SCHEMA "+schema+" CASCADE"))
	})
	return cfg
}
