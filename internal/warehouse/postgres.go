package warehouse

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresClient implements Client for PostgreSQL-compatible warehouses
// using pgx.
type PostgresClient struct {
	connStr  string
	maxConns int32
	pool     *pgxpool.Pool
}

// NewPostgresClient creates a new PostgreSQL client. Call Connect before use.
func NewPostgresClient(connStr string, maxConns int) *PostgresClient {
	if maxConns <= 0 {
		maxConns = 4
	}
	return &PostgresClient{connStr: connStr, maxConns: int32(maxConns)}
}

func (c *PostgresClient) Connect(ctx context.Context) error {
	cfg, err := pgxpool.ParseConfig(c.connStr)
	if err != nil {
		return fmt.Errorf("parsing connection string: %w", err)
	}
	cfg.MaxConns = c.maxConns
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connecting to PostgreSQL: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("pinging PostgreSQL: %w", err)
	}
	c.pool = pool
	return nil
}

func (c *PostgresClient) Dialect() Dialect { return Postgres }

func (c *PostgresClient) Ping(ctx context.Context) error {
	return c.pool.Ping(ctx)
}

func (c *PostgresClient) Query(ctx context.Context, stmt Statement) ([]Row, error) {
	rows, err := c.pool.Query(ctx, Postgres.Rebind(stmt.SQL), stmt.Args...)
	if err != nil {
		return nil, fmt.Errorf("executing query: %w", err)
	}
	defer rows.Close()

	descs := rows.FieldDescriptions()
	columns := make([]string, len(descs))
	for i, d := range descs {
		columns[i] = d.Name
	}

	var results []Row
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		for i, v := range vals {
			vals[i] = plainValue(v)
		}
		results = append(results, NewRow(columns, vals))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}
	return results, nil
}

func (c *PostgresClient) Exec(ctx context.Context, stmt Statement) (int64, error) {
	tag, err := c.pool.Exec(ctx, Postgres.Rebind(stmt.SQL), stmt.Args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (c *PostgresClient) Close() error {
	if c.pool != nil {
		c.pool.Close()
	}
	return nil
}

// plainValue unwraps pgtype values that Row cannot coerce on its own.
func plainValue(v any) any {
	switch n := v.(type) {
	case pgtype.Numeric:
		if !n.Valid {
			return nil
		}
		f, err := n.Float64Value()
		if err != nil || !f.Valid {
			return nil
		}
		return f.Float64
	default:
		return v
	}
}
