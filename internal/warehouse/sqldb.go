package warehouse

import (
	"context"
	"database/sql"
	"fmt"
)

// SQLClient implements Client on database/sql for the Snowflake, MySQL and
// SQLite drivers.
type SQLClient struct {
	db      *sql.DB
	dialect Dialect
}

// NewSQLClient wraps an open database handle.
func NewSQLClient(db *sql.DB, dialect Dialect) *SQLClient {
	return &SQLClient{db: db, dialect: dialect}
}

// DB exposes the underlying handle for schema setup in tools and tests.
func (c *SQLClient) DB() *sql.DB { return c.db }

func (c *SQLClient) Dialect() Dialect { return c.dialect }

func (c *SQLClient) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *SQLClient) Query(ctx context.Context, stmt Statement) ([]Row, error) {
	rows, err := c.db.QueryContext(ctx, c.dialect.Rebind(stmt.SQL), stmt.Args...)
	if err != nil {
		return nil, fmt.Errorf("executing query: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("reading columns: %w", err)
	}

	var results []Row
	for rows.Next() {
		vals := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		for i, v := range vals {
			// drivers reuse byte buffers between rows
			if b, ok := v.([]byte); ok {
				vals[i] = string(b)
			}
		}
		results = append(results, NewRow(columns, vals))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}
	return results, nil
}

func (c *SQLClient) Exec(ctx context.Context, stmt Statement) (int64, error) {
	res, err := c.db.ExecContext(ctx, c.dialect.Rebind(stmt.SQL), stmt.Args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		// Snowflake does not report counts for every statement kind
		return 0, nil
	}
	return n, nil
}

func (c *SQLClient) Close() error {
	return c.db.Close()
}
