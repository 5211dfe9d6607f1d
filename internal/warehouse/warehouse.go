// Package warehouse is the dashboard's only external boundary: it runs
// SELECTs into in-memory rows and issues mutation statements against the
// configured data warehouse. Every value travels as a bound parameter.
package warehouse

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Client runs statements against a warehouse.
type Client interface {
	Ping(ctx context.Context) error
	Query(ctx context.Context, stmt Statement) ([]Row, error)
	Exec(ctx context.Context, stmt Statement) (int64, error)
	Dialect() Dialect
	Close() error
}

// Statement is SQL text written with ? placeholders plus its bound values.
type Statement struct {
	SQL  string
	Args []any
}

// Stmt builds a Statement.
func Stmt(sql string, args ...any) Statement {
	return Statement{SQL: sql, Args: args}
}

// Row is one result row keyed by upper-cased column name. Warehouses
// disagree on identifier case, so lookups fold to upper case too.
type Row map[string]any

// NewRow builds a Row from column names and values.
func NewRow(columns []string, values []any) Row {
	row := make(Row, len(columns))
	for i, c := range columns {
		row[strings.ToUpper(c)] = values[i]
	}
	return row
}

// Value returns the raw value of a column.
func (r Row) Value(col string) any {
	return r[strings.ToUpper(col)]
}

// Null reports whether a column is missing or NULL.
func (r Row) Null(col string) bool {
	return r.Value(col) == nil
}

// String returns the column as text. ok is false for NULL.
func (r Row) String(col string) (string, bool) {
	switch v := r.Value(col).(type) {
	case nil:
		return "", false
	case string:
		return v, true
	case []byte:
		return string(v), true
	case time.Time:
		return v.Format(time.DateTime), true
	default:
		return fmt.Sprint(v), true
	}
}

// Int returns the column as an integer, truncating fractional values.
// ok is false for NULL or values that are not numbers.
func (r Row) Int(col string) (int64, bool) {
	switch v := r.Value(col).(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case int16:
		return int64(v), true
	case int8:
		return int64(v), true
	case uint64:
		return int64(v), true
	case uint32:
		return int64(v), true
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, false
		}
		return int64(v), true
	case float32:
		return int64(v), true
	case string:
		return parseInt(v)
	case []byte:
		return parseInt(string(v))
	default:
		return 0, false
	}
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	time.DateOnly,
}

// Time returns the column as a timestamp. Text values are parsed in the
// layouts the supported drivers produce.
func (r Row) Time(col string) (time.Time, bool) {
	var s string
	switch v := r.Value(col).(type) {
	case time.Time:
		return v, true
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return time.Time{}, false
	}
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func parseInt(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int64(f), true
}
