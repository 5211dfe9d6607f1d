package warehouse

import (
	"strconv"
	"strings"
)

// Dialect identifies the SQL flavor of a warehouse.
type Dialect string

const (
	Snowflake Dialect = "snowflake"
	Postgres  Dialect = "postgresql"
	MySQL     Dialect = "mysql"
	SQLite    Dialect = "sqlite"
)

// Rebind rewrites ? placeholders into the dialect's native form. Question
// marks inside quoted literals are left alone.
func (d Dialect) Rebind(sql string) string {
	if d != Postgres {
		return sql
	}

	var b strings.Builder
	b.Grow(len(sql) + 8)
	n := 0
	var quote byte
	for i := 0; i < len(sql); i++ {
		c := sql[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '?':
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

// Placeholders returns "?, ?, ..." for an IN list of n values.
func Placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// Assignment is one column = value pair of a mutation.
type Assignment struct {
	Column string
	Value  any
}

// Upsert describes a keyed insert-or-update of a single row.
type Upsert struct {
	Table string
	Key   Assignment
	// Set is written on both update and insert.
	Set []Assignment
	// InsertOnly is written only when the row is new.
	InsertOnly []Assignment
}

// Upsert renders u as one statement in the dialect's idiom: MERGE for
// Snowflake and PostgreSQL, ON DUPLICATE KEY for MySQL and ON CONFLICT for
// SQLite. The MySQL and SQLite forms need a unique index on the key column.
func (d Dialect) Upsert(u Upsert) Statement {
	insertCols := make([]Assignment, 0, len(u.InsertOnly)+1+len(u.Set))
	insertCols = append(insertCols, u.InsertOnly...)
	insertCols = append(insertCols, u.Key)
	insertCols = append(insertCols, u.Set...)

	names := make([]string, len(insertCols))
	insertArgs := make([]any, len(insertCols))
	for i, a := range insertCols {
		names[i] = a.Column
		insertArgs[i] = a.Value
	}
	insert := "INSERT (" + strings.Join(names, ", ") + ") VALUES (" + Placeholders(len(insertCols)) + ")"

	setSQL := make([]string, len(u.Set))
	setArgs := make([]any, len(u.Set))
	for i, a := range u.Set {
		setArgs[i] = a.Value
	}

	switch d {
	case MySQL:
		for i, a := range u.Set {
			setSQL[i] = a.Column + " = ?"
		}
		sql := "INSERT INTO " + u.Table + " (" + strings.Join(names, ", ") + ") VALUES (" + Placeholders(len(insertCols)) + ")" +
			" ON DUPLICATE KEY UPDATE " + strings.Join(setSQL, ", ")
		return Statement{SQL: sql, Args: append(insertArgs, setArgs...)}

	case SQLite:
		for i, a := range u.Set {
			setSQL[i] = a.Column + " = excluded." + a.Column
		}
		sql := "INSERT INTO " + u.Table + " (" + strings.Join(names, ", ") + ") VALUES (" + Placeholders(len(insertCols)) + ")" +
			" ON CONFLICT(" + u.Key.Column + ") DO UPDATE SET " + strings.Join(setSQL, ", ")
		return Statement{SQL: sql, Args: insertArgs}

	default:
		for i, a := range u.Set {
			setSQL[i] = a.Column + " = ?"
		}
		sql := "MERGE INTO " + u.Table + " AS target" +
			" USING (SELECT ? AS " + u.Key.Column + ") AS source" +
			" ON target." + u.Key.Column + " = source." + u.Key.Column +
			" WHEN MATCHED THEN UPDATE SET " + strings.Join(setSQL, ", ") +
			" WHEN NOT MATCHED THEN " + insert
		args := make([]any, 0, 1+len(setArgs)+len(insertArgs))
		args = append(args, u.Key.Value)
		args = append(args, setArgs...)
		args = append(args, insertArgs...)
		return Statement{SQL: sql, Args: args}
	}
}
