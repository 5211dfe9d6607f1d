package warehouse

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestRebind(t *testing.T) {
	sql := "SELECT * FROM t WHERE a = ? AND b IN (?, ?) AND c = 'why?'"

	if got := Snowflake.Rebind(sql); got != sql {
		t.Errorf("snowflake rebind changed sql: %s", got)
	}

	want := "SELECT * FROM t WHERE a = $1 AND b IN ($2, $3) AND c = 'why?'"
	if got := Postgres.Rebind(sql); got != want {
		t.Errorf("postgres rebind = %q, want %q", got, want)
	}
}

func TestPlaceholders(t *testing.T) {
	if got := Placeholders(3); got != "?, ?, ?" {
		t.Errorf("Placeholders(3) = %q", got)
	}
	if got := Placeholders(0); got != "" {
		t.Errorf("Placeholders(0) = %q", got)
	}
}

func sampleUpsert() Upsert {
	return Upsert{
		Table:      "raw.snowflake.lm_appointments",
		Key:        Assignment{Column: "NAME", Value: "Ana Lopez"},
		Set:        []Assignment{{Column: "GOAL", Value: 10}, {Column: "ACTIVE", Value: "Yes"}},
		InsertOnly: []Assignment{{Column: "CLOSER_ID", Value: "005xx"}},
	}
}

func TestUpsertMerge(t *testing.T) {
	stmt := Snowflake.Upsert(sampleUpsert())

	for _, frag := range []string{
		"MERGE INTO raw.snowflake.lm_appointments AS target",
		"USING (SELECT ? AS NAME) AS source",
		"ON target.NAME = source.NAME",
		"WHEN MATCHED THEN UPDATE SET GOAL = ?, ACTIVE = ?",
		"WHEN NOT MATCHED THEN INSERT (CLOSER_ID, NAME, GOAL, ACTIVE) VALUES (?, ?, ?, ?)",
	} {
		if !strings.Contains(stmt.SQL, frag) {
			t.Errorf("merge sql missing %q:\n%s", frag, stmt.SQL)
		}
	}

	wantArgs := []any{"Ana Lopez", 10, "Yes", "005xx", "Ana Lopez", 10, "Yes"}
	if diff := cmp.Diff(wantArgs, stmt.Args); diff != "" {
		t.Errorf("merge args mismatch (-want +got):\n%s", diff)
	}
	if strings.Count(stmt.SQL, "?") != len(stmt.Args) {
		t.Errorf("placeholder count %d != arg count %d", strings.Count(stmt.SQL, "?"), len(stmt.Args))
	}
}

func TestUpsertMySQL(t *testing.T) {
	stmt := MySQL.Upsert(sampleUpsert())
	if !strings.HasPrefix(stmt.SQL, "INSERT INTO raw.snowflake.lm_appointments (CLOSER_ID, NAME, GOAL, ACTIVE)") {
		t.Errorf("unexpected mysql sql: %s", stmt.SQL)
	}
	if !strings.HasSuffix(stmt.SQL, "ON DUPLICATE KEY UPDATE GOAL = ?, ACTIVE = ?") {
		t.Errorf("unexpected mysql sql: %s", stmt.SQL)
	}
	wantArgs := []any{"005xx", "Ana Lopez", 10, "Yes", 10, "Yes"}
	if diff := cmp.Diff(wantArgs, stmt.Args); diff != "" {
		t.Errorf("mysql args mismatch (-want +got):\n%s", diff)
	}
}

func TestUpsertSQLite(t *testing.T) {
	stmt := SQLite.Upsert(sampleUpsert())
	if !strings.HasSuffix(stmt.SQL, "ON CONFLICT(NAME) DO UPDATE SET GOAL = excluded.GOAL, ACTIVE = excluded.ACTIVE") {
		t.Errorf("unexpected sqlite sql: %s", stmt.SQL)
	}
	if len(stmt.Args) != 4 {
		t.Errorf("expected 4 args, got %d", len(stmt.Args))
	}
}
