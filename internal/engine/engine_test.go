package engine

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/knockmap/knockmap/internal/audit"
	"github.com/knockmap/knockmap/internal/board"
	"github.com/knockmap/knockmap/internal/config"
	"github.com/knockmap/knockmap/internal/edit"
	"github.com/knockmap/knockmap/internal/markets"
	"github.com/knockmap/knockmap/internal/roster"
	"github.com/knockmap/knockmap/internal/warehouse"
)

var now = time.Date(2024, 9, 18, 15, 0, 0, 0, time.UTC)

type recordingSink struct {
	mu     sync.Mutex
	events []audit.Event
	err    error
}

func (s *recordingSink) Record(_ context.Context, events []audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, events...)
	return s.err
}

func (s *recordingSink) Close(context.Context) error { return nil }

func (s *recordingSink) Recent(_ context.Context, n int64) ([]audit.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []audit.Event
	for i := len(s.events) - 1; i >= 0 && int64(len(out)) < n; i-- {
		out = append(out, s.events[i])
	}
	return out, nil
}

func (s *recordingSink) Count(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.events)), nil
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Tables = config.TablesConfig{Users: "users", Targets: "targets", Markets: "markets", Opportunities: "opportunity"}
	return cfg
}

// seededEngine opens an engine over a SQLite warehouse holding two markets,
// three users and one target row.
func seededEngine(t *testing.T, sink audit.Sink) *Engine {
	t.Helper()
	ctx := context.Background()
	cfg := testConfig()
	cfg.Warehouse = config.WarehouseConfig{Type: "sqlite", DSN: filepath.Join(t.TempDir(), "wh.db")}

	client, err := warehouse.Open(ctx, cfg.Warehouse)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { client.Close() })

	stmts := []warehouse.Statement{
		warehouse.Stmt(`CREATE TABLE users (FULL_NAME TEXT, SALESFORCE_ID TEXT, ROLE_TYPE TEXT, TERM_DATE TEXT, PROFILE_PICTURE TEXT)`),
		warehouse.Stmt(`CREATE TABLE targets (CLOSER_ID TEXT, NAME TEXT UNIQUE, GOAL INTEGER, RANK INTEGER, FM_GOAL INTEGER,
			FM_RANK INTEGER, ACTIVE TEXT, TYPE TEXT, MARKET TEXT, TIMESTAMP TEXT, PROFILE_PICTURE TEXT)`),
		warehouse.Stmt(`CREATE TABLE markets (MARKET TEXT, MARKET_GROUP TEXT, RANK INTEGER, NOTES TEXT, TIMESTAMP TEXT)`),
		warehouse.Stmt(`CREATE TABLE opportunity (OWNER_ID TEXT, SALES_CHANNEL_C TEXT, FIRST_SCHEDULED_CLOSE_START_DATE_TIME_C DATETIME)`),
		warehouse.Stmt("INSERT INTO markets VALUES (?, ?, ?, ?, ?)", "Denver", "Mountain", 1, "HQ", ""),
		warehouse.Stmt("INSERT INTO markets VALUES (?, ?, ?, ?, ?)", "Austin", "Texas", 2, "", ""),
		warehouse.Stmt("INSERT INTO users VALUES (?, ?, ?, ?, ?)", "Ana Lopez", "005A", "Closer", nil, "ana.png"),
		warehouse.Stmt("INSERT INTO users VALUES (?, ?, ?, ?, ?)", "Ben Ortiz", "005B", "Manager", nil, nil),
		warehouse.Stmt("INSERT INTO users VALUES (?, ?, ?, ?, ?)", "Old Hand", "005X", "Closer", "2023-01-01", nil),
		warehouse.Stmt("INSERT INTO targets VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
			"005A", "Ana Lopez", 4, 1, 0, 100, "Yes", "🏠 Web To Home", "Denver", "", "ana.png"),
		warehouse.Stmt("INSERT INTO opportunity VALUES (?, ?, ?)", "005A", "Web To Home", now.Add(-time.Hour)),
	}
	for _, s := range stmts {
		if _, err := client.Exec(ctx, s); err != nil {
			t.Fatalf("seeding %s: %v", s, err)
		}
	}

	e := New(cfg, client, sink, slog.Default())
	e.now = func() time.Time { return now }
	return e
}

func TestTargets(t *testing.T) {
	e := seededEngine(t, nil)
	ctx := context.Background()

	v, err := e.Targets(ctx, roster.Filter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(v.Rows) != 2 {
		t.Fatalf("expected 2 active closers, got %d", len(v.Rows))
	}
	ben := v.Rows[1]
	if ben.Name != "Ben Ortiz" || ben.Market != roster.NoMarket || ben.Rank != 100 || ben.Active {
		t.Errorf("unexpected defaults for new closer: %+v", ben)
	}
	if v.Markets[len(v.Markets)-1] != roster.NoMarket {
		t.Errorf("market choices should end with %q: %v", roster.NoMarket, v.Markets)
	}

	v, err = e.Targets(ctx, roster.Filter{Market: "Denver"})
	if err != nil {
		t.Fatal(err)
	}
	if len(v.Rows) != 1 || v.Rows[0].Name != "Ana Lopez" {
		t.Errorf("Denver filter = %+v", v.Rows)
	}
}

func TestTargets_Cached(t *testing.T) {
	client := &warehouse.MockClient{}
	e := New(testConfig(), client, nil, slog.Default())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := e.Targets(ctx, roster.Filter{}); err != nil {
			t.Fatal(err)
		}
	}
	if n := client.QueryCount("FROM markets"); n != 1 {
		t.Errorf("markets queried %d times, want 1", n)
	}
	if n := client.QueryCount("FROM targets"); n != 1 {
		t.Errorf("targets queried %d times, want 1", n)
	}
}

func TestSaveTargets(t *testing.T) {
	sink := &recordingSink{}
	e := seededEngine(t, sink)
	ctx := context.Background()

	v, err := e.Targets(ctx, roster.Filter{})
	if err != nil {
		t.Fatal(err)
	}
	edited := append([]roster.Closer(nil), v.Rows...)
	edited[1].Goal = 6
	edited[1].Market = "Austin"
	edited[1].Active = true

	res, err := e.SaveTargets(ctx, "req-1", v.Rows, edited)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Outcomes) != 1 || res.Outcomes[0].Message != "Saved changes for Ben Ortiz" {
		t.Fatalf("unexpected outcomes %+v", res.Outcomes)
	}
	if e.DataVersion() != 1 {
		t.Errorf("DataVersion = %d, want 1", e.DataVersion())
	}

	v, err = e.Targets(ctx, roster.Filter{Closer: "Ben Ortiz"})
	if err != nil {
		t.Fatal(err)
	}
	if got := v.Rows[0]; got.Goal != 6 || got.Market != "Austin" || !got.Active {
		t.Errorf("reload after save = %+v", got)
	}

	if len(sink.events) != 1 || sink.events[0].RequestID != "req-1" || sink.events[0].Entity != audit.EntityTarget {
		t.Errorf("unexpected audit events %+v", sink.events)
	}
}

func TestSaveTargets_NoChanges(t *testing.T) {
	sink := &recordingSink{}
	e := seededEngine(t, sink)
	ctx := context.Background()

	v, err := e.Targets(ctx, roster.Filter{})
	if err != nil {
		t.Fatal(err)
	}
	res, err := e.SaveTargets(ctx, "", v.Rows, v.Rows)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Empty() || res.Attempted != 0 {
		t.Errorf("expected empty result, got %+v", res)
	}
	if e.DataVersion() != 0 {
		t.Errorf("DataVersion = %d, want 0", e.DataVersion())
	}
	if len(sink.events) != 0 {
		t.Errorf("no events expected, got %d", len(sink.events))
	}
}

func TestSaveTargets_RejectedOnlyKeepsVersion(t *testing.T) {
	e := seededEngine(t, nil)
	res, err := e.SaveTargets(context.Background(), "", nil, []roster.Closer{{Name: "Nobody", Channel: roster.Hybrid}})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Failed()) != 1 || res.Attempted != 0 {
		t.Errorf("expected one refusal, got %+v", res)
	}
	if e.DataVersion() != 0 {
		t.Errorf("DataVersion = %d, want 0", e.DataVersion())
	}
}

func TestSaveMarkets(t *testing.T) {
	e := seededEngine(t, nil)
	ctx := context.Background()

	ms, err := e.Markets(ctx)
	if err != nil {
		t.Fatal(err)
	}
	edits := []markets.Edit{ms[0].AsEdit(), {Name: "Reno", Group: "Nevada", Rank: "3"}}

	res, err := e.SaveMarkets(ctx, "", marketCells(ms), edits)
	if err != nil {
		t.Fatal(err)
	}
	var msgs []string
	for _, o := range res.Outcomes {
		msgs = append(msgs, o.Message)
	}
	want := []string{"Deleted market 'Austin'", "Inserted new market 'Reno'"}
	if len(msgs) != 2 || msgs[0] != want[0] || msgs[1] != want[1] {
		t.Errorf("messages = %v, want %v", msgs, want)
	}

	ms, err = e.Markets(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(ms) != 2 || ms[1].Name != "Reno" {
		t.Errorf("markets after save = %+v", ms)
	}
}

func marketCells(ms []markets.Market) []markets.Edit {
	out := make([]markets.Edit, len(ms))
	for i, m := range ms {
		out[i] = m.AsEdit()
	}
	return out
}

func messages(res edit.Result) []string {
	var out []string
	for _, o := range res.Outcomes {
		out = append(out, o.Message)
	}
	return out
}

// Two managers render the editors, then save one after the other. The
// second save must only apply what its own submitter changed.
func TestInterleavedSaves(t *testing.T) {
	e := seededEngine(t, nil)
	ctx := context.Background()

	ms, err := e.Markets(ctx)
	if err != nil {
		t.Fatal(err)
	}
	snapA := marketCells(ms)
	snapB := marketCells(ms)
	tv, err := e.Targets(ctx, roster.Filter{})
	if err != nil {
		t.Fatal(err)
	}
	rosterA := append([]roster.Closer(nil), tv.Rows...)
	rosterB := append([]roster.Closer(nil), tv.Rows...)

	// B adds Boise and raises Ana's goal.
	if _, err := e.SaveMarkets(ctx, "b", snapB, append(marketCells(ms), markets.Edit{Name: "Boise", Group: "Mountain"})); err != nil {
		t.Fatal(err)
	}
	editedB := append([]roster.Closer(nil), rosterB...)
	editedB[0].Goal = 9
	if res, err := e.SaveTargets(ctx, "b", rosterB, editedB); err != nil || len(res.Failed()) != 0 {
		t.Fatalf("B targets save: %+v %v", res, err)
	}

	// A edits only Austin's notes and Ben's goal, from the older snapshot.
	editedMarkets := marketCells(ms)
	for i := range editedMarkets {
		if editedMarkets[i].Name == "Austin" {
			editedMarkets[i].Notes = "Opening soon"
		}
	}
	res, err := e.SaveMarkets(ctx, "a", snapA, editedMarkets)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"Updated market 'Austin'"}, messages(res)); diff != "" {
		t.Errorf("A markets outcomes (-want +got):\n%s", diff)
	}

	editedA := append([]roster.Closer(nil), rosterA...)
	editedA[1].Goal = 3
	res, err = e.SaveTargets(ctx, "a", rosterA, editedA)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"Saved changes for Ben Ortiz"}, messages(res)); diff != "" {
		t.Errorf("A targets outcomes (-want +got):\n%s", diff)
	}

	ms, err = e.Markets(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !markets.Names(ms)["Boise"] || len(ms) != 3 {
		t.Errorf("Boise should survive A's save: %+v", ms)
	}
	tv, err = e.Targets(ctx, roster.Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if tv.Rows[0].Goal != 9 || tv.Rows[1].Goal != 3 {
		t.Errorf("goals after both saves: Ana=%d Ben=%d, want 9 and 3", tv.Rows[0].Goal, tv.Rows[1].Goal)
	}
}

func TestSaveTargets_CloserLeftRoster(t *testing.T) {
	e := seededEngine(t, nil)
	ctx := context.Background()

	tv, err := e.Targets(ctx, roster.Filter{})
	if err != nil {
		t.Fatal(err)
	}
	snapshot := append([]roster.Closer(nil), tv.Rows...)
	snapshot = append(snapshot, roster.Closer{Name: "Old Hand", Market: "Denver", Channel: roster.Hybrid})
	edited := append([]roster.Closer(nil), snapshot...)
	edited[2].Goal = 5

	res, err := e.SaveTargets(ctx, "", snapshot, edited)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{`Error saving changes for Old Hand: "Old Hand" is no longer on the roster`}
	if diff := cmp.Diff(want, messages(res)); diff != "" {
		t.Errorf("outcomes (-want +got):\n%s", diff)
	}
	if res.Attempted != 0 {
		t.Errorf("nothing should be sent, attempted %d", res.Attempted)
	}
}

func TestSaveMarkets_EmptyBumpsVersion(t *testing.T) {
	e := seededEngine(t, nil)
	ctx := context.Background()

	ms, err := e.Markets(ctx)
	if err != nil {
		t.Fatal(err)
	}
	edits := marketCells(ms)
	res, err := e.SaveMarkets(ctx, "", marketCells(ms), edits)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Empty() {
		t.Errorf("expected no outcomes, got %+v", res.Outcomes)
	}
	if e.DataVersion() != 1 {
		t.Errorf("DataVersion = %d, want 1", e.DataVersion())
	}
}

func TestBoard(t *testing.T) {
	e := seededEngine(t, nil)

	v, err := e.Board(context.Background(), board.Web, board.Filter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Cards != 1 {
		t.Fatalf("expected one card, got %d", v.Cards)
	}
	card := v.Columns[0][0].Rows[0][0]
	if card.Name != "Ana L." || card.Appointments != 1 || card.Percentage != 25 {
		t.Errorf("unexpected card %+v", card)
	}

	field, err := e.Board(context.Background(), board.Field, board.Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if field.Cards != 0 {
		t.Errorf("web-only closer should not be on the field board, got %d cards", field.Cards)
	}
}

func TestBoard_WeeksFollowBoardTimezone(t *testing.T) {
	e := seededEngine(t, nil)
	// Monday 03:00 UTC is still Sunday evening six hours west, so the
	// seeded Wednesday appointment is this week there and last week in UTC.
	e.now = func() time.Time { return time.Date(2024, 9, 23, 3, 0, 0, 0, time.UTC) }

	tests := []struct {
		loc  *time.Location
		want int64
	}{
		{time.UTC, 0},
		{time.FixedZone("MDT", -6*60*60), 1},
	}
	for _, tt := range tests {
		t.Run(tt.loc.String(), func(t *testing.T) {
			e.loc = tt.loc
			v, err := e.Board(context.Background(), board.Web, board.Filter{})
			if err != nil {
				t.Fatal(err)
			}
			if got := v.Columns[0][0].Rows[0][0].Appointments; got != tt.want {
				t.Errorf("this week's appointments = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestAuditFailureDoesNotFailSave(t *testing.T) {
	sink := &recordingSink{err: errors.New("mongo down")}
	e := seededEngine(t, sink)

	res, err := e.SaveMarkets(context.Background(), "",
		[]markets.Edit{{Name: "Denver", Group: "Mountain", Rank: "1"}},
		[]markets.Edit{{Name: "Denver", Group: "Mountain", Rank: "1", Notes: "HQ"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Failed()) != 0 {
		t.Errorf("unexpected failures %+v", res.Failed())
	}
}

func TestAuditLog(t *testing.T) {
	sink := &recordingSink{}
	e := seededEngine(t, sink)
	ctx := context.Background()

	ms, err := e.Markets(ctx)
	if err != nil {
		t.Fatal(err)
	}
	edits := append(marketCells(ms), markets.Edit{Name: "Boise"}, markets.Edit{Name: "Reno"})
	if _, err := e.SaveMarkets(ctx, "req-9", marketCells(ms), edits); err != nil {
		t.Fatal(err)
	}

	events, total, err := e.AuditLog(ctx, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 2 {
		t.Errorf("total = %d, want 2", total)
	}
	if len(events) != 1 || events[0].Message != "Inserted new market 'Reno'" || events[0].RequestID != "req-9" {
		t.Errorf("newest event = %+v", events)
	}

	plain := New(testConfig(), &warehouse.MockClient{}, audit.Nop{}, slog.Default())
	if _, _, err := plain.AuditLog(ctx, 5); !errors.Is(err, ErrAuditUnreadable) {
		t.Errorf("write-only sink error = %v, want ErrAuditUnreadable", err)
	}
}

func TestTableCounts(t *testing.T) {
	client := &warehouse.MockClient{
		Results: map[string][]warehouse.Row{"FROM users": {{"N": int64(42)}}},
	}
	e := New(testConfig(), client, nil, slog.Default())

	counts := e.TableCounts(context.Background())
	if len(counts) != 4 {
		t.Fatalf("expected 4 tables, got %d", len(counts))
	}
	if counts[0].Rows != 42 || counts[0].Err != nil {
		t.Errorf("users count = %+v", counts[0])
	}
}

func TestPingAndClose(t *testing.T) {
	client := &warehouse.MockClient{PingErr: errors.New("unreachable")}
	e := New(testConfig(), client, nil, slog.Default())
	if err := e.Ping(context.Background()); err == nil {
		t.Error("expected ping error")
	}
	if err := e.Close(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !client.Closed {
		t.Error("warehouse client not closed")
	}
}
