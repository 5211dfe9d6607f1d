package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/knockmap/knockmap/internal/audit"
	"github.com/knockmap/knockmap/internal/board"
	"github.com/knockmap/knockmap/internal/cache"
	"github.com/knockmap/knockmap/internal/config"
	"github.com/knockmap/knockmap/internal/edit"
	"github.com/knockmap/knockmap/internal/markets"
	"github.com/knockmap/knockmap/internal/roster"
	"github.com/knockmap/knockmap/internal/warehouse"
)

// Engine is the dashboard service shared by the web server, the terminal
// board and the CLI.
type Engine struct {
	Config *config.Config
	Logger *slog.Logger

	client  warehouse.Client
	cache   *cache.Cache
	audit   audit.Sink
	roster  *roster.Store
	markets *markets.Store
	boards  *board.Store
	now     func() time.Time
	loc     *time.Location
}

// New creates an Engine over an open warehouse client and audit sink.
func New(cfg *config.Config, client warehouse.Client, sink audit.Sink, logger *slog.Logger) *Engine {
	if sink == nil {
		sink = audit.Nop{}
	}
	t := cfg.Tables
	loc, err := cfg.Board.Location()
	if err != nil {
		logger.Warn("falling back to the local timezone", "error", err)
		loc = time.Local
	}
	return &Engine{
		Config:  cfg,
		Logger:  logger,
		client:  client,
		cache:   cache.New(cfg.Cache.TTL),
		audit:   sink,
		roster:  roster.NewStore(client, roster.Tables{Users: t.Users, Targets: t.Targets}, cfg.Roster.Roles, cfg.Roster.DefaultPicture),
		markets: markets.NewStore(client, t.Markets),
		boards:  board.NewStore(client, board.Tables{Targets: t.Targets, Markets: t.Markets, Opportunities: t.Opportunities}, cfg.Roster.DefaultPicture),
		now:     time.Now,
		loc:     loc,
	}
}

// Open connects to the configured warehouse and audit sink.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Engine, error) {
	client, err := warehouse.Open(ctx, cfg.Warehouse)
	if err != nil {
		return nil, err
	}
	sink, err := audit.Open(ctx, cfg.Audit, logger)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("opening audit sink: %w", err)
	}
	return New(cfg, client, sink, logger), nil
}

// Close releases the warehouse and audit connections.
func (e *Engine) Close(ctx context.Context) error {
	auditErr := e.audit.Close(ctx)
	if err := e.client.Close(); err != nil {
		return err
	}
	return auditErr
}

// Ping checks warehouse connectivity.
func (e *Engine) Ping(ctx context.Context) error {
	return e.client.Ping(ctx)
}

// DataVersion returns the number of submits that changed warehouse data
// since the process started.
func (e *Engine) DataVersion() int64 {
	return e.cache.Version()
}

// Markets returns the markets table.
func (e *Engine) Markets(ctx context.Context) ([]markets.Market, error) {
	return cache.Get(ctx, e.cache, "markets", e.markets.Load)
}

// Roster returns every closer with targets filled and normalized.
func (e *Engine) Roster(ctx context.Context) ([]roster.Closer, error) {
	return cache.Get(ctx, e.cache, "roster", func(ctx context.Context) ([]roster.Closer, error) {
		ms, err := e.Markets(ctx)
		if err != nil {
			return nil, err
		}
		return e.roster.Load(ctx, markets.Names(ms))
	})
}

// TargetsView is the filtered targets editor.
type TargetsView struct {
	Filter  roster.Filter   `json:"filter"`
	Options roster.Options  `json:"options"`
	Markets []string        `json:"markets"`
	Rows    []roster.Closer `json:"rows"`
	Version int64           `json:"data_version"`
}

// Targets returns the roster narrowed by f, with the selector choices and
// the markets a closer can be assigned to.
func (e *Engine) Targets(ctx context.Context, f roster.Filter) (*TargetsView, error) {
	rows, err := e.Roster(ctx)
	if err != nil {
		return nil, err
	}
	ms, err := e.Markets(ctx)
	if err != nil {
		return nil, err
	}

	choices := make([]string, 0, len(ms)+1)
	for _, m := range ms {
		choices = append(choices, m.Name)
	}
	choices = append(choices, roster.NoMarket)

	return &TargetsView{
		Filter:  f,
		Options: roster.BuildOptions(rows, f),
		Markets: choices,
		Rows:    roster.Apply(rows, f),
		Version: e.DataVersion(),
	}, nil
}

// SaveTargets diffs edited against original, the rows the editor was
// rendered from, and upserts each changed closer. Rows the submitter did not
// touch are left alone even if the roster moved since. The data version
// moves when any statement was sent.
func (e *Engine) SaveTargets(ctx context.Context, requestID string, original, edited []roster.Closer) (edit.Result, error) {
	current, err := e.Roster(ctx)
	if err != nil {
		return edit.Result{}, err
	}
	ms, err := e.Markets(ctx)
	if err != nil {
		return edit.Result{}, err
	}

	changed, rejected := roster.Review(original, edited, markets.Names(ms))
	changed, gone := roster.Reconcile(changed, current)
	rejected = append(rejected, gone...)

	res := e.roster.Save(ctx, changed)
	res.Outcomes = append(rejected, res.Outcomes...)

	if res.Attempted > 0 {
		v := e.cache.Bump()
		e.Logger.Info("targets saved", "attempted", res.Attempted, "failed", len(res.Failed()), "data_version", v)
	}
	e.record(ctx, audit.EntityTarget, requestID, res)
	return res, nil
}

// SaveMarkets plans the market editor's changes against original, the table
// the editor was rendered from, so markets added by someone else since are
// not deleted. Every submit moves the data version, even one that changed
// nothing.
func (e *Engine) SaveMarkets(ctx context.Context, requestID string, original, edited []markets.Edit) (edit.Result, error) {
	plan := e.markets.Plan(markets.Snapshot(original), edited)
	res := e.markets.Apply(ctx, plan)
	v := e.cache.Bump()
	if !plan.Empty() {
		e.Logger.Info("markets saved", "attempted", res.Attempted, "failed", len(res.Failed()), "data_version", v)
	}
	e.record(ctx, audit.EntityMarket, requestID, res)
	return res, nil
}

// Cards returns every card of a board for the three weeks around now. Weeks
// are counted in the configured board timezone.
func (e *Engine) Cards(ctx context.Context, ch board.Channel) ([]board.Card, error) {
	now := e.now().In(e.loc)
	name := "board:" + ch.Slug + ":" + board.WeekStart(now).Format(time.DateOnly)
	return cache.Get(ctx, e.cache, name, func(ctx context.Context) ([]board.Card, error) {
		return e.boards.Load(ctx, ch, now)
	})
}

// Board returns a board laid out for f.
func (e *Engine) Board(ctx context.Context, ch board.Channel, f board.Filter) (*board.View, error) {
	cards, err := e.Cards(ctx, ch)
	if err != nil {
		return nil, err
	}
	v := board.Layout(cards, f)
	return &v, nil
}

// TableCount is the row count of one configured table.
type TableCount struct {
	Name  string
	Table string
	Rows  int64
	Err   error
}

// TableCounts counts the rows of every configured table. A failing table
// does not stop the others.
func (e *Engine) TableCounts(ctx context.Context) []TableCount {
	t := e.Config.Tables
	counts := []TableCount{
		{Name: "users", Table: t.Users},
		{Name: "targets", Table: t.Targets},
		{Name: "markets", Table: t.Markets},
		{Name: "opportunities", Table: t.Opportunities},
	}
	for i := range counts {
		rows, err := e.client.Query(ctx, warehouse.Stmt("SELECT COUNT(*) AS N FROM "+counts[i].Table))
		if err != nil {
			counts[i].Err = err
			continue
		}
		if len(rows) > 0 {
			counts[i].Rows, _ = rows[0].Int("N")
		}
	}
	return counts
}

// ErrAuditUnreadable is returned by AuditLog when the audit sink only writes.
var ErrAuditUnreadable = errors.New("audit sink cannot be read back")

// AuditLog returns the newest n audit events and the total stored.
func (e *Engine) AuditLog(ctx context.Context, n int64) ([]audit.Event, int64, error) {
	r, ok := e.audit.(audit.Reader)
	if !ok {
		return nil, 0, ErrAuditUnreadable
	}
	total, err := r.Count(ctx)
	if err != nil {
		return nil, 0, err
	}
	events, err := r.Recent(ctx, n)
	if err != nil {
		return nil, 0, err
	}
	return events, total, nil
}

func (e *Engine) record(ctx context.Context, entity, requestID string, res edit.Result) {
	if res.Empty() {
		return
	}
	events := audit.Events(entity, requestID, e.now(), res)
	if err := e.audit.Record(ctx, events); err != nil {
		e.Logger.Warn("recording audit events", "entity", entity, "error", err)
	}
}
