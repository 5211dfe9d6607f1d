package board

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/knockmap/knockmap/internal/roster"
	"github.com/knockmap/knockmap/internal/warehouse"
)

// Tables names the warehouse tables a board reads.
type Tables struct {
	Targets       string
	Markets       string
	Opportunities string
}

// Store loads board inputs from the warehouse.
type Store struct {
	client  warehouse.Client
	tables  Tables
	picture string
}

// NewStore creates a Store.
func NewStore(client warehouse.Client, tables Tables, defaultPicture string) *Store {
	return &Store{client: client, tables: tables, picture: defaultPicture}
}

// Load reads goals and appointments for ch and builds its cards.
func (s *Store) Load(ctx context.Context, ch Channel, now time.Time) ([]Card, error) {
	var (
		goals []Goal
		appts []Appointment
	)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		goals, err = s.Goals(ctx, ch)
		return err
	})
	g.Go(func() (err error) {
		appts, err = s.Appointments(ctx, ch, now)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return Build(goals, appts, s.picture, now), nil
}

// Goals returns the active closers of ch's types with their market details.
// A closer listed twice keeps the first row.
func (s *Store) Goals(ctx context.Context, ch Channel) ([]Goal, error) {
	args := []any{roster.ActiveFlag(true)}
	for _, t := range ch.Types {
		args = append(args, string(t))
	}
	rows, err := s.client.Query(ctx, warehouse.Stmt(fmt.Sprintf(
		"SELECT a.CLOSER_ID, a.NAME, a.MARKET, a.%s AS GOAL, a.%s AS RANK, a.PROFILE_PICTURE,"+
			" b.MARKET_GROUP, b.RANK AS MARKET_RANK, b.NOTES"+
			" FROM %s a LEFT JOIN %s b ON a.MARKET = b.MARKET"+
			" WHERE a.ACTIVE = ? AND a.TYPE IN (%s)",
		ch.GoalColumn, ch.RankColumn, s.tables.Targets, s.tables.Markets,
		warehouse.Placeholders(len(ch.Types))), args...))
	if err != nil {
		return nil, fmt.Errorf("loading %s goals: %w", ch.Slug, err)
	}

	seen := make(map[string]bool, len(rows))
	out := make([]Goal, 0, len(rows))
	for _, r := range rows {
		name, ok := r.String("NAME")
		if !ok || seen[name] {
			continue
		}
		seen[name] = true

		g := Goal{Name: name, Rank: roster.DefaultRank}
		g.CloserID, _ = r.String("CLOSER_ID")
		g.Market, _ = r.String("MARKET")
		g.Group, _ = r.String("MARKET_GROUP")
		g.Notes, _ = r.String("NOTES")
		g.Picture, _ = r.String("PROFILE_PICTURE")
		g.Goal, _ = r.Int("GOAL")
		if rank, ok := r.Int("RANK"); ok {
			g.Rank = rank
		}
		if mr, ok := r.Int("MARKET_RANK"); ok {
			g.MarketRank = &mr
		}
		if g.Market == "" {
			g.Market = roster.NoMarket
		}
		out = append(out, g)
	}
	return out, nil
}

// Appointments returns the appointments of ch booked within the three-week
// window around now.
func (s *Store) Appointments(ctx context.Context, ch Channel, now time.Time) ([]Appointment, error) {
	from, to := Window(now)
	rows, err := s.client.Query(ctx, warehouse.Stmt(fmt.Sprintf(
		"SELECT OWNER_ID, FIRST_SCHEDULED_CLOSE_START_DATE_TIME_C FROM %s"+
			" WHERE SALES_CHANNEL_C = ?"+
			" AND FIRST_SCHEDULED_CLOSE_START_DATE_TIME_C >= ?"+
			" AND FIRST_SCHEDULED_CLOSE_START_DATE_TIME_C < ?",
		s.tables.Opportunities), ch.SalesChannel, from, to))
	if err != nil {
		return nil, fmt.Errorf("loading %s appointments: %w", ch.Slug, err)
	}

	out := make([]Appointment, 0, len(rows))
	for _, r := range rows {
		owner, ok := r.String("OWNER_ID")
		if !ok {
			continue
		}
		at, ok := r.Time("FIRST_SCHEDULED_CLOSE_START_DATE_TIME_C")
		if !ok {
			continue
		}
		out = append(out, Appointment{OwnerID: owner, At: at})
	}
	return out, nil
}
