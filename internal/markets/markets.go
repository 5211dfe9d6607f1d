// Package markets reads and edits the market metadata table: the grouping,
// display rank and notes shown above each market on the appointment boards.
package markets

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/knockmap/knockmap/internal/edit"
	"github.com/knockmap/knockmap/internal/warehouse"
)

// Market is one row of the markets table.
type Market struct {
	Name  string `json:"market"`
	Group string `json:"market_group"`
	Rank  *int64 `json:"rank"`
	Notes string `json:"notes"`
}

// Edit is a market row as submitted from the editor. Rank is the raw cell
// text so that bad input can be reported per market.
type Edit struct {
	Name  string `json:"market"`
	Group string `json:"market_group"`
	Rank  string `json:"rank"`
	Notes string `json:"notes"`
}

// AsEdit renders m the way the editor shows it.
func (m Market) AsEdit() Edit {
	e := Edit{Name: m.Name, Group: m.Group, Notes: m.Notes}
	if m.Rank != nil {
		e.Rank = strconv.FormatInt(*m.Rank, 10)
	}
	return e
}

// Store reads and writes the markets table.
type Store struct {
	client warehouse.Client
	table  string
	now    func() time.Time
}

// NewStore creates a Store over table.
func NewStore(client warehouse.Client, table string) *Store {
	return &Store{client: client, table: table, now: time.Now}
}

// Load returns every market in warehouse order.
func (s *Store) Load(ctx context.Context) ([]Market, error) {
	rows, err := s.client.Query(ctx, warehouse.Stmt(
		fmt.Sprintf("SELECT MARKET, MARKET_GROUP, RANK, NOTES FROM %s", s.table)))
	if err != nil {
		return nil, fmt.Errorf("loading markets: %w", err)
	}

	out := make([]Market, 0, len(rows))
	for _, r := range rows {
		name, ok := r.String("MARKET")
		if !ok {
			continue
		}
		m := Market{Name: name}
		m.Group, _ = r.String("MARKET_GROUP")
		m.Notes, _ = r.String("NOTES")
		if rank, ok := r.Int("RANK"); ok {
			m.Rank = &rank
		}
		out = append(out, m)
	}
	return out, nil
}

// Names returns the set of market names.
func Names(ms []Market) map[string]bool {
	set := make(map[string]bool, len(ms))
	for _, m := range ms {
		set[m.Name] = true
	}
	return set
}

// Snapshot rebuilds the table an editor was rendered from out of the cells
// it echoes back. Rows without a name are skipped and a rank that does not
// parse reads as NULL.
func Snapshot(rows []Edit) []Market {
	out := make([]Market, 0, len(rows))
	for _, r := range rows {
		name := edit.Text(r.Name)
		if name == "" {
			continue
		}
		rank, _ := ParseRank(edit.Text(r.Rank))
		out = append(out, Market{Name: name, Group: edit.Text(r.Group), Rank: rank, Notes: edit.Text(r.Notes)})
	}
	return out
}

// ParseRank converts a rank cell. Empty text is NULL; whole-number floats
// are accepted because numeric editors submit them.
func ParseRank(s string) (*int64, error) {
	if s == "" {
		return nil, nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return &n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return nil, fmt.Errorf("rank %q is not an integer", s)
	}
	n := int64(f)
	return &n, nil
}
