package board

import (
	"sort"
)

// AllGroups selects every market group.
const AllGroups = "All Groups"

// CardsPerRow is how many cards sit side by side under a market.
const CardsPerRow = 3

// Filter narrows a board. It round-trips through the page URL as
// selected_group and selected_timeframe.
type Filter struct {
	Groups    []string  `json:"selected_group"`
	Timeframe Timeframe `json:"selected_timeframe"`
}

// AllGroupsSelected reports whether the filter keeps every group.
func (f Filter) AllGroupsSelected() bool {
	if len(f.Groups) == 0 {
		return true
	}
	for _, g := range f.Groups {
		if g == AllGroups {
			return true
		}
	}
	return false
}

// Market is one market block of a board.
type Market struct {
	Name  string   `json:"market"`
	Notes string   `json:"notes,omitempty"`
	Rows  [][]Card `json:"rows"`
}

// View is a filtered board laid out in two columns.
type View struct {
	Filter  Filter      `json:"filter"`
	Groups  []string    `json:"groups"`
	Columns [2][]Market `json:"columns"`
	Cards   int         `json:"cards"`
}

// Layout filters cards, groups them into markets ordered by name, orders
// each market's cards by closer rank then name, and alternates markets
// between the two columns.
func Layout(cards []Card, f Filter) View {
	if f.Timeframe == "" {
		f.Timeframe = ThisWeek
	}
	keep := make(map[string]bool, len(f.Groups))
	for _, g := range f.Groups {
		keep[g] = true
	}
	all := f.AllGroupsSelected()

	var picked []Card
	for _, c := range cards {
		if c.Timeframe != f.Timeframe {
			continue
		}
		if !all && !keep[c.Group] {
			continue
		}
		picked = append(picked, c)
	}
	Sort(picked)

	v := View{Filter: f, Groups: Groups(cards), Cards: len(picked)}
	var markets []Market
	index := make(map[string]int)
	for _, c := range picked {
		i, ok := index[c.Market]
		if !ok {
			i = len(markets)
			index[c.Market] = i
			markets = append(markets, Market{Name: c.Market})
		}
		m := &markets[i]
		if m.Notes == "" {
			m.Notes = c.Notes
		}
		if n := len(m.Rows); n == 0 || len(m.Rows[n-1]) == CardsPerRow {
			m.Rows = append(m.Rows, nil)
		}
		m.Rows[len(m.Rows)-1] = append(m.Rows[len(m.Rows)-1], c)
	}
	for i, m := range markets {
		v.Columns[i%2] = append(v.Columns[i%2], m)
	}
	return v
}

// Sort orders cards by market name, closer rank and name. Market rank does
// not order markets on a board.
func Sort(cards []Card) {
	sort.SliceStable(cards, func(i, j int) bool { return less(cards[i], cards[j]) })
}

func less(a, b Card) bool {
	if a.Market != b.Market {
		return a.Market < b.Market
	}
	if a.Rank != b.Rank {
		return a.Rank < b.Rank
	}
	return a.Name < b.Name
}

// Groups returns the group selector choices: AllGroups then each group
// present on the board, sorted.
func Groups(cards []Card) []string {
	seen := make(map[string]bool)
	var groups []string
	for _, c := range cards {
		if !seen[c.Group] {
			seen[c.Group] = true
			groups = append(groups, c.Group)
		}
	}
	sort.Strings(groups)
	return append([]string{AllGroups}, groups...)
}
