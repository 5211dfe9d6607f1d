package roster

import (
	"sort"
)

// Labels of the "no filter" choice of each selector.
const (
	AllMarkets  = "All Markets"
	AllClosers  = "All Closers"
	AllChannels = "All Channels"
)

// Filter narrows the targets table. Empty fields and the All labels match
// everything.
type Filter struct {
	Market  string `json:"market"`
	Closer  string `json:"closer"`
	Channel string `json:"channel"`
}

// Options holds the choices of the three cascading selectors.
type Options struct {
	Markets  []string `json:"markets"`
	Closers  []string `json:"closers"`
	Channels []string `json:"channels"`
}

// BuildOptions computes selector choices. Each selector offers only what
// survives the selectors before it: closers are narrowed by market, and
// channels by market and closer.
func BuildOptions(rows []Closer, f Filter) Options {
	byMarket := filterBy(rows, f.Market, AllMarkets, func(c Closer) string { return c.Market })
	byCloser := filterBy(byMarket, f.Closer, AllClosers, func(c Closer) string { return c.Name })

	return Options{
		Markets:  withAll(AllMarkets, uniqueSorted(rows, func(c Closer) string { return c.Market })),
		Closers:  withAll(AllClosers, uniqueSorted(byMarket, func(c Closer) string { return c.Name })),
		Channels: withAll(AllChannels, uniqueSorted(byCloser, func(c Closer) string { return string(c.Channel) })),
	}
}

// Apply filters rows by market, closer and channel and sorts them by name.
func Apply(rows []Closer, f Filter) []Closer {
	out := filterBy(rows, f.Market, AllMarkets, func(c Closer) string { return c.Market })
	out = filterBy(out, f.Closer, AllClosers, func(c Closer) string { return c.Name })
	out = filterBy(out, f.Channel, AllChannels, func(c Closer) string { return string(c.Channel) })

	sorted := make([]Closer, len(out))
	copy(sorted, out)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	return sorted
}

func filterBy(rows []Closer, want, all string, field func(Closer) string) []Closer {
	if want == "" || want == all {
		return rows
	}
	var out []Closer
	for _, r := range rows {
		if field(r) == want {
			out = append(out, r)
		}
	}
	return out
}

func uniqueSorted(rows []Closer, field func(Closer) string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range rows {
		v := field(r)
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}

func withAll(all string, values []string) []string {
	return append([]string{all}, values...)
}
