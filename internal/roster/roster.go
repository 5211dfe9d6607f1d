// Package roster builds the closer targets table managers edit: active
// users joined to their appointment targets and profile pictures, with
// missing values filled and bad values coerced to safe defaults.
package roster

import (
	"strings"
)

// Channel is the sales channel a closer works, stored verbatim in the
// targets table.
type Channel string

const (
	Hybrid         Channel = "🏠🏃 Hybrid"
	FieldMarketing Channel = "🏃 Field Marketing"
	WebToHome      Channel = "🏠 Web To Home"
)

// Channels lists the valid channels in editor order.
var Channels = []Channel{Hybrid, FieldMarketing, WebToHome}

// Valid reports whether c is one of the known channels.
func (c Channel) Valid() bool {
	for _, v := range Channels {
		if c == v {
			return true
		}
	}
	return false
}

const (
	// NoMarket replaces a missing or unknown market.
	NoMarket = "No Market"
	// DefaultRank is given to closers with no rank.
	DefaultRank = 100
)

// Closer is one editable row of the targets table.
type Closer struct {
	Name           string  `json:"name"`
	SalesforceID   string  `json:"salesforce_id"`
	Market         string  `json:"market"`
	Channel        Channel `json:"type"`
	Active         bool    `json:"active"`
	Goal           int64   `json:"goal"`
	Rank           int64   `json:"rank"`
	FMGoal         int64   `json:"fm_goal"`
	FMRank         int64   `json:"fm_rank"`
	ProfilePicture string  `json:"profile_picture"`
}

// User is an active closer or manager from the users view.
type User struct {
	Name         string
	SalesforceID string
}

// Target is a raw row of the targets table. Nil fields were NULL.
type Target struct {
	CloserID string
	Name     string
	Goal     *int64
	Rank     *int64
	FMGoal   *int64
	FMRank   *int64
	Active   *string
	Type     *string
	Market   *string
}

// Merge left-joins users to their targets and pictures by name and fills
// the gaps. The first target for a name wins. Pictures come from the users
// view only; the copy stored with the target is ignored.
func Merge(users []User, targets []Target, pictures map[string]string, marketNames map[string]bool, defaultPicture string) []Closer {
	byName := make(map[string]Target, len(targets))
	for _, t := range targets {
		if _, dup := byName[t.Name]; !dup {
			byName[t.Name] = t
		}
	}

	out := make([]Closer, 0, len(users))
	for _, u := range users {
		t := byName[u.Name]
		c := Closer{
			Name:         u.Name,
			SalesforceID: u.SalesforceID,
			Market:       deref(t.Market, NoMarket),
			Channel:      Channel(deref(t.Type, string(Hybrid))),
			Active:       parseActive(t.Active),
			Goal:         derefInt(t.Goal, 0),
			Rank:         derefInt(t.Rank, DefaultRank),
			FMGoal:       derefInt(t.FMGoal, 0),
			FMRank:       derefInt(t.FMRank, DefaultRank),
		}

		pic, ok := pictures[u.Name]
		if !ok || pic == "" {
			pic = defaultPicture
		}
		c.ProfilePicture = pic
		out = append(out, Normalize(c, marketNames))
	}
	return out
}

// Normalize coerces an unknown channel to Hybrid and a market missing from
// the markets table to NoMarket.
func Normalize(c Closer, marketNames map[string]bool) Closer {
	if !c.Channel.Valid() {
		c.Channel = Hybrid
	}
	if c.Market != NoMarket && !marketNames[c.Market] {
		c.Market = NoMarket
	}
	return c
}

// parseActive reads the Yes/No flag. Anything else, NULL included, is false.
func parseActive(s *string) bool {
	if s == nil {
		return false
	}
	return strings.ToLower(strings.TrimSpace(*s)) == "yes"
}

// ActiveFlag renders the flag the way the targets table stores it.
func ActiveFlag(active bool) string {
	if active {
		return "Yes"
	}
	return "No"
}

func deref(s *string, def string) string {
	if s == nil {
		return def
	}
	return *s
}

func derefInt(n *int64, def int64) int64 {
	if n == nil {
		return def
	}
	return *n
}
