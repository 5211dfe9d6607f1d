// Package board builds the appointment progress boards: one card per active
// closer and week, showing booked appointments against the weekly goal.
package board

import (
	"fmt"
	"strings"
	"time"

	"github.com/knockmap/knockmap/internal/roster"
)

// Timeframe is a week relative to the current one.
type Timeframe string

const (
	LastWeek Timeframe = "Last Week"
	ThisWeek Timeframe = "This Week"
	NextWeek Timeframe = "Next Week"
)

// Timeframes lists the timeframes in selector order.
var Timeframes = []Timeframe{ThisWeek, NextWeek, LastWeek}

// ParseTimeframe returns the named timeframe, or ThisWeek for anything else.
func ParseTimeframe(s string) Timeframe {
	for _, tf := range Timeframes {
		if string(tf) == s {
			return tf
		}
	}
	return ThisWeek
}

// Next returns the timeframe after tf in selector order.
func (tf Timeframe) Next() Timeframe {
	for i, v := range Timeframes {
		if v == tf {
			return Timeframes[(i+1)%len(Timeframes)]
		}
	}
	return ThisWeek
}

// WeekStart returns midnight of the Monday starting t's week, in t's location.
func WeekStart(t time.Time) time.Time {
	y, m, d := t.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, t.Location())
	offset := (int(midnight.Weekday()) + 6) % 7
	return midnight.AddDate(0, 0, -offset)
}

// Window returns the half-open range covering last, this and next week.
func Window(now time.Time) (from, to time.Time) {
	start := WeekStart(now)
	return start.AddDate(0, 0, -7), start.AddDate(0, 0, 14)
}

// Bucket returns the timeframe t falls in relative to now. Weeks start on
// Monday in now's location, so the year boundary needs no special case.
func Bucket(t, now time.Time) (Timeframe, bool) {
	start := WeekStart(now)
	t = t.In(now.Location())
	switch {
	case t.Before(start.AddDate(0, 0, -7)):
		return "", false
	case t.Before(start):
		return LastWeek, true
	case t.Before(start.AddDate(0, 0, 7)):
		return ThisWeek, true
	case t.Before(start.AddDate(0, 0, 14)):
		return NextWeek, true
	default:
		return "", false
	}
}

// Channel describes which closers and appointments feed a board.
type Channel struct {
	Slug  string
	Title string
	// Types are the target channels whose closers appear on the board.
	Types []roster.Channel
	// SalesChannel is the opportunity channel whose appointments count.
	SalesChannel string
	GoalColumn   string
	RankColumn   string
}

var (
	Web = Channel{
		Slug:         "web",
		Title:        "Web Appointments",
		Types:        []roster.Channel{roster.Hybrid, roster.WebToHome},
		SalesChannel: "Web To Home",
		GoalColumn:   "GOAL",
		RankColumn:   "RANK",
	}
	Field = Channel{
		Slug:         "field",
		Title:        "Field Appointments",
		Types:        []roster.Channel{roster.Hybrid, roster.FieldMarketing},
		SalesChannel: "Field Marketing",
		GoalColumn:   "FM_GOAL",
		RankColumn:   "FM_RANK",
	}
)

// Channels lists the boards in navigation order.
var Channels = []Channel{Web, Field}

// LookupChannel finds a board by slug.
func LookupChannel(slug string) (Channel, error) {
	for _, c := range Channels {
		if c.Slug == slug {
			return c, nil
		}
	}
	return Channel{}, fmt.Errorf("unknown board %q", slug)
}

// NoGroup labels closers whose market has no group.
const NoGroup = "No Group"

// Progress bar colors.
const (
	ColorBehind = "#FF6347"
	ColorMet    = "#47C547"
)

// Goal is an active closer's weekly target on one board.
type Goal struct {
	CloserID   string
	Name       string
	Market     string
	Group      string
	MarketRank *int64
	Notes      string
	Goal       int64
	Rank       int64
	Picture    string
}

// Card is one closer's progress for one timeframe.
type Card struct {
	CloserID     string    `json:"closer_id"`
	Name         string    `json:"name"`
	Market       string    `json:"market"`
	Group        string    `json:"market_group"`
	MarketRank   *int64    `json:"market_rank"`
	Notes        string    `json:"notes,omitempty"`
	Rank         int64     `json:"rank"`
	Picture      string    `json:"profile_picture"`
	Timeframe    Timeframe `json:"timeframe"`
	Appointments int64     `json:"appointments"`
	Goal         int64     `json:"goal"`
	Percentage   float64   `json:"percentage"`
	Color        string    `json:"color"`
}

// DisplayName shortens a full name to "First L.". Single names are kept.
func DisplayName(full string) string {
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	}
	initial := []rune(parts[1])[0]
	return parts[0] + " " + string(initial) + "."
}

// Percentage is appointments as a share of goal, capped at 100. A goal of
// zero or less counts as met.
func Percentage(appointments, goal int64) float64 {
	if goal <= 0 {
		return 100
	}
	p := float64(appointments) / float64(goal) * 100
	if p > 100 {
		return 100
	}
	return p
}

// Color picks the progress bar color for a percentage.
func Color(percentage float64) string {
	if percentage < 100 {
		return ColorBehind
	}
	return ColorMet
}

// Appointment is one booked close, attributed to its owner.
type Appointment struct {
	OwnerID string
	At      time.Time
}

type countKey struct {
	closer    string
	timeframe Timeframe
}

// Build crosses every goal with the three timeframes and counts the
// appointments that fall in each. Appointments outside the window are
// ignored and missing counts are zero.
func Build(goals []Goal, appts []Appointment, defaultPicture string, now time.Time) []Card {
	counts := make(map[countKey]int64)
	for _, a := range appts {
		tf, ok := Bucket(a.At, now)
		if !ok {
			continue
		}
		counts[countKey{a.OwnerID, tf}]++
	}

	cards := make([]Card, 0, len(goals)*len(Timeframes))
	for _, g := range goals {
		group := g.Group
		if group == "" {
			group = NoGroup
		}
		pic := g.Picture
		if pic == "" {
			pic = defaultPicture
		}
		for _, tf := range Timeframes {
			n := counts[countKey{g.CloserID, tf}]
			pct := Percentage(n, g.Goal)
			cards = append(cards, Card{
				CloserID:     g.CloserID,
				Name:         DisplayName(g.Name),
				Market:       g.Market,
				Group:        group,
				MarketRank:   g.MarketRank,
				Notes:        g.Notes,
				Rank:         g.Rank,
				Picture:      pic,
				Timeframe:    tf,
				Appointments: n,
				Goal:         g.Goal,
				Percentage:   pct,
				Color:        Color(pct),
			})
		}
	}
	return cards
}
