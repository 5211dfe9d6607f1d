package api

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/knockmap/knockmap/internal/board"
	"github.com/knockmap/knockmap/internal/edit"
	"github.com/knockmap/knockmap/internal/markets"
	"github.com/knockmap/knockmap/internal/roster"
)

// HealthResponse is returned by /api/health.
type HealthResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// VersionResponse is returned by /api/version.
type VersionResponse struct {
	Version     string `json:"version"`
	DataVersion int64  `json:"data_version"`
}

// TargetRow is one row of a submitted targets table.
type TargetRow struct {
	Name   string `json:"name" validate:"required"`
	Market string `json:"market" validate:"required"`
	Type   string `json:"type" validate:"required"`
	Active bool   `json:"active"`
	Goal   int64  `json:"goal" validate:"gte=0"`
	Rank   int64  `json:"rank" validate:"gte=0"`
	FMGoal int64  `json:"fm_goal" validate:"gte=0"`
	FMRank int64  `json:"fm_rank" validate:"gte=0"`
}

func (t TargetRow) toCloser() roster.Closer {
	return roster.Closer{
		Name:    t.Name,
		Market:  t.Market,
		Channel: roster.Channel(t.Type),
		Active:  t.Active,
		Goal:    t.Goal,
		Rank:    t.Rank,
		FMGoal:  t.FMGoal,
		FMRank:  t.FMRank,
	}
}

func closers(rows []TargetRow) []roster.Closer {
	out := make([]roster.Closer, len(rows))
	for i, row := range rows {
		out[i] = row.toCloser()
	}
	return out
}

// SaveTargetsRequest is the body of POST /api/targets.
type SaveTargetsRequest struct {
	// Original is the rows as the client loaded them. Only rows that differ
	// from it are saved.
	Original []TargetRow `json:"original" validate:"required,dive"`
	Rows     []TargetRow `json:"rows" validate:"required,dive"`
}

// Cell is an editor cell that accepts a JSON string, number or null.
type Cell string

func (c *Cell) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*c = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = Cell(s)
	case len(data) > 0 && (data[0] == '-' || (data[0] >= '0' && data[0] <= '9')):
		*c = Cell(data)
	default:
		return fmt.Errorf("unsupported cell value %s", data)
	}
	return nil
}

// MarketRow is one row of a submitted markets table.
type MarketRow struct {
	Market      string `json:"market" validate:"max=255"`
	MarketGroup string `json:"market_group" validate:"max=255"`
	Rank        Cell   `json:"rank"`
	Notes       string `json:"notes" validate:"max=2000"`
}

func (m MarketRow) toEdit() markets.Edit {
	return markets.Edit{Name: m.Market, Group: m.MarketGroup, Rank: string(m.Rank), Notes: m.Notes}
}

func marketEdits(rows []MarketRow) []markets.Edit {
	out := make([]markets.Edit, len(rows))
	for i, row := range rows {
		out[i] = row.toEdit()
	}
	return out
}

// SaveMarketsRequest is the body of POST /api/markets. Rows of Original
// left out of Rows are deleted; markets the client never loaded are kept.
type SaveMarketsRequest struct {
	Original []MarketRow `json:"original" validate:"required,dive"`
	Rows     []MarketRow `json:"rows" validate:"dive"`
}

// OutcomeResponse reports what happened to one edited row.
type OutcomeResponse struct {
	Key     string `json:"key"`
	Action  string `json:"action"`
	Message string `json:"message"`
	OK      bool   `json:"ok"`
}

// EditResponse is returned by both save endpoints.
type EditResponse struct {
	Message     string            `json:"message,omitempty"`
	Outcomes    []OutcomeResponse `json:"outcomes"`
	DataVersion int64             `json:"data_version"`
}

func newEditResponse(res edit.Result, version int64) EditResponse {
	resp := EditResponse{Outcomes: make([]OutcomeResponse, 0, len(res.Outcomes)), DataVersion: version}
	if res.Empty() {
		resp.Message = edit.NoChanges
	}
	for _, o := range res.Outcomes {
		resp.Outcomes = append(resp.Outcomes, OutcomeResponse{Key: o.Key, Action: o.Action, Message: o.Message, OK: o.OK()})
	}
	return resp
}

// MarketsResponse is returned by GET /api/markets.
type MarketsResponse struct {
	Markets     []markets.Edit `json:"markets"`
	DataVersion int64          `json:"data_version"`
}

// BoardResponse is returned by GET /api/board/{channel}.
type BoardResponse struct {
	Channel     string `json:"channel"`
	Title       string `json:"title"`
	DataVersion int64  `json:"data_version"`
	*board.View
}
