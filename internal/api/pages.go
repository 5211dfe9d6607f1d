package api

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strconv"

	"github.com/knockmap/knockmap/internal/board"
	"github.com/knockmap/knockmap/internal/edit"
	"github.com/knockmap/knockmap/internal/engine"
	"github.com/knockmap/knockmap/internal/markets"
	"github.com/knockmap/knockmap/internal/roster"
)

// pageData feeds layout.html and the page bodies.
type pageData struct {
	Title    string
	Page     string
	Boards   []board.Channel
	Messages []edit.Outcome
	Info     string

	Targets  *engine.TargetsView
	Markets  []markets.Edit
	Channels []roster.Channel

	Board       *board.View
	Timeframes  []board.Timeframe
	Live        bool
	DataVersion int64
}

// GroupSelected reports whether group is ticked in the board filter.
func (p pageData) GroupSelected(group string) bool {
	if p.Board == nil {
		return false
	}
	if p.Board.Filter.AllGroupsSelected() {
		return group == board.AllGroups
	}
	for _, g := range p.Board.Filter.Groups {
		if g == group {
			return true
		}
	}
	return false
}

func (s *Server) parseTemplates() error {
	var err error
	s.targetsPage, err = template.ParseFS(s.assets, "templates/layout.html", "templates/targets.html")
	if err != nil {
		return fmt.Errorf("parsing targets page: %w", err)
	}
	s.boardPage, err = template.ParseFS(s.assets, "templates/layout.html", "templates/board.html")
	if err != nil {
		return fmt.Errorf("parsing board page: %w", err)
	}
	return nil
}

func (s *Server) render(w http.ResponseWriter, tmpl *template.Template, data pageData) {
	data.Boards = board.Channels
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		s.logger.Error("rendering page", "page", data.Page, "error", err)
		http.Error(w, "rendering page failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	buf.WriteTo(w)
}

func (s *Server) targetsPageData(r *http.Request, f roster.Filter) (pageData, error) {
	view, err := s.engine.Targets(r.Context(), f)
	if err != nil {
		return pageData{}, err
	}
	ms, err := s.engine.Markets(r.Context())
	if err != nil {
		return pageData{}, err
	}
	edits := make([]markets.Edit, len(ms))
	for i, m := range ms {
		edits[i] = m.AsEdit()
	}
	return pageData{
		Title:    "Closer Targets",
		Page:     "targets",
		Targets:  view,
		Markets:  edits,
		Channels: roster.Channels,
	}, nil
}

func (s *Server) handleTargetsPage(w http.ResponseWriter, r *http.Request) {
	data, err := s.targetsPageData(r, targetsFilter(r.URL.Query()))
	if err != nil {
		s.logger.Error("loading targets page", "error", err)
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	s.render(w, s.targetsPage, data)
}

func (s *Server) handleTargetsSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	original, rows, rejected, err := parseTargetsForm(r.PostForm)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	res, err := s.engine.SaveTargets(r.Context(), RequestID(r.Context()), original, rows)
	if err != nil {
		s.logger.Error("saving targets", "error", err)
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	res.Outcomes = append(rejected, res.Outcomes...)
	s.published()

	f := roster.Filter{
		Market:  r.PostForm.Get("filter_market"),
		Closer:  r.PostForm.Get("filter_closer"),
		Channel: r.PostForm.Get("filter_channel"),
	}
	s.renderTargetsResult(w, r, f, res)
}

func (s *Server) handleMarketsSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	original, edits, err := parseMarketsForm(r.PostForm)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	res, err := s.engine.SaveMarkets(r.Context(), RequestID(r.Context()), original, edits)
	if err != nil {
		s.logger.Error("saving markets", "error", err)
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	s.published()
	s.renderTargetsResult(w, r, roster.Filter{}, res)
}

func (s *Server) renderTargetsResult(w http.ResponseWriter, r *http.Request, f roster.Filter, res edit.Result) {
	data, err := s.targetsPageData(r, f)
	if err != nil {
		s.logger.Error("loading targets page", "error", err)
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	data.Messages = res.Outcomes
	if res.Empty() {
		data.Info = edit.NoChanges
	}
	s.render(w, s.targetsPage, data)
}

func (s *Server) handleBoardPage(w http.ResponseWriter, r *http.Request) {
	ch, err := board.LookupChannel(r.PathValue("channel"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	view, err := s.engine.Board(r.Context(), ch, boardFilter(r.URL.Query()))
	if err != nil {
		s.logger.Error("loading board page", "channel", ch.Slug, "error", err)
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	s.render(w, s.boardPage, pageData{
		Title:       ch.Title,
		Page:        ch.Slug,
		Board:       view,
		Timeframes:  board.Timeframes,
		Live:        s.hub != nil,
		DataVersion: s.engine.DataVersion(),
	})
}

// parseTargetsForm reads the editor's parallel columns: the edited cells and
// the orig_ cells the page was rendered with. Edited rows whose numbers do
// not parse are refused individually.
func parseTargetsForm(form url.Values) (original, edited []roster.Closer, rejected []edit.Outcome, err error) {
	original, bad, err := parseCloserColumns(form, "orig_")
	if err != nil {
		return nil, nil, nil, err
	}
	if len(bad) > 0 {
		return nil, nil, nil, fmt.Errorf("invalid snapshot row: %s", bad[0].Message)
	}
	edited, rejected, err = parseCloserColumns(form, "")
	if err != nil {
		return nil, nil, nil, err
	}
	return original, edited, rejected, nil
}

func parseCloserColumns(form url.Values, prefix string) ([]roster.Closer, []edit.Outcome, error) {
	names := form["name"]
	col := func(name string) []string { return form[prefix+name] }
	for _, c := range []string{"market", "type", "active", "goal", "rank", "fm_goal", "fm_rank"} {
		if len(col(c)) != len(names) {
			return nil, nil, fmt.Errorf("column %s%s has %d cells for %d rows", prefix, c, len(col(c)), len(names))
		}
	}

	var rows []roster.Closer
	var rejected []edit.Outcome
	for i, name := range names {
		c := roster.Closer{
			Name:    name,
			Market:  col("market")[i],
			Channel: roster.Channel(col("type")[i]),
			Active:  col("active")[i] == roster.ActiveFlag(true),
		}
		var err error
		for _, f := range []struct {
			col string
			dst *int64
		}{
			{"goal", &c.Goal}, {"rank", &c.Rank}, {"fm_goal", &c.FMGoal}, {"fm_rank", &c.FMRank},
		} {
			if *f.dst, err = strconv.ParseInt(edit.Text(col(f.col)[i]), 10, 64); err != nil {
				err = fmt.Errorf("%s must be a whole number", f.col)
				break
			}
		}
		if err != nil {
			rejected = append(rejected, edit.Outcome{
				Key:     name,
				Action:  roster.ActionReject,
				Message: fmt.Sprintf("Error saving changes for %s: %v", name, err),
				Err:     err,
			})
			continue
		}
		rows = append(rows, c)
	}
	return rows, rejected, nil
}

// parseMarketsForm reads the market editor and the orig_ cells of the table
// it was rendered from. Ticked rows are dropped, which deletes them, and a
// blank trailing row is ignored.
func parseMarketsForm(form url.Values) (original, edited []markets.Edit, err error) {
	origNames := form["orig_market"]
	for _, c := range []string{"orig_market_group", "orig_market_rank", "orig_notes"} {
		if len(form[c]) != len(origNames) {
			return nil, nil, fmt.Errorf("column %s has %d cells for %d rows", c, len(form[c]), len(origNames))
		}
	}
	original = make([]markets.Edit, len(origNames))
	for i := range origNames {
		original[i] = markets.Edit{
			Name:  origNames[i],
			Group: form["orig_market_group"][i],
			Rank:  form["orig_market_rank"][i],
			Notes: form["orig_notes"][i],
		}
	}

	names := form["market"]
	for _, c := range []string{"market_group", "market_rank", "notes"} {
		if len(form[c]) != len(names) {
			return nil, nil, fmt.Errorf("column %s has %d cells for %d rows", c, len(form[c]), len(names))
		}
	}
	deleted := make(map[int]bool)
	for _, d := range form["delete"] {
		i, err := strconv.Atoi(d)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid delete index %q", d)
		}
		deleted[i] = true
	}

	for i := range names {
		if deleted[i] {
			continue
		}
		e := markets.Edit{Name: names[i], Group: form["market_group"][i], Rank: form["market_rank"][i], Notes: form["notes"][i]}
		if i == len(names)-1 && edit.Text(e.Name+e.Group+e.Rank+e.Notes) == "" {
			continue
		}
		edited = append(edited, e)
	}
	return original, edited, nil
}
