package api

import (
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/knockmap/knockmap/internal/board"
	"github.com/knockmap/knockmap/internal/markets"
	"github.com/knockmap/knockmap/internal/roster"
)

func targetsFilter(q url.Values) roster.Filter {
	return roster.Filter{
		Market:  q.Get("market"),
		Closer:  q.Get("closer"),
		Channel: q.Get("channel"),
	}
}

func boardFilter(q url.Values) board.Filter {
	return board.Filter{
		Groups:    q["selected_group"],
		Timeframe: board.ParseTimeframe(q.Get("selected_timeframe")),
	}
}

func (s *Server) handleGetTargets(w http.ResponseWriter, r *http.Request) {
	view, err := s.engine.Targets(r.Context(), targetsFilter(r.URL.Query()))
	if err != nil {
		s.logger.Error("loading targets", "error", err)
		errorResponse(w, http.StatusBadGateway, err.Error())
		return
	}
	jsonResponse(w, http.StatusOK, view)
}

func (s *Server) handleSaveTargets(w http.ResponseWriter, r *http.Request) {
	var req SaveTargetsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		errorResponse(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	res, err := s.engine.SaveTargets(r.Context(), RequestID(r.Context()), closers(req.Original), closers(req.Rows))
	if err != nil {
		s.logger.Error("saving targets", "error", err)
		errorResponse(w, http.StatusBadGateway, err.Error())
		return
	}
	jsonResponse(w, http.StatusOK, newEditResponse(res, s.published()))
}

func (s *Server) handleGetMarkets(w http.ResponseWriter, r *http.Request) {
	ms, err := s.engine.Markets(r.Context())
	if err != nil {
		s.logger.Error("loading markets", "error", err)
		errorResponse(w, http.StatusBadGateway, err.Error())
		return
	}
	edits := make([]markets.Edit, len(ms))
	for i, m := range ms {
		edits[i] = m.AsEdit()
	}
	jsonResponse(w, http.StatusOK, MarketsResponse{Markets: edits, DataVersion: s.engine.DataVersion()})
}

func (s *Server) handleSaveMarkets(w http.ResponseWriter, r *http.Request) {
	var req SaveMarketsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		errorResponse(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	res, err := s.engine.SaveMarkets(r.Context(), RequestID(r.Context()), marketEdits(req.Original), marketEdits(req.Rows))
	if err != nil {
		s.logger.Error("saving markets", "error", err)
		errorResponse(w, http.StatusBadGateway, err.Error())
		return
	}
	jsonResponse(w, http.StatusOK, newEditResponse(res, s.published()))
}

func (s *Server) handleGetBoard(w http.ResponseWriter, r *http.Request) {
	ch, err := board.LookupChannel(r.PathValue("channel"))
	if err != nil {
		errorResponse(w, http.StatusNotFound, err.Error())
		return
	}
	view, err := s.engine.Board(r.Context(), ch, boardFilter(r.URL.Query()))
	if err != nil {
		s.logger.Error("loading board", "channel", ch.Slug, "error", err)
		errorResponse(w, http.StatusBadGateway, err.Error())
		return
	}
	jsonResponse(w, http.StatusOK, BoardResponse{
		Channel:     ch.Slug,
		Title:       ch.Title,
		DataVersion: s.engine.DataVersion(),
		View:        view,
	})
}
