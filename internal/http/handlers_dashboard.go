package http

import (
	"net/http"

	"github.com/gorilla/mux"

	"financeiro/internal/auth"
	"financeiro/internal/palette"
)

func (s *Server) handleYearDashboard(w http.ResponseWriter, r *http.Request) {
	year, err := queryYear(r)
	if err != nil {
		writeProblem(w, r, http.StatusBadRequest, err.Error(), "year")
		return
	}
	d, err := s.svc.YearDashboard(r.Context(), auth.UserID(r.Context()), year)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(yearDashboardOf(d)).Write(w)
}

func (s *Server) handlePeriodDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := s.svc.PeriodDashboard(r.Context(), auth.UserID(r.Context()), pathID(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(periodDashboardOf(d, palette.CategoryColor, palette.ColorForID)).Write(w)
}

// handleRecords lists every record of a period, amounts as the backend
// sent them.
func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	rs, err := s.svc.Records(r.Context(), auth.UserID(r.Context()), pathID(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(rs).Write(w)
}

func (s *Server) handleGoalComparison(w http.ResponseWriter, r *http.Request) {
	year, err := queryYear(r)
	if err != nil {
		writeProblem(w, r, http.StatusBadRequest, err.Error(), "year")
		return
	}
	d, err := s.svc.GoalComparison(r.Context(), auth.UserID(r.Context()), year)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(goalComparisonOf(d)).Write(w)
}

func (s *Server) handleGetGoal(w http.ResponseWriter, r *http.Request) {
	g, err := s.svc.Goal(r.Context(), auth.UserID(r.Context()), pathID(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if g == nil {
		NewJSONResponse().Status(http.StatusNoContent).Write(w)
		return
	}
	NewJSONResponse().Body(goalOf(g)).Write(w)
}

// handleSetGoal sets or clears the goal of a period. Empty or non-positive
// input clears it and answers 204.
func (s *Server) handleSetGoal(w http.ResponseWriter, r *http.Request) {
	var req goalRequest
	if !s.decode(w, r, &req) {
		return
	}
	g, err := s.svc.SetGoalInput(r.Context(), auth.UserID(r.Context()), pathID(r), string(req.Target))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if g == nil {
		NewJSONResponse().Status(http.StatusNoContent).Write(w)
		return
	}
	NewJSONResponse().Body(goalOf(g)).Write(w)
}

func (s *Server) handleBulkGoals(w http.ResponseWriter, r *http.Request) {
	year, err := parseYear(mux.Vars(r)["year"])
	if err != nil {
		writeProblem(w, r, http.StatusBadRequest, err.Error(), "year")
		return
	}
	var req bulkGoalRequest
	if !s.decode(w, r, &req) {
		return
	}
	n, err := s.svc.BulkApplyGoal(r.Context(), auth.UserID(r.Context()), year, req.Target, req.OnlyEmpty)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(countResponse{Year: year, Written: n}).Write(w)
}

func (s *Server) handleClearGoals(w http.ResponseWriter, r *http.Request) {
	year, err := parseYear(mux.Vars(r)["year"])
	if err != nil {
		writeProblem(w, r, http.StatusBadRequest, err.Error(), "year")
		return
	}
	n, err := s.svc.ClearGoals(r.Context(), auth.UserID(r.Context()), year)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(countResponse{Year: year, Written: n}).Write(w)
}
