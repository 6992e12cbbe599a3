package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"financeiro/internal/auth"
	"financeiro/internal/core"
)

// recordRequest is a decoded body for one record kind.
type recordRequest[T any] interface {
	record() T
	periodID() core.ID
}

// recordOps are the services calls of one record kind.
type recordOps[T any] struct {
	create func(ctx context.Context, userID core.ID, rec T) (T, error)
	update func(ctx context.Context, userID, periodID, id core.ID, draft T) (T, error)
	delete func(ctx context.Context, userID, periodID, id core.ID) error
}

func (s *Server) recordRoutes(api *mux.Router) {
	routeRecords[core.IncomeEntry, incomeRequest](s, api, "/income", recordOps[core.IncomeEntry]{
		create: s.svc.CreateIncome, update: s.svc.UpdateIncome, delete: s.svc.DeleteIncome,
	})
	routeRecords[core.FixedExpense, fixedRequest](s, api, "/fixed-expenses", recordOps[core.FixedExpense]{
		create: s.svc.CreateFixed, update: s.svc.UpdateFixed, delete: s.svc.DeleteFixed,
	})
	routeRecords[core.VariableExpense, variableRequest](s, api, "/variable-expenses", recordOps[core.VariableExpense]{
		create: s.svc.CreateVariable, update: s.svc.UpdateVariable, delete: s.svc.DeleteVariable,
	})
	routeRecords[core.Investment, investmentRequest](s, api, "/investments", recordOps[core.Investment]{
		create: s.svc.CreateInvestment, update: s.svc.UpdateInvestment, delete: s.svc.DeleteInvestment,
	})
}

// routeRecords registers POST path, PATCH path/{id} and DELETE path/{id}.
// PATCH takes the whole edited record; only changed fields reach the
// backend. DELETE names the period in ?competencia_id=.
func routeRecords[T any, R recordRequest[T]](s *Server, api *mux.Router, path string, ops recordOps[T]) {
	api.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		var req R
		if !s.decode(w, r, &req) {
			return
		}
		created, err := ops.create(r.Context(), auth.UserID(r.Context()), req.record())
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		NewJSONResponse().Status(http.StatusCreated).Body(created).Write(w)
	}).Methods(http.MethodPost)

	api.HandleFunc(path+"/{id}", func(w http.ResponseWriter, r *http.Request) {
		var req R
		if !s.decode(w, r, &req) {
			return
		}
		updated, err := ops.update(r.Context(), auth.UserID(r.Context()), req.periodID(), pathID(r), req.record())
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		NewJSONResponse().Body(updated).Write(w)
	}).Methods(http.MethodPatch)

	api.HandleFunc(path+"/{id}", func(w http.ResponseWriter, r *http.Request) {
		periodID := core.ID(strings.TrimSpace(r.URL.Query().Get("competencia_id")))
		if periodID.IsZero() {
			writeProblem(w, r, http.StatusUnprocessableEntity, "campo obrigatório", "competencia_id")
			return
		}
		if err := ops.delete(r.Context(), auth.UserID(r.Context()), periodID, pathID(r)); err != nil {
			s.writeError(w, r, err)
			return
		}
		NewJSONResponse().Status(http.StatusNoContent).Write(w)
	}).Methods(http.MethodDelete)
}
