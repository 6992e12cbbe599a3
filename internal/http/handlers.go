package http

import (
	"context"
	"net/http"
	"time"

	"financeiro/internal/auth"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	}).Write(w)
}

// handleReady checks the data backend.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := map[string]string{"backend": "ok"}
	status, code := "ready", http.StatusOK
	if err := s.svc.Ping(ctx); err != nil {
		checks["backend"] = "failed: " + err.Error()
		status, code = "not_ready", http.StatusServiceUnavailable
	}
	NewJSONResponse().Status(code).Body(map[string]any{
		"status": status,
		"checks": checks,
		"trace":  s.tracer.GetMetrics(),
		"limits": s.limiter.GetMetrics(),
	}).Write(w)
}

func (s *Server) handleListPeriods(w http.ResponseWriter, r *http.Request) {
	ov, err := s.svc.PeriodOverview(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(ov).Write(w)
}

func (s *Server) handleCreatePeriod(w http.ResponseWriter, r *http.Request) {
	var req periodRequest
	if !s.decode(w, r, &req) {
		return
	}
	p, err := s.svc.CreatePeriod(r.Context(), auth.UserID(r.Context()), req.Year, req.Month, req.Active)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(p).Write(w)
}

func (s *Server) handleActivatePeriod(w http.ResponseWriter, r *http.Request) {
	var req activateRequest
	if !s.decode(w, r, &req) {
		return
	}
	p, err := s.svc.ActivatePeriod(r.Context(), auth.UserID(r.Context()), req.Year, req.Month)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(p).Write(w)
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.svc.Categories(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(cats).Write(w)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if !s.decode(w, r, &req) {
		return
	}
	c, err := s.svc.CreateCategory(r.Context(), auth.UserID(r.Context()), req.Name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(c).Write(w)
}

func (s *Server) handleListPaymentMethods(w http.ResponseWriter, r *http.Request) {
	ms, err := s.svc.PaymentMethods(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(ms).Write(w)
}

func (s *Server) handleCreatePaymentMethod(w http.ResponseWriter, r *http.Request) {
	var req paymentMethodRequest
	if !s.decode(w, r, &req) {
		return
	}
	m, err := s.svc.CreatePaymentMethod(r.Context(), auth.UserID(r.Context()), req.Kind)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(m).Write(w)
}
