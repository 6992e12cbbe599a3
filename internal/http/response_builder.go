package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"financeiro/internal/log"
	"financeiro/internal/middleware/trace"
	"financeiro/internal/services"
	"financeiro/internal/session"
)

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	body       any
	headers    map[string]string
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{statusCode: http.StatusOK, headers: map[string]string{}}
}

// Status sets the HTTP status code for the response.
func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

// Header adds a custom header to the response.
func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Body sets the value encoded as the response body.
func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

// Write sends the built response. A 204 carries no body.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.statusCode == http.StatusNoContent || b.body == nil {
		w.WriteHeader(b.statusCode)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	_ = json.NewEncoder(w).Encode(b.body)
}

type problem struct {
	Error     string `json:"erro"`
	Field     string `json:"campo,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func writeProblem(w http.ResponseWriter, r *http.Request, status int, msg, field string) {
	NewJSONResponse().Status(status).Body(problem{
		Error:     msg,
		Field:     field,
		RequestID: trace.GetRequestID(r.Context()),
	}).Write(w)
}

// statusFor maps a services error to its HTTP status.
func statusFor(err error) int {
	var (
		vErr *services.ValidationError
		bErr *services.BackendError
	)
	switch {
	case errors.Is(err, services.ErrNoIdentity):
		return http.StatusUnauthorized
	case errors.As(err, &vErr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrStaleSelection):
		return http.StatusConflict
	case errors.As(err, &bErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps err and writes it. Server-side failures are logged; their
// detail is not sent to the client.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	var vErr *services.ValidationError
	field := ""
	if errors.As(err, &vErr) {
		field = vErr.Field
	}

	msg := err.Error()
	switch status {
	case http.StatusBadGateway:
		msg = "falha ao comunicar com a API financeira"
	case http.StatusInternalServerError:
		msg = "erro interno"
	}
	if status >= http.StatusInternalServerError {
		log.FromContext(r.Context()).WithComponent(log.ComponentHTTP).
			ErrorContext(r.Context(), "Request failed", log.FieldError, err.Error(), log.FieldPath, r.URL.Path)
	}
	writeProblem(w, r, status, msg, field)
}
