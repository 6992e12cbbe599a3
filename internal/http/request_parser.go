package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"financeiro/internal/core"
)

const maxBodyBytes = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their JSON name, the one the client sent.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decode reads a JSON body into dst and validates it. On failure the error
// response has been written and false is returned.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		msg := "corpo JSON inválido"
		var tErr *json.UnmarshalTypeError
		switch {
		case errors.Is(err, io.EOF):
			msg = "corpo da requisição vazio"
		case errors.As(err, &tErr):
			writeProblem(w, r, http.StatusUnprocessableEntity, "tipo inválido", tErr.Field)
			return false
		}
		writeProblem(w, r, http.StatusBadRequest, msg, "")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		var vErrs validator.ValidationErrors
		if errors.As(err, &vErrs) && len(vErrs) > 0 {
			fe := vErrs[0]
			writeProblem(w, r, http.StatusUnprocessableEntity, validationMessage(fe), fe.Field())
			return false
		}
		writeProblem(w, r, http.StatusBadRequest, err.Error(), "")
		return false
	}
	return true
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "campo obrigatório"
	case "max":
		return "valor acima do máximo (" + fe.Param() + ")"
	case "min":
		return "valor abaixo do mínimo (" + fe.Param() + ")"
	default:
		return "valor inválido"
	}
}

// pathID reads the {id} route variable.
func pathID(r *http.Request) core.ID {
	return core.ID(strings.TrimSpace(mux.Vars(r)["id"]))
}

// queryYear reads ?year=, 0 when absent.
func queryYear(r *http.Request) (int, error) {
	v := strings.TrimSpace(r.URL.Query().Get("year"))
	if v == "" {
		return 0, nil
	}
	return parseYear(v)
}

func parseYear(v string) (int, error) {
	y, err := strconv.Atoi(v)
	if err != nil || y < 1900 || y > 9999 {
		return 0, fmt.Errorf("ano inválido: %q", v)
	}
	return y, nil
}

// flexString accepts a JSON string or number. Goal inputs are typed by the
// user ("1.234,56") or sent as numbers by scripts.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}
