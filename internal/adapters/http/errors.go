package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"

	"signdesk/internal/domain"
	"signdesk/internal/editor"
	"signdesk/internal/fieldtype"
	"signdesk/internal/ports"
	"signdesk/internal/render"
	"signdesk/internal/services/documents"
	"signdesk/internal/workflow"
)

type runtimeError struct {
	code int
	msg  string
}

func (e *runtimeError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &runtimeError{code: http.StatusBadRequest, msg: fmt.Sprintf(format, args...)}
}

type errorBody struct {
	Error    string                `json:"error"`
	Blocking *domain.Recipient     `json:"blocking,omitempty"`
	From     domain.DocumentStatus `json:"from,omitempty"`
	To       domain.DocumentStatus `json:"to,omitempty"`
	Attempts int                   `json:"attempts,omitempty"`
}

// writeError maps service errors to status codes.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		rt   *runtimeError
		elig *workflow.EligibilityError
		tr   *workflow.TransitionError
		pe   *editor.PersistenceError
		div  *render.DivergenceError
		unk  fieldtype.ErrUnknown
		mbe  *http.MaxBytesError
	)
	body := errorBody{Error: err.Error()}
	code := http.StatusInternalServerError
	switch {
	case errors.As(err, &rt):
		code = rt.code
	case errors.As(err, &elig):
		code, body.Blocking = http.StatusConflict, elig.Blocking
	case errors.As(err, &tr):
		code, body.From, body.To = http.StatusConflict, tr.From, tr.To
		s.log.Warn("rejected status transition", "path", r.URL.Path, "from", tr.From, "to", tr.To)
	case errors.As(err, &pe):
		code, body.Attempts = http.StatusServiceUnavailable, pe.Attempts
		s.log.Error("save failed", "key", pe.Key, "attempts", pe.Attempts, "error", pe.Err)
	case errors.As(err, &mbe):
		code = http.StatusRequestEntityTooLarge
	case errors.Is(err, documents.ErrNotFound),
		errors.Is(err, ports.ErrNotFound),
		errors.Is(err, editor.ErrFieldNotFound):
		code = http.StatusNotFound
	case errors.Is(err, documents.ErrReadOnly),
		errors.Is(err, documents.ErrPrecondition),
		errors.Is(err, editor.ErrSuperseded):
		code = http.StatusConflict
	case errors.Is(err, documents.ErrInvalid),
		errors.Is(err, editor.ErrInvalidPage),
		errors.Is(err, render.ErrNoPages),
		errors.As(err, &unk):
		code = http.StatusBadRequest
	case errors.As(err, &div):
		s.log.Error("render divergence", "field_id", div.FieldID, "page", div.Page, "reason", div.Reason)
	default:
		s.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		body.Error = "internal error"
	}
	writeJSON(w, code, body)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func decode(r *http.Request, dest any) error {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		return badRequest("invalid request body: %v", err)
	}
	return nil
}

// pathParam binds a chi URL parameter into dest.
func pathParam(r *http.Request, name string, dest any) error {
	err := runtime.BindStyledParameterWithOptions("simple", name, chi.URLParam(r, name), dest,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		return badRequest("invalid format for parameter %s: %v", name, err)
	}
	return nil
}

// queryParam binds an optional query parameter; dest is left alone when absent.
func queryParam(r *http.Request, name string, dest any) error {
	if err := runtime.BindQueryParameter("form", true, false, name, r.URL.Query(), dest); err != nil {
		return badRequest("invalid format for parameter %s: %v", name, err)
	}
	return nil
}
