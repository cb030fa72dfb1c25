package main

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/myrjola/sleuth/internal/errors"
	"github.com/myrjola/sleuth/internal/models"
)

// maxRequestBytes bounds request bodies. Reports may carry a handful of base64 encoded screenshots.
const maxRequestBytes = 32 << 20

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func (app *application) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		app.serverError(w, r, errors.Wrap(err, "marshal response"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err = w.Write(body); err != nil {
		app.logger.LogAttrs(r.Context(), slog.LevelDebug, "failed to write response", errors.SlogError(err))
	}
}

func (app *application) writeError(w http.ResponseWriter, r *http.Request, status int, kind string, msg string) {
	app.writeJSON(w, r, status, errorResponse{Error: msg, Kind: kind})
}

func (app *application) serverError(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.LogAttrs(r.Context(), slog.LevelError, "server error",
		slog.String("method", r.Method), slog.String("uri", r.URL.RequestURI()), errors.SlogError(err))
	app.writeError(w, r, http.StatusInternalServerError, "internal", http.StatusText(http.StatusInternalServerError))
}

func (app *application) clientError(w http.ResponseWriter, r *http.Request, status int, kind string, err error) {
	app.logger.LogAttrs(r.Context(), slog.LevelDebug, http.StatusText(status),
		slog.String("method", r.Method), slog.String("uri", r.URL.RequestURI()), errors.SlogError(err))
	app.writeError(w, r, status, kind, err.Error())
}

func (app *application) notFound(w http.ResponseWriter, r *http.Request) {
	app.writeError(w, r, http.StatusNotFound, "not_found", http.StatusText(http.StatusNotFound))
}

// interviewError maps the interview failure taxonomy to HTTP responses.
func (app *application) interviewError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, models.ErrInvalidInput):
		app.clientError(w, r, http.StatusBadRequest, "invalid_input", err)
	case errors.Is(err, models.ErrSessionNotFound):
		app.notFound(w, r)
	case errors.Is(err, models.ErrInvalidTransition):
		app.clientError(w, r, http.StatusConflict, "invalid_transition", err)
	case errors.Is(err, models.ErrSchemaViolation):
		app.logger.LogAttrs(r.Context(), slog.LevelError, "oracle schema violation", errors.SlogError(err))
		app.writeError(w, r, http.StatusBadGateway, "schema_violation",
			"the interviewer answered in an unexpected format, please try again")
	case errors.Is(err, models.ErrOracleTransport):
		app.logger.LogAttrs(r.Context(), slog.LevelError, "oracle unavailable", errors.SlogError(err))
		app.writeError(w, r, http.StatusServiceUnavailable, "oracle_transport",
			"the interviewer is unavailable, please try again later")
	default:
		app.serverError(w, r, err)
	}
}

// decodeJSON reads the request body into v. Unknown fields are rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Wrap(errors.Join(models.ErrInvalidInput, err), "decode request body")
	}
	return nil
}
