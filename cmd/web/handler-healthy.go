package main

import (
	"log/slog"
	"net/http"

	"github.com/myrjola/sleuth/internal/errors"
)

type healthResponse struct {
	Status string `json:"status"`
}

// healthy responds with a JSON object indicating whether the server can reach its database.
func (app *application) healthy(w http.ResponseWriter, r *http.Request) {
	if err := app.db.ReadOnly.PingContext(r.Context()); err != nil {
		app.logger.LogAttrs(r.Context(), slog.LevelError, "database unreachable", errors.SlogError(err))
		app.writeJSON(w, r, http.StatusServiceUnavailable, healthResponse{Status: "unavailable"})
		return
	}
	app.writeJSON(w, r, http.StatusOK, healthResponse{Status: "ok"})
}
