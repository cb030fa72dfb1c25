package main

import (
	"net/http"
	"time"

	"github.com/justinas/alice"
)

func (app *application) routes(requestTimeout time.Duration) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/healthy", app.healthy)

	timeout := func(h http.Handler) http.Handler { return timeoutHandler(h, requestTimeout) }
	api := alice.New(app.sessionManager.LoadAndSave, app.noSurf, csrfTokenHeader, timeout)

	mux.Handle("GET /api/investigations", api.ThenFunc(app.listInvestigations))
	mux.Handle("POST /api/investigations", api.ThenFunc(app.startInvestigation))
	mux.Handle("GET /api/investigations/{id}", api.ThenFunc(app.getInvestigation))
	mux.Handle("POST /api/investigations/{id}/answers", api.ThenFunc(app.answerInvestigation))
	mux.Handle("POST /api/investigations/{id}/pause", api.ThenFunc(app.pauseInvestigation))
	mux.Handle("POST /api/investigations/{id}/resume", api.ThenFunc(app.resumeInvestigation))
	mux.Handle("GET /api/investigations/{id}/analysis", api.ThenFunc(app.analyzeInvestigation))

	mux.HandleFunc("/", app.notFound)

	return alice.New(app.recoverPanic, app.logRequest, secureHeaders).Then(mux)
}
