package main

import (
	"encoding/base64"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/myrjola/sleuth/internal/ai"
	"github.com/myrjola/sleuth/internal/errors"
	"github.com/myrjola/sleuth/internal/interview"
	"github.com/myrjola/sleuth/internal/models"
)

const maxImages = 8

type startRequest struct {
	IncidentName string             `json:"incident_name"`
	Participant  models.Participant `json:"participant"`
	// Threshold of zero selects the configured default.
	Threshold int    `json:"confidence_threshold"`
	Report    string `json:"report"`
	// Images are base64 encoded screenshots. The media type is sniffed from the content.
	Images []string `json:"images"`
}

type answerRequest struct {
	// Choice is the index of a candidate answer.
	Choice *int `json:"choice"`
	// Custom is the respondent's own answer.
	Custom string `json:"custom"`
}

type investigationResponse struct {
	ID                  string               `json:"id"`
	IncidentName        string               `json:"incident_name"`
	CreatedAt           time.Time            `json:"created_at"`
	Status              models.SessionStatus `json:"status"`
	Participant         models.Participant   `json:"participant"`
	ConfidenceThreshold int                  `json:"confidence_threshold"`
	Progress            int                  `json:"progress"`
	TurnCount           int                  `json:"turn_count"`
	Question            string               `json:"question"`
	Answers             []models.Answer      `json:"answers"`
	Goals               []models.Goal        `json:"goals"`
	Facts               []models.Fact        `json:"facts"`
	Complete            bool                 `json:"complete"`
}

type investigationListItem struct {
	ID           string               `json:"id"`
	IncidentName string               `json:"incident_name"`
	CreatedAt    time.Time            `json:"created_at"`
	Status       models.SessionStatus `json:"status"`
	Progress     int                  `json:"progress"`
	TurnCount    int                  `json:"turn_count"`
}

func newInvestigationResponse(s *models.Session) investigationResponse {
	return investigationResponse{
		ID:                  s.ID,
		IncidentName:        s.IncidentName,
		CreatedAt:           s.CreatedAt,
		Status:              s.Status,
		Participant:         s.Participant,
		ConfidenceThreshold: s.ConfidenceThreshold,
		Progress:            s.Progress(),
		TurnCount:           s.TurnCount,
		Question:            s.CurrentQuestion,
		Answers:             nonNil(s.Answers),
		Goals:               nonNil(s.Goals),
		Facts:               nonNil(s.Facts),
		Complete:            s.Status == models.SessionStatusComplete,
	}
}

// nonNil keeps empty lists as [] in the JSON output.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

func (req startRequest) report() (interview.Report, error) {
	if len(req.Images) > maxImages {
		return interview.Report{}, errors.Wrap(models.ErrInvalidInput, "too many images",
			slog.Int("images", len(req.Images)), slog.Int("max", maxImages))
	}
	images := make([]ai.Image, 0, len(req.Images))
	for i, encoded := range req.Images {
		data, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return interview.Report{}, errors.Wrap(errors.Join(models.ErrInvalidInput, err), "decode image",
				slog.Int("index", i))
		}
		mediaType := http.DetectContentType(data)
		if !strings.HasPrefix(mediaType, "image/") {
			return interview.Report{}, errors.Wrap(models.ErrInvalidInput, "not an image",
				slog.Int("index", i), slog.String("media_type", mediaType))
		}
		images = append(images, ai.Image{MediaType: mediaType, Data: data})
	}
	return interview.Report{Text: req.Report, Images: images}, nil
}

func (app *application) listInvestigations(w http.ResponseWriter, r *http.Request) {
	sessions, err := app.investigations.List(r.Context())
	if err != nil {
		app.interviewError(w, r, err)
		return
	}
	items := make([]investigationListItem, 0, len(sessions))
	for _, s := range sessions {
		if !app.owns(r.Context(), s.ID) {
			continue
		}
		items = append(items, investigationListItem{
			ID:           s.ID,
			IncidentName: s.IncidentName,
			CreatedAt:    s.CreatedAt,
			Status:       s.Status,
			Progress:     s.Progress(),
			TurnCount:    s.TurnCount,
		})
	}
	app.writeJSON(w, r, http.StatusOK, items)
}

func (app *application) startInvestigation(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := decodeJSON(w, r, &req); err != nil {
		app.interviewError(w, r, err)
		return
	}
	report, err := req.report()
	if err != nil {
		app.interviewError(w, r, err)
		return
	}

	s, err := app.investigations.Start(r.Context(), interview.StartInput{
		IncidentName: req.IncidentName,
		Participant:  req.Participant,
		Threshold:    req.Threshold,
		Report:       report,
	})
	if err != nil {
		app.interviewError(w, r, err)
		return
	}
	app.claim(r.Context(), s.ID)
	w.Header().Set("Location", "/api/investigations/"+s.ID)
	app.writeJSON(w, r, http.StatusCreated, newInvestigationResponse(s))
}

// ownedID returns the investigation identifier from the path, or false after responding with 404 when the
// investigation was not started in this browser session.
func (app *application) ownedID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.PathValue("id")
	if !app.owns(r.Context(), id) {
		app.notFound(w, r)
		return "", false
	}
	return id, true
}

func (app *application) getInvestigation(w http.ResponseWriter, r *http.Request) {
	id, ok := app.ownedID(w, r)
	if !ok {
		return
	}
	s, err := app.investigations.Get(r.Context(), id)
	if err != nil {
		app.interviewError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, newInvestigationResponse(s))
}

func (app *application) answerInvestigation(w http.ResponseWriter, r *http.Request) {
	id, ok := app.ownedID(w, r)
	if !ok {
		return
	}
	var req answerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		app.interviewError(w, r, err)
		return
	}

	var (
		s   *models.Session
		err error
	)
	switch {
	case req.Choice != nil && req.Custom != "":
		err = errors.Wrap(models.ErrInvalidInput, "choose a candidate or write an answer, not both")
	case req.Choice != nil:
		s, _, err = app.investigations.Choose(r.Context(), id, *req.Choice)
	default:
		s, _, err = app.investigations.Answer(r.Context(), id, models.CustomAnswer(req.Custom))
	}
	if err != nil {
		app.interviewError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, newInvestigationResponse(s))
}

func (app *application) pauseInvestigation(w http.ResponseWriter, r *http.Request) {
	id, ok := app.ownedID(w, r)
	if !ok {
		return
	}
	s, err := app.investigations.Pause(r.Context(), id)
	if err != nil {
		app.interviewError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, newInvestigationResponse(s))
}

func (app *application) resumeInvestigation(w http.ResponseWriter, r *http.Request) {
	id, ok := app.ownedID(w, r)
	if !ok {
		return
	}
	s, err := app.investigations.Resume(r.Context(), id)
	if err != nil {
		app.interviewError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, newInvestigationResponse(s))
}

func (app *application) analyzeInvestigation(w http.ResponseWriter, r *http.Request) {
	id, ok := app.ownedID(w, r)
	if !ok {
		return
	}
	report, err := app.investigations.Analyze(r.Context(), id)
	if err != nil {
		app.interviewError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, report)
}
