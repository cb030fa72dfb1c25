package interview

import (
	"context"
	"log/slog"
	"strings"

	"github.com/myrjola/sleuth/internal/ai"
	"github.com/myrjola/sleuth/internal/errors"
	"github.com/myrjola/sleuth/internal/logging"
	"github.com/myrjola/sleuth/internal/models"
)

// Store persists sessions.
type Store interface {
	// Create constructs a new active session. It is persisted on the first Save.
	Create(incidentName string, participant models.Participant, threshold int) (*models.Session, error)
	Save(ctx context.Context, s *models.Session) error
	// Load returns models.ErrSessionNotFound for unknown identifiers.
	Load(ctx context.Context, id string) (*models.Session, error)
	// List returns sessions newest first, skipping corrupt records.
	List(ctx context.Context) ([]*models.Session, error)
}

// StartInput is what a respondent supplies to open an investigation.
type StartInput struct {
	IncidentName string
	Participant  models.Participant
	// Threshold is the confidence threshold. Zero selects the configured default.
	Threshold int
	Report    Report
}

// Service runs one orchestrator transition per request: load, transition, save.
type Service struct {
	store        Store
	orchestrator *Orchestrator
	analyst      *Analyst
	threshold    int
	logger       *slog.Logger
}

func NewService(store Store, oracle ai.Oracle, cfg Config, logger *slog.Logger) *Service {
	threshold := cfg.DefaultThreshold
	if threshold == 0 {
		threshold = models.DefaultConfidenceThreshold
	}
	return &Service{
		store:        store,
		threshold:    threshold,
		orchestrator: NewOrchestrator(oracle, cfg, logger),
		analyst:      NewAnalyst(oracle, logger),
		logger:       logger.With("source", "interview.Service"),
	}
}

// Start creates and initializes an investigation. Nothing is persisted when initialization fails.
func (svc *Service) Start(ctx context.Context, in StartInput) (*models.Session, error) {
	if strings.TrimSpace(in.IncidentName) == "" {
		return nil, errors.Wrap(models.ErrInvalidInput, "incident name is required")
	}
	threshold := in.Threshold
	if threshold == 0 {
		threshold = svc.threshold
	}
	s, err := svc.store.Create(strings.TrimSpace(in.IncidentName), in.Participant, threshold)
	if err != nil {
		return nil, errors.Wrap(err, "create session")
	}
	ctx = logging.WithAttrs(ctx, slog.String("session_id", s.ID))

	if _, err = svc.orchestrator.Initialize(ctx, s, in.Report); err != nil {
		return nil, err
	}
	if err = svc.store.Save(ctx, s); err != nil {
		return nil, errors.Wrap(err, "save session")
	}
	return s, nil
}

// Answer processes the respondent's answer to the current question of session id.
func (svc *Service) Answer(ctx context.Context, id string, answer models.Answer) (*models.Session, bool, error) {
	ctx = logging.WithAttrs(ctx, slog.String("session_id", id))
	s, err := svc.store.Load(ctx, id)
	if err != nil {
		return nil, false, err
	}
	_, complete, err := svc.orchestrator.ProcessAnswer(ctx, s, answer)
	if err != nil {
		return nil, false, err
	}
	if err = svc.store.Save(ctx, s); err != nil {
		return nil, false, errors.Wrap(err, "save session")
	}
	return s, complete, nil
}

// Choose answers the current question with the candidate at index choice.
func (svc *Service) Choose(ctx context.Context, id string, choice int) (*models.Session, bool, error) {
	s, err := svc.store.Load(ctx, id)
	if err != nil {
		return nil, false, err
	}
	answer, err := s.Candidate(choice)
	if err != nil {
		return nil, false, err
	}
	return svc.Answer(ctx, id, answer)
}

func (svc *Service) Get(ctx context.Context, id string) (*models.Session, error) {
	return svc.store.Load(ctx, id) //nolint:wrapcheck // store errors are annotated already.
}

func (svc *Service) List(ctx context.Context) ([]*models.Session, error) {
	return svc.store.List(ctx) //nolint:wrapcheck // store errors are annotated already.
}

// Pause freezes an active investigation.
func (svc *Service) Pause(ctx context.Context, id string) (*models.Session, error) {
	return svc.setStatus(ctx, id, models.SessionStatusActive, models.SessionStatusPaused)
}

// Resume unfreezes a paused investigation.
func (svc *Service) Resume(ctx context.Context, id string) (*models.Session, error) {
	return svc.setStatus(ctx, id, models.SessionStatusPaused, models.SessionStatusActive)
}

func (svc *Service) setStatus(
	ctx context.Context,
	id string,
	from models.SessionStatus,
	to models.SessionStatus,
) (*models.Session, error) {
	ctx = logging.WithAttrs(ctx, slog.String("session_id", id))
	s, err := svc.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.Status != from {
		return nil, errors.Wrap(models.ErrInvalidTransition, "unexpected session status",
			slog.String("status", string(s.Status)), slog.String("want", string(from)))
	}
	s.Status = to
	if err = svc.store.Save(ctx, s); err != nil {
		return nil, errors.Wrap(err, "save session")
	}
	svc.logger.LogAttrs(ctx, slog.LevelInfo, "session status changed",
		slog.String("from", string(from)), slog.String("to", string(to)))
	return s, nil
}

// Analyze writes the closing report. Investigations can be analyzed at any point after initialization, but only
// the report of a complete investigation is stored and reused.
func (svc *Service) Analyze(ctx context.Context, id string) (models.AnalysisReport, error) {
	ctx = logging.WithAttrs(ctx, slog.String("session_id", id))
	s, err := svc.store.Load(ctx, id)
	if err != nil {
		return models.AnalysisReport{}, err
	}
	if !s.Initialized() {
		return models.AnalysisReport{}, errors.Wrap(models.ErrInvalidTransition, "investigation not initialized")
	}
	complete := s.Status == models.SessionStatusComplete
	if complete && s.Analysis != nil {
		return *s.Analysis, nil
	}

	report, err := svc.analyst.Analyze(ctx, s)
	if err != nil {
		return models.AnalysisReport{}, err
	}
	if complete {
		s.Analysis = &report
		if err = svc.store.Save(ctx, s); err != nil {
			return models.AnalysisReport{}, errors.Wrap(err, "save session")
		}
	}
	return report, nil
}
