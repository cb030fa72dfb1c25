package interview

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/myrjola/sleuth/internal/ai"
	"github.com/myrjola/sleuth/internal/errors"
	"github.com/myrjola/sleuth/internal/models"
)

// Config selects the oracle call strategies of an Orchestrator.
type Config struct {
	// FuseExtraction extracts text-only reports in one round trip.
	FuseExtraction bool
	// FuseTurn processes each answer in one round trip.
	FuseTurn bool
	Drift    DriftPolicy
	// DefaultThreshold replaces a zero confidence threshold when an investigation starts.
	DefaultThreshold int
}

// Orchestrator owns the investigation state machine. A session moves from INIT to ACTIVE with Initialize, stays
// ACTIVE for every answered question and becomes COMPLETE once the selected question targets the wrap-up goal.
//
// Every transition is computed on a draft copy of the session. The caller's session is only replaced when the
// whole transition succeeded, so a failed oracle call leaves it untouched.
type Orchestrator struct {
	extraction *ExtractionStage
	turns      *TurnProcessor
	questions  *QuestionSelector
	drift      *DriftDetector
	policy     DriftPolicy
	now        func() time.Time
	logger     *slog.Logger
}

func NewOrchestrator(oracle ai.Oracle, cfg Config, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		extraction: NewExtractionStage(oracle, cfg.FuseExtraction, logger),
		turns:      NewTurnProcessor(oracle, cfg.FuseTurn, logger),
		questions:  NewQuestionSelector(oracle, logger),
		drift:      NewDriftDetector(oracle, logger),
		policy:     cfg.Drift,
		now:        time.Now,
		logger:     logger.With("source", "interview.Orchestrator"),
	}
}

// Initialize extracts the report, generates the goals and asks the first question.
func (o *Orchestrator) Initialize(ctx context.Context, s *models.Session, report Report) (string, error) {
	if s.Status != models.SessionStatusActive || s.Initialized() {
		return "", errors.Wrap(models.ErrInvalidTransition, "investigation already initialized",
			slog.String("status", string(s.Status)))
	}

	draft := s.Clone()
	draft.Report = report.Text

	extraction, err := o.extraction.Extract(ctx, s.ID, report)
	if err != nil {
		return "", errors.Wrap(err, "initialize investigation")
	}
	draft.ExtractedSummary = &extraction.Summary
	draft.Goals = extraction.Goals

	sel, err := o.questions.Select(ctx, s.ID, selectionInput(draft, ""))
	if err != nil {
		return "", errors.Wrap(err, "initialize investigation")
	}
	sel = ApplyWrapUpOverride(sel, draft.Goals, draft.ConfidenceThreshold)
	if sel.WrapUp() {
		// Nothing has been asked yet so there is nothing to wrap up.
		o.logger.LogAttrs(ctx, slog.LevelWarn, "ignoring wrap-up before the first question")
		if strings.TrimSpace(sel.Question) == "" {
			return "", errors.Wrap(models.ErrSchemaViolation, "blank first question")
		}
	}
	o.ask(draft, sel)

	*s = *draft
	o.logger.LogAttrs(ctx, slog.LevelInfo, "investigation initialized", slog.Int("goals", len(s.Goals)))
	return sel.Question, nil
}

// ProcessAnswer records the answer to the current question and either asks the next question or completes the
// investigation, in which case the returned question is empty and complete is true.
func (o *Orchestrator) ProcessAnswer(
	ctx context.Context,
	s *models.Session,
	answer models.Answer,
) (string, bool, error) {
	if !s.Initialized() || s.Status != models.SessionStatusActive {
		return "", false, errors.Wrap(models.ErrInvalidTransition, "investigation does not accept answers",
			slog.String("status", string(s.Status)), slog.Bool("initialized", s.Initialized()))
	}
	if strings.TrimSpace(answer.Answer) == "" {
		return "", false, errors.Wrap(models.ErrInvalidInput, "empty answer")
	}

	draft := s.Clone()
	draft.TurnCount++
	question := draft.CurrentQuestion
	draft.Messages = append(draft.Messages, models.Message{
		Role:      models.RoleUser,
		Content:   answer.Answer,
		Timestamp: o.now().UTC(),
	})

	result, err := o.turns.Process(ctx, s.ID, question, answer, draft.Goals)
	if err != nil {
		return "", false, errors.Wrap(err, "process answer", slog.Int("turn", draft.TurnCount))
	}
	draft.Facts = append(draft.Facts, result.Facts...)
	draft.Goals = result.Goals

	var redirect string
	if o.policy.Due(draft.TurnCount) {
		if redirect, err = o.drift.Redirect(ctx, s.ID, question, answer.Answer); err != nil {
			return "", false, errors.Wrap(err, "process answer", slog.Int("turn", draft.TurnCount))
		}
	}

	sel, err := o.questions.Select(ctx, s.ID, selectionInput(draft, redirect))
	if err != nil {
		return "", false, errors.Wrap(err, "process answer", slog.Int("turn", draft.TurnCount))
	}
	sel = ApplyWrapUpOverride(sel, draft.Goals, draft.ConfidenceThreshold)

	if sel.WrapUp() {
		draft.Status = models.SessionStatusComplete
		draft.CurrentQuestion = ""
		draft.Answers = nil
		*s = *draft
		o.logger.LogAttrs(ctx, slog.LevelInfo, "investigation complete",
			slog.Int("turn", s.TurnCount), slog.Int("progress", s.Progress()))
		return "", true, nil
	}

	o.ask(draft, sel)
	*s = *draft
	o.logger.LogAttrs(ctx, slog.LevelInfo, "answer processed",
		slog.Int("turn", s.TurnCount),
		slog.Int("new_facts", len(result.Facts)),
		slog.Int("progress", s.Progress()))
	return sel.Question, false, nil
}

func (o *Orchestrator) ask(draft *models.Session, sel Selection) {
	draft.CurrentQuestion = sel.Question
	draft.Answers = sel.Answers
	draft.Messages = append(draft.Messages, models.Message{
		Role:      models.RoleAssistant,
		Content:   sel.Question,
		Timestamp: o.now().UTC(),
	})
}

func selectionInput(s *models.Session, redirect string) SelectionInput {
	return SelectionInput{
		Goals:         s.Goals,
		Facts:         s.Facts,
		Messages:      s.Messages,
		Summary:       s.ExtractedSummary,
		Participant:   s.Participant,
		DriftRedirect: redirect,
	}
}
