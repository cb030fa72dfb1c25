package interview

import (
	"context"
	"log/slog"
	"strings"

	"github.com/myrjola/sleuth/internal/ai"
	"github.com/myrjola/sleuth/internal/errors"
	"github.com/myrjola/sleuth/internal/models"
)

const (
	MinGoals = 5
	MaxGoals = 7
)

// Report is the raw incident report supplied by the respondent.
type Report struct {
	Text   string
	Images []ai.Image
}

func (r Report) empty() bool {
	return strings.TrimSpace(r.Text) == "" && len(r.Images) == 0
}

// Extraction is the result of the extraction stage.
type Extraction struct {
	Summary models.ExtractedSummary
	Goals   []models.Goal
}

// extractor is a strategy producing the raw summary and goal descriptions from a report.
type extractor interface {
	extract(ctx context.Context, tag string, report Report) (models.ExtractedSummary, []string, error)
}

// sequentialExtractor extracts the summary first and then generates goals from it.
type sequentialExtractor struct {
	oracle ai.Oracle
}

func (e sequentialExtractor) extract(
	ctx context.Context,
	tag string,
	report Report,
) (models.ExtractedSummary, []string, error) {
	var summary models.ExtractedSummary
	resp, err := e.oracle.Invoke(ctx, ai.Request{
		ContextTag:   tag,
		Instructions: summaryInstructions,
		Payload:      summaryPrompt(report.Text),
		Images:       report.Images,
		Tools:        []ai.Tool{summaryTool},
	})
	if err != nil {
		return summary, nil, errors.Wrap(err, "extract summary")
	}
	if err = resp.Decode(toolExtractSummary, &summary); err != nil {
		return summary, nil, err
	}
	if err = validateSummary(summary); err != nil {
		return summary, nil, err
	}

	resp, err = e.oracle.Invoke(ctx, ai.Request{
		ContextTag:   tag,
		Instructions: goalsInstructions,
		Payload:      goalsPrompt(summary),
		Images:       nil,
		Tools:        []ai.Tool{goalsTool},
	})
	if err != nil {
		return summary, nil, errors.Wrap(err, "generate goals")
	}
	var goals struct {
		Goals []string `json:"goals"`
	}
	if err = resp.Decode(toolGenerateGoals, &goals); err != nil {
		return summary, nil, err
	}
	return summary, goals.Goals, nil
}

// fusedExtractor extracts the summary and generates goals in a single round trip.
type fusedExtractor struct {
	oracle ai.Oracle
}

func (e fusedExtractor) extract(
	ctx context.Context,
	tag string,
	report Report,
) (models.ExtractedSummary, []string, error) {
	var summary models.ExtractedSummary
	resp, err := e.oracle.Invoke(ctx, ai.Request{
		ContextTag:   tag,
		Instructions: extractionInstructions,
		Payload:      extractionPrompt(report.Text),
		Images:       nil,
		Tools:        []ai.Tool{summaryTool, goalsTool},
	})
	if err != nil {
		return summary, nil, errors.Wrap(err, "extract summary and goals")
	}
	if err = resp.Decode(toolExtractSummary, &summary); err != nil {
		return summary, nil, err
	}
	var goals struct {
		Goals []string `json:"goals"`
	}
	if err = resp.Decode(toolGenerateGoals, &goals); err != nil {
		return summary, nil, err
	}
	return summary, goals.Goals, nil
}

// ExtractionStage turns a raw report into a structured summary and the initial goals.
type ExtractionStage struct {
	sequential extractor
	fused      extractor
	fuse       bool
	logger     *slog.Logger
}

// NewExtractionStage creates the stage. With fuse enabled, text-only reports are processed in one oracle round
// trip. Reports with images always take two dependent calls.
func NewExtractionStage(oracle ai.Oracle, fuse bool, logger *slog.Logger) *ExtractionStage {
	return &ExtractionStage{
		sequential: sequentialExtractor{oracle: oracle},
		fused:      fusedExtractor{oracle: oracle},
		fuse:       fuse,
		logger:     logger.With("source", "interview.ExtractionStage"),
	}
}

func (s *ExtractionStage) Extract(ctx context.Context, tag string, report Report) (Extraction, error) {
	if report.empty() {
		return Extraction{}, errors.Wrap(models.ErrInvalidInput, "report has neither text nor images")
	}

	strategy, name := s.sequential, "sequential"
	if s.fuse && len(report.Images) == 0 {
		strategy, name = s.fused, "fused"
	}
	s.logger.LogAttrs(ctx, slog.LevelDebug, "extracting report",
		slog.String("strategy", name), slog.Int("images", len(report.Images)))

	summary, descriptions, err := strategy.extract(ctx, tag, report)
	if err != nil {
		return Extraction{}, err
	}
	if err = validateSummary(summary); err != nil {
		return Extraction{}, err
	}
	goals, err := newGoals(descriptions)
	if err != nil {
		return Extraction{}, err
	}

	s.logger.LogAttrs(ctx, slog.LevelInfo, "report extracted",
		slog.Int("actors", len(summary.Actors)), slog.Int("goals", len(goals)))
	return Extraction{Summary: summary, Goals: goals}, nil
}

func validateSummary(summary models.ExtractedSummary) error {
	if len(summary.Actors) == 0 {
		return errors.Wrap(models.ErrSchemaViolation, "summary without actors")
	}
	return nil
}

func newGoals(descriptions []string) ([]models.Goal, error) {
	if len(descriptions) < MinGoals || len(descriptions) > MaxGoals {
		return nil, errors.Wrap(models.ErrSchemaViolation, "unexpected number of goals",
			slog.Int("goals", len(descriptions)))
	}
	goals := make([]models.Goal, 0, len(descriptions))
	for _, d := range descriptions {
		d = strings.TrimSpace(d)
		if d == "" {
			return nil, errors.Wrap(models.ErrSchemaViolation, "blank goal description")
		}
		goals = append(goals, models.NewGoal(d))
	}
	return goals, nil
}
