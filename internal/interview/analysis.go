package interview

import (
	"context"
	"log/slog"

	"github.com/myrjola/sleuth/internal/ai"
	"github.com/myrjola/sleuth/internal/errors"
	"github.com/myrjola/sleuth/internal/models"
)

const (
	minDramaRating = 1
	maxDramaRating = 10
)

// Analyst writes the closing report of an investigation.
type Analyst struct {
	oracle ai.Oracle
	logger *slog.Logger
}

func NewAnalyst(oracle ai.Oracle, logger *slog.Logger) *Analyst {
	return &Analyst{
		oracle: oracle,
		logger: logger.With("source", "interview.Analyst"),
	}
}

func (a *Analyst) Analyze(ctx context.Context, s *models.Session) (models.AnalysisReport, error) {
	resp, err := a.oracle.Invoke(ctx, ai.Request{
		ContextTag:   s.ID,
		Instructions: analysisInstructions,
		Payload:      analysisPrompt(s),
		Images:       nil,
		Tools:        []ai.Tool{analysisTool},
	})
	if err != nil {
		return models.AnalysisReport{}, errors.Wrap(err, "analyze investigation")
	}
	var report models.AnalysisReport
	if err = resp.Decode(toolAnalyze, &report); err != nil {
		return models.AnalysisReport{}, err
	}
	v := report.Verdict
	if v.Percentage < models.MinConfidence || v.Percentage > models.MaxConfidence {
		return models.AnalysisReport{}, errors.Wrap(models.ErrSchemaViolation, "responsibility out of range",
			slog.Int("percentage", v.Percentage))
	}
	if v.DramaRating < minDramaRating || v.DramaRating > maxDramaRating {
		return models.AnalysisReport{}, errors.Wrap(models.ErrSchemaViolation, "drama rating out of range",
			slog.Int("drama_rating", v.DramaRating))
	}
	a.logger.LogAttrs(ctx, slog.LevelInfo, "investigation analyzed",
		slog.String("primary_responsibility", v.PrimaryResponsibility), slog.Int("drama_rating", v.DramaRating))
	return report, nil
}
