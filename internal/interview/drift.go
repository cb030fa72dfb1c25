package interview

import (
	"context"
	"log/slog"

	"github.com/myrjola/sleuth/internal/ai"
	"github.com/myrjola/sleuth/internal/errors"
)

// DriftPolicy decides on which turns drift detection runs. Every is the period in turns, 0 disables detection.
type DriftPolicy struct {
	Every int
}

func (p DriftPolicy) Due(turn int) bool {
	return p.Every > 0 && turn > 0 && turn%p.Every == 0
}

type driftVerdict struct {
	AddressedQuestion  bool   `json:"addressed_question"`
	DriftReason        string `json:"drift_reason"`
	RedirectSuggestion string `json:"redirect_suggestion"`
}

// DriftDetector checks whether an answer addressed the question asked.
type DriftDetector struct {
	oracle ai.Oracle
	logger *slog.Logger
}

func NewDriftDetector(oracle ai.Oracle, logger *slog.Logger) *DriftDetector {
	return &DriftDetector{
		oracle: oracle,
		logger: logger.With("source", "interview.DriftDetector"),
	}
}

// Redirect returns a suggestion for steering the interview back, or an empty string when the answer addressed the
// question.
func (d *DriftDetector) Redirect(ctx context.Context, tag string, question string, answer string) (string, error) {
	resp, err := d.oracle.Invoke(ctx, ai.Request{
		ContextTag:   tag,
		Instructions: driftInstructions,
		Payload:      driftPrompt(question, answer),
		Images:       nil,
		Tools:        []ai.Tool{driftTool},
	})
	if err != nil {
		return "", errors.Wrap(err, "detect drift")
	}
	var verdict driftVerdict
	if err = resp.Decode(toolDetectDrift, &verdict); err != nil {
		return "", err
	}
	if verdict.AddressedQuestion {
		return "", nil
	}
	d.logger.LogAttrs(ctx, slog.LevelInfo, "answer drifted", slog.String("reason", verdict.DriftReason))
	return verdict.RedirectSuggestion, nil
}
