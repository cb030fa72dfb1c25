package interview

import (
	"context"
	"log/slog"
	"strings"

	"github.com/myrjola/sleuth/internal/ai"
	"github.com/myrjola/sleuth/internal/errors"
	"github.com/myrjola/sleuth/internal/models"
)

// CandidateAnswers is the number of answers offered with every question.
const CandidateAnswers = 4

// Selection is the next question with its candidate answers.
type Selection struct {
	Question   string          `json:"question"`
	TargetGoal string          `json:"target_goal"`
	Reasoning  string          `json:"reasoning"`
	Answers    []models.Answer `json:"answers"`
}

// WrapUp reports whether the investigation should end instead of asking the question.
func (s Selection) WrapUp() bool {
	return s.TargetGoal == models.WrapUpGoal
}

// SelectionInput is the investigation state the next question is chosen from.
type SelectionInput struct {
	Goals         []models.Goal
	Facts         []models.Fact
	Messages      []models.Message
	Summary       *models.ExtractedSummary
	Participant   models.Participant
	DriftRedirect string
}

// ApplyWrapUpOverride forces the wrap-up target when the average goal confidence exceeds the threshold. Applying
// it more than once yields the same result.
func ApplyWrapUpOverride(sel Selection, goals []models.Goal, threshold int) Selection {
	if models.AverageConfidence(goals) > float64(threshold) {
		sel.TargetGoal = models.WrapUpGoal
	}
	return sel
}

// QuestionSelector picks the next best question.
type QuestionSelector struct {
	oracle ai.Oracle
	logger *slog.Logger
}

func NewQuestionSelector(oracle ai.Oracle, logger *slog.Logger) *QuestionSelector {
	return &QuestionSelector{
		oracle: oracle,
		logger: logger.With("source", "interview.QuestionSelector"),
	}
}

func (q *QuestionSelector) Select(ctx context.Context, tag string, in SelectionInput) (Selection, error) {
	resp, err := q.oracle.Invoke(ctx, ai.Request{
		ContextTag:   tag,
		Instructions: questionInstructions,
		Payload:      questionPrompt(in),
		Images:       nil,
		Tools:        []ai.Tool{questionTool},
	})
	if err != nil {
		return Selection{}, errors.Wrap(err, "select question")
	}

	var sel Selection
	if err = resp.Decode(toolGenerateQuestion, &sel); err != nil {
		return Selection{}, err
	}
	if len(sel.Answers) != CandidateAnswers {
		return Selection{}, errors.Wrap(models.ErrSchemaViolation, "unexpected number of candidate answers",
			slog.Int("answers", len(sel.Answers)))
	}
	if strings.TrimSpace(sel.Question) == "" && !sel.WrapUp() {
		return Selection{}, errors.Wrap(models.ErrSchemaViolation, "blank question")
	}

	q.logger.LogAttrs(ctx, slog.LevelDebug, "question selected",
		slog.String("target_goal", sel.TargetGoal), slog.Bool("redirected", in.DriftRedirect != ""))
	return sel, nil
}
