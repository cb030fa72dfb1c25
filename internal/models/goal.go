package models

import (
	"log/slog"

	"github.com/myrjola/sleuth/internal/errors"
)

type GoalStatus string

const (
	GoalStatusNotStarted GoalStatus = "not_started"
	GoalStatusInProgress GoalStatus = "in_progress"
	GoalStatusComplete   GoalStatus = "complete"
)

const (
	MinConfidence = 0
	MaxConfidence = 100
	// CompleteConfidence is the confidence at which a goal is considered answered.
	CompleteConfidence = 80
)

// Goal is a tracked investigative question with a confidence score indicating how well it has been answered.
type Goal struct {
	Description string     `json:"description"`
	Confidence  int        `json:"confidence"`
	Status      GoalStatus `json:"status"`
}

// NewGoal creates a goal that has not been worked on yet.
func NewGoal(description string) Goal {
	return Goal{
		Description: description,
		Confidence:  MinConfidence,
		Status:      GoalStatusNotStarted,
	}
}

// ClampConfidence forces confidence into [0, 100].
func ClampConfidence(confidence int) int {
	return max(MinConfidence, min(MaxConfidence, confidence))
}

// ParseGoalStatus validates a status string received from the oracle.
func ParseGoalStatus(s string) (GoalStatus, error) {
	switch status := GoalStatus(s); status {
	case GoalStatusNotStarted, GoalStatusInProgress, GoalStatusComplete:
		return status, nil
	default:
		return "", errors.Wrap(ErrSchemaViolation, "unknown goal status", slog.String("status", s))
	}
}

// StatusConsistent reports whether the goal follows the status policy: a confidence of at least
// CompleteConfidence implies the goal is complete.
func (g Goal) StatusConsistent() bool {
	return g.Confidence < CompleteConfidence || g.Status == GoalStatusComplete
}

// AverageConfidence is the mean confidence over goals, or 0 when there are none.
func AverageConfidence(goals []Goal) float64 {
	if len(goals) == 0 {
		return 0
	}
	sum := 0
	for _, g := range goals {
		sum += g.Confidence
	}
	return float64(sum) / float64(len(goals))
}
