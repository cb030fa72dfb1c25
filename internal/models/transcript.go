package models

import (
	"log/slog"
	"time"

	"github.com/myrjola/sleuth/internal/errors"
)

type FactConfidence string

const (
	FactConfidenceCertain   FactConfidence = "certain"
	FactConfidenceUncertain FactConfidence = "uncertain"
)

// FactSourceUser marks facts derived from the respondent's answers.
const FactSourceUser = "user"

// ParseFactConfidence validates a fact confidence string received from the oracle.
func ParseFactConfidence(s string) (FactConfidence, error) {
	switch c := FactConfidence(s); c {
	case FactConfidenceCertain, FactConfidenceUncertain:
		return c, nil
	default:
		return "", errors.Wrap(ErrSchemaViolation, "unknown fact confidence", slog.String("confidence", s))
	}
}

// Fact is an atomic claim derived from a respondent's answer. Facts are append-only.
type Fact struct {
	Topic      string         `json:"topic"`
	Claim      string         `json:"claim"`
	Source     string         `json:"source"`
	Timestamp  string         `json:"timestamp,omitempty"`
	Confidence FactConfidence `json:"confidence"`
}

type Role string

const (
	RoleAssistant Role = "assistant"
	RoleUser      Role = "user"
)

// Message is one entry of the interview transcript.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Answer is a candidate answer offered to the respondent, or the respondent's own words.
type Answer struct {
	Answer    string `json:"answer"`
	Reasoning string `json:"reasoning"`
}

// CustomAnswerReasoning is attached to answers the respondent typed instead of picking a candidate.
const CustomAnswerReasoning = "Respondent wrote their own answer instead of choosing one of the offered options"

// CustomAnswer wraps free text from the respondent into an Answer.
func CustomAnswer(text string) Answer {
	return Answer{
		Answer:    text,
		Reasoning: CustomAnswerReasoning,
	}
}
