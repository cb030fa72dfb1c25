package models

import (
	"log/slog"
	"slices"
	"time"

	"github.com/myrjola/sleuth/internal/errors"
)

type SessionStatus string

const (
	SessionStatusActive   SessionStatus = "active"
	SessionStatusPaused   SessionStatus = "paused"
	SessionStatusComplete SessionStatus = "complete"
)

const (
	MinConfidenceThreshold     = 20
	MaxConfidenceThreshold     = 95
	DefaultConfidenceThreshold = 90
)

// WrapUpGoal is the target goal signalling that the investigation should end.
const WrapUpGoal = "wrap_up"

// ValidateThreshold checks that the confidence threshold is within the allowed range.
func ValidateThreshold(threshold int) error {
	if threshold < MinConfidenceThreshold || threshold > MaxConfidenceThreshold {
		return errors.Wrap(ErrInvalidInput, "confidence threshold out of range",
			slog.Int("threshold", threshold),
			slog.Int("min", MinConfidenceThreshold),
			slog.Int("max", MaxConfidenceThreshold))
	}
	return nil
}

// ParticipantRole is a known relationship of the respondent to the incident.
type ParticipantRole struct {
	Name        string
	Description string
}

var ParticipantRoles = []ParticipantRole{
	{Name: "participant", Description: "directly involved in the incident"},
	{Name: "witness", Description: "witnessed the incident firsthand"},
	{Name: "secondhand", Description: "heard about the incident from someone else"},
	{Name: "friend", Description: "friends with someone involved in the incident"},
}

// RoleDescription describes a known role. Unknown roles are passed to the oracle as is.
func RoleDescription(role string) (string, bool) {
	for _, r := range ParticipantRoles {
		if r.Name == role {
			return r.Description, true
		}
	}
	return "", false
}

// Participant describes who is being interviewed and how they relate to the incident.
type Participant struct {
	Name string `json:"name"`
	// Role is usually one of participant, witness, secondhand or friend.
	Role string `json:"role"`
}

// Session is the aggregate root of one investigation and the unit of persistence.
type Session struct {
	ID                  string            `json:"session_id"`
	IncidentName        string            `json:"incident_name"`
	CreatedAt           time.Time         `json:"created_at"`
	Status              SessionStatus     `json:"status"`
	Report              string            `json:"summary"`
	ExtractedSummary    *ExtractedSummary `json:"extracted_summary"`
	Participant         Participant       `json:"participant"`
	ConfidenceThreshold int               `json:"confidence_threshold"`
	Goals               []Goal            `json:"goals"`
	Facts               []Fact            `json:"facts"`
	Messages            []Message         `json:"messages"`
	Answers             []Answer          `json:"answers"`
	CurrentQuestion     string            `json:"current_question"`
	TurnCount           int               `json:"turn_count"`
	Analysis            *AnalysisReport   `json:"analysis,omitempty"`
}

// Initialized reports whether the investigation has left the INIT state.
func (s *Session) Initialized() bool {
	return s.ExtractedSummary != nil
}

// Progress is the average goal confidence rounded down, as shown in listings.
func (s *Session) Progress() int {
	return int(AverageConfidence(s.Goals))
}

// Candidate returns the candidate answer at index choice, counting from zero.
func (s *Session) Candidate(choice int) (Answer, error) {
	if choice < 0 || choice >= len(s.Answers) {
		return Answer{}, errors.Wrap(ErrInvalidInput, "no such candidate answer",
			slog.Int("choice", choice), slog.Int("candidates", len(s.Answers)))
	}
	return s.Answers[choice], nil
}

// Clone returns a deep copy of the session so that a turn can be computed on a draft.
func (s *Session) Clone() *Session {
	c := *s
	c.Goals = slices.Clone(s.Goals)
	c.Facts = slices.Clone(s.Facts)
	c.Messages = slices.Clone(s.Messages)
	c.Answers = slices.Clone(s.Answers)
	if s.ExtractedSummary != nil {
		summary := s.ExtractedSummary.clone()
		c.ExtractedSummary = &summary
	}
	if s.Analysis != nil {
		analysis := s.Analysis.clone()
		c.Analysis = &analysis
	}
	return &c
}

func (e ExtractedSummary) clone() ExtractedSummary {
	c := e
	c.Actors = make([]Actor, len(e.Actors))
	for i, a := range e.Actors {
		a.Relationships = slices.Clone(a.Relationships)
		a.EmotionalState = slices.Clone(a.EmotionalState)
		c.Actors[i] = a
	}
	c.Conflict.Secondary = slices.Clone(e.Conflict.Secondary)
	c.Details.TimelineMarkers = slices.Clone(e.Details.TimelineMarkers)
	c.Details.LocationContext = slices.Clone(e.Details.LocationContext)
	c.Details.CommunicationHistory = slices.Clone(e.Details.CommunicationHistory)
	c.MissingInfo = slices.Clone(e.MissingInfo)
	return c
}

func (a AnalysisReport) clone() AnalysisReport {
	c := a
	c.Timeline = slices.Clone(a.Timeline)
	c.KeyFacts = slices.Clone(a.KeyFacts)
	c.Gaps = slices.Clone(a.Gaps)
	return c
}
