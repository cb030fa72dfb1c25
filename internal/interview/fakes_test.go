package interview_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/myrjola/sleuth/internal/ai"
	"github.com/myrjola/sleuth/internal/errors"
	"github.com/myrjola/sleuth/internal/models"
)

const (
	keyFusedExtraction = "extract_summary_structure+generate_investigation_goals"
	keySummary         = "extract_summary_structure"
	keyGoals           = "generate_investigation_goals"
	keyFusedTurn       = "extract_facts+update_goal_progress"
	keyFacts           = "extract_facts"
	keyUpdates         = "update_goal_progress"
	keyQuestion        = "generate_question_with_answers"
	keyDrift           = "detect_answer_drift"
	keyAnalysis        = "generate_analysis_report"
)

type reply struct {
	structured map[string]any
	err        error
}

// fakeOracle replays scripted replies per tool set. The last reply of a tool set is repeated.
type fakeOracle struct {
	mu      sync.Mutex
	replies map[string][]reply
	calls   []ai.Request
}

func newFakeOracle() *fakeOracle {
	return &fakeOracle{replies: make(map[string][]reply)}
}

func (f *fakeOracle) on(key string, replies ...reply) *fakeOracle {
	f.replies[key] = append(f.replies[key], replies...)
	return f
}

func toolKey(tools []ai.Tool) string {
	names := make([]string, len(tools))
	for i, t := range tools {
		names[i] = t.Name
	}
	return strings.Join(names, "+")
}

func (f *fakeOracle) Invoke(_ context.Context, req ai.Request) (ai.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	key := toolKey(req.Tools)
	queue := f.replies[key]
	if len(queue) == 0 {
		return ai.Response{}, errors.Wrap(models.ErrOracleTransport, "no scripted reply", slog.String("tools", key))
	}
	r := queue[0]
	if len(queue) > 1 {
		f.replies[key] = queue[1:]
	}
	if r.err != nil {
		return ai.Response{}, r.err
	}
	resp := ai.Response{Text: "", Structured: make(map[string]json.RawMessage, len(r.structured))}
	for name, v := range r.structured {
		b, err := json.Marshal(v)
		if err != nil {
			panic(err)
		}
		resp.Structured[name] = b
	}
	return resp, nil
}

func (f *fakeOracle) keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]string, len(f.calls))
	for i, c := range f.calls {
		keys[i] = toolKey(c.Tools)
	}
	return keys
}

func (f *fakeOracle) lastCall(key string) ai.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.calls) - 1; i >= 0; i-- {
		if toolKey(f.calls[i].Tools) == key {
			return f.calls[i]
		}
	}
	return ai.Request{}
}

func structured(pairs ...any) reply {
	r := reply{structured: make(map[string]any), err: nil}
	for i := 0; i < len(pairs); i += 2 {
		r.structured[pairs[i].(string)] = pairs[i+1]
	}
	return r
}

func failure(err error) reply {
	return reply{structured: nil, err: err}
}

var transportFailure = errors.Wrap(models.ErrOracleTransport, "connection reset")

func summaryPayload(actors int) map[string]any {
	list := make([]map[string]any, 0, actors)
	for i := range actors {
		list = append(list, map[string]any{
			"name":            fmt.Sprintf("Actor %d", i+1),
			"role":            "friend",
			"relationships":   []string{"friend of Alex"},
			"emotional_state": []string{"hurt"},
		})
	}
	return map[string]any{
		"actors": list,
		"point_of_conflict": map[string]any{
			"primary":   "Sam skipped Alex's birthday party",
			"secondary": []string{"Sam posted photos from another party"},
		},
		"general_details": map[string]any{
			"timeline_markers":      []string{"last Saturday"},
			"location_context":      []string{"Alex's flat"},
			"communication_history": []string{"group chat"},
			"emotional_atmosphere":  "tense",
		},
		"missing_info": []string{"Why Sam stayed away"},
	}
}

var goalDescriptions = []string{
	"Why did Sam skip the party",
	"Did Sam tell anyone beforehand",
	"How did Alex find out",
	"Who else knew about the other party",
	"What was said afterwards",
	"Has anyone apologized",
	"Who posted the photos",
}

func goalsPayload(n int) map[string]any {
	return map[string]any{"goals": goalDescriptions[:n]}
}

func questionPayload(question string, target string, answers int) map[string]any {
	list := make([]map[string]any, 0, answers)
	for i := range answers {
		list = append(list, map[string]any{
			"answer":    fmt.Sprintf("Option %d", i+1),
			"reasoning": fmt.Sprintf("Reveals detail %d", i+1),
		})
	}
	return map[string]any{
		"question":    question,
		"target_goal": target,
		"reasoning":   "Lowest confidence goal",
		"answers":     list,
	}
}

func factsPayload(claims ...string) map[string]any {
	facts := make([]map[string]any, 0, len(claims))
	for _, c := range claims {
		facts = append(facts, map[string]any{
			"topic":      "party",
			"claim":      c,
			"timestamp":  "",
			"confidence": "certain",
		})
	}
	return map[string]any{"facts": facts}
}

func updatesPayload(updates ...any) map[string]any {
	list := make([]map[string]any, 0, len(updates)/3)
	for i := 0; i < len(updates); i += 3 {
		list = append(list, map[string]any{
			"goal":       updates[i],
			"confidence": updates[i+1],
			"status":     updates[i+2],
			"reasoning":  "New facts",
		})
	}
	return map[string]any{"goal_updates": list}
}

func candidateAnswers() []models.Answer {
	return []models.Answer{
		{Answer: "Sam was sick", Reasoning: "Innocent explanation"},
		{Answer: "Sam went to another party", Reasoning: "Confirms the betrayal"},
		{Answer: "Sam never got the invite", Reasoning: "Shifts blame"},
		{Answer: "I don't know", Reasoning: "Uncertain"},
	}
}

// activeSession is an initialized investigation with an average goal confidence of 60.
func activeSession(threshold int) *models.Session {
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return &models.Session{
		ID:           "session-1",
		IncidentName: "The birthday party",
		CreatedAt:    created,
		Status:       models.SessionStatusActive,
		Report:       "Sam skipped my party.",
		ExtractedSummary: &models.ExtractedSummary{
			Actors: []models.Actor{
				{Name: "Sam", Role: "guest", Relationships: []string{"friend of Alex"}, EmotionalState: nil},
			},
			Conflict:    models.Conflict{Primary: "Skipped party", Secondary: nil},
			Details:     models.Details{}, //nolint:exhaustruct // empty details.
			MissingInfo: nil,
		},
		Participant:         models.Participant{Name: "Alex", Role: "participant"},
		ConfidenceThreshold: threshold,
		Goals: []models.Goal{
			{Description: "A", Confidence: 60, Status: models.GoalStatusInProgress},
			{Description: "B", Confidence: 80, Status: models.GoalStatusComplete},
			{Description: "C", Confidence: 40, Status: models.GoalStatusInProgress},
		},
		Facts: []models.Fact{
			{Topic: "party", Claim: "Sam did not come", Source: "user", Timestamp: "", Confidence: "certain"},
		},
		Messages: []models.Message{
			{Role: models.RoleAssistant, Content: "Did Sam say why?", Timestamp: created},
		},
		Answers:         candidateAnswers(),
		CurrentQuestion: "Did Sam say why?",
		TurnCount:       0,
		Analysis:        nil,
	}
}

// memStore is an in-memory Store.
type memStore struct {
	mu       sync.Mutex
	sessions map[string][]byte
	order    []string
	created  int
	saves    int
}

func newMemStore() *memStore {
	return &memStore{sessions: make(map[string][]byte)}
}

func (m *memStore) Create(
	incidentName string,
	participant models.Participant,
	threshold int,
) (*models.Session, error) {
	if err := models.ValidateThreshold(threshold); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created++
	return &models.Session{ //nolint:exhaustruct // zero values are the initial state.
		ID:                  fmt.Sprintf("session-%d", m.created),
		IncidentName:        incidentName,
		CreatedAt:           time.Now().UTC(),
		Status:              models.SessionStatusActive,
		Participant:         participant,
		ConfidenceThreshold: threshold,
	}, nil
}

func (m *memStore) Save(_ context.Context, s *models.Session) error {
	b, err := json.Marshal(s)
	if err != nil {
		return errors.Wrap(err, "marshal session")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[s.ID]; !ok {
		m.order = append(m.order, s.ID)
	}
	m.sessions[s.ID] = b
	m.saves++
	return nil
}

func (m *memStore) Load(_ context.Context, id string) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.sessions[id]
	if !ok {
		return nil, errors.Wrap(models.ErrSessionNotFound, "load session", slog.String("id", id))
	}
	var s models.Session
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, errors.Wrap(err, "unmarshal session")
	}
	return &s, nil
}

func (m *memStore) List(ctx context.Context) ([]*models.Session, error) {
	m.mu.Lock()
	ids := make([]string, len(m.order))
	copy(ids, m.order)
	m.mu.Unlock()
	sessions := make([]*models.Session, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		s, err := m.Load(ctx, ids[i])
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, nil
}
