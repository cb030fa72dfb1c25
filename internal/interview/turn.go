package interview

import (
	"context"
	"log/slog"

	"github.com/myrjola/sleuth/internal/ai"
	"github.com/myrjola/sleuth/internal/errors"
	"github.com/myrjola/sleuth/internal/models"
)

// GoalUpdate is the oracle's new assessment of one goal, keyed by the goal description.
type GoalUpdate struct {
	Goal       string `json:"goal"`
	Confidence int    `json:"confidence"`
	Status     string `json:"status"`
	Reasoning  string `json:"reasoning"`
}

type rawFact struct {
	Topic      string `json:"topic"`
	Claim      string `json:"claim"`
	Timestamp  string `json:"timestamp"`
	Confidence string `json:"confidence"`
}

// TurnResult holds the facts extracted from one answer and the full updated goal list.
type TurnResult struct {
	Facts []models.Fact
	Goals []models.Goal
}

// turnStrategy extracts facts and proposes goal updates for one answer.
type turnStrategy interface {
	process(ctx context.Context, tag string, question string, answer models.Answer,
		goals []models.Goal) ([]models.Fact, []GoalUpdate, error)
}

// fusedTurn extracts facts and updates goals in one round trip.
type fusedTurn struct {
	oracle ai.Oracle
}

func (t fusedTurn) process(
	ctx context.Context,
	tag string,
	question string,
	answer models.Answer,
	goals []models.Goal,
) ([]models.Fact, []GoalUpdate, error) {
	resp, err := t.oracle.Invoke(ctx, ai.Request{
		ContextTag:   tag,
		Instructions: turnInstructions,
		Payload:      turnPrompt(question, answer, goals),
		Images:       nil,
		Tools:        []ai.Tool{factsTool, goalUpdatesTool},
	})
	if err != nil {
		return nil, nil, errors.Wrap(err, "process turn")
	}
	facts, err := decodeFacts(resp)
	if err != nil {
		return nil, nil, err
	}
	updates, err := decodeGoalUpdates(resp)
	if err != nil {
		return nil, nil, err
	}
	return facts, updates, nil
}

// sequentialTurn extracts facts first and asks for goal updates only when there are new facts.
type sequentialTurn struct {
	oracle ai.Oracle
}

func (t sequentialTurn) process(
	ctx context.Context,
	tag string,
	question string,
	answer models.Answer,
	goals []models.Goal,
) ([]models.Fact, []GoalUpdate, error) {
	resp, err := t.oracle.Invoke(ctx, ai.Request{
		ContextTag:   tag,
		Instructions: factsInstructions,
		Payload:      factsPrompt(question, answer),
		Images:       nil,
		Tools:        []ai.Tool{factsTool},
	})
	if err != nil {
		return nil, nil, errors.Wrap(err, "extract facts")
	}
	facts, err := decodeFacts(resp)
	if err != nil {
		return nil, nil, err
	}
	if len(facts) == 0 {
		return nil, nil, nil
	}

	resp, err = t.oracle.Invoke(ctx, ai.Request{
		ContextTag:   tag,
		Instructions: goalUpdatesInstructions,
		Payload:      goalUpdatesPrompt(goals, facts),
		Images:       nil,
		Tools:        []ai.Tool{goalUpdatesTool},
	})
	if err != nil {
		return nil, nil, errors.Wrap(err, "update goals")
	}
	updates, err := decodeGoalUpdates(resp)
	if err != nil {
		return nil, nil, err
	}
	return facts, updates, nil
}

func decodeFacts(resp ai.Response) ([]models.Fact, error) {
	var payload struct {
		Facts []rawFact `json:"facts"`
	}
	if err := resp.Decode(toolExtractFacts, &payload); err != nil {
		return nil, err
	}
	facts := make([]models.Fact, 0, len(payload.Facts))
	for _, f := range payload.Facts {
		confidence, err := models.ParseFactConfidence(f.Confidence)
		if err != nil {
			return nil, err
		}
		facts = append(facts, models.Fact{
			Topic:      f.Topic,
			Claim:      f.Claim,
			Source:     models.FactSourceUser,
			Timestamp:  f.Timestamp,
			Confidence: confidence,
		})
	}
	return facts, nil
}

func decodeGoalUpdates(resp ai.Response) ([]GoalUpdate, error) {
	var payload struct {
		GoalUpdates []GoalUpdate `json:"goal_updates"`
	}
	if err := resp.Decode(toolUpdateGoals, &payload); err != nil {
		return nil, err
	}
	return payload.GoalUpdates, nil
}

// ApplyGoalUpdates returns a new goal list where every goal with a matching update takes the update's confidence,
// clamped into [0, 100], and status. Goals without an update are carried forward unchanged and updates for
// unknown goals are ignored, so the number of goals never changes. The input slice is not modified.
func ApplyGoalUpdates(goals []models.Goal, updates []GoalUpdate) ([]models.Goal, error) {
	byDescription := make(map[string]GoalUpdate, len(updates))
	for _, u := range updates {
		byDescription[u.Goal] = u
	}

	updated := make([]models.Goal, len(goals))
	for i, g := range goals {
		u, ok := byDescription[g.Description]
		if !ok {
			updated[i] = g
			continue
		}
		status, err := models.ParseGoalStatus(u.Status)
		if err != nil {
			return nil, errors.Wrap(err, "apply goal update", slog.String("goal", g.Description))
		}
		updated[i] = models.Goal{
			Description: g.Description,
			Confidence:  models.ClampConfidence(u.Confidence),
			Status:      status,
		}
	}
	return updated, nil
}

// TurnProcessor turns one answer into new facts and updated goal confidences.
type TurnProcessor struct {
	strategy turnStrategy
	logger   *slog.Logger
}

// NewTurnProcessor creates the processor. With fuse enabled each turn takes exactly one oracle round trip.
func NewTurnProcessor(oracle ai.Oracle, fuse bool, logger *slog.Logger) *TurnProcessor {
	var strategy turnStrategy = sequentialTurn{oracle: oracle}
	if fuse {
		strategy = fusedTurn{oracle: oracle}
	}
	return &TurnProcessor{
		strategy: strategy,
		logger:   logger.With("source", "interview.TurnProcessor"),
	}
}

func (p *TurnProcessor) Process(
	ctx context.Context,
	tag string,
	question string,
	answer models.Answer,
	goals []models.Goal,
) (TurnResult, error) {
	facts, updates, err := p.strategy.process(ctx, tag, question, answer, goals)
	if err != nil {
		return TurnResult{}, err
	}
	updated, err := ApplyGoalUpdates(goals, updates)
	if err != nil {
		return TurnResult{}, err
	}
	for _, g := range updated {
		if !g.StatusConsistent() {
			p.logger.LogAttrs(ctx, slog.LevelWarn, "goal status inconsistent with confidence",
				slog.String("goal", g.Description),
				slog.Int("confidence", g.Confidence),
				slog.String("status", string(g.Status)))
		}
	}
	p.logger.LogAttrs(ctx, slog.LevelDebug, "turn processed",
		slog.Int("facts", len(facts)), slog.Int("updates", len(updates)))
	return TurnResult{Facts: facts, Goals: updated}, nil
}
