package interview_test

import (
	"context"
	"io"
	"testing"

	"github.com/myrjola/sleuth/internal/interview"
	"github.com/myrjola/sleuth/internal/models"
	"github.com/myrjola/sleuth/internal/testhelpers"
	"github.com/stretchr/testify/require"
)

func analysisPayload(percentage int, rating int) map[string]any {
	return map[string]any{
		"timeline":  []map[string]any{{"time": "Saturday", "event": "Sam skipped the party"}},
		"key_facts": []string{"Sam went to another party"},
		"gaps":      []string{"Whether Sam was invited elsewhere first"},
		"verdict": map[string]any{
			"primary_responsibility":   "Sam",
			"percentage":               percentage,
			"reasoning":                "Sam chose the other party without telling Alex",
			"contributing_factors":     "Alex 20%: sent the invite late",
			"drama_rating":             rating,
			"drama_rating_explanation": "Hurt feelings but fixable with a talk",
		},
	}
}

func newService(t *testing.T, oracle *fakeOracle) (*interview.Service, *memStore) {
	t.Helper()
	store := newMemStore()
	cfg := interview.Config{FuseExtraction: true, FuseTurn: true, Drift: interview.DriftPolicy{Every: 0}}
	return interview.NewService(store, oracle, cfg, testhelpers.NewLogger(io.Discard)), store
}

func startInput() interview.StartInput {
	return interview.StartInput{
		IncidentName: "The birthday party",
		Participant:  models.Participant{Name: "Alex", Role: "participant"},
		Threshold:    0,
		Report:       interview.Report{Text: "Sam skipped my party.", Images: nil},
	}
}

func TestService_Investigation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	oracle := newFakeOracle().
		on(keyFusedExtraction, structured(keySummary, summaryPayload(2), keyGoals, goalsPayload(5))).
		on(keyQuestion,
			structured(keyQuestion, questionPayload("Did Sam say why?", goalDescriptions[0], 4)),
			structured(keyQuestion, questionPayload("Anything else?", models.WrapUpGoal, 4))).
		on(keyFusedTurn, structured(keyFacts, factsPayload("Sam went to another party"), keyUpdates, updatesPayload(
			goalDescriptions[0], 90, "complete",
		))).
		on(keyAnalysis, structured(keyAnalysis, analysisPayload(80, 6)))
	svc, store := newService(t, oracle)

	s, err := svc.Start(ctx, startInput())
	require.NoError(t, err)
	require.Equal(t, models.DefaultConfidenceThreshold, s.ConfidenceThreshold)
	require.Equal(t, "Did Sam say why?", s.CurrentQuestion)
	require.Equal(t, 1, store.saves)

	loaded, err := svc.Get(ctx, s.ID)
	require.NoError(t, err)
	require.Equal(t, s.ID, loaded.ID)
	require.Len(t, loaded.Goals, 5)

	s, complete, err := svc.Choose(ctx, s.ID, 1)
	require.NoError(t, err)
	require.True(t, complete)
	require.Equal(t, models.SessionStatusComplete, s.Status)
	require.Equal(t, "Option 2", s.Messages[1].Content)

	_, _, err = svc.Answer(ctx, s.ID, models.CustomAnswer("One more thing"))
	require.ErrorIs(t, err, models.ErrInvalidTransition)

	report, err := svc.Analyze(ctx, s.ID)
	require.NoError(t, err)
	require.Equal(t, "Sam", report.Verdict.PrimaryResponsibility)

	// The stored report is reused.
	again, err := svc.Analyze(ctx, s.ID)
	require.NoError(t, err)
	require.Equal(t, report, again)
	analysisCalls := 0
	for _, k := range oracle.keys() {
		if k == keyAnalysis {
			analysisCalls++
		}
	}
	require.Equal(t, 1, analysisCalls)

	sessions, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
}

func TestService_Start_Failures(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		input   func() interview.StartInput
		oracle  *fakeOracle
		wantErr error
	}{
		{
			name: "missing incident name",
			input: func() interview.StartInput {
				in := startInput()
				in.IncidentName = " "
				return in
			},
			oracle:  newFakeOracle(),
			wantErr: models.ErrInvalidInput,
		},
		{
			name: "threshold out of range",
			input: func() interview.StartInput {
				in := startInput()
				in.Threshold = 99
				return in
			},
			oracle:  newFakeOracle(),
			wantErr: models.ErrInvalidInput,
		},
		{
			name:    "oracle failure persists nothing",
			input:   startInput,
			oracle:  newFakeOracle().on(keyFusedExtraction, failure(transportFailure)),
			wantErr: models.ErrOracleTransport,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc, store := newService(t, tt.oracle)
			_, err := svc.Start(context.Background(), tt.input())
			require.ErrorIs(t, err, tt.wantErr)
			require.Equal(t, 0, store.saves)
		})
	}
}

func TestService_PauseResume(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, store := newService(t, newFakeOracle())
	s := activeSession(models.DefaultConfidenceThreshold)
	require.NoError(t, store.Save(ctx, s))

	paused, err := svc.Pause(ctx, s.ID)
	require.NoError(t, err)
	require.Equal(t, models.SessionStatusPaused, paused.Status)

	_, err = svc.Pause(ctx, s.ID)
	require.ErrorIs(t, err, models.ErrInvalidTransition)

	_, _, err = svc.Choose(ctx, s.ID, 0)
	require.ErrorIs(t, err, models.ErrInvalidTransition)

	resumed, err := svc.Resume(ctx, s.ID)
	require.NoError(t, err)
	require.Equal(t, models.SessionStatusActive, resumed.Status)

	_, err = svc.Resume(ctx, s.ID)
	require.ErrorIs(t, err, models.ErrInvalidTransition)

	_, err = svc.Pause(ctx, "unknown")
	require.ErrorIs(t, err, models.ErrSessionNotFound)
}

func TestService_Analyze(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("active investigations are not cached", func(t *testing.T) {
		t.Parallel()
		oracle := newFakeOracle().on(keyAnalysis, structured(keyAnalysis, analysisPayload(70, 4)))
		svc, store := newService(t, oracle)
		s := activeSession(models.DefaultConfidenceThreshold)
		require.NoError(t, store.Save(ctx, s))

		_, err := svc.Analyze(ctx, s.ID)
		require.NoError(t, err)
		loaded, err := svc.Get(ctx, s.ID)
		require.NoError(t, err)
		require.Nil(t, loaded.Analysis)
		require.Equal(t, s.ID, oracle.lastCall(keyAnalysis).ContextTag)
	})

	t.Run("rating out of range", func(t *testing.T) {
		t.Parallel()
		oracle := newFakeOracle().on(keyAnalysis, structured(keyAnalysis, analysisPayload(70, 11)))
		svc, store := newService(t, oracle)
		s := activeSession(models.DefaultConfidenceThreshold)
		require.NoError(t, store.Save(ctx, s))

		_, err := svc.Analyze(ctx, s.ID)
		require.ErrorIs(t, err, models.ErrSchemaViolation)
	})

	t.Run("uninitialized", func(t *testing.T) {
		t.Parallel()
		svc, store := newService(t, newFakeOracle())
		s := newSession()
		require.NoError(t, store.Save(ctx, s))

		_, err := svc.Analyze(ctx, s.ID)
		require.ErrorIs(t, err, models.ErrInvalidTransition)
	})
}
