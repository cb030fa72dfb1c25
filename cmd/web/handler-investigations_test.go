package main

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"testing"

	"github.com/myrjola/sleuth/internal/e2etest"
	"github.com/myrjola/sleuth/internal/models"
	"github.com/myrjola/sleuth/internal/testhelpers"
	"github.com/stretchr/testify/require"
)

// pngHeader is enough for content sniffing to recognize a PNG image.
var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func startRequestBody(report string, images ...[]byte) map[string]any {
	encoded := make([]string, 0, len(images))
	for _, img := range images {
		encoded = append(encoded, base64.StdEncoding.EncodeToString(img))
	}
	return map[string]any{
		"incident_name": "Birthday party",
		"participant":   map[string]any{"name": "Alex", "role": "participant"},
		"report":        report,
		"images":        encoded,
	}
}

func startInvestigation(t *testing.T, server *testServer) investigationResponse {
	t.Helper()
	status, body := server.do(t, http.MethodPost, "/api/investigations",
		startRequestBody("Sam skipped my birthday party and posted photos from another party."))
	require.Equal(t, http.StatusCreated, status, string(body))
	return decodeBody[investigationResponse](t, body)
}

func TestHealthy(t *testing.T) {
	t.Parallel()
	server := startTestServer(t, io.Discard, testLookupEnv(newFakeOracle(t).URL()))

	status, body := server.do(t, http.MethodGet, "/api/healthy", nil)
	require.Equal(t, http.StatusOK, status)
	require.JSONEq(t, `{"status":"ok"}`, string(body))
}

func TestRun_MissingAPIKey(t *testing.T) {
	t.Parallel()
	lookupEnv := func(key string) (string, bool) {
		if key == "SLEUTH_SQLITE_URL" {
			return ":memory:", true
		}
		return "", false
	}
	err := run(context.Background(), testhelpers.NewLogger(io.Discard), lookupEnv)
	require.ErrorContains(t, err, "OPENAI_API_KEY")
}

func TestInvestigation_Flow(t *testing.T) {
	t.Parallel()
	oracle := newFakeOracle(t)
	server := startTestServer(t, io.Discard, testLookupEnv(oracle.URL()))

	// Screenshots are extracted without fusing the summary and goal calls.
	status, body := server.do(t, http.MethodPost, "/api/investigations",
		startRequestBody("Sam skipped my birthday party.", pngHeader))
	require.Equal(t, http.StatusCreated, status, string(body))
	started := decodeBody[investigationResponse](t, body)
	require.Equal(t, models.SessionStatusActive, started.Status)
	require.Equal(t, "Where was Sam on Saturday?", started.Question)
	require.Len(t, started.Answers, 4)
	require.Len(t, started.Goals, len(fakeGoals))
	require.Equal(t, models.DefaultConfidenceThreshold, started.ConfidenceThreshold)
	require.Equal(t, 1, oracle.callCount("extract_summary_structure"))
	require.Equal(t, 1, oracle.callCount("generate_investigation_goals"))

	path := "/api/investigations/" + started.ID

	status, body = server.do(t, http.MethodPost, path+"/answers", map[string]any{"choice": 1})
	require.Equal(t, http.StatusOK, status, string(body))
	answered := decodeBody[investigationResponse](t, body)
	require.False(t, answered.Complete)
	require.Equal(t, 1, answered.TurnCount)
	require.Equal(t, 50, answered.Progress)
	require.Len(t, answered.Facts, 1)

	// Analysis is available before completion.
	status, body = server.do(t, http.MethodGet, path+"/analysis", nil)
	require.Equal(t, http.StatusOK, status, string(body))
	require.Equal(t, "Sam", decodeBody[models.AnalysisReport](t, body).Verdict.PrimaryResponsibility)

	// Once every goal is answered the investigation wraps up.
	oracle.set("update_goal_progress", goalUpdates(100, "complete"))
	status, body = server.do(t, http.MethodPost, path+"/answers", map[string]any{"custom": "At Jo's place"})
	require.Equal(t, http.StatusOK, status, string(body))
	completed := decodeBody[investigationResponse](t, body)
	require.True(t, completed.Complete)
	require.Equal(t, models.SessionStatusComplete, completed.Status)
	require.Empty(t, completed.Question)
	require.Empty(t, completed.Answers)
	require.Equal(t, 100, completed.Progress)

	status, body = server.do(t, http.MethodPost, path+"/answers", map[string]any{"custom": "More"})
	require.Equal(t, http.StatusConflict, status, string(body))
	require.Equal(t, "invalid_transition", decodeBody[errorResponse](t, body).Kind)

	// The report of a complete investigation is generated once.
	for range 2 {
		status, body = server.do(t, http.MethodGet, path+"/analysis", nil)
		require.Equal(t, http.StatusOK, status, string(body))
	}
	require.Equal(t, 2, oracle.callCount("generate_analysis_report"))

	status, body = server.do(t, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, status, string(body))
	require.Equal(t, 2, decodeBody[investigationResponse](t, body).TurnCount)

	status, body = server.do(t, http.MethodGet, "/api/investigations", nil)
	require.Equal(t, http.StatusOK, status, string(body))
	listed := decodeBody[[]investigationListItem](t, body)
	require.Len(t, listed, 1)
	require.Equal(t, started.ID, listed[0].ID)
	require.Equal(t, models.SessionStatusComplete, listed[0].Status)
}

func TestInvestigation_PauseResume(t *testing.T) {
	t.Parallel()
	server := startTestServer(t, io.Discard, testLookupEnv(newFakeOracle(t).URL()))
	path := "/api/investigations/" + startInvestigation(t, server).ID

	status, body := server.do(t, http.MethodPost, path+"/pause", nil)
	require.Equal(t, http.StatusOK, status, string(body))
	require.Equal(t, models.SessionStatusPaused, decodeBody[investigationResponse](t, body).Status)

	status, _ = server.do(t, http.MethodPost, path+"/pause", nil)
	require.Equal(t, http.StatusConflict, status)
	status, _ = server.do(t, http.MethodPost, path+"/answers", map[string]any{"choice": 0})
	require.Equal(t, http.StatusConflict, status)

	status, body = server.do(t, http.MethodPost, path+"/resume", nil)
	require.Equal(t, http.StatusOK, status, string(body))
	require.Equal(t, models.SessionStatusActive, decodeBody[investigationResponse](t, body).Status)

	status, _ = server.do(t, http.MethodPost, path+"/answers", map[string]any{"choice": 0})
	require.Equal(t, http.StatusOK, status)
}

func TestInvestigation_Ownership(t *testing.T) {
	t.Parallel()
	server := startTestServer(t, io.Discard, testLookupEnv(newFakeOracle(t).URL()))
	id := startInvestigation(t, server).ID
	stranger := server.withNewClient(t)

	status, _ := stranger.do(t, http.MethodGet, "/api/investigations/"+id, nil)
	require.Equal(t, http.StatusNotFound, status)
	status, _ = stranger.do(t, http.MethodPost, "/api/investigations/"+id+"/answers", map[string]any{"choice": 0})
	require.Equal(t, http.StatusNotFound, status)

	status, body := stranger.do(t, http.MethodGet, "/api/investigations", nil)
	require.Equal(t, http.StatusOK, status)
	require.JSONEq(t, `[]`, string(body))
}

func TestInvestigation_InvalidInput(t *testing.T) {
	t.Parallel()
	server := startTestServer(t, io.Discard, testLookupEnv(newFakeOracle(t).URL()))

	tests := []struct {
		name string
		body map[string]any
	}{
		{name: "empty report", body: startRequestBody("   ")},
		{name: "not an image", body: startRequestBody("Report", []byte("plain text"))},
		{name: "bad base64", body: map[string]any{"incident_name": "x", "report": "r", "images": []string{"%%%"}}},
		{name: "threshold out of range", body: map[string]any{
			"incident_name": "x", "report": "r", "confidence_threshold": 10,
		}},
		{name: "missing incident name", body: map[string]any{"report": "r"}},
		{name: "unknown field", body: map[string]any{"incident_name": "x", "report": "r", "extra": true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := server.do(t, http.MethodPost, "/api/investigations", tt.body)
			require.Equal(t, http.StatusBadRequest, status, string(body))
			require.Equal(t, "invalid_input", decodeBody[errorResponse](t, body).Kind)
		})
	}

	path := "/api/investigations/" + startInvestigation(t, server).ID + "/answers"
	answers := []map[string]any{
		{"choice": 4},
		{"choice": -1},
		{"custom": "  "},
		{"choice": 0, "custom": "both"},
	}
	for _, answer := range answers {
		status, body := server.do(t, http.MethodPost, path, answer)
		require.Equal(t, http.StatusBadRequest, status, string(body))
	}
}

func TestInvestigation_OracleFailures(t *testing.T) {
	t.Parallel()

	t.Run("transport", func(t *testing.T) {
		t.Parallel()
		oracle := newFakeOracle(t)
		oracle.fail("generate_question_with_answers", http.StatusInternalServerError)
		server := startTestServer(t, io.Discard, testLookupEnv(oracle.URL()))

		status, body := server.do(t, http.MethodPost, "/api/investigations", startRequestBody("Report"))
		require.Equal(t, http.StatusServiceUnavailable, status, string(body))
		require.Equal(t, "oracle_transport", decodeBody[errorResponse](t, body).Kind)
		require.Equal(t, 3, oracle.callCount("generate_question_with_answers"))

		// Nothing was persisted.
		status, body = server.do(t, http.MethodGet, "/api/investigations", nil)
		require.Equal(t, http.StatusOK, status)
		require.JSONEq(t, `[]`, string(body))
	})

	t.Run("rejected request is not retried", func(t *testing.T) {
		t.Parallel()
		oracle := newFakeOracle(t)
		oracle.fail("extract_summary_structure", http.StatusUnauthorized)
		server := startTestServer(t, io.Discard, testLookupEnv(oracle.URL()))

		status, _ := server.do(t, http.MethodPost, "/api/investigations", startRequestBody("Report"))
		require.Equal(t, http.StatusServiceUnavailable, status)
		require.Equal(t, 1, oracle.callCount("extract_summary_structure"))
	})

	t.Run("schema violation", func(t *testing.T) {
		t.Parallel()
		oracle := newFakeOracle(t)
		oracle.set("generate_investigation_goals", map[string]any{"goals": fakeGoals[:2]})
		server := startTestServer(t, io.Discard, testLookupEnv(oracle.URL()))

		status, body := server.do(t, http.MethodPost, "/api/investigations", startRequestBody("Report"))
		require.Equal(t, http.StatusBadGateway, status, string(body))
		require.Equal(t, "schema_violation", decodeBody[errorResponse](t, body).Kind)
	})

	t.Run("failed turn keeps the question", func(t *testing.T) {
		t.Parallel()
		oracle := newFakeOracle(t)
		server := startTestServer(t, io.Discard, testLookupEnv(oracle.URL()))
		started := startInvestigation(t, server)
		path := "/api/investigations/" + started.ID

		oracle.fail("extract_facts", http.StatusBadGateway)
		status, _ := server.do(t, http.MethodPost, path+"/answers", map[string]any{"choice": 0})
		require.Equal(t, http.StatusServiceUnavailable, status)

		status, body := server.do(t, http.MethodGet, path, nil)
		require.Equal(t, http.StatusOK, status)
		current := decodeBody[investigationResponse](t, body)
		require.Equal(t, started.Question, current.Question)
		require.Equal(t, 0, current.TurnCount)
		require.Empty(t, current.Facts)
	})
}

func TestCSRF(t *testing.T) {
	t.Parallel()
	server := startTestServer(t, io.Discard, testLookupEnv(newFakeOracle(t).URL()))

	resp, err := http.Post(server.URL()+"/api/investigations", "application/json", nil) //nolint:noctx // test
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestE2E_Investigation(t *testing.T) {
	t.Parallel()
	oracle := newFakeOracle(t)
	ctx := context.Background()
	client := startTestServer(t, io.Discard, testLookupEnv(oracle.URL())).client

	inv, err := client.Start(ctx, e2etest.StartRequest{
		IncidentName: "Birthday party",
		Participant:  e2etest.Participant{Name: "Alex", Role: "witness"},
		Threshold:    60,
		Report:       "Sam skipped the party.",
		Images:       nil,
	})
	require.NoError(t, err)
	require.Len(t, inv.Goals, len(fakeGoals))

	inv, err = client.Choose(ctx, inv.ID, 0)
	require.NoError(t, err)
	require.False(t, inv.Complete)

	// An average confidence of 65 passes the threshold of 60.
	oracle.set("update_goal_progress", goalUpdates(65, "in_progress"))
	inv, err = client.AnswerCustom(ctx, inv.ID, "Sam told Jo")
	require.NoError(t, err)
	require.True(t, inv.Complete)

	report, err := client.Analyze(ctx, inv.ID)
	require.NoError(t, err)
	require.Contains(t, string(report), `"drama_rating":4`)
}
