package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/sashabaranov/go-openai"
)

var fakeGoals = []string{
	"Why did Sam skip the party",
	"Did Sam tell anyone beforehand",
	"How did Alex find out",
	"What was said afterwards",
	"Has anyone apologized",
}

// fakeOracle is an OpenAI compatible chat completions endpoint that answers every tool call with a canned payload.
type fakeOracle struct {
	mu       sync.Mutex
	payloads map[string]any
	failures map[string]int
	calls    map[string]int
	server   *httptest.Server
}

func newFakeOracle(t *testing.T) *fakeOracle {
	t.Helper()
	f := &fakeOracle{
		payloads: defaultPayloads(),
		failures: make(map[string]int),
		calls:    make(map[string]int),
		server:   nil,
	}
	f.server = httptest.NewServer(http.HandlerFunc(f.chatCompletions))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeOracle) URL() string {
	return f.server.URL
}

// set replaces the payload of tool.
func (f *fakeOracle) set(tool string, payload any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads[tool] = payload
}

// fail makes every call of tool fail with status.
func (f *fakeOracle) fail(tool string, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[tool] = status
}

func (f *fakeOracle) callCount(tool string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[tool]
}

func (f *fakeOracle) chatCompletions(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/v1/chat/completions" {
		http.NotFound(w, r)
		return
	}
	var req struct {
		Tools []struct {
			Function struct {
				Name string `json:"name"`
			} `json:"function"`
		} `json:"tools"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	calls := make([]openai.ToolCall, 0, len(req.Tools))
	for i, tool := range req.Tools {
		name := tool.Function.Name
		f.calls[name]++
		if status, ok := f.failures[name]; ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_, _ = fmt.Fprintf(w, `{"error":{"message":"%s failed","type":"server_error"}}`, name)
			return
		}
		arguments, err := json.Marshal(f.payloads[name])
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		calls = append(calls, openai.ToolCall{ //nolint:exhaustruct // index is only used when streaming.
			ID:   fmt.Sprintf("call_%d", i),
			Type: openai.ToolTypeFunction,
			Function: openai.FunctionCall{
				Name:      name,
				Arguments: string(arguments),
			},
		})
	}

	resp := openai.ChatCompletionResponse{ //nolint:exhaustruct // the client only reads the choices.
		ID:     "chatcmpl-test",
		Object: "chat.completion",
		Model:  openai.GPT4o,
		Choices: []openai.ChatCompletionChoice{{ //nolint:exhaustruct // no logprobs.
			Index: 0,
			Message: openai.ChatCompletionMessage{ //nolint:exhaustruct // tool calls only.
				Role:      openai.ChatMessageRoleAssistant,
				ToolCalls: calls,
			},
			FinishReason: openai.FinishReasonToolCalls,
		}},
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func goalUpdates(confidence int, status string) map[string]any {
	updates := make([]map[string]any, 0, len(fakeGoals))
	for _, g := range fakeGoals {
		updates = append(updates, map[string]any{
			"goal":       g,
			"confidence": confidence,
			"status":     status,
			"reasoning":  "The answer covered it",
		})
	}
	return map[string]any{"goal_updates": updates}
}

func defaultPayloads() map[string]any {
	answers := make([]map[string]any, 0, 4)
	for i := range 4 {
		answers = append(answers, map[string]any{
			"answer":    fmt.Sprintf("Option %d", i+1),
			"reasoning": fmt.Sprintf("Reveals detail %d", i+1),
		})
	}
	return map[string]any{
		"extract_summary_structure": map[string]any{
			"actors": []map[string]any{{
				"name":            "Sam",
				"role":            "absent friend",
				"relationships":   []string{"friend of Alex"},
				"emotional_state": []string{"defensive"},
			}},
			"point_of_conflict": map[string]any{
				"primary":   "Sam skipped Alex's birthday party",
				"secondary": []string{},
			},
			"general_details": map[string]any{
				"timeline_markers":      []string{"last Saturday"},
				"location_context":      []string{"Alex's flat"},
				"communication_history": []string{},
				"emotional_atmosphere":  "tense",
			},
			"missing_info": []string{"Why Sam stayed away"},
		},
		"generate_investigation_goals": map[string]any{"goals": fakeGoals},
		"extract_facts": map[string]any{"facts": []map[string]any{{
			"topic":      "party",
			"claim":      "Sam was at another party",
			"timestamp":  "Saturday",
			"confidence": "certain",
		}}},
		"update_goal_progress": goalUpdates(50, "in_progress"),
		"generate_question_with_answers": map[string]any{
			"question":    "Where was Sam on Saturday?",
			"target_goal": fakeGoals[0],
			"reasoning":   "Lowest confidence goal",
			"answers":     answers,
		},
		"detect_answer_drift": map[string]any{
			"addressed_question":  true,
			"drift_reason":        "",
			"redirect_suggestion": "",
		},
		"generate_analysis_report": map[string]any{
			"timeline":  []map[string]any{{"time": "Saturday", "event": "Sam went to another party"}},
			"key_facts": []string{"Sam was at another party"},
			"gaps":      []string{},
			"verdict": map[string]any{
				"primary_responsibility":   "Sam",
				"percentage":               70,
				"reasoning":                "Sam did not tell anyone",
				"contributing_factors":     "Alex 30%",
				"drama_rating":             4,
				"drama_rating_explanation": "A talk will fix it",
			},
		},
	}
}
