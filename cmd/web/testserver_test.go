package main

import (
	"context"
	"encoding/json"
	"io"
	"testing"

	"github.com/myrjola/sleuth/internal/e2etest"
	"github.com/stretchr/testify/require"
)

// testLookupEnv configures an in-memory database and points the oracle client to oracleURL.
func testLookupEnv(oracleURL string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		switch key {
		case "SLEUTH_ADDR":
			return "localhost:0", true
		case "SLEUTH_SQLITE_URL":
			return ":memory:", true
		case "OPENAI_API_KEY":
			return "test-key", true
		case "SLEUTH_OPENAI_BASE_URL":
			return oracleURL + "/v1", true
		case "SLEUTH_ORACLE_BASE_DELAY":
			return "1ms", true
		case "SLEUTH_ORACLE_TIMEOUT":
			return "5s", true
		default:
			return "", false
		}
	}
}

type testServer struct {
	*e2etest.Server
	client *e2etest.Client
}

// startTestServer starts the test server and waits for it to be ready. The server stops when the test ends.
func startTestServer(t *testing.T, w io.Writer, lookupEnv func(string) (string, bool)) *testServer {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	server, err := e2etest.StartServer(ctx, w, lookupEnv, run)
	require.NoError(t, err)
	return &testServer{Server: server, client: server.Client()}
}

// withNewClient returns a view of the server for a browser without cookies.
func (s *testServer) withNewClient(t *testing.T) *testServer {
	t.Helper()
	client, err := e2etest.NewClient(s.URL())
	require.NoError(t, err)
	return &testServer{Server: s.Server, client: client}
}

// do sends a JSON request and returns the status code and the response body.
func (s *testServer) do(t *testing.T, method string, urlPath string, body any) (int, []byte) {
	t.Helper()
	status, respBody, err := s.client.Do(context.Background(), method, urlPath, body)
	require.NoError(t, err)
	return status, respBody
}

func decodeBody[T any](t *testing.T, body []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(body, &v), string(body))
	return v
}
