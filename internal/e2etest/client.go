package e2etest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/justinas/nosurf"
	"github.com/myrjola/sleuth/internal/errors"
)

// Client talks to the investigation API like a browser would: it keeps cookies and echoes the CSRF token.
type Client struct {
	client *http.Client
	url    string
}

// Participant mirrors the participant of the investigation API.
type Participant struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

// StartRequest opens an investigation.
type StartRequest struct {
	IncidentName string      `json:"incident_name"`
	Participant  Participant `json:"participant"`
	Threshold    int         `json:"confidence_threshold,omitempty"`
	Report       string      `json:"report"`
	// Images are base64 encoded.
	Images []string `json:"images,omitempty"`
}

type Answer struct {
	Answer    string `json:"answer"`
	Reasoning string `json:"reasoning"`
}

type Goal struct {
	Description string `json:"description"`
	Confidence  int    `json:"confidence"`
	Status      string `json:"status"`
}

// Investigation is the API view of an investigation.
type Investigation struct {
	ID        string   `json:"id"`
	Status    string   `json:"status"`
	Progress  int      `json:"progress"`
	TurnCount int      `json:"turn_count"`
	Question  string   `json:"question"`
	Answers   []Answer `json:"answers"`
	Goals     []Goal   `json:"goals"`
	Complete  bool     `json:"complete"`
}

// NewClient creates a cookie-aware HTTP client for the API at url.
func NewClient(url string) (*Client, error) {
	jar, err := newUnsafeCookieJar()
	if err != nil {
		return nil, errors.Wrap(err, "create unsafe cookie jar")
	}
	return &Client{
		client: &http.Client{Jar: jar}, //nolint:exhaustruct // defaults are fine for tests.
		url:    url,
	}, nil
}

// WaitForReady calls the specified endpoint until it gets a HTTP 200 Success
// response or until the context is cancelled or the 1-second timeout is reached.
func (c *Client) WaitForReady(ctx context.Context, urlPath string) error {
	timeout := 1 * time.Second
	startTime := time.Now()
	for {
		status, _, err := c.send(ctx, http.MethodGet, urlPath, nil, "")
		if err == nil && status == http.StatusOK {
			return nil
		}
		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "context cancelled")
		default:
			if time.Since(startTime) >= timeout {
				return errors.New("timeout waiting for endpoint to be ready")
			}
			time.Sleep(100 * time.Millisecond) //nolint:mnd // 100ms
		}
	}
}

// CSRFToken fetches a CSRF token with a safe request.
func (c *Client) CSRFToken(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url+"/api/investigations", nil)
	if err != nil {
		return "", errors.Wrap(err, "create request")
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "do request")
	}
	if err = resp.Body.Close(); err != nil {
		return "", errors.Wrap(err, "close response body")
	}
	token := resp.Header.Get(nosurf.HeaderName)
	if token == "" {
		return "", errors.New("no CSRF token in response", slog.Int("status", resp.StatusCode))
	}
	return token, nil
}

// Do sends body as JSON and returns the status code together with the response body. Unsafe methods carry a
// fresh CSRF token.
func (c *Client) Do(ctx context.Context, method string, urlPath string, body any) (int, []byte, error) {
	var token string
	if method != http.MethodGet && method != http.MethodHead {
		var err error
		if token, err = c.CSRFToken(ctx); err != nil {
			return 0, nil, err
		}
	}
	return c.send(ctx, method, urlPath, body, token)
}

func (c *Client) send(ctx context.Context, method string, urlPath string, body any, token string) (int, []byte, error) {
	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, nil, errors.Wrap(err, "marshal request body")
		}
		reqBody = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.url+urlPath, reqBody)
	if err != nil {
		return 0, nil, errors.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set(nosurf.HeaderName, token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, nil, errors.Wrap(err, "do request", slog.String("method", method), slog.String("path", urlPath))
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, errors.Wrap(err, "read response body")
	}
	return resp.StatusCode, respBody, nil
}

// doJSON sends the request, expects status want and decodes the response into out.
func (c *Client) doJSON(ctx context.Context, method string, urlPath string, body any, want int, out any) error {
	status, respBody, err := c.Do(ctx, method, urlPath, body)
	if err != nil {
		return err
	}
	if status != want {
		return errors.New("unexpected status code",
			slog.Int("status", status), slog.Int("want", want), slog.String("body", string(respBody)))
	}
	if err = json.Unmarshal(respBody, out); err != nil {
		return errors.Wrap(err, "decode response body")
	}
	return nil
}

// Start opens an investigation and returns it with its first question.
func (c *Client) Start(ctx context.Context, req StartRequest) (Investigation, error) {
	var inv Investigation
	err := c.doJSON(ctx, http.MethodPost, "/api/investigations", req, http.StatusCreated, &inv)
	return inv, err
}

// Choose answers the current question with the candidate at index choice.
func (c *Client) Choose(ctx context.Context, id string, choice int) (Investigation, error) {
	var inv Investigation
	err := c.doJSON(ctx, http.MethodPost, "/api/investigations/"+id+"/answers",
		map[string]int{"choice": choice}, http.StatusOK, &inv)
	return inv, err
}

// AnswerCustom answers the current question in the respondent's own words.
func (c *Client) AnswerCustom(ctx context.Context, id string, text string) (Investigation, error) {
	var inv Investigation
	err := c.doJSON(ctx, http.MethodPost, "/api/investigations/"+id+"/answers",
		map[string]string{"custom": text}, http.StatusOK, &inv)
	return inv, err
}

func (c *Client) Get(ctx context.Context, id string) (Investigation, error) {
	var inv Investigation
	err := c.doJSON(ctx, http.MethodGet, "/api/investigations/"+id, nil, http.StatusOK, &inv)
	return inv, err
}

// Analyze returns the analysis report as raw JSON.
func (c *Client) Analyze(ctx context.Context, id string) (json.RawMessage, error) {
	var report json.RawMessage
	err := c.doJSON(ctx, http.MethodGet, "/api/investigations/"+id+"/analysis", nil, http.StatusOK, &report)
	return report, err
}
