package ai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/myrjola/sleuth/internal/errors"
	"github.com/myrjola/sleuth/internal/models"
	"github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
)

const (
	DefaultModel       = openai.GPT4o
	MaxTokens          = 4096
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = time.Second
	DefaultCallTimeout = 90 * time.Second
	defaultTemperature = 0.3
)

// chatCompleter is the part of [openai.Client] the oracle client needs.
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Config configures the oracle client. Zero values fall back to defaults.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	// MaxAttempts bounds the number of attempts per call including the first one.
	MaxAttempts int
	// BaseDelay is the wait before the first retry. It doubles on every further retry.
	BaseDelay time.Duration
	// CallTimeout bounds each attempt.
	CallTimeout time.Duration
}

// Client is the resilient oracle client backed by the OpenAI chat completions API.
type Client struct {
	completer chatCompleter
	cfg       Config
	logger    *slog.Logger
	sleep     func(ctx context.Context, d time.Duration) error
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	return newClient(openai.NewClientWithConfig(clientConfig), cfg, logger)
}

func newClient(completer chatCompleter, cfg Config, logger *slog.Logger) *Client {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultBaseDelay
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}
	return &Client{
		completer: completer,
		cfg:       cfg,
		logger:    logger.With("source", "ai.Client"),
		sleep:     sleepContext,
	}
}

// Invoke performs the request with bounded retries and exponential backoff.
//
// Transport failures and malformed structured output are retried. A request the oracle rejects as invalid, e.g.,
// due to a bad API key, fails immediately. The returned error wraps models.ErrOracleTransport or
// models.ErrSchemaViolation depending on the last failure.
func (c *Client) Invoke(ctx context.Context, req Request) (Response, error) {
	chatReq := c.chatRequest(req)
	toolNames := make([]string, len(req.Tools))
	for i, t := range req.Tools {
		toolNames[i] = t.Name
	}

	var (
		lastErr  error
		attempts int
	)
	for attempts = 1; attempts <= c.cfg.MaxAttempts; attempts++ {
		if attempts > 1 {
			delay := c.cfg.BaseDelay << (attempts - 2) //nolint:mnd // first retry waits BaseDelay.
			c.logger.LogAttrs(ctx, slog.LevelWarn, "retrying oracle call",
				slog.Int("attempt", attempts), slog.Duration("delay", delay), errors.SlogError(lastErr))
			if err := c.sleep(ctx, delay); err != nil {
				return Response{}, errors.Wrap(errors.Join(models.ErrOracleTransport, err), "wait before retry")
			}
		}

		start := time.Now()
		resp, err := c.attempt(ctx, chatReq, req.Tools)
		if err == nil {
			c.logger.LogAttrs(ctx, slog.LevelDebug, "oracle call succeeded",
				slog.Any("tools", toolNames),
				slog.Int("attempt", attempts),
				slog.Duration("duration", time.Since(start)))
			return resp, nil
		}
		lastErr = err
		if ctx.Err() != nil || !retryable(err) {
			break
		}
	}

	attempts = min(attempts, c.cfg.MaxAttempts)
	c.logger.LogAttrs(ctx, slog.LevelError, "oracle call failed",
		slog.Any("tools", toolNames), slog.Int("attempts", attempts), errors.SlogError(lastErr))
	return Response{}, errors.Wrap(lastErr, "invoke oracle", slog.Int("attempts", attempts))
}

func (c *Client) attempt(ctx context.Context, chatReq openai.ChatCompletionRequest, tools []Tool) (Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
	defer cancel()

	completion, err := c.completer.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return Response{}, errors.Wrap(errors.Join(models.ErrOracleTransport, err), "create chat completion")
	}
	if len(completion.Choices) == 0 {
		return Response{}, errors.Wrap(models.ErrSchemaViolation, "completion without choices")
	}
	message := completion.Choices[0].Message

	if len(tools) == 0 {
		if strings.TrimSpace(message.Content) == "" {
			return Response{}, errors.Wrap(models.ErrSchemaViolation, "empty text completion")
		}
		return Response{Text: message.Content, Structured: nil}, nil
	}

	structured, err := validateToolCalls(message.ToolCalls, tools)
	if err != nil {
		return Response{}, err
	}
	return Response{Text: message.Content, Structured: structured}, nil
}

// validateToolCalls checks that every requested tool was called exactly once with arguments matching its schema.
func validateToolCalls(calls []openai.ToolCall, tools []Tool) (map[string]json.RawMessage, error) {
	definitions := make(map[string]jsonschema.Definition, len(tools))
	for _, t := range tools {
		definitions[t.Name] = t.Parameters
	}

	structured := make(map[string]json.RawMessage, len(tools))
	for _, call := range calls {
		name := call.Function.Name
		definition, ok := definitions[name]
		if !ok {
			return nil, errors.Wrap(models.ErrSchemaViolation, "call to unknown tool", slog.String("tool", name))
		}
		if _, seen := structured[name]; seen {
			return nil, errors.Wrap(models.ErrSchemaViolation, "tool called twice", slog.String("tool", name))
		}
		var data any
		if err := json.Unmarshal([]byte(call.Function.Arguments), &data); err != nil {
			return nil, errors.Wrap(models.ErrSchemaViolation, "tool arguments are not JSON",
				slog.String("tool", name), slog.String("cause", err.Error()))
		}
		if !jsonschema.Validate(definition, data) {
			return nil, errors.Wrap(models.ErrSchemaViolation, "tool arguments do not match schema",
				slog.String("tool", name))
		}
		structured[name] = json.RawMessage(call.Function.Arguments)
	}

	for _, t := range tools {
		if _, ok := structured[t.Name]; !ok {
			return nil, errors.Wrap(models.ErrSchemaViolation, "oracle did not call tool", slog.String("tool", t.Name))
		}
	}
	return structured, nil
}

func (c *Client) chatRequest(req Request) openai.ChatCompletionRequest {
	instructions := req.Instructions
	if req.ContextTag != "" {
		// The tag keeps any prompt caching of the oracle from mixing up investigations.
		instructions = fmt.Sprintf("[Session: %s]\n\n%s", req.ContextTag, instructions)
	}

	chatReq := openai.ChatCompletionRequest{ //nolint:exhaustruct // this is better for readability
		Model:       c.cfg.Model,
		MaxTokens:   MaxTokens,
		Temperature: defaultTemperature,
		User:        req.ContextTag,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: instructions},
			userMessage(req),
		},
	}

	for _, t := range req.Tools {
		chatReq.Tools = append(chatReq.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{ //nolint:exhaustruct // strict mode is not used.
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	switch len(req.Tools) {
	case 0:
	case 1:
		chatReq.ToolChoice = openai.ToolChoice{
			Type:     openai.ToolTypeFunction,
			Function: openai.ToolFunction{Name: req.Tools[0].Name},
		}
	default:
		chatReq.ToolChoice = "required"
	}
	return chatReq
}

func userMessage(req Request) openai.ChatCompletionMessage {
	if len(req.Images) == 0 {
		return openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Payload}
	}
	parts := make([]openai.ChatMessagePart, 0, len(req.Images)+1)
	for _, img := range req.Images {
		parts = append(parts, openai.ChatMessagePart{ //nolint:exhaustruct // image part has no text.
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL:    DataURL(img),
				Detail: openai.ImageURLDetailAuto,
			},
		})
	}
	parts = append(parts, openai.ChatMessagePart{ //nolint:exhaustruct // text part has no image.
		Type: openai.ChatMessagePartTypeText,
		Text: req.Payload,
	})
	return openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, MultiContent: parts}
}

// DataURL encodes the image as a base64 data URL.
func DataURL(img Image) string {
	return fmt.Sprintf("data:%s;base64,%s", img.MediaType, base64.StdEncoding.EncodeToString(img.Data))
}

// retryable reports whether another attempt could succeed.
func retryable(err error) bool {
	var (
		apiErr     *openai.APIError
		requestErr *openai.RequestError
		status     int
	)
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &requestErr):
		status = requestErr.HTTPStatusCode
	default:
		return true
	}
	switch status {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound,
		http.StatusUnprocessableEntity:
		return false
	default:
		return true
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err() //nolint:wrapcheck // caller wraps.
	case <-timer.C:
		return nil
	}
}
