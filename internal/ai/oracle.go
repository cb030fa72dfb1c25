package ai

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/myrjola/sleuth/internal/errors"
	"github.com/myrjola/sleuth/internal/models"
	"github.com/sashabaranov/go-openai/jsonschema"
)

// Oracle is the external reasoning service. Implementations either return a fully validated Response or an error
// wrapping models.ErrOracleTransport or models.ErrSchemaViolation.
type Oracle interface {
	Invoke(ctx context.Context, req Request) (Response, error)
}

// Image is media attached to a request, e.g., a screenshot of a group chat.
type Image struct {
	MediaType string
	Data      []byte
}

// Tool is a structured output contract. The oracle must answer through the tool's parameters schema.
type Tool struct {
	Name        string
	Description string
	Parameters  jsonschema.Definition
}

// Request is one oracle round trip.
type Request struct {
	// ContextTag scopes any response caching of the oracle to one investigation. It must be derived from the
	// session identifier.
	ContextTag string
	// Instructions are the system instructions.
	Instructions string
	// Payload is the user prompt.
	Payload string
	Images  []Image
	// Tools forces structured output. With several tools the oracle must call every one of them in the same
	// round trip. Without tools the oracle answers in free text.
	Tools []Tool
}

// Response holds either the free text answer or the validated arguments of each requested tool.
type Response struct {
	Text       string
	Structured map[string]json.RawMessage
}

// Decode unmarshals the structured output of tool into v.
func (r Response) Decode(tool string, v any) error {
	raw, ok := r.Structured[tool]
	if !ok {
		return errors.Wrap(models.ErrSchemaViolation, "missing structured result", slog.String("tool", tool))
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return errors.Wrap(models.ErrSchemaViolation, "decode structured result",
			slog.String("tool", tool), slog.String("cause", err.Error()))
	}
	return nil
}
