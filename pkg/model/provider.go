package model

import (
	"context"
	"errors"

	"github.com/nstogner/butler/pkg/domain"
)

// Finish reasons that mark a degraded but non-error reply.
const (
	FinishSafety     = "SAFETY"
	FinishRecitation = "RECITATION"
)

// ErrEmptyResponse is returned when the model produced no candidates.
var ErrEmptyResponse = errors.New("model returned no candidates")

// Request is one round-trip to the model.
type Request struct {
	// Model identifies which model to use (e.g. "gemini-2.0-flash").
	Model string
	// Instructions is the system prompt.
	Instructions string
	// Turns is the full conversation history, oldest first.
	Turns []domain.Turn
	// Tools are the functions the model may call.
	Tools []Tool
}

// Response is the aggregated reply of one round-trip.
type Response struct {
	// Text is the concatenation of every text part.
	Text string
	// Calls are the requested function calls, in order.
	Calls []domain.ToolCall
	// FinishReason is the provider's finish reason of the last candidate.
	FinishReason string
	// BlockReason is set when the prompt itself was blocked.
	BlockReason string
	// TextSignature is an opaque signature for the text part that must be
	// sent back with the model turn.
	TextSignature []byte
}

// Blocked reports whether the reply was withheld by the provider's safety
// systems.
func (r Response) Blocked() bool {
	return r.BlockReason != "" || r.FinishReason == FinishSafety || r.FinishReason == FinishRecitation
}

// Provider represents a service that provides LLMs.
type Provider interface {
	// Name returns the provider's identifier (e.g. "gemini").
	Name() string

	// Generate sends the request and blocks until the full reply is
	// available. A reply with no candidates returns ErrEmptyResponse.
	Generate(ctx context.Context, req Request) (Response, error)
}

// Tool declares a callable function.
type Tool struct {
	Name        string
	Description string
	Parameters  *Schema
}

// Schema is the subset of OpenAPI schema used for tool parameters.
type Schema struct {
	Type        string // "object", "array", "string", "number", "integer", "boolean"
	Description string
	Enum        []string
	Properties  map[string]*Schema
	Items       *Schema
	Required    []string
}
