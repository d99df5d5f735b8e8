package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"github.com/nstogner/butler/pkg/domain"
	"github.com/nstogner/butler/pkg/model"
)

// Provider implements model.Provider using the Google Gen AI SDK.
type Provider struct {
	client *genai.Client
}

// Verify interface compliance.
var _ model.Provider = (*Provider)(nil)

// New creates a new Gemini provider.
func New(ctx context.Context, apiKey string) (*Provider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &Provider{client: client}, nil
}

// Name returns the provider identifier.
func (p *Provider) Name() string { return "gemini" }

// Generate streams the reply and aggregates it into one Response.
func (p *Provider) Generate(ctx context.Context, req model.Request) (model.Response, error) {
	slog.Debug("Gemini.Generate", "model", req.Model, "turnCount", len(req.Turns), "toolCount", len(req.Tools))

	config := &genai.GenerateContentConfig{
		Tools: toGenaiTools(req.Tools),
	}
	if req.Instructions != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.Instructions}},
		}
	}

	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	iter := p.client.Models.GenerateContentStream(streamCtx, req.Model, toContents(req.Turns), config)
	return collect(iter)
}

// toContents converts the history into genai contents. Tool results are sent
// as function responses in a user turn.
func toContents(turns []domain.Turn) []*genai.Content {
	var contents []*genai.Content
	for _, t := range turns {
		var parts []*genai.Part
		role := "user"

		switch t.Role {
		case domain.RoleUser:
			if t.Text != "" {
				parts = append(parts, &genai.Part{Text: t.Text})
			}
		case domain.RoleModel:
			role = "model"
			if t.Text != "" {
				parts = append(parts, &genai.Part{Text: t.Text, ThoughtSignature: t.TextSignature})
			}
			for _, c := range t.Calls {
				parts = append(parts, &genai.Part{
					FunctionCall: &genai.FunctionCall{
						ID:   c.ID,
						Name: c.Name,
						Args: c.Args,
					},
					ThoughtSignature: c.ThoughtSignature,
				})
			}
		case domain.RoleTool:
			for _, r := range t.Results {
				parts = append(parts, &genai.Part{
					FunctionResponse: &genai.FunctionResponse{
						ID:       r.ID,
						Name:     r.Name,
						Response: responsePayload(r),
					},
				})
			}
		}

		if len(parts) > 0 {
			contents = append(contents, &genai.Content{Role: role, Parts: parts})
		}
	}
	return contents
}

func responsePayload(r domain.ToolResult) map[string]any {
	if r.Error != "" {
		return map[string]any{"error": r.Error}
	}
	return map[string]any{"result": r.Result}
}

// collect drains the stream. Text parts are concatenated and function calls
// kept in order.
func collect(iter func(yield func(*genai.GenerateContentResponse, error) bool)) (model.Response, error) {
	var out model.Response
	var text strings.Builder
	candidates := 0

	for resp, err := range iter {
		if err != nil {
			return model.Response{}, err
		}
		if resp == nil {
			continue
		}
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			out.BlockReason = string(resp.PromptFeedback.BlockReason)
		}

		for _, cand := range resp.Candidates {
			candidates++
			if cand.FinishReason != "" {
				out.FinishReason = string(cand.FinishReason)
			}
			if cand.Content == nil {
				continue
			}
			for _, part := range cand.Content.Parts {
				if part.Text != "" && !part.Thought {
					if len(part.ThoughtSignature) > 0 {
						out.TextSignature = part.ThoughtSignature
					}
					text.WriteString(part.Text)
				}
				if part.FunctionCall != nil {
					fc := part.FunctionCall
					id := fc.ID
					if id == "" {
						id = "call-" + uuid.New().String()
					}
					out.Calls = append(out.Calls, domain.ToolCall{
						ID:               id,
						Name:             fc.Name,
						Args:             fc.Args,
						ThoughtSignature: part.ThoughtSignature,
					})
				}
			}
		}
	}

	out.Text = text.String()
	if candidates == 0 && out.BlockReason == "" {
		return model.Response{}, model.ErrEmptyResponse
	}
	return out, nil
}
