package gemini

import (
	"errors"
	"testing"

	"google.golang.org/genai"

	"github.com/nstogner/butler/pkg/domain"
	"github.com/nstogner/butler/pkg/model"
)

func stream(resps ...*genai.GenerateContentResponse) func(yield func(*genai.GenerateContentResponse, error) bool) {
	return func(yield func(*genai.GenerateContentResponse, error) bool) {
		for _, r := range resps {
			if !yield(r, nil) {
				return
			}
		}
	}
}

func candidate(reason genai.FinishReason, parts ...*genai.Part) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content:      &genai.Content{Role: "model", Parts: parts},
		FinishReason: reason,
	}}}
}

func TestCollectAggregatesTextAndCalls(t *testing.T) {
	resp, err := collect(stream(
		candidate("", &genai.Part{Text: "Let me "}),
		candidate("", &genai.Part{Text: "check."}, &genai.Part{FunctionCall: &genai.FunctionCall{
			Name: "compare_prices", Args: map[string]any{"item": "Margherita"},
		}}),
		candidate(genai.FinishReasonStop, &genai.Part{FunctionCall: &genai.FunctionCall{
			ID: "c2", Name: "get_reviews", Args: map[string]any{"restaurant": "Pizza Hut"},
		}}),
	))
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if resp.Text != "Let me check." {
		t.Errorf("Text = %q", resp.Text)
	}
	if len(resp.Calls) != 2 {
		t.Fatalf("got %d calls, want 2", len(resp.Calls))
	}
	if resp.Calls[0].Name != "compare_prices" || resp.Calls[0].ID == "" {
		t.Errorf("first call = %+v, want generated ID", resp.Calls[0])
	}
	if resp.Calls[1].ID != "c2" {
		t.Errorf("second call ID = %q", resp.Calls[1].ID)
	}
	if resp.Blocked() {
		t.Error("reply should not be blocked")
	}
}

func TestCollectSafety(t *testing.T) {
	resp, err := collect(stream(candidate(genai.FinishReasonSafety)))
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if !resp.Blocked() {
		t.Errorf("FinishReason %q not treated as blocked", resp.FinishReason)
	}
}

func TestCollectPromptBlocked(t *testing.T) {
	resp, err := collect(stream(&genai.GenerateContentResponse{
		PromptFeedback: &genai.GenerateContentResponsePromptFeedback{BlockReason: genai.BlockedReasonSafety},
	}))
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if !resp.Blocked() {
		t.Error("blocked prompt not reported")
	}
}

func TestCollectEmpty(t *testing.T) {
	_, err := collect(stream())
	if !errors.Is(err, model.ErrEmptyResponse) {
		t.Errorf("err = %v, want ErrEmptyResponse", err)
	}
}

func TestCollectStreamError(t *testing.T) {
	boom := errors.New("quota exceeded")
	_, err := collect(func(yield func(*genai.GenerateContentResponse, error) bool) {
		yield(nil, boom)
	})
	if !errors.Is(err, boom) {
		t.Errorf("err = %v", err)
	}
}

func TestToContents(t *testing.T) {
	turns := []domain.Turn{
		{Role: domain.RoleUser, Text: "cheapest pizza?"},
		{Role: domain.RoleModel, Calls: []domain.ToolCall{{ID: "c1", Name: "compare_prices", Args: map[string]any{"item": "pizza"}}}},
		{Role: domain.RoleTool, Results: []domain.ToolResult{
			{ID: "c1", Name: "compare_prices", Result: map[string]any{"bestDeal": nil}},
			{ID: "c2", Name: "place_order", Error: "unsupported platform"},
		}},
		{Role: domain.RoleModel, Text: "Swiggy is cheapest."},
	}

	contents := toContents(turns)
	if len(contents) != 4 {
		t.Fatalf("got %d contents, want 4", len(contents))
	}
	wantRoles := []string{"user", "model", "user", "model"}
	for i, c := range contents {
		if c.Role != wantRoles[i] {
			t.Errorf("contents[%d].Role = %q, want %q", i, c.Role, wantRoles[i])
		}
	}

	results := contents[2].Parts
	if len(results) != 2 {
		t.Fatalf("tool turn has %d parts, want 2", len(results))
	}
	if fr := results[0].FunctionResponse; fr == nil || fr.ID != "c1" || fr.Name != "compare_prices" {
		t.Errorf("first response = %+v", results[0].FunctionResponse)
	}
	if got := results[1].FunctionResponse.Response["error"]; got != "unsupported platform" {
		t.Errorf("error payload = %v", got)
	}
}

func TestToGenaiTools(t *testing.T) {
	tools := toGenaiTools([]model.Tool{{
		Name: "place_order",
		Parameters: &model.Schema{
			Type: "object",
			Properties: map[string]*model.Schema{
				"platform": {Type: "string", Enum: []string{"swiggy", "zomato"}},
				"items":    {Type: "array", Items: &model.Schema{Type: "string"}},
			},
			Required: []string{"platform", "items"},
		},
	}})
	if len(tools) != 1 || len(tools[0].FunctionDeclarations) != 1 {
		t.Fatalf("unexpected tools %+v", tools)
	}
	params := tools[0].FunctionDeclarations[0].Parameters
	if params.Type != genai.TypeObject {
		t.Errorf("Type = %q", params.Type)
	}
	if params.Properties["items"].Items.Type != genai.TypeString {
		t.Errorf("items schema = %+v", params.Properties["items"])
	}
	if toGenaiTools(nil) != nil {
		t.Error("no tools should produce nil")
	}
}
