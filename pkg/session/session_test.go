package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nstogner/butler/pkg/domain"
	"github.com/nstogner/butler/pkg/model"
)

// scriptedProvider answers each Generate with the next scripted response and
// records the requests it saw.
type scriptedProvider struct {
	mu       sync.Mutex
	script   []scripted
	requests []model.Request
}

type scripted struct {
	resp model.Response
	err  error
}

func (p *scriptedProvider) Name() string { return "fake" }

func (p *scriptedProvider) Generate(_ context.Context, req model.Request) (model.Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, req)
	if len(p.script) == 0 {
		return model.Response{Text: "ok"}, nil
	}
	next := p.script[0]
	p.script = p.script[1:]
	return next.resp, next.err
}

func (p *scriptedProvider) push(resp model.Response, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.script = append(p.script, scripted{resp: resp, err: err})
}

func (p *scriptedProvider) lastRequest(t *testing.T) model.Request {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	require.NotEmpty(t, p.requests)
	return p.requests[len(p.requests)-1]
}

func TestAugment(t *testing.T) {
	got := Augment("order biryani", Ambient{
		Platform:    domain.PlatformSwiggy,
		Preferences: &domain.Preferences{Dietary: "veg", Budget: domain.Budget{Min: 100, Max: 500}},
		Location:    "Bengaluru",
	})
	want := "order biryani" +
		"\n\n[Context: User is currently on swiggy]" +
		"\n[User preferences: Dietary: veg, Budget: ₹100-₹500, Spice: none]" +
		"\n[Location: Bengaluru]"
	assert.Equal(t, want, got)

	assert.Equal(t, "hi", Augment("hi", Ambient{}))
}

func TestSendUserMessageText(t *testing.T) {
	p := &scriptedProvider{}
	p.push(model.Response{Text: "Hello! What are you craving?"}, nil)
	s := New(p, Options{Model: "test-model"})

	reply, err := s.SendUserMessage(context.Background(), "hi", Ambient{Location: "Pune"})
	require.NoError(t, err)
	assert.Equal(t, "Hello! What are you craving?", reply.Text)
	assert.Empty(t, reply.ToolCalls)

	req := p.lastRequest(t)
	assert.Equal(t, "test-model", req.Model)
	assert.Equal(t, DefaultInstructions, req.Instructions)
	require.Len(t, req.Turns, 1)
	assert.True(t, strings.HasSuffix(req.Turns[0].Text, "[Location: Pune]"))

	hist := s.History()
	require.Len(t, hist, 2)
	assert.Equal(t, domain.RoleUser, hist[0].Role)
	assert.Equal(t, domain.RoleModel, hist[1].Role)
}

func TestToolCallRoundTrip(t *testing.T) {
	p := &scriptedProvider{}
	p.push(model.Response{Calls: []domain.ToolCall{
		{ID: "c1", Name: domain.ToolComparePrices, Args: map[string]any{"item": "Margherita"}},
	}}, nil)
	p.push(model.Response{Text: "Swiggy is cheapest at ₹299."}, nil)
	s := New(p, Options{})

	reply, err := s.SendUserMessage(context.Background(), "Where is Margherita cheapest?", Ambient{})
	require.NoError(t, err)
	require.Len(t, reply.ToolCalls, 1)
	assert.Equal(t, domain.ToolComparePrices, reply.ToolCalls[0].Name)

	final, err := s.ContinueWithToolResults(context.Background(), []domain.ToolResult{
		{Name: domain.ToolComparePrices, Result: map[string]any{"bestDeal": "swiggy"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Swiggy is cheapest at ₹299.", final.Text)

	req := p.lastRequest(t)
	require.Len(t, req.Turns, 3)
	toolTurn := req.Turns[2]
	assert.Equal(t, domain.RoleTool, toolTurn.Role)
	require.Len(t, toolTurn.Results, 1)
	assert.Equal(t, "c1", toolTurn.Results[0].ID, "missing ID should be filled from the call")
}

func TestContinueWithoutPendingCalls(t *testing.T) {
	s := New(&scriptedProvider{}, Options{})
	_, err := s.ContinueWithToolResults(context.Background(), nil)
	assert.Error(t, err)

	_, err = s.SendUserMessage(context.Background(), "hi", Ambient{})
	require.NoError(t, err)
	_, err = s.ContinueWithToolResults(context.Background(), nil)
	assert.Error(t, err, "a text reply has no calls to answer")
}

func TestSafetyFallback(t *testing.T) {
	p := &scriptedProvider{}
	p.push(model.Response{FinishReason: model.FinishSafety}, nil)
	s := New(p, Options{})

	reply, err := s.SendUserMessage(context.Background(), "something unsafe", Ambient{})
	require.NoError(t, err)
	assert.True(t, reply.Blocked)
	assert.Equal(t, FallbackText, reply.Text)

	hist := s.History()
	require.Len(t, hist, 2)
	assert.Equal(t, FallbackText, hist[1].Text)
}

func TestProviderErrorRollsBack(t *testing.T) {
	p := &scriptedProvider{}
	p.push(model.Response{Text: "first"}, nil)
	boom := errors.New("quota exceeded")
	p.push(model.Response{}, boom)
	s := New(p, Options{})

	_, err := s.SendUserMessage(context.Background(), "one", Ambient{})
	require.NoError(t, err)

	_, err = s.SendUserMessage(context.Background(), "two", Ambient{})
	require.Error(t, err)
	var remote *domain.RemoteServiceError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, "fake", remote.Service)
	assert.ErrorIs(t, err, boom)

	assert.Len(t, s.History(), 2, "failed user turn should be discarded")
}

func TestToolResultsRetryAfterProviderError(t *testing.T) {
	p := &scriptedProvider{}
	p.push(model.Response{Calls: []domain.ToolCall{{ID: "c1", Name: domain.ToolSearchFood}}}, nil)
	p.push(model.Response{}, errors.New("deadline exceeded"))
	p.push(model.Response{Text: "Found 3 places."}, nil)
	s := New(p, Options{})
	ctx := context.Background()

	_, err := s.SendUserMessage(ctx, "pizza", Ambient{})
	require.NoError(t, err)

	results := []domain.ToolResult{{ID: "c1", Name: domain.ToolSearchFood, Result: map[string]any{"count": 3}}}
	_, err = s.ContinueWithToolResults(ctx, results)
	require.Error(t, err)
	assert.Len(t, s.History(), 2, "failed tool turn should be discarded")

	reply, err := s.ContinueWithToolResults(ctx, results)
	require.NoError(t, err)
	assert.Equal(t, "Found 3 places.", reply.Text)

	history := s.History()
	require.Len(t, history, 4)
	assert.Equal(t, domain.RoleTool, history[2].Role)
	assert.Equal(t, domain.RoleModel, history[3].Role)
}

func TestEmptyResponse(t *testing.T) {
	p := &scriptedProvider{}
	p.push(model.Response{}, model.ErrEmptyResponse)
	s := New(p, Options{})

	_, err := s.SendUserMessage(context.Background(), "hi", Ambient{})
	assert.ErrorIs(t, err, model.ErrEmptyResponse)
	assert.Empty(t, s.History())
}

func TestReset(t *testing.T) {
	s := New(&scriptedProvider{}, Options{})
	_, err := s.SendUserMessage(context.Background(), "hi", Ambient{})
	require.NoError(t, err)
	s.Reset()
	assert.Empty(t, s.History())
}

func TestCorrelate(t *testing.T) {
	calls := []domain.ToolCall{
		{ID: "a", Name: domain.ToolGetReviews},
		{ID: "b", Name: domain.ToolGetReviews},
		{ID: "c", Name: domain.ToolSearchFood},
	}
	got := correlate(calls, []domain.ToolResult{
		{ID: "b", Name: domain.ToolGetReviews},
		{Name: domain.ToolGetReviews},
		{Name: domain.ToolSearchFood},
		{Name: domain.ToolPlaceOrder},
	})
	ids := make([]string, len(got))
	for i, r := range got {
		ids[i] = r.ID
	}
	assert.Equal(t, []string{"b", "a", "c", ""}, ids)
}

func TestHistoryBoundProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(42)

	properties := gopter.NewProperties(parameters)

	// Each exchange is either a plain reply (2 turns) or a tool round-trip
	// (4 turns).
	properties.Property("history stays within the bound and starts with a user turn", prop.ForAll(
		func(max int, exchanges []bool) bool {
			p := &scriptedProvider{}
			s := New(p, Options{MaxTurns: max})
			ctx := context.Background()
			for _, withTool := range exchanges {
				if withTool {
					p.push(model.Response{Calls: []domain.ToolCall{{ID: "c", Name: domain.ToolSearchFood}}}, nil)
				}
				if _, err := s.SendUserMessage(ctx, "msg", Ambient{}); err != nil {
					return false
				}
				if withTool {
					_, err := s.ContinueWithToolResults(ctx, []domain.ToolResult{{Name: domain.ToolSearchFood, Result: map[string]any{}}})
					if err != nil {
						return false
					}
				}
				hist := s.History()
				if len(hist) > max || hist[0].Role != domain.RoleUser {
					return false
				}
			}
			return true
		},
		gen.IntRange(4, 12),
		gen.SliceOfN(20, gen.Bool()),
	))

	properties.TestingRun(t)
}

func TestNegativeMaxTurnsKeepsEverything(t *testing.T) {
	s := New(&scriptedProvider{}, Options{MaxTurns: -1})
	for i := 0; i < 30; i++ {
		_, err := s.SendUserMessage(context.Background(), "hi", Ambient{})
		require.NoError(t, err)
	}
	assert.Len(t, s.History(), 60)
}
