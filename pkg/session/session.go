// Package session holds one conversation with the model: its turn history
// and the two round-trips of a tool-using exchange.
package session

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/nstogner/butler/pkg/domain"
	"github.com/nstogner/butler/pkg/metrics"
	"github.com/nstogner/butler/pkg/model"
)

// FallbackText replaces a reply withheld by the provider's safety systems.
const FallbackText = "I can't process that request. Please try rephrasing your message."

// DefaultMaxTurns bounds the history when Options.MaxTurns is unset.
const DefaultMaxTurns = 40

// Options configure a Session.
type Options struct {
	Model        string
	Instructions string
	Tools        []model.Tool
	// MaxTurns bounds the retained history. Negative disables the bound.
	MaxTurns int
}

// Reply is the parsed outcome of a round-trip.
type Reply struct {
	Text      string            `json:"text"`
	ToolCalls []domain.ToolCall `json:"toolCalls,omitempty"`
	Blocked   bool              `json:"blocked,omitempty"`
}

// Session is a conversation with the model. It is safe for concurrent use;
// round-trips on one session are serialized.
type Session struct {
	mu       sync.Mutex
	provider model.Provider
	opts     Options
	turns    []domain.Turn
}

// New creates an empty session.
func New(provider model.Provider, opts Options) *Session {
	if opts.Instructions == "" {
		opts.Instructions = DefaultInstructions
	}
	if opts.MaxTurns == 0 {
		opts.MaxTurns = DefaultMaxTurns
	}
	return &Session{provider: provider, opts: opts}
}

// SendUserMessage appends the user's text, augmented with amb, and asks the
// model for a reply. On failure the user turn is discarded.
func (s *Session) SendUserMessage(ctx context.Context, text string, amb Ambient) (Reply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.turns)
	s.turns = append(s.turns, domain.Turn{Role: domain.RoleUser, Text: Augment(text, amb)})
	reply, err := s.roundTrip(ctx)
	if err != nil {
		s.turns = s.turns[:n]
		return Reply{}, err
	}
	return reply, nil
}

// ContinueWithToolResults sends the results of the previous reply's calls
// back in one tool turn and returns the model's answer. Calls in the answer
// are surfaced, not executed. On failure the tool turn is discarded so the
// results can be sent again.
func (s *Session) ContinueWithToolResults(ctx context.Context, results []domain.ToolResult) (Reply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	calls, ok := s.pendingCalls()
	if !ok {
		return Reply{}, errors.New("no tool calls awaiting results")
	}
	n := len(s.turns)
	s.turns = append(s.turns, domain.Turn{Role: domain.RoleTool, Results: correlate(calls, results)})
	reply, err := s.roundTrip(ctx)
	if err != nil {
		s.turns = s.turns[:n]
		return Reply{}, err
	}
	return reply, nil
}

// Reset clears the history.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = nil
}

// History returns a copy of the history, oldest first.
func (s *Session) History() []domain.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.turns)
}

// roundTrip sends the history and appends the model turn. Callers hold mu.
func (s *Session) roundTrip(ctx context.Context) (Reply, error) {
	started := time.Now()
	resp, err := s.provider.Generate(ctx, model.Request{
		Model:        s.opts.Model,
		Instructions: s.opts.Instructions,
		Turns:        slices.Clone(s.turns),
		Tools:        s.opts.Tools,
	})
	if err != nil {
		metrics.RecordModelRequest(metrics.OutcomeError, started)
		return Reply{}, &domain.RemoteServiceError{Service: s.provider.Name(), Err: err}
	}

	if resp.Blocked() {
		metrics.RecordModelRequest(metrics.OutcomeBlocked, started)
		s.turns = append(s.turns, domain.Turn{Role: domain.RoleModel, Text: FallbackText})
		s.trim()
		return Reply{Text: FallbackText, Blocked: true}, nil
	}

	metrics.RecordModelRequest(metrics.OutcomeOK, started)
	s.turns = append(s.turns, domain.Turn{
		Role:          domain.RoleModel,
		Text:          resp.Text,
		Calls:         resp.Calls,
		TextSignature: resp.TextSignature,
	})
	s.trim()
	return Reply{Text: resp.Text, ToolCalls: resp.Calls}, nil
}

// pendingCalls returns the calls of the last turn if it is a model turn that
// requested tools.
func (s *Session) pendingCalls() ([]domain.ToolCall, bool) {
	if len(s.turns) == 0 {
		return nil, false
	}
	last := s.turns[len(s.turns)-1]
	if last.Role != domain.RoleModel || len(last.Calls) == 0 {
		return nil, false
	}
	return last.Calls, true
}

// correlate fills in missing result IDs from the calls, matching by name in
// call order.
func correlate(calls []domain.ToolCall, results []domain.ToolResult) []domain.ToolResult {
	out := slices.Clone(results)
	used := make([]bool, len(calls))
	for i, c := range calls {
		for _, r := range out {
			if r.ID != "" && r.ID == c.ID {
				used[i] = true
			}
		}
	}
	for j := range out {
		if out[j].ID != "" {
			continue
		}
		for i, c := range calls {
			if !used[i] && c.Name == out[j].Name {
				out[j].ID = c.ID
				used[i] = true
				break
			}
		}
	}
	return out
}

// trim evicts the oldest turns beyond MaxTurns. The retained window always
// starts at a user turn so calls stay next to their results. Callers hold mu.
func (s *Session) trim() {
	max := s.opts.MaxTurns
	if max < 0 || len(s.turns) <= max {
		return
	}
	start := len(s.turns) - max
	for start < len(s.turns) && s.turns[start].Role != domain.RoleUser {
		start++
	}
	if start == len(s.turns) {
		// The current exchange alone exceeds the bound; keep all of it.
		start = lastUserTurn(s.turns)
	}
	if start <= 0 {
		return
	}
	s.turns = slices.Clone(s.turns[start:])
}

func lastUserTurn(turns []domain.Turn) int {
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == domain.RoleUser {
			return i
		}
	}
	return 0
}
