package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/nstogner/butler/pkg/domain"
	"github.com/nstogner/butler/pkg/model"
	"github.com/nstogner/butler/pkg/session"
)

// ProceedCommand resumes the latest parked order without consulting the
// model.
const ProceedCommand = "proceed"

const (
	noPendingText = "There is no order waiting for you. Ask me to place one first."
	expiredText   = "That order waited too long and was closed. Ask me to place it again."
)

// Ambient is what the caller knows about the user's surroundings. Fields
// left empty are filled from the settings snapshot.
type Ambient struct {
	URL      string            `json:"url,omitempty"`
	Platform domain.PlatformID `json:"platform,omitempty"`
	Location string            `json:"location,omitempty"`
}

// ChatReply is the outcome of one user message.
type ChatReply struct {
	Text        string               `json:"text"`
	ToolCalls   []domain.ToolCall    `json:"toolCalls,omitempty"`
	ToolResults []domain.ToolResult  `json:"toolResults,omitempty"`
	Outcome     *domain.OrderOutcome `json:"outcome,omitempty"`
	Blocked     bool                 `json:"blocked,omitempty"`
}

// Controller runs chats: it owns the sessions and routes the model's tool
// calls through the dispatcher.
type Controller struct {
	ops        Operations
	dispatcher *Dispatcher
	provider   model.Provider
	opts       session.Options

	mu       sync.Mutex
	sessions map[string]*session.Session
}

// New creates a Controller. When opts.Tools is empty the declarations from
// Tools are used.
func New(ops Operations, provider model.Provider, opts session.Options) *Controller {
	if len(opts.Tools) == 0 {
		opts.Tools = Tools()
	}
	return &Controller{
		ops:        ops,
		dispatcher: NewDispatcher(ops),
		provider:   provider,
		opts:       opts,
		sessions:   make(map[string]*session.Session),
	}
}

// Dispatcher returns the dispatcher used for tool calls.
func (c *Controller) Dispatcher() *Dispatcher { return c.dispatcher }

// NewSession starts an empty conversation and returns its ID.
func (c *Controller) NewSession() string {
	id := uuid.New().String()
	c.mu.Lock()
	c.sessions[id] = session.New(c.provider, c.opts)
	c.mu.Unlock()
	slog.Info("Session created", "sessionID", id)
	return id
}

// Delete forgets a session.
func (c *Controller) Delete(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.sessions[id]; !ok {
		return fmt.Errorf("session %s: %w", id, domain.ErrNotFound)
	}
	delete(c.sessions, id)
	return nil
}

// Reset clears a session's history.
func (c *Controller) Reset(id string) error {
	s, err := c.session(id)
	if err != nil {
		return err
	}
	s.Reset()
	return nil
}

// History returns a session's turns, oldest first.
func (c *Controller) History(id string) ([]domain.Turn, error) {
	s, err := c.session(id)
	if err != nil {
		return nil, err
	}
	return s.History(), nil
}

func (c *Controller) session(id string) (*session.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, domain.ErrNotFound)
	}
	return s, nil
}

// Chat handles one user message. Tool calls in the model's first reply are
// dispatched and their results sent back for a final answer.
func (c *Controller) Chat(ctx context.Context, sessionID, text string, amb Ambient) (ChatReply, error) {
	s, err := c.session(sessionID)
	if err != nil {
		return ChatReply{}, err
	}

	if IsProceed(text) {
		return c.proceed(ctx)
	}

	sa, err := c.ambient(ctx, amb)
	if err != nil {
		return ChatReply{}, err
	}

	first, err := s.SendUserMessage(ctx, text, sa)
	if err != nil {
		return ChatReply{}, fmt.Errorf("sending message: %w", err)
	}
	if len(first.ToolCalls) == 0 {
		return ChatReply{Text: first.Text, Blocked: first.Blocked}, nil
	}

	results := c.dispatcher.Dispatch(ctx, first.ToolCalls)
	second, err := s.ContinueWithToolResults(ctx, results)
	if err != nil {
		return ChatReply{}, fmt.Errorf("sending tool results: %w", err)
	}

	reply := ChatReply{
		Text:        second.Text,
		ToolCalls:   slices.Concat(first.ToolCalls, second.ToolCalls),
		ToolResults: results,
		Outcome:     lastOutcome(results),
		Blocked:     second.Blocked,
	}
	return reply, nil
}

// IsProceed reports whether text is the proceed command.
func IsProceed(text string) bool {
	return strings.ToLower(strings.TrimSpace(text)) == ProceedCommand
}

func (c *Controller) proceed(ctx context.Context) (ChatReply, error) {
	out, err := c.ops.ResumeLatest(ctx)
	switch {
	case errors.Is(err, domain.ErrNoPendingWorkflow):
		return ChatReply{Text: noPendingText}, nil
	case errors.Is(err, domain.ErrResumeExpired):
		return ChatReply{Text: expiredText}, nil
	case err != nil:
		return ChatReply{}, fmt.Errorf("resuming order: %w", err)
	}
	return ChatReply{Text: out.Message, Outcome: &out}, nil
}

// ambient fills the session context from the settings snapshot.
func (c *Controller) ambient(ctx context.Context, amb Ambient) (session.Ambient, error) {
	snap, err := c.ops.Settings(ctx)
	if err != nil {
		return session.Ambient{}, fmt.Errorf("reading settings: %w", err)
	}

	out := session.Ambient{
		Platform: amb.Platform,
		Location: amb.Location,
	}
	if out.Platform == "" && amb.URL != "" {
		if id, ok := c.ops.DetectPlatform(amb.URL); ok {
			out.Platform = id
		}
	}
	if out.Location == "" {
		out.Location = snap.Location
	}
	prefs := snap.Preferences
	out.Preferences = &prefs
	return out, nil
}

func lastOutcome(results []domain.ToolResult) *domain.OrderOutcome {
	for i := len(results) - 1; i >= 0; i-- {
		if out, ok := results[i].Result.(domain.OrderOutcome); ok {
			return &out
		}
	}
	return nil
}
