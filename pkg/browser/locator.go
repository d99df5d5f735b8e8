package browser

import (
	"context"
	"fmt"
	"strings"

	"github.com/nstogner/butler/pkg/domain"
)

// Matcher is one strategy for finding the element behind a semantic role.
// Click and Type report false when the strategy matched nothing.
type Matcher interface {
	fmt.Stringer
	Click(ctx context.Context, host Host, h Handle) (bool, error)
	Type(ctx context.Context, host Host, h Handle, text string, submit bool) (bool, error)
}

// CSS matches the first element for a selector.
type CSS string

func (c CSS) String() string { return string(c) }

func (c CSS) Click(ctx context.Context, host Host, h Handle) (bool, error) {
	var ok bool
	if err := host.RunScript(ctx, h, ClickScript(string(c)), &ok); err != nil {
		return false, err
	}
	return ok, nil
}

func (c CSS) Type(ctx context.Context, host Host, h Handle, text string, submit bool) (bool, error) {
	var ok bool
	if err := host.RunScript(ctx, h, TypeScript(string(c), text, submit), &ok); err != nil {
		return false, err
	}
	return ok, nil
}

// Text matches clickable elements by their visible label, case-insensitively.
// Labels are tried in order. Exact requires the whole label to match,
// otherwise a substring match suffices.
type Text struct {
	Labels []string
	Scope  []string
	Exact  bool
}

func (t Text) String() string {
	mode := "contains"
	if t.Exact {
		mode = "is"
	}
	return fmt.Sprintf("text %s %s", mode, strings.Join(t.Labels, "|"))
}

func (t Text) Click(ctx context.Context, host Host, h Handle) (bool, error) {
	scope := t.Scope
	if len(scope) == 0 {
		scope = ButtonScope
	}
	var clicked string
	if err := host.RunScript(ctx, h, ClickTextScript(scope, t.Labels, t.Exact), &clicked); err != nil {
		return false, err
	}
	return clicked != "", nil
}

// Type is not supported on text matches.
func (t Text) Type(context.Context, Host, Handle, string, bool) (bool, error) {
	return false, nil
}

// Locator is a ranked list of matchers for one semantic role. The first
// matcher that acts wins; exhausting the list is an ElementNotFoundError.
type Locator struct {
	Role     string
	Matchers []Matcher
}

// Selectors builds a Locator from CSS selector candidates.
func Selectors(role string, selectors ...string) Locator {
	l := Locator{Role: role}
	for _, s := range selectors {
		l.Matchers = append(l.Matchers, CSS(s))
	}
	return l
}

// Labels builds a Locator that matches button labels by substring.
func Labels(role string, labels ...string) Locator {
	return Locator{Role: role, Matchers: []Matcher{Text{Labels: labels}}}
}

// Click clicks the first matching element.
func (l Locator) Click(ctx context.Context, host Host, h Handle) error {
	for _, m := range l.Matchers {
		if err := ctx.Err(); err != nil {
			return err
		}
		ok, err := m.Click(ctx, host, h)
		if err != nil {
			return fmt.Errorf("clicking %s via %s: %w", l.Role, m, err)
		}
		if ok {
			return nil
		}
	}
	return l.notFound()
}

// Type types text into the first matching element.
func (l Locator) Type(ctx context.Context, host Host, h Handle, text string, submit bool) error {
	for _, m := range l.Matchers {
		if err := ctx.Err(); err != nil {
			return err
		}
		ok, err := m.Type(ctx, host, h, text, submit)
		if err != nil {
			return fmt.Errorf("typing into %s via %s: %w", l.Role, m, err)
		}
		if ok {
			return nil
		}
	}
	return l.notFound()
}

func (l Locator) notFound() error {
	candidates := make([]string, 0, len(l.Matchers))
	for _, m := range l.Matchers {
		candidates = append(candidates, m.String())
	}
	return &domain.ElementNotFoundError{Role: l.Role, Candidates: candidates}
}
