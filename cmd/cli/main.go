// Command cli is a terminal chat with the food-ordering agent.
//
// Usage:
//
//	export GEMINI_API_KEY="your-api-key"
//	go run ./cmd/cli
//
// Commands:
//
//	/proceed - Continue the order waiting for manual selection
//	/orders  - Show recent orders
//	/reset   - Clear the conversation
//	/exit    - Exit the program
//	<message> - Send a message to the agent
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/nstogner/butler/pkg/app"
	"github.com/nstogner/butler/pkg/config"
	"github.com/nstogner/butler/pkg/controller"
	"github.com/nstogner/butler/pkg/orchestrator"
	"github.com/nstogner/butler/pkg/store"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#E2711D")).
			Padding(0, 1)

	senderStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("5")).
			Bold(true)

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("2")).
			Bold(true)

	toolStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true).Padding(0, 1) // Red
)

type state int

const (
	stateChatting state = iota
	stateConfirmExit
)

type errMsg struct{ err error }
type chatReplyMsg struct{ reply controller.ChatReply }
type ordersMsg struct{ orders []store.OrderRecord }
type orderRecordedMsg string

// line is one rendered entry of the transcript.
type line struct {
	role string // "user", "butler", "tool", "status"
	text string
}

type model struct {
	ctx       context.Context
	ctrl      *controller.Controller
	orch      *orchestrator.Orchestrator
	sessionID string
	updates   <-chan string

	// State
	state  state
	busy   bool
	width  int
	height int
	err    error

	// UI Components
	viewport viewport.Model
	textarea textarea.Model

	// Data
	lines    []line
	renderer *glamour.TermRenderer
}

func initialModel(ctx context.Context, a *app.App) model {
	ta := textarea.New()
	ta.Placeholder = "What would you like to eat?"
	ta.Focus()
	ta.Prompt = "┃ "
	ta.CharLimit = 500

	ta.SetWidth(80)
	ta.SetHeight(3)

	// Remove cursor line styling
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.ShowLineNumbers = false

	vp := viewport.New(80, 20)

	// Use "light" style to avoid terminal queries that leak into input
	r, _ := glamour.NewTermRenderer(
		glamour.WithStandardStyle("light"),
		glamour.WithWordWrap(80),
	)

	m := model{
		ctx:       ctx,
		ctrl:      a.Controller,
		orch:      a.Orchestrator,
		sessionID: a.Controller.NewSession(),
		updates:   a.Store.Subscribe(),
		state:     stateChatting,
		viewport:  vp,
		textarea:  ta,
		renderer:  r,
	}
	m.lines = []line{{role: "status", text: "Ask me to find, compare or order food. Type /proceed after picking items by hand."}}
	m.viewport.SetContent(m.render())
	return m
}

func (m model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, waitForOrder(m.updates))
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	var tiCmd, vpCmd tea.Cmd
	if _, isKey := msg.(tea.KeyMsg); !isKey || m.state == stateChatting {
		m.textarea, tiCmd = m.textarea.Update(msg)
		cmds = append(cmds, tiCmd)
	}
	m.viewport, vpCmd = m.viewport.Update(msg)
	cmds = append(cmds, vpCmd)

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = msg.Width
		m.textarea.SetWidth(msg.Width)
		m.viewport.Height = msg.Height - m.textarea.Height() - 4 // Header + Status + Margin
		if m.viewport.Height < 0 {
			m.viewport.Height = 0
		}

		// Recreate renderer with new width
		m.renderer, _ = glamour.NewTermRenderer(
			glamour.WithStandardStyle("light"),
			glamour.WithWordWrap(m.width-4),
		)
		m.refresh()

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			if m.state == stateConfirmExit {
				m.state = stateChatting
				return m, nil
			}
			return m.requestExit()
		case tea.KeyEnter:
			if m.state == stateChatting {
				m.err = nil // Clear error on new message
				return m.sendMessage()
			}
		default:
			if m.state == stateConfirmExit {
				switch msg.String() {
				case "y", "Y":
					return m, tea.Quit
				case "n", "N":
					m.state = stateChatting
					return m, nil
				}
			}
		}

	case chatReplyMsg:
		m.busy = false
		m.appendReply(msg.reply)

	case ordersMsg:
		m.appendOrders(msg.orders)

	case orderRecordedMsg:
		slog.Debug("TUI received order update", "orderID", msg)
		cmds = append(cmds, waitForOrder(m.updates))

	case errMsg:
		m.busy = false
		m.err = msg.err
	}

	return m, tea.Batch(cmds...)
}

func (m model) View() string {
	var errorView string
	if m.err != nil {
		errorView = errorStyle.Width(m.width).Render(fmt.Sprintf("Error: %v", m.err))
	}

	if m.state == stateConfirmExit {
		pending := m.orch.Pending()
		return lipgloss.JoinVertical(
			lipgloss.Left,
			titleStyle.Render("Confirm Exit"),
			"",
			fmt.Sprintf("%d order(s) are waiting for you to proceed. Exit anyway? (y/n)", len(pending)),
			"Their browser tabs stay open.",
		)
	}

	status := ""
	if m.busy {
		status = statusStyle.Render("Working...")
	} else if n := len(m.orch.Pending()); n > 0 {
		status = statusStyle.Render(fmt.Sprintf("%d order(s) waiting. Type /proceed when ready.", n))
	}

	return lipgloss.JoinVertical(
		lipgloss.Left,
		titleStyle.Render("Butler"),
		"",
		m.viewport.View(),
		status,
		errorView,
		m.textarea.View(),
	)
}

// Actions

func (m model) requestExit() (model, tea.Cmd) {
	if len(m.orch.Pending()) > 0 {
		m.state = stateConfirmExit
		return m, nil
	}
	return m, tea.Quit
}

func (m model) sendMessage() (model, tea.Cmd) {
	v := strings.TrimSpace(m.textarea.Value())
	if v == "" || m.busy {
		return m, nil
	}
	m.textarea.Reset()

	switch v {
	case "/exit":
		return m.requestExit()
	case "/reset":
		if err := m.ctrl.Reset(m.sessionID); err != nil {
			m.err = err
			return m, nil
		}
		m.lines = []line{{role: "status", text: "Conversation cleared."}}
		m.refresh()
		return m, nil
	case "/orders":
		return m, m.loadOrders()
	case "/proceed":
		v = controller.ProceedCommand
	}

	m.lines = append(m.lines, line{role: "user", text: v})
	m.busy = true
	m.refresh()

	ctx, ctrl, id := m.ctx, m.ctrl, m.sessionID
	return m, func() tea.Msg {
		reply, err := ctrl.Chat(ctx, id, v, controller.Ambient{})
		if err != nil {
			return errMsg{err}
		}
		return chatReplyMsg{reply}
	}
}

func (m model) loadOrders() tea.Cmd {
	ctx, orch := m.ctx, m.orch
	return func() tea.Msg {
		orders, err := orch.RecentOrders(ctx, 10)
		if err != nil {
			return errMsg{err}
		}
		return ordersMsg{orders}
	}
}

func (m *model) appendReply(reply controller.ChatReply) {
	for _, r := range reply.ToolResults {
		status := "ok"
		if r.Error != "" {
			status = "error: " + r.Error
		}
		m.lines = append(m.lines, line{role: "tool", text: fmt.Sprintf("[%s: %s]", r.Name, status)})
	}
	if out := reply.Outcome; out != nil {
		m.lines = append(m.lines, line{role: "tool", text: fmt.Sprintf("[%s order: %s] %s", out.Platform, out.Status, out.Message)})
	}
	m.lines = append(m.lines, line{role: "butler", text: reply.Text})
	m.refresh()
}

func (m *model) appendOrders(orders []store.OrderRecord) {
	if len(orders) == 0 {
		m.lines = append(m.lines, line{role: "status", text: "No orders yet."})
		m.refresh()
		return
	}
	var sb strings.Builder
	for _, o := range orders {
		items := make([]string, len(o.Request.Items))
		for i, it := range o.Request.Items {
			items[i] = it.Name
		}
		fmt.Fprintf(&sb, "%s  %-8s %-16s %s\n",
			o.CreatedAt.Local().Format(time.Kitchen), o.Request.Platform, o.Outcome.Status, strings.Join(items, ", "))
	}
	m.lines = append(m.lines, line{role: "status", text: strings.TrimRight(sb.String(), "\n")})
	m.refresh()
}

func (m *model) refresh() {
	m.viewport.SetContent(m.render())
	m.viewport.GotoBottom()
}

func (m model) render() string {
	var sb strings.Builder
	for _, l := range m.lines {
		switch l.role {
		case "user":
			sb.WriteString(userStyle.Render("You: "))
			sb.WriteString("\n")
			sb.WriteString(l.text)
		case "butler":
			sb.WriteString(senderStyle.Render("Butler: "))
			sb.WriteString("\n")
			sb.WriteString(m.markdown(l.text))
		case "tool":
			sb.WriteString(toolStyle.Render(l.text))
		default:
			sb.WriteString(statusStyle.Render(l.text))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func (m model) markdown(text string) string {
	if m.renderer == nil {
		return text
	}
	rendered, err := m.renderer.Render(text)
	if err != nil {
		return text // Fallback
	}
	return rendered
}

func waitForOrder(sub <-chan string) tea.Cmd {
	return func() tea.Msg {
		id, ok := <-sub
		if !ok {
			return nil
		}
		return orderRecordedMsg(id)
	}
}

// --- Main ---

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Log to a file so output does not corrupt the TUI.
	f, err := os.OpenFile("butler.log", os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}
	defer f.Close()

	handler := slog.NewTextHandler(f, &slog.HandlerOptions{Level: cfg.SlogLevel()})
	slog.SetDefault(slog.New(handler))
	slog.Info("Logging initialized", "level", cfg.SlogLevel())

	a, err := app.New(ctx, cfg)
	if err != nil {
		slog.Error("Failed to start", "error", err)
		fmt.Println("Error:", err)
		os.Exit(1)
	}
	defer a.Close()

	p := tea.NewProgram(initialModel(ctx, a), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Printf("Alas, there's been an error: %v", err)
		os.Exit(1)
	}
}
