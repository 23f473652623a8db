package tui

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/basket/taskdeck/internal/chat"
	"github.com/basket/taskdeck/internal/tasks"
)

type screen int

const (
	screenTasks screen = iota
	screenChat
)

type tasksLoadedMsg struct {
	rows []tasks.Task
	err  error
}

type statsLoadedMsg struct {
	stats tasks.DashboardStats
	err   error
}

type taskMutatedMsg struct {
	err error
}

type chatReplyMsg struct {
	turn chat.Turn
	err  error
}

type sessionExpiredMsg struct{}

type ctxDoneMsg struct{}

type model struct {
	ctx context.Context
	app App

	width  int
	height int
	screen screen

	// Tasks view.
	rows          []tasks.Task
	cursor        int
	filter        tasks.Filter
	sortBy        tasks.Sort
	stats         tasks.DashboardStats
	statsKnown    bool
	loading       bool
	pendingDelete string // task id awaiting y/n, "" when no modal
	adding        bool
	titleInput    textinput.Model
	status        string // transient error/info line

	// Chat view.
	chatInput textinput.Model
	spin      spinner.Model
	waiting   bool

	expired bool
}

func newModel(ctx context.Context, app App) model {
	if app.Logger == nil {
		app.Logger = slog.Default()
	}

	title := textinput.New()
	title.Placeholder = "task title"
	title.CharLimit = 200

	input := textinput.New()
	input.Placeholder = "message the assistant"
	input.CharLimit = 2000

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	start := screenTasks
	if app.StartChat {
		start = screenChat
		input.Focus()
	}

	return model{
		ctx:        ctx,
		app:        app,
		screen:     start,
		filter:     tasks.FilterAll,
		sortBy:     tasks.SortNewest,
		titleInput: title,
		chatInput:  input,
		spin:       sp,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		waitCtxDone(m.ctx),
		m.loadTasksCmd(),
		m.loadStatsCmd(),
	)
}

func waitCtxDone(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		<-ctx.Done()
		return ctxDoneMsg{}
	}
}

func (m model) loadTasksCmd() tea.Cmd {
	filter, sortBy := m.filter, m.sortBy
	return func() tea.Msg {
		if _, err := m.app.Tasks.List(m.ctx); err != nil {
			return tasksLoadedMsg{err: err}
		}
		return tasksLoadedMsg{rows: m.app.Tasks.Project(filter, sortBy)}
	}
}

func (m model) loadStatsCmd() tea.Cmd {
	return func() tea.Msg {
		stats, err := m.app.Tasks.Stats(m.ctx)
		return statsLoadedMsg{stats: stats, err: err}
	}
}

func (m model) toggleCmd(id string) tea.Cmd {
	return func() tea.Msg {
		_, err := m.app.Tasks.ToggleCompletion(m.ctx, id)
		return taskMutatedMsg{err: err}
	}
}

func (m model) deleteCmd(id string) tea.Cmd {
	return func() tea.Msg {
		return taskMutatedMsg{err: m.app.Tasks.Delete(m.ctx, id)}
	}
}

func (m model) createCmd(title string) tea.Cmd {
	return func() tea.Msg {
		_, err := m.app.Tasks.Create(m.ctx, title, "")
		return taskMutatedMsg{err: err}
	}
}

func (m model) sendChatCmd(text string) tea.Cmd {
	return func() tea.Msg {
		turn, err := m.app.Chat.Send(m.ctx, text)
		return chatReplyMsg{turn: turn, err: err}
	}
}

// reproject refreshes the visible rows from local state without a
// network round trip. The projection is pure, so this is always safe.
func (m *model) reproject() {
	m.rows = m.app.Tasks.Project(m.filter, m.sortBy)
	if m.cursor >= len(m.rows) {
		m.cursor = len(m.rows) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case ctxDoneMsg:
		return m, tea.Quit

	case sessionExpiredMsg:
		m.expired = true
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tasksLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.status = humanError(msg.err)
			return m, nil
		}
		m.status = ""
		m.rows = msg.rows
		if m.cursor >= len(m.rows) {
			m.cursor = 0
		}
		return m, nil

	case statsLoadedMsg:
		// Stats are decoration; failures only get logged.
		if msg.err != nil {
			m.app.Logger.Debug("dashboard stats unavailable", "error", msg.err)
			return m, nil
		}
		m.stats = msg.stats
		m.statsKnown = true
		return m, nil

	case taskMutatedMsg:
		if msg.err != nil {
			m.status = humanError(msg.err)
			m.reproject()
			return m, nil
		}
		m.status = ""
		m.reproject()
		return m, m.loadStatsCmd()

	case chatReplyMsg:
		m.waiting = false
		if msg.err != nil {
			m.status = humanError(msg.err)
			return m, nil
		}
		m.status = ""
		return m, nil

	case spinner.TickMsg:
		if !m.waiting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.updateKey(msg)
	}

	return m, nil
}

func (m model) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}

	// Once the session is gone only the hint view remains.
	if m.expired || !m.app.Sessions.IsAuthenticated() {
		switch msg.String() {
		case "q", "esc", "enter":
			return m, tea.Quit
		}
		return m, nil
	}

	if m.adding {
		return m.updateAddKey(msg)
	}
	if m.pendingDelete != "" {
		return m.updateConfirmKey(msg)
	}

	switch m.screen {
	case screenChat:
		return m.updateChatKey(msg)
	default:
		return m.updateTasksKey(msg)
	}
}

func (m model) View() string {
	if m.expired || !m.app.Sessions.IsAuthenticated() {
		return loginHintView()
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("taskdeck"))
	b.WriteString("  ")
	switch m.screen {
	case screenChat:
		b.WriteString(hintStyle.Render("chat · tab: tasks · ctrl+c: quit"))
		b.WriteString("\n\n")
		b.WriteString(m.chatView())
	default:
		b.WriteString(hintStyle.Render("tasks · tab: chat · ctrl+c: quit"))
		b.WriteString("\n\n")
		b.WriteString(m.tasksView())
	}

	if m.status != "" {
		b.WriteString("\n")
		b.WriteString(errStyle.Render(m.status))
		b.WriteString("\n")
	}
	return b.String()
}

// loginHintView is the entire render when no session exists. No task or
// chat fragments leak around it.
func loginHintView() string {
	return fmt.Sprintf("%s\n\n%s\n\n%s\n",
		titleStyle.Render("taskdeck"),
		"You are not logged in. Run `taskdeck login -email you@example.com` first.",
		hintStyle.Render("press q to exit"))
}
