// Package tui is a terminal front end for the search orchestrator: a text
// input, an Enter-to-search button, a loading spinner, the result list and
// an error box.
package tui

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/FranksOps/imgsearch/internal/observable"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Orchestrator is the search state the UI binds to.
type Orchestrator interface {
	SetSearchWord(text string)
	Trigger() error
	SubscribeItems(fn func([]string)) func()
	SubscribeLoading(fn func(bool)) func()
	SubscribeButtonEnabled(fn func(bool)) func()
	SubscribeError(fn func(error)) func()
}

type (
	itemsMsg   []string
	loadingMsg bool
	enabledMsg bool
	errorMsg   struct{ err error }
)

// Lines used by everything but the result list.
const chromeLines = 8

// Model represents the UI state.
type Model struct {
	orch   Orchestrator
	logger *slog.Logger
	styles *Styles
	inbox  *inbox
	subs   observable.Bag

	input   textinput.Model
	spinner spinner.Model

	items   []string
	loading bool
	enabled bool
	err     error
	showErr bool

	offset int
	width  int
	height int
}

// New creates a Model bound to orch. Call Release once the program exits.
func New(orch Orchestrator, logger *slog.Logger) *Model {
	if logger == nil {
		logger = slog.Default()
	}

	ti := textinput.New()
	ti.Placeholder = "search images (3+ characters)"
	ti.Prompt = "> "
	ti.CharLimit = 256
	ti.Width = 40
	ti.Focus()

	m := &Model{
		orch:    orch,
		logger:  logger,
		styles:  NewStyles(),
		inbox:   newInbox(),
		input:   ti,
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot)),
	}

	m.subs.Add(
		orch.SubscribeItems(func(items []string) { m.inbox.push(itemsMsg(items)) }),
		orch.SubscribeLoading(func(b bool) { m.inbox.push(loadingMsg(b)) }),
		orch.SubscribeButtonEnabled(func(b bool) { m.inbox.push(enabledMsg(b)) }),
		orch.SubscribeError(func(err error) { m.inbox.push(errorMsg{err}) }),
	)
	return m
}

// Release drops the model's stream subscriptions.
func (m *Model) Release() {
	m.subs.Release()
	m.inbox.close()
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.inbox.wait())
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case wakeMsg:
		cmds := []tea.Cmd{m.inbox.wait()}
		wasLoading := m.loading
		for _, pending := range m.inbox.drain() {
			m.apply(pending)
		}
		if m.loading && !wasLoading {
			cmds = append(cmds, m.spinner.Tick)
		}
		return m, tea.Batch(cmds...)

	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.clampOffset()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) apply(msg tea.Msg) {
	switch msg := msg.(type) {
	case itemsMsg:
		m.items = msg
		m.offset = 0
	case loadingMsg:
		m.loading = bool(msg)
	case enabledMsg:
		m.enabled = bool(msg)
	case errorMsg:
		m.err = msg.err
		m.showErr = msg.err != nil
	}
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showErr {
		switch msg.Type {
		case tea.KeyEsc, tea.KeyEnter:
			m.showErr = false
		case tea.KeyCtrlC:
			return m, tea.Quit
		}
		return m, nil
	}

	switch msg.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		return m, tea.Quit
	case tea.KeyEnter:
		if !m.enabled {
			return m, nil
		}
		if err := m.orch.Trigger(); err != nil {
			m.logger.Error("trigger search", "err", err)
		}
		return m, nil
	case tea.KeyUp:
		m.offset--
		m.clampOffset()
		return m, nil
	case tea.KeyDown:
		m.offset++
		m.clampOffset()
		return m, nil
	case tea.KeyPgUp:
		m.offset -= m.visibleRows()
		m.clampOffset()
		return m, nil
	case tea.KeyPgDown:
		m.offset += m.visibleRows()
		m.clampOffset()
		return m, nil
	}

	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if after := m.input.Value(); after != before {
		m.orch.SetSearchWord(after)
	}
	return m, cmd
}

func (m *Model) visibleRows() int {
	if m.height <= chromeLines {
		return 10
	}
	return m.height - chromeLines
}

func (m *Model) clampOffset() {
	maxOffset := len(m.items) - m.visibleRows()
	if m.offset > maxOffset {
		m.offset = maxOffset
	}
	if m.offset < 0 {
		m.offset = 0
	}
}

// View implements tea.Model. The whole screen is redrawn on every update.
func (m *Model) View() string {
	var b strings.Builder

	b.WriteString(m.styles.Title.Render("Image Search"))
	b.WriteString("\n")

	button := m.styles.ButtonDisabled.Render("Search")
	if m.enabled {
		button = m.styles.Button.Render("Search")
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Center, m.input.View(), "  ", button))
	b.WriteString("\n\n")

	if m.loading {
		b.WriteString(m.styles.Loading.Render(m.spinner.View() + " Searching..."))
	} else {
		b.WriteString(m.styles.Dim.Render(fmt.Sprintf("%d images", len(m.items))))
	}
	b.WriteString("\n")

	end := min(m.offset+m.visibleRows(), len(m.items))
	for i := m.offset; i < end; i++ {
		b.WriteString(m.styles.Item.Render(fmt.Sprintf("%3d  %s", i+1, m.items[i])))
		b.WriteString("\n")
	}

	if m.showErr && m.err != nil {
		b.WriteString("\n")
		b.WriteString(m.styles.ErrorBox.Render(
			m.styles.ErrorTitle.Render("Search failed") + "\n\n" + m.err.Error() + "\n\n" + m.styles.Dim.Render("esc/enter to dismiss"),
		))
		b.WriteString("\n")
	}

	b.WriteString(m.styles.Help.Render("enter: search  ↑/↓: scroll  esc: quit"))
	return b.String()
}

// Run starts the terminal UI and blocks until the user quits or ctx is done.
func Run(ctx context.Context, orch Orchestrator, logger *slog.Logger, opts ...tea.ProgramOption) error {
	m := New(orch, logger)
	defer m.Release()

	opts = append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, opts...)
	if _, err := tea.NewProgram(m, opts...).Run(); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}
