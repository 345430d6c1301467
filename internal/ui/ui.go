package ui

import (
	"context"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/lidx/internal/formatter"
	"github.com/desertthunder/lidx/internal/models"
	"github.com/desertthunder/lidx/internal/services"
	"github.com/desertthunder/lidx/internal/tasks"
)

// Focus is the panel receiving key presses.
type Focus int

const (
	FocusDownloads Focus = iota
	FocusSearch
)

// Options wires the TUI to its data sources.
//
// The search callbacks, when set, run after the TUI has recorded the selection.
type Options struct {
	Poller      *tasks.StatusPoller
	Suggestions services.SuggestionSource
	Search      tasks.SearchOptions
	Logger      *log.Logger
}

type notice struct {
	text  string
	isErr bool
}

// Model represents the TUI application state.
type Model struct {
	ctx       context.Context
	poller    *tasks.StatusPoller
	search    *tasks.SearchSession
	logger    *log.Logger
	width     int
	height    int
	focus     Focus
	input     textinput.Model
	downloads list.Model
	poll      tasks.PollState
	results   tasks.SearchState
	notice    notice
	help      help.Model
	keys      keyMap
}

// NewModel creates a new TUI model. The poller is started by [Model.Init].
func NewModel(ctx context.Context, opts Options) *Model {
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}

	m := &Model{
		ctx:    ctx,
		poller: opts.Poller,
		logger: opts.Logger,
		focus:  FocusDownloads,
		help:   help.New(),
		keys:   newKeyMap(),
	}

	searchOpts := opts.Search
	searchOpts.Logger = opts.Logger
	navigate, submit := searchOpts.OnNavigate, searchOpts.OnSubmit
	searchOpts.OnNavigate = func(s models.Suggestion) error {
		m.notice = notice{text: fmt.Sprintf("Selected %s %s", s.Kind, s.Display())}
		if navigate != nil {
			return navigate(s)
		}
		return nil
	}
	searchOpts.OnSubmit = func(query string) error {
		m.notice = notice{text: fmt.Sprintf("Searching for %q", query)}
		if submit != nil {
			return submit(query)
		}
		return nil
	}
	m.search = tasks.NewSearchSession(opts.Suggestions, searchOpts)

	m.input = textinput.New()
	m.input.Placeholder = "Search artists, albums & songs"
	m.input.Prompt = "/ "
	m.input.CharLimit = 120

	m.downloads = list.New(nil, list.NewDefaultDelegate(), 80, 20)
	m.downloads.Title = "Downloads"
	m.downloads.SetFilteringEnabled(false)
	m.downloads.SetShowHelp(false)
	m.downloads.SetShowStatusBar(false)
	m.downloads.DisableQuitKeybindings()

	m.poll = m.poller.State()
	m.results = m.search.State()
	return m
}

// Close stops the poller and tears down the search session.
func (m *Model) Close() {
	m.poller.Stop()
	m.search.Close()
}

// Init starts polling and begins listening for poller and search updates.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		m.startPolling(),
		waitForPoll(m.poller.Updates()),
		waitForSearch(m.search.Updates()),
	)
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = max(msg.Width-10, 10)
		m.downloads.SetSize(max(msg.Width-6, 20), max(msg.Height-16, 5))
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		switch m.focus {
		case FocusSearch:
			return m.handleSearchKeys(msg)
		default:
			return m.handleDownloadKeys(msg)
		}

	case Msg:
		return m.handleMsg(msg)
	}

	var cmd tea.Cmd
	if m.focus == FocusSearch {
		m.input, cmd = m.input.Update(msg)
	}
	return m, cmd
}

// handleMsg applies application messages. Update messages are signals: the state is re-read from its owner so a
// late message never rolls the view back.
func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgPollUpdate:
		m.poll = m.poller.State()
		cmd := m.downloads.SetItems(downloadItems(m.poll))
		return m, tea.Batch(cmd, waitForPoll(m.poller.Updates()))

	case MsgSearchUpdate:
		m.results = m.search.State()
		return m, waitForSearch(m.search.Updates())

	case MsgRetryDone:
		r := msg.data.(retryResult)
		if r.err != nil {
			m.notice = notice{text: fmt.Sprintf("Retry of #%d failed: %v", r.id, r.err), isErr: true}
		} else {
			m.notice = notice{text: fmt.Sprintf("Retry requested for #%d", r.id)}
		}
		m.poll = m.poller.State()
		return m, m.downloads.SetItems(downloadItems(m.poll))

	case MsgRefreshDone:
		if err, _ := msg.data.(error); err != nil {
			m.notice = notice{text: fmt.Sprintf("Refresh failed: %v", err), isErr: true}
		}
		return m, nil

	case MsgNotice:
		m.notice = msg.data.(notice)
		return m, nil
	}
	return m, nil
}

func (m *Model) handleDownloadKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.tab), key.Matches(msg, m.keys.search):
		return m, m.focusSearch()
	case key.Matches(msg, m.keys.retry):
		return m, m.retrySelected()
	case key.Matches(msg, m.keys.refresh):
		return m, m.refresh()
	}

	var cmd tea.Cmd
	m.downloads, cmd = m.downloads.Update(msg)
	return m, cmd
}

func (m *Model) handleSearchKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "tab", "shift+tab":
		m.focusDownloads()
		return m, nil
	case "up":
		m.search.MoveUp()
		m.results = m.search.State()
		return m, nil
	case "down":
		m.search.MoveDown()
		m.results = m.search.State()
		return m, nil
	case "esc":
		m.search.Escape()
		m.results = m.search.State()
		return m, nil
	case "enter":
		if err := m.search.Enter(); err != nil {
			m.notice = notice{text: err.Error(), isErr: true}
		}
		m.results = m.search.State()
		m.input.SetValue(m.results.Query)
		return m, nil
	}

	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if value := m.input.Value(); value != before {
		if err := m.search.SetQuery(value); err != nil {
			m.logger.Warn("search query rejected", "error", err)
		}
		m.results = m.search.State()
	}
	return m, cmd
}

func (m *Model) focusSearch() tea.Cmd {
	m.focus = FocusSearch
	m.search.Focus()
	m.results = m.search.State()
	return m.input.Focus()
}

func (m *Model) focusDownloads() {
	m.focus = FocusDownloads
	m.input.Blur()
	m.search.Blur()
	m.results = m.search.State()
}

func (m *Model) startPolling() tea.Cmd {
	return func() tea.Msg {
		if err := m.poller.Start(m.ctx); err != nil {
			return noticeMsg(fmt.Sprintf("Polling unavailable: %v", err), true)
		}
		return nil
	}
}

func (m *Model) retrySelected() tea.Cmd {
	selected, ok := m.downloads.SelectedItem().(downloadItem)
	if !ok {
		return nil
	}
	id := selected.item.ID
	return func() tea.Msg {
		return retryDoneMsg(id, m.poller.Retry(m.ctx, id))
	}
}

func (m *Model) refresh() tea.Cmd {
	return func() tea.Msg {
		return refreshDoneMsg(m.poller.Refresh(m.ctx))
	}
}

// View renders the search panel above the downloads panel.
func (m *Model) View() string {
	sections := []string{
		styles.title.Render("lidx"),
		styles.panel(m.focus == FocusSearch).Render(m.renderSearch()),
		styles.panel(m.focus == FocusDownloads).Render(m.renderDownloads()),
	}

	if m.notice.text != "" {
		if m.notice.isErr {
			sections = append(sections, styles.err.Render(m.notice.text))
		} else {
			sections = append(sections, styles.ok.Render(m.notice.text))
		}
	}

	if m.focus == FocusSearch {
		sections = append(sections, m.help.ShortHelpView(m.keys.searchKeys()))
	} else {
		sections = append(sections, m.help.ShortHelpView(m.keys.downloadKeys()))
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m *Model) renderSearch() string {
	var b strings.Builder
	b.WriteString(m.input.View())
	if m.results.Loading {
		b.WriteString("  " + styles.help.Render("Searching..."))
	}

	switch {
	case m.results.Open:
		b.WriteString("\n")
		b.WriteString(strings.TrimRight(m.renderDropdown(), "\n"))
	case !m.results.Loading && m.results.Suggestions != nil && m.results.Suggestions.Len() == 0 && m.results.Issued == m.results.Query &&
		utf8.RuneCountInString(strings.TrimSpace(m.results.Query)) > 0:
		b.WriteString("\n" + styles.help.Render("No matches"))
	}
	return b.String()
}

// renderDropdown colors the highlighted row of the grouped suggestion text.
func (m *Model) renderDropdown() string {
	lines := strings.Split(string(formatter.SuggestionsToText(m.results.Suggestions, m.results.Highlight)), "\n")
	for i, line := range lines {
		switch {
		case strings.HasPrefix(line, ">"):
			lines[i] = styles.marker.Render(line)
		case line != "" && !strings.HasPrefix(line, " "):
			lines[i] = styles.help.Render(line)
		}
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderDownloads() string {
	if m.poll.Phase == tasks.PhaseLoading {
		if m.poll.LastError != nil {
			return styles.warn.Render(fmt.Sprintf("Waiting for backend: %v", m.poll.LastError))
		}
		return styles.help.Render("Loading downloads...")
	}

	header := formatter.SummaryLine(m.poll.Snapshot.Summary)
	if !m.poll.UpdatedAt.IsZero() {
		header += " • updated " + m.poll.UpdatedAt.Format("15:04:05")
	}
	if m.poll.Stale() {
		header += "\n" + styles.warn.Render(fmt.Sprintf("Showing last known status: %v", m.poll.LastError))
	}

	if len(m.poll.Snapshot.Items) == 0 {
		return header + "\n\n" + styles.help.Render("Queue is empty")
	}
	return header + "\n" + m.downloads.View()
}
