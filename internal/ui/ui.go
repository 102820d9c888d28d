package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/vidproxy/internal/models"
	"github.com/desertthunder/vidproxy/internal/shared"
	"github.com/desertthunder/vidproxy/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	InputView ViewState = iota
	FormatView
	DownloadView
	ResultView
)

// ModelOpts configures a [Model]. A preset URL skips [InputView] and a preset format
// skips [FormatView].
type ModelOpts struct {
	Engine     tasks.DownloadEngine
	URL        string
	Format     models.Format
	Token      func() string // Filename token per download (default: [shared.ShortID])
	ExitOnDone bool          // Quit as soon as the download finishes
}

// Model represents the TUI application state.
type Model struct {
	ctx          context.Context
	cancel       context.CancelFunc
	view         ViewState
	engine       tasks.DownloadEngine
	token        func() string
	exitOnDone   bool
	width        int
	height       int
	input        textinput.Model
	inputErr     string
	formats      list.Model
	spinner      spinner.Model
	request      models.DownloadRequest
	progressChan chan tasks.ProgressUpdate
	done         chan Msg
	progress     tasks.ProgressUpdate
	history      []string
	result       *models.DownloadResult
	err          error
	help         help.Model
	keys         keyMap
}

// NewModel creates a new TUI model with the provided dependencies.
func NewModel(ctx context.Context, opts ModelOpts) *Model {
	if opts.Token == nil {
		opts.Token = shared.ShortID
	}

	input := textinput.New()
	input.Placeholder = "https://www.youtube.com/watch?v=..."
	input.CharLimit = 2048
	input.Width = 60
	input.Focus()

	formats := list.New(formatItems(), list.NewDefaultDelegate(), 60, 12)
	formats.Title = "Output format"
	formats.SetFilteringEnabled(false)
	formats.SetShowStatusBar(false)
	formats.SetShowHelp(false)

	m := &Model{
		ctx:        ctx,
		cancel:     func() {},
		engine:     opts.Engine,
		token:      opts.Token,
		exitOnDone: opts.ExitOnDone,
		input:      input,
		formats:    formats,
		spinner:    spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(styles.title.UnsetMarginBottom())),
		request:    models.DownloadRequest{URL: opts.URL, Format: opts.Format},
		help:       help.New(),
		keys:       newKeyMap(),
	}

	switch {
	case opts.URL == "":
		m.view = InputView
	case opts.Format == "":
		m.view = FormatView
	default:
		m.view = DownloadView
	}
	return m
}

// Result returns the finished download, or the error it ended with.
func (m *Model) Result() (*models.DownloadResult, error) {
	return m.result, m.err
}

// State returns the current view.
func (m *Model) State() ViewState { return m.view }

// Init focuses the URL input, or starts the download when everything is preset.
func (m *Model) Init() tea.Cmd {
	switch m.view {
	case InputView:
		return textinput.Blink
	case DownloadView:
		return m.startDownload()
	default:
		return nil
	}
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.formats.SetSize(msg.Width-4, msg.Height-8)
		m.input.Width = max(20, msg.Width-8)
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case InputView:
			return m.handleInputKeys(msg)
		case FormatView:
			return m.handleFormatKeys(msg)
		case DownloadView:
			return m.handleDownloadKeys(msg)
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case spinner.TickMsg:
		if m.view != DownloadView {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case Msg:
		switch msg.kind {
		case MsgProgressUpdate:
			update := msg.data.(tasks.ProgressUpdate)
			m.progress = update
			if n := len(m.history); update.Message != "" && (n == 0 || m.history[n-1] != update.Message) {
				m.history = append(m.history, update.Message)
			}
			return m, m.waitForProgress()

		case MsgDownloadComplete:
			outcome := msg.data.(downloadOutcome)
			m.result, m.err = outcome.result, outcome.err
			m.view = ResultView
			m.cancel()
			m.progressChan, m.done = nil, nil
			if m.exitOnDone {
				return m, tea.Quit
			}
			return m, nil
		}
	}

	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case InputView:
		return m.renderInput()
	case FormatView:
		return m.renderFormats()
	case DownloadView:
		return m.renderDownload()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) handleInputKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.cancel):
		return m, tea.Quit
	case key.Matches(msg, m.keys.enter):
		value := strings.TrimSpace(m.input.Value())
		if !models.IsVideoURL(value) {
			m.inputErr = "Please enter a valid YouTube URL"
			return m, nil
		}
		m.inputErr = ""
		m.request.URL = value
		if m.request.Format != "" {
			return m, m.startDownload()
		}
		m.view = FormatView
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleFormatKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		m.view = InputView
		m.input.SetValue(m.request.URL)
		return m, m.input.Focus()
	case key.Matches(msg, m.keys.enter):
		if item, ok := m.formats.SelectedItem().(formatItem); ok {
			m.request.Format = item.format
			return m, m.startDownload()
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.formats, cmd = m.formats.Update(msg)
	return m, cmd
}

func (m *Model) handleDownloadKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.cancel) {
		m.cancel()
		m.history = append(m.history, "Cancelling...")
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.restart):
		m.view = InputView
		m.request = models.DownloadRequest{}
		m.result, m.err = nil, nil
		m.history = nil
		m.input.Reset()
		return m, m.input.Focus()
	}
	return m, nil
}

func (m *Model) startDownload() tea.Cmd {
	m.view = DownloadView
	m.history = nil
	m.progress = tasks.ProgressUpdate{}

	if m.engine == nil {
		err := fmt.Errorf("%w: download engine not initialized", shared.ErrServiceUnavailable)
		return func() tea.Msg { return downloadCompleteMsg(nil, err) }
	}

	ctx, cancel := context.WithCancel(m.ctx)
	m.cancel = cancel
	m.progressChan = make(chan tasks.ProgressUpdate, 50)
	m.done = make(chan Msg, 1)

	engine, req, token := m.engine, m.request, m.token()
	progress, done := m.progressChan, m.done
	go func() {
		result, err := engine.Download(ctx, req, token, progress)
		close(progress)
		done <- downloadCompleteMsg(result, err)
	}()

	return tea.Batch(m.spinner.Tick, m.waitForProgress())
}

func (m *Model) waitForProgress() tea.Cmd {
	progress, done := m.progressChan, m.done
	return func() tea.Msg {
		if update, ok := <-progress; ok {
			return progressUpdateMsg(update)
		}
		return <-done
	}
}

func phaseLabel(p tasks.ProgressUpdate) string {
	switch p.Phase {
	case tasks.Validate:
		return "Checking request..."
	case tasks.FetchInfo:
		return "Fetching video information..."
	case tasks.Download:
		return fmt.Sprintf("Downloading (strategy %d/%d)...", p.Step, p.Total)
	case tasks.Fallback:
		return "Trying fallback instances..."
	case tasks.LocateFile:
		return "Verifying file..."
	case tasks.Complete:
		return "Done"
	default:
		return "Starting..."
	}
}

func (m *Model) renderInput() string {
	title := styles.title.Render("Download a video")
	view := fmt.Sprintf("%s\n%s\n", title, m.input.View())
	if m.inputErr != "" {
		view += "\n" + styles.warn.Render(m.inputErr) + "\n"
	}
	helpKeys := []key.Binding{m.keys.enter, m.keys.cancel}
	return fmt.Sprintf("%s\n%s", view, m.help.ShortHelpView(helpKeys))
}

func (m *Model) renderFormats() string {
	helpKeys := []key.Binding{m.keys.up, m.keys.down, m.keys.enter, m.keys.back, m.keys.quit}
	return fmt.Sprintf("%s\n\n%s", m.formats.View(), m.help.ShortHelpView(helpKeys))
}

func (m *Model) renderDownload() string {
	title := styles.title.Render(fmt.Sprintf("Downloading %s as %s", m.request.URL, m.request.Format))

	var b strings.Builder
	for _, line := range m.history {
		b.WriteString(styles.help.Render("  "+line) + "\n")
	}

	helpView := m.help.ShortHelpView([]key.Binding{m.keys.cancel})
	return fmt.Sprintf("%s\n%s%s %s\n\n%s", title, b.String(), m.spinner.View(), phaseLabel(m.progress), helpView)
}

func (m *Model) renderResult() string {
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.restart, m.keys.quit})
	if m.exitOnDone {
		helpView = ""
	}

	if m.err != nil {
		msg := tasks.Classify(m.err).Message
		if errors.Is(m.err, context.Canceled) {
			msg = "Download cancelled"
		} else if tasks.IsInputError(m.err) {
			msg = m.err.Error()
		}
		return styles.err.Render("✗ "+msg) + "\n\n" + helpView
	}

	if m.result == nil {
		return styles.err.Render("No result available") + "\n\n" + helpView
	}

	s := m.result.Summary
	title := styles.ok.Render("✓ Saved " + m.result.Filename)
	info := fmt.Sprintf(
		"\nTitle: %s\nAuthor: %s\nDuration: %s\nViews: %s\nQuality: %s\nMethod: %s\nSize: %s\nPath: %s\n",
		s.Title, s.Author, s.Duration, s.Views, s.Quality, s.Method,
		shared.FormatBytes(m.result.Size), m.result.Path,
	)
	if s.Method == models.MethodFallback {
		info += styles.warn.Render("Served by a fallback instance") + "\n"
	}
	return fmt.Sprintf("%s\n%s\n%s", title, info, helpView)
}
