package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/posterctl/internal/models"
	"github.com/desertthunder/posterctl/internal/shared"
	"github.com/desertthunder/posterctl/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	TrackView ViewState = iota
	ResultView
	FailedView
)

// Engine is what the TUI needs from [tasks.PosterEngine].
type Engine interface {
	Run(ctx context.Context, req tasks.PosterRequest, progress chan<- tasks.ProgressUpdate) (*tasks.RunResult, error)
	Retry(ctx context.Context, progress chan<- tasks.ProgressUpdate) (*tasks.RunResult, error)
}

type runFunc func(ctx context.Context, progress chan<- tasks.ProgressUpdate) (*tasks.RunResult, error)

// Model represents the TUI application state.
type Model struct {
	ctx      context.Context
	cancel   context.CancelFunc
	view     ViewState
	engine   Engine
	request  tasks.PosterRequest
	width    int
	height   int
	spinner  spinner.Model
	bar      progress.Model
	designs  list.Model
	progress chan tasks.ProgressUpdate
	outcome  chan runOutcome
	last     tasks.ProgressUpdate
	state    tasks.JobProgressState
	fellBack bool
	result   *tasks.RunResult
	err      error
	notice   string
	help     help.Model
	keys     keyMap
	open     func(string) error
}

// NewModel creates a new TUI model that runs req on engine once started.
func NewModel(ctx context.Context, engine Engine, req tasks.PosterRequest) *Model {
	return &Model{
		ctx:     ctx,
		view:    TrackView,
		engine:  engine,
		request: req,
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(styles.title.UnsetMarginBottom())),
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		state:   tasks.NewProgressState(),
		help:    help.New(),
		keys:    newKeyMap(),
		open:    shared.OpenBrowser,
	}
}

// Init starts the poster run.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.start(func(ctx context.Context, ch chan<- tasks.ProgressUpdate) (*tasks.RunResult, error) {
		return m.engine.Run(ctx, m.request, ch)
	}))
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bar.Width = min(max(msg.Width-8, 10), 60)
		if m.view == ResultView {
			m.designs.SetSize(msg.Width-4, msg.Height-8)
		}
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case TrackView:
			return m.handleTrackKeys(msg)
		case ResultView:
			return m.handleResultKeys(msg)
		case FailedView:
			return m.handleFailedKeys(msg)
		}

	case spinner.TickMsg:
		if m.view != TrackView {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case Msg:
		return m.handleMsg(msg)
	}

	if m.view == ResultView {
		var cmd tea.Cmd
		m.designs, cmd = m.designs.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgProgressUpdate:
		update := msg.data.(tasks.ProgressUpdate)
		m.last = update
		if update.Phase == tasks.Fallback {
			m.fellBack = true
		}
		if s, ok := update.State(); ok {
			m.state = s
		}
		return m, m.waitForProgress()

	case MsgRunComplete:
		outcome := msg.data.(runOutcome)
		m.result, m.err = outcome.result, outcome.err
		m.progress, m.outcome = nil, nil
		if m.cancel != nil {
			m.cancel()
			m.cancel = nil
		}
		if m.result != nil {
			m.state = m.result.State
			m.fellBack = m.fellBack || m.result.FellBack
		}
		if m.err != nil {
			m.view = FailedView
			return m, nil
		}
		m.view = ResultView
		m.designs = list.New(designItems(m.finalDesigns()), list.NewDefaultDelegate(), 0, 0)
		m.designs.Title = "Poster Designs"
		m.designs.SetSize(max(m.width-4, 20), max(m.height-8, 10))
		return m, nil

	case MsgDesignOpened:
		if err, _ := msg.data.(error); err != nil {
			m.notice = fmt.Sprintf("Could not open design: %v", err)
		}
		return m, nil
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case TrackView:
		return m.renderTrack()
	case ResultView:
		return m.renderResult()
	case FailedView:
		return m.renderFailed()
	default:
		return ""
	}
}

// Err returns the error the last run ended with.
func (m *Model) Err() error { return m.err }

// Result returns the outcome of the last run.
func (m *Model) Result() *tasks.RunResult { return m.result }

func (m *Model) handleTrackKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.quit) {
		if m.cancel != nil {
			m.cancel()
		}
		return m, tea.Quit
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.open):
		if item, ok := m.designs.SelectedItem().(designItem); ok {
			return m, m.openDesign(item.design)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.designs, cmd = m.designs.Update(msg)
	return m, cmd
}

func (m *Model) handleFailedKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.retry):
		m.view = TrackView
		m.state = tasks.NewProgressState()
		m.last = tasks.ProgressUpdate{}
		m.fellBack = false
		m.result, m.err, m.notice = nil, nil, ""
		return m, tea.Batch(m.spinner.Tick, m.start(m.engine.Retry))
	}
	return m, nil
}

// start launches run in the background and returns the command that waits for its first update.
func (m *Model) start(run runFunc) tea.Cmd {
	ctx, cancel := context.WithCancel(m.ctx)
	m.cancel = cancel
	m.progress = make(chan tasks.ProgressUpdate, 50)
	m.outcome = make(chan runOutcome, 1)

	progress, outcome := m.progress, m.outcome
	go func() {
		result, err := run(ctx, progress)
		outcome <- runOutcome{result, err}
		close(progress)
	}()

	return m.waitForProgress()
}

func (m *Model) waitForProgress() tea.Cmd {
	progress, outcome := m.progress, m.outcome
	return func() tea.Msg {
		if progress == nil {
			return nil
		}
		update, ok := <-progress
		if !ok {
			o := <-outcome
			return runCompleteMsg(o.result, o.err)
		}
		return progressUpdateMsg(update)
	}
}

func (m *Model) openDesign(d models.Design) tea.Cmd {
	target := d.ImageURL
	if target == "" {
		target = d.PreviewURL
	}
	open := m.open
	return func() tea.Msg {
		if target == "" {
			return designOpenedMsg(fmt.Errorf("variant %d has no rendered image", d.VariantNumber))
		}
		return designOpenedMsg(open(target))
	}
}

func (m *Model) finalDesigns() []models.Design {
	if m.result != nil && m.result.Results != nil && len(m.result.Results.Designs) > 0 {
		return m.result.Results.Designs
	}
	return m.state.Designs
}

func (m *Model) modeTag() string {
	mode := m.state.Mode
	if mode == "" {
		return ""
	}
	tag := styles.Tag(mode)
	if m.fellBack {
		tag += " " + styles.warn.Render("(stream unavailable, polling)")
	}
	return tag
}

func (m *Model) renderTrack() string {
	var b strings.Builder

	title := "Generating Poster"
	if m.last.JobID != "" {
		title = fmt.Sprintf("Generating Poster %s", m.last.JobID)
	}
	b.WriteString(styles.title.Render(title))
	b.WriteString("\n")
	if tag := m.modeTag(); tag != "" {
		b.WriteString(tag + "\n\n")
	}

	message := m.last.Message
	if message == "" {
		message = "Starting..."
	}
	b.WriteString(fmt.Sprintf("%s %s\n\n", m.spinner.View(), message))
	b.WriteString(m.bar.ViewAs(float64(m.state.Progress)/100) + "\n\n")

	b.WriteString(m.renderSteps())
	b.WriteString(m.renderPartial())

	if m.state.Error != "" {
		b.WriteString("\n" + styles.warn.Render(m.state.Error) + "\n")
	}

	b.WriteString("\n" + m.help.ShortHelpView([]key.Binding{m.keys.quit}))
	return b.String()
}

func (m *Model) renderSteps() string {
	var b strings.Builder
	for i, step := range models.AllSteps {
		var marker string
		switch {
		case m.state.HasStep(step):
			marker = styles.Done()
		case step == m.state.CurrentStep:
			marker = m.spinner.View()
		default:
			marker = styles.Pending()
		}
		b.WriteString(fmt.Sprintf("%s %d. %s\n", marker, i+1, step.Title()))
	}
	return b.String()
}

func (m *Model) renderPartial() string {
	var b strings.Builder
	if m.state.Transcription != "" {
		b.WriteString(fmt.Sprintf("\nTranscription: %s\n", m.state.Transcription))
	}
	if c := m.state.CopyContent; c != nil {
		b.WriteString(fmt.Sprintf("Headline: %s / %s\n", c.Headline.EN, c.Headline.AR))
	}
	if n := len(m.state.ProcessedImages); n > 0 {
		b.WriteString(fmt.Sprintf("Processed images: %d\n", n))
	}
	if n := len(m.state.Designs); n > 0 {
		b.WriteString(fmt.Sprintf("Designs: %d\n", n))
	}
	return b.String()
}

func (m *Model) renderResult() string {
	title := styles.ok.Render("✓ Poster Complete!")
	if tag := m.modeTag(); tag != "" {
		title += " " + tag
	}

	notice := ""
	if m.notice != "" {
		notice = "\n" + styles.warn.Render(m.notice)
	}

	helpView := m.help.ShortHelpView([]key.Binding{m.keys.up, m.keys.down, m.keys.open, m.keys.quit})
	return fmt.Sprintf("%s\n\n%s%s\n\n%s", title, m.designs.View(), notice, helpView)
}

func (m *Model) renderFailed() string {
	msg := m.state.Error
	if msg == "" && m.err != nil {
		msg = m.err.Error()
	}

	var b strings.Builder
	b.WriteString(styles.err.Render("✗ Poster generation failed"))
	b.WriteString("\n\n" + msg + "\n")
	if n := len(m.state.CompletedSteps); n > 0 {
		b.WriteString(styles.help.Render(fmt.Sprintf("\nCompleted %d of %d steps before the failure\n", n, models.TotalSteps)))
	}
	b.WriteString("\n" + m.help.ShortHelpView([]key.Binding{m.keys.retry, m.keys.quit}))
	return b.String()
}
