package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/musync/internal/tasks"
)

// Job is a long-running engine operation reporting on progress. The channel
// is closed by the model after the job returns.
type Job func(ctx context.Context, progress chan<- tasks.ProgressUpdate) (any, error)

const recentLines = 6

// Model is a bubbletea view that runs a [Job] and shows its progress.
type Model struct {
	ctx    context.Context
	cancel context.CancelFunc
	title  string
	job    Job

	spinner  spinner.Model
	bar      progress.Model
	help     help.Model
	keys     keyMap
	current  tasks.ProgressUpdate
	recent   []string
	failures []string
	details  bool

	updates  chan tasks.ProgressUpdate
	finished *doneMsg
	outcome  *doneMsg
	done     bool
}

// NewModel creates a progress view for job.
func NewModel(ctx context.Context, title string, job Job) *Model {
	ctx, cancel := context.WithCancel(ctx)
	return &Model{
		ctx:     ctx,
		cancel:  cancel,
		title:   title,
		job:     job,
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(styles.success)),
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		help:    help.New(),
		keys:    newKeyMap(),
	}
}

// Run drives job inside a bubbletea program and returns the job's result.
func Run(ctx context.Context, title string, job Job, opts ...tea.ProgramOption) (any, error) {
	m := NewModel(ctx, title, job)
	if _, err := tea.NewProgram(m, opts...).Run(); err != nil {
		return nil, fmt.Errorf("progress view failed: %w", err)
	}
	return m.Result()
}

// Result returns the job's result. It is only meaningful after the job finished.
func (m *Model) Result() (any, error) {
	if m.outcome == nil {
		return nil, context.Canceled
	}
	return m.outcome.result, m.outcome.err
}

// Init starts the spinner and the job.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.start())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.bar.Width = min(max(msg.Width-10, 10), 60)
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.quit):
			m.cancel()
			return m, nil
		case key.Matches(msg, m.keys.details):
			m.details = !m.details
			return m, nil
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progressMsg:
		m.record(tasks.ProgressUpdate(msg))
		return m, m.waitForProgress()

	case doneMsg:
		m.done = true
		m.outcome = &msg
		m.cancel()
		return m, tea.Quit
	}

	return m, nil
}

func (m *Model) record(u tasks.ProgressUpdate) {
	m.current = u
	if u.Message == "" {
		return
	}
	m.recent = append(m.recent, u.Message)
	if len(m.recent) > recentLines {
		m.recent = m.recent[len(m.recent)-recentLines:]
	}
	if outcome, ok := u.Data.(tasks.SongOutcome); ok && outcome.Status != tasks.StatusAdded {
		m.failures = append(m.failures, fmt.Sprintf("%s - %s (%s)", outcome.Song.Artist, outcome.Song.Title, outcome.Status))
	}
}

func (m *Model) start() tea.Cmd {
	m.updates = make(chan tasks.ProgressUpdate, 50)
	m.finished = &doneMsg{}

	go func() {
		m.finished.result, m.finished.err = m.job(m.ctx, m.updates)
		close(m.updates)
	}()

	return m.waitForProgress()
}

// waitForProgress blocks for the next update. The job outcome is read only
// after the channel is closed.
func (m *Model) waitForProgress() tea.Cmd {
	return func() tea.Msg {
		update, ok := <-m.updates
		if !ok {
			return *m.finished
		}
		return progressMsg(update)
	}
}

// View renders the current phase, a progress bar and recent messages.
func (m *Model) View() string {
	var b strings.Builder
	b.WriteString(styles.title.Render(m.title))
	b.WriteString("\n")

	if m.done {
		if m.outcome.err != nil {
			b.WriteString(styles.error.Render(fmt.Sprintf("✗ %v", m.outcome.err)))
		} else {
			b.WriteString(styles.success.Render("✓ Done"))
		}
		b.WriteString("\n")
		return b.String()
	}

	phase := m.current.Phase.String()
	if len(m.recent) == 0 {
		phase = "starting"
	}
	fmt.Fprintf(&b, "%s %s\n", m.spinner.View(), strings.ReplaceAll(phase, "_", " "))

	if m.current.Total > 0 {
		percent := float64(m.current.Step) / float64(m.current.Total)
		b.WriteString(m.bar.ViewAs(min(percent, 1)))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	for _, line := range m.recent {
		b.WriteString(styles.muted.Render(line))
		b.WriteString("\n")
	}

	if m.details && len(m.failures) > 0 {
		b.WriteString("\n")
		b.WriteString(styles.warning.Render(fmt.Sprintf("%d songs not added:", len(m.failures))))
		b.WriteString("\n")
		for _, f := range m.failures {
			fmt.Fprintf(&b, "  • %s\n", f)
		}
	}

	b.WriteString("\n")
	b.WriteString(m.help.ShortHelpView(m.keys.ShortHelp()))
	return b.String()
}
