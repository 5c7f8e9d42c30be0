package main

import (
	"fmt"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/loudnorm/pipeline"
)

// maxVisibleRows bounds the per-file list so huge batches do not
// scroll the terminal while running.
const maxVisibleRows = 20

// itemMsg carries one file's state change into the view. Ordinal is
// the item's scan position, which is also its row index.
type itemMsg struct {
	ordinal int
	status  pipeline.Status
}

// batchDoneMsg ends the progress view once the run's report is ready.
type batchDoneMsg struct{}

// tickMsg refreshes the elapsed-time footer once per second.
type tickMsg struct{}

// batchUI owns the bubbletea program rendering one batch. Start and
// Finish run on the loop goroutine; Transition arrives from worker
// goroutines.
type batchUI struct {
	cancel func()

	mu      sync.Mutex
	program *tea.Program
	done    chan struct{}
}

func newBatchUI(cancel func()) *batchUI {
	return &batchUI{cancel: cancel}
}

// Start launches the progress view for a freshly enumerated run.
func (u *batchUI) Start(run *pipeline.BatchRun) {
	u.mu.Lock()
	defer u.mu.Unlock()

	p := tea.NewProgram(newBatchModel(run, u.cancel))
	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := p.Run(); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "batchUI.Start",
				"error":    err.Error(),
			}).Debug("Progress view unavailable, continuing without it")
		}
	}()
	u.program = p
	u.done = done
}

// Transition forwards a state change to the running view.
func (u *batchUI) Transition(item *pipeline.JobItem, from, to pipeline.Status) {
	u.mu.Lock()
	p := u.program
	u.mu.Unlock()
	if p != nil {
		p.Send(itemMsg{ordinal: item.Ordinal, status: to})
	}
}

// Finish stops the view and waits until the terminal is restored, so
// the report can print below the last rendered frame.
func (u *batchUI) Finish() {
	u.mu.Lock()
	p, done := u.program, u.done
	u.program, u.done = nil, nil
	u.mu.Unlock()

	if p == nil {
		return
	}
	p.Send(batchDoneMsg{})
	<-done
}

// itemRow is one file's line in the progress list.
type itemRow struct {
	base   string
	status pipeline.Status
}

// batchModel is the bubbletea model for a running batch.
type batchModel struct {
	rows       []itemRow
	mode       string
	target     float64
	cancel     func()
	cancelling bool
	start      time.Time
	width      int
}

func newBatchModel(run *pipeline.BatchRun, cancel func()) batchModel {
	rows := make([]itemRow, len(run.Items))
	for i, item := range run.Items {
		rows[i] = itemRow{base: item.Base, status: item.Status()}
	}
	return batchModel{
		rows:   rows,
		mode:   string(run.Config.Mode),
		target: run.Config.ResolveTarget(),
		cancel: cancel,
		start:  time.Now(),
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(time.Time) tea.Msg { return tickMsg{} })
}

// Init starts the elapsed-time ticker.
func (m batchModel) Init() tea.Cmd {
	return tickCmd()
}

// Update handles view messages and the cancel key.
func (m batchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" && !m.cancelling {
			m.cancelling = true
			m.cancel()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case itemMsg:
		if msg.ordinal >= 0 && msg.ordinal < len(m.rows) {
			m.rows[msg.ordinal].status = msg.status
		}

	case tickMsg:
		return m, tickCmd()

	case batchDoneMsg:
		return m, tea.Quit
	}

	return m, nil
}

// View renders the header, the file list and the progress footer.
func (m batchModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("loudnorm"))
	b.WriteString("\n")
	b.WriteString(faintStyle.Render(fmt.Sprintf("%s → %.1f LUFS • %d file(s)", m.mode, m.target, len(m.rows))))
	b.WriteString("\n\n")

	shown := len(m.rows)
	if shown > maxVisibleRows {
		shown = maxVisibleRows
	}
	for _, row := range m.rows[:shown] {
		b.WriteString(renderRow(row))
		b.WriteString("\n")
	}
	if hidden := len(m.rows) - shown; hidden > 0 {
		b.WriteString(faintStyle.Render(fmt.Sprintf("   … %d more file(s)", hidden)))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.footer())
	b.WriteString("\n")
	return b.String()
}

// renderRow draws one file line with its status icon.
func renderRow(row itemRow) string {
	switch row.status {
	case pipeline.StatusSucceeded:
		return fmt.Sprintf(" %s %s", okStyle.Render("✓"), row.base)
	case pipeline.StatusFailed:
		return fmt.Sprintf(" %s %s", failStyle.Render("✗"), row.base)
	case pipeline.StatusPending:
		return fmt.Sprintf(" %s %s", faintStyle.Render("○"), faintStyle.Render(row.base))
	default:
		return fmt.Sprintf(" %s %s  %s", activeStyle.Render("⚙"), row.base,
			faintStyle.Render(stageLabel(row.status)))
	}
}

// stageLabel is the operator-facing name of an in-flight stage.
func stageLabel(s pipeline.Status) string {
	switch s {
	case pipeline.StatusDecoding:
		return "decoding"
	case pipeline.StatusAnalyzing:
		return "analyzing loudness"
	case pipeline.StatusApplyingGain:
		return "applying gain"
	case pipeline.StatusDenoising:
		return "denoising"
	case pipeline.StatusEncoding:
		return "encoding"
	default:
		return s.String()
	}
}

func (m batchModel) footer() string {
	finished := 0
	for _, row := range m.rows {
		if row.status == pipeline.StatusSucceeded || row.status == pipeline.StatusFailed {
			finished++
		}
	}
	elapsed := time.Since(m.start).Round(time.Second)

	if m.cancelling {
		return failStyle.Render(fmt.Sprintf(" cancelling… %d/%d finished • %s elapsed", finished, len(m.rows), elapsed))
	}
	return faintStyle.Render(fmt.Sprintf(" %d/%d finished • %s elapsed • ctrl+c cancels", finished, len(m.rows), elapsed))
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5F87FF"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#00AA00"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#A40000"))
	activeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFA500"))
	faintStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
)
