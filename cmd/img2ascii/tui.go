package main

import (
	"context"
	"io"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wbrown/img2ascii/internal/metrics"
	"github.com/wbrown/img2ascii/video"
)

// Color palette
var (
	colorOrange = lipgloss.Color("#DDA036")
	colorGray   = lipgloss.Color("#9A9EA0")
	colorWhite  = lipgloss.Color("#FFFFFF")
	colorRed    = lipgloss.Color("#E95420")
	colorGreen  = lipgloss.Color("#4CAF50")
)

const maxBarWidth = 60

type progressMsg video.Progress

type runDoneMsg struct{}

// progressModel shows the phase and fraction of a running pipeline.
// Quitting keys cancel the session; the model exits once the run returns.
type progressModel struct {
	session    *video.Session
	bar        progress.Model
	phase      video.State
	fraction   float64
	message    string
	cancelling bool
	done       bool
}

func newProgressModel(s *video.Session) progressModel {
	bar := progress.New(progress.WithDefaultGradient())
	bar.Width = maxBarWidth
	return progressModel{
		session: s,
		bar:     bar,
		phase:   video.StateIdle,
	}
}

func (m progressModel) Init() tea.Cmd {
	return nil
}

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			if !m.cancelling {
				m.cancelling = true
				m.session.Cancel()
			}
		}

	case tea.WindowSizeMsg:
		m.bar.Width = min(max(msg.Width-4, 10), maxBarWidth)

	case progressMsg:
		m.phase = msg.Phase
		m.fraction = msg.Fraction
		m.message = msg.Message

	case runDoneMsg:
		m.done = true
		return m, tea.Quit
	}
	return m, nil
}

func (m progressModel) View() string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(colorOrange)
	phaseStyle := lipgloss.NewStyle().Bold(true).Foreground(colorWhite)
	hintStyle := lipgloss.NewStyle().Foreground(colorGray)

	switch m.phase {
	case video.StateComplete:
		phaseStyle = phaseStyle.Foreground(colorGreen)
	case video.StateFailed, video.StateCancelled:
		phaseStyle = phaseStyle.Foreground(colorRed)
	}

	status := phaseStyle.Render(phaseLabel(m.phase))
	if m.message != "" {
		status += "  " + hintStyle.Render(m.message)
	}

	hint := "ctrl+c to cancel"
	if m.cancelling {
		hint = "cancelling..."
	}
	if m.done {
		hint = ""
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("img2ascii")+" "+hintStyle.Render(m.session.Source),
		"",
		status,
		m.bar.ViewAs(m.fraction),
		hintStyle.Render(hint),
	) + "\n"
}

func phaseLabel(s video.State) string {
	switch s {
	case video.StateIdle:
		return "Starting"
	case video.StateExtracting:
		return "Extracting frames"
	case video.StateConverting:
		return "Converting frames"
	case video.StateExtractingAudio:
		return "Extracting audio"
	case video.StateEncoding:
		return "Encoding video"
	case video.StateComplete:
		return "Complete"
	case video.StateCancelled:
		return "Cancelled"
	case video.StateFailed:
		return "Failed"
	}
	return s.String()
}

type runOutcome struct {
	result *video.Result
	err    error
}

// runInteractive runs the pipeline under a bubbletea progress display.
// If the display cannot start, the run is cancelled and still awaited so
// temporary files are discarded.
func (a *app) runInteractive(ctx context.Context, p *video.Pipeline, s *video.Session, opts video.RunOptions, out io.Writer) (*video.Result, error) {
	prog := tea.NewProgram(newProgressModel(s), tea.WithOutput(out))

	done := make(chan runOutcome, 1)
	go func() {
		res, err := p.Run(ctx, s, opts, metrics.CountFrames(func(pr video.Progress) {
			prog.Send(progressMsg(pr))
		}))
		done <- runOutcome{res, err}
		prog.Send(runDoneMsg{})
	}()

	if _, err := prog.Run(); err != nil {
		a.logger.Warn("progress display failed, cancelling", "error", err)
		s.Cancel()
	}
	outcome := <-done
	return outcome.result, outcome.err
}
