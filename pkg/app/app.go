// Package app is the optional live-progress TUI for a crawl run.
package app

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/kerbaras/novelbind/pkg/app/components"
	"github.com/kerbaras/novelbind/pkg/app/styles"
	"github.com/kerbaras/novelbind/pkg/services"
)

type App struct {
	controller *services.Controller
	resume     bool
}

func NewApp(controller *services.Controller, resume bool) *App {
	return &App{controller: controller, resume: resume}
}

// Run crawls with a live progress view and returns the run result once
// the crawl ends or the user asks to stop. A key press cancels
// cooperatively: the crawl stops between iterations, then assembly runs.
func (a *App) Run(ctx context.Context) (*services.RunResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := newCrawlModel(a.controller.Crawler().ProgressChannel(), cancel)
	p := tea.NewProgram(m)

	go func() {
		result, err := a.controller.Run(ctx, a.resume)
		p.Send(doneMsg{result: result, err: err})
	}()

	final, err := p.Run()
	if err != nil {
		return nil, err
	}
	fm := final.(crawlModel)
	return fm.result, fm.err
}

type progressMsg services.Progress

type doneMsg struct {
	result *services.RunResult
	err    error
}

type crawlModel struct {
	spinner  spinner.Model
	tracker  *components.CrawlTracker
	progress <-chan services.Progress
	cancel   context.CancelFunc

	stopping bool
	result   *services.RunResult
	err      error
}

func newCrawlModel(progress <-chan services.Progress, cancel context.CancelFunc) crawlModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.StatusFetching
	return crawlModel{
		spinner:  s,
		tracker:  components.NewCrawlTracker(80, 0),
		progress: progress,
		cancel:   cancel,
	}
}

func (m crawlModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForProgress(m.progress))
}

func waitForProgress(ch <-chan services.Progress) tea.Cmd {
	return func() tea.Msg {
		p, ok := <-ch
		if !ok {
			return nil
		}
		return progressMsg(p)
	}
}

func (m crawlModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.stopping = true
			m.cancel()
			return m, nil
		}

	case progressMsg:
		m.tracker.Update(services.Progress(msg))
		return m, waitForProgress(m.progress)

	case doneMsg:
		m.result = msg.result
		m.err = msg.err
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m crawlModel) View() string {
	header := styles.TitleStyle.Render("novelbind")
	if m.stopping {
		header += "  " + styles.StatusWarn.Render("stopping after current chapter...")
	} else {
		header += "  " + m.spinner.View()
	}

	footer := styles.MutedStyle.Render("press q to stop and assemble what we have")
	return fmt.Sprintf("%s\n\n%s\n%s\n", header, m.tracker.View(), footer)
}
