package main

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wippyai/lasr/errors"
	"github.com/wippyai/lasr/host"
	"github.com/wippyai/lasr/timer"
)

const (
	frameInterval = 100 * time.Millisecond
	paneLines     = 8
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	runningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	pausedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFD700"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

// feedState is what the dashboard renders.
type feedState struct {
	process  string
	output   []string
	logs     []string
	actions  []string
	ticks    uint64
	pid      int32
	state    timer.State
	attached bool
}

// feed collects what the loop reports. The loop goroutine writes, the
// dashboard copies it out on every frame.
type feed struct {
	mu      sync.Mutex
	loading timer.Action
	feedState
}

func appendLine(lines []string, s string) []string {
	lines = append(lines, s)
	if len(lines) > paneLines {
		lines = lines[len(lines)-paneLines:]
	}
	return lines
}

func (f *feed) Attached(name string, pid int32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.process, f.pid, f.attached = name, pid, true
}

func (f *feed) Detached(string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attached = false
}

func (f *feed) Tick(n uint64, st timer.State) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ticks, f.state = n, st
}

// Action records discrete actions. Game time updates arrive every tick and
// loading changes repeat their last value, so only transitions are kept.
func (f *feed) Action(a timer.Action) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch a {
	case timer.ActionSetGameTime:
		return
	case timer.ActionPauseGameTime, timer.ActionResumeGameTime:
		if f.loading == a {
			return
		}
		f.loading = a
	}
	f.actions = appendLine(f.actions, time.Now().Format("15:04:05.000")+" "+a.String())
}

func (f *feed) Print(msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, line := range strings.Split(msg, "\n") {
		f.output = appendLine(f.output, line)
	}
}

// Write receives encoded log entries.
func (f *feed) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs = appendLine(f.logs, strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

func (f *feed) snapshot() feedState {
	f.mu.Lock()
	defer f.mu.Unlock()
	st := f.feedState
	st.output = append([]string(nil), f.output...)
	st.logs = append([]string(nil), f.logs...)
	st.actions = append([]string(nil), f.actions...)
	return st
}

type frameMsg struct{}

type doneMsg struct {
	err error
}

type dashboard struct {
	err     error
	feed    *feed
	local   *timer.Local
	source  string
	view    feedState
	spinner spinner.Model
	done    bool
}

func newDashboard(source string) *dashboard {
	return &dashboard{
		feed:    &feed{},
		source:  source,
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot)),
	}
}

func (d *dashboard) observer() host.Observer {
	return d.feed
}

// logger returns a logger writing into the dashboard's log pane. Info
// entries repeat what the other panes show, so the pane starts at warn.
func (d *dashboard) logger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Path("log_level").Cause(err).Build()
	}
	if lvl < zapcore.WarnLevel {
		lvl = zapcore.WarnLevel
	}
	enc := zap.NewDevelopmentEncoderConfig()
	enc.TimeKey = ""
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.AddSync(d.feed), lvl)
	return zap.New(core), nil
}

// run shows the dashboard while loop runs. Quitting the dashboard stops
// the loop.
func (d *dashboard) run(ctx context.Context, loop *host.Loop) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(d, tea.WithAltScreen(), tea.WithContext(ctx))
	errc := make(chan error, 1)
	go func() {
		err := loop.Run(ctx)
		errc <- err
		p.Send(doneMsg{err: err})
	}()

	_, uiErr := p.Run()
	cancel()
	err := <-errc
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	if uiErr != nil && !errors.Is(uiErr, tea.ErrProgramKilled) {
		return uiErr
	}
	return err
}

func frame() tea.Cmd {
	return tea.Tick(frameInterval, func(time.Time) tea.Msg { return frameMsg{} })
}

func (d *dashboard) Init() tea.Cmd {
	return tea.Batch(d.spinner.Tick, frame())
}

func (d *dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return d, tea.Quit

		case "p":
			d.togglePause()
		}

	case frameMsg:
		d.view = d.feed.snapshot()
		return d, frame()

	case doneMsg:
		d.done = true
		d.err = msg.err
		d.view = d.feed.snapshot()

	case spinner.TickMsg:
		var cmd tea.Cmd
		d.spinner, cmd = d.spinner.Update(msg)
		return d, cmd
	}
	return d, nil
}

// togglePause pauses or resumes the local timer's real time.
func (d *dashboard) togglePause() {
	if d.local == nil {
		return
	}
	var err error
	switch d.local.Snapshot().State {
	case timer.Running:
		err = d.local.Pause()
	case timer.Paused:
		err = d.local.Resume()
	}
	if err != nil {
		d.feed.Print(err.Error())
	}
}

func (d *dashboard) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("lasr"))
	b.WriteString(" ")
	b.WriteString(d.source)
	b.WriteString("\n\n")

	v := d.view
	switch {
	case d.done && d.err != nil:
		b.WriteString(errorStyle.Render(fmt.Sprintf("Script stopped: %v", d.err)))
	case d.done:
		b.WriteString("Script stopped")
	case v.attached:
		b.WriteString(fmt.Sprintf("%s %s (pid %d)", labelStyle.Render("process"), v.process, v.pid))
	default:
		b.WriteString(d.spinner.View() + " waiting for process")
	}
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("%s %s  %s %d\n", labelStyle.Render("timer"), stateText(v.state),
		labelStyle.Render("tick"), v.ticks))

	if d.local != nil {
		s := d.local.Snapshot()
		b.WriteString(fmt.Sprintf("%s %s  %s %s  %s %d\n",
			labelStyle.Render("real"), formatClock(s.RealTime),
			labelStyle.Render("game"), formatClock(s.GameTime),
			labelStyle.Render("splits"), len(s.Splits)))
		keys := make([]string, 0, len(s.Variables))
		for k := range s.Variables {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			b.WriteString(fmt.Sprintf("  %s = %s\n", k, s.Variables[k]))
		}
	}

	pane(&b, "actions", v.actions)
	pane(&b, "output", v.output)
	pane(&b, "log", v.logs)

	b.WriteString("\n")
	if d.local != nil {
		b.WriteString(helpStyle.Render("p pause/resume • q quit"))
	} else {
		b.WriteString(helpStyle.Render("q quit"))
	}
	return b.String()
}

func pane(b *strings.Builder, title string, lines []string) {
	if len(lines) == 0 {
		return
	}
	b.WriteString("\n")
	b.WriteString(labelStyle.Render(title))
	b.WriteString("\n")
	for _, l := range lines {
		b.WriteString("  ")
		b.WriteString(l)
		b.WriteString("\n")
	}
}

func stateText(s timer.State) string {
	switch s {
	case timer.Running:
		return runningStyle.Render(s.String())
	case timer.Paused:
		return pausedStyle.Render(s.String())
	default:
		return s.String()
	}
}

// formatClock renders d as h:mm:ss.mmm, dropping the hour when zero.
func formatClock(d time.Duration) string {
	d = d.Round(time.Millisecond)
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	s := (d % time.Minute) / time.Second
	ms := (d % time.Second) / time.Millisecond
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d.%03d", h, m, s, ms)
	}
	return fmt.Sprintf("%d:%02d.%03d", m, s, ms)
}
