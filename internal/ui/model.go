package ui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"tlvf/internal/comskip"
	"tlvf/internal/dirs"
	"tlvf/internal/engine"
	"tlvf/internal/model"
	"tlvf/internal/probe"
	"tlvf/internal/scan"
	"tlvf/internal/util/deps"
)

type Model struct {
	ctx    context.Context
	cancel context.CancelFunc

	opts model.CLIOptions

	// External tools
	depsChecked bool
	depsErr     error
	ffmpegPath  string
	ffprobePath string
	comskipPath string

	// Scan
	scanned bool
	report  scan.Report
	scanErr error

	// Job rows appear as the engine reports on them, in processing order.
	jobOrder []string
	jobs     map[string]*jobState

	result *engine.RunResult
	runErr error

	// UI
	width, height int
	styles        Styles

	// Internal event channel used by the reporter to feed tea messages
	eventCh chan tea.Msg
}

func NewModel(ctx context.Context, opts model.CLIOptions) Model {
	c, cancel := context.WithCancel(ctx)
	return Model{
		ctx:     c,
		cancel:  cancel,
		opts:    opts,
		jobs:    make(map[string]*jobState),
		styles:  defaultStyles(),
		eventCh: make(chan tea.Msg, 256),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.listenEventsCmd(), m.checkDepsCmd())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.cancel()
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height

	case depsCheckedMsg:
		m.depsChecked = true
		m.depsErr = msg.Err
		m.ffmpegPath = msg.FFmpegPath
		m.ffprobePath = msg.FFprobePath
		m.comskipPath = msg.ComskipPath
		if m.depsErr != nil {
			return m, tea.Quit
		}
		return m, m.scanCmd()

	case scannedMsg:
		m.scanned = true
		m.report = msg.Report
		m.scanErr = msg.Err
		if m.scanErr != nil || len(m.report.Candidates) == 0 {
			return m, tea.Quit
		}
		return m, m.startRunCmd()

	case jobUpdateMsg:
		u := msg.U
		js, tick := m.ensureJob(u.JobID, u.Path)
		js.stage = u.Stage
		js.percent = u.Percent
		if u.Message != "" {
			js.status = u.Message
		}
		if u.Bytes != nil {
			js.bytes = *u.Bytes
		}
		if tick != nil {
			return m, tea.Batch(tick, m.listenEventsCmd())
		}
	case jobLogMsg:
		l := msg.L
		if js, ok := m.jobs[l.JobID]; ok {
			line := strings.TrimRight(l.Line, "\r\n")
			if len(js.logsRing) > 200 {
				js.logsRing = js.logsRing[1:]
			}
			js.logsRing = append(js.logsRing, line)
		}
	case jobResultMsg:
		r := msg.R
		js, _ := m.ensureJob(r.JobID, r.SourcePath)
		js.done = true
		js.err = r.Err
		if r.Err == nil {
			js.percent = 100
			js.outputPath = r.OutputPath
			js.bytes = r.Bytes
		} else {
			js.percent = -1
		}

	case runDoneMsg:
		res := msg.Res
		m.result = &res
		return m, tea.Quit
	case allDoneMsg:
		return m, tea.Quit
	}

	// Update per-job components (spinner)
	var cmds []tea.Cmd
	for _, id := range m.jobOrder {
		js := m.jobs[id]
		var c tea.Cmd
		js.spinner, c = js.spinner.Update(msg)
		if c != nil {
			cmds = append(cmds, c)
		}
	}
	// Keep listening for events
	cmds = append(cmds, m.listenEventsCmd())
	return m, tea.Batch(cmds...)
}

// ensureJob returns the row for id, creating it on first sight. The second
// return is the new row's spinner tick command, nil for existing rows.
func (m *Model) ensureJob(id, path string) (*jobState, tea.Cmd) {
	if js, ok := m.jobs[id]; ok {
		if js.path == "" && path != "" {
			js.path = path
		}
		return js, nil
	}
	js := newJobState(id, path, m.styles)
	m.jobs[id] = &js
	m.jobOrder = append(m.jobOrder, id)
	return &js, js.spinner.Tick
}

func (m Model) View() string {
	summary := m.viewSummary()
	if summary != "" {
		return m.viewHeader() + "\n\n" + m.viewJobs() + "\n" + summary
	}
	return m.viewHeader() + "\n\n" + m.viewJobs()
}

func (m Model) listenEventsCmd() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-m.ctx.Done():
			return allDoneMsg{}
		case msg := <-m.eventCh:
			return msg
		}
	}
}

func (m Model) checkDepsCmd() tea.Cmd {
	return func() tea.Msg {
		ff, ferr := deps.FindFFmpeg(m.opts.FFmpegPath)
		if ferr != nil {
			return depsCheckedMsg{Err: ferr}
		}
		fp, perr := deps.FindFFprobe(m.opts.FFprobePath)
		if perr != nil {
			return depsCheckedMsg{Err: perr}
		}
		cs := ""
		if m.opts.Comskip {
			p, cerr := deps.FindComskip(m.opts.ComskipPath)
			if cerr != nil {
				return depsCheckedMsg{Err: cerr}
			}
			cs = p
		}
		return depsCheckedMsg{FFmpegPath: ff, FFprobePath: fp, ComskipPath: cs}
	}
}

func (m Model) scanCmd() tea.Cmd {
	return func() tea.Msg {
		rep, err := scan.Scan(m.opts.Root, m.opts.ThresholdBytes())
		return scannedMsg{Report: rep, Err: err}
	}
}

func (m Model) startRunCmd() tea.Cmd {
	return func() tea.Msg {
		if err := dirs.Ensure(m.opts.WorkDir); err != nil {
			return runDoneMsg{Res: engine.RunResult{}}
		}
		eng, err := engine.New(m.opts.ThresholdBytes(), m.opts.Passes, m.opts.WorkDir, m.opts.Jobs,
			engine.WithFFmpegPath(m.ffmpegPath),
			engine.WithProber(probe.New(m.ffprobePath, nil)),
			engine.WithStripper(comskip.New(m.comskipPath, nil)),
			engine.WithReporter(teaReporter{ch: m.eventCh}),
			engine.WithVerbose(m.opts.Verbose),
		)
		if err != nil {
			return runDoneMsg{Res: engine.RunResult{Scanned: m.report, Failed: len(m.report.Candidates)}}
		}
		ch := m.eventCh
		ctx := m.ctx
		rep := m.report
		go func() {
			res := eng.RunCandidates(ctx, rep)
			ch <- runDoneMsg{Res: res}
		}()
		return nil
	}
}

// Run launches the TUI over the configured directory tree.
func Run(ctx context.Context, opts model.CLIOptions) error {
	m := NewModel(ctx, opts)
	prog := tea.NewProgram(m, tea.WithContext(ctx))
	final, err := prog.Run()
	if err != nil {
		return err
	}
	fm, ok := final.(Model)
	if !ok {
		return nil
	}
	if fm.depsErr != nil {
		return fm.depsErr
	}
	if fm.scanErr != nil {
		return fm.scanErr
	}
	var failed []string
	for _, id := range fm.jobOrder {
		js := fm.jobs[id]
		if js != nil && js.err != nil {
			if js.path != "" {
				failed = append(failed, fmt.Sprintf("- %s: %s", js.path, js.err))
			} else {
				failed = append(failed, fmt.Sprintf("- %s", js.err))
			}
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("%d job(s) failed:\n%s", len(failed), strings.Join(failed, "\n"))
	}
	return nil
}
