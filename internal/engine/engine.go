// Package engine orchestrates the transcode run: candidate discovery,
// per-file jobs, and the ledger of completed work.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"path/filepath"
	"sync"

	"github.com/lithammer/shortuuid/v4"

	"tlvf/internal/comskip"
	"tlvf/internal/encoder"
	"tlvf/internal/model"
	"tlvf/internal/probe"
	"tlvf/internal/profile"
	"tlvf/internal/progress"
	"tlvf/internal/scan"
	"tlvf/internal/transfer"
	"tlvf/internal/util"
)

// Engine runs transcode jobs over the candidates of one scan.
type Engine struct {
	thresholdBytes int64
	passes         int
	workBase       string
	jobs           int
	verbose        bool

	ffmpegPath string

	runner        util.CmdRunner
	prober        *probe.Prober
	stripper      *comskip.Stripper
	selector      *profile.Selector
	reporter      progress.Reporter
	transferStart func(src, dstDir string) *transfer.Handle
}

// Option configures an Engine.
type Option func(*Engine)

// WithRunner injects a custom command runner (useful for testing).
func WithRunner(r util.CmdRunner) Option {
	return func(e *Engine) { e.runner = r }
}

// WithReporter attaches a progress reporter (used by the TUI).
func WithReporter(rp progress.Reporter) Option {
	return func(e *Engine) { e.reporter = rp }
}

// WithFFmpegPath sets the ffmpeg binary path.
func WithFFmpegPath(p string) Option {
	return func(e *Engine) { e.ffmpegPath = p }
}

// WithProber sets the duration/resolution prober.
func WithProber(p *probe.Prober) Option {
	return func(e *Engine) { e.prober = p }
}

// WithStripper sets the commercial-detection tool.
func WithStripper(s *comskip.Stripper) Option {
	return func(e *Engine) { e.stripper = s }
}

// WithVerbose enables subprocess command echoing.
func WithVerbose(v bool) Option {
	return func(e *Engine) { e.verbose = v }
}

// New constructs an Engine. workBase is the directory under which each job
// creates its exclusively-owned working directory.
func New(thresholdBytes int64, passes int, workBase string, jobs int, opts ...Option) (*Engine, error) {
	if passes != 1 && passes != 2 {
		return nil, fmt.Errorf("passes must be 1 or 2, got %d", passes)
	}
	if jobs <= 0 {
		jobs = 1
	}
	e := &Engine{
		thresholdBytes: thresholdBytes,
		passes:         passes,
		workBase:       workBase,
		jobs:           jobs,
		transferStart:  transfer.Start,
	}
	for _, o := range opts {
		o(e)
	}
	if e.runner == nil {
		e.runner = util.NewDefaultRunner()
	}
	if e.reporter == nil {
		e.reporter = progress.Nop{}
	}
	if e.prober == nil {
		e.prober = probe.New("ffprobe", e.runner)
	}
	if e.stripper == nil {
		e.stripper = comskip.New("", e.runner)
	}
	if e.ffmpegPath == "" {
		e.ffmpegPath = "ffmpeg"
	}
	sel, err := profile.NewSelector(Threads())
	if err != nil {
		return nil, err
	}
	e.selector = sel
	return e, nil
}

// RunResult is the outcome of a whole run.
type RunResult struct {
	Scanned scan.Report
	Ledger  []Entry
	Failed  int

	// Tree totals for the space-saved summary.
	BeforeBytes int64
	AfterBytes  int64
}

// SpaceSaved returns the aggregate byte difference for completed jobs.
func (r RunResult) SpaceSaved() int64 {
	return r.BeforeBytes - r.AfterBytes
}

// Run scans root once and drives every candidate to Completed or Failed.
// Candidates are processed largest-first through a bounded worker pool;
// with one worker (the default) behavior is strictly sequential. A job's
// failure never aborts the run.
func (e *Engine) Run(ctx context.Context, root string) (RunResult, error) {
	rep, err := scan.Scan(root, e.thresholdBytes)
	if err != nil {
		return RunResult{}, fmt.Errorf("scan %s: %w", root, err)
	}
	return e.process(ctx, rep), nil
}

// RunCandidates drives a pre-scanned candidate list; the TUI uses this to
// scan up front and show the queue before work starts.
func (e *Engine) RunCandidates(ctx context.Context, rep scan.Report) RunResult {
	return e.process(ctx, rep)
}

func (e *Engine) process(ctx context.Context, rep scan.Report) RunResult {
	ledger := &Ledger{}

	type outcome struct {
		entry Entry
		err   error
	}
	results := make([]outcome, len(rep.Candidates))

	type task struct {
		idx int
		mf  model.MediaFile
	}
	tasks := make(chan task)

	var wg sync.WaitGroup
	for w := 0; w < e.jobs; w++ {
		go func() {
			for t := range tasks {
				entry, err := e.runOne(ctx, t.mf)
				results[t.idx] = outcome{entry: entry, err: err}
				wg.Done()
			}
		}()
	}

dispatch:
	for i, mf := range rep.Candidates {
		wg.Add(1)
		select {
		case <-ctx.Done():
			wg.Done()
			break dispatch
		case tasks <- task{idx: i, mf: mf}:
		}
	}
	close(tasks)
	wg.Wait()

	res := RunResult{
		Scanned:     rep,
		BeforeBytes: rep.TotalBytes,
		AfterBytes:  rep.TotalBytes,
	}
	for _, o := range results {
		switch {
		case o.entry.JobID != "":
			ledger.Append(o.entry)
			res.AfterBytes -= o.entry.OriginalSize - o.entry.NewSize
		case o.err != nil:
			res.Failed++
		}
	}
	res.Ledger = ledger.Entries()
	return res
}

// runOne creates and drives a single job, reporting its terminal outcome.
func (e *Engine) runOne(ctx context.Context, mf model.MediaFile) (Entry, error) {
	j := &Job{
		ID:     shortuuid.New(),
		Source: mf,
		Passes: e.passes,
		state:  StateDiscovered,
		eng:    e,
	}
	e.update(j, progress.StageQueued, -1, "Queued")

	entry, err := j.run(ctx)
	if err != nil {
		e.reporter.Update(progress.Update{
			JobID:   j.ID,
			Path:    mf.Path,
			Stage:   progress.StageError,
			Percent: -1,
			Message: err.Error(),
		})
		e.reporter.Result(progress.Result{JobID: j.ID, SourcePath: mf.Path, Err: err})
		return Entry{}, err
	}

	outPath := filepath.Join(mf.Dir(), entry.NewName)
	e.update(j, progress.StageCompleted, 100, fmt.Sprintf("Replaced: %s", entry.NewName))
	e.reporter.Result(progress.Result{
		JobID:      j.ID,
		SourcePath: mf.Path,
		OutputPath: outPath,
		Bytes:      entry.NewSize,
	})
	return entry, nil
}

// runFFmpeg invokes the transcoder, feeding its machine-readable progress
// stream to the reporter. A non-zero exit surfaces as a ProcessError with
// the stderr tail attached; cancellation and binary-resolution failures
// pass through unchanged.
func (e *Engine) runFFmpeg(ctx context.Context, j *Job, args []string, durationSec float64, stage progress.Stage) error {
	ps := &encoder.ProgressState{}
	res, err := e.runner.Run(ctx, util.CmdSpec{
		Path:    e.ffmpegPath,
		Args:    args,
		Verbose: e.verbose,
		StdoutLine: func(line string) {
			if u, ok := ps.UpdateFromLine(line, j.ID, durationSec, stage); ok {
				e.reporter.Update(u)
			}
		},
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
			return err
		}
		return &ProcessError{Tool: "ffmpeg", Code: res.Code, Stderr: stderrTail(res.Stderr, 20)}
	}
	return nil
}

func (e *Engine) update(j *Job, stage progress.Stage, percent float64, msg string) {
	e.reporter.Update(progress.Update{
		JobID:   j.ID,
		Path:    j.Source.Path,
		Stage:   stage,
		Percent: percent,
		Message: msg,
	})
}

func (e *Engine) warn(j *Job, msg string) {
	e.reporter.Log(progress.Log{
		JobID:  j.ID,
		Stream: progress.StreamStderr,
		Line:   "warning: " + msg,
	})
}
