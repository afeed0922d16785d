package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"tlvf/internal/comskip"
	"tlvf/internal/dirs"
	"tlvf/internal/engine"
	"tlvf/internal/model"
	"tlvf/internal/probe"
	"tlvf/internal/profile"
	"tlvf/internal/progress"
	"tlvf/internal/scan"
	"tlvf/internal/ui"
	"tlvf/internal/util/deps"
	"tlvf/internal/util/format"
)

type runMode struct {
	ForceTUI   bool
	DryRunOnly bool
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "run [directory]",
		Short:         "Scan a tree and replace oversized videos with smaller encodes",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.MaximumNArgs(1),
		PreRunE:       runPreRun,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExecute(cmd, args, runMode{
				ForceTUI:   false,
				DryRunOnly: false,
			})
		},
	}
	// Bind same flags as root for explicit subcommand usage
	bindRunFlags(cmd.Flags())
	_ = cmd.Flags().MarkDeprecated("dry-run", "use 'tlvf plan' instead")
	return cmd
}

type ctxKey string

const runInputsKey ctxKey = "runInputs"

type runInputs struct {
	Options model.CLIOptions
}

func runPreRun(cmd *cobra.Command, args []string) error {
	opts, err := assembleRunInputs(cmd, args)
	if err != nil {
		return &ExitError{Code: ExitCLIError, Err: err}
	}
	ctx := context.WithValue(cmd.Context(), runInputsKey, runInputs{Options: opts})
	cmd.SetContext(ctx)
	return nil
}

func assembleRunInputs(cmd *cobra.Command, args []string) (model.CLIOptions, error) {
	root := "."
	if len(args) == 1 {
		root = args[0]
	}
	root = filepath.Clean(root)
	fi, err := os.Stat(root)
	if err != nil {
		return model.CLIOptions{}, fmt.Errorf("cannot scan %q: %v", root, err)
	}
	if !fi.IsDir() {
		return model.CLIOptions{}, fmt.Errorf("%q is not a directory", root)
	}

	// Flag > env/config > default
	threshold := getPersistentFloat64(cmd, "threshold-gb", 4.0)
	if !cmd.Flags().Changed("threshold-gb") && viper.IsSet("threshold_gb") {
		threshold = viper.GetFloat64("threshold_gb")
	}
	if threshold <= 0 {
		return model.CLIOptions{}, fmt.Errorf("invalid --threshold-gb: %v (must be positive)", threshold)
	}

	passes := getPersistentInt(cmd, "passes", 1)
	if !cmd.Flags().Changed("passes") && viper.IsSet("passes") {
		passes = viper.GetInt("passes")
	}
	if passes != 1 && passes != 2 {
		return model.CLIOptions{}, fmt.Errorf("invalid --passes: %d (valid: 1|2)", passes)
	}

	workDir := getPersistentString(cmd, "work-dir", "")
	if workDir == "" {
		workDir = viper.GetString("work_dir")
	}
	if workDir == "" {
		if workDir, err = dirs.WorkBaseDir(); err != nil {
			return model.CLIOptions{}, fmt.Errorf("no usable work directory: %v", err)
		}
	}

	jobs := getPersistentInt(cmd, "jobs", 1)
	if !cmd.Flags().Changed("jobs") && viper.IsSet("jobs") {
		jobs = viper.GetInt("jobs")
	}
	if jobs <= 0 {
		jobs = 1
	}

	dryRun, _ := cmd.Flags().GetBool("dry-run")
	noUI, _ := cmd.Flags().GetBool("no-ui")

	opts := model.CLIOptions{
		Root:        root,
		ThresholdGB: threshold,
		Passes:      passes,
		WorkDir:     workDir,
		Comskip:     getPersistentBool(cmd, "comskip", false) || viper.GetBool("comskip"),
		FFmpegPath:  getPersistentString(cmd, "ffmpeg", viper.GetString("ffmpeg")),
		FFprobePath: getPersistentString(cmd, "ffprobe", viper.GetString("ffprobe")),
		ComskipPath: getPersistentString(cmd, "comskip-path", viper.GetString("comskip_path")),
		DryRun:      dryRun,
		Verbose:     getPersistentBool(cmd, "verbose", false) || viper.GetBool("verbose"),
		NoUI:        noUI,
		Jobs:        jobs,
	}
	return opts, nil
}

func runExecute(cmd *cobra.Command, args []string, mode runMode) error {
	// Grab inputs from context; if not present (root directly called without PreRunE), assemble now.
	var in runInputs
	if v := cmd.Context().Value(runInputsKey); v != nil {
		in = v.(runInputs)
	} else {
		opts, err := assembleRunInputs(cmd, args)
		if err != nil {
			return &ExitError{Code: ExitCLIError, Err: err}
		}
		in = runInputs{Options: opts}
	}

	if mode.DryRunOnly {
		in.Options.DryRun = true
		in.Options.NoUI = true
	}

	// TUI path (forced or auto if TTY and not disabled)
	useTUI := mode.ForceTUI || (!in.Options.NoUI && isTerminal())
	if useTUI && !in.Options.DryRun {
		if err := ui.Run(cmd.Context(), in.Options); err != nil {
			return &ExitError{Code: ExitCLIError, Err: err}
		}
		return nil
	}

	if in.Options.DryRun {
		return printPlan(cmd, in.Options)
	}

	e, err := buildEngine(in.Options, &plainReporter{out: cmd.OutOrStdout(), err: cmd.ErrOrStderr()})
	if err != nil {
		return err
	}

	res, rerr := e.Run(cmd.Context(), in.Options.Root)
	if rerr != nil {
		return &ExitError{Code: ExitScanError, Err: rerr}
	}
	printSummary(cmd, res)
	if res.Failed > 0 {
		return &ExitError{Code: ExitTranscodeError, Err: fmt.Errorf("%d job(s) failed", res.Failed)}
	}
	return nil
}

// buildEngine resolves external tools and assembles the engine. Shared by
// the plain path and the TUI.
func buildEngine(opts model.CLIOptions, rep progress.Reporter) (*engine.Engine, error) {
	ffmpegPath, ferr := deps.FindFFmpeg(opts.FFmpegPath)
	if ferr != nil {
		return nil, &ExitError{Code: ExitMissingDep, Err: ferr}
	}
	ffprobePath, perr := deps.FindFFprobe(opts.FFprobePath)
	if perr != nil {
		return nil, &ExitError{Code: ExitMissingDep, Err: perr}
	}

	comskipPath := ""
	if opts.Comskip {
		p, cerr := deps.FindComskip(opts.ComskipPath)
		if cerr != nil {
			return nil, &ExitError{Code: ExitMissingDep, Err: cerr}
		}
		comskipPath = p
	}

	if err := dirs.Ensure(opts.WorkDir); err != nil {
		return nil, &ExitError{Code: ExitCLIError, Err: fmt.Errorf("failed to create work dir: %v", err)}
	}

	e, err := engine.New(opts.ThresholdBytes(), opts.Passes, opts.WorkDir, opts.Jobs,
		engine.WithFFmpegPath(ffmpegPath),
		engine.WithProber(probe.New(ffprobePath, nil)),
		engine.WithStripper(comskip.New(comskipPath, nil)),
		engine.WithReporter(rep),
		engine.WithVerbose(opts.Verbose),
	)
	if err != nil {
		return nil, &ExitError{Code: ExitCLIError, Err: err}
	}
	return e, nil
}

func isTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// printPlan scans and lists what a real run would do, without executing.
func printPlan(cmd *cobra.Command, opts model.CLIOptions) error {
	rep, err := scan.Scan(opts.Root, opts.ThresholdBytes())
	if err != nil {
		return &ExitError{Code: ExitScanError, Err: err}
	}
	sel, err := profile.NewSelector(engine.Threads())
	if err != nil {
		return &ExitError{Code: ExitCLIError, Err: err}
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Scanned %d files (%s) under %s\n", rep.FileCount, format.HumanizeBytes(rep.TotalBytes), opts.Root)
	fmt.Fprintf(out, "Threshold: %s, passes: %d\n", format.HumanizeBytes(opts.ThresholdBytes()), opts.Passes)
	if len(rep.Candidates) == 0 {
		fmt.Fprintln(out, "Nothing to do: no files over the threshold.")
		return nil
	}
	fmt.Fprintf(out, "Candidates (%d, largest first):\n", len(rep.Candidates))
	for _, mf := range rep.Candidates {
		p := sel.Select(mf.Ext, "")
		mode := "re-encode"
		if p.IsStreamCopy() {
			mode = "stream copy"
		}
		fmt.Fprintf(out, "- %s  %s  [%s]\n", mf.Path, format.HumanizeBytes(mf.Bytes), mode)
	}
	return nil
}

func printSummary(cmd *cobra.Command, res engine.RunResult) {
	out := cmd.OutOrStdout()
	for _, e := range res.Ledger {
		fmt.Fprintf(out, "Replaced: %s (%s) -> %s (%s, %s) [%s]\n",
			e.OriginalName, format.HumanizeBytes(e.OriginalSize),
			e.NewName, format.HumanizeBytes(e.NewSize),
			format.Shrinkage(e.OriginalSize, e.NewSize), e.Outcome)
	}
	fmt.Fprintf(out, "Done: %d replaced, %d failed, %s saved (tree: %s -> %s)\n",
		len(res.Ledger), res.Failed,
		format.HumanizeBytes(res.SpaceSaved()),
		format.HumanizeBytes(res.BeforeBytes), format.HumanizeBytes(res.AfterBytes))
}

// plainReporter prints progress events as plain lines for non-TTY runs.
type plainReporter struct {
	mu        sync.Mutex
	out, err  io.Writer
	lastStage map[string]progress.Stage
}

func (r *plainReporter) Update(u progress.Update) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lastStage == nil {
		r.lastStage = make(map[string]progress.Stage)
	}
	// Only stage transitions; per-line encode progress is TUI material.
	if r.lastStage[u.JobID] == u.Stage {
		return
	}
	r.lastStage[u.JobID] = u.Stage
	if u.Message != "" {
		fmt.Fprintf(r.out, "[%s] %s: %s\n", u.JobID, u.Stage, u.Message)
	} else {
		fmt.Fprintf(r.out, "[%s] %s\n", u.JobID, u.Stage)
	}
}

func (r *plainReporter) Log(l progress.Log) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.err, "[%s] %s\n", l.JobID, l.Line)
}

func (r *plainReporter) Result(res progress.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if res.Err != nil {
		fmt.Fprintf(r.err, "[%s] failed: %s: %v\n", res.JobID, res.SourcePath, res.Err)
		return
	}
	fmt.Fprintf(r.out, "[%s] saved: %s (%s)\n", res.JobID, res.OutputPath, format.HumanizeBytes(res.Bytes))
}
