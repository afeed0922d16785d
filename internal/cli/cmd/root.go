package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"tlvf/internal/config"
)

const (
	ExitOK             = 0
	ExitCLIError       = 1
	ExitMissingDep     = 2
	ExitScanError      = 3
	ExitTranscodeError = 4
)

// ExitError wraps an error with a process exit code.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "tlvf [directory]",
		Short:         "Shrink oversized video files in place",
		Long:          "tlvf walks a directory tree, finds video files larger than a size threshold, re-encodes each one with ffmpeg, and swaps the smaller result in for the original only after the encode verifies cleanly. Originals are never touched until their replacement is in place.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExecute(cmd, args, runMode{
				ForceTUI:   false,
				DryRunOnly: false,
			})
		},
	}

	// Persistent flags available to all subcommands
	root.PersistentFlags().Float64P("threshold-gb", "t", 4.0, "Size threshold in GB; files strictly larger are candidates")
	root.PersistentFlags().Int("passes", 1, "Encode passes: 1, or 2 to re-encode outputs still over the threshold")
	root.PersistentFlags().String("work-dir", "", "Base directory for per-job working directories (default: cache dir)")
	root.PersistentFlags().Bool("comskip", false, "Run commercial detection on tuner recordings (.ts)")
	root.PersistentFlags().String("ffmpeg", "", "Path to ffmpeg")
	root.PersistentFlags().String("ffprobe", "", "Path to ffprobe")
	root.PersistentFlags().String("comskip-path", "", "Path to comskip")
	root.PersistentFlags().Int("jobs", 1, "Max concurrent transcode jobs")
	root.PersistentFlags().BoolP("verbose", "v", false, "Show full subprocess commands/output")

	// Also bind run-specific flags on root, so `tlvf <dir>` works without a subcommand.
	bindRunFlags(root.Flags())

	_ = root.Flags().MarkDeprecated("dry-run", "use 'tlvf plan' instead")

	// Subcommands
	root.AddCommand(newRunCmd())
	root.AddCommand(newPlanCmd())
	root.AddCommand(newTuiCmd())
	root.AddCommand(newDoctorCmd())
	root.AddCommand(newCompletionCmd())

	return root
}

func bindRunFlags(fs *pflag.FlagSet) {
	fs.Bool("dry-run", false, "Show the candidate list and plan without executing") // deprecated in favor of 'plan'
	fs.Bool("no-ui", false, "Disable TUI; use plain textual output")
}

// Execute runs the CLI with the provided context.
func Execute(ctx context.Context) error {
	root := newRootCmd()
	_ = config.Init(root)
	return root.ExecuteContext(ctx)
}

// Helpers. cmd.Flags() sees persistent flags on both the root command and
// its subcommands, which InheritedFlags does not.
func getPersistentString(cmd *cobra.Command, name, def string) string {
	v, err := cmd.Flags().GetString(name)
	if err != nil || v == "" {
		return def
	}
	return v
}

func getPersistentBool(cmd *cobra.Command, name string, def bool) bool {
	v, err := cmd.Flags().GetBool(name)
	if err != nil {
		return def
	}
	return v
}

func getPersistentInt(cmd *cobra.Command, name string, def int) int {
	v, err := cmd.Flags().GetInt(name)
	if err != nil {
		return def
	}
	return v
}

func getPersistentFloat64(cmd *cobra.Command, name string, def float64) float64 {
	v, err := cmd.Flags().GetFloat64(name)
	if err != nil {
		return def
	}
	return v
}
