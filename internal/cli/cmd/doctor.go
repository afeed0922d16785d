package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"tlvf/internal/util/deps"
)

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:           "doctor",
		Short:         "Diagnose external dependencies (ffmpeg, ffprobe, comskip)",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ff, ferr := deps.FindFFmpeg(getPersistentString(cmd, "ffmpeg", ""))
			if ferr != nil {
				return &ExitError{Code: ExitMissingDep, Err: ferr}
			}
			fp, perr := deps.FindFFprobe(getPersistentString(cmd, "ffprobe", ""))
			if perr != nil {
				return &ExitError{Code: ExitMissingDep, Err: perr}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "FFmpeg:  %s\n", ff)
			fmt.Fprintf(cmd.OutOrStdout(), "FFprobe: %s\n", fp)
			// Comskip is optional; report without failing.
			if cs, cerr := deps.FindComskip(getPersistentString(cmd, "comskip-path", "")); cerr == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Comskip: %s\n", cs)
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "Comskip: not found (optional; --comskip requires it)")
			}
			return nil
		},
	}
}
