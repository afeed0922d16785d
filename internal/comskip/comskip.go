// Package comskip invokes the external commercial-detection tool on tuner
// recordings. Detection is best-effort: a failure is reported to the caller
// but is never meant to stop a transcode.
package comskip

import (
	"context"
	"fmt"

	"tlvf/internal/util"
)

// TunerExt is the container extension that marks a tuner recording.
const TunerExt = ".ts"

// Stripper runs comskip against source files in place.
type Stripper struct {
	Path   string // comskip binary; empty disables stripping
	Runner util.CmdRunner
}

// New returns a Stripper. A nil runner selects the real subprocess runner.
func New(path string, runner util.CmdRunner) *Stripper {
	if runner == nil {
		runner = util.NewDefaultRunner()
	}
	return &Stripper{Path: path, Runner: runner}
}

// Enabled reports whether commercial stripping is configured.
func (s *Stripper) Enabled() bool {
	return s != nil && s.Path != ""
}

// Applies reports whether stripping applies to the given extension.
func (s *Stripper) Applies(ext string) bool {
	return s.Enabled() && ext == TunerExt
}

// Strip invokes comskip on file. Only the exit code matters; comskip's
// chapter/edl side-effect files land next to the source.
func (s *Stripper) Strip(ctx context.Context, file string) error {
	res, err := s.Runner.Run(ctx, util.CmdSpec{
		Path: s.Path,
		Args: []string{file},
	})
	if err != nil {
		return fmt.Errorf("comskip exit %d: %w", res.Code, err)
	}
	return nil
}
