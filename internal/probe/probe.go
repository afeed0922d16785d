// Package probe extracts resolution and duration from media files using the
// ffprobe command-line tool.
package probe

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"tlvf/internal/util"
)

// Info is the probed metadata of a media file. Zero values mean the probe
// produced no usable output; callers fall through to defaults rather than
// treating that as fatal.
type Info struct {
	Resolution  string // "1920x1080", empty when unknown
	DurationSec float64
}

// Prober runs ffprobe against media files.
type Prober struct {
	Path   string // ffprobe binary
	Runner util.CmdRunner
}

// New returns a Prober using the given ffprobe path.
func New(path string, runner util.CmdRunner) *Prober {
	if runner == nil {
		runner = util.NewDefaultRunner()
	}
	return &Prober{Path: path, Runner: runner}
}

var resolutionRe = regexp.MustCompile(`^(\d+)x(\d+)$`)

// Probe returns resolution and duration for the file. ffprobe failures and
// unparseable output yield a zero Info and a non-nil error; callers decide
// whether that ends the job (duration) or just disables scaling (resolution).
func (p *Prober) Probe(ctx context.Context, file string) (Info, error) {
	res, err := p.Resolution(ctx, file)
	if err != nil {
		return Info{}, err
	}
	dur, err := p.Duration(ctx, file)
	if err != nil {
		return Info{}, err
	}
	return Info{Resolution: res, DurationSec: dur}, nil
}

// Resolution probes the first video stream for "<width>x<height>". Empty or
// malformed output is returned as "" without error: unmatched resolutions
// are a deliberate pass-through, not a defect.
func (p *Prober) Resolution(ctx context.Context, file string) (string, error) {
	out, err := p.run(ctx, []string{
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height",
		"-of", "csv=s=x:p=0",
		file,
	})
	if err != nil {
		return "", err
	}
	s := strings.TrimSpace(out)
	if !resolutionRe.MatchString(s) {
		return "", nil
	}
	return s, nil
}

// Duration probes the container duration in seconds. Unparseable output
// yields 0 without error.
func (p *Prober) Duration(ctx context.Context, file string) (float64, error) {
	out, err := p.run(ctx, []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		file,
	})
	if err != nil {
		return 0, err
	}
	d, perr := strconv.ParseFloat(strings.TrimSpace(out), 64)
	if perr != nil || d < 0 {
		return 0, nil
	}
	return d, nil
}

func (p *Prober) run(ctx context.Context, args []string) (string, error) {
	res, err := p.Runner.Run(ctx, util.CmdSpec{
		Path:          p.Path,
		Args:          args,
		CaptureStdout: true,
	})
	if err != nil {
		return "", fmt.Errorf("ffprobe: %w", err)
	}
	return string(res.Stdout), nil
}
