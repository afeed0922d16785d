// Package encoder assembles ffmpeg argument lists and parses the
// transcoder's progress output. It never runs processes itself.
package encoder

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"tlvf/internal/profile"
	"tlvf/internal/util/bitrate"
)

// BuildSinglePassArgs constructs the full argument list for a one-shot
// encode: input, always-on/scale/codec groups in profile order, then the
// output path. includeProgress appends machine-readable progress reporting
// on stdout.
func BuildSinglePassArgs(inputPath string, p profile.Profile, outputPath string, includeProgress bool) []string {
	args := []string{"-y", "-i", inputPath}
	args = append(args, p.Args()...)
	if includeProgress {
		args = append(args, "-progress", "pipe:1", "-nostats")
	}
	return append(args, outputPath)
}

// TwoPassPlan holds the argument lists for a statistics pass followed by a
// quality pass that reuses those statistics.
type TwoPassPlan struct {
	PassOne []string
	PassTwo []string

	VideoKbps int
	LogFile   string
}

// BuildTwoPassPlan computes a size-targeted bitrate from the threshold and
// duration, then builds both invocations. Pass one runs fast with audio
// downmixed to one channel and its output discarded; pass two writes the
// real output through the same pass log.
func BuildTwoPassPlan(inputPath string, p profile.Profile, outputPath string, targetBytes int64, durationSec float64, includeProgress bool) TwoPassPlan {
	audioKbps := bitrate.SafeAudioKbps(96)
	kbps := bitrate.ComputeVideoKbps(targetBytes, durationSec, audioKbps, 500, 20000)
	logFile := filepath.Join(filepath.Dir(outputPath), "ffmpeg2pass")

	common := []string{"-y", "-i", inputPath}
	common = append(common, p.AlwaysOn...)
	common = append(common, p.Scale...)
	common = append(common,
		"-c:v", "libx264",
		"-b:v", fmt.Sprintf("%dk", kbps),
		"-passlogfile", logFile,
	)

	one := append(append([]string{}, common...),
		"-pass", "1",
		"-preset", "fast",
		"-c:a", "aac",
		"-ac", "1",
		"-f", "null", // overrides the container group; pass-one output is discarded
		nullSink(),
	)

	two := append(append([]string{}, common...),
		"-pass", "2",
		"-preset", "medium",
		"-c:a", "aac",
		"-b:a", strconv.Itoa(audioKbps)+"k",
	)
	if includeProgress {
		two = append(two, "-progress", "pipe:1", "-nostats")
	}
	two = append(two, outputPath)

	return TwoPassPlan{PassOne: one, PassTwo: two, VideoKbps: kbps, LogFile: logFile}
}

func nullSink() string {
	return os.DevNull
}
