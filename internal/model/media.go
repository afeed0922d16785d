package model

import "path/filepath"

// MediaFile is a video file discovered during the scan. Immutable once
// discovered; Resolution and DurationSec are filled in lazily by a probe.
type MediaFile struct {
	Path        string
	Bytes       int64
	Ext         string  // lowercase, with leading dot
	Resolution  string  // "1920x1080", empty until probed
	DurationSec float64 // 0 until probed
}

// Name returns the file's basename.
func (m MediaFile) Name() string {
	return filepath.Base(m.Path)
}

// Dir returns the file's parent directory.
func (m MediaFile) Dir() string {
	return filepath.Dir(m.Path)
}

// CLIOptions holds user-configurable runtime options as parsed from flags.
type CLIOptions struct {
	Root        string  // Directory tree to scan
	ThresholdGB float64 // Files strictly larger than this are candidates
	Passes      int     // Planned pass count: 1 or 2
	WorkDir     string  // Base for per-job working directories; empty = cache dir
	Comskip     bool    // Run commercial detection on tuner recordings (.ts)

	FFmpegPath  string // Optional explicit path to ffmpeg
	FFprobePath string // Optional explicit path to ffprobe
	ComskipPath string // Optional explicit path to comskip

	DryRun  bool
	Verbose bool

	NoUI bool // Disable TUI when true
	Jobs int  // Max concurrent transcode jobs
}

// ThresholdBytes converts the configured threshold to bytes.
func (o CLIOptions) ThresholdBytes() int64 {
	return int64(o.ThresholdGB * 1024 * 1024 * 1024)
}
