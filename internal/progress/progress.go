package progress

import "time"

// Stage identifies a high-level step in a transcode job.
type Stage string

const (
	StageQueued     Stage = "queued"
	StageStripping  Stage = "stripping"
	StageEncoding   Stage = "encoding"
	StageVerifying  Stage = "verifying"
	StageSecondPass Stage = "second pass"
	StageReplacing  Stage = "replacing"
	StageCompleted  Stage = "completed"
	StageError      Stage = "error"
)

// LogStream indicates which stream produced a log line.
type LogStream int

const (
	StreamStdout LogStream = iota
	StreamStderr
)

// Update conveys progress or stage changes for a job.
// Percent is 0..100 when known; set to a negative value (e.g., -1) to mean unknown.
type Update struct {
	JobID   string
	Path    string // source file the job is working on
	Stage   Stage
	Percent float64 // 0..100, or <0 if unknown

	ETA     *time.Duration // optional
	Bytes   *int64         // optional output bytes so far
	Speed   *string        // optional, e.g., "1.2x"
	Message string         // short human-friendly status line
}

// Log is a structured log line associated with a job.
type Log struct {
	JobID  string
	Stream LogStream
	Line   string
}

// Result is emitted once per job when it completes or fails.
type Result struct {
	JobID      string
	SourcePath string
	OutputPath string
	Bytes      int64
	Err        error // nil on success
}

// Reporter is implemented by the UI or any observer interested in progress
// events. Implementations must be safe for concurrent use; jobs running in
// parallel report through the same Reporter.
type Reporter interface {
	Update(u Update)
	Log(l Log)
	Result(r Result)
}

// Nop is a Reporter that discards everything.
type Nop struct{}

func (Nop) Update(Update) {}
func (Nop) Log(Log)       {}
func (Nop) Result(Result) {}
