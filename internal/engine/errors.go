package engine

import (
	"errors"
	"fmt"
	"strings"
)

// ErrVerification marks an output file that is missing or unreadable after
// the transcoder reported success.
var ErrVerification = errors.New("output verification failed")

// ProcessError carries the context of a failed external invocation: which
// tool, its exit code, and the tail of its captured stderr.
type ProcessError struct {
	Tool   string
	Code   int
	Stderr string
}

func (e *ProcessError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("%s failed (exit %d)", e.Tool, e.Code)
	}
	return fmt.Sprintf("%s failed (exit %d): %s", e.Tool, e.Code, e.Stderr)
}

// stderrTail keeps the last few lines of captured stderr for diagnosis.
func stderrTail(b []byte, lines int) string {
	s := strings.TrimSpace(string(b))
	if s == "" {
		return ""
	}
	parts := strings.Split(s, "\n")
	if len(parts) > lines {
		parts = parts[len(parts)-lines:]
	}
	return strings.Join(parts, "\n")
}
