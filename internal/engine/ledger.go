package engine

import "sync"

// Outcome describes how a completed job produced its output.
type Outcome string

const (
	OutcomeSinglePass         Outcome = "single-pass"
	OutcomeTwoPass            Outcome = "two-pass"
	OutcomeSinglePassFallback Outcome = "single-pass (second pass failed)"
)

// Entry records one completed job. Failed jobs never appear in the ledger.
type Entry struct {
	JobID string

	OriginalName       string
	OriginalSize       int64
	OriginalResolution string

	NewName       string
	NewSize       int64
	NewResolution string

	Outcome Outcome
}

// Ledger is the append-only record of completed jobs, in processing order.
// Appends are synchronized so jobs running in parallel can share it.
type Ledger struct {
	mu      sync.Mutex
	entries []Entry
}

// Append adds one entry.
func (l *Ledger) Append(e Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, e)
}

// Entries returns a copy of the recorded entries.
func (l *Ledger) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of recorded entries.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
