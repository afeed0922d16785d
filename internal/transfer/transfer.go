// Package transfer moves completed transcode output from a job's working
// directory into the destination directory. Moves run asynchronously behind
// a poll-able handle so the caller can wait out slow cross-device copies.
package transfer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"tlvf/internal/util"
)

// ErrTransfer wraps any non-clean move result.
var ErrTransfer = errors.New("file transfer failed")

// Handle tracks one asynchronous move.
type Handle struct {
	done chan struct{}

	mu  sync.Mutex
	err error
}

// InProgress reports whether the move is still running.
func (h *Handle) InProgress() bool {
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

// Wait blocks until the move finishes and returns its result.
func (h *Handle) Wait() error {
	<-h.done
	return h.Err()
}

// Err returns the move's result; nil while still in progress or on success.
func (h *Handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Start begins moving src into dstDir, keeping src's basename. The returned
// handle is polled by the caller; the move itself replaces an existing file
// of the same name atomically where the filesystem allows.
func Start(src, dstDir string) *Handle {
	h := &Handle{done: make(chan struct{})}
	go func() {
		defer close(h.done)
		err := move(src, dstDir)
		h.mu.Lock()
		h.err = err
		h.mu.Unlock()
	}()
	return h
}

func move(src, dstDir string) error {
	if src == "" || dstDir == "" {
		return fmt.Errorf("%w: source and destination are required", ErrTransfer)
	}
	fi, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransfer, err)
	}
	if fi.IsDir() {
		return fmt.Errorf("%w: source is a directory", ErrTransfer)
	}
	dst := filepath.Join(dstDir, filepath.Base(src))
	if err := util.MoveFile(src, dst); err != nil {
		return fmt.Errorf("%w: %v", ErrTransfer, err)
	}
	return nil
}
