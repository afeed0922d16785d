package util

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// MakeJobWorkdir creates the per-job working directory under base, named by
// the job id. The directory must not already exist; a collision means two
// jobs share an id.
func MakeJobWorkdir(base, jobID string) (string, error) {
	if base == "" || jobID == "" {
		return "", errors.New("workdir base and job id are required")
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		return "", err
	}
	dir := filepath.Join(base, jobID)
	if err := os.Mkdir(dir, 0o755); err != nil {
		return "", fmt.Errorf("create job workdir: %w", err)
	}
	return dir, nil
}

// EnsureDir creates the directory path if it does not exist.
func EnsureDir(path string) error {
	if path == "" {
		return errors.New("empty path")
	}
	return os.MkdirAll(path, 0o755)
}

// RemoveIfExists deletes the file if present.
func RemoveIfExists(path string) error {
	if _, err := os.Stat(path); err == nil {
		return os.Remove(path)
	} else if os.IsNotExist(err) {
		return nil
	} else {
		return err
	}
}

// MoveFile moves src to dst, falling back to copy+remove when the rename
// crosses filesystems. The destination is replaced if it exists.
func MoveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	if err := copyFile(src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	fi, err := in.Stat()
	if err != nil {
		return err
	}

	// Write to a sibling temp name first so a partial copy never lands at dst.
	tmp := dst + ".part"
	out, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, fi.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dst)
}
