// Package scan walks a directory tree, aggregates file statistics, and
// selects transcode candidates by size.
package scan

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"tlvf/internal/model"
)

// Video file extensions considered for transcoding (lowercase, leading dot).
var videoExtensions = map[string]bool{
	".mkv":  true,
	".mp4":  true,
	".avi":  true,
	".m4v":  true,
	".mov":  true,
	".wmv":  true,
	".flv":  true,
	".webm": true,
	".ts":   true,
	".m2ts": true,
	".mpg":  true,
	".mpeg": true,
	".vob":  true,
}

// Report holds the outcome of a tree scan: overall totals for before/after
// reporting, and the candidate list ordered largest-first.
type Report struct {
	FileCount  int
	TotalBytes int64
	Candidates []model.MediaFile
}

// IsWorkFile reports whether a basename is an in-progress work product that
// the scanner must ignore (partial copies from an interrupted run).
func IsWorkFile(basename string) bool {
	return strings.HasSuffix(basename, ".part")
}

// Scan enumerates root recursively. Every regular file counts toward the
// totals; a file becomes a candidate iff it has a video extension and its
// size strictly exceeds thresholdBytes at discovery time. Unreadable
// subtrees are skipped rather than aborting the scan; a missing or
// unreadable root is an error. Candidates are sorted by size descending;
// ties keep discovery order.
func Scan(root string, thresholdBytes int64) (Report, error) {
	var rep Report

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		rep.FileCount++
		rep.TotalBytes += info.Size()

		if IsWorkFile(d.Name()) {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if !videoExtensions[ext] {
			return nil
		}
		if info.Size() > thresholdBytes {
			rep.Candidates = append(rep.Candidates, model.MediaFile{
				Path:  path,
				Bytes: info.Size(),
				Ext:   ext,
			})
		}
		return nil
	})
	if err != nil {
		return Report{}, err
	}

	sort.SliceStable(rep.Candidates, func(i, j int) bool {
		return rep.Candidates[i].Bytes > rep.Candidates[j].Bytes
	})
	return rep, nil
}
