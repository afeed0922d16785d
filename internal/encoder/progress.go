package encoder

import (
	"strconv"
	"strings"

	"tlvf/internal/progress"
)

// ProgressState derives a completion percentage from ffmpeg's -progress
// output, given the source's total duration. The derived percent is
// monotonically non-decreasing and capped at 100; it is display-only and
// never influences job outcome.
type ProgressState struct {
	OutTimeUs int64
	SpeedStr  string
	TotalSize int64

	lastPercent float64
}

// UpdateFromLine consumes one key=value line. It returns an Update when the
// line is a progress marker ("progress=..."), carrying the latest derived
// percent.
func (ps *ProgressState) UpdateFromLine(line, jobID string, durationSec float64, stage progress.Stage) (u progress.Update, ok bool) {
	kv := strings.SplitN(line, "=", 2)
	if len(kv) != 2 {
		return progress.Update{}, false
	}

	key := strings.TrimSpace(kv[0])
	val := strings.TrimSpace(kv[1])

	switch key {
	case "out_time_ms":
		// Despite the name, ffmpeg reports microseconds here.
		if v, err := strconv.ParseInt(val, 10, 64); err == nil {
			ps.OutTimeUs = v
		}
	case "speed":
		ps.SpeedStr = val
	case "total_size":
		if v, err := strconv.ParseInt(val, 10, 64); err == nil {
			ps.TotalSize = v
		}
	case "progress":
		percent := -1.0
		if durationSec > 0 {
			den := durationSec * 1_000_000
			percent = (float64(ps.OutTimeUs) / den) * 100.0
			if percent > 100 {
				percent = 100
			}
			if percent < ps.lastPercent {
				percent = ps.lastPercent
			}
			ps.lastPercent = percent
		}

		var speedPtr *string
		if ps.SpeedStr != "" {
			s := ps.SpeedStr
			speedPtr = &s
		}
		var bytesPtr *int64
		if ps.TotalSize > 0 {
			b := ps.TotalSize
			bytesPtr = &b
		}

		return progress.Update{
			JobID:   jobID,
			Stage:   stage,
			Percent: percent,
			Speed:   speedPtr,
			Bytes:   bytesPtr,
			Message: "Encoding",
		}, true
	}

	return progress.Update{}, false
}
