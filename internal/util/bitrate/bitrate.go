// Package bitrate computes size-constrained video bitrates for two-pass
// encoding: the pass-2 bitrate is chosen so the final file lands at or under
// the size threshold that made the source a candidate in the first place.
package bitrate

// ComputeVideoKbps calculates a video bitrate (kbps) that fits targetBytes
// given the media duration, after reserving room for the audio track. The
// result is clamped to [minKbps, maxKbps]; a zero bound disables that clamp.
func ComputeVideoKbps(targetBytes int64, durationSec float64, audioKbps, minKbps, maxKbps int) int {
	if durationSec <= 0 || targetBytes <= 0 {
		return clamp(2000, minKbps, maxKbps)
	}
	totalBps := float64(targetBytes*8) / durationSec
	videoBps := totalBps - float64(audioKbps*1000)
	kbps := int(videoBps / 1000.0)
	return clamp(kbps, minKbps, maxKbps)
}

// SafeAudioKbps normalizes an audio bitrate to a sane range, defaulting to 96.
func SafeAudioKbps(v int) int {
	if v <= 0 {
		return 96
	}
	if v < 32 {
		return 32
	}
	if v > 320 {
		return 320
	}
	return v
}

func clamp(v, min, max int) int {
	if min != 0 && v < min {
		return min
	}
	if max != 0 && v > max {
		return max
	}
	return v
}
