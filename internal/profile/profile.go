// Package profile maps container extension and probed resolution to the
// transcoder argument set for a file.
package profile

import (
	"fmt"
	"strconv"
)

// Profile is the resolved argument groups for one file. The transcoder is
// order-sensitive, so Args() concatenates the groups in a fixed order:
// always-on, scaling, codec.
type Profile struct {
	AlwaysOn []string // container, audio rate/channels, thread count
	Scale    []string // resolution-specific, may be empty (pass-through)
	Codec    []string // extension-specific

	// Extension the profile was selected for, kept for reporting.
	Ext string
}

// Args returns the concatenated argument list in fixed group order.
func (p Profile) Args() []string {
	out := make([]string, 0, len(p.AlwaysOn)+len(p.Scale)+len(p.Codec))
	out = append(out, p.AlwaysOn...)
	out = append(out, p.Scale...)
	out = append(out, p.Codec...)
	return out
}

// IsStreamCopy reports whether the codec group is the stream-copy default.
func (p Profile) IsStreamCopy() bool {
	for i := 0; i+1 < len(p.Codec); i++ {
		if p.Codec[i] == "-c:v" && p.Codec[i+1] == "copy" {
			return true
		}
	}
	return false
}

// extension → codec argument group. Tuner recordings (.ts) and older
// containers get a full re-encode; anything unlisted falls back to
// defaultCodecArgs.
var codecByExt = map[string][]string{
	".ts":   {"-c:v", "libx264", "-preset", "medium", "-crf", "21", "-c:a", "aac"},
	".m2ts": {"-c:v", "libx264", "-preset", "medium", "-crf", "21", "-c:a", "aac"},
	".avi":  {"-c:v", "libx264", "-preset", "medium", "-crf", "22", "-c:a", "aac"},
	".wmv":  {"-c:v", "libx264", "-preset", "medium", "-crf", "22", "-c:a", "aac"},
	".mpg":  {"-c:v", "libx264", "-preset", "medium", "-crf", "22", "-c:a", "aac"},
	".mpeg": {"-c:v", "libx264", "-preset", "medium", "-crf", "22", "-c:a", "aac"},
	".vob":  {"-c:v", "libx264", "-preset", "medium", "-crf", "22", "-c:a", "aac"},
	".mkv":  {"-c:v", "libx264", "-preset", "medium", "-crf", "23", "-c:a", "aac"},
	".mp4":  {"-c:v", "libx264", "-preset", "medium", "-crf", "23", "-c:a", "aac"},
	".m4v":  {"-c:v", "libx264", "-preset", "medium", "-crf", "23", "-c:a", "aac"},
	".mov":  {"-c:v", "libx264", "-preset", "medium", "-crf", "23", "-c:a", "aac"},
	".flv":  {"-c:v", "libx264", "-preset", "medium", "-crf", "23", "-c:a", "aac"},
	".webm": {"-c:v", "libx264", "-preset", "medium", "-crf", "23", "-c:a", "aac"},
}

// Safe default for unrecognized extensions: remux without re-encoding.
var defaultCodecArgs = []string{"-c:v", "copy", "-c:a", "copy"}

// exact probed resolution → scale filter. An unmatched resolution gets no
// scaling argument; that pass-through is deliberate.
var scaleByResolution = map[string][]string{
	"3840x2160": {"-vf", "scale=1920:1080"},
	"2560x1440": {"-vf", "scale=1920:1080"},
	"1920x1080": {"-vf", "scale=1280:720"},
	"1440x1080": {"-vf", "scale=960:720"},
}

// Selector resolves profiles from the static tables. The tables are
// validated once in NewSelector; Select never fails.
type Selector struct {
	alwaysOn []string
}

// NewSelector builds a Selector whose always-on group pins the output
// container, audio rate and channel count, and the transcoder thread count.
// It validates the static tables and returns an error on a malformed entry.
func NewSelector(threads int) (*Selector, error) {
	if threads <= 0 {
		threads = 1
	}
	for ext, args := range codecByExt {
		if len(args) == 0 || len(args)%2 != 0 {
			return nil, fmt.Errorf("malformed codec args for %q: %v", ext, args)
		}
	}
	for res, args := range scaleByResolution {
		if len(args) != 2 || args[0] != "-vf" {
			return nil, fmt.Errorf("malformed scale args for %q: %v", res, args)
		}
	}
	return &Selector{
		alwaysOn: []string{
			"-f", "mp4",
			"-movflags", "+faststart",
			"-ar", "44100",
			"-ac", "2",
			"-threads", strconv.Itoa(threads),
		},
	}, nil
}

// Select maps (extension, probed resolution) to a Profile. Unknown
// extensions get the stream-copy default; unknown or empty resolutions get
// no scaling. Never an error.
func (s *Selector) Select(ext, resolution string) Profile {
	codec, ok := codecByExt[ext]
	if !ok {
		codec = defaultCodecArgs
	}
	return Profile{
		AlwaysOn: s.alwaysOn,
		Scale:    scaleByResolution[resolution],
		Codec:    codec,
		Ext:      ext,
	}
}
