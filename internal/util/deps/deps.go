package deps

import (
	"fmt"
	"os"
	"os/exec"
)

// find returns the path to name, honoring an explicit override first.
func find(customPath, name string) (string, error) {
	if customPath != "" {
		if _, err := os.Stat(customPath); err == nil {
			return customPath, nil
		}
		if p, err := exec.LookPath(customPath); err == nil {
			return p, nil
		}
		return "", fmt.Errorf("could not find %s at %q", name, customPath)
	}
	if p, err := exec.LookPath(name); err == nil {
		return p, nil
	}
	return "", fmt.Errorf("could not find %s in PATH. Please install %s.", name, name)
}

// FindFFmpeg returns the path to the ffmpeg binary.
func FindFFmpeg(customPath string) (string, error) {
	return find(customPath, "ffmpeg")
}

// FindFFprobe returns the path to the ffprobe binary.
func FindFFprobe(customPath string) (string, error) {
	return find(customPath, "ffprobe")
}

// FindComskip returns the path to the comskip binary. Comskip is optional:
// callers treat a failure here as "skip commercial detection".
func FindComskip(customPath string) (string, error) {
	return find(customPath, "comskip")
}
