package ui

import (
	"tlvf/internal/engine"
	"tlvf/internal/progress"
	"tlvf/internal/scan"
)

type depsCheckedMsg struct {
	FFmpegPath  string
	FFprobePath string
	ComskipPath string
	Err         error
}

type scannedMsg struct {
	Report scan.Report
	Err    error
}

type jobUpdateMsg struct {
	U progress.Update
}

type jobLogMsg struct {
	L progress.Log
}

type jobResultMsg struct {
	R progress.Result
}

type runDoneMsg struct {
	Res engine.RunResult
}

type allDoneMsg struct{}
