package ui

import (
	"fmt"
	"strings"

	"tlvf/internal/progress"
	"tlvf/internal/util/format"
)

func (m Model) viewHeader() string {
	title := m.styles.Title.Render("tlvf — shrink oversized videos")
	var sub string
	switch {
	case !m.depsChecked:
		sub = m.styles.Subtitle.Render("Checking external tools…")
	case !m.scanned:
		sub = m.styles.Subtitle.Render("Scanning " + m.opts.Root + "…")
	case len(m.report.Candidates) == 0:
		sub = m.styles.Subtitle.Render("Nothing to do: no files over the threshold.")
	default:
		done := 0
		for _, id := range m.jobOrder {
			if m.jobs[id].done {
				done++
			}
		}
		sub = m.styles.Subtitle.Render(fmt.Sprintf(
			"%d files (%s) scanned • %d candidates • %d/%d done • q: quit",
			m.report.FileCount, format.HumanizeBytes(m.report.TotalBytes),
			len(m.report.Candidates), done, len(m.report.Candidates)))
	}
	return title + "\n" + sub
}

func (m Model) viewJobs() string {
	var b strings.Builder
	for _, id := range m.jobOrder {
		js := m.jobs[id]
		b.WriteString(m.viewJob(js))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) viewJob(js *jobState) string {
	stageStyle := m.styles.JobInfo
	switch js.stage {
	case progress.StageQueued:
		stageStyle = m.styles.StageQueue
	case progress.StageStripping, progress.StageVerifying, progress.StageReplacing:
		stageStyle = m.styles.StagePrep
	case progress.StageEncoding, progress.StageSecondPass:
		stageStyle = m.styles.StageEnc
	case progress.StageCompleted:
		stageStyle = m.styles.Success
	case progress.StageError:
		stageStyle = m.styles.Error
	}

	left := m.styles.JobTitle.Render(truncate(js.path, 64))
	stage := stageStyle.Render(string(js.stage))

	var right string
	if js.percent >= 0 && js.percent <= 100 {
		right = fmt.Sprintf("%s %5.1f%%", js.bar.ViewAs(js.percent/100.0), js.percent)
	} else if js.done && js.err == nil {
		right = m.styles.Success.Render("✓ done")
	} else if js.err != nil {
		right = m.styles.Error.Render("✗ error")
	} else {
		right = m.styles.Spinner.Render(js.spinner.View()) + " " + m.styles.Faint.Render("working")
	}

	line1 := fmt.Sprintf("%s  %s", left, stage)
	line2 := m.styles.JobInfo.Render(js.status)
	return m.styles.Box.Render(line1 + "\n" + right + "\n" + line2)
}

func (m Model) viewSummary() string {
	if m.result == nil {
		return ""
	}
	var b strings.Builder
	for _, e := range m.result.Ledger {
		b.WriteString(m.styles.Success.Render(fmt.Sprintf("  • %s -> %s (%s, %s)",
			e.OriginalName, e.NewName,
			format.HumanizeBytes(e.NewSize), format.Shrinkage(e.OriginalSize, e.NewSize))))
		b.WriteString("\n")
	}
	if b.Len() == 0 {
		return ""
	}
	head := m.styles.Subtitle.Render(fmt.Sprintf("✓ Replaced %d file(s), %s saved:",
		len(m.result.Ledger), format.HumanizeBytes(m.result.SpaceSaved())))
	return head + "\n" + b.String()
}

func truncate(s string, n int) string {
	rs := []rune(s)
	if n <= 0 || len(rs) <= n {
		return s
	}
	return string(rs[:n-1]) + "…"
}
