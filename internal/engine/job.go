package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tlvf/internal/encoder"
	"tlvf/internal/model"
	"tlvf/internal/profile"
	"tlvf/internal/progress"
	"tlvf/internal/util"
)

// State is a job's position in its lifecycle. Transitions are strictly
// sequential; Completed and Failed are terminal.
type State string

const (
	StateDiscovered          State = "discovered"
	StateCommercialStripping State = "commercial-stripping"
	StateFirstPass           State = "first-pass"
	StateVerifying           State = "verifying"
	StateSecondPass          State = "second-pass"
	StateReplacing           State = "replacing"
	StateCompleted           State = "completed"
	StateFailed              State = "failed"
)

// Job drives one candidate file from discovery to replacement or failure.
type Job struct {
	ID      string
	Source  model.MediaFile
	WorkDir string
	Passes  int

	state   State
	profile profile.Profile
	outPath string
	outcome Outcome

	eng *Engine
}

// State returns the job's current state.
func (j *Job) State() State {
	return j.state
}

func (j *Job) setState(s State) {
	j.state = s
}

// outputName returns the basename of the transcoded file. The always-on
// argument group pins the MP4 container, so the extension changes with it.
func outputName(src model.MediaFile) string {
	return strings.TrimSuffix(src.Name(), src.Ext) + ".mp4"
}

// run executes the state machine. On any failure the working directory is
// purged, the original file is left untouched, and the error is returned;
// the caller decides whether to continue with other candidates.
func (j *Job) run(ctx context.Context) (Entry, error) {
	e := j.eng
	src := j.Source

	workdir, err := util.MakeJobWorkdir(e.workBase, j.ID)
	if err != nil {
		return Entry{}, j.fail(fmt.Errorf("create workdir: %w", err))
	}
	j.WorkDir = workdir

	// 1. Commercial strip, tuner recordings only. Best-effort: a failed
	// detection run is logged and the job proceeds.
	if e.stripper.Applies(src.Ext) {
		j.setState(StateCommercialStripping)
		e.update(j, progress.StageStripping, -1, "Detecting commercials")
		if serr := e.stripper.Strip(ctx, src.Path); serr != nil {
			e.warn(j, fmt.Sprintf("commercial detection failed, continuing: %v", serr))
		}
	}

	// 2. First pass.
	info, perr := e.prober.Probe(ctx, src.Path)
	if perr != nil {
		return Entry{}, j.fail(perr)
	}
	src.Resolution = info.Resolution
	src.DurationSec = info.DurationSec

	j.profile = e.selector.Select(src.Ext, src.Resolution)
	j.outPath = filepath.Join(workdir, outputName(src))

	j.setState(StateFirstPass)
	e.update(j, progress.StageEncoding, 0, "Encoding")
	args := encoder.BuildSinglePassArgs(src.Path, j.profile, j.outPath, true)
	if rerr := e.runFFmpeg(ctx, j, args, src.DurationSec, progress.StageEncoding); rerr != nil {
		return Entry{}, j.fail(rerr)
	}

	// 3. Verify the first-pass output.
	j.setState(StateVerifying)
	e.update(j, progress.StageVerifying, -1, "Verifying output")
	fi, serr := os.Stat(j.outPath)
	if serr != nil {
		return Entry{}, j.fail(fmt.Errorf("%w: %v", ErrVerification, serr))
	}
	newSize := fi.Size()
	newRes, rerr := e.prober.Resolution(ctx, j.outPath)
	if rerr != nil {
		// Resolution of the output is informational only.
		newRes = ""
	}
	j.outcome = OutcomeSinglePass

	// 4. Second pass, only when configured and the output is still over
	// the threshold.
	if j.Passes == 2 && newSize > e.thresholdBytes {
		if size, ok := j.secondPass(ctx, src); ok {
			newSize = size
			j.outcome = OutcomeTwoPass
			if res, err := e.prober.Resolution(ctx, j.outPath); err == nil {
				newRes = res
			}
		} else {
			j.outcome = OutcomeSinglePassFallback
		}
	}

	// 5. Replace the original.
	j.setState(StateReplacing)
	e.update(j, progress.StageReplacing, -1, "Moving into place")
	h := e.transferStart(j.outPath, src.Dir())
	for h.InProgress() {
		select {
		case <-ctx.Done():
			return Entry{}, j.fail(ctx.Err())
		case <-time.After(50 * time.Millisecond):
		}
	}
	if terr := h.Err(); terr != nil {
		return Entry{}, j.fail(terr)
	}

	// 6. Only a clean transfer authorizes deleting the original. When the
	// new name equals the original name the move above already replaced it.
	newName := outputName(src)
	if newName != src.Name() {
		if derr := os.Remove(src.Path); derr != nil {
			e.warn(j, fmt.Sprintf("could not remove original: %v", derr))
		}
	}
	_ = os.RemoveAll(workdir)

	j.setState(StateCompleted)
	entry := Entry{
		JobID:              j.ID,
		OriginalName:       src.Name(),
		OriginalSize:       src.Bytes,
		OriginalResolution: src.Resolution,
		NewName:            newName,
		NewSize:            newSize,
		NewResolution:      newRes,
		Outcome:            j.outcome,
	}
	return entry, nil
}

// secondPass runs the statistics pass and the quality pass. The first-pass
// output is set aside beforehand and restored when either invocation fails,
// so the job can fall back to the single-pass result. Returns the final
// output size and whether the two-pass result is in place.
func (j *Job) secondPass(ctx context.Context, src model.MediaFile) (int64, bool) {
	e := j.eng
	j.setState(StateSecondPass)
	e.update(j, progress.StageSecondPass, 0, "Second pass")

	keep := j.outPath + ".pass1"
	if err := os.Rename(j.outPath, keep); err != nil {
		e.warn(j, fmt.Sprintf("second pass skipped: %v", err))
		return 0, false
	}
	restore := func() {
		_ = util.RemoveIfExists(j.outPath)
		_ = os.Rename(keep, j.outPath)
	}

	plan := encoder.BuildTwoPassPlan(src.Path, j.profile, j.outPath, e.thresholdBytes, src.DurationSec, true)

	if err := e.runFFmpeg(ctx, j, plan.PassOne, src.DurationSec, progress.StageSecondPass); err != nil {
		e.warn(j, fmt.Sprintf("second pass (logging) failed, keeping single-pass output: %v", err))
		restore()
		return 0, false
	}
	if err := e.runFFmpeg(ctx, j, plan.PassTwo, src.DurationSec, progress.StageSecondPass); err != nil {
		e.warn(j, fmt.Sprintf("second pass (quality) failed, keeping single-pass output: %v", err))
		restore()
		return 0, false
	}

	fi, err := os.Stat(j.outPath)
	if err != nil {
		e.warn(j, fmt.Sprintf("second pass output unreadable, keeping single-pass output: %v", err))
		restore()
		return 0, false
	}
	_ = os.Remove(keep)
	return fi.Size(), true
}

// fail purges the working directory, leaves the original untouched, and
// moves the job to its terminal failed state.
func (j *Job) fail(err error) error {
	if j.WorkDir != "" {
		_ = os.RemoveAll(j.WorkDir)
	}
	j.setState(StateFailed)
	return err
}
