package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"tlvf/internal/comskip"
	"tlvf/internal/progress"
	"tlvf/internal/transfer"
	"tlvf/internal/util"
)

// fakeRunner simulates ffprobe, ffmpeg, and comskip. It answers probes from
// canned values and "encodes" by writing a file of the configured size at
// the last argument.
type fakeRunner struct {
	mu    sync.Mutex
	specs []util.CmdSpec

	resolution string
	duration   string

	encodeBytes  int64 // size of the single-pass output
	passTwoBytes int64 // size of the two-pass output

	failEncodeFor string // substring of the input path that makes the encode fail
	failPassTwo   bool
	failComskip   bool
	skipOutput    bool // report encode success without writing the output file
}

func (f *fakeRunner) Run(_ context.Context, spec util.CmdSpec) (util.CmdResult, error) {
	f.mu.Lock()
	f.specs = append(f.specs, spec)
	f.mu.Unlock()

	if spec.Path == "comskip" {
		if f.failComskip {
			return util.CmdResult{Code: 1}, errors.New("exit status 1")
		}
		return util.CmdResult{}, nil
	}
	if hasArg(spec.Args, "stream=width,height") {
		return util.CmdResult{Stdout: []byte(f.resolution + "\n")}, nil
	}
	if hasArg(spec.Args, "format=duration") {
		return util.CmdResult{Stdout: []byte(f.duration + "\n")}, nil
	}

	// ffmpeg
	out := spec.Args[len(spec.Args)-1]
	switch passFlag(spec.Args) {
	case "1":
		return util.CmdResult{}, nil // stats pass, output discarded
	case "2":
		if f.failPassTwo {
			return util.CmdResult{Code: 1, Stderr: []byte("pass two boom")}, errors.New("exit status 1")
		}
		return util.CmdResult{}, writeSized(out, f.passTwoBytes)
	}
	input := inputArg(spec.Args)
	if f.failEncodeFor != "" && strings.Contains(input, f.failEncodeFor) {
		return util.CmdResult{Code: 187, Stderr: []byte("Invalid data found when processing input")}, errors.New("exit status 187")
	}
	if f.skipOutput {
		return util.CmdResult{}, nil
	}
	return util.CmdResult{}, writeSized(out, f.encodeBytes)
}

func (f *fakeRunner) calls() []util.CmdSpec {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]util.CmdSpec(nil), f.specs...)
}

func (f *fakeRunner) passCount(pass string) int {
	n := 0
	for _, s := range f.calls() {
		if passFlag(s.Args) == pass {
			n++
		}
	}
	return n
}

func hasArg(args []string, want string) bool {
	for _, a := range args {
		if a == want {
			return true
		}
	}
	return false
}

func passFlag(args []string) string {
	for i, a := range args {
		if a == "-pass" && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func inputArg(args []string) string {
	for i, a := range args {
		if a == "-i" && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func writeSized(path string, n int64) error {
	return os.WriteFile(path, bytes.Repeat([]byte{0}, int(n)), 0o644)
}

// resultRecorder keeps every terminal Result so tests can inspect job
// errors. Safe for concurrent reporters.
type resultRecorder struct {
	mu      sync.Mutex
	results []progress.Result
}

func (r *resultRecorder) Update(progress.Update) {}
func (r *resultRecorder) Log(progress.Log)       {}
func (r *resultRecorder) Result(res progress.Result) {
	r.mu.Lock()
	r.results = append(r.results, res)
	r.mu.Unlock()
}

func (r *resultRecorder) lastErr() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.results) == 0 {
		return nil
	}
	return r.results[len(r.results)-1].Err
}

func newTestEngine(t *testing.T, passes int, fake *fakeRunner, opts ...Option) (*Engine, string) {
	t.Helper()
	workBase := t.TempDir()
	opts = append([]Option{WithRunner(fake)}, opts...)
	e, err := New(1000, passes, workBase, 1, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e, workBase
}

func seedSource(t *testing.T, name string, size int64) (root, path string) {
	t.Helper()
	root = t.TempDir()
	path = filepath.Join(root, name)
	if err := writeSized(path, size); err != nil {
		t.Fatalf("seed %s: %v", name, err)
	}
	return root, path
}

func assertWorkBaseEmpty(t *testing.T, workBase string) {
	t.Helper()
	entries, err := os.ReadDir(workBase)
	if err != nil {
		t.Fatalf("read workBase: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("workBase not cleaned up, found %d entries", len(entries))
	}
}

func TestRunSinglePassReplacesOriginal(t *testing.T) {
	fake := &fakeRunner{resolution: "1920x1080", duration: "120.0", encodeBytes: 400}
	e, workBase := newTestEngine(t, 1, fake)
	root, srcPath := seedSource(t, "movie.mkv", 5000)

	res, err := e.Run(context.Background(), root)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Failed != 0 {
		t.Fatalf("Failed = %d, want 0", res.Failed)
	}
	if len(res.Ledger) != 1 {
		t.Fatalf("ledger length = %d, want 1", len(res.Ledger))
	}
	entry := res.Ledger[0]
	if entry.OriginalName != "movie.mkv" || entry.NewName != "movie.mp4" {
		t.Errorf("names = %q -> %q", entry.OriginalName, entry.NewName)
	}
	if entry.OriginalSize != 5000 || entry.NewSize != 400 {
		t.Errorf("sizes = %d -> %d", entry.OriginalSize, entry.NewSize)
	}
	if entry.Outcome != OutcomeSinglePass {
		t.Errorf("outcome = %q", entry.Outcome)
	}
	if entry.OriginalResolution != "1920x1080" {
		t.Errorf("original resolution = %q", entry.OriginalResolution)
	}

	if _, err := os.Stat(srcPath); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("original still present: %v", err)
	}
	fi, err := os.Stat(filepath.Join(root, "movie.mp4"))
	if err != nil {
		t.Fatalf("output missing: %v", err)
	}
	if fi.Size() != 400 {
		t.Errorf("output size = %d, want 400", fi.Size())
	}
	if got := res.SpaceSaved(); got != 4600 {
		t.Errorf("SpaceSaved = %d, want 4600", got)
	}
	assertWorkBaseEmpty(t, workBase)
}

func TestRunEncodeFailureLeavesOriginalUntouched(t *testing.T) {
	fake := &fakeRunner{resolution: "1920x1080", duration: "120.0", failEncodeFor: "movie"}
	e, workBase := newTestEngine(t, 1, fake)
	root, srcPath := seedSource(t, "movie.mkv", 5000)

	res, err := e.Run(context.Background(), root)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Failed != 1 {
		t.Fatalf("Failed = %d, want 1", res.Failed)
	}
	if len(res.Ledger) != 0 {
		t.Fatalf("ledger length = %d, want 0", len(res.Ledger))
	}
	fi, err := os.Stat(srcPath)
	if err != nil {
		t.Fatalf("original gone after failure: %v", err)
	}
	if fi.Size() != 5000 {
		t.Errorf("original size changed: %d", fi.Size())
	}
	if _, err := os.Stat(filepath.Join(root, "movie.mp4")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("unexpected output after failure")
	}
	assertWorkBaseEmpty(t, workBase)
}

func TestSecondPassRunsWhenOutputStillOversized(t *testing.T) {
	fake := &fakeRunner{resolution: "1280x720", duration: "3600.0", encodeBytes: 2000, passTwoBytes: 800}
	e, _ := newTestEngine(t, 2, fake)
	root, _ := seedSource(t, "show.mkv", 9000)

	res, err := e.Run(context.Background(), root)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Ledger) != 1 {
		t.Fatalf("ledger length = %d, want 1", len(res.Ledger))
	}
	if got := res.Ledger[0].Outcome; got != OutcomeTwoPass {
		t.Errorf("outcome = %q, want %q", got, OutcomeTwoPass)
	}
	if res.Ledger[0].NewSize != 800 {
		t.Errorf("new size = %d, want 800", res.Ledger[0].NewSize)
	}
	if fake.passCount("1") != 1 || fake.passCount("2") != 1 {
		t.Errorf("pass invocations = %d/%d, want 1/1", fake.passCount("1"), fake.passCount("2"))
	}
	fi, err := os.Stat(filepath.Join(root, "show.mp4"))
	if err != nil {
		t.Fatalf("output missing: %v", err)
	}
	if fi.Size() != 800 {
		t.Errorf("output size = %d, want 800", fi.Size())
	}
}

func TestSecondPassSkippedWhenOutputSmallEnough(t *testing.T) {
	fake := &fakeRunner{resolution: "1280x720", duration: "3600.0", encodeBytes: 400}
	e, _ := newTestEngine(t, 2, fake)
	root, _ := seedSource(t, "show.mkv", 9000)

	res, err := e.Run(context.Background(), root)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Ledger) != 1 {
		t.Fatalf("ledger length = %d, want 1", len(res.Ledger))
	}
	if got := res.Ledger[0].Outcome; got != OutcomeSinglePass {
		t.Errorf("outcome = %q, want %q", got, OutcomeSinglePass)
	}
	if fake.passCount("1") != 0 || fake.passCount("2") != 0 {
		t.Errorf("unexpected two-pass invocations")
	}
}

func TestSecondPassFailureKeepsSinglePassOutput(t *testing.T) {
	fake := &fakeRunner{resolution: "1280x720", duration: "3600.0", encodeBytes: 2000, failPassTwo: true}
	e, _ := newTestEngine(t, 2, fake)
	root, _ := seedSource(t, "show.mkv", 9000)

	res, err := e.Run(context.Background(), root)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Failed != 0 {
		t.Fatalf("Failed = %d, want 0", res.Failed)
	}
	if len(res.Ledger) != 1 {
		t.Fatalf("ledger length = %d, want 1", len(res.Ledger))
	}
	if got := res.Ledger[0].Outcome; got != OutcomeSinglePassFallback {
		t.Errorf("outcome = %q, want %q", got, OutcomeSinglePassFallback)
	}
	fi, err := os.Stat(filepath.Join(root, "show.mp4"))
	if err != nil {
		t.Fatalf("output missing: %v", err)
	}
	if fi.Size() != 2000 {
		t.Errorf("output size = %d, want single-pass 2000", fi.Size())
	}
}

func TestTransferFailureKeepsOriginal(t *testing.T) {
	fake := &fakeRunner{resolution: "1920x1080", duration: "120.0", encodeBytes: 400}
	rec := &resultRecorder{}
	e, workBase := newTestEngine(t, 1, fake, WithReporter(rec))
	// Point the move at a path the encode never wrote, so the transfer
	// reports failure after a successful encode.
	e.transferStart = func(src, dstDir string) *transfer.Handle {
		return transfer.Start(src+".missing", dstDir)
	}
	root, srcPath := seedSource(t, "movie.mkv", 5000)

	res, err := e.Run(context.Background(), root)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Failed != 1 {
		t.Fatalf("Failed = %d, want 1", res.Failed)
	}
	if len(res.Ledger) != 0 {
		t.Fatalf("ledger length = %d, want 0", len(res.Ledger))
	}
	if !errors.Is(rec.lastErr(), transfer.ErrTransfer) {
		t.Errorf("job error = %v, want transfer.ErrTransfer", rec.lastErr())
	}
	fi, err := os.Stat(srcPath)
	if err != nil {
		t.Fatalf("original gone after transfer failure: %v", err)
	}
	if fi.Size() != 5000 {
		t.Errorf("original size changed: %d", fi.Size())
	}
	if _, err := os.Stat(filepath.Join(root, "movie.mp4")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("unexpected output after transfer failure")
	}
	assertWorkBaseEmpty(t, workBase)
}

func TestMissingOutputFailsVerification(t *testing.T) {
	fake := &fakeRunner{resolution: "1920x1080", duration: "120.0", skipOutput: true}
	rec := &resultRecorder{}
	e, workBase := newTestEngine(t, 1, fake, WithReporter(rec))
	root, srcPath := seedSource(t, "movie.mkv", 5000)

	res, err := e.Run(context.Background(), root)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Failed != 1 {
		t.Fatalf("Failed = %d, want 1", res.Failed)
	}
	if len(res.Ledger) != 0 {
		t.Fatalf("ledger length = %d, want 0", len(res.Ledger))
	}
	if !errors.Is(rec.lastErr(), ErrVerification) {
		t.Errorf("job error = %v, want ErrVerification", rec.lastErr())
	}
	fi, err := os.Stat(srcPath)
	if err != nil {
		t.Fatalf("original gone after verification failure: %v", err)
	}
	if fi.Size() != 5000 {
		t.Errorf("original size changed: %d", fi.Size())
	}
	assertWorkBaseEmpty(t, workBase)
}

func TestMissingTranscoderBinaryNotReportedAsExit(t *testing.T) {
	notFound := fmt.Errorf("binary %q not found in PATH: %w", "ffmpeg", exec.ErrNotFound)
	runner := util.RunnerFunc(func(_ context.Context, spec util.CmdSpec) (util.CmdResult, error) {
		if hasArg(spec.Args, "stream=width,height") {
			return util.CmdResult{Stdout: []byte("1920x1080\n")}, nil
		}
		if hasArg(spec.Args, "format=duration") {
			return util.CmdResult{Stdout: []byte("120.0\n")}, nil
		}
		return util.CmdResult{Code: -1, Err: notFound}, notFound
	})
	rec := &resultRecorder{}
	e, err := New(1000, 1, t.TempDir(), 1, WithRunner(runner), WithReporter(rec))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	root, _ := seedSource(t, "movie.mkv", 5000)

	res, err := e.Run(context.Background(), root)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Failed != 1 {
		t.Fatalf("Failed = %d, want 1", res.Failed)
	}
	if !errors.Is(rec.lastErr(), exec.ErrNotFound) {
		t.Errorf("job error = %v, want exec.ErrNotFound", rec.lastErr())
	}
	var pe *ProcessError
	if errors.As(rec.lastErr(), &pe) {
		t.Errorf("missing binary surfaced as a process exit: %v", pe)
	}
}

func TestRunSameNameReplacement(t *testing.T) {
	fake := &fakeRunner{resolution: "1920x1080", duration: "120.0", encodeBytes: 400}
	e, _ := newTestEngine(t, 1, fake)
	root, srcPath := seedSource(t, "movie.mp4", 5000)

	res, err := e.Run(context.Background(), root)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Ledger) != 1 {
		t.Fatalf("ledger length = %d, want 1", len(res.Ledger))
	}
	fi, err := os.Stat(srcPath)
	if err != nil {
		t.Fatalf("replacement missing: %v", err)
	}
	if fi.Size() != 400 {
		t.Errorf("replacement size = %d, want 400", fi.Size())
	}
}

func TestComskipFailureDoesNotFailJob(t *testing.T) {
	fake := &fakeRunner{resolution: "1920x1080", duration: "1800.0", encodeBytes: 400, failComskip: true}
	e, _ := newTestEngine(t, 1, fake, WithStripper(comskip.New("comskip", fake)))
	root, _ := seedSource(t, "recording.ts", 5000)

	res, err := e.Run(context.Background(), root)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Failed != 0 || len(res.Ledger) != 1 {
		t.Fatalf("Failed = %d, ledger = %d; want 0 and 1", res.Failed, len(res.Ledger))
	}
	stripped := false
	for _, s := range fake.calls() {
		if s.Path == "comskip" {
			stripped = true
		}
	}
	if !stripped {
		t.Errorf("comskip was never invoked for a tuner recording")
	}
	if _, err := os.Stat(filepath.Join(root, "recording.mp4")); err != nil {
		t.Errorf("output missing: %v", err)
	}
}

func TestRunContinuesAfterFailedCandidate(t *testing.T) {
	fake := &fakeRunner{resolution: "1920x1080", duration: "120.0", encodeBytes: 400, failEncodeFor: "bad"}
	e, workBase := newTestEngine(t, 1, fake)

	root := t.TempDir()
	// Largest first, so the failing file is processed before the good one.
	if err := writeSized(filepath.Join(root, "bad.mkv"), 8000); err != nil {
		t.Fatal(err)
	}
	if err := writeSized(filepath.Join(root, "good.mkv"), 5000); err != nil {
		t.Fatal(err)
	}

	res, err := e.Run(context.Background(), root)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Failed != 1 {
		t.Errorf("Failed = %d, want 1", res.Failed)
	}
	if len(res.Ledger) != 1 || res.Ledger[0].OriginalName != "good.mkv" {
		t.Fatalf("ledger = %+v, want the one good entry", res.Ledger)
	}
	if _, err := os.Stat(filepath.Join(root, "bad.mkv")); err != nil {
		t.Errorf("failed candidate's original missing: %v", err)
	}
	assertWorkBaseEmpty(t, workBase)
}

func TestNewRejectsBadPassCount(t *testing.T) {
	if _, err := New(1000, 3, t.TempDir(), 1, WithRunner(&fakeRunner{})); err == nil {
		t.Fatal("expected error for passes = 3")
	}
}
