package encoder

import (
	"os"
	"strings"
	"testing"

	"tlvf/internal/profile"
)

func selector(t *testing.T) *profile.Selector {
	t.Helper()
	s, err := profile.NewSelector(2)
	if err != nil {
		t.Fatalf("NewSelector error: %v", err)
	}
	return s
}

func TestBuildSinglePassArgs(t *testing.T) {
	p := selector(t).Select(".ts", "1920x1080")
	args := BuildSinglePassArgs("/media/in.ts", p, "/work/out.mp4", false)

	if args[0] != "-y" || args[1] != "-i" || args[2] != "/media/in.ts" {
		t.Errorf("args must start with -y -i <input>, got %v", args[:3])
	}
	if args[len(args)-1] != "/work/out.mp4" {
		t.Errorf("output path must be last, got %v", args[len(args)-1])
	}

	joined := strings.Join(args, " ")
	// Group order: always-on container args before scaling before codec.
	fPos := strings.Index(joined, "-f mp4")
	vfPos := strings.Index(joined, "-vf scale=1280:720")
	cvPos := strings.Index(joined, "-c:v libx264")
	if fPos == -1 || vfPos == -1 || cvPos == -1 || !(fPos < vfPos && vfPos < cvPos) {
		t.Errorf("argument groups out of order: %v", args)
	}
	if strings.Contains(joined, "-progress") {
		t.Errorf("progress args present without includeProgress: %v", args)
	}
}

func TestBuildSinglePassArgsWithProgress(t *testing.T) {
	p := selector(t).Select(".mkv", "")
	args := BuildSinglePassArgs("/media/in.mkv", p, "/work/out.mp4", true)

	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "-progress pipe:1 -nostats") {
		t.Errorf("expected progress reporting args, got %v", args)
	}
	if args[len(args)-1] != "/work/out.mp4" {
		t.Errorf("output path must remain last, got %v", args[len(args)-1])
	}
}

func TestBuildTwoPassPlan(t *testing.T) {
	p := selector(t).Select(".ts", "1920x1080")
	plan := BuildTwoPassPlan("/media/in.ts", p, "/work/out.mp4", 4*1024*1024*1024, 3600, false)

	if plan.VideoKbps <= 0 {
		t.Fatalf("VideoKbps = %d", plan.VideoKbps)
	}

	one := strings.Join(plan.PassOne, " ")
	two := strings.Join(plan.PassTwo, " ")

	if !strings.Contains(one, "-pass 1") {
		t.Errorf("pass one missing -pass 1: %v", plan.PassOne)
	}
	if !strings.Contains(one, "-preset fast") || !strings.Contains(one, "-ac 1") {
		t.Errorf("pass one should be fast and mono: %v", plan.PassOne)
	}
	if plan.PassOne[len(plan.PassOne)-1] != os.DevNull {
		t.Errorf("pass one output must be discarded, got %v", plan.PassOne[len(plan.PassOne)-1])
	}

	if !strings.Contains(two, "-pass 2") {
		t.Errorf("pass two missing -pass 2: %v", plan.PassTwo)
	}
	if plan.PassTwo[len(plan.PassTwo)-1] != "/work/out.mp4" {
		t.Errorf("pass two must write the real output, got %v", plan.PassTwo[len(plan.PassTwo)-1])
	}

	// Both passes share the bitrate and the pass log file.
	if !strings.Contains(one, plan.LogFile) || !strings.Contains(two, plan.LogFile) {
		t.Errorf("passes must share log file %q", plan.LogFile)
	}
	want := "-b:v " + strings.TrimSuffix(strings.Split(one[strings.Index(one, "-b:v ")+5:], " ")[0], "k")
	if !strings.Contains(two, want) {
		t.Errorf("bitrate differs between passes: %q vs %q", one, two)
	}
}
