package transcode

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/vidfetch/vidfetch/internal/domain"
	"github.com/vidfetch/vidfetch/internal/infra/logger"
)

func TestParseTimeMarker(t *testing.T) {
	tests := []struct {
		line string
		want float64
		ok   bool
	}{
		{"frame=  120 fps= 30 q=-1.0 size=1024kB time=00:01:05.32 bitrate=1000k", 65.32, true},
		{"time=01:00:00", 3600, true},
		{"time=00:00:00.00", 0, true},
		{"size=  256kB time=00:02:30.50 speed=1.2x", 150.5, true},
		{"Input #0, hls, from 'https://example.com/x.m3u8':", 0, false},
		{"", 0, false},
		{"time=N/A", 0, false},
	}

	for _, tt := range tests {
		got, ok := ParseTimeMarker(tt.line)
		if ok != tt.ok {
			t.Errorf("ParseTimeMarker(%q) ok = %v, want %v", tt.line, ok, tt.ok)
			continue
		}
		if ok && got != tt.want {
			t.Errorf("ParseTimeMarker(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}

func TestBuildRemuxArgs(t *testing.T) {
	args := BuildRemuxArgs("https://example.com/v.m3u8", "", "/out/v.mp4")
	want := []string{"-i", "https://example.com/v.m3u8", "-c", "copy", "-bsf:a", "aac_adtstoasc", "-y", "/out/v.mp4"}
	assertArgs(t, args, want)
}

func TestBuildRemuxArgsCookiesPrecedeInput(t *testing.T) {
	args := BuildRemuxArgs("https://example.com/v.m3u8", "session=abc", "/out/v.mp4")

	headerAt, inputAt := -1, -1
	for i, a := range args {
		switch a {
		case "-headers":
			headerAt = i
		case "-i":
			inputAt = i
		}
	}
	if headerAt == -1 {
		t.Fatal("no -headers flag for a task with cookies")
	}
	if headerAt > inputAt {
		t.Fatal("-headers must come before -i or the tool ignores it")
	}
	if args[headerAt+1] != "Cookie: session=abc\r\n" {
		t.Errorf("header value = %q", args[headerAt+1])
	}
}

func TestBuildPostProcessArgs(t *testing.T) {
	args, tmp := buildPostProcessArgs(domain.PostProcessAudio, "/out/v.mp4")
	if tmp != "/out/v.mp4.transcode.tmp" {
		t.Errorf("tmp path = %q", tmp)
	}
	assertContains(t, args, "-vn", "libmp3lame", "mp3", tmp)

	args, tmp = buildPostProcessArgs(domain.PostProcessMP4, "/out/v.webm")
	assertContains(t, args, "libx264", "aac", "+faststart", tmp)

	if args, _ := buildPostProcessArgs(domain.PostProcessNone, "/out/v.mp4"); args != nil {
		t.Errorf("no pass requested but got args %v", args)
	}
}

// The supervisor tests run /bin/sh in place of the transcoder; only the
// process plumbing is under test, not the tool itself.

func TestSupervisorRunFeedsSink(t *testing.T) {
	sup := NewSupervisor("/bin/sh", logger.Discard())

	var marks []float64
	script := `printf 'time=00:00:01.50 bitrate\r' >&2; printf 'time=00:01:05.32 speed\n' >&2`
	err := sup.Run(context.Background(), []string{"-c", script}, func(sec float64) {
		marks = append(marks, sec)
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(marks) != 2 || marks[0] != 1.5 || marks[1] != 65.32 {
		t.Errorf("sink received %v, want [1.5 65.32]", marks)
	}
}

func TestSupervisorRunNonZeroExit(t *testing.T) {
	sup := NewSupervisor("/bin/sh", logger.Discard())

	script := `echo 'something went wrong' >&2; exit 3`
	err := sup.Run(context.Background(), []string{"-c", script}, nil)

	var toolErr *domain.ToolError
	if !errors.As(err, &toolErr) {
		t.Fatalf("expected ToolError, got %v", err)
	}
	if toolErr.ExitCode != 3 {
		t.Errorf("exit code = %d, want 3", toolErr.ExitCode)
	}
	if !strings.Contains(toolErr.Output, "something went wrong") {
		t.Errorf("output tail = %q", toolErr.Output)
	}
}

func TestSupervisorRunKeepsTailOfLargeOutput(t *testing.T) {
	sup := NewSupervisor("/bin/sh", logger.Discard())

	// A big burst right before a non-zero exit: the last lines must still
	// land in the diagnostic tail.
	script := `i=0; while [ $i -lt 2000 ]; do echo "noise line $i" >&2; i=$((i+1)); done; echo 'final diagnostic' >&2; exit 1`
	err := sup.Run(context.Background(), []string{"-c", script}, nil)

	var toolErr *domain.ToolError
	if !errors.As(err, &toolErr) {
		t.Fatalf("expected ToolError, got %v", err)
	}
	if !strings.Contains(toolErr.Output, "final diagnostic") {
		t.Errorf("last diagnostic line lost, tail ends with %q", toolErr.Output[max(0, len(toolErr.Output)-120):])
	}
	if !strings.Contains(toolErr.Output, "noise line 1999") {
		t.Errorf("tail missing the lines just before exit")
	}
}

func TestSupervisorRunCancellation(t *testing.T) {
	sup := NewSupervisor("/bin/sh", logger.Discard())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := sup.Run(ctx, []string{"-c", "sleep 30"}, nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected the context error, got %v", err)
	}
}

func TestTailBufferKeepsLastLines(t *testing.T) {
	b := newTailBuffer(3)
	for _, line := range []string{"a", "b", "c", "d", "e"} {
		b.add(line)
	}
	if got := b.String(); got != "c\nd\ne" {
		t.Errorf("tail = %q", got)
	}
}

func assertArgs(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("args = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("args[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func assertContains(t *testing.T, args []string, values ...string) {
	t.Helper()
	for _, v := range values {
		found := false
		for _, a := range args {
			if a == v {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("args %v missing %q", args, v)
		}
	}
}
