// Package transcode owns every ffmpeg invocation: the supervisor that
// launches, drains, and reaps the process, the stream remux argument set, and
// the best-effort post-processing pass.
package transcode

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/vidfetch/vidfetch/internal/domain"
	"github.com/vidfetch/vidfetch/internal/infra/logger"
)

// TimeSink receives the elapsed transcode position, in seconds, parsed from
// the tool's diagnostic stream.
type TimeSink func(seconds float64)

// Supervisor launches and reaps external transcoder processes. The task
// context kills the underlying process promptly on cancellation.
type Supervisor struct {
	binaryPath string
	logger     *logger.Logger
}

func NewSupervisor(binaryPath string, log *logger.Logger) *Supervisor {
	return &Supervisor{binaryPath: binaryPath, logger: log}
}

// Run executes the transcoder with args, feeding parsed time markers to sink
// while the process is alive. A non-zero exit becomes a ToolError carrying
// the tail of the diagnostic output; cancellation surfaces as the context
// error, not a ToolError.
func (s *Supervisor) Run(ctx context.Context, args []string, sink TimeSink) error {
	cmd := exec.CommandContext(ctx, s.binaryPath, args...)
	cmd.Stdout = io.Discard

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to open diagnostic pipe: %w", err)
	}

	s.logger.Debug("Launching transcoder: %s (%d args)", s.binaryPath, len(args))

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start transcoder: %w", err)
	}

	tail := newTailBuffer(40)
	drained := make(chan struct{})

	go func() {
		defer close(drained)

		scanner := bufio.NewScanner(stderr)
		scanner.Buffer(make([]byte, 0, 64*1024), 512*1024)
		// ffmpeg rewrites its progress line with carriage returns
		scanner.Split(scanCRLF)

		for scanner.Scan() {
			line := scanner.Text()
			if line == "" {
				continue
			}
			tail.add(line)
			if sink != nil {
				if sec, ok := ParseTimeMarker(line); ok {
					sink(sec)
				}
			}
		}
	}()

	// The pipe must be fully drained before Wait, which closes its read end.
	<-drained
	waitErr := cmd.Wait()

	if waitErr == nil {
		return nil
	}

	// A cancelled context means the process was killed on purpose.
	if ctx.Err() != nil {
		return ctx.Err()
	}

	exitCode := -1
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		exitCode = exitErr.ExitCode()
	}
	return &domain.ToolError{ExitCode: exitCode, Output: tail.String()}
}

var timeMarkerRe = regexp.MustCompile(`time=(\d+):(\d+):(\d+(?:\.\d+)?)`)

// ParseTimeMarker extracts the elapsed position from one diagnostic line,
// e.g. "frame=  120 ... time=00:01:05.32 bitrate=...".
func ParseTimeMarker(line string) (float64, bool) {
	m := timeMarkerRe.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}

	hours, _ := strconv.Atoi(m[1])
	minutes, _ := strconv.Atoi(m[2])
	seconds, _ := strconv.ParseFloat(m[3], 64)

	return float64(hours)*3600 + float64(minutes)*60 + seconds, true
}

// BuildRemuxArgs assembles the argument list that copies a manifest-based
// stream into the output container without re-encoding. The cookie header
// must precede -i or ffmpeg ignores it.
func BuildRemuxArgs(sourceURL, cookies, outputPath string) []string {
	var args []string
	if cookies != "" {
		args = append(args, "-headers", "Cookie: "+cookies+"\r\n")
	}
	args = append(args,
		"-i", sourceURL,
		"-c", "copy",
		"-bsf:a", "aac_adtstoasc",
		"-y", outputPath,
	)
	return args
}

// scanCRLF splits on \n or \r so progress lines rewritten in place are still
// observed while the process runs.
func scanCRLF(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// tailBuffer keeps the last n diagnostic lines for error reporting.
type tailBuffer struct {
	lines []string
	max   int
}

func newTailBuffer(max int) *tailBuffer {
	return &tailBuffer{max: max}
}

func (b *tailBuffer) add(line string) {
	b.lines = append(b.lines, line)
	if len(b.lines) > b.max {
		b.lines = b.lines[len(b.lines)-b.max:]
	}
}

func (b *tailBuffer) String() string {
	return strings.Join(b.lines, "\n")
}
