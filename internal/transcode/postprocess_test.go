package transcode

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vidfetch/vidfetch/internal/domain"
	"github.com/vidfetch/vidfetch/internal/infra/logger"
)

// fakeTool writes a shell script standing in for the transcoder binary.
func fakeTool(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-ffmpeg")
	script := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0755); err != nil {
		t.Fatal(err)
	}
	return path
}

func fetchedTask(t *testing.T, kind domain.PostProcessingKind, content string) *domain.Task {
	t.Helper()
	task := domain.NewTask("test")
	task.PostProcessing = kind
	task.OutputPath = filepath.Join(t.TempDir(), "out.mp4")
	if err := os.WriteFile(task.OutputPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return task
}

func TestPostProcessorReplacesFileOnSuccess(t *testing.T) {
	// The script writes its result to the temp path, which is the last
	// argument the post-processor passes.
	bin := fakeTool(t, `for a; do last=$a; done; echo transcoded > "$last"`)
	p := NewPostProcessor(NewSupervisor(bin, logger.Discard()), logger.Discard())

	task := fetchedTask(t, domain.PostProcessAudio, "original bytes")
	if err := p.Run(context.Background(), task); err != nil {
		t.Fatalf("Run: %v", err)
	}

	data, err := os.ReadFile(task.OutputPath)
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(string(data)) != "transcoded" {
		t.Errorf("output = %q, want the transcoded result", data)
	}
	if _, err := os.Stat(task.OutputPath + ".transcode.tmp"); !os.IsNotExist(err) {
		t.Error("temp file left behind after success")
	}
}

func TestPostProcessorPreservesFileOnToolFailure(t *testing.T) {
	bin := fakeTool(t, `echo 'encoder blew up' >&2; exit 1`)
	p := NewPostProcessor(NewSupervisor(bin, logger.Discard()), logger.Discard())

	task := fetchedTask(t, domain.PostProcessMP4, "original bytes")
	err := p.Run(context.Background(), task)

	var toolErr *domain.ToolError
	if !errors.As(err, &toolErr) {
		t.Fatalf("expected ToolError, got %v", err)
	}
	if !strings.Contains(toolErr.Output, "encoder blew up") {
		t.Errorf("diagnostic output = %q", toolErr.Output)
	}

	data, err := os.ReadFile(task.OutputPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "original bytes" {
		t.Errorf("fetched file changed on tool failure: %q", data)
	}
	if _, err := os.Stat(task.OutputPath + ".transcode.tmp"); !os.IsNotExist(err) {
		t.Error("temp file left behind after failure")
	}
}

func TestPostProcessorSkipsWhenNoPassRequested(t *testing.T) {
	// No supervisor at all: a task without a pass must not need one.
	p := NewPostProcessor(nil, logger.Discard())

	task := fetchedTask(t, domain.PostProcessNone, "original bytes")
	if err := p.Run(context.Background(), task); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestPostProcessorRequiresTool(t *testing.T) {
	p := NewPostProcessor(nil, logger.Discard())

	task := fetchedTask(t, domain.PostProcessAudio, "original bytes")
	if err := p.Run(context.Background(), task); !errors.Is(err, domain.ErrToolUnavailable) {
		t.Fatalf("expected ErrToolUnavailable, got %v", err)
	}
}
