package platform

import (
	"context"
	"os/exec"
	"time"
)

// ffmpegCandidates are common install locations checked before PATH lookup.
var ffmpegCandidates = []string{
	"/usr/local/bin/ffmpeg",
	"/usr/bin/ffmpeg",
	"/opt/homebrew/bin/ffmpeg",
	"ffmpeg",
}

// FindFFmpeg resolves a working ffmpeg binary once at startup. An empty
// result disables the process-driven fetch strategy and post-processing;
// direct transfers keep working.
func FindFFmpeg(configured string) string {
	if configured != "" {
		if isExecutable(configured) {
			return configured
		}
		return ""
	}

	for _, candidate := range ffmpegCandidates {
		path, err := exec.LookPath(candidate)
		if err != nil {
			continue
		}
		if isExecutable(path) {
			return path
		}
	}
	return ""
}

// isExecutable runs a short version probe so a stale or broken path is
// rejected at startup rather than on the first task.
func isExecutable(path string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return exec.CommandContext(ctx, path, "-version").Run() == nil
}
