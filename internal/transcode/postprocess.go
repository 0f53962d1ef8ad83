package transcode

import (
	"context"
	"fmt"
	"os"

	"github.com/vidfetch/vidfetch/internal/domain"
	"github.com/vidfetch/vidfetch/internal/infra/logger"
)

// PostProcessor runs the optional second pass over a fetched file. It is
// best-effort: the fetched media survives any failure here untouched.
type PostProcessor struct {
	sup    *Supervisor
	logger *logger.Logger
}

func NewPostProcessor(sup *Supervisor, log *logger.Logger) *PostProcessor {
	return &PostProcessor{sup: sup, logger: log}
}

// Run re-encodes or extracts a track per the task's post-processing kind,
// writing to a temporary path and replacing the fetched file only on tool
// success. The caller treats a returned error as a warning, never a task
// failure.
func (p *PostProcessor) Run(ctx context.Context, t *domain.Task) error {
	args, tmpPath := buildPostProcessArgs(t.PostProcessing, t.OutputPath)
	if args == nil {
		return nil
	}
	if p.sup == nil {
		return domain.ErrToolUnavailable
	}

	if err := p.sup.Run(ctx, args, nil); err != nil {
		os.Remove(tmpPath)
		return err
	}

	if err := os.Rename(tmpPath, t.OutputPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace output file: %w", err)
	}

	p.logger.Info("Post-processed (%s): %s", t.PostProcessing, t.OutputPath)
	return nil
}

// buildPostProcessArgs returns the argument list and temp output path for a
// kind, or nil when no pass is needed. The muxer is forced explicitly since
// the temp path carries no meaningful extension.
func buildPostProcessArgs(kind domain.PostProcessingKind, inputPath string) ([]string, string) {
	tmpPath := inputPath + ".transcode.tmp"

	switch kind {
	case domain.PostProcessAudio:
		return []string{
			"-i", inputPath,
			"-vn",
			"-acodec", "libmp3lame",
			"-b:a", "192k",
			"-f", "mp3",
			"-y", tmpPath,
		}, tmpPath
	case domain.PostProcessMP4:
		return []string{
			"-i", inputPath,
			"-c:v", "libx264",
			"-c:a", "aac",
			"-movflags", "+faststart",
			"-f", "mp4",
			"-y", tmpPath,
		}, tmpPath
	default:
		return nil, ""
	}
}
