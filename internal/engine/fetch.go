package engine

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vidfetch/vidfetch/internal/domain"
	"github.com/vidfetch/vidfetch/internal/infra/logger"
	"github.com/vidfetch/vidfetch/internal/notify"
	"github.com/vidfetch/vidfetch/internal/transcode"
)

const (
	// fetchChunkSize is the read granularity of the direct strategy; it is
	// also the cancellation latency bound for in-flight transfers.
	fetchChunkSize = 32 * 1024

	streamPollInterval = 1 * time.Second

	// streamProgressCeiling caps estimated progress until the transcoder
	// actually exits.
	streamProgressCeiling = 95.0

	// streamFallbackWindow is the wall-clock horizon, in seconds, used to
	// estimate progress when neither byte counts nor a duration are known.
	streamFallbackWindow = 60.0
)

const defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36"

var streamManifestExts = []string{".m3u8", ".mpd", ".f4m"}

// Fetcher performs the actual transfer, dispatching between a direct chunked
// HTTP download and an ffmpeg-driven remux for manifest-based streams.
type Fetcher struct {
	client   *http.Client
	notifier *notify.Notifier
	logger   *logger.Logger

	// sup is nil when ffmpeg was not located at startup.
	sup *transcode.Supervisor
}

func NewFetcher(client *http.Client, notifier *notify.Notifier, sup *transcode.Supervisor, log *logger.Logger) *Fetcher {
	if client == nil {
		// No overall deadline: transfer duration is unbounded by design.
		client = &http.Client{}
	}
	return &Fetcher{client: client, notifier: notifier, sup: sup, logger: log}
}

// IsStreamURL reports whether a format URL points at a segmented/live stream
// that needs the process-driven strategy.
func IsStreamURL(raw string) bool {
	lower := strings.ToLower(raw)
	if u, err := url.Parse(raw); err == nil {
		p := strings.ToLower(u.Path)
		for _, ext := range streamManifestExts {
			if strings.HasSuffix(p, ext) {
				return true
			}
		}
	}
	// Some CDNs bury the manifest name in query parameters.
	return strings.Contains(lower, ".m3u8")
}

// Fetch transfers the selected format into the task's output path, emitting
// progress through the notifier as it goes.
func (f *Fetcher) Fetch(ctx context.Context, t *domain.Task, fd domain.FormatDescriptor) error {
	if IsStreamURL(fd.URL) {
		return f.fetchStream(ctx, t, fd)
	}
	return f.fetchDirect(ctx, t, fd)
}

func (f *Fetcher) fetchDirect(ctx context.Context, t *domain.Task, fd domain.FormatDescriptor) error {
	if err := t.SetStatus(domain.StatusDownloading); err != nil {
		return err
	}
	f.publish(t)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fd.URL, nil)
	if err != nil {
		return fmt.Errorf("invalid format url: %w", err)
	}
	req.Header.Set("User-Agent", defaultUserAgent)
	for k, v := range t.Headers {
		req.Header.Set(k, v)
	}
	if t.Cookies != "" {
		req.Header.Set("Cookie", t.Cookies)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("transfer failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &domain.TransferError{StatusCode: resp.StatusCode, Reason: http.StatusText(resp.StatusCode)}
	}

	total := resp.ContentLength
	if total < 0 {
		total = 0 // chunked transfer, length unknown
	}

	out, err := os.Create(t.OutputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer out.Close()

	start := time.Now()
	var downloaded int64
	buf := make([]byte, fetchChunkSize)

	for {
		// Cancellation is checked at every chunk boundary. The partial
		// file is deliberately left in place; cleanup is the caller's
		// policy, not ours.
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := out.Write(buf[:n]); werr != nil {
				return fmt.Errorf("write failed: %w", werr)
			}
			downloaded += int64(n)
			f.recordChunk(t, downloaded, total, start)
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read failed: %w", rerr)
		}
	}
	return nil
}

// recordChunk recomputes the derived progress fields after one chunk and
// publishes the update.
func (f *Fetcher) recordChunk(t *domain.Task, downloaded, total int64, start time.Time) {
	err := t.UpdateProgress(func(p *domain.Progress) {
		p.DownloadedBytes = downloaded
		p.TotalBytes = total
		if total > 0 {
			p.Percentage = float64(downloaded) / float64(total) * 100
		}

		elapsed := time.Since(start).Seconds()
		if elapsed > 0 {
			p.Speed = float64(downloaded) / elapsed
			if p.Speed > 0 && total > 0 {
				p.ETASeconds = int64(float64(total-downloaded) / p.Speed)
			}
		}
	})
	if err == nil {
		f.publish(t)
	}
}

func (f *Fetcher) fetchStream(ctx context.Context, t *domain.Task, fd domain.FormatDescriptor) error {
	if f.sup == nil {
		return domain.ErrToolUnavailable
	}

	if err := t.SetStatus(domain.StatusDownloading); err != nil {
		return err
	}
	f.publish(t)

	// A closed HLS playlist yields a real total to normalize against;
	// anything else falls back to the wall-clock estimate.
	duration := transcode.ProbeDuration(ctx, f.client, fd.URL, t.Cookies, t.Headers)
	if duration > 0 {
		f.logger.Debug("Probed stream duration for %s: %.1fs", t.ID, duration)
	}

	var markBits atomic.Uint64 // latest transcoder position, float64 bits

	pollCtx, stopPoll := context.WithCancel(ctx)
	defer stopPoll()

	start := time.Now()
	var pollWG sync.WaitGroup
	pollWG.Add(1)
	go func() {
		defer pollWG.Done()
		ticker := time.NewTicker(streamPollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-pollCtx.Done():
				return
			case <-ticker.C:
				f.recordStreamPoll(t, duration, math.Float64frombits(markBits.Load()), start)
			}
		}
	}()

	args := transcode.BuildRemuxArgs(fd.URL, t.Cookies, t.OutputPath)
	err := f.sup.Run(ctx, args, func(sec float64) {
		markBits.Store(math.Float64bits(sec))
	})

	stopPoll()
	pollWG.Wait()

	if err != nil {
		return err
	}

	// The estimate was capped below the ceiling; the process exited clean.
	uerr := t.UpdateProgress(func(p *domain.Progress) {
		p.Percentage = 100
	})
	if uerr == nil {
		f.publish(t)
	}
	return nil
}

// recordStreamPoll updates the approximate percentage for a process-driven
// transfer. Byte counters are unavailable here, so the estimate is explicit:
// normalized transcoder position when a duration is known, elapsed wall-clock
// otherwise, both capped until the process exits.
func (f *Fetcher) recordStreamPoll(t *domain.Task, duration, mark float64, start time.Time) {
	err := t.UpdateProgress(func(p *domain.Progress) {
		var pct float64
		if duration > 0 && mark > 0 {
			pct = mark / duration * 100
		} else {
			pct = time.Since(start).Seconds() / streamFallbackWindow * 100
		}
		if pct > streamProgressCeiling {
			pct = streamProgressCeiling
		}
		if pct > p.Percentage {
			p.Percentage = pct
		}
	})
	if err == nil {
		f.publish(t)
	}
}

func (f *Fetcher) publish(t *domain.Task) {
	f.notifier.Publish(t.ID, t.Progress())
}
