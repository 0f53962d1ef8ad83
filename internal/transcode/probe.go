package transcode

import (
	"context"
	"net/http"
	"time"

	"github.com/grafov/m3u8"
)

// ProbeDuration fetches an HLS playlist and sums its segment durations so
// process-driven progress can be normalized against a real total instead of
// the wall-clock heuristic. Best-effort: any failure, a master playlist, or
// a live stream without a fixed length yields 0 (duration unknown).
func ProbeDuration(ctx context.Context, client *http.Client, url, cookies string, headers map[string]string) float64 {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if cookies != "" {
		req.Header.Set("Cookie", cookies)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0
	}

	playlist, listType, err := m3u8.DecodeFrom(resp.Body, false)
	if err != nil || listType != m3u8.MEDIA {
		return 0
	}

	media, ok := playlist.(*m3u8.MediaPlaylist)
	if !ok || !media.Closed {
		// Open playlists are live streams with no meaningful total.
		return 0
	}

	var total float64
	for _, seg := range media.Segments {
		if seg != nil {
			total += seg.Duration
		}
	}
	return total
}
