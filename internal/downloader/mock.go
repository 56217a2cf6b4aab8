package downloader

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"ytbatch/internal/consts"
	"ytbatch/pkg/calc"
	"ytbatch/pkg/urls"
)

const simulateSteps = 4

// Simulator is an Engine that downloads nothing. It waits, reports progress
// and returns the path yt-dlp would have produced. Used by dry runs.
type Simulator struct {
	log   *slog.Logger
	delay time.Duration
}

// NewSimulator creates an Engine for dry runs. Each Download takes delay.
func NewSimulator(log *slog.Logger, delay time.Duration) *Simulator {
	return &Simulator{
		log:   log.With(slog.String("package", "downloader"), slog.String("downloader", consts.DownloaderMock)),
		delay: delay,
	}
}

// Download implements Engine.
func (s *Simulator) Download(ctx context.Context, url string, opts Options) (string, error) {
	if err := s.simulate(ctx, url); err != nil {
		return "", err
	}

	ext := videoContainer
	if opts.ExtractAudio {
		ext = opts.AudioFormat
	}

	title := urls.VideoID(url)
	if title == "" {
		title = "video"
	}

	path := strings.NewReplacer("%(title)s", title, "%(id)s", title, "%(ext)s", ext).Replace(opts.Output)

	s.log.InfoContext(ctx, "dry run, nothing downloaded", slog.String("url", url), slog.String("path", path))

	return path, nil
}

func (s *Simulator) simulate(ctx context.Context, url string) error {
	interval := s.delay / simulateSteps
	if interval <= 0 {
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for step := 1; step <= simulateSteps; step++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.log.DebugContext(ctx, "simulated progress",
				slog.String("url", url),
				slog.Int("progress", calc.Progress(step, simulateSteps)))
		}
	}

	return nil
}
