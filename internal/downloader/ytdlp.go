package downloader

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"ytbatch/internal/consts"
	"ytbatch/internal/depmanager"

	"github.com/lrstanley/go-ytdlp"
)

// changing this may break ParseYtdlpStdout().
const defaultPrintAfterMove = "after_move:filepath"

// YTdlp is the Engine backed by the yt-dlp executable.
type YTdlp struct {
	log          *slog.Logger
	bins         depmanager.Binaries
	progressFreq time.Duration
}

// NewYTdlp creates a new yt-dlp engine. Empty binary paths fall back to
// yt-dlp's own lookup on PATH.
func NewYTdlp(log *slog.Logger, bins depmanager.Binaries) *YTdlp {
	return &YTdlp{
		log:          log.With(slog.String("package", "downloader"), slog.String("downloader", consts.DownloaderYTdlp)),
		bins:         bins,
		progressFreq: consts.DefaultProgressFreq,
	}
}

// Download runs yt-dlp for one URL and returns the post-processed file path.
// A run that exits cleanly without printing a path returns "" and no error.
func (d *YTdlp) Download(ctx context.Context, url string, opts Options) (string, error) {
	log := d.log.With(slog.String("url", url))

	progressFn := func(prog ytdlp.ProgressUpdate) {
		log.DebugContext(ctx, "ytdlp progress", slog.Any("progress_update", ProgressUpdate{&prog}))
	}

	command := ytdlp.New().
		NoPlaylist().
		Format(opts.Format).
		Output(opts.Output).
		ProgressFunc(d.progressFreq, progressFn).
		PrintJSON().Print(defaultPrintAfterMove)

	if d.bins.YTdlp != "" {
		command = command.SetExecutable(d.bins.YTdlp)
	}

	if dir := d.bins.FFmpegDir(); dir != "" {
		command = command.FFmpegLocation(dir)
	}

	if opts.ExtractAudio {
		command = command.ExtractAudio().AudioFormat(opts.AudioFormat)

		if opts.AudioQuality != "" {
			command = command.AudioQuality(opts.AudioQuality)
		}
	}

	if opts.Proxy != "" {
		log.InfoContext(ctx, "using proxy for download", slog.String("proxy", opts.Proxy))
		command = command.Proxy(opts.Proxy)
	}

	if opts.CookieFile != "" {
		command = command.Cookies(opts.CookieFile)
	}

	res, err := command.Run(ctx, url)
	if err != nil {
		log.ErrorContext(ctx, "ytdlp run", slog.Any("error", err), slog.Any("result", Result{res}))

		return "", fmt.Errorf("ytdlp run: %w", err)
	}

	results, err := ParseYtdlpStdout(res.Stdout)
	if err != nil {
		return "", fmt.Errorf("parse ytdlp output: %w", err)
	}

	path := finalPath(results)

	log.DebugContext(ctx, "ytdlp done", slog.Any("result", Result{res}), slog.Any("videos", results))

	return path, nil
}
