// Package downloader fetches a single YouTube URL through a media engine.
package downloader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"ytbatch/internal/entity"
	"ytbatch/internal/errs"
	"ytbatch/internal/proxymgr"
	"ytbatch/pkg/urls"
)

const (
	audioFormatSelector  = "bestaudio/best"
	videoHighestSelector = "bestvideo[ext=mp4]+bestaudio[ext=m4a]/best[ext=mp4]/best"
	videoLowestSelector  = "worstvideo[ext=mp4]+worstaudio[ext=m4a]/worst[ext=mp4]/worst"
	videoCappedSelector  = "bestvideo[height<=%[1]d][ext=mp4]+bestaudio[ext=m4a]/best[height<=%[1]d][ext=mp4]/best"
	videoContainer       = "mp4"
)

// Engine downloads one media URL and returns the final file path.
type Engine interface {
	Download(ctx context.Context, url string, opts Options) (string, error)
}

// Options are the engine arguments of one attempt.
type Options struct {
	// Output is the yt-dlp output template including the directory.
	Output       string
	Format       string
	ExtractAudio bool
	AudioFormat  string
	AudioQuality string
	Proxy        string
	CookieFile   string
}

// LogValue implements the slog.LogValuer interface for structured logging.
func (o Options) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("output", o.Output),
		slog.String("format", o.Format),
		slog.Bool("extract_audio", o.ExtractAudio),
		slog.String("proxy", o.Proxy),
	)
}

// Request selects what to fetch for a URL.
type Request struct {
	OutputDir  string
	Mode       entity.Mode
	Resolution entity.Resolution
}

// FetcherOptions holds the settings shared by every fetch.
type FetcherOptions struct {
	FilenameTemplate string
	AudioFormat      string
	AudioQuality     string
	CookieFile       string
	// Proxies is optional.
	Proxies *proxymgr.Manager
}

// Fetcher normalizes and validates URLs and hands valid ones to an Engine.
// It never returns errors: every failure is folded into the Outcome.
type Fetcher struct {
	log    *slog.Logger
	engine Engine
	opt    FetcherOptions
}

// NewFetcher creates a new Fetcher.
func NewFetcher(log *slog.Logger, engine Engine, opt FetcherOptions) *Fetcher {
	if opt.FilenameTemplate == "" {
		opt.FilenameTemplate = "%(title)s.%(ext)s"
	}

	if opt.AudioFormat == "" {
		opt.AudioFormat = "mp3"
	}

	return &Fetcher{
		log:    log.With(slog.String("package", "downloader")),
		engine: engine,
		opt:    opt,
	}
}

// Fetch runs a single attempt for rawURL.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, req Request) entity.Outcome {
	url := urls.CleanYouTube(rawURL)
	if !urls.IsYouTube(url) {
		return entity.Failure(entity.FailureValidation, fmt.Errorf("%w: %q", errs.ErrInvalidURL, rawURL))
	}

	opts, err := f.options(req)
	if err != nil {
		return entity.Failure(entity.FailureValidation, err)
	}

	if f.opt.Proxies != nil {
		opts.Proxy = f.opt.Proxies.GetRandomProxy()
	}

	log := f.log.With(slog.String("url", url), slog.Any("options", opts))
	log.DebugContext(ctx, "fetching")

	path, err := f.engine.Download(ctx, url, opts)
	if err != nil {
		f.markProxy(opts.Proxy, false)

		if errors.Is(err, errs.ErrBinaryNotFound) {
			return entity.Failure(entity.FailureValidation, err)
		}

		return entity.Failure(entity.FailureTransient, fmt.Errorf("%w: %w", errs.ErrDownloadFailed, err))
	}

	f.markProxy(opts.Proxy, true)

	if path != "" && req.Mode == entity.ModeAudio {
		path = withExt(path, f.opt.AudioFormat)
	}

	log.DebugContext(ctx, "fetched", slog.String("path", path))

	return entity.Success(path)
}

func (f *Fetcher) options(req Request) (Options, error) {
	opts := Options{
		Output:     filepath.Join(req.OutputDir, f.opt.FilenameTemplate),
		CookieFile: f.opt.CookieFile,
	}

	switch req.Mode {
	case entity.ModeAudio:
		opts.Format = audioFormatSelector
		opts.ExtractAudio = true
		opts.AudioFormat = f.opt.AudioFormat
		opts.AudioQuality = f.opt.AudioQuality
	case entity.ModeVideo:
		format, err := FormatSelector(req.Resolution)
		if err != nil {
			return Options{}, err
		}

		opts.Format = format
	default:
		return Options{}, fmt.Errorf("%w: %q", errs.ErrInvalidMode, req.Mode)
	}

	return opts, nil
}

func (f *Fetcher) markProxy(proxyURL string, ok bool) {
	if f.opt.Proxies == nil || proxyURL == "" {
		return
	}

	if ok {
		f.opt.Proxies.MarkSuccess(proxyURL)
	} else {
		f.opt.Proxies.MarkFailed(proxyURL)
	}
}

// FormatSelector maps a resolution hint to a yt-dlp format selector.
// The zero Resolution means highest.
func FormatSelector(res entity.Resolution) (string, error) {
	switch {
	case res.Preset == entity.ResolutionHighest, res.Preset == "" && res.MaxHeight == 0:
		return videoHighestSelector, nil
	case res.Preset == entity.ResolutionLowest:
		return videoLowestSelector, nil
	case res.Preset == "" && res.MaxHeight > 0:
		return fmt.Sprintf(videoCappedSelector, res.MaxHeight), nil
	default:
		return "", fmt.Errorf("%w: %q", errs.ErrInvalidResolution, res.Preset+strconv.Itoa(res.MaxHeight))
	}
}

// withExt replaces the extension of path.
func withExt(path, ext string) string {
	ext = strings.TrimPrefix(ext, ".")
	if ext == "" {
		return path
	}

	return strings.TrimSuffix(path, filepath.Ext(path)) + "." + ext
}
