package downloader_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"ytbatch/internal/downloader"
	"ytbatch/internal/entity"
	"ytbatch/internal/errs"
	"ytbatch/internal/proxymgr"
)

type call struct {
	url  string
	opts downloader.Options
}

// engine is a scripted downloader.Engine.
type engine struct {
	mu    sync.Mutex
	calls []call
	path  string
	err   error
}

func (e *engine) Download(_ context.Context, url string, opts downloader.Options) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.calls = append(e.calls, call{url: url, opts: opts})

	return e.path, e.err
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFetch(t *testing.T) {
	t.Parallel()

	const dir = "/srv/out"

	errEngine := errors.New("HTTP Error 503")

	tests := []struct {
		name       string
		url        string
		req        downloader.Request
		enginePath string
		engineErr  error
		wantCalls  int
		wantURL    string
		wantPath   string
		wantKind   entity.FailureKind
		wantErr    []error
		checkOpts  func(t *testing.T, opts downloader.Options)
	}{
		{
			name:       "short link audio forces codec extension",
			url:        "youtu.be/AAAAAAAAAAA",
			req:        downloader.Request{OutputDir: dir, Mode: entity.ModeAudio},
			enginePath: "/srv/out/Keynote.webm",
			wantCalls:  1,
			wantURL:    "https://www.youtube.com/watch?v=AAAAAAAAAAA",
			wantPath:   "/srv/out/Keynote.mp3",
			checkOpts: func(t *testing.T, opts downloader.Options) {
				t.Helper()

				if !opts.ExtractAudio || opts.AudioFormat != "mp3" || opts.AudioQuality != "192" {
					t.Errorf("audio options = %+v, want mp3 at 192", opts)
				}

				if opts.Format != "bestaudio/best" {
					t.Errorf("Format = %q, want bestaudio/best", opts.Format)
				}

				if want := filepath.Join(dir, "%(title)s.%(ext)s"); opts.Output != want {
					t.Errorf("Output = %q, want %q", opts.Output, want)
				}
			},
		},
		{
			name:       "video with height ceiling",
			url:        "https://www.youtube.com/watch?v=BBBBBBBBBBB",
			req:        downloader.Request{OutputDir: dir, Mode: entity.ModeVideo, Resolution: entity.Resolution{MaxHeight: 720}},
			enginePath: "/srv/out/Session.mp4",
			wantCalls:  1,
			wantURL:    "https://www.youtube.com/watch?v=BBBBBBBBBBB",
			wantPath:   "/srv/out/Session.mp4",
			checkOpts: func(t *testing.T, opts downloader.Options) {
				t.Helper()

				if opts.ExtractAudio {
					t.Error("ExtractAudio = true in video mode")
				}

				if !strings.Contains(opts.Format, "height<=720") {
					t.Errorf("Format = %q, want a 720 ceiling", opts.Format)
				}
			},
		},
		{
			name:      "invalid url never reaches the engine",
			url:       "https://example.com/talk",
			req:       downloader.Request{OutputDir: dir, Mode: entity.ModeAudio},
			wantCalls: 0,
			wantKind:  entity.FailureValidation,
			wantErr:   []error{errs.ErrInvalidURL},
		},
		{
			name:      "bad resolution is a validation failure",
			url:       "https://www.youtube.com/watch?v=BBBBBBBBBBB",
			req:       downloader.Request{OutputDir: dir, Mode: entity.ModeVideo, Resolution: entity.Resolution{MaxHeight: -1}},
			wantCalls: 0,
			wantKind:  entity.FailureValidation,
			wantErr:   []error{errs.ErrInvalidResolution},
		},
		{
			name:      "engine error is transient",
			url:       "https://www.youtube.com/watch?v=CCCCCCCCCCC",
			req:       downloader.Request{OutputDir: dir, Mode: entity.ModeAudio},
			engineErr: errEngine,
			wantCalls: 1,
			wantURL:   "https://www.youtube.com/watch?v=CCCCCCCCCCC",
			wantKind:  entity.FailureTransient,
			wantErr:   []error{errs.ErrDownloadFailed, errEngine},
		},
		{
			name:      "engine success without path",
			url:       "https://www.youtube.com/watch?v=DDDDDDDDDDD",
			req:       downloader.Request{OutputDir: dir, Mode: entity.ModeAudio},
			wantCalls: 1,
			wantURL:   "https://www.youtube.com/watch?v=DDDDDDDDDDD",
			wantPath:  "",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			eng := &engine{path: tc.enginePath, err: tc.engineErr}
			fetcher := downloader.NewFetcher(discard(), eng, downloader.FetcherOptions{AudioFormat: "mp3", AudioQuality: "192"})

			out := fetcher.Fetch(t.Context(), tc.url, tc.req)

			if len(eng.calls) != tc.wantCalls {
				t.Fatalf("engine called %d times, want %d", len(eng.calls), tc.wantCalls)
			}

			if tc.wantCalls > 0 && eng.calls[0].url != tc.wantURL {
				t.Errorf("engine url = %q, want %q", eng.calls[0].url, tc.wantURL)
			}

			if tc.checkOpts != nil {
				tc.checkOpts(t, eng.calls[0].opts)
			}

			if len(tc.wantErr) == 0 {
				if !out.OK() {
					t.Fatalf("Fetch() = %+v, want success", out)
				}

				if out.Path != tc.wantPath {
					t.Errorf("Path = %q, want %q", out.Path, tc.wantPath)
				}

				return
			}

			if out.OK() {
				t.Fatalf("Fetch() succeeded, want failure")
			}

			if out.Kind != tc.wantKind {
				t.Errorf("Kind = %q, want %q", out.Kind, tc.wantKind)
			}

			for _, want := range tc.wantErr {
				if !errors.Is(out.Cause, want) {
					t.Errorf("Cause = %v, want it to wrap %v", out.Cause, want)
				}
			}
		})
	}
}

func TestFetchMarksProxies(t *testing.T) {
	t.Parallel()

	const proxyURL = "socks5h://proxy:1080"

	proxies := proxymgr.New(discard(), proxymgr.Options{Proxies: []string{proxyURL}, MaxFailures: 1, FailureBackoff: time.Hour})
	eng := &engine{err: errors.New("connection reset")}
	fetcher := downloader.NewFetcher(discard(), eng, downloader.FetcherOptions{Proxies: proxies})

	fetcher.Fetch(t.Context(), "https://www.youtube.com/watch?v=AAAAAAAAAAA", downloader.Request{Mode: entity.ModeAudio})

	if got := eng.calls[0].opts.Proxy; got != proxyURL {
		t.Errorf("Proxy = %q, want %q", got, proxyURL)
	}

	if got := proxies.AvailableCount(); got != 0 {
		t.Errorf("AvailableCount() = %d, want 0 after a failed attempt", got)
	}

	fetcher.Fetch(t.Context(), "https://www.youtube.com/watch?v=AAAAAAAAAAA", downloader.Request{Mode: entity.ModeAudio})

	if got := eng.calls[1].opts.Proxy; got != "" {
		t.Errorf("Proxy = %q, want none while benched", got)
	}
}

func TestFormatSelector(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		res     entity.Resolution
		want    string
		wantErr bool
	}{
		{name: "zero value", res: entity.Resolution{}, want: "bestvideo[ext=mp4]+bestaudio[ext=m4a]/best[ext=mp4]/best"},
		{name: "highest", res: entity.Resolution{Preset: entity.ResolutionHighest}, want: "bestvideo[ext=mp4]+bestaudio[ext=m4a]/best[ext=mp4]/best"},
		{name: "lowest", res: entity.Resolution{Preset: entity.ResolutionLowest}, want: "worstvideo[ext=mp4]+worstaudio[ext=m4a]/worst[ext=mp4]/worst"},
		{
			name: "ceiling",
			res:  entity.Resolution{MaxHeight: 480},
			want: "bestvideo[height<=480][ext=mp4]+bestaudio[ext=m4a]/best[height<=480][ext=mp4]/best",
		},
		{name: "unknown preset", res: entity.Resolution{Preset: "medium"}, wantErr: true},
		{name: "negative height", res: entity.Resolution{MaxHeight: -5}, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := downloader.FormatSelector(tc.res)
			if tc.wantErr {
				if !errors.Is(err, errs.ErrInvalidResolution) {
					t.Fatalf("FormatSelector() error = %v, want ErrInvalidResolution", err)
				}

				return
			}

			if err != nil {
				t.Fatalf("FormatSelector() failed: %v", err)
			}

			if got != tc.want {
				t.Errorf("FormatSelector() = %q, want %q", got, tc.want)
			}
		})
	}
}
