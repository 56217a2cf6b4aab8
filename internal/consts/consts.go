// Package consts defines application-wide constants.
package consts

import "time"

const (
	// AppName is the binary and metrics namespace name.
	AppName = "ytbatch"
	// EnvPrefix is the prefix of every environment variable read by config.
	EnvPrefix = "YTBATCH_"
	// DefaultPoolSize is the number of workers used by the concurrent video preset.
	DefaultPoolSize = 4
	// DefaultProgressFreq is how often yt-dlp progress updates are logged.
	DefaultProgressFreq = 2 * time.Second
	// DefaultDryRunDelay is how long a simulated download takes.
	DefaultDryRunDelay = 500 * time.Millisecond
	// DefaultShutdownTimeout bounds the status server shutdown after a run.
	DefaultShutdownTimeout = 3 * time.Second
)

// Video batch preset, used by the "videos" command.
const (
	// VideoPresetOutputDir is the default output directory for the video preset.
	VideoPresetOutputDir = "./downloads/google_next_sessions_video"
	// VideoPresetResolution is the default resolution hint for the video preset.
	VideoPresetResolution = "720p"
)

// Downloader identifiers.
const (
	// DownloaderYTdlp is the yt-dlp engine identifier.
	DownloaderYTdlp = "ytdlp"
	// DownloaderMock is the mock engine identifier for testing.
	DownloaderMock = "mock"
)

// HTTP response messages.
const (
	// RespSummary is returned with the live batch summary.
	RespSummary = "batch summary"
	// RespHealthy is returned by the health endpoint.
	RespHealthy = "ok"
)
