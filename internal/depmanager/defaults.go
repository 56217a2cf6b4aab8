package depmanager

const (
	ytdlpBase  = "https://github.com/yt-dlp/yt-dlp/releases/latest/download/"
	ffmpegBase = "https://github.com/yt-dlp/FFmpeg-Builds/releases/download/latest/"
)

// DefaultSources are the release assets per "os/arch".
// macOS has no FFmpeg-Builds asset; use system binaries there.
var DefaultSources = map[string]Sources{
	"linux/amd64": {
		YTdlp:     ytdlpBase + "yt-dlp_linux",
		YTdlpSums: ytdlpBase + "SHA2-256SUMS",
		FFmpeg:    ffmpegBase + "ffmpeg-master-latest-linux64-gpl.tar.xz",
	},
	"linux/arm64": {
		YTdlp:     ytdlpBase + "yt-dlp_linux_aarch64",
		YTdlpSums: ytdlpBase + "SHA2-256SUMS",
		FFmpeg:    ffmpegBase + "ffmpeg-master-latest-linuxarm64-gpl.tar.xz",
	},
	"windows/amd64": {
		YTdlp:     ytdlpBase + "yt-dlp.exe",
		YTdlpSums: ytdlpBase + "SHA2-256SUMS",
		FFmpeg:    ffmpegBase + "ffmpeg-master-latest-win64-gpl.zip",
	},
}
