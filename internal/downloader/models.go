package downloader

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"ytbatch/pkg/calc"
	"ytbatch/pkg/ptr"
	"ytbatch/pkg/shellquote"

	"github.com/lrstanley/go-ytdlp"
)

var (
	maxJSONSize = 10 * 1024 * 1024                                       // 10 MiB scanner buffer
	bufSize     = 4096                                                   // 4 KiB buffer size
	reFilepath  = regexp.MustCompile(`(?i)^[^\{\[\n].*\.[a-z0-9]{1,6}$`) // file path
)

// Result wraps ytdlp.Result for custom logging.
type Result struct {
	*ytdlp.Result
}

// LogValue implements the slog.LogValuer interface for custom logging of Result.
func (r Result) LogValue() slog.Value {
	if r.Result == nil {
		return slog.GroupValue(slog.String("error", "nil result"))
	}

	var output strings.Builder

	for _, l := range r.OutputLogs {
		if l == nil {
			continue
		}

		fmt.Fprintf(&output, "%s\n", l.Line)
	}

	return slog.GroupValue(
		slog.String("command", shellquote.Join(r.Executable, r.Args)),
		slog.Int("exit_code", r.ExitCode),
		slog.String("stderr", r.Stderr),
		slog.String("output_logs", output.String()),
	)
}

// ProgressUpdate wraps ytdlp.ProgressUpdate for custom logging.
type ProgressUpdate struct {
	*ytdlp.ProgressUpdate
}

// LogValue implements the slog.LogValuer interface for custom logging of ProgressUpdate.
func (p ProgressUpdate) LogValue() slog.Value {
	if p.ProgressUpdate == nil {
		return slog.GroupValue(slog.String("error", "nil progress update"))
	}

	var title string
	if p.Info != nil {
		title = ptr.Deref(p.Info.Title)
	}

	return slog.GroupValue(
		slog.String("title", title),
		slog.String("filename", p.Filename),
		slog.String("status", fmt.Sprintf("%v", p.Status)),
		slog.Int("downloaded_bytes", p.DownloadedBytes),
		slog.Int("total_bytes", p.TotalBytes),
		slog.Int("fragment_index", p.FragmentIndex),
		slog.Int("fragment_count", p.FragmentCount),
		slog.Int("progress", calc.Progress(p.DownloadedBytes, p.TotalBytes)),
	)
}

// ResultJSON is the subset of yt-dlp's per-video JSON line that is logged,
// plus the after_move file path printed after it.
type ResultJSON struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Channel    string  `json:"channel"`
	Duration   float64 `json:"duration"`
	WebpageURL string  `json:"webpage_url"`
	Ext        string  `json:"ext"`
	Filename   string  `json:"filename"`
}

// LogValue implements the slog.LogValuer interface for structured logging.
func (r ResultJSON) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("id", r.ID),
		slog.String("title", r.Title),
		slog.String("channel", r.Channel),
		slog.String("filename", r.Filename),
	)
}

// ParseYtdlpStdout parses yt-dlp stdout produced with --print-json and
// --print after_move:filepath. A path line is attached to the JSON line before
// it; a path with no preceding JSON line becomes its own entry.
func ParseYtdlpStdout(stdout string) ([]ResultJSON, error) {
	scanner := bufio.NewScanner(strings.NewReader(stdout))
	scanner.Buffer(make([]byte, bufSize), maxJSONSize)

	var res []ResultJSON

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "{") {
			var r ResultJSON
			if err := json.Unmarshal([]byte(line), &r); err == nil {
				// yt-dlp's own "filename" is the pre-postprocessing name.
				r.Filename = ""
				res = append(res, r)

				continue
			}
		}

		if !reFilepath.MatchString(line) {
			continue
		}

		if n := len(res); n > 0 && res[n-1].Filename == "" {
			res[n-1].Filename = line
		} else {
			res = append(res, ResultJSON{Filename: line})
		}
	}

	if err := scanner.Err(); err != nil {
		return res, fmt.Errorf("scan yt-dlp stdout: %w", err)
	}

	return res, nil
}

// finalPath returns the last file path yt-dlp reported.
func finalPath(results []ResultJSON) string {
	for i := len(results) - 1; i >= 0; i-- {
		if results[i].Filename != "" {
			return results[i].Filename
		}
	}

	return ""
}
