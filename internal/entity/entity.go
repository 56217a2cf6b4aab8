// Package entity defines the core entities used in the application.
package entity

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"ytbatch/internal/errs"
)

// Mode selects what is fetched for each URL.
type Mode string

const (
	// ModeAudio downloads the audio track only and converts it to the configured codec.
	ModeAudio Mode = "audio"
	// ModeVideo downloads video plus audio, capped by the resolution hint.
	ModeVideo Mode = "video"
)

// ParseMode converts a user supplied string to a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeAudio:
		return ModeAudio, nil
	case ModeVideo:
		return ModeVideo, nil
	default:
		return "", fmt.Errorf("%w: %q (want audio or video)", errs.ErrInvalidMode, s)
	}
}

// WorkItem is one spreadsheet row's URL plus its original row index.
type WorkItem struct {
	ID  string `json:"id"`
	Row int    `json:"row"`
	URL string `json:"url"`
}

// LogValue implements the slog.LogValuer interface for structured logging.
func (w WorkItem) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("id", w.ID),
		slog.Int("row", w.Row),
		slog.String("url", w.URL),
	)
}

// FailureKind tells the retry controller whether a failure is worth retrying.
type FailureKind string

const (
	// FailureValidation is a malformed input; retrying cannot fix it.
	FailureValidation FailureKind = "validation"
	// FailureTransient is a network or engine error; it is retried.
	FailureTransient FailureKind = "transient"
)

// Outcome is the result of a single fetch attempt: either a path or a failure cause.
type Outcome struct {
	Path  string
	Kind  FailureKind
	Cause error
}

// Success returns a successful outcome. An empty path is still reported as
// success here; the retry controller decides what to do with it.
func Success(path string) Outcome {
	return Outcome{Path: path}
}

// Failure returns a failed outcome of the given kind.
func Failure(kind FailureKind, cause error) Outcome {
	return Outcome{Kind: kind, Cause: cause}
}

// OK reports whether the attempt succeeded.
func (o Outcome) OK() bool {
	return o.Cause == nil
}

// LogValue implements the slog.LogValuer interface for structured logging.
func (o Outcome) LogValue() slog.Value {
	if o.OK() {
		return slog.GroupValue(slog.String("path", o.Path))
	}

	return slog.GroupValue(
		slog.String("kind", string(o.Kind)),
		slog.String("cause", o.Cause.Error()),
	)
}

// Summary aggregates per-item outcomes of a batch run.
type Summary struct {
	RunID     string        `json:"runId"`
	Total     int           `json:"total"`
	Completed int           `json:"completed"`
	Failed    int           `json:"failed"`
	Duration  time.Duration `json:"duration"`
}

// LogValue implements the slog.LogValuer interface for structured logging.
func (s Summary) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("run_id", s.RunID),
		slog.Int("total", s.Total),
		slog.Int("completed", s.Completed),
		slog.Int("failed", s.Failed),
		slog.Duration("duration", s.Duration),
	)
}

// Sheet selects a worksheet by name or by 0-based position.
// The zero value selects the first sheet.
type Sheet struct {
	Name   string
	Index  int
	ByName bool
}

// ParseSheet converts a selector string. Purely numeric strings become an index.
func ParseSheet(s string) Sheet {
	s = strings.TrimSpace(s)
	if s == "" {
		return Sheet{}
	}

	if idx, err := strconv.Atoi(s); err == nil && idx >= 0 && isDigits(s) {
		return Sheet{Index: idx}
	}

	return Sheet{Name: s, ByName: true}
}

// UnmarshalText implements encoding.TextUnmarshaler so config can decode sheet selectors.
func (s *Sheet) UnmarshalText(text []byte) error {
	*s = ParseSheet(string(text))

	return nil
}

func (s Sheet) String() string {
	if s.ByName {
		return s.Name
	}

	return strconv.Itoa(s.Index)
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}

	return true
}

// Resolution is a video quality hint: a symbolic preset or a height ceiling in pixels.
type Resolution struct {
	Preset    string
	MaxHeight int
}

// Resolution presets.
const (
	ResolutionHighest = "highest"
	ResolutionLowest  = "lowest"
)

// ParseResolution accepts "highest", "lowest", "720p" or "720". An empty hint means highest.
func ParseResolution(s string) (Resolution, error) {
	hint := strings.ToLower(strings.TrimSpace(s))

	switch hint {
	case "", ResolutionHighest:
		return Resolution{Preset: ResolutionHighest}, nil
	case ResolutionLowest:
		return Resolution{Preset: ResolutionLowest}, nil
	}

	height, err := strconv.Atoi(strings.TrimSuffix(hint, "p"))
	if err != nil || height <= 0 {
		return Resolution{}, fmt.Errorf("%w: %q (want highest, lowest or a height like 720p)", errs.ErrInvalidResolution, s)
	}

	return Resolution{MaxHeight: height}, nil
}

func (r Resolution) String() string {
	if r.Preset != "" {
		return r.Preset
	}

	return strconv.Itoa(r.MaxHeight) + "p"
}
