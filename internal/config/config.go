// Package config resolves batch settings from defaults, a JSON file, the
// environment and command line flags.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode"

	"ytbatch/internal/consts"
	"ytbatch/internal/entity"
	"ytbatch/internal/errs"
	"ytbatch/pkg/ptr"

	"github.com/caarlos0/env/v11"
)

// Settings holds the fully resolved batch configuration.
// Tags name the canonical key; the environment variable is YTBATCH_<KEY>.
type Settings struct {
	InputPath  string       `env:"INPUT_PATH"  envDefault:"google_next_sessions.xlsx"`
	SheetName  entity.Sheet `env:"SHEET_NAME"`
	URLColumn  string       `env:"URL_COLUMN"  envDefault:"YouTube URL"`
	OutputDir  string       `env:"OUTPUT_DIR"  envDefault:"./downloads/google_next_sessions"`
	MaxRetries int          `env:"MAX_RETRIES" envDefault:"3"`
	RetryDelay int          `env:"RETRY_DELAY" envDefault:"5"` // seconds
	LogFile    string       `env:"LOG_FILE"`
	Limit      *int         `env:"LIMIT"`

	Mode         string `env:"MODE"          envDefault:"audio"`
	Resolution   string `env:"RESOLUTION"    envDefault:"highest"`
	Workers      int    `env:"WORKERS"       envDefault:"1"`
	LogLevel     string `env:"LOG_LEVEL"     envDefault:"info"`
	AudioFormat  string `env:"AUDIO_FORMAT"  envDefault:"mp3"`
	AudioQuality string `env:"AUDIO_QUALITY" envDefault:"192"`

	// see: https://github.com/yt-dlp/yt-dlp/blob/2025.09.05/README.md#output-template
	FilenameTemplate string `env:"FILENAME_TEMPLATE" envDefault:"%(title)s.%(ext)s"`

	// must be a Netscape cookies.txt file
	CookieFile string `env:"COOKIE_FILE"`

	Proxies             []string      `env:"PROXIES"`
	ProxyMaxFailures    int           `env:"PROXY_MAX_FAILURES"    envDefault:"3"`
	ProxyFailureBackoff time.Duration `env:"PROXY_FAILURE_BACKOFF" envDefault:"1m"`

	BinsDir           string `env:"BINS_DIR"        envDefault:"./bins"`
	UseSystemBinaries bool   `env:"SYSTEM_BINARIES" envDefault:"true"`

	MetricsAddr string `env:"METRICS_ADDR"`

	// UnknownKeys lists config file keys that matched no setting.
	UnknownKeys []string `env:"-"`
}

// Layer is one source of raw setting values keyed by canonical name, e.g. "max_retries".
type Layer map[string]string

// Layers are the inputs of Resolve, from lowest to highest precedence:
// built-in defaults < Preset < ConfigFile < Environ < Flags.
type Layers struct {
	// Preset overrides built-in defaults for a command, e.g. the video batch.
	Preset Layer
	// ConfigFile is an optional JSON object path. A missing file is an error only when set.
	ConfigFile string
	// Environ is in os.Environ form; only YTBATCH_ variables are read.
	Environ []string
	// Flags holds the command line flags the user actually supplied.
	Flags Layer
}

// aliases maps accepted spellings onto canonical keys.
var aliases = map[string]string{
	"retry_delay_seconds": "retry_delay",
	"sheet":               "sheet_name",
	"column":              "url_column",
	"output":              "output_dir",
	"input":               "input_path",
	"proxy":               "proxies",
	"use_system_binaries": "system_binaries",
}

var knownKeys = collectKeys()

// Resolve merges all layers into Settings, coerces and validates them.
func Resolve(layers Layers) (*Settings, error) {
	merged := Layer{}

	merged.merge(layers.Preset)

	var unknown []string

	if layers.ConfigFile != "" {
		fileLayer, err := LoadFile(layers.ConfigFile)
		if err != nil {
			return nil, err
		}

		for key := range fileLayer {
			if _, ok := knownKeys[key]; !ok {
				unknown = append(unknown, key)
			}
		}

		merged.merge(fileLayer)
	}

	merged.merge(EnvLayer(layers.Environ))
	merged.merge(layers.Flags)

	cfg := &Settings{}

	err := env.ParseWithOptions(cfg, env.Options{
		Prefix:      consts.EnvPrefix,
		Environment: merged.environment(),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: parse settings: %w", errs.ErrConfig, err)
	}

	slices.Sort(unknown)
	cfg.UnknownKeys = unknown

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrConfig, err)
	}

	if err := cfg.SetAbsPaths(); err != nil {
		return nil, fmt.Errorf("%w: set absolute paths: %w", errs.ErrConfig, err)
	}

	return cfg, nil
}

// Defaults returns the built-in settings without reading any file or environment.
func Defaults() (*Settings, error) {
	return Resolve(Layers{})
}

// LoadFile reads a JSON object and flattens it into a Layer with canonical keys.
func LoadFile(path string) (Layer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read config file %q: %w", errs.ErrConfig, path, err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: parse config file %q: %w", errs.ErrConfig, path, err)
	}

	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: config file %q must contain a JSON object", errs.ErrConfig, path)
	}

	layer := make(Layer, len(obj))

	for key, value := range obj {
		str, present, err := stringify(value)
		if err != nil {
			return nil, fmt.Errorf("%w: config key %q: %w", errs.ErrConfig, key, err)
		}

		if present {
			layer[CanonicalKey(key)] = str
		}
	}

	return layer, nil
}

// EnvLayer extracts YTBATCH_ variables from an os.Environ style list.
func EnvLayer(environ []string) Layer {
	layer := Layer{}

	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, consts.EnvPrefix) {
			continue
		}

		layer[CanonicalKey(strings.TrimPrefix(key, consts.EnvPrefix))] = value
	}

	return layer
}

// CanonicalKey maps "max-retries", "maxRetries" and "MAX_RETRIES" to "max_retries".
// An acronym ends before an upper-case letter followed by a lower-case one: "URLColumn" is "url_column".
func CanonicalKey(key string) string {
	var b strings.Builder

	runes := []rune(strings.TrimSpace(key))
	prevLower, prevUpper := false, false

	for i, r := range runes {
		switch {
		case r == '-' || r == ' ' || r == '.':
			b.WriteByte('_')

			prevLower, prevUpper = false, false
		case unicode.IsUpper(r):
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if prevLower || (prevUpper && nextLower) {
				b.WriteByte('_')
			}

			b.WriteRune(unicode.ToLower(r))

			prevLower, prevUpper = false, true
		default:
			b.WriteRune(r)

			prevLower = unicode.IsLower(r) || unicode.IsDigit(r)
			prevUpper = false
		}
	}

	canonical := b.String()
	if alias, ok := aliases[canonical]; ok {
		return alias
	}

	return canonical
}

// Validate checks ranges and enumerations that env tags cannot express.
func (c *Settings) Validate() error {
	var problems []error

	if c.MaxRetries < 1 {
		problems = append(problems, fmt.Errorf("%w: max_retries must be >= 1, got %d", errs.ErrInvalidSetting, c.MaxRetries))
	}

	if c.RetryDelay < 0 {
		problems = append(problems, fmt.Errorf("%w: retry_delay must be >= 0, got %d", errs.ErrInvalidSetting, c.RetryDelay))
	}

	if c.Limit != nil && *c.Limit <= 0 {
		problems = append(problems, fmt.Errorf("%w: limit must be positive, got %d", errs.ErrInvalidSetting, *c.Limit))
	}

	if c.Workers < 1 {
		problems = append(problems, fmt.Errorf("%w: workers must be >= 1, got %d", errs.ErrInvalidSetting, c.Workers))
	}

	if strings.TrimSpace(c.URLColumn) == "" {
		problems = append(problems, fmt.Errorf("%w: url_column must not be empty", errs.ErrInvalidSetting))
	}

	if _, err := entity.ParseMode(c.Mode); err != nil {
		problems = append(problems, err)
	}

	if _, err := entity.ParseResolution(c.Resolution); err != nil {
		problems = append(problems, err)
	}

	return errors.Join(problems...)
}

// SetAbsPaths converts directory paths to absolute paths.
func (c *Settings) SetAbsPaths() error {
	var err error
	if c.OutputDir, err = filepath.Abs(c.OutputDir); err != nil {
		return fmt.Errorf("output dir: %w", err)
	}

	if c.BinsDir, err = filepath.Abs(c.BinsDir); err != nil {
		return fmt.Errorf("bins dir: %w", err)
	}

	if c.CookieFile != "" {
		if c.CookieFile, err = filepath.Abs(c.CookieFile); err != nil {
			return fmt.Errorf("cookie file: %w", err)
		}
	}

	return nil
}

// LogValue implements the slog.LogValuer interface for structured logging.
// Proxy URLs may carry credentials, so only their count is logged.
func (c *Settings) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("input_path", c.InputPath),
		slog.String("sheet_name", c.SheetName.String()),
		slog.String("url_column", c.URLColumn),
		slog.String("output_dir", c.OutputDir),
		slog.Int("limit", ptr.Deref(c.Limit)),
		slog.Int("max_retries", c.MaxRetries),
		slog.Int("retry_delay", c.RetryDelay),
		slog.String("mode", c.Mode),
		slog.String("resolution", c.Resolution),
		slog.Int("workers", c.Workers),
		slog.String("log_file", c.LogFile),
		slog.Int("proxies", len(c.Proxies)),
		slog.Bool("system_binaries", c.UseSystemBinaries),
		slog.String("metrics_addr", c.MetricsAddr),
	)
}

// RetryDelayDuration returns the fixed wait between attempts.
func (c *Settings) RetryDelayDuration() time.Duration {
	return time.Duration(c.RetryDelay) * time.Second
}

// DownloadMode returns the validated mode.
func (c *Settings) DownloadMode() entity.Mode {
	mode, _ := entity.ParseMode(c.Mode)

	return mode
}

// VideoResolution returns the validated resolution hint.
func (c *Settings) VideoResolution() entity.Resolution {
	res, _ := entity.ParseResolution(c.Resolution)

	return res
}

// OutputTemplate returns the yt-dlp output template rooted in OutputDir.
func (c *Settings) OutputTemplate() string {
	return filepath.Join(c.OutputDir, c.FilenameTemplate)
}

// LimitOrZero returns the record limit, 0 meaning unlimited.
func (c *Settings) LimitOrZero() int {
	if c.Limit == nil {
		return 0
	}

	return *c.Limit
}

func (l Layer) merge(other Layer) {
	for key, value := range other {
		l[key] = value
	}
}

func (l Layer) environment() map[string]string {
	environment := make(map[string]string, len(l))
	for key, value := range l {
		environment[consts.EnvPrefix+strings.ToUpper(key)] = value
	}

	return environment
}

// stringify renders a JSON value the way it would be written in an environment variable.
// A JSON null is reported as not present.
func stringify(value any) (string, bool, error) {
	switch val := value.(type) {
	case nil:
		return "", false, nil
	case string:
		return val, true, nil
	case json.Number:
		return val.String(), true, nil
	case bool:
		return strconv.FormatBool(val), true, nil
	case []any:
		parts := make([]string, 0, len(val))

		for _, item := range val {
			str, present, err := stringify(item)
			if err != nil {
				return "", false, err
			}

			if present {
				parts = append(parts, str)
			}
		}

		return strings.Join(parts, ","), true, nil
	default:
		return "", false, fmt.Errorf("unsupported value of type %T", value)
	}
}

func collectKeys() map[string]struct{} {
	keys := make(map[string]struct{})

	typ := reflect.TypeFor[Settings]()
	for i := range typ.NumField() {
		tag, _, _ := strings.Cut(typ.Field(i).Tag.Get("env"), ",")
		if tag == "" || tag == "-" {
			continue
		}

		keys[strings.ToLower(tag)] = struct{}{}
	}

	return keys
}
