package cli

import (
	"strings"

	"ytbatch/internal/config"
	"ytbatch/internal/entity"

	"github.com/spf13/pflag"
)

const (
	flagConfig    = "config"
	flagDryRun    = "dry-run"
	flagAudioOnly = "audio-only"
)

// nonSettings are flags that steer the command instead of naming a setting.
var nonSettings = map[string]struct{}{
	flagConfig: {},
	flagDryRun: {},
	"help":     {},
}

// addBatchFlags registers the spreadsheet batch flags.
func addBatchFlags(fs *pflag.FlagSet) {
	fs.StringP("input-path", "i", "", "spreadsheet (.xlsx or .csv) holding the links")
	fs.StringP("sheet-name", "s", "", "sheet name or 0-based index, first sheet when empty")
	fs.StringP("url-column", "c", "", "header of the column holding the links")
	fs.StringP("output-dir", "o", "", "directory receiving the downloads")
	fs.IntP("limit", "l", 0, "process only the first N valid rows")
	fs.Int("max-retries", 0, "attempts per item, including the first")
	fs.Int("retry-delay", 0, "seconds to wait between attempts")
	fs.String("mode", "", "audio or video")
	fs.String("resolution", "", "highest, lowest or a height like 720p")
	fs.IntP("workers", "w", 0, "items downloaded concurrently")
	fs.String("audio-format", "", "audio codec for audio mode, e.g. mp3")
	fs.String("audio-quality", "", "audio quality passed to yt-dlp, e.g. 192")
	fs.String("filename-template", "", "yt-dlp output template")
}

// flagLayer collects the flags the user actually set, keyed by setting name.
// --audio-only is a spelling of the mode setting.
func flagLayer(fs *pflag.FlagSet) config.Layer {
	layer := config.Layer{}

	fs.Visit(func(f *pflag.Flag) {
		if _, skip := nonSettings[f.Name]; skip {
			return
		}

		if f.Name == flagAudioOnly {
			mode := entity.ModeVideo
			if f.Value.String() == "true" {
				mode = entity.ModeAudio
			}

			layer["mode"] = string(mode)

			return
		}

		value := f.Value.String()
		if slice, ok := f.Value.(pflag.SliceValue); ok {
			value = strings.Join(slice.GetSlice(), ",")
		}

		layer[config.CanonicalKey(f.Name)] = value
	})

	return layer
}
