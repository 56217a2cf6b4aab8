package cli

import (
	"fmt"
	"strconv"

	"ytbatch/internal/config"
	"ytbatch/internal/consts"
	"ytbatch/internal/entity"
	"ytbatch/internal/errs"

	"github.com/spf13/cobra"
)

func (a *app) batchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Download every link in a spreadsheet column",
		Long: `Reads the URL column of the input spreadsheet and downloads each valid
YouTube link. Rows without a link are skipped. Per-item failures are counted
in the final summary and never change the exit status.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runBatch(cmd, nil)
		},
	}

	addBatchFlags(cmd.Flags())

	return cmd
}

// videosPreset is the concurrent video batch.
func videosPreset() config.Layer {
	return config.Layer{
		"mode":       string(entity.ModeVideo),
		"workers":    strconv.Itoa(consts.DefaultPoolSize),
		"resolution": consts.VideoPresetResolution,
		"output_dir": consts.VideoPresetOutputDir,
	}
}

func (a *app) videosCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "videos",
		Short: "Download a spreadsheet as 720p videos on a worker pool",
		Long: fmt.Sprintf(`Same as batch with video mode, %d workers, %s resolution and output to
%s. Any of these can still be overridden.`,
			consts.DefaultPoolSize, consts.VideoPresetResolution, consts.VideoPresetOutputDir),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runBatch(cmd, videosPreset())
		},
	}

	addBatchFlags(cmd.Flags())

	return cmd
}

func (a *app) getCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <url>",
		Short: "Download a single link",
		Long: `Downloads one YouTube link as video, or as audio with --audio-only.
The retry settings apply. Exits non-zero when the download fails.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// video unless --audio-only, which is resolved as a flag
			preset := config.Layer{"mode": string(entity.ModeVideo)}

			summary, err := a.runGet(cmd, preset, args[0])
			if err != nil {
				return err
			}

			if summary.Failed > 0 {
				return fmt.Errorf("%w: %s", errs.ErrDownloadFailed, args[0])
			}

			return nil
		},
	}

	fs := cmd.Flags()
	fs.BoolP(flagAudioOnly, "a", false, "download the audio track only")
	fs.StringP("resolution", "r", "", "highest, lowest or a height like 720p")
	fs.StringP("output", "o", "", "directory receiving the download")
	fs.Int("max-retries", 0, "attempts, including the first")
	fs.Int("retry-delay", 0, "seconds to wait between attempts")

	return cmd
}
