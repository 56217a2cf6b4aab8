// Package cli builds the ytbatch command tree.
package cli

import (
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"time"

	"ytbatch/internal/consts"

	"github.com/spf13/cobra"
)

// Options are the process handles the commands read and write.
type Options struct {
	Stdout  io.Writer
	Stderr  io.Writer
	Environ []string
	// Version overrides the module version reported by "version".
	Version string
	// DryRunDelay is how long each simulated download takes.
	DryRunDelay time.Duration
}

type app struct {
	opt Options
}

// NewRootCommand returns the root command with every subcommand attached.
func NewRootCommand(opt Options) *cobra.Command {
	if opt.Stdout == nil {
		opt.Stdout = os.Stdout
	}

	if opt.Stderr == nil {
		opt.Stderr = os.Stderr
	}

	if opt.DryRunDelay <= 0 {
		opt.DryRunDelay = consts.DefaultDryRunDelay
	}

	a := &app{opt: opt}

	root := &cobra.Command{
		Use:   consts.AppName,
		Short: "Batch download YouTube links listed in a spreadsheet",
		Long: `ytbatch reads YouTube links from a spreadsheet column and downloads each one
as audio or video through yt-dlp, retrying failed items with a fixed delay.
Settings come from built-in defaults, a JSON file, YTBATCH_* environment
variables and flags, in increasing precedence.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.SetOut(opt.Stdout)
	root.SetErr(opt.Stderr)

	pf := root.PersistentFlags()
	pf.String(flagConfig, "", "JSON settings file")
	pf.Bool(flagDryRun, false, "resolve settings and read the input but download nothing")
	pf.String("log-level", "", "debug, info, warn or error")
	pf.String("log-file", "", "also write JSON log lines to this file")
	pf.String("bins-dir", "", "directory holding yt-dlp and ffmpeg")
	pf.Bool("system-binaries", true, "use yt-dlp and ffmpeg from PATH instead of bins-dir")
	pf.String("cookie-file", "", "Netscape cookies.txt passed to yt-dlp")
	pf.StringSlice("proxy", nil, "proxy URL, repeatable")
	pf.String("metrics-addr", "", "serve /metrics, /healthz and /summary on this address during the run")

	root.AddCommand(
		a.batchCommand(),
		a.videosCommand(),
		a.getCommand(),
		a.versionCommand(),
	)

	return root
}

func (a *app) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", consts.AppName, a.version())

			return err
		},
	}
}

func (a *app) version() string {
	if a.opt.Version != "" {
		return a.opt.Version
	}

	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}

	return "(devel)"
}
