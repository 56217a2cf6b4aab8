package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"ytbatch/internal/batch"
	"ytbatch/internal/config"
	"ytbatch/internal/consts"
	"ytbatch/internal/depmanager"
	"ytbatch/internal/downloader"
	"ytbatch/internal/entity"
	"ytbatch/internal/errs"
	httprouter "ytbatch/internal/infrastructure/delivery/http"
	"ytbatch/internal/observability"
	"ytbatch/internal/proxymgr"
	"ytbatch/internal/source"
	"ytbatch/pkg/gen"
	httpserver "ytbatch/pkg/http/server"
	"ytbatch/pkg/logger"

	"github.com/spf13/cobra"
)

// setup resolves settings and builds the run logger. The closer releases the log file.
func (a *app) setup(cmd *cobra.Command, preset config.Layer) (*config.Settings, *slog.Logger, io.Closer, error) {
	configFile, err := cmd.Flags().GetString(flagConfig)
	if err != nil {
		return nil, nil, nil, err
	}

	settings, err := config.Resolve(config.Layers{
		Preset:     preset,
		ConfigFile: configFile,
		Environ:    a.opt.Environ,
		Flags:      flagLayer(cmd.Flags()),
	})
	if err != nil {
		return nil, nil, nil, err
	}

	log, closer, err := logger.New(&logger.Options{
		Level:   settings.LogLevel,
		Console: a.opt.Stderr,
		File:    settings.LogFile,
	})
	if errors.Is(err, logger.ErrInvalidLevel) {
		log.WarnContext(cmd.Context(), "log level invalid; defaulting to info", slog.Any("error", err))
	} else if err != nil {
		return nil, nil, nil, err
	}

	log.InfoContext(cmd.Context(), "settings resolved", slog.Any("settings", settings))

	if len(settings.UnknownKeys) > 0 {
		log.DebugContext(cmd.Context(), "config file has unknown keys, ignored", slog.Any("keys", settings.UnknownKeys))
	}

	return settings, log, closer, nil
}

func (a *app) runBatch(cmd *cobra.Command, preset config.Layer) error {
	ctx := cmd.Context()

	settings, log, closer, err := a.setup(cmd, preset)
	if err != nil {
		return err
	}
	defer closer.Close()

	// input errors are reported before any binary is installed
	items, err := source.New(log).ReadURLs(ctx, source.Request{
		Path:   settings.InputPath,
		Sheet:  settings.SheetName,
		Column: settings.URLColumn,
		Limit:  settings.LimitOrZero(),
	})
	if err != nil {
		return err
	}

	engine, err := a.engine(cmd, log, settings)
	if err != nil {
		return err
	}

	_, err = a.execute(ctx, log, settings, engine, items)

	return err
}

func (a *app) runGet(cmd *cobra.Command, preset config.Layer, url string) (entity.Summary, error) {
	settings, log, closer, err := a.setup(cmd, preset)
	if err != nil {
		return entity.Summary{}, err
	}
	defer closer.Close()

	engine, err := a.engine(cmd, log, settings)
	if err != nil {
		return entity.Summary{}, err
	}

	items := []entity.WorkItem{{ID: gen.ItemID(url, 1), Row: 1, URL: url}}

	return a.execute(cmd.Context(), log, settings, engine, items)
}

// engine returns the simulator on dry runs and yt-dlp otherwise, installing binaries when needed.
func (a *app) engine(cmd *cobra.Command, log *slog.Logger, settings *config.Settings) (downloader.Engine, error) {
	dryRun, err := cmd.Flags().GetBool(flagDryRun)
	if err != nil {
		return nil, err
	}

	if dryRun {
		log.InfoContext(cmd.Context(), "dry run, no media will be downloaded")

		return downloader.NewSimulator(log, a.opt.DryRunDelay), nil
	}

	log.InfoContext(cmd.Context(), "checking yt-dlp and ffmpeg. it may take some time...")

	bins, err := depmanager.New(log, depmanager.Options{
		BinsDir:           settings.BinsDir,
		UseSystemBinaries: settings.UseSystemBinaries,
	}).Ensure(cmd.Context())
	if err != nil {
		return nil, err
	}

	return downloader.NewYTdlp(log, bins), nil
}

// execute runs items through the batch runner and prints the summary.
func (a *app) execute(
	ctx context.Context,
	log *slog.Logger,
	settings *config.Settings,
	engine downloader.Engine,
	items []entity.WorkItem,
) (entity.Summary, error) {
	metrics := observability.New()

	fetcher := downloader.NewFetcher(log, engine, downloader.FetcherOptions{
		FilenameTemplate: settings.FilenameTemplate,
		AudioFormat:      settings.AudioFormat,
		AudioQuality:     settings.AudioQuality,
		CookieFile:       settings.CookieFile,
		Proxies:          a.proxies(ctx, log, settings, metrics),
	})

	runner := batch.New(log, fetcher, batch.Options{
		Workers:    settings.Workers,
		OutputDir:  settings.OutputDir,
		Mode:       settings.DownloadMode(),
		Resolution: settings.VideoResolution(),
		MaxRetries: settings.MaxRetries,
		RetryDelay: settings.RetryDelayDuration(),
		Metrics:    metrics,
	})

	if settings.MetricsAddr != "" {
		srv, err := httpserver.New(httprouter.New(log, runner, metrics), httpserver.Options{
			Addr:            settings.MetricsAddr,
			ShutdownTimeout: consts.DefaultShutdownTimeout,
		})
		if err != nil {
			return entity.Summary{}, fmt.Errorf("start status server: %w", err)
		}

		log.InfoContext(ctx, "status server started", slog.String("addr", srv.Addr()))

		go func() {
			for err := range srv.Notify() {
				log.ErrorContext(ctx, "status server stopped", slog.Any("error", err))
			}
		}()

		defer func() {
			if err := srv.Shutdown(); err != nil {
				log.ErrorContext(ctx, "status server shutdown", slog.Any("error", err))
			}
		}()
	}

	stop := context.AfterFunc(ctx, func() {
		log.WarnContext(ctx, "interrupt received; started items run to completion, interrupt again to abort")
	})
	defer stop()

	summary, err := runner.Run(ctx, items)
	if err != nil {
		return summary, err
	}

	_, err = fmt.Fprintf(a.opt.Stdout, "total: %d, completed: %d, failed: %d\n",
		summary.Total, summary.Completed, summary.Failed)

	return summary, err
}

// proxies builds the proxy rotation, or nil when none are configured.
func (a *app) proxies(
	ctx context.Context,
	log *slog.Logger,
	settings *config.Settings,
	metrics *observability.Metrics,
) *proxymgr.Manager {
	if len(settings.Proxies) == 0 {
		return nil
	}

	mgr := proxymgr.New(log, proxymgr.Options{
		Proxies:        settings.Proxies,
		MaxFailures:    settings.ProxyMaxFailures,
		FailureBackoff: settings.ProxyFailureBackoff,
	})

	reachable := mgr.Probe(ctx)
	if reachable == 0 {
		log.WarnContext(ctx, "downloading without a proxy", slog.Any("error", errs.ErrNoProxiesAvailable))
	}

	metrics.SetProxiesAvailable(mgr.AvailableCount())

	log.InfoContext(ctx, "proxy manager initialized",
		slog.Int("proxy_count", mgr.Count()),
		slog.Int("reachable", reachable))

	return mgr
}
