package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/researchaccelerator-hub/shorts-scraper/api"
	"github.com/researchaccelerator-hub/shorts-scraper/collector"
	"github.com/researchaccelerator-hub/shorts-scraper/config"
	"github.com/researchaccelerator-hub/shorts-scraper/discovery"
	"github.com/researchaccelerator-hub/shorts-scraper/downloader"
	"github.com/researchaccelerator-hub/shorts-scraper/model"
	"github.com/researchaccelerator-hub/shorts-scraper/queue"
	"github.com/researchaccelerator-hub/shorts-scraper/scheduler"
	"github.com/researchaccelerator-hub/shorts-scraper/store"
	"github.com/researchaccelerator-hub/shorts-scraper/uploader"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if isatty.IsTerminal(os.Stderr.Fd()) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	if err := newRootCommand().Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("Command failed")
		}
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "shorts-scraper",
		Short:         "Discovers and downloads short-form video from YouTube and Facebook",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Configuration file path")

	rootCmd.AddCommand(newServeCommand(&configPath))
	rootCmd.AddCommand(newDiscoverCommand(&configPath))
	rootCmd.AddCommand(newScanCommand(&configPath))
	rootCmd.AddCommand(newWorkerCommand(&configPath))
	return rootCmd
}

// app bundles the wired collaborators shared by every command.
type app struct {
	cfg       config.Config
	store     store.Store
	queue     *queue.Queue
	discovery *discovery.Service
	worker    *downloader.Worker
}

func buildApp(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	zerolog.SetGlobalLevel(level)

	st, err := store.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var up uploader.Uploader = uploader.Disabled{}
	if cfg.DriveTokenFile != "" {
		drive, err := uploader.NewDrive(ctx, cfg.DriveTokenFile)
		if err != nil {
			st.Close(ctx)
			return nil, err
		}
		up = drive
	}

	q := queue.New()
	svc := discovery.NewService(st, collector.FromConfig(cfg.Scraper), q)
	worker := downloader.NewWorker(q, st, &downloader.YtDlp{Binary: cfg.YtDlpBinary}, up, cfg.DownloadRoot)

	return &app{cfg: cfg, store: st, queue: q, discovery: svc, worker: worker}, nil
}

func (a *app) close(ctx context.Context) {
	if err := a.store.Close(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to close store")
	}
}

func newServeCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the API server, the scheduler and the download worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx, *configPath)
			if err != nil {
				return err
			}
			defer a.close(context.Background())

			var sched *scheduler.Scheduler
			var reloader api.Reloader
			if a.cfg.EnableScheduler {
				sched = scheduler.New(a.discovery, a.store)
				if err := sched.Start(ctx); err != nil {
					return err
				}
				defer sched.Stop()
				reloader = sched
			}

			server := api.NewServer(a.cfg.ListenAddr, a.cfg.Scraper.Engine, a.store, a.discovery, a.queue, a.worker, reloader)

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return a.worker.Run(gctx)
			})
			g.Go(func() error {
				return server.Run(gctx)
			})
			g.Go(func() error {
				<-gctx.Done()
				a.queue.Close()
				return nil
			})

			log.Info().Str("addr", a.cfg.ListenAddr).Msg("Service started")
			if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
}

func newDiscoverCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "discover",
		Short: "Run one discovery pass and download everything it queued",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cmd.Context(), *configPath, func(ctx context.Context, a *app) error {
				result, err := a.discovery.DiscoverAll(ctx)
				if err != nil {
					return err
				}
				log.Info().Int("items_found", result.ItemsFound).Bool("skipped", result.Skipped).Msg("Discovery finished")
				return nil
			})
		},
	}
}

func newScanCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Scan the active channels once and download everything queued",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cmd.Context(), *configPath, func(ctx context.Context, a *app) error {
				result, err := a.discovery.ScanAllChannels(ctx)
				if err != nil {
					return err
				}
				log.Info().Int("items_found", result.ItemsFound).Bool("skipped", result.Skipped).Msg("Channel scan finished")
				return nil
			})
		},
	}
}

func newWorkerCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Re-enqueue pending videos and download them until the queue is empty",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cmd.Context(), *configPath, func(ctx context.Context, a *app) error {
				settings, err := a.store.GetSettings(ctx)
				if err != nil {
					return err
				}

				seeded := 0
				for page := 1; ; page++ {
					videos, _, err := a.store.ListVideos(ctx, store.VideoFilter{
						Status: model.StatusPending,
						Page:   page,
						Limit:  100,
					})
					if err != nil {
						return err
					}
					if len(videos) == 0 {
						break
					}
					for _, v := range videos {
						priority := queue.PriorityNormal
						if v.Views > settings.HighPriorityViews {
							priority = queue.PriorityHigh
						}
						a.queue.Push(v.Key, priority, 0)
						seeded++
					}
				}

				log.Info().Int("seeded", seeded).Msg("Pending videos re-enqueued")
				return nil
			})
		},
	}
}

// runOnce wires the app, runs one pipeline entry point and drains the queue
// before exiting.
func runOnce(parent context.Context, configPath string, fn func(context.Context, *app) error) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.close(context.Background())

	if err := fn(ctx, a); err != nil {
		return err
	}
	return a.worker.Drain(ctx)
}
