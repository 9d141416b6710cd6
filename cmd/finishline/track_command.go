package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/nvr-ai/finishline/config"
	"github.com/nvr-ai/finishline/controller"
	"github.com/nvr-ai/finishline/profiler"
	"github.com/nvr-ai/finishline/recognition"
	"github.com/nvr-ai/finishline/render"
	"github.com/nvr-ai/finishline/report"
	"github.com/nvr-ai/finishline/tracking"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newTrackCommand(ctx *commandContext) *cobra.Command {
	var catalogPath string

	cmd := &cobra.Command{
		Use:   "track --catalog <file> <video>...",
		Short: "Report finish-line crossings using a saved catalog",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			f, err := os.Open(catalogPath)
			if err != nil {
				return errors.Wrap(err, "open catalog")
			}
			catalog, err := recognition.LoadCatalog(f)
			f.Close()
			if err != nil {
				return err
			}

			return track(cmd, ctx, cfg, catalog, args)
		},
	}

	cmd.Flags().StringVar(&catalogPath, "catalog", "", "Catalog file written by calibrate")
	_ = cmd.MarkFlagRequired("catalog")
	addRunFlags(cmd)
	return cmd
}

func addRunFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.Int("parallel", 1, "Videos processed at once")
	flags.Bool("display", false, "Show annotated frames; press q to skip a video")
	flags.String("snapshots", "", "Directory for thumbnails of crossing frames")
}

// track runs every video against catalog and prints one table per video.
func track(cmd *cobra.Command, ctx *commandContext, cfg *config.Config, catalog recognition.Catalog, videos []string) error {
	logger := ctx.logger

	if missing := catalog.Uncalibrated(); len(missing) > 0 {
		logger.Warn().Strs("profiles", missing).Msg("catalog has uncalibrated profiles")
	}

	classifier, err := recognition.NewClassifier(catalog, cfg.ClassifierParams(), logger)
	if err != nil {
		return err
	}
	tracker, err := tracking.NewTracker(cfg.Tracking(), classifier, logger)
	if err != nil {
		return err
	}
	prof := profiler.New(0)
	tracker.WithProfiler(prof)

	c := controller.New(tracker, logger)
	c.Parallelism = cfg.Run.Parallelism
	c.Sinks = sinkFactory(cfg)

	results := c.Run(cmd.Context(), videos)
	prof.Log(logger)

	out := cmd.OutOrStdout()
	failed := 0
	for _, r := range results {
		fmt.Fprintln(out, report.Table(r.Video, r.Reports))
		if r.Err != nil {
			failed++
		}
	}
	if len(results) > 1 {
		fmt.Fprintln(out, report.Summary(results))
	}

	if err := cmd.Context().Err(); err != nil {
		return err
	}
	if failed > 0 {
		return errors.Errorf("%d of %d videos failed", failed, len(results))
	}
	return nil
}

func sinkFactory(cfg *config.Config) controller.SinkFactory {
	if !cfg.Run.Display && cfg.Run.SnapshotDir == "" {
		return nil
	}
	return func(n int, video string) (tracking.Sink, func() error, error) {
		var sinks render.Tee
		var window *render.Window

		if cfg.Run.Display {
			window = render.NewWindow(controller.WindowTitle(n), cfg.Run.FrameDelayMS)
			sinks = append(sinks, window)
		}
		if cfg.Run.SnapshotDir != "" {
			shots, err := render.NewSnapshots(cfg.Run.SnapshotDir, filepath.Base(video), cfg.Run.SnapshotSize, cfg.Run.SnapshotSize)
			if err != nil {
				if window != nil {
					_ = window.Close()
				}
				return nil, nil, err
			}
			sinks = append(sinks, shots)
		}

		closeFn := func() error {
			if window != nil {
				return window.Close()
			}
			return nil
		}
		return sinks, closeFn, nil
	}
}
