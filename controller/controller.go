// Package controller - Runs the tracking pipeline over many videos, each
// inside its own error boundary.
package controller

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/google/uuid"
	"github.com/nvr-ai/finishline/media"
	"github.com/nvr-ai/finishline/tracking"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Runner processes one stream. *tracking.Tracker implements it.
type Runner interface {
	Run(ctx context.Context, source media.Source, sink tracking.Sink) ([]tracking.CrossingReport, error)
}

// Opener opens a video for reading.
type Opener func(path string) (media.Source, error)

// SinkFactory builds the frame sink for the n-th video (1-based). The
// returned close function runs when the video is done; both may be nil.
type SinkFactory func(n int, video string) (tracking.Sink, func() error, error)

// VideoResult is the outcome of one video.
type VideoResult struct {
	Video   string
	RunID   string
	Reports []tracking.CrossingReport
	// Err is the fatal condition that ended the video early, if any.
	Err error
}

// Controller fans a list of videos out to a Runner.
//
// Each video gets a fresh session and finish line; nothing is shared between
// runs except the read-only classifier inside the Runner. A failure in one
// video is recorded in its VideoResult and never stops the others.
type Controller struct {
	Runner Runner
	Open   Opener
	Sinks  SinkFactory
	// Parallelism bounds how many videos run at once; values below 2 run
	// them in sequence. Interactive windows need sequential runs.
	Parallelism int
	Logger      zerolog.Logger
}

// New returns a sequential controller that opens paths with media.Open and
// renders nothing.
func New(runner Runner, logger zerolog.Logger) *Controller {
	return &Controller{Runner: runner, Open: media.Open, Parallelism: 1, Logger: logger}
}

// Run processes every video and returns one result per video, in input
// order.
//
// Arguments:
//   - ctx: Cancelling ctx stops the videos in flight and skips the rest.
//   - videos: Paths of video files or image-sequence directories.
//
// Returns:
//   - []VideoResult: Per-video outcome.
//
// @example
//
//	c := controller.New(tracker, log.Logger)
//	for _, r := range c.Run(ctx, []string{"race1.mp4", "race2.mp4"}) {
//		fmt.Println(report.Table(r.Video, r.Reports))
//	}
func (c *Controller) Run(ctx context.Context, videos []string) []VideoResult {
	results := make([]VideoResult, len(videos))

	var g errgroup.Group
	limit := c.Parallelism
	if limit < 1 {
		limit = 1
	}
	g.SetLimit(limit)

	for i, video := range videos {
		g.Go(func() error {
			results[i] = c.runVideo(ctx, i+1, video)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// runVideo is the per-video error boundary.
func (c *Controller) runVideo(ctx context.Context, n int, video string) (result VideoResult) {
	result = VideoResult{Video: video, RunID: videoRunID(ctx, n)}
	logger := c.Logger.With().Str("video", video).Str("run_id", result.RunID).Logger()

	defer func() {
		if r := recover(); r != nil {
			result.Err = errors.Errorf("panic: %v", r)
			logger.Error().Str("stack", string(debug.Stack())).Err(result.Err).Msg("video aborted")
		}
	}()

	if err := ctx.Err(); err != nil {
		result.Err = err
		return result
	}

	open := c.Open
	if open == nil {
		open = media.Open
	}
	source, err := open(video)
	if err != nil {
		result.Err = err
		logger.Error().Err(err).Msg("cannot open video")
		return result
	}
	defer source.Close()

	var sink tracking.Sink
	if c.Sinks != nil {
		s, closeSink, err := c.Sinks(n, video)
		if err != nil {
			result.Err = errors.Wrap(err, "create sink")
			logger.Error().Err(result.Err).Msg("cannot render video")
			return result
		}
		if closeSink != nil {
			defer func() {
				if err := closeSink(); err != nil {
					logger.Warn().Err(err).Msg("close sink")
				}
			}()
		}
		sink = s
	}

	reports, err := c.Runner.Run(tracking.WithRunID(ctx, result.RunID), source, sink)
	result.Reports = reports
	if err != nil {
		result.Err = err
		logger.Error().Err(err).Int("crossings", len(reports)).Msg("video failed")
		return result
	}

	logger.Info().Int("crossings", len(reports)).Msg("video complete")
	return result
}

// videoRunID names one video's run. A run id already on ctx identifies the
// batch and is suffixed with the video's position.
func videoRunID(ctx context.Context, n int) string {
	if batch, ok := tracking.LookupRunID(ctx); ok {
		return fmt.Sprintf("%s-%d", batch, n)
	}
	return uuid.NewString()
}

// WindowTitle is the window name of the n-th video.
func WindowTitle(n int) string {
	return fmt.Sprintf("Car tracking %d", n)
}
