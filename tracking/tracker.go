package tracking

import (
	"context"
	"io"

	"github.com/google/uuid"
	"github.com/nvr-ai/finishline/common"
	"github.com/nvr-ai/finishline/images"
	"github.com/nvr-ai/finishline/media"
	"github.com/nvr-ai/finishline/profiler"
	"github.com/nvr-ai/finishline/recognition"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gocv.io/x/gocv"
)

// ErrStop is returned by a Sink to end the video early. The run terminates
// cleanly with the reports collected so far.
var ErrStop = errors.New("stop requested")

// FrameResult is what a Sink receives after a frame has been processed.
type FrameResult struct {
	// Index is the position of Frame in the stream, the first frame being 0.
	Index int
	// Frame is the processed frame. It is only valid during Show.
	Frame gocv.Mat
	// Regions are the candidate regions, in discovery order.
	Regions []common.Region
	// Line is the finish line of the video.
	Line common.Line
	// Crossing is set when at least one region fired on this frame.
	Crossing bool
	// Added holds the reports first recorded on this frame.
	Added []CrossingReport
	// Reports is the running crossing log.
	Reports []CrossingReport
}

// Sink consumes processed frames, synchronously and in order.
type Sink interface {
	// Show handles one frame. Returning ErrStop ends the run cleanly; any
	// other error is logged and the run continues.
	Show(result FrameResult) error
}

type runIDKey struct{}

// WithRunID attaches a run identifier to ctx; Run logs it as run_id.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

// LookupRunID returns the identifier attached by WithRunID, if any.
func LookupRunID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(runIDKey{}).(string)
	return id, ok && id != ""
}

// RunID returns the identifier attached by WithRunID, or a new random one.
func RunID(ctx context.Context) string {
	if id, ok := LookupRunID(ctx); ok {
		return id
	}
	return uuid.NewString()
}

// Config groups the per-frame parameters of a tracking run.
type Config struct {
	FinishLine FinishLineConfig
	Motion     images.MotionConfig
	Crossing   CrossingDetector
}

// DefaultConfig returns the calibrated defaults of every stage.
func DefaultConfig() Config {
	return Config{
		FinishLine: DefaultFinishLineConfig(),
		Motion:     images.DefaultMotionConfig(),
		Crossing:   DefaultCrossingDetector(),
	}
}

// Validate checks every stage.
func (c Config) Validate() error {
	if err := c.FinishLine.Validate(); err != nil {
		return errors.Wrap(err, "finish line")
	}
	if err := c.Motion.Validate(); err != nil {
		return errors.Wrap(err, "motion")
	}
	if err := c.Crossing.Validate(); err != nil {
		return errors.Wrap(err, "crossing")
	}
	return nil
}

// Tracker runs the crossing pipeline over one video at a time. A Tracker
// holds no per-video state, so once configured one value may serve many runs,
// including concurrent ones.
type Tracker struct {
	config     Config
	classifier *recognition.Classifier
	logger     zerolog.Logger
	profiler   *profiler.Profiler
}

// NewTracker builds a tracker.
//
// Arguments:
//   - config: Stage parameters.
//   - classifier: The calibrated classifier. It is read-only during runs.
//   - logger: Base logger; each run adds video and run_id fields.
//
// Returns:
//   - *Tracker: The tracker.
//   - error: An error if config is invalid or classifier is nil.
func NewTracker(config Config, classifier *recognition.Classifier, logger zerolog.Logger) (*Tracker, error) {
	if classifier == nil {
		return nil, errors.New("tracker needs a classifier")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Tracker{config: config, classifier: classifier, logger: logger}, nil
}

// WithProfiler records stage timings into p. It configures the tracker and
// must be called before the first Run, never while runs are in flight; the
// profiler itself is safe to share between concurrent runs.
func (t *Tracker) WithProfiler(p *profiler.Profiler) *Tracker {
	t.profiler = p
	return t
}

func (t *Tracker) start(stage string) func() {
	if t.profiler == nil {
		return func() {}
	}
	return t.profiler.StartOperation(stage)
}

func (t *Tracker) count(name string, delta int64) {
	if t.profiler != nil {
		t.profiler.Count(name, delta)
	}
}

// Run processes source until end of stream, cancellation, or a sink stop.
//
// The first frame defines the finish line. Every later frame is differenced
// against its predecessor; each region that fires is classified on the
// current frame and its identity recorded once. A fresh Session backs every
// call, so repeated runs over the same media return identical reports.
//
// Arguments:
//   - ctx: Cancels the run between frames.
//   - source: The frame stream. Run does not close it.
//   - sink: Optional frame consumer, may be nil.
//
// Returns:
//   - []CrossingReport: Reports in crossing order, also when an error ends
//     the run.
//   - error: ErrNoFinishLine, media.ErrDecodeFailure or ctx.Err().
func (t *Tracker) Run(ctx context.Context, source media.Source, sink Sink) ([]CrossingReport, error) {
	logger := t.logger.With().
		Str("video", source.Name()).
		Str("run_id", RunID(ctx)).
		Logger()

	session := NewSession()

	previous := gocv.NewMat()
	defer previous.Close()
	current := gocv.NewMat()
	defer current.Close()

	if err := source.Read(&previous); err != nil {
		if errors.Is(err, io.EOF) {
			logger.Warn().Msg("video has no frames")
			return session.Reports(), nil
		}
		return nil, errors.Wrap(err, "read first frame")
	}

	line, err := DetectFinishLine(previous, t.config.FinishLine)
	if err != nil {
		logger.Error().Err(err).Int("frame", 0).Msg("finish line detection failed")
		return nil, err
	}
	logger.Info().Str("line", line.String()).Msg("finish line detected")

	segmenter := images.NewMotionSegmenter(t.config.Motion)
	defer segmenter.Close()

	for index := 1; ; index++ {
		if err := ctx.Err(); err != nil {
			return session.Reports(), err
		}

		done := t.start(profiler.StageDecode)
		err := source.Read(&current)
		done()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			logger.Error().Err(err).Int("frame", index).Msg("frame read failed")
			return session.Reports(), err
		}
		t.count("frames", 1)

		done = t.start(profiler.StageSegment)
		regions, err := segmenter.Segment(current, previous)
		done()
		if err != nil {
			err = errors.Wrapf(media.ErrDecodeFailure, "frame %d: %v", index, err)
			logger.Error().Err(err).Int("frame", index).Msg("segmentation failed")
			return session.Reports(), err
		}

		result := FrameResult{Index: index, Frame: current, Regions: regions, Line: line}

		for _, region := range t.config.Crossing.Crossings(regions, line) {
			result.Crossing = true
			t.count("crossings", 1)

			done = t.start(profiler.StageClassify)
			identity := t.classifier.Classify(current, region)
			done()

			report, added := session.Add(identity, index)
			logger.Debug().
				Int("frame", index).
				Str("region", region.String()).
				Str("identity", identity).
				Bool("added", added).
				Msg("crossing")
			if added {
				result.Added = append(result.Added, report)
				logger.Info().
					Int("frame", index).
					Str("identity", report.Identity).
					Int("order", report.Order).
					Msg("crossed finish line")
			}
		}
		result.Reports = session.Reports()

		if sink != nil {
			done = t.start(profiler.StageRender)
			err := sink.Show(result)
			done()
			if errors.Is(err, ErrStop) {
				logger.Info().Int("frame", index).Msg("stopped by sink")
				break
			}
			if err != nil {
				logger.Warn().Err(err).Int("frame", index).Msg("sink failed")
			}
		}

		current.CopyTo(&previous)
	}

	return session.Reports(), nil
}
