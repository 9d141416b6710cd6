package tracking

import (
	"context"
	"image"
	"image/color"
	"math"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/nvr-ai/finishline/common"
	"github.com/nvr-ai/finishline/images"
	"github.com/nvr-ai/finishline/media"
	"github.com/nvr-ai/finishline/profiler"
	"github.com/nvr-ai/finishline/recognition"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func TestDetectFinishLine(t *testing.T) {
	frame := trackFrame()
	defer frame.Close()

	line, err := DetectFinishLine(frame, DefaultFinishLineConfig())
	require.NoError(t, err)
	assert.True(t, line.Valid())
	assert.InDelta(t, 320, line.XAt(240), 1.5)
	assert.InDelta(t, 0, line.VX, 0.01)

	again, err := DetectFinishLine(frame, DefaultFinishLineConfig())
	require.NoError(t, err)
	assert.InDelta(t, line.X, again.X, 1e-9)
	assert.InDelta(t, line.Y, again.Y, 1e-9)
	assert.InDelta(t, line.VX, again.VX, 1e-9)
	assert.InDelta(t, line.VY, again.VY, 1e-9)
}

func TestDetectFinishLineMissing(t *testing.T) {
	blank := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 480, 640, gocv.MatTypeCV8UC3)
	defer blank.Close()

	_, err := DetectFinishLine(blank, DefaultFinishLineConfig())
	assert.ErrorIs(t, err, ErrNoFinishLine)

	_, err = DetectFinishLine(gocv.NewMat(), DefaultFinishLineConfig())
	assert.ErrorIs(t, err, ErrNoFinishLine)

	// The banner's outline encloses roughly 11000 px.
	frame := trackFrame()
	defer frame.Close()
	config := DefaultFinishLineConfig()
	config.MinArea = 50000
	_, err = DetectFinishLine(frame, config)
	assert.ErrorIs(t, err, ErrNoFinishLine)
}

func TestCrossingDetector(t *testing.T) {
	vertical := common.Line{VX: 0, VY: 1, X: 320, Y: 0}
	d := DefaultCrossingDetector()

	tests := []struct {
		name   string
		region common.Region
		want   bool
	}{
		{"left edge before line, line outside tolerance", common.Region{X: 300, Y: 0, Width: 100, Height: 50}, false},
		{"line inside leading tenth", common.Region{X: 315, Y: 0, Width: 100, Height: 50}, true},
		{"left edge on line", common.Region{X: 320, Y: 0, Width: 100, Height: 50}, true},
		{"line on tolerance boundary", common.Region{X: 310, Y: 0, Width: 100, Height: 50}, true},
		{"left edge past line", common.Region{X: 321, Y: 0, Width: 100, Height: 50}, false},
		{"degenerate region", common.Region{X: 320, Y: 0, Width: 0, Height: 50}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, d.Fires(tt.region, vertical))
		})
	}

	// A diagonal line is evaluated at the region's center row.
	diagonal := common.Line{VX: 1, VY: 1, X: 0, Y: 0}
	assert.True(t, d.Fires(common.Region{X: 48, Y: 40, Width: 40, Height: 20}, diagonal))
	assert.False(t, d.Fires(common.Region{X: 48, Y: 0, Width: 40, Height: 20}, diagonal))

	regions := []common.Region{
		{X: 321, Y: 0, Width: 100, Height: 50},
		{X: 315, Y: 0, Width: 100, Height: 50},
		{X: 312, Y: 0, Width: 100, Height: 50},
	}
	assert.Equal(t, regions[1:], d.Crossings(regions, vertical))
}

func TestSession(t *testing.T) {
	s := NewSession()

	r, ok := s.Add("bmw", 4)
	require.True(t, ok)
	assert.Equal(t, CrossingReport{Identity: "bmw", Order: 1, Frame: 4}, r)

	_, ok = s.Add("bmw", 5)
	assert.False(t, ok)
	_, ok = s.Add(recognition.Unknown, 6)
	assert.False(t, ok)
	_, ok = s.Add("", 6)
	assert.False(t, ok)

	r, ok = s.Add("ferrari", 9)
	require.True(t, ok)
	assert.Equal(t, 2, r.Order)

	assert.Equal(t, 2, s.Len())
	assert.True(t, s.Contains("bmw"))
	assert.False(t, s.Contains(recognition.Unknown))

	reports := s.Reports()
	reports[0].Identity = "mutated"
	assert.Equal(t, "bmw", s.Reports()[0].Identity)

	s.Reset()
	assert.Empty(t, s.Reports())
	r, ok = s.Add("bmw", 1)
	require.True(t, ok)
	assert.Equal(t, 1, r.Order)
}

func TestRunSingleCrossing(t *testing.T) {
	region, _ := carRegion(t)
	require.True(t, DefaultCrossingDetector().Fires(region, common.Line{VX: 0, VY: 1, X: 320, Y: 0}),
		"car region %s must straddle x=320", region)

	tracker := newTracker(t, classifierFor(t, 0))
	sink := &recordingSink{}

	src := source("scenario-a", trackFrame(), trackFrameWithCar())
	defer src.Close()

	reports, err := tracker.Run(context.Background(), src, sink)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, CrossingReport{Identity: "bmw", Order: 1, Frame: 1}, reports[0])

	require.Len(t, sink.results, 1)
	assert.True(t, sink.results[0].Crossing)
	assert.Len(t, sink.results[0].Regions, 1)
	assert.Equal(t, reports, sink.results[0].Added)
	assert.Equal(t, reports, sink.results[0].Reports)
}

func TestRunDeduplicatesIdentity(t *testing.T) {
	tracker := newTracker(t, classifierFor(t, 0))

	src := source("repeat", trackFrame(), trackFrameWithCar(), trackFrame(), trackFrameWithCar())
	defer src.Close()

	reports, err := tracker.Run(context.Background(), src, nil)
	require.NoError(t, err)
	assert.Equal(t, []CrossingReport{{Identity: "bmw", Order: 1, Frame: 1}}, reports)
}

func TestRunSeveralCrossingsInOneFrame(t *testing.T) {
	green := color.RGBA{G: 255, A: 255}
	top := image.Rect(317, 40, 416, 119)
	middle := image.Rect(317, 190, 416, 269)
	bottom := image.Rect(317, 340, 416, 419)

	greenRegion, greenSig := measureCar(t, top, green)
	_, blueSig := measureCar(t, middle, carColor)
	ar := greenRegion.AspectRatio()

	catalog := recognition.Catalog{
		{Name: "bolid", Kind: recognition.KindTemplate, AspectRatio: ar},
		{Name: "ferrari", Kind: recognition.KindColor, ColorSignature: &images.ColorSignature{G: greenSig.G}, AspectRatio: ar},
		{Name: "bmw", Kind: recognition.KindColor, ColorSignature: &images.ColorSignature{B: blueSig.B}, AspectRatio: ar},
	}
	classifier, err := recognition.NewClassifier(catalog, recognition.DefaultClassifierConfig(), zeroLogger())
	require.NoError(t, err)
	tracker := newTracker(t, classifier)

	race := trackFrame()
	gocv.Rectangle(&race, top, green, -1)
	gocv.Rectangle(&race, middle, carColor, -1)
	gocv.Rectangle(&race, bottom, carColor, -1)

	sink := &recordingSink{}
	src := source("photo-finish", trackFrame(), race)
	defer src.Close()

	reports, err := tracker.Run(context.Background(), src, sink)
	require.NoError(t, err)

	require.Len(t, sink.results, 1)
	regions := sink.results[0].Regions
	require.Len(t, regions, 3)

	// Labels are recorded in the order the regions were found; the second
	// bmw is a duplicate.
	var want []CrossingReport
	seen := map[string]bool{}
	for _, r := range regions {
		identity := "bmw"
		if r.Y < middle.Min.Y-20 {
			identity = "ferrari"
		}
		if seen[identity] {
			continue
		}
		seen[identity] = true
		want = append(want, CrossingReport{Identity: identity, Order: len(want) + 1, Frame: 1})
	}

	require.Len(t, want, 2)
	assert.Equal(t, want, reports)
	assert.Equal(t, want, sink.results[0].Added)
}

func TestRunConcurrentWithSharedProfiler(t *testing.T) {
	prof := profiler.New(0)
	tracker := newTracker(t, classifierFor(t, 0)).WithProfiler(prof)

	const runs = 4
	results := make([][]CrossingReport, runs)
	errs := make([]error, runs)

	var wg sync.WaitGroup
	for i := 0; i < runs; i++ {
		src := source("scenario-a", trackFrame(), trackFrameWithCar())
		defer src.Close()

		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = tracker.Run(context.Background(), src, nil)
		}()
	}
	wg.Wait()

	for i := 0; i < runs; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, []CrossingReport{{Identity: "bmw", Order: 1, Frame: 1}}, results[i])
	}
	assert.Equal(t, int64(runs), prof.Counter("frames"))
	assert.Equal(t, int64(runs), prof.Counter("crossings"))

	stages := map[string]int64{}
	for _, s := range prof.Summary() {
		stages[s.Name] = s.Count
	}
	assert.Equal(t, int64(runs), stages[profiler.StageClassify])
}

func TestRunUnknownIsNotReported(t *testing.T) {
	tracker := newTracker(t, classifierFor(t, 100))
	sink := &recordingSink{}

	src := source("scenario-c", trackFrame(), trackFrameWithCar())
	defer src.Close()

	reports, err := tracker.Run(context.Background(), src, sink)
	require.NoError(t, err)
	assert.Empty(t, reports)
	require.Len(t, sink.results, 1)
	assert.True(t, sink.results[0].Crossing)
	assert.Empty(t, sink.results[0].Added)
}

func TestRunIsRepeatable(t *testing.T) {
	tracker := newTracker(t, classifierFor(t, 0))

	run := func() []CrossingReport {
		src := source("round-trip", trackFrame(), trackFrameWithCar(), trackFrame(), trackFrameWithCar())
		defer src.Close()
		reports, err := tracker.Run(context.Background(), src, nil)
		require.NoError(t, err)
		return reports
	}

	first, second := run(), run()
	require.NotEmpty(t, first)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("reports differ between runs (-first +second):\n%s", diff)
	}
}

func TestRunStaticVideo(t *testing.T) {
	tracker := newTracker(t, classifierFor(t, 0))
	sink := &recordingSink{}

	src := source("static", trackFrame(), trackFrame(), trackFrame())
	defer src.Close()

	reports, err := tracker.Run(context.Background(), src, sink)
	require.NoError(t, err)
	assert.Empty(t, reports)
	require.Len(t, sink.results, 2)
	for _, r := range sink.results {
		assert.Empty(t, r.Regions)
		assert.False(t, r.Crossing)
	}
}

func TestRunWithoutFinishLine(t *testing.T) {
	tracker := newTracker(t, classifierFor(t, 0))

	blank := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 480, 640, gocv.MatTypeCV8UC3)
	src := source("no-line", blank, trackFrameWithCar())
	defer src.Close()

	_, err := tracker.Run(context.Background(), src, nil)
	assert.ErrorIs(t, err, ErrNoFinishLine)
}

func TestRunEmptyVideo(t *testing.T) {
	tracker := newTracker(t, classifierFor(t, 0))
	src := media.NewFrames("empty")
	defer src.Close()

	reports, err := tracker.Run(context.Background(), src, nil)
	require.NoError(t, err)
	assert.Empty(t, reports)
}

// failingSource serves frames then fails to decode.
type failingSource struct {
	*media.Frames
	left int
}

func (s *failingSource) Read(dst *gocv.Mat) error {
	if s.left == 0 {
		return errors.Wrap(media.ErrDecodeFailure, "corrupt packet")
	}
	s.left--
	return s.Frames.Read(dst)
}

func TestRunDecodeFailureKeepsReports(t *testing.T) {
	tracker := newTracker(t, classifierFor(t, 0))

	src := &failingSource{Frames: source("broken", trackFrame(), trackFrameWithCar(), trackFrame()), left: 2}
	defer src.Close()

	reports, err := tracker.Run(context.Background(), src, nil)
	assert.ErrorIs(t, err, media.ErrDecodeFailure)
	assert.Len(t, reports, 1)
}

func TestRunStoppedBySink(t *testing.T) {
	tracker := newTracker(t, classifierFor(t, 0))
	sink := &recordingSink{stopAt: 1}

	src := source("quit", trackFrame(), trackFrameWithCar(), trackFrame(), trackFrameWithCar())
	defer src.Close()

	reports, err := tracker.Run(context.Background(), src, sink)
	require.NoError(t, err)
	assert.Len(t, reports, 1)
	assert.Len(t, sink.results, 1)
}

func TestRunCancelled(t *testing.T) {
	tracker := newTracker(t, classifierFor(t, 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := source("cancelled", trackFrame(), trackFrameWithCar())
	defer src.Close()

	_, err := tracker.Run(ctx, src, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewTrackerValidation(t *testing.T) {
	_, err := NewTracker(DefaultConfig(), nil, zeroLogger())
	assert.Error(t, err)

	config := DefaultConfig()
	config.Crossing.Tolerance = -1
	_, err = NewTracker(config, classifierFor(t, 0), zeroLogger())
	assert.Error(t, err)

	config = DefaultConfig()
	config.FinishLine.CannyHigh = 1
	_, err = NewTracker(config, classifierFor(t, 0), zeroLogger())
	assert.Error(t, err)
}

func TestEndpointsSpanFrame(t *testing.T) {
	frame := trackFrame()
	defer frame.Close()
	line, err := DetectFinishLine(frame, DefaultFinishLineConfig())
	require.NoError(t, err)

	a, b := line.Endpoints(640, 480)
	assert.Less(t, math.Min(float64(a.Y), float64(b.Y)), 0.0)
	assert.Greater(t, math.Max(float64(a.Y), float64(b.Y)), 480.0)
	assert.InDelta(t, 320, a.X, 10)
	assert.InDelta(t, 320, b.X, 10)
}

func TestRunID(t *testing.T) {
	ctx := WithRunID(context.Background(), "fixed")
	assert.Equal(t, "fixed", RunID(ctx))
	id, ok := LookupRunID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "fixed", id)

	_, ok = LookupRunID(WithRunID(context.Background(), ""))
	assert.False(t, ok)

	a, b := RunID(context.Background()), RunID(context.Background())
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
}
