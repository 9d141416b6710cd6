package tracking

import (
	"image"
	"image/color"
	"testing"

	"github.com/nvr-ai/finishline/common"
	"github.com/nvr-ai/finishline/images"
	"github.com/nvr-ai/finishline/media"
	"github.com/nvr-ai/finishline/recognition"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

var (
	white    = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	carColor = color.RGBA{G: 128, B: 255, A: 255}
	// carBox is 100x80 pixels: Rectangle fills its Max edge.
	carBox = image.Rect(317, 100, 416, 179)
)

// trackFrame is a 640x480 black frame with a white vertical banner centred
// on x=320.
func trackFrame() gocv.Mat {
	frame := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 480, 640, gocv.MatTypeCV8UC3)
	gocv.Rectangle(&frame, image.Rect(310, 20, 330, 460), white, -1)
	return frame
}

func trackFrameWithCar() gocv.Mat {
	frame := trackFrame()
	gocv.Rectangle(&frame, carBox, carColor, -1)
	return frame
}

// carRegion segments the car exactly as the tracker will see it.
func carRegion(t testing.TB) (common.Region, images.ColorSignature) {
	t.Helper()
	return measureCar(t, carBox, carColor)
}

// measureCar segments one car painted at box and returns its region and the
// mean color the classifier will read.
func measureCar(t testing.TB, box image.Rectangle, c color.RGBA) (common.Region, images.ColorSignature) {
	t.Helper()
	before := trackFrame()
	defer before.Close()
	after := trackFrame()
	defer after.Close()
	gocv.Rectangle(&after, box, c, -1)

	seg := images.NewMotionSegmenter(images.DefaultMotionConfig())
	defer seg.Close()
	regions, err := seg.Segment(after, before)
	require.NoError(t, err)
	require.Len(t, regions, 1)

	sig, ok := images.MeanColor(after, regions[0].Rect())
	require.True(t, ok)
	return regions[0], sig
}

// classifierFor returns a classifier whose bmw band sits blueOffset away
// from the car's measured blue mean; the ferrari band never matches.
func classifierFor(t testing.TB, blueOffset float64) *recognition.Classifier {
	t.Helper()
	region, sig := carRegion(t)
	ar := region.AspectRatio()

	catalog := recognition.Catalog{
		{Name: "bolid", Kind: recognition.KindTemplate, ShapeTemplate: []image.Point{{0, 0}, {40, 80}, {80, 0}}, AspectRatio: ar},
		{Name: "ferrari", Kind: recognition.KindColor, ColorSignature: &images.ColorSignature{G: sig.G + 100}, AspectRatio: ar},
		{Name: "bmw", Kind: recognition.KindColor, ColorSignature: &images.ColorSignature{B: sig.B + blueOffset}, AspectRatio: ar},
	}
	c, err := recognition.NewClassifier(catalog, recognition.DefaultClassifierConfig(), zerolog.Nop())
	require.NoError(t, err)
	return c
}

func newTracker(t testing.TB, classifier *recognition.Classifier) *Tracker {
	t.Helper()
	tr, err := NewTracker(DefaultConfig(), classifier, zerolog.Nop())
	require.NoError(t, err)
	return tr
}

// source builds an in-memory stream and releases the inputs.
func source(name string, frames ...gocv.Mat) *media.Frames {
	src := media.NewFrames(name, frames...)
	for _, f := range frames {
		f.Close()
	}
	return src
}

type recordingSink struct {
	results []FrameResult
	stopAt  int
}

func (s *recordingSink) Show(r FrameResult) error {
	r.Frame = gocv.Mat{}
	s.results = append(s.results, r)
	if s.stopAt > 0 && r.Index >= s.stopAt {
		return ErrStop
	}
	return nil
}

func zeroLogger() zerolog.Logger { return zerolog.Nop() }
