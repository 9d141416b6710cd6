// Package tracking - Finish-line detection, crossing detection and the
// per-video tracking loop.
//
// Each video gets its own Finish-Line Model, derived from its first frame,
// and its own Session. Frames are processed strictly in order: segmentation,
// crossing tests and classification of frame N finish before frame N+1 is
// read.
package tracking

import (
	"image"

	"github.com/nvr-ai/finishline/common"
	"github.com/nvr-ai/finishline/images"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// ErrNoFinishLine is returned when the first frame holds no contour large
// enough to be the finish line. It is fatal for the video.
var ErrNoFinishLine = errors.New("no finish line detected")

// FinishLineConfig contains the edge and area parameters of finish-line
// detection.
type FinishLineConfig struct {
	CannyLow         float32
	CannyHigh        float32
	DilateKernelSize int
	// MinArea is the exclusive lower bound on the enclosed contour area.
	MinArea float64
}

// DefaultFinishLineConfig returns the parameters calibrated for the race
// footage: Canny 160/200, 5x5 dilation, area above 9000.
func DefaultFinishLineConfig() FinishLineConfig {
	return FinishLineConfig{
		CannyLow:         160,
		CannyHigh:        200,
		DilateKernelSize: 5,
		MinArea:          9000,
	}
}

// Validate checks the thresholds and kernel.
func (c FinishLineConfig) Validate() error {
	if c.CannyLow <= 0 || c.CannyHigh < c.CannyLow {
		return errors.Errorf("canny thresholds %v/%v are invalid", c.CannyLow, c.CannyHigh)
	}
	if c.DilateKernelSize <= 0 {
		return errors.Errorf("dilate kernel size must be positive, got %d", c.DilateKernelSize)
	}
	if c.MinArea < 0 {
		return errors.Errorf("minimum area must be non-negative, got %v", c.MinArea)
	}
	return nil
}

// DetectFinishLine derives the finish line from a frame, independent of
// motion.
//
// Edges are found with Canny and thickened by dilation; of all contours
// (outer and inner) the one with the largest enclosed area above MinArea is
// kept and a line is fitted through its points by orthogonal least squares.
//
// Arguments:
//   - frame: The first BGR frame of a video.
//   - config: Detection parameters.
//
// Returns:
//   - common.Line: The fitted line.
//   - error: ErrNoFinishLine if nothing qualifies.
func DetectFinishLine(frame gocv.Mat, config FinishLineConfig) (common.Line, error) {
	if frame.Empty() {
		return common.Line{}, errors.Wrap(ErrNoFinishLine, "empty frame")
	}

	gray := gocv.NewMat()
	defer gray.Close()
	if frame.Channels() == 3 {
		gocv.CvtColor(frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(gray, &edges, config.CannyLow, config.CannyHigh)

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(config.DilateKernelSize, config.DilateKernelSize))
	defer kernel.Close()
	if err := gocv.Dilate(edges, &edges, kernel); err != nil {
		return common.Line{}, errors.Wrap(err, "dilate edges")
	}

	regions := images.FindRegions(edges, gocv.RetrievalList, gocv.ChainApproxSimple, images.AreaBand{Min: config.MinArea})
	best, ok := images.LargestRegion(regions)
	if !ok {
		return common.Line{}, errors.Wrapf(ErrNoFinishLine, "no contour with area above %v", config.MinArea)
	}

	line, err := common.FitLine(best.Contour)
	if err != nil {
		return common.Line{}, errors.Wrapf(ErrNoFinishLine, "fit line through %s: %v", best, err)
	}
	return line, nil
}
