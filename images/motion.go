// Package images - This file contains the frame-differencing region extractor
// using OpenCV (via gocv).
//
// The MotionSegmenter turns a pair of consecutive frames into candidate object
// regions:
//
// ┌──────────────────────────────┐
// │ Current + Previous Frame     │
// └──────┬───────────────────────┘
// ┌──────────────────────────────┐
// │ Absolute difference          │
// └──────┬───────────────────────┘
// ┌──────────────────────────────┐
// │ Gaussian blur (denoise)      │
// └──────┬───────────────────────┘
// ┌──────────────────────────────┐
// │ Grayscale + binary threshold │
// └──────┬───────────────────────┘
// ┌──────────────────────────────┐
// │ Morphology (dilate)          │
// └──────┬───────────────────────┘
// ┌──────────────────────────────┐
// │ External contours + area band│
// └──────┬───────────────────────┘
// ┌──────────────────────────────┐
// │ []common.Region              │
// └──────────────────────────────┘
//
// Usage:
//
//	seg := images.NewMotionSegmenter(images.DefaultMotionConfig())
//	defer seg.Close()
//
//	regions, err := seg.Segment(frame, previous)
//
// Note: You must call Close() when finished to release native resources.
package images

import (
	"image"

	"github.com/nvr-ai/finishline/common"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// MotionConfig contains the calibration parameters of the region extractor.
type MotionConfig struct {
	// DifferenceThreshold is the grayscale intensity above which a
	// differenced pixel counts as moving.
	DifferenceThreshold float32
	// BlurKernelSize is the Gaussian kernel edge, must be odd.
	BlurKernelSize int
	// DilateKernelSize is the square dilation kernel edge.
	DilateKernelSize int
	// Area is the open band of contour areas kept as regions.
	Area AreaBand
}

// DefaultMotionConfig returns the extractor parameters calibrated for the
// tracking camera.
func DefaultMotionConfig() MotionConfig {
	return MotionConfig{
		DifferenceThreshold: 12,
		BlurKernelSize:      7,
		DilateKernelSize:    5,
		Area:                AreaBand{Min: 4000, Max: 15000},
	}
}

// Validate checks that the kernel sizes are usable by OpenCV.
func (c MotionConfig) Validate() error {
	if c.BlurKernelSize <= 0 || c.BlurKernelSize%2 == 0 {
		return errors.Errorf("blur kernel size must be odd and positive, got %d", c.BlurKernelSize)
	}
	if c.DilateKernelSize <= 0 {
		return errors.Errorf("dilate kernel size must be positive, got %d", c.DilateKernelSize)
	}
	return c.Area.Validate()
}

// MotionSegmenter holds the scratch matrices of the differencing pipeline so
// they are reused across frames. It keeps no model of the scene: the output
// depends only on the two frames passed to Segment.
type MotionSegmenter struct {
	config    MotionConfig
	Delta     gocv.Mat // Per-pixel absolute difference
	Blurred   gocv.Mat // Denoised difference
	Gray      gocv.Mat // Single-channel intensity
	Threshold gocv.Mat // Binary (and dilated) motion mask
	Kernel    gocv.Mat // Dilation kernel
}

// NewMotionSegmenter constructs a segmenter with initialized OpenCV matrices.
//
// Arguments:
//   - config: Extractor parameters.
//
// Returns:
//   - *MotionSegmenter: The segmenter. Always call Close() to release memory.
func NewMotionSegmenter(config MotionConfig) *MotionSegmenter {
	return &MotionSegmenter{
		config:    config,
		Delta:     gocv.NewMat(),
		Blurred:   gocv.NewMat(),
		Gray:      gocv.NewMat(),
		Threshold: gocv.NewMat(),
		Kernel: gocv.GetStructuringElement(gocv.MorphRect,
			image.Pt(config.DilateKernelSize, config.DilateKernelSize)),
	}
}

// Config returns the parameters the segmenter was built with.
func (m *MotionSegmenter) Config() MotionConfig {
	return m.config
}

// Segment runs the full differencing pipeline and returns one region per
// external contour whose area falls inside the configured band, in contour
// discovery order.
//
// Identical frames produce no foreground and therefore an empty, non-nil
// result.
//
// Arguments:
//   - current: The newer BGR frame.
//   - previous: The older BGR frame, same size and type as current.
//
// Returns:
//   - []common.Region: Candidate regions.
//   - error: An error if the frames are empty or mismatched.
func (m *MotionSegmenter) Segment(current, previous gocv.Mat) ([]common.Region, error) {
	if current.Empty() || previous.Empty() {
		return nil, errors.New("motion segmentation needs two non-empty frames")
	}
	if current.Rows() != previous.Rows() || current.Cols() != previous.Cols() ||
		current.Type() != previous.Type() {
		return nil, errors.Errorf("frame mismatch: %dx%d vs %dx%d",
			current.Cols(), current.Rows(), previous.Cols(), previous.Rows())
	}
	if current.Channels() != 3 {
		return nil, errors.Errorf("expected 3-channel frames, got %d", current.Channels())
	}

	gocv.AbsDiff(current, previous, &m.Delta)

	k := m.config.BlurKernelSize
	gocv.GaussianBlur(m.Delta, &m.Blurred, image.Pt(k, k), 0, 0, gocv.BorderDefault)
	gocv.CvtColor(m.Blurred, &m.Gray, gocv.ColorBGRToGray)
	gocv.Threshold(m.Gray, &m.Threshold, m.config.DifferenceThreshold, 255, gocv.ThresholdBinary)

	if err := gocv.Dilate(m.Threshold, &m.Threshold, m.Kernel); err != nil {
		return nil, errors.Wrap(err, "dilate motion mask")
	}

	return FindRegions(m.Threshold, gocv.RetrievalExternal, gocv.ChainApproxNone, m.config.Area), nil
}

// Close releases all OpenCV native resources used by the segmenter.
func (m *MotionSegmenter) Close() {
	m.Delta.Close()
	m.Blurred.Close()
	m.Gray.Close()
	m.Threshold.Close()
	m.Kernel.Close()
}
