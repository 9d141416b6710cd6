package images

import (
	"image"
	"math"

	"gocv.io/x/gocv"
)

// ShapeConfig describes how boundary contours are pulled out of a box.
type ShapeConfig struct {
	// Threshold is the inverse binary threshold; darker pixels become foreground.
	Threshold float32
	// Morph is the morphological cleanup applied to the mask.
	Morph gocv.MorphType
	// KernelSize is the square morphology kernel edge.
	KernelSize int
}

// BoundaryContours crops rect out of a BGR frame, binarizes it with an
// inverse threshold, cleans the mask and lists every contour found.
//
// Arguments:
//   - frame: 3-channel BGR frame.
//   - rect: Box to analyse, clamped to the frame.
//   - config: Threshold and morphology settings.
//
// Returns:
//   - [][]image.Point: Contours in discovery order, in box coordinates.
func BoundaryContours(frame gocv.Mat, rect image.Rectangle, config ShapeConfig) [][]image.Point {
	clamped, ok := ClampRect(rect, frame.Cols(), frame.Rows())
	if !ok {
		return nil
	}

	roi := frame.Region(clamped)
	defer roi.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(roi, &gray, gocv.ColorBGRToGray)

	mask := gocv.NewMat()
	defer mask.Close()
	gocv.Threshold(gray, &mask, config.Threshold, 255, gocv.ThresholdBinaryInv)

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(config.KernelSize, config.KernelSize))
	defer kernel.Close()
	gocv.MorphologyEx(mask, &mask, config.Morph, kernel)

	contours := gocv.FindContours(mask, gocv.RetrievalList, gocv.ChainApproxSimple)
	defer contours.Close()

	return contours.ToPoints()
}

// ShapeDistance compares two contours with Hu-moment matching (OpenCV
// CONTOURS_MATCH_I2). Lower is more similar; an empty contour on either side
// is infinitely far.
func ShapeDistance(a, b []image.Point) float64 {
	if len(a) == 0 || len(b) == 0 {
		return math.Inf(1)
	}

	pa := gocv.NewPointVectorFromPoints(a)
	defer pa.Close()
	pb := gocv.NewPointVectorFromPoints(b)
	defer pb.Close()

	return gocv.MatchShapes(pa, pb, gocv.ContoursMatchI2, 0)
}
