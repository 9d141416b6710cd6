// Package common - Geometry shared by the extraction, tracking and recognition stages.
package common

import (
	"fmt"
	"image"
)

// Region is a candidate moving object in one frame: an axis-aligned bounding
// box plus the contour it was derived from, in frame coordinates.
type Region struct {
	X, Y          int
	Width, Height int
	// Contour is the ordered boundary the box encloses.
	Contour []image.Point
	// Area is the area enclosed by Contour, when the producer measured it.
	Area float64
}

// NewRegion builds a Region around a contour using the same inclusive
// extent rule as OpenCV's boundingRect.
//
// Arguments:
//   - contour: The ordered boundary points.
//
// Returns:
//   - Region: The region, or the zero Region when the contour is empty.
//   - bool: false when the contour is empty.
//
// @example
// r, ok := NewRegion([]image.Point{{10, 10}, {19, 10}, {19, 29}, {10, 29}})
// // r.X=10 r.Y=10 r.Width=10 r.Height=20
func NewRegion(contour []image.Point) (Region, bool) {
	if len(contour) == 0 {
		return Region{}, false
	}

	minX, minY := contour[0].X, contour[0].Y
	maxX, maxY := minX, minY
	for _, p := range contour[1:] {
		minX = min(minX, p.X)
		minY = min(minY, p.Y)
		maxX = max(maxX, p.X)
		maxY = max(maxY, p.Y)
	}

	return Region{
		X:       minX,
		Y:       minY,
		Width:   maxX - minX + 1,
		Height:  maxY - minY + 1,
		Contour: contour,
	}, true
}

// Rect converts the region to an image.Rectangle (max exclusive).
func (r Region) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// Valid reports whether the region has a positive extent.
func (r Region) Valid() bool {
	return r.Width > 0 && r.Height > 0
}

// CenterRow is the image row through the middle of the box.
func (r Region) CenterRow() float64 {
	return float64(r.Y) + float64(r.Height)/2
}

// AspectRatio returns width over height, or 0 for an empty region.
func (r Region) AspectRatio() float64 {
	if r.Height == 0 {
		return 0
	}
	return float64(r.Width) / float64(r.Height)
}

func (r Region) String() string {
	return fmt.Sprintf("Region (%d, %d) %dx%d", r.X, r.Y, r.Width, r.Height)
}
