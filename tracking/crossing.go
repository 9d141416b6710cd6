package tracking

import (
	"github.com/nvr-ai/finishline/common"
	"github.com/pkg/errors"
)

// CrossingDetector decides when a region's leading edge meets the finish
// line.
//
// A region fires when the line's x at the region's center row lies between
// the region's left edge and Tolerance of its width to the right of it:
//
//	x <= lineX <= x + Tolerance*width
//
// Only objects entering from the left and moving right are caught; a region
// travelling right to left passes the line with its left edge already beyond
// it and never fires.
type CrossingDetector struct {
	Tolerance float64
}

// DefaultCrossingDetector returns a detector with a tolerance of 10% of the
// region width.
func DefaultCrossingDetector() CrossingDetector {
	return CrossingDetector{Tolerance: 0.1}
}

// Validate rejects a negative tolerance.
func (d CrossingDetector) Validate() error {
	if d.Tolerance < 0 {
		return errors.Errorf("crossing tolerance must be non-negative, got %v", d.Tolerance)
	}
	return nil
}

// Fires reports whether region straddles line.
func (d CrossingDetector) Fires(region common.Region, line common.Line) bool {
	if !region.Valid() {
		return false
	}
	lineX := line.XAt(region.CenterRow())
	left := float64(region.X)
	return left <= lineX && lineX <= left+d.Tolerance*float64(region.Width)
}

// Crossings returns the regions that fire, in the order given.
func (d CrossingDetector) Crossings(regions []common.Region, line common.Line) []common.Region {
	var out []common.Region
	for _, r := range regions {
		if d.Fires(r, line) {
			out = append(out, r)
		}
	}
	return out
}
