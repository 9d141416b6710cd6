package images

import (
	"math"

	"github.com/nvr-ai/finishline/common"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// AreaBand is an open interval of contour areas, Min < area < Max.
// A zero Max means no upper bound.
type AreaBand struct {
	Min float64
	Max float64
}

// Contains reports whether area lies strictly inside the band.
func (b AreaBand) Contains(area float64) bool {
	upper := b.Max
	if upper == 0 {
		upper = math.Inf(1)
	}
	return area > b.Min && area < upper
}

// Validate rejects bands that can never contain an area.
func (b AreaBand) Validate() error {
	if b.Min < 0 {
		return errors.Errorf("area band minimum must be non-negative, got %v", b.Min)
	}
	if b.Max != 0 && b.Max <= b.Min {
		return errors.Errorf("area band (%v, %v) is empty", b.Min, b.Max)
	}
	return nil
}

// FindRegions extracts contours from a binary mask and keeps those whose
// enclosed area lies inside band, preserving discovery order.
//
// Arguments:
//   - mask: Single-channel binary image.
//   - mode: Contour retrieval mode.
//   - method: Contour approximation method.
//   - band: Area filter.
//
// Returns:
//   - []common.Region: One region per retained contour, Area populated.
func FindRegions(mask gocv.Mat, mode gocv.RetrievalMode, method gocv.ContourApproximationMode, band AreaBand) []common.Region {
	contours := gocv.FindContours(mask, mode, method)
	defer contours.Close()

	regions := make([]common.Region, 0)
	for i := 0; i < contours.Size(); i++ {
		contour := contours.At(i)
		area := gocv.ContourArea(contour)
		if !band.Contains(area) {
			continue
		}
		region, ok := common.NewRegion(contour.ToPoints())
		if !ok {
			continue
		}
		region.Area = area
		regions = append(regions, region)
	}

	return regions
}

// LargestRegion returns the region with the greatest area.
func LargestRegion(regions []common.Region) (common.Region, bool) {
	if len(regions) == 0 {
		return common.Region{}, false
	}
	best := regions[0]
	for _, r := range regions[1:] {
		if r.Area > best.Area {
			best = r
		}
	}
	return best, true
}
