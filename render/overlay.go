// Package render - Annotated imagery for human observation: per-frame
// overlays, an interactive window and crossing snapshots.
package render

import (
	"fmt"
	"image"
	"image/color"

	"github.com/nvr-ai/finishline/common"
	"github.com/nvr-ai/finishline/tracking"
	"gocv.io/x/gocv"
)

var (
	regionColor = color.RGBA{G: 255, A: 255}
	lineColor   = color.RGBA{G: 255, A: 255}
	textColor   = color.RGBA{B: 255, A: 255}
)

// DrawRegions outlines each region.
func DrawRegions(img *gocv.Mat, regions []common.Region) {
	for _, r := range regions {
		gocv.Rectangle(img, r.Rect(), regionColor, 2)
	}
}

// DrawLine draws line across the whole image.
func DrawLine(img *gocv.Mat, line common.Line) {
	a, b := line.Endpoints(img.Cols(), img.Rows())
	gocv.Line(img, a, b, lineColor, 2)
}

// DrawLog writes the running crossing log, one "N. identity" entry per row
// from the top-left corner.
func DrawLog(img *gocv.Mat, reports []tracking.CrossingReport) {
	for i, r := range reports {
		gocv.PutText(img, fmt.Sprintf("%d. %s", r.Order, r.Identity), image.Pt(10, (i+1)*30),
			gocv.FontHersheySimplex, 1, textColor, 1)
	}
}

// Overlay draws a tracking result onto img: region boxes, the finish line on
// frames where a crossing fired, and the crossing log.
func Overlay(img *gocv.Mat, result tracking.FrameResult) {
	DrawRegions(img, result.Regions)
	if result.Crossing {
		DrawLine(img, result.Line)
	}
	DrawLog(img, result.Reports)
}

// Annotate returns a copy of result.Frame with the overlay applied. The
// caller owns the copy.
func Annotate(result tracking.FrameResult) gocv.Mat {
	img := result.Frame.Clone()
	Overlay(&img, result)
	return img
}

// LabelledRegion pairs a region with a name for static annotation.
type LabelledRegion struct {
	Name   string
	Region common.Region
}

// AnnotateRegions returns a copy of img with each region boxed and named.
// The name starts at the box's right edge, three quarters of the way down.
func AnnotateRegions(img gocv.Mat, labelled []LabelledRegion) gocv.Mat {
	out := img.Clone()
	for _, l := range labelled {
		r := l.Region
		gocv.Rectangle(&out, r.Rect(), regionColor, 2)
		gocv.PutText(&out, l.Name, image.Pt(r.X+r.Width, r.Y+r.Height*3/4),
			gocv.FontHersheySimplex, 2, textColor, 1)
	}
	return out
}
