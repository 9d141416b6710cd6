package common

import (
	"fmt"
	"image"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// ErrDegenerateLine is returned when a point set cannot define a direction.
var ErrDegenerateLine = errors.New("degenerate line")

// Line is a straight line given by a unit direction (VX, VY) and a point
// (X, Y) it passes through.
type Line struct {
	VX, VY float64
	X, Y   float64
}

// Valid reports whether the direction vector is non-degenerate.
func (l Line) Valid() bool {
	return l.VX != 0 || l.VY != 0
}

// XAt returns the x coordinate where the line meets row y.
//
// A horizontal line never meets a row at a single x, so its anchor X is
// returned instead.
func (l Line) XAt(y float64) float64 {
	if l.VY == 0 {
		return l.X
	}
	return l.X + (y-l.Y)*l.VX/l.VY
}

// Endpoints returns two points on the line far enough apart to span a frame
// of the given size, suitable for drawing.
//
// Arguments:
//   - width: Frame width in pixels.
//   - height: Frame height in pixels.
//
// Returns:
//   - image.Point, image.Point: The segment ends.
func (l Line) Endpoints(width, height int) (image.Point, image.Point) {
	t := math.Hypot(float64(width), float64(height))
	a := image.Pt(int(math.Round(l.X-t*l.VX)), int(math.Round(l.Y-t*l.VY)))
	b := image.Pt(int(math.Round(l.X+t*l.VX)), int(math.Round(l.Y+t*l.VY)))
	return a, b
}

func (l Line) String() string {
	return fmt.Sprintf("Line dir=(%.4f, %.4f) through (%.2f, %.2f)", l.VX, l.VY, l.X, l.Y)
}

// FitLine fits a line through the points by orthogonal least squares: the
// line passes through the centroid along the principal axis of the point
// covariance. This is the L2 fit OpenCV's fitLine performs.
//
// The direction is normalised so VY >= 0 (and VX > 0 when VY == 0), which
// keeps repeated fits of the same points bit-identical.
//
// Arguments:
//   - points: At least two distinct points.
//
// Returns:
//   - Line: The fitted line.
//   - error: ErrDegenerateLine when the points do not span a direction.
//
// @example
// line, err := FitLine([]image.Point{{320, 0}, {320, 479}})
// // line.VX=0 line.VY=1 line.X=320 line.Y=239.5
func FitLine(points []image.Point) (Line, error) {
	if len(points) < 2 {
		return Line{}, errors.Wrapf(ErrDegenerateLine, "need at least 2 points, got %d", len(points))
	}

	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	data := mat.NewDense(len(points), 2, nil)
	for i, p := range points {
		xs[i] = float64(p.X)
		ys[i] = float64(p.Y)
		data.Set(i, 0, xs[i])
		data.Set(i, 1, ys[i])
	}

	var cov mat.SymDense
	stat.CovarianceMatrix(&cov, data, nil)

	var eig mat.EigenSym
	if ok := eig.Factorize(&cov, true); !ok {
		return Line{}, errors.Wrap(ErrDegenerateLine, "eigen decomposition failed")
	}
	values := eig.Values(nil)
	if values[len(values)-1] <= 0 {
		return Line{}, errors.Wrap(ErrDegenerateLine, "points are coincident")
	}

	var vectors mat.Dense
	eig.VectorsTo(&vectors)

	// Eigenvalues are ascending, so the principal axis is the last column.
	vx := vectors.At(0, 1)
	vy := vectors.At(1, 1)
	norm := math.Hypot(vx, vy)
	vx, vy = vx/norm, vy/norm
	if vy < 0 || (vy == 0 && vx < 0) {
		vx, vy = -vx, -vy
	}

	return Line{
		VX: vx,
		VY: vy,
		X:  stat.Mean(xs, nil),
		Y:  stat.Mean(ys, nil),
	}, nil
}
