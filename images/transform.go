package images

import (
	"image"

	"gocv.io/x/gocv"
)

// Rotate turns src by angle degrees (counter-clockwise) about its centre,
// keeping the original size. Uncovered corners are filled black.
//
// The caller owns the returned Mat.
func Rotate(src gocv.Mat, angle float64) gocv.Mat {
	dst := gocv.NewMat()
	if angle == 0 {
		src.CopyTo(&dst)
		return dst
	}

	center := image.Pt(src.Cols()/2, src.Rows()/2)
	m := gocv.GetRotationMatrix2D(center, angle, 1.0)
	defer m.Close()

	gocv.WarpAffine(src, &dst, m, image.Pt(src.Cols(), src.Rows()))
	return dst
}

// Downsample halves src levels times with a Gaussian pyramid.
//
// The caller owns the returned Mat.
func Downsample(src gocv.Mat, levels int) gocv.Mat {
	dst := src.Clone()
	for i := 0; i < levels; i++ {
		next := gocv.NewMat()
		gocv.PyrDown(dst, &next, image.Point{}, gocv.BorderDefault)
		dst.Close()
		dst = next
	}
	return dst
}
