package images

import (
	"crypto/md5"
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// blankFrame returns a black BGR frame.
func blankFrame(width, height int) gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), height, width, gocv.MatTypeCV8UC3)
}

// frameWithBox returns a black BGR frame with one filled box.
func frameWithBox(width, height int, box image.Rectangle, c color.RGBA) gocv.Mat {
	frame := blankFrame(width, height)
	gocv.Rectangle(&frame, box, c, -1)
	return frame
}

func gocvFillWhite(frame gocv.Mat) {
	gocv.Rectangle(&frame, image.Rect(0, 0, frame.Cols(), frame.Rows()), color.RGBA{R: 255, G: 255, B: 255, A: 255}, -1)
}

func gocvFillBox(frame gocv.Mat, box image.Rectangle, c color.RGBA) {
	gocv.Rectangle(&frame, box, c, -1)
}

// matChecksum hashes a Mat's shape and pixel data. Equal checksums mean
// byte-identical frames.
func matChecksum(mat gocv.Mat) string {
	if mat.Empty() {
		return "empty"
	}

	hash := md5.New()
	fmt.Fprintf(hash, "%dx%dx%d:%d;", mat.Cols(), mat.Rows(), mat.Channels(), mat.Type())
	hash.Write(mat.ToBytes())
	return fmt.Sprintf("%x", hash.Sum(nil))
}
