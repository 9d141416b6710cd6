package images

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// ColorSignature holds the mean of each color channel over a box.
type ColorSignature struct {
	R float64 `toml:"r"`
	G float64 `toml:"g"`
	B float64 `toml:"b"`
}

// Channel selects one component of a ColorSignature.
type Channel int

const (
	// ChannelRed is the red mean.
	ChannelRed Channel = iota
	// ChannelGreen is the green mean.
	ChannelGreen
	// ChannelBlue is the blue mean.
	ChannelBlue
)

func (c Channel) String() string {
	switch c {
	case ChannelRed:
		return "red"
	case ChannelGreen:
		return "green"
	case ChannelBlue:
		return "blue"
	}
	return fmt.Sprintf("channel(%d)", int(c))
}

// Value returns the mean for channel c.
func (s ColorSignature) Value(c Channel) float64 {
	switch c {
	case ChannelRed:
		return s.R
	case ChannelGreen:
		return s.G
	default:
		return s.B
	}
}

// MeanColor averages each channel of a BGR frame over rect. The rectangle is
// clamped to the frame first.
//
// Arguments:
//   - frame: 3-channel BGR frame.
//   - rect: Box to average over, may extend past the frame.
//
// Returns:
//   - ColorSignature: Per-channel means.
//   - bool: false when the clamped box is empty.
//
// @example
// sig, ok := MeanColor(frame, image.Rect(300, 200, 400, 280))
func MeanColor(frame gocv.Mat, rect image.Rectangle) (ColorSignature, bool) {
	clamped, ok := ClampRect(rect, frame.Cols(), frame.Rows())
	if !ok {
		return ColorSignature{}, false
	}

	roi := frame.Region(clamped)
	defer roi.Close()

	mean := roi.Mean()
	return ColorSignature{R: mean.Val3, G: mean.Val2, B: mean.Val1}, true
}
