// Package media delivers decoded frames to the tracking loop and classifies
// media failures.
//
// A Source yields frames in temporal order. End of stream is io.EOF and is
// clean termination; ErrDecodeFailure is fatal for the video; opening a path
// that does not resolve fails with ErrMediaNotFound.
package media

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

var (
	// ErrMediaNotFound is returned when an input path does not resolve to
	// readable media.
	ErrMediaNotFound = errors.New("media not found")
	// ErrDecodeFailure is returned when a frame cannot be decoded mid-stream.
	ErrDecodeFailure = errors.New("decode failure")
)

// Source is a stream of BGR frames with fixed dimensions.
type Source interface {
	// Read decodes the next frame into dst. It returns io.EOF after the last
	// frame.
	Read(dst *gocv.Mat) error
	// Name identifies the stream in logs and reports.
	Name() string
	Close() error
}

// LoadImage decodes a still image as a BGR Mat owned by the caller.
func LoadImage(path string) (gocv.Mat, error) {
	if _, err := os.Stat(path); err != nil {
		return gocv.NewMat(), errors.Wrapf(ErrMediaNotFound, "%s: %v", path, err)
	}

	img := gocv.IMRead(path, gocv.IMReadColor)
	if img.Empty() {
		img.Close()
		return gocv.NewMat(), errors.Wrapf(ErrDecodeFailure, "%s", path)
	}
	return img, nil
}

// dimensions guards the fixed-size contract of a stream.
type dimensions struct {
	cols, rows int
	set        bool
}

func (d *dimensions) check(frame gocv.Mat, index int) error {
	if !d.set {
		d.cols, d.rows, d.set = frame.Cols(), frame.Rows(), true
		return nil
	}
	if frame.Cols() != d.cols || frame.Rows() != d.rows {
		return errors.Wrapf(ErrDecodeFailure, "frame %d is %dx%d, stream is %dx%d",
			index, frame.Cols(), frame.Rows(), d.cols, d.rows)
	}
	return nil
}

// Frames is an in-memory Source, used for synthetic streams.
type Frames struct {
	name   string
	frames []gocv.Mat
	next   int
}

// NewFrames copies frames into a Source; the caller keeps ownership of the
// originals.
func NewFrames(name string, frames ...gocv.Mat) *Frames {
	owned := make([]gocv.Mat, len(frames))
	for i, f := range frames {
		owned[i] = f.Clone()
	}
	return &Frames{name: name, frames: owned}
}

// Read copies the next frame into dst.
func (f *Frames) Read(dst *gocv.Mat) error {
	if f.next >= len(f.frames) {
		return io.EOF
	}
	f.frames[f.next].CopyTo(dst)
	f.next++
	return nil
}

// Name returns the stream name.
func (f *Frames) Name() string { return f.name }

// Close releases the copied frames.
func (f *Frames) Close() error {
	for _, m := range f.frames {
		m.Close()
	}
	f.frames = nil
	return nil
}

// Open opens path as a capture device when it reads "camera:N", as an
// image sequence when it is a directory and as a video file otherwise.
func Open(path string) (Source, error) {
	if id, ok := ParseCamera(path); ok {
		return OpenCamera(id)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrapf(ErrMediaNotFound, "%s: %v", path, err)
	}
	if info.IsDir() {
		return OpenImageSequence(path)
	}
	return OpenVideo(path)
}
