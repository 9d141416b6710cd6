package media

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// minFrameSlack is the smallest number of frames a video may come up short of
// its reported frame count and still end cleanly.
const minFrameSlack = 5

// capture is the part of *gocv.VideoCapture the capture-backed sources use.
type capture interface {
	Read(m *gocv.Mat) bool
	Get(prop gocv.VideoCaptureProperties) float64
	Close() error
}

// VideoFile reads frames from a video container through OpenCV.
//
// The container's frame count is an estimate for many formats (FFmpeg derives
// it from duration and frame rate), so it is only used to tell a truncated
// stream from a finished one. A failed read is end of stream when the decoder
// position has reached the reported count, or when fewer than
// max(minFrameSlack, count/50) frames are missing. A failed read further from
// the end, or a frame whose size differs from the first, is ErrDecodeFailure.
type VideoFile struct {
	path    string
	capture capture
	total   int
	read    int
	dims    dimensions
}

// OpenVideo opens a video file for sequential reading.
//
// Returns:
//   - *VideoFile: The open stream; call Close.
//   - error: ErrMediaNotFound if the path is missing or cannot be opened.
func OpenVideo(path string) (*VideoFile, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, errors.Wrapf(ErrMediaNotFound, "%s: %v", path, err)
	}

	vc, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, errors.Wrapf(ErrMediaNotFound, "%s: %v", path, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, errors.Wrapf(ErrMediaNotFound, "%s: cannot open", path)
	}

	return newVideoFile(path, vc), nil
}

func newVideoFile(path string, c capture) *VideoFile {
	return &VideoFile{
		path:    path,
		capture: c,
		total:   int(c.Get(gocv.VideoCaptureFrameCount)),
	}
}

// Read decodes the next frame.
func (v *VideoFile) Read(dst *gocv.Mat) error {
	if ok := v.capture.Read(dst); !ok || dst.Empty() {
		if v.truncated() {
			return errors.Wrapf(ErrDecodeFailure, "%s: frame %d of %d", v.path, v.read, v.total)
		}
		return io.EOF
	}
	if err := v.dims.check(*dst, v.read); err != nil {
		return err
	}
	v.read++
	return nil
}

// truncated reports whether a failed read happened too far from the reported
// end of the stream to be its real end.
func (v *VideoFile) truncated() bool {
	if v.total <= 0 {
		return false
	}
	if pos := int(v.capture.Get(gocv.VideoCapturePosFrames)); pos >= v.total {
		return false
	}
	return v.total-v.read > max(minFrameSlack, v.total/50)
}

// Name returns the file path.
func (v *VideoFile) Name() string { return v.path }

// Close releases the capture.
func (v *VideoFile) Close() error {
	return v.capture.Close()
}
