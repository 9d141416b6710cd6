package media

import (
	"io"

	"github.com/nvr-ai/finishline/util"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// ImageSequence reads a directory of numbered still images as a stream.
type ImageSequence struct {
	dir   string
	files []util.ImageFile
	next  int
	dims  dimensions
}

// OpenImageSequence loads every image file in dir, in frame order.
//
// Returns:
//   - *ImageSequence: The stream.
//   - error: ErrMediaNotFound if the directory is missing or holds no images.
func OpenImageSequence(dir string) (*ImageSequence, error) {
	files, err := util.LoadDirectoryImageFiles(dir)
	if err != nil {
		return nil, errors.Wrapf(ErrMediaNotFound, "%s: %v", dir, err)
	}
	if len(files) == 0 {
		return nil, errors.Wrapf(ErrMediaNotFound, "%s: no image files", dir)
	}
	return &ImageSequence{dir: dir, files: files}, nil
}

// Read decodes the next image into dst.
func (s *ImageSequence) Read(dst *gocv.Mat) error {
	if s.next >= len(s.files) {
		return io.EOF
	}
	file := s.files[s.next]

	img, err := gocv.IMDecode(file.Data, gocv.IMReadColor)
	if err != nil {
		return errors.Wrapf(ErrDecodeFailure, "%s: %v", file.Path, err)
	}
	if img.Empty() {
		img.Close()
		return errors.Wrapf(ErrDecodeFailure, "%s", file.Path)
	}
	defer img.Close()

	if err := s.dims.check(img, s.next); err != nil {
		return err
	}
	img.CopyTo(dst)
	s.next++
	return nil
}

// Name returns the directory.
func (s *ImageSequence) Name() string { return s.dir }

// Close is a no-op; the encoded files are held in memory.
func (s *ImageSequence) Close() error {
	s.files = nil
	return nil
}
