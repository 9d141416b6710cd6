package render

import (
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"regexp"

	"github.com/nfnt/resize"
	"github.com/nvr-ai/finishline/tracking"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// Nop discards frames.
type Nop struct{}

// Show does nothing.
func (Nop) Show(tracking.FrameResult) error { return nil }

// Tee forwards each frame to every sink in order. A stop from any sink stops
// the run once all have seen the frame; the first other error is returned.
type Tee []tracking.Sink

// Show forwards result.
func (t Tee) Show(result tracking.FrameResult) error {
	var stop bool
	var first error
	for _, s := range t {
		err := s.Show(result)
		switch {
		case err == nil:
		case errors.Is(err, tracking.ErrStop):
			stop = true
		case first == nil:
			first = err
		}
	}
	if stop {
		return tracking.ErrStop
	}
	return first
}

// Window shows annotated frames in a HighGUI window and stops the run when
// the quit key is pressed.
type Window struct {
	window  *gocv.Window
	delayMS int
	quitKey int
}

// NewWindow opens a window titled name. Frames are shown for delayMS
// milliseconds each; pressing 'q' stops the video.
func NewWindow(name string, delayMS int) *Window {
	return &Window{window: gocv.NewWindow(name), delayMS: delayMS, quitKey: 'q'}
}

// Show displays the annotated frame.
func (w *Window) Show(result tracking.FrameResult) error {
	img := Annotate(result)
	defer img.Close()

	w.window.IMShow(img)
	if w.window.WaitKey(w.delayMS) == w.quitKey {
		return tracking.ErrStop
	}
	return nil
}

// ShowImage displays a still until any key is pressed.
func (w *Window) ShowImage(img gocv.Mat) {
	w.window.IMShow(img)
	w.window.WaitKey(0)
}

// Close destroys the window.
func (w *Window) Close() error {
	return w.window.Close()
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Snapshots writes a JPEG thumbnail of each frame on which a new identity
// crossed, named "<prefix>-<order>-<identity>.jpg".
type Snapshots struct {
	dir       string
	prefix    string
	maxWidth  uint
	maxHeight uint
	quality   int
	written   []string
}

// NewSnapshots writes into dir, creating it if needed. Thumbnails keep their
// aspect ratio within maxWidth x maxHeight.
func NewSnapshots(dir, prefix string, maxWidth, maxHeight uint) (*Snapshots, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create snapshot dir %s", dir)
	}
	return &Snapshots{
		dir:       dir,
		prefix:    unsafeName.ReplaceAllString(prefix, "_"),
		maxWidth:  maxWidth,
		maxHeight: maxHeight,
		quality:   90,
	}, nil
}

// Show saves one thumbnail per report added on this frame.
func (s *Snapshots) Show(result tracking.FrameResult) error {
	if len(result.Added) == 0 {
		return nil
	}

	img := Annotate(result)
	defer img.Close()

	frame, err := img.ToImage()
	if err != nil {
		return errors.Wrap(err, "convert frame")
	}
	thumb := resize.Thumbnail(s.maxWidth, s.maxHeight, frame, resize.Lanczos3)

	for _, r := range result.Added {
		name := fmt.Sprintf("%s-%d-%s.jpg", s.prefix, r.Order, unsafeName.ReplaceAllString(r.Identity, "_"))
		path := filepath.Join(s.dir, name)
		if err := writeJPEG(path, thumb, s.quality); err != nil {
			return err
		}
		s.written = append(s.written, path)
	}
	return nil
}

// Written lists the files saved so far.
func (s *Snapshots) Written() []string {
	return append([]string(nil), s.written...)
}

func writeJPEG(path string, img image.Image, quality int) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: quality}); err != nil {
		f.Close()
		return errors.Wrapf(err, "encode %s", path)
	}
	return errors.Wrapf(f.Close(), "close %s", path)
}
