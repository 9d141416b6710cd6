package media

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// CameraScheme prefixes a capture device index in a media path, as in
// "camera:0".
const CameraScheme = "camera:"

// Camera reads frames from a live capture device. A live feed has no end:
// a failed read is a decode failure.
type Camera struct {
	deviceID int
	capture  capture
	read     int
	dims     dimensions
}

// ParseCamera extracts the device index from a "camera:N" path.
func ParseCamera(path string) (int, bool) {
	rest, ok := strings.CutPrefix(path, CameraScheme)
	if !ok {
		return 0, false
	}
	id, err := strconv.Atoi(rest)
	if err != nil || id < 0 {
		return 0, false
	}
	return id, true
}

// OpenCamera opens capture device deviceID.
func OpenCamera(deviceID int) (*Camera, error) {
	vc, err := gocv.OpenVideoCapture(deviceID)
	if err != nil {
		return nil, errors.Wrapf(ErrMediaNotFound, "camera %d: %v", deviceID, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, errors.Wrapf(ErrMediaNotFound, "camera %d: cannot open", deviceID)
	}
	return &Camera{deviceID: deviceID, capture: vc}, nil
}

// Read grabs the next frame.
func (c *Camera) Read(dst *gocv.Mat) error {
	if ok := c.capture.Read(dst); !ok || dst.Empty() {
		return errors.Wrapf(ErrDecodeFailure, "camera %d: frame %d", c.deviceID, c.read)
	}
	if err := c.dims.check(*dst, c.read); err != nil {
		return err
	}
	c.read++
	return nil
}

// Name returns the camera path.
func (c *Camera) Name() string { return fmt.Sprintf("%s%d", CameraScheme, c.deviceID) }

// Close releases the device.
func (c *Camera) Close() error {
	return c.capture.Close()
}
