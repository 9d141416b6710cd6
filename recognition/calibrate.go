package recognition

import (
	"image"
	"sort"

	"github.com/nvr-ai/finishline/common"
	"github.com/nvr-ai/finishline/images"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gocv.io/x/gocv"
)

// CalibrationConfig contains the parameters of the static-image recognizer.
type CalibrationConfig struct {
	// RotationAngle corrects the calibration camera's tilt, in degrees.
	RotationAngle float64
	// DownsampleLevels is the number of pyramid halvings after rotation.
	DownsampleLevels int
	// Threshold is the inverse binary threshold separating cars from the track.
	Threshold float32
	// DilateKernelSize merges each car into one blob.
	DilateKernelSize int
	// Area is the open band of car contour areas at calibration resolution.
	Area images.AreaBand
	// Template extracts the reference contour of the template profile.
	Template images.ShapeConfig
}

// DefaultCalibrationConfig returns the parameters calibrated for the
// calibration photo.
func DefaultCalibrationConfig() CalibrationConfig {
	return CalibrationConfig{
		RotationAngle:    15,
		DownsampleLevels: 1,
		Threshold:        70,
		DilateKernelSize: 17,
		Area:             images.AreaBand{Min: 40000, Max: 50000},
		Template: images.ShapeConfig{
			Threshold:  40,
			Morph:      gocv.MorphOpen,
			KernelSize: 11,
		},
	}
}

// Calibration is the outcome of priming a catalog from one still.
type Calibration struct {
	Catalog Catalog
	// Regions are the matched regions, Regions[i] feeding Catalog[i].
	Regions []common.Region
	// Frame is the rotated, downsampled still the regions refer to.
	Frame gocv.Mat
}

// Close releases the calibration frame.
func (c *Calibration) Close() {
	c.Frame.Close()
}

// Calibrator computes reference profiles from a calibration still.
type Calibrator struct {
	config CalibrationConfig
	logger zerolog.Logger
}

// NewCalibrator creates a calibrator.
func NewCalibrator(config CalibrationConfig, logger zerolog.Logger) *Calibrator {
	return &Calibrator{config: config, logger: logger}
}

// Calibrate finds up to len(blueprint) cars in the still and fills in each
// blueprint profile's aspect ratio plus its shape template or color
// signature. Regions are matched to profiles left to right (then top to
// bottom); profiles without a region stay uncalibrated and are logged.
//
// Arguments:
//   - still: BGR calibration image, untouched.
//   - blueprint: Names and kinds of the profiles to fill, in catalog order.
//
// Returns:
//   - *Calibration: The filled catalog and working frame; call Close.
//   - error: ErrNoCalibrationRegions if no car is found, ErrCatalogShape if
//     the blueprint is invalid.
func (c *Calibrator) Calibrate(still gocv.Mat, blueprint Catalog) (*Calibration, error) {
	if err := blueprint.Validate(); err != nil {
		return nil, err
	}
	if still.Empty() {
		return nil, errors.New("calibration image is empty")
	}

	rotated := images.Rotate(still, c.config.RotationAngle)
	frame := images.Downsample(rotated, c.config.DownsampleLevels)
	rotated.Close()

	regions, err := c.findRegions(frame)
	if err != nil {
		frame.Close()
		return nil, err
	}
	if len(regions) == 0 {
		frame.Close()
		return nil, errors.Wrapf(ErrNoCalibrationRegions, "area band (%v, %v)", c.config.Area.Min, c.config.Area.Max)
	}

	sort.SliceStable(regions, func(i, j int) bool {
		if regions[i].X != regions[j].X {
			return regions[i].X < regions[j].X
		}
		return regions[i].Y < regions[j].Y
	})
	if len(regions) > len(blueprint) {
		c.logger.Warn().
			Int("found", len(regions)).
			Int("profiles", len(blueprint)).
			Msg("more calibration regions than profiles, extra regions ignored")
		regions = regions[:len(blueprint)]
	}

	catalog := blueprint.Clone()
	for i, region := range regions {
		profile := &catalog[i]
		profile.AspectRatio = region.AspectRatio()

		switch profile.Kind {
		case KindTemplate:
			contours := images.BoundaryContours(frame, region.Rect(), c.config.Template)
			if len(contours) == 0 {
				c.logger.Warn().Str("profile", profile.Name).Msg("no template contour in calibration region")
				continue
			}
			profile.ShapeTemplate = contours[0]
		case KindColor:
			sig, ok := images.MeanColor(frame, region.Rect())
			if !ok {
				continue
			}
			profile.ColorSignature = &sig
		}

		c.logger.Debug().
			Str("profile", profile.Name).
			Str("region", region.String()).
			Float64("aspect_ratio", profile.AspectRatio).
			Msg("profile calibrated")
	}

	if missing := catalog.Uncalibrated(); len(missing) > 0 {
		c.logger.Warn().Strs("profiles", missing).Msg("profiles left uncalibrated")
	}

	return &Calibration{Catalog: catalog, Regions: regions, Frame: frame}, nil
}

func (c *Calibrator) findRegions(frame gocv.Mat) ([]common.Region, error) {
	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(frame, &gray, gocv.ColorBGRToGray)

	mask := gocv.NewMat()
	defer mask.Close()
	gocv.Threshold(gray, &mask, c.config.Threshold, 255, gocv.ThresholdBinaryInv)

	k := c.config.DilateKernelSize
	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(k, k))
	defer kernel.Close()
	if err := gocv.Dilate(mask, &mask, kernel); err != nil {
		return nil, errors.Wrap(err, "dilate calibration mask")
	}

	return images.FindRegions(mask, gocv.RetrievalList, gocv.ChainApproxSimple, c.config.Area), nil
}
