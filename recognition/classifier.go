package recognition

import (
	"image"
	"math"

	"github.com/nvr-ai/finishline/common"
	"github.com/nvr-ai/finishline/images"
	"github.com/rs/zerolog"
	"gocv.io/x/gocv"
)

// ClassifierConfig contains the live-matching parameters.
type ClassifierConfig struct {
	// ColorTolerance is the half-width of every channel band.
	ColorTolerance float64
	// MaxShapeDistance is the exclusive shape-match cut-off.
	MaxShapeDistance float64
	// Shape extracts the live contour. Its threshold differs from the one used
	// when the template was calibrated.
	Shape images.ShapeConfig
}

// DefaultClassifierConfig returns the parameters calibrated for the
// finish-line camera.
func DefaultClassifierConfig() ClassifierConfig {
	return ClassifierConfig{
		ColorTolerance:   10,
		MaxShapeDistance: 0.08,
		Shape: images.ShapeConfig{
			Threshold:  65,
			Morph:      gocv.MorphDilate,
			KernelSize: 3,
		},
	}
}

// Classifier assigns catalog names to crossing regions.
type Classifier struct {
	catalog Catalog
	cascade Cascade
	config  ClassifierConfig
	logger  zerolog.Logger
}

// NewClassifier builds a classifier over a calibrated catalog using the
// default cascade.
//
// Arguments:
//   - catalog: Calibrated profiles; copied, so later edits do not leak in.
//   - config: Matching parameters.
//   - logger: Destination for debug events.
//
// Returns:
//   - *Classifier: The classifier.
//   - error: ErrCatalogShape if the cascade addresses missing profiles.
func NewClassifier(catalog Catalog, config ClassifierConfig, logger zerolog.Logger) (*Classifier, error) {
	return NewClassifierWithCascade(catalog, DefaultCascade(config.ColorTolerance, config.MaxShapeDistance), config, logger)
}

// NewClassifierWithCascade is NewClassifier with an explicit rule list.
func NewClassifierWithCascade(catalog Catalog, cascade Cascade, config ClassifierConfig, logger zerolog.Logger) (*Classifier, error) {
	if err := cascade.Check(len(catalog)); err != nil {
		return nil, err
	}
	return &Classifier{
		catalog: catalog.Clone(),
		cascade: cascade,
		config:  config,
		logger:  logger,
	}, nil
}

// Catalog returns a copy of the profiles the classifier matches against.
func (c *Classifier) Catalog() Catalog {
	return c.catalog.Clone()
}

// Classify names the object in region.
//
// The live box keeps the region's origin and height; its width is rebuilt
// from each profile's aspect ratio in turn, so a car partly hidden behind the
// frame edge is measured at full length. This assumes the profile being
// tried is the right one before the color test confirms it. The first
// profile whose rebuilt box satisfies a cascade rule decides.
//
// Boxes are clamped to the frame; a box that clamps to nothing is skipped.
//
// Arguments:
//   - frame: The BGR frame the region was found in.
//   - region: The crossing region.
//
// Returns:
//   - string: A profile name or Unknown.
func (c *Classifier) Classify(frame gocv.Mat, region common.Region) string {
	for i, profile := range c.catalog {
		width := int(profile.AspectRatio * float64(region.Height))
		rect := image.Rect(region.X, region.Y, region.X+width, region.Y+region.Height)

		clamped, ok := images.ClampRect(rect, frame.Cols(), frame.Rows())
		if !ok {
			c.logger.Debug().
				Int("profile", i).
				Str("rect", rect.String()).
				Msg("classification box outside frame")
			continue
		}
		if clamped != rect {
			c.logger.Debug().
				Int("profile", i).
				Str("rect", rect.String()).
				Str("clamped", clamped.String()).
				Msg("classification box clamped")
		}

		sig, _ := images.MeanColor(frame, clamped)
		label, matched := c.cascade.Evaluate(c.catalog, sig, c.shapeDistance(frame, clamped))
		if matched {
			c.logger.Debug().
				Int("profile", i).
				Float64("r", sig.R).
				Float64("g", sig.G).
				Float64("b", sig.B).
				Str("label", label).
				Msg("region classified")
			return label
		}
	}

	return Unknown
}

// shapeDistance binds the live contour extraction to one box. The first
// contour found is the one compared.
func (c *Classifier) shapeDistance(frame gocv.Mat, rect image.Rectangle) ShapeDistanceFunc {
	return func(template []image.Point) float64 {
		contours := images.BoundaryContours(frame, rect, c.config.Shape)
		if len(contours) == 0 {
			return math.Inf(1)
		}
		return images.ShapeDistance(contours[0], template)
	}
}
