// Package recognition names crossing objects by matching their shape and
// color statistics against a small catalog of reference profiles, and builds
// that catalog from a calibration still.
package recognition

import (
	"image"
	"slices"

	"github.com/nvr-ai/finishline/images"
	"github.com/pkg/errors"
)

var (
	// ErrCatalogShape is returned when a catalog or cascade does not fit the
	// fixed-role layout the classifier expects.
	ErrCatalogShape = errors.New("catalog shape")
	// ErrNoCalibrationRegions is returned when the calibration still contains
	// no region inside the calibration area band.
	ErrNoCalibrationRegions = errors.New("no calibration regions")
)

// Unknown is the label given to a region no cascade rule accepts.
const Unknown = "unknown"

// ProfileKind says which signature a profile carries.
type ProfileKind string

const (
	// KindTemplate profiles are recognised by contour shape.
	KindTemplate ProfileKind = "template"
	// KindColor profiles are recognised by mean channel color.
	KindColor ProfileKind = "color"
)

// ObjectProfile is the reference signature of one known object.
type ObjectProfile struct {
	Name string
	Kind ProfileKind
	// ShapeTemplate is set for KindTemplate profiles once calibrated.
	ShapeTemplate []image.Point
	// ColorSignature is set for KindColor profiles once calibrated.
	ColorSignature *images.ColorSignature
	// AspectRatio is width over height of the calibrated object.
	AspectRatio float64
}

// Calibrated reports whether the profile carries the signature its kind needs.
func (p ObjectProfile) Calibrated() bool {
	if p.AspectRatio <= 0 {
		return false
	}
	if p.Kind == KindTemplate {
		return len(p.ShapeTemplate) > 0
	}
	return p.ColorSignature != nil
}

// Catalog is an ordered, position-significant list of profiles. It is built
// once and only read while tracking.
type Catalog []ObjectProfile

// DefaultBlueprint is the uncalibrated catalog of the finish-line camera:
// one template-matched car followed by two color-matched cars.
func DefaultBlueprint() Catalog {
	return Catalog{
		{Name: "bolid", Kind: KindTemplate},
		{Name: "ferrari", Kind: KindColor},
		{Name: "bmw", Kind: KindColor},
	}
}

// Validate checks names are set and exactly one profile is template-matched.
func (c Catalog) Validate() error {
	templates := 0
	seen := make(map[string]bool, len(c))
	for i, p := range c {
		if p.Name == "" {
			return errors.Wrapf(ErrCatalogShape, "profile %d has no name", i)
		}
		if p.Name == Unknown {
			return errors.Wrapf(ErrCatalogShape, "profile %d uses the reserved name %q", i, Unknown)
		}
		if seen[p.Name] {
			return errors.Wrapf(ErrCatalogShape, "duplicate profile name %q", p.Name)
		}
		seen[p.Name] = true

		switch p.Kind {
		case KindTemplate:
			templates++
		case KindColor:
		default:
			return errors.Wrapf(ErrCatalogShape, "profile %q has unknown kind %q", p.Name, p.Kind)
		}
	}
	if templates != 1 {
		return errors.Wrapf(ErrCatalogShape, "want exactly one template profile, got %d", templates)
	}
	return nil
}

// Uncalibrated lists the names of profiles still missing their signature.
func (c Catalog) Uncalibrated() []string {
	var names []string
	for _, p := range c {
		if !p.Calibrated() {
			names = append(names, p.Name)
		}
	}
	return names
}

// Clone deep-copies the catalog so calibration never aliases a blueprint.
func (c Catalog) Clone() Catalog {
	out := make(Catalog, len(c))
	for i, p := range c {
		out[i] = p
		out[i].ShapeTemplate = slices.Clone(p.ShapeTemplate)
		if p.ColorSignature != nil {
			sig := *p.ColorSignature
			out[i].ColorSignature = &sig
		}
	}
	return out
}
