package recognition

import (
	"image"
	"math"

	"github.com/nvr-ai/finishline/images"
	"github.com/pkg/errors"
)

// Rule is one step of the classification cascade: a band test of one color
// channel against a reference profile's stored mean. A rule whose reference
// profile carries no color signature never matches.
//
// On a band hit the rule names the profile at Label, or defers to Shape when
// set.
type Rule struct {
	Name      string
	Channel   images.Channel
	Reference int
	// Tolerance is the half-width of the open band around the reference mean.
	Tolerance float64
	Label     int
	Shape     *ShapeSplit
}

// ShapeSplit chooses between two profiles by contour distance to a template.
type ShapeSplit struct {
	Template int
	// MaxDistance is exclusive: a distance strictly below it selects Match.
	MaxDistance float64
	Match       int
	Otherwise   int
}

// Cascade is an ordered rule list; the first rule that matches decides.
type Cascade struct {
	Rules []Rule
}

// DefaultCascade is the three-profile disambiguation used by the finish-line
// camera. It is position dependent, not an N-way classifier:
//
//  1. green mean within ±tolerance of profile 1's green:
//     shape distance to profile 0's template < maxDistance ⇒ profile 0,
//     otherwise ⇒ profile 1
//  2. blue mean within ±tolerance of profile 2's blue ⇒ profile 2
//  3. nothing matched ⇒ Unknown
func DefaultCascade(tolerance, maxDistance float64) Cascade {
	return Cascade{Rules: []Rule{
		{
			Name:      "green-band",
			Channel:   images.ChannelGreen,
			Reference: 1,
			Tolerance: tolerance,
			Shape: &ShapeSplit{
				Template:    0,
				MaxDistance: maxDistance,
				Match:       0,
				Otherwise:   1,
			},
		},
		{
			Name:      "blue-band",
			Channel:   images.ChannelBlue,
			Reference: 2,
			Tolerance: tolerance,
			Label:     2,
		},
	}}
}

// Check verifies every index the cascade refers to exists in a catalog of
// the given size.
func (c Cascade) Check(size int) error {
	in := func(i int) bool { return i >= 0 && i < size }
	for _, r := range c.Rules {
		if !in(r.Reference) {
			return errors.Wrapf(ErrCatalogShape, "rule %q references profile %d of %d", r.Name, r.Reference, size)
		}
		if r.Shape == nil {
			if !in(r.Label) {
				return errors.Wrapf(ErrCatalogShape, "rule %q labels profile %d of %d", r.Name, r.Label, size)
			}
			continue
		}
		for _, i := range []int{r.Shape.Template, r.Shape.Match, r.Shape.Otherwise} {
			if !in(i) {
				return errors.Wrapf(ErrCatalogShape, "rule %q shape split uses profile %d of %d", r.Name, i, size)
			}
		}
	}
	return nil
}

// ShapeDistanceFunc measures the candidate's contour against a template.
type ShapeDistanceFunc func(template []image.Point) float64

// Evaluate runs the rules in order against one color signature.
//
// Arguments:
//   - catalog: Profiles addressed by the rules' indices; must pass Check.
//   - sig: The candidate's color means.
//   - distance: Called lazily, only when a shape split is reached.
//
// Returns:
//   - string: The decided label, or Unknown.
//   - bool: Whether any rule matched.
func (c Cascade) Evaluate(catalog Catalog, sig images.ColorSignature, distance ShapeDistanceFunc) (string, bool) {
	for _, r := range c.Rules {
		ref := catalog[r.Reference].ColorSignature
		if ref == nil {
			continue
		}

		v := sig.Value(r.Channel)
		centre := ref.Value(r.Channel)
		if !(v < centre+r.Tolerance && v > centre-r.Tolerance) {
			continue
		}

		if r.Shape == nil {
			return catalog[r.Label].Name, true
		}

		d := math.Inf(1)
		if tpl := catalog[r.Shape.Template].ShapeTemplate; len(tpl) > 0 {
			d = distance(tpl)
		}
		if d < r.Shape.MaxDistance {
			return catalog[r.Shape.Match].Name, true
		}
		return catalog[r.Shape.Otherwise].Name, true
	}

	return Unknown, false
}
