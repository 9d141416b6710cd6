package recognition

import (
	"image"
	"io"

	"github.com/nvr-ai/finishline/images"
	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
)

type catalogFile struct {
	Profiles []profileRecord `toml:"profile"`
}

type profileRecord struct {
	Name        string                 `toml:"name"`
	Kind        ProfileKind            `toml:"kind"`
	AspectRatio float64                `toml:"aspect_ratio"`
	Color       *images.ColorSignature `toml:"color,omitempty"`
	Template    [][]int                `toml:"template,omitempty"`
}

// SaveCatalog writes a catalog as TOML, one [[profile]] table per entry in
// catalog order.
func SaveCatalog(w io.Writer, catalog Catalog) error {
	file := catalogFile{Profiles: make([]profileRecord, 0, len(catalog))}
	for _, p := range catalog {
		rec := profileRecord{
			Name:        p.Name,
			Kind:        p.Kind,
			AspectRatio: p.AspectRatio,
			Color:       p.ColorSignature,
		}
		for _, pt := range p.ShapeTemplate {
			rec.Template = append(rec.Template, []int{pt.X, pt.Y})
		}
		file.Profiles = append(file.Profiles, rec)
	}

	if err := toml.NewEncoder(w).Encode(file); err != nil {
		return errors.Wrap(err, "encode catalog")
	}
	return nil
}

// LoadCatalog reads a catalog written by SaveCatalog and validates it.
func LoadCatalog(r io.Reader) (Catalog, error) {
	var file catalogFile
	if err := toml.NewDecoder(r).Decode(&file); err != nil {
		return nil, errors.Wrap(err, "decode catalog")
	}

	catalog := make(Catalog, 0, len(file.Profiles))
	for _, rec := range file.Profiles {
		p := ObjectProfile{
			Name:           rec.Name,
			Kind:           rec.Kind,
			AspectRatio:    rec.AspectRatio,
			ColorSignature: rec.Color,
		}
		for _, pt := range rec.Template {
			if len(pt) != 2 {
				return nil, errors.Wrapf(ErrCatalogShape, "profile %q template point %v", rec.Name, pt)
			}
			p.ShapeTemplate = append(p.ShapeTemplate, image.Pt(pt[0], pt[1]))
		}
		catalog = append(catalog, p)
	}

	if err := catalog.Validate(); err != nil {
		return nil, err
	}
	return catalog, nil
}
