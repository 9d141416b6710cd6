package recognition

import (
	"bytes"
	"image"
	"image/color"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCalibrateThreeRegions draws three dark, well separated cars on a white
// track. After one pyramid halving each car is 200x180 and its dilated
// contour encloses roughly 42000 px².
func TestCalibrateThreeRegions(t *testing.T) {
	still := solidFrame(1600, 800, color.RGBA{R: 255, G: 255, B: 255, A: 255})
	defer still.Close()
	paint(still, image.Rect(100, 200, 500, 560), color.RGBA{R: 20, G: 20, B: 20, A: 255})
	paint(still, image.Rect(600, 200, 1000, 560), color.RGBA{G: 60, A: 255})
	paint(still, image.Rect(1100, 200, 1500, 560), color.RGBA{B: 90, A: 255})

	config := DefaultCalibrationConfig()
	config.RotationAngle = 0

	calibration, err := NewCalibrator(config, zerolog.Nop()).Calibrate(still, DefaultBlueprint())
	require.NoError(t, err)
	defer calibration.Close()

	require.Len(t, calibration.Regions, 3)
	require.Len(t, calibration.Catalog, 3)
	assert.Empty(t, calibration.Catalog.Uncalibrated())

	for i, region := range calibration.Regions {
		assert.True(t, config.Area.Contains(region.Area), "region %d area %v", i, region.Area)
		if i > 0 {
			assert.Greater(t, region.X, calibration.Regions[i-1].X)
		}
	}

	bolid := calibration.Catalog[0]
	assert.Equal(t, "bolid", bolid.Name)
	assert.NotEmpty(t, bolid.ShapeTemplate)
	assert.Nil(t, bolid.ColorSignature)
	assert.InDelta(t, 216.0/196.0, bolid.AspectRatio, 0.05)

	for _, p := range calibration.Catalog[1:] {
		assert.NotNil(t, p.ColorSignature, p.Name)
		assert.Empty(t, p.ShapeTemplate, p.Name)
		assert.Greater(t, p.AspectRatio, 0.0, p.Name)
	}
	assert.Greater(t, calibration.Catalog[1].ColorSignature.G, calibration.Catalog[1].ColorSignature.B)
	assert.Greater(t, calibration.Catalog[2].ColorSignature.B, calibration.Catalog[2].ColorSignature.G)

	assert.Equal(t, 800, calibration.Frame.Cols())
}

func TestCalibrateNoRegions(t *testing.T) {
	still := solidFrame(1600, 800, color.RGBA{R: 255, G: 255, B: 255, A: 255})
	defer still.Close()

	config := DefaultCalibrationConfig()
	config.RotationAngle = 0

	_, err := NewCalibrator(config, zerolog.Nop()).Calibrate(still, DefaultBlueprint())
	assert.ErrorIs(t, err, ErrNoCalibrationRegions)
}

func TestCalibrateRejectsInvalidBlueprint(t *testing.T) {
	still := solidFrame(100, 100, color.RGBA{A: 255})
	defer still.Close()

	blueprint := DefaultBlueprint()
	blueprint[0].Kind = KindColor

	_, err := NewCalibrator(DefaultCalibrationConfig(), zerolog.Nop()).Calibrate(still, blueprint)
	assert.ErrorIs(t, err, ErrCatalogShape)
}

func TestCatalogFileRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, SaveCatalog(&buf, calibratedCatalog()))
	assert.Contains(t, buf.String(), "[[profile]]")

	loaded, err := LoadCatalog(&buf)
	require.NoError(t, err)
	assert.Equal(t, calibratedCatalog(), loaded)
}

func TestLoadCatalogValidates(t *testing.T) {
	_, err := LoadCatalog(bytes.NewBufferString(`
[[profile]]
name = "ferrari"
kind = "color"
aspect_ratio = 2.0
`))
	assert.ErrorIs(t, err, ErrCatalogShape)
}
