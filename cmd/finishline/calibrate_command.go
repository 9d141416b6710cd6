package main

import (
	"fmt"
	"os"

	"github.com/nvr-ai/finishline/config"
	"github.com/nvr-ai/finishline/media"
	"github.com/nvr-ai/finishline/recognition"
	"github.com/nvr-ai/finishline/render"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gocv.io/x/gocv"
)

type calibrateOptions struct {
	out       string
	annotated string
	show      bool
}

func newCalibrateCommand(ctx *commandContext) *cobra.Command {
	var opts calibrateOptions

	cmd := &cobra.Command{
		Use:   "calibrate <image>",
		Short: "Build a catalog from a calibration photo of the cars",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			catalog, err := calibrate(cfg, args[0], opts, ctx.logger)
			if err != nil {
				return err
			}

			if opts.out == "" {
				return recognition.SaveCatalog(cmd.OutOrStdout(), catalog)
			}
			f, err := os.Create(opts.out)
			if err != nil {
				return errors.Wrap(err, "create catalog file")
			}
			if err := recognition.SaveCatalog(f, catalog); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return errors.Wrap(err, "close catalog file")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Catalog with %d profiles written to %s\n", len(catalog), opts.out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "Catalog file to write (default stdout)")
	addCalibrationFlags(cmd, &opts)
	return cmd
}

func addCalibrationFlags(cmd *cobra.Command, opts *calibrateOptions) {
	cmd.Flags().StringVar(&opts.annotated, "annotated", "", "Write the calibration photo with matched cars marked")
	cmd.Flags().BoolVar(&opts.show, "show", false, "Display the matched cars until a key is pressed")
}

// calibrate primes the configured blueprint from one still.
func calibrate(cfg *config.Config, path string, opts calibrateOptions, logger zerolog.Logger) (recognition.Catalog, error) {
	still, err := media.LoadImage(path)
	if err != nil {
		return nil, err
	}
	defer still.Close()

	calibrator := recognition.NewCalibrator(cfg.CalibrationParams(), logger.With().Str("image", path).Logger())
	calibration, err := calibrator.Calibrate(still, cfg.Blueprint())
	if err != nil {
		return nil, err
	}
	defer calibration.Close()

	if opts.annotated != "" || opts.show {
		labelled := make([]render.LabelledRegion, len(calibration.Regions))
		for i, r := range calibration.Regions {
			labelled[i] = render.LabelledRegion{Name: calibration.Catalog[i].Name, Region: r}
		}
		img := render.AnnotateRegions(calibration.Frame, labelled)
		defer img.Close()

		if opts.annotated != "" && !gocv.IMWrite(opts.annotated, img) {
			return nil, errors.Errorf("write %s", opts.annotated)
		}
		if opts.show {
			w := render.NewWindow("Car recognition", 0)
			w.ShowImage(img)
			_ = w.Close()
		}
	}

	return calibration.Catalog, nil
}
