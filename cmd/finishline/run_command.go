package main

import (
	"github.com/spf13/cobra"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var opts calibrateOptions

	cmd := &cobra.Command{
		Use:   "run <calibration-image> <video>...",
		Short: "Calibrate from a photo, then track every video",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			catalog, err := calibrate(cfg, args[0], opts, ctx.logger)
			if err != nil {
				return err
			}
			return track(cmd, ctx, cfg, catalog, args[1:])
		},
	}

	addCalibrationFlags(cmd, &opts)
	addRunFlags(cmd)
	return cmd
}
