package main

import (
	"strings"
	"sync"

	"github.com/nvr-ai/finishline/config"
	"github.com/nvr-ai/finishline/logging"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type commandContext struct {
	configFlag *string
	viper      *viper.Viper

	configOnce sync.Once
	config     *config.Config
	configErr  error
	logger     zerolog.Logger
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		viper:      config.New(),
		logger:     zerolog.Nop(),
	}
}

// flagKeys maps command-line flags to the config keys they override.
var flagKeys = map[string]string{
	"log-level":  "log.level",
	"log-pretty": "log.pretty",
	"parallel":   "run.parallelism",
	"display":    "run.display",
	"snapshots":  "run.snapshot_dir",
}

// bindFlags lets the flags of the executing command override config keys.
// Commands share flag names, so binding happens once the command is known.
func (c *commandContext) bindFlags(flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		if f := flags.Lookup(name); f != nil {
			if err := c.viper.BindPFlag(key, f); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, err := config.Load(c.viper, path)
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.logger = logging.Init(cfg.Log.Level, cfg.Log.Pretty)
		if used := c.viper.ConfigFileUsed(); used != "" {
			c.logger.Debug().Str("file", used).Msg("config loaded")
		}
	})
	return c.config, c.configErr
}
