package tui

import (
	"flag"
	"time"

	"github.com/zachfi/zkit/pkg/util"
)

type Config struct {
	AltScreen       bool          `yaml:"alt-screen"`
	LogFile         string        `yaml:"log-file,omitempty"`
	RefreshInterval time.Duration `yaml:"refresh-interval,omitempty"`
}

func (cfg *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	f.BoolVar(&cfg.AltScreen, util.PrefixConfig(prefix, "alt-screen"), true, "Run the terminal UI in the alternate screen buffer.")
	f.StringVar(&cfg.LogFile, util.PrefixConfig(prefix, "log-file"), "radiogo.log", "File the log is written to while the terminal UI owns the terminal.")
	f.DurationVar(&cfg.RefreshInterval, util.PrefixConfig(prefix, "refresh-interval"), 500*time.Millisecond, "How often player and recorder status is redrawn.")
}
