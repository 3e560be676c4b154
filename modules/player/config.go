package player

import (
	"flag"
	"fmt"

	"github.com/zachfi/zkit/pkg/util"
)

const (
	OutputNone    = "none"
	OutputSpeaker = "speaker"

	defaultTapBuffer  = 256
	defaultReadBuffer = 16 * 1024
)

type Config struct {
	Autoplay   bool   `yaml:"autoplay"`
	Output     string `yaml:"output,omitempty"`      // none or speaker, empty lets the target decide
	UserAgent  string `yaml:"user-agent,omitempty"`  // sent to stream servers, empty keeps the shoutcast default
	TapBuffer  int    `yaml:"tap-buffer,omitempty"`  // chunks a slow subscriber may lag behind before chunks are dropped
	ReadBuffer int    `yaml:"read-buffer,omitempty"` // bytes read from the stream per chunk
}

func (cfg *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	f.BoolVar(&cfg.Autoplay, util.PrefixConfig(prefix, "autoplay"), true, "Start playing as soon as a station is selected.")
	f.StringVar(&cfg.Output, util.PrefixConfig(prefix, "output"), "", "Local audio output, one of: none, speaker. Empty plays through the speaker for the tui target only. The speaker decodes MP3 streams only.")
	f.StringVar(&cfg.UserAgent, util.PrefixConfig(prefix, "user-agent"), "", "User-Agent sent to stream servers.")
	f.IntVar(&cfg.TapBuffer, util.PrefixConfig(prefix, "tap-buffer"), defaultTapBuffer, "Chunks buffered per subscriber before chunks are dropped for it.")
	f.IntVar(&cfg.ReadBuffer, util.PrefixConfig(prefix, "read-buffer"), defaultReadBuffer, "Bytes read from the stream per chunk.")
}

func (cfg *Config) Validate() error {
	switch cfg.Output {
	case "", OutputNone, OutputSpeaker:
	default:
		return fmt.Errorf("unknown player output %q", cfg.Output)
	}
	return nil
}
