package recorder

import (
	"flag"
	"fmt"
	"time"

	"github.com/grafana/dskit/flagext"
	"github.com/zachfi/zkit/pkg/util"
)

const (
	CaptureTap    = "tap"
	CaptureStream = "stream"

	defaultFlushInterval = time.Second
)

// defaultMIMETypes is the order in which output encodings are tried.
var defaultMIMETypes = []string{
	"audio/mp4",
	"audio/mpeg",
	"audio/aac",
	"audio/ogg",
	"audio/webm",
	"audio/x-wav",
}

type Config struct {
	CaptureMode   string                 `yaml:"capture-mode,omitempty"`
	FlushInterval time.Duration          `yaml:"flush-interval,omitempty"`
	MIMETypes     flagext.StringSliceCSV `yaml:"mime-types,omitempty"`
	Dir           string                 `yaml:"dir,omitempty"`
	AlignFrames   bool                   `yaml:"align-mp3-frames,omitempty"`
}

func (cfg *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	cfg.MIMETypes = append(flagext.StringSliceCSV(nil), defaultMIMETypes...)

	f.StringVar(&cfg.CaptureMode, util.PrefixConfig(prefix, "capture-mode"), CaptureTap,
		"How audio is captured: tap shares the player's connection, stream opens a dedicated connection to the station.")
	f.DurationVar(&cfg.FlushInterval, util.PrefixConfig(prefix, "flush-interval"), defaultFlushInterval, "Interval at which captured audio is handed to the recorder as one chunk.")
	f.Var(&cfg.MIMETypes, util.PrefixConfig(prefix, "mime-types"), "Comma separated output encodings in order of preference. The first one the station's codec satisfies is used.")
	f.StringVar(&cfg.Dir, util.PrefixConfig(prefix, "dir"), "", "Directory finished recordings are saved to. Empty disables saving; recordings are then only available as HTTP downloads.")
	f.BoolVar(&cfg.AlignFrames, util.PrefixConfig(prefix, "align-mp3-frames"), false, "Drop the bytes before the first frame of an MP3 recording.")
}

func (cfg *Config) Validate() error {
	switch cfg.CaptureMode {
	case "", CaptureTap, CaptureStream:
	default:
		return fmt.Errorf("unknown capture mode %q", cfg.CaptureMode)
	}
	if cfg.FlushInterval < 0 {
		return fmt.Errorf("flush interval must not be negative")
	}
	return nil
}
