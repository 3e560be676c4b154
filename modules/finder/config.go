package finder

import (
	"flag"
	"time"

	"github.com/zachfi/zkit/pkg/util"

	"github.com/zachfi/radiogo/pkg/radiobrowser"
)

const (
	defaultLimit   = 30
	defaultTimeout = 10 * time.Second
)

type Config struct {
	DirectoryURL string        `yaml:"directory-url,omitempty"`
	UserAgent    string        `yaml:"user-agent,omitempty"`
	Limit        int           `yaml:"limit,omitempty"`   // maximum stations returned per search
	Timeout      time.Duration `yaml:"timeout,omitempty"` // per search, 0 disables
}

func (cfg *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	f.StringVar(&cfg.DirectoryURL, util.PrefixConfig(prefix, "directory-url"), radiobrowser.DefaultBaseURL, "Base URL of the radio-browser directory API.")
	f.StringVar(&cfg.UserAgent, util.PrefixConfig(prefix, "user-agent"), radiobrowser.DefaultUserAgent, "User-Agent sent to the directory.")
	f.IntVar(&cfg.Limit, util.PrefixConfig(prefix, "limit"), defaultLimit, "Maximum number of stations returned by one search.")
	f.DurationVar(&cfg.Timeout, util.PrefixConfig(prefix, "timeout"), defaultTimeout,
		"Timeout for one directory lookup. A lookup that hangs longer is abandoned and reported as a failed search.")
}
