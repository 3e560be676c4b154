package api

import (
	"flag"
	"strings"

	"github.com/zachfi/zkit/pkg/util"
)

type Config struct {
	PathPrefix string `yaml:"path-prefix,omitempty"`
}

func (cfg *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	f.StringVar(&cfg.PathPrefix, util.PrefixConfig(prefix, "path-prefix"), "/api", "Path prefix the API routes are mounted under.")
}

func (cfg *Config) prefix() string {
	p := strings.Trim(cfg.PathPrefix, "/")
	if p == "" {
		return ""
	}
	return "/" + p
}
