package app

import (
	"flag"
	"os"
	"path/filepath"

	"github.com/grafana/dskit/flagext"
	"github.com/grafana/dskit/server"
	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v2"

	"github.com/zachfi/zkit/pkg/tracing"

	"github.com/zachfi/radiogo/modules/api"
	"github.com/zachfi/radiogo/modules/finder"
	"github.com/zachfi/radiogo/modules/player"
	"github.com/zachfi/radiogo/modules/recorder"
	"github.com/zachfi/radiogo/modules/tui"
)

type Config struct {
	Target   string          `yaml:"target"`
	LogLevel string          `yaml:"log-level,omitempty"`
	Tracing  tracing.Config  `yaml:"tracing,omitempty"`
	Server   server.Config   `yaml:"server,omitempty"`
	Finder   finder.Config   `yaml:"finder,omitempty"`
	Player   player.Config   `yaml:"player,omitempty"`
	Recorder recorder.Config `yaml:"recorder,omitempty"`
	API      api.Config      `yaml:"api,omitempty"`
	TUI      tui.Config      `yaml:"tui,omitempty"`
}

// LoadConfig receives a file path for a configuration to load.
func LoadConfig(file string) (Config, error) {
	filename, _ := filepath.Abs(file)

	config := Config{}
	config.RegisterFlagsAndApplyDefaults("", flag.NewFlagSet("", flag.ContinueOnError))

	err := loadYamlFile(filename, &config)
	if err != nil {
		return config, errors.Wrap(err, "failed to load yaml file")
	}

	return config, nil
}

// loadYamlFile unmarshals a YAML file into the received interface{} or returns an error.
func loadYamlFile(filename string, d interface{}) error {
	yamlFile, err := os.ReadFile(filename)
	if err != nil {
		return err
	}

	return yaml.UnmarshalStrict(yamlFile, d)
}

func (c *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	f.StringVar(&c.Target, "target", All, "Module to run: all (HTTP API), tui (terminal UI) or a single module.")
	f.StringVar(&c.LogLevel, "log.level", "info", "Log level, one of: debug, info, warn, error.")

	flagext.DefaultValues(&c.Server)
	f.IntVar(&c.Server.HTTPListenPort, "server.http-listen-port", 3030, "HTTP server listen port.")
	f.IntVar(&c.Server.GRPCListenPort, "server.grpc-listen-port", 9090, "gRPC server listen port.")

	c.Tracing.RegisterFlagsAndApplyDefaults("tracing", f)
	c.Finder.RegisterFlagsAndApplyDefaults("finder", f)
	c.Player.RegisterFlagsAndApplyDefaults("player", f)
	c.Recorder.RegisterFlagsAndApplyDefaults("recorder", f)
	c.API.RegisterFlagsAndApplyDefaults("api", f)
	c.TUI.RegisterFlagsAndApplyDefaults("tui", f)
}
