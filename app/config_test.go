package app

import (
	"flag"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/zachfi/radiogo/modules/player"
	"github.com/zachfi/radiogo/modules/recorder"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "radiogo.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
target: tui
finder:
  limit: 10
recorder:
  capture-mode: stream
  dir: /tmp/recordings
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Target != TUI {
		t.Errorf("expected target tui, got %q", cfg.Target)
	}
	if cfg.Finder.Limit != 10 {
		t.Errorf("expected limit from file, got %d", cfg.Finder.Limit)
	}
	if cfg.Finder.Timeout != 10*time.Second {
		t.Errorf("expected default timeout, got %s", cfg.Finder.Timeout)
	}
	if !cfg.Player.Autoplay || cfg.Player.Output != "" {
		t.Errorf("unexpected player defaults %+v", cfg.Player)
	}
	if cfg.Recorder.CaptureMode != recorder.CaptureStream || cfg.Recorder.Dir != "/tmp/recordings" {
		t.Errorf("unexpected recorder config %+v", cfg.Recorder)
	}
	if len(cfg.Recorder.MIMETypes) == 0 || cfg.Recorder.MIMETypes[0] != "audio/mp4" {
		t.Errorf("expected default encodings, got %v", cfg.Recorder.MIMETypes)
	}
	if cfg.API.PathPrefix != "/api" {
		t.Errorf("expected default api prefix, got %q", cfg.API.PathPrefix)
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	tcs := []struct {
		name string
		path string
	}{
		{name: "missing file", path: filepath.Join(t.TempDir(), "missing.yaml")},
		{name: "unknown key", path: writeConfig(t, "finder:\n  nope: 1\n")},
		{name: "bad yaml", path: writeConfig(t, "finder: [\n")},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := LoadConfig(tc.path); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestModuleDependencies(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	a, err := New(Config{}, *logger)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	visible := a.ModuleManager.UserVisibleModuleNames()
	for _, m := range []string{Finder, Player, Recorder, API, TUI, All} {
		if !slices.Contains(visible, m) {
			t.Errorf("expected %s to be a selectable target", m)
		}
	}
	if slices.Contains(visible, Server) {
		t.Error("expected server to be hidden")
	}

	tcs := []struct {
		module   string
		expected []string
		excluded []string
	}{
		{module: All, expected: []string{API, Server, Finder, Player, Recorder}, excluded: []string{TUI}},
		{module: TUI, expected: []string{Finder, Player, Recorder}, excluded: []string{Server, API}},
		{module: Recorder, expected: []string{Player}, excluded: []string{Server, Finder}},
	}

	for _, tc := range tcs {
		deps := a.ModuleManager.DependenciesForModule(tc.module)
		for _, m := range tc.expected {
			if !slices.Contains(deps, m) {
				t.Errorf("expected %s to depend on %s, got %v", tc.module, m, deps)
			}
		}
		for _, m := range tc.excluded {
			if slices.Contains(deps, m) {
				t.Errorf("expected %s not to depend on %s, got %v", tc.module, m, deps)
			}
		}
	}
}

func testConfig(target string) Config {
	cfg := Config{}
	cfg.RegisterFlagsAndApplyDefaults("", flag.NewFlagSet("", flag.ContinueOnError))
	cfg.Target = target
	cfg.Server.HTTPListenAddress = "127.0.0.1"
	cfg.Server.HTTPListenPort = 0
	cfg.Server.GRPCListenAddress = "127.0.0.1"
	cfg.Server.GRPCListenPort = 0
	return cfg
}

func TestTargetDefaults(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tcs := []struct {
		name   string
		target string
		output string
		dir    string

		expectedOutput string
		expectedDir    string
	}{
		{name: "tui", target: TUI, expectedOutput: player.OutputSpeaker, expectedDir: "."},
		{name: "tui explicit", target: TUI, output: player.OutputNone, dir: "/srv/rec", expectedOutput: player.OutputNone, expectedDir: "/srv/rec"},
		{name: "all", target: All, expectedOutput: player.OutputNone, expectedDir: ""},
		{name: "all explicit", target: All, output: player.OutputSpeaker, expectedOutput: player.OutputSpeaker, expectedDir: ""},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig(tc.target)
			cfg.Player.Output = tc.output
			cfg.Recorder.Dir = tc.dir

			a, err := New(cfg, *logger)
			if err != nil {
				t.Fatalf("New failed: %v", err)
			}

			if got := a.playerConfig().Output; got != tc.expectedOutput {
				t.Errorf("expected output %q, got %q", tc.expectedOutput, got)
			}
			if got := a.recorderConfig().Dir; got != tc.expectedDir {
				t.Errorf("expected dir %q, got %q", tc.expectedDir, got)
			}
		})
	}
}

func TestInitModuleServices(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	a, err := New(testConfig(All), *logger)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	serviceMap, err := a.ModuleManager.InitModuleServices(All)
	if err != nil {
		t.Fatalf("InitModuleServices failed: %v", err)
	}
	t.Cleanup(a.Server.Shutdown)

	for _, m := range []string{Server, Finder, Player, Recorder, API} {
		if serviceMap[m] == nil {
			t.Errorf("expected a service for %s", m)
		}
	}
	if _, ok := serviceMap[TUI]; ok {
		t.Error("expected no terminal ui in server mode")
	}
	if a.finder == nil || a.player == nil || a.recorder == nil {
		t.Error("expected modules to be wired into the app")
	}
}
