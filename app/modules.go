package app

import (
	"context"
	"fmt"

	"github.com/grafana/dskit/modules"
	"github.com/grafana/dskit/server"
	"github.com/grafana/dskit/services"
	"github.com/pkg/errors"

	"github.com/zachfi/radiogo/modules/api"
	"github.com/zachfi/radiogo/modules/finder"
	"github.com/zachfi/radiogo/modules/player"
	"github.com/zachfi/radiogo/modules/recorder"
	"github.com/zachfi/radiogo/modules/tui"
)

const (
	Server string = "server"

	Finder   string = "finder"
	Player   string = "player"
	Recorder string = "recorder"

	API string = "api"
	TUI string = "tui"

	All string = "all"
)

func (a *App) setupModuleManager() error {
	mm := modules.NewManager(a.kitLogger)
	mm.RegisterModule(Server, a.initServer, modules.UserInvisibleModule)

	mm.RegisterModule(Finder, a.initFinder)
	mm.RegisterModule(Player, a.initPlayer)
	mm.RegisterModule(Recorder, a.initRecorder)
	mm.RegisterModule(API, a.initAPI)
	mm.RegisterModule(TUI, a.initTUI)

	mm.RegisterModule(All, nil)

	deps := map[string][]string{
		// Server:       nil,
		// Finder:       nil,
		// Player:       nil,
		Recorder: {Player},

		API: {Server, Finder, Player, Recorder},
		TUI: {Finder, Player, Recorder},

		All: {API},
	}

	for mod, targets := range deps {
		if err := mm.AddDependency(mod, targets...); err != nil {
			return err
		}
	}

	a.ModuleManager = mm

	return nil
}

func (a *App) initFinder() (services.Service, error) {
	f, err := finder.New(a.cfg.Finder, a.logger)
	if err != nil {
		return nil, errors.Wrap(err, "unable to init finder")
	}

	a.finder = f
	return f, nil
}

// playerConfig resolves the target dependent player defaults.
func (a *App) playerConfig() player.Config {
	cfg := a.cfg.Player
	if cfg.Output == "" {
		cfg.Output = player.OutputNone
		// The terminal UI has no playback of its own.
		if a.cfg.Target == TUI {
			cfg.Output = player.OutputSpeaker
		}
	}
	return cfg
}

func (a *App) initPlayer() (services.Service, error) {
	p, err := player.New(a.playerConfig(), a.logger)
	if err != nil {
		return nil, errors.Wrap(err, "unable to init player")
	}

	a.player = p
	return p, nil
}

// recorderConfig resolves the target dependent recorder defaults.
func (a *App) recorderConfig() recorder.Config {
	cfg := a.cfg.Recorder
	// The terminal UI has no download, so recordings always land on disk.
	if a.cfg.Target == TUI && cfg.Dir == "" {
		cfg.Dir = "."
	}
	return cfg
}

func (a *App) initRecorder() (services.Service, error) {
	r, err := recorder.New(a.recorderConfig(), a.player, a.logger)
	if err != nil {
		return nil, errors.Wrap(err, "unable to init recorder")
	}

	a.recorder = r
	return r, nil
}

func (a *App) initAPI() (services.Service, error) {
	s, err := api.New(a.cfg.API, a.Server.HTTP, a.finder, a.player, a.recorder, a.logger)
	if err != nil {
		return nil, errors.Wrap(err, "unable to init api")
	}

	return s, nil
}

func (a *App) initTUI() (services.Service, error) {
	t, err := tui.New(a.cfg.TUI, a.finder, a.player, a.recorder, a.logger)
	if err != nil {
		return nil, errors.Wrap(err, "unable to init tui")
	}

	return t, nil
}

func (a *App) initServer() (services.Service, error) {
	a.cfg.Server.MetricsNamespace = metricsNamespace
	a.cfg.Server.ExcludeRequestInLog = true
	a.cfg.Server.RegisterInstrumentation = true
	a.cfg.Server.Log = a.kitLogger

	server, err := server.New(a.cfg.Server)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create server")
	}

	servicesToWaitFor := func() []services.Service {
		svs := []services.Service(nil)
		for m, s := range a.serviceMap {
			// Server should not wait for itself.
			if m != Server {
				svs = append(svs, s)
			}
		}

		return svs
	}

	a.Server = server

	serverDone := make(chan error, 1)

	runFn := func(ctx context.Context) error {
		go func() {
			defer close(serverDone)
			serverDone <- server.Run()
		}()

		select {
		case <-ctx.Done():
			return nil
		case err := <-serverDone:
			if err != nil {
				return err
			}

			return fmt.Errorf("server stopped unexpectedly")
		}
	}

	stoppingFn := func(_ error) error {
		// wait until all modules are done, and then shutdown server.
		for _, s := range servicesToWaitFor() {
			_ = s.AwaitTerminated(context.Background())
		}

		// shutdown HTTP and gRPC servers (this also unblocks Run)
		server.Shutdown()

		// if not closed yet, wait until server stops.
		<-serverDone
		a.logger.Info("server stopped")
		return nil
	}

	return services.NewBasicService(nil, runFn, stoppingFn), nil
}
