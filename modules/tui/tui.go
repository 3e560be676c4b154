package tui

import (
	"context"
	"errors"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/grafana/dskit/modules"
	"github.com/grafana/dskit/services"
)

var module = "tui"

type TUI struct {
	services.Service
	cfg    *Config
	logger *slog.Logger

	finder   Finder
	player   Player
	recorder Recorder

	opts []tea.ProgramOption
}

// New creates the terminal UI module. Quitting the UI stops the process.
func New(cfg Config, f Finder, p Player, r Recorder, logger slog.Logger) (*TUI, error) {
	t := &TUI{
		cfg:      &cfg,
		logger:   logger.With("module", module),
		finder:   f,
		player:   p,
		recorder: r,
	}

	if cfg.AltScreen {
		t.opts = append(t.opts, tea.WithAltScreen())
	}

	t.Service = services.NewBasicService(nil, t.running, nil)

	return t, nil
}

func (t *TUI) running(ctx context.Context) error {
	m := NewModel(ctx, t.finder, t.player, t.recorder, t.cfg.RefreshInterval)

	opts := append([]tea.ProgramOption{tea.WithContext(ctx)}, t.opts...)
	p := tea.NewProgram(m, opts...)

	t.logger.Info("starting terminal ui")

	if _, err := p.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return err
	}

	t.logger.Info("terminal ui closed")

	return modules.ErrStopProcess
}
