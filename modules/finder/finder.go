package finder

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/grafana/dskit/services"

	"github.com/zachfi/radiogo/pkg/radiobrowser"
)

var module = "finder"

// Phase distinguishes a finder that has not searched yet from one whose last
// search found nothing.
type Phase int

const (
	NotSearched Phase = iota
	NoResults
	HasResults
)

func (p Phase) String() string {
	switch p {
	case NoResults:
		return "no-results"
	case HasResults:
		return "results"
	default:
		return "not-searched"
	}
}

// Directory looks stations up by name.
type Directory interface {
	Search(ctx context.Context, q radiobrowser.Query) ([]radiobrowser.Station, error)
}

// State is a snapshot of the finder as a UI would render it.
type State struct {
	Query    string                 `json:"query"`
	Searched bool                   `json:"searched"`
	Stations []radiobrowser.Station `json:"stations"`
}

func (s State) Phase() Phase {
	switch {
	case !s.Searched:
		return NotSearched
	case len(s.Stations) == 0:
		return NoResults
	default:
		return HasResults
	}
}

type Finder struct {
	services.Service
	cfg       *Config
	logger    *slog.Logger
	directory Directory

	mu       sync.Mutex
	query    string
	searched bool
	stations []radiobrowser.Station
}

// New creates and returns a new Finder backed by the radio-browser directory.
func New(cfg Config, logger slog.Logger) (*Finder, error) {
	l := logger.With("module", module)
	return newFinder(cfg, l, radiobrowser.New(cfg.DirectoryURL, cfg.UserAgent, l)), nil
}

func newFinder(cfg Config, logger *slog.Logger, directory Directory) *Finder {
	if cfg.Limit <= 0 {
		cfg.Limit = defaultLimit
	}

	f := &Finder{
		cfg:       &cfg,
		logger:    logger,
		directory: directory,
	}

	f.Service = services.NewIdleService(f.starting, nil)

	return f
}

func (f *Finder) starting(_ context.Context) error {
	f.logger.Info("using station directory", "url", f.cfg.DirectoryURL, "limit", f.cfg.Limit)
	return nil
}

// Search looks up stations whose name matches query and returns them sorted
// by country, state and name. A failed lookup is logged and returned as an
// error with no stations; the finder state is not modified in that case. On
// a non-empty result the stored query is cleared for the next search.
func (f *Finder) Search(ctx context.Context, query string) ([]radiobrowser.Station, error) {
	if f.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	stations, err := f.directory.Search(ctx, radiobrowser.Query{Name: query, Limit: f.cfg.Limit})
	metricSearchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metricSearches.WithLabelValues("error").Inc()
		f.logger.Error("error searching for radio stations", "query", query, "err", err)
		return nil, err
	}

	sortStations(stations)

	f.mu.Lock()
	f.stations = stations
	f.searched = true
	if len(stations) > 0 {
		f.query = ""
	} else {
		f.query = query
	}
	f.mu.Unlock()

	if len(stations) == 0 {
		metricSearches.WithLabelValues("empty").Inc()
	} else {
		metricSearches.WithLabelValues("ok").Inc()
	}
	f.logger.Debug("search complete", "query", query, "results", len(stations))

	return stations, nil
}

// SetQuery records an edit of the search input. Editing forgets the previous
// search, so the finder reads as not searched until the next Search.
func (f *Finder) SetQuery(q string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.query = q
	f.searched = false
	f.stations = nil
}

// Snapshot returns a copy of the current query and results.
func (f *Finder) Snapshot() State {
	f.mu.Lock()
	defer f.mu.Unlock()

	stations := make([]radiobrowser.Station, len(f.stations))
	copy(stations, f.stations)

	return State{
		Query:    f.query,
		Searched: f.searched,
		Stations: stations,
	}
}

// Lookup finds a station of the current result list by ID.
func (f *Finder) Lookup(id string) (radiobrowser.Station, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, s := range f.stations {
		if s.ID == id {
			return s, true
		}
	}
	return radiobrowser.Station{}, false
}
