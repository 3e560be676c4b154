package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/grafana/dskit/services"

	"github.com/zachfi/radiogo/modules/finder"
	"github.com/zachfi/radiogo/modules/player"
	"github.com/zachfi/radiogo/modules/recorder"
	"github.com/zachfi/radiogo/pkg/radiobrowser"
)

var module = "api"

type Finder interface {
	Search(ctx context.Context, query string) ([]radiobrowser.Station, error)
	SetQuery(q string)
	Snapshot() finder.State
	Lookup(id string) (radiobrowser.Station, bool)
}

type Player interface {
	Load(ctx context.Context, url, name string)
	Play(ctx context.Context) error
	Pause()
	Status() player.Status
	Subscribe() *player.Tap
	Unsubscribe(t *player.Tap)
}

type Recorder interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) (*recorder.Recording, error)
	Status() recorder.Status
}

type API struct {
	services.Service
	cfg    *Config
	logger *slog.Logger

	finder   Finder
	player   Player
	recorder Recorder
}

// New registers the API routes on router and returns the module service.
func New(cfg Config, router *mux.Router, f Finder, p Player, r Recorder, logger slog.Logger) (*API, error) {
	if router == nil {
		return nil, errors.New("api requires an HTTP router")
	}

	a := newAPI(cfg, logger.With("module", module), f, p, r)
	a.register(router)

	return a, nil
}

func newAPI(cfg Config, logger *slog.Logger, f Finder, p Player, r Recorder) *API {
	a := &API{
		cfg:      &cfg,
		logger:   logger,
		finder:   f,
		player:   p,
		recorder: r,
	}

	a.Service = services.NewIdleService(a.starting, nil)

	return a
}

func (a *API) starting(_ context.Context) error {
	a.logger.Info("serving api", "prefix", a.cfg.prefix())
	return nil
}

func (a *API) register(router *mux.Router) {
	p := a.cfg.prefix()

	router.HandleFunc(p+"/search", a.handleSearch).Methods(http.MethodGet)
	router.HandleFunc(p+"/stations", a.handleStations).Methods(http.MethodGet)
	router.HandleFunc(p+"/query", a.handleQuery).Methods(http.MethodPut)
	router.HandleFunc(p+"/stations/{id}/play", a.handleSelect).Methods(http.MethodPost)

	router.HandleFunc(p+"/player", a.handlePlayer).Methods(http.MethodGet)
	router.HandleFunc(p+"/player/play", a.handlePlay).Methods(http.MethodPost)
	router.HandleFunc(p+"/player/pause", a.handlePause).Methods(http.MethodPost)
	router.HandleFunc(p+"/player/listen", a.handleListen).Methods(http.MethodGet)

	router.HandleFunc(p+"/record", a.handleRecord).Methods(http.MethodGet)
	router.HandleFunc(p+"/record/start", a.handleRecordStart).Methods(http.MethodPost)
	router.HandleFunc(p+"/record/stop", a.handleRecordStop).Methods(http.MethodPost)
}

type stationsResponse struct {
	finder.State
	Phase string `json:"phase"`
}

func (a *API) stations() stationsResponse {
	s := a.finder.Snapshot()
	return stationsResponse{State: s, Phase: s.Phase().String()}
}

func (a *API) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")

	if _, err := a.finder.Search(r.Context(), q); err != nil {
		a.writeError(w, http.StatusBadGateway, err)
		return
	}

	a.writeJSON(w, http.StatusOK, a.stations())
}

func (a *API) handleStations(w http.ResponseWriter, _ *http.Request) {
	a.writeJSON(w, http.StatusOK, a.stations())
}

func (a *API) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query string `json:"query"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&req); err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}

	a.finder.SetQuery(req.Query)
	a.writeJSON(w, http.StatusOK, a.stations())
}

// handleSelect loads a station of the current results into the player.
func (a *API) handleSelect(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	st, ok := a.finder.Lookup(id)
	if !ok {
		a.writeError(w, http.StatusNotFound, errors.New("no such station in the current results"))
		return
	}

	a.player.Load(r.Context(), st.StreamURL(), st.Name)
	a.writeJSON(w, http.StatusOK, a.player.Status())
}

func (a *API) handlePlayer(w http.ResponseWriter, _ *http.Request) {
	a.writeJSON(w, http.StatusOK, a.player.Status())
}

func (a *API) handlePlay(w http.ResponseWriter, r *http.Request) {
	if err := a.player.Play(r.Context()); err != nil {
		if errors.Is(err, player.ErrNoStream) {
			a.writeError(w, http.StatusConflict, err)
			return
		}
		a.writeError(w, http.StatusBadGateway, err)
		return
	}

	a.writeJSON(w, http.StatusOK, a.player.Status())
}

func (a *API) handlePause(w http.ResponseWriter, _ *http.Request) {
	a.player.Pause()
	a.writeJSON(w, http.StatusOK, a.player.Status())
}

// handleListen relays the audio the player reads for as long as the client
// stays connected. It follows the player across pauses and station changes.
func (a *API) handleListen(w http.ResponseWriter, r *http.Request) {
	status := a.player.Status()
	if status.URL == "" {
		a.writeError(w, http.StatusConflict, player.ErrNoStream)
		return
	}

	rc := http.NewResponseController(w)
	// A listener stays connected far longer than the server's write timeout.
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		a.logger.Warn("unable to clear write deadline for listener", "err", err)
	}

	tap := a.player.Subscribe()
	defer a.player.Unsubscribe(tap)

	contentType := status.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "no-store")
	if status.Name != "" {
		w.Header().Set("icy-name", status.Name)
	}
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		a.logger.Error("streaming unsupported", "err", err)
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case chunk, ok := <-tap.C:
			if !ok {
				return
			}
			if _, err := w.Write(chunk); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}

func (a *API) handleRecord(w http.ResponseWriter, _ *http.Request) {
	a.writeJSON(w, http.StatusOK, a.recorder.Status())
}

func (a *API) handleRecordStart(w http.ResponseWriter, r *http.Request) {
	if err := a.recorder.Start(r.Context()); err != nil {
		if errors.Is(err, recorder.ErrNoStream) || errors.Is(err, recorder.ErrNotPlaying) {
			a.writeError(w, http.StatusConflict, err)
			return
		}
		a.writeError(w, http.StatusInternalServerError, err)
		return
	}

	a.writeJSON(w, http.StatusOK, a.recorder.Status())
}

// handleRecordStop ends the session and answers with the recording as a
// download. A failure to save the recording to disk does not withhold it.
func (a *API) handleRecordStop(w http.ResponseWriter, r *http.Request) {
	rec, err := a.recorder.Stop(r.Context())
	if rec == nil {
		if err != nil {
			a.writeError(w, http.StatusInternalServerError, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		a.logger.Warn("serving recording that failed to save", "file", rec.Name, "err", err)
	}

	contentType := rec.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": rec.Name}))
	w.Header().Set("Content-Length", strconv.Itoa(len(rec.Data)))
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write(rec.Data); err != nil {
		a.logger.Error("error sending recording", "file", rec.Name, "err", err)
	}
}

func (a *API) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Error("error encoding response", "err", err)
	}
}

func (a *API) writeError(w http.ResponseWriter, code int, err error) {
	if code >= http.StatusInternalServerError {
		a.logger.Error("request failed", "code", code, "err", err)
	}

	a.writeJSON(w, code, struct {
		Error string `json:"error"`
	}{Error: err.Error()})
}
