package recorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/grafana/dskit/services"
)

var module = "recorder"

var (
	// ErrNoStream is returned by Start when the source has no station loaded.
	ErrNoStream = errors.New("no stream to record")
	// ErrNotPlaying is returned by Start when capturing the player's own
	// connection before it connected, so the encoding is still unknown.
	ErrNotPlaying = errors.New("stream is not playing")
)

const (
	labelStart = "Start Recording"
	labelStop  = "Stop Recording"
)

// Recording is a finished capture, ready to be downloaded.
type Recording struct {
	Name        string
	ContentType string
	Data        []byte
	StartedAt   time.Time
	StoppedAt   time.Time
}

// Sink receives every finished recording exactly once.
type Sink interface {
	Deliver(ctx context.Context, rec *Recording) error
}

// Status describes the recorder for a UI.
type Status struct {
	Recording bool      `json:"recording"`
	Label     string    `json:"label"`
	Session   string    `json:"session,omitempty"`
	Station   string    `json:"station,omitempty"`
	MIMEType  string    `json:"mime_type,omitempty"`
	StartedAt time.Time `json:"started_at"`
	Chunks    int       `json:"chunks"`
	Bytes     int       `json:"bytes"`
}

type session struct {
	id        string
	station   string
	mimeType  string
	startedAt time.Time
	capturer  AudioCapturer
	chunks    [][]byte
	size      int
}

type Recorder struct {
	services.Service
	cfg    *Config
	logger *slog.Logger
	source Source
	sink   Sink

	newCapturer func(Source) AudioCapturer
	now         func() time.Time

	// opMu serialises Start and Stop.
	opMu sync.Mutex

	mu        sync.Mutex
	recording bool
	session   *session
}

// New creates and returns a new Recorder capturing from src.
func New(cfg Config, src Source, logger slog.Logger) (*Recorder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	l := logger.With("module", module)

	var sink Sink
	if cfg.Dir != "" {
		sink = NewDirSink(cfg.Dir, l)
	}

	r := newRecorder(cfg, l, src, sink)
	r.newCapturer = func(s Source) AudioCapturer {
		return newCapturer(cfg.CaptureMode, s, cfg.FlushInterval, l)
	}

	return r, nil
}

func newRecorder(cfg Config, logger *slog.Logger, src Source, sink Sink) *Recorder {
	if len(cfg.MIMETypes) == 0 {
		cfg.MIMETypes = defaultMIMETypes
	}

	r := &Recorder{
		cfg:    &cfg,
		logger: logger,
		source: src,
		sink:   sink,
		now:    time.Now,
	}

	r.Service = services.NewIdleService(r.starting, r.stopping)

	return r
}

func (r *Recorder) starting(_ context.Context) error {
	r.logger.Info("recorder ready", "capture_mode", r.cfg.CaptureMode, "dir", r.cfg.Dir)
	return nil
}

// Start begins a recording session of the source's current station. Calling
// Start while a session is active does nothing. A failure to set up capture
// is logged and returned, and leaves the recorder inactive.
func (r *Recorder) Start(ctx context.Context) error {
	r.opMu.Lock()
	defer r.opMu.Unlock()

	if r.Recording() {
		return nil
	}

	err := r.start(ctx)
	if err != nil {
		metricRecordings.WithLabelValues("failed").Inc()
		r.logger.Error("error starting recording", "err", err)
	}
	return err
}

func (r *Recorder) start(ctx context.Context) error {
	if r.source.StreamURL() == "" {
		return ErrNoStream
	}

	c := r.newCapturer(r.source)
	if err := c.Open(ctx); err != nil {
		return err
	}
	mimeType := negotiate(r.cfg.MIMETypes, c)

	s := &session{
		id:        uuid.NewString(),
		station:   r.source.StationName(),
		mimeType:  mimeType,
		startedAt: r.now(),
		capturer:  c,
	}

	// Install the session before capture starts so no chunk is lost.
	r.mu.Lock()
	r.session = s
	r.mu.Unlock()

	c.OnChunk(func(b []byte) { r.appendChunk(s, b) })

	if err := c.Start(ctx, mimeType); err != nil {
		r.mu.Lock()
		r.session = nil
		r.mu.Unlock()
		_ = c.Stop()
		return err
	}

	r.mu.Lock()
	r.recording = true
	r.mu.Unlock()
	metricActive.Set(1)

	r.logger.Info("recording started", "session", s.id, "station", s.station, "mime_type", mimeType)

	return nil
}

func (r *Recorder) appendChunk(s *session, b []byte) {
	if len(b) == 0 {
		metricEmptyChunks.Inc()
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.session != s {
		return
	}
	s.chunks = append(s.chunks, b)
	s.size += len(b)
	metricRecordedBytes.Add(float64(len(b)))
}

// Stop ends the active session, hands the recording to the sink and returns
// it. Calling Stop without an active session does nothing and returns nil.
func (r *Recorder) Stop(ctx context.Context) (*Recording, error) {
	r.opMu.Lock()
	defer r.opMu.Unlock()

	r.mu.Lock()
	if !r.recording {
		r.mu.Unlock()
		return nil, nil
	}
	s := r.session
	r.mu.Unlock()

	// Stop flushes the capturer's final chunk into the session.
	if err := s.capturer.Stop(); err != nil {
		r.logger.Warn("error releasing capture", "session", s.id, "err", err)
	}

	r.mu.Lock()
	data := make([]byte, 0, s.size)
	for _, c := range s.chunks {
		data = append(data, c...)
	}
	s.chunks = nil
	s.size = 0
	r.session = nil
	r.recording = false
	r.mu.Unlock()
	metricActive.Set(0)

	if r.cfg.AlignFrames && canonicalType(s.mimeType) == "audio/mpeg" {
		data = alignMP3(data)
	}

	stoppedAt := r.now()
	rec := &Recording{
		Name:        FileName(s.station, stoppedAt, s.mimeType),
		ContentType: s.mimeType,
		Data:        data,
		StartedAt:   s.startedAt,
		StoppedAt:   stoppedAt,
	}

	r.logger.Info("recording stopped", "session", s.id, "file", rec.Name, "bytes", len(data), "duration", stoppedAt.Sub(s.startedAt))

	if r.sink != nil {
		if err := r.sink.Deliver(ctx, rec); err != nil {
			metricRecordings.WithLabelValues("failed").Inc()
			r.logger.Error("error saving recording", "file", rec.Name, "err", err)
			return rec, fmt.Errorf("failed to save recording: %w", err)
		}
	}
	metricRecordings.WithLabelValues("completed").Inc()

	return rec, nil
}

// Toggle stops an active session or starts a new one. The returned recording
// is non-nil only when a session was stopped.
func (r *Recorder) Toggle(ctx context.Context) (*Recording, error) {
	if r.Recording() {
		return r.Stop(ctx)
	}
	return nil, r.Start(ctx)
}

func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}

func (r *Recorder) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.recording || r.session == nil {
		return Status{Label: labelStart}
	}

	s := r.session
	return Status{
		Recording: true,
		Label:     labelStop,
		Session:   s.id,
		Station:   s.station,
		MIMEType:  s.mimeType,
		StartedAt: s.startedAt,
		Chunks:    len(s.chunks),
		Bytes:     s.size,
	}
}

// stopping releases an active capture. The unfinished recording is discarded.
func (r *Recorder) stopping(_ error) error {
	r.opMu.Lock()
	defer r.opMu.Unlock()

	r.mu.Lock()
	s := r.session
	r.session = nil
	r.recording = false
	r.mu.Unlock()

	if s == nil {
		return nil
	}

	metricActive.Set(0)
	metricRecordings.WithLabelValues("discarded").Inc()
	r.logger.Warn("discarding active recording", "session", s.id, "bytes", s.size)

	return s.capturer.Stop()
}
