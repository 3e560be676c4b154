package player

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/grafana/dskit/services"

	"github.com/zachfi/radiogo/pkg/shoutcast"
)

var module = "player"

// ErrNoStream is returned when playback is requested before a station was loaded.
var ErrNoStream = errors.New("no stream loaded")

type State int

const (
	Paused State = iota
	Playing
)

func (s State) String() string {
	if s == Playing {
		return "playing"
	}
	return "paused"
}

// Status is a snapshot of the player.
type Status struct {
	URL         string `json:"url"`
	Name        string `json:"name"`
	State       string `json:"state"`
	ContentType string `json:"content_type,omitempty"`
	NowPlaying  string `json:"now_playing,omitempty"`
}

// OpenFunc connects to a stream. onTitle is called from the reading goroutine
// whenever the station announces a new title.
type OpenFunc func(ctx context.Context, url string, onTitle func(string)) (rc io.ReadCloser, contentType string, err error)

// Output plays the audio of one connection. Play returns once the tap is
// closed.
type Output interface {
	Play(tap *Tap, contentType string)
	Close() error
}

type connection struct {
	rc      io.ReadCloser
	cancel  context.CancelFunc
	done    chan struct{}
	closing atomic.Bool
}

type Player struct {
	services.Service
	cfg    *Config
	logger *slog.Logger
	open   OpenFunc
	output Output

	baseCtx    context.Context
	baseCancel context.CancelFunc

	// opMu serialises Load, Play and Pause.
	opMu sync.Mutex

	// mu guards the fields below and the tap set during fan-out.
	mu          sync.Mutex
	url         string
	name        string
	state       State
	contentType string
	title       string
	conn        *connection
	taps        map[*Tap]struct{}
}

// New creates and returns a new Player.
func New(cfg Config, logger slog.Logger) (*Player, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	l := logger.With("module", module)

	var out Output
	if cfg.Output == OutputSpeaker {
		var err error
		out, err = newSpeaker(l)
		if err != nil {
			return nil, fmt.Errorf("failed to init speaker: %w", err)
		}
	}

	return newPlayer(cfg, l, shoutcastOpener(cfg.UserAgent), out), nil
}

func newPlayer(cfg Config, logger *slog.Logger, open OpenFunc, out Output) *Player {
	if cfg.TapBuffer <= 0 {
		cfg.TapBuffer = defaultTapBuffer
	}
	if cfg.ReadBuffer <= 0 {
		cfg.ReadBuffer = defaultReadBuffer
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Player{
		cfg:        &cfg,
		logger:     logger,
		open:       open,
		output:     out,
		baseCtx:    ctx,
		baseCancel: cancel,
		taps:       make(map[*Tap]struct{}),
	}

	p.Service = services.NewIdleService(nil, p.stopping)

	return p
}

func shoutcastOpener(userAgent string) OpenFunc {
	return func(ctx context.Context, url string, onTitle func(string)) (io.ReadCloser, string, error) {
		var opts []shoutcast.Option
		if userAgent != "" {
			opts = append(opts, shoutcast.WithUserAgent(userAgent))
		}

		s, err := shoutcast.Open(ctx, url, opts...)
		if err != nil {
			return nil, "", err
		}
		s.MetadataCallbackFunc = func(m *shoutcast.Metadata) {
			onTitle(m.StreamTitle)
		}
		return s, s.ContentType, nil
	}
}

// Load binds the player to a new stream, replacing the current one. With
// autoplay enabled playback starts right away; a failure to start is logged
// and leaves the player paused with Play still available.
func (p *Player) Load(ctx context.Context, url, name string) {
	p.opMu.Lock()
	defer p.opMu.Unlock()

	p.disconnect()

	p.mu.Lock()
	p.url = url
	p.name = name
	p.title = ""
	p.contentType = ""
	closed := 0
	for t := range p.taps {
		if t.station {
			delete(p.taps, t)
			close(t.ch)
			closed++
		}
	}
	p.mu.Unlock()

	if closed > 0 {
		p.logger.Debug("closed listeners of the previous station", "listeners", closed)
	}
	p.logger.Info("loaded station", "name", name, "url", url)

	if !p.cfg.Autoplay {
		return
	}
	if err := p.connect(ctx); err != nil {
		p.logger.Error("error auto-playing stream", "url", url, "err", err)
	}
}

// Play connects to the loaded stream. Playing an already playing stream is a
// no-op.
func (p *Player) Play(ctx context.Context) error {
	p.opMu.Lock()
	defer p.opMu.Unlock()

	return p.connect(ctx)
}

// Pause disconnects from the stream. The station stays loaded.
func (p *Player) Pause() {
	p.opMu.Lock()
	defer p.opMu.Unlock()

	p.disconnect()
}

func (p *Player) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()

	return Status{
		URL:         p.url,
		Name:        p.name,
		State:       p.state.String(),
		ContentType: p.contentType,
		NowPlaying:  p.title,
	}
}

// PlaybackState reports whether the player is connected.
func (p *Player) PlaybackState() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// StreamURL returns the URL of the loaded station.
func (p *Player) StreamURL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

// StationName returns the display name of the loaded station.
func (p *Player) StationName() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.name
}

// ContentType returns the codec of the current connection, empty while paused
// before the first connection.
func (p *Player) ContentType() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.contentType
}

// Subscribe returns a tap receiving every chunk read from here on, across
// reconnects and station changes, until Unsubscribe.
func (p *Player) Subscribe() *Tap {
	return p.subscribe(newTap(p.cfg.TapBuffer))
}

// Listen returns the chunks of the loaded station. The channel is closed when
// another station is loaded or the returned function is called.
func (p *Player) Listen() (<-chan []byte, func()) {
	t := newTap(p.cfg.TapBuffer)
	t.station = true
	p.subscribe(t)
	return t.C, func() { p.Unsubscribe(t) }
}

func (p *Player) subscribe(t *Tap) *Tap {
	p.mu.Lock()
	p.taps[t] = struct{}{}
	p.mu.Unlock()

	return t
}

// Unsubscribe closes the tap. It is safe to call more than once.
func (p *Player) Unsubscribe(t *Tap) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.taps[t]; ok {
		delete(p.taps, t)
		close(t.ch)
	}
}

// connect must be called with opMu held.
func (p *Player) connect(ctx context.Context) error {
	p.mu.Lock()
	url := p.url
	playing := p.state == Playing
	p.mu.Unlock()

	if url == "" {
		return ErrNoStream
	}
	if playing {
		return nil
	}

	// The connection outlives the caller's request, but a caller giving up
	// while we dial aborts the dial.
	connCtx, cancel := context.WithCancel(p.baseCtx)
	stop := context.AfterFunc(ctx, cancel)
	rc, contentType, err := p.open(connCtx, url, p.setTitle)
	stop()
	if err != nil {
		cancel()
		metricPlayFailures.Inc()
		return fmt.Errorf("failed to open stream: %w", err)
	}

	c := &connection{rc: rc, cancel: cancel, done: make(chan struct{})}

	p.mu.Lock()
	p.conn = c
	p.state = Playing
	p.contentType = contentType
	p.mu.Unlock()
	metricPlaying.Set(1)

	p.logger.Info("playing", "url", url, "content_type", contentType)

	if p.output != nil {
		tap := p.Subscribe()
		go p.output.Play(tap, contentType)
		go func() {
			<-c.done
			p.Unsubscribe(tap)
		}()
	}

	go p.pump(c)

	return nil
}

// disconnect must be called with opMu held.
func (p *Player) disconnect() {
	p.mu.Lock()
	c := p.conn
	p.mu.Unlock()

	if c == nil {
		return
	}

	c.closing.Store(true)
	c.cancel()
	if err := c.rc.Close(); err != nil {
		p.logger.Debug("error closing stream", "err", err)
	}
	<-c.done
}

// pump reads the connection and fans chunks out to the taps until the stream
// ends or is closed.
func (p *Player) pump(c *connection) {
	defer func() {
		c.cancel()
		_ = c.rc.Close()

		p.mu.Lock()
		if p.conn == c {
			p.conn = nil
			p.state = Paused
		}
		p.mu.Unlock()
		metricPlaying.Set(0)
		close(c.done)
	}()

	buf := make([]byte, p.cfg.ReadBuffer)
	for {
		n, err := c.rc.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			metricStreamBytes.Add(float64(n))
			p.broadcast(chunk)
		}

		if err != nil {
			switch {
			case c.closing.Load():
				p.logger.Debug("stream closed")
			case errors.Is(err, io.EOF):
				p.logger.Info("stream ended")
			default:
				p.logger.Error("error reading stream", "err", err)
			}
			return
		}
	}
}

func (p *Player) broadcast(chunk []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for t := range p.taps {
		select {
		case t.ch <- chunk:
		default:
			metricDroppedChunks.Inc()
		}
	}
}

func (p *Player) setTitle(title string) {
	p.mu.Lock()
	p.title = title
	p.mu.Unlock()

	p.logger.Info("now listening to", "title", title)
}

func (p *Player) stopping(_ error) error {
	p.logger.Info("stopping")

	p.opMu.Lock()
	p.disconnect()
	p.opMu.Unlock()
	p.baseCancel()

	p.mu.Lock()
	for t := range p.taps {
		delete(p.taps, t)
		close(t.ch)
	}
	p.mu.Unlock()

	if p.output != nil {
		return p.output.Close()
	}
	return nil
}
