package recorder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/zachfi/radiogo/pkg/shoutcast"
)

// Source is the live stream a recorder captures from.
type Source interface {
	StreamURL() string
	StationName() string
	ContentType() string
	// Listen returns the chunks the source plays and a function to stop
	// listening, which closes the channel.
	Listen() (<-chan []byte, func())
}

// AudioCapturer is one way of capturing the audio of a Source. Open connects
// to the audio, after which Supported answers for what will be captured. A
// capturer hands the recorder one chunk per flush interval through the
// OnChunk callback; a chunk may be empty when nothing arrived in that
// interval. Stop releases an opened or started capture. After Stop returns,
// the final chunk has been delivered and OnChunk is not called again.
type AudioCapturer interface {
	Open(ctx context.Context) error
	Supported(mimeType string) bool
	OnChunk(fn func([]byte))
	Start(ctx context.Context, mimeType string) error
	Stop() error
}

func newCapturer(mode string, src Source, interval time.Duration, logger *slog.Logger) AudioCapturer {
	if mode == CaptureStream {
		return &streamCapturer{src: src, interval: interval, logger: logger, open: shoutcast.Open}
	}
	return &tapCapturer{src: src, interval: interval}
}

// batch collects bytes from in and emits them every interval. When in is
// closed the remainder is emitted and batch returns.
func batch(in <-chan []byte, interval time.Duration, emit func([]byte)) {
	var pending []byte

	var tick <-chan time.Time
	if interval > 0 {
		t := time.NewTicker(interval)
		defer t.Stop()
		tick = t.C
	}

	for {
		select {
		case b, ok := <-in:
			if !ok {
				if len(pending) > 0 {
					emit(pending)
				}
				return
			}
			if interval <= 0 {
				emit(b)
				continue
			}
			pending = append(pending, b...)
		case <-tick:
			emit(pending)
			pending = nil
		}
	}
}

// tapCapturer listens to the player's own connection, so the recording is
// exactly what is being played. It ends with the station.
type tapCapturer struct {
	src         Source
	interval    time.Duration
	contentType string
	onChunk     func([]byte)

	stop func()
	done chan struct{}
}

// Open fixes the encoding to the one the player is receiving. A player that
// never connected to its station cannot tell.
func (c *tapCapturer) Open(context.Context) error {
	c.contentType = c.src.ContentType()
	if c.contentType == "" {
		return ErrNotPlaying
	}
	return nil
}

func (c *tapCapturer) Supported(mimeType string) bool {
	return sameEncoding(c.contentType, mimeType)
}

func (c *tapCapturer) OnChunk(fn func([]byte)) { c.onChunk = fn }

func (c *tapCapturer) Start(_ context.Context, _ string) error {
	if c.done != nil {
		return errors.New("capture already started")
	}
	if c.onChunk == nil {
		return errors.New("no chunk handler")
	}

	in, stop := c.src.Listen()
	c.stop = stop
	c.done = make(chan struct{})

	go func() {
		defer close(c.done)
		batch(in, c.interval, c.onChunk)
	}()

	return nil
}

func (c *tapCapturer) Stop() error {
	if c.done == nil {
		return nil
	}
	c.stop()
	<-c.done
	return nil
}

type openFunc func(ctx context.Context, url string, opts ...shoutcast.Option) (*shoutcast.Stream, error)

// streamCapturer opens a dedicated connection to the station, independent of
// the player's playback state.
type streamCapturer struct {
	src      Source
	interval time.Duration
	logger   *slog.Logger
	open     openFunc
	onChunk  func([]byte)

	mu          sync.Mutex
	stream      *shoutcast.Stream
	contentType string
	cancel      context.CancelFunc
	closing     bool
	done        chan struct{}
}

// Open connects to the station. The encoding is the one this connection
// announces.
func (c *streamCapturer) Open(ctx context.Context) error {
	c.mu.Lock()
	opened := c.stream != nil
	c.mu.Unlock()
	if opened {
		return errors.New("capture already opened")
	}

	url := c.src.StreamURL()
	if url == "" {
		return errors.New("no stream to capture")
	}

	// The capture outlives the caller; the caller's context only bounds the dial.
	streamCtx, cancel := context.WithCancel(context.Background())
	stop := context.AfterFunc(ctx, cancel)
	s, err := c.open(streamCtx, url)
	stop()
	if err != nil {
		cancel()
		return fmt.Errorf("failed to open capture stream: %w", err)
	}

	c.mu.Lock()
	c.stream = s
	c.contentType = s.ContentType
	c.cancel = cancel
	c.mu.Unlock()

	return nil
}

func (c *streamCapturer) Supported(mimeType string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return sameEncoding(c.contentType, mimeType)
}

func (c *streamCapturer) OnChunk(fn func([]byte)) { c.onChunk = fn }

func (c *streamCapturer) Start(_ context.Context, _ string) error {
	if c.onChunk == nil {
		return errors.New("no chunk handler")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stream == nil {
		return errors.New("capture not opened")
	}
	if c.done != nil {
		return errors.New("capture already started")
	}

	done := make(chan struct{})
	c.done = done

	in := make(chan []byte, 64)
	go c.read(c.stream, in)
	go func() {
		defer close(done)
		batch(in, c.interval, c.onChunk)
	}()

	return nil
}

func (c *streamCapturer) read(r io.Reader, out chan<- []byte) {
	defer close(out)

	buf := make([]byte, 16*1024)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			out <- chunk
		}
		if err != nil {
			c.mu.Lock()
			closing := c.closing
			c.mu.Unlock()
			if !closing && !errors.Is(err, io.EOF) {
				c.logger.Error("error reading capture stream", "err", err)
			}
			return
		}
	}
}

func (c *streamCapturer) Stop() error {
	c.mu.Lock()
	s := c.stream
	if s == nil {
		c.mu.Unlock()
		return nil
	}
	c.stream = nil
	c.closing = true
	done := c.done
	cancel := c.cancel
	c.mu.Unlock()

	cancel()
	err := s.Close()
	if done != nil {
		<-done
	}

	return err
}
