//go:build !noaudio

package player

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/hajimehoshi/go-mp3"
)

// speaker decodes MP3 streams and plays them on the default audio device.
// oto allows a single context per process, so the sample rate is fixed by the
// first stream played.
type speaker struct {
	logger *slog.Logger

	mu         sync.Mutex
	ctx        *oto.Context
	sampleRate int
	players    map[*oto.Player]struct{}
}

func newSpeaker(logger *slog.Logger) (Output, error) {
	return &speaker{
		logger:  logger.With("output", OutputSpeaker),
		players: make(map[*oto.Player]struct{}),
	}, nil
}

func (s *speaker) Play(tap *Tap, contentType string) {
	r := tap.Reader()

	if !isMP3(contentType) {
		s.logger.Warn("speaker output only supports MP3 streams", "content_type", contentType)
		_, _ = io.Copy(io.Discard, r)
		return
	}

	// NewDecoder blocks until the first frame arrives.
	decoder, err := mp3.NewDecoder(r)
	if err != nil {
		s.logger.Error("error decoding stream", "err", err)
		_, _ = io.Copy(io.Discard, r)
		return
	}

	ctx, err := s.context(decoder.SampleRate())
	if err != nil {
		s.logger.Error("error opening audio device", "err", err)
		_, _ = io.Copy(io.Discard, r)
		return
	}

	pl := ctx.NewPlayer(decoder)
	s.mu.Lock()
	s.players[pl] = struct{}{}
	s.mu.Unlock()

	pl.Play()
	for pl.IsPlaying() {
		time.Sleep(100 * time.Millisecond)
	}

	s.mu.Lock()
	delete(s.players, pl)
	s.mu.Unlock()

	if err := pl.Close(); err != nil {
		s.logger.Debug("error closing audio player", "err", err)
	}
}

func (s *speaker) context(sampleRate int) (*oto.Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx != nil {
		if sampleRate != s.sampleRate {
			return nil, fmt.Errorf("audio device opened at %d Hz, stream is %d Hz", s.sampleRate, sampleRate)
		}
		return s.ctx, nil
	}

	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 2,
		Format:       oto.FormatSignedInt16LE,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create oto context: %w", err)
	}
	<-ready

	s.ctx = ctx
	s.sampleRate = sampleRate
	return ctx, nil
}

func (s *speaker) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for pl := range s.players {
		pl.Pause()
	}
	if s.ctx != nil {
		return s.ctx.Suspend()
	}
	return nil
}

func isMP3(contentType string) bool {
	return strings.Contains(contentType, "mpeg") || strings.Contains(contentType, "mp3")
}
