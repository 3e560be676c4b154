package recorder

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/grafana/dskit/services"

	"github.com/zachfi/radiogo/modules/player"
)

// stations serves an MP3 station at /a and an AAC station at /b.
func stations(t *testing.T) *httptest.Server {
	t.Helper()

	serve := func(contentType, frame string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", contentType)
			w.WriteHeader(http.StatusOK)

			ticker := time.NewTicker(5 * time.Millisecond)
			defer ticker.Stop()
			for {
				select {
				case <-r.Context().Done():
					return
				case <-ticker.C:
					if _, err := w.Write([]byte(frame)); err != nil {
						return
					}
					w.(http.Flusher).Flush()
				}
			}
		}
	}

	mx := http.NewServeMux()
	mx.HandleFunc("/a", serve("audio/mpeg", "MP3|"))
	mx.HandleFunc("/b", serve("audio/aac", "AAC|"))

	srv := httptest.NewServer(mx)
	t.Cleanup(srv.Close)
	return srv
}

func playerRecorder(t *testing.T, autoplay bool, mode string) (*player.Player, *Recorder) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	p, err := player.New(player.Config{Autoplay: autoplay, Output: player.OutputNone}, *logger)
	if err != nil {
		t.Fatal(err)
	}
	r, err := New(Config{CaptureMode: mode}, p, *logger)
	if err != nil {
		t.Fatal(err)
	}

	for _, s := range []services.Service{p, r} {
		if err := services.StartAndAwaitRunning(context.Background(), s); err != nil {
			t.Fatal(err)
		}
	}
	t.Cleanup(func() {
		for _, s := range []services.Service{r, p} {
			_ = services.StopAndAwaitTerminated(context.Background(), s)
		}
	})

	return p, r
}

func waitBytes(t *testing.T, r *Recorder) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for r.Status().Bytes == 0 {
		if time.Now().After(deadline) {
			t.Fatal("timeout waiting for recorded audio")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestTapCapture_PausedPlayer(t *testing.T) {
	srv := stations(t)
	p, r := playerRecorder(t, false, CaptureTap)
	ctx := context.Background()

	p.Load(ctx, srv.URL+"/a", "Jazz FM")

	if err := r.Start(ctx); !errors.Is(err, ErrNotPlaying) {
		t.Fatalf("expected ErrNotPlaying before the player connected, got %v", err)
	}
	if r.Recording() {
		t.Fatal("expected recorder to stay inactive")
	}

	if err := p.Play(ctx); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	if err := r.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if got := r.Status().MIMEType; got != "audio/mpeg" {
		t.Errorf("expected audio/mpeg, got %q", got)
	}
	waitBytes(t, r)

	rec, err := r.Stop(ctx)
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if !strings.HasSuffix(rec.Name, ".mp3") || rec.ContentType != "audio/mpeg" {
		t.Errorf("expected an mp3 recording, got %q %q", rec.Name, rec.ContentType)
	}
	if !strings.HasPrefix(string(rec.Data), "MP3|") {
		t.Errorf("unexpected data %q", rec.Data)
	}
}

func TestStreamCapture_PausedPlayer(t *testing.T) {
	srv := stations(t)
	p, r := playerRecorder(t, false, CaptureStream)
	ctx := context.Background()

	p.Load(ctx, srv.URL+"/a", "Jazz FM")

	if err := r.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if got := r.Status().MIMEType; got != "audio/mpeg" {
		t.Errorf("expected the capture connection's codec, got %q", got)
	}
	waitBytes(t, r)

	rec, err := r.Stop(ctx)
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if !strings.HasSuffix(rec.Name, ".mp3") || rec.ContentType != "audio/mpeg" {
		t.Errorf("expected an mp3 recording, got %q %q", rec.Name, rec.ContentType)
	}
	if p.Status().State != player.Paused.String() {
		t.Error("expected playback to stay paused")
	}
}

func TestTapCapture_EndsOnStationChange(t *testing.T) {
	srv := stations(t)
	p, r := playerRecorder(t, true, CaptureTap)
	ctx := context.Background()

	p.Load(ctx, srv.URL+"/a", "Station A")
	if err := r.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	waitBytes(t, r)

	p.Load(ctx, srv.URL+"/b", "Station B")

	// Station B is on air before the recording ends.
	tap := p.Subscribe()
	select {
	case b := <-tap.C:
		if !strings.Contains(string(b), "AAC") {
			t.Fatalf("expected station B audio, got %q", b)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for station B")
	}
	p.Unsubscribe(tap)

	rec, err := r.Stop(ctx)
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if !strings.HasPrefix(rec.Name, "Station A-") || rec.ContentType != "audio/mpeg" {
		t.Errorf("expected station A's mp3 recording, got %q %q", rec.Name, rec.ContentType)
	}
	if strings.Contains(string(rec.Data), "AAC") {
		t.Errorf("expected no station B audio in the recording, got %q", rec.Data)
	}
}
