package shoutcast

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParsePLS(t *testing.T) {
	body := "[playlist]\nNumberOfEntries=2\nFile1=http://a.example/stream\nTitle1=A\nFile2=http://b.example/stream\n"
	url, err := parsePLS(strings.NewReader(body))
	if err != nil {
		t.Fatalf("parsePLS failed: %v", err)
	}
	if url != "http://a.example/stream" {
		t.Errorf("expected first entry, got %q", url)
	}

	if _, err := parsePLS(strings.NewReader("[playlist]\nNumberOfEntries=0\n")); err == nil {
		t.Error("expected error for empty playlist")
	}
}

func TestParseM3U(t *testing.T) {
	body := "#EXTM3U\n#EXTINF:-1,Test\n\nhttps://a.example/live.mp3\n"
	url, err := parseM3U(strings.NewReader(body))
	if err != nil {
		t.Fatalf("parseM3U failed: %v", err)
	}
	if url != "https://a.example/live.mp3" {
		t.Errorf("expected stream url, got %q", url)
	}

	if _, err := parseM3U(strings.NewReader("#EXTM3U\n")); err == nil {
		t.Error("expected error for playlist without entries")
	}
}

func newPlaylistServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	server := httptest.NewServer(mux)

	mux.HandleFunc("/stream", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("audio"))
	})
	mux.HandleFunc("/radio.pls", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/x-scpls")
		fmt.Fprintf(w, "[playlist]\nFile1=%s/stream\n", server.URL)
	})
	mux.HandleFunc("/radio.m3u", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/x-mpegurl")
		fmt.Fprintf(w, "#EXTM3U\n%s/radio.pls\n", server.URL)
	})
	mux.HandleFunc("/loop.m3u", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "%s/loop.m3u\n", server.URL)
	})

	t.Cleanup(server.Close)
	return server
}

func TestOpen_ResolvesPlaylists(t *testing.T) {
	server := newPlaylistServer(t)

	for _, path := range []string{"/radio.pls", "/radio.m3u"} {
		t.Run(path, func(t *testing.T) {
			s, err := Open(context.Background(), server.URL+path)
			if err != nil {
				t.Fatalf("Open failed: %v", err)
			}
			defer s.Close()

			if s.StreamURL != server.URL+"/stream" {
				t.Errorf("expected resolved stream url, got %q", s.StreamURL)
			}
			got, _ := io.ReadAll(s)
			if string(got) != "audio" {
				t.Errorf("expected audio body, got %q", got)
			}
		})
	}
}

func TestOpen_PlaylistLoop(t *testing.T) {
	server := newPlaylistServer(t)

	if _, err := Open(context.Background(), server.URL+"/loop.m3u"); err == nil {
		t.Fatal("expected error for self-referencing playlist")
	}
}
