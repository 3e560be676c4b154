package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/grafana/dskit/services"

	"github.com/zachfi/radiogo/modules/finder"
	"github.com/zachfi/radiogo/modules/player"
	"github.com/zachfi/radiogo/modules/recorder"
)

// upstream serves a one-station directory and the station's live stream.
func upstream(t *testing.T, directoryStatus int) *httptest.Server {
	t.Helper()

	var srv *httptest.Server
	mx := http.NewServeMux()
	mx.HandleFunc("/json/stations/search", func(w http.ResponseWriter, _ *http.Request) {
		if directoryStatus != http.StatusOK {
			w.WriteHeader(directoryStatus)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `[{"stationuuid":"jazz-1","name":"Jazz FM","url":"%s/stream","url_resolved":"%s/stream","country":"UK","codec":"MP3","bitrate":128}]`, srv.URL, srv.URL)
	})
	mx.HandleFunc("/stream", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
		w.WriteHeader(http.StatusOK)

		ticker := time.NewTicker(5 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-r.Context().Done():
				return
			case <-ticker.C:
				if _, err := w.Write([]byte("frame")); err != nil {
					return
				}
				w.(http.Flusher).Flush()
			}
		}
	})

	srv = httptest.NewServer(mx)
	t.Cleanup(srv.Close)
	return srv
}

func testAPI(t *testing.T, directoryStatus int) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(testRouter(t, directoryStatus))
	t.Cleanup(srv.Close)
	return srv
}

func testRouter(t *testing.T, directoryStatus int) *mux.Router {
	t.Helper()

	up := upstream(t, directoryStatus)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	f, err := finder.New(finder.Config{DirectoryURL: up.URL, Limit: 30, Timeout: time.Second}, *logger)
	if err != nil {
		t.Fatal(err)
	}
	p, err := player.New(player.Config{Autoplay: true, Output: player.OutputNone}, *logger)
	if err != nil {
		t.Fatal(err)
	}
	r, err := recorder.New(recorder.Config{CaptureMode: recorder.CaptureTap}, p, *logger)
	if err != nil {
		t.Fatal(err)
	}

	for _, s := range []services.Service{f, p, r} {
		if err := services.StartAndAwaitRunning(context.Background(), s); err != nil {
			t.Fatal(err)
		}
	}
	t.Cleanup(func() {
		for _, s := range []services.Service{r, p, f} {
			_ = services.StopAndAwaitTerminated(context.Background(), s)
		}
	})

	router := mux.NewRouter()
	if _, err := New(Config{PathPrefix: "/api"}, router, f, p, r, *logger); err != nil {
		t.Fatal(err)
	}

	return router
}

func do(t *testing.T, method, url string, body io.Reader) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("error decoding response: %v", err)
	}
	return v
}

func TestSearchPlayRecord(t *testing.T) {
	srv := testAPI(t, http.StatusOK)

	resp := do(t, http.MethodGet, srv.URL+"/api/stations", nil)
	if got := decode[stationsResponse](t, resp).Phase; got != "not-searched" {
		t.Errorf("expected not-searched before the first search, got %s", got)
	}

	resp = do(t, http.MethodGet, srv.URL+"/api/search?q=jazz", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("search returned %d", resp.StatusCode)
	}
	stations := decode[stationsResponse](t, resp)
	if stations.Phase != "results" || len(stations.Stations) != 1 {
		t.Fatalf("unexpected search response %+v", stations)
	}
	if stations.Query != "" {
		t.Errorf("expected query cleared after a successful search, got %q", stations.Query)
	}

	resp = do(t, http.MethodPost, srv.URL+"/api/stations/jazz-1/play", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("select returned %d", resp.StatusCode)
	}
	if status := decode[player.Status](t, resp); status.State != "playing" || status.Name != "Jazz FM" {
		t.Fatalf("expected Jazz FM to autoplay, got %+v", status)
	}

	resp = do(t, http.MethodGet, srv.URL+"/api/record", nil)
	if status := decode[recorder.Status](t, resp); status.Recording || status.Label != "Start Recording" {
		t.Errorf("unexpected idle recorder status %+v", status)
	}

	resp = do(t, http.MethodPost, srv.URL+"/api/record/start", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("record start returned %d", resp.StatusCode)
	}
	if status := decode[recorder.Status](t, resp); !status.Recording || status.Label != "Stop Recording" {
		t.Errorf("unexpected recording status %+v", status)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		resp = do(t, http.MethodGet, srv.URL+"/api/record", nil)
		if decode[recorder.Status](t, resp).Bytes > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("expected audio to be captured")
		}
		time.Sleep(10 * time.Millisecond)
	}

	resp = do(t, http.MethodPost, srv.URL+"/api/record/stop", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("record stop returned %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "audio/mpeg" {
		t.Errorf("expected audio/mpeg download, got %q", ct)
	}
	cd := resp.Header.Get("Content-Disposition")
	if !strings.HasPrefix(cd, `attachment; filename="Jazz FM-`) || !strings.HasSuffix(cd, `.mp3"`) {
		t.Errorf("unexpected Content-Disposition %q", cd)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) == 0 || strings.Trim(string(data), "frame") != "" {
		t.Errorf("expected recorded stream bytes, got %q", data)
	}

	resp = do(t, http.MethodPost, srv.URL+"/api/record/stop", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("expected 204 when nothing is recording, got %d", resp.StatusCode)
	}
}

func TestSearchFailure(t *testing.T) {
	srv := testAPI(t, http.StatusInternalServerError)

	resp := do(t, http.MethodGet, srv.URL+"/api/search?q=jazz", nil)
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", resp.StatusCode)
	}

	resp = do(t, http.MethodGet, srv.URL+"/api/stations", nil)
	if got := decode[stationsResponse](t, resp); got.Phase != "not-searched" || len(got.Stations) != 0 {
		t.Errorf("expected finder state untouched, got %+v", got)
	}
}

func TestQuery(t *testing.T) {
	srv := testAPI(t, http.StatusOK)

	do(t, http.MethodGet, srv.URL+"/api/search?q=jazz", nil)

	resp := do(t, http.MethodPut, srv.URL+"/api/query", strings.NewReader(`{"query":"blues"}`))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("query returned %d", resp.StatusCode)
	}
	got := decode[stationsResponse](t, resp)
	if got.Query != "blues" || got.Phase != "not-searched" || len(got.Stations) != 0 {
		t.Errorf("expected edited query to reset results, got %+v", got)
	}

	resp = do(t, http.MethodPut, srv.URL+"/api/query", strings.NewReader(`{`))
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for a bad body, got %d", resp.StatusCode)
	}
}

func TestNothingLoaded(t *testing.T) {
	srv := testAPI(t, http.StatusOK)

	tcs := []struct {
		method string
		path   string
		code   int
	}{
		{http.MethodPost, "/api/stations/unknown/play", http.StatusNotFound},
		{http.MethodPost, "/api/player/play", http.StatusConflict},
		{http.MethodGet, "/api/player/listen", http.StatusConflict},
		{http.MethodPost, "/api/record/start", http.StatusConflict},
		{http.MethodPost, "/api/record/stop", http.StatusNoContent},
		{http.MethodPost, "/api/player/pause", http.StatusOK},
		{http.MethodDelete, "/api/player", http.StatusMethodNotAllowed},
	}

	for _, tc := range tcs {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			resp := do(t, tc.method, srv.URL+tc.path, nil)
			if resp.StatusCode != tc.code {
				t.Errorf("expected %d, got %d", tc.code, resp.StatusCode)
			}
		})
	}
}

func TestListen(t *testing.T) {
	srv := testAPI(t, http.StatusOK)

	do(t, http.MethodGet, srv.URL+"/api/search?q=jazz", nil)
	do(t, http.MethodPost, srv.URL+"/api/stations/jazz-1/play", nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/player/listen", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "audio/mpeg" {
		t.Errorf("expected the station content type, got %q", ct)
	}

	buf := make([]byte, 10)
	if _, err := io.ReadFull(resp.Body, buf); err != nil {
		t.Fatalf("expected relayed audio: %v", err)
	}
	if strings.Trim(string(buf), "frame") != "" {
		t.Errorf("unexpected relayed bytes %q", buf)
	}

	resp = do(t, http.MethodPost, srv.URL+"/api/player/pause", nil)
	if status := decode[player.Status](t, resp); status.State != "paused" {
		t.Errorf("expected paused, got %+v", status)
	}
}

func TestListen_OutlivesWriteTimeout(t *testing.T) {
	const writeTimeout = 200 * time.Millisecond

	srv := httptest.NewUnstartedServer(testRouter(t, http.StatusOK))
	srv.Config.WriteTimeout = writeTimeout
	srv.Start()
	t.Cleanup(srv.Close)

	do(t, http.MethodGet, srv.URL+"/api/search?q=jazz", nil)
	do(t, http.MethodPost, srv.URL+"/api/stations/jazz-1/play", nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/player/listen", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	start := time.Now()
	total := 0
	buf := make([]byte, 512)
	for time.Since(start) < 3*writeTimeout {
		n, err := resp.Body.Read(buf)
		total += n
		if err != nil {
			t.Fatalf("relay ended after %s and %d bytes: %v", time.Since(start), total, err)
		}
	}
	if total == 0 {
		t.Error("expected relayed audio")
	}
}
