package shoutcast

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// maxPlaylistSize bounds how much of a response is read when it looks like a playlist.
const maxPlaylistSize = 64 * 1024

// parsePLS parses a PLS playlist and returns the first stream URL
func parsePLS(body io.Reader) (string, error) {
	scanner := bufio.NewScanner(body)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(strings.ToLower(line), "file") {
			continue
		}
		_, url, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		if url = strings.TrimSpace(url); url != "" {
			return url, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("failed to read playlist: %w", err)
	}

	return "", fmt.Errorf("no stream URL found in PLS playlist")
}

// parseM3U parses an M3U/M3U8 playlist and returns the first stream URL
func parseM3U(body io.Reader) (string, error) {
	scanner := bufio.NewScanner(body)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "http://") || strings.HasPrefix(line, "https://") {
			return line, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("failed to read playlist: %w", err)
	}

	return "", fmt.Errorf("no stream URL found in M3U playlist")
}

type playlistKind int

const (
	notPlaylist playlistKind = iota
	plsPlaylist
	m3uPlaylist
)

// detectPlaylist decides from the response headers and request URL whether
// the body is a playlist. Audio responses are never treated as playlists so
// that the body of a live stream is not consumed.
func detectPlaylist(url string, resp *http.Response) playlistKind {
	if resp.Header.Get("icy-metaint") != "" {
		return notPlaylist
	}

	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	path := strings.ToLower(url)
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}

	switch {
	case strings.Contains(contentType, "audio/x-scpls"),
		strings.Contains(contentType, "application/pls+xml"),
		strings.HasSuffix(path, ".pls"):
		return plsPlaylist
	case strings.Contains(contentType, "mpegurl"),
		strings.HasSuffix(path, ".m3u"),
		strings.HasSuffix(path, ".m3u8"):
		return m3uPlaylist
	}

	return notPlaylist
}

// resolvePlaylist reads a playlist body and returns the stream URL it points to.
func resolvePlaylist(kind playlistKind, body io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(body, maxPlaylistSize))
	if err != nil {
		return "", fmt.Errorf("failed to read playlist: %w", err)
	}
	content := string(data)

	// Some servers label a PLS file as M3U and vice versa; trust the content.
	if strings.Contains(content, "[playlist]") || strings.Contains(content, "File1=") {
		kind = plsPlaylist
	}

	if kind == plsPlaylist {
		streamURL, err := parsePLS(strings.NewReader(content))
		if err != nil {
			return "", fmt.Errorf("failed to parse PLS playlist: %w", err)
		}
		return streamURL, nil
	}

	streamURL, err := parseM3U(strings.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("failed to parse M3U playlist: %w", err)
	}
	return streamURL, nil
}
