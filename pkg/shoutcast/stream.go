package shoutcast

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	defaultUserAgent = "iTunes/12.9.2 (Macintosh; OS X 10.14.3) AppleWebKit/606.4.5"

	// maxPlaylistDepth limits playlists pointing at other playlists.
	maxPlaylistDepth = 3
)

// MetadataCallbackFunc is the type of the function called when the stream metadata changes
type MetadataCallbackFunc func(m *Metadata)

// Stream represents an open radio stream.
type Stream struct {
	// The name of the server
	Name string

	// What category the server falls under
	Genre string

	// The description of the stream
	Description string

	// Homepage of the server
	URL string

	// The stream URL after playlist resolution
	StreamURL string

	// Content-Type of the audio, eg: audio/mpeg
	ContentType string

	// Bitrate of the server in kbps, 0 if unknown
	Bitrate int

	// Optional function to be executed when stream metadata changes.
	// It is called from the goroutine calling Read.
	MetadataCallbackFunc MetadataCallbackFunc

	// Amount of bytes to read before expecting a metadata block, 0 when the
	// server sends no metadata
	metaint int

	// Stream metadata
	metadata *Metadata

	// The number of audio bytes read since last metadata block
	pos int

	// The underlying data stream
	rc io.ReadCloser
}

type options struct {
	client    *http.Client
	userAgent string
}

// Option configures Open.
type Option func(*options)

// WithHTTPClient replaces the default client. The client must not set a
// total timeout, or the stream will be cut when it expires.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.client = c }
}

// WithUserAgent overrides the User-Agent sent to the server.
func WithUserAgent(ua string) Option {
	return func(o *options) { o.userAgent = ua }
}

func defaultClient() *http.Client {
	// Timeout for establishing the connection only. We don't want the stream
	// to time out while we're reading it.
	dialer := &net.Dialer{Timeout: 5 * time.Second}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ResponseHeaderTimeout: 10 * time.Second,
		DisableCompression:    true,
	}
	return &http.Client{Transport: transport}
}

// Open establishes a connection to a remote server. Playlist files (.pls,
// .m3u) are resolved to the stream they point to. The connection lives until
// Close is called or ctx is cancelled.
func Open(ctx context.Context, url string, opts ...Option) (*Stream, error) {
	o := options{userAgent: defaultUserAgent}
	for _, opt := range opts {
		opt(&o)
	}
	if o.client == nil {
		o.client = defaultClient()
	}

	for depth := 0; ; depth++ {
		resp, err := get(ctx, o, url)
		if err != nil {
			return nil, err
		}

		kind := detectPlaylist(url, resp)
		if kind == notPlaylist {
			s, err := newStream(url, resp)
			if err != nil {
				resp.Body.Close()
				return nil, err
			}
			return s, nil
		}

		resolved, err := resolvePlaylist(kind, resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve playlist URL: %w", err)
		}
		if depth+1 >= maxPlaylistDepth {
			return nil, fmt.Errorf("too many nested playlists at %s", resolved)
		}
		url = resolved
	}
}

func get(ctx context.Context, o options, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "*/*")
	req.Header.Set("User-Agent", o.userAgent)
	req.Header.Set("Icy-MetaData", "1")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status from %s: %d", url, resp.StatusCode)
	}

	return resp, nil
}

func newStream(url string, resp *http.Response) (*Stream, error) {
	var metaint int
	if raw := resp.Header.Get("icy-metaint"); raw != "" {
		var err error
		metaint, err = strconv.Atoi(strings.TrimSpace(raw))
		if err != nil || metaint < 0 {
			return nil, fmt.Errorf("cannot parse metaint %q: %v", raw, err)
		}
	}

	// icy-br is sometimes sent as "128,128"; an unparsable value leaves it unknown.
	var bitrate int
	if raw := resp.Header.Get("icy-br"); raw != "" {
		raw, _, _ = strings.Cut(raw, ",")
		bitrate, _ = strconv.Atoi(strings.TrimSpace(raw))
	}

	contentType := resp.Header.Get("Content-Type")
	if i := strings.Index(contentType, ";"); i >= 0 {
		contentType = contentType[:i]
	}

	return &Stream{
		Name:        resp.Header.Get("icy-name"),
		Genre:       resp.Header.Get("icy-genre"),
		Description: resp.Header.Get("icy-description"),
		URL:         resp.Header.Get("icy-url"),
		StreamURL:   url,
		ContentType: strings.ToLower(strings.TrimSpace(contentType)),
		Bitrate:     bitrate,
		metaint:     metaint,
		rc:          resp.Body,
	}, nil
}

// Read implements io.Reader and returns audio bytes only. A single call never
// reads across a metadata boundary, so it may return fewer bytes than len(buf).
func (s *Stream) Read(buf []byte) (int, error) {
	if s.metaint == 0 {
		return s.rc.Read(buf)
	}

	if s.pos == s.metaint {
		if err := s.readMetadata(); err != nil {
			return 0, err
		}
		s.pos = 0
	}

	if remaining := s.metaint - s.pos; len(buf) > remaining {
		buf = buf[:remaining]
	}

	n, err := s.rc.Read(buf)
	s.pos += n

	return n, err
}

// readMetadata consumes one metadata block: a length byte (in 16 byte units)
// followed by the block itself.
func (s *Stream) readMetadata() error {
	var lenByte [1]byte
	if _, err := io.ReadFull(s.rc, lenByte[:]); err != nil {
		return err
	}

	blockLen := int(lenByte[0]) * 16
	if blockLen == 0 {
		return nil
	}

	block := make([]byte, blockLen)
	if _, err := io.ReadFull(s.rc, block); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return err
	}

	if m := NewMetadata(block); !m.Equals(s.metadata) {
		s.metadata = m
		if s.MetadataCallbackFunc != nil {
			s.MetadataCallbackFunc(m)
		}
	}

	return nil
}

// Close closes the stream
func (s *Stream) Close() error {
	return s.rc.Close()
}
