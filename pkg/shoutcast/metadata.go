package shoutcast

import (
	"strings"
)

// Metadata is one parsed ICY metadata block.
type Metadata struct {
	StreamTitle string
	StreamURL   string
}

// NewMetadata parses a raw metadata block of the form
// StreamTitle='Artist - Title';StreamUrl='';
// The block is NUL padded to a multiple of 16 bytes.
func NewMetadata(b []byte) *Metadata {
	m := &Metadata{}
	raw := strings.TrimRight(string(b), "\x00")

	for raw != "" {
		eq := strings.Index(raw, "='")
		if eq < 0 {
			break
		}
		key := raw[:eq]
		rest := raw[eq+2:]

		// Titles can contain quotes, so the value ends at the first "';".
		end := strings.Index(rest, "';")
		var value string
		if end < 0 {
			value = strings.TrimSuffix(rest, "'")
			raw = ""
		} else {
			value = rest[:end]
			raw = rest[end+2:]
		}

		switch key {
		case "StreamTitle":
			m.StreamTitle = value
		case "StreamUrl":
			m.StreamURL = value
		}
	}

	return m
}

// Equals reports whether both blocks carry the same values.
func (m *Metadata) Equals(other *Metadata) bool {
	if m == nil || other == nil {
		return m == other
	}
	return m.StreamTitle == other.StreamTitle && m.StreamURL == other.StreamURL
}
