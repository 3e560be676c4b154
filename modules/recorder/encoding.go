package recorder

import (
	"strings"
	"time"
)

// aliases maps content types sent by stations onto the encodings the
// recorder can be asked for.
var aliases = map[string]string{
	"audio/mpeg":      "audio/mpeg",
	"audio/mp3":       "audio/mpeg",
	"audio/mpeg3":     "audio/mpeg",
	"audio/x-mpeg":    "audio/mpeg",
	"audio/mpg":       "audio/mpeg",
	"audio/aac":       "audio/aac",
	"audio/aacp":      "audio/aac",
	"audio/x-aac":     "audio/aac",
	"audio/mp4":       "audio/mp4",
	"audio/m4a":       "audio/mp4",
	"audio/x-m4a":     "audio/mp4",
	"audio/ogg":       "audio/ogg",
	"application/ogg": "audio/ogg",
	"audio/vorbis":    "audio/ogg",
	"audio/webm":      "audio/webm",
	"audio/wav":       "audio/x-wav",
	"audio/wave":      "audio/x-wav",
	"audio/x-wav":     "audio/x-wav",
	"audio/vnd.wave":  "audio/x-wav",
}

func canonicalType(mimeType string) string {
	t := strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.Index(t, ";"); i >= 0 {
		t = strings.TrimSpace(t[:i])
	}
	if a, ok := aliases[t]; ok {
		return a
	}
	return t
}

// sameEncoding reports whether a station content type satisfies a requested
// output encoding. Audio is never transcoded, so only the station's own
// codec can be produced.
func sameEncoding(contentType, mimeType string) bool {
	if contentType == "" || mimeType == "" {
		return false
	}
	return canonicalType(contentType) == canonicalType(mimeType)
}

// negotiate returns the first candidate the capturer supports, or "" to let
// the capturer use its default encoding.
func negotiate(candidates []string, c AudioCapturer) string {
	for _, mimeType := range candidates {
		if mimeType != "" && c.Supported(mimeType) {
			return mimeType
		}
	}
	return ""
}

// extension picks the file extension for an encoding. Unknown or missing
// encodings fall back to wav.
func extension(mimeType string) string {
	switch {
	case strings.Contains(mimeType, "mp4"):
		return "mp4"
	case strings.Contains(mimeType, "mpeg"):
		return "mp3"
	case strings.Contains(mimeType, "aac"):
		return "aac"
	case strings.Contains(mimeType, "ogg"):
		return "ogg"
	case strings.Contains(mimeType, "webm"):
		return "webm"
	default:
		return "wav"
	}
}

// timestampLayout is ISO-8601 in UTC with milliseconds.
const timestampLayout = "2006-01-02T15:04:05.000Z"

// FileName builds {station}-{timestamp}.{ext}.
func FileName(station string, t time.Time, mimeType string) string {
	return station + "-" + t.UTC().Format(timestampLayout) + "." + extension(mimeType)
}
