//go:build noaudio

package player

import (
	"errors"
	"log/slog"
)

func newSpeaker(_ *slog.Logger) (Output, error) {
	return nil, errors.New("built without audio support (noaudio)")
}
