package player

import (
	"io"
)

// Tap receives a copy of every chunk the player reads, in stream order.
// C is closed when the tap is unsubscribed or the player shuts down.
type Tap struct {
	C  <-chan []byte
	ch chan []byte

	// station taps end when another station is loaded.
	station bool
}

func newTap(size int) *Tap {
	ch := make(chan []byte, size)
	return &Tap{C: ch, ch: ch}
}

// Reader adapts the tap to an io.Reader that returns io.EOF once the tap is
// closed.
func (t *Tap) Reader() io.Reader {
	return &tapReader{c: t.C}
}

type tapReader struct {
	c   <-chan []byte
	buf []byte
}

func (r *tapReader) Read(p []byte) (int, error) {
	for len(r.buf) == 0 {
		chunk, ok := <-r.c
		if !ok {
			return 0, io.EOF
		}
		r.buf = chunk
	}

	n := copy(p, r.buf)
	r.buf = r.buf[n:]
	return n, nil
}
