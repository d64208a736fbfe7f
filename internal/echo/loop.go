package echo

import (
	"errors"
	"io"
)

// Loop reads one byte from rw and writes it straight back, forever.
// It returns nil when the peer closes the stream and the transport error
// otherwise; callers treat both as the end of the session.
func Loop(rw io.ReadWriter) error {
	var buf [1]byte
	for {
		n, err := rw.Read(buf[:])
		if n > 0 {
			if _, werr := rw.Write(buf[:n]); werr != nil {
				return werr
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}
