// Package channel implements the length-framed message protocol spoken
// between the process monitor and the gate controller. Each frame is a
// little-endian uint32 payload length followed by one JSON object; the
// same layout the browser endpoint uses, so it must not change.
package channel

import (
	"encoding/binary"
	"fmt"
	"io"
)

// MaxFrameSize bounds a single message payload.
const MaxFrameSize = 1 << 20

// ReadFrame reads one length-prefixed payload.
func ReadFrame(r io.Reader) ([]byte, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	size := binary.LittleEndian.Uint32(header[:])
	if size > MaxFrameSize {
		return nil, fmt.Errorf("frame of %d bytes exceeds limit %d", size, MaxFrameSize)
	}
	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return payload, nil
}

// WriteFrame writes one length-prefixed payload.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxFrameSize {
		return fmt.Errorf("frame of %d bytes exceeds limit %d", len(payload), MaxFrameSize)
	}
	var header [4]byte
	binary.LittleEndian.PutUint32(header[:], uint32(len(payload)))
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}
