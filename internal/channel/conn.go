package channel

import (
	"bufio"
	"io"
	"sync"
)

// Conn frames messages over any byte stream: a unix socket in daemon
// mode, stdin/stdout in native-host mode, or a pipe in tests.
type Conn struct {
	r *bufio.Reader

	wmu sync.Mutex
	w   io.Writer

	closer io.Closer
}

// NewConn wraps a byte stream.
func NewConn(rw io.ReadWriteCloser) *Conn {
	return &Conn{r: bufio.NewReader(rw), w: rw, closer: rw}
}

// NewPipeConn wraps a distinct reader/writer pair, as in native-host
// mode where stdin and stdout are separate descriptors.
func NewPipeConn(r io.Reader, w io.WriteCloser) *Conn {
	return &Conn{r: bufio.NewReader(r), w: w, closer: w}
}

// Read returns the next message. A malformed frame yields an error
// wrapping ErrMalformed and leaves the connection readable; any other
// error ends the connection.
func (c *Conn) Read() (Message, error) {
	payload, err := ReadFrame(c.r)
	if err != nil {
		return Message{}, err
	}
	return Decode(payload)
}

// Write frames and sends one message. Safe for concurrent use.
func (c *Conn) Write(m Message) error {
	payload, err := Encode(m)
	if err != nil {
		return err
	}
	c.wmu.Lock()
	defer c.wmu.Unlock()
	return WriteFrame(c.w, payload)
}

// Close closes the underlying stream.
func (c *Conn) Close() error {
	return c.closer.Close()
}
