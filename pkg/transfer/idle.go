package transfer

import (
	"net"
	"time"
)

const idleWriteChunk = 32 << 10

// idleConn fails reads and writes that make no progress for timeout. The
// deadline moves forward with every read and every written chunk.
type idleConn struct {
	net.Conn

	timeout time.Duration
	chunk   int
}

func newIdleConn(conn net.Conn, timeout time.Duration) *idleConn {
	return &idleConn{
		Conn:    conn,
		timeout: timeout,
		chunk:   idleWriteChunk,
	}
}

func (c *idleConn) Read(b []byte) (int, error) {
	if err := c.Conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
		return 0, err
	}

	return c.Conn.Read(b)
}

// Write splits b into chunks, so a large buffer drained slowly by the peer
// is not taken for a stall.
func (c *idleConn) Write(b []byte) (int, error) {
	var written int

	for written < len(b) {
		end := min(written+c.chunk, len(b))

		if err := c.Conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
			return written, err
		}

		n, err := c.Conn.Write(b[written:end])
		written += n

		if err != nil {
			return written, err
		}
	}

	return written, nil
}
