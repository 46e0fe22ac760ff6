package metacache

import (
	"bufio"
	"net"
	"time"

	"github.com/go-metacache/metacache/meta"
)

// DefaultBufferSize is the default size of a Connection's read and write
// buffers.
const DefaultBufferSize = 4096

// NewConnection wraps conn with buffered I/O sized to bufferSize. A
// bufferSize of 0 uses DefaultBufferSize. noDelay sets TCP_NODELAY on conn
// when it's a *net.TCPConn; it's a no-op for any other net.Conn (notably
// the mocks used in tests).
func NewConnection(conn net.Conn, bufferSize int, noDelay bool) *Connection {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(noDelay)
	}
	return &Connection{
		Conn:   conn,
		Reader: bufio.NewReaderSize(conn, bufferSize),
		Writer: bufio.NewWriterSize(conn, bufferSize),
	}
}

// Connection wraps a network connection with buffered reader and writer
// for efficient meta protocol I/O. A Connection is not safe for concurrent
// use; the pool hands out exclusive ownership per Acquire.
type Connection struct {
	net.Conn
	Reader *bufio.Reader
	Writer *bufio.Writer

	// poisoned marks a connection whose reply stream is at an uncertain
	// boundary (a parse error, a batch read that didn't complete). A
	// poisoned connection must be destroyed, never released back to the
	// pool, even if the caller that poisoned it exits through a path that
	// would otherwise call Release.
	poisoned bool
}

// Poison marks the connection for destruction instead of reuse.
func (c *Connection) Poison() {
	c.poisoned = true
}

// Poisoned reports whether the connection has been marked for destruction.
func (c *Connection) Poisoned() bool {
	return c.poisoned
}

// Send writes req and reads back its response, applying writeDeadline to
// the write half and readDeadline to the read half independently (either
// may be zero to disable that half's deadline). A response-level protocol
// error (CLIENT_ERROR, SERVER_ERROR, ERROR) is returned inside the
// Response, not as err; err is reserved for I/O and parse failures, both
// of which poison the connection.
func (c *Connection) Send(req *meta.Request, writeDeadline, readDeadline time.Duration) (*meta.Response, error) {
	if writeDeadline > 0 {
		_ = c.Conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	}

	if err := meta.WriteRequest(c.Writer, req); err != nil {
		c.poisoned = true
		return nil, err
	}

	if readDeadline > 0 {
		_ = c.Conn.SetReadDeadline(time.Now().Add(readDeadline))
	}

	resp, err := meta.ReadResponse(c.Reader)
	if err != nil {
		c.poisoned = true
		return nil, err
	}
	if resp.HasError() && meta.ShouldCloseConnection(resp.Error) {
		c.poisoned = true
	}
	return resp, nil
}
