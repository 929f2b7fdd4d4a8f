package nsqpump

import (
	"bytes"
	"io"
	"net"
	"sync"
	"time"
)

// mockNetConn reads from r and records the writes.
//
// If block is set, Read blocks at the end of r until Close.
type mockNetConn struct {
	r     io.Reader
	block chan struct{}

	mu     sync.Mutex
	w      bytes.Buffer
	writes [][]byte
	closed bool

	// werr fails the writes after the first werrAfter ones.
	werr      error
	werrAfter int
}

func newMockNetConn(in []byte) *mockNetConn {
	return &mockNetConn{r: bytes.NewReader(in)}
}

func newBlockingMockNetConn(in []byte) *mockNetConn {
	return &mockNetConn{r: bytes.NewReader(in), block: make(chan struct{})}
}

func (c *mockNetConn) Read(b []byte) (int, error) {
	n, err := c.r.Read(b)
	if err == io.EOF && c.block != nil {
		<-c.block
		return 0, io.ErrClosedPipe
	}
	return n, err
}

func (c *mockNetConn) Write(b []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.werr != nil && len(c.writes) >= c.werrAfter {
		return 0, c.werr
	}
	c.writes = append(c.writes, append([]byte(nil), b...))
	return c.w.Write(b)
}

func (c *mockNetConn) written() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]byte(nil), c.w.Bytes()...)
}

func (c *mockNetConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed && c.block != nil {
		close(c.block)
	}
	c.closed = true
	return nil
}

func (c *mockNetConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *mockNetConn) LocalAddr() net.Addr {
	return &net.TCPAddr{}
}

func (c *mockNetConn) RemoteAddr() net.Addr {
	return &net.TCPAddr{}
}

func (c *mockNetConn) SetDeadline(t time.Time) error {
	return nil
}

func (c *mockNetConn) SetReadDeadline(t time.Time) error {
	return nil
}

func (c *mockNetConn) SetWriteDeadline(t time.Time) error {
	return nil
}

func testID(b byte) MessageID {
	var id MessageID
	for i := range id {
		id[i] = b
	}
	return id
}

func handshakeBytes(topic, channel, rdy string) []byte {
	return []byte("  V2SUB " + topic + " " + channel + "\nRDY " + rdy + "\n")
}
