// Copyright 2017 someonegg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package nsqpump

import (
	"bufio"
	"context"
	"net"
	"strconv"
	"sync/atomic"
	"time"
)

// MagicV2 announces the protocol version, it is the first write on a
// connection.
var MagicV2 = []byte("  V2")

// Conn is a single-use connection to a broker.
type Conn struct {
	conn net.Conn
	fr   *FrameReader

	handshaked int32
}

// Connect dials addr once, there is no retry.
func Connect(ctx context.Context, addr string, cfg Config) (*Conn, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	timeout := cfg.DialTimeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}

	dialer := net.Dialer{Timeout: timeout}
	nc, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, &IOError{Op: "connect", Err: err}
	}

	if tc, ok := nc.(*net.TCPConn); ok {
		tc.SetNoDelay(true)
		tc.SetKeepAlive(true)
		tc.SetKeepAlivePeriod(30 * time.Second)
	}

	return NewConn(nc, cfg), nil
}

// NewConn wraps an established connection.
func NewConn(nc net.Conn, cfg Config) *Conn {
	return &Conn{
		conn: nc,
		fr:   NewFrameReader(bufio.NewReader(nc), cfg.MaxFrameSize),
	}
}

// Handshake writes the magic, the SUB command and the RDY command, in this
// order, each one completely before the next.
func (c *Conn) Handshake(topic, channel string, rdy int) error {
	if !atomic.CompareAndSwapInt32(&c.handshaked, 0, 1) {
		return ErrHandshakeDone
	}

	cmds := [][]byte{
		MagicV2,
		[]byte("SUB " + topic + " " + channel + "\n"),
		[]byte("RDY " + strconv.Itoa(rdy) + "\n"),
	}
	for _, cmd := range cmds {
		if _, err := c.conn.Write(cmd); err != nil {
			return &IOError{Op: "handshake", Err: err}
		}
	}
	return nil
}

// ReadFrame returns the next frame payload, see FrameReader.
func (c *Conn) ReadFrame() ([]byte, error) {
	return c.fr.ReadFrame()
}

// Write writes raw encoded commands.
func (c *Conn) Write(b []byte) (int, error) {
	n, err := c.conn.Write(b)
	if err != nil {
		return n, &IOError{Op: "write", Err: err}
	}
	return n, nil
}

func (c *Conn) OnStop() {
	c.conn.Close()
}

func (c *Conn) Close() error {
	return c.conn.Close()
}

func (c *Conn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}
