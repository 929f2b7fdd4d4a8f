// Copyright 2017 someonegg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package nsqpump

import (
	"context"
	"fmt"
	"io"
	"log"
	"net"
	"regexp"
	"sync"

	"github.com/google/uuid"
	"github.com/someonegg/gox/syncx"
)

// State is the lifecycle stage of a Consumer.
type State int32

const (
	StateIdle State = iota
	StateConnected
	StateSubscribing
	StateRunning
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnected:
		return "connected"
	case StateSubscribing:
		return "subscribing"
	case StateRunning:
		return "running"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

var validName = regexp.MustCompile(`^[.a-zA-Z0-9_-]+(#ephemeral)?$`)

// IsValidName reports whether name is a legal topic or channel name.
func IsValidName(name string) bool {
	if len(name) < 1 || len(name) > 64 {
		return false
	}
	return validName.MatchString(name)
}

// Consumer reads messages of one topic/channel from a single broker
// connection and replies to each of them with the result of its Handler.
//
// A Consumer runs once: after BeginConsuming returns it is closed, use a
// new Consumer to reconnect (see the supervisor package).
type Consumer struct {
	id      string
	topic   string
	channel string
	cfg     Config

	mu    sync.Mutex
	state State
	conn  *Conn
	h     Handler
	p     *pump
	stopD syncx.DoneChan

	dump       io.Writer
	dumpFilter func(p []byte, read bool) bool

	stat Statistics

	logF      func(format string, v ...interface{})
	panicLogF func(interface{})
}

// NewConsumer allocates and returns a new Consumer bound to topic and
// channel.
func NewConsumer(topic, channel string, cfg Config) (*Consumer, error) {
	if !IsValidName(topic) {
		return nil, fmt.Errorf("nsqpump: invalid topic name %q", topic)
	}
	if !IsValidName(channel) {
		return nil, fmt.Errorf("nsqpump: invalid channel name %q", channel)
	}
	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Consumer{
		id:        uuid.New().String(),
		topic:     topic,
		channel:   channel,
		cfg:       cfg,
		stopD:     syncx.NewDoneChan(),
		panicLogF: thePanicLogFunc,
	}
	c.logF = c.defaultLog
	return c, nil
}

func (c *Consumer) defaultLog(format string, v ...interface{}) {
	log.Printf("[%s %s/%s] "+format, append([]interface{}{c.id[:8], c.topic, c.channel}, v...)...)
}

// SetLogFunc is optional.
func (c *Consumer) SetLogFunc(f func(format string, v ...interface{})) {
	c.logF = f
}

// SetPanicLogFunc is optional.
func (c *Consumer) SetPanicLogFunc(f func(panicV interface{})) {
	c.panicLogF = f
}

// SetDump enables the traffic dump of the running session, see FrameDump.
func (c *Consumer) SetDump(w io.Writer, filter func(p []byte, read bool) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dump = w
	c.dumpFilter = filter
}

// ID returns the session id, it is unique per Consumer.
func (c *Consumer) ID() string {
	return c.id
}

func (c *Consumer) Topic() string {
	return c.topic
}

func (c *Consumer) Channel() string {
	return c.channel
}

func (c *Consumer) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ConnectToBroker dials the broker at addr. On failure the Consumer stays
// idle and the *IOError is returned, there is no retry.
func (c *Consumer) ConnectToBroker(ctx context.Context, addr string) error {
	c.mu.Lock()
	if c.state != StateIdle {
		s := c.state
		c.mu.Unlock()
		return fmt.Errorf("nsqpump: connect in state %v", s)
	}
	c.mu.Unlock()

	conn, err := Connect(ctx, addr, c.cfg)
	if err != nil {
		return err
	}
	return c.attach(conn)
}

// UseConn attaches an already established connection.
func (c *Consumer) UseConn(nc net.Conn) error {
	return c.attach(NewConn(nc, c.cfg))
}

func (c *Consumer) attach(conn *Conn) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateIdle {
		conn.Close()
		return fmt.Errorf("nsqpump: connect in state %v", c.state)
	}
	c.conn = conn
	c.state = StateConnected
	return nil
}

// AddHandler registers the message handler, it must be called before
// BeginConsuming. The last registered handler wins.
func (c *Consumer) AddHandler(h Handler) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state >= StateSubscribing {
		return ErrConsumerStarted
	}
	c.h = h
	return nil
}

// BeginConsuming performs the handshake and then consumes until the
// broker closes the connection, an error occurs, ctx is done or Stop is
// called. A clean end returns nil.
//
// A panic of the handler stops the session and is re-raised here.
func (c *Consumer) BeginConsuming(ctx context.Context) error {
	c.mu.Lock()
	switch {
	case c.state == StateRunning || c.state == StateSubscribing:
		c.mu.Unlock()
		return ErrConsumerStarted
	case c.state == StateClosed:
		c.mu.Unlock()
		return ErrConsumerClosed
	case c.state != StateConnected || c.conn == nil:
		c.mu.Unlock()
		return ErrInvalidConnection
	case c.h == nil:
		c.mu.Unlock()
		return ErrNoHandler
	}
	c.state = StateSubscribing
	conn := c.conn
	c.mu.Unlock()

	if err := conn.Handshake(c.topic, c.channel, c.cfg.MaxInFlight); err != nil {
		conn.Close()
		if c.State() == StateClosed {
			// Stopped during the handshake.
			return nil
		}
		c.close()
		return err
	}
	c.logF("subscribed to %v, rdy %d", conn.RemoteAddr(), c.cfg.MaxInFlight)

	var rw FrameReadWriter = conn
	c.mu.Lock()
	if c.dump != nil {
		rw = &FrameDump{RW: conn, Dump: c.dump, Filter: c.dumpFilter}
	}
	if c.state == StateClosed {
		c.mu.Unlock()
		conn.Close()
		return nil
	}
	p := newPump(rw, c.h, c.cfg, &c.stat)
	p.logF = c.logF
	p.panicLogF = c.panicLogF
	p.Start(ctx)
	c.p = p
	c.state = StateRunning
	c.mu.Unlock()

	<-p.StopD()

	c.close()

	if p.panicked {
		panic(p.panicV)
	}
	err := p.Error()
	if err != nil {
		c.logF("consuming stopped: %v", err)
	}
	return err
}

func (c *Consumer) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateClosed {
		return
	}
	c.state = StateClosed
	c.stopD.SetDone()
}

// Stop requests to stop consuming, BeginConsuming will return
// asynchronously. The socket is closed.
func (c *Consumer) Stop() {
	c.mu.Lock()
	p, conn := c.p, c.conn
	c.mu.Unlock()

	if p != nil {
		p.Stop()
		return
	}
	if conn != nil {
		conn.Close()
	}
	c.close()
}

// StopD returns a done channel, it will be signaled when the consumer is
// closed.
func (c *Consumer) StopD() syncx.DoneChanR {
	return c.stopD.R()
}

func (c *Consumer) Statistics() Statistics {
	return c.stat.load()
}
