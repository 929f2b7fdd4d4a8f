// Copyright 2019 someonegg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package supervisor keeps a consumer connected: each time a session ends
// it builds a new nsqpump.Consumer, reconnects with exponential backoff and
// performs the handshake again.
//
//	cfg := nsqpump.NewConfig()
//	s, err := supervisor.New("127.0.0.1:4150", "test", "chan", cfg, h)
//	if err != nil {
//		log.Fatal(err)
//	}
//	err = s.Run(ctx)
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/someonegg/nsqpump"
)

type Supervisor struct {
	addr    string
	topic   string
	channel string
	cfg     nsqpump.Config
	h       nsqpump.Handler

	// OnSession is optional, it is called with every new consumer before
	// it connects.
	OnSession func(c *nsqpump.Consumer)

	logF func(format string, v ...interface{})

	sessions int64
}

// New validates the arguments by building a first consumer, the returned
// Supervisor is not started.
func New(addr, topic, channel string, cfg nsqpump.Config, h nsqpump.Handler) (*Supervisor, error) {
	if h == nil {
		return nil, nsqpump.ErrNoHandler
	}
	if _, err := nsqpump.NewConsumer(topic, channel, cfg); err != nil {
		return nil, err
	}
	if cfg.ReconnectMinBackoff <= 0 || cfg.ReconnectMaxBackoff <= 0 {
		d := nsqpump.NewConfig()
		if cfg.ReconnectMinBackoff <= 0 {
			cfg.ReconnectMinBackoff = d.ReconnectMinBackoff
		}
		if cfg.ReconnectMaxBackoff <= 0 {
			cfg.ReconnectMaxBackoff = d.ReconnectMaxBackoff
		}
	}
	return &Supervisor{
		addr:    addr,
		topic:   topic,
		channel: channel,
		cfg:     cfg,
		h:       h,
		logF:    log.Printf,
	}, nil
}

// SetLogFunc is optional.
func (s *Supervisor) SetLogFunc(f func(format string, v ...interface{})) {
	s.logF = f
}

// Sessions returns how many consumers were started.
func (s *Supervisor) Sessions() int64 {
	return atomic.LoadInt64(&s.sessions)
}

// Run consumes until ctx is done, which returns nil. It returns an error
// if a session fails with a programming error, or after
// MaxReconnectAttempts consecutive sessions ended without receiving a frame.
func (s *Supervisor) Run(ctx context.Context) error {
	b := newBackoff(s.cfg.ReconnectMinBackoff, s.cfg.ReconnectMaxBackoff)
	failures := 0

	for {
		progressed, err := s.session(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if permanent(err) {
			return err
		}

		if progressed {
			b.reset()
			failures = 0
		} else {
			failures++
			if s.cfg.MaxReconnectAttempts > 0 && failures >= s.cfg.MaxReconnectAttempts {
				return fmt.Errorf("supervisor: giving up after %d attempts: %w", failures, err)
			}
		}

		d := b.duration()
		if err != nil {
			s.logF("supervisor: session to %s ended: %v, reconnect in %v", s.addr, err, d)
		} else {
			s.logF("supervisor: session to %s closed, reconnect in %v", s.addr, d)
		}

		t := time.NewTimer(d)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-t.C:
		}
	}
}

// session runs one consumer. progressed reports whether at least one frame
// was received, which resets the backoff.
func (s *Supervisor) session(ctx context.Context) (progressed bool, err error) {
	c, err := nsqpump.NewConsumer(s.topic, s.channel, s.cfg)
	if err != nil {
		return false, err
	}
	c.SetLogFunc(s.logF)
	if err = c.AddHandler(s.h); err != nil {
		return false, err
	}
	if s.OnSession != nil {
		s.OnSession(c)
	}
	atomic.AddInt64(&s.sessions, 1)

	if err = c.ConnectToBroker(ctx, s.addr); err != nil {
		return false, err
	}
	err = c.BeginConsuming(ctx)
	return c.Statistics().FrameCount > 0, err
}

func permanent(err error) bool {
	return errors.Is(err, nsqpump.ErrInvalidConnection) ||
		errors.Is(err, nsqpump.ErrNoHandler) ||
		errors.Is(err, nsqpump.ErrConsumerStarted)
}
