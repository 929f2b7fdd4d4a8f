// Copyright 2017 someonegg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package nsqpump

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConnection is returned by BeginConsuming when no connection
	// was established before.
	ErrInvalidConnection = errors.New("nsqpump: invalid connection")

	ErrNoHandler       = errors.New("nsqpump: no handler")
	ErrHandshakeDone   = errors.New("nsqpump: handshake already performed")
	ErrConsumerStarted = errors.New("nsqpump: consumer already started")
	ErrConsumerClosed  = errors.New("nsqpump: consumer closed")
)

// IOError wraps a socket level failure.
type IOError struct {
	Op  string // connect, handshake, read or write
	Err error
}

func (e *IOError) Error() string {
	return "nsqpump: " + e.Op + ": " + e.Err.Error()
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// FramingError reports a malformed length prefix or a truncated frame.
type FramingError struct {
	Reason string
	Err    error
}

func (e *FramingError) Error() string {
	if e.Err != nil {
		return "nsqpump: framing: " + e.Reason + ": " + e.Err.Error()
	}
	return "nsqpump: framing: " + e.Reason
}

func (e *FramingError) Unwrap() error {
	return e.Err
}

// ProtocolParseError reports a frame payload too short for its type.
type ProtocolParseError struct {
	Reason string
	Size   int
}

func (e *ProtocolParseError) Error() string {
	return fmt.Sprintf("nsqpump: parse: %s (%d bytes)", e.Reason, e.Size)
}

// BrokerError is the content of an error frame sent by the broker.
type BrokerError struct {
	Code string
	Desc string
}

func (e *BrokerError) Error() string {
	if e.Desc == "" {
		return "nsqpump: broker: " + e.Code
	}
	return "nsqpump: broker: " + e.Code + " " + e.Desc
}

// Fatal reports whether the broker closes the connection after this error.
func (e *BrokerError) Fatal() bool {
	switch e.Code {
	case "E_FIN_FAILED", "E_REQ_FAILED", "E_TOUCH_FAILED":
		return false
	}
	return true
}
