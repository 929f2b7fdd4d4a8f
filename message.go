// Copyright 2017 someonegg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package nsqpump

import (
	"context"
	"encoding/hex"
)

// MsgIDLength is the size of a message identifier.
const MsgIDLength = 16

// MessageID identifies a delivered message, it is sent back verbatim in
// the replies.
type MessageID [MsgIDLength]byte

func (id MessageID) String() string {
	return hex.EncodeToString(id[:])
}

// Message is one delivery from the broker.
//
// Message is never mutated after the parse. The body has its own backing
// array, so keeping it after HandleMessage returns is safe.
type Message struct {
	ID        MessageID
	Body      []byte
	Timestamp int64
	Attempts  uint16
}

// ReplyKind is the disposition of a delivered message.
type ReplyKind uint8

const (
	ReplyNoOp ReplyKind = iota
	ReplyFinish
	ReplyRequeue
	ReplyTouch
)

func (k ReplyKind) String() string {
	switch k {
	case ReplyNoOp:
		return "NOP"
	case ReplyFinish:
		return "FIN"
	case ReplyRequeue:
		return "REQ"
	case ReplyTouch:
		return "TOUCH"
	}
	return "UNKNOWN"
}

// Reply tells the broker what to do with a message. ID is ignored for
// ReplyNoOp.
type Reply struct {
	Kind ReplyKind
	ID   MessageID
}

// Finish marks the message as processed, it will not be redelivered.
func Finish(id MessageID) Reply {
	return Reply{Kind: ReplyFinish, ID: id}
}

// Requeue asks the broker to redeliver the message.
func Requeue(id MessageID) Reply {
	return Reply{Kind: ReplyRequeue, ID: id}
}

// Touch extends the processing deadline of the message.
func Touch(id MessageID) Reply {
	return Reply{Kind: ReplyTouch, ID: id}
}

// NoOp answers a heartbeat.
func NoOp() Reply {
	return Reply{Kind: ReplyNoOp}
}

// Handler is the message processor.
//
// HandleMessage is called synchronously, one message at a time, in the
// order of delivery. The returned reply is sent before any reply of a
// later message. A handler that cannot process a message should return
// Requeue instead of panicking.
type Handler interface {
	HandleMessage(ctx context.Context, m *Message) Reply
}

// The HandlerFunc type is an adapter to allow the use of
// ordinary functions as message handlers.
type HandlerFunc func(ctx context.Context, m *Message) Reply

// HandleMessage calls f(ctx, m).
func (f HandlerFunc) HandleMessage(ctx context.Context, m *Message) Reply {
	return f(ctx, m)
}

// ErrorFrameHandler is implemented by handlers which want to observe the
// non-fatal error frames (E_FIN_FAILED, E_REQ_FAILED, E_TOUCH_FAILED).
// Fatal error frames end the run and are returned by BeginConsuming.
type ErrorFrameHandler interface {
	OnBrokerError(ctx context.Context, err *BrokerError)
}
