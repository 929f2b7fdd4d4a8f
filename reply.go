// Copyright 2017 someonegg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package nsqpump

const (
	// replyHeadroom fits the largest single reply, "TOUCH " + id + "\n".
	replyHeadroom = 32
	replyGrowStep = 1024
)

var (
	verbNOP   = []byte("NOP\n")
	verbFIN   = []byte("FIN ")
	verbREQ   = []byte("REQ ")
	verbTOUCH = []byte("TOUCH ")
)

// AppendReply appends the wire form of r to dst. A reply of unknown kind
// is sent as REQ.
func AppendReply(dst []byte, r Reply) []byte {
	var verb []byte
	switch r.Kind {
	case ReplyFinish:
		verb = verbFIN
	case ReplyRequeue:
		verb = verbREQ
	case ReplyTouch:
		verb = verbTOUCH
	case ReplyNoOp:
		return append(dst, verbNOP...)
	default:
		// Unknown dispositions must not drop the message.
		verb = verbREQ
	}
	dst = append(dst, verb...)
	dst = append(dst, r.ID[:]...)
	return append(dst, '\n')
}

// replyBuffer accumulates encoded replies until they are flushed to the
// socket.
type replyBuffer struct {
	b []byte
}

func newReplyBuffer() *replyBuffer {
	return &replyBuffer{b: make([]byte, 0, replyGrowStep)}
}

func (rb *replyBuffer) reserve() {
	if cap(rb.b)-len(rb.b) >= replyHeadroom {
		return
	}
	nb := make([]byte, len(rb.b), cap(rb.b)+replyGrowStep)
	copy(nb, rb.b)
	rb.b = nb
}

func (rb *replyBuffer) encode(r Reply) {
	rb.reserve()
	rb.b = AppendReply(rb.b, r)
}

func (rb *replyBuffer) Bytes() []byte {
	return rb.b
}

func (rb *replyBuffer) Len() int {
	return len(rb.b)
}

func (rb *replyBuffer) Reset() {
	rb.b = rb.b[:0]
}
