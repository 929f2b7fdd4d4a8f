// Copyright 2017 someonegg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package nsqpump

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// FrameType is the tag leading every frame payload.
type FrameType int32

const (
	FrameTypeResponse FrameType = 0
	FrameTypeError    FrameType = 1
	FrameTypeMessage  FrameType = 2
)

func (t FrameType) String() string {
	switch t {
	case FrameTypeResponse:
		return "response"
	case FrameTypeError:
		return "error"
	case FrameTypeMessage:
		return "message"
	}
	return fmt.Sprintf("unknown(%d)", int32(t))
}

const (
	frameSizeLength = 4
	frameTypeLength = 4

	// minMessageLength is type + timestamp + attempts + id.
	minMessageLength = frameTypeLength + 8 + 2 + MsgIDLength
)

// DefaultMaxFrameSize is the default upper bound of a frame payload.
const DefaultMaxFrameSize = 4 * 1024 * 1024

// FrameReader splits a byte stream into frame payloads.
//
// In the transport layer, frame's layout is:
//
//	Size(4-bytes uint, big-endian)Payload
type FrameReader struct {
	r   *bufio.Reader
	max int
}

// NewFrameReader returns a FrameReader which rejects payloads larger than
// maxSize. If maxSize <= 0, DefaultMaxFrameSize is used.
func NewFrameReader(r io.Reader, maxSize int) *FrameReader {
	if maxSize <= 0 {
		maxSize = DefaultMaxFrameSize
	}
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}
	return &FrameReader{r: br, max: maxSize}
}

// ReadFrame returns the next payload. It returns io.EOF only when the
// stream ends exactly at a frame boundary.
func (fr *FrameReader) ReadFrame() ([]byte, error) {
	var hdr [frameSizeLength]byte
	n, err := io.ReadFull(fr.r, hdr[:])
	if err != nil {
		if err == io.EOF && n == 0 {
			return nil, io.EOF
		}
		return nil, truncated("size", err)
	}

	l := binary.BigEndian.Uint32(hdr[:])
	if l < frameTypeLength {
		return nil, &FramingError{Reason: fmt.Sprintf("frame size %d too small", l)}
	}
	if uint64(l) > uint64(fr.max) {
		return nil, &FramingError{Reason: fmt.Sprintf("frame size %d exceeds %d", l, fr.max)}
	}

	p := make([]byte, l)
	_, err = io.ReadFull(fr.r, p)
	if err != nil {
		return nil, truncated("payload", err)
	}
	return p, nil
}

func truncated(part string, err error) error {
	if err == io.EOF || errors.Is(err, io.ErrUnexpectedEOF) {
		return &FramingError{Reason: "truncated frame " + part, Err: io.ErrUnexpectedEOF}
	}
	return &IOError{Op: "read", Err: err}
}

// ParseFrame splits a payload into its type and data.
func ParseFrame(p []byte) (FrameType, []byte, error) {
	if len(p) < frameTypeLength {
		return 0, nil, &ProtocolParseError{Reason: "frame shorter than type tag", Size: len(p)}
	}
	t := FrameType(binary.BigEndian.Uint32(p[:frameTypeLength]))
	return t, p[frameTypeLength:], nil
}

// DecodeMessage parses a whole message frame payload, type tag included.
//
//	Type(4)Timestamp(8)Attempts(2)ID(16)Body
func DecodeMessage(p []byte) (*Message, error) {
	if len(p) < minMessageLength {
		return nil, &ProtocolParseError{Reason: "message frame too short", Size: len(p)}
	}
	if t := FrameType(binary.BigEndian.Uint32(p)); t != FrameTypeMessage {
		return nil, &ProtocolParseError{Reason: "not a message frame: " + t.String(), Size: len(p)}
	}

	m := &Message{}
	b := p[frameTypeLength:]
	m.Timestamp = int64(binary.BigEndian.Uint64(b[0:8]))
	m.Attempts = binary.BigEndian.Uint16(b[8:10])
	copy(m.ID[:], b[10:10+MsgIDLength])
	m.Body = b[10+MsgIDLength:]
	return m, nil
}

// EncodeMessageFrame builds a complete message frame, size prefix
// included. It is the inverse of ReadFrame plus DecodeMessage.
func EncodeMessageFrame(m *Message) []byte {
	l := minMessageLength + len(m.Body)
	b := make([]byte, frameSizeLength+l)
	binary.BigEndian.PutUint32(b[0:], uint32(l))
	binary.BigEndian.PutUint32(b[4:], uint32(FrameTypeMessage))
	binary.BigEndian.PutUint64(b[8:], uint64(m.Timestamp))
	binary.BigEndian.PutUint16(b[16:], m.Attempts)
	copy(b[18:], m.ID[:])
	copy(b[18+MsgIDLength:], m.Body)
	return b
}

// EncodeFrame builds a frame of type t carrying data, size prefix included.
func EncodeFrame(t FrameType, data []byte) []byte {
	l := frameTypeLength + len(data)
	b := make([]byte, frameSizeLength+l)
	binary.BigEndian.PutUint32(b[0:], uint32(l))
	binary.BigEndian.PutUint32(b[4:], uint32(t))
	copy(b[8:], data)
	return b
}

// parseBrokerError splits "E_CODE description" into a BrokerError.
func parseBrokerError(data []byte) *BrokerError {
	for i := 0; i < len(data); i++ {
		if data[i] == ' ' {
			return &BrokerError{Code: string(data[:i]), Desc: string(data[i+1:])}
		}
	}
	return &BrokerError{Code: string(data)}
}
