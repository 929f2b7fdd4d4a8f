// Copyright 2017 someonegg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package nsqpump

import "io"

// FrameSource yields frame payloads, io.EOF at a clean end of stream.
type FrameSource interface {
	ReadFrame() ([]byte, error)
}

// FrameReadWriter is the transport of the pump: frames in, encoded
// commands out.
type FrameReadWriter interface {
	FrameSource
	io.Writer
}

type StopNotifier interface {
	OnStop()
}

type StopNotifierFunc func()

func (f StopNotifierFunc) OnStop() {
	f()
}
