// Copyright 2017 someonegg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package nsqpump

import (
	"fmt"
	"io"
)

// FrameDump is a debugging helper, it implements the FrameReadWriter
// interface and provides traffic dump function.
//
// The dump format is:
//
//	R:FrameType:PayloadSize\nPayload\n\n
//	W:CommandsSize\nCommands\n\n
type FrameDump struct {
	RW   FrameReadWriter
	Dump io.Writer

	// Filter can be nil. If nil, dump all traffic.
	Filter func(p []byte, read bool) bool
}

func (d *FrameDump) needDump(p []byte, read bool) bool {
	if d.Filter != nil {
		return d.Filter(p, read)
	}
	return true
}

func (d *FrameDump) ReadFrame() (p []byte, err error) {
	p, err = d.RW.ReadFrame()
	if err != nil {
		return
	}

	if !d.needDump(p, true) {
		return
	}

	t, data, perr := ParseFrame(p)
	if perr != nil {
		fmt.Fprintf(d.Dump, "R:?:%v\n", len(p))
		d.Dump.Write(p)
	} else {
		fmt.Fprintf(d.Dump, "R:%v:%v\n", t, len(data))
		d.Dump.Write(data)
	}
	fmt.Fprintf(d.Dump, "\n\n")

	return
}

func (d *FrameDump) Write(p []byte) (n int, err error) {
	n, err = d.RW.Write(p)
	if err != nil {
		return
	}

	if !d.needDump(p, false) {
		return
	}

	fmt.Fprintf(d.Dump, "W:%v\n", len(p))
	d.Dump.Write(p)
	fmt.Fprintf(d.Dump, "\n\n")

	return
}

func (d *FrameDump) OnStop() {
	if sn, ok := d.RW.(StopNotifier); ok {
		sn.OnStop()
	}
}
