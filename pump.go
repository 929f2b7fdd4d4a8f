// Copyright 2017 someonegg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package nsqpump

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/someonegg/gox/syncx"
)

var (
	errUnknownPanic = errors.New("nsqpump: unknown panic")
	errHandlerPanic = errors.New("nsqpump: handler panic")
)

const (
	respHeartbeat = "_heartbeat_"
	respCloseWait = "CLOSE_WAIT"
)

type legalPanic struct {
	err error
}

type Statistics struct {
	// from the broker
	FrameCount     int64
	FrameBytes     int64
	MessageCount   int64
	HeartbeatCount int64
	ErrorCount     int64

	// to the broker
	FinishCount  int64
	RequeueCount int64
	TouchCount   int64
	NoOpCount    int64
	WrittenBytes int64
}

func (s *Statistics) load() Statistics {
	return Statistics{
		FrameCount:     atomic.LoadInt64(&s.FrameCount),
		FrameBytes:     atomic.LoadInt64(&s.FrameBytes),
		MessageCount:   atomic.LoadInt64(&s.MessageCount),
		HeartbeatCount: atomic.LoadInt64(&s.HeartbeatCount),
		ErrorCount:     atomic.LoadInt64(&s.ErrorCount),
		FinishCount:    atomic.LoadInt64(&s.FinishCount),
		RequeueCount:   atomic.LoadInt64(&s.RequeueCount),
		TouchCount:     atomic.LoadInt64(&s.TouchCount),
		NoOpCount:      atomic.LoadInt64(&s.NoOpCount),
		WrittenBytes:   atomic.LoadInt64(&s.WrittenBytes),
	}
}

// The default panic log function.
func thePanicLogFunc(v interface{}) {
	const size = 16 << 10
	buf := make([]byte, size)
	buf = buf[:runtime.Stack(buf, false)]
	log.Print("nsqpump panic: ", v, fmt.Sprintf("\n%s", buf))
}

// entry is what the reading side hands to the dispatching side, exactly
// one field is set.
type entry struct {
	m     *Message
	bErr  *BrokerError
	reply *Reply
}

// pump runs one consuming session. It has three working loops:
//
//	reading:     frames -> entries
//	dispatching: entries -> handler -> replies
//	writing:     replies -> socket
//
// The loops are joined by bounded channels, so replies leave in the order
// the messages arrived.
type pump struct {
	errMu    sync.Mutex
	err      error
	stopping bool
	failD    syncx.DoneChan

	panicked bool
	panicV   interface{}

	quitF context.CancelFunc
	stopD syncx.DoneChan

	rw FrameReadWriter
	h  Handler
	eh ErrorFrameHandler
	sn StopNotifier

	eof int32

	rD syncx.DoneChan
	dD syncx.DoneChan
	wD syncx.DoneChan
	mQ chan entry
	wQ chan Reply

	stat *Statistics

	logF      func(format string, v ...interface{})
	panicLogF func(interface{})
}

func newPump(rw FrameReadWriter, h Handler, cfg Config, stat *Statistics) *pump {
	sn, _ := rw.(StopNotifier)
	eh, _ := h.(ErrorFrameHandler)

	return &pump{
		failD: syncx.NewDoneChan(),
		stopD: syncx.NewDoneChan(),

		rw: rw,
		h:  h,
		eh: eh,
		sn: sn,

		rD: syncx.NewDoneChan(),
		dD: syncx.NewDoneChan(),
		wD: syncx.NewDoneChan(),
		mQ: make(chan entry, cfg.inflightSize()),
		wQ: make(chan Reply, cfg.queueSize()),

		stat: stat,

		logF:      log.Printf,
		panicLogF: thePanicLogFunc,
	}
}

func (p *pump) Start(parent context.Context) {
	if parent == nil {
		parent = context.Background()
	}

	var ctx context.Context
	ctx, p.quitF = context.WithCancel(parent)

	go p.reading(ctx)
	go p.dispatching(ctx)
	go p.writing(ctx)
	go p.monitor(ctx)
}

func (p *pump) monitor(ctx context.Context) {
	defer p.ending()

	select {
	case <-ctx.Done():
	case <-p.failD:
	case <-p.wD:
	}
}

func (p *pump) ending() {
	defer p.stopD.SetDone()

	p.errMu.Lock()
	p.stopping = true
	p.errMu.Unlock()

	p.quitF()

	if p.sn != nil {
		p.sn.OnStop()
	}

	<-p.rD
	<-p.dD
	<-p.wD
}

// fail records the first terminal error. Errors caused by the shutdown
// itself are dropped.
func (p *pump) fail(err error) {
	p.errMu.Lock()
	defer p.errMu.Unlock()

	if p.stopping || p.err != nil {
		return
	}
	p.err = err
	p.failD.SetDone()
}

func (p *pump) recovered(e interface{}) {
	switch v := e.(type) {
	case legalPanic:
		p.fail(v.err)
		return
	case error:
		p.fail(v)
	default:
		p.fail(errUnknownPanic)
	}
	if p.panicLogF != nil {
		p.panicLogF(e)
	}
}

func (p *pump) reading(ctx context.Context) {
	defer func() {
		if e := recover(); e != nil {
			p.recovered(e)
		}

		close(p.mQ)
		p.rD.SetDone()
	}()

	for {
		t, payload, data := p.readFrame()
		if payload == nil {
			atomic.StoreInt32(&p.eof, 1)
			return
		}

		var e entry
		switch t {
		case FrameTypeMessage:
			m, err := DecodeMessage(payload)
			if err != nil {
				panic(legalPanic{err})
			}
			atomic.AddInt64(&p.stat.MessageCount, 1)
			e.m = m
		case FrameTypeResponse:
			switch string(data) {
			case respHeartbeat:
				atomic.AddInt64(&p.stat.HeartbeatCount, 1)
				nop := NoOp()
				e.reply = &nop
			case respCloseWait:
				atomic.StoreInt32(&p.eof, 1)
				return
			default:
				continue
			}
		case FrameTypeError:
			atomic.AddInt64(&p.stat.ErrorCount, 1)
			bErr := parseBrokerError(data)
			if bErr.Fatal() {
				panic(legalPanic{bErr})
			}
			p.logF("nsqpump: broker error: %v", bErr)
			e.bErr = bErr
		default:
			p.logF("nsqpump: ignore frame type %v", t)
			continue
		}

		select {
		case p.mQ <- e:
		case <-ctx.Done():
			return
		}
	}
}

// readFrame returns a nil payload at the end of stream.
func (p *pump) readFrame() (FrameType, []byte, []byte) {
	payload, err := p.rw.ReadFrame()
	if err == io.EOF {
		return 0, nil, nil
	}
	if err != nil {
		panic(legalPanic{err})
	}
	atomic.AddInt64(&p.stat.FrameCount, 1)
	atomic.AddInt64(&p.stat.FrameBytes, int64(len(payload)))

	t, data, err := ParseFrame(payload)
	if err != nil {
		panic(legalPanic{err})
	}
	return t, payload, data
}

func (p *pump) dispatching(ctx context.Context) {
	defer func() {
		if e := recover(); e != nil {
			if _, ok := e.(legalPanic); ok {
				p.recovered(e)
			} else {
				// Not ours, hand it back to the caller of BeginConsuming.
				p.panicked = true
				p.panicV = e
				p.fail(errHandlerPanic)
			}
		}

		close(p.wQ)
		p.dD.SetDone()
	}()

	for {
		var e entry
		var ok bool
		select {
		case <-ctx.Done():
			return
		case e, ok = <-p.mQ:
			if !ok {
				return
			}
		}

		var r Reply
		switch {
		case e.m != nil:
			r = p.h.HandleMessage(ctx, e.m)
		case e.bErr != nil:
			if p.eh != nil {
				p.eh.OnBrokerError(ctx, e.bErr)
			}
			continue
		default:
			r = *e.reply
		}

		select {
		case p.wQ <- r:
		case <-ctx.Done():
			return
		}
	}
}

func (p *pump) writing(ctx context.Context) {
	defer func() {
		if e := recover(); e != nil {
			p.recovered(e)
		}

		p.wD.SetDone()
	}()

	buf := newReplyBuffer()
	for {
		select {
		case <-ctx.Done():
			return
		case r, ok := <-p.wQ:
			if !ok {
				return
			}
			p.encode(buf, r)
			closed := p.drain(buf)
			p.flush(buf)
			if closed {
				return
			}
		}
	}
}

// drain encodes the replies already queued, so they share one write.
func (p *pump) drain(buf *replyBuffer) (closed bool) {
	for {
		select {
		case r, ok := <-p.wQ:
			if !ok {
				return true
			}
			p.encode(buf, r)
		default:
			return false
		}
	}
}

func (p *pump) encode(buf *replyBuffer, r Reply) {
	buf.encode(r)
	switch r.Kind {
	case ReplyFinish:
		atomic.AddInt64(&p.stat.FinishCount, 1)
	case ReplyTouch:
		atomic.AddInt64(&p.stat.TouchCount, 1)
	case ReplyNoOp:
		atomic.AddInt64(&p.stat.NoOpCount, 1)
	default:
		atomic.AddInt64(&p.stat.RequeueCount, 1)
	}
}

func (p *pump) flush(buf *replyBuffer) {
	defer buf.Reset()

	_, err := p.rw.Write(buf.Bytes())
	if err != nil {
		// The peer closed the stream, these replies have nowhere to go.
		if atomic.LoadInt32(&p.eof) == 1 {
			return
		}
		panic(legalPanic{err})
	}
	atomic.AddInt64(&p.stat.WrittenBytes, int64(buf.Len()))
}

// Stop requests to stop the pump, the working loops will stop asynchronously.
func (p *pump) Stop() {
	p.quitF()
}

// StopD returns a done channel, it will be signaled when the pump is stopped.
func (p *pump) StopD() syncx.DoneChanR {
	return p.stopD.R()
}

// Error can only be called after pump stopped.
func (p *pump) Error() error {
	p.errMu.Lock()
	defer p.errMu.Unlock()
	return p.err
}
