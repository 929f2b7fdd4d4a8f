// Copyright 2017 someonegg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package nsqpump

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector exports the statistics of a Consumer.
type Collector struct {
	c *Consumer

	frames       *prometheus.Desc
	frameBytes   *prometheus.Desc
	replies      *prometheus.Desc
	writtenBytes *prometheus.Desc
	state        *prometheus.Desc
}

// NewCollector returns a prometheus.Collector for c. The metrics carry the
// topic, channel and session id as constant labels.
func NewCollector(c *Consumer) *Collector {
	labels := prometheus.Labels{
		"topic":   c.Topic(),
		"channel": c.Channel(),
		"session": c.ID(),
	}
	return &Collector{
		c: c,
		frames: prometheus.NewDesc("nsqpump_frames_total",
			"Frames read from the broker.", []string{"type"}, labels),
		frameBytes: prometheus.NewDesc("nsqpump_frame_bytes_total",
			"Frame payload bytes read from the broker.", nil, labels),
		replies: prometheus.NewDesc("nsqpump_replies_total",
			"Replies written to the broker.", []string{"verb"}, labels),
		writtenBytes: prometheus.NewDesc("nsqpump_written_bytes_total",
			"Reply bytes written to the broker.", nil, labels),
		state: prometheus.NewDesc("nsqpump_state",
			"Lifecycle state of the consumer, 0 idle to 4 closed.", nil, labels),
	}
}

func (col *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- col.frames
	ch <- col.frameBytes
	ch <- col.replies
	ch <- col.writtenBytes
	ch <- col.state
}

func (col *Collector) Collect(ch chan<- prometheus.Metric) {
	s := col.c.Statistics()

	counter := func(d *prometheus.Desc, v int64, lvs ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v), lvs...)
	}

	counter(col.frames, s.MessageCount, "message")
	counter(col.frames, s.HeartbeatCount, "heartbeat")
	counter(col.frames, s.ErrorCount, "error")
	counter(col.frameBytes, s.FrameBytes)
	counter(col.replies, s.FinishCount, "FIN")
	counter(col.replies, s.RequeueCount, "REQ")
	counter(col.replies, s.TouchCount, "TOUCH")
	counter(col.replies, s.NoOpCount, "NOP")
	counter(col.writtenBytes, s.WrittenBytes)

	ch <- prometheus.MustNewConstMetric(col.state, prometheus.GaugeValue, float64(col.c.State()))
}
