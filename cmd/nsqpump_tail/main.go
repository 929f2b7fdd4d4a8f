// Copyright 2019 someonegg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command nsqpump_tail prints the messages of a topic/channel to stdout and
// finishes each of them.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/someonegg/nsqpump"
	"github.com/someonegg/nsqpump/supervisor"
)

func main() {
	addr := flag.String("nsqd-tcp-address", "127.0.0.1:4150", "broker TCP address")
	topic := flag.String("topic", "", "topic to consume")
	channel := flag.String("channel", "tail#ephemeral", "channel to consume")
	configPath := flag.String("config", "", "path to a YAML config file")
	maxInFlight := flag.Int("max-in-flight", 0, "override max_in_flight")
	metricsAddr := flag.String("metrics-address", "", "serve prometheus metrics on this address")
	flag.Parse()

	cfg := nsqpump.NewConfig()
	if *configPath != "" {
		var err error
		cfg, err = nsqpump.LoadConfig(*configPath)
		if err != nil {
			log.Fatalf("load config: %v", err)
		}
	}
	if *maxInFlight > 0 {
		cfg.MaxInFlight = *maxInFlight
		cfg.WriteQueueSize = *maxInFlight
	}

	h := nsqpump.HandlerFunc(func(ctx context.Context, m *nsqpump.Message) nsqpump.Reply {
		fmt.Fprintf(os.Stdout, "%s\n", m.Body)
		return nsqpump.Finish(m.ID)
	})

	s, err := supervisor.New(*addr, *topic, *channel, cfg, h)
	if err != nil {
		log.Fatalf("create supervisor: %v", err)
	}

	if *metricsAddr != "" {
		reg := prometheus.NewRegistry()
		var last prometheus.Collector
		s.OnSession = func(c *nsqpump.Consumer) {
			if last != nil {
				reg.Unregister(last)
			}
			last = nsqpump.NewCollector(c)
			reg.MustRegister(last)
		}
		go func() {
			http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
			log.Printf("metrics listening on %s", *metricsAddr)
			if err := http.ListenAndServe(*metricsAddr, nil); err != nil {
				log.Printf("metrics server: %v", err)
			}
		}()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := s.Run(ctx); err != nil {
		log.Fatalf("consume: %v", err)
	}
	log.Print("stopped")
}
