// Copyright 2017 someonegg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package nsqpump provides a consumer for a single NSQ-style broker
// connection.
//
// After the handshake the consumer will continuously receive frames,
// hand each message to the Handler and send the returned Reply back.
//
// The transport layer is a stream of length-prefixed frames:
//
//	Size(4-bytes uint, big-endian)Type(4-bytes)Data
//
// A message frame's data is:
//
//	Timestamp(8-bytes int)Attempts(2-bytes uint)ID(16-bytes)Body
//
// Replies are text lines: "FIN <id>\n", "REQ <id>\n", "TOUCH <id>\n" and
// "NOP\n", the last one answers the broker heartbeats.
//
// Here is a quick example.
//
//	cfg := nsqpump.NewConfig()
//	c, err := nsqpump.NewConsumer("test", "chan", cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	err = c.ConnectToBroker(ctx, "127.0.0.1:4150")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	c.AddHandler(nsqpump.HandlerFunc(func(ctx context.Context, m *nsqpump.Message) nsqpump.Reply {
//		log.Printf("the message is %s", m.Body)
//		return nsqpump.Finish(m.ID)
//	}))
//
//	err = c.BeginConsuming(ctx)
//	log.Printf("consumer stop, error: %v", err)
//
// A Consumer runs one session and there is no reconnect; the supervisor
// package wraps it with a backoff reconnect loop.
package nsqpump
