// Copyright 2017 someonegg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package nsqpump

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// MaxRdyCount is the largest accepted MaxInFlight, it matches the broker
// default of max-rdy-count.
const MaxRdyCount = 2500

// Config holds the consumer tunables.
//
// Use NewConfig to get the defaults. The zero value keeps MaxInFlight at
// 0, which subscribes with "RDY 0" and receives no message.
type Config struct {
	// MaxInFlight is sent as the initial RDY count, 0 to MaxRdyCount.
	MaxInFlight int `yaml:"max_in_flight" json:"max_in_flight"`

	MaxFrameSize int           `yaml:"max_frame_size" json:"max_frame_size"`
	DialTimeout  time.Duration `yaml:"dial_timeout" json:"dial_timeout"`

	// WriteQueueSize bounds the replies waiting for the socket, defaults
	// to MaxInFlight.
	WriteQueueSize int `yaml:"write_queue_size" json:"write_queue_size"`

	// Used by the supervisor package.
	ReconnectMinBackoff  time.Duration `yaml:"reconnect_min_backoff" json:"reconnect_min_backoff"`
	ReconnectMaxBackoff  time.Duration `yaml:"reconnect_max_backoff" json:"reconnect_max_backoff"`
	MaxReconnectAttempts int           `yaml:"max_reconnect_attempts" json:"max_reconnect_attempts"`
}

// NewConfig returns a Config with the default values.
func NewConfig() Config {
	c := Config{MaxInFlight: 1}
	c.setDefaults()
	return c
}

func (c *Config) setDefaults() {
	if c.MaxFrameSize == 0 {
		c.MaxFrameSize = DefaultMaxFrameSize
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.WriteQueueSize == 0 {
		c.WriteQueueSize = c.MaxInFlight
	}
	if c.ReconnectMinBackoff == 0 {
		c.ReconnectMinBackoff = time.Second
	}
	if c.ReconnectMaxBackoff == 0 {
		c.ReconnectMaxBackoff = time.Minute
	}
}

// Validate checks the value ranges.
func (c Config) Validate() error {
	if c.MaxInFlight < 0 || c.MaxInFlight > MaxRdyCount {
		return fmt.Errorf("nsqpump: config: max_in_flight %d out of range [0, %d]", c.MaxInFlight, MaxRdyCount)
	}
	if c.MaxFrameSize < minMessageLength {
		return fmt.Errorf("nsqpump: config: max_frame_size %d is below %d", c.MaxFrameSize, minMessageLength)
	}
	if c.WriteQueueSize < 0 || c.WriteQueueSize > MaxRdyCount {
		return fmt.Errorf("nsqpump: config: write_queue_size %d out of range [0, %d]", c.WriteQueueSize, MaxRdyCount)
	}
	if c.ReconnectMaxBackoff < c.ReconnectMinBackoff {
		return errors.New("nsqpump: config: reconnect_max_backoff is below reconnect_min_backoff")
	}
	if c.MaxReconnectAttempts < 0 {
		return fmt.Errorf("nsqpump: config: max_reconnect_attempts %d is negative", c.MaxReconnectAttempts)
	}
	return nil
}

// ParseConfig decodes a yaml document, missing keys keep their defaults.
func ParseConfig(data []byte) (Config, error) {
	c := NewConfig()
	// WriteQueueSize follows the decoded MaxInFlight unless set.
	c.WriteQueueSize = 0
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Config{}, fmt.Errorf("nsqpump: config: %w", err)
	}
	c.setDefaults()
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// LoadConfig reads and decodes a yaml config file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("nsqpump: failed to read config file %s: %w", path, err)
	}
	return ParseConfig(data)
}

func (c Config) queueSize() int {
	if c.WriteQueueSize > 0 {
		return clampQueue(c.WriteQueueSize)
	}
	return c.inflightSize()
}

func (c Config) inflightSize() int {
	return clampQueue(c.MaxInFlight)
}

func clampQueue(n int) int {
	if n < 1 {
		return 1
	}
	if n > MaxRdyCount {
		return MaxRdyCount
	}
	return n
}
