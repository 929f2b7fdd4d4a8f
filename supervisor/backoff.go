// Copyright 2019 someonegg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package supervisor

import (
	"math/rand"
	"time"
)

// backoff doubles the delay on each call up to max, with up to 10% jitter.
type backoff struct {
	current time.Duration
	min     time.Duration
	max     time.Duration
	factor  float64
}

func newBackoff(min, max time.Duration) *backoff {
	return &backoff{current: min, min: min, max: max, factor: 2.0}
}

func (b *backoff) duration() time.Duration {
	jitter := time.Duration(0)
	if j := int64(b.current) / 10; j > 0 {
		jitter = time.Duration(rand.Int63n(j))
	}
	d := b.current + jitter

	b.current = time.Duration(float64(b.current) * b.factor)
	if b.current > b.max {
		b.current = b.max
	}
	return d
}

func (b *backoff) reset() {
	b.current = b.min
}
