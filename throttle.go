/*
   Copyright (c) 2023, btnmasher
   All rights reserved.
   Use of this source code is governed by a BSD-style
   license that can be found in the LICENSE file.
*/

package ircd

import (
	"sync"

	"golang.org/x/time/rate"
)

// Throttle gates new-connection admission per source address, so a single
// host opening connections in a tight loop cannot exhaust file descriptors
// or the registration handshake's CPU budget. Each address gets its own
// token bucket, created lazily and never proactively evicted here; callers
// needing bounded memory under a large address cardinality should pair this
// with a periodic sweep (left to the daemon's housekeeping loop).
type Throttle struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter

	rps   rate.Limit
	burst int
}

// NewThrottle builds a Throttle allowing burst immediate connections per
// address, refilling at rps connections/sec thereafter.
func NewThrottle(rps float64, burst int) *Throttle {
	return &Throttle{
		buckets: make(map[string]*rate.Limiter),
		rps:     rate.Limit(rps),
		burst:   burst,
	}
}

// Allow reports whether a new connection from addr should be admitted.
func (t *Throttle) Allow(addr string) bool {
	t.mu.Lock()
	limiter, ok := t.buckets[addr]
	if !ok {
		limiter = rate.NewLimiter(t.rps, t.burst)
		t.buckets[addr] = limiter
	}
	t.mu.Unlock()

	return limiter.Allow()
}

// Forget drops the bucket for addr, e.g. once the daemon is confident the
// address is no longer actively connecting.
func (t *Throttle) Forget(addr string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.buckets, addr)
}
