/*
   Copyright (c) 2023, btnmasher
   All rights reserved.
   Use of this source code is governed by a BSD-style
   license that can be found in the LICENSE file.
*/

package ircd

import (
	"io"
	"sync/atomic"
)

// ConfigHolder provides atomic, lock-free reads of the active Config from
// any goroutine, with a validate-then-swap update path for REHASH (§6):
// a candidate config is fully parsed and validated before it ever becomes
// visible to readers, so a malformed REHASH input cannot leave the server
// running with half-applied settings.
type ConfigHolder struct {
	current atomic.Pointer[Config]
}

// NewConfigHolder wraps an already-validated initial config.
func NewConfigHolder(initial *Config) *ConfigHolder {
	h := &ConfigHolder{}
	h.current.Store(initial)
	return h
}

// Load returns the currently active config.
func (h *ConfigHolder) Load() *Config {
	return h.current.Load()
}

// RehashResult reports what a Rehash call changed, for the REHASH numeric
// replies (382/ReplyRehashing and a completion notice).
type RehashResult struct {
	OperCountBefore, OperCountAfter     int
	LinkCountBefore, LinkCountAfter     int
	HostnameChanged                     bool
}

// Rehash parses and validates a new config from r, and only then swaps it
// in atomically. On any parse or validation error, the previously active
// config is left completely untouched.
func (h *ConfigHolder) Rehash(r io.Reader) (*RehashResult, error) {
	next, err := LoadConfig(r)
	if err != nil {
		return nil, err
	}

	prev := h.current.Load()
	result := &RehashResult{
		LinkCountBefore: len(prev.Links),
		LinkCountAfter:  len(next.Links),
	}
	if prev != nil {
		result.OperCountBefore = len(prev.Opers)
		result.HostnameChanged = prev.Server.Hostname != next.Server.Hostname
	}
	result.OperCountAfter = len(next.Opers)

	h.current.Store(next)
	return result, nil
}
