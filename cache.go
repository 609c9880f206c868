/*
   Copyright (c) 2023, btnmasher
   All rights reserved.
   Use of this source code is governed by a BSD-style
   license that can be found in the LICENSE file.
*/

package ircd

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// LookupCache is a bounded, LRU-evicted shortcut for the store's hot-path
// nick/channel lookups. It is never the system of record: Store's
// concurrentmap submaps hold the authoritative state, and every mutating
// Store operation invalidates the relevant cache entry *before* publishing
// its change event, so a concurrent reader can never observe a cache hit
// for a record that has already been announced as stale.
type LookupCache struct {
	nicks lru.Cache[string, *User]
	chans lru.Cache[string, *Channel]
}

// NewLookupCache builds a LookupCache with the given per-kind capacity.
func NewLookupCache(capacity int) *LookupCache {
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}

	nicks, err := lru.New[string, *User](capacity)
	if err != nil {
		panic(err) // only returns an error for capacity <= 0, excluded above
	}

	chans, err := lru.New[string, *Channel](capacity)
	if err != nil {
		panic(err)
	}

	return &LookupCache{nicks: *nicks, chans: *chans}
}

// GetUser returns the cached user for a casefolded nick, if present.
func (c *LookupCache) GetUser(fold string) (*User, bool) {
	return c.nicks.Get(fold)
}

// PutUser caches user under its casefolded nick.
func (c *LookupCache) PutUser(fold string, user *User) {
	c.nicks.Add(fold, user)
}

// InvalidateUser evicts any cached entry for the casefolded nick. Must be
// called before a store mutation affecting that nick is published.
func (c *LookupCache) InvalidateUser(fold string) {
	c.nicks.Remove(fold)
}

// GetChannel returns the cached channel for a casefolded name, if present.
func (c *LookupCache) GetChannel(fold string) (*Channel, bool) {
	return c.chans.Get(fold)
}

// PutChannel caches channel under its casefolded name.
func (c *LookupCache) PutChannel(fold string, channel *Channel) {
	c.chans.Add(fold, channel)
}

// InvalidateChannel evicts any cached entry for the casefolded channel name.
func (c *LookupCache) InvalidateChannel(fold string) {
	c.chans.Remove(fold)
}
