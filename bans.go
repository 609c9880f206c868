/*
   Copyright (c) 2023, btnmasher
   All rights reserved.
   Use of this source code is governed by a BSD-style
   license that can be found in the LICENSE file.
*/

package ircd

import (
	"sync"
	"time"
)

// BanKind distinguishes the four operator ban-line commands (§6). The
// matching semantics a real deployment layers on top of each (DNSBL lookups,
// CIDR ranges, propagation policy) are module-level plug-in concerns; the
// core only stores the glob mask and enforces it at the points listed below.
type BanKind uint8

const (
	// BanKindKLine bans an ident@host mask at registration time.
	BanKindKLine BanKind = iota
	// BanKindDLine bans a raw connecting IP address before registration.
	BanKindDLine
	// BanKindGLine is a network-wide KLine, propagated via burst/extension
	// hooks rather than enforced differently locally.
	BanKindGLine
	// BanKindXLine bans a glob mask against the realname (gecos) field.
	BanKindXLine
)

func (k BanKind) String() string {
	switch k {
	case BanKindKLine:
		return "K"
	case BanKindDLine:
		return "D"
	case BanKindGLine:
		return "G"
	case BanKindXLine:
		return "X"
	default:
		return "?"
	}
}

// BanEntry is a single active ban-line.
type BanEntry struct {
	Kind   BanKind
	Mask   string
	Reason string
	SetBy  string
	SetAt  time.Time
}

// BanRegistry holds the active K/D/G/X-lines for this server. It is a plain
// mutex-guarded slice-per-kind rather than a ConcurrentMap, since ban masks
// are matched by glob rather than looked up by exact key.
type BanRegistry struct {
	mu      sync.RWMutex
	entries map[BanKind][]*BanEntry
}

// NewBanRegistry builds an empty BanRegistry.
func NewBanRegistry() *BanRegistry {
	return &BanRegistry{entries: make(map[BanKind][]*BanEntry)}
}

// Add records a new ban-line, replacing any existing entry of the same kind
// and mask.
func (b *BanRegistry) Add(entry *BanEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()

	list := b.entries[entry.Kind]
	for i, existing := range list {
		if existing.Mask == entry.Mask {
			list[i] = entry
			return
		}
	}
	b.entries[entry.Kind] = append(list, entry)
}

// Remove deletes a ban-line by kind and exact mask. Reports whether an entry
// was found.
func (b *BanRegistry) Remove(kind BanKind, mask string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	list := b.entries[kind]
	for i, existing := range list {
		if existing.Mask == mask {
			b.entries[kind] = append(list[:i], list[i+1:]...)
			return true
		}
	}
	return false
}

// Entries returns a snapshot of every active ban-line of the given kind.
func (b *BanRegistry) Entries(kind BanKind) []*BanEntry {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]*BanEntry, len(b.entries[kind]))
	copy(out, b.entries[kind])
	return out
}

// Matching returns the first ban-line of the given kind whose mask matches
// subject, or nil if none match.
func (b *BanRegistry) Matching(kind BanKind, subject string) *BanEntry {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, entry := range b.entries[kind] {
		if globMatch(entry.Mask, subject) {
			return entry
		}
	}
	return nil
}
