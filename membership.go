/*
   Copyright (c) 2023, btnmasher
   All rights reserved.
   Use of this source code is governed by a BSD-style
   license that can be found in the LICENSE file.
*/

package ircd

// MemberPrefix is a single membership rank a user can hold in a channel.
// Multiple ranks may be held simultaneously (§3: a user can be both op and
// voiced), rendered highest-rank-first by Channel.GetNicks.
type MemberPrefix uint8

const (
	PrefixOwner MemberPrefix = 1 << iota
	PrefixOp
	PrefixHalfOp
	PrefixVoice
)

// prefixSymbols orders ranks from highest to lowest for display, matching
// GetNicks' switch in channel.go.
var prefixSymbols = []struct {
	rank   MemberPrefix
	symbol byte
}{
	{PrefixOwner, '~'},
	{PrefixOp, '@'},
	{PrefixHalfOp, '%'},
	{PrefixVoice, '+'},
}

// Has reports whether want is present in the set.
func (p MemberPrefix) Has(want MemberPrefix) bool {
	return p&want == want
}

// HighestSymbol returns the display symbol for the highest rank in the set,
// or 0 if the set carries no rank.
func (p MemberPrefix) HighestSymbol() byte {
	for _, entry := range prefixSymbols {
		if p.Has(entry.rank) {
			return entry.symbol
		}
	}
	return 0
}

// membershipOf derives a channel member's MemberPrefix set from the
// per-rank lookup maps on Channel, keeping invariant consistency (§3
// invariant: channel<->user membership, derived ranks agree with the
// authoritative Ops/HalfOps/Voiced/owner fields) in one place rather than
// duplicating the switch logic at each call site.
func membershipOf(channel *Channel, user *User) MemberPrefix {
	channel.RLock()
	owner := channel.owner
	channel.RUnlock()

	fold := CaseFold(user.Nick())
	var prefix MemberPrefix

	if owner != nil && CaseFold(owner.Nick()) == fold {
		prefix |= PrefixOwner
	}
	if channel.Ops.Exists(fold) {
		prefix |= PrefixOp
	}
	if channel.HalfOps.Exists(fold) {
		prefix |= PrefixHalfOp
	}
	if channel.Voiced.Exists(fold) {
		prefix |= PrefixVoice
	}

	return prefix
}
