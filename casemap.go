/*
   Copyright (c) 2023, btnmasher
   All rights reserved.
   Use of this source code is governed by a BSD-style
   license that can be found in the LICENSE file.
*/

package ircd

import "strings"

// rfc1459Fold maps the four ASCII characters RFC 1459 folds specially: '{',
// '}', '|' and '^' fold onto '[', ']', '\\' and '~' respectively, on top of
// ordinary ASCII case folding.
var rfc1459Fold = map[rune]rune{
	'{': '[',
	'}': ']',
	'|': '\\',
	'^': '~',
}

// CaseFold lowercases s under the RFC 1459 casemapping rule, used throughout
// the store and membership packages for nick/channel equality so that, e.g.,
// "Bob" and "bob" and "BOB" all refer to the same folded identity, and "{Bob}"
// folds to "[bob]".
func CaseFold(s string) string {
	lowered := strings.ToLower(s)
	var b strings.Builder
	b.Grow(len(lowered))
	for _, r := range lowered {
		if folded, ok := rfc1459Fold[r]; ok {
			b.WriteRune(folded)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// CaseFoldEqual reports whether a and b are equal under RFC 1459 casemapping,
// without allocating a folded copy of either when they are already equal
// byte-for-byte.
func CaseFoldEqual(a, b string) bool {
	if a == b {
		return true
	}
	return CaseFold(a) == CaseFold(b)
}
