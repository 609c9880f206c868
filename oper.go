/*
   Copyright (c) 2023, btnmasher
   All rights reserved.
   Use of this source code is governed by a BSD-style
   license that can be found in the LICENSE file.
*/

package ircd

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// argon2 tuning parameters. These favor interactive OPER latency over
// maximum resistance; an operator login happens rarely enough that a more
// conservative memory cost would also be acceptable, but this keeps a
// malicious OPER flood from being an effective CPU-exhaustion vector.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024 // KiB
	argonThreads = 4
	argonKeyLen  = 32
	argonSaltLen = 16
)

// HashOperPassword produces a self-describing argon2id hash string suitable
// for storage in OperConfig.PasswordHash.
func HashOperPassword(password string) (string, error) {
	salt := make([]byte, argonSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)

	return fmt.Sprintf("$argon2id$v=19$m=%d,t=%d,p=%d$%s$%s",
		argonMemory, argonTime, argonThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

// verifyOperPassword checks password against an encoded hash produced by
// HashOperPassword, in constant time.
func verifyOperPassword(password, encoded string) bool {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false
	}

	var mem uint32
	var t uint32
	var p uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &mem, &t, &p); err != nil {
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false
	}

	got := argon2.IDKey([]byte(password), salt, t, mem, p, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1
}

// hostmaskMatches reports whether hostmask (nick!user@host) matches pattern,
// which may use '*' and '?' glob wildcards per RFC 1459 ban-mask semantics.
func hostmaskMatches(pattern, hostmask string) bool {
	return globMatch(CaseFold(pattern), CaseFold(hostmask))
}

func globMatch(pattern, s string) bool {
	// Standard two-pointer glob matcher with backtracking, supporting '*'
	// and '?'; sufficient for IRC ban/oper host patterns without pulling in
	// a regexp compile per check.
	var pIdx, sIdx, starIdx, sTmpIdx int
	starIdx, sTmpIdx = -1, -1

	for sIdx < len(s) {
		if pIdx < len(pattern) && (pattern[pIdx] == '?' || pattern[pIdx] == s[sIdx]) {
			pIdx++
			sIdx++
		} else if pIdx < len(pattern) && pattern[pIdx] == '*' {
			starIdx = pIdx
			sTmpIdx = sIdx
			pIdx++
		} else if starIdx != -1 {
			pIdx = starIdx + 1
			sTmpIdx++
			sIdx = sTmpIdx
		} else {
			return false
		}
	}

	for pIdx < len(pattern) && pattern[pIdx] == '*' {
		pIdx++
	}

	return pIdx == len(pattern)
}

// AuthenticateOper checks nick/password/hostmask against the configured
// OperConfig entries and returns the matching entry's granted flag set.
func AuthenticateOper(cfg *Config, nick, password, hostmask string) (OperFlagSet, error) {
	for _, oper := range cfg.Opers {
		if !CaseFoldEqual(oper.Nick, nick) {
			continue
		}
		if !hostmaskMatches(oper.HostPattern, hostmask) {
			continue
		}
		if !verifyOperPassword(password, oper.PasswordHash) {
			return 0, ErrInsuffPerms
		}
		return oper.FlagSet(), nil
	}
	return 0, ErrInsuffPerms
}
