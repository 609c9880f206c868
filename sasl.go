/*
   Copyright (c) 2023, btnmasher
   All rights reserved.
   Use of this source code is governed by a BSD-style
   license that can be found in the LICENSE file.
*/

package ircd

import (
	"crypto/tls"
	"encoding/base64"
	"strings"
)

// SaslState tracks one connection's in-progress AUTHENTICATE exchange.
// Only PLAIN and EXTERNAL are implemented, matching §6; other mechanisms
// advertised in CAP LS are rejected with 908/904 once the client actually
// attempts them.
type SaslState struct {
	mechanism uint8
	buffer    strings.Builder
	active    bool
}

// Begin starts a mechanism negotiation. Returns false if the mechanism name
// is unrecognized (caller should reply 908/RPL_SASLMECHS then 904).
func (s *SaslState) Begin(mechanism string) bool {
	mech, ok := saslMechNames[strings.ToUpper(mechanism)]
	if !ok || (mech != SaslPlain && mech != SaslExternal) {
		return false
	}
	s.mechanism = mech
	s.active = true
	s.buffer.Reset()
	return true
}

// Active reports whether a mechanism negotiation is in progress.
func (s *SaslState) Active() bool {
	return s.active
}

// Feed appends one AUTHENTICATE continuation line's base64 payload. A
// payload of exactly "+" per the spec means "empty", and a 400-byte chunk
// means more continuation lines follow.
func (s *SaslState) Feed(payload string) {
	if payload == "+" {
		return
	}
	s.buffer.WriteString(payload)
}

// Finish decodes the accumulated payload and authenticates it against cfg
// for PLAIN, or against the connection's verified TLS client certificate
// for EXTERNAL. Returns the authenticated account name on success.
func (s *SaslState) Finish(cfg *Config, tlsState *tls.ConnectionState) (account string, err error) {
	defer func() {
		s.active = false
		s.buffer.Reset()
	}()

	switch s.mechanism {
	case SaslPlain:
		return s.finishPlain(cfg)
	case SaslExternal:
		return s.finishExternal(tlsState)
	default:
		return "", ErrNotImplemented
	}
}

// finishPlain decodes a SASL PLAIN payload (authzid NUL authcid NUL
// password) and checks it against the operator credential table, allowing
// account-authenticated non-operator logins to be layered in later by
// consulting a services backend instead.
func (s *SaslState) finishPlain(cfg *Config) (string, error) {
	raw, decErr := base64.StdEncoding.DecodeString(s.buffer.String())
	if decErr != nil {
		return "", ErrInsuffPerms
	}

	parts := strings.SplitN(string(raw), "\x00", 3)
	if len(parts) != 3 {
		return "", ErrInsuffPerms
	}

	authcid, password := parts[1], parts[2]

	for _, oper := range cfg.Opers {
		if CaseFoldEqual(oper.Nick, authcid) && verifyOperPassword(password, oper.PasswordHash) {
			return authcid, nil
		}
	}

	return "", ErrInsuffPerms
}

// finishExternal authenticates via the client certificate already
// presented during the TLS handshake; a non-TLS or certificate-less
// connection cannot use EXTERNAL.
func (s *SaslState) finishExternal(tlsState *tls.ConnectionState) (string, error) {
	if tlsState == nil || len(tlsState.PeerCertificates) == 0 {
		return "", ErrInsuffPerms
	}
	return tlsState.PeerCertificates[0].Subject.CommonName, nil
}
