/*
   Copyright (c) 2023, btnmasher
   All rights reserved.
   Use of this source code is governed by a BSD-style
   license that can be found in the LICENSE file.
*/

package ircd

import "sync"

// RegState is the explicit connection registration state machine (§5):
// Connected -> [PasswordProvided] -> NickSet/UserSet (either order) ->
// Registered. CAP negotiation, once started, suspends the transition to
// Registered until CAP END is received even if NICK/USER are both already
// satisfied.
type RegState uint8

const (
	StateConnected RegState = iota
	StatePasswordProvided
	StateNickSet
	StateUserSet
	StateNickUserSet // both NICK and USER received, but not yet Registered
	StateCapNegotiating
	StateRegistered
)

// String renders the state name for logging.
func (s RegState) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StatePasswordProvided:
		return "password_provided"
	case StateNickSet:
		return "nick_set"
	case StateUserSet:
		return "user_set"
	case StateNickUserSet:
		return "nick_user_set"
	case StateCapNegotiating:
		return "cap_negotiating"
	case StateRegistered:
		return "registered"
	default:
		return "unknown"
	}
}

// Registration tracks the pieces of client registration handshake state
// that don't belong on Conn's I/O plumbing or on User's post-registration
// identity: whether a password was supplied, whether NICK/USER
// have each been seen, and whether CAP negotiation is in progress.
type Registration struct {
	mu sync.Mutex

	state      RegState
	sawNick    bool
	sawUser    bool
	capStarted bool
	capDone    bool
	completed  bool
}

// State returns the current registration state.
func (r *Registration) State() RegState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Registered reports whether registration has completed.
func (r *Registration) Registered() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state == StateRegistered
}

// BeginCapNegotiation marks that CAP LS/REQ has started, suspending
// registration completion until EndCapNegotiation is called.
func (r *Registration) BeginCapNegotiation() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.capStarted = true
	r.capDone = false
}

// EndCapNegotiation marks CAP END and attempts to advance to Registered.
func (r *Registration) EndCapNegotiation() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.capDone = true
	r.advanceLocked()
}

// MarkNick records that NICK has been accepted and attempts to advance.
func (r *Registration) MarkNick() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sawNick = true
	r.advanceLocked()
}

// MarkUser records that USER has been accepted and attempts to advance.
func (r *Registration) MarkUser() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sawUser = true
	r.advanceLocked()
}

// advanceLocked recomputes state from the sawNick/sawUser/cap flags. Caller
// must hold mu.
func (r *Registration) advanceLocked() {
	switch {
	case r.sawNick && r.sawUser && (!r.capStarted || r.capDone):
		r.state = StateRegistered
	case r.sawNick && r.sawUser:
		r.state = StateNickUserSet
	case r.sawNick:
		r.state = StateNickSet
	case r.sawUser:
		r.state = StateUserSet
	}

	if r.capStarted && !r.capDone && r.state != StateRegistered {
		r.state = StateCapNegotiating
	}
}

// TryComplete reports whether the state machine has just reached
// StateRegistered for the first time, claiming that transition so only one
// caller ever runs post-registration side effects for this connection.
func (r *Registration) TryComplete() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == StateRegistered && !r.completed {
		r.completed = true
		return true
	}
	return false
}

// MarkPasswordProvided records that a PASS was supplied. The value is not
// checked against any configured password.
func (r *Registration) MarkPasswordProvided() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == StateConnected {
		r.state = StatePasswordProvided
	}
}
