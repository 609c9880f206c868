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

// LinkState is the server-to-server connection's own state machine,
// parallel to a client Conn's Registration but simpler: a link is either
// mid-handshake, bursting, or fully synchronized.
type LinkState uint8

const (
	LinkConnecting LinkState = iota
	LinkAuthenticating
	LinkBursting
	LinkSynced
)

// ServerLink wraps a peer Conn with the extra bookkeeping a server-to-server
// connection needs beyond a client one: its LinkState, the RemoteServer
// entity it represents, and a burst deadline so a peer that never sends
// ENDOFBURST gets disconnected rather than left in limbo (§4.7, ErrBurstTimeout).
type ServerLink struct {
	mu sync.RWMutex

	conn  *Conn
	peer  *RemoteServer
	state LinkState

	burstDeadline time.Time
	incoming      bool // true if this peer connected to us, false if we connected out
}

// NewServerLink wraps conn as a not-yet-authenticated peer link.
func NewServerLink(conn *Conn, incoming bool) *ServerLink {
	return &ServerLink{conn: conn, state: LinkConnecting, incoming: incoming}
}

// State returns the link's current state.
func (l *ServerLink) State() LinkState {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// Authenticate transitions the link to LinkBursting once peer credentials
// have been verified (link password, and in a production deployment,
// certificate fingerprint pinning), registers peer, and arms the burst
// timeout.
func (l *ServerLink) Authenticate(peer *RemoteServer, burstTimeout time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.peer = peer
	l.state = LinkBursting
	l.burstDeadline = time.Now().Add(burstTimeout)
}

// BurstExpired reports whether the burst deadline has passed without the
// link reaching LinkSynced.
func (l *ServerLink) BurstExpired() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state == LinkBursting && time.Now().After(l.burstDeadline)
}

// CompleteBurst transitions the link to LinkSynced once ENDOFBURST has been
// exchanged in both directions.
func (l *ServerLink) CompleteBurst() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = LinkSynced
	if l.peer != nil {
		l.peer.SetBurstDone()
	}
}

// Peer returns the RemoteServer entity this link represents, or nil before
// authentication completes.
func (l *ServerLink) Peer() *RemoteServer {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.peer
}

// LinkRegistry tracks every active server-to-server connection by peer name,
// so routing and netsplit cleanup can enumerate links without scanning the
// client connection table.
type LinkRegistry struct {
	mu    sync.RWMutex
	links map[string]*ServerLink
}

// NewLinkRegistry returns an empty registry.
func NewLinkRegistry() *LinkRegistry {
	return &LinkRegistry{links: make(map[string]*ServerLink)}
}

// Add registers an authenticated link under its peer's casefolded name.
func (r *LinkRegistry) Add(link *ServerLink) {
	peer := link.Peer()
	if peer == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.links[CaseFold(peer.Name())] = link
}

// Get returns the link for a peer name, if connected.
func (r *LinkRegistry) Get(name string) (*ServerLink, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	link, ok := r.links[CaseFold(name)]
	return link, ok
}

// Remove drops a peer's link entry, used during SQUIT/netsplit teardown.
func (r *LinkRegistry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.links, CaseFold(name))
}

// Names returns every currently-linked peer's name, for loop-prevention
// dedup. LINKS output is built from Store.Servers, not from this list.
func (r *LinkRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.links))
	for name := range r.links {
		names = append(names, name)
	}
	return names
}
