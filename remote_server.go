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

// RemoteServer is the data-model entity for a peer in the server-to-server
// topology (§3). It is distinct from Daemon, which is this process's own
// listening instance; RemoteServer describes a node reachable over a link,
// including this process's own entry (SELF), used so routing code can treat
// the local server uniformly with its peers.
type RemoteServer struct {
	sync.RWMutex

	name        string
	description string
	hopCount    int
	introducer  string // name of the server that introduced this one, empty for directly-linked or self
	linkedAt    time.Time
	burstDone   bool
}

// NewRemoteServer returns a RemoteServer entry for name, introduced by
// introducer at the given hop count (0 for directly linked peers).
func NewRemoteServer(name, description, introducer string, hopCount int) *RemoteServer {
	return &RemoteServer{
		name:        name,
		description: description,
		introducer:  introducer,
		hopCount:    hopCount,
		linkedAt:    time.Now(),
	}
}

// Name returns the server's name in a concurrency-safe manner.
func (s *RemoteServer) Name() string {
	s.RLock()
	defer s.RUnlock()
	return s.name
}

// Description returns the server's description string.
func (s *RemoteServer) Description() string {
	s.RLock()
	defer s.RUnlock()
	return s.description
}

// HopCount returns the number of links between this process and the peer.
func (s *RemoteServer) HopCount() int {
	s.RLock()
	defer s.RUnlock()
	return s.hopCount
}

// Introducer returns the name of the server that introduced this peer into
// the network, or "" if it is directly linked or is this process itself.
func (s *RemoteServer) Introducer() string {
	s.RLock()
	defer s.RUnlock()
	return s.introducer
}

// BurstDone reports whether the initial burst synchronization with this peer
// has completed.
func (s *RemoteServer) BurstDone() bool {
	s.RLock()
	defer s.RUnlock()
	return s.burstDone
}

// SetBurstDone marks the burst phase complete.
func (s *RemoteServer) SetBurstDone() {
	s.Lock()
	defer s.Unlock()
	s.burstDone = true
}

// LinkedAt returns when this peer entry was created.
func (s *RemoteServer) LinkedAt() time.Time {
	s.RLock()
	defer s.RUnlock()
	return s.linkedAt
}
