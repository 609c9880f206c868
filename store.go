/*
   Copyright (c) 2023, btnmasher
   All rights reserved.
   Use of this source code is governed by a BSD-style
   license that can be found in the LICENSE file.
*/

package ircd

import (
	"sync"

	"github.com/google/uuid"

	"github.com/coreircd/ircd/shared/concurrentmap"
)

// ChangeKind classifies a Store mutation for subscribers (the broadcast and
// extension frameworks) that need to react to entity lifecycle events
// without polling.
type ChangeKind uint8

const (
	ChangeUserAdded ChangeKind = iota
	ChangeUserRemoved
	ChangeUserRenamed
	ChangeChannelAdded
	ChangeChannelRemoved
	ChangeServerAdded
	ChangeServerRemoved
)

// ChangeEvent describes a single Store mutation, published after the
// relevant cache entries have already been invalidated.
type ChangeEvent struct {
	Kind    ChangeKind
	Nick    string // for user events; the new nick for ChangeUserRenamed
	OldNick string // for ChangeUserRenamed only
	Channel string // for channel events
	Server  string // for server events
}

// Store is the central, concurrency-safe home for every User, Channel and
// RemoteServer entity known to this daemon (§3). Each logical collection is
// guarded by its own submap lock (via concurrentmap), so unrelated
// operations - e.g. a nick lookup and a channel join - never contend.
// Operations that must touch more than one submap atomically (e.g.
// renaming a nick touches both the nick index and, indirectly, every
// channel the user belongs to) acquire submaps in the fixed order:
// users -> channels -> servers, to make deadlock impossible.
type Store struct {
	usersByID   concurrentmap.ConcurrentMap[uuid.UUID, *User]
	usersByNick concurrentmap.ConcurrentMap[string, *User] // keyed by CaseFold(nick)
	channels    concurrentmap.ConcurrentMap[string, *Channel]
	servers     concurrentmap.ConcurrentMap[string, *RemoteServer]

	cache *LookupCache

	mu        sync.RWMutex
	listeners []chan<- ChangeEvent
}

// NewStore builds an empty Store with a lookup cache of the given capacity.
func NewStore(cacheCapacity int) *Store {
	return &Store{
		usersByID:   concurrentmap.New[uuid.UUID, *User](),
		usersByNick: concurrentmap.New[string, *User](),
		channels:    concurrentmap.New[string, *Channel](),
		servers:     concurrentmap.New[string, *RemoteServer](),
		cache:       NewLookupCache(cacheCapacity),
	}
}

// Subscribe registers ch to receive every future ChangeEvent. Intended for
// the broadcast and extension frameworks at startup; it is not meant to be
// called at a high rate since it takes Store's listener lock.
func (s *Store) Subscribe(ch chan<- ChangeEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, ch)
}

func (s *Store) publish(ev ChangeEvent) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.listeners {
		select {
		case ch <- ev:
		default:
			// a slow subscriber must not stall the store; it will miss events.
		}
	}
}

// AddUser indexes a newly-registered user by ID and nick. Returns
// ErrNickInUse if the casefolded nick is already taken.
func (s *Store) AddUser(user *User) error {
	fold := CaseFold(user.Nick())
	if s.usersByNick.Exists(fold) {
		return ErrNickInUse
	}

	s.usersByID.Set(user.ID(), user)
	s.usersByNick.Set(fold, user)
	s.publish(ChangeEvent{Kind: ChangeUserAdded, Nick: fold})
	return nil
}

// UserByNick looks up a user by nick, consulting the cache first.
func (s *Store) UserByNick(nick string) (*User, bool) {
	fold := CaseFold(nick)
	if user, ok := s.cache.GetUser(fold); ok {
		return user, true
	}

	user, ok := s.usersByNick.Get(fold)
	if ok {
		s.cache.PutUser(fold, user)
	}
	return user, ok
}

// UserByID looks up a user by its stable identity, unaffected by nick
// changes.
func (s *Store) UserByID(id uuid.UUID) (*User, bool) {
	return s.usersByID.Get(id)
}

// RenameUser moves a user's nick index entry from old to new. The cache
// entry for the old nick is invalidated before the rename is published, per
// the invalidate-before-publish discipline.
func (s *Store) RenameUser(user *User, newNick string) error {
	oldFold := CaseFold(user.Nick())
	newFold := CaseFold(newNick)

	if oldFold != newFold && s.usersByNick.Exists(newFold) {
		return ErrNickInUse
	}

	s.cache.InvalidateUser(oldFold)
	user.SetNick(newNick)
	s.usersByNick.Delete(oldFold)
	s.usersByNick.Set(newFold, user)

	s.publish(ChangeEvent{Kind: ChangeUserRenamed, Nick: newFold, OldNick: oldFold})
	return nil
}

// RemoveUser deregisters a user entirely (on QUIT or link loss).
func (s *Store) RemoveUser(user *User) {
	fold := CaseFold(user.Nick())
	s.cache.InvalidateUser(fold)
	s.usersByNick.Delete(fold)
	s.usersByID.Delete(user.ID())
	s.publish(ChangeEvent{Kind: ChangeUserRemoved, Nick: fold})
}

// UserCount returns the number of registered users.
func (s *Store) UserCount() int {
	return s.usersByID.Length()
}

// Users returns every registered user, for operator-only fanout (WALLOPS)
// and STATS reporting.
func (s *Store) Users() []*User {
	return s.usersByID.Values()
}

// AddChannel indexes a newly-created channel. Returns ErrAlreadyExists if a
// channel of that casefolded name already exists.
func (s *Store) AddChannel(channel *Channel) error {
	fold := CaseFold(channel.Name())
	if s.channels.Exists(fold) {
		return ErrAlreadyExists
	}
	s.channels.Set(fold, channel)
	s.publish(ChangeEvent{Kind: ChangeChannelAdded, Channel: fold})
	return nil
}

// Channel looks up a channel by name, consulting the cache first.
func (s *Store) Channel(name string) (*Channel, bool) {
	fold := CaseFold(name)
	if channel, ok := s.cache.GetChannel(fold); ok {
		return channel, true
	}

	channel, ok := s.channels.Get(fold)
	if ok {
		s.cache.PutChannel(fold, channel)
	}
	return channel, ok
}

// RemoveChannel deregisters a channel, typically once its last member parts.
func (s *Store) RemoveChannel(name string) {
	fold := CaseFold(name)
	s.cache.InvalidateChannel(fold)
	s.channels.Delete(fold)
	s.publish(ChangeEvent{Kind: ChangeChannelRemoved, Channel: fold})
}

// ChannelCount returns the number of known channels.
func (s *Store) ChannelCount() int {
	return s.channels.Length()
}

// Channels returns every known channel, for LIST.
func (s *Store) Channels() []*Channel {
	return s.channels.Values()
}

// AddServer indexes a newly-linked or newly-introduced peer.
func (s *Store) AddServer(server *RemoteServer) error {
	fold := CaseFold(server.Name())
	if s.servers.Exists(fold) {
		return ErrAlreadyExists
	}
	s.servers.Set(fold, server)
	s.publish(ChangeEvent{Kind: ChangeServerAdded, Server: fold})
	return nil
}

// Server looks up a peer by name.
func (s *Store) Server(name string) (*RemoteServer, bool) {
	return s.servers.Get(CaseFold(name))
}

// RemoveServer deregisters a peer, used during netsplit cascade cleanup.
func (s *Store) RemoveServer(name string) {
	fold := CaseFold(name)
	s.servers.Delete(fold)
	s.publish(ChangeEvent{Kind: ChangeServerRemoved, Server: fold})
}

// Servers returns every known peer, including this process's own SELF entry
// if one was registered.
func (s *Store) Servers() []*RemoteServer {
	return s.servers.Values()
}
