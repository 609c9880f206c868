/*
   Copyright (c) 2020, btnmasher
   All rights reserved.

   Redistribution and use in source and binary forms, with or without modification, are permitted provided that
   the following conditions are met:

   1. Redistributions of source code must retain the above copyright notice, this list of conditions and the
      following disclaimer.

   2. Redistributions in binary form must reproduce the above copyright notice, this list of conditions and
      the following disclaimer in the documentation and/or other materials provided with the distribution.

   3. Neither the name of the copyright holder nor the names of its contributors may be used to endorse or
      promote products derived from this software without specific prior written permission.

   THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND CONTRIBUTORS "AS IS" AND ANY EXPRESS OR IMPLIED
   WARRANTIES, INCLUDING, BUT NOT LIMITED TO, THE IMPLIED WARRANTIES OF MERCHANTABILITY AND FITNESS FOR A
   PARTICULAR PURPOSE ARE DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR CONTRIBUTORS BE LIABLE FOR
   ANY DIRECT, INDIRECT, INCIDENTAL, SPECIAL, EXEMPLARY, OR CONSEQUENTIAL DAMAGES (INCLUDING, BUT NOT LIMITED
   TO, PROCUREMENT OF SUBSTITUTE GOODS OR SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS INTERRUPTION)
   HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY, WHETHER IN CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING
   NEGLIGENCE OR OTHERWISE) ARISING IN ANY WAY OUT OF THE USE OF THIS SOFTWARE, EVEN IF ADVISED OF THE
   POSSIBILITY OF SUCH DAMAGE.
*/

package ircd

import (
	"bytes"
	"sync"
	"time"

	"github.com/google/uuid"
)

// User holds all of the state in the context of a connected user. Identity
// is the UUID, which never changes across a nick change (§3 invariant 1);
// nick is merely the current display handle and casemapped lookup key.
type User struct {
	sync.RWMutex

	id uuid.UUID

	nick          string
	name          string
	host          string
	real          string
	vanityHost    string
	vanityEnabled bool
	away          string
	perm          uint8
	mode          uint64
	operFlags     OperFlagSet

	server       string // originating server name (§3); this daemon's hostname for local users
	registeredAt time.Time
	lastActivity time.Time
	account      string
	identified   bool

	conn *Conn
}

// NewUser returns a new instance of a user object for a locally-registering
// client, assigning it a fresh opaque identity and stamping its registration
// instant. The caller is responsible for setting Server once the owning
// daemon is known (see Conn.NewConn).
func NewUser(nickname, username, realname, hostname string) *User {
	now := time.Now()
	return &User{
		id:           uuid.New(),
		nick:         nickname,
		name:         username,
		real:         realname,
		host:         hostname,
		perm:         UPermUser,
		registeredAt: now,
		lastActivity: now,
	}
}

// NewRemoteUser returns a User introduced via a peer's burst, preserving the
// network-assigned identity and registration instant instead of minting a
// fresh local UUID, so the identity stays stable across every server that
// learns of this user (§3 invariant 1, §4.7).
func NewRemoteUser(id uuid.UUID, nickname, username, realname, hostname, server string, registeredAt time.Time) *User {
	return &User{
		id:           id,
		nick:         nickname,
		name:         username,
		real:         realname,
		host:         hostname,
		perm:         UPermUser,
		server:       server,
		registeredAt: registeredAt,
		lastActivity: registeredAt,
	}
}

// ID returns the user's stable opaque identity. It never changes for the
// lifetime of the connection, regardless of nick changes.
func (user *User) ID() uuid.UUID {
	user.RLock()
	defer user.RUnlock()
	return user.id
}

// Hostmask returns the string form of the full IRC hostmask.
// It will return the Vanity hostname insteead of the regular
// hostname if VanityEnabled is set to true, and the VanityHost
// is set in the User object.
//
// <nick>!<username>@<hostname|vanityhost>
func (user *User) Hostmask() string {
	user.RLock()
	defer user.RUnlock()
	var buffer bytes.Buffer

	buffer.WriteString(user.nick)
	buffer.WriteString("!")
	buffer.WriteString(user.name)
	buffer.WriteString("@")

	if user.vanityEnabled && len(user.vanityHost) > 0 {
		buffer.WriteString(user.vanityHost)
	} else {
		buffer.WriteString(user.host)
	}

	return buffer.String()
}

// RealHostmask returns the string form of the full IRC hostmask.
// It will not return the Vanity hostname even if VanityEnabled
// is set to true.
//
// <nick>!<username>@<hostname>
func (user *User) RealHostmask() string {
	user.RLock()
	defer user.RUnlock()
	var buffer bytes.Buffer

	buffer.WriteString(user.nick)
	buffer.WriteString("!")
	buffer.WriteString(user.name)
	buffer.WriteString("@")
	buffer.WriteString(user.host)

	return buffer.String()
}

// Nick returns the nick field of the user in a
// concurrency-safe manner.
func (user *User) Nick() string {
	user.RLock()
	defer user.RUnlock()
	return user.nick
}

// SetNick sets the nick field of the user in a
// concurrency-safe manner.
func (user *User) SetNick(new string) {
	user.Lock()
	defer user.Unlock()
	user.nick = new
}

// Name returns the username field of the user in a
// concurrency-safe manner.
func (user *User) Name() string {
	user.RLock()
	defer user.RUnlock()
	return user.name
}

// SetName sets the username field of the user in a
// concurrency-safe manner.
func (user *User) SetName(new string) {
	user.Lock()
	defer user.Unlock()
	user.name = new
}

// Realname returns the realname field of the user in a
// concurrency-safe manner.
func (user *User) Realname() string {
	user.RLock()
	defer user.RUnlock()
	return user.real
}

// SetRealname sets the realname field of the user in a
// concurrency-safe manner.
func (user *User) SetRealname(new string) {
	user.Lock()
	defer user.Unlock()
	user.real = new
}

// SetHostname sets the hostname field of the user in a
// concurrency-safe manner.
func (user *User) SetHostname(new string) {
	user.Lock()
	defer user.Unlock()
	user.host = new
}

// Hostname returns the hostname field of the user in a
// concurrency-safe manner.
func (user *User) Hostname() string {
	user.RLock()
	defer user.RUnlock()
	return user.host
}

// VanityHost returns the vanityhost field of the user in a
// concurrency-safe manner.
func (user *User) VanityHost() string {
	user.RLock()
	defer user.RUnlock()
	return user.vanityHost
}

// SetVanityHost sets the vanityhost field of the user in a
// concurrency-safe manner.
func (user *User) SetVanityHost(new string) {
	user.Lock()
	defer user.Unlock()
	user.vanityHost = new
}

// Away returns the away message, and whether one is set.
func (user *User) Away() (string, bool) {
	user.RLock()
	defer user.RUnlock()
	return user.away, user.mode&UModeAway == UModeAway
}

// SetAway sets the away message and the UModeAway bit. An empty message
// clears both.
func (user *User) SetAway(message string) {
	user.Lock()
	defer user.Unlock()
	user.away = message
	if message == "" {
		user.mode &^= UModeAway
		return
	}
	user.mode |= UModeAway
}

// Permission returns the permission field of the user in a
// concurrency-safe manner.
func (user *User) Permission() uint8 {
	user.RLock()
	defer user.RUnlock()
	return user.perm
}

// SetPermission the permission field of the user in a
// concurrency-safe manner.
func (user *User) SetPermission(new uint8) {
	user.Lock()
	defer user.Unlock()
	user.perm = new
}

// OperFlags returns the granted operator capability set.
func (user *User) OperFlags() OperFlagSet {
	user.RLock()
	defer user.RUnlock()
	return user.operFlags
}

// Mode returns the mode field of the user in a
// concurrency-safe manner.
func (user *User) Mode() uint64 {
	user.RLock()
	defer user.RUnlock()
	return user.mode
}

// AddMode appends the specified mode flag to the user in a
// concurrency-safe manner.
func (user *User) AddMode(umode uint64) {
	user.Lock()
	defer user.Unlock()
	user.mode |= umode
}

// DelMode removes the specified mode flag from the user in a
// concurrency-safe manner.
func (user *User) DelMode(umode uint64) {
	user.Lock()
	defer user.Unlock()
	user.mode &^= umode
}

// ModeIsSet checks if a given user mode is currently
// set in a concurrency-safe manner.
func (user *User) ModeIsSet(umode uint64) bool {
	user.RLock()
	defer user.RUnlock()
	return (user.mode&umode == umode)
}

// VanityEnabled returns the vanityenabled field of the user in a
// concurrency-safe manner.
func (user *User) VanityEnabled() bool {
	user.RLock()
	defer user.RUnlock()
	return user.vanityEnabled
}

// SetVanityEnabled the vanityenabled field of the user in a
// concurrency-safe manner.
func (user *User) SetVanityEnabled(new bool) {
	user.Lock()
	defer user.Unlock()
	user.vanityEnabled = new
}

// HigherPerms checks if the given target User has a higher
// permission level than the Given user being checked.
func (user *User) HigherPerms(target uint8) bool {
	user.RLock()
	defer user.RUnlock()
	return user.perm > target
}

// Server returns the name of the server this user is connected to: this
// daemon's own hostname for a local user, or the origin server carried in
// its USERBURST entry for a remote one.
func (user *User) Server() string {
	user.RLock()
	defer user.RUnlock()
	return user.server
}

// SetServer sets the user's originating server name.
func (user *User) SetServer(new string) {
	user.Lock()
	defer user.Unlock()
	user.server = new
}

// RegisteredAt returns the instant this user completed registration,
// preserved across the network for remote users (§3, §4.7 nick-collision
// tie-break).
func (user *User) RegisteredAt() time.Time {
	user.RLock()
	defer user.RUnlock()
	return user.registeredAt
}

// LastActivity returns the last time this user was seen to do anything.
func (user *User) LastActivity() time.Time {
	user.RLock()
	defer user.RUnlock()
	return user.lastActivity
}

// Touch stamps LastActivity with the current time.
func (user *User) Touch() {
	user.Lock()
	defer user.Unlock()
	user.lastActivity = time.Now()
}

// Account returns the services account name this user is identified to, or
// "" if not identified.
func (user *User) Account() string {
	user.RLock()
	defer user.RUnlock()
	return user.account
}

// SetAccount sets the services account name.
func (user *User) SetAccount(new string) {
	user.Lock()
	defer user.Unlock()
	user.account = new
}

// Identified reports whether the user has successfully identified to
// services.
func (user *User) Identified() bool {
	user.RLock()
	defer user.RUnlock()
	return user.identified
}

// SetIdentified sets whether the user has identified to services.
func (user *User) SetIdentified(new bool) {
	user.Lock()
	defer user.Unlock()
	user.identified = new
}

// IsLocal reports whether this user has a live connection on this process,
// as opposed to a remote user known only via burst/propagation. Routing code
// uses this to decide between a direct conn.Write and flooding across links.
func (user *User) IsLocal() bool {
	user.RLock()
	defer user.RUnlock()
	return user.conn != nil
}
