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

	"github.com/coreircd/ircd/shared/concurrentmap"
)

// Channel represents an IRC channel. Membership prefixes (owner/op/halfop/
// voice) are tracked per §3's membership relation; keys into all maps below
// are casefolded nicks so that membership lookups are case-insensitive.
type Channel struct {
	sync.RWMutex

	name  string
	topic string

	modes uint64

	owner      *User
	savedOwner string // Owner username

	// Active Lists, keyed by CaseFold(nick)
	Nicks   concurrentmap.ConcurrentMap[string, *User]
	Ops     concurrentmap.ConcurrentMap[string, *User]
	HalfOps concurrentmap.ConcurrentMap[string, *User]
	Voiced  concurrentmap.ConcurrentMap[string, *User]

	// Persisted Lists: map[hostpattern]setter
	OpList     concurrentmap.ConcurrentMap[string, string]
	HalfOpList concurrentmap.ConcurrentMap[string, string]
	VoiceList  concurrentmap.ConcurrentMap[string, string]
	BanList    concurrentmap.ConcurrentMap[string, string]
	InviteList concurrentmap.ConcurrentMap[string, string]
}

// NewChannel initializes a Channel with the given name and owner.
func NewChannel(cname string, creator *User) *Channel {
	channel := &Channel{
		name:       cname,
		owner:      creator,
		Nicks:      concurrentmap.New[string, *User](),
		Ops:        concurrentmap.New[string, *User](),
		HalfOps:    concurrentmap.New[string, *User](),
		Voiced:     concurrentmap.New[string, *User](),
		OpList:     concurrentmap.New[string, string](),
		HalfOpList: concurrentmap.New[string, string](),
		VoiceList:  concurrentmap.New[string, string](),
		BanList:    concurrentmap.New[string, string](),
		InviteList: concurrentmap.New[string, string](),
	}

	return channel
}

// Name returns the name of the channel in a currency safe manner.
func (channel *Channel) Name() string {
	channel.RLock()
	defer channel.RUnlock()

	return channel.name
}

// SetName sets the name of the channel in a currency safe manner.
func (channel *Channel) SetName(new string) {
	channel.Lock()
	defer channel.Unlock()

	channel.name = new
}

// Topic returns the topic of the channel in a currency safe manner.
func (channel *Channel) Topic() string {
	channel.RLock()
	defer channel.RUnlock()

	return channel.topic
}

// SetTopic sets the topic of the channel in a currency safe manner.
func (channel *Channel) SetTopic(new string) {
	channel.Lock()
	defer channel.Unlock()

	channel.topic = new
}

// Owner returns the owner of the channel in a currency safe manner.
func (channel *Channel) Owner() *User {
	channel.RLock()
	defer channel.RUnlock()

	return channel.owner
}

// SetOwner sets the owner of the channel in a currency safe manner.
func (channel *Channel) SetOwner(new *User) {
	channel.Lock()
	defer channel.Unlock()

	channel.owner = new
	channel.savedOwner = new.Name()
}

// Modes returns the channel-mode bitmask in a concurrency-safe manner.
func (channel *Channel) Modes() uint64 {
	channel.RLock()
	defer channel.RUnlock()
	return channel.modes
}

// AddMode sets the given channel mode flag.
func (channel *Channel) AddMode(cmode uint64) {
	channel.Lock()
	defer channel.Unlock()
	channel.modes |= cmode
}

// DelMode clears the given channel mode flag.
func (channel *Channel) DelMode(cmode uint64) {
	channel.Lock()
	defer channel.Unlock()
	channel.modes &^= cmode
}

// ModeIsSet reports whether the given channel mode flag is set.
func (channel *Channel) ModeIsSet(cmode uint64) bool {
	channel.RLock()
	defer channel.RUnlock()
	return channel.modes&cmode == cmode
}

// Send routes msg to every local member of the channel (skipping exclude's
// own connection) and, if the channel has any known remote member, floods
// exactly one copy across every linked peer (§4.6).
func (channel *Channel) Send(daemon *Daemon, msg *Message, exclude string) {
	Deliver(daemon, RouteToChannel(channel, exclude), msg, "")
}

// Join adds the user to the channel and alerts all channel
// members of the event. Callers are responsible for checking
// channel-mode preconditions (invite-only, ban, key, limit) before calling.
func (channel *Channel) Join(daemon *Daemon, user *User, msg *Message) bool {
	channel.Nicks.Set(CaseFold(user.Nick()), user)
	channel.Send(daemon, msg, "")

	return true
}

// Part removes the user from the channel and alerts all channel
// members of the event.
func (channel *Channel) Part(daemon *Daemon, user *User, msg *Message) {
	channel.Send(daemon, msg, "")
	fold := CaseFold(user.Nick())
	channel.Nicks.Delete(fold)
	channel.Ops.Delete(fold)
	channel.HalfOps.Delete(fold)
	channel.Voiced.Delete(fold)
}

// Members returns the plain (unprefixed) nicks of every current member, used
// to populate a CHANNELBURST line for a newly-linked peer.
func (channel *Channel) Members() []string {
	nicks := make([]string, 0, channel.Nicks.Length())
	channel.Nicks.ForEach(func(_ string, user *User) error {
		nicks = append(nicks, user.Nick())
		return nil
	})
	return nicks
}

// GetNicks returns an array of the current nicknames of the users
// in the chanel, each prefixed with its highest membership rank symbol.
func (channel *Channel) GetNicks() []string {
	channel.RLock()
	defer channel.RUnlock()

	var buffer bytes.Buffer
	nicks := make([]string, 0, channel.Nicks.Length())

	channel.Nicks.ForEach(func(fold string, user *User) error {
		nick := user.Nick()

		switch {
		case channel.owner != nil && CaseFold(channel.owner.Nick()) == fold:
			buffer.WriteRune('~')
		case channel.Ops.Exists(fold):
			buffer.WriteRune('@')
		case channel.HalfOps.Exists(fold):
			buffer.WriteRune('%')
		case channel.Voiced.Exists(fold):
			buffer.WriteRune('+')
		}

		buffer.WriteString(nick)

		nicks = append(nicks, buffer.String())
		buffer.Reset()
		return nil
	})

	return nicks
}
