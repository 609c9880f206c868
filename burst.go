/*
   Copyright (c) 2023, btnmasher
   All rights reserved.
   Use of this source code is governed by a BSD-style
   license that can be found in the LICENSE file.
*/

package ircd

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// BurstSession drives one peer link through the SERVER/USERBURST/
// CHANNELBURST/ENDOFBURST exchange (§4.7), replaying this process's own
// known state to the new peer and applying the peer's state to the local
// Store. Nick collisions are resolved by earliest registration timestamp,
// tie-broken by UUID ordering (§4.7): since every UUID is distinct, this
// always yields a deterministic winner, so the network-wide "kill both"
// fallback the protocol allows never actually triggers in this
// implementation.
type BurstSession struct {
	daemon *Daemon
	link   *ServerLink
}

// NewBurstSession prepares a burst exchange for link against daemon's Store.
func NewBurstSession(daemon *Daemon, link *ServerLink) *BurstSession {
	return &BurstSession{daemon: daemon, link: link}
}

// OutboundBurst renders the full set of messages describing this process's
// current state, to be sent to a newly-linked peer: one SERVER line per
// known server (including self), one USERBURST per user, one CHANNELBURST
// per channel (carrying its member list), any registered BurstExtension
// contributions, and a trailing ENDOFBURST.
func (b *BurstSession) OutboundBurst(self *RemoteServer) []*Message {
	var msgs []*Message

	for _, srv := range b.daemon.Store.Servers() {
		msgs = append(msgs, &Message{
			Command:  CmdServer,
			Params:   []string{srv.Name()},
			Trailing: srv.Description(),
		})
	}

	for _, user := range b.daemon.Store.Users() {
		origin := user.Server()
		if origin == "" {
			origin = b.daemon.Hostname()
		}
		msgs = append(msgs, &Message{
			Command: CmdUserBurst,
			Params: []string{
				user.Nick(),
				user.Name(),
				user.Hostname(),
				origin,
				user.ID().String(),
				user.RegisteredAt().Format(time.RFC3339Nano),
			},
			Trailing: user.Realname(),
		})
	}

	for _, channel := range b.daemon.Store.Channels() {
		msgs = append(msgs, &Message{
			Command:  CmdChannelBurst,
			Params:   []string{channel.Name()},
			Trailing: strings.Join(channel.Members(), " "),
		})
	}

	msgs = append(msgs, b.daemon.Extensions.ContributeBurst(b.link.Peer())...)

	msgs = append(msgs, &Message{Command: CmdEndOfBurst})
	return msgs
}

// ApplyInbound processes one message received during the burst phase.
// Returns ErrBurstTimeout if the link's burst deadline has already passed.
func (b *BurstSession) ApplyInbound(msg *Message) error {
	if b.link.BurstExpired() {
		return NewKindedError(KindBurstTimeout, ErrBurstTimeout)
	}

	switch msg.Command {
	case CmdEndOfBurst:
		b.link.CompleteBurst()
		return nil
	case CmdServer:
		return b.applyServer(msg)
	case CmdUserBurst:
		return b.applyUser(msg)
	case CmdChannelBurst:
		return b.applyChannel(msg)
	default:
		if v := b.daemon.Extensions.ConsumeBurst(b.link.Peer(), msg); v == VetoRejected {
			return NewKindedError(KindExtensionFailure, ErrNotImplemented)
		}
		return nil
	}
}

func (b *BurstSession) applyServer(msg *Message) error {
	if len(msg.Params) < 1 {
		return ErrMissingParams
	}
	name := msg.Params[0]
	if _, exists := b.daemon.Store.Server(name); exists {
		return nil // already known, e.g. reintroduced via a different path mid-burst
	}
	introducer := ""
	if peer := b.link.Peer(); peer != nil {
		introducer = peer.Name()
	}
	return b.daemon.Store.AddServer(NewRemoteServer(name, msg.Trailing, introducer, 1))
}

// applyUser processes a USERBURST line:
//
//	Params: <nick> <username> <hostname> <origin server> <uuid> <rfc3339-timestamp>
//	Trailing: <realname>
func (b *BurstSession) applyUser(msg *Message) error {
	if len(msg.Params) < 6 {
		return ErrMissingParams
	}

	nick, username, host, origin := msg.Params[0], msg.Params[1], msg.Params[2], msg.Params[3]

	id, registeredAt, err := parseBurstIdentity(msg.Params[4], msg.Params[5])
	if err != nil {
		return err
	}

	if existing, exists := b.daemon.Store.UserByNick(nick); exists {
		return b.resolveNickCollision(existing, id, registeredAt, msg)
	}

	newUser := NewRemoteUser(id, nick, username, msg.Trailing, host, origin, registeredAt)
	return b.daemon.Store.AddUser(newUser)
}

// parseBurstIdentity parses the uuid and rfc3339-timestamp fields of a
// USERBURST line, returning ErrMalformedBurst if either is invalid.
func parseBurstIdentity(rawID, rawTime string) (uuid.UUID, time.Time, error) {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return uuid.UUID{}, time.Time{}, ErrMalformedBurst
	}

	registeredAt, err := time.Parse(time.RFC3339Nano, rawTime)
	if err != nil {
		return uuid.UUID{}, time.Time{}, ErrMalformedBurst
	}

	return id, registeredAt, nil
}

// earlierWins reports whether the (registeredAt, id) pair for a is the
// network-wide winner over b: earliest registration timestamp first, ties
// broken by UUID string ordering. UUIDs are always distinct, so this always
// produces a total order.
func earlierWins(aAt time.Time, aID uuid.UUID, bAt time.Time, bID uuid.UUID) bool {
	if !aAt.Equal(bAt) {
		return aAt.Before(bAt)
	}
	return aID.String() < bID.String()
}

// resolveNickCollision applies the earliest-registration-wins rule (§4.7):
// the entry with the earlier RegisteredAt survives, tie-broken by UUID
// ordering. The loser is killed network-wide with a collision QUIT; if the
// incoming entry loses, it is rejected back down the link it arrived on
// instead, since during burst no other peer has heard of it yet.
func (b *BurstSession) resolveNickCollision(existing *User, incomingID uuid.UUID, incomingAt time.Time, msg *Message) error {
	if earlierWins(incomingAt, incomingID, existing.RegisteredAt(), existing.ID()) {
		killUser(b.daemon, existing, "Nick collision", b.link.Peer().Name())

		newUser := NewRemoteUser(incomingID, msg.Params[0], msg.Params[1], msg.Trailing, msg.Params[2], msg.Params[3], incomingAt)
		return b.daemon.Store.AddUser(newUser)
	}

	b.rejectIncoming(msg.Params[0], "Nick collision")
	return nil
}

// rejectIncoming tells the introducing peer to drop nick: it is sent only
// down the link the collision arrived on, since nothing else on the network
// has learned of the incoming entry yet.
func (b *BurstSession) rejectIncoming(nick, reason string) {
	kill := &Message{
		Source:   b.daemon.Hostname(),
		Command:  CmdQuit,
		Params:   []string{nick},
		Trailing: reason,
	}
	b.link.conn.Write(kill.RenderBuffer())
}

func (b *BurstSession) applyChannel(msg *Message) error {
	if len(msg.Params) < 1 {
		return ErrMissingParams
	}
	name := msg.Params[0]

	channel, exists := b.daemon.Store.Channel(name)
	if !exists {
		channel = NewChannel(name, nil)
		if err := b.daemon.Store.AddChannel(channel); err != nil {
			return err
		}
	}

	for _, nick := range strings.Fields(msg.Trailing) {
		if user, ok := b.daemon.Store.UserByNick(nick); ok {
			channel.Nicks.Set(CaseFold(nick), user)
		}
	}

	return nil
}
