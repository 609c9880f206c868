/*
   Copyright (c) 2023, btnmasher
   All rights reserved.
   Use of this source code is governed by a BSD-style
   license that can be found in the LICENSE file.
*/

package ircd

// routeKind distinguishes how a destination set was resolved, used only for
// logging/metrics; dispatch itself is uniform once the set is built.
type routeKind uint8

const (
	routeToUser routeKind = iota
	routeToChannel
	routeToServers
)

// Route is a resolved destination for a single outbound message: the local
// users to deliver to directly, and whether the message must also be
// flooded across every linked peer (minus the one it arrived on, if any).
// The network formed by server links is a spanning tree (SQUIT only ever
// removes an edge, never creates an alternate path), so flooding to every
// link except the one a message arrived on guarantees exactly one copy
// reaches each reachable peer and a message never bounces back the way it
// came (§4.6 properties 6 and 7), without needing a real link-state routing
// table.
type Route struct {
	kind  routeKind
	users []*User
	flood bool
}

// RouteToUser resolves a direct message to a single nick: local delivery if
// the target is connected to this process, otherwise a flood so every
// linked peer gets a chance to deliver it locally.
func RouteToUser(target *User) *Route {
	if target.IsLocal() {
		return &Route{kind: routeToUser, users: []*User{target}}
	}
	return &Route{kind: routeToUser, flood: true}
}

// RouteToChannel resolves a channel message to every local member, and
// floods to every linked peer if the channel has any known remote member
// (if every member is local, there is nothing for a peer to do with the
// message, so no flood is sent).
func RouteToChannel(channel *Channel, exclude string) *Route {
	excludeFold := CaseFold(exclude)

	users := make([]*User, 0, channel.Nicks.Length())
	remote := false

	channel.Nicks.ForEach(func(fold string, user *User) error {
		if fold == excludeFold {
			return nil
		}
		if user.IsLocal() {
			users = append(users, user)
		} else {
			remote = true
		}
		return nil
	})

	return &Route{kind: routeToChannel, users: users, flood: remote}
}

// RouteToServers resolves a message with no local fanout of its own
// (KILL/QUIT/SQUIT propagation, network-wide notices) to every linked peer.
func RouteToServers() *Route {
	return &Route{kind: routeToServers, flood: true}
}

// Deliver writes msg to every local user in route.users, then, if the route
// floods, relays it once to every currently-linked peer except the one
// named by receivedFrom (the link it arrived on, if any - empty for a
// locally-originated message, which floods to all peers).
func Deliver(daemon *Daemon, route *Route, msg *Message, receivedFrom string) {
	if len(route.users) > 0 {
		rendered := msg.Render()
		for _, user := range route.users {
			buf := bufpool.New()
			buf.WriteString(rendered)
			user.conn.Write(buf)
		}
	}

	if !route.flood {
		return
	}

	for _, peer := range dedupPeers(daemon.Links.Names(), receivedFrom) {
		link, ok := daemon.Links.Get(peer)
		if !ok {
			continue
		}
		link.conn.Write(msg.RenderBuffer())
	}
}

// dedupPeers filters receivedFrom out of peers, so a flooded message is
// never relayed back toward the link it arrived on (§4.6 property 7).
func dedupPeers(peers []string, receivedFrom string) []string {
	if receivedFrom == "" {
		return peers
	}

	out := make([]string, 0, len(peers))
	fold := CaseFold(receivedFrom)
	for _, peer := range peers {
		if CaseFold(peer) == fold {
			continue
		}
		out = append(out, peer)
	}
	return out
}
