/*
   Copyright (c) 2023, btnmasher
   All rights reserved.
   Use of this source code is governed by a BSD-style
   license that can be found in the LICENSE file.
*/

package ircd

import (
	"crypto/subtle"
	"net"
	"time"
)

// HandleServer processes the SERVER command, which either establishes a new
// server-to-server link (the first SERVER line received over a freshly
// accepted or dialed connection) or introduces a third-hop peer relayed
// through an already-established link, during burst (§4.7).
//
//    Command: SERVER
//    Parameters: <name> :<description>
func HandleServer(ctx *MessageContext) {
	conn, msg := ctx.Conn, ctx.Msg

	if !enoughParams(msg, 1) {
		conn.sendNumeric(ReplyNeedMoreParams, CmdServer+" :Not enough parameters")
		return
	}

	if conn.link != nil {
		if err := conn.burst.ApplyInbound(msg); err != nil {
			log.Warnf("irc: burst SERVER from peer %s rejected: %s", conn.link.Peer().Name(), err)
		}
		return
	}

	name := msg.Params[0]
	cfg := conn.daemon.ConfigH.Load()

	var link *LinkConfig
	for i := range cfg.Links {
		if CaseFoldEqual(cfg.Links[i].Name, name) {
			link = &cfg.Links[i]
			break
		}
	}

	if link == nil {
		conn.sendNumeric(ReplyNoSuchServer, name+" :No such server configured")
		conn.doQuit("Unconfigured server link")
		return
	}

	if subtle.ConstantTimeCompare([]byte(conn.pendingPassword), []byte(link.Password)) != 1 {
		conn.sendNumeric(ReplyPasswordMistmatch, "Password incorrect")
		conn.doQuit("Link authentication failed")
		return
	}

	peer := NewRemoteServer(name, msg.Trailing, "", 0)
	if err := conn.daemon.Store.AddServer(peer); err != nil {
		// already linked via another path; refuse the duplicate.
		conn.doQuit("Server already linked")
		return
	}

	serverLink := NewServerLink(conn, true)
	serverLink.Authenticate(peer, time.Duration(DefaultBurstTimeout)*time.Second)
	conn.link = serverLink
	conn.burst = NewBurstSession(conn.daemon, serverLink)
	conn.daemon.Links.Add(serverLink)

	self := selfServerEntry(conn.daemon)
	for _, burstMsg := range conn.burst.OutboundBurst(self) {
		conn.Write(burstMsg.RenderBuffer())
	}

	log.Infof("irc: server link established with %s", name)
}

// HandleUserBurst processes a USERBURST line received from an already
// established peer link, introducing one of that peer's users.
//
//    Command: USERBURST
//    Parameters: <nick> <username> <hostname> :<realname>
func HandleUserBurst(ctx *MessageContext) {
	conn, msg := ctx.Conn, ctx.Msg

	if conn.link == nil {
		conn.sendNumeric(ReplyNotRegistered, CmdUserBurst+" :Not a server link")
		return
	}

	if err := conn.burst.ApplyInbound(msg); err != nil {
		log.Warnf("irc: burst USERBURST from peer %s rejected: %s", conn.link.Peer().Name(), err)
	}
}

// HandleChannelBurst processes a CHANNELBURST line received from an
// established peer link, introducing one of that peer's channels.
//
//    Command: CHANNELBURST
//    Parameters: <channel>
func HandleChannelBurst(ctx *MessageContext) {
	conn, msg := ctx.Conn, ctx.Msg

	if conn.link == nil {
		conn.sendNumeric(ReplyNotRegistered, CmdChannelBurst+" :Not a server link")
		return
	}

	if err := conn.burst.ApplyInbound(msg); err != nil {
		log.Warnf("irc: burst CHANNELBURST from peer %s rejected: %s", conn.link.Peer().Name(), err)
	}
}

// HandleEndOfBurst processes the ENDOFBURST marker closing out the initial
// state exchange with a peer link.
//
//    Command: ENDOFBURST
func HandleEndOfBurst(ctx *MessageContext) {
	conn, msg := ctx.Conn, ctx.Msg

	if conn.link == nil {
		return
	}

	if err := conn.burst.ApplyInbound(msg); err != nil {
		log.Warnf("irc: burst completion from peer %s rejected: %s", conn.link.Peer().Name(), err)
		return
	}

	log.Infof("irc: burst complete with peer %s", conn.link.Peer().Name())
}

// HandleConnect processes an operator-issued CONNECT, dialing out to a
// configured peer and beginning the link handshake from the active side.
// The issuing user must hold OperRemoteConnect or OperLocalConnect.
//
//    Command: CONNECT
//    Parameters: <server name>
func HandleConnect(ctx *MessageContext) {
	conn, msg := ctx.Conn, ctx.Msg

	if !conn.user.OperFlags().Has(OperRemoteConnect) && !conn.user.OperFlags().Has(OperLocalConnect) {
		conn.sendNumeric(ReplyNoPrivileges, "Permission Denied- You're not an IRC operator")
		return
	}

	if !enoughParams(msg, 1) {
		conn.ReplyNeedMoreParams(msg.Command)
		return
	}

	name := msg.Params[0]
	cfg := conn.daemon.ConfigH.Load()

	var link *LinkConfig
	for i := range cfg.Links {
		if CaseFoldEqual(cfg.Links[i].Name, name) {
			link = &cfg.Links[i]
			break
		}
	}

	if link == nil {
		conn.sendNumeric(ReplyNoSuchServer, name+" :No such server configured")
		return
	}

	go dialPeer(conn.daemon, *link)
	conn.sendNumeric(ReplyYoureOper, "*** Connecting to "+name)
}

// dialPeer opens an outbound connection to a configured peer and drives the
// active side of the SERVER handshake before handing the connection off to
// the ordinary serve() read loop for the remainder of the burst exchange.
func dialPeer(daemon *Daemon, link LinkConfig) {
	sock, err := net.DialTimeout("tcp", link.Address, 10*time.Second)
	if err != nil {
		log.Errorf("irc: CONNECT to %s failed: %s", link.Name, err)
		return
	}

	conn := NewConn(daemon, sock)

	pass := conn.newMessage()
	pass.Command = CmdPass
	pass.Params = []string{link.Password}
	conn.Write(pass.RenderBuffer())
	messagePool.Recycle(pass)

	server := conn.newMessage()
	server.Command = CmdServer
	server.Params = []string{daemon.Hostname()}
	server.Trailing = daemon.ConfigH.Load().Server.Description
	conn.Write(server.RenderBuffer())
	messagePool.Recycle(server)

	serve(conn)
}

// HandleSquit processes a SQUIT, tearing down a peer link or, when relayed
// over an already-established link, recording that a server further out in
// the topology has been cut off (§4.7).
//
//    Command: SQUIT
//    Parameters: <server name> [:<comment>]
func HandleSquit(ctx *MessageContext) {
	conn, msg := ctx.Conn, ctx.Msg

	if !enoughParams(msg, 1) {
		conn.ReplyNeedMoreParams(msg.Command)
		return
	}

	name := msg.Params[0]

	// Relayed from a peer about a server we have no direct link to (it was
	// introduced to us transitively through that peer): there is no local
	// link of ours to tear down, so run the cascade immediately and keep
	// flooding the announcement onward, excluding the link it arrived on.
	if conn.link != nil {
		reason := msg.Trailing
		if reason == "" {
			reason = "Net split"
		}
		netsplitCascade(conn.daemon, name, reason)
		propagateSquit(conn.daemon, name, reason, conn.link.Peer().Name())
		return
	}

	if !conn.user.OperFlags().Has(OperSquit) {
		conn.sendNumeric(ReplyNoPrivileges, "Permission Denied- You're not an IRC operator")
		return
	}

	link, ok := conn.daemon.Links.Get(name)
	if !ok {
		conn.sendNumeric(ReplyNoSuchServer, name+" :No such server")
		return
	}

	// The rest of the cascade (netsplitCascade/propagateSquit) runs from
	// Conn.cleanup once this link's connection actually tears down, so it
	// fires exactly once regardless of whether that happens via this
	// explicit SQUIT or an unplanned socket error.
	link.conn.doQuit("SQUIT: " + msg.Trailing)
}

// netsplitCascade removes every server cut off by the loss of name -
// including any introduced transitively through it - and every user whose
// origin was one of those servers, firing the UserExtension quit hook
// exactly once per user (§4.7 testable scenario 6).
func netsplitCascade(daemon *Daemon, name, reason string) {
	gone := map[string]bool{CaseFold(name): true}

	for {
		grew := false
		for _, srv := range daemon.Store.Servers() {
			fold := CaseFold(srv.Name())
			if gone[fold] {
				continue
			}
			if gone[CaseFold(srv.Introducer())] {
				gone[fold] = true
				grew = true
			}
		}
		if !grew {
			break
		}
	}

	for fold := range gone {
		daemon.Store.RemoveServer(fold)
	}

	for _, user := range daemon.Store.Users() {
		if !gone[CaseFold(user.Server())] {
			continue
		}
		daemon.Store.RemoveUser(user)
		daemon.Extensions.DispatchUserQuit(user, reason)
	}
}

// propagateSquit floods a SQUIT announcement to every linked peer except
// exclude, so the cascade reaches the rest of the network (§4.6, §4.7).
func propagateSquit(daemon *Daemon, name, reason, exclude string) {
	msg := &Message{
		Source:   daemon.Hostname(),
		Command:  CmdSquit,
		Params:   []string{name},
		Trailing: reason,
	}
	Deliver(daemon, RouteToServers(), msg, exclude)
}

// killUser removes user everywhere it is known: locally it is torn down via
// its own connection (so doQuit's usual local channel-QUIT broadcast and
// cleanup-triggered Store removal apply); remotely it is removed from the
// Store directly and the quit hook is dispatched here instead, since no
// local connection exists to do it. Either way, a QUIT is flooded to every
// linked peer except exclude so the whole network drops the user.
func killUser(daemon *Daemon, user *User, reason, exclude string) {
	msg := &Message{Source: user.Hostmask(), Command: CmdQuit, Trailing: reason}

	if user.IsLocal() {
		user.conn.doQuit(reason)
	} else {
		daemon.Store.RemoveUser(user)
		daemon.Extensions.DispatchUserQuit(user, reason)
	}

	Deliver(daemon, RouteToServers(), msg, exclude)
}

// selfServerEntry returns (registering if necessary) this process's own
// RemoteServer entry, used as the SERVER line sent first in an outbound
// burst.
func selfServerEntry(daemon *Daemon) *RemoteServer {
	if self, ok := daemon.Store.Server(daemon.Hostname()); ok {
		return self
	}

	self := NewRemoteServer(daemon.Hostname(), daemon.ConfigH.Load().Server.Description, "", 0)
	_ = daemon.Store.AddServer(self)
	return self
}
