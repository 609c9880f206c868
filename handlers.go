/*
   Copyright (c) 2023, btnmasher
   All rights reserved.
   Use of this source code is governed by a BSD-style
   license that can be found in the LICENSE file.
*/

package ircd

// preRegistrationAllowed lists the commands an unregistered ordinary client
// may use before completing NICK/USER/CAP (§5). Server-to-server handshake
// commands are gated separately in requireRegistration, since a peer link
// never goes through client registration at all.
var preRegistrationAllowed = map[string]bool{
	CmdPass: true,
	CmdNick: true,
	CmdUser: true,
	CmdCap:  true,
	CmdAuth: true,
	CmdPing: true,
	CmdPong: true,
	CmdQuit: true,
}

// serverLinkCommands lists the commands exchanged during and after the
// SERVER handshake, which bypass ordinary client registration entirely.
var serverLinkCommands = map[string]bool{
	CmdServer:       true,
	CmdUserBurst:    true,
	CmdChannelBurst: true,
	CmdEndOfBurst:   true,
}

// requireRegistration is global router middleware (§5) rejecting any command
// that isn't one of the above for a connection that hasn't finished
// registering, whether as an ordinary client or as a server-to-server peer.
func requireRegistration(ctx *MessageContext) {
	conn, msg := ctx.Conn, ctx.Msg

	if conn.link != nil || serverLinkCommands[msg.Command] {
		return
	}

	if conn.reg.Registered() || preRegistrationAllowed[msg.Command] {
		return
	}

	conn.ReplyNotRegistered()
	ctx.Handled()
}

// registerHandlers wires every known command to its handler function,
// attaching requireRegistration as global middleware so it runs ahead of
// every command in the chain.
func registerHandlers(router *Router) {
	router.Use(requireRegistration)

	// Registration and connection lifecycle.
	router.Handle(CmdPass, HandlePass)
	router.Handle(CmdNick, HandleNick)
	router.Handle(CmdUser, HandleUser)
	router.Handle(CmdCap, HandleCap)
	router.Handle(CmdAuth, HandleAuthenticate)
	router.Handle(CmdQuit, HandleQuit)

	// Messaging.
	router.Handle(CmdPrivMsg, HandlePrivmsg)
	router.Handle(CmdNotice, HandleNotice)
	router.Handle(CmdPing, HandlePing)
	router.Handle(CmdPong, HandlePong)
	router.Handle(CmdAway, HandleAway)

	// Channel operations.
	router.Handle(CmdJoin, HandleJoin)
	router.Handle(CmdPart, HandlePart)
	router.Handle(CmdTopic, HandleTopic)
	router.Handle(CmdNames, HandleNames)
	router.Handle(CmdKick, HandleKick)
	router.Handle(CmdInvite, HandleInvite)
	router.Handle(CmdMode, HandleMode)

	// Informational queries.
	router.Handle(CmdUserhost, HandleUserhost)
	router.Handle(CmdIson, HandleIson)
	router.Handle(CmdMotd, HandleMotd)
	router.Handle(CmdVersion, HandleVersion)
	router.Handle(CmdTime, HandleTime)
	router.Handle(CmdLusers, HandleLusers)
	router.Handle(CmdWhois, HandleWhois)
	router.Handle(CmdWhowas, HandleWhowas)
	router.Handle(CmdWho, HandleWho)
	router.Handle(CmdList, HandleList)
	router.Handle(CmdLinks, HandleLinks)

	// Operator commands.
	router.Handle(CmdOper, HandleOper)
	router.Handle(CmdRehash, HandleRehash)
	router.Handle(CmdStats, HandleStats)
	router.Handle(CmdAdmin, HandleAdmin)
	router.Handle(CmdInfo, HandleInfo)
	router.Handle(CmdWallops, HandleWallops)
	router.Handle(CmdGlobops, HandleGlobops)
	router.Handle(CmdKill, HandleKill)
	router.Handle(CmdKline, HandleKline)
	router.Handle(CmdDline, HandleDline)
	router.Handle(CmdGline, HandleGline)
	router.Handle(CmdXline, HandleXline)

	// Server-to-server linking.
	router.Handle(CmdServer, HandleServer)
	router.Handle(CmdUserBurst, HandleUserBurst)
	router.Handle(CmdChannelBurst, HandleChannelBurst)
	router.Handle(CmdEndOfBurst, HandleEndOfBurst)
	router.Handle(CmdConnect, HandleConnect)
	router.Handle(CmdSquit, HandleSquit)
}
