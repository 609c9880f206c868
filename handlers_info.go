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
	"strconv"
	"strings"
	"time"
)

// HandleUserhost processes a USERHOST command, replying with the matching
// hostname of up to 5 requested nicks.
//
//    Command: USERHOST
//    Parameters: <nickname1> [nickname2] [nickname3] [nickname4] [nickname5]
func HandleUserhost(ctx *MessageContext) {
	conn, msg := ctx.Conn, ctx.Msg

	if !enoughParams(msg, 1) {
		conn.ReplyNeedMoreParams(msg.Command)
		return
	}

	params := msg.Params
	if len(params) > 5 {
		params = params[:5]
	}
	hosts := make([]string, 0, len(params))

	for _, nick := range params {
		target, ok := conn.daemon.Store.UserByNick(nick)
		if !ok {
			continue
		}

		entry := target.Nick() + "=+" + target.Hostmask()
		hosts = append(hosts, entry)
	}

	reply := conn.newMessage()
	defer messagePool.Recycle(reply)
	reply.Code = ReplyUserHost
	reply.Params = []string{conn.user.Nick()}
	reply.Trailing = strings.Join(hosts, " ")

	conn.Write(reply.RenderBuffer())
}

// HandleIson processes an ISON command, replying with whichever of the
// requested nicks are currently online.
//
//    Command: ISON
//    Parameters: <nickname>{ <nickname>}
func HandleIson(ctx *MessageContext) {
	conn, msg := ctx.Conn, ctx.Msg

	if !enoughParams(msg, 1) {
		conn.ReplyNeedMoreParams(msg.Command)
		return
	}

	online := make([]string, 0, len(msg.Params))
	for _, nick := range msg.Params {
		if target, ok := conn.daemon.Store.UserByNick(nick); ok {
			online = append(online, target.Nick())
		}
	}

	reply := conn.newMessage()
	defer messagePool.Recycle(reply)
	reply.Code = ReplyIsOn
	reply.Params = []string{conn.user.Nick()}
	reply.Trailing = strings.Join(online, " ")

	conn.Write(reply.RenderBuffer())
}

// HandleMotd processes a MOTD command, sending the configured
// message-of-the-day, line by line.
//
//    Command: MOTD
func HandleMotd(ctx *MessageContext) {
	conn := ctx.Conn
	conn.sendMOTD()
}

func (conn *Conn) sendMOTD() {
	motd := conn.daemon.MOTD()

	if len(motd) < 1 {
		conn.sendNumeric(ReplyNoMOTD, "MOTD File is missing")
		return
	}

	conn.sendNumeric(ReplyMOTDStart, "- "+conn.daemon.Hostname()+" Message of the day - ")

	for _, line := range strings.Split(motd, "\n") {
		conn.sendNumeric(ReplyMOTD, "- "+line)
	}

	conn.sendNumeric(ReplyEndOFMOTD, "End of MOTD command")
}

// HandleVersion processes a VERSION command, replying with the server's
// version string.
//
//    Command: VERSION
func HandleVersion(ctx *MessageContext) {
	conn := ctx.Conn

	reply := conn.newMessage()
	defer messagePool.Recycle(reply)
	reply.Code = ReplyVersion
	reply.Params = []string{conn.user.Nick(), ServerVersion, conn.daemon.Hostname()}
	reply.Trailing = conn.daemon.Network()

	conn.Write(reply.RenderBuffer())
}

// HandleTime processes a TIME command, replying with the server's current
// local time.
//
//    Command: TIME
func HandleTime(ctx *MessageContext) {
	conn := ctx.Conn

	reply := conn.newMessage()
	defer messagePool.Recycle(reply)
	reply.Code = ReplyTime
	reply.Params = []string{conn.user.Nick(), conn.daemon.Hostname()}
	reply.Trailing = time.Now().Format(time.RFC1123)

	conn.Write(reply.RenderBuffer())
}

// HandleLusers processes a LUSERS command, replying with a summary of
// connected user and channel counts.
//
//    Command: LUSERS
func HandleLusers(ctx *MessageContext) {
	conn := ctx.Conn
	store := conn.daemon.Store

	conn.sendNumeric(ReplyUsersOnlineGlobal, strings.Join([]string{
		"There are", strconv.Itoa(store.UserCount()), "users and 0 services on 1 server",
	}, " "))
	conn.sendNumeric(ReplyChannelCount, strconv.Itoa(store.ChannelCount())+" :channels formed")
	conn.sendNumeric(ReplyUsersOnlineLocal, "I have "+strconv.Itoa(store.UserCount())+" clients and 1 server")
}

// HandleWhois processes a WHOIS command, replying with identity details for
// the requested nick.
//
//    Command: WHOIS
//    Parameters: <nick>
func HandleWhois(ctx *MessageContext) {
	conn, msg := ctx.Conn, ctx.Msg

	if !enoughParams(msg, 1) {
		conn.ReplyNeedMoreParams(msg.Command)
		return
	}

	target, ok := conn.daemon.Store.UserByNick(msg.Params[0])
	if !ok {
		conn.ReplyNoSuchNick(msg.Params[0])
		return
	}

	self := conn.user.Nick()

	conn.sendWhoisLine(ReplyWhoisUser, []string{self, target.Nick(), target.Name(), target.Hostmask()}, "*", target.Realname())
	conn.sendWhoisLine(ReplyWhoisServer, []string{self, target.Nick(), conn.daemon.Hostname()}, "", conn.daemon.Network())

	if !target.OperFlags().Empty() {
		conn.sendNumeric(ReplyWhoisOperator, target.Nick()+" :is an IRC operator")
	}

	if away, isAway := target.Away(); isAway {
		conn.sendNumeric(ReplyAway, target.Nick()+" :"+away)
	}

	conn.sendNumeric(ReplyEndOfWhois, target.Nick()+" :End of WHOIS list")
}

// sendWhoisLine writes a WHOIS reply line whose final param slot is set to
// sep (or omitted if empty) followed by the trailing text.
func (conn *Conn) sendWhoisLine(code uint16, params []string, sep, trailing string) {
	msg := conn.newMessage()
	defer messagePool.Recycle(msg)
	msg.Code = code
	if len(sep) > 0 {
		params = append(params, sep)
	}
	msg.Params = params
	msg.Trailing = trailing
	conn.Write(msg.RenderBuffer())
}

// HandleWhowas processes a WHOWAS command, replying with historical
// identity records for a nick that has since disconnected.
//
//    Command: WHOWAS
//    Parameters: <nick> [count]
func HandleWhowas(ctx *MessageContext) {
	conn, msg := ctx.Conn, ctx.Msg

	if !enoughParams(msg, 1) {
		conn.ReplyNeedMoreParams(msg.Command)
		return
	}

	nick := msg.Params[0]
	entries := conn.daemon.History.Lookup(nick)

	if len(entries) == 0 {
		conn.sendNumeric(ReplyWasNoSuchNick, nick+" :There was no such nickname")
		conn.sendNumeric(ReplyEndOfWhoWas, nick+" :End of WHOWAS")
		return
	}

	for _, entry := range entries {
		conn.sendWhoisLine(ReplyWhoWasUser, []string{conn.user.Nick(), entry.Nick, entry.User, entry.Host}, "*", entry.Real)
	}

	conn.sendNumeric(ReplyEndOfWhoWas, nick+" :End of WHOWAS")
}
