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

// HandlePrivmsg processes a PRIVMSG command.
//
//    Command: PRIVMSG
//    Parameters: <target> :<text>
func HandlePrivmsg(ctx *MessageContext) {
	doChatMessage(ctx)
}

// HandleNotice processes a NOTICE command.
//
//    Command: NOTICE
//    Parameters: <target> :<text>
func HandleNotice(ctx *MessageContext) {
	doChatMessage(ctx)
}

// doChatMessage handles both PRIVMSG and NOTICE, whether the connection
// issuing it is an ordinary local client or a peer link relaying a message
// that originated elsewhere on the network (§4.6). In the latter case
// msg.Source already names the true originating user, and the flood onward
// excludes the link the message arrived on.
func doChatMessage(ctx *MessageContext) {
	conn, msg := ctx.Conn, ctx.Msg

	if !enoughParams(msg, 1) || len(msg.Trailing) < 1 {
		conn.ReplyNeedMoreParams(msg.Command)
		return
	}

	target := msg.Params[0]

	receivedFrom := ""
	if conn.link != nil {
		if peer := conn.link.Peer(); peer != nil {
			receivedFrom = peer.Name()
		}
	} else {
		msg.Source = conn.user.Hostmask()
	}

	if CaseFold(target)[0] == '#' || CaseFold(target)[0] == '&' {
		channel, ok := conn.daemon.Store.Channel(target)
		if !ok {
			if conn.link == nil {
				conn.ReplyNoSuchChan(target)
			}
			return
		}

		msg.Params = msg.Params[0:1]

		exclude := ""
		if conn.link == nil {
			exclude = conn.user.Nick()
		}

		Deliver(conn.daemon, RouteToChannel(channel, exclude), msg, receivedFrom)
		return
	}

	targetUser, ok := conn.daemon.Store.UserByNick(target)
	if !ok {
		if conn.link == nil {
			conn.ReplyNoSuchNick(target)
		}
		return
	}

	msg.Params = msg.Params[0:1]

	if conn.link == nil {
		if away, isAway := targetUser.Away(); isAway && msg.Command == CmdPrivMsg {
			conn.sendAwayReply(target, away)
		}
	}

	Deliver(conn.daemon, RouteToUser(targetUser), msg, receivedFrom)
}

// sendAwayReply sends RPL_AWAY(301) informing the sender that target has an
// away message set.
func (conn *Conn) sendAwayReply(target, reason string) {
	msg := conn.newMessage()
	defer messagePool.Recycle(msg)
	msg.Code = ReplyAway
	msg.Params = []string{conn.user.Nick(), target}
	msg.Trailing = reason
	conn.Write(msg.RenderBuffer())
}

// HandlePing processes a PING command originated from the client, replying
// with the matching PONG token.
//
//    Command: PING
//    Parameters: :<token>
func HandlePing(ctx *MessageContext) {
	conn, msg := ctx.Conn, ctx.Msg

	msg.Source = conn.daemon.Hostname()
	msg.Command = CmdPong

	conn.Write(msg.RenderBuffer())
	ctx.Handled()
}

// HandlePong processes a PONG command in reply to a server-sent PING.
//
//    Command: PONG
//    Parameters: :<token>
func HandlePong(ctx *MessageContext) {
	conn, msg := ctx.Conn, ctx.Msg

	if len(msg.Trailing) < 1 {
		conn.ReplyNeedMoreParams(msg.Command)
		return
	}

	conn.Lock()
	conn.lastPingRecv = msg.Trailing
	conn.Unlock()
	ctx.Handled()
}

// HandleAway processes an AWAY command, setting or clearing the user's away
// message.
//
//    Command: AWAY
//    Parameters: [:<message>]
func HandleAway(ctx *MessageContext) {
	conn, msg := ctx.Conn, ctx.Msg

	conn.user.SetAway(msg.Trailing)

	reply := conn.newMessage()
	defer messagePool.Recycle(reply)
	reply.Params = []string{conn.user.Nick()}

	if len(msg.Trailing) < 1 {
		reply.Code = ReplyUnAway
		reply.Trailing = "You are no longer marked as being away"
	} else {
		reply.Code = ReplyNowAway
		reply.Trailing = "You have been marked as being away"
	}

	conn.Write(reply.RenderBuffer())
}
