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

// HandleJoin processes a JOIN command.
//
// The server first checks if the channel exists; if not, it creates one
// with the requesting user as owner. The user is then added to the channel
// membership.
//
//    Command: JOIN
//    Parameters: <channel>
func HandleJoin(ctx *MessageContext) {
	conn, msg := ctx.Conn, ctx.Msg

	if !enoughParams(msg, 1) {
		conn.ReplyNeedMoreParams(msg.Command)
		return
	}

	cname := msg.Params[0]
	fold := CaseFold(cname)

	channel, ok := conn.daemon.Store.Channel(cname)
	if !ok {
		channel = NewChannel(cname, conn.user)
		if err := conn.daemon.Store.AddChannel(channel); err != nil {
			channel, ok = conn.daemon.Store.Channel(cname)
			if !ok {
				conn.ReplyNoSuchChan(cname)
				return
			}
		}
	}

	joinMsg := conn.newMessage()
	defer messagePool.Recycle(joinMsg)
	joinMsg.Source = conn.user.Hostmask()
	joinMsg.Command = CmdJoin
	joinMsg.Params = []string{cname}

	channel.Join(conn.daemon, conn.user, joinMsg)
	conn.channels.Set(fold, channel)

	if len(channel.Topic()) > 0 {
		conn.ReplyChannelTopic(channel)
	}

	conn.ReplyChannelNames(channel)
}

// HandlePart processes a PART command, removing the user from a channel
// they are a member of.
//
//    Command: PART
//    Parameters: <channel> [:<reason>]
func HandlePart(ctx *MessageContext) {
	conn, msg := ctx.Conn, ctx.Msg

	if !enoughParams(msg, 1) {
		conn.ReplyNeedMoreParams(msg.Command)
		return
	}

	cname := msg.Params[0]
	fold := CaseFold(cname)

	channel, ok := conn.channels.Get(fold)
	if !ok {
		conn.ReplyNoSuchChan(cname)
		return
	}

	partMsg := conn.newMessage()
	defer messagePool.Recycle(partMsg)
	partMsg.Source = conn.user.Hostmask()
	partMsg.Command = CmdPart
	partMsg.Params = []string{cname}
	partMsg.Trailing = msg.Trailing

	channel.Part(conn.daemon, conn.user, partMsg)
	conn.channels.Delete(fold)

	if channel.Nicks.Length() == 0 {
		conn.daemon.Store.RemoveChannel(cname)
	}
}

// HandleTopic processes a TOPIC command, either viewing or setting a
// channel's topic.
//
//    Command: TOPIC
//    Parameters: <channel> [:<topic>]
func HandleTopic(ctx *MessageContext) {
	conn, msg := ctx.Conn, ctx.Msg

	if !enoughParams(msg, 1) {
		conn.ReplyNeedMoreParams(msg.Command)
		return
	}

	cname := msg.Params[0]
	channel, ok := conn.daemon.Store.Channel(cname)
	if !ok {
		conn.ReplyNoSuchChan(cname)
		return
	}

	if !enoughParams(msg, 2) && len(msg.Trailing) < 1 {
		conn.ReplyChannelTopic(channel)
		return
	}

	channel.SetTopic(msg.Trailing)

	notice := conn.newMessage()
	defer messagePool.Recycle(notice)
	notice.Source = conn.user.Hostmask()
	notice.Command = CmdTopic
	notice.Params = []string{cname}
	notice.Trailing = msg.Trailing

	channel.Send(conn.daemon, notice, "")
}

// HandleNames processes a NAMES command, listing the members of a channel.
//
//    Command: NAMES
//    Parameters: <channel>
func HandleNames(ctx *MessageContext) {
	conn, msg := ctx.Conn, ctx.Msg

	if !enoughParams(msg, 1) {
		conn.ReplyNeedMoreParams(msg.Command)
		return
	}

	channel, ok := conn.daemon.Store.Channel(msg.Params[0])
	if !ok {
		conn.ReplyNoSuchChan(msg.Params[0])
		return
	}

	conn.ReplyChannelNames(channel)
}

// HandleKick processes a KICK command. The kicker must currently be an
// operator of the channel.
//
//    Command: KICK
//    Parameters: <channel> <nick> [:<reason>]
func HandleKick(ctx *MessageContext) {
	conn, msg := ctx.Conn, ctx.Msg

	if !enoughParams(msg, 2) {
		conn.ReplyNeedMoreParams(msg.Command)
		return
	}

	cname, targetNick := msg.Params[0], msg.Params[1]

	channel, ok := conn.daemon.Store.Channel(cname)
	if !ok {
		conn.ReplyNoSuchChan(cname)
		return
	}

	if !channel.Ops.Exists(CaseFold(conn.user.Nick())) && channel.Owner() != conn.user {
		conn.sendChanPermsNeeded(cname)
		return
	}

	target, ok := channel.Nicks.Get(CaseFold(targetNick))
	if !ok {
		conn.ReplyNoSuchNick(targetNick)
		return
	}

	reason := msg.Trailing
	if len(reason) < 1 {
		reason = conn.user.Nick()
	}

	kickMsg := conn.newMessage()
	defer messagePool.Recycle(kickMsg)
	kickMsg.Source = conn.user.Hostmask()
	kickMsg.Command = CmdKick
	kickMsg.Params = []string{cname, targetNick}
	kickMsg.Trailing = reason

	channel.Part(conn.daemon, target, kickMsg)

	if targetConn := target.conn; targetConn != nil {
		targetConn.channels.Delete(CaseFold(cname))
	}
}

// sendChanPermsNeeded replies ERR_CHANOPRIVSNEEDED(482).
func (conn *Conn) sendChanPermsNeeded(channel string) {
	msg := conn.newMessage()
	defer messagePool.Recycle(msg)
	msg.Code = ReplyChanOpPrivsNeeded
	msg.Params = []string{conn.user.Nick(), channel}
	msg.Trailing = "You're not a channel operator"
	conn.Write(msg.RenderBuffer())
}

// HandleInvite processes an INVITE command, recording an invite-list entry
// and notifying the invited user if they are online.
//
//    Command: INVITE
//    Parameters: <nick> <channel>
func HandleInvite(ctx *MessageContext) {
	conn, msg := ctx.Conn, ctx.Msg

	if !enoughParams(msg, 2) {
		conn.ReplyNeedMoreParams(msg.Command)
		return
	}

	targetNick, cname := msg.Params[0], msg.Params[1]

	channel, ok := conn.daemon.Store.Channel(cname)
	if !ok {
		conn.ReplyNoSuchChan(cname)
		return
	}

	target, ok := conn.daemon.Store.UserByNick(targetNick)
	if !ok {
		conn.ReplyNoSuchNick(targetNick)
		return
	}

	channel.InviteList.Set(CaseFold(target.Nick()), conn.user.Nick())

	if target.conn != nil {
		invite := target.conn.newMessage()
		invite.Source = conn.user.Hostmask()
		invite.Command = CmdInvite
		invite.Params = []string{target.Nick()}
		invite.Trailing = cname
		target.conn.Write(invite.RenderBuffer())
		messagePool.Recycle(invite)
	}

	reply := conn.newMessage()
	defer messagePool.Recycle(reply)
	reply.Code = ReplyInviting
	reply.Params = []string{conn.user.Nick(), targetNick, cname}
	conn.Write(reply.RenderBuffer())
}
