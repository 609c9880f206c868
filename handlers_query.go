/*
   Copyright (c) 2023, btnmasher
   All rights reserved.
   Use of this source code is governed by a BSD-style
   license that can be found in the LICENSE file.
*/

package ircd

import (
	"strconv"
	"strings"
)

// HandleWho processes a WHO command, listing members of a channel or a
// single matching nick.
//
//    Command: WHO
//    Parameters: [<mask>]
func HandleWho(ctx *MessageContext) {
	conn, msg := ctx.Conn, ctx.Msg

	if !enoughParams(msg, 1) {
		conn.sendNumeric(ReplyEndOfWho, "* :End of WHO list")
		return
	}

	mask := msg.Params[0]

	if len(mask) > 0 && (mask[0] == '#' || mask[0] == '&') {
		channel, ok := conn.daemon.Store.Channel(mask)
		if !ok {
			conn.ReplyNoSuchChan(mask)
			return
		}
		channel.Nicks.ForEach(func(_ string, user *User) error {
			conn.sendWhoLine(mask, user, channel)
			return nil
		})
		conn.sendNumeric(ReplyEndOfWho, mask+" :End of WHO list")
		return
	}

	if user, ok := conn.daemon.Store.UserByNick(mask); ok {
		conn.sendWhoLine(mask, user, nil)
	}
	conn.sendNumeric(ReplyEndOfWho, mask+" :End of WHO list")
}

func (conn *Conn) sendWhoLine(mask string, user *User, channel *Channel) {
	prefix := ""
	if channel != nil {
		switch {
		case channel.Owner() == user:
			prefix = "~"
		case channel.Ops.Exists(CaseFold(user.Nick())):
			prefix = "@"
		case channel.HalfOps.Exists(CaseFold(user.Nick())):
			prefix = "%"
		case channel.Voiced.Exists(CaseFold(user.Nick())):
			prefix = "+"
		}
	}

	status := "H"
	if _, away := user.Away(); away {
		status = "G"
	}
	if !user.OperFlags().Empty() {
		status += "*"
	}
	status += prefix

	msg := conn.newMessage()
	defer messagePool.Recycle(msg)
	msg.Code = ReplyWho
	msg.Params = []string{
		conn.user.Nick(), mask, user.Name(), user.Hostmask(), conn.daemon.Hostname(), user.Nick(), status,
	}
	msg.Trailing = "0 " + user.Realname()
	conn.Write(msg.RenderBuffer())
}

// HandleList processes a LIST command, summarizing every known channel.
//
//    Command: LIST
//    Parameters: [<channel>{,<channel>}]
func HandleList(ctx *MessageContext) {
	conn := ctx.Conn

	conn.sendNumeric(ReplyListStart, "Channel :Users  Name")

	for _, name := range conn.channelNamesForList(ctx.Msg) {
		channel, ok := conn.daemon.Store.Channel(name)
		if !ok {
			continue
		}
		if channel.ModeIsSet(CModeSecret) {
			continue
		}

		msg := conn.newMessage()
		msg.Code = ReplyList
		msg.Params = []string{conn.user.Nick(), channel.Name(), strconv.Itoa(channel.Nicks.Length())}
		msg.Trailing = channel.Topic()
		conn.Write(msg.RenderBuffer())
		messagePool.Recycle(msg)
	}

	conn.sendNumeric(ReplyEndOfList, "End of LIST")
}

func (conn *Conn) channelNamesForList(msg *Message) []string {
	if len(msg.Params) < 1 {
		names := make([]string, 0)
		for _, c := range conn.daemon.Store.Channels() {
			names = append(names, c.Name())
		}
		return names
	}
	return strings.Split(msg.Params[0], ",")
}

// HandleLinks processes a LINKS command, listing every currently-linked
// peer server.
//
//    Command: LINKS
func HandleLinks(ctx *MessageContext) {
	conn := ctx.Conn

	for _, srv := range conn.daemon.Store.Servers() {
		msg := conn.newMessage()
		msg.Code = ReplyLinks
		msg.Params = []string{conn.user.Nick(), srv.Name(), conn.daemon.Hostname()}
		msg.Trailing = "0 " + srv.Description()
		conn.Write(msg.RenderBuffer())
		messagePool.Recycle(msg)
	}

	conn.sendNumeric(ReplyEndOfLinks, "* * :End of LINKS list")
}

// HandleKill processes an operator-issued KILL, forcibly disconnecting a
// user. The issuing user must hold OperGlobalOper or OperLocalOper.
//
//    Command: KILL
//    Parameters: <nick> :<reason>
func HandleKill(ctx *MessageContext) {
	conn, msg := ctx.Conn, ctx.Msg

	if !conn.user.OperFlags().Has(OperGlobalOper) && !conn.user.OperFlags().Has(OperLocalOper) {
		conn.sendNumeric(ReplyNoPrivileges, "Permission Denied- You're not an IRC operator")
		return
	}

	if !enoughParams(msg, 1) {
		conn.ReplyNeedMoreParams(msg.Command)
		return
	}

	target, ok := conn.daemon.Store.UserByNick(msg.Params[0])
	if !ok {
		conn.ReplyNoSuchNick(msg.Params[0])
		return
	}

	reason := msg.Trailing
	if len(reason) < 1 {
		reason = "Killed by " + conn.user.Nick()
	}

	killUser(conn.daemon, target, "Killed ("+conn.user.Nick()+": "+reason+")", "")
}

// HandleGlobops processes an operator-issued GLOBOPS, fanning a global
// operator notice out exactly like WALLOPS.
//
//    Command: GLOBOPS
//    Parameters: :<text>
func HandleGlobops(ctx *MessageContext) {
	HandleWallops(ctx)
}
