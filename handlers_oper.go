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
	"errors"
	"os"
	"strconv"
)

// HandleOper processes an OPER command, granting operator capability flags
// to the connection's user on a successful credential match (§6).
//
//    Command: OPER
//    Parameters: <name> <password>
func HandleOper(ctx *MessageContext) {
	conn, msg := ctx.Conn, ctx.Msg

	if !enoughParams(msg, 2) {
		conn.ReplyNeedMoreParams(msg.Command)
		return
	}

	name, password := msg.Params[0], msg.Params[1]
	hostmask := conn.user.RealHostmask()

	flags, err := AuthenticateOper(conn.daemon.ConfigH.Load(), name, password, hostmask)
	if err != nil {
		if errors.Is(err, ErrInsuffPerms) {
			conn.sendNumeric(ReplyPasswordMistmatch, "Password incorrect")
			return
		}
		conn.sendNumeric(ReplyNoOperHost, "No O-lines for your host")
		return
	}

	grantOper(conn.user, flags)

	conn.sendNumeric(ReplyYoureOper, "You are now an IRC operator")
}

// HandleRehash processes a REHASH command. The operator must hold the
// OperGlobalOper or OperLocalOper flag. It re-parses the configuration from
// the same source the daemon was originally started with, swapping it in
// only if it validates cleanly.
//
//    Command: REHASH
func HandleRehash(ctx *MessageContext) {
	conn := ctx.Conn

	if !conn.user.OperFlags().Has(OperGlobalOper) && !conn.user.OperFlags().Has(OperLocalOper) {
		conn.sendNumeric(ReplyNoPrivileges, "Permission Denied- You're not an IRC operator")
		return
	}

	path := conn.daemon.ConfigPath()
	if path == "" {
		conn.sendNumeric(ReplyRehashing, "REHASH unsupported: daemon was not started with a config file")
		return
	}

	file, err := os.Open(path)
	if err != nil {
		conn.sendNumeric(ReplyRehashing, "REHASH failed: "+err.Error())
		return
	}
	defer file.Close()

	result, err := conn.daemon.ConfigH.Rehash(file)
	if err != nil {
		conn.sendNumeric(ReplyRehashing, "REHASH failed: "+err.Error())
		return
	}

	conn.sendNumeric(ReplyRehashing, conn.daemon.Hostname()+".conf :Rehashing")
	log.Infof("irc: REHASH by %s: opers %d->%d links %d->%d hostname-changed=%v",
		conn.user.Nick(), result.OperCountBefore, result.OperCountAfter,
		result.LinkCountBefore, result.LinkCountAfter, result.HostnameChanged)
}

// HandleStats processes a STATS command, reporting the requested statistics
// query letter.
//
//    Command: STATS
//    Parameters: [<query>]
func HandleStats(ctx *MessageContext) {
	conn, msg := ctx.Conn, ctx.Msg

	query := "m"
	if enoughParams(msg, 1) {
		query = msg.Params[0]
	}

	switch query {
	case "m", "M":
		for _, count := range conn.daemon.Stats.CommandCounts() {
			conn.sendNumeric(ReplyStatsCommands, count.Command+" "+strconv.FormatUint(count.Count, 10))
		}
	case "u", "U":
		conn.sendNumeric(ReplyStatsUptime, "Server Up "+conn.daemon.Uptime().String())
	case "o", "O":
		for _, user := range conn.daemon.Store.Users() {
			if !user.OperFlags().Empty() {
				conn.sendNumeric(ReplyStatsNetOp, user.Nick()+" "+user.OperFlags().String())
			}
		}
	case "k", "K":
		for _, ban := range conn.daemon.Bans.Entries(BanKindKLine) {
			conn.sendNumeric(ReplyStatsKLine, "K "+ban.Mask+" :"+ban.Reason)
		}
	default:
		// unrecognized query letters report nothing but still close the
		// reply sequence, matching real-world ircd STATS behavior.
	}

	conn.sendNumeric(ReplyEndOfStats, query+" :End of STATS report")
}

// HandleAdmin processes an ADMIN command, replying with the configured
// server administrative contact block.
//
//    Command: ADMIN
func HandleAdmin(ctx *MessageContext) {
	conn := ctx.Conn
	cfg := conn.daemon.ConfigH.Load()

	conn.sendNumeric(ReplyAdminInfoStart, conn.daemon.Hostname()+" :Administrative info")
	conn.sendNumeric(ReplyAdminInfo1, ":"+cfg.Server.Description)
	conn.sendNumeric(ReplyAdminInfo2, ":"+conn.daemon.Network())
	conn.sendNumeric(ReplyAdminEmail, ":Contact the server administrator via the network's usual channels")
}

// HandleInfo processes an INFO command, replying with free-form server
// build/version information.
//
//    Command: INFO
func HandleInfo(ctx *MessageContext) {
	conn := ctx.Conn

	lines := []string{
		conn.daemon.Hostname() + " running " + ServerVersion,
		"Birth date: see server uptime via STATS u",
	}

	for _, line := range lines {
		conn.sendNumeric(ReplyInfo, ":"+line)
	}

	conn.sendNumeric(ReplyEndOfInfo, "End of INFO list")
}

// HandleWallops processes a WALLOPS command, fanning a message out to every
// currently connected operator. The sender must itself be an operator.
//
//    Command: WALLOPS
//    Parameters: :<text>
func HandleWallops(ctx *MessageContext) {
	conn, msg := ctx.Conn, ctx.Msg

	if conn.user.OperFlags().Empty() {
		conn.sendNumeric(ReplyNoPrivileges, "Permission Denied- You're not an IRC operator")
		return
	}

	if len(msg.Trailing) < 1 {
		conn.ReplyNeedMoreParams(msg.Command)
		return
	}

	targets := make([]*User, 0)
	for _, user := range conn.daemon.Store.Users() {
		if user.IsLocal() && !user.OperFlags().Empty() {
			targets = append(targets, user)
		}
	}

	wallops := conn.newMessage()
	wallops.Source = conn.user.Hostmask()
	wallops.Command = CmdWallops
	wallops.Trailing = msg.Trailing

	conn.daemon.Broadcast.Submit(PriorityLow, targets, wallops, "")
	Deliver(conn.daemon, RouteToServers(), wallops, "")
}
