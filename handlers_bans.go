/*
   Copyright (c) 2023, btnmasher
   All rights reserved.
   Use of this source code is governed by a BSD-style
   license that can be found in the LICENSE file.
*/

package ircd

import "time"

// HandleKline processes a KLINE command, banning an ident@host glob mask
// from completing registration. The issuing user must hold OperGlobalOper or
// OperLocalOper.
//
//    Command: KLINE
//    Parameters: <mask> [:<reason>]
func HandleKline(ctx *MessageContext) {
	handleBanLine(ctx, BanKindKLine)
}

// HandleDline processes a DLINE command, banning a raw connecting IP address
// before registration. The issuing user must hold OperGlobalOper or
// OperLocalOper.
//
//    Command: DLINE
//    Parameters: <mask> [:<reason>]
func HandleDline(ctx *MessageContext) {
	handleBanLine(ctx, BanKindDLine)
}

// HandleGline processes a GLINE command, a network-wide KLine. The issuing
// user must hold OperGlobalOper.
//
//    Command: GLINE
//    Parameters: <mask> [:<reason>]
func HandleGline(ctx *MessageContext) {
	conn := ctx.Conn
	if !conn.user.OperFlags().Has(OperGlobalOper) {
		conn.sendNumeric(ReplyNoPrivileges, "Permission Denied- You're not an IRC operator")
		return
	}
	handleBanLine(ctx, BanKindGLine)
}

// HandleXline processes an XLINE command, banning a glob mask against the
// realname (gecos) field. The issuing user must hold OperGlobalOper or
// OperLocalOper.
//
//    Command: XLINE
//    Parameters: <mask> [:<reason>]
func HandleXline(ctx *MessageContext) {
	handleBanLine(ctx, BanKindXLine)
}

// handleBanLine implements the shared KLINE/DLINE/GLINE/XLINE body: operator
// check, mask removal on a leading '-', or addition otherwise.
func handleBanLine(ctx *MessageContext, kind BanKind) {
	conn, msg := ctx.Conn, ctx.Msg

	if !conn.user.OperFlags().Has(OperGlobalOper) && !conn.user.OperFlags().Has(OperLocalOper) {
		conn.sendNumeric(ReplyNoPrivileges, "Permission Denied- You're not an IRC operator")
		return
	}

	if !enoughParams(msg, 1) {
		conn.ReplyNeedMoreParams(msg.Command)
		return
	}

	mask := msg.Params[0]

	if len(mask) > 0 && mask[0] == '-' {
		removed := conn.daemon.Bans.Remove(kind, mask[1:])
		if removed {
			conn.sendNotice(kind.String() + "-Line for " + mask[1:] + " removed")
		} else {
			conn.sendNotice(kind.String() + "-Line for " + mask[1:] + " not found")
		}
		return
	}

	reason := msg.Trailing
	if len(reason) < 1 {
		reason = "No reason given"
	}

	conn.daemon.Bans.Add(&BanEntry{
		Kind:   kind,
		Mask:   mask,
		Reason: reason,
		SetBy:  conn.user.Nick(),
		SetAt:  time.Now(),
	})

	conn.sendNotice(kind.String() + "-Line active for " + mask + " :" + reason)
}
