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

import "strings"

// HandleQuit processes a QUIT command.
//
//    Command: QUIT
//    Parameters: :<reason>
func HandleQuit(ctx *MessageContext) {
	conn, msg := ctx.Conn, ctx.Msg
	conn.doQuit(msg.Trailing)
	ctx.Handled()
}

// HandlePass processes a PASS command, which must precede NICK/USER if the
// listener requires a connection password.
//
//    Command: PASS
//    Parameters: <password>
func HandlePass(ctx *MessageContext) {
	conn, msg := ctx.Conn, ctx.Msg

	if !enoughParams(msg, 1) {
		conn.ReplyNeedMoreParams(msg.Command)
		return
	}

	// No listener-wide client password is modeled in Config; PASS is
	// accepted and recorded so the registration state machine can still
	// track whether one was supplied, for extensions that enforce their
	// own connect policy. The raw value is kept on the connection since a
	// server-to-server peer's PASS, unlike a client's, must later be
	// checked against a configured LinkConfig.Password by HandleServer.
	conn.pendingPassword = msg.Params[0]
	conn.reg.MarkPasswordProvided()
}

// HandleNick processes a NICK command.
//
// First, it checks if the current nickname is in use by the user issuing
// the command or by another user on the server. Then, if all requirements
// are met, it sets the User object's Nick field to the requested name.
//
//    Command: NICK
//    Parameters: <nickname>
func HandleNick(ctx *MessageContext) {
	conn, msg := ctx.Conn, ctx.Msg

	if !enoughParams(msg, 1) {
		conn.ReplyNoNicknameGiven()
		return
	}

	newNick := msg.Params[0]

	if conn.reg.Registered() {
		oldNick := conn.user.Nick()
		if CaseFoldEqual(oldNick, newNick) {
			return
		}

		oldHostmask := conn.user.RealHostmask()

		if v := conn.daemon.Extensions.DispatchUserNickChange(conn.user, oldNick); v == VetoRejected {
			conn.ReplyNicknameInUse(newNick)
			return
		}

		if err := conn.daemon.Store.RenameUser(conn.user, newNick); err != nil {
			conn.ReplyNicknameInUse(newNick)
			return
		}

		notice := conn.newMessage()
		defer messagePool.Recycle(notice)
		notice.Source = oldHostmask
		notice.Command = CmdNick
		notice.Trailing = newNick

		conn.channels.ForEach(func(_ string, channel *Channel) error {
			channel.Send(conn.daemon, notice, conn.user.Nick())
			return nil
		})

		return
	}

	if _, exists := conn.daemon.Store.UserByNick(newNick); exists {
		conn.ReplyNicknameInUse(newNick)
		return
	}

	conn.user.SetNick(newNick)
	conn.reg.MarkNick()

	if conn.reg.TryComplete() {
		conn.completeRegistration()
	}
}

// HandleUser processes a USER command.
//
//    Command: USER
//    Parameters: <username> <modemask> -0(unused)- :[realname]
func HandleUser(ctx *MessageContext) {
	conn, msg := ctx.Conn, ctx.Msg

	if !enoughParams(msg, 4) {
		conn.ReplyNeedMoreParams(msg.Command)
		return
	}

	if conn.reg.Registered() {
		reply := conn.newMessage()
		defer messagePool.Recycle(reply)
		reply.Params = []string{conn.user.Nick()}
		reply.Code = ReplyAlreadyRegistered
		reply.Trailing = ErrUserAreadySet.String()
		conn.Write(reply.RenderBuffer())
		return
	}

	conn.user.SetName(msg.Params[0])
	conn.user.SetRealname(msg.Trailing)
	conn.reg.MarkUser()

	if conn.reg.TryComplete() {
		conn.completeRegistration()
	}
}

// HandleCap processes the CAP command and its subcommands for negotiating
// IRCv3 capabilities.
//
//    Command: CAP
//    Parameters: <subcommand> [param] :[capability] [capability]
func HandleCap(ctx *MessageContext) {
	conn, msg := ctx.Conn, ctx.Msg

	if !enoughParams(msg, 1) {
		conn.ReplyInvalidCapCommand(msg.Command)
		return
	}

	sub := strings.ToUpper(msg.Params[0])

	switch sub {
	case "LS", "LIST":
		reply := conn.newMessage()
		defer messagePool.Recycle(reply)
		reply.Command = CmdCap
		reply.Params = []string{conn.nickOrStar(), sub}
		reply.Trailing = strings.Join(supportedCapTokens(), " ")
		conn.reg.BeginCapNegotiation()
		conn.Write(reply.RenderBuffer())

	case "REQ":
		if len(msg.Trailing) < 1 {
			conn.ReplyNeedMoreParams(msg.Command)
			return
		}

		conn.reg.BeginCapNegotiation()
		granted := conn.applyCapRequest(msg.Trailing)

		reply := conn.newMessage()
		defer messagePool.Recycle(reply)
		reply.Command = CmdCap
		reply.Params = []string{conn.nickOrStar()}
		if granted {
			reply.Params = append(reply.Params, "ACK")
		} else {
			reply.Params = append(reply.Params, "NAK")
		}
		reply.Trailing = msg.Trailing
		conn.Write(reply.RenderBuffer())

	case "END":
		conn.reg.EndCapNegotiation()
		if conn.reg.TryComplete() {
			conn.completeRegistration()
		}

	default:
		conn.ReplyInvalidCapCommand(msg.Command)
	}
}

// HandleAuthenticate processes SASL's AUTHENTICATE command (§6).
//
//    Command: AUTHENTICATE
//    Parameters: <mechanism> | <payload-chunk>
func HandleAuthenticate(ctx *MessageContext) {
	conn, msg := ctx.Conn, ctx.Msg

	if !enoughParams(msg, 1) {
		conn.ReplyNeedMoreParams(msg.Command)
		return
	}

	arg := msg.Params[0]

	if !conn.sasl.Active() {
		if !conn.sasl.Begin(arg) {
			conn.sendNumeric(ReplySASLMechs, strings.Join(supportedSaslMechs(), ","))
			conn.sendNumeric(ReplySASLFail, "SASL authentication failed")
			return
		}

		conn.sendAuthContinue()
		return
	}

	conn.sasl.Feed(arg)

	if arg != "+" && len(arg) == 400 {
		// more continuation lines expected
		return
	}

	account, err := conn.sasl.Finish(conn.daemon.ConfigH.Load(), conn.tlsState)
	if err != nil {
		conn.sendNumeric(ReplySASLFail, "SASL authentication failed")
		return
	}

	conn.sendNumeric(ReplySASLSuccess, "SASL authentication successful")
	log.Debugf("irc: SASL authenticated account %q for [%s]", account, conn.remAddr)
}

// nickOrStar returns the user's current nickname, or "*" before NICK has
// been accepted, per RFC 2812's pre-registration reply convention.
func (conn *Conn) nickOrStar() string {
	nick := conn.user.Nick()
	if len(nick) < 1 {
		return "*"
	}
	return nick
}

// sendAuthContinue replies with the "+" continuation prompt that tells the
// client to send its SASL payload.
func (conn *Conn) sendAuthContinue() {
	msg := conn.newMessage()
	defer messagePool.Recycle(msg)
	msg.Command = CmdAuth
	msg.Trailing = "+"
	conn.Write(msg.RenderBuffer())
}

// sendNumeric writes a server numeric reply addressed to this connection's
// current nick (or "*" if unregistered) with a single trailing parameter.
func (conn *Conn) sendNumeric(code uint16, text string) {
	msg := conn.newMessage()
	defer messagePool.Recycle(msg)
	msg.Code = code
	msg.Params = []string{conn.nickOrStar()}
	msg.Trailing = text
	conn.Write(msg.RenderBuffer())
}

// sendNotice writes a server-originated NOTICE to this connection, for
// operator command confirmations that don't have a dedicated numeric.
func (conn *Conn) sendNotice(text string) {
	msg := conn.newMessage()
	defer messagePool.Recycle(msg)
	msg.Command = CmdNotice
	msg.Params = []string{conn.nickOrStar()}
	msg.Trailing = text
	conn.Write(msg.RenderBuffer())
}

// supportedCapTokens lists every capability token this server advertises in
// CAP LS.
func supportedCapTokens() []string {
	tokens := make([]string, 0, len(capNames))
	for token := range capNames {
		tokens = append(tokens, token)
	}
	return tokens
}

// supportedSaslMechs lists the SASL mechanisms actually implemented.
func supportedSaslMechs() []string {
	return []string{"PLAIN", "EXTERNAL"}
}

// applyCapRequest toggles the requested capability tokens on the
// connection's Capabilities, rejecting the whole batch (per IRCv3 CAP REQ
// atomicity) if any token is unrecognized.
func (conn *Conn) applyCapRequest(tokenLine string) bool {
	tokens := strings.Fields(tokenLine)
	for _, tok := range tokens {
		disable := strings.HasPrefix(tok, "-")
		name := strings.TrimPrefix(tok, "-")
		if _, ok := capNames[name]; !ok {
			return false
		}
		_ = disable
	}

	for _, tok := range tokens {
		disable := strings.HasPrefix(tok, "-")
		name := strings.TrimPrefix(tok, "-")
		conn.capabilities.setByToken(name, !disable)
	}

	return true
}
