/*
   Copyright (c) 2023, btnmasher
   All rights reserved.
   Use of this source code is governed by a BSD-style
   license that can be found in the LICENSE file.
*/

package ircd

import "strings"

// HandleMode processes a MODE command, dispatching to channel or user mode
// handling based on the target's first character.
//
//    Command: MODE
//    Parameters: <target> [<modestring> [<mode arguments>...]]
func HandleMode(ctx *MessageContext) {
	conn, msg := ctx.Conn, ctx.Msg

	if !enoughParams(msg, 1) {
		conn.ReplyNeedMoreParams(msg.Command)
		return
	}

	target := msg.Params[0]
	if len(target) > 0 && (target[0] == '#' || target[0] == '&') {
		handleChannelMode(conn, msg)
		return
	}
	handleUserMode(conn, msg)
}

func handleChannelMode(conn *Conn, msg *Message) {
	cname := msg.Params[0]
	channel, ok := conn.daemon.Store.Channel(cname)
	if !ok {
		conn.ReplyNoSuchChan(cname)
		return
	}

	if !enoughParams(msg, 2) {
		conn.sendNumeric(ReplyChannelModeIs, cname+" "+channelModeString(channel))
		return
	}

	isOp := channel.Ops.Exists(CaseFold(conn.user.Nick())) || channel.Owner() == conn.user
	if !isOp {
		conn.sendChanPermsNeeded(cname)
		return
	}

	modestring := msg.Params[1]
	args := msg.Params[2:]
	argIdx := 0
	changes := newModeWriter()
	changedArgs := make([]string, 0, len(args))
	adding := true

	for i := 0; i < len(modestring); i++ {
		letter := modestring[i]
		switch letter {
		case '+':
			adding = true
			continue
		case '-':
			adding = false
			continue
		}

		if membershipModeLetters[letter] {
			if argIdx >= len(args) {
				conn.ReplyNeedMoreParams(CmdMode)
				continue
			}
			nick := args[argIdx]
			argIdx++
			target, ok := channel.Nicks.Get(CaseFold(nick))
			if !ok {
				conn.ReplyNoSuchNick(nick)
				continue
			}
			applyMembershipMode(channel, letter, adding, target)
			changes.add(letter, adding)
			changedArgs = append(changedArgs, nick)
			continue
		}

		bit, known := channelModeLetters[letter]
		if !known {
			conn.sendNumeric(ReplyUnknownMode, string(letter)+" :is unknown mode char to me")
			continue
		}

		if adding {
			channel.AddMode(bit)
		} else {
			channel.DelMode(bit)
		}
		changes.add(letter, adding)
	}

	if changes.empty() {
		return
	}

	notice := conn.newMessage()
	notice.Source = conn.user.Hostmask()
	notice.Command = CmdMode
	notice.Params = append([]string{cname, changes.String()}, changedArgs...)
	channel.Send(conn.daemon, notice, "")
	messagePool.Recycle(notice)
}

func applyMembershipMode(channel *Channel, letter byte, adding bool, target *User) {
	fold := CaseFold(target.Nick())
	var list interface {
		Set(string, *User)
		Delete(string) bool
	}

	switch letter {
	case 'O':
		if adding {
			channel.SetOwner(target)
		}
		return
	case 'o':
		list = channel.Ops
	case 'h':
		list = channel.HalfOps
	case 'v':
		list = channel.Voiced
	default:
		return
	}

	if adding {
		list.Set(fold, target)
	} else {
		list.Delete(fold)
	}
}

func handleUserMode(conn *Conn, msg *Message) {
	nick := msg.Params[0]
	if !CaseFoldEqual(nick, conn.user.Nick()) {
		conn.sendNumeric(ReplyUsersDontMatch, "Cannot change mode for other users")
		return
	}

	if !enoughParams(msg, 2) {
		conn.sendNumeric(ReplyUserModeIs, userModeString(conn.user))
		return
	}

	modestring := msg.Params[1]
	adding := true
	changes := newModeWriter()

	for i := 0; i < len(modestring); i++ {
		letter := modestring[i]
		switch letter {
		case '+':
			adding = true
			continue
		case '-':
			adding = false
			continue
		}

		bit, known := userModeLetters[letter]
		if !known {
			conn.sendNumeric(ReplyUnknownMode, string(letter)+" :is unknown mode char to me")
			continue
		}

		var err error
		if adding {
			err = SetUserMode(bit, conn.user, conn.user)
		} else {
			err = UnsetUserMode(bit, conn.user, conn.user)
		}
		if err != nil {
			continue
		}
		changes.add(letter, adding)
	}

	if changes.empty() {
		return
	}

	notice := conn.newMessage()
	notice.Source = conn.user.Hostmask()
	notice.Command = CmdMode
	notice.Params = []string{conn.user.Nick(), changes.String()}
	conn.Write(notice.RenderBuffer())
	messagePool.Recycle(notice)
}

// modeWriter incrementally renders a MODE change string like "+nt-s",
// inserting a new sign marker only when the sign actually flips.
type modeWriter struct {
	b        strings.Builder
	lastSign byte
}

func newModeWriter() *modeWriter {
	return &modeWriter{}
}

func (w *modeWriter) add(letter byte, adding bool) {
	sign := byte('+')
	if !adding {
		sign = '-'
	}
	if sign != w.lastSign {
		w.b.WriteByte(sign)
		w.lastSign = sign
	}
	w.b.WriteByte(letter)
}

func (w *modeWriter) empty() bool {
	return w.b.Len() == 0
}

func (w *modeWriter) String() string {
	return w.b.String()
}
