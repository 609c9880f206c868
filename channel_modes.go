/*
   Copyright (c) 2023, btnmasher
   All rights reserved.
   Use of this source code is governed by a BSD-style
   license that can be found in the LICENSE file.
*/

package ircd

// Channel mode bitmasks for the boolean (no-parameter) channel modes
// advertised in the 'd'-type group of the ISUPPORT CHANMODES token
// (daemon.setISupport). Membership-prefix modes (o/h/v/O) and list modes
// (b/I/e) are tracked separately via Channel's membership maps, not here.
const (
	CModeNoExternalMsgs uint64 = 1 << iota
	CModeTopicOpsOnly
	CModeSecret
	CModePrivate
	CModeModerated
	CModeInviteOnly
)

// channelModeLetters maps a MODE command letter to its boolean channel mode
// bit, for the letters this server actually implements.
var channelModeLetters = map[byte]uint64{
	'n': CModeNoExternalMsgs,
	't': CModeTopicOpsOnly,
	's': CModeSecret,
	'p': CModePrivate,
	'm': CModeModerated,
	'i': CModeInviteOnly,
}

// channelModeString renders a channel's currently-set boolean mode letters,
// e.g. "+nt".
func channelModeString(channel *Channel) string {
	out := []byte{'+'}
	for _, letter := range []byte("ntspmi") {
		if channel.ModeIsSet(channelModeLetters[letter]) {
			out = append(out, letter)
		}
	}
	if len(out) == 1 {
		return "+"
	}
	return string(out)
}

// membershipModeLetters lists the MODE letters that add/remove a user from
// a per-channel membership tier rather than toggling a boolean channel mode.
var membershipModeLetters = map[byte]bool{
	'O': true, // owner
	'o': true, // operator
	'h': true, // half-operator
	'v': true, // voice
}

// userModeLetters maps a MODE command letter to its boolean user mode bit,
// for the subset of usermode.go's modes that are client-settable via MODE
// (UModeOper is deliberately excluded - see usermode.go).
var userModeLetters = map[byte]uint64{
	'i': UModeInvisible,
	'd': UModeDeaf,
	'b': UModeBot,
	'H': UModeHiddenHost,
	'g': UModeGodmode,
	'a': UModeAdmin,
}

// userModeString renders a user's currently-set client-visible mode
// letters, e.g. "+i".
func userModeString(user *User) string {
	out := []byte{'+'}
	for _, letter := range []byte("idbHga") {
		if user.ModeIsSet(userModeLetters[letter]) {
			out = append(out, letter)
		}
	}
	if !user.OperFlags().Empty() {
		out = append(out, 'o')
	}
	if len(out) == 1 {
		return "+"
	}
	return string(out)
}
