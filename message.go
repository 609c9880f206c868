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
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/coreircd/ircd/shared/itempool"
)

// Message is an object that represents the components of an IRC message,
// including IRCv3 message tags.
type Message struct {
	Tags     map[string]string // IRCv3 message tags, keyed without the leading '@'.
	Source   string            // The prefix of the message (nick!user@host or server name).
	Trailing string            // The portion of the message after the first ':' past the tags.
	Params   []string          // Middle parameters, in order.
	Command  string            // The IRC string command of the message.
	Code     uint16            // The IRC numeric code of the message, used instead of Command when nonzero.
}

// Message represents an IRC protocol message.
// See RFC1459 section 2.3.1, extended per IRCv3 message-tags.
//
//    <message>  = ['@' <tags> <SPACE>] [':' <prefix> <SPACE> ] <command> <params> <crlf>
//    <prefix>   = <servername> | <nick> [ '!' <user> ] [ '@' <host> ]
//    <command>  = <letter> { <letter> } | <number> <number> <number>
//    <SPACE>    = ' ' { ' ' }
//    <params>   = <SPACE> [ ':' <trailing> | <middle> <params> ]
//
//    <middle>   = <Any *non-empty* sequence of octets not including SPACE
//                   or NUL or CR or LF, the first of which may not be ':'>
//    <trailing> = <Any, possibly *empty*, sequence of octets not including
//                   NUL or CR or LF>
//
//    <crlf>     = CR LF

// String constants for constructing the message
const (
	SPACE  string = " "
	CRLF          = "\r\n"
	COLON         = ":"
	ATSIGN        = "@"
	SEMI          = ";"
	EMPTY         = ""
	PADNUM        = "%03d"
)

// String returns the IRC-formatted string version of a message object.
// This is here to satisfy a Stringer interface
func (msg *Message) String() string {
	return msg.Render()
}

// RenderBuffer returns the IRC-formatted byte buffer version of a message object.
func (msg *Message) RenderBuffer() *bytes.Buffer {
	buffer := bufpool.New()

	if len(msg.Tags) > 0 {
		buffer.WriteString(ATSIGN)
		buffer.WriteString(renderTags(msg.Tags))
		buffer.WriteString(SPACE)
	}

	if msg.Source != EMPTY {
		buffer.WriteString(COLON)
		buffer.WriteString(msg.Source)
		buffer.WriteString(SPACE)
	}

	if msg.Code > 0 {
		buffer.WriteString(fmt.Sprintf(PADNUM, msg.Code))
	} else if msg.Command != EMPTY {
		buffer.WriteString(msg.Command)
	}

	if len(msg.Params) > 0 {
		if len(msg.Params) > 14 {
			msg.Params = msg.Params[0:15]
		}

		buffer.WriteString(SPACE)
		buffer.WriteString(strings.Join(msg.Params, SPACE))
	}

	if msg.Trailing != EMPTY {
		buffer.WriteString(SPACE)
		buffer.WriteString(COLON)
		buffer.WriteString(msg.Trailing)
	}

	buffer.WriteString(CRLF)

	return buffer
}

// renderTags renders a tag map in deterministic (sorted-key) order, which
// makes rendered output reproducible for tests even though map iteration
// order is not.
func renderTags(tags map[string]string) string {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		if tags[k] == EMPTY {
			parts = append(parts, k)
			continue
		}
		parts = append(parts, k+"="+escapeTagValue(tags[k]))
	}
	return strings.Join(parts, SEMI)
}

var tagEscapes = strings.NewReplacer(
	"\\", "\\\\",
	";", "\\:",
	" ", "\\s",
	"\r", "\\r",
	"\n", "\\n",
)

func escapeTagValue(v string) string {
	return tagEscapes.Replace(v)
}

// Render returns the IRC-formatted string version of a message object.
func (msg *Message) Render() string {
	buf := msg.RenderBuffer()
	out := buf.String()
	bufpool.Recycle(buf)
	return out
}

// Debug prints a message object to a string with verbose information about the object fields.
func (msg *Message) Debug() string {
	bytes, _ := json.Marshal(msg) // Ignoring the error because it literally can't happen.
	return string(bytes)
}

// Scrub resets the message to its zero value so it is safe to recycle
// through an itempool.Pool.
func (msg *Message) Scrub() {
	msg.Tags = nil
	msg.Code = 0
	msg.Command = ""
	msg.Source = ""
	msg.Params = nil
	msg.Trailing = ""
}

// messagePool is the global recycling pool for inbound Message objects,
// parallel to bufpool for their underlying byte buffers.
var messagePool = itempool.New[*Message](MessagePoolMax, func() *Message {
	return &Message{}
})
