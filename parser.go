/*
   Copyright (c) 2023, btnmasher
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

// Parse takes IRC-formatted text into a message object.
// Will return an error if the message doesn't fit the protocol.
func Parse(data string) (*Message, error) {
	if len(data) < 4 {
		return nil, ErrMessageTooShort
	}

	body := data
	if data[0] == '@' {
		if sp := strings.IndexByte(data, ' '); sp != -1 {
			body = data[sp+1:]
		}
	}
	if len(body) > MaxMsgLength {
		return nil, ErrMessageTooLong
	}

	data = strings.TrimSpace(data)
	if len(data) == 0 {
		return nil, ErrWhitespace
	}

	msg := messagePool.New()

	if data[0] == '@' {
		sp := strings.IndexByte(data, ' ')
		if sp == -1 {
			return nil, ErrMissingParams
		}

		tagSection := data[1:sp]
		if len(tagSection) > MaxTagsLength {
			return nil, ErrTagsTooLong
		}

		msg.Tags = parseTags(tagSection)
		data = strings.TrimLeft(data[sp+1:], " ")

		if len(data) == 0 {
			return nil, ErrWhitespace
		}
	}

	if data[0] == ':' { // Clients shouldn't be sending prefixed messages so we're going to just error
		return nil, ErrPrefixed
	}

	split := strings.SplitN(data, ":", 2)
	args := strings.Fields(split[0])

	if len(args) == 0 {
		return nil, ErrMissingParams
	}

	msg.Command = strings.ToUpper(args[0])
	msg.Params = args[1:]

	if len(msg.Params) > MaxMsgParams {
		return nil, ErrTooManyParams
	}

	if len(split) > 1 {
		msg.Trailing = split[1]
	}

	return msg, nil
}

// parseTags splits an IRCv3 tag section ("key1=val1;key2;key3=val3") into a
// map, unescaping values per the message-tags escaping rules.
func parseTags(section string) map[string]string {
	pairs := strings.Split(section, ";")
	tags := make(map[string]string, len(pairs))

	for _, pair := range pairs {
		if pair == "" {
			continue
		}

		key, value, hasValue := strings.Cut(pair, "=")
		if hasValue {
			tags[key] = unescapeTagValue(value)
		} else {
			tags[key] = ""
		}
	}

	return tags
}

var tagUnescapes = strings.NewReplacer(
	"\\:", ";",
	"\\s", " ",
	"\\r", "\r",
	"\\n", "\n",
	"\\\\", "\\",
)

func unescapeTagValue(v string) string {
	return tagUnescapes.Replace(v)
}
